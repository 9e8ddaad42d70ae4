package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgsnap/internal/store"
)

var (
	listJSON bool
	listID   string
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listID, "id", "",
		"explicit identity key (default: derived from the file path)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List a file's snapshot history",
	Long: `List the snapshot history of a configuration file.

Versions are shown newest first with their timestamps, sizes, checksums
and notes. An empty history is not an error.`,
	Example: `  # Show the history of a file
  cfgsnap list /etc/myapp/config.json

  # Output as JSON
  cfgsnap list config.yaml --json

  See Also:
    cfgsnap show    - Inspect a single snapshot
    cfgsnap restore - Roll a file back to a snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

// versionOutput represents a single snapshot in JSON output.
type versionOutput struct {
	Version    int       `json:"version"`
	CapturedAt time.Time `json:"captured_at"`
	Size       int64     `json:"size"`
	Format     string    `json:"format"`
	SHA256     string    `json:"sha256"`
	Note       string    `json:"note,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	return runListWithWriter(cmd.OutOrStdout(), args[0])
}

func runListWithWriter(w io.Writer, livePath string) error {
	identity, err := resolveIdentity(livePath, listID)
	if err != nil {
		return err
	}

	metas, err := newStore().List(identity)
	if err != nil {
		return errors.Wrapf(err, "listing snapshots for %s", livePath)
	}

	if listJSON {
		return outputListJSON(w, metas)
	}
	return outputListTabular(w, livePath, metas)
}

func outputListJSON(w io.Writer, metas []store.Metadata) error {
	output := make([]versionOutput, len(metas))
	for i, m := range metas {
		output[len(metas)-1-i] = versionOutput{
			Version:    m.Version,
			CapturedAt: m.CapturedAt,
			Size:       m.Size,
			Format:     string(m.Format),
			SHA256:     m.SHA256,
			Note:       m.Note,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(output), "encoding output")
}

func outputListTabular(w io.Writer, livePath string, metas []store.Metadata) error {
	fmt.Fprintf(w, "%sFile: %s%s\n", colorCyan+colorBold, livePath, colorReset)

	if len(metas) == 0 {
		fmt.Fprintf(w, "  %s(no snapshots)%s\n", colorGray, colorReset)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Create one with: cfgsnap backup", livePath)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  %sVERSION%s\t%sCAPTURED%s\t%sSIZE%s\t%sFORMAT%s\t%sNOTE%s\n",
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset,
		colorBold, colorReset)

	// Newest first.
	for i := len(metas) - 1; i >= 0; i-- {
		m := metas[i]
		fmt.Fprintf(tw, "  %s%d%s\t%s\t%d\t%s\t%s\n",
			colorGreen, m.Version, colorReset,
			m.CapturedAt.Local().Format("2006-01-02 15:04:05"),
			m.Size,
			m.Format,
			m.Note)
	}
	tw.Flush()

	return nil
}
