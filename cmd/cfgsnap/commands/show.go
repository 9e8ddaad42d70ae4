package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	cliErrors "github.com/thoreinstein/cfgsnap/internal/errors"
	"github.com/thoreinstein/cfgsnap/internal/store"
)

var (
	showVersion     int
	showID          string
	showJSON        bool
	showPayloadOnly bool
)

func init() {
	showCmd.Flags().IntVarP(&showVersion, "version", "V", 0,
		"snapshot version to show (default: latest)")
	showCmd.Flags().StringVar(&showID, "id", "",
		"explicit identity key (default: derived from the file path)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	showCmd.Flags().BoolVar(&showPayloadOnly, "payload", false,
		"print only the stored payload, suitable for piping")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Inspect a single snapshot",
	Long: `Show the metadata and content of one snapshot.

The snapshot's checksum is verified before anything is printed; a
tampered blob is reported instead of being displayed.`,
	Example: `  # Show the latest snapshot
  cfgsnap show /etc/myapp/config.json

  # Print only the stored content of version 2
  cfgsnap show config.yaml --version 2 --payload

  See Also:
    cfgsnap list   - Show a file's snapshot history
    cfgsnap verify - Check every snapshot's integrity`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

// showOutput represents a snapshot in JSON output.
type showOutput struct {
	Identity   string    `json:"identity"`
	Version    int       `json:"version"`
	CapturedAt time.Time `json:"captured_at"`
	Size       int64     `json:"size"`
	Format     string    `json:"format"`
	SHA256     string    `json:"sha256"`
	Note       string    `json:"note,omitempty"`
	Payload    string    `json:"payload"`
}

func runShow(cmd *cobra.Command, args []string) error {
	return runShowWithWriter(cmd.OutOrStdout(), args[0])
}

func runShowWithWriter(w io.Writer, livePath string) error {
	if showVersion < 0 {
		return cliErrors.NewUserError(nil, "--version must be a positive integer")
	}

	identity, err := resolveIdentity(livePath, showID)
	if err != nil {
		return err
	}

	sel := store.Latest()
	if showVersion > 0 {
		sel = store.ExactVersion(showVersion)
	}

	snap, err := newStore().Resolve(identity, sel)
	if err != nil {
		return errors.Wrapf(err, "showing snapshot of %s", livePath)
	}

	if showPayloadOnly {
		_, err := w.Write(snap.Payload)
		return errors.Wrap(err, "writing payload")
	}

	if showJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(showOutput{
			Identity:   snap.Identity,
			Version:    snap.Version,
			CapturedAt: snap.CapturedAt,
			Size:       snap.Size,
			Format:     string(snap.Format),
			SHA256:     snap.SHA256,
			Note:       snap.Note,
			Payload:    string(snap.Payload),
		}), "encoding output")
	}

	fmt.Fprintf(w, "%sVersion:%s  %d\n", colorBold, colorReset, snap.Version)
	fmt.Fprintf(w, "%sCaptured:%s %s\n", colorBold, colorReset,
		snap.CapturedAt.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "%sFormat:%s   %s\n", colorBold, colorReset, snap.Format)
	fmt.Fprintf(w, "%sSize:%s     %d bytes\n", colorBold, colorReset, snap.Size)
	fmt.Fprintf(w, "%sSHA256:%s   %s\n", colorBold, colorReset, snap.SHA256)
	if snap.Note != "" {
		fmt.Fprintf(w, "%sNote:%s     %s\n", colorBold, colorReset, snap.Note)
	}
	if snap.SourcePath != "" {
		fmt.Fprintf(w, "%sSource:%s   %s\n", colorBold, colorReset, snap.SourcePath)
	}
	fmt.Fprintln(w)
	w.Write(snap.Payload)
	if len(snap.Payload) > 0 && snap.Payload[len(snap.Payload)-1] != '\n' {
		fmt.Fprintln(w)
	}

	return nil
}
