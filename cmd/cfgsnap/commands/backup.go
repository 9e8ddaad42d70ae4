package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgsnap/internal/rollback"
	"github.com/thoreinstein/cfgsnap/internal/store"
)

var (
	backupNote   string
	backupID     string
	backupFormat string
)

func init() {
	backupCmd.Flags().StringVarP(&backupNote, "note", "n", "",
		"optional annotation stored with the snapshot")
	backupCmd.Flags().StringVar(&backupID, "id", "",
		"explicit identity key (default: derived from the file path)")
	backupCmd.Flags().StringVarP(&backupFormat, "format", "f", "",
		"payload format: json, yaml, toml (default: by file extension)")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Snapshot a configuration file",
	Long: `Snapshot the current content of a configuration file.

The payload is validated as structured data before anything is written;
a file that does not parse produces no snapshot. Each backup gets the
next version number in the file's history, a UTC timestamp, and a SHA256
checksum.`,
	Example: `  # Snapshot before a risky change
  cfgsnap backup /etc/myapp/config.json --note "before enabling X"

  # Group snapshots under an explicit identity instead of the path
  cfgsnap backup ./config.yaml --id myapp-prod

  See Also:
    cfgsnap list    - Show a file's snapshot history
    cfgsnap restore - Roll a file back to a snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	return runBackupWithWriter(cmd.OutOrStdout(), args[0])
}

func runBackupWithWriter(w io.Writer, livePath string) error {
	identity, err := resolveIdentity(livePath, backupID)
	if err != nil {
		return err
	}

	format, err := resolveFormat(livePath, backupFormat)
	if err != nil {
		return err
	}

	opts := []store.CaptureOption{
		store.WithFormat(format),
		store.WithSourcePath(livePath),
	}
	if backupNote != "" {
		opts = append(opts, store.WithNote(backupNote))
	}

	engine := newEngine()
	snap, err := engine.Backup(identity, rollback.NewFile(livePath), opts...)
	if err != nil {
		return errors.Wrapf(err, "backing up %s", livePath)
	}

	slog.Debug("snapshot captured",
		"identity", identity, "version", snap.Version, "sha256", snap.SHA256)

	if !quiet {
		fmt.Fprintf(w, "%s✓ %s: captured version %d (%d bytes, %s)%s\n",
			colorGreen, livePath, snap.Version, snap.Size, format, colorReset)
	}

	return nil
}
