package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	cliErrors "github.com/thoreinstein/cfgsnap/internal/errors"
	"github.com/thoreinstein/cfgsnap/internal/rollback"
	"github.com/thoreinstein/cfgsnap/internal/store"
)

var (
	restoreVersion     int
	restoreID          string
	restoreDest        string
	restoreForce       bool
	restoreInteractive bool
)

func init() {
	restoreCmd.Flags().IntVarP(&restoreVersion, "version", "V", 0,
		"snapshot version to restore (default: latest)")
	restoreCmd.Flags().StringVar(&restoreID, "id", "",
		"explicit identity key (default: derived from the file path)")
	restoreCmd.Flags().StringVarP(&restoreDest, "dest", "d", "",
		"write the restored content to this path instead of the original file")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false,
		"skip the pre-restore safety snapshot of the current content")
	restoreCmd.Flags().BoolVarP(&restoreInteractive, "interactive", "i", false,
		"pick the version with a fuzzy finder")
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Roll a configuration file back to a snapshot",
	Long: `Restore a configuration file from its snapshot history.

By default the latest version is restored and the file's current content
is snapshotted first, so the rollback itself can be rolled back. Use
--version to pick an exact version, --interactive to browse the history,
and --force to skip the safety snapshot.`,
	Example: `  # Roll back to the most recent snapshot
  cfgsnap restore /etc/myapp/config.json

  # Restore an exact version to a different location for inspection
  cfgsnap restore config.yaml --version 3 --dest /tmp/config.v3.yaml

  # Browse the history and pick interactively
  cfgsnap restore config.yaml --interactive

  See Also:
    cfgsnap list - Show a file's snapshot history
    cfgsnap show - Inspect a single snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	return runRestoreWithWriter(cmd.OutOrStdout(), args[0])
}

func runRestoreWithWriter(w io.Writer, livePath string) error {
	if restoreInteractive && restoreVersion != 0 {
		return cliErrors.NewUserError(nil, "cannot use --version and --interactive together")
	}
	if restoreVersion < 0 {
		return cliErrors.NewUserError(nil, "--version must be a positive integer")
	}

	identity, err := resolveIdentity(livePath, restoreID)
	if err != nil {
		return err
	}

	st := newStore()

	sel := store.Latest()
	if restoreVersion > 0 {
		sel = store.ExactVersion(restoreVersion)
	}
	if restoreInteractive {
		sel, err = pickVersion(st, identity)
		if err != nil {
			return err
		}
	}

	target := livePath
	if restoreDest != "" {
		target = restoreDest
	}

	var opts []rollback.RestoreOption
	// A safety snapshot only makes sense when we overwrite the original;
	// restoring to --dest leaves the live file untouched.
	if !restoreForce && restoreDest == "" {
		opts = append(opts, rollback.WithPreRestoreCapture())
	}

	engine := rollback.New(st)
	res, err := engine.Restore(identity, sel, rollback.NewFile(target), opts...)
	if err != nil {
		return errors.Wrapf(err, "restoring %s", livePath)
	}

	slog.Debug("snapshot restored",
		"identity", identity, "version", res.Version, "target", target)

	if !quiet {
		fmt.Fprintf(w, "%s✓ %s: restored version %d%s\n",
			colorGreen, target, res.Version, colorReset)
		if res.PreRestoreVersion > 0 {
			fmt.Fprintf(w, "%s  previous content saved as version %d%s\n",
				colorGray, res.PreRestoreVersion, colorReset)
		}
	}

	return nil
}

// pickVersion lets the user choose a snapshot from the identity's history
// with a fuzzy finder. Aborting the finder is not an error.
func pickVersion(st *store.Store, identity string) (store.Selector, error) {
	metas, err := st.List(identity)
	if err != nil {
		return store.Selector{}, err
	}
	if len(metas) == 0 {
		return store.Selector{}, errors.Wrapf(store.ErrNoSnapshots, "identity %s", identity)
	}

	idx, err := fuzzyfinder.Find(
		metas,
		func(i int) string {
			label := fmt.Sprintf("v%d  %s  %d bytes", metas[i].Version,
				metas[i].CapturedAt.Format("2006-01-02 15:04:05"), metas[i].Size)
			if metas[i].Note != "" {
				label += "  " + metas[i].Note
			}
			return label
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			m := metas[i]
			return fmt.Sprintf("Version: %d\nCaptured: %s\nFormat: %s\nSize: %d bytes\nSHA256: %s\nNote: %s",
				m.Version,
				m.CapturedAt.Format("2006-01-02 15:04:05 MST"),
				m.Format,
				m.Size,
				m.SHA256,
				m.Note,
			)
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return store.Selector{}, cliErrors.NewUserError(err, "restore cancelled")
		}
		return store.Selector{}, errors.Wrap(err, "interactive version selection failed")
	}

	return store.ExactVersion(metas[idx].Version), nil
}
