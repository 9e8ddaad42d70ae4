package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgsnap/internal/config"
	cliErrors "github.com/thoreinstein/cfgsnap/internal/errors"
)

var (
	pruneKeep      int
	pruneOlderThan time.Duration
	pruneID        string
)

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0,
		fmt.Sprintf("Number of snapshots to retain (default: retention_count from config, %d)",
			config.DefaultRetentionCount))
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0,
		"Remove snapshots captured more than this long ago (e.g. 720h)")
	pruneCmd.Flags().StringVar(&pruneID, "id", "",
		"explicit identity key (default: derived from the file path)")
	rootCmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune <file>",
	Short: "Remove old snapshots",
	Long: `Remove old snapshots of a configuration file.

With --keep, the most recent N versions are retained and everything
older is removed. With --older-than, snapshots captured before the
cutoff are removed regardless of count. While any snapshot remains,
the version numbers of removed ones are not reused; a prune that
empties the history restarts the sequence at 1.`,
	Example: `  # Keep only the 3 most recent snapshots
  cfgsnap prune /etc/myapp/config.json --keep 3

  # Remove snapshots older than 30 days
  cfgsnap prune config.yaml --older-than 720h

  See Also:
    cfgsnap list - Show a file's snapshot history`,
	Args: cobra.ExactArgs(1),
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	return runPruneWithWriter(cmd.OutOrStdout(), args[0],
		cmd.Flags().Changed("keep"), cmd.Flags().Changed("older-than"))
}

func runPruneWithWriter(w io.Writer, livePath string, keepSet, olderSet bool) error {
	if keepSet && olderSet {
		return cliErrors.NewUserError(nil, "cannot use --keep and --older-than together")
	}

	identity, err := resolveIdentity(livePath, pruneID)
	if err != nil {
		return err
	}

	st := newStore()

	var removed []int
	switch {
	case olderSet:
		if pruneOlderThan <= 0 {
			return cliErrors.NewUserError(nil, "--older-than must be a positive duration")
		}
		removed, err = st.PruneOlderThan(identity, pruneOlderThan)
	default:
		keep := pruneKeep
		if !keepSet {
			keep = config.DefaultRetentionCount
			if cfg != nil && cfg.RetentionCount > 0 {
				keep = cfg.RetentionCount
			}
		}
		if keep < 0 {
			return cliErrors.NewUserError(nil, "--keep must be non-negative")
		}
		removed, err = st.Prune(identity, keep)
	}
	if err != nil {
		return errors.Wrapf(err, "pruning snapshots of %s", livePath)
	}

	if len(removed) == 0 {
		fmt.Fprintln(w, "No snapshots to prune")
		return nil
	}

	for _, v := range removed {
		fmt.Fprintf(w, "%s✓ removed version %d%s\n", colorGreen, v, colorReset)
	}
	fmt.Fprintf(w, "\nTotal: removed %d snapshot(s)\n", len(removed))

	return nil
}
