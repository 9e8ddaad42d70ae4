package commands

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgsnap/internal/store"
)

var verifyID string

func init() {
	verifyCmd.Flags().StringVar(&verifyID, "id", "",
		"explicit identity key (default: derived from the file path)")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check every snapshot's integrity",
	Long: `Recompute the checksum of every stored snapshot for a file and
report any that no longer match their recorded SHA256.

The exit code is non-zero when any snapshot fails verification.`,
	Example: `  # Verify all snapshots of a file
  cfgsnap verify /etc/myapp/config.json

  See Also:
    cfgsnap show - Inspect a single snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	return runVerifyWithWriter(cmd.OutOrStdout(), args[0])
}

func runVerifyWithWriter(w io.Writer, livePath string) error {
	identity, err := resolveIdentity(livePath, verifyID)
	if err != nil {
		return err
	}

	results, err := newStore().Verify(identity)
	if err != nil {
		return errors.Wrapf(err, "verifying snapshots of %s", livePath)
	}

	if len(results) == 0 {
		fmt.Fprintf(w, "%s(no snapshots to verify)%s\n", colorGray, colorReset)
		return nil
	}

	bad := 0
	for _, r := range results {
		if r.OK {
			if !quiet {
				fmt.Fprintf(w, "%s✓ version %d%s\n", colorGreen, r.Version, colorReset)
			}
			continue
		}
		bad++
		fmt.Fprintf(w, "%s✗ version %d: %v%s\n", colorYellow, r.Version, r.Err, colorReset)
	}

	if bad > 0 {
		return errors.Wrapf(store.ErrCorruptSnapshot,
			"%d of %d snapshots failed verification", bad, len(results))
	}

	if !quiet {
		fmt.Fprintf(w, "All %d snapshots verified.\n", len(results))
	}

	return nil
}
