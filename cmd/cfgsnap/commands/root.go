// Package commands implements the CLI commands for cfgsnap.
package commands

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgsnap/cmd"
	"github.com/thoreinstein/cfgsnap/internal/config"
	cliErrors "github.com/thoreinstein/cfgsnap/internal/errors"
	"github.com/thoreinstein/cfgsnap/internal/logging"
)

// storageFlag holds the value of the --storage flag.
var storageFlag string

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// cfg holds the loaded configuration; configLoadErr any error from loading it.
var (
	cfg           *config.Config
	configLoadErr error
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&storageFlag, "storage", "s", "",
		"snapshot storage directory (default: XDG data dir)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("cfgsnap version {{.Version}}\n")

	// Silence errors and usage so main controls error output and exit codes.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func initConfig() {
	config.Init()
	cfg, configLoadErr = config.Load("")
}

var rootCmd = &cobra.Command{
	Use:   "cfgsnap",
	Short: "Snapshot and roll back configuration files",
	Long: `cfgsnap preserves known-good snapshots of configuration files and
restores them on demand, so a failed or unwanted change to a live
configuration can be undone deterministically.

Each configuration file gets its own versioned history: every backup is
validated as structured data (JSON, YAML, or TOML), checksummed, and
written atomically. Restores verify integrity before touching the live
file and replace it in a single atomic step.`,
	Example: `  # Snapshot a config before changing it
  cfgsnap backup /etc/myapp/config.json --note "before enabling X"

  # See the history
  cfgsnap list /etc/myapp/config.json

  # Roll back to the most recent snapshot
  cfgsnap restore /etc/myapp/config.json

  # Roll back to a specific version
  cfgsnap restore /etc/myapp/config.json --version 3`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}
		return checkConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return cliErrors.NewUserError(nil, "cannot use --quiet and --verbose together")
	}

	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		v := verbosity

		// CLI flags take precedence, but if not set, check env var
		if v == 0 {
			if val, ok := os.LookupEnv("CFGSNAP_DEBUG"); ok {
				switch val {
				case "1", "true":
					v = 2
				}
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var primaryHandler slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	handlers := []slog.Handler{primaryHandler}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return cliErrors.NewUserError(err, "failed to open log file")
		}
		// File output uses JSON format
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: level,
		}))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	slog.SetDefault(slog.New(handler))

	return nil
}

// checkConfig surfaces config load and validation problems before any
// command runs.
func checkConfig(cmd *cobra.Command) error {
	if cmd.Name() == "help" || cmd.Name() == "version" {
		return nil
	}

	if configLoadErr != nil {
		return cliErrors.NewUserError(configLoadErr, "check ~/.config/cfgsnap/config.yaml")
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		return cliErrors.NewUserError(errs[0], "check ~/.config/cfgsnap/config.yaml")
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "executing root command")
}
