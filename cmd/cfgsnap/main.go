// Package main is the entry point for the cfgsnap CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/thoreinstein/cfgsnap/cmd/cfgsnap/commands"
	cliErrors "github.com/thoreinstein/cfgsnap/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var exitErr *cliErrors.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Suggestion != "" {
				fmt.Fprintf(os.Stderr, "Suggestion: %s\n", exitErr.Suggestion)
			}
			os.Exit(exitErr.Code)
		}

		os.Exit(cliErrors.CodeFor(err))
	}
}
