package commands

import (
	"path/filepath"
	"strings"

	"github.com/thoreinstein/cfgsnap/internal/paths"
	"github.com/thoreinstein/cfgsnap/internal/payload"
	"github.com/thoreinstein/cfgsnap/internal/rollback"
	"github.com/thoreinstein/cfgsnap/internal/store"
)

// Color constants for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// newStore builds the snapshot store from flags and config, in that
// order of precedence.
func newStore() *store.Store {
	root := storageFlag
	if root == "" && cfg != nil {
		root = cfg.ResolveStorageDir()
	}
	if root == "" {
		return store.New()
	}
	return store.New(store.WithRoot(root))
}

// newEngine builds the rollback engine over the configured store.
func newEngine() *rollback.Engine {
	return rollback.New(newStore())
}

// resolveIdentity derives the snapshot identity for a live file path,
// or slugs the explicit --id key when one was given.
func resolveIdentity(livePath, idFlag string) (string, error) {
	if idFlag != "" {
		return paths.IdentityFromKey(idFlag)
	}
	return paths.Identity(livePath)
}

// resolveFormat picks the payload format: an explicit --format flag wins,
// then a recognized file extension, then the configured default.
func resolveFormat(livePath, formatFlag string) (payload.Format, error) {
	if formatFlag != "" {
		return payload.ParseFormat(formatFlag)
	}
	switch strings.ToLower(filepath.Ext(livePath)) {
	case ".json", ".yaml", ".yml", ".toml":
		return payload.DetectFormat(livePath), nil
	}
	if cfg != nil && cfg.DefaultFormat != "" {
		return payload.ParseFormat(cfg.DefaultFormat)
	}
	return payload.FormatJSON, nil
}
