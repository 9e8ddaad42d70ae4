package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// AppName is the application name used in XDG directory layouts.
const AppName = "cfgsnap"

// Sentinel errors for path resolution.
var (
	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultDirPerm is the default permission for newly created directories (private).
const DefaultDirPerm = 0o700

// EnsureDir creates the directory and any necessary parents with specified permissions.
// If perm is 0, DefaultDirPerm (0700) is used.
// This function is idempotent; it returns nil if the directory already exists.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// ConfigHome returns the XDG config home directory.
// On Linux: ~/.config
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func ConfigHome() string {
	return xdg.ConfigHome
}

// DataHome returns the XDG data home directory.
// On Linux: ~/.local/share
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func DataHome() string {
	return xdg.DataHome
}

// StoreRoot returns the default root directory for the snapshot store.
// Returns: <DataHome>/cfgsnap/snapshots/
func StoreRoot() string {
	return filepath.Join(DataHome(), AppName, "snapshots")
}

// Identity derives the logical configuration identity for a live file path.
// The identity is stable across backups and restores of the same file: it is
// the cleaned absolute path flattened into a filesystem-safe slug, suffixed
// with a short content hash of the full path so distinct paths that flatten
// to the same slug stay distinct.
//
// An explicit key (e.g. from a --id flag) bypasses derivation; it is slugged
// as-is without the hash suffix so identities remain human-predictable.
func Identity(livePath string) (string, error) {
	if strings.TrimSpace(livePath) == "" {
		return "", errors.Wrap(ErrInvalidPath, "empty path")
	}
	if strings.ContainsRune(livePath, '\x00') {
		return "", errors.Wrap(ErrInvalidPath, "path contains NUL")
	}

	abs, err := filepath.Abs(filepath.Clean(livePath))
	if err != nil {
		return "", errors.Wrap(err, "resolving absolute path")
	}

	sum := sha256.Sum256([]byte(abs))
	return slugify(abs) + "-" + hex.EncodeToString(sum[:4]), nil
}

// IdentityFromKey converts an explicit identity key into a slug.
func IdentityFromKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.Wrap(ErrInvalidPath, "empty identity key")
	}
	slug := slugify(key)
	if slug == "" {
		return "", errors.Wrapf(ErrInvalidPath, "key %q has no usable characters", key)
	}
	return slug, nil
}

// slugify flattens a path or key into a single directory-name-safe component.
// Path separators, drive colons, and whitespace all become dashes.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
