package rollback

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cfgsnap/internal/payload"
	"github.com/thoreinstein/cfgsnap/internal/store"
	"github.com/thoreinstein/cfgsnap/pkg/fileutil"
)

// ErrWriteTargetUnavailable indicates the live configuration's location
// cannot be written (permissions, missing parent, read-only medium).
var ErrWriteTargetUnavailable = errors.New("write target unavailable")

// captureRetries bounds how many times Backup recomputes a version after
// losing a concurrent-capture race.
const captureRetries = 3

// LiveConfig abstracts the mutable configuration resource under active use.
// The engine only reads it (to back up) and commits to it (to restore);
// Commit must be atomic: an observer sees the old content or the new,
// never a mix.
type LiveConfig interface {
	Read() ([]byte, error)
	Commit(data []byte) error
}

// File is the filesystem-backed LiveConfig.
type File struct {
	Path string
}

// NewFile returns a LiveConfig for a configuration file on disk.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Read returns the file's current content.
func (f *File) Read() ([]byte, error) {
	return fileutil.ReadFileWithLimit(f.Path)
}

// Commit atomically replaces the file's content, preserving its permission
// bits when it already exists.
func (f *File) Commit(data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(f.Path); err == nil {
		perm = info.Mode().Perm()
	}
	return fileutil.AtomicWriteFile(f.Path, data, perm)
}

// Engine orchestrates backup and restore between a LiveConfig and the
// snapshot store.
type Engine struct {
	store *store.Store
}

// New creates an Engine over the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Backup reads the current live configuration and records it as a new
// snapshot. This is the sole write path into the store from outside.
//
// A lost version race (store.ErrIdentityConflict) is retried with a freshly
// recomputed version a bounded number of times, per the store's contract.
func (e *Engine) Backup(identity string, live LiveConfig, opts ...store.CaptureOption) (*store.Snapshot, error) {
	data, err := live.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading live config")
	}

	var snap *store.Snapshot
	for attempt := 0; ; attempt++ {
		snap, err = e.store.Capture(identity, data, opts...)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, store.ErrIdentityConflict) || attempt >= captureRetries {
			return nil, err
		}
	}
}

// RestoreResult reports exactly which snapshot is now live.
type RestoreResult struct {
	// Version is the applied snapshot's sequence number.
	Version int

	// SHA256 is the applied snapshot's checksum.
	SHA256 string

	// PreRestoreVersion is the version of the safety snapshot taken of the
	// live content before it was replaced, or 0 when none was taken.
	PreRestoreVersion int
}

// RestoreOption configures a single Restore call.
type RestoreOption func(*restoreParams)

type restoreParams struct {
	preCapture bool
}

// WithPreRestoreCapture makes Restore snapshot the current live content
// before replacing it, so the overwritten state is itself recoverable.
func WithPreRestoreCapture() RestoreOption {
	return func(p *restoreParams) {
		p.preCapture = true
	}
}

// Restore resolves the selected snapshot and replaces the live configuration
// with it. Resolution errors (store.ErrNoSnapshots, store.ErrVersionNotFound,
// store.ErrCorruptSnapshot) propagate unchanged. The payload is re-validated
// before the write as a defense against store bugs or external tampering.
//
// The replacement is all-or-nothing: any interruption leaves the previous
// live content intact and valid.
func (e *Engine) Restore(identity string, sel store.Selector, live LiveConfig, opts ...RestoreOption) (*RestoreResult, error) {
	var params restoreParams
	for _, opt := range opts {
		opt(&params)
	}

	snap, err := e.store.Resolve(identity, sel)
	if err != nil {
		return nil, err
	}

	if err := payload.Validate(snap.Payload, snap.Format); err != nil {
		return nil, errors.Wrapf(store.ErrCorruptSnapshot, "version %d failed re-validation: %v", snap.Version, err)
	}

	result := &RestoreResult{Version: snap.Version, SHA256: snap.SHA256}

	if params.preCapture {
		pre, err := e.preRestoreCapture(identity, snap, live)
		if err != nil {
			return nil, err
		}
		if pre != nil {
			result.PreRestoreVersion = pre.Version
		}
	}

	if err := live.Commit(snap.Payload); err != nil {
		return nil, errors.Wrapf(ErrWriteTargetUnavailable, "%v", err)
	}

	return result, nil
}

// preRestoreCapture snapshots the current live content so a restore can be
// undone. A missing live resource is not an error (there is nothing to
// protect); any other failure aborts the restore before the live config is
// touched.
func (e *Engine) preRestoreCapture(identity string, target *store.Snapshot, live LiveConfig) (*store.Snapshot, error) {
	cur, err := live.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading live config for pre-restore snapshot")
	}

	for attempt := 0; ; attempt++ {
		snap, err := e.store.Capture(identity, cur,
			store.WithFormat(target.Format),
			store.WithNote(fmt.Sprintf("pre-restore of version %d", target.Version)))
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, store.ErrIdentityConflict) || attempt >= captureRetries {
			return nil, errors.Wrap(err, "pre-restore snapshot")
		}
	}
}
