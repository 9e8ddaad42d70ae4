package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cfgsnap/internal/paths"
	"github.com/thoreinstein/cfgsnap/internal/payload"
	"github.com/thoreinstein/cfgsnap/pkg/fileutil"
)

const (
	blobSuffix = ".snap"
	metaSuffix = ".meta.json"
	indexName  = "index.json"
)

// Store owns the on-disk repository of versioned snapshots, one directory
// per configuration identity.
type Store struct {
	root string
}

// Option configures a Store.
type Option func(*Store)

// WithRoot sets the root snapshot directory.
func WithRoot(dir string) Option {
	return func(s *Store) {
		s.root = dir
	}
}

// New creates a Store with the given options.
// The root defaults to the XDG data directory for cfgsnap.
func New(opts ...Option) *Store {
	s := &Store{
		root: paths.StoreRoot(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// CaptureOption configures a single Capture call.
type CaptureOption func(*captureParams)

type captureParams struct {
	format     payload.Format
	note       string
	sourcePath string
}

// WithFormat sets the structured-data format the payload is validated as.
// Defaults to JSON.
func WithFormat(f payload.Format) CaptureOption {
	return func(p *captureParams) {
		p.format = f
	}
}

// WithNote attaches an operator-supplied annotation to the snapshot.
func WithNote(note string) CaptureOption {
	return func(p *captureParams) {
		p.note = note
	}
}

// WithSourcePath records the live file the payload was read from.
func WithSourcePath(path string) CaptureOption {
	return func(p *captureParams) {
		p.sourcePath = path
	}
}

// Capture validates and durably records a new snapshot for the identity,
// assigning the next version sequence number (current max + 1, starting at 1).
//
// The payload is written to a scoped temp file, synced, then committed by
// linking it to its final version-numbered name. The link is an atomic
// create-if-absent, so a concurrent writer racing for the same version loses
// with ErrIdentityConflict, and a crash mid-write never exposes a truncated
// blob under a version name. The sidecar metadata and index are written only
// after the payload commit: a crash between them at worst loses the newest
// snapshot's annotations, never the index's integrity.
func (s *Store) Capture(identity string, data []byte, opts ...CaptureOption) (*Snapshot, error) {
	if identity == "" {
		return nil, errors.New("identity is required")
	}

	params := captureParams{format: payload.FormatJSON}
	for _, opt := range opts {
		opt(&params)
	}

	if err := payload.Validate(data, params.format); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}

	dir := s.identityDir(identity)
	if err := paths.EnsureDir(dir, 0); err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "creating identity directory: %v", err)
	}

	versions, err := scanVersions(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "scanning versions: %v", err)
	}
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1] + 1
	}

	sum := sha256.Sum256(data)
	meta := Metadata{
		Version:    next,
		CapturedAt: time.Now().UTC(),
		SHA256:     hex.EncodeToString(sum[:]),
		Size:       int64(len(data)),
		Format:     params.format,
		SourcePath: params.sourcePath,
		Note:       params.note,
	}

	if err := s.commitBlob(dir, next, data); err != nil {
		return nil, err
	}

	// Payload is durable from here on. Sidecar and index are derived data.
	if err := fileutil.AtomicWriteJSON(metaPath(dir, next), meta); err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "writing snapshot metadata: %v", err)
	}

	if err := s.rewriteIndex(dir); err != nil {
		return nil, err
	}

	return &Snapshot{Identity: identity, Metadata: meta, Payload: data}, nil
}

// commitBlob writes data to a temp file in dir, syncs it, and atomically
// links it to the final version-numbered blob name.
func (s *Store) commitBlob(dir string, version int, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".capture-*.tmp")
	if err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "creating temp file: %v", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(ErrStorageUnavailable, "writing payload: %v", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrapf(ErrStorageUnavailable, "setting payload permissions: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(ErrStorageUnavailable, "syncing payload: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "closing payload: %v", err)
	}

	// Link is the check-and-reserve step: it fails if the version name
	// already exists, so two writers can never both claim the same version.
	if err := os.Link(tmpName, blobPath(dir, version)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errors.Wrapf(ErrIdentityConflict, "version %d already claimed", version)
		}
		return errors.Wrapf(ErrStorageUnavailable, "committing payload: %v", err)
	}

	return nil
}

// Resolve returns the snapshot the selector targets, with its payload.
// It re-verifies the payload checksum against the stored one and fails with
// ErrCorruptSnapshot on mismatch; corruption is never silently served.
// Resolve is read-only.
func (s *Store) Resolve(identity string, sel Selector) (*Snapshot, error) {
	if identity == "" {
		return nil, errors.New("identity is required")
	}

	metas, err := s.List(identity)
	if err != nil {
		return nil, err
	}

	var meta *Metadata
	switch {
	case sel.IsLatest():
		if len(metas) == 0 {
			return nil, errors.Wrapf(ErrNoSnapshots, "identity %s", identity)
		}
		meta = &metas[len(metas)-1]
	default:
		for i := range metas {
			if metas[i].Version == sel.Version() {
				meta = &metas[i]
				break
			}
		}
		if meta == nil {
			return nil, errors.Wrapf(ErrVersionNotFound, "identity %s version %d", identity, sel.Version())
		}
	}

	dir := s.identityDir(identity)
	data, err := fileutil.ReadFileWithLimit(blobPath(dir, meta.Version))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "version %d payload missing", meta.Version)
		}
		return nil, errors.Wrapf(ErrStorageUnavailable, "reading payload: %v", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != meta.SHA256 {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "version %d checksum mismatch", meta.Version)
	}

	return &Snapshot{Identity: identity, Metadata: *meta, Payload: data}, nil
}

// List returns snapshot metadata for the identity, ordered by version
// ascending. Payload blobs are never read, so listing stays cheap regardless
// of payload size. An identity with no snapshots yields an empty slice.
func (s *Store) List(identity string) ([]Metadata, error) {
	if identity == "" {
		return nil, errors.New("identity is required")
	}

	dir := s.identityDir(identity)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(ErrStorageUnavailable, "stat identity directory: %v", err)
	}

	return s.loadIndex(dir)
}

// Verify recomputes the checksum of every stored snapshot for the identity
// and reports one result per version. It never modifies the store.
func (s *Store) Verify(identity string) ([]VerifyResult, error) {
	metas, err := s.List(identity)
	if err != nil {
		return nil, err
	}

	dir := s.identityDir(identity)
	results := make([]VerifyResult, 0, len(metas))

	for _, m := range metas {
		r := VerifyResult{Version: m.Version}
		data, err := fileutil.ReadFileWithLimit(blobPath(dir, m.Version))
		if err != nil {
			r.Err = errors.Wrapf(ErrCorruptSnapshot, "version %d: %v", m.Version, err)
		} else {
			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) == m.SHA256 {
				r.OK = true
			} else {
				r.Err = errors.Wrapf(ErrCorruptSnapshot, "version %d checksum mismatch", m.Version)
			}
		}
		results = append(results, r)
	}

	return results, nil
}

// Prune removes the oldest snapshots beyond the retention count, keeping the
// most recent keep versions. It returns the removed version numbers.
func (s *Store) Prune(identity string, keep int) ([]int, error) {
	if keep < 0 {
		return nil, errors.New("keep must be non-negative")
	}

	metas, err := s.List(identity)
	if err != nil {
		return nil, err
	}
	if len(metas) <= keep {
		return nil, nil
	}

	return s.remove(identity, metas[:len(metas)-keep])
}

// PruneOlderThan removes snapshots captured before the cutoff age.
// It returns the removed version numbers.
func (s *Store) PruneOlderThan(identity string, age time.Duration) ([]int, error) {
	if age <= 0 {
		return nil, errors.New("age must be positive")
	}

	metas, err := s.List(identity)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-age)
	var victims []Metadata
	for _, m := range metas {
		if m.CapturedAt.Before(cutoff) {
			victims = append(victims, m)
		}
	}

	return s.remove(identity, victims)
}

func (s *Store) remove(identity string, victims []Metadata) ([]int, error) {
	dir := s.identityDir(identity)
	removed := make([]int, 0, len(victims))

	for _, m := range victims {
		if err := os.Remove(blobPath(dir, m.Version)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, errors.Wrapf(ErrStorageUnavailable, "removing version %d: %v", m.Version, err)
		}
		if err := os.Remove(metaPath(dir, m.Version)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, errors.Wrapf(ErrStorageUnavailable, "removing version %d metadata: %v", m.Version, err)
		}
		removed = append(removed, m.Version)
	}

	if len(removed) > 0 {
		if err := s.rewriteIndex(dir); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

func (s *Store) identityDir(identity string) string {
	return filepath.Join(s.root, identity)
}

func blobPath(dir string, version int) string {
	return filepath.Join(dir, fmt.Sprintf("%06d%s", version, blobSuffix))
}

func metaPath(dir string, version int) string {
	return filepath.Join(dir, fmt.Sprintf("%06d%s", version, metaSuffix))
}

// versionFromBlobName parses the version sequence number out of a blob file
// name, returning 0 for names that are not version blobs.
func versionFromBlobName(name string) int {
	if !strings.HasSuffix(name, blobSuffix) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSuffix(name, blobSuffix))
	if err != nil || v < 1 {
		return 0
	}
	return v
}
