package store

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cfgsnap/internal/payload"
)

// Index format version for forward compatibility.
const IndexVersion = 1

// Sentinel errors for snapshot store operations.
var (
	// ErrInvalidPayload indicates the payload did not parse as structured data.
	// No snapshot is created when this is returned.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStorageUnavailable indicates the underlying medium rejected the
	// operation (permissions, disk full, missing volume).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIdentityConflict indicates a concurrent writer claimed the same
	// version sequence number. The caller should recompute and retry.
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrNoSnapshots indicates the identity has no snapshots at all.
	ErrNoSnapshots = errors.New("no snapshots")

	// ErrVersionNotFound indicates the requested version does not exist.
	ErrVersionNotFound = errors.New("version not found")

	// ErrCorruptSnapshot indicates a snapshot's payload no longer matches
	// its recorded checksum. Corruption is surfaced, never repaired.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// Metadata describes a snapshot without its payload bytes.
// It is stored as a sidecar JSON file next to each payload blob, and
// aggregated into the per-identity index.
type Metadata struct {
	// Version is the monotonically increasing sequence number, starting at 1.
	Version int `json:"version"`

	// CapturedAt is when the snapshot was taken (UTC).
	CapturedAt time.Time `json:"captured_at"`

	// SHA256 is the hex-encoded checksum of the payload bytes.
	SHA256 string `json:"sha256"`

	// Size is the payload length in bytes.
	Size int64 `json:"size"`

	// Format is the structured-data format the payload was validated as.
	Format payload.Format `json:"format"`

	// SourcePath is the live file the payload was read from, when known.
	SourcePath string `json:"source_path,omitempty"`

	// Note is an optional operator-supplied annotation.
	Note string `json:"note,omitempty"`
}

// Snapshot is an immutable, checksummed copy of a configuration payload.
// Once written its payload and checksum never change; it is addressed
// uniquely by (identity, version).
type Snapshot struct {
	// Identity is the logical configuration name the snapshot belongs to.
	Identity string

	Metadata

	// Payload is the serialized configuration bytes.
	Payload []byte
}

// Selector picks a snapshot version for an identity.
// The zero value selects the latest version.
type Selector struct {
	exact   bool
	version int
}

// Latest selects the snapshot with the highest version number.
func Latest() Selector {
	return Selector{}
}

// ExactVersion selects a specific version. Versions start at 1, so
// resolving an exact version below that fails with [ErrVersionNotFound]
// rather than falling back to the latest.
func ExactVersion(n int) Selector {
	return Selector{exact: true, version: n}
}

// IsLatest reports whether the selector targets the latest version.
func (s Selector) IsLatest() bool {
	return !s.exact
}

// Version returns the exact version targeted, or 0 for latest.
func (s Selector) Version() int {
	return s.version
}

func (s Selector) String() string {
	if s.IsLatest() {
		return "latest"
	}
	return fmt.Sprintf("version %d", s.version)
}

// VerifyResult reports the integrity of one stored snapshot.
type VerifyResult struct {
	Version int
	OK      bool
	// Err explains the failure when OK is false.
	Err error
}
