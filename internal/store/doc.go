// Package store implements the versioned snapshot repository for cfgsnap.
//
// Each configuration identity owns one directory under the store root:
//
//	<root>/<identity>/
//	├── 000001.snap       - immutable payload blob for version 1
//	├── 000001.meta.json  - sidecar metadata (timestamp, checksum, note)
//	├── 000002.snap
//	├── 000002.meta.json
//	└── index.json        - catalog cache, rebuilt from blobs when stale
//
// # Versioning
//
// Versions are a dense sequence starting at 1. The next version is always
// derived by scanning the blobs on disk (max + 1), never read from a stored
// counter that could drift. The blob file name carries the version, so
// ordering is recoverable without reading payloads, and full metadata can be
// reconstructed from blobs and sidecars even if index.json is lost.
//
// # Write discipline
//
// Every payload write goes through a temp file in the identity directory,
// is synced, and is committed with an atomic link to the final name. The
// link doubles as the concurrency control: it fails if the version name
// exists, so two processes capturing concurrently can never both claim the
// same sequence number; the loser gets [ErrIdentityConflict] and retries
// with a freshly computed version. No in-process locks are needed.
//
// # Integrity
//
// Payloads are validated as structured data before anything is written, and
// checksums are re-verified on every [Store.Resolve]. A mismatch surfaces as
// [ErrCorruptSnapshot]; the store never masks or repairs corruption, so the
// operator can pick an older version explicitly.
package store
