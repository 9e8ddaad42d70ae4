package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cfgsnap/internal/payload"
	"github.com/thoreinstein/cfgsnap/pkg/fileutil"
)

// snapshotIndex is the persisted per-identity catalog, stored as index.json.
// It is a cache: the version blobs are the source of truth, and the index is
// rebuilt from them whenever it is missing, unreadable, or out of step.
type snapshotIndex struct {
	Version   int        `json:"version"`
	Snapshots []Metadata `json:"snapshots"`
}

// scanVersions returns the version numbers present in dir, ascending,
// derived purely from blob file names.
func scanVersions(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var versions []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v := versionFromBlobName(e.Name()); v > 0 {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// loadIndex returns the identity's metadata, version ascending.
// The cached index is trusted only when its version set matches the blobs
// actually on disk; otherwise the catalog is rebuilt in memory from the
// blobs and their sidecars. Loading never writes, so List and Resolve stay
// read-only.
func (s *Store) loadIndex(dir string) ([]Metadata, error) {
	versions, err := scanVersions(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "scanning versions: %v", err)
	}
	if len(versions) == 0 {
		return nil, nil
	}

	if metas, ok := readIndexFile(dir, versions); ok {
		return metas, nil
	}

	return rebuildMetadata(dir, versions)
}

// readIndexFile reads index.json and reports whether it is usable: parseable,
// sorted consistently, and covering exactly the versions present on disk.
func readIndexFile(dir string, versions []int) ([]Metadata, bool) {
	data, err := os.ReadFile(indexPath(dir))
	if err != nil {
		return nil, false
	}

	var idx snapshotIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, false
	}

	slices.SortFunc(idx.Snapshots, func(a, b Metadata) int {
		return a.Version - b.Version
	})

	indexed := make([]int, len(idx.Snapshots))
	for i, m := range idx.Snapshots {
		indexed[i] = m.Version
	}
	if !slices.Equal(indexed, versions) {
		return nil, false
	}

	return idx.Snapshots, true
}

// rebuildMetadata reconstructs the catalog by scanning blobs. Sidecar
// metadata is preferred; a blob whose sidecar is missing or unreadable gets
// derived metadata (recomputed checksum, file size and mtime) so a lost
// index or sidecar never strands a snapshot.
func rebuildMetadata(dir string, versions []int) ([]Metadata, error) {
	metas := make([]Metadata, 0, len(versions))

	for _, v := range versions {
		if m, err := readSidecar(dir, v); err == nil && m.Version == v {
			metas = append(metas, *m)
			continue
		}

		m, err := deriveMetadata(dir, v)
		if err != nil {
			return nil, err
		}
		metas = append(metas, *m)
	}

	return metas, nil
}

func readSidecar(dir string, version int) (*Metadata, error) {
	data, err := os.ReadFile(metaPath(dir, version))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// deriveMetadata reconstructs a version's metadata from the blob alone.
// The recorded format is gone with the sidecar, so it is sniffed from the
// payload content; a wrong guess here would make Restore's re-validation
// reject an intact snapshot.
func deriveMetadata(dir string, version int) (*Metadata, error) {
	path := blobPath(dir, version)

	data, err := fileutil.ReadFileWithLimit(path)
	if err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "reading version %d payload: %v", version, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "stat version %d payload: %v", version, err)
	}

	sum := sha256.Sum256(data)
	return &Metadata{
		Version:    version,
		CapturedAt: info.ModTime().UTC(),
		SHA256:     hex.EncodeToString(sum[:]),
		Size:       int64(len(data)),
		Format:     payload.SniffFormat(data),
	}, nil
}

// rewriteIndex regenerates index.json from the blobs currently on disk.
// Called after every mutation; a full regeneration rather than an append so
// concurrent captures converge on a catalog matching the blobs.
func (s *Store) rewriteIndex(dir string) error {
	versions, err := scanVersions(dir)
	if err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "scanning versions: %v", err)
	}

	metas, err := rebuildMetadata(dir, versions)
	if err != nil {
		return err
	}

	idx := snapshotIndex{Version: IndexVersion, Snapshots: metas}
	if err := fileutil.AtomicWriteJSON(indexPath(dir), idx); err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "writing index: %v", err)
	}
	return nil
}

func indexPath(dir string) string {
	return filepath.Join(dir, indexName)
}
