package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/cfgsnap/internal/payload"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithRoot(t.TempDir()))
}

func TestCapture_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := []byte(`{"a":1}`)
	snap, err := s.Capture("app", want)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "app", snap.Identity)
	assert.NotEmpty(t, snap.SHA256)
	assert.Equal(t, int64(len(want)), snap.Size)

	got, err := s.Resolve("app", Latest())
	require.NoError(t, err)
	assert.Equal(t, want, got.Payload)
	assert.Equal(t, snap.SHA256, got.SHA256)
}

func TestCapture_VersionsAreDense(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 5; i++ {
		snap, err := s.Capture("app", fmt.Appendf(nil, `{"n":%d}`, i))
		require.NoError(t, err)
		assert.Equal(t, i, snap.Version, "versions must increase by exactly 1")
	}

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 5)
	for i, m := range metas {
		assert.Equal(t, i+1, m.Version)
	}
}

func TestCapture_InvalidPayload(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// No partial snapshot may be visible afterwards.
	metas, err := s.List("app")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestCapture_Formats(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte("key: value\n"), WithFormat(payload.FormatYAML))
	require.NoError(t, err)

	_, err = s.Capture("app", []byte("key = \"value\"\n"), WithFormat(payload.FormatTOML))
	require.NoError(t, err)

	_, err = s.Capture("app", []byte("key = = nope"), WithFormat(payload.FormatTOML))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCapture_NoteAndSource(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Capture("app", []byte(`{}`),
		WithNote("before enabling X"),
		WithSourcePath("/etc/myapp/config.json"))
	require.NoError(t, err)

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "before enabling X", metas[0].Note)
	assert.Equal(t, "/etc/myapp/config.json", metas[0].SourcePath)
	assert.Equal(t, snap.SHA256, metas[0].SHA256)
}

func TestCapture_ConcurrentWritersNeverShareAVersion(t *testing.T) {
	s := newTestStore(t)

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan int, writers)

	for i := range writers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Retry on conflict with a recomputed version, as a caller would.
			for {
				snap, err := s.Capture("app", fmt.Appendf(nil, `{"writer":%d}`, n))
				if errors.Is(err, ErrIdentityConflict) {
					continue
				}
				if err != nil {
					t.Errorf("capture: %v", err)
					return
				}
				results <- snap.Version
				return
			}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for v := range results {
		assert.False(t, seen[v], "version %d assigned twice", v)
		seen[v] = true
	}
	// Dense: exactly versions 1..writers.
	for v := 1; v <= writers; v++ {
		assert.True(t, seen[v], "version %d missing", v)
	}
}

func TestResolve_NoSnapshots(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Resolve("app", Latest())
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestResolve_ExactAndLatest(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)

	v1, err := s.Resolve("app", ExactVersion(1))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(v1.Payload))

	latest, err := s.Resolve("app", Latest())
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, `{"a":2}`, string(latest.Payload))
}

func TestResolve_VersionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{}`))
	require.NoError(t, err)

	_, err = s.Resolve("app", ExactVersion(7))
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestResolve_ExactVersionBelowOne(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{}`))
	require.NoError(t, err)

	// Versions start at 1; an exact selector below that must not fall
	// back to the latest snapshot.
	_, err = s.Resolve("app", ExactVersion(0))
	require.ErrorIs(t, err, ErrVersionNotFound)
	_, err = s.Resolve("app", ExactVersion(-1))
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestResolve_CorruptionIsNeverServed(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)

	// Tamper with the blob behind the store's back.
	blob := blobPath(filepath.Join(s.Root(), "app"), snap.Version)
	require.NoError(t, os.WriteFile(blob, []byte(`{"a":666}`), 0o600))

	_, err = s.Resolve("app", Latest())
	require.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestList_EmptyIdentity(t *testing.T) {
	s := newTestStore(t)

	metas, err := s.List("never-captured")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestList_SurvivesLostIndex(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":1}`), WithNote("first"))
	require.NoError(t, err)
	_, err = s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)

	dir := filepath.Join(s.Root(), "app")
	require.NoError(t, os.Remove(indexPath(dir)))

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, 1, metas[0].Version)
	assert.Equal(t, "first", metas[0].Note, "sidecar metadata survives index loss")
	assert.Equal(t, 2, metas[1].Version)
}

func TestList_SurvivesLostIndexAndSidecars(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)

	dir := filepath.Join(s.Root(), "app")
	require.NoError(t, os.Remove(indexPath(dir)))
	require.NoError(t, os.Remove(metaPath(dir, 1)))

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 1, metas[0].Version)
	assert.Equal(t, snap.SHA256, metas[0].SHA256, "checksum rederived from blob")

	// Next capture still continues the sequence.
	next, err := s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, next.Version)
}

func TestList_LostSidecarSniffsFormat(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte("key: [1, 2]\n"), WithFormat(payload.FormatYAML))
	require.NoError(t, err)
	_, err = s.Capture("app", []byte("key = \"value\"\n"), WithFormat(payload.FormatTOML))
	require.NoError(t, err)

	dir := filepath.Join(s.Root(), "app")
	require.NoError(t, os.Remove(indexPath(dir)))
	require.NoError(t, os.Remove(metaPath(dir, 1)))
	require.NoError(t, os.Remove(metaPath(dir, 2)))

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, payload.FormatYAML, metas[0].Format, "format rederived from content")
	assert.Equal(t, payload.FormatTOML, metas[1].Format, "format rederived from content")
}

func TestList_StaleIndexIgnored(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)

	// Corrupt the index; the blobs remain authoritative.
	dir := filepath.Join(s.Root(), "app")
	require.NoError(t, os.WriteFile(indexPath(dir), []byte("not json"), 0o600))

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, 2, metas[1].Version)
}

func TestVerify(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)
	snap2, err := s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)

	// Corrupt version 2 only.
	blob := blobPath(filepath.Join(s.Root(), "app"), snap2.Version)
	require.NoError(t, os.WriteFile(blob, []byte(`{"tampered":true}`), 0o600))

	results, err := s.Verify("app")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.ErrorIs(t, results[1].Err, ErrCorruptSnapshot)
}

func TestPrune_Keep(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 5; i++ {
		_, err := s.Capture("app", fmt.Appendf(nil, `{"n":%d}`, i))
		require.NoError(t, err)
	}

	removed, err := s.Prune("app", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, removed)

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, 4, metas[0].Version)
	assert.Equal(t, 5, metas[1].Version)

	// Pruned versions resolve as not found, survivors still verify.
	_, err = s.Resolve("app", ExactVersion(1))
	assert.ErrorIs(t, err, ErrVersionNotFound)
	got, err := s.Resolve("app", ExactVersion(5))
	require.NoError(t, err)
	assert.Equal(t, `{"n":5}`, string(got.Payload))
}

func TestPrune_NothingToDo(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{}`))
	require.NoError(t, err)

	removed, err := s.Prune("app", 5)
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = s.Prune("never-captured", 5)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPruneOlderThan(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)

	// Backdate version 1's sidecar so it falls past the cutoff.
	dir := filepath.Join(s.Root(), "app")
	m, err := readSidecar(dir, 1)
	require.NoError(t, err)
	m.CapturedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, writeSidecarForTest(dir, *m))
	require.NoError(t, os.Remove(indexPath(dir))) // force rebuild from sidecars

	removed, err := s.PruneOlderThan("app", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, removed)

	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 2, metas[0].Version)
}

func TestCapture_VersioningAfterPrune(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		_, err := s.Capture("app", fmt.Appendf(nil, `{"n":%d}`, i))
		require.NoError(t, err)
	}
	_, err := s.Prune("app", 1)
	require.NoError(t, err)

	// Version numbers are never reused after pruning.
	snap, err := s.Capture("app", []byte(`{"n":4}`))
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Version)
}

func TestCapture_RestartsAfterFullPrune(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		_, err := s.Capture("app", fmt.Appendf(nil, `{"n":%d}`, i))
		require.NoError(t, err)
	}
	removed, err := s.Prune("app", 0)
	require.NoError(t, err)
	require.Len(t, removed, 3)

	// With no blobs left there is no sequence to continue.
	snap, err := s.Capture("app", []byte(`{"n":4}`))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
}

func TestCapture_IdentitiesAreIsolated(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Capture("app-a", []byte(`{"a":1}`))
	require.NoError(t, err)
	b, err := s.Capture("app-b", []byte(`{"b":1}`))
	require.NoError(t, err)

	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 1, b.Version, "identities have independent sequences")
}

func TestCapture_InterruptedWriteLeavesNoArtifact(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Capture("app", []byte(`{"a":1}`))
	require.NoError(t, err)

	// Simulate a crash mid-capture: a temp file left before the link step.
	dir := filepath.Join(s.Root(), "app")
	tmp := filepath.Join(dir, ".capture-crashed.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"partial":`), 0o600))

	// The orphan is invisible to every read path.
	metas, err := s.List("app")
	require.NoError(t, err)
	require.Len(t, metas, 1)

	got, err := s.Resolve("app", Latest())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got.Payload))

	// And the sequence is unaffected.
	snap, err := s.Capture("app", []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Version)
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "latest", Latest().String())
	assert.Equal(t, "version 3", ExactVersion(3).String())
	assert.Equal(t, "version 0", ExactVersion(0).String())
}

// writeSidecarForTest overwrites a sidecar; tests use it to backdate metadata.
func writeSidecarForTest(dir string, m Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath(dir, m.Version), data, 0o600)
}
