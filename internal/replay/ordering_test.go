package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/feed"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func frameAt(path string, hour int) Frame {
	return Frame{Path: path, Snapshot: feed.Snapshot{At: t0.Add(time.Duration(hour) * time.Hour)}}
}

func writeSnapshot(t *testing.T, dir, name string, snap feed.Snapshot) {
	t.Helper()
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
}

func TestSortFrames_ByTimeThenPath(t *testing.T) {
	frames := []Frame{frameAt("c", 2), frameAt("b", 1), frameAt("a", 1), frameAt("d", 0)}
	SortFrames(frames)

	var got []string
	for _, f := range frames {
		got = append(got, f.Path)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, got)
}

func TestValidateOrdering(t *testing.T) {
	assert.NoError(t, ValidateOrdering([]Frame{frameAt("a", 0), frameAt("b", 1)}))
	assert.ErrorIs(t, ValidateOrdering([]Frame{frameAt("a", 1), frameAt("b", 0)}), ErrInvalidOrdering)
	assert.ErrorIs(t, ValidateOrdering([]Frame{frameAt("a", 1), frameAt("b", 1)}), ErrInvalidOrdering)
}

func TestLoadDir_SortsBySnapshotTime(t *testing.T) {
	dir := t.TempDir()
	// File names deliberately disagree with snapshot times.
	writeSnapshot(t, dir, "a.json", feed.Snapshot{At: t0.Add(2 * time.Hour)})
	writeSnapshot(t, dir, "b.json", feed.Snapshot{At: t0})
	writeSnapshot(t, dir, "c.json", feed.Snapshot{At: t0.Add(time.Hour)})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	frames, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "b.json", filepath.Base(frames[0].Path))
	assert.Equal(t, "c.json", filepath.Base(frames[1].Path))
	assert.Equal(t, "a.json", filepath.Base(frames[2].Path))
}

func TestLoadDir_Rejects(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyReplay)

	dup := t.TempDir()
	writeSnapshot(t, dup, "a.json", feed.Snapshot{At: t0})
	writeSnapshot(t, dup, "b.json", feed.Snapshot{At: t0})
	_, err = LoadDir(dup)
	assert.ErrorIs(t, err, ErrInvalidOrdering)

	untimed := t.TempDir()
	writeSnapshot(t, untimed, "a.json", feed.Snapshot{})
	_, err = LoadDir(untimed)
	assert.Error(t, err)

	bad := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bad, "a.json"), []byte("{"), 0o644))
	_, err = LoadDir(bad)
	assert.Error(t, err)
}
