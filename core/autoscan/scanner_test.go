package autoscan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/model"
)

func newTestState(t *testing.T, root string) *directoryState {
	t.Helper()
	dir := model.NewAutoscanDirectory(root, model.ScanTimed)
	dir.Recursive = true
	dir.ObjectID = "root-0"
	return &directoryState{dir: dir, tweaks: NewTweakResolver(nil)}
}

func TestWalkAndDiffFindsNewFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.mp3"), []byte("y"), 0o644))

	st := newTestState(t, root)
	diff, err := walkAndDiff(st)
	require.NoError(t, err)
	assert.Len(t, diff.added, 2)
	assert.Empty(t, diff.updated)
	assert.Empty(t, diff.removed)
}

func TestWalkAndDiffDetectsUpdate(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	st := newTestState(t, root)
	_, err := walkAndDiff(st)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	diff, err := walkAndDiff(st)
	require.NoError(t, err)
	assert.Empty(t, diff.added)
	require.Len(t, diff.updated, 1)
	assert.Equal(t, path, diff.updated[0].Location)
}

func TestWalkAndDiffDetectsRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	st := newTestState(t, root)
	_, err := walkAndDiff(st)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	diff, err := walkAndDiff(st)
	require.NoError(t, err)
	assert.Empty(t, diff.added)
	assert.Empty(t, diff.updated)
	require.Len(t, diff.removed, 1)
}

func TestWalkAndDiffSkipsHiddenFilesByDefault(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible"), []byte("x"), 0o644))

	st := newTestState(t, root)
	diff, err := walkAndDiff(st)
	require.NoError(t, err)
	require.Len(t, diff.added, 1)
	assert.Equal(t, filepath.Join(root, "visible"), diff.added[0].Location)
}

func TestWalkAndDiffIncludesHiddenWhenConfigured(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))

	st := newTestState(t, root)
	st.dir.Hidden = true
	diff, err := walkAndDiff(st)
	require.NoError(t, err)
	require.Len(t, diff.added, 1)
}

func TestWalkAndDiffSkipsNestedDirsWhenNotRecursive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "a.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.mp3"), []byte("x"), 0o644))

	st := newTestState(t, root)
	st.dir.Recursive = false
	diff, err := walkAndDiff(st)
	require.NoError(t, err)
	require.Len(t, diff.added, 1)
	assert.Equal(t, filepath.Join(root, "top.mp3"), diff.added[0].Location)
}
