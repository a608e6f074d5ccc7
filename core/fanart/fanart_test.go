package fanart

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/model"
)

func writeImage(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake-image"), 0o644))
}

func TestResolverPrefersEmbeddedWhenAvailable(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "cover.jpg")

	r := NewResolver("embedded,cover,any", func(ctx context.Context, mediaPath string) (io.ReadCloser, error) {
		return io.NopCloser(nil), nil
	})
	obj := &model.CdsObject{ID: "1", Location: filepath.Join(dir, "track.mp3")}

	rc, err := r.Resolve(context.Background(), obj, dir)
	require.NoError(t, err)
	assert.NotNil(t, rc)
}

func TestResolverFallsBackToNamedFile(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "folder.jpg")

	r := NewResolver("embedded,folder,any", func(ctx context.Context, mediaPath string) (io.ReadCloser, error) {
		return nil, nil
	})
	obj := &model.CdsObject{ID: "1", Location: filepath.Join(dir, "track.mp3")}

	rc, err := r.Resolve(context.Background(), obj, dir)
	require.NoError(t, err)
	rc.Close()
}

func TestResolverFallsBackToAnyImage(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "weird-name.png")

	r := NewResolver("embedded,cover,any", nil)
	obj := &model.CdsObject{ID: "1"}

	rc, err := r.Resolve(context.Background(), obj, dir)
	require.NoError(t, err)
	rc.Close()
}

func TestResolverReturnsErrorWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver("embedded,cover,any", nil)
	obj := &model.CdsObject{ID: "1"}

	_, err := r.Resolve(context.Background(), obj, dir)
	assert.Error(t, err)
}

func TestCompareImageFilesPrefersPlainCoverOverNumbered(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "cover.1.jpg")
	writeImage(t, dir, "cover.jpg")

	files := findImageFiles(dir)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "cover.jpg"), files[0])
}

func TestCacheKeyIsStablePerObjectAndPriority(t *testing.T) {
	obj := &model.CdsObject{ID: "abc"}
	k1 := CacheKey(obj, "embedded,any")
	k2 := CacheKey(obj, "embedded,any")
	k3 := CacheKey(obj, "cover,any")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
