package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/model"
)

func TestMemoryStorageAddAndGetObject(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	root := &model.CdsObject{ID: "0", UpnpClass: "object.container.storageFolder", Title: "root"}
	require.NoError(t, s.AddObject(ctx, root))

	item := &model.CdsObject{ID: "1", ParentID: "0", UpnpClass: "object.item.audioItem", Title: "track"}
	require.NoError(t, s.AddObject(ctx, item))

	got, err := s.GetObject(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "track", got.Title)
}

func TestMemoryStorageChildrenPagination(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "0", UpnpClass: "object.container.storageFolder"}))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: string(rune('a' + i)), ParentID: "0"}))
	}

	children, total, err := s.Children(ctx, "0", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, children, 2)
}

func TestMemoryStorageAddBumpsAncestorsAndSystemUpdateID(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "0", UpnpClass: "object.container.storageFolder"}))
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "1", ParentID: "0", UpnpClass: "object.container.storageFolder"}))

	before := s.SystemUpdateID(ctx)
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "2", ParentID: "1"}))
	after := s.SystemUpdateID(ctx)
	assert.Greater(t, after, before)

	root, err := s.GetContainer(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), root.UpdateID) // bumped once for child "1", once for grandchild "2"
}

func TestMemoryStorageRemoveObjectDeletesSubtree(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "0", UpnpClass: "object.container.storageFolder"}))
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "1", ParentID: "0", UpnpClass: "object.container.storageFolder"}))
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "2", ParentID: "1"}))

	require.NoError(t, s.RemoveObject(ctx, "1"))

	_, err := s.GetObject(ctx, "1")
	assert.ErrorIs(t, err, model.ErrNoSuchObject)
	_, err = s.GetObject(ctx, "2")
	assert.ErrorIs(t, err, model.ErrNoSuchObject)

	children, total, err := s.Children(ctx, "0", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, children)
}

func TestMemoryStoragePlayStatusRoundTrips(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	status := &model.ClientStatusDetail{Group: "samsung", ItemID: "42", PlayCount: 3}
	require.NoError(t, s.SavePlayStatus(ctx, status))

	got, err := s.GetPlayStatus(ctx, "samsung", "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.PlayCount)
}

func TestMemoryStorageSearchObjectsReturnsSubtree(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "0", UpnpClass: "object.container.storageFolder"}))
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "1", ParentID: "0"}))
	require.NoError(t, s.AddObject(ctx, &model.CdsObject{ID: "2", ParentID: "0"}))

	results, total, err := s.SearchObjects(ctx, "0", "", nil, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, results, 2)
}
