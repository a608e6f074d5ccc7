package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/model"
)

type fakeStorage struct {
	objects map[string]*model.CdsObject
}

func (s *fakeStorage) GetObject(_ context.Context, id string) (*model.CdsObject, error) {
	obj, ok := s.objects[id]
	if !ok {
		return nil, model.ErrNoSuchObject
	}
	return obj, nil
}
func (s *fakeStorage) GetContainer(context.Context, string) (*model.CdsContainer, error) { return nil, nil }
func (s *fakeStorage) Children(context.Context, string, int, int) ([]*model.CdsObject, int, error) {
	return nil, 0, nil
}
func (s *fakeStorage) AddObject(context.Context, *model.CdsObject) error    { return nil }
func (s *fakeStorage) UpdateObject(context.Context, *model.CdsObject) error { return nil }
func (s *fakeStorage) RemoveObject(context.Context, string) error          { return nil }
func (s *fakeStorage) SystemUpdateID(context.Context) uint32               { return 0 }
func (s *fakeStorage) SavePlayStatus(context.Context, *model.ClientStatusDetail) error { return nil }
func (s *fakeStorage) GetPlayStatus(context.Context, string, string) (*model.ClientStatusDetail, error) {
	return nil, nil
}
func (s *fakeStorage) SearchObjects(context.Context, string, string, []any, string, int, int) ([]*model.CdsObject, int, error) {
	return nil, 0, nil
}

func newFakeStorage() *fakeStorage {
	obj := &model.CdsObject{
		ID:        "42",
		ParentID:  "0",
		UpnpClass: "object.item.audioItem.musicTrack",
		Title:     "Song",
		AuxData:   map[string]string{"mimeType": "audio/mpeg"},
	}
	obj.Resources = append(obj.Resources, model.NewResource(model.HandlerDefault, model.PurposeContent, 0))
	obj.Resources[0].Attributes[model.AttrSize] = "12345"
	return &fakeStorage{objects: map[string]*model.CdsObject{"42": obj}}
}

func TestDispatcherGetInfoPrimaryResource(t *testing.T) {
	d := &Dispatcher{Storage: newFakeStorage()}
	info, err := d.GetInfo(context.Background(), ResourceKey{ObjectID: "42"}, clients.New(nil), "")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), info.Length)
	assert.Equal(t, "audio/mpeg", info.ContentType)
	assert.Equal(t, "Streaming", info.Headers.Get("TRANSFERMODE.DLNA.ORG"))
}

func TestDispatcherGetInfoTranscodedIsChunked(t *testing.T) {
	d := &Dispatcher{Storage: newFakeStorage()}
	info, err := d.GetInfo(context.Background(), ResourceKey{ObjectID: "42", ProfileName: "to-wav"}, clients.New(nil), "")
	require.NoError(t, err)
	assert.Equal(t, ChunkedLength, info.Length)
}

func TestDispatcherGetInfoUnknownObject(t *testing.T) {
	d := &Dispatcher{Storage: newFakeStorage()}
	_, err := d.GetInfo(context.Background(), ResourceKey{ObjectID: "999"}, clients.New(nil), "")
	assert.ErrorIs(t, err, model.ErrNoSuchObject)
}

func TestDispatcherGetInfoAddsSamsungCaptionHeader(t *testing.T) {
	profile := &model.ClientProfile{Flags: model.QuirkSamsung, IsAllowedFlag: true, ResourcePurposes: []model.ResourcePurpose{model.PurposeContent, model.PurposeSubtitle}}
	d := &Dispatcher{Storage: newFakeStorage()}
	info, err := d.GetInfo(context.Background(), ResourceKey{ObjectID: "42"}, clients.New(profile), "/content/media/object_id/43")
	require.NoError(t, err)
	assert.Equal(t, "/content/media/object_id/43", info.Headers.Get("CaptionInfo.sec"))
}
