package autoscan

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/model"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]*model.CdsObject
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]*model.CdsObject{}}
}

func (f *fakeStorage) GetObject(ctx context.Context, id string) (*model.CdsObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		return o, nil
	}
	return nil, model.ErrNoSuchObject
}
func (f *fakeStorage) GetContainer(ctx context.Context, id string) (*model.CdsContainer, error) {
	return nil, model.ErrNoSuchObject
}
func (f *fakeStorage) Children(ctx context.Context, containerID string, offset, count int) ([]*model.CdsObject, int, error) {
	return nil, 0, nil
}
func (f *fakeStorage) AddObject(ctx context.Context, obj *model.CdsObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[obj.ID] = obj
	return nil
}
func (f *fakeStorage) UpdateObject(ctx context.Context, obj *model.CdsObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[obj.ID] = obj
	return nil
}
func (f *fakeStorage) RemoveObject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, id)
	return nil
}
func (f *fakeStorage) SystemUpdateID(ctx context.Context) uint32 { return 0 }
func (f *fakeStorage) SavePlayStatus(ctx context.Context, status *model.ClientStatusDetail) error {
	return nil
}
func (f *fakeStorage) GetPlayStatus(ctx context.Context, group, itemID string) (*model.ClientStatusDetail, error) {
	return nil, nil
}
func (f *fakeStorage) SearchObjects(ctx context.Context, containerID, whereSQL string, args []any, orderBySQL string, offset, count int) ([]*model.CdsObject, int, error) {
	return nil, 0, nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func waitFor(t *testing.T, cond func() bool, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition not met before deadline")
}

func TestEngineRescanNowAddsFilesAndNotifies(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp3"), []byte("x"), 0o644))

	storage := newFakeStorage()
	var notified [][]string
	var mu sync.Mutex
	engine := NewEngine(storage, func(ids []string) {
		mu.Lock()
		notified = append(notified, ids)
		mu.Unlock()
	})

	dir := model.NewAutoscanDirectory(root, model.ScanTimed)
	dir.Recursive = true
	dir.ObjectID = "0"
	require.NoError(t, engine.Register(dir, nil))

	require.NoError(t, engine.RescanNow(context.Background(), dir.ScanID))

	waitFor(t, func() bool { return storage.count() == 1 }, time.Second)
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(notified) == 1 }, time.Second)
}

func TestEngineRegisterRejectsDuplicateLocation(t *testing.T) {
	storage := newFakeStorage()
	engine := NewEngine(storage, nil)
	dir1 := model.NewAutoscanDirectory("/music", model.ScanTimed)
	dir2 := model.NewAutoscanDirectory("/music", model.ScanTimed)
	require.NoError(t, engine.Register(dir1, nil))
	assert.Error(t, engine.Register(dir2, nil))
}

func TestEngineRegisterRejectsNonPersistentOverridingPersistent(t *testing.T) {
	storage := newFakeStorage()
	engine := NewEngine(storage, nil)
	parent := model.NewAutoscanDirectory("/music", model.ScanTimed)
	parent.Persistent = true
	require.NoError(t, engine.Register(parent, nil))

	child := model.NewAutoscanDirectory("/music/rock", model.ScanTimed)
	child.Persistent = false
	assert.Error(t, engine.Register(child, nil))
}

func TestEngineUnregisterRejectsNonPersistentCallerOnPersistentEntry(t *testing.T) {
	storage := newFakeStorage()
	engine := NewEngine(storage, nil)
	dir := model.NewAutoscanDirectory("/music", model.ScanTimed)
	dir.Persistent = true
	require.NoError(t, engine.Register(dir, nil))

	assert.Error(t, engine.Unregister(dir.ScanID, false))
	assert.NoError(t, engine.Unregister(dir.ScanID, true))
}

func TestDirectoryIdleGatesLastModifiedAdvance(t *testing.T) {
	dir := model.NewAutoscanDirectory("/music", model.ScanTimed)
	dir.TaskCount = 1
	dir.LastModCurrentScan = time.Now()
	dir.UpdateLMT()
	assert.True(t, dir.LastModPreviousScan.IsZero())

	dir.TaskCount = 0
	dir.UpdateLMT()
	assert.False(t, dir.LastModPreviousScan.IsZero())
}
