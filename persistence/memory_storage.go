// Package persistence provides a reference model.Storage implementation.
// Spec §6 leaves the actual SQL backend out of scope ("storage backend" is
// a non-goal); this in-memory store exists so core/* and server/* can be
// exercised end-to-end in tests without a real database.
package persistence

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/navidrome/mediaserver/model"
)

// MemoryStorage is a thread-safe, in-memory model.Storage backed by plain
// maps. It keeps children ordered by insertion and bumps ancestor UpdateIDs
// and the global SystemUpdateID on every mutation, mirroring the update-
// propagation invariant from spec §8.
type MemoryStorage struct {
	mu         sync.RWMutex
	objects    map[string]*model.CdsObject
	containers map[string]*model.CdsContainer
	children   map[string][]string // containerID -> ordered child ids
	playStatus map[string]*model.ClientStatusDetail

	systemUpdateID atomic.Uint32
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects:    map[string]*model.CdsObject{},
		containers: map[string]*model.CdsContainer{},
		children:   map[string][]string{},
		playStatus: map[string]*model.ClientStatusDetail{},
	}
}

func (s *MemoryStorage) GetObject(ctx context.Context, id string) (*model.CdsObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok {
		return nil, model.ErrNoSuchObject
	}
	return obj, nil
}

func (s *MemoryStorage) GetContainer(ctx context.Context, id string) (*model.CdsContainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	if !ok {
		return nil, model.ErrNoSuchObject
	}
	return c, nil
}

func (s *MemoryStorage) Children(ctx context.Context, containerID string, offset, count int) ([]*model.CdsObject, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.children[containerID]
	total := len(ids)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if count > 0 && offset+count < end {
		end = offset + count
	}
	out := make([]*model.CdsObject, 0, end-offset)
	for _, id := range ids[offset:end] {
		if obj, ok := s.objects[id]; ok {
			out = append(out, obj)
		}
	}
	return out, total, nil
}

func (s *MemoryStorage) AddObject(ctx context.Context, obj *model.CdsObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID] = obj
	if obj.IsContainer() {
		s.containers[obj.ID] = &model.CdsContainer{CdsObject: *obj}
		if _, ok := s.children[obj.ID]; !ok {
			s.children[obj.ID] = nil
		}
	}
	if obj.ParentID != "" {
		s.children[obj.ParentID] = append(s.children[obj.ParentID], obj.ID)
	}
	s.bumpAncestorsLocked(obj.ParentID)
	return nil
}

func (s *MemoryStorage) UpdateObject(ctx context.Context, obj *model.CdsObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[obj.ID]; !ok {
		return model.ErrNoSuchObject
	}
	s.objects[obj.ID] = obj
	if c, ok := s.containers[obj.ID]; ok {
		c.CdsObject = *obj
	}
	s.bumpAncestorsLocked(obj.ParentID)
	return nil
}

func (s *MemoryStorage) RemoveObject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return model.ErrNoSuchObject
	}
	s.removeSubtreeLocked(id)
	s.removeFromParentLocked(obj.ParentID, id)
	s.bumpAncestorsLocked(obj.ParentID)
	return nil
}

func (s *MemoryStorage) removeSubtreeLocked(id string) {
	for _, childID := range s.children[id] {
		s.removeSubtreeLocked(childID)
	}
	delete(s.objects, id)
	delete(s.containers, id)
	delete(s.children, id)
}

func (s *MemoryStorage) removeFromParentLocked(parentID, childID string) {
	siblings := s.children[parentID]
	for i, sib := range siblings {
		if sib == childID {
			s.children[parentID] = append(siblings[:i], siblings[i+1:]...)
			return
		}
	}
}

// bumpAncestorsLocked bumps the UpdateID of id and every ancestor up to the
// root, plus the global SystemUpdateID, so "ancestor UpdateID observable >=
// descendant UpdateID" holds after the mutation propagates (spec §8 inv 2).
func (s *MemoryStorage) bumpAncestorsLocked(id string) {
	s.systemUpdateID.Add(1)
	for id != "" {
		c, ok := s.containers[id]
		if !ok {
			return
		}
		c.Bump()
		id = c.ParentID
	}
}

func (s *MemoryStorage) SystemUpdateID(ctx context.Context) uint32 {
	return s.systemUpdateID.Load()
}

func (s *MemoryStorage) SavePlayStatus(ctx context.Context, status *model.ClientStatusDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playStatus[status.Group+"\x00"+status.ItemID] = status
	return nil
}

func (s *MemoryStorage) GetPlayStatus(ctx context.Context, group, itemID string) (*model.ClientStatusDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.playStatus[group+"\x00"+itemID]
	if !ok {
		return nil, nil
	}
	return st, nil
}

// SearchObjects returns every descendant of containerID, unfiltered — the
// real filtering described by whereSQL/args is core/search's LiveEmitter
// output, meant to run against an actual SQL engine. A real Storage
// implementation passes those straight to its driver; this in-memory
// reference returns the full subtree as a conservative superset so the CDS
// Browse/Search wiring can be exercised in tests without one.
func (s *MemoryStorage) SearchObjects(ctx context.Context, containerID, whereSQL string, args []any, orderBySQL string, offset, count int) ([]*model.CdsObject, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*model.CdsObject
	s.collectSubtreeLocked(containerID, &all)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if count > 0 && offset+count < end {
		end = offset + count
	}
	return all[offset:end], total, nil
}

func (s *MemoryStorage) collectSubtreeLocked(containerID string, out *[]*model.CdsObject) {
	for _, childID := range s.children[containerID] {
		obj, ok := s.objects[childID]
		if !ok {
			continue
		}
		*out = append(*out, obj)
		if obj.IsContainer() {
			s.collectSubtreeLocked(childID, out)
		}
	}
}
