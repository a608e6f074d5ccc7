// Package session implements the UI session registry (spec §4.H): create,
// get, remove, fan-out container-change notifications, and idle eviction.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
	"github.com/navidrome/mediaserver/model/id"
)

const maxIDAttempts = 100

// Registry holds logged-in UI sessions and sweeps out idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*model.Session{}}
}

// Create mints a new Session with a per-process-unique random id, looping
// (bounded at 100 tries) until uniqueness is proven (spec §4.H invariant).
func (r *Registry) Create(timeout time.Duration) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		sid := id.NewRandom()
		if _, exists := r.sessions[sid]; exists {
			continue
		}
		s := model.NewSession(sid, timeout)
		r.sessions[sid] = s
		return s, nil
	}
	return nil, fmt.Errorf("session: could not mint a unique session id after %d attempts", maxIDAttempts)
}

// Get returns the session for sid, or nil if absent or expired (an expired
// lookup also evicts it immediately rather than waiting for TimerNotify).
func (r *Registry) Get(sid string) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	if s.Expired(time.Now()) {
		delete(r.sessions, sid)
		return nil
	}
	return s
}

func (r *Registry) Remove(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
}

// FanoutContainerChanged notifies every live session that objectIDs changed,
// each session independently accumulating up to 10 distinct ids before
// latching UpdateAll (spec §4.H, delegated to model.Session.NotifyContainer).
func (r *Registry) FanoutContainerChanged(objectIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		for _, objectID := range objectIDs {
			s.NotifyContainer(objectID)
		}
	}
}

// TimerNotify sweeps sessions whose Timeout has elapsed since LastAccess.
// Intended to run periodically from the central timer (spec §4.I's
// sibling); returns the number evicted.
func (r *Registry) TimerNotify() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	evicted := 0
	for sid, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, sid)
			evicted++
			log.Debug(context.Background(), "session expired", "sessionID", sid)
		}
	}
	return evicted
}

// Count returns the number of live sessions, for admin/diagnostics.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
