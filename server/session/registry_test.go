package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAssignsUniqueID(t *testing.T) {
	r := NewRegistry()

	s1, err := r.Create(time.Minute)
	require.NoError(t, err)
	s2, err := r.Create(time.Minute)
	require.NoError(t, err)

	assert.NotEmpty(t, s1.ID)
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryGetReturnsLiveSession(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create(time.Minute)
	require.NoError(t, err)

	got := r.Get(s.ID)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
}

func TestRegistryGetReturnsNilForUnknownID(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("does-not-exist"))
}

func TestRegistryGetEvictsExpiredSession(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create(time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, r.Get(s.ID))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryRemoveDeletesSession(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create(time.Minute)
	require.NoError(t, err)

	r.Remove(s.ID)
	assert.Nil(t, r.Get(s.ID))
}

func TestRegistryFanoutContainerChangedNotifiesAllSessions(t *testing.T) {
	r := NewRegistry()
	s1, err := r.Create(time.Minute)
	require.NoError(t, err)
	s2, err := r.Create(time.Minute)
	require.NoError(t, err)

	r.FanoutContainerChanged([]string{"obj-1", "obj-2"})

	ids1, all1 := s1.DrainUpdates()
	ids2, all2 := s2.DrainUpdates()
	assert.False(t, all1)
	assert.False(t, all2)
	assert.ElementsMatch(t, []string{"obj-1", "obj-2"}, ids1)
	assert.ElementsMatch(t, []string{"obj-1", "obj-2"}, ids2)
}

func TestRegistryTimerNotifyEvictsOnlyExpiredSessions(t *testing.T) {
	r := NewRegistry()
	stale, err := r.Create(time.Millisecond)
	require.NoError(t, err)
	fresh, err := r.Create(time.Hour)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	evicted := r.TimerNotify()

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, r.Count())
	assert.Nil(t, r.Get(stale.ID))
	require.NotNil(t, r.Get(fresh.ID))
}
