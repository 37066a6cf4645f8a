package repository

import (
	"sync"

	"gymtrack/internal/domain"
)

// Cache is the process-wide in-memory mirror of persisted state, used for
// list rendering without re-querying the store. It is never the system of
// record: on divergence the store wins, and the repositories repopulate it
// wholesale on fetch and patch it surgically on their own writes.
//
// Constructed explicitly (no module-level instance) so each test gets a
// fresh one.
type Cache struct {
	mu        sync.RWMutex
	exercises []*domain.Exercise
	// sessions is lazily populated per exercise key on first fetch and only
	// ever mutated by session repository writes and deletes. Entries are in
	// insertion-into-cache order, not date order.
	sessions map[uint64][]*domain.Session
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{sessions: make(map[uint64][]*domain.Session)}
}

// Exercises returns the current exercise list snapshot.
func (c *Cache) Exercises() []*domain.Exercise {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Exercise, len(c.exercises))
	copy(out, c.exercises)
	return out
}

// SetExercises replaces the exercise list wholesale.
func (c *Cache) SetExercises(exercises []*domain.Exercise) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exercises = exercises
}

// AppendExercise adds a freshly created exercise to the list.
func (c *Cache) AppendExercise(exercise *domain.Exercise) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exercises = append(c.exercises, exercise)
}

// Exercise returns the cached exercise with the given key, if present.
func (c *Cache) Exercise(key uint64) (*domain.Exercise, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ex := range c.exercises {
		if ex.Key == key {
			return ex, true
		}
	}
	return nil, false
}

// PatchExercise applies fn to the cached exercise with the given key, under
// the cache lock. Repository writes use this to keep the shared instance
// current instead of mutating it directly.
func (c *Cache) PatchExercise(key uint64, fn func(*domain.Exercise)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ex := range c.exercises {
		if ex.Key == key {
			fn(ex)
			return true
		}
	}
	return false
}

// SessionsFor returns the cached session list for an exercise. The second
// result distinguishes "cached empty" from "never fetched".
func (c *Cache) SessionsFor(exerciseKey uint64) ([]*domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sessions, ok := c.sessions[exerciseKey]
	if !ok {
		return nil, false
	}
	out := make([]*domain.Session, len(sessions))
	copy(out, sessions)
	return out, true
}

// SetSessions stores a fetched session list for an exercise.
func (c *Cache) SetSessions(exerciseKey uint64, sessions []*domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[exerciseKey] = sessions
}

// UpsertSession patches a written session into the exercise's list:
// replaced in place when the key is already there, appended otherwise.
func (c *Cache) UpsertSession(exerciseKey uint64, session *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessions, ok := c.sessions[exerciseKey]
	if !ok {
		c.sessions[exerciseKey] = []*domain.Session{session}
		return
	}
	for i, s := range sessions {
		if s.Key == session.Key {
			sessions[i] = session
			return
		}
	}
	c.sessions[exerciseKey] = append(sessions, session)
}

// RemoveSession drops a deleted session from the exercise's list, if the
// list was ever populated.
func (c *Cache) RemoveSession(exerciseKey, sessionKey uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessions, ok := c.sessions[exerciseKey]
	if !ok {
		return
	}
	for i, s := range sessions {
		if s.Key == sessionKey {
			c.sessions[exerciseKey] = append(sessions[:i:i], sessions[i+1:]...)
			return
		}
	}
}
