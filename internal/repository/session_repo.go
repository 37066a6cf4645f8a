package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"gymtrack/internal/domain"
	"gymtrack/internal/store"
)

// sessionRepository implements SessionRepository. It owns the per-day merge
// algorithm and the consistency of Exercise.LastSession.
type sessionRepository struct {
	store     store.Store
	cache     *Cache
	exercises ExerciseRepository

	// locks serializes the read-modify-write of LastSession plus the two
	// persistence calls, per exercise key.
	locks *keyedMutex
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(s store.Store, cache *Cache, exercises ExerciseRepository) SessionRepository {
	return &sessionRepository{
		store:     s,
		cache:     cache,
		exercises: exercises,
		locks:     newKeyedMutex(),
	}
}

func decodeSession(rec *store.Record) (*domain.Session, error) {
	var sess domain.Session
	if err := rec.Decode(&sess); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", rec.Key, err)
	}
	sess.Key = rec.Key
	return &sess, nil
}

// RecordSet folds one performed set into the exercise's same-day session.
//
// Day boundary: when LastSession is nil or falls on a different calendar
// day, a fresh session starts and becomes the new denormalized pointer (the
// prior session stays stored, it just stops being the pointer). Same day
// reuses LastSession as the merge target. Mutation happens on a clone; the
// exercise and cache are touched only after both writes landed, so a failed
// write leaves no half-updated state for the caller to unwind.
//
// The exercise argument only carries the key. The merge target is re-read
// under the lock: callers hand in their own decode, and two in-flight calls
// working from the same stale pointer would otherwise split (or clobber)
// the same-day session.
func (r *sessionRepository) RecordSet(ctx context.Context, exercise *domain.Exercise, weight float64, reps int, date time.Time) (*domain.Session, error) {
	if weight <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive", ErrValidation)
	}
	if reps <= 0 {
		return nil, fmt.Errorf("%w: reps must be positive", ErrValidation)
	}
	if exercise == nil || exercise.Key == 0 {
		return nil, ErrMissingKey
	}

	unlock := r.locks.Lock(exercise.Key)
	defer unlock()

	owner, err := r.ownerExercise(ctx, exercise.Key)
	if err != nil {
		return nil, err
	}

	day := domain.DayOf(date)

	var session *domain.Session
	if owner.LastSession != nil && domain.SameDay(owner.LastSession.Date, day) {
		session = owner.LastSession.Clone()
	} else {
		session = &domain.Session{ExerciseKey: owner.Key, Date: day}
	}
	session.AddSet(weight, reps)

	// The session key, once assigned, never changes even though Sets grows
	// across the day; Put with key 0 assigns, with a key replaces.
	key, err := r.store.Put(ctx, SessionsStore, session, session.Key)
	if err != nil {
		return nil, err
	}
	session.Key = key

	if err := r.exercises.SetLastSession(ctx, owner, session, date); err != nil {
		// Session persisted, pointer stale: recoverable, the next fetch
		// reconciles from the store. Surface the failure regardless.
		return nil, err
	}
	if exercise != owner {
		// Keep the caller's snapshot usable for follow-up calls.
		exercise.LastSession = session
		exercise.UpdatedAt = owner.UpdatedAt
	}

	r.cache.UpsertSession(owner.Key, session)
	return session, nil
}

// ownerExercise resolves the authoritative exercise for a key: the cached
// instance when present (repository writes keep it current), otherwise a
// fresh decode from the store.
func (r *sessionRepository) ownerExercise(ctx context.Context, key uint64) (*domain.Exercise, error) {
	if cached, ok := r.cache.Exercise(key); ok {
		return cached, nil
	}
	ex, err := r.exercises.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("%w: exercise %d", ErrMissingKey, key)
	}
	return ex, nil
}

// Get returns the session at key, or (nil, nil) if absent.
func (r *sessionRepository) Get(ctx context.Context, key uint64) (*domain.Session, error) {
	rec, err := r.store.Get(ctx, SessionsStore, key)
	if err != nil || rec == nil {
		return nil, err
	}
	return decodeSession(rec)
}

// SessionsFor returns the cached list when present, otherwise loads all
// sessions for the exercise by index and caches them. The store's reverse
// cursor order (most recent insertion first) is preserved as-is; it is not
// guaranteed to be date-descending when old sessions were amended late, so
// display code sorts at read time.
func (r *sessionRepository) SessionsFor(ctx context.Context, exerciseKey uint64) ([]*domain.Session, error) {
	if cached, ok := r.cache.SessionsFor(exerciseKey); ok {
		return cached, nil
	}

	recs, err := r.store.GetAllByIndex(ctx, SessionsStore, SessionExerciseIdx, exerciseKey)
	if err != nil {
		return nil, err
	}
	sessions := make([]*domain.Session, 0, len(recs))
	for i := range recs {
		sess, err := decodeSession(&recs[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	r.cache.SetSessions(exerciseKey, sessions)
	return sessions, nil
}

// Delete removes the session record and reconciles the owning exercise.
// The LastSession match is by calendar day, not by key: the pointer is a
// value copy and carries no key-based back-reference guarantee. Without the
// reset, the next RecordSet on that day would merge into a session that no
// longer exists in storage, silently resurrecting the deleted rows.
func (r *sessionRepository) Delete(ctx context.Context, session *domain.Session) error {
	if session == nil || session.Key == 0 {
		return ErrMissingKey
	}

	unlock := r.locks.Lock(session.ExerciseKey)
	defer unlock()

	if err := r.store.Delete(ctx, SessionsStore, session.Key); err != nil {
		return err
	}
	r.cache.RemoveSession(session.ExerciseKey, session.Key)

	exercise, err := r.exercises.Get(ctx, session.ExerciseKey)
	if err != nil {
		return err
	}
	if exercise == nil {
		// Orphaned session; nothing to reconcile.
		log.Printf("ERROR: session %d referenced missing exercise %d", session.Key, session.ExerciseKey)
		return nil
	}

	if exercise.LastSession != nil && domain.SameDay(exercise.LastSession.Date, session.Date) {
		// SetLastSession patches the cached exercise as well; Get returned
		// a fresh decode.
		if err := r.exercises.SetLastSession(ctx, exercise, nil, exercise.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}
