package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gymtrack/internal/domain"
	"gymtrack/internal/store"
)

// exerciseRepository implements ExerciseRepository on the store adapter,
// mirroring its writes into the cache.
type exerciseRepository struct {
	store store.Store
	cache *Cache
}

// NewExerciseRepository creates a new exercise repository.
func NewExerciseRepository(s store.Store, cache *Cache) ExerciseRepository {
	return &exerciseRepository{store: s, cache: cache}
}

func decodeExercise(rec *store.Record) (*domain.Exercise, error) {
	var ex domain.Exercise
	if err := rec.Decode(&ex); err != nil {
		return nil, fmt.Errorf("decode exercise %d: %w", rec.Key, err)
	}
	ex.Key = rec.Key
	return &ex, nil
}

// Create validates and persists a new exercise, then appends it to the
// cached list. Name uniqueness is checked through the name index, not a
// full scan.
func (r *exerciseRepository) Create(ctx context.Context, name string, muscles []string, date time.Time) (*domain.Exercise, error) {
	name = domain.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: exercise name is empty", ErrValidation)
	}

	existing, err := r.store.GetByIndex(ctx, ExercisesStore, ExerciseNameIndex, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	exercise := &domain.Exercise{
		Name:        name,
		Muscles:     muscles,
		CreatedAt:   date,
		UpdatedAt:   date,
		LastSession: nil,
	}
	key, err := r.store.Put(ctx, ExercisesStore, exercise, 0)
	if err != nil {
		return nil, err
	}
	exercise.Key = key

	r.cache.AppendExercise(exercise)
	return exercise, nil
}

// Update persists the supplied fields in place under the same key. The
// in-memory exercise mutates only after the write succeeds.
func (r *exerciseRepository) Update(ctx context.Context, exercise *domain.Exercise, name *string, muscles []string, date time.Time) error {
	if exercise == nil || exercise.Key == 0 {
		return ErrMissingKey
	}

	updated := *exercise
	if name != nil {
		n := domain.NormalizeName(*name)
		if n == "" {
			return fmt.Errorf("%w: exercise name is empty", ErrValidation)
		}
		updated.Name = n
	}
	if len(muscles) > 0 {
		updated.Muscles = muscles
	}
	updated.UpdatedAt = date

	if _, err := r.store.Put(ctx, ExercisesStore, &updated, exercise.Key); err != nil {
		return err
	}
	exercise.Name = updated.Name
	exercise.Muscles = updated.Muscles
	exercise.UpdatedAt = updated.UpdatedAt
	// The caller's decode and the cached instance may differ; without the
	// patch a rename would stay invisible until the next FetchAll.
	r.cache.PatchExercise(exercise.Key, func(cached *domain.Exercise) {
		cached.Name = updated.Name
		cached.Muscles = updated.Muscles
		cached.UpdatedAt = updated.UpdatedAt
	})
	return nil
}

// SetLastSession rewrites the denormalized pointer and advances UpdatedAt.
func (r *exerciseRepository) SetLastSession(ctx context.Context, exercise *domain.Exercise, last *domain.Session, date time.Time) error {
	if exercise == nil || exercise.Key == 0 {
		return ErrMissingKey
	}

	updated := *exercise
	updated.LastSession = last
	updated.UpdatedAt = date

	if _, err := r.store.Put(ctx, ExercisesStore, &updated, exercise.Key); err != nil {
		return err
	}
	// Only the written fields mutate, so concurrent readers of the other
	// fields never observe a torn struct.
	exercise.LastSession = last
	exercise.UpdatedAt = date
	r.cache.PatchExercise(exercise.Key, func(cached *domain.Exercise) {
		cached.LastSession = last
		cached.UpdatedAt = date
	})
	return nil
}

// Get returns the exercise at key, or (nil, nil) if absent.
func (r *exerciseRepository) Get(ctx context.Context, key uint64) (*domain.Exercise, error) {
	rec, err := r.store.Get(ctx, ExercisesStore, key)
	if err != nil || rec == nil {
		return nil, err
	}
	return decodeExercise(rec)
}

// FetchAll loads every exercise and rebuilds the cached list: exercised
// ones first, most-overdue first (oldest UpdatedAt), then never-exercised
// ones by oldest CreatedAt.
func (r *exerciseRepository) FetchAll(ctx context.Context) ([]*domain.Exercise, error) {
	recs, err := r.store.GetAll(ctx, ExercisesStore)
	if err != nil {
		return nil, err
	}

	var haveSession, noSession []*domain.Exercise
	for i := range recs {
		ex, err := decodeExercise(&recs[i])
		if err != nil {
			return nil, err
		}
		if ex.LastSession != nil {
			haveSession = append(haveSession, ex)
		} else {
			noSession = append(noSession, ex)
		}
	}

	sort.SliceStable(haveSession, func(i, j int) bool {
		return haveSession[i].UpdatedAt.Before(haveSession[j].UpdatedAt)
	})
	sort.SliceStable(noSession, func(i, j int) bool {
		return noSession[i].CreatedAt.Before(noSession[j].CreatedAt)
	})

	all := append(haveSession, noSession...)
	r.cache.SetExercises(all)
	return all, nil
}
