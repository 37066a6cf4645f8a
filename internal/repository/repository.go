package repository

import (
	"context"
	"time"

	"gymtrack/internal/domain"
	"gymtrack/internal/store"
)

// Store and index names of the persisted layout.
const (
	ExercisesStore = "exercises"
	SessionsStore  = "sessions"

	ExerciseNameIndex  = "name"
	SessionExerciseIdx = "exerciseKey"
)

// StoreDefs declares the two record stores the repositories run on:
// exercises with a unique name index, sessions with a non-unique index on
// the owning exercise key.
func StoreDefs() []store.StoreDef {
	return []store.StoreDef{
		{
			Name:  ExercisesStore,
			Index: &store.IndexDef{Name: ExerciseNameIndex, Field: "name", Unique: true},
		},
		{
			Name:  SessionsStore,
			Index: &store.IndexDef{Name: SessionExerciseIdx, Field: "exerciseKey", Unique: false},
		},
	}
}

// Error constants for the repository layer.
var (
	// ErrValidation means malformed input (empty name, non-positive weight
	// or reps). Retrying without changing the input is pointless.
	ErrValidation = RepositoryError("validation failed")
	// ErrDuplicateName means an exercise with the same trimmed name exists.
	ErrDuplicateName = RepositoryError("exercise name already exists")
	// ErrMissingKey means the operation needed a persisted key the argument
	// lacks; a programming error upstream, worth logging.
	ErrMissingKey = RepositoryError("record was never persisted")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ExerciseRepository defines the operations on exercise records. It owns
// name uniqueness and the recency ordering of FetchAll.
type ExerciseRepository interface {
	Create(ctx context.Context, name string, muscles []string, date time.Time) (*domain.Exercise, error)
	// Update applies only the supplied fields (nil name / nil muscles keep
	// the current values) and always advances UpdatedAt to date.
	Update(ctx context.Context, exercise *domain.Exercise, name *string, muscles []string, date time.Time) error
	// SetLastSession persists a new denormalized pointer (possibly nil) and
	// advances UpdatedAt. The in-memory exercise mutates only after the
	// write succeeds.
	SetLastSession(ctx context.Context, exercise *domain.Exercise, last *domain.Session, date time.Time) error
	Get(ctx context.Context, key uint64) (*domain.Exercise, error)
	// FetchAll loads every exercise, orders exercised ones by oldest
	// UpdatedAt first followed by never-exercised ones by oldest CreatedAt,
	// and replaces the cache wholesale.
	FetchAll(ctx context.Context) ([]*domain.Exercise, error)
}

// SessionRepository defines the operations on session records. It owns the
// per-day merge algorithm and keeps Exercise.LastSession consistent.
type SessionRepository interface {
	// RecordSet folds one performed set into the exercise's same-day
	// session, creating the session if the day changed. Calls are
	// serialized per exercise key.
	RecordSet(ctx context.Context, exercise *domain.Exercise, weight float64, reps int, date time.Time) (*domain.Session, error)
	Get(ctx context.Context, key uint64) (*domain.Session, error)
	// SessionsFor returns the cached list when present, otherwise loads by
	// index (reverse insertion order) and caches.
	SessionsFor(ctx context.Context, exerciseKey uint64) ([]*domain.Session, error)
	// Delete removes the session and, when the owning exercise's
	// LastSession falls on the same calendar day, resets that pointer to
	// nil so later RecordSet calls cannot resurrect deleted rows.
	Delete(ctx context.Context, session *domain.Session) error
}
