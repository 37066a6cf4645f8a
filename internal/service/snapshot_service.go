package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gymtrack/internal/domain"
	"gymtrack/internal/repository"
	"gymtrack/internal/storage"
	"gymtrack/internal/store"

	"github.com/google/uuid"
)

var ErrExportDisabled = errors.New("snapshot export is not configured")

// Snapshot is the JSON document uploaded to object storage: a full dump of
// both stores. One-way backup only, never read back by the app.
type Snapshot struct {
	ExportedAt time.Time          `json:"exportedAt"`
	Exercises  []*domain.Exercise `json:"exercises"`
	Sessions   []*domain.Session  `json:"sessions"`
}

// SnapshotResult reports where an export landed.
type SnapshotResult struct {
	ObjectKey   string `json:"objectKey"`
	DownloadURL string `json:"downloadUrl"`
	Exercises   int    `json:"exercises"`
	Sessions    int    `json:"sessions"`
}

// --- Service Interface ---
type SnapshotService interface {
	Export(ctx context.Context) (*SnapshotResult, error)
}

// snapshotService implements SnapshotService over the store adapter and an
// object storage backend.
type snapshotService struct {
	store   store.Store
	objects storage.ObjectStorage
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(s store.Store, objects storage.ObjectStorage) SnapshotService {
	return &snapshotService{store: s, objects: objects}
}

// Export dumps both stores to a JSON object under snapshots/ and returns a
// presigned download URL.
func (s *snapshotService) Export(ctx context.Context) (*SnapshotResult, error) {
	if s.objects == nil {
		return nil, ErrExportDisabled
	}

	snap := Snapshot{ExportedAt: time.Now().UTC()}

	exRecs, err := s.store.GetAll(ctx, repository.ExercisesStore)
	if err != nil {
		return nil, err
	}
	for i := range exRecs {
		var ex domain.Exercise
		if err := exRecs[i].Decode(&ex); err != nil {
			return nil, err
		}
		ex.Key = exRecs[i].Key
		snap.Exercises = append(snap.Exercises, &ex)
	}

	sessRecs, err := s.store.GetAll(ctx, repository.SessionsStore)
	if err != nil {
		return nil, err
	}
	for i := range sessRecs {
		var sess domain.Session
		if err := sessRecs[i].Decode(&sess); err != nil {
			return nil, err
		}
		sess.Key = sessRecs[i].Key
		snap.Sessions = append(snap.Sessions, &sess)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("snapshots/%s-%s.json",
		snap.ExportedAt.Format("20060102T150405Z"), uuid.NewString())
	if err := s.objects.Upload(ctx, objectKey, "application/json", body); err != nil {
		return nil, err
	}

	url, err := s.objects.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}

	return &SnapshotResult{
		ObjectKey:   objectKey,
		DownloadURL: url,
		Exercises:   len(snap.Exercises),
		Sessions:    len(snap.Sessions),
	}, nil
}
