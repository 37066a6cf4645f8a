package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gymtrack/internal/repository"
	"gymtrack/internal/store"
)

// fakeObjectStorage records uploads in memory.
type fakeObjectStorage struct {
	key  string
	body []byte
}

func (f *fakeObjectStorage) Upload(ctx context.Context, objectKey, contentType string, body []byte) error {
	f.key = objectKey
	f.body = body
	return nil
}

func (f *fakeObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	return "https://example.test/" + objectKey, nil
}

func (f *fakeObjectStorage) DeleteObject(ctx context.Context, objectKey string) error {
	return nil
}

func TestExportDumpsBothStores(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(store.Options{Dir: t.TempDir(), Version: 1}, repository.StoreDefs())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	cache := repository.NewCache()
	exercises := repository.NewExerciseRepository(db, cache)
	sessions := repository.NewSessionRepository(db, cache, exercises)

	now := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	ex, err := exercises.Create(ctx, "Squat", nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.RecordSet(ctx, ex, 100, 5, now); err != nil {
		t.Fatal(err)
	}

	objects := &fakeObjectStorage{}
	result, err := NewSnapshotService(db, objects).Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Exercises != 1 || result.Sessions != 1 {
		t.Errorf("counts: %+v", result)
	}
	if !strings.HasPrefix(result.ObjectKey, "snapshots/") {
		t.Errorf("object key outside snapshots/: %q", result.ObjectKey)
	}
	if result.DownloadURL == "" {
		t.Error("missing download URL")
	}

	var snap Snapshot
	if err := json.Unmarshal(objects.body, &snap); err != nil {
		t.Fatalf("uploaded body is not a snapshot: %v", err)
	}
	if len(snap.Exercises) != 1 || snap.Exercises[0].Name != "Squat" {
		t.Errorf("exercises not in snapshot: %+v", snap.Exercises)
	}
	if len(snap.Sessions) != 1 || len(snap.Sessions[0].Sets) != 1 {
		t.Errorf("sessions not in snapshot: %+v", snap.Sessions)
	}
}

func TestExportWithoutBackendIsDisabled(t *testing.T) {
	db, err := store.Open(store.Options{Dir: t.TempDir(), Version: 1}, repository.StoreDefs())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	_, err = NewSnapshotService(db, nil).Export(context.Background())
	if !errors.Is(err, ErrExportDisabled) {
		t.Fatalf("expected ErrExportDisabled, got %v", err)
	}
}
