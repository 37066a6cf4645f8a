package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type testRec struct {
	Name  string `json:"name,omitempty"`
	Owner uint64 `json:"owner,omitempty"`
	Note  string `json:"note,omitempty"`
}

func testDefs() []StoreDef {
	return []StoreDef{
		{Name: "items", Index: &IndexDef{Name: "name", Field: "name", Unique: true}},
		{Name: "entries", Index: &IndexDef{Name: "owner", Field: "owner", Unique: false}},
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{Dir: t.TempDir(), Version: 1}, testDefs())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := testRec{Name: "Squat", Note: "legs"}
	key, err := db.Put(ctx, "items", in, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if key == 0 {
		t.Fatal("Put assigned zero key")
	}

	rec, err := db.Get(ctx, "items", key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Get returned nil for existing key")
	}
	if rec.Key != key {
		t.Errorf("Key mismatch: got %d, want %d", rec.Key, key)
	}

	var out testRec
	if err := rec.Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	db := openTestDB(t)

	rec, err := db.Get(context.Background(), "items", 42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestAutoincrementKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	k1, err := db.Put(ctx, "items", testRec{Name: "a"}, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	k2, err := db.Put(ctx, "items", testRec{Name: "b"}, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if k2 != k1+1 {
		t.Errorf("keys not sequential: %d then %d", k1, k2)
	}
}

func TestGetAllReverseInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var keys []uint64
	for _, name := range []string{"a", "b", "c"} {
		k, err := db.Put(ctx, "items", testRec{Name: name}, 0)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		keys = append(keys, k)
	}

	recs, err := db.GetAll(ctx, "items")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	// Most recently inserted first.
	for i, want := range []uint64{keys[2], keys[1], keys[0]} {
		if recs[i].Key != want {
			t.Errorf("position %d: got key %d, want %d", i, recs[i].Key, want)
		}
	}
}

func TestGetByIndexUnique(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	key, err := db.Put(ctx, "items", testRec{Name: "Deadlift"}, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec, err := db.GetByIndex(ctx, "items", "name", "Deadlift")
	if err != nil {
		t.Fatalf("GetByIndex failed: %v", err)
	}
	if rec == nil || rec.Key != key {
		t.Fatalf("expected key %d, got %+v", key, rec)
	}

	rec, err = db.GetByIndex(ctx, "items", "name", "Press")
	if err != nil {
		t.Fatalf("GetByIndex failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for absent index value, got %+v", rec)
	}
}

func TestUniqueIndexViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Put(ctx, "items", testRec{Name: "Squat"}, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_, err := db.Put(ctx, "items", testRec{Name: "Squat"}, 0)
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}

	recs, err := db.GetAll(ctx, "items")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("failed write mutated the store: %d records", len(recs))
	}
}

func TestReplaceMovesUniqueIndex(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	key, err := db.Put(ctx, "items", testRec{Name: "Row"}, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := db.Put(ctx, "items", testRec{Name: "Cable Row"}, key); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	if rec, _ := db.GetByIndex(ctx, "items", "name", "Row"); rec != nil {
		t.Errorf("old index entry survived rename: %+v", rec)
	}
	rec, err := db.GetByIndex(ctx, "items", "name", "Cable Row")
	if err != nil || rec == nil || rec.Key != key {
		t.Fatalf("renamed record not reachable by index: rec=%+v err=%v", rec, err)
	}

	// The old value is free for reuse.
	if _, err := db.Put(ctx, "items", testRec{Name: "Row"}, 0); err != nil {
		t.Errorf("old name should be reusable after rename: %v", err)
	}
}

func TestGetAllByIndexFiltersAndOrders(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var mine []uint64
	for i := 0; i < 5; i++ {
		owner := uint64(1)
		if i%2 == 1 {
			owner = 2
		}
		k, err := db.Put(ctx, "entries", testRec{Owner: owner, Note: "n"}, 0)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if owner == 1 {
			mine = append(mine, k)
		}
	}

	recs, err := db.GetAllByIndex(ctx, "entries", "owner", uint64(1))
	if err != nil {
		t.Fatalf("GetAllByIndex failed: %v", err)
	}
	if len(recs) != len(mine) {
		t.Fatalf("expected %d records, got %d", len(mine), len(recs))
	}
	for i := range recs {
		want := mine[len(mine)-1-i]
		if recs[i].Key != want {
			t.Errorf("position %d: got key %d, want %d", i, recs[i].Key, want)
		}
		var out testRec
		if err := json.Unmarshal(recs[i].Data, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Owner != 1 {
			t.Errorf("foreign record leaked into index scan: %+v", out)
		}
	}
}

func TestDeleteIdempotentAndIndexCleanup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	key, err := db.Put(ctx, "items", testRec{Name: "Curl"}, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := db.Delete(ctx, "items", key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := db.Delete(ctx, "items", key); err != nil {
		t.Fatalf("second Delete not idempotent: %v", err)
	}

	if rec, _ := db.Get(ctx, "items", key); rec != nil {
		t.Errorf("record survived delete: %+v", rec)
	}
	if rec, _ := db.GetByIndex(ctx, "items", "name", "Curl"); rec != nil {
		t.Errorf("index entry survived delete: %+v", rec)
	}
	// Name is free again.
	if _, err := db.Put(ctx, "items", testRec{Name: "Curl"}, 0); err != nil {
		t.Errorf("name should be reusable after delete: %v", err)
	}
}

func TestVersionUpgradeKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(Options{Dir: dir, Version: 1}, testDefs())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Put(ctx, "items", testRec{Name: "Squat"}, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = Open(Options{Dir: dir, Version: 2}, testDefs())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	recs, err := db.GetAll(ctx, "items")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("upgrade lost data: %d records", len(recs))
	}
}

func TestVersionDowngradeWipes(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(Options{Dir: dir, Version: 2}, testDefs())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Put(ctx, "items", testRec{Name: "Squat"}, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = Open(Options{Dir: dir, Version: 1}, testDefs())
	if err != nil {
		t.Fatalf("reopen with lower version failed: %v", err)
	}
	defer db.Close()

	recs, err := db.GetAll(ctx, "items")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("downgrade did not wipe: %d records", len(recs))
	}

	// Fresh database, fresh key space.
	key, err := db.Put(ctx, "items", testRec{Name: "Squat"}, 0)
	if err != nil {
		t.Fatalf("Put after wipe failed: %v", err)
	}
	if key != 1 {
		t.Errorf("expected key 1 after wipe, got %d", key)
	}
}

func TestOperationsBeforeOpen(t *testing.T) {
	var db DB
	ctx := context.Background()

	if _, err := db.Get(ctx, "items", 1); !errors.Is(err, ErrStoreNotInitialized) {
		t.Errorf("Get: expected ErrStoreNotInitialized, got %v", err)
	}
	if _, err := db.Put(ctx, "items", testRec{Name: "x"}, 0); !errors.Is(err, ErrStoreNotInitialized) {
		t.Errorf("Put: expected ErrStoreNotInitialized, got %v", err)
	}
	if err := db.Delete(ctx, "items", 1); !errors.Is(err, ErrStoreNotInitialized) {
		t.Errorf("Delete: expected ErrStoreNotInitialized, got %v", err)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	db, err := Open(Options{Dir: t.TempDir(), Version: 1}, testDefs())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := db.GetAll(context.Background(), "items"); !errors.Is(err, ErrStoreNotInitialized) {
		t.Errorf("expected ErrStoreNotInitialized, got %v", err)
	}
}

func TestUnknownStoreAndIndex(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Put(ctx, "nope", testRec{}, 0); !errors.Is(err, ErrUnknownStore) {
		t.Errorf("expected ErrUnknownStore, got %v", err)
	}
	if _, err := db.GetByIndex(ctx, "items", "owner", uint64(1)); !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("expected ErrUnknownIndex, got %v", err)
	}
}
