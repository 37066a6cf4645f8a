package store

import (
	"context"
	"encoding/json"
)

// Error constants for the store adapter layer.
var (
	// ErrStoreUnavailable means the underlying engine could not be opened.
	ErrStoreUnavailable = StoreError("store unavailable")
	// ErrStoreNotInitialized means an operation ran before Open resolved
	// successfully (or after Close).
	ErrStoreNotInitialized = StoreError("store not initialized")
	// ErrWriteFailed means the engine rejected a write, e.g. a duplicate
	// value on a unique index. Callers must pre-check uniqueness themselves;
	// the index constraint here is a last line of defense, not an API.
	ErrWriteFailed = StoreError("write failed")
	// ErrUnknownStore / ErrUnknownIndex indicate a programming error: the
	// named store or index was never declared in the schema.
	ErrUnknownStore = StoreError("unknown store")
	ErrUnknownIndex = StoreError("unknown index")
)

// StoreError helps distinguish store adapter errors.
type StoreError string

func (e StoreError) Error() string {
	return string(e)
}

// IndexDef declares the (single) secondary index of a store.
// Field is the JSON field of the record the index is built from.
type IndexDef struct {
	Name   string
	Field  string
	Unique bool
}

// StoreDef declares a named record store. Keys are always autoincrement
// ordinals assigned by the engine; Index may be nil.
type StoreDef struct {
	Name  string
	Index *IndexDef
}

// Record is a raw stored record with its primary key attached.
// The key lives outside the JSON document, the way an IndexedDB cursor
// reports primaryKey next to value.
type Record struct {
	Key  uint64
	Data json.RawMessage
}

// Decode unmarshals the record body into v. The caller is responsible for
// attaching r.Key to the decoded value.
func (r *Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Store is the indexed keyed storage abstraction both repositories sit on.
//
// Ordering contract: GetAll and GetAllByIndex return records in REVERSE
// insertion order (most recently inserted first). Consumers rely on this
// to avoid re-sorting large result sets; implementations must replicate it
// deliberately.
type Store interface {
	// Put inserts or replaces a record. key == 0 means "assign the next
	// autoincrement key". Returns the key under which the record now lives.
	Put(ctx context.Context, storeName string, value any, key uint64) (uint64, error)

	// Get returns the record at key, or (nil, nil) if absent.
	Get(ctx context.Context, storeName string, key uint64) (*Record, error)

	// GetByIndex returns at most one record whose indexed field equals
	// value, or (nil, nil). For non-unique indexes the most recently
	// inserted match wins.
	GetByIndex(ctx context.Context, storeName, indexName string, value any) (*Record, error)

	// GetAll returns every record of the store, reverse insertion order.
	GetAll(ctx context.Context, storeName string) ([]Record, error)

	// GetAllByIndex returns every record whose indexed field equals value,
	// reverse insertion order.
	GetAllByIndex(ctx context.Context, storeName, indexName string, value any) ([]Record, error)

	// Delete removes the record at key. Idempotent: deleting an absent key
	// is not an error.
	Delete(ctx context.Context, storeName string, key uint64) error

	// Close releases the underlying engine. Operations after Close fail
	// with ErrStoreNotInitialized.
	Close() error
}
