package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	badger "github.com/dgraph-io/badger/v3"
)

// Key layout inside the Badger keyspace:
//
//	r/<store>/<key:8 bytes big-endian>            record body (JSON)
//	x/<store>/<index>/<value>                     unique index -> primary key
//	x/<store>/<index>/<value>\x00<key:8 bytes>    non-unique index entry
//	m/version                                     installed schema version
//	m/seq/<store>                                 autoincrement counter
//
// Big-endian keys make lexicographic order equal insertion order, so a
// reverse iteration yields most-recently-inserted first.
const (
	recTag  = "r/"
	idxTag  = "x/"
	metaTag = "m/"
)

var versionKey = []byte(metaTag + "version")

// Options configures Open.
type Options struct {
	// Dir is the directory holding the database files.
	Dir string
	// Version is the requested schema version. Opening with a version lower
	// than the installed one wipes the database and recreates it empty.
	Version uint64
}

// DB implements Store on top of Badger.
type DB struct {
	db   *badger.DB
	defs map[string]StoreDef

	// Badger transactions are optimistic; the autoincrement counter would
	// make concurrent Puts conflict constantly. One writer at a time.
	writeMu sync.Mutex
}

func (o Options) validate() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: no directory configured", ErrStoreUnavailable)
	}
	return nil
}

// Open opens or creates the database and runs the schema step: store and
// index declarations are registered, and a version downgrade wipes all data.
func Open(opts Options, defs []StoreDef) (*DB, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	bopts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	d := &DB{db: bdb, defs: make(map[string]StoreDef, len(defs))}
	for _, def := range defs {
		d.defs[def.Name] = def
	}

	installed, err := d.installedVersion()
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	if installed > opts.Version {
		// A lower requested version is the sanctioned wipe signal.
		log.Printf("INFO: store version %d < installed %d, wiping database", opts.Version, installed)
		if err := bdb.DropAll(); err != nil {
			_ = bdb.Close()
			return nil, fmt.Errorf("%w: wipe: %v", ErrStoreUnavailable, err)
		}
		installed = 0
	}

	if installed != opts.Version {
		log.Printf("INFO: store schema at version %d (was %d)", opts.Version, installed)
		if err := d.writeVersion(opts.Version); err != nil {
			_ = bdb.Close()
			return nil, err
		}
	}

	return d, nil
}

// Close releases the engine.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) handle() (*badger.DB, error) {
	if d == nil || d.db == nil || d.db.IsClosed() {
		return nil, ErrStoreNotInitialized
	}
	return d.db, nil
}

func (d *DB) def(storeName string) (StoreDef, error) {
	def, ok := d.defs[storeName]
	if !ok {
		return StoreDef{}, fmt.Errorf("%w: %q", ErrUnknownStore, storeName)
	}
	return def, nil
}

func (d *DB) index(storeName, indexName string) (StoreDef, *IndexDef, error) {
	def, err := d.def(storeName)
	if err != nil {
		return StoreDef{}, nil, err
	}
	if def.Index == nil || def.Index.Name != indexName {
		return StoreDef{}, nil, fmt.Errorf("%w: %q on store %q", ErrUnknownIndex, indexName, storeName)
	}
	return def, def.Index, nil
}

func (d *DB) installedVersion() (uint64, error) {
	var v uint64
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				v = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read version: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}

func (d *DB) writeVersion(v uint64) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(versionKey, encodeKey(v))
	})
	if err != nil {
		return fmt.Errorf("%w: write version: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// --- key encoding helpers ---

func encodeKey(key uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, key)
	return buf
}

func recPrefix(storeName string) []byte {
	return []byte(recTag + storeName + "/")
}

func recKey(storeName string, key uint64) []byte {
	return append(recPrefix(storeName), encodeKey(key)...)
}

func idxPrefix(storeName, indexName string) []byte {
	return []byte(idxTag + storeName + "/" + indexName + "/")
}

// uniqueIdxKey holds the primary key as its value; nonUniqueIdxKey embeds it
// after a zero separator so equal index values sort by insertion order.
func uniqueIdxKey(storeName, indexName string, value []byte) []byte {
	return append(idxPrefix(storeName, indexName), value...)
}

func nonUniqueIdxKey(storeName, indexName string, value []byte, key uint64) []byte {
	k := append(idxPrefix(storeName, indexName), value...)
	k = append(k, 0x00)
	return append(k, encodeKey(key)...)
}

func seqKey(storeName string) []byte {
	return []byte(metaTag + "seq/" + storeName)
}

// encodeIndexValue maps an index field value to index key bytes. Strings map
// to their raw bytes; integral numbers to 8-byte big-endian, so a uint64
// query matches the float64 a JSON document decodes to.
func encodeIndexValue(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case uint64:
		return encodeKey(x), nil
	case uint:
		return encodeKey(uint64(x)), nil
	case int:
		if x < 0 {
			return nil, fmt.Errorf("%w: negative index value %d", ErrWriteFailed, x)
		}
		return encodeKey(uint64(x)), nil
	case int64:
		if x < 0 {
			return nil, fmt.Errorf("%w: negative index value %d", ErrWriteFailed, x)
		}
		return encodeKey(uint64(x)), nil
	case float64:
		if x < 0 || x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: non-ordinal index value %v", ErrWriteFailed, x)
		}
		return encodeKey(uint64(x)), nil
	case json.Number:
		u, err := x.Int64()
		if err != nil || u < 0 {
			return nil, fmt.Errorf("%w: non-ordinal index value %v", ErrWriteFailed, x)
		}
		return encodeKey(uint64(u)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported index value type %T", ErrWriteFailed, v)
	}
}

// indexedValue pulls the indexed field out of a marshaled record.
// Absent or null fields yield (nil, false): the record is simply not indexed,
// matching IndexedDB behavior for missing key paths.
func indexedValue(doc []byte, field string) ([]byte, bool, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, false, fmt.Errorf("%w: record is not an object: %v", ErrWriteFailed, err)
	}
	raw, ok := m[field]
	if !ok || raw == nil {
		return nil, false, nil
	}
	enc, err := encodeIndexValue(raw)
	if err != nil {
		return nil, false, err
	}
	return enc, true, nil
}

// --- Store implementation ---

// Put inserts or replaces a record, maintaining the store's index entry.
func (d *DB) Put(ctx context.Context, storeName string, value any, key uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db, err := d.handle()
	if err != nil {
		return 0, err
	}
	def, err := d.def(storeName)
	if err != nil {
		return 0, err
	}

	doc, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("%w: encode record: %v", ErrWriteFailed, err)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	assigned := key
	err = db.Update(func(txn *badger.Txn) error {
		if assigned == 0 {
			next, err := nextSequence(txn, storeName)
			if err != nil {
				return err
			}
			assigned = next
		}

		if def.Index != nil {
			if err := maintainIndex(txn, storeName, def.Index, doc, assigned); err != nil {
				return err
			}
		}

		return txn.Set(recKey(storeName, assigned), doc)
	})
	if err != nil {
		return 0, wrapWrite(err)
	}
	return assigned, nil
}

func nextSequence(txn *badger.Txn, storeName string) (uint64, error) {
	var cur uint64
	item, err := txn.Get(seqKey(storeName))
	if err == nil {
		err = item.Value(func(val []byte) error {
			if len(val) == 8 {
				cur = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	}
	if err != nil && err != badger.ErrKeyNotFound {
		return 0, err
	}
	cur++
	if err := txn.Set(seqKey(storeName), encodeKey(cur)); err != nil {
		return 0, err
	}
	return cur, nil
}

// maintainIndex removes the previous index entry when a record is replaced
// with a new indexed value, enforces uniqueness, and writes the new entry.
func maintainIndex(txn *badger.Txn, storeName string, idx *IndexDef, doc []byte, key uint64) error {
	newVal, hasNew, err := indexedValue(doc, idx.Field)
	if err != nil {
		return err
	}

	// Replacement: drop the stale entry of the old document, if any.
	if old, err := txn.Get(recKey(storeName, key)); err == nil {
		oldDoc, err := old.ValueCopy(nil)
		if err != nil {
			return err
		}
		oldVal, hasOld, err := indexedValue(oldDoc, idx.Field)
		if err == nil && hasOld && !(hasNew && bytes.Equal(oldVal, newVal)) {
			if idx.Unique {
				if err := txn.Delete(uniqueIdxKey(storeName, idx.Name, oldVal)); err != nil {
					return err
				}
			} else {
				if err := txn.Delete(nonUniqueIdxKey(storeName, idx.Name, oldVal, key)); err != nil {
					return err
				}
			}
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	if !hasNew {
		return nil
	}

	if idx.Unique {
		ik := uniqueIdxKey(storeName, idx.Name, newVal)
		if item, err := txn.Get(ik); err == nil {
			existing, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(existing) == 8 && binary.BigEndian.Uint64(existing) != key {
				return fmt.Errorf("%w: duplicate value on unique index %s.%s", ErrWriteFailed, storeName, idx.Name)
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(ik, encodeKey(key))
	}
	return txn.Set(nonUniqueIdxKey(storeName, idx.Name, newVal, key), nil)
}

// wrapWrite classifies transaction failures, preserving errors that already
// carry a store taxonomy.
func wrapWrite(err error) error {
	if err == nil {
		return nil
	}
	var se StoreError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrWriteFailed, err)
}

// Get returns the record at key, or (nil, nil) if absent.
func (d *DB) Get(ctx context.Context, storeName string, key uint64) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	if _, err := d.def(storeName); err != nil {
		return nil, err
	}

	var rec *Record
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recKey(storeName, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec = &Record{Key: key, Data: data}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// GetByIndex returns at most one record whose indexed field equals value.
func (d *DB) GetByIndex(ctx context.Context, storeName, indexName string, value any) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	_, idx, err := d.index(storeName, indexName)
	if err != nil {
		return nil, err
	}
	enc, err := encodeIndexValue(value)
	if err != nil {
		return nil, err
	}

	var rec *Record
	err = db.View(func(txn *badger.Txn) error {
		key, found, err := lookupIndex(txn, storeName, idx, enc)
		if err != nil || !found {
			return err
		}
		item, err := txn.Get(recKey(storeName, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec = &Record{Key: key, Data: data}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get by index: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

func lookupIndex(txn *badger.Txn, storeName string, idx *IndexDef, enc []byte) (uint64, bool, error) {
	if idx.Unique {
		item, err := txn.Get(uniqueIdxKey(storeName, idx.Name, enc))
		if err == badger.ErrKeyNotFound {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		val, err := item.ValueCopy(nil)
		if err != nil || len(val) != 8 {
			return 0, false, err
		}
		return binary.BigEndian.Uint64(val), true, nil
	}

	// Most recently inserted match first.
	prefix := append(idxPrefix(storeName, idx.Name), enc...)
	prefix = append(prefix, 0x00)
	keys := scanReverse(txn, prefix, true)
	if len(keys) == 0 {
		return 0, false, nil
	}
	return keys[0], true, nil
}

// scanReverse walks a key prefix backwards. With trailingKey set, the record
// key is taken from the last 8 bytes of each index entry; otherwise the
// caller iterates record keys directly.
func scanReverse(txn *badger.Txn, prefix []byte, trailingKey bool) []uint64 {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, 16)...)

	var keys []uint64
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		k := it.Item().Key()
		if len(k) < len(prefix)+8 {
			continue
		}
		if trailingKey {
			keys = append(keys, binary.BigEndian.Uint64(k[len(k)-8:]))
		} else {
			keys = append(keys, binary.BigEndian.Uint64(k[len(prefix):]))
		}
	}
	return keys
}

// GetAll returns the whole store, most recently inserted first.
func (d *DB) GetAll(ctx context.Context, storeName string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	if _, err := d.def(storeName); err != nil {
		return nil, err
	}

	var recs []Record
	err = db.View(func(txn *badger.Txn) error {
		prefix := recPrefix(storeName)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, 16)...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			if len(k) != len(prefix)+8 {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			recs = append(recs, Record{Key: binary.BigEndian.Uint64(k[len(prefix):]), Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get all: %v", ErrStoreUnavailable, err)
	}
	return recs, nil
}

// GetAllByIndex returns every match, most recently inserted first.
func (d *DB) GetAllByIndex(ctx context.Context, storeName, indexName string, value any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	_, idx, err := d.index(storeName, indexName)
	if err != nil {
		return nil, err
	}
	enc, err := encodeIndexValue(value)
	if err != nil {
		return nil, err
	}

	var recs []Record
	err = db.View(func(txn *badger.Txn) error {
		var keys []uint64
		if idx.Unique {
			key, found, err := lookupIndex(txn, storeName, idx, enc)
			if err != nil {
				return err
			}
			if found {
				keys = []uint64{key}
			}
		} else {
			prefix := append(idxPrefix(storeName, idx.Name), enc...)
			prefix = append(prefix, 0x00)
			keys = scanReverse(txn, prefix, true)
		}

		for _, key := range keys {
			item, err := txn.Get(recKey(storeName, key))
			if err == badger.ErrKeyNotFound {
				continue // dangling index entry
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			recs = append(recs, Record{Key: key, Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get all by index: %v", ErrStoreUnavailable, err)
	}
	return recs, nil
}

// Delete removes a record and its index entry. Absent keys are a no-op.
func (d *DB) Delete(ctx context.Context, storeName string, key uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := d.handle()
	if err != nil {
		return err
	}
	def, err := d.def(storeName)
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	err = db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(recKey(storeName, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		if def.Index != nil {
			doc, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			val, has, err := indexedValue(doc, def.Index.Field)
			if err == nil && has {
				var ik []byte
				if def.Index.Unique {
					ik = uniqueIdxKey(storeName, def.Index.Name, val)
				} else {
					ik = nonUniqueIdxKey(storeName, def.Index.Name, val, key)
				}
				if err := txn.Delete(ik); err != nil {
					return err
				}
			}
		}

		return txn.Delete(recKey(storeName, key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrWriteFailed, err)
	}
	return nil
}
