// Package storage persists small engine-startup artifacts across process
// runs in a BadgerDB database under the platform data directory (see
// paths.go). The only artifact currently cached is the board package's
// cuckoo repetition-cycle table (spec.md §9 "store it to disk and mmap it
// on subsequent runs if startup cost matters").
package storage

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
)

const keyCuckooTable = "cuckoo_table_v1"

// CuckooCache wraps a BadgerDB handle used to persist the cuckoo table
// blob between runs, zstd-compressed on disk.
type CuckooCache struct {
	db *badger.DB
}

// OpenCuckooCache opens (creating if absent) the BadgerDB under
// GetDatabaseDir.
func OpenCuckooCache() (*CuckooCache, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &CuckooCache{db: db}, nil
}

// Close closes the underlying database.
func (c *CuckooCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Save compresses and stores the cuckoo table blob.
func (c *CuckooCache) Save(blob []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()

	compressed := enc.EncodeAll(blob, nil)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyCuckooTable), compressed)
	})
}

// Load returns the previously saved cuckoo table blob, or ok=false if none
// is cached yet.
func (c *CuckooCache) Load() (blob []byte, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyCuckooTable))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return err
			}
			defer dec.Close()

			decoded, err := dec.DecodeAll(val, nil)
			if err != nil {
				return err
			}
			blob = decoded
			ok = true
			return nil
		})
	})
	return blob, ok, err
}

// EncodeCuckooSnapshot packs a cuckoo table snapshot into a flat byte blob
// (entry count, then keys, then moves, all little-endian).
func EncodeCuckooSnapshot(keys []uint64, moves []uint16) []byte {
	n := len(keys)
	buf := make([]byte, 4+n*8+n*2)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	off := 4
	for _, k := range keys {
		binary.LittleEndian.PutUint64(buf[off:], k)
		off += 8
	}
	for _, m := range moves {
		binary.LittleEndian.PutUint16(buf[off:], m)
		off += 2
	}
	return buf
}

// DecodeCuckooSnapshot reverses EncodeCuckooSnapshot, reporting ok=false on
// any length mismatch rather than panicking on a corrupt/foreign blob.
func DecodeCuckooSnapshot(blob []byte) (keys []uint64, moves []uint16, ok bool) {
	if len(blob) < 4 {
		return nil, nil, false
	}
	n := int(binary.LittleEndian.Uint32(blob))
	if want := 4 + n*8 + n*2; len(blob) != want {
		return nil, nil, false
	}

	keys = make([]uint64, n)
	off := 4
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint64(blob[off:])
		off += 8
	}
	moves = make([]uint16, n)
	for i := range moves {
		moves[i] = binary.LittleEndian.Uint16(blob[off:])
		off += 2
	}
	return keys, moves, true
}

// LoadOrBuildCuckoo restores a cuckoo table from the on-disk cache via
// restore if a compatible snapshot is present, else reads the freshly
// built table via snapshot and persists it for the next run. restore and
// snapshot are injected so this package never imports internal/board.
func LoadOrBuildCuckoo(restore func(keys []uint64, moves []uint16) bool, snapshot func() (keys []uint64, moves []uint16)) error {
	cache, err := OpenCuckooCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	if blob, ok, loadErr := cache.Load(); loadErr == nil && ok {
		if keys, moves, decodeOK := DecodeCuckooSnapshot(blob); decodeOK {
			if restore(keys, moves) {
				return nil
			}
		}
	}

	keys, moves := snapshot()
	return cache.Save(EncodeCuckooSnapshot(keys, moves))
}
