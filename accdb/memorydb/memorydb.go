// Package memorydb is an ephemeral accdb.KeyValueStore backed by a plain map,
// used for tests.
package memorydb

import (
	"errors"
	"sync"

	"github.com/vladchernenko/go-mpt/accdb"
)

var errMemDBClosed = errors.New("memorydb: closed")

// MemDB is an ephemeral key-value store. Apart from basic data storage
// functionality it also supports batch writes.
type MemDB struct {
	db     map[string][]byte
	lock   sync.RWMutex
	closed bool
}

// New returns a wrapped map with all the required database interface methods
// implemented.
func New() *MemDB {
	return &MemDB{
		db: make(map[string][]byte),
	}
}

func (db *MemDB) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.closed {
		return false, errMemDBClosed
	}
	_, ok := db.db[string(key)]
	return ok, nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.closed {
		return nil, errMemDBClosed
	}
	if v, ok := db.db[string(key)]; ok {
		return append([]byte{}, v...), nil
	}
	return nil, nil
}

func (db *MemDB) Put(key, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return errMemDBClosed
	}
	db.db[string(key)] = append([]byte{}, value...)
	return nil
}

func (db *MemDB) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return errMemDBClosed
	}
	delete(db.db, string(key))
	return nil
}

func (db *MemDB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.closed = true
	db.db = nil
	return nil
}

func (db *MemDB) NewBatch() accdb.Batch {
	return &memBatch{db: db}
}

type keyvalue struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct {
	db   *MemDB
	ops  []keyvalue
	size int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, keyvalue{append([]byte{}, key...), append([]byte{}, value...), false})
	b.size += len(key) + len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, keyvalue{append([]byte{}, key...), nil, true})
	b.size += len(key)
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()
	if b.db.closed {
		return errMemDBClosed
	}
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.db, string(op.key))
			continue
		}
		b.db.db[string(op.key)] = op.value
	}
	return nil
}

func (b *memBatch) Replay(w accdb.KeyValueWriter) error {
	for _, op := range b.ops {
		var err error
		if op.delete {
			err = w.Delete(op.key)
		} else {
			err = w.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *memBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}
