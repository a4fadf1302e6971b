// Package leveldb is a durable accdb.KeyValueStore backed by
// github.com/syndtr/goleveldb, the on-disk backend a deployment wires in
// place of memorydb for anything that must survive a restart.
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/vladchernenko/go-mpt/accdb"
)

// Options configures the underlying leveldb handle.
type Options struct {
	CacheSizeMB        int
	OpenFilesCacheSize int
}

// LevelDB wraps a goleveldb handle as an accdb.KeyValueStore.
type LevelDB struct {
	db *leveldb.DB
}

// New opens (creating if absent) a leveldb database at path.
func New(path string, opts Options) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		BlockCacheCapacity:     opts.CacheSizeMB * opt.MiB,
		OpenFilesCacheCapacity: opts.OpenFilesCacheSize,
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMem opens an in-memory leveldb instance, useful for tests that want
// leveldb's exact encoding behavior without touching disk.
func NewMem() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return v, err
}

func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

func (l *LevelDB) NewBatch() accdb.Batch {
	return &ldbBatch{db: l.db, b: new(leveldb.Batch)}
}

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *ldbBatch) ValueSize() int { return b.size }

func (b *ldbBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *ldbBatch) Replay(w accdb.KeyValueWriter) error {
	return b.b.Replay(&replayer{w: w})
}

func (b *ldbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

type replayer struct {
	w   accdb.KeyValueWriter
	err error
}

func (r *replayer) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = r.w.Put(key, value)
}

func (r *replayer) Delete(key []byte) {
	if r.err != nil {
		return
	}
	r.err = r.w.Delete(key)
}
