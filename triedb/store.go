// Package triedb is the node store: it reads and writes trie nodes against
// a byte key/value backend, addressing them by hash, and resolves inline
// node references without a store round trip.
//
// It supports more than one configured backend. Reads consult the
// configured read backends in order and return the first hit; writes and
// batches are broadcast to every configured write backend. This ordered/
// broadcast shape exists so a future checkpoint overlay can sit in front of
// the durable backend without this package changing: the overlay is just
// another entry at the front of the read list and in the write list.
package triedb

import (
	"github.com/pkg/errors"

	"github.com/vladchernenko/go-mpt/accdb"
	"github.com/vladchernenko/go-mpt/trienode"
)

// Op is one instruction in an operation list committed atomically by Batch.
// Put writes Value under Key; a Del op (Del == true) only takes effect when
// the store is in checkpoint mode (see Store.SetCheckpoint) — outside
// checkpoint mode a Del op is a no-op, per spec §4.6.4.
type Op struct {
	Key   []byte
	Value []byte
	Del   bool
}

// Store is the multi-backend node store.
type Store struct {
	readBackends  []accdb.KeyValueStore
	writeBackends []accdb.KeyValueStore

	// checkpoint gates whether Del ops in a Batch are honored. It is unset
	// by default; a checkpoint/commit overlay built on top of this package
	// sets it during its staged-write phase. The core does not define what
	// "checkpoint mode" means beyond this single bit (spec §4.6.4).
	checkpoint bool
}

// New builds a node store over the given backend, used for both reads and
// writes. Use NewMulti to layer additional backends.
func New(backend accdb.KeyValueStore) *Store {
	return &Store{
		readBackends:  []accdb.KeyValueStore{backend},
		writeBackends: []accdb.KeyValueStore{backend},
	}
}

// NewMulti builds a node store with independently ordered read and write
// backend lists. Reads try readBackends in order and return the first hit;
// writes and batches go to every backend in writeBackends.
func NewMulti(readBackends, writeBackends []accdb.KeyValueStore) *Store {
	return &Store{readBackends: readBackends, writeBackends: writeBackends}
}

// SetCheckpoint toggles whether Del ops in a Batch are honored. See Op.Del.
func (s *Store) SetCheckpoint(on bool) { s.checkpoint = on }

// GetRaw consults the configured read backends in order, returning the
// first hit. Absence is not an error: (nil, nil) means "not found".
func (s *Store) GetRaw(key []byte) ([]byte, error) {
	for _, backend := range s.readBackends {
		v, err := backend.Get(key)
		if err != nil {
			return nil, errors.Wrapf(err, "triedb: get %x", key)
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

// PutRaw writes to every configured write backend.
func (s *Store) PutRaw(key, value []byte) error {
	for _, backend := range s.writeBackends {
		if err := backend.Put(key, value); err != nil {
			return errors.Wrapf(err, "triedb: put %x", key)
		}
	}
	return nil
}

// Batch applies ops atomically (per backend) to every configured write
// backend. A Del op is skipped unless the store is in checkpoint mode.
func (s *Store) Batch(ops []Op) error {
	batches := make([]accdb.Batch, len(s.writeBackends))
	for i, backend := range s.writeBackends {
		batches[i] = backend.NewBatch()
	}
	for _, op := range ops {
		if op.Del {
			if !s.checkpoint {
				continue
			}
			for _, b := range batches {
				if err := b.Delete(op.Key); err != nil {
					return errors.Wrapf(err, "triedb: batch delete %x", op.Key)
				}
			}
			continue
		}
		for _, b := range batches {
			if err := b.Put(op.Key, op.Value); err != nil {
				return errors.Wrapf(err, "triedb: batch put %x", op.Key)
			}
		}
	}
	for _, b := range batches {
		if err := b.Write(); err != nil {
			return errors.Wrap(err, "triedb: batch write")
		}
	}
	return nil
}

// Lookup resolves a NodeRef to its Node. An inline ref decodes directly with
// no store access; a hash ref is fetched with GetRaw then decoded. A missing
// hash-addressed node is reported via the returned bool.
func (s *Store) Lookup(ref trienode.NodeRef) (trienode.Node, bool, error) {
	if ref.IsInline() {
		return ref.Node, true, nil
	}
	if ref.IsZero() {
		return nil, false, nil
	}
	blob, err := s.GetRaw(ref.Hash)
	if err != nil {
		return nil, false, err
	}
	if blob == nil {
		return nil, false, nil
	}
	n, err := trienode.Decode(blob)
	if err != nil {
		return nil, false, errors.Wrapf(err, "triedb: decode node %x", ref.Hash)
	}
	return n, true, nil
}

// Has reports whether a hash-addressed node exists in any read backend,
// without decoding it. Used by the engine facade's checkRoot probe.
func (s *Store) Has(hash []byte) (bool, error) {
	for _, backend := range s.readBackends {
		ok, err := backend.Has(hash)
		if err != nil {
			return false, errors.Wrapf(err, "triedb: has %x", hash)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
