// Package trie implements a persistent, authenticated key/value map as a
// Modified Merkle-Patricia Trie: every distinct set of (key, value) pairs
// has exactly one canonical root hash, and any two tries holding the same
// pairs are byte-identical node for node.
//
// Trie is the engine facade (spec component G): it owns the current root,
// serializes mutations through a binary semaphore, and dispatches reads and
// writes to the node store in package triedb. The core algorithm itself —
// pathfinder.go, mutator.go, delete.go — is synchronous and free of any
// locking or context concern; this file is the only place that matters.
package trie

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/vladchernenko/go-mpt/nibble"
	"github.com/vladchernenko/go-mpt/triedb"
	"github.com/vladchernenko/go-mpt/trienode"
	"github.com/vladchernenko/go-mpt/walk"
)

// Trie is a Merkle-Patricia Trie sitting on top of a node store. It is safe
// for concurrent use: Put, Del and Batch hold a one-slot semaphore for the
// duration of the mutation, serializing writers the way a single exclusive
// lock would, while Get and CheckRoot never block on it.
type Trie struct {
	root trienode.Node
	hash []byte // nil only for the empty trie

	store *triedb.Store
	lock  *semaphore.Weighted
}

// New opens a trie at the given root. A root of nil or trienode.EmptyRootHash
// opens the empty trie. Any other root must be exactly 32 bytes or
// ErrInvalidRootLength is returned. The node it names is resolved from the
// store immediately; a *MissingNodeError is returned if it is absent.
func New(store *triedb.Store, root []byte) (*Trie, error) {
	t := &Trie{store: store, lock: semaphore.NewWeighted(1)}
	if root == nil || bytesEqual(root, trienode.EmptyRootHash) {
		return t, nil
	}
	if len(root) != trienode.HashLen {
		return nil, ErrInvalidRootLength
	}
	t.hash = root
	n, ok, err := store.Lookup(trienode.NodeRef{Hash: root})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &MissingNodeError{NodeHash: root}
	}
	t.root = n
	return t, nil
}

// NewEmpty opens a fresh, empty trie over store.
func NewEmpty(store *triedb.Store) *Trie {
	return &Trie{store: store, lock: semaphore.NewWeighted(1)}
}

// Root returns the trie's current root hash. For the empty trie this is
// trienode.EmptyRootHash.
func (t *Trie) Root() []byte {
	if t.root == nil {
		return trienode.EmptyRootHash
	}
	return t.hash
}

// SetCheckpoint toggles whether deletions issue real Del ops against the
// store's write backends, rather than being dropped. See triedb.Op.Del.
func (t *Trie) SetCheckpoint(on bool) { t.store.SetCheckpoint(on) }

// Get returns the value stored under key, or (nil, nil) if key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	if t.root == nil {
		return nil, nil
	}
	fr, err := find(t.store, t.root, nibble.ToNibbles(key))
	if err != nil {
		return nil, err
	}
	if fr.node == nil {
		return nil, nil
	}
	v, _ := fr.node.TerminalValue()
	return v, nil
}

// Put inserts or overwrites key with value. An empty value deletes key,
// matching the source's convention that a zero-length value is not
// representable as a distinct trie entry.
func (t *Trie) Put(key, value []byte) error {
	if err := t.lock.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer t.lock.Release(1)

	if len(value) == 0 {
		return t.delLocked(key)
	}
	root, ops, err := tryPut(t.store, t.root, key, value)
	if err != nil {
		return err
	}
	return t.commit(root, ops)
}

// Del removes key. Deleting an absent key is a no-op.
func (t *Trie) Del(key []byte) error {
	if err := t.lock.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer t.lock.Release(1)
	return t.delLocked(key)
}

// GetRaw reads a raw, hash-addressed blob directly from the underlying node
// store, bypassing the trie structure entirely. Used by callers that keep
// their own auxiliary data alongside trie nodes in the same backend.
func (t *Trie) GetRaw(key []byte) ([]byte, error) {
	return t.store.GetRaw(key)
}

// PutRaw writes a raw blob directly to the underlying node store's write
// backends, bypassing the trie structure entirely. It does not touch Root
// and is not serialized against Put/Del/Batch.
func (t *Trie) PutRaw(key, value []byte) error {
	return t.store.PutRaw(key, value)
}

// Batch applies ops to the underlying node store as a single unit, holding
// the same write semaphore as Put and Del so it cannot interleave with a
// concurrent mutation. Unlike Put/Del it does not touch Root: ops address
// the store directly and are meant for maintenance work (e.g. replaying a
// checkpoint) rather than trie mutation.
func (t *Trie) Batch(ops []triedb.Op) error {
	if err := t.lock.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer t.lock.Release(1)
	return t.store.Batch(ops)
}

func (t *Trie) delLocked(key []byte) error {
	root, ops, err := tryDel(t.store, t.root, key)
	if err != nil {
		return err
	}
	return t.commit(root, ops)
}

func (t *Trie) commit(root trienode.Node, ops []triedb.Op) error {
	if len(ops) > 0 {
		if err := t.store.Batch(ops); err != nil {
			return err
		}
	}
	t.root = root
	if root == nil {
		t.hash = nil
		return nil
	}
	_, hash, _, _ := trienode.RefToHash(root, true)
	t.hash = hash
	return nil
}

// CheckRoot reports whether a node is stored under the trie's current root
// hash in any read backend, reporting a backend error as a plain false. The
// stored bytes are not decoded. It is a health probe, not a correctness
// check: a true result means the root is present, nothing about its
// descendants.
func (t *Trie) CheckRoot() bool {
	if t.root == nil {
		return true
	}
	ok, err := t.store.Has(t.hash)
	return err == nil && ok
}

// Copy returns a new Trie sharing the same store and positioned at the same
// root. Because nodes are never mutated in place (only ever replaced), the
// copy and the original can be mutated independently without affecting each
// other's view of the trie as of the moment of the copy.
func (t *Trie) Copy() *Trie {
	return &Trie{
		root:  t.root,
		hash:  t.hash,
		store: t.store,
		lock:  semaphore.NewWeighted(1),
	}
}

// KV is one key/value pair delivered by ReadStream.
type KV struct {
	Key   []byte
	Value []byte
}

// ReadStream enumerates every key/value pair in the trie, closing the
// returned channel when done or when ctx is cancelled. This is the
// channel-based counterpart to a callback-driven read stream: the consumer
// ranges over the channel instead of being invoked from inside the walk,
// and can stop early by cancelling ctx and abandoning the range. Abandoning
// the range without cancelling ctx leaves the walk blocked on its next send.
//
// The walk that drives it is the traversal engine (component D) itself,
// with a visitor that emits a KV for every terminal value it passes and
// always answers walk.Next() — so branch fan-out runs with the same
// concurrency component D gives every other caller, and nothing here
// re-derives edge traversal or missing-node handling.
func (t *Trie) ReadStream(ctx context.Context) <-chan KV {
	out := make(chan KV)
	go func() {
		defer close(out)
		if t.root == nil {
			return
		}
		visitor := func(n trienode.Node, path []byte) (walk.Command, error) {
			select {
			case <-ctx.Done():
				return walk.Stop(), ctx.Err()
			default:
			}
			if v, ok := n.TerminalValue(); ok {
				select {
				case out <- KV{Key: nibble.FromNibbles(fullKey(n, path)), Value: v}:
				case <-ctx.Done():
					return walk.Stop(), ctx.Err()
				}
			}
			return walk.Next(), nil
		}
		_, _ = walk.Walk(t.store, t.root, visitor)
	}()
	return out
}

// fullKey reconstructs the complete nibble key for a terminal value: path is
// everything consumed down to n, plus n's own key if n is a leaf.
func fullKey(n trienode.Node, path []byte) []byte {
	if leaf, ok := n.(*trienode.Leaf); ok {
		full := make([]byte, 0, len(path)+len(leaf.Key))
		full = append(full, path...)
		full = append(full, leaf.Key...)
		return full
	}
	return path
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
