package triedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladchernenko/go-mpt/accdb"
	"github.com/vladchernenko/go-mpt/accdb/memorydb"
	"github.com/vladchernenko/go-mpt/trienode"
)

func TestStoreLookupInline(t *testing.T) {
	s := New(memorydb.New())
	leaf := &trienode.Leaf{Key: []byte{1, 2}, Value: []byte("v")}
	n, ok, err := s.Lookup(trienode.NodeRef{Node: leaf})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, trienode.Node(leaf), n)
}

func TestStoreLookupZeroRef(t *testing.T) {
	s := New(memorydb.New())
	n, ok, err := s.Lookup(trienode.NodeRef{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, n)
}

func TestStoreBatchAndLookupByHash(t *testing.T) {
	s := New(memorydb.New())
	leaf := &trienode.Leaf{Key: []byte{1, 2, 3}, Value: []byte("a value long enough to force hashing over the inlining threshold")}
	ref, hash, enc, hashed := trienode.RefToHash(leaf, false)
	require.True(t, hashed)

	require.NoError(t, s.Batch([]Op{{Key: hash, Value: enc}}))

	ok, err := s.Has(hash)
	require.NoError(t, err)
	assert.True(t, ok)

	n, ok, err := s.Lookup(ref)
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := n.TerminalValue()
	assert.Equal(t, leaf.Value, v)
}

func TestStoreBatchDelOnlyHonoredUnderCheckpoint(t *testing.T) {
	s := New(memorydb.New())
	key := []byte("a-node-hash-key-placeholder-0001")
	require.NoError(t, s.Batch([]Op{{Key: key, Value: []byte("x")}}))

	require.NoError(t, s.Batch([]Op{{Key: key, Del: true}}))
	ok, err := s.Has(key)
	require.NoError(t, err)
	assert.True(t, ok, "delete must be ignored outside checkpoint mode")

	s.SetCheckpoint(true)
	require.NoError(t, s.Batch([]Op{{Key: key, Del: true}}))
	ok, err = s.Has(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreMultiReadOrderFirstHitWins(t *testing.T) {
	primary := memorydb.New()
	fallback := memorydb.New()
	require.NoError(t, fallback.Put([]byte("k"), []byte("from-fallback")))
	require.NoError(t, primary.Put([]byte("k"), []byte("from-primary")))

	s := NewMulti([]accdb.KeyValueStore{primary, fallback}, []accdb.KeyValueStore{primary})
	v, err := s.GetRaw([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("from-primary"), v)

	v, err = s.GetRaw([]byte("missing-from-primary-only"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStoreMultiWriteBroadcast(t *testing.T) {
	a := memorydb.New()
	b := memorydb.New()
	s := NewMulti([]accdb.KeyValueStore{a}, []accdb.KeyValueStore{a, b})

	require.NoError(t, s.PutRaw([]byte("k"), []byte("v")))
	va, err := a.Get([]byte("k"))
	require.NoError(t, err)
	vb, err := b.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), va)
	assert.Equal(t, []byte("v"), vb)
}
