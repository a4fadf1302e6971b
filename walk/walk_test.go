package walk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladchernenko/go-mpt/accdb/memorydb"
	"github.com/vladchernenko/go-mpt/triedb"
	"github.com/vladchernenko/go-mpt/trienode"
)

func TestWalkNilRootReturnsNothing(t *testing.T) {
	store := triedb.New(memorydb.New())
	values, err := Walk(store, nil, func(n trienode.Node, path []byte) (Command, error) {
		t.Fatal("visitor must not be called for a nil root")
		return Stop(), nil
	})
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestWalkReturnDeliversValues(t *testing.T) {
	store := triedb.New(memorydb.New())
	leaf := &trienode.Leaf{Key: []byte{1, 2, 3}, Value: []byte("v")}
	values, err := Walk(store, leaf, func(n trienode.Node, path []byte) (Command, error) {
		return Return("found", n), nil
	})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "found", values[0])
	assert.Same(t, leaf, values[1])
}

func TestWalkStopPrunesWithoutValues(t *testing.T) {
	store := triedb.New(memorydb.New())
	leaf := &trienode.Leaf{Key: []byte{1}, Value: []byte("v")}
	values, err := Walk(store, leaf, func(n trienode.Node, path []byte) (Command, error) {
		return Stop(), nil
	})
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestWalkOnlyDescendsChosenEdge(t *testing.T) {
	store := triedb.New(memorydb.New())
	leafA := &trienode.Leaf{Key: []byte{9}, Value: []byte("a")}
	leafB := &trienode.Leaf{Key: []byte{9}, Value: []byte("b")}
	branch := &trienode.Branch{}
	branch.Slots[3] = trienode.NodeRef{Node: leafA}
	branch.Slots[7] = trienode.NodeRef{Node: leafB}

	visited := []trienode.Node{}
	_, err := Walk(store, branch, func(n trienode.Node, path []byte) (Command, error) {
		visited = append(visited, n)
		if n == trienode.Node(branch) {
			return Only(7), nil
		}
		return Return(n), nil
	})
	require.NoError(t, err)
	require.Len(t, visited, 2)
	assert.Same(t, leafB, visited[1])
}

func TestWalkNextFansOutAndFirstReturnWins(t *testing.T) {
	store := triedb.New(memorydb.New())
	leafA := &trienode.Leaf{Key: []byte{1}, Value: []byte("a")}
	leafB := &trienode.Leaf{Key: []byte{2}, Value: []byte("b")}
	branch := &trienode.Branch{}
	branch.Slots[0] = trienode.NodeRef{Node: leafA}
	branch.Slots[1] = trienode.NodeRef{Node: leafB}

	values, err := Walk(store, branch, func(n trienode.Node, path []byte) (Command, error) {
		if n == trienode.Node(branch) {
			return Next(), nil
		}
		leaf := n.(*trienode.Leaf)
		return Return(string(leaf.Value)), nil
	})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Contains(t, []string{"a", "b"}, values[0])
}

func TestWalkMissingHashedNodeErrors(t *testing.T) {
	store := triedb.New(memorydb.New())
	branch := &trienode.Branch{}
	branch.Slots[5] = trienode.NodeRef{Hash: make([]byte, trienode.HashLen)}

	_, err := Walk(store, branch, func(n trienode.Node, path []byte) (Command, error) {
		return Only(5), nil
	})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
