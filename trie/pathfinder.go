package trie

import (
	"github.com/vladchernenko/go-mpt/nibble"
	"github.com/vladchernenko/go-mpt/triedb"
	"github.com/vladchernenko/go-mpt/trienode"
	"github.com/vladchernenko/go-mpt/walk"
)

// findResult is what component E (the path finder) hands to the mutator: the
// node at the end of the walk (nil on a mismatch), the unmatched nibble
// remainder, and every frame actually descended through, root first. depth
// on each frame is how many nibbles of the search key were consumed to
// reach that node — the mutator uses it to recover which branch slot a
// child occupies without threading a parallel mutable key array through the
// rewrite, the way the source's walk controller does.
type findResult struct {
	node      trienode.Node
	remainder []byte
	stack     []frame
}

// find walks from root toward key (already expanded to nibbles), driven by
// the traversal engine in package walk. It never mutates anything; put and
// del both start by calling this and then transform the returned stack.
func find(store *triedb.Store, root trienode.Node, key []byte) (*findResult, error) {
	if root == nil {
		return &findResult{remainder: key}, nil
	}

	var (
		stack  []frame
		result findResult
	)
	visitor := func(n trienode.Node, path []byte) (walk.Command, error) {
		stack = append(stack, frame{node: n, depth: len(path)})
		remainder := key[len(path):]

		switch tn := n.(type) {
		case *trienode.Branch:
			if len(remainder) == 0 {
				result = findResult{node: n, remainder: remainder, stack: snapshot(stack)}
				return walk.Return(), nil
			}
			idx := int(remainder[0])
			if tn.Slots[idx].IsZero() {
				result = findResult{node: nil, remainder: remainder, stack: snapshot(stack)}
				return walk.Return(), nil
			}
			return walk.Only(idx), nil

		case *trienode.Leaf:
			if nibble.Equal(tn.Key, remainder) {
				result = findResult{node: n, remainder: nil, stack: snapshot(stack)}
			} else {
				result = findResult{node: nil, remainder: remainder, stack: snapshot(stack)}
			}
			return walk.Return(), nil

		case *trienode.Extension:
			if len(remainder) >= len(tn.Key) && nibble.Equal(tn.Key, remainder[:len(tn.Key)]) {
				return walk.Next(), nil
			}
			result = findResult{node: nil, remainder: remainder, stack: snapshot(stack)}
			return walk.Return(), nil

		default:
			return walk.Stop(), nil
		}
	}

	if _, err := walk.Walk(store, root, visitor); err != nil {
		return nil, err
	}
	return &result, nil
}

func snapshot(stack []frame) []frame {
	out := make([]frame, len(stack))
	copy(out, stack)
	return out
}
