package trie

import (
	"github.com/vladchernenko/go-mpt/nibble"
	"github.com/vladchernenko/go-mpt/triedb"
	"github.com/vladchernenko/go-mpt/trienode"
)

// frame is one entry of the stack component E returns and component F
// rewrites: a node plus the number of nibbles consumed, from the start of
// the mutation's key, to reach it. Tracking depth directly off each frame
// (rather than mutating a shared running key array, as the source does)
// is how this port avoids the source's `keyRemainder !== 0` class of bug —
// spec §9 flags that comparison as always-truthy; the corrected
// `len(remainder) != 0` check is what pathfinder.go already performs, and
// depth-by-construction sidesteps the need for a parallel mutable key copy
// entirely.
type frame struct {
	node  trienode.Node
	depth int
}

// tryPut is the mutator half of the engine facade's Put. value must be
// non-empty; Trie.Put delegates an empty value to tryDel.
func tryPut(store *triedb.Store, root trienode.Node, key, value []byte) (trienode.Node, []triedb.Op, error) {
	nib := nibble.ToNibbles(key)

	if root == nil {
		leaf := &trienode.Leaf{Key: nib, Value: value}
		return save(store, []frame{{node: leaf, depth: 0}}, nib)
	}

	fr, err := find(store, root, nib)
	if err != nil {
		return nil, nil, err
	}
	frames := append([]frame{}, fr.stack...)
	last := frames[len(frames)-1]
	frames = frames[:len(frames)-1]

	var tail []frame
	var extraOps []triedb.Op

	switch n := last.node.(type) {
	case *trienode.Branch:
		if len(fr.remainder) == 0 {
			nb := &trienode.Branch{Slots: n.Slots, Value: value}
			tail = []frame{{node: nb, depth: last.depth}}
		} else {
			leaf := &trienode.Leaf{Key: append([]byte{}, fr.remainder[1:]...), Value: value}
			nb := &trienode.Branch{Slots: n.Slots, Value: n.Value}
			tail = []frame{
				{node: nb, depth: last.depth},
				{node: leaf, depth: last.depth + 1},
			}
		}

	case *trienode.Leaf:
		if nibble.Equal(n.Key, fr.remainder) {
			tail = []frame{{node: &trienode.Leaf{Key: n.Key, Value: value}, depth: last.depth}}
		} else {
			t, ops := splitOnDiverge(store, n.Key, n.Value, trienode.NodeRef{}, false, last.depth, fr.remainder, value)
			tail, extraOps = t, ops
		}

	case *trienode.Extension:
		t, ops := splitOnDiverge(store, n.Key, nil, n.Child, true, last.depth, fr.remainder, value)
		tail, extraOps = t, ops
	}

	frames = append(frames, tail...)
	root2, ops, err := save(store, frames, nib)
	if err != nil {
		return nil, nil, err
	}
	return root2, append(extraOps, ops...), nil
}

// splitOnDiverge implements the "otherwise" row of the insert case table
// (§4.6.1): last (a leaf or an extension) and the new key diverge partway
// through last's key. It returns the frames to push in place of last — an
// Extension over the shared prefix (only if that prefix is non-empty)
// followed by the new Branch — plus any store ops needed for the branch's
// new children, which are resolved immediately since nothing deeper will
// ever revisit them.
func splitOnDiverge(store *triedb.Store, lastKey, lastValue []byte, lastChild trienode.NodeRef, lastIsExtension bool, baseDepth int, remainder, newValue []byte) ([]frame, []triedb.Op) {
	m := nibble.CommonPrefixLen(lastKey, remainder)
	branch := &trienode.Branch{}
	var ops []triedb.Op

	resolve := func(n trienode.Node) trienode.NodeRef {
		if ref, ok := n.(inlineRefNode); ok {
			// Untouched content (an extension's child, absorbed as-is) —
			// propagate its existing ref rather than re-hashing it.
			return ref.ref
		}
		ref, hash, enc, hashed := trienode.RefToHash(n, false)
		if hashed {
			ops = append(ops, triedb.Op{Key: hash, Value: enc})
		}
		return ref
	}

	switch {
	case m == len(remainder):
		// The new key terminates exactly at the branch; last always has a
		// surviving suffix here since the equal-keys case was handled by
		// the caller before ever reaching a split.
		branch.Value = newValue
		idx := lastKey[m]
		branch.Slots[idx] = resolve(survivorOf(lastIsExtension, lastKey[m+1:], lastValue, lastChild))

	case m == len(lastKey):
		// last terminates exactly at the branch (only possible when last is
		// a leaf — an extension's key is never a full prefix of a mismatched
		// remainder, since that would have matched via Next() in pathfinder).
		branch.Value = lastValue
		idx := remainder[m]
		branch.Slots[idx] = resolve(&trienode.Leaf{Key: append([]byte{}, remainder[m+1:]...), Value: newValue})

	default:
		lidx, ridx := lastKey[m], remainder[m]
		branch.Slots[lidx] = resolve(survivorOf(lastIsExtension, lastKey[m+1:], lastValue, lastChild))
		branch.Slots[ridx] = resolve(&trienode.Leaf{Key: append([]byte{}, remainder[m+1:]...), Value: newValue})
	}

	var frames []frame
	branchDepth := baseDepth + m
	if m > 0 {
		frames = append(frames, frame{node: &trienode.Extension{Key: append([]byte{}, lastKey[:m]...), Child: trienode.NodeRef{}}, depth: baseDepth})
	}
	frames = append(frames, frame{node: branch, depth: branchDepth})
	return frames, ops
}

// survivorOf builds the node that last's surviving suffix becomes once its
// branch-index nibble is stripped off: a leaf (possibly zero-key) if last
// was a leaf, or — per §4.6.1.4 — the branch absorbs last's child reference
// directly (no zero-key extension, since extensions may never have an empty
// key) if last was an extension with nothing left of its own key.
func survivorOf(lastIsExtension bool, suffix, value []byte, child trienode.NodeRef) trienode.Node {
	if !lastIsExtension {
		return &trienode.Leaf{Key: suffix, Value: value}
	}
	if len(suffix) == 0 {
		return inlineRefNode{child}
	}
	return &trienode.Extension{Key: suffix, Child: child}
}

// inlineRefNode lets survivorOf hand back an already-resolved NodeRef (an
// extension's child, untouched by this mutation) through the same
// `trienode.Node` return type as a freshly built leaf/extension, without
// forcing a redundant re-resolve. resolve() in splitOnDiverge special-cases
// it to avoid re-hashing content that never changed.
type inlineRefNode struct{ ref trienode.NodeRef }

func (n inlineRefNode) Serialize() []byte {
	if n.ref.IsInline() {
		return n.ref.Node.Serialize()
	}
	panic("trie: inlineRefNode must only be resolved via its ref, never serialized directly")
}
func (n inlineRefNode) Hash() []byte                  { return n.ref.Hash }
func (n inlineRefNode) Edges() []trienode.Edge        { return nil }
func (n inlineRefNode) TerminalValue() ([]byte, bool) { return nil, false }

// save is the bottom-up re-hash pass (§4.6.3): it walks frames from the
// deepest node to the root, attaching each node's freshly computed ref into
// its parent, applying the inlining threshold everywhere except at the
// root (which is always hash-addressed), and collecting the resulting
// store ops. key is the full nibble path of the mutation, used to recover
// which branch slot a given depth corresponds to.
func save(store *triedb.Store, frames []frame, key []byte) (trienode.Node, []triedb.Op, error) {
	var (
		ops     []triedb.Op
		lastRef *trienode.NodeRef
		newRoot trienode.Node
	)
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		topLevel := i == 0
		n := fr.node

		if ref, ok := n.(inlineRefNode); ok {
			// Already resolved (an untouched extension child); nothing to
			// re-hash, just propagate it upward.
			r := ref.ref
			lastRef = &r
			continue
		}

		switch tn := n.(type) {
		case *trienode.Extension:
			if lastRef != nil {
				cloned := *tn
				cloned.Child = *lastRef
				tn = &cloned
			}
			n = tn
		case *trienode.Branch:
			if lastRef != nil {
				cloned := *tn
				idx := key[fr.depth]
				cloned.Slots[idx] = *lastRef
				tn = &cloned
			}
			n = tn
		}

		ref, hash, enc, hashed := trienode.RefToHash(n, topLevel)
		if hashed {
			ops = append(ops, triedb.Op{Key: hash, Value: enc})
		}
		lastRef = &ref
		newRoot = n
	}
	return newRoot, ops, nil
}
