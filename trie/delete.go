package trie

import (
	"github.com/vladchernenko/go-mpt/nibble"
	"github.com/vladchernenko/go-mpt/triedb"
	"github.com/vladchernenko/go-mpt/trienode"
)

// tryDel is the mutator half of the engine facade's Del (§4.6.2). Deleting a
// key absent from the trie is a no-op, matching Put's idempotence at the
// root-hash level.
//
// The source's case table states that an absent parent always collapses the
// trie to empty. Taken literally that is wrong whenever the matched node is
// a branch with more than one surviving edge after the clear — which can
// only be a root branch, since every non-root branch by construction has a
// parent. The corrected reading, confirmed against how a canonical trie
// actually behaves: an absent parent empties the trie only when the matched
// node is a leaf (there is nothing else left); a root branch instead runs
// the normal clear-then-collapse sequence with parent treated as absent.
// This is recorded as an open-question resolution in the design notes.
func tryDel(store *triedb.Store, root trienode.Node, key []byte) (trienode.Node, []triedb.Op, error) {
	if root == nil {
		return nil, nil, nil
	}
	nib := nibble.ToNibbles(key)

	fr, err := find(store, root, nib)
	if err != nil {
		return nil, nil, err
	}
	if fr.node == nil {
		return root, nil, nil
	}

	frames := append([]frame{}, fr.stack...)
	last := frames[len(frames)-1]
	frames = frames[:len(frames)-1]

	var parent *frame
	if len(frames) > 0 {
		p := frames[len(frames)-1]
		parent = &p
		frames = frames[:len(frames)-1]
	}

	var ops []triedb.Op
	var effLast *trienode.Branch
	var effDepth int

	switch n := last.node.(type) {
	case *trienode.Branch:
		cloned := *n
		cloned.Value = nil
		effLast = &cloned
		effDepth = last.depth

	case *trienode.Leaf:
		if len(n.Serialize()) >= trienode.HashLen {
			ops = append(ops, triedb.Op{Key: n.Hash(), Del: true})
		}
		if parent == nil {
			// The leaf was the entire trie.
			return nil, ops, nil
		}
		parentBranch := parent.node.(*trienode.Branch)
		cloned := *parentBranch
		idx := nib[parent.depth]
		cloned.Slots[idx] = trienode.NodeRef{}
		effLast = &cloned
		effDepth = parent.depth

		// Promote grandparent to parent for the collapse step below.
		if len(frames) > 0 {
			gp := frames[len(frames)-1]
			parent = &gp
			frames = frames[:len(frames)-1]
		} else {
			parent = nil
		}
	}

	tail, extraOps, err := collapse(store, effLast, effDepth, parent, nib)
	if err != nil {
		return nil, nil, err
	}
	ops = append(ops, extraOps...)

	if tail == nil {
		// Branch fully exhausted with no parent: the trie becomes empty.
		return nil, ops, nil
	}

	frames = append(frames, tail...)
	newRoot, saveOps, err := save(store, frames, nib)
	if err != nil {
		return nil, nil, err
	}
	return newRoot, append(ops, saveOps...), nil
}

// collapse implements the branch elimination rule (§4.6.2 step 5) for a
// branch whose value and/or one slot was just cleared. It returns the
// frames to push in branch's place: nil means the branch is fully empty and
// (when parent is also nil) the trie becomes empty.
func collapse(store *triedb.Store, branch *trienode.Branch, branchDepth int, parent *frame, key []byte) ([]frame, []triedb.Op, error) {
	count, idx := branch.Occupied()
	hasValue := branch.Value != nil

	switch {
	case count+boolToInt(hasValue) >= 2:
		tail := []frame{{node: branch, depth: branchDepth}}
		if parent != nil {
			tail = append([]frame{*parent}, tail...)
		}
		return tail, nil, nil

	case count == 0 && hasValue:
		// Only the branch's own value survives: it becomes a bare leaf.
		return collapseSurvivor(&trienode.Leaf{Key: nil, Value: branch.Value}, trienode.NodeRef{}, 0, branchDepth, parent, key, false)

	case count == 1 && !hasValue:
		ref := branch.Slots[idx]
		child, ok, err := store.Lookup(ref)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, &MissingNodeError{NodeHash: ref.Hash, Path: key[:branchDepth]}
		}
		return collapseSurvivor(child, ref, byte(idx), branchDepth, parent, key, true)

	default:
		// count == 0 && !hasValue: cannot occur for a branch built by put,
		// since every branch this package constructs starts with at least
		// two survivors and a single delete removes exactly one.
		if parent == nil {
			return nil, nil, nil
		}
		tail := []frame{*parent}
		return tail, nil, nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// collapseSurvivor applies the four rows of the matrix in §4.6.2: the lone
// survivor (a branch-slot child, reached via branch index b, or the
// branch's own value with no b at all) merges with parent if parent is an
// extension, or simply replaces branch's position otherwise.
func collapseSurvivor(survivor trienode.Node, survivorRef trienode.NodeRef, b byte, branchDepth int, parent *frame, key []byte, viaSlot bool) ([]frame, []triedb.Op, error) {
	if parent == nil {
		return mergeUnderNone(survivor, survivorRef, branchDepth, viaSlot, b), nil, nil
	}

	switch p := parent.node.(type) {
	case *trienode.Branch:
		tail := mergeUnderNone(survivor, survivorRef, branchDepth, viaSlot, b)
		return append([]frame{*parent}, tail...), nil, nil

	case *trienode.Extension:
		switch sv := survivor.(type) {
		case *trienode.Branch:
			newKey := p.Key
			if viaSlot {
				newKey = append(append([]byte{}, p.Key...), b)
			}
			newExt := &trienode.Extension{Key: newKey, Child: survivorRef}
			return []frame{{node: newExt, depth: parent.depth}}, nil, nil
		case *trienode.Leaf:
			mergedKey := append(append([]byte{}, p.Key...), sv.Key...)
			if viaSlot {
				mergedKey = append(append([]byte{}, p.Key...), append([]byte{b}, sv.Key...)...)
			}
			merged := &trienode.Leaf{Key: mergedKey, Value: sv.Value}
			return []frame{{node: merged, depth: parent.depth}}, nil, nil
		case *trienode.Extension:
			mergedKey := append(append([]byte{}, p.Key...), sv.Key...)
			if viaSlot {
				mergedKey = append(append([]byte{}, p.Key...), append([]byte{b}, sv.Key...)...)
			}
			merged := &trienode.Extension{Key: mergedKey, Child: sv.Child}
			return []frame{{node: merged, depth: parent.depth}}, nil, nil
		}
	}
	return nil, nil, nil
}

// mergeUnderNone handles the "none or branch parent" row: the survivor
// takes branch's old position directly. A branch survivor is wrapped in a
// one-nibble extension (unless reached via the value row, in which case
// there is no nibble to wrap); a leaf/extension survivor has b unshifted
// onto its own key.
func mergeUnderNone(survivor trienode.Node, survivorRef trienode.NodeRef, branchDepth int, viaSlot bool, b byte) []frame {
	switch sv := survivor.(type) {
	case *trienode.Branch:
		if !viaSlot {
			// Unreachable: a bare branch cannot be the branch's own value.
			return []frame{{node: sv, depth: branchDepth}}
		}
		ext := &trienode.Extension{Key: []byte{b}, Child: survivorRef}
		return []frame{{node: ext, depth: branchDepth}}
	case *trienode.Leaf:
		key := sv.Key
		if viaSlot {
			key = append([]byte{b}, sv.Key...)
		}
		return []frame{{node: &trienode.Leaf{Key: key, Value: sv.Value}, depth: branchDepth}}
	case *trienode.Extension:
		key := sv.Key
		if viaSlot {
			key = append([]byte{b}, sv.Key...)
		}
		return []frame{{node: &trienode.Extension{Key: key, Child: sv.Child}, depth: branchDepth}}
	}
	return nil
}
