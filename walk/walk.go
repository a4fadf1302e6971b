// Package walk implements the generic depth-first traversal engine (spec
// component D): a driver that calls a caller-supplied visitor at each node
// and lets the visitor steer the walk through a small command value rather
// than through shared mutable callbacks.
//
// The visitor is pure with respect to traversal state — it reports what it
// wants (Next, Only, Return or Stop) and the driver interprets it. This is
// the typed-rewrite of the source's mutable walk-controller struct: a
// command enum returned by the visitor, interpreted by the driver, removes
// the shared mutable state without losing expressiveness (spec §9).
package walk

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vladchernenko/go-mpt/trienode"
	"github.com/vladchernenko/go-mpt/triedb"
)

// ErrNodeNotFound is returned when a hash-addressed node referenced from a
// valid root cannot be resolved by the store. Callers that need the path
// and hash for diagnostics wrap this with that context.
var ErrNodeNotFound = errors.New("walk: node not found")

type kind int

const (
	kindStop kind = iota
	kindNext
	kindOnly
	kindReturn
)

// Command is the value a Visitor returns to steer the walk.
type Command struct {
	kind   kind
	index  int
	values []any
}

// Next descends into every outgoing edge of the current node. Descents run
// concurrently; a visitor must not depend on the order children are visited.
func Next() Command { return Command{kind: kindNext} }

// Only descends into the single edge whose first path nibble is index,
// pruning every other edge of the current node. Used for a branch node
// where only one child is on the path to the key being searched for.
func Only(index int) Command { return Command{kind: kindOnly, index: index} }

// Return aborts the walk, delivering values to Walk's caller. Once one
// descent returns, sibling descents still in flight become no-ops — their
// results are discarded.
func Return(values ...any) Command { return Command{kind: kindReturn, values: values} }

// Stop prunes the current subtree without affecting siblings.
func Stop() Command { return Command{kind: kindStop} }

// Visitor is called once per node visited, with the node itself and the
// accumulated nibble path from the root to it.
type Visitor func(n trienode.Node, path []byte) (Command, error)

// Walk runs visit depth-first starting at root, resolving node references
// through store as needed. It returns the values passed to the first
// Return encountered, or nil if the walk completes without one. A nil root
// (the empty trie) yields (nil, nil) without invoking visit.
func Walk(store *triedb.Store, root trienode.Node, visit Visitor) ([]any, error) {
	if root == nil {
		return nil, nil
	}
	// Once any visit has answered Return, every later visit anywhere in the
	// walk is a no-op that prunes its subtree.
	var done int32
	guarded := func(n trienode.Node, path []byte) (Command, error) {
		if atomic.LoadInt32(&done) != 0 {
			return Stop(), nil
		}
		cmd, err := visit(n, path)
		if err == nil && cmd.kind == kindReturn {
			atomic.StoreInt32(&done, 1)
		}
		return cmd, err
	}
	values, _, err := step(store, root, nil, guarded)
	return values, err
}

func step(store *triedb.Store, n trienode.Node, path []byte, visit Visitor) ([]any, bool, error) {
	cmd, err := visit(n, path)
	if err != nil {
		return nil, false, err
	}
	switch cmd.kind {
	case kindReturn:
		return cmd.values, true, nil
	case kindStop:
		return nil, false, nil
	case kindOnly:
		for _, e := range n.Edges() {
			if len(e.Path) == 1 && int(e.Path[0]) == cmd.index {
				return descend(store, e, path, visit)
			}
		}
		return nil, false, nil
	case kindNext:
		edges := n.Edges()
		if len(edges) == 0 {
			return nil, false, nil
		}
		if len(edges) == 1 {
			return descend(store, edges[0], path, visit)
		}
		return fanOut(store, edges, path, visit)
	default:
		return nil, false, nil
	}
}

func descend(store *triedb.Store, e trienode.Edge, path []byte, visit Visitor) ([]any, bool, error) {
	child, ok, err := store.Lookup(e.Ref)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrNodeNotFound
	}
	childPath := appendPath(path, e.Path)
	return step(store, child, childPath, visit)
}

func appendPath(path, edge []byte) []byte {
	joined := make([]byte, 0, len(path)+len(edge))
	joined = append(joined, path...)
	joined = append(joined, edge...)
	return joined
}

type fanResult struct {
	values   []any
	returned bool
	err      error
}

// fanOut descends into every edge concurrently. Order is irrelevant to
// correctness; the returned flag lets in-flight siblings short-circuit once one
// of them has already produced a Return.
func fanOut(store *triedb.Store, edges []trienode.Edge, path []byte, visit Visitor) ([]any, bool, error) {
	results := make([]fanResult, len(edges))
	var wg sync.WaitGroup
	var returned int32

	for i, e := range edges {
		wg.Add(1)
		go func(i int, e trienode.Edge) {
			defer wg.Done()
			if atomic.LoadInt32(&returned) != 0 {
				return
			}
			values, ret, err := descend(store, e, path, visit)
			if err != nil {
				results[i] = fanResult{err: err}
				return
			}
			if ret {
				atomic.StoreInt32(&returned, 1)
			}
			results[i] = fanResult{values, ret, nil}
		}(i, e)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, false, r.err
		}
	}
	for _, r := range results {
		if r.returned {
			return r.values, true, nil
		}
	}
	return nil, false, nil
}
