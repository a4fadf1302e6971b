// Package trienode implements the three node variants of a Modified
// Merkle-Patricia Trie — Leaf, Extension and Branch — behind one interface,
// plus their RLP serialization and hex-prefix key encoding.
//
// The polymorphism is a closed, explicit set of struct types rather than an
// open interface hierarchy: a Branch slot is a NodeRef, which is either a
// 32-byte hash (the child lives in the node store) or an inlined Node
// itself (when its own serialization would be shorter than a hash).
package trienode

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// HashLen is the size, in bytes, of a stored node reference.
const HashLen = 32

// Node is the uniform interface shared by Leaf, Extension and Branch.
type Node interface {
	// Serialize produces the canonical RLP encoding of the node.
	Serialize() []byte
	// Hash returns the 32-byte Keccak256 digest of Serialize().
	Hash() []byte
	// Edges enumerates this node's outgoing edges. Leaf has none, Extension
	// has exactly one, Branch has one per occupied slot.
	Edges() []Edge
	// TerminalValue returns the value stored at this node, if any.
	TerminalValue() ([]byte, bool)
}

// Edge is one outgoing edge of an Extension or Branch: the nibbles consumed
// to reach it, and the reference to the node on the other side.
type Edge struct {
	Path []byte
	Ref  NodeRef
}

// NodeRef is a child pointer: either empty, a 32-byte hash naming a node in
// the store, or an inlined Node carried directly (valid only when that
// node's own serialization is shorter than HashLen bytes, per the
// inlining threshold invariant).
type NodeRef struct {
	Hash []byte
	Node Node
}

// IsZero reports whether the slot this ref occupies is empty.
func (r NodeRef) IsZero() bool { return r.Hash == nil && r.Node == nil }

// IsInline reports whether the ref carries a decoded node directly rather
// than naming one by hash.
func (r NodeRef) IsInline() bool { return r.Node != nil }

// RefToHash produces the NodeRef for a freshly-serialized node, applying the
// inlining threshold: serializations shorter than HashLen stay inline,
// everything else is addressed by hash. topLevel forces hashing regardless
// of size, since the root is always represented by its hash (invariant 2).
func RefToHash(n Node, topLevel bool) (ref NodeRef, hash []byte, encoding []byte, hashed bool) {
	encoding = n.Serialize()
	if len(encoding) >= HashLen || topLevel {
		h := crypto.Keccak256(encoding)
		return NodeRef{Hash: h}, h, encoding, true
	}
	return NodeRef{Node: n}, nil, encoding, false
}

// Leaf terminates a path; Key holds the remaining nibbles from the parent
// edge to the full key.
type Leaf struct {
	Key   []byte
	Value []byte
}

// Extension is a path-compression step pointing at exactly one child. Key
// must never be empty (invariant 1).
type Extension struct {
	Key   []byte
	Child NodeRef
}

// Branch is a 16-way fan-out indexed by the next nibble, with an optional
// terminal value for keys that end at this depth.
type Branch struct {
	Slots [16]NodeRef
	Value []byte
}

func (l *Leaf) Serialize() []byte {
	path := EncodeHP(l.Key, true)
	enc, err := rlp.EncodeToBytes([]interface{}{path, l.Value})
	if err != nil {
		panic("trienode: leaf encode: " + err.Error())
	}
	return enc
}

func (l *Leaf) Hash() []byte { return crypto.Keccak256(l.Serialize()) }

func (l *Leaf) Edges() []Edge { return nil }

func (l *Leaf) TerminalValue() ([]byte, bool) { return l.Value, true }

func (e *Extension) Serialize() []byte {
	path := EncodeHP(e.Key, false)
	enc, err := rlp.EncodeToBytes([]interface{}{path, refItem(e.Child)})
	if err != nil {
		panic("trienode: extension encode: " + err.Error())
	}
	return enc
}

func (e *Extension) Hash() []byte { return crypto.Keccak256(e.Serialize()) }

func (e *Extension) Edges() []Edge { return []Edge{{Path: e.Key, Ref: e.Child}} }

func (e *Extension) TerminalValue() ([]byte, bool) { return nil, false }

func (b *Branch) Serialize() []byte {
	items := make([]interface{}, 17)
	for i := 0; i < 16; i++ {
		items[i] = refItem(b.Slots[i])
	}
	if b.Value != nil {
		items[16] = b.Value
	} else {
		items[16] = []byte{}
	}
	enc, err := rlp.EncodeToBytes(items)
	if err != nil {
		panic("trienode: branch encode: " + err.Error())
	}
	return enc
}

func (b *Branch) Hash() []byte { return crypto.Keccak256(b.Serialize()) }

func (b *Branch) Edges() []Edge {
	edges := make([]Edge, 0, 16)
	for i := 0; i < 16; i++ {
		if !b.Slots[i].IsZero() {
			edges = append(edges, Edge{Path: []byte{byte(i)}, Ref: b.Slots[i]})
		}
	}
	return edges
}

func (b *Branch) TerminalValue() ([]byte, bool) { return b.Value, b.Value != nil }

// Occupied counts non-empty branch slots, used by the deletion collapse rule.
func (b *Branch) Occupied() (count int, lastIndex int) {
	lastIndex = -1
	for i := 0; i < 16; i++ {
		if !b.Slots[i].IsZero() {
			count++
			lastIndex = i
		}
	}
	return count, lastIndex
}

func refItem(ref NodeRef) interface{} {
	switch {
	case ref.IsZero():
		return []byte{}
	case ref.IsInline():
		return rlp.RawValue(ref.Node.Serialize())
	default:
		return ref.Hash
	}
}

// EmptySerialization is the RLP encoding of the empty string, whose hash is
// the canonical empty-trie root (invariant 3).
var EmptySerialization = []byte{0x80}

// EmptyRootHash is the well-known 32-byte root of an empty trie.
var EmptyRootHash = crypto.Keccak256(EmptySerialization)
