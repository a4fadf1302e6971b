package trienode

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestEmptyRootHash(t *testing.T) {
	want, _ := hex.DecodeString("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")
	if !bytes.Equal(EmptyRootHash, want) {
		t.Fatalf("empty root = %x, want %x", EmptyRootHash, want)
	}
}

func TestLeafSerializeDecode(t *testing.T) {
	l := &Leaf{Key: []byte{1, 2, 3}, Value: []byte("verb")}
	enc := l.Serialize()
	n, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := n.TerminalValue()
	if !ok || !bytes.Equal(got, l.Value) {
		t.Fatalf("got %v ok=%v", got, ok)
	}
	dl, ok := n.(*Leaf)
	if !ok || !bytes.Equal(dl.Key, l.Key) {
		t.Fatalf("decoded leaf mismatch: %+v", n)
	}
}

func TestExtensionSerializeDecode(t *testing.T) {
	child := &Leaf{Key: []byte{9}, Value: []byte("x")}
	ref := NodeRef{Node: child}
	e := &Extension{Key: []byte{1, 2}, Child: ref}
	enc := e.Serialize()
	n, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	de, ok := n.(*Extension)
	if !ok || !bytes.Equal(de.Key, e.Key) {
		t.Fatalf("decoded extension mismatch: %+v", n)
	}
	if !de.Child.IsInline() {
		t.Fatalf("expected inline child")
	}
}

func TestBranchSerializeDecode(t *testing.T) {
	var b Branch
	b.Slots[5] = NodeRef{Hash: bytes.Repeat([]byte{0xAB}, HashLen)}
	b.Value = []byte("root-value")
	enc := b.Serialize()
	n, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	db, ok := n.(*Branch)
	if !ok {
		t.Fatalf("expected branch, got %T", n)
	}
	if db.Slots[5].IsZero() || db.Slots[5].IsInline() {
		t.Fatalf("expected hash ref at slot 5, got %+v", db.Slots[5])
	}
	if !bytes.Equal(db.Slots[5].Hash, b.Slots[5].Hash) {
		t.Fatalf("hash mismatch")
	}
	val, ok := db.TerminalValue()
	if !ok || !bytes.Equal(val, b.Value) {
		t.Fatalf("value mismatch: %v", val)
	}
}

func TestBranchOccupied(t *testing.T) {
	var b Branch
	if count, idx := b.Occupied(); count != 0 || idx != -1 {
		t.Fatalf("expected empty branch, got count=%d idx=%d", count, idx)
	}
	b.Slots[3] = NodeRef{Hash: make([]byte, HashLen)}
	if count, idx := b.Occupied(); count != 1 || idx != 3 {
		t.Fatalf("expected one occupied slot at 3, got count=%d idx=%d", count, idx)
	}
	b.Slots[9] = NodeRef{Hash: make([]byte, HashLen)}
	if count, _ := b.Occupied(); count != 2 {
		t.Fatalf("expected two occupied slots, got %d", count)
	}
}

func TestRefToHashInliningThreshold(t *testing.T) {
	small := &Leaf{Key: []byte{1}, Value: []byte("v")}
	ref, _, _, hashed := RefToHash(small, false)
	if hashed {
		t.Fatalf("expected small node to stay inline")
	}
	if !ref.IsInline() {
		t.Fatalf("expected inline ref")
	}

	big := &Leaf{Key: []byte{1}, Value: bytes.Repeat([]byte{0x01}, 64)}
	ref, hash, _, hashed := RefToHash(big, false)
	if !hashed {
		t.Fatalf("expected large node to be hashed")
	}
	if ref.IsInline() || !bytes.Equal(ref.Hash, hash) {
		t.Fatalf("expected hash ref, got %+v", ref)
	}

	ref, _, _, hashed = RefToHash(small, true)
	if !hashed || ref.IsInline() {
		t.Fatalf("top-level node must always be hashed")
	}
}
