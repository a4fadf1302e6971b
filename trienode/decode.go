package trienode

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

// DecodeError wraps a node decoding failure with the path to the offending
// child, so a corrupt subtree can be located without a second pass.
type DecodeError struct {
	What  error
	Stack []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (decode path: %s)", e.What, strings.Join(e.Stack, "<-"))
}

func (e *DecodeError) Unwrap() error { return e.What }

func wrapError(err error, ctx string) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*DecodeError); ok {
		de.Stack = append(de.Stack, ctx)
		return de
	}
	return &DecodeError{What: err, Stack: []string{ctx}}
}

// Decode parses the RLP encoding of a trie node.
func Decode(buf []byte) (Node, error) {
	if len(buf) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	elems, _, err := rlp.SplitList(buf)
	if err != nil {
		return nil, fmt.Errorf("decode error: %v", err)
	}
	switch c, _ := rlp.CountValues(elems); c {
	case 2:
		n, err := decodeShort(elems)
		return n, wrapError(err, "short")
	case 17:
		n, err := decodeBranch(elems)
		return n, wrapError(err, "branch")
	default:
		return nil, fmt.Errorf("invalid number of list elements: %v", c)
	}
}

func decodeShort(elems []byte) (Node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	key, isLeaf := DecodeHP(kbuf)
	if isLeaf {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid leaf value: %v", err)
		}
		return &Leaf{Key: key, Value: append([]byte{}, val...)}, nil
	}
	ref, _, err := decodeRef(rest)
	if err != nil {
		return nil, wrapError(err, "child")
	}
	return &Extension{Key: key, Child: ref}, nil
}

func decodeBranch(elems []byte) (*Branch, error) {
	var b Branch
	for i := 0; i < 16; i++ {
		ref, rest, err := decodeRef(elems)
		if err != nil {
			return nil, wrapError(err, fmt.Sprintf("[%d]", i))
		}
		b.Slots[i], elems = ref, rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	if len(val) > 0 {
		b.Value = append([]byte{}, val...)
	}
	return &b, nil
}

func decodeRef(buf []byte) (NodeRef, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return NodeRef{}, buf, err
	}
	switch {
	case kind == rlp.List:
		size := len(buf) - len(rest)
		if size > HashLen {
			return NodeRef{}, buf, fmt.Errorf("oversized embedded node (size is %d bytes, want size <= %d)", size, HashLen)
		}
		child, err := Decode(buf[:size])
		if err != nil {
			return NodeRef{}, buf, err
		}
		return NodeRef{Node: child}, rest, nil
	case kind == rlp.String && len(val) == 0:
		return NodeRef{}, rest, nil
	case kind == rlp.String && len(val) == HashLen:
		return NodeRef{Hash: append([]byte{}, val...)}, rest, nil
	default:
		return NodeRef{}, buf, fmt.Errorf("invalid RLP string size %d (want 0 or %d)", len(val), HashLen)
	}
}
