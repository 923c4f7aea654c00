package nomt

import (
	"encoding/hex"
)

// Node is a 32-byte digest identifying a trie node. The all-zero node is the
// terminator, representing an empty sub-trie.
type Node [32]byte

// Terminator is the sentinel node standing in for an empty sub-trie. It is
// the same constant for every hasher.
var Terminator = Node{}

// String returns the hex string representation of the node with 0x prefix.
func (n Node) String() string {
	return "0x" + hex.EncodeToString(n[:])
}

// Hex returns the hex string representation without 0x prefix.
func (n Node) Hex() string {
	return hex.EncodeToString(n[:])
}

// IsZero checks whether the node is the terminator.
func (n Node) IsZero() bool {
	return n == Terminator
}

// KeyPath is a 256-bit path identifying a key, read MSB-first: bit 0 of the
// first byte selects the child of the root.
type KeyPath [32]byte

// Bit returns the bit of the path at the given depth. Bit 0 is the most
// significant bit of the first byte.
func (k KeyPath) Bit(i int) bool {
	return k[i/8]&(0x80>>uint(i%8)) != 0
}

// String returns the hex string representation of the key path.
func (k KeyPath) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// ValueHash is the 32-byte digest of a value stored under a key.
type ValueHash [32]byte

// LeafData is the preimage of a leaf node: the full key path and the hash of
// the value stored there.
type LeafData struct {
	KeyPath   KeyPath
	ValueHash ValueHash
}

// NodeKind classifies a node digest as produced by a NodeHasher.
type NodeKind int

const (
	// KindTerminator marks the empty sub-trie sentinel.
	KindTerminator NodeKind = iota
	// KindLeaf marks the hash of a (key path, value hash) pair.
	KindLeaf
	// KindInternal marks the hash of an ordered (left, right) pair.
	KindInternal
)

func (k NodeKind) String() string {
	switch k {
	case KindTerminator:
		return "terminator"
	case KindLeaf:
		return "leaf"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}
