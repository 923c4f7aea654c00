package nomt

import (
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// NodeHasher is the hash oracle for trie nodes. It must be deterministic and
// collision resistant, and it must keep the three node kinds apart: no leaf
// digest may collide with an internal digest, and neither may equal the
// terminator.
//
// Both built-in hashers separate the domains by tagging the top bit of the
// digest: set for leaves, cleared for internal nodes. The all-zero digest is
// reserved for the terminator.
type NodeHasher interface {
	// HashLeaf hashes the key path and value hash of a leaf into a node.
	HashLeaf(leaf LeafData) Node
	// HashInternal hashes an ordered pair of child nodes.
	HashInternal(left, right Node) Node
	// NodeKind classifies a node digest.
	NodeKind(n Node) NodeKind
}

func tagLeaf(n Node) Node {
	n[0] |= 0x80
	return n
}

func tagInternal(n Node) Node {
	n[0] &^= 0x80
	return n
}

func kindOf(n Node) NodeKind {
	switch {
	case n.IsZero():
		return KindTerminator
	case n[0]&0x80 != 0:
		return KindLeaf
	default:
		return KindInternal
	}
}

// KeccakHasher hashes nodes with Keccak256.
type KeccakHasher struct{}

// HashLeaf hashes keyPath || valueHash and tags the digest as a leaf.
func (KeccakHasher) HashLeaf(leaf LeafData) Node {
	data := make([]byte, 64)
	copy(data[:32], leaf.KeyPath[:])
	copy(data[32:], leaf.ValueHash[:])

	var n Node
	copy(n[:], crypto.Keccak256(data))
	return tagLeaf(n)
}

// HashInternal hashes left || right and tags the digest as internal.
func (KeccakHasher) HashInternal(left, right Node) Node {
	var n Node
	copy(n[:], crypto.Keccak256(left[:], right[:]))
	return tagInternal(n)
}

// NodeKind classifies a node digest.
func (KeccakHasher) NodeKind(n Node) NodeKind {
	return kindOf(n)
}

// Blake2bHasher hashes nodes with BLAKE2b-256.
type Blake2bHasher struct{}

// HashLeaf hashes keyPath || valueHash and tags the digest as a leaf.
func (Blake2bHasher) HashLeaf(leaf LeafData) Node {
	data := make([]byte, 64)
	copy(data[:32], leaf.KeyPath[:])
	copy(data[32:], leaf.ValueHash[:])
	return tagLeaf(Node(blake2b.Sum256(data)))
}

// HashInternal hashes left || right and tags the digest as internal.
func (Blake2bHasher) HashInternal(left, right Node) Node {
	data := make([]byte, 64)
	copy(data[:32], left[:])
	copy(data[32:], right[:])
	return tagInternal(Node(blake2b.Sum256(data)))
}

// NodeKind classifies a node digest.
func (Blake2bHasher) NodeKind(n Node) NodeKind {
	return kindOf(n)
}
