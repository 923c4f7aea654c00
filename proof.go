package nomt

import (
	"fmt"
)

// PathProofTerminal is the node a path proof terminates in: either a leaf
// with its data, or a terminator at some position.
type PathProofTerminal struct {
	leaf *LeafData
	pos  TriePosition
}

// LeafTerminal wraps leaf data as a proof terminal.
func LeafTerminal(leaf LeafData) PathProofTerminal {
	return PathProofTerminal{leaf: &leaf, pos: PositionOf(leaf.KeyPath, MaxDepth)}
}

// TerminatorTerminal wraps a terminator position as a proof terminal.
func TerminatorTerminal(pos TriePosition) PathProofTerminal {
	return PathProofTerminal{pos: pos}
}

// Position returns the bit-path to the terminal node: the full key path for
// a leaf, the terminator's position otherwise.
func (t PathProofTerminal) Position() TriePosition {
	return t.pos
}

// Leaf returns the leaf data, or nil if the terminal is a terminator.
func (t PathProofTerminal) Leaf() *LeafData {
	if t.leaf == nil {
		return nil
	}
	leaf := *t.leaf
	return &leaf
}

// Node returns the node digest of the terminal under the given hasher.
func (t PathProofTerminal) Node(h NodeHasher) Node {
	if t.leaf != nil {
		return h.HashLeaf(*t.leaf)
	}
	return Terminator
}

// PathProof proves a particular path through the trie. Siblings are recorded
// in descending order by depth: the shallowest sibling first.
type PathProof struct {
	Terminal PathProofTerminal
	Siblings []Node
}

// Verify verifies the path proof against the expected root.
//
// This only verifies the path itself, not the key path or value of the
// terminal node: use ConfirmValue or ConfirmNonexistence on the result to
// answer queries about specific keys. The key can be any key that looks up
// to the terminal node.
func (p *PathProof) Verify(h NodeHasher, key KeyPath, root Node) (*VerifiedPathProof, error) {
	if len(p.Siblings) > MaxDepth {
		return nil, ErrTooManySiblings
	}
	relevant := PositionOf(key, len(p.Siblings))

	ascending := make([]Node, len(p.Siblings))
	for i, sibling := range p.Siblings {
		ascending[len(ascending)-1-i] = sibling
	}

	computed := HashPath(h, p.Terminal.Node(h), relevant, ascending)
	if computed != root {
		return nil, ErrRootMismatch
	}

	return &VerifiedPathProof{
		path:     relevant,
		terminal: p.Terminal.Leaf(),
		siblings: p.Siblings,
		root:     root,
	}, nil
}

// HashPath hashes a node up toward the root along the trailing bits of the
// position, one bit per sibling, and returns the result. Siblings must be in
// ascending order: deepest first. The deepest bit of the position governs
// the first step.
func HashPath(h NodeHasher, node Node, pos TriePosition, siblings []Node) Node {
	depth := pos.Depth()
	for i, sibling := range siblings {
		if pos.Bit(depth - 1 - i) {
			node = h.HashInternal(sibling, node)
		} else {
			node = h.HashInternal(node, sibling)
		}
	}
	return node
}

// VerifiedPathProof is a certified path through the trie, anchored at a
// root. It is produced only by PathProof.Verify.
//
// A verified path answers up to two kinds of statements: that a single key
// has a specific value, and that keys beginning with the proven prefix have
// no value. Verifying the path alone confirms neither; always follow up with
// ConfirmValue or ConfirmNonexistence.
type VerifiedPathProof struct {
	path     TriePosition
	terminal *LeafData
	siblings []Node
	root     Node
}

// Terminal returns the leaf data at the end of the path, or nil when the
// path concludes with a terminator.
func (v *VerifiedPathProof) Terminal() *LeafData {
	if v.terminal == nil {
		return nil
	}
	leaf := *v.terminal
	return &leaf
}

// Path returns the proven prefix.
func (v *VerifiedPathProof) Path() TriePosition {
	return v.path
}

// Root returns the root the path was verified against.
func (v *VerifiedPathProof) Root() Node {
	return v.root
}

// Siblings returns a copy of the sibling nodes along the path, in descending
// order by depth.
func (v *VerifiedPathProof) Siblings() []Node {
	siblings := make([]Node, len(v.siblings))
	copy(siblings, v.siblings)
	return siblings
}

// ConfirmValue checks whether the path resolves to the given leaf.
//
// (true, nil) confirms the key has exactly this value in the trie.
// (false, nil) confirms the key has a different value or no value at all.
// ErrKeyOutOfScope is returned when the leaf's key does not begin with the
// proven prefix.
func (v *VerifiedPathProof) ConfirmValue(expected LeafData) (bool, error) {
	if err := v.inScope(expected.KeyPath); err != nil {
		return false, err
	}
	return v.terminal != nil && *v.terminal == expected, nil
}

// ConfirmNonexistence checks whether the path proves the key has no value in
// the trie.
//
// (true, nil) confirms the key has no value. (false, nil) means the key
// definitely exists. ErrKeyOutOfScope is returned when the key does not
// begin with the proven prefix.
func (v *VerifiedPathProof) ConfirmNonexistence(key KeyPath) (bool, error) {
	if err := v.inScope(key); err != nil {
		return false, err
	}
	return v.terminal == nil || v.terminal.KeyPath != key, nil
}

func (v *VerifiedPathProof) inScope(key KeyPath) error {
	if !v.path.IsPrefixOf(key) {
		return ErrKeyOutOfScope
	}
	return nil
}

func (v *VerifiedPathProof) String() string {
	return fmt.Sprintf("VerifiedPathProof{path: %v, terminal: %v, root: %v}", v.path, v.terminal, v.root)
}
