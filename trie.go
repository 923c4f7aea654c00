package nomt

import (
	"encoding/hex"
	"fmt"
	"sync"
)

// Database key prefixes for the content-addressed node store.
const (
	internalPrefix = "n:"
	leafPrefix     = "l:"
)

// Trie is a binary Merkle trie over a node store. It is the
// reference model of the trie the proofs speak about: it produces honest
// path proofs and applies operations directly, so its roots are the ground
// truth the verifiers are checked against.
//
// The trie is kept canonical at all times: an empty sub-trie is the
// terminator and a sub-trie with a single leaf is that leaf itself, at any
// depth.
type Trie struct {
	db     Database
	hasher NodeHasher
	root   Node
	mu     sync.RWMutex
}

// NewTrie creates an empty trie over the given database and hasher.
func NewTrie(db Database, hasher NodeHasher) (*Trie, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &Trie{
		db:     db,
		hasher: hasher,
		root:   Terminator,
	}, nil
}

// Root returns the current root node.
func (t *Trie) Root() Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Get retrieves the value hash stored under the key, or nil if the key has
// no value.
func (t *Trie) Get(key KeyPath) (*ValueHash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	terminal, _, _, err := t.seek(key)
	if err != nil {
		return nil, err
	}
	if terminal == nil || terminal.KeyPath != key {
		return nil, nil
	}
	value := terminal.ValueHash
	return &value, nil
}

// Put inserts or replaces the value hash stored under the key.
func (t *Trie) Put(key KeyPath, value ValueHash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	terminal, depth, siblings, err := t.seek(key)
	if err != nil {
		return err
	}

	var sub Node
	switch {
	case terminal == nil || terminal.KeyPath == key:
		sub, err = t.storeLeaf(LeafData{KeyPath: key, ValueHash: value})
	default:
		sub, err = t.mergeLeaves(depth, *terminal, LeafData{KeyPath: key, ValueHash: value})
	}
	if err != nil {
		return err
	}

	root, err := t.hashUp(sub, key, depth, siblings)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// Delete removes the value stored under the key. ErrKeyNotFound is returned
// when the key has no value.
func (t *Trie) Delete(key KeyPath) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	terminal, depth, siblings, err := t.seek(key)
	if err != nil {
		return err
	}
	if terminal == nil || terminal.KeyPath != key {
		return ErrKeyNotFound
	}

	root, err := t.hashUp(Terminator, key, depth, siblings)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// Prove produces a path proof for the key against the current root. The
// terminal is the leaf or terminator the key looks up to; siblings are
// recorded top-down.
func (t *Trie) Prove(key KeyPath) (*PathProof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	terminal, depth, siblings, err := t.seek(key)
	if err != nil {
		return nil, err
	}

	proof := &PathProof{Siblings: siblings}
	if terminal != nil {
		proof.Terminal = LeafTerminal(*terminal)
	} else {
		proof.Terminal = TerminatorTerminal(PositionOf(key, depth))
	}
	return proof, nil
}

// seek walks from the root toward the key until a leaf or terminator is
// reached. It returns the leaf data (nil for a terminator), the depth the
// walk stopped at, and the siblings encountered top-down.
func (t *Trie) seek(key KeyPath) (*LeafData, int, []Node, error) {
	var siblings []Node
	cur := t.root
	depth := 0

	for t.hasher.NodeKind(cur) == KindInternal {
		left, right, err := t.loadInternal(cur)
		if err != nil {
			return nil, 0, nil, err
		}
		if key.Bit(depth) {
			siblings = append(siblings, left)
			cur = right
		} else {
			siblings = append(siblings, right)
			cur = left
		}
		depth++
	}

	if t.hasher.NodeKind(cur) == KindTerminator {
		return nil, depth, siblings, nil
	}
	leaf, err := t.loadLeaf(cur)
	if err != nil {
		return nil, 0, nil, err
	}
	return leaf, depth, siblings, nil
}

// mergeLeaves builds the minimal sub-trie containing two distinct leaves
// below the given depth and returns its root: an internal node at the
// divergence bit, padded with terminator siblings back up to depth.
func (t *Trie) mergeLeaves(depth int, a, b LeafData) (Node, error) {
	fork := SharedBits(PositionOf(a.KeyPath, MaxDepth), PositionOf(b.KeyPath, MaxDepth))

	leafA, err := t.storeLeaf(a)
	if err != nil {
		return Node{}, err
	}
	leafB, err := t.storeLeaf(b)
	if err != nil {
		return Node{}, err
	}

	var sub Node
	if a.KeyPath.Bit(fork) {
		sub, err = t.storeInternal(leafB, leafA)
	} else {
		sub, err = t.storeInternal(leafA, leafB)
	}
	if err != nil {
		return Node{}, err
	}

	for d := fork - 1; d >= depth; d-- {
		if a.KeyPath.Bit(d) {
			sub, err = t.storeInternal(Terminator, sub)
		} else {
			sub, err = t.storeInternal(sub, Terminator)
		}
		if err != nil {
			return Node{}, err
		}
	}
	return sub, nil
}

// hashUp rebuilds the path from a sub-trie root at the given depth back to
// the trie root, consuming the recorded siblings deepest first and applying
// the compaction rules so empty and singleton sub-tries stay canonical.
func (t *Trie) hashUp(sub Node, key KeyPath, depth int, siblings []Node) (Node, error) {
	for d := depth - 1; d >= 0; d-- {
		sibling := siblings[d]
		switch ck, sk := t.hasher.NodeKind(sub), t.hasher.NodeKind(sibling); {
		case ck == KindTerminator && sk == KindTerminator:
		case ck == KindLeaf && sk == KindTerminator:
		case ck == KindTerminator && sk == KindLeaf:
			sub = sibling
		default:
			var err error
			if key.Bit(d) {
				sub, err = t.storeInternal(sibling, sub)
			} else {
				sub, err = t.storeInternal(sub, sibling)
			}
			if err != nil {
				return Node{}, err
			}
		}
	}
	return sub, nil
}

func (t *Trie) storeInternal(left, right Node) (Node, error) {
	n := t.hasher.HashInternal(left, right)
	key := []byte(internalPrefix + hex.EncodeToString(n[:]))
	data := make([]byte, 64)
	copy(data[:32], left[:])
	copy(data[32:], right[:])
	if err := t.db.Set(key, data); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (t *Trie) loadInternal(n Node) (Node, Node, error) {
	key := []byte(internalPrefix + hex.EncodeToString(n[:]))
	data, err := t.db.Get(key)
	if err != nil {
		return Node{}, Node{}, err
	}
	if len(data) != 64 {
		return Node{}, Node{}, fmt.Errorf("invalid internal node data length: expected 64, got %d", len(data))
	}
	var left, right Node
	copy(left[:], data[:32])
	copy(right[:], data[32:])
	return left, right, nil
}

func (t *Trie) storeLeaf(leaf LeafData) (Node, error) {
	n := t.hasher.HashLeaf(leaf)
	key := []byte(leafPrefix + hex.EncodeToString(n[:]))
	data := make([]byte, 64)
	copy(data[:32], leaf.KeyPath[:])
	copy(data[32:], leaf.ValueHash[:])
	if err := t.db.Set(key, data); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (t *Trie) loadLeaf(n Node) (*LeafData, error) {
	key := []byte(leafPrefix + hex.EncodeToString(n[:]))
	data, err := t.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) != 64 {
		return nil, fmt.Errorf("invalid leaf data length: expected 64, got %d", len(data))
	}
	leaf := &LeafData{}
	copy(leaf.KeyPath[:], data[:32])
	copy(leaf.ValueHash[:], data[32:])
	return leaf, nil
}
