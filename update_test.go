package nomt

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyUpdateEmptyBatch(t *testing.T) {
	hasher := KeccakHasher{}
	_, _, root := twoLeafTrie(hasher)

	got, err := VerifyUpdate(hasher, root, nil)
	require.NoError(t, err)
	require.Equal(t, root, got)
}

func TestVerifyUpdateInsertIntoEmptyTrie(t *testing.T) {
	hasher := KeccakHasher{}
	left, right, wantRoot := twoLeafTrie(hasher)

	proof := &PathProof{Terminal: TerminatorTerminal(RootPosition())}
	verified, err := proof.Verify(hasher, left.KeyPath, Terminator)
	require.NoError(t, err)

	got, err := VerifyUpdate(hasher, Terminator, []PathUpdate{{
		Inner: verified,
		Ops: []UpdateOp{
			{Key: left.KeyPath, Value: valueRef(left.ValueHash)},
			{Key: right.KeyPath, Value: valueRef(right.ValueHash)},
		},
	}})
	require.NoError(t, err)
	require.Equal(t, wantRoot, got)
}

// twoLeafPaths verifies one path per leaf of the two-leaf fixture.
func twoLeafPaths(t *testing.T, hasher NodeHasher) (left, right LeafData, root Node, paths []*VerifiedPathProof) {
	t.Helper()
	left, right, root = twoLeafTrie(hasher)

	for _, leaf := range []struct{ terminal, sibling LeafData }{
		{left, right},
		{right, left},
	} {
		proof := &PathProof{
			Terminal: LeafTerminal(leaf.terminal),
			Siblings: []Node{hasher.HashLeaf(leaf.sibling)},
		}
		verified, err := proof.Verify(hasher, leaf.terminal.KeyPath, root)
		require.NoError(t, err)
		paths = append(paths, verified)
	}
	return left, right, root, paths
}

func TestVerifyUpdateDeleteCollapsesToTerminator(t *testing.T) {
	hasher := KeccakHasher{}
	left, right, root, paths := twoLeafPaths(t, hasher)

	got, err := VerifyUpdate(hasher, root, []PathUpdate{
		{Inner: paths[0], Ops: []UpdateOp{{Key: left.KeyPath}}},
		{Inner: paths[1], Ops: []UpdateOp{{Key: right.KeyPath}}},
	})
	require.NoError(t, err)
	require.Equal(t, Terminator, got)
}

func TestVerifyUpdateDeleteOneLeafFloatsOther(t *testing.T) {
	hasher := KeccakHasher{}
	left, right, root, paths := twoLeafPaths(t, hasher)

	// Deleting the left leaf leaves a singleton trie: the right leaf
	// becomes the root.
	got, err := VerifyUpdate(hasher, root, []PathUpdate{
		{Inner: paths[0], Ops: []UpdateOp{{Key: left.KeyPath}}},
	})
	require.NoError(t, err)
	require.Equal(t, hasher.HashLeaf(right), got)
}

func TestVerifyUpdatePreconditions(t *testing.T) {
	hasher := KeccakHasher{}
	left, right, root, paths := twoLeafPaths(t, hasher)

	deleteBoth := func() []PathUpdate {
		return []PathUpdate{
			{Inner: paths[0], Ops: []UpdateOp{{Key: left.KeyPath}}},
			{Inner: paths[1], Ops: []UpdateOp{{Key: right.KeyPath}}},
		}
	}

	t.Run("root mismatch", func(t *testing.T) {
		otherRoot := hasher.HashLeaf(left)
		_, err := VerifyUpdate(hasher, otherRoot, deleteBoth())
		require.ErrorIs(t, err, ErrRootMismatch)
	})

	t.Run("paths out of order", func(t *testing.T) {
		updates := deleteBoth()
		updates[0], updates[1] = updates[1], updates[0]
		_, err := VerifyUpdate(hasher, root, updates)
		require.ErrorIs(t, err, ErrPathsOutOfOrder)
	})

	t.Run("duplicate paths", func(t *testing.T) {
		updates := deleteBoth()
		updates[1] = updates[0]
		_, err := VerifyUpdate(hasher, root, updates)
		require.ErrorIs(t, err, ErrPathsOutOfOrder)
	})

	t.Run("comparable paths", func(t *testing.T) {
		// A handcrafted pair where the first prefix is a prefix of the
		// second: ascending, but violating pairwise incomparability.
		shallow := &VerifiedPathProof{
			path: PositionOf(testKey(0x00), 1),
			root: root,
		}
		deep := &VerifiedPathProof{
			path: PositionOf(testKey(0x00), 2),
			root: root,
		}
		_, err := VerifyUpdate(hasher, root, []PathUpdate{
			{Inner: shallow, Ops: []UpdateOp{{Key: left.KeyPath}}},
			{Inner: deep, Ops: []UpdateOp{{Key: left.KeyPath}}},
		})
		require.ErrorIs(t, err, ErrPathsOutOfOrder)
	})

	t.Run("path without ops", func(t *testing.T) {
		updates := deleteBoth()
		updates[1].Ops = nil
		_, err := VerifyUpdate(hasher, root, updates)
		require.ErrorIs(t, err, ErrPathWithoutOps)
	})

	t.Run("ops out of order", func(t *testing.T) {
		updates := deleteBoth()[:1]
		updates[0].Ops = []UpdateOp{
			{Key: testKey(0x40)},
			{Key: left.KeyPath},
		}
		_, err := VerifyUpdate(hasher, root, updates)
		require.ErrorIs(t, err, ErrOpsOutOfOrder)
	})

	t.Run("duplicate op keys", func(t *testing.T) {
		updates := deleteBoth()[:1]
		updates[0].Ops = []UpdateOp{
			{Key: left.KeyPath},
			{Key: left.KeyPath, Value: valueRef(testValue(0x09))},
		}
		_, err := VerifyUpdate(hasher, root, updates)
		require.ErrorIs(t, err, ErrOpsOutOfOrder)
	})

	t.Run("op out of scope", func(t *testing.T) {
		updates := deleteBoth()[:1]
		updates[0].Ops = []UpdateOp{{Key: right.KeyPath}}
		_, err := VerifyUpdate(hasher, root, updates)
		require.ErrorIs(t, err, ErrOpOutOfScope)
	})
}

func TestLeafOpsSpliced(t *testing.T) {
	leafB := LeafData{KeyPath: testKey(0x40), ValueHash: testValue(0x01)}

	opA := UpdateOp{Key: testKey(0x20), Value: valueRef(testValue(0x02))}
	opC := UpdateOp{Key: testKey(0x60), Value: valueRef(testValue(0x03))}

	t.Run("terminal survives between ops", func(t *testing.T) {
		leaves := leafOpsSpliced(&leafB, []UpdateOp{opA, opC})
		require.Equal(t, []LeafData{
			{KeyPath: opA.Key, ValueHash: *opA.Value},
			leafB,
			{KeyPath: opC.Key, ValueHash: *opC.Value},
		}, leaves)
	})

	t.Run("terminal survives after all ops", func(t *testing.T) {
		leaves := leafOpsSpliced(&leafB, []UpdateOp{opA})
		require.Equal(t, []LeafData{
			{KeyPath: opA.Key, ValueHash: *opA.Value},
			leafB,
		}, leaves)
	})

	t.Run("terminal replaced", func(t *testing.T) {
		replace := UpdateOp{Key: leafB.KeyPath, Value: valueRef(testValue(0x09))}
		leaves := leafOpsSpliced(&leafB, []UpdateOp{replace})
		require.Equal(t, []LeafData{{KeyPath: leafB.KeyPath, ValueHash: *replace.Value}}, leaves)
	})

	t.Run("terminal deleted", func(t *testing.T) {
		leaves := leafOpsSpliced(&leafB, []UpdateOp{{Key: leafB.KeyPath}})
		require.Empty(t, leaves)
	})

	t.Run("no terminal", func(t *testing.T) {
		leaves := leafOpsSpliced(nil, []UpdateOp{opA, {Key: testKey(0x30)}, opC})
		require.Equal(t, []LeafData{
			{KeyPath: opA.Key, ValueHash: *opA.Value},
			{KeyPath: opC.Key, ValueHash: *opC.Value},
		}, leaves)
	})
}

func TestBuildSubTrie(t *testing.T) {
	hasher := KeccakHasher{}

	t.Run("empty is terminator", func(t *testing.T) {
		require.Equal(t, Terminator, BuildSubTrie(hasher, 0, nil, nil))
	})

	t.Run("singleton collapses to leaf", func(t *testing.T) {
		leaf := LeafData{KeyPath: testKey(0x00), ValueHash: testValue(0x01)}
		// The bare leaf node at any starting depth.
		require.Equal(t, hasher.HashLeaf(leaf), BuildSubTrie(hasher, 0, []LeafData{leaf}, nil))
		require.Equal(t, hasher.HashLeaf(leaf), BuildSubTrie(hasher, 17, []LeafData{leaf}, nil))
	})

	t.Run("two leaves diverging at the root", func(t *testing.T) {
		left, right, root := twoLeafTrie(hasher)
		require.Equal(t, root, BuildSubTrie(hasher, 0, []LeafData{left, right}, nil))
	})

	t.Run("deep divergence pads with terminators", func(t *testing.T) {
		// Keys sharing their first two bits and diverging at bit 2.
		a := LeafData{KeyPath: testKey(0x00), ValueHash: testValue(0x01)}
		b := LeafData{KeyPath: testKey(0x20), ValueHash: testValue(0x02)}

		fork := hasher.HashInternal(hasher.HashLeaf(a), hasher.HashLeaf(b))
		want := hasher.HashInternal(hasher.HashInternal(fork, Terminator), Terminator)
		require.Equal(t, want, BuildSubTrie(hasher, 0, []LeafData{a, b}, nil))

		// Starting below the shared prefix skips the padding.
		require.Equal(t, fork, BuildSubTrie(hasher, 2, []LeafData{a, b}, nil))
	})

	t.Run("visit observes every node", func(t *testing.T) {
		left, right, _ := twoLeafTrie(hasher)
		var visited []Node
		root := BuildSubTrie(hasher, 0, []LeafData{left, right}, func(n Node) {
			visited = append(visited, n)
		})
		require.Equal(t, []Node{hasher.HashLeaf(left), hasher.HashLeaf(right), root}, visited)
	})
}

func TestVerifyUpdateStitchesAdjacentPaths(t *testing.T) {
	hasher := KeccakHasher{}

	// Four leaves at prefixes 00, 01, 10, 11.
	leaves := []LeafData{
		{KeyPath: testKey(0x00), ValueHash: testValue(0x01)},
		{KeyPath: testKey(0x40), ValueHash: testValue(0x02)},
		{KeyPath: testKey(0x80), ValueHash: testValue(0x03)},
		{KeyPath: testKey(0xc0), ValueHash: testValue(0x04)},
	}
	nodes := make([]Node, len(leaves))
	for i, leaf := range leaves {
		nodes[i] = hasher.HashLeaf(leaf)
	}
	leftSub := hasher.HashInternal(nodes[0], nodes[1])
	rightSub := hasher.HashInternal(nodes[2], nodes[3])
	root := hasher.HashInternal(leftSub, rightSub)

	// Update leaves 00 and 10 in one batch; siblings of each proof are
	// recorded top-down.
	prove := func(i int, topSibling, deepSibling Node) *VerifiedPathProof {
		proof := &PathProof{
			Terminal: LeafTerminal(leaves[i]),
			Siblings: []Node{topSibling, deepSibling},
		}
		verified, err := proof.Verify(hasher, leaves[i].KeyPath, root)
		require.NoError(t, err)
		return verified
	}

	newA := testValue(0x11)
	newC := testValue(0x13)
	got, err := VerifyUpdate(hasher, root, []PathUpdate{
		{Inner: prove(0, rightSub, nodes[1]), Ops: []UpdateOp{{Key: leaves[0].KeyPath, Value: &newA}}},
		{Inner: prove(2, leftSub, nodes[3]), Ops: []UpdateOp{{Key: leaves[2].KeyPath, Value: &newC}}},
	})
	require.NoError(t, err)

	wantLeft := hasher.HashInternal(hasher.HashLeaf(LeafData{KeyPath: leaves[0].KeyPath, ValueHash: newA}), nodes[1])
	wantRight := hasher.HashInternal(hasher.HashLeaf(LeafData{KeyPath: leaves[2].KeyPath, ValueHash: newC}), nodes[3])
	require.Equal(t, hasher.HashInternal(wantLeft, wantRight), got)
}

func TestVerifyUpdateRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		hasher NodeHasher
	}{
		{"keccak", KeccakHasher{}},
		{"blake2b", Blake2bHasher{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			trie, err := NewTrie(NewInMemoryDatabase(), tc.hasher)
			require.NoError(t, err)

			const seeded = 64
			for i := uint64(0); i < seeded; i++ {
				require.NoError(t, trie.Put(derivedKey(i), derivedValue(i)))
			}

			// Mixed batch: updates, deletes, deletes of absent keys, and
			// fresh inserts.
			var ops []UpdateOp
			for i := uint64(0); i < seeded; i += 2 {
				ops = append(ops, UpdateOp{Key: derivedKey(i), Value: valueRef(derivedValue(i + 1000))})
			}
			for i := uint64(1); i < seeded; i += 4 {
				ops = append(ops, UpdateOp{Key: derivedKey(i)})
			}
			for i := uint64(2000); i < 2016; i++ {
				ops = append(ops, UpdateOp{Key: derivedKey(i), Value: valueRef(derivedValue(i))})
			}
			ops = append(ops, UpdateOp{Key: derivedKey(3000)}) // absent key
			sort.Slice(ops, func(i, j int) bool {
				return lessUpdateKey(ops[i].Key, ops[j].Key)
			})

			prevRoot, newRoot, updates, err := trie.CommitBatch(ops)
			require.NoError(t, err)
			require.NotEqual(t, prevRoot, newRoot)

			got, err := VerifyUpdate(tc.hasher, prevRoot, updates)
			require.NoError(t, err)
			require.Equal(t, newRoot, got)
		})
	}
}

func lessUpdateKey(a, b KeyPath) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
