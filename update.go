package nomt

import (
	"bytes"
	"sort"
)

// UpdateOp is a single operation on a key: a nil Value deletes the key, a
// non-nil Value inserts or replaces it.
type UpdateOp struct {
	Key   KeyPath
	Value *ValueHash
}

// PathUpdate carries a verified path together with the operations to apply
// to keys beginning with that path.
type PathUpdate struct {
	Inner *VerifiedPathProof
	Ops   []UpdateOp
}

// VerifyUpdate computes the root obtained by applying the given updates to
// the trie anchored at prevRoot, without materializing the trie. If paths is
// empty, prevRoot is returned.
//
// Paths must be strictly ascending and pairwise incomparable, every path
// must be verified against prevRoot and carry at least one operation, and
// operations must be strictly ascending by key within the scope of their
// path. Violations are reported as the corresponding error and leave no
// partial state.
func VerifyUpdate(h NodeHasher, prevRoot Node, paths []PathUpdate) (Node, error) {
	if len(paths) == 0 {
		return prevRoot, nil
	}

	for i := range paths {
		path := &paths[i]
		if path.Inner.Root() != prevRoot {
			return Node{}, ErrRootMismatch
		}

		if i != 0 {
			prev := paths[i-1].Inner.Path()
			cur := path.Inner.Path()
			// A prefix of a later path sorts before it but still violates
			// incomparability, so it is rejected here as well.
			if prev.Compare(cur) >= 0 || SharedBits(prev, cur) == prev.Depth() {
				return Node{}, ErrPathsOutOfOrder
			}
		}

		if len(path.Ops) == 0 {
			return Node{}, ErrPathWithoutOps
		}

		for j := range path.Ops {
			if j != 0 && bytes.Compare(path.Ops[j-1].Key[:], path.Ops[j].Key[:]) >= 0 {
				return Node{}, ErrOpsOutOfOrder
			}
			if !path.Inner.Path().IsPrefixOf(path.Ops[j].Key) {
				return Node{}, ErrOpOutOfScope
			}
		}
	}

	// The left frontier: roots of completed left sub-tries, deepest last,
	// each waiting for its right neighbor.
	type pendingSibling struct {
		node  Node
		layer int
	}
	var pending []pendingSibling

	for i := range paths {
		path := &paths[i]
		skip := path.Inner.Path().Depth()

		// Ascend fully for the last path; otherwise stop one layer below
		// the divergence with the next path, which will supply the other
		// half.
		upLayers := skip
		if i+1 < len(paths) {
			n := SharedBits(path.Inner.Path(), paths[i+1].Inner.Path())
			upLayers = skip - (n + 1)
		}

		leaves := leafOpsSpliced(path.Inner.Terminal(), path.Ops)
		cur := BuildSubTrie(h, skip, leaves, nil)

		curLayer := skip
		endLayer := skip - upLayers
		for step := 0; step < upLayers; step++ {
			var sibling Node
			if len(pending) > 0 && pending[len(pending)-1].layer == curLayer {
				sibling = pending[len(pending)-1].node
				pending = pending[:len(pending)-1]
			} else {
				sibling = path.Inner.siblings[curLayer-1]
			}

			switch ck, sk := h.NodeKind(cur), h.NodeKind(sibling); {
			case ck == KindTerminator && sk == KindTerminator:
				// An empty sub-trie stays the terminator.
			case ck == KindLeaf && sk == KindTerminator:
				// A lone leaf floats up.
			case ck == KindTerminator && sk == KindLeaf:
				cur = sibling
			default:
				if path.Inner.Path().Bit(curLayer - 1) {
					cur = h.HashInternal(sibling, cur)
				} else {
					cur = h.HashInternal(cur, sibling)
				}
			}
			curLayer--
		}
		pending = append(pending, pendingSibling{node: cur, layer: endLayer})
	}

	// The last path ascends to layer 0, consuming every pending entry on
	// the way, so exactly one node remains.
	return pending[len(pending)-1].node, nil
}

// leafOpsSpliced merges the operations with the surviving terminal leaf into
// the ordered leaf set of the post-update sub-trie. A delete drops the leaf,
// an update replaces its value, an insert adds a new leaf.
func leafOpsSpliced(terminal *LeafData, ops []UpdateOp) []LeafData {
	leaves := make([]LeafData, 0, len(ops)+1)
	for _, op := range ops {
		if terminal != nil {
			switch bytes.Compare(op.Key[:], terminal.KeyPath[:]) {
			case 0:
				// The op overwrites or deletes the original leaf.
				terminal = nil
			case 1:
				leaves = append(leaves, *terminal)
				terminal = nil
			}
		}
		if op.Value != nil {
			leaves = append(leaves, LeafData{KeyPath: op.Key, ValueHash: *op.Value})
		}
	}
	if terminal != nil {
		leaves = append(leaves, *terminal)
	}
	return leaves
}

// BuildSubTrie computes the root of the sub-trie at startDepth containing
// exactly the given leaves, which must be sorted ascending by key and share
// their first startDepth bits. An empty leaf set yields the terminator and a
// singleton sub-trie is the bare leaf node, regardless of remaining depth.
//
// visit, if non-nil, observes every node constructed, deepest first. Pass
// nil when only the sub-root is needed.
func BuildSubTrie(h NodeHasher, startDepth int, leaves []LeafData, visit func(Node)) Node {
	return buildSubTrie(h, startDepth, leaves, visit)
}

func buildSubTrie(h NodeHasher, depth int, leaves []LeafData, visit func(Node)) Node {
	switch len(leaves) {
	case 0:
		return Terminator
	case 1:
		n := h.HashLeaf(leaves[0])
		if visit != nil {
			visit(n)
		}
		return n
	}

	// Keys are distinct, sorted, and share the first depth bits, so the bit
	// at depth splits them into the two children.
	split := sort.Search(len(leaves), func(i int) bool {
		return leaves[i].KeyPath.Bit(depth)
	})
	left := buildSubTrie(h, depth+1, leaves[:split], visit)
	right := buildSubTrie(h, depth+1, leaves[split:], visit)

	n := h.HashInternal(left, right)
	if visit != nil {
		visit(n)
	}
	return n
}
