package nomt

import (
	"bytes"
)

// CommitBatch applies an ordered batch of operations to the trie and
// produces the witness a remote verifier needs to check the transition:
// one PathUpdate per touched terminal, with paths proven against the
// pre-state root.
//
// Ops must be strictly ascending by key. Deletes of absent keys are
// accepted and carried in the witness; they leave the trie unchanged.
// VerifyUpdate over the returned updates reproduces the returned new root
// from the previous one.
func (t *Trie) CommitBatch(ops []UpdateOp) (prevRoot, newRoot Node, updates []PathUpdate, err error) {
	for i := range ops {
		if i != 0 && bytes.Compare(ops[i-1].Key[:], ops[i].Key[:]) >= 0 {
			return Node{}, Node{}, nil, ErrOpsOutOfOrder
		}
	}

	prevRoot = t.Root()

	// Prove every touched path against the pre-state before mutating.
	// Consecutive ops that look up to the same terminal share one path.
	for _, op := range ops {
		if len(updates) > 0 && updates[len(updates)-1].Inner.Path().IsPrefixOf(op.Key) {
			last := &updates[len(updates)-1]
			last.Ops = append(last.Ops, op)
			continue
		}

		proof, proveErr := t.Prove(op.Key)
		if proveErr != nil {
			return Node{}, Node{}, nil, proveErr
		}
		verified, verifyErr := proof.Verify(t.hasher, op.Key, prevRoot)
		if verifyErr != nil {
			return Node{}, Node{}, nil, verifyErr
		}
		updates = append(updates, PathUpdate{Inner: verified, Ops: []UpdateOp{op}})
	}

	for _, op := range ops {
		if op.Value != nil {
			err = t.Put(op.Key, *op.Value)
		} else if err = t.Delete(op.Key); err == ErrKeyNotFound {
			err = nil
		}
		if err != nil {
			return Node{}, Node{}, nil, err
		}
	}

	return prevRoot, t.Root(), updates, nil
}
