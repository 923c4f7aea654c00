package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"sort"

	"github.com/pborman/getopt/v2"

	nomt "github.com/citizen-stig/nomt"
)

type witnessOp struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

type witnessPath struct {
	Proof string      `json:"proof"`
	Ops   []witnessOp `json:"ops"`
}

type witness struct {
	Hasher   string        `json:"hasher"`
	PrevRoot string        `json:"prevRoot"`
	NewRoot  string        `json:"newRoot"`
	Paths    []witnessPath `json:"paths"`
}

func main() {
	count := getopt.IntLong("count", 'n', 16, "number of operations in the batch")
	output := getopt.StringLong("output", 'o', "witness.json", "output file")
	hasherName := getopt.StringLong("hasher", 0, "keccak", "hash function: keccak or blake2b")
	help := getopt.BoolLong("help", 'h', "display help")
	getopt.Parse()

	if *help {
		getopt.Usage()
		os.Exit(0)
	}

	var hasher nomt.NodeHasher
	switch *hasherName {
	case "keccak":
		hasher = nomt.KeccakHasher{}
	case "blake2b":
		hasher = nomt.Blake2bHasher{}
	default:
		log.Fatalf("unknown hasher: %q", *hasherName)
	}

	trie, err := nomt.NewTrie(nomt.NewInMemoryDatabase(), hasher)
	if err != nil {
		log.Fatal(err)
	}

	// Seed the trie with random keys, then overwrite half of them and
	// delete a quarter in a single batch so the witness exercises inserts,
	// updates, and deletes.
	seeded := make([]nomt.KeyPath, *count)
	for i := range seeded {
		seeded[i] = randomKey()
		if err := trie.Put(seeded[i], randomValue()); err != nil {
			log.Fatal(err)
		}
	}

	ops := make([]nomt.UpdateOp, 0, 2*(*count))
	for i, key := range seeded {
		switch i % 4 {
		case 0, 1:
			value := randomValue()
			ops = append(ops, nomt.UpdateOp{Key: key, Value: &value})
		case 2:
			ops = append(ops, nomt.UpdateOp{Key: key})
		}
	}
	for i := 0; i < *count; i++ {
		value := randomValue()
		ops = append(ops, nomt.UpdateOp{Key: randomKey(), Value: &value})
	}
	sort.Slice(ops, func(i, j int) bool {
		return lessKey(ops[i].Key, ops[j].Key)
	})
	ops = dedupeKeys(ops)

	prevRoot, newRoot, updates, err := trie.CommitBatch(ops)
	if err != nil {
		log.Fatal(err)
	}

	verified, err := nomt.VerifyUpdate(hasher, prevRoot, updates)
	if err != nil {
		log.Fatal(err)
	}
	if verified != newRoot {
		log.Fatalf("verified root %s does not match committed root %s", verified, newRoot)
	}

	out := witness{
		Hasher:   *hasherName,
		PrevRoot: prevRoot.String(),
		NewRoot:  newRoot.String(),
	}
	for _, update := range updates {
		path := witnessPath{
			Proof: "0x" + hex.EncodeToString(encodeUpdateProof(&update)),
		}
		for _, op := range update.Ops {
			wop := witnessOp{Key: op.Key.String()}
			if op.Value != nil {
				v := "0x" + hex.EncodeToString(op.Value[:])
				wop.Value = &v
			}
			path.Ops = append(path.Ops, wop)
		}
		out.Paths = append(out.Paths, path)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		log.Fatal(err)
	}

	log.Printf("wrote witness for %d paths to %s (root %s -> %s)", len(out.Paths), *output, out.PrevRoot, out.NewRoot)
}

// encodeUpdateProof re-encodes a verified path as a standalone path proof.
func encodeUpdateProof(update *nomt.PathUpdate) []byte {
	proof := nomt.PathProof{}
	if leaf := update.Inner.Terminal(); leaf != nil {
		proof.Terminal = nomt.LeafTerminal(*leaf)
	} else {
		proof.Terminal = nomt.TerminatorTerminal(update.Inner.Path())
	}
	proof.Siblings = update.Inner.Siblings()
	return nomt.EncodePathProof(&proof)
}

func randomKey() nomt.KeyPath {
	var key nomt.KeyPath
	if _, err := rand.Read(key[:]); err != nil {
		log.Fatal(err)
	}
	return key
}

func randomValue() nomt.ValueHash {
	var value nomt.ValueHash
	if _, err := rand.Read(value[:]); err != nil {
		log.Fatal(err)
	}
	return value
}

// dedupeKeys drops all but the first of any ops sharing a key. Keys are
// random 256-bit values, so this is only a guard against astronomically
// unlikely collisions breaking the strict ordering requirement.
func dedupeKeys(ops []nomt.UpdateOp) []nomt.UpdateOp {
	out := ops[:0]
	for i, op := range ops {
		if i == 0 || op.Key != ops[i-1].Key {
			out = append(out, op)
		}
	}
	return out
}

func lessKey(a, b nomt.KeyPath) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
