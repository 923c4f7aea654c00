package nomt

import (
	"encoding/binary"
	"fmt"
)

// Proof encoding tags.
const (
	terminalTagTerminator byte = 0
	terminalTagLeaf       byte = 1
)

// EncodePathProof serializes a path proof to its canonical byte form: a
// terminal tag, the terminal body (key path and value hash for a leaf, depth
// and packed bits for a terminator), and a length-prefixed sibling array.
func EncodePathProof(p *PathProof) []byte {
	var out []byte
	if leaf := p.Terminal.Leaf(); leaf != nil {
		out = append(out, terminalTagLeaf)
		out = append(out, leaf.KeyPath[:]...)
		out = append(out, leaf.ValueHash[:]...)
	} else {
		pos := p.Terminal.Position()
		out = append(out, terminalTagTerminator)
		out = binary.BigEndian.AppendUint16(out, uint16(pos.Depth()))
		path := pos.Path()
		out = append(out, path[:(pos.Depth()+7)/8]...)
	}

	out = binary.BigEndian.AppendUint16(out, uint16(len(p.Siblings)))
	for _, sibling := range p.Siblings {
		out = append(out, sibling[:]...)
	}
	return out
}

// DecodePathProof parses a path proof from its canonical byte form. Trailing
// bytes are rejected.
func DecodePathProof(data []byte) (*PathProof, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("proof too short: missing terminal tag")
	}
	tag, rest := data[0], data[1:]

	var terminal PathProofTerminal
	switch tag {
	case terminalTagLeaf:
		if len(rest) < 64 {
			return nil, fmt.Errorf("leaf terminal truncated: expected 64 bytes, got %d", len(rest))
		}
		var leaf LeafData
		copy(leaf.KeyPath[:], rest[:32])
		copy(leaf.ValueHash[:], rest[32:64])
		terminal = LeafTerminal(leaf)
		rest = rest[64:]
	case terminalTagTerminator:
		if len(rest) < 2 {
			return nil, fmt.Errorf("terminator terminal truncated")
		}
		depth := int(binary.BigEndian.Uint16(rest))
		rest = rest[2:]
		if depth > MaxDepth {
			return nil, fmt.Errorf("terminator depth out of range: %d", depth)
		}
		pathBytes := (depth + 7) / 8
		if len(rest) < pathBytes {
			return nil, fmt.Errorf("terminator bits truncated: expected %d bytes, got %d", pathBytes, len(rest))
		}
		var key KeyPath
		copy(key[:], rest[:pathBytes])
		terminal = TerminatorTerminal(PositionOf(key, depth))
		rest = rest[pathBytes:]
	default:
		return nil, fmt.Errorf("unknown terminal tag: %d", tag)
	}

	if len(rest) < 2 {
		return nil, fmt.Errorf("sibling count truncated")
	}
	count := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if count > MaxDepth {
		return nil, fmt.Errorf("sibling count out of range: %d", count)
	}
	if len(rest) != count*32 {
		return nil, fmt.Errorf("invalid sibling data length: expected %d, got %d", count*32, len(rest))
	}

	siblings := make([]Node, count)
	for i := range siblings {
		copy(siblings[i][:], rest[i*32:])
	}

	return &PathProof{Terminal: terminal, Siblings: siblings}, nil
}
