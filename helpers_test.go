package nomt

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// testKey returns a key path with the given leading byte and zeroes
// elsewhere, so the first bits are easy to reason about in scenarios.
func testKey(first byte) KeyPath {
	var key KeyPath
	key[0] = first
	return key
}

// testValue returns a value hash with the given leading byte.
func testValue(first byte) ValueHash {
	var value ValueHash
	value[0] = first
	return value
}

// derivedKey returns a deterministic pseudo-random key for bulk tests.
func derivedKey(i uint64) KeyPath {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], i)
	var key KeyPath
	copy(key[:], crypto.Keccak256(seed[:]))
	return key
}

// derivedValue returns a deterministic pseudo-random value for bulk tests.
func derivedValue(i uint64) ValueHash {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], ^i)
	var value ValueHash
	copy(value[:], crypto.Keccak256(seed[:]))
	return value
}

func valueRef(v ValueHash) *ValueHash {
	return &v
}
