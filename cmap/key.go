package cmap

import (
	"encoding/binary"
	"fmt"
)

// KeySize is the only supported key length in bytes.
const KeySize = 8

// Key is an 8-byte cache key, stored and compared by value.
type Key uint64

// KeyFromBytes converts a raw key. Any length other than KeySize is a
// contract violation (ErrKeyLength).
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) != KeySize {
		return 0, &ContractViolation{
			Op:  "key",
			Err: fmt.Errorf("%w: got %d bytes", ErrKeyLength, len(b)),
		}
	}
	return Key(binary.LittleEndian.Uint64(b)), nil
}

// Bytes returns the little-endian bit pattern of k.
func (k Key) Bytes() [KeySize]byte {
	var b [KeySize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(k))
	return b
}

func (k Key) String() string { return fmt.Sprintf("0x%x", uint64(k)) }
