// SPDX-License-Identifier: BUSL-1.1
//
// bytesrepr implements the engine's canonical binary serialization: little
// endian, length-prefixed (u32) sequences, and leading-u8 tagged unions. See
// spec section 6 ("External interfaces") for the wire format this file
// implements; every StoredValue/CLValue/Key/trie-node encoder in this package
// is built on these primitives.
package core

import (
	"encoding/binary"
	"fmt"
)

// ErrEarlyEndOfStream mirrors the engine's EarlyEndOfStream revert code: the
// byte stream ended before a value could be fully decoded.
var ErrEarlyEndOfStream = fmt.Errorf("bytesrepr: early end of stream")

// ErrLeftOverBytes mirrors LeftOverBytes: trailing bytes remained after a
// value finished decoding where none were expected.
var ErrLeftOverBytes = fmt.Errorf("bytesrepr: left-over bytes")

// ToBytes is implemented by every serializable value in this package.
type ToBytes interface {
	ToBytes() ([]byte, error)
}

// decoder decodes a value from the front of b, returning the
// decoded value and the remaining (unconsumed) bytes.
type decoder func(b []byte) (interface{}, []byte, error)

// --- primitive encoders -----------------------------------------------

func encodeU8(v byte) []byte { return []byte{v} }

func decodeU8(b []byte) (byte, []byte, error) {
	if len(b) < 1 {
		return 0, nil, ErrEarlyEndOfStream
	}
	return b[0], b[1:], nil
}

func encodeU32(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}

func decodeU32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrEarlyEndOfStream
	}
	return binary.LittleEndian.Uint32(b[:4]), b[4:], nil
}

func encodeU64(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out
}

func decodeU64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, ErrEarlyEndOfStream
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], nil
}

// encodeBytes writes a u32-length-prefixed byte slice.
func encodeBytes(v []byte) []byte {
	out := make([]byte, 0, 4+len(v))
	out = append(out, encodeU32(uint32(len(v)))...)
	out = append(out, v...)
	return out
}

func decodeBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := decodeU32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, ErrEarlyEndOfStream
	}
	return rest[:n], rest[n:], nil
}

// encodeString writes a u32-length-prefixed UTF-8 string.
func encodeString(s string) []byte { return encodeBytes([]byte(s)) }

func decodeString(b []byte) (string, []byte, error) {
	v, rest, err := decodeBytes(b)
	if err != nil {
		return "", nil, err
	}
	return string(v), rest, nil
}

// encodeBigUint serializes an arbitrary-precision unsigned integer as
// length_prefix(u8) + little_endian_bytes(length_prefix), per spec section 6.
// The minimal big-endian representation is reversed to little-endian and any
// leading (i.e. trailing, once reversed) zero bytes are trimmed so the
// encoding is canonical.
func encodeBigUint(be []byte) []byte {
	// trim leading zero bytes from the big-endian input
	i := 0
	for i < len(be) && be[i] == 0 {
		i++
	}
	be = be[i:]
	le := make([]byte, len(be))
	for j, bb := range be {
		le[len(be)-1-j] = bb
	}
	out := make([]byte, 0, 1+len(le))
	out = append(out, byte(len(le)))
	out = append(out, le...)
	return out
}

func decodeBigUint(b []byte) (be []byte, rest []byte, err error) {
	if len(b) < 1 {
		return nil, nil, ErrEarlyEndOfStream
	}
	n := int(b[0])
	b = b[1:]
	if len(b) < n {
		return nil, nil, ErrEarlyEndOfStream
	}
	le := b[:n]
	out := make([]byte, n)
	for j, bb := range le {
		out[n-1-j] = bb
	}
	return out, b[n:], nil
}

// encodeSeq writes a u32 count followed by each element's own encoding.
func encodeSeq(items [][]byte) []byte {
	out := encodeU32(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// serializedLengthBytes returns len(ToBytes(v)); used to satisfy invariant 1
// of spec section 8 without re-serializing in hot paths.
func serializedLengthBytes(v []byte) int { return 4 + len(v) }
