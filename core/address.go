// SPDX-License-Identifier: BUSL-1.1
package core

import (
	"encoding/hex"
	"fmt"
)

// Address identifies an account by its 32-byte public-key hash.
type Address [32]byte

// Hash is a 32-byte Blake2b or SHA-256 digest, depending on context.
type Hash [32]byte

// Hex renders the address as a "0x"-prefixed lowercase hex string.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// Bytes returns the raw 32-byte slice backing the address.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Hex renders the hash as a "0x"-prefixed lowercase hex string.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) Bytes() []byte { return h[:] }

// AddressZero is the well-known zero address used as the default caller in
// diagnostic tooling and as the system account for genesis installation.
var AddressZero = Address{}

// BytesToAddress left-pads or truncates b to the fixed Address width.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > len(a) {
		b = b[len(b)-len(a):]
	}
	copy(a[len(a)-len(b):], b)
	return a
}

// BytesToHash left-pads or truncates b to the fixed Hash width.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

// MustHexToAddress parses a "0x"-prefixed 32-byte hex string; it panics on
// malformed input and is intended for constants and tests.
func MustHexToAddress(s string) Address {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid address hex %q: %v", s, err))
	}
	return BytesToAddress(b)
}
