// SPDX-License-Identifier: BUSL-1.1
package core

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// AccessRights is a combinable capability mask carried by a URef.
type AccessRights uint8

const (
	AccessNone  AccessRights = 0
	AccessRead  AccessRights = 1 << 0
	AccessWrite AccessRights = 1 << 1
	AccessAdd   AccessRights = 1 << 2

	// AccessReadAddWrite is granted to every URef minted by new_uref,
	// create_contract_package_at_hash, etc. (spec section 4.4).
	AccessReadAddWrite = AccessRead | AccessWrite | AccessAdd
)

// Has reports whether every bit of need is present in r.
func (r AccessRights) Has(need AccessRights) bool { return r&need == need }

func (r AccessRights) String() string {
	s := ""
	if r&AccessRead != 0 {
		s += "R"
	}
	if r&AccessWrite != 0 {
		s += "W"
	}
	if r&AccessAdd != 0 {
		s += "A"
	}
	if s == "" {
		return "-"
	}
	return s
}

// URef is an unforgeable reference: a 32-byte address plus capability bits.
// Equality for the purposes of the tracking copy and global state ignores
// AccessRights (spec section 3: "Equality on keys ignores the access-rights
// bits of a URef").
type URef struct {
	Addr   Hash
	Access AccessRights
}

// NewURef builds a URef from a raw address and access mask.
func NewURef(addr Hash, access AccessRights) URef { return URef{Addr: addr, Access: access} }

// WithAccess returns a copy of the URef with a (possibly narrowed) access
// mask; used when a caller passes a URef as an argument with fewer rights
// than it holds.
func (u URef) WithAccess(a AccessRights) URef { return URef{Addr: u.Addr, Access: a} }

// SameAddress reports address equality, ignoring access rights.
func (u URef) SameAddress(o URef) bool { return u.Addr == o.Addr }

func (u URef) String() string { return fmt.Sprintf("uref-%s-%s", u.Addr.Hex(), u.Access) }

func (u URef) ToBytes() ([]byte, error) {
	out := make([]byte, 0, 33)
	out = append(out, u.Addr[:]...)
	out = append(out, byte(u.Access))
	return out, nil
}

func urefFromBytes(b []byte) (URef, []byte, error) {
	if len(b) < 33 {
		return URef{}, nil, ErrEarlyEndOfStream
	}
	var addr Hash
	copy(addr[:], b[:32])
	return URef{Addr: addr, Access: AccessRights(b[32])}, b[33:], nil
}

// KeyTag discriminates the three Key variants (spec section 6: Key tags).
type KeyTag byte

const (
	KeyTagAccount KeyTag = 0
	KeyTagHash    KeyTag = 1
	KeyTagURef    KeyTag = 2
)

// Key is a tagged address into global state: an Account, a Hash (contract or
// package address), or a URef.
type Key struct {
	Tag     KeyTag
	Account Address
	Hash    Hash
	URef    URef
}

func AccountKey(a Address) Key { return Key{Tag: KeyTagAccount, Account: a} }
func HashKey(h Hash) Key       { return Key{Tag: KeyTagHash, Hash: h} }
func URefKey(u URef) Key       { return Key{Tag: KeyTagURef, URef: u} }

// Normalize strips access-rights bits for use as a map key / equality check,
// per spec section 3's URef-identity invariant.
func (k Key) Normalize() Key {
	if k.Tag != KeyTagURef {
		return k
	}
	return Key{Tag: KeyTagURef, URef: URef{Addr: k.URef.Addr}}
}

// Equal compares two keys by identity, ignoring URef access-rights bits.
func (k Key) Equal(o Key) bool { return k.Normalize() == o.Normalize() }

// String renders a human-readable form used in logs and CLI output.
func (k Key) String() string {
	switch k.Tag {
	case KeyTagAccount:
		return "account-" + k.Account.Hex()
	case KeyTagHash:
		return "hash-" + k.Hash.Hex()
	case KeyTagURef:
		return k.URef.String()
	default:
		return fmt.Sprintf("key-unknown-tag-%d", k.Tag)
	}
}

// bytesrepr encoding: the serialized form is also used verbatim as the trie
// path, so it must be injective and self-delimiting.
func (k Key) ToBytes() ([]byte, error) {
	switch k.Tag {
	case KeyTagAccount:
		out := []byte{byte(KeyTagAccount)}
		return append(out, k.Account[:]...), nil
	case KeyTagHash:
		out := []byte{byte(KeyTagHash)}
		return append(out, k.Hash[:]...), nil
	case KeyTagURef:
		ub, err := k.URef.ToBytes()
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(KeyTagURef)}, ub...), nil
	default:
		return nil, fmt.Errorf("key: unknown tag %d", k.Tag)
	}
}

func KeyFromBytes(b []byte) (Key, []byte, error) {
	if len(b) < 1 {
		return Key{}, nil, ErrEarlyEndOfStream
	}
	tag, rest := KeyTag(b[0]), b[1:]
	switch tag {
	case KeyTagAccount:
		if len(rest) < 32 {
			return Key{}, nil, ErrEarlyEndOfStream
		}
		var a Address
		copy(a[:], rest[:32])
		return AccountKey(a), rest[32:], nil
	case KeyTagHash:
		if len(rest) < 32 {
			return Key{}, nil, ErrEarlyEndOfStream
		}
		var h Hash
		copy(h[:], rest[:32])
		return HashKey(h), rest[32:], nil
	case KeyTagURef:
		u, tail, err := urefFromBytes(rest)
		if err != nil {
			return Key{}, nil, err
		}
		return URefKey(u), tail, nil
	default:
		return Key{}, nil, fmt.Errorf("key: unknown tag %d", tag)
	}
}

// TriePath returns the canonical byte path used to descend the global-state
// trie. It normalizes URef access-rights so that reads/writes through
// differently-scoped URefs to the same address hit the same trie node.
func (k Key) TriePath() []byte {
	b, _ := k.Normalize().ToBytes()
	return b
}

// DeriveHashKey deterministically derives a Hash-tagged key from a deploy
// hash and a monotonic counter, per spec section 3's invariant on Hash-key
// addressing.
func DeriveHashKey(deployHash Hash, counter uint32) Hash {
	buf := make([]byte, 0, 36)
	buf = append(buf, deployHash[:]...)
	buf = append(buf, encodeU32(counter)...)
	return BytesToHash(crypto.Keccak256(buf))
}

// bytesEqual is a small helper kept local to avoid importing bytes.Equal
// everywhere it's needed in this file's neighbors.
func bytesEqual(a, b []byte) bool { return bytes.Equal(a, b) }
