// SPDX-License-Identifier: BUSL-1.1
package core

import (
	"fmt"
	"math/big"
)

// CLTypeTag discriminates the CLType universe: primitives, fixed-width
// integers up to 512 bits, byte arrays, tuples, Option, Result, List, Map,
// URef and Key (spec section 3).
type CLTypeTag byte

const (
	CLTBool CLTypeTag = iota
	CLTI32
	CLTI64
	CLTU8
	CLTU32
	CLTU64
	CLTU128
	CLTU256
	CLTU512
	CLTUnit
	CLTString
	CLTKey
	CLTURef
	CLTOption
	CLTList
	CLTByteArray
	CLTResult
	CLTMap
	CLTTuple1
	CLTTuple2
	CLTTuple3
	CLTAny
)

// CLType is a recursive, tagged type descriptor. Inner is populated for the
// container variants (Option, List, Result's Ok/Err pair, Map's key/value,
// Tuple's members, ByteArray's fixed length via Len).
type CLType struct {
	Tag   CLTypeTag
	Inner []CLType
	Len   int // fixed byte-array length, when Tag == CLTByteArray
}

func SimpleType(tag CLTypeTag) CLType { return CLType{Tag: tag} }

func (t CLType) ToBytes() ([]byte, error) {
	out := []byte{byte(t.Tag)}
	switch t.Tag {
	case CLTByteArray:
		out = append(out, encodeU32(uint32(t.Len))...)
	case CLTOption, CLTList:
		inner, err := t.Inner[0].ToBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	case CLTResult:
		for _, c := range t.Inner {
			b, err := c.ToBytes()
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	case CLTMap:
		for _, c := range t.Inner {
			b, err := c.ToBytes()
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	case CLTTuple1, CLTTuple2, CLTTuple3:
		for _, c := range t.Inner {
			b, err := c.ToBytes()
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	}
	return out, nil
}

func CLTypeFromBytes(b []byte) (CLType, []byte, error) {
	if len(b) < 1 {
		return CLType{}, nil, ErrEarlyEndOfStream
	}
	tag, rest := CLTypeTag(b[0]), b[1:]
	switch tag {
	case CLTByteArray:
		n, tail, err := decodeU32(rest)
		if err != nil {
			return CLType{}, nil, err
		}
		return CLType{Tag: tag, Len: int(n)}, tail, nil
	case CLTOption, CLTList:
		inner, tail, err := CLTypeFromBytes(rest)
		if err != nil {
			return CLType{}, nil, err
		}
		return CLType{Tag: tag, Inner: []CLType{inner}}, tail, nil
	case CLTResult, CLTMap:
		a, tail, err := CLTypeFromBytes(rest)
		if err != nil {
			return CLType{}, nil, err
		}
		c, tail2, err := CLTypeFromBytes(tail)
		if err != nil {
			return CLType{}, nil, err
		}
		return CLType{Tag: tag, Inner: []CLType{a, c}}, tail2, nil
	case CLTTuple1, CLTTuple2, CLTTuple3:
		n := 1
		if tag == CLTTuple2 {
			n = 2
		} else if tag == CLTTuple3 {
			n = 3
		}
		inners := make([]CLType, 0, n)
		cur := rest
		for i := 0; i < n; i++ {
			c, tail, err := CLTypeFromBytes(cur)
			if err != nil {
				return CLType{}, nil, err
			}
			inners = append(inners, c)
			cur = tail
		}
		return CLType{Tag: tag, Inner: inners}, cur, nil
	default:
		return CLType{Tag: tag}, rest, nil
	}
}

// CLValue is a typed, self-describing serialized value: raw bytes plus the
// CLType needed to interpret them (spec section 3/6).
type CLValue struct {
	Bytes []byte
	Type  CLType
}

func (v CLValue) ToBytes() ([]byte, error) {
	typeBytes, err := v.Type.ToBytes()
	if err != nil {
		return nil, err
	}
	out := encodeBytes(v.Bytes)
	out = append(out, typeBytes...)
	return out, nil
}

func CLValueFromBytes(b []byte) (CLValue, []byte, error) {
	raw, rest, err := decodeBytes(b)
	if err != nil {
		return CLValue{}, nil, err
	}
	typ, tail, err := CLTypeFromBytes(rest)
	if err != nil {
		return CLValue{}, nil, err
	}
	return CLValue{Bytes: raw, Type: typ}, tail, nil
}

// --- constructors for common primitives -------------------------------

func CLBool(v bool) CLValue {
	b := byte(0)
	if v {
		b = 1
	}
	return CLValue{Bytes: []byte{b}, Type: SimpleType(CLTBool)}
}

func CLU64(v uint64) CLValue {
	return CLValue{Bytes: encodeU64(v), Type: SimpleType(CLTU64)}
}

func CLU32(v uint32) CLValue {
	return CLValue{Bytes: encodeU32(v), Type: SimpleType(CLTU32)}
}

func CLString(s string) CLValue {
	return CLValue{Bytes: encodeString(s), Type: SimpleType(CLTString)}
}

// CLU512 encodes an arbitrary-precision unsigned value (balances/motes use
// this type throughout the deploy pipeline).
func CLU512(v *big.Int) CLValue {
	return CLValue{Bytes: encodeBigUint(v.Bytes()), Type: SimpleType(CLTU512)}
}

func CLKey(k Key) CLValue {
	b, _ := k.ToBytes()
	return CLValue{Bytes: b, Type: SimpleType(CLTKey)}
}

func CLURef(u URef) CLValue {
	b, _ := u.ToBytes()
	return CLValue{Bytes: b, Type: SimpleType(CLTURef)}
}

// --- typed extraction, failing ApiError-style on mismatch --------------

func (v CLValue) AsU64() (uint64, error) {
	if v.Type.Tag != CLTU64 {
		return 0, fmt.Errorf("clvalue: %w: expected U64, got tag %d", ErrCLTypeMismatch, v.Type.Tag)
	}
	n, _, err := decodeU64(v.Bytes)
	return n, err
}

func (v CLValue) AsU512() (*big.Int, error) {
	if v.Type.Tag != CLTU512 {
		return nil, fmt.Errorf("clvalue: %w: expected U512, got tag %d", ErrCLTypeMismatch, v.Type.Tag)
	}
	be, _, err := decodeBigUint(v.Bytes)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(be), nil
}

func (v CLValue) AsString() (string, error) {
	if v.Type.Tag != CLTString {
		return "", fmt.Errorf("clvalue: %w: expected String, got tag %d", ErrCLTypeMismatch, v.Type.Tag)
	}
	s, _, err := decodeString(v.Bytes)
	return s, err
}

func (v CLValue) AsKey() (Key, error) {
	if v.Type.Tag != CLTKey {
		return Key{}, fmt.Errorf("clvalue: %w: expected Key, got tag %d", ErrCLTypeMismatch, v.Type.Tag)
	}
	k, _, err := KeyFromBytes(v.Bytes)
	return k, err
}

func (v CLValue) AsURef() (URef, error) {
	if v.Type.Tag != CLTURef {
		return URef{}, fmt.Errorf("clvalue: %w: expected URef, got tag %d", ErrCLTypeMismatch, v.Type.Tag)
	}
	u, _, err := urefFromBytes(v.Bytes)
	return u, err
}
