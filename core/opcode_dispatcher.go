// SPDX-License-Identifier: BUSL-1.1
//
// Opcode Dispatcher
// -----------------
//
//   - Every host function the engine exposes to a deployed module is also
//     assigned a unique 24-bit opcode: 0xCCNNNN → CC = category, NNNN = ordinal.
//     This numbering is audit/tooling-facing only (cmd/opcode-lint, CLI
//     dumps); the hot path of host.go dispatches by name directly against
//     wasmer's "env" import namespace and never consults this table.
//
//   - A duplicate host-function name in the catalogue is FATAL at start-up.
//     Duplicate opcode values are not checked here; cmd/opcode-lint reports
//     them.
//
//     Format per line:
//     <HostFunc>  =  <24-bit-binary>  =  <HexOpcode>
package core

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Opcode is a 24-bit, deterministic instruction identifier.
type Opcode uint32

// nameToOp holds the runtime name->opcode mapping (populated once in
// init()). There is no live Dispatch path: host.go dispatches by name
// directly against wasmer's "env" import namespace, so this table exists
// purely for audit/tooling (cmd/opcode-lint, CLI dumps) — see the package
// comment.
var (
	nameToOp = make(map[string]Opcode, 32)
	mu       sync.RWMutex
)

// catalogue assigns one opcode per host function in the engine's §4.4
// surface, all under category 0x01 "Host". Unlike the teacher's ~300-entry,
// two-dozen-category catalogue, this engine exposes a single, narrow
// surface to guest code, so one category covers it.
var catalogue = []struct {
	name string
	op   Opcode
}{
	{"GetNamedArg", 0x010001},
	{"PutKey", 0x010002},
	{"GetKey", 0x010003},
	{"RemoveKey", 0x010004},
	{"NewURef", 0x010005},
	{"Read", 0x010006},
	{"Write", 0x010007},
	{"Add", 0x010008},
	{"ReadLocal", 0x010009},
	{"WriteLocal", 0x01000A},
	{"CallContract", 0x01000B},
	{"CallVersionedContract", 0x01000C},
	{"CreateContractPackageAtHash", 0x01000D},
	{"AddContractVersion", 0x01000E},
	{"TransferToAccount", 0x01000F},
	{"TransferFromPurseToPurse", 0x010010},
	{"Ret", 0x010011},
	{"Revert", 0x010012},
	{"GetPhase", 0x010013},
	{"GetCaller", 0x010014},
	{"GetBlocktime", 0x010015},
}

// init populates the name/opcode table and fails fast on any duplicate.
func init() {
	mu.Lock()
	defer mu.Unlock()
	for _, entry := range catalogue {
		if _, exists := nameToOp[entry.name]; exists {
			logrus.Panicf("[OPCODES] collision: %s already registered", entry.name)
		}
		nameToOp[entry.name] = entry.op
		bin := make([]byte, 3)
		bin[0] = byte(entry.op >> 16)
		bin[1] = byte(entry.op >> 8)
		bin[2] = byte(entry.op)
		logrus.Debugf("[OPCODES] %-32s = %08b = 0x%06X", entry.name, bin, entry.op)
	}
	logrus.Infof("[OPCODES] %d host functions registered", len(nameToOp))
}

// Hex returns the canonical hexadecimal representation (upper-case, 6 digits).
func (op Opcode) Hex() string { return fmt.Sprintf("0x%06X", op) }

// Bytes gives the 3-byte big-endian encoding used in audit bytecode streams.
func (op Opcode) Bytes() []byte {
	b := make([]byte, 3)
	b[0] = byte(op >> 16)
	b[1] = byte(op >> 8)
	b[2] = byte(op)
	return b
}

// String implements fmt.Stringer.
func (op Opcode) String() string { return op.Hex() }

// ParseOpcode converts a 3-byte slice into an Opcode, validating length.
func ParseOpcode(b []byte) (Opcode, error) {
	if len(b) != 3 {
		return 0, fmt.Errorf("opcode length must be 3, got %d", len(b))
	}
	return Opcode(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])), nil
}

// MustParseOpcode is a helper that panics on error (used in tests/tools).
func MustParseOpcode(b []byte) Opcode {
	op, err := ParseOpcode(b)
	if err != nil {
		panic(err)
	}
	return op
}

// OpcodeInfo pairs a registered name with its opcode, for tooling.
type OpcodeInfo struct {
	Name string
	Op   Opcode
}

// Catalogue returns every (name, opcode) pair, sorted lexicographically by
// name. cmd/opcode-lint walks this to enforce the "unique entry per opcode"
// invariant at build time.
func Catalogue() []OpcodeInfo {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]OpcodeInfo, 0, len(nameToOp))
	for n, op := range nameToOp {
		out = append(out, OpcodeInfo{Name: n, Op: op})
	}
	for i := 0; i < len(out)-1; i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Name < out[i].Name {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// DebugDump returns the full mapping in <name>=<hex> form, for CLI display.
func DebugDump() []string {
	cat := Catalogue()
	out := make([]string, 0, len(cat))
	for _, info := range cat {
		out = append(out, fmt.Sprintf("%s=%s", info.Name, info.Op.Hex()))
	}
	return out
}

// ToBytecode handy helper: returns the raw 3-byte opcode for a host function.
func ToBytecode(fn string) ([]byte, error) {
	op, ok := nameToOp[fn]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", fn)
	}
	return op.Bytes(), nil
}

// HexDump is syntactic sugar: hex-encodes the 3-byte opcode.
func HexDump(fn string) (string, error) {
	b, err := ToBytecode(fn)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}
