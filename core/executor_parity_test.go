package core_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	core "synnergy-network/core"
)

// encodeU32LE mirrors bytesrepr's private encodeU32, reimplemented here
// since core_test cannot reach unexported helpers.
func encodeU32LE(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

// encodeCallArgs renders a named-argument map in the wire format host.go's
// decodeNamedArgs expects: a u32 count followed by (name, CLValue) pairs,
// each name itself length-prefixed.
func encodeCallArgs(order []string, args map[string]core.CLValue) []byte {
	out := encodeU32LE(uint32(len(order)))
	for _, name := range order {
		nb := []byte(name)
		out = append(out, encodeU32LE(uint32(len(nb)))...)
		out = append(out, nb...)
		cb, err := args[name].ToBytes()
		if err != nil {
			panic(err)
		}
		out = append(out, cb...)
	}
	return out
}

// watBytesLiteral renders b as a WAT data-segment string using a \xx escape
// per byte, which is valid for any byte value regardless of printability.
func watBytesLiteral(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, "\\%02x", c)
	}
	return sb.String()
}

// buildMintTransferModule renders a session module whose entire body is one
// call_contract invocation against the mint system contract's "transfer"
// entry point, with the given source/target purses and amount, followed by
// ret()ing the i32 result code call_contract produced (0 on success, an
// ApiError code on revert).
func buildMintTransferModule(t *testing.T, mintHash core.Hash, src, dst core.URef, amount *big.Int) string {
	t.Helper()

	args := encodeCallArgs([]string{"source", "target", "amount"}, map[string]core.CLValue{
		"source": core.CLURef(src),
		"target": core.CLURef(dst),
		"amount": core.CLU512(amount),
	})

	ep := []byte("transfer")
	data := append(append(append([]byte{}, mintHash.Bytes()...), ep...), args...)

	const hashLen = 32
	epOffset := int32(hashLen)
	epLen := int32(len(ep))
	argsOffset := epOffset + epLen
	argsLen := int32(len(args))
	destPtr := argsOffset + argsLen
	rcPtr := destPtr + 8

	wat := fmt.Sprintf(`(module
  (import "env" "call_contract" (func $call_contract (param i32 i32 i32 i32 i32 i32 i32) (result i32)))
  (import "env" "ret" (func $ret (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "%s")
  (func (export "call")
    (local $rc i32)
    (local.set $rc
      (call $call_contract
        (i32.const 0) (i32.const %d)
        (i32.const %d) (i32.const %d)
        (i32.const %d) (i32.const %d)
        (i32.const %d)))
    (i32.store (i32.const %d) (local.get $rc))
    (call $ret (i32.const %d) (i32.const 4)))
)
`, watBytesLiteral(data), hashLen, epOffset, epLen, argsOffset, argsLen, destPtr, rcPtr, rcPtr)

	path := filepath.Join(t.TempDir(), "mint_transfer.wat")
	if err := os.WriteFile(path, []byte(wat), 0o644); err != nil {
		t.Fatalf("write wat fixture: %v", err)
	}
	return path
}

// newParityRC builds a fresh, independent RuntimeContext over its own
// TrieStore, seeded with the same (deployHash, phase) every call so that two
// separately-constructed contexts mint identical URef/hash addresses when
// driven through the same sequence of calls (spec section 4.3's
// determinism invariant).
func newParityRC(deployHash core.Hash) *core.RuntimeContext {
	store := core.NewTrieStore()
	root := store.EmptyRoot()
	tc := core.NewTrackingCopy(core.NewTrieStateReader(store, root))
	owner := core.Address{7}
	return core.NewRuntimeContext(
		tc,
		core.AccountKey(owner),
		make(core.NamedKeys),
		nil,
		map[core.Address]struct{}{owner: {}},
		1_000_000,
		0,
		deployHash,
		core.PhaseSession,
		1,
	)
}

// TestMintTransferParity cross-checks Open Question (ii): a mint transfer
// driven through the wasm call_contract host surface must produce the same
// purse balances as calling MintContract.TransferPurseToPurse directly, the
// engine's direct system-contract fast path (spec section 4.7).
func TestMintTransferParity(t *testing.T) {
	deployHash := core.Hash{9}
	mintHash := core.Hash{0xAA}
	posHash := core.Hash{0xBB}
	startingBalance := big.NewInt(1_000)
	transferAmount := big.NewInt(400)

	// Direct path: call the system contract method in-process, with no wasm
	// instantiation at all.
	rcDirect := newParityRC(deployHash)
	mintDirect := core.NewMintContract()
	srcDirect, err := mintDirect.CreatePurse(rcDirect)
	if err != nil {
		t.Fatalf("create src purse: %v", err)
	}
	dstDirect, err := mintDirect.CreatePurse(rcDirect)
	if err != nil {
		t.Fatalf("create dst purse: %v", err)
	}
	if err := mintDirect.Mint(rcDirect, srcDirect, startingBalance); err != nil {
		t.Fatalf("seed src purse: %v", err)
	}
	if err := mintDirect.TransferPurseToPurse(rcDirect, srcDirect, dstDirect, transferAmount); err != nil {
		t.Fatalf("direct transfer: %v", err)
	}
	srcBalDirect, err := mintDirect.Balance(rcDirect, srcDirect)
	if err != nil {
		t.Fatalf("read src balance: %v", err)
	}
	dstBalDirect, err := mintDirect.Balance(rcDirect, dstDirect)
	if err != nil {
		t.Fatalf("read dst balance: %v", err)
	}

	// Wasm path: the same sequence of purse creation and seeding, but the
	// transfer itself runs as a guest module's call_contract invocation
	// against the mint system-contract fast path.
	rcWasm := newParityRC(deployHash)
	mintWasm := core.NewMintContract()
	srcWasm, err := mintWasm.CreatePurse(rcWasm)
	if err != nil {
		t.Fatalf("create src purse: %v", err)
	}
	dstWasm, err := mintWasm.CreatePurse(rcWasm)
	if err != nil {
		t.Fatalf("create dst purse: %v", err)
	}
	if err := mintWasm.Mint(rcWasm, srcWasm, startingBalance); err != nil {
		t.Fatalf("seed src purse: %v", err)
	}
	if srcWasm.Addr != srcDirect.Addr || dstWasm.Addr != dstDirect.Addr {
		t.Fatalf("address generators diverged between the two paths: src %s/%s dst %s/%s",
			srcWasm.Addr, srcDirect.Addr, dstWasm.Addr, dstDirect.Addr)
	}

	posWasm := core.NewProofOfStakeContract(mintWasm, core.URef{})
	ex := core.NewExecutor(mintWasm, posWasm, mintHash, posHash)

	watPath := buildMintTransferModule(t, mintHash, srcWasm, dstWasm, transferAmount)
	wasm, _, err := core.CompileWASM(watPath, t.TempDir())
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("wat2wasm not installed")
		}
		t.Fatalf("compile wasm: %v", err)
	}

	result, err := ex.Exec(rcWasm, wasm)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(result.ReturnValue) != 4 {
		t.Fatalf("expected a 4-byte call_contract result code, got %d bytes", len(result.ReturnValue))
	}
	if code := binary.LittleEndian.Uint32(result.ReturnValue); code != 0 {
		t.Fatalf("call_contract transfer reverted with code %d", code)
	}

	srcBalWasm, err := mintWasm.Balance(rcWasm, srcWasm)
	if err != nil {
		t.Fatalf("read src balance: %v", err)
	}
	dstBalWasm, err := mintWasm.Balance(rcWasm, dstWasm)
	if err != nil {
		t.Fatalf("read dst balance: %v", err)
	}

	if srcBalWasm.Cmp(srcBalDirect) != 0 {
		t.Fatalf("source purse balance diverged: wasm=%s direct=%s", srcBalWasm, srcBalDirect)
	}
	if dstBalWasm.Cmp(dstBalDirect) != 0 {
		t.Fatalf("dest purse balance diverged: wasm=%s direct=%s", dstBalWasm, dstBalDirect)
	}
}

// TestMintTransferParityInsufficientFunds checks the revert leg: both paths
// must reject a transfer exceeding the source purse's balance with the same
// ApiTransfer code, per spec section 7's contract-observable/fatal
// boundary.
func TestMintTransferParityInsufficientFunds(t *testing.T) {
	deployHash := core.Hash{10}
	mintHash := core.Hash{0xAA}
	posHash := core.Hash{0xBB}
	startingBalance := big.NewInt(100)
	transferAmount := big.NewInt(500)

	rcDirect := newParityRC(deployHash)
	mintDirect := core.NewMintContract()
	srcDirect, _ := mintDirect.CreatePurse(rcDirect)
	dstDirect, _ := mintDirect.CreatePurse(rcDirect)
	if err := mintDirect.Mint(rcDirect, srcDirect, startingBalance); err != nil {
		t.Fatalf("seed src purse: %v", err)
	}
	directErr := mintDirect.TransferPurseToPurse(rcDirect, srcDirect, dstDirect, transferAmount)
	directReverted, ok := core.AsReverted(directErr)
	if !ok {
		t.Fatalf("expected a Reverted error from the direct path, got %v", directErr)
	}

	rcWasm := newParityRC(deployHash)
	mintWasm := core.NewMintContract()
	srcWasm, _ := mintWasm.CreatePurse(rcWasm)
	dstWasm, _ := mintWasm.CreatePurse(rcWasm)
	if err := mintWasm.Mint(rcWasm, srcWasm, startingBalance); err != nil {
		t.Fatalf("seed src purse: %v", err)
	}

	posWasm := core.NewProofOfStakeContract(mintWasm, core.URef{})
	ex := core.NewExecutor(mintWasm, posWasm, mintHash, posHash)

	watPath := buildMintTransferModule(t, mintHash, srcWasm, dstWasm, transferAmount)
	wasm, _, err := core.CompileWASM(watPath, t.TempDir())
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("wat2wasm not installed")
		}
		t.Fatalf("compile wasm: %v", err)
	}

	result, err := ex.Exec(rcWasm, wasm)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	wasmCode := core.ApiError(binary.LittleEndian.Uint32(result.ReturnValue))
	if wasmCode != directReverted.Code {
		t.Fatalf("revert code diverged: wasm=%s direct=%s", wasmCode, directReverted.Code)
	}
}
