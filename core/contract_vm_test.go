package core_test

import (
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	core "synnergy-network/core"
)

// compileSampleWasm compiles the testdata/ret_hello.wat fixture, skipping the
// test outright when wat2wasm isn't on PATH (matching wat2wasm's own
// not-found handling in core.CompileWASM).
func compileSampleWasm(t *testing.T) []byte {
	t.Helper()
	watPath := filepath.Join("testdata", "ret_hello.wat")
	wasm, _, err := core.CompileWASM(watPath, t.TempDir())
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("wat2wasm not installed")
		}
		t.Fatalf("compile wasm: %v", err)
	}
	return wasm
}

// TestExecutorRetValue runs a minimal module that calls ret() with a literal
// byte string and checks the executor surfaces it as the call's return
// value, matching the ReturnedValue leg of the call state machine (spec
// section 4.5).
func TestExecutorRetValue(t *testing.T) {
	wasm := compileSampleWasm(t)

	store := core.NewTrieStore()
	root := store.EmptyRoot()
	reader := core.NewTrieStateReader(store, root)
	tc := core.NewTrackingCopy(reader)

	owner := core.Address{1}
	rc := core.NewRuntimeContext(
		tc,
		core.AccountKey(owner),
		make(core.NamedKeys),
		nil,
		map[core.Address]struct{}{owner: {}},
		1_000_000,
		0,
		core.Hash{2},
		core.PhaseSession,
		1,
	)

	mint := core.NewMintContract()
	pos := core.NewProofOfStakeContract(mint, core.URef{})
	ex := core.NewExecutor(mint, pos, core.Hash{0xAA}, core.Hash{0xBB})

	result, err := ex.Exec(rc, wasm)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if string(result.ReturnValue) != "hello" {
		t.Fatalf("unexpected return value: %q", result.ReturnValue)
	}
	if result.RevertCode != nil {
		t.Fatalf("unexpected revert: %+v", result.RevertCode)
	}

	info, found := ex.Sandboxes().Status(rc.DeployHash(), rc.Phase())
	if !found {
		t.Fatalf("expected a sandbox record for the finished execution")
	}
	if info.Active {
		t.Fatalf("expected the sandbox to be stopped once Exec returns")
	}
}

// TestExecutorRevert runs a module that reverts with a fixed ApiError code
// and checks the executor translates it into a *Reverted error rather than a
// trap.
func TestExecutorRevert(t *testing.T) {
	watPath := filepath.Join("testdata", "revert_code.wat")
	wasm, _, err := core.CompileWASM(watPath, t.TempDir())
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("wat2wasm not installed")
		}
		t.Fatalf("compile wasm: %v", err)
	}

	store := core.NewTrieStore()
	root := store.EmptyRoot()
	reader := core.NewTrieStateReader(store, root)
	tc := core.NewTrackingCopy(reader)

	owner := core.Address{1}
	rc := core.NewRuntimeContext(
		tc,
		core.AccountKey(owner),
		make(core.NamedKeys),
		nil,
		map[core.Address]struct{}{owner: {}},
		1_000_000,
		0,
		core.Hash{3},
		core.PhaseSession,
		1,
	)

	mint := core.NewMintContract()
	pos := core.NewProofOfStakeContract(mint, core.URef{})
	ex := core.NewExecutor(mint, pos, core.Hash{0xAA}, core.Hash{0xBB})

	_, err = ex.Exec(rc, wasm)
	reverted, ok := core.AsReverted(err)
	if !ok {
		t.Fatalf("expected a Reverted error, got %v", err)
	}
	if reverted.Code != core.UserError(42) {
		t.Fatalf("unexpected revert code: %v", reverted.Code)
	}
}
