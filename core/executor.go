// SPDX-License-Identifier: BUSL-1.1
//
// executor.go is the module-instantiation and call-dispatch layer of spec
// section 4.5: given a RuntimeContext and a wasm module, instantiate it
// with the host.go import surface, run its "call" export, and translate the
// outcome into ReturnedValue/Reverted/Trapped. It also implements the
// nested-call protocol (call_contract/call_versioned_contract resolve a
// stored Contract, build a child RuntimeContext, and recurse) and the
// direct system-contract fast path that lets Mint/Proof-of-Stake entry
// points run as native Go instead of wasm. Grounded on
// virtual_machine.go's HeavyVM.Execute (store/module/instance construction,
// memory export lookup) generalized from its single "_start" demo call to
// the full nested dispatch of
// _examples/original_source/execution-engine/engine-core/src/execution/executor.rs.
package core

import (
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// Executor owns the wasmer engine and the two system contracts every deploy
// can reach without going through wasm (spec section 4.7).
type Executor struct {
	engine  *wasmer.Engine
	mint    *MintContract
	pos     *ProofOfStakeContract
	sandbox *SandboxRegistry

	mintHash Hash
	posHash  Hash
}

// NewExecutor wires an Executor to its engine and system contracts. mintHash
// and posHash are the well-known Hash-keys installed at genesis that the
// fast path recognizes.
func NewExecutor(mint *MintContract, pos *ProofOfStakeContract, mintHash, posHash Hash) *Executor {
	return &Executor{
		engine:   wasmer.NewEngine(),
		mint:     mint,
		pos:      pos,
		sandbox:  NewSandboxRegistry(),
		mintHash: mintHash,
		posHash:  posHash,
	}
}

// Sandboxes exposes the executor's resource-bookkeeping table, for CLI/
// diagnostic inspection of active and recently-finished executions.
func (e *Executor) Sandboxes() *SandboxRegistry { return e.sandbox }

// ExecResult is the outcome of running one wasm module to completion.
type ExecResult struct {
	ReturnValue []byte
	RevertCode  *ApiError
}

// Exec instantiates wasmBytes under rc, runs its "call" export, and resolves
// the call state machine: ReturnedValue/Reverted end normally; anything else
// from the instance call is a Trapped error that aborts the containing
// phase (spec section 7: only Reverted is observable by the guest, Trapped
// values propagate to the executor as fatal for that phase).
func (e *Executor) Exec(rc *RuntimeContext, wasmBytes []byte) (ExecResult, error) {
	// A nested call_contract frame runs inside the sandbox its phase's
	// top-level call already opened.
	limits := DefaultSandboxLimits
	if info, ok := e.sandbox.Status(rc.DeployHash(), rc.Phase()); ok && info.Active {
		limits = info.Limits
	} else {
		if _, err := e.sandbox.Start(rc.DeployHash(), rc.Phase(), limits); err != nil {
			return ExecResult{}, err
		}
		defer e.sandbox.Stop(rc.DeployHash(), rc.Phase())
	}

	store := wasmer.NewStore(e.engine)
	mod, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return ExecResult{}, fmt.Errorf("executor: module compile failed: %w", err)
	}

	hr := &hostRuntime{rc: rc, exec: e}
	imports := registerHost(store, hr)

	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return ExecResult{}, fmt.Errorf("executor: instantiation failed: %w", err)
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return ExecResult{}, errors.New("executor: wasm module has no exported memory")
	}
	if pages := uint32(mem.Size()); pages > limits.MaxMemoryPages {
		return ExecResult{}, fmt.Errorf("executor: module requests %d memory pages, sandbox limit is %d", pages, limits.MaxMemoryPages)
	}
	hr.mem = mem

	call, err := instance.Exports.GetFunction("call")
	if err != nil {
		return ExecResult{}, errors.New("executor: wasm module has no exported \"call\" function")
	}

	// ret()/revert() stop the guest with a sentinel error, which wasmer hands
	// back as a trap carrying only its text, so the outcome recorded by the
	// host closure decides how the call ended.
	_, callErr := call()
	switch {
	case hr.outcome.kind == outcomeReturned:
		return ExecResult{ReturnValue: hr.outcome.returnValue}, nil
	case hr.outcome.kind == outcomeReverted:
		code := hr.outcome.revertCode
		return ExecResult{}, Revert(code)
	case callErr == nil:
		// A module that returns without calling ret() or revert() produces no
		// return value, matching a session that relies purely on side effects.
		return ExecResult{}, nil
	default:
		if r, ok := AsReverted(callErr); ok {
			return ExecResult{}, r
		}
		return ExecResult{}, fmt.Errorf("executor: trapped: %w", callErr)
	}
}

// CallStoredContract resolves a Contract by its content hash and invokes one
// of its entry points, either natively (for the Mint/PoS fast path) or by
// instantiating its wasm (spec section 4.5/4.7).
func (e *Executor) CallStoredContract(rc *RuntimeContext, contractHash Hash, entryPointName string, args map[string]CLValue) ([]byte, error) {
	if contractHash == e.mintHash {
		return e.mint.Call(rc, entryPointName, args)
	}
	if contractHash == e.posHash {
		return e.pos.Call(rc, entryPointName, args)
	}

	sv, ok, err := rc.Read(HashKey(contractHash))
	if err != nil {
		return nil, err
	}
	if !ok || sv.Tag != SVTagContract {
		return nil, Revert(ApiContractNotFound)
	}
	contract := sv.Contract

	ep, ok := contract.EntryPoint(entryPointName)
	if !ok {
		return nil, Revert(ApiNoSuchMethod)
	}
	if err := e.checkEntryPointAccess(rc, contract.ContractPackageHash, ep); err != nil {
		return nil, err
	}
	// A Contract entry point runs with the callee's own named keys and base
	// key; a Session entry point (reachable only as the deploy's top-level
	// call, never via call_contract) would instead keep the caller's. Spec
	// section 4.5's "session calling a contract" invariant: the nested frame
	// always switches to Contract kind here.
	if ep.Kind != EntryPointContract {
		return nil, ErrInvalidContext
	}

	wasmSV, ok, err := rc.Read(HashKey(contract.ContractWasmHash))
	if err != nil {
		return nil, err
	}
	if !ok || wasmSV.Tag != SVTagContractWasm {
		return nil, Revert(ApiContractNotFound)
	}

	child := rc.ChildFrame(HashKey(contractHash), contract.NamedKeys, args)
	result, err := e.Exec(child, wasmSV.ContractWasm.Bytes)
	if err != nil {
		return nil, err
	}
	return result.ReturnValue, nil
}

// CallVersionedContract resolves a ContractPackage to a specific (or the
// latest enabled) version and delegates to CallStoredContract.
func (e *Executor) CallVersionedContract(rc *RuntimeContext, packageHash Hash, version *ContractVersionKey, entryPointName string, args map[string]CLValue) ([]byte, error) {
	sv, ok, err := rc.Read(HashKey(packageHash))
	if err != nil {
		return nil, err
	}
	if !ok || sv.Tag != SVTagContractPackage {
		return nil, Revert(ApiContractNotFound)
	}
	contractHash, err := sv.ContractPackage.Resolve(version)
	if err != nil {
		return nil, err
	}
	return e.CallStoredContract(rc, contractHash, entryPointName, args)
}

// checkEntryPointAccess enforces EntryPointAccess (spec section 3): Public
// entry points are callable by anyone; group-gated ones require the caller
// to hold, among its own named keys, a URef that the package lists as a
// member of one of ep.Access.Groups.
func (e *Executor) checkEntryPointAccess(rc *RuntimeContext, packageHash Hash, ep EntryPoint) error {
	if ep.Access.Public {
		return nil
	}
	pkgSV, ok, err := rc.Read(HashKey(packageHash))
	if err != nil {
		return err
	}
	if !ok || pkgSV.Tag != SVTagContractPackage {
		return Revert(ApiPermissionDenied)
	}
	for _, k := range rc.NamedKeys() {
		if k.Tag != KeyTagURef {
			continue
		}
		if pkgSV.ContractPackage.InGroup(k.URef, ep.Access.Groups) {
			return nil
		}
	}
	return Revert(ApiPermissionDenied)
}
