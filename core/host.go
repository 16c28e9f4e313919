// SPDX-License-Identifier: BUSL-1.1
//
// host.go is the gas-metered WebAssembly host-function surface of spec
// section 4.4. It replaces the four-opcode demo host
// (host_consume_gas/host_read/host_write/host_log) that virtual_machine.go
// wired under wasmer-go's "env" import namespace, generalizing the same
// pattern — Go closures reading/writing the guest's linear memory, gas
// charged before the call body runs — to the full Casper-style surface:
// argument/key/URef access, storage read/write/add, contract invocation,
// contract-package versioning, purse transfers, and the ret/revert control
// protocol. Grounded on virtual_machine.go's hostCtx/registerHost (memory
// access helpers, wasmer.NewFunction wiring, "env" namespace) and on
// _examples/original_source/execution-engine/engine-core/src/execution/executor.rs
// for which calls exist and what they do.
package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// outcomeKind is the call state machine of spec section 4.5:
// Instantiating -> Running -> ReturnedValue | Reverted | Trapped.
type outcomeKind byte

const (
	outcomeRunning outcomeKind = iota
	outcomeReturned
	outcomeReverted
	outcomeTrapped
)

type callOutcome struct {
	kind        outcomeKind
	returnValue []byte
	revertCode  ApiError
}

// errRetSignal and errRevertSignal are sentinel errors returned from a host
// closure to stop wasmer's execution of the guest module. They are not
// genuine errors: hostRuntime.outcome carries the real result and the
// executor inspects it once the instance call unwinds.
var (
	errRetSignal    = errors.New("host: ret signal")
	errRevertSignal = errors.New("host: revert signal")
)

// hostRuntime is the per-call binding between a RuntimeContext, the guest's
// linear memory, and the Executor (needed for call_contract/
// call_versioned_contract to recurse into another module).
type hostRuntime struct {
	rc      *RuntimeContext
	mem     *wasmer.Memory
	exec    *Executor
	outcome callOutcome
}

func (h *hostRuntime) readMem(ptr, length int32) ([]byte, error) {
	data := h.mem.Data()
	if ptr < 0 || length < 0 || int(ptr)+int(length) > len(data) {
		return nil, fmt.Errorf("%w: memory access out of bounds", ErrInvalidArgument)
	}
	out := make([]byte, length)
	copy(out, data[ptr:ptr+length])
	return out, nil
}

func (h *hostRuntime) writeMem(ptr int32, b []byte) error {
	data := h.mem.Data()
	if ptr < 0 || int(ptr)+len(b) > len(data) {
		return fmt.Errorf("%w: memory access out of bounds", ErrInvalidArgument)
	}
	copy(data[ptr:], b)
	return nil
}

// HostFunc names one entry of the priced host-function surface (spec
// section 4.4); gas_table.go's GasCost keys off this type instead of the
// Opcode catalogue it used against the demo EVM-style VM.
type HostFunc string

const (
	HFGetNamedArg                  HostFunc = "get_named_arg"
	HFPutKey                       HostFunc = "put_key"
	HFGetKey                       HostFunc = "get_key"
	HFRemoveKey                    HostFunc = "remove_key"
	HFNewURef                      HostFunc = "new_uref"
	HFRead                         HostFunc = "read"
	HFWrite                        HostFunc = "write"
	HFAdd                          HostFunc = "add"
	HFReadLocal                    HostFunc = "read_local"
	HFWriteLocal                   HostFunc = "write_local"
	HFCallContract                 HostFunc = "call_contract"
	HFCallVersionedContract        HostFunc = "call_versioned_contract"
	HFCreateContractPackageAtHash  HostFunc = "create_contract_package_at_hash"
	HFAddContractVersion           HostFunc = "add_contract_version"
	HFTransferToAccount            HostFunc = "transfer_to_account"
	HFTransferFromPurseToPurse     HostFunc = "transfer_from_purse_to_purse"
	HFRet                          HostFunc = "ret"
	HFRevert                       HostFunc = "revert"
	HFGetPhase                     HostFunc = "get_phase"
	HFGetCaller                    HostFunc = "get_caller"
	HFGetBlocktime                 HostFunc = "get_blocktime"
)

func i32Type(nParams, nResults int) *wasmer.FunctionType {
	params := make([]*wasmer.ValueType, nParams)
	for i := range params {
		params[i] = wasmer.NewValueType(wasmer.I32)
	}
	results := make([]*wasmer.ValueType, nResults)
	for i := range results {
		results[i] = wasmer.NewValueType(wasmer.I32)
	}
	return wasmer.NewFunctionType(params, results)
}

func okOrApiError(store *wasmer.Store, err error) ([]wasmer.Value, error) {
	if err == nil {
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	}
	if r, ok := AsReverted(err); ok {
		return []wasmer.Value{wasmer.NewI32(int32(r.Code))}, nil
	}
	return nil, err
}

// registerHost builds the "env" import namespace for one call frame. Every
// function charges gas before touching the tracking copy, matching
// virtual_machine.go's charge-then-act ordering.
func registerHost(store *wasmer.Store, h *hostRuntime) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	fns := map[string]wasmer.IntoExtern{}

	charge := func(f HostFunc) error { return h.rc.Gas(GasCost(f)) }

	// get_named_arg(name_ptr, name_len, dest_ptr) -> i32 (bytes written, or
	// the positive ApiError code).
	fns["get_named_arg"] = wasmer.NewFunction(store, i32Type(3, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFGetNamedArg); err != nil {
				return nil, err
			}
			nameBytes, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			v, err := h.rc.GetArg(string(nameBytes))
			if err != nil {
				return okOrApiError(store, Revert(ApiMissingArgument))
			}
			raw, err := v.ToBytes()
			if err != nil {
				return nil, err
			}
			if err := h.writeMem(args[2].I32(), raw); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(raw)))}, nil
		})

	// put_key(name_ptr, name_len, key_ptr, key_len) -> i32
	fns["put_key"] = wasmer.NewFunction(store, i32Type(4, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFPutKey); err != nil {
				return nil, err
			}
			name, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			keyBytes, err := h.readMem(args[2].I32(), args[3].I32())
			if err != nil {
				return nil, err
			}
			k, _, err := KeyFromBytes(keyBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			h.rc.PutKey(string(name), k)
			return okOrApiError(store, nil)
		})

	// get_key(name_ptr, name_len, dest_ptr) -> i32 (bytes written, or -1 if absent)
	fns["get_key"] = wasmer.NewFunction(store, i32Type(3, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFGetKey); err != nil {
				return nil, err
			}
			name, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			k, ok := h.rc.GetKey(string(name))
			if !ok {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			raw, err := k.ToBytes()
			if err != nil {
				return nil, err
			}
			if err := h.writeMem(args[2].I32(), raw); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(raw)))}, nil
		})

	// remove_key(name_ptr, name_len) -> i32
	fns["remove_key"] = wasmer.NewFunction(store, i32Type(2, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFRemoveKey); err != nil {
				return nil, err
			}
			name, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			h.rc.RemoveKey(string(name))
			return okOrApiError(store, nil)
		})

	// new_uref(value_ptr, value_len, dest_ptr) -> i32 (bytes written)
	fns["new_uref"] = wasmer.NewFunction(store, i32Type(3, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFNewURef); err != nil {
				return nil, err
			}
			raw, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			cl, _, err := CLValueFromBytes(raw)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			u := h.rc.NewURef()
			if err := h.rc.Write(URefKey(u), NewCLValueStoredValue(cl)); err != nil {
				return nil, err
			}
			ub, _ := u.ToBytes()
			if err := h.writeMem(args[2].I32(), ub); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(ub)))}, nil
		})

	// read(key_ptr, key_len, dest_ptr) -> i32 (bytes written, or -1 if absent)
	fns["read"] = wasmer.NewFunction(store, i32Type(3, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFRead); err != nil {
				return nil, err
			}
			keyBytes, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			k, _, err := KeyFromBytes(keyBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			sv, ok, err := h.rc.Read(k)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			cl, err := sv.AsCLValue()
			if err != nil {
				return okOrApiError(store, err)
			}
			raw, err := cl.ToBytes()
			if err != nil {
				return nil, err
			}
			if err := h.writeMem(args[2].I32(), raw); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(raw)))}, nil
		})

	// write(key_ptr, key_len, value_ptr, value_len) -> i32
	fns["write"] = wasmer.NewFunction(store, i32Type(4, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFWrite); err != nil {
				return nil, err
			}
			keyBytes, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			valBytes, err := h.readMem(args[2].I32(), args[3].I32())
			if err != nil {
				return nil, err
			}
			k, _, err := KeyFromBytes(keyBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			cl, _, err := CLValueFromBytes(valBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			return okOrApiError(store, h.rc.Write(k, NewCLValueStoredValue(cl)))
		})

	// add(key_ptr, key_len, value_ptr, value_len) -> i32
	fns["add"] = wasmer.NewFunction(store, i32Type(4, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFAdd); err != nil {
				return nil, err
			}
			keyBytes, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			valBytes, err := h.readMem(args[2].I32(), args[3].I32())
			if err != nil {
				return nil, err
			}
			k, _, err := KeyFromBytes(keyBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			cl, _, err := CLValueFromBytes(valBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			switch cl.Type.Tag {
			case CLTU64, CLTI64, CLTI32, CLTU32:
				n, err := cl.AsU64()
				if err != nil {
					return okOrApiError(store, err)
				}
				return okOrApiError(store, h.rc.AddI64(k, int64(n)))
			case CLTU512:
				n, err := cl.AsU512()
				if err != nil {
					return okOrApiError(store, err)
				}
				return okOrApiError(store, h.rc.AddU512(k, n))
			default:
				return okOrApiError(store, Revert(ApiCLTypeMismatch))
			}
		})

	// read_local / write_local address a per-contract local namespace keyed
	// by an opaque byte string rather than a global Key; modeled here as
	// Hash-tagged keys derived from the frame's base key (the contract hash
	// inside a stored contract) and the local key, so they share the trie
	// and tracking-copy machinery without a separate code path.
	fns["read_local"] = wasmer.NewFunction(store, i32Type(3, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFReadLocal); err != nil {
				return nil, err
			}
			seed, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			k := localKey(h.rc.BaseKey(), seed)
			sv, ok, err := h.rc.tc.Read(k)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			cl, err := sv.AsCLValue()
			if err != nil {
				return okOrApiError(store, err)
			}
			raw, _ := cl.ToBytes()
			if err := h.writeMem(args[2].I32(), raw); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(raw)))}, nil
		})

	fns["write_local"] = wasmer.NewFunction(store, i32Type(4, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFWriteLocal); err != nil {
				return nil, err
			}
			seed, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			valBytes, err := h.readMem(args[2].I32(), args[3].I32())
			if err != nil {
				return nil, err
			}
			cl, _, err := CLValueFromBytes(valBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			k := localKey(h.rc.BaseKey(), seed)
			return okOrApiError(store, h.rc.tc.Write(k, NewCLValueStoredValue(cl)))
		})

	// call_contract(hash_ptr, hash_len, entry_point_ptr, entry_point_len,
	//   args_ptr, args_len, dest_ptr) -> i32 (bytes written, or the positive
	//   ApiError code)
	fns["call_contract"] = wasmer.NewFunction(store, i32Type(7, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFCallContract); err != nil {
				return nil, err
			}
			hashBytes, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			epBytes, err := h.readMem(args[2].I32(), args[3].I32())
			if err != nil {
				return nil, err
			}
			argBytes, err := h.readMem(args[4].I32(), args[5].I32())
			if err != nil {
				return nil, err
			}
			callArgs, err := decodeNamedArgs(argBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			contractHash := BytesToHash(hashBytes)
			ret, err := h.exec.CallStoredContract(h.rc, contractHash, string(epBytes), callArgs)
			if err != nil {
				return okOrApiError(store, err)
			}
			if err := h.writeMem(args[6].I32(), ret); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(ret)))}, nil
		})

	// call_versioned_contract(package_hash_ptr, package_hash_len, major,
	//   minor, entry_point_ptr, entry_point_len, args_ptr, args_len, dest_ptr) -> i32
	fns["call_versioned_contract"] = wasmer.NewFunction(store, i32Type(9, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFCallVersionedContract); err != nil {
				return nil, err
			}
			pkgBytes, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			ver := ContractVersionKey{Major: uint32(args[2].I32()), Minor: uint32(args[3].I32())}
			epBytes, err := h.readMem(args[4].I32(), args[5].I32())
			if err != nil {
				return nil, err
			}
			argBytes, err := h.readMem(args[6].I32(), args[7].I32())
			if err != nil {
				return nil, err
			}
			callArgs, err := decodeNamedArgs(argBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			pkgHash := BytesToHash(pkgBytes)
			ret, err := h.exec.CallVersionedContract(h.rc, pkgHash, &ver, string(epBytes), callArgs)
			if err != nil {
				return okOrApiError(store, err)
			}
			if err := h.writeMem(args[8].I32(), ret); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(ret)))}, nil
		})

	// create_contract_package_at_hash(dest_package_ptr, dest_access_ptr) -> i32
	fns["create_contract_package_at_hash"] = wasmer.NewFunction(store, i32Type(2, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFCreateContractPackageAtHash); err != nil {
				return nil, err
			}
			pkgHash := h.rc.NewHash()
			access := h.rc.NewURef()
			pkg := NewContractPackage(access)
			if err := h.rc.Write(HashKey(pkgHash), NewContractPackageStoredValue(pkg)); err != nil {
				return nil, err
			}
			if err := h.writeMem(args[0].I32(), pkgHash.Bytes()); err != nil {
				return nil, err
			}
			ub, _ := access.ToBytes()
			if err := h.writeMem(args[1].I32(), ub); err != nil {
				return nil, err
			}
			return okOrApiError(store, nil)
		})

	// add_contract_version(package_hash_ptr, access_uref_ptr, major, minor,
	//   contract_wasm_hash_ptr, entry_points_ptr, entry_points_len) -> i32
	fns["add_contract_version"] = wasmer.NewFunction(store, i32Type(7, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFAddContractVersion); err != nil {
				return nil, err
			}
			pkgHashBytes, err := h.readMem(args[0].I32(), 32)
			if err != nil {
				return nil, err
			}
			accessBytes, err := h.readMem(args[1].I32(), 33)
			if err != nil {
				return nil, err
			}
			access, _, err := urefFromBytes(accessBytes)
			if err != nil {
				return nil, err
			}
			wasmHashBytes, err := h.readMem(args[4].I32(), 32)
			if err != nil {
				return nil, err
			}
			epBytes, err := h.readMem(args[5].I32(), args[6].I32())
			if err != nil {
				return nil, err
			}
			eps, err := decodeEntryPoints(epBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			pkgHash := BytesToHash(pkgHashBytes)
			sv, ok, err := h.rc.Read(HashKey(pkgHash))
			if err != nil {
				return nil, err
			}
			if !ok || sv.Tag != SVTagContractPackage {
				return okOrApiError(store, Revert(ApiInvalidSystemContract))
			}
			if err := h.rc.HasAccess(access, AccessWrite); err != nil {
				return okOrApiError(store, Revert(ApiPermissionDenied))
			}
			major, minor := uint32(args[2].I32()), uint32(args[3].I32())
			contractHash := h.rc.NewHash()
			contract := &Contract{
				ContractPackageHash: pkgHash,
				ContractWasmHash:    BytesToHash(wasmHashBytes),
				ProtocolVersion:     h.rc.ProtocolVersion(),
				NamedKeys:           make(NamedKeys),
				EntryPoints:         eps,
			}
			if err := h.rc.Write(HashKey(contractHash), NewContractStoredValue(contract)); err != nil {
				return nil, err
			}
			sv.ContractPackage.Versions[ContractVersionKey{Major: major, Minor: minor}] = contractHash
			if err := h.rc.Write(HashKey(pkgHash), sv); err != nil {
				return nil, err
			}
			return okOrApiError(store, nil)
		})

	// transfer_to_account(account_ptr, amount_ptr, amount_len) -> i32
	fns["transfer_to_account"] = wasmer.NewFunction(store, i32Type(3, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFTransferToAccount); err != nil {
				return nil, err
			}
			acctBytes, err := h.readMem(args[0].I32(), 32)
			if err != nil {
				return nil, err
			}
			amtBytes, err := h.readMem(args[1].I32(), args[2].I32())
			if err != nil {
				return nil, err
			}
			amt, _, err := decodeBigUint(amtBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			dest := BytesToAddress(acctBytes)
			err = h.exec.mint.TransferToAccount(h.rc, dest, bigFromBEBytes(amt))
			return okOrApiError(store, err)
		})

	// transfer_from_purse_to_purse(src_ptr, dst_ptr, amount_ptr, amount_len) -> i32
	fns["transfer_from_purse_to_purse"] = wasmer.NewFunction(store, i32Type(4, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFTransferFromPurseToPurse); err != nil {
				return nil, err
			}
			srcBytes, err := h.readMem(args[0].I32(), 33)
			if err != nil {
				return nil, err
			}
			dstBytes, err := h.readMem(args[1].I32(), 33)
			if err != nil {
				return nil, err
			}
			amtBytes, err := h.readMem(args[2].I32(), args[3].I32())
			if err != nil {
				return nil, err
			}
			src, _, err := urefFromBytes(srcBytes)
			if err != nil {
				return nil, err
			}
			dst, _, err := urefFromBytes(dstBytes)
			if err != nil {
				return nil, err
			}
			amt, _, err := decodeBigUint(amtBytes)
			if err != nil {
				return okOrApiError(store, Revert(ApiDeserialize))
			}
			err = h.exec.mint.TransferPurseToPurse(h.rc, src, dst, bigFromBEBytes(amt))
			return okOrApiError(store, err)
		})

	// ret(value_ptr, value_len) never returns to the guest: it stops
	// execution by returning errRetSignal, the only exit from Running other
	// than a revert or trap (spec section 4.5).
	fns["ret"] = wasmer.NewFunction(store, i32Type(2, 0),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFRet); err != nil {
				return nil, err
			}
			raw, err := h.readMem(args[0].I32(), args[1].I32())
			if err != nil {
				return nil, err
			}
			h.outcome.kind = outcomeReturned
			h.outcome.returnValue = raw
			return nil, errRetSignal
		})

	// revert(code) never returns to the guest either.
	fns["revert"] = wasmer.NewFunction(store, i32Type(1, 0),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFRevert); err != nil {
				return nil, err
			}
			h.outcome.kind = outcomeReverted
			h.outcome.revertCode = ApiError(uint32(args[0].I32()))
			return nil, errRevertSignal
		})

	fns["get_phase"] = wasmer.NewFunction(store, i32Type(0, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFGetPhase); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(h.rc.Phase()))}, nil
		})

	fns["get_caller"] = wasmer.NewFunction(store, i32Type(1, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFGetCaller); err != nil {
				return nil, err
			}
			bk := h.rc.BaseKey()
			addr := bk.Account
			if err := h.writeMem(args[0].I32(), addr.Bytes()); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(addr.Bytes())))}, nil
		})

	fns["get_blocktime"] = wasmer.NewFunction(store, i32Type(0, 1),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(HFGetBlocktime); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(int32(h.rc.Blocktime()))}, nil
		})

	imports.Register("env", fns)
	return imports
}

func localKey(base Key, seed []byte) Key {
	var prefix []byte
	switch base.Tag {
	case KeyTagAccount:
		prefix = base.Account.Bytes()
	case KeyTagHash:
		prefix = base.Hash.Bytes()
	}
	return HashKey(BytesToHash(crypto.Keccak256(prefix, crypto.Keccak256(seed))))
}

// decodeNamedArgs parses a bytesrepr-encoded sequence of (name, CLValue)
// pairs, the wire shape the guest builds for call_contract's argument list.
func decodeNamedArgs(b []byte) (map[string]CLValue, error) {
	count, rest, err := decodeU32(b)
	if err != nil {
		return nil, err
	}
	out := make(map[string]CLValue, count)
	for i := uint32(0); i < count; i++ {
		name, tail, err := decodeString(rest)
		if err != nil {
			return nil, err
		}
		v, tail2, err := CLValueFromBytes(tail)
		if err != nil {
			return nil, err
		}
		out[name] = v
		rest = tail2
	}
	if len(rest) != 0 {
		return nil, ErrLeftOverBytes
	}
	return out, nil
}

// decodeEntryPoints parses a bytesrepr-encoded sequence of entry-point
// descriptors attached by add_contract_version.
func decodeEntryPoints(b []byte) (map[string]EntryPoint, error) {
	count, rest, err := decodeU32(b)
	if err != nil {
		return nil, err
	}
	out := make(map[string]EntryPoint, count)
	for i := uint32(0); i < count; i++ {
		name, tail, err := decodeString(rest)
		if err != nil {
			return nil, err
		}
		kind, tail2, err := decodeU8(tail)
		if err != nil {
			return nil, err
		}
		public, tail3, err := decodeU8(tail2)
		if err != nil {
			return nil, err
		}
		out[name] = EntryPoint{
			Name: name,
			Kind: EntryPointKind(kind),
			Access: EntryPointAccess{Public: public != 0},
		}
		rest = tail3
	}
	return out, nil
}

func bigFromBEBytes(be []byte) *big.Int { return new(big.Int).SetBytes(be) }
