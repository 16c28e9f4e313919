// SPDX-License-Identifier: BUSL-1.1
//
// runtime_context.go implements the capability-checked execution context of
// spec section 4.3: named keys, an access-rights table keyed by URef
// address, call arguments, authorization keys, a gas meter, blocktime,
// deploy hash, phase and protocol version, and the two per-phase
// AddressGenerators. Grounded on
// _examples/original_source/execution-engine/engine-core/src/execution/executor.rs's
// construction of a runtime context per call frame (named-key/access-rights
// extraction from the calling account or contract).
package core

import (
	"fmt"
	"math/big"
)

// Phase identifies which stage of the deploy pipeline is executing (spec
// section 4.6). It doubles as part of the AddressGenerator seed so that
// payment and session code never mint colliding addresses.
type Phase byte

const (
	PhasePayment Phase = iota
	PhaseSession
	PhaseFinalize
	PhaseSystem
)

func (p Phase) String() string {
	switch p {
	case PhasePayment:
		return "payment"
	case PhaseSession:
		return "session"
	case PhaseFinalize:
		return "finalize"
	case PhaseSystem:
		return "system"
	default:
		return "unknown-phase"
	}
}

// GasMeter tracks consumption against a fixed limit, returning
// ErrGasLimitExceeded the moment a charge would exceed it. A charge that
// fails this way leaves the meter at its limit, so the failed execution is
// charged up to the limit.
type GasMeter struct {
	limit uint64
	used  uint64
}

func NewGasMeter(limit uint64) *GasMeter { return &GasMeter{limit: limit} }

func (g *GasMeter) Charge(cost uint64) error {
	if g.used+cost > g.limit {
		g.used = g.limit
		return ErrGasLimitExceeded
	}
	g.used += cost
	return nil
}

func (g *GasMeter) Used() uint64      { return g.used }
func (g *GasMeter) Limit() uint64     { return g.limit }
func (g *GasMeter) Remaining() uint64 { return g.limit - g.used }

// RuntimeContext is the capability-checked view of global state and call
// metadata that host functions operate against. One RuntimeContext exists
// per call frame; nested calls build a child that shares the underlying
// TrackingCopy (spec section 4.2's ownership note) but gets its own named
// keys, access-rights table and argument set.
type RuntimeContext struct {
	tc *TrackingCopy

	namedKeys    NamedKeys
	accessRights map[Hash]AccessRights // URef address -> rights granted in this frame

	args            map[string]CLValue
	authorizationKeys map[Address]struct{}

	gas *GasMeter

	blocktime       uint64
	deployHash      Hash
	phase           Phase
	protocolVersion uint32

	hashGen *AddressGenerator
	urefGen *AddressGenerator

	baseKey Key // the account or contract this frame is executing as
}

// NewRuntimeContext builds the top-level runtime context for one phase of a
// deploy, seeding both address generators from (deployHash, phase).
func NewRuntimeContext(
	tc *TrackingCopy,
	baseKey Key,
	namedKeys NamedKeys,
	args map[string]CLValue,
	authKeys map[Address]struct{},
	gasLimit uint64,
	blocktime uint64,
	deployHash Hash,
	phase Phase,
	protocolVersion uint32,
) *RuntimeContext {
	rc := &RuntimeContext{
		tc:                tc,
		namedKeys:         namedKeys.Clone(),
		accessRights:      make(map[Hash]AccessRights),
		args:              args,
		authorizationKeys: authKeys,
		gas:               NewGasMeter(gasLimit),
		blocktime:         blocktime,
		deployHash:        deployHash,
		phase:             phase,
		protocolVersion:   protocolVersion,
		hashGen:           NewAddressGenerator(deployHash, phase),
		urefGen:           NewAddressGenerator(deployHash, phase),
		baseKey:           baseKey,
	}
	rc.extendAccessRights(namedKeys)
	return rc
}

// ChildFrame derives a new RuntimeContext for a nested call_contract,
// sharing the tracking copy and address generators but scoped to the
// callee's own named keys (spec section 4.5's nested-call protocol).
func (rc *RuntimeContext) ChildFrame(baseKey Key, namedKeys NamedKeys, args map[string]CLValue) *RuntimeContext {
	child := &RuntimeContext{
		tc:                rc.tc,
		namedKeys:         namedKeys.Clone(),
		accessRights:      make(map[Hash]AccessRights),
		args:              args,
		authorizationKeys: rc.authorizationKeys,
		gas:               rc.gas, // gas is shared across the whole call tree
		blocktime:         rc.blocktime,
		deployHash:        rc.deployHash,
		phase:             rc.phase,
		protocolVersion:   rc.protocolVersion,
		hashGen:           rc.hashGen,
		urefGen:           rc.urefGen,
		baseKey:           baseKey,
	}
	// A callee frame gets access to whatever URefs its own named keys
	// mention, plus any URef the caller hands down as an argument (spec
	// section 4.5: "the caller-provided URefs in args, plus the contract's
	// stored URefs") — nothing else carries over from the parent frame.
	child.extendAccessRights(namedKeys)
	for _, v := range args {
		if v.Type.Tag != CLTURef {
			continue
		}
		if u, err := v.AsURef(); err == nil {
			child.accessRights[u.Addr] = child.accessRights[u.Addr] | u.Access
		}
	}
	return child
}

func (rc *RuntimeContext) extendAccessRights(nk NamedKeys) {
	for _, k := range nk {
		if k.Tag == KeyTagURef {
			rc.accessRights[k.URef.Addr] = rc.accessRights[k.URef.Addr] | k.URef.Access
		}
	}
}

// GrantAccess records that this frame may use the given URef with the given
// rights, independent of named keys (used when a URef arrives as a call
// argument).
func (rc *RuntimeContext) GrantAccess(u URef) {
	rc.accessRights[u.Addr] = rc.accessRights[u.Addr] | u.Access
}

// HasAccess validates a URef against this frame's capability table,
// returning ForgedReferenceError if the address was never granted here or
// InvalidAccess if the address is known but lacks the requested right (spec
// section 3/7).
func (rc *RuntimeContext) HasAccess(u URef, need AccessRights) error {
	granted, ok := rc.accessRights[u.Addr]
	if !ok {
		return &ForgedReferenceError{URef: u}
	}
	if !granted.Has(need) {
		return ErrInvalidAccess
	}
	return nil
}

// NamedKeys returns this frame's named-key dictionary.
func (rc *RuntimeContext) NamedKeys() NamedKeys { return rc.namedKeys }

// PutKey binds a name to a key in this frame's named keys and, if it is a
// URef, grants this frame access to it.
func (rc *RuntimeContext) PutKey(name string, k Key) {
	rc.namedKeys[name] = k
	if k.Tag == KeyTagURef {
		rc.GrantAccess(k.URef)
	}
}

// GetKey looks up a name in this frame's named keys.
func (rc *RuntimeContext) GetKey(name string) (Key, bool) {
	k, ok := rc.namedKeys[name]
	return k, ok
}

// RemoveKey removes a name from this frame's named keys. It does not revoke
// access rights: other names or frames may still reference the same URef.
func (rc *RuntimeContext) RemoveKey(name string) { delete(rc.namedKeys, name) }

// GetArg returns a call argument by name.
func (rc *RuntimeContext) GetArg(name string) (CLValue, error) {
	v, ok := rc.args[name]
	if !ok {
		return CLValue{}, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return v, nil
}

// Read performs a capability-checked read through the tracking copy.
func (rc *RuntimeContext) Read(k Key) (StoredValue, bool, error) {
	if k.Tag == KeyTagURef {
		if err := rc.HasAccess(k.URef, AccessRead); err != nil {
			return StoredValue{}, false, err
		}
	}
	return rc.tc.Read(k)
}

// Write performs a capability-checked write through the tracking copy.
func (rc *RuntimeContext) Write(k Key, v StoredValue) error {
	if k.Tag == KeyTagURef {
		if err := rc.HasAccess(k.URef, AccessWrite); err != nil {
			return err
		}
	}
	return rc.tc.Write(k, v)
}

// AddI64 performs a capability-checked additive update.
func (rc *RuntimeContext) AddI64(k Key, n int64) error {
	if k.Tag == KeyTagURef {
		if err := rc.HasAccess(k.URef, AccessAdd); err != nil {
			return err
		}
	}
	return rc.tc.AddI64(k, n)
}

// AddU512 performs a capability-checked additive update to a U512 balance.
func (rc *RuntimeContext) AddU512(k Key, n *big.Int) error {
	if k.Tag == KeyTagURef {
		if err := rc.HasAccess(k.URef, AccessAdd); err != nil {
			return err
		}
	}
	return rc.tc.AddU512(k, n)
}

// NewURef mints a fresh, fully-capable URef and grants this frame access.
func (rc *RuntimeContext) NewURef() URef {
	u := rc.urefGen.NewURef(AccessReadAddWrite)
	rc.GrantAccess(u)
	return u
}

// NewHash mints a fresh content-address for a contract, contract-wasm, or
// contract-package record.
func (rc *RuntimeContext) NewHash() Hash { return rc.hashGen.NewHash() }

// Gas charges the frame-shared gas meter.
func (rc *RuntimeContext) Gas(cost uint64) error { return rc.gas.Charge(cost) }

func (rc *RuntimeContext) GasMeter() *GasMeter { return rc.gas }

func (rc *RuntimeContext) Blocktime() uint64       { return rc.blocktime }
func (rc *RuntimeContext) DeployHash() Hash         { return rc.deployHash }
func (rc *RuntimeContext) Phase() Phase             { return rc.phase }
func (rc *RuntimeContext) ProtocolVersion() uint32  { return rc.protocolVersion }
func (rc *RuntimeContext) BaseKey() Key             { return rc.baseKey }
func (rc *RuntimeContext) TrackingCopy() *TrackingCopy { return rc.tc }

// AuthorizationWeight sums the weight of this deploy's authorization keys
// against an account, for threshold checks (spec section 3).
func (rc *RuntimeContext) AuthorizationWeight(acct *Account) uint8 {
	return acct.WeightOf(rc.authorizationKeys)
}
