// SPDX-License-Identifier: BUSL-1.1
//
// stored_value.go defines the StoredValue domain: the five variants every
// Key in global state resolves to. Grounded on
// _examples/original_source/execution-engine/engine-shared/src/stored_value.rs
// (tag layout, field order) adapted to Go idiom.
package core

import "fmt"

// StoredValueTag discriminates the five StoredValue variants (spec section
// 6): 0=CLValue, 1=Account, 2=ContractWasm, 3=Contract, 4=ContractPackage.
type StoredValueTag byte

const (
	SVTagCLValue         StoredValueTag = 0
	SVTagAccount         StoredValueTag = 1
	SVTagContractWasm    StoredValueTag = 2
	SVTagContract        StoredValueTag = 3
	SVTagContractPackage StoredValueTag = 4
)

// NamedKeys is a per-account or per-contract dictionary from string to Key.
type NamedKeys map[string]Key

func (nk NamedKeys) Clone() NamedKeys {
	out := make(NamedKeys, len(nk))
	for k, v := range nk {
		out[k] = v
	}
	return out
}

// ActionThresholds enforces deployment_threshold <= key_management_threshold
// (spec section 3's account invariant).
type ActionThresholds struct {
	Deployment     uint8
	KeyManagement  uint8
}

func (t ActionThresholds) Validate() error {
	if t.Deployment > t.KeyManagement {
		return fmt.Errorf("%w: deployment threshold %d exceeds key-management threshold %d",
			ErrInsufficientWeight, t.Deployment, t.KeyManagement)
	}
	return nil
}

// Account is an account record: address, main purse, named keys,
// associated-keys weights, and action thresholds.
type Account struct {
	AccountHash     Address
	MainPurse       URef
	NamedKeys       NamedKeys
	AssociatedKeys  map[Address]uint8 // account-hash -> weight
	ActionThreshold ActionThresholds
}

func NewAccount(hash Address, purse URef) *Account {
	return &Account{
		AccountHash:    hash,
		MainPurse:      purse,
		NamedKeys:      make(NamedKeys),
		AssociatedKeys: map[Address]uint8{hash: 1},
		ActionThreshold: ActionThresholds{Deployment: 1, KeyManagement: 1},
	}
}

// WeightOf sums the weights of the given authorization keys that are
// associated with this account. Unassociated keys contribute nothing.
func (a *Account) WeightOf(authKeys map[Address]struct{}) uint8 {
	var total int
	for k := range authKeys {
		total += int(a.AssociatedKeys[k])
	}
	if total > 255 {
		return 255
	}
	return uint8(total)
}

// EntryPointAccess controls who may invoke an entry point: Public, or gated
// behind membership of one of a set of named groups.
type EntryPointAccess struct {
	Public bool
	Groups []string
}

func PublicAccess() EntryPointAccess { return EntryPointAccess{Public: true} }
func GroupAccess(groups ...string) EntryPointAccess {
	return EntryPointAccess{Groups: groups}
}

// EntryPointKind distinguishes Session (runs with the caller's named keys)
// from Contract (runs with the contract's own named keys).
type EntryPointKind byte

const (
	EntryPointSession EntryPointKind = iota
	EntryPointContract
)

// EntryPointParam names and types a single argument.
type EntryPointParam struct {
	Name string
	Type CLType
}

// EntryPoint is a named, typed callable exposed by a stored contract.
type EntryPoint struct {
	Name       string
	Params     []EntryPointParam
	Ret        CLType
	Access     EntryPointAccess
	Kind       EntryPointKind
}

// ContractWasm holds raw preprocessed module bytes (post wasm-prep: memory
// externalized, gas-counter and stack-height limiter injected).
type ContractWasm struct {
	Bytes []byte
}

// Contract is a callable contract: code hash, protocol version, named keys,
// and entry points.
type Contract struct {
	ContractPackageHash Hash
	ContractWasmHash    Hash
	ProtocolVersion     uint32
	NamedKeys           NamedKeys
	EntryPoints         map[string]EntryPoint
}

func (c *Contract) EntryPoint(name string) (EntryPoint, bool) {
	ep, ok := c.EntryPoints[name]
	return ep, ok
}

// ContractVersionKey identifies one version within a ContractPackage.
type ContractVersionKey struct {
	Major uint32
	Minor uint32
}

func (k ContractVersionKey) Less(o ContractVersionKey) bool {
	if k.Major != o.Major {
		return k.Major < o.Major
	}
	return k.Minor < o.Minor
}

// ContractPackage is the versioned registry for a contract: the access key
// that gates administrative operations, an ordered map of versions, named
// groups of URefs, and disabled versions.
type ContractPackage struct {
	AccessKey       URef
	Versions        map[ContractVersionKey]Hash // -> ContractHash
	Groups          map[string]map[URef]struct{}
	DisabledVersions map[ContractVersionKey]bool
}

func NewContractPackage(access URef) *ContractPackage {
	return &ContractPackage{
		AccessKey:        access,
		Versions:         make(map[ContractVersionKey]Hash),
		Groups:           make(map[string]map[URef]struct{}),
		DisabledVersions: make(map[ContractVersionKey]bool),
	}
}

// LatestVersion returns the highest (major, minor) enabled version, or false
// if none exist.
func (p *ContractPackage) LatestVersion() (ContractVersionKey, Hash, bool) {
	var best ContractVersionKey
	var bestHash Hash
	found := false
	for k, h := range p.Versions {
		if p.DisabledVersions[k] {
			continue
		}
		if !found || best.Less(k) {
			best, bestHash, found = k, h, true
		}
	}
	return best, bestHash, found
}

// Resolve looks up a specific version, or the latest if version is nil.
// Returns ApiInvalidContractVersion if disabled or absent, per spec 4.4.
func (p *ContractPackage) Resolve(version *ContractVersionKey) (Hash, error) {
	if version == nil {
		_, h, ok := p.LatestVersion()
		if !ok {
			return Hash{}, Revert(ApiInvalidContractVersion)
		}
		return h, nil
	}
	if p.DisabledVersions[*version] {
		return Hash{}, Revert(ApiInvalidContractVersion)
	}
	h, ok := p.Versions[*version]
	if !ok {
		return Hash{}, Revert(ApiInvalidContractVersion)
	}
	return h, nil
}

// InGroup reports whether uref's address appears in any of the given groups.
func (p *ContractPackage) InGroup(uref URef, groups []string) bool {
	for _, g := range groups {
		members, ok := p.Groups[g]
		if !ok {
			continue
		}
		for m := range members {
			if m.SameAddress(uref) {
				return true
			}
		}
	}
	return false
}

// StoredValue is the discriminated value a Key addresses: exactly one of
// CLValue, Account, ContractWasm, Contract, or ContractPackage.
type StoredValue struct {
	Tag             StoredValueTag
	CLValue         *CLValue
	Account         *Account
	ContractWasm    *ContractWasm
	Contract        *Contract
	ContractPackage *ContractPackage
}

func NewCLValueStoredValue(v CLValue) StoredValue {
	return StoredValue{Tag: SVTagCLValue, CLValue: &v}
}
func NewAccountStoredValue(a *Account) StoredValue {
	return StoredValue{Tag: SVTagAccount, Account: a}
}
func NewContractWasmStoredValue(w *ContractWasm) StoredValue {
	return StoredValue{Tag: SVTagContractWasm, ContractWasm: w}
}
func NewContractStoredValue(c *Contract) StoredValue {
	return StoredValue{Tag: SVTagContract, Contract: c}
}
func NewContractPackageStoredValue(p *ContractPackage) StoredValue {
	return StoredValue{Tag: SVTagContractPackage, ContractPackage: p}
}

// AsCLValue extracts the CLValue variant, failing UnexpectedCLValue on any
// other variant (the host surface's typed `read` calls need this).
func (sv StoredValue) AsCLValue() (CLValue, error) {
	if sv.Tag != SVTagCLValue || sv.CLValue == nil {
		return CLValue{}, Revert(ApiUnexpectedCLValue)
	}
	return *sv.CLValue, nil
}

func (sv StoredValue) String() string {
	switch sv.Tag {
	case SVTagCLValue:
		return fmt.Sprintf("CLValue(%v)", sv.CLValue.Type.Tag)
	case SVTagAccount:
		return fmt.Sprintf("Account(%s)", sv.Account.AccountHash)
	case SVTagContractWasm:
		return fmt.Sprintf("ContractWasm(%d bytes)", len(sv.ContractWasm.Bytes))
	case SVTagContract:
		return fmt.Sprintf("Contract(%d entry points)", len(sv.Contract.EntryPoints))
	case SVTagContractPackage:
		return fmt.Sprintf("ContractPackage(%d versions)", len(sv.ContractPackage.Versions))
	default:
		return "StoredValue(unknown)"
	}
}
