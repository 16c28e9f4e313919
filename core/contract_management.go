// SPDX-License-Identifier: BUSL-1.1
//
// contract_management.go provides administrative lifecycle operations over
// an already-installed ContractPackage: adding a version, disabling or
// re-enabling one, and managing named groups — every one of them gated by
// the package's access_key URef (spec section 3: "A ContractPackage's
// access_key gates all administrative operations"). Grounded on the
// teacher's ContractManager (owner/paused/upgrade lifecycle persisted via
// ledger key prefixes), repurposed from a single mutable "paused" flag and a
// ledger-backed owner record to ContractPackage's own version-disable set
// and groups map, since the StoredValue model has no delete primitive (spec
// section 3 Lifecycle) — "pausing" a contract here means disabling its
// active version, not removing it.
package core

import (
	"sync"
)

// ContractManager performs capability-gated administrative operations on
// ContractPackages stored in a TrieStore. Every call must be threaded
// through a RuntimeContext so access-rights/gas accounting still applies,
// matching the host surface's add_contract_version handling in host.go.
type ContractManager struct {
	mu sync.Mutex
}

// NewContractManager returns a ContractManager. It holds no package-specific
// state of its own — all durable state lives in the trie via rc.
func NewContractManager() *ContractManager { return &ContractManager{} }

func (cm *ContractManager) loadPackage(rc *RuntimeContext, pkgHash Hash) (*ContractPackage, error) {
	sv, ok, err := rc.Read(HashKey(pkgHash))
	if err != nil {
		return nil, err
	}
	if !ok || sv.Tag != SVTagContractPackage {
		return nil, Revert(ApiContractNotFound)
	}
	return sv.ContractPackage, nil
}

// checkAccess enforces spec section 3's access_key gate: the caller must
// present the package's own access URef with at least WRITE rights (the
// same bits add_contract_version requires in host.go).
func (cm *ContractManager) checkAccess(rc *RuntimeContext, pkg *ContractPackage, access URef) error {
	if !pkg.AccessKey.SameAddress(access) {
		return Revert(ApiPermissionDenied)
	}
	return rc.HasAccess(access, AccessWrite)
}

func (cm *ContractManager) savePackage(rc *RuntimeContext, pkgHash Hash, pkg *ContractPackage) error {
	return rc.Write(HashKey(pkgHash), NewContractPackageStoredValue(pkg))
}

// DisableVersion marks a version unreachable via CallVersionedContract's
// implicit "latest" resolution and explicit lookups alike (ContractPackage.
// Resolve already checks DisabledVersions), the closest equivalent this
// delete-free data model has to the teacher's PauseContract.
func (cm *ContractManager) DisableVersion(rc *RuntimeContext, pkgHash Hash, access URef, ver ContractVersionKey) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return err
	}
	if err := cm.checkAccess(rc, pkg, access); err != nil {
		return err
	}
	if _, ok := pkg.Versions[ver]; !ok {
		return Revert(ApiInvalidContractVersion)
	}
	pkg.DisabledVersions[ver] = true
	return cm.savePackage(rc, pkgHash, pkg)
}

// EnableVersion reverses DisableVersion (the teacher's ResumeContract).
func (cm *ContractManager) EnableVersion(rc *RuntimeContext, pkgHash Hash, access URef, ver ContractVersionKey) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return err
	}
	if err := cm.checkAccess(rc, pkg, access); err != nil {
		return err
	}
	if _, ok := pkg.Versions[ver]; !ok {
		return Revert(ApiInvalidContractVersion)
	}
	delete(pkg.DisabledVersions, ver)
	return cm.savePackage(rc, pkgHash, pkg)
}

// IsVersionDisabled reports a version's disabled status without requiring
// the access URef (a read-only diagnostic, unlike the mutating calls above).
func (cm *ContractManager) IsVersionDisabled(rc *RuntimeContext, pkgHash Hash, ver ContractVersionKey) (bool, error) {
	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return false, err
	}
	return pkg.DisabledVersions[ver], nil
}

// CreateGroup binds a named group to an initial set of member URefs, for
// EntryPointAccess's Groups gate (spec section 4.5's checkEntryPointAccess).
func (cm *ContractManager) CreateGroup(rc *RuntimeContext, pkgHash Hash, access URef, name string, members []URef) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return err
	}
	if err := cm.checkAccess(rc, pkg, access); err != nil {
		return err
	}
	if _, exists := pkg.Groups[name]; exists {
		return Revert(ApiDuplicateKey)
	}
	set := make(map[URef]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	pkg.Groups[name] = set
	return cm.savePackage(rc, pkgHash, pkg)
}

// AddGroupMember adds one URef to an existing group.
func (cm *ContractManager) AddGroupMember(rc *RuntimeContext, pkgHash Hash, access URef, name string, member URef) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return err
	}
	if err := cm.checkAccess(rc, pkg, access); err != nil {
		return err
	}
	group, ok := pkg.Groups[name]
	if !ok {
		return Revert(ApiMissingKey)
	}
	group[member] = struct{}{}
	return cm.savePackage(rc, pkgHash, pkg)
}

// RemoveGroupMember removes one URef from an existing group.
func (cm *ContractManager) RemoveGroupMember(rc *RuntimeContext, pkgHash Hash, access URef, name string, member URef) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return err
	}
	if err := cm.checkAccess(rc, pkg, access); err != nil {
		return err
	}
	group, ok := pkg.Groups[name]
	if !ok {
		return Revert(ApiMissingKey)
	}
	delete(group, member)
	return cm.savePackage(rc, pkgHash, pkg)
}

// RotateAccessKey replaces the package's access_key with a freshly-minted
// URef the caller must have just created (rc.NewURef), invalidating the old
// one for every future administrative call. The old access URef must still
// be presented to authorize the rotation itself.
func (cm *ContractManager) RotateAccessKey(rc *RuntimeContext, pkgHash Hash, oldAccess, newAccess URef) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pkg, err := cm.loadPackage(rc, pkgHash)
	if err != nil {
		return err
	}
	if err := cm.checkAccess(rc, pkg, oldAccess); err != nil {
		return err
	}
	pkg.AccessKey = newAccess
	return cm.savePackage(rc, pkgHash, pkg)
}
