// SPDX-License-Identifier: BUSL-1.1
//
// access_control.go administers an account's associated-keys weights and
// action thresholds (spec section 3: "An account's associated-keys weights
// sum only by explicit update; the engine enforces deployment_threshold <=
// key_management_threshold"). Grounded on the teacher's AccessController
// cache-over-store pattern (a mutex-guarded in-memory cache sitting in front
// of persistent storage), generalized from boolean role flags to
// AccountHash -> weight associated-keys gated by the account's own
// key-management threshold rather than a separate ledger-backed role table.
package core

import (
	"fmt"
	"sync"
)

// AccessController mutates an Account's AssociatedKeys/ActionThreshold
// fields directly against the trie, through a RuntimeContext so every
// mutation is itself a tracked (and therefore revertible) transform. The
// cache mirrors the teacher's AccessController.cache: a read-through memo of
// each account's last-seen weight table, invalidated on every successful
// write, to keep repeated ListAssociatedKeys calls from re-walking the trie.
type AccessController struct {
	mu    sync.Mutex
	cache map[Address]map[Address]uint8
}

// NewAccessController returns an AccessController with an empty cache.
func NewAccessController() *AccessController {
	return &AccessController{cache: make(map[Address]map[Address]uint8)}
}

func (ac *AccessController) cacheFill(target Address, assoc map[Address]uint8) {
	cp := make(map[Address]uint8, len(assoc))
	for k, v := range assoc {
		cp[k] = v
	}
	ac.mu.Lock()
	ac.cache[target] = cp
	ac.mu.Unlock()
}

func (ac *AccessController) cacheInvalidate(target Address) {
	ac.mu.Lock()
	delete(ac.cache, target)
	ac.mu.Unlock()
}

func (ac *AccessController) loadAccount(rc *RuntimeContext, target Address) (*Account, error) {
	sv, ok, err := rc.Read(AccountKey(target))
	if err != nil {
		return nil, err
	}
	if !ok || sv.Tag != SVTagAccount {
		return nil, Revert(ApiValueNotFound)
	}
	return sv.Account, nil
}

// UpdateAssociatedKey sets key's weight on target's associated-keys map (or
// removes it, if weight is zero), requiring the acting deploy's
// authorization keys to meet target's key-management threshold (spec
// section 3/4.3). A zero-weight update is rejected while the account has
// only one associated key, whichever key it names, so the last key can
// never be removed.
func (ac *AccessController) UpdateAssociatedKey(rc *RuntimeContext, target, key Address, weight uint8) error {
	acct, err := ac.loadAccount(rc, target)
	if err != nil {
		return err
	}
	if rc.AuthorizationWeight(acct) < acct.ActionThreshold.KeyManagement {
		return Revert(ApiKeyManagementThreshold)
	}
	assoc := make(map[Address]uint8, len(acct.AssociatedKeys))
	for k, v := range acct.AssociatedKeys {
		assoc[k] = v
	}
	if weight == 0 {
		if len(assoc) == 1 {
			return Revert(ApiThresholdViolation)
		}
		delete(assoc, key)
	} else {
		assoc[key] = weight
	}
	clone := *acct
	clone.AssociatedKeys = assoc
	if err := rc.Write(AccountKey(target), NewAccountStoredValue(&clone)); err != nil {
		return err
	}
	ac.cacheFill(target, assoc)
	return nil
}

// SetActionThresholds updates target's deployment/key-management thresholds,
// enforcing deployment <= key_management (spec section 3's invariant) ahead
// of the write, and requiring the acting authorization keys to already meet
// the (higher) key-management bar.
func (ac *AccessController) SetActionThresholds(rc *RuntimeContext, target Address, t ActionThresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	acct, err := ac.loadAccount(rc, target)
	if err != nil {
		return err
	}
	if rc.AuthorizationWeight(acct) < acct.ActionThreshold.KeyManagement {
		return Revert(ApiKeyManagementThreshold)
	}
	clone := *acct
	clone.ActionThreshold = t
	if err := rc.Write(AccountKey(target), NewAccountStoredValue(&clone)); err != nil {
		return err
	}
	ac.cacheInvalidate(target)
	return nil
}

// ListAssociatedKeys returns target's associated-keys weight table, using
// the cache when warm.
func (ac *AccessController) ListAssociatedKeys(rc *RuntimeContext, target Address) (map[Address]uint8, error) {
	ac.mu.Lock()
	if cached, ok := ac.cache[target]; ok {
		out := make(map[Address]uint8, len(cached))
		for k, v := range cached {
			out[k] = v
		}
		ac.mu.Unlock()
		return out, nil
	}
	ac.mu.Unlock()

	acct, err := ac.loadAccount(rc, target)
	if err != nil {
		return nil, err
	}
	ac.cacheFill(target, acct.AssociatedKeys)
	out := make(map[Address]uint8, len(acct.AssociatedKeys))
	for k, v := range acct.AssociatedKeys {
		out[k] = v
	}
	return out, nil
}

// MeetsThreshold reports whether the given authorization-key set's summed
// weight against target's associated keys meets the requested threshold kind
// ("deployment" or "key-management").
func (ac *AccessController) MeetsThreshold(rc *RuntimeContext, target Address, authKeys map[Address]struct{}, kind string) (bool, error) {
	acct, err := ac.loadAccount(rc, target)
	if err != nil {
		return false, err
	}
	weight := acct.WeightOf(authKeys)
	switch kind {
	case "deployment":
		return weight >= acct.ActionThreshold.Deployment, nil
	case "key-management":
		return weight >= acct.ActionThreshold.KeyManagement, nil
	default:
		return false, fmt.Errorf("access_control: unknown threshold kind %q", kind)
	}
}
