// SPDX-License-Identifier: BUSL-1.1
//
// tracking_copy.go implements the transactional overlay over global state
// described in spec section 4.2: an ops log, a transforms log, and the
// commutative Transform algebra used both for repeated touches within one
// copy and for merging sibling copies (payment/session/finalize) at commit
// time.
package core

import (
	"fmt"
	"math/big"
	"sync"
)

// Op records what kind of access a key received during a tracking copy's
// lifetime, for audit and replay.
type Op byte

const (
	OpNoOp Op = iota
	OpRead
	OpWrite
	OpAdd
)

// TransformKind discriminates the Transform algebra (spec section 4.2).
type TransformKind byte

const (
	TIdentity TransformKind = iota
	TWrite
	TAddI32
	TAddI64
	TAddU64
	TAddU512
	TAddKeys
)

// Transform is a commutative update to a stored value.
type Transform struct {
	Kind    TransformKind
	Write   StoredValue
	AddI64  int64
	AddU512 *big.Int
	AddKeys NamedKeys
}

func IdentityTransform() Transform { return Transform{Kind: TIdentity} }
func WriteTransform(v StoredValue) Transform { return Transform{Kind: TWrite, Write: v} }
func AddI64Transform(n int64) Transform      { return Transform{Kind: TAddI64, AddI64: n} }
func AddU512Transform(n *big.Int) Transform  { return Transform{Kind: TAddU512, AddU512: n} }
func AddKeysTransform(nk NamedKeys) Transform { return Transform{Kind: TAddKeys, AddKeys: nk} }

// Compose implements the composition rules of spec section 4.2: `self`
// happened first, `next` second (self ∘ next in the spec's left-to-right
// reading of "repeated touches").
func (self Transform) Compose(next Transform) (Transform, error) {
	switch {
	case next.Kind == TIdentity:
		return self, nil
	case self.Kind == TIdentity:
		return next, nil

	case self.Kind == TWrite && next.Kind == TWrite:
		// Write(a) compose Write(b) = Write(b): last write wins within a copy.
		return next, nil

	case self.Kind == TWrite && (next.Kind == TAddI64 || next.Kind == TAddU512 || next.Kind == TAddKeys):
		// Write(v) compose AddX(n) = Write(apply(v, AddX(n))).
		applied, err := applyAddToStoredValue(self.Write, next)
		if err != nil {
			return Transform{}, err
		}
		return WriteTransform(applied), nil

	case self.Kind == TAddI64 && next.Kind == TAddI64:
		return AddI64Transform(self.AddI64 + next.AddI64), nil

	case self.Kind == TAddU512 && next.Kind == TAddU512:
		return AddU512Transform(new(big.Int).Add(self.AddU512, next.AddU512)), nil

	case self.Kind == TAddKeys && next.Kind == TAddKeys:
		merged := self.AddKeys.Clone()
		for name, key := range next.AddKeys {
			if existing, ok := merged[name]; ok && !existing.Equal(key) {
				return Transform{}, fmt.Errorf("%w: AddKeys name %q bound to two different keys",
					ErrTransformConflict, name)
			}
			merged[name] = key
		}
		return AddKeysTransform(merged), nil

	case (self.Kind == TAddI64 || self.Kind == TAddU512 || self.Kind == TAddKeys) && next.Kind == TWrite:
		// AddX compose Write is a conflict: cannot add before knowing the base.
		return Transform{}, fmt.Errorf("%w: additive transform followed by write", ErrTransformConflict)

	default:
		return Transform{}, fmt.Errorf("%w: incompatible transform kinds %d and %d",
			ErrTransformConflict, self.Kind, next.Kind)
	}
}

func applyAddToStoredValue(v StoredValue, add Transform) (StoredValue, error) {
	cl, err := v.AsCLValue()
	if err != nil {
		return StoredValue{}, err
	}
	switch add.Kind {
	case TAddI64:
		cur, err := cl.AsU64()
		if err != nil {
			return StoredValue{}, err
		}
		return NewCLValueStoredValue(CLU64(uint64(int64(cur) + add.AddI64))), nil
	case TAddU512:
		cur, err := cl.AsU512()
		if err != nil {
			return StoredValue{}, err
		}
		return NewCLValueStoredValue(CLU512(new(big.Int).Add(cur, add.AddU512))), nil
	case TAddKeys:
		if v.Tag == SVTagAccount {
			acct := *v.Account
			nk := acct.NamedKeys.Clone()
			for name, key := range add.AddKeys {
				nk[name] = key
			}
			acct.NamedKeys = nk
			return NewAccountStoredValue(&acct), nil
		}
		return StoredValue{}, fmt.Errorf("%w: AddKeys applied to non-account value", ErrTransformConflict)
	default:
		return StoredValue{}, fmt.Errorf("%w: not an additive transform", ErrTransformConflict)
	}
}

// Apply projects a Transform onto an (optional) base value, producing the
// resulting StoredValue. Used for read-through and for merge application at
// commit time.
func (t Transform) Apply(base StoredValue, hasBase bool) (StoredValue, error) {
	switch t.Kind {
	case TIdentity:
		if !hasBase {
			return StoredValue{}, ErrValueNotFound
		}
		return base, nil
	case TWrite:
		return t.Write, nil
	case TAddI64, TAddU512, TAddKeys:
		if !hasBase {
			return StoredValue{}, fmt.Errorf("%w: additive transform with no base value", ErrTransformConflict)
		}
		return applyAddToStoredValue(base, t)
	default:
		return StoredValue{}, fmt.Errorf("unknown transform kind %d", t.Kind)
	}
}

// TrackingCopy wraps a StateReader plus the ops/transforms logs described in
// spec section 4.2. It is owned exclusively by the executing deploy (or, for
// the duration of a nested call, shared by reference with child Runtimes —
// see the ownership note in spec section 9): a single mutable log with many
// non-owning read-write handles, modeled here as a pointer shared across
// call frames rather than ambient global state.
type TrackingCopy struct {
	mu         sync.Mutex
	reader     StateReader
	ops        map[Key]Op
	transforms map[Key]Transform
}

func NewTrackingCopy(reader StateReader) *TrackingCopy {
	return &TrackingCopy{
		reader:     reader,
		ops:        make(map[Key]Op),
		transforms: make(map[Key]Transform),
	}
}

// Read consults transforms first (projecting over the underlying base),
// then the underlying reader, and records the access in ops.
func (tc *TrackingCopy) Read(key Key) (StoredValue, bool, error) {
	nk := key.Normalize()
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if t, ok := tc.transforms[nk]; ok {
		base, hasBase, err := tc.readBaseLocked(nk)
		if err != nil {
			return StoredValue{}, false, err
		}
		v, err := t.Apply(base, hasBase)
		if err != nil {
			if err == ErrValueNotFound {
				tc.recordOpLocked(nk, OpRead)
				return StoredValue{}, false, nil
			}
			return StoredValue{}, false, err
		}
		tc.recordOpLocked(nk, OpRead)
		return v, true, nil
	}

	v, ok, err := tc.readBaseLocked(nk)
	if err != nil {
		return StoredValue{}, false, err
	}
	tc.recordOpLocked(nk, OpRead)
	return v, ok, nil
}

func (tc *TrackingCopy) readBaseLocked(key Key) (StoredValue, bool, error) {
	return tc.reader.Read(key)
}

func (tc *TrackingCopy) recordOpLocked(key Key, op Op) {
	existing, ok := tc.ops[key]
	if !ok || existing == OpNoOp {
		tc.ops[key] = op
		return
	}
	// Write/Add dominate a prior Read for audit purposes.
	if op == OpWrite || op == OpAdd {
		tc.ops[key] = op
	}
}

// Write records a Write transform, composing with any existing transform
// for the key (last write wins within a copy).
func (tc *TrackingCopy) Write(key Key, value StoredValue) error {
	return tc.touch(key, WriteTransform(value), OpWrite)
}

// AddI64 records an additive transform for a signed integer CLValue.
func (tc *TrackingCopy) AddI64(key Key, n int64) error {
	return tc.touch(key, AddI64Transform(n), OpAdd)
}

// AddU512 records an additive transform for a U512 balance.
func (tc *TrackingCopy) AddU512(key Key, n *big.Int) error {
	return tc.touch(key, AddU512Transform(n), OpAdd)
}

// AddKeys merges named keys into an account's named-key map.
func (tc *TrackingCopy) AddKeys(key Key, nk NamedKeys) error {
	return tc.touch(key, AddKeysTransform(nk), OpAdd)
}

func (tc *TrackingCopy) touch(key Key, t Transform, op Op) error {
	nk := key.Normalize()
	tc.mu.Lock()
	defer tc.mu.Unlock()
	existing, ok := tc.transforms[nk]
	if !ok {
		tc.transforms[nk] = t
	} else {
		composed, err := existing.Compose(t)
		if err != nil {
			return err
		}
		tc.transforms[nk] = composed
	}
	tc.recordOpLocked(nk, op)
	return nil
}

// Effect is one (Key, Transform) pair produced by Commit, for audit/replay.
type Effect struct {
	Key       Key
	Transform Transform
}

// Effects snapshots the current transforms log without committing, for
// audit and inspection. The deploy pipeline's session-failure rollback uses
// TakeSnapshot/RestoreSnapshot instead.
func (tc *TrackingCopy) Effects() []Effect {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]Effect, 0, len(tc.transforms))
	for k, t := range tc.transforms {
		out = append(out, Effect{Key: k, Transform: t})
	}
	return out
}

// Snapshot is an opaque restore point for this tracking copy.
type Snapshot struct {
	ops        map[Key]Op
	transforms map[Key]Transform
}

// TakeSnapshot copies the current ops/transforms logs.
func (tc *TrackingCopy) TakeSnapshot() Snapshot {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return Snapshot{ops: cloneOps(tc.ops), transforms: cloneTransforms(tc.transforms)}
}

// RestoreSnapshot discards any effects accumulated since the snapshot was
// taken (used to roll a failed session back to its post-payment state,
// spec section 4.6).
func (tc *TrackingCopy) RestoreSnapshot(s Snapshot) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.ops = cloneOps(s.ops)
	tc.transforms = cloneTransforms(s.transforms)
}

func cloneOps(m map[Key]Op) map[Key]Op {
	out := make(map[Key]Op, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTransforms(m map[Key]Transform) map[Key]Transform {
	out := make(map[Key]Transform, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge composes another tracking copy's transforms on top of this one's,
// key by key, per the same composition rules used within a single copy.
// The deploy pipeline uses it to carry the payment-phase copy's effects into
// a fresh copy, on which the session and finalize phases then run before the
// single linear Commit.
func (tc *TrackingCopy) Merge(other *TrackingCopy) error {
	other.mu.Lock()
	otherTransforms := cloneTransforms(other.transforms)
	other.mu.Unlock()

	tc.mu.Lock()
	defer tc.mu.Unlock()
	for k, t := range otherTransforms {
		existing, ok := tc.transforms[k]
		if !ok {
			tc.transforms[k] = t
			continue
		}
		if existing.Kind == TWrite && t.Kind == TWrite {
			// Unlike repeated touches within one copy (where Write∘Write is
			// legitimately last-write-wins), two independently-run phases
			// writing the same key is a genuine conflict (spec section 4.2).
			return fmt.Errorf("%w: two merged copies both write key %s", ErrTransformConflict, k)
		}
		composed, err := existing.Compose(t)
		if err != nil {
			return err
		}
		tc.transforms[k] = composed
	}
	return nil
}

// Commit applies every transform in this tracking copy to the given trie
// root and returns the new root plus the list of effects applied, per spec
// section 4.2. The engine commits once, linearly, per deploy.
func (tc *TrackingCopy) Commit(store *TrieStore, root Hash) (Hash, []Effect, error) {
	tc.mu.Lock()
	transforms := cloneTransforms(tc.transforms)
	tc.mu.Unlock()

	effects := make([]Effect, 0, len(transforms))
	cur := root
	for k, t := range transforms {
		base, hasBase, err := store.Read(cur, k.TriePath())
		if err != nil {
			return Hash{}, nil, err
		}
		v, err := t.Apply(base, hasBase)
		if err != nil {
			return Hash{}, nil, err
		}
		cur, err = store.Write(cur, k.TriePath(), v)
		if err != nil {
			return Hash{}, nil, err
		}
		effects = append(effects, Effect{Key: k, Transform: t})
	}
	return cur, effects, nil
}
