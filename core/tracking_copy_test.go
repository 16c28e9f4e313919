package core_test

import (
	"errors"
	"math/big"
	"testing"

	core "synnergy-network/core"
)

func emptyReader(t *testing.T) (*core.TrieStore, core.Hash) {
	t.Helper()
	store := core.NewTrieStore()
	return store, store.EmptyRoot()
}

// TestTrackingCopyWriteThenRead covers a write followed by a read within the
// same copy, before anything is committed to the trie.
func TestTrackingCopyWriteThenRead(t *testing.T) {
	store, root := emptyReader(t)
	tc := core.NewTrackingCopy(core.NewTrieStateReader(store, root))

	k := core.AccountKey(core.Address{1})
	v := core.NewCLValueStoredValue(core.CLU64(7))
	if err := tc.Write(k, v); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, ok, err := tc.Read(k)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatal("expected Some(v) after write")
	}
	cl, err := got.AsCLValue()
	if err != nil {
		t.Fatalf("AsCLValue: %v", err)
	}
	if n, err := cl.AsU64(); err != nil || n != 7 {
		t.Fatalf("got %d, %v, want 7, nil", n, err)
	}
}

// TestTrackingCopyWriteWriteLastWriteWins covers the within-one-copy side of
// spec section 8 invariant 4: repeated touches to the same key compose as
// last-write-wins.
func TestTrackingCopyWriteWriteLastWriteWins(t *testing.T) {
	store, root := emptyReader(t)
	tc := core.NewTrackingCopy(core.NewTrieStateReader(store, root))

	k := core.AccountKey(core.Address{1})
	if err := tc.Write(k, core.NewCLValueStoredValue(core.CLU64(1))); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := tc.Write(k, core.NewCLValueStoredValue(core.CLU64(2))); err != nil {
		t.Fatalf("second write: %v", err)
	}
	got, ok, err := tc.Read(k)
	if err != nil || !ok {
		t.Fatalf("read: %v, %v", ok, err)
	}
	cl, _ := got.AsCLValue()
	if n, _ := cl.AsU64(); n != 2 {
		t.Fatalf("expected last write (2) to win, got %d", n)
	}
}

// TestTrackingCopyAddWithoutBaseIsConflict asserts an additive transform with
// no prior base value fails closed (there is nothing to add to).
func TestTrackingCopyAddWithoutBaseIsConflict(t *testing.T) {
	store, root := emptyReader(t)
	tc := core.NewTrackingCopy(core.NewTrieStateReader(store, root))

	k := core.URefKey(core.URef{Addr: core.Hash{5}, Access: core.AccessReadAddWrite})
	if err := tc.AddU512(k, big.NewInt(10)); err != nil {
		t.Fatalf("AddU512 (recording the transform): %v", err)
	}
	if _, _, err := tc.Read(k); !errors.Is(err, core.ErrTransformConflict) {
		t.Fatalf("expected ErrTransformConflict applying an Add with no base, got %v", err)
	}
}

// TestTransformComposeAssociativity covers the associative half of spec
// section 8 invariant 4 for the additive (AddU512) transform family: (a . b)
// . c must equal a . (b . c).
func TestTransformComposeAssociativity(t *testing.T) {
	a := core.AddU512Transform(big.NewInt(2))
	b := core.AddU512Transform(big.NewInt(3))
	c := core.AddU512Transform(big.NewInt(5))

	ab, err := a.Compose(b)
	if err != nil {
		t.Fatalf("a.Compose(b): %v", err)
	}
	abc, err := ab.Compose(c)
	if err != nil {
		t.Fatalf("(a.b).Compose(c): %v", err)
	}

	bc, err := b.Compose(c)
	if err != nil {
		t.Fatalf("b.Compose(c): %v", err)
	}
	a_bc, err := a.Compose(bc)
	if err != nil {
		t.Fatalf("a.Compose(b.c): %v", err)
	}

	if abc.AddU512.Cmp(a_bc.AddU512) != 0 {
		t.Fatalf("associativity violated: (a.b).c = %s, a.(b.c) = %s", abc.AddU512, a_bc.AddU512)
	}
	if abc.AddU512.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected composed sum of 10, got %s", abc.AddU512)
	}
}

// TestTransformComposeConflictSymmetric covers the conflict-symmetry half of
// invariant 4: an additive transform followed by a write conflicts exactly
// the same way regardless of which additive kind produced it.
func TestTransformComposeConflictSymmetric(t *testing.T) {
	write := core.WriteTransform(core.NewCLValueStoredValue(core.CLU64(1)))
	add := core.AddU512Transform(big.NewInt(1))

	if _, err := add.Compose(write); !errors.Is(err, core.ErrTransformConflict) {
		t.Fatalf("expected Add.Compose(Write) to conflict, got %v", err)
	}

	keys := core.AddKeysTransform(core.NamedKeys{"a": core.AccountKey(core.Address{1})})
	if _, err := keys.Compose(write); !errors.Is(err, core.ErrTransformConflict) {
		t.Fatalf("expected AddKeys.Compose(Write) to conflict, got %v", err)
	}
}

// TestTrackingCopyMergeDisjointKeys covers spec section 8's merge path (used
// by the deploy pipeline to combine payment/session/finalize effects) when
// two copies touch entirely different keys: Merge must preserve both.
func TestTrackingCopyMergeDisjointKeys(t *testing.T) {
	store, root := emptyReader(t)
	reader := core.NewTrieStateReader(store, root)

	a := core.NewTrackingCopy(reader)
	b := core.NewTrackingCopy(reader)

	k1 := core.AccountKey(core.Address{1})
	k2 := core.AccountKey(core.Address{2})
	if err := a.Write(k1, core.NewCLValueStoredValue(core.CLU64(1))); err != nil {
		t.Fatalf("write k1: %v", err)
	}
	if err := b.Write(k2, core.NewCLValueStoredValue(core.CLU64(2))); err != nil {
		t.Fatalf("write k2: %v", err)
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("merge: %v", err)
	}
	for _, tc := range []struct {
		k    core.Key
		want uint64
	}{{k1, 1}, {k2, 2}} {
		got, ok, err := a.Read(tc.k)
		if err != nil || !ok {
			t.Fatalf("read %v after merge: %v, %v", tc.k, ok, err)
		}
		cl, _ := got.AsCLValue()
		if n, _ := cl.AsU64(); n != tc.want {
			t.Fatalf("read %v after merge = %d, want %d", tc.k, n, tc.want)
		}
	}
}

// TestTrackingCopyMergeConflictingWrites covers the fixed cross-copy conflict
// rule: two independently-run copies that both write the same key cannot be
// merged silently, unlike same-copy Write/Write which is last-write-wins.
func TestTrackingCopyMergeConflictingWrites(t *testing.T) {
	store, root := emptyReader(t)
	reader := core.NewTrieStateReader(store, root)

	k := core.AccountKey(core.Address{1})

	a := core.NewTrackingCopy(reader)
	b := core.NewTrackingCopy(reader)
	if err := a.Write(k, core.NewCLValueStoredValue(core.CLU64(1))); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := b.Write(k, core.NewCLValueStoredValue(core.CLU64(2))); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := a.Merge(b); !errors.Is(err, core.ErrTransformConflict) {
		t.Fatalf("expected merging two same-key writes to conflict, got %v", err)
	}
}

// TestTrackingCopyMergeConflictSymmetric asserts the same pair of copies
// conflict in either merge direction: the conflict is a property of the pair,
// not of which side called Merge.
func TestTrackingCopyMergeConflictSymmetric(t *testing.T) {
	store, root := emptyReader(t)
	reader := core.NewTrieStateReader(store, root)
	k := core.AccountKey(core.Address{1})

	newPair := func() (*core.TrackingCopy, *core.TrackingCopy) {
		a := core.NewTrackingCopy(reader)
		b := core.NewTrackingCopy(reader)
		if err := a.Write(k, core.NewCLValueStoredValue(core.CLU64(1))); err != nil {
			t.Fatalf("write a: %v", err)
		}
		if err := b.Write(k, core.NewCLValueStoredValue(core.CLU64(2))); err != nil {
			t.Fatalf("write b: %v", err)
		}
		return a, b
	}

	a, b := newPair()
	if err := a.Merge(b); !errors.Is(err, core.ErrTransformConflict) {
		t.Fatalf("expected a.Merge(b) to conflict, got %v", err)
	}

	c, d := newPair()
	if err := d.Merge(c); !errors.Is(err, core.ErrTransformConflict) {
		t.Fatalf("expected d.Merge(c) to conflict, got %v", err)
	}
}

// TestTrackingCopySnapshotRestore covers the deploy pipeline's rollback path:
// effects recorded after a snapshot disappear once it is restored.
func TestTrackingCopySnapshotRestore(t *testing.T) {
	store, root := emptyReader(t)
	tc := core.NewTrackingCopy(core.NewTrieStateReader(store, root))

	k1 := core.AccountKey(core.Address{1})
	k2 := core.AccountKey(core.Address{2})
	if err := tc.Write(k1, core.NewCLValueStoredValue(core.CLU64(1))); err != nil {
		t.Fatalf("write k1: %v", err)
	}
	snap := tc.TakeSnapshot()

	if err := tc.Write(k2, core.NewCLValueStoredValue(core.CLU64(2))); err != nil {
		t.Fatalf("write k2: %v", err)
	}
	if _, ok, _ := tc.Read(k2); !ok {
		t.Fatal("expected k2 readable before restore")
	}

	tc.RestoreSnapshot(snap)

	if _, ok, _ := tc.Read(k2); ok {
		t.Fatal("expected k2's write to be rolled back after restore")
	}
	got, ok, err := tc.Read(k1)
	if err != nil || !ok {
		t.Fatalf("expected k1 to survive restore: %v, %v", ok, err)
	}
	cl, _ := got.AsCLValue()
	if n, _ := cl.AsU64(); n != 1 {
		t.Fatalf("expected k1's pre-snapshot value to survive, got %d", n)
	}
}

// TestTrackingCopyCommitPersistsTransforms covers the final linear Commit
// step: transforms recorded in the copy land in the backing trie under the
// returned root.
func TestTrackingCopyCommitPersistsTransforms(t *testing.T) {
	store, root := emptyReader(t)
	tc := core.NewTrackingCopy(core.NewTrieStateReader(store, root))

	k := core.AccountKey(core.Address{1})
	if err := tc.Write(k, core.NewCLValueStoredValue(core.CLU64(99))); err != nil {
		t.Fatalf("write: %v", err)
	}

	newRoot, effects, err := tc.Commit(store, root)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(effects) != 1 {
		t.Fatalf("expected exactly one committed effect, got %d", len(effects))
	}

	got, ok, err := store.Read(newRoot, k.TriePath())
	if err != nil || !ok {
		t.Fatalf("expected committed value readable from the new root: %v, %v", ok, err)
	}
	cl, _ := got.AsCLValue()
	if n, _ := cl.AsU64(); n != 99 {
		t.Fatalf("expected committed value 99, got %d", n)
	}

	// The original root is untouched: commits never mutate history in place.
	if _, ok, _ := store.Read(root, k.TriePath()); ok {
		t.Fatal("expected the pre-commit root to remain empty")
	}
}
