package txnindex

import (
	"testing"

	"waldb/pkg/types"
)

func TestInsertLookupRemove(t *testing.T) {
	x := New()
	x.Insert(types.TxnID(5), "handle-5")
	x.Insert(types.TxnID(2), "handle-2")
	x.Insert(types.TxnID(9), "handle-9")

	if x.Len() != 3 {
		t.Fatalf("Len = %d, want 3", x.Len())
	}

	h, ok := x.Lookup(types.TxnID(2))
	if !ok || h != "handle-2" {
		t.Fatalf("Lookup(2) = %v, %v, want handle-2, true", h, ok)
	}

	if !x.Remove(types.TxnID(5)) {
		t.Fatalf("Remove(5) = false, want true")
	}
	if x.IsLive(types.TxnID(5)) {
		t.Errorf("IsLive(5) after remove = true")
	}
	if x.Remove(types.TxnID(5)) {
		t.Errorf("Remove(5) again = true, want false (already removed)")
	}
}

func TestOldestLivingID(t *testing.T) {
	x := New()
	if _, ok := x.OldestLivingID(); ok {
		t.Fatalf("OldestLivingID on empty index: ok = true")
	}

	x.Insert(types.TxnID(30), nil)
	x.Insert(types.TxnID(10), nil)
	x.Insert(types.TxnID(20), nil)

	oldest, ok := x.OldestLivingID()
	if !ok || oldest != types.TxnID(10) {
		t.Fatalf("OldestLivingID = %v, %v, want 10, true", oldest, ok)
	}

	x.Remove(types.TxnID(10))
	oldest, ok = x.OldestLivingID()
	if !ok || oldest != types.TxnID(20) {
		t.Fatalf("OldestLivingID after removing oldest = %v, %v, want 20, true", oldest, ok)
	}
}

func TestInsertDuplicateUpdatesHandle(t *testing.T) {
	x := New()
	x.Insert(types.TxnID(1), "first")
	x.Insert(types.TxnID(1), "second")

	if x.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (duplicate insert should not grow index)", x.Len())
	}
	h, _ := x.Lookup(types.TxnID(1))
	if h != "second" {
		t.Errorf("Lookup(1) = %v, want second", h)
	}
}

func TestAllOrdering(t *testing.T) {
	x := New()
	for _, id := range []types.TxnID{50, 10, 30, 20, 40} {
		x.Insert(id, nil)
	}
	all := x.All()
	want := []types.TxnID{10, 20, 30, 40, 50}
	if len(all) != len(want) {
		t.Fatalf("All() = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("All()[%d] = %v, want %v", i, all[i], want[i])
		}
	}
}

func TestNearMaxTxnIDNoOverflow(t *testing.T) {
	x := New()
	x.Insert(types.MaxTxnID, "max")
	x.Insert(types.MaxTxnID-1, "near-max")

	oldest, ok := x.OldestLivingID()
	if !ok || oldest != types.MaxTxnID-1 {
		t.Fatalf("OldestLivingID = %v, %v, want MaxTxnID-1, true", oldest, ok)
	}
}
