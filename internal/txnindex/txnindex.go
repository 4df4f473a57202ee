// Package txnindex is the logger's registry of live transactions: an
// ordered TXNID -> handle map that answers "is this transaction live" and
// "what is the oldest live transaction" without a linear scan. It mirrors
// the role of the original order-maintenance-tree-backed live_txns table,
// reimplemented here as a sorted slice with binary search: the expected
// number of concurrently live transactions is small enough that a sorted
// slice's O(n) insert/remove is not a bottleneck, while lookup stays
// O(log n).
package txnindex

import (
	"sort"
	"sync"

	"waldb/pkg/types"
)

// Index is the live-transaction registry. The zero value is not usable;
// construct with [New]. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	ids     []types.TxnID
	handles []any
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

// search returns the position where id is, or would be inserted, using the
// 3-way comparator so the ordering never relies on subtraction (which
// wraps around near the uint64 boundary for transaction identifiers).
func (x *Index) search(id types.TxnID) int {
	return sort.Search(len(x.ids), func(i int) bool {
		return types.CompareTxnID(x.ids[i], id) >= 0
	})
}

// Insert registers a live transaction with an opaque handle (the external
// transaction manager's own record for it). If id is already present, its
// handle is replaced.
func (x *Index) Insert(id types.TxnID, handle any) {
	x.mu.Lock()
	defer x.mu.Unlock()

	i := x.search(id)
	if i < len(x.ids) && x.ids[i] == id {
		x.handles[i] = handle
		return
	}
	x.ids = append(x.ids, types.InvalidTxnID)
	copy(x.ids[i+1:], x.ids[i:])
	x.ids[i] = id

	x.handles = append(x.handles, nil)
	copy(x.handles[i+1:], x.handles[i:])
	x.handles[i] = handle
}

// Remove unregisters a transaction (on commit or abort). It reports
// whether id was present.
func (x *Index) Remove(id types.TxnID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	i := x.search(id)
	if i >= len(x.ids) || x.ids[i] != id {
		return false
	}
	x.ids = append(x.ids[:i], x.ids[i+1:]...)
	x.handles = append(x.handles[:i], x.handles[i+1:]...)
	return true
}

// Lookup returns the handle registered for id, if live.
func (x *Index) Lookup(id types.TxnID) (any, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	i := x.search(id)
	if i >= len(x.ids) || x.ids[i] != id {
		return nil, false
	}
	return x.handles[i], true
}

// IsLive reports whether id is currently registered.
func (x *Index) IsLive(id types.TxnID) bool {
	_, ok := x.Lookup(id)
	return ok
}

// Len returns the number of live transactions.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// OldestLivingID returns the smallest live TxnID. ok is false if there are
// no live transactions, in which case the logger is free to consider every
// LSN before the current one as no longer needed by any open transaction.
func (x *Index) OldestLivingID() (types.TxnID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.ids) == 0 {
		return types.InvalidTxnID, false
	}
	return x.ids[0], true
}

// All returns a snapshot of the currently live transaction ids, in
// ascending order. Used to populate a checkpoint record's live-transaction
// list.
func (x *Index) All() []types.TxnID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]types.TxnID, len(x.ids))
	copy(out, x.ids)
	return out
}
