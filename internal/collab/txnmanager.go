package collab

import (
	"fmt"
	"sync"
	"sync/atomic"

	"waldb/internal/record"
	"waldb/pkg/types"
)

// LoggerFacade is the slice of Logger's contract the transaction manager
// stand-in needs: assign and make durable BEGIN/COMMIT/ABORT records, and
// keep the live-transaction registry in sync. Declared here instead of
// importing *logger.Logger directly so collab stays a consumer of the
// logger's public surface, the same relationship the transaction manager
// has to the logger in spec.md (external collaborator, contract only).
type LoggerFacade interface {
	Append(rec *record.Record) (types.LSN, error)
	Fsync(lsn types.LSN) error
	RegisterTxn(id types.TxnID, handle any)
	UnregisterTxn(id types.TxnID) bool
}

// Txn is a minimal transaction handle: just enough state (id, last LSN) to
// exercise the logger's contract. It intentionally drops the teacher's
// MVCC snapshot, command-id counter, and lock table — those implement
// transaction *isolation*, a storage-engine concern layered above the
// logger, not part of the write-ahead log itself.
type Txn struct {
	ID      types.TxnID
	LastLSN types.LSN

	mu     sync.Mutex
	active bool
}

// TxnManager is a minimal external-transaction-manager stand-in: it
// assigns transaction ids, brackets them with BEGIN/COMMIT/ABORT log
// records, and registers/unregisters them in the logger's live-transaction
// index so OldestLivingXid reflects reality. Adapted from the teacher's
// internal/txn/transaction.go Manager, with the MVCC snapshot/visibility
// machinery removed.
type TxnManager struct {
	mu        sync.Mutex
	nextTxnID atomic.Uint64
	logger    LoggerFacade
	active    map[types.TxnID]*Txn
}

// NewTxnManager returns a TxnManager that logs through l.
func NewTxnManager(l LoggerFacade) *TxnManager {
	return &TxnManager{
		logger: l,
		active: make(map[types.TxnID]*Txn),
	}
}

// Begin starts a new transaction: assigns it an id, appends and registers
// it with the logger, and tracks it as active.
func (m *TxnManager) Begin() (*Txn, error) {
	id := types.TxnID(m.nextTxnID.Add(1))

	lsn, err := m.logger.Append(record.BeginTxn(id))
	if err != nil {
		return nil, fmt.Errorf("collab: log begin for txn %v: %w", id, err)
	}

	txn := &Txn{ID: id, LastLSN: lsn, active: true}

	m.mu.Lock()
	m.active[id] = txn
	m.mu.Unlock()

	m.logger.RegisterTxn(id, txn)
	return txn, nil
}

// Commit appends and durably fsyncs a COMMIT record for txn, then
// unregisters it.
func (m *TxnManager) Commit(txn *Txn) error {
	return m.finish(txn, record.Commit(txn.ID))
}

// Abort appends an ABORT record for txn and unregisters it. Unlike
// Commit, the ABORT record does not need to be fsynced before the caller
// proceeds — nothing downstream depends on an abort's durability the way
// a commit's durability gates returning success to a client.
func (m *TxnManager) Abort(txn *Txn) error {
	txn.mu.Lock()
	if !txn.active {
		txn.mu.Unlock()
		return fmt.Errorf("collab: txn %v is not active", txn.ID)
	}
	txn.active = false
	txn.mu.Unlock()

	lsn, err := m.logger.Append(record.Abort(txn.ID))
	if err != nil {
		return fmt.Errorf("collab: log abort for txn %v: %w", txn.ID, err)
	}
	txn.LastLSN = lsn

	m.remove(txn.ID)
	return nil
}

func (m *TxnManager) finish(txn *Txn, rec *record.Record) error {
	txn.mu.Lock()
	if !txn.active {
		txn.mu.Unlock()
		return fmt.Errorf("collab: txn %v is not active", txn.ID)
	}
	txn.active = false
	txn.mu.Unlock()

	lsn, err := m.logger.Append(rec)
	if err != nil {
		return fmt.Errorf("collab: log commit for txn %v: %w", txn.ID, err)
	}
	if err := m.logger.Fsync(lsn); err != nil {
		return fmt.Errorf("collab: fsync commit for txn %v: %w", txn.ID, err)
	}
	txn.LastLSN = lsn

	m.remove(txn.ID)
	return nil
}

func (m *TxnManager) remove(id types.TxnID) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
	m.logger.UnregisterTxn(id)
}

// ActiveCount returns the number of transactions this manager currently
// considers active.
func (m *TxnManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
