package collab_test

import (
	"path/filepath"
	"testing"

	"waldb/internal/collab"
	"waldb/internal/logger"
	"waldb/pkg/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	dir := t.TempDir()
	l, err := logger.Create(dir, logger.Options{})
	if err != nil {
		t.Fatalf("logger.Create: %v", err)
	}
	t.Cleanup(func() {
		if l.IsOpen() {
			l.Close()
		}
	})
	return l
}

func TestTxnManagerBeginCommit(t *testing.T) {
	l := newTestLogger(t)
	m := collab.NewTxnManager(l)

	txn, err := m.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", m.ActiveCount())
	}
	if _, ok := l.OldestLivingXid(); !ok {
		t.Fatalf("OldestLivingXid: not found after Begin")
	}

	if err := m.Commit(txn); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount after commit = %d, want 0", m.ActiveCount())
	}
	if _, ok := l.OldestLivingXid(); ok {
		t.Fatalf("OldestLivingXid: still found after Commit")
	}
}

func TestTxnManagerBeginAbort(t *testing.T) {
	l := newTestLogger(t)
	m := collab.NewTxnManager(l)

	txn, err := m.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := m.Abort(txn); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount after abort = %d, want 0", m.ActiveCount())
	}
}

func TestTxnManagerDoubleCommitFails(t *testing.T) {
	l := newTestLogger(t)
	m := collab.NewTxnManager(l)

	txn, err := m.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := m.Commit(txn); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := m.Commit(txn); err == nil {
		t.Fatalf("second Commit on the same txn succeeded, want error")
	}
}

func TestRollbackStorePutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.db")
	rs, err := collab.OpenRollbackStore(path)
	if err != nil {
		t.Fatalf("OpenRollbackStore: %v", err)
	}
	defer rs.Close()

	blk := types.BlockNum(7)
	if !rs.Empty() {
		t.Fatalf("Empty = false on fresh store")
	}

	if err := rs.PutBeforeImage(blk, []byte("before")); err != nil {
		t.Fatalf("PutBeforeImage: %v", err)
	}
	if rs.Empty() {
		t.Fatalf("Empty = true after PutBeforeImage")
	}

	got, ok, err := rs.GetBeforeImage(blk)
	if err != nil {
		t.Fatalf("GetBeforeImage: %v", err)
	}
	if !ok || string(got) != "before" {
		t.Fatalf("GetBeforeImage = %q, %v, want \"before\", true", got, ok)
	}

	rs.Clear()
	if !rs.Empty() {
		t.Fatalf("Empty = false after Clear")
	}
}

func TestRollbackStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.db")
	rs, err := collab.OpenRollbackStore(path)
	if err != nil {
		t.Fatalf("OpenRollbackStore: %v", err)
	}
	if err := rs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rs2, err := collab.OpenRollbackStore(path)
	if err != nil {
		t.Fatalf("reopen OpenRollbackStore: %v", err)
	}
	defer rs2.Close()
	if !rs2.Empty() {
		t.Fatalf("Empty = false on reopened empty store")
	}
}

func TestLoggerRollbackLifecycle(t *testing.T) {
	l := newTestLogger(t)
	path := filepath.Join(t.TempDir(), "rollback.db")
	rs, err := collab.OpenRollbackStore(path)
	if err != nil {
		t.Fatalf("OpenRollbackStore: %v", err)
	}

	if err := l.OpenRollback(rs); err != nil {
		t.Fatalf("OpenRollback: %v", err)
	}
	if err := l.Close(); err == nil {
		t.Fatalf("Close succeeded with rollback store still open, want error")
	}

	got, err := l.CloseRollback()
	if err != nil {
		t.Fatalf("CloseRollback: %v", err)
	}
	if got.(*collab.RollbackStore) != rs {
		t.Fatalf("CloseRollback returned a different handle than OpenRollback was given")
	}
	if err := rs.Close(); err != nil {
		t.Fatalf("rs.Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close after CloseRollback: %v", err)
	}
}
