package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"waldb/internal/logfilemgr"
	"waldb/internal/record"
	"waldb/pkg/types"
)

func mustCreate(t *testing.T, opts Options) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := Create(dir, opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() {
		if l.IsOpen() {
			l.Close()
		}
	})
	return l, dir
}

func TestAppendAssignsIncreasingLSNs(t *testing.T) {
	l, _ := mustCreate(t, Options{})

	var lsns []types.LSN
	for i := 0; i < 5; i++ {
		lsn, err := l.Append(record.BeginTxn(types.TxnID(i + 1)))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		lsns = append(lsns, lsn)
	}
	for i := 1; i < len(lsns); i++ {
		if lsns[i] <= lsns[i-1] {
			t.Fatalf("LSNs not strictly increasing: %v", lsns)
		}
	}
	if got := l.LastLSN(); got != lsns[len(lsns)-1] {
		t.Errorf("LastLSN = %v, want %v", got, lsns[len(lsns)-1])
	}
}

func TestFsyncMakesRecordsDurableAcrossReopen(t *testing.T) {
	l, dir := mustCreate(t, Options{})

	lsn, err := l.Append(record.Commit(types.TxnID(1)))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Fsync(lsn); err != nil {
		t.Fatalf("Fsync: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	if got := reopened.LastLSN(); got != lsn {
		t.Errorf("LastLSN after reopen = %v, want %v", got, lsn)
	}
}

func TestShutdownWithNoLiveTxnsWritesCommentAndCloses(t *testing.T) {
	l, _ := mustCreate(t, Options{})
	if err := l.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if l.IsOpen() {
		t.Errorf("logger still open after Shutdown")
	}
}

func TestCloseRefusesWithRollbackStoreOpen(t *testing.T) {
	l, _ := mustCreate(t, Options{})
	if err := l.OpenRollback("handle"); err != nil {
		t.Fatalf("OpenRollback: %v", err)
	}
	if err := l.Close(); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("Close with open rollback store: err = %v, want ErrInvalidArg", err)
	}
	if _, err := l.CloseRollback(); err != nil {
		t.Fatalf("CloseRollback: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close after CloseRollback: %v", err)
	}
}

func TestRolloverCreatesNewLogFile(t *testing.T) {
	l, dir := mustCreate(t, Options{LgMax: 64, LgBsize: 1})

	for i := 0; i < 20; i++ {
		rec := record.Insert(types.TxnID(1), types.FileNum(1), types.BlockNum(uint64(i)),
			[]byte("key-with-some-length"), []byte("value-with-some-length-too"))
		lsn, err := l.Append(rec)
		if err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
		if err := l.Fsync(lsn); err != nil {
			t.Fatalf("Fsync #%d: %v", i, err)
		}
	}

	if got := l.lfm.NumLogFiles(); got < 2 {
		t.Fatalf("NumLogFiles = %d, want at least 2 after rollover", got)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	count := 0
	for _, e := range ents {
		if filepath.Ext(e.Name()) == ".tokulog" {
			count++
		}
	}
	if count < 2 {
		t.Fatalf("on-disk log file count = %d, want at least 2", count)
	}
}

func TestMaybeTrimLogKeepsActiveFile(t *testing.T) {
	l, _ := mustCreate(t, Options{LgMax: 32, LgBsize: 1})

	var lastLSN types.LSN
	for i := 0; i < 20; i++ {
		rec := record.Insert(types.TxnID(1), types.FileNum(1), types.BlockNum(uint64(i)),
			[]byte("key-with-some-length"), []byte("value-with-some-length-too"))
		lsn, err := l.Append(rec)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := l.Fsync(lsn); err != nil {
			t.Fatalf("Fsync: %v", err)
		}
		lastLSN = lsn
	}

	before := l.lfm.NumLogFiles()
	if before < 2 {
		t.Fatalf("need at least 2 log files before trim, got %d", before)
	}

	l.NoteCheckpoint(lastLSN)
	if err := l.MaybeTrimLog(lastLSN); err != nil {
		t.Fatalf("MaybeTrimLog: %v", err)
	}

	if got := l.lfm.NumLogFiles(); got != 1 {
		t.Fatalf("NumLogFiles after trim = %d, want 1 (only active file left)", got)
	}
}

func TestLogArchiveExcludesActiveFile(t *testing.T) {
	l, _ := mustCreate(t, Options{LgMax: 32, LgBsize: 1})

	var lastLSN types.LSN
	for i := 0; i < 20; i++ {
		rec := record.Insert(types.TxnID(1), types.FileNum(1), types.BlockNum(uint64(i)),
			[]byte("key-with-some-length"), []byte("value-with-some-length-too"))
		lsn, err := l.Append(rec)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := l.Fsync(lsn); err != nil {
			t.Fatalf("Fsync: %v", err)
		}
		lastLSN = lsn
	}

	l.NoteCheckpoint(lastLSN)
	names, err := l.LogArchive()
	if err != nil {
		t.Fatalf("LogArchive: %v", err)
	}

	newest, _ := l.lfm.GetNewest()
	activeName := logfilemgr.FileName(newest.Index)
	for _, n := range names {
		if n == activeName {
			t.Errorf("LogArchive returned the active file %q", n)
		}
	}
}

// TestLogArchiveExcludesBoundaryFile exercises the non-degenerate case:
// a checkpoint noted inside the newest non-active file's range must not
// make that file itself archivable, since records after the checkpoint may
// still live in it. Only strictly older files qualify.
func TestLogArchiveExcludesBoundaryFile(t *testing.T) {
	l, _ := mustCreate(t, Options{LgMax: 32, LgBsize: 1})

	for i := 0; i < 60; i++ {
		rec := record.Insert(types.TxnID(1), types.FileNum(1), types.BlockNum(uint64(i)),
			[]byte("key-with-some-length"), []byte("value-with-some-length-too"))
		lsn, err := l.Append(rec)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := l.Fsync(lsn); err != nil {
			t.Fatalf("Fsync: %v", err)
		}
	}

	entries := l.lfm.Entries()
	if len(entries) < 3 {
		t.Fatalf("expected at least 3 log files, got %d", len(entries))
	}

	// Checkpoint at the end of the newest non-active file: that file must
	// be excluded, but everything strictly older must still be archivable.
	boundaryEntry := entries[len(entries)-2]
	l.NoteCheckpoint(boundaryEntry.MaxLSN)

	names, err := l.LogArchive()
	if err != nil {
		t.Fatalf("LogArchive: %v", err)
	}

	boundaryName := logfilemgr.FileName(boundaryEntry.Index)
	for _, n := range names {
		if n == boundaryName {
			t.Errorf("LogArchive returned the boundary file %q, want it excluded", n)
		}
	}
	wantCount := len(entries) - 2 // excludes the boundary file and the active file
	if len(names) != wantCount {
		t.Errorf("LogArchive returned %d files, want %d (%v)", len(names), wantCount, names)
	}
}

func TestPanicMakesLoggerUnusable(t *testing.T) {
	l, _ := mustCreate(t, Options{})
	l.Panic(errors.New("disk exploded"))

	if !l.IsPanicked() {
		t.Fatalf("IsPanicked = false after Panic")
	}
	if _, err := l.Append(record.Commit(types.TxnID(1))); !errors.Is(err, ErrPanicked) {
		t.Errorf("Append after Panic: err = %v, want ErrPanicked", err)
	}
	if err := l.Fsync(1); !errors.Is(err, ErrPanicked) {
		t.Errorf("Fsync after Panic: err = %v, want ErrPanicked", err)
	}
}

func TestSetLgMaxRejectedAfterOpen(t *testing.T) {
	l, _ := mustCreate(t, Options{})
	if err := l.SetLgMax(1 << 20); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("SetLgMax after open: err = %v, want ErrInvalidArg", err)
	}
}

func TestTxnRegistry(t *testing.T) {
	l, _ := mustCreate(t, Options{})
	l.RegisterTxn(types.TxnID(10), "handle-10")
	l.RegisterTxn(types.TxnID(5), "handle-5")

	oldest, ok := l.OldestLivingXid()
	if !ok || oldest != types.TxnID(5) {
		t.Fatalf("OldestLivingXid = %v, %v, want 5, true", oldest, ok)
	}

	if !l.UnregisterTxn(types.TxnID(5)) {
		t.Fatalf("UnregisterTxn(5) = false")
	}
	oldest, ok = l.OldestLivingXid()
	if !ok || oldest != types.TxnID(10) {
		t.Fatalf("OldestLivingXid after unregister = %v, %v, want 10, true", oldest, ok)
	}
}

func TestRemoveFinalizeCallbackFiresOnTrim(t *testing.T) {
	l, _ := mustCreate(t, Options{LgMax: 32, LgBsize: 1})

	var removed []uint64
	l.SetRemoveFinalizeCallback(func(idx uint64) {
		removed = append(removed, idx)
	})

	var lastLSN types.LSN
	for i := 0; i < 20; i++ {
		rec := record.Insert(types.TxnID(1), types.FileNum(1), types.BlockNum(uint64(i)),
			[]byte("key-with-some-length"), []byte("value-with-some-length-too"))
		lsn, err := l.Append(rec)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := l.Fsync(lsn); err != nil {
			t.Fatalf("Fsync: %v", err)
		}
		lastLSN = lsn
	}

	l.NoteCheckpoint(lastLSN)
	if err := l.MaybeTrimLog(lastLSN); err != nil {
		t.Fatalf("MaybeTrimLog: %v", err)
	}
	if len(removed) == 0 {
		t.Errorf("remove-finalize callback never fired")
	}
}
