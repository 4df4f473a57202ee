package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"waldb/internal/logfilemgr"
	"waldb/internal/record"
	"waldb/pkg/types"
)

// Close flushes and fsyncs any buffered records, closes the active log
// file, and releases the directory lock. The logger is unusable after
// Close returns; reopen with Open to continue appending.
func (l *Logger) Close() error {
	if !l.IsOpen() {
		return fmt.Errorf("%w: close on a logger that is not open", ErrInvalidArg)
	}
	if err := l.flushAndSyncAll(); err != nil {
		return err
	}

	l.rollbackMu.Lock()
	rb := l.rollback
	l.rollbackMu.Unlock()
	if rb != nil {
		return fmt.Errorf("%w: close with rollback store still open", ErrInvalidArg)
	}

	l.isOpen.Store(false)
	if err := l.curFile.Close(); err != nil {
		l.closeHandles()
		return ioError("close log file", err)
	}
	l.curFile = nil
	l.closeHandles()
	return nil
}

// Shutdown performs a clean shutdown: if no transactions are live, it
// appends a "shutdown" comment record (a crumb recovery tooling can use to
// tell a clean shutdown from a crash), fsyncs it, and then closes the
// logger, matching toku_logger_shutdown.
func (l *Logger) Shutdown() error {
	if err := l.checkUsable(); err != nil {
		return err
	}
	if l.txns.Len() == 0 {
		lsn, err := l.Append(record.Comment("shutdown"))
		if err != nil {
			return err
		}
		if err := l.Fsync(lsn); err != nil {
			return err
		}
	}
	return l.Close()
}

// flushAndSyncAll swaps the input buffer (if non-empty) into the output
// buffer, writes it out, and fsyncs — a single-threaded path used only by
// Close/Shutdown/Restart, matching toku_logger_write_buffer's use at those
// call sites.
func (l *Logger) flushAndSyncAll() error {
	if err := l.swapAndWrite(); err != nil {
		return err
	}
	if l.writeLogFiles.Load() {
		if err := l.curFile.Sync(); err != nil {
			return ioError("fsync log file", err)
		}
	}
	l.outputMu.Lock()
	if l.writtenLSN > l.fsyncedLSN {
		l.fsyncedLSN = l.writtenLSN
	}
	l.outputMu.Unlock()
	l.lfm.UpdateLastLSN(l.curIndex, l.fsyncedLSN)
	return nil
}

// Restart flushes and fsyncs any buffered records (when the logger is
// open), resets the logger's LSN watermarks to the last LSN assigned, which
// is then durable, and unconditionally re-enables writing and trimming log
// files even if either had been disabled — matching toku_logger_restart,
// used by test harnesses that reopen a logger mid-run without a full
// process restart.
func (l *Logger) Restart() error {
	if err := l.checkUsable(); err != nil {
		return err
	}
	if l.IsOpen() {
		if err := l.flushAndSyncAll(); err != nil {
			return err
		}
	}
	l.lockInput()
	l.nextLSN = l.lastLSN + 1
	l.inputMu.Unlock()

	l.outputMu.Lock()
	l.writtenLSN = l.lastLSN
	l.fsyncedLSN = l.lastLSN
	l.outputMu.Unlock()

	l.writeLogFiles.Store(true)
	l.trimLogFiles.Store(true)
	return nil
}

// NoteCheckpoint records the LSN of the most recently completed
// checkpoint. MaybeTrimLog and LogArchive use this watermark to decide
// which log files are no longer needed.
func (l *Logger) NoteCheckpoint(lsn types.LSN) {
	l.checkpointLSN.Store(uint64(lsn))
}

// WriteLogFiles enables or disables actually writing buffered records out
// to the log file (as opposed to merely tracking LSNs in memory). Matches
// toku_logger_write_log_files; only valid before the logger is open.
func (l *Logger) WriteLogFiles(enabled bool) error {
	if l.IsOpen() {
		return fmt.Errorf("%w: WriteLogFiles after open", ErrInvalidArg)
	}
	l.writeLogFiles.Store(enabled)
	return nil
}

// TrimLogFiles enables or disables MaybeTrimLog actually deleting files.
// Matches toku_logger_trim_log_files; only valid before the logger is
// open.
func (l *Logger) TrimLogFiles(enabled bool) error {
	if l.IsOpen() {
		return fmt.Errorf("%w: TrimLogFiles after open", ErrInvalidArg)
	}
	l.trimLogFiles.Store(enabled)
	return nil
}

// MaybeTrimLog deletes log files whose highest LSN is at or below trimLSN,
// always keeping at least the active file. Unlike LogArchive, trim judges
// a file by its highest LSN (a file is only safe to delete once nothing in
// it is still needed), and stops at the first file that's still needed
// rather than silently skipping it.
func (l *Logger) MaybeTrimLog(trimLSN types.LSN) error {
	if err := l.checkUsable(); err != nil {
		return err
	}
	if !l.trimLogFiles.Load() {
		return nil
	}

	if _, err := l.grabOutput(); err != nil {
		return err
	}
	defer l.releaseOutput()

	for l.lfm.NumLogFiles() > 1 {
		oldest, ok := l.lfm.GetOldest()
		if !ok {
			break
		}
		if oldest.MaxLSN > trimLSN {
			break
		}
		path := filepath.Join(l.dir, logfilemgr.FileName(oldest.Index))
		if err := os.Remove(path); err != nil {
			break
		}
		l.lfm.DeleteOldest()
		l.callRemoveFinalizeCallback(oldest.Index)
	}
	return nil
}

// LogArchive lists log files that are entirely older than the last noted
// checkpoint and therefore safe to move to external backup storage. It
// never includes the active (currently open) log file, nor the boundary
// file found below.
//
// It scans newest-to-oldest, including the active file as a candidate, and
// stops at the first file whose own first LSN is at or before the
// checkpoint watermark. That file is excluded from the result — its first
// LSN predating the checkpoint says nothing about whether records *after*
// the checkpoint also landed in it, so it may still hold live records —
// but every file strictly older than it is necessarily archivable, so the
// scan returns everything below it without inspecting those individually.
// A file whose header or first record can't be read is skipped (the scan
// continues to older files) rather than aborting the whole call — a single
// corrupt middle file should not block archiving everything clearly older
// than it.
func (l *Logger) LogArchive() ([]string, error) {
	if err := l.checkUsable(); err != nil {
		return nil, err
	}

	if _, err := l.grabOutput(); err != nil {
		return nil, err
	}
	defer l.releaseOutput()

	entries := l.lfm.Entries() // oldest to newest
	if len(entries) <= 1 {
		return nil, nil
	}
	checkpointLSN := types.LSN(l.checkpointLSN.Load())

	boundary := -1
	for i := len(entries) - 1; i >= 0; i-- {
		firstLSN, err := l.peekFirstLSN(entries[i].Index)
		if err != nil {
			continue
		}
		if firstLSN <= checkpointLSN {
			boundary = i
			break
		}
	}
	if boundary <= 0 {
		return nil, nil
	}

	names := make([]string, 0, boundary)
	for i := 0; i < boundary; i++ {
		names = append(names, logfilemgr.FileName(entries[i].Index))
	}
	return names, nil
}

// peekFirstLSN opens the log file at index and returns the LSN of its
// first record, the same information peek_at_log reads.
func (l *Logger) peekFirstLSN(index uint64) (types.LSN, error) {
	path := filepath.Join(l.dir, logfilemgr.FileName(index))
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := readAndCheckHeader(f); err != nil {
		return 0, err
	}
	rec, _, err := record.ReadFrameForward(f)
	if err != nil {
		return 0, err
	}
	return rec.LSN, nil
}

// OpenRollback stores the opaque rollback-store handle the logger hands
// back unexamined at CloseRollback; it exists only so Close can assert the
// rollback store was cleanly closed first, matching toku_logger_open_
// rollback/toku_logger_close_rollback's "assert empty before close"
// contract.
func (l *Logger) OpenRollback(handle any) error {
	l.rollbackMu.Lock()
	defer l.rollbackMu.Unlock()
	if l.rollback != nil {
		return fmt.Errorf("%w: rollback store already open", ErrInvalidArg)
	}
	l.rollback = handle
	return nil
}

// CloseRollback clears the rollback-store handle set by OpenRollback,
// returning it to the caller. A handle with an Empty method that reports
// false is refused with ErrInvalidArg and stays attached.
func (l *Logger) CloseRollback() (any, error) {
	l.rollbackMu.Lock()
	defer l.rollbackMu.Unlock()
	if l.rollback == nil {
		return nil, fmt.Errorf("%w: rollback store not open", ErrInvalidArg)
	}
	if e, ok := l.rollback.(interface{ Empty() bool }); ok && !e.Empty() {
		return nil, fmt.Errorf("%w: rollback store not empty", ErrInvalidArg)
	}
	handle := l.rollback
	l.rollback = nil
	return handle, nil
}
