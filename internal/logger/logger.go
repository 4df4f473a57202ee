// Package logger implements the write-ahead logger core: LSN allocation,
// the double-buffer group-commit append path, on-disk log file lifecycle
// (rollover, archive, trim), and the live-transaction registry. It is the
// logger.c analogue of this module: the transaction manager, checkpointer,
// rollback store, and recovery/replay engine are external collaborators
// this package only exposes contracts for (see internal/collab for the
// stand-ins used to exercise those contracts in tests).
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"waldb/internal/logfilemgr"
	"waldb/internal/record"
	"waldb/internal/txnindex"
	"waldb/pkg/types"
)

// Default tunables, matching the original's defaults: a log file rolls over
// at 100MiB, and the input buffer is allowed to grow to 1MiB before a
// group-commit flush is forced to make room for more appends.
const (
	DefaultLgMax   int64 = 100 << 20
	DefaultLgBsize int   = 1 << 20

	// maxBufferSize bounds how large the double buffer is ever allowed to
	// grow, mirroring the original's 2^30 ceiling on inbuf/outbuf capacity.
	maxBufferSize = 1 << 30

	logMagic         = "tokulogg"
	logMagicLen      = 8
	logVersion       = uint32(1)
	logHeaderLen     = logMagicLen + 4
)

// Options configures a new or reopened Logger.
type Options struct {
	// LgMax is the size a log file may reach before rollover. Zero means
	// DefaultLgMax.
	LgMax int64
	// LgBsize is the input buffer size threshold that triggers a
	// group-commit flush to make room for further appends. Zero means
	// DefaultLgBsize.
	LgBsize int
}

// buffer is a simple growable byte buffer backing the double-buffer
// discipline; it exists instead of bytes.Buffer because the logger needs
// to reason explicitly about, and cap, its capacity.
type buffer struct {
	data []byte
	// maxLSN is the highest LSN of any record currently copied into this
	// buffer, used to advance writtenLSN/fsyncedLSN after a swap+write.
	maxLSN types.LSN
}

func (b *buffer) append(p []byte) {
	b.data = append(b.data, p...)
}

func (b *buffer) reset() {
	b.data = b.data[:0]
	b.maxLSN = 0
}

func (b *buffer) len() int {
	return len(b.data)
}

// Status is a point-in-time snapshot of the logger's observability
// counters, the Go analogue of toku_logger_get_status.
type Status struct {
	InputLockCtr           int64
	OutputConditionLockCtr int64
	SwapCtr                int64
	NumLogFiles            int
	LastLSN                types.LSN
	FsyncedLSN             types.LSN
}

// Logger is the write-ahead logger core. The zero value is not usable;
// construct with Create or Open.
type Logger struct {
	dir    string
	dirFD  *os.File // kept open for directory fsync
	lockFD *os.File // exclusive flock guarding "one open logger per directory"

	opts Options

	lfm  *logfilemgr.Manager
	txns *txnindex.Index

	// input_lock: guards inbuf and everything an appending goroutine
	// touches. Never held at the same time as outputMu.
	inputMu sync.Mutex
	inbuf   buffer
	nextLSN types.LSN // next LSN to assign; protected by inputMu

	// output_condition_lock + condition + output_is_available flag: guards
	// outbuf, the log file descriptor, and the written/fsynced watermarks.
	// "Holding output permission" means having CAS'd outputAvailable from
	// true to false under outputMu; release sets it back to true and
	// broadcasts. Never held at the same time as inputMu.
	outputMu        sync.Mutex
	outputCond      *sync.Cond
	outputAvailable bool
	outbuf          buffer

	curFile     *os.File
	curIndex    uint64
	curFileSize int64

	writtenLSN types.LSN // highest LSN handed to the OS write(2) call
	fsyncedLSN types.LSN // highest LSN confirmed durable by fsync(2)
	lastLSN    types.LSN // snapshot used by Restart

	checkpointLSN atomic.Uint64 // watermark set by NoteCheckpoint

	writeLogFiles atomic.Bool
	trimLogFiles  atomic.Bool

	isOpen    atomic.Bool
	panicked  atomic.Bool
	panicErr  atomic.Value // error

	removeFinalize   func(logFileIndex uint64)
	removeFinalizeMu sync.Mutex

	inputLockCtr  atomic.Int64
	outputLockCtr atomic.Int64
	swapCtr       atomic.Int64

	rollbackMu sync.Mutex
	rollback   any // opaque handle from internal/collab, asserted empty before Close
}

func resolveOptions(opts Options) Options {
	if opts.LgMax <= 0 {
		opts.LgMax = DefaultLgMax
	}
	if opts.LgBsize <= 0 {
		opts.LgBsize = DefaultLgBsize
	}
	return opts
}

// newLogger allocates a Logger shell shared by Create and Open.
func newLogger(dir string, opts Options) *Logger {
	l := &Logger{
		dir:  dir,
		opts: resolveOptions(opts),
		txns: txnindex.New(),
	}
	l.outputCond = sync.NewCond(&l.outputMu)
	l.outputAvailable = true
	l.nextLSN = 1 // LSN 0 is types.InvalidLSN
	l.writeLogFiles.Store(true)
	l.trimLogFiles.Store(true)
	return l
}

// Create makes the logger directory if needed and opens it. When the
// directory holds no log files, Create opens the first one; when it already
// holds log files, Create resumes from them exactly as Open does.
func Create(dir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create dir %s: %v", ErrInvalidArg, dir, err)
	}
	return openLogger(dir, opts, true)
}

// Open opens an existing logger directory, discovering its log files and
// resuming LSN allocation after the highest one found.
func Open(dir string, opts Options) (*Logger, error) {
	return openLogger(dir, opts, false)
}

func openLogger(dir string, opts Options, creating bool) (*Logger, error) {
	l := newLogger(dir, opts)

	dirFD, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: open dir %s: %v", ErrInvalidArg, dir, err)
	}
	l.dirFD = dirFD

	lockFD, err := os.OpenFile(filepath.Join(dir, ".lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		l.dirFD.Close()
		return nil, fmt.Errorf("%w: open lock file: %v", ErrInvalidArg, err)
	}
	if err := unix.Flock(int(lockFD.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFD.Close()
		l.dirFD.Close()
		return nil, fmt.Errorf("%w: directory %s already has an open logger: %v", ErrInvalidArg, dir, err)
	}
	l.lockFD = lockFD

	lfm, err := logfilemgr.Init(dir)
	if err != nil {
		l.closeHandles()
		return nil, err
	}
	l.lfm = lfm

	if lfm.NumLogFiles() == 0 {
		if !creating {
			l.closeHandles()
			return nil, fmt.Errorf("%w: no log files in %s", ErrInvalidArg, dir)
		}
		if err := l.openNextLogfile(); err != nil {
			l.closeHandles()
			return nil, err
		}
	} else {
		if err := l.resumeFromExisting(); err != nil {
			l.closeHandles()
			return nil, err
		}
	}

	l.isOpen.Store(true)
	return l, nil
}

// resumeFromExisting scans every older log file to record its highest LSN
// in the log file manager, then opens the newest tracked log file for
// append and recovers the LSN watermarks by scanning it forward. It does
// not replay any record semantics — that is the recovery engine's job, out
// of scope here — it only needs the per-file LSN ranges and where LSN
// allocation must resume.
func (l *Logger) resumeFromExisting() error {
	newest, ok := l.lfm.GetNewest()
	if !ok {
		return fmt.Errorf("%w: log file manager reports files but no newest entry", ErrInvalidArg)
	}

	entries := l.lfm.Entries()
	for _, e := range entries[:len(entries)-1] {
		f, err := os.Open(filepath.Join(l.dir, logfilemgr.FileName(e.Index)))
		if err != nil {
			return ioError("open existing log file", err)
		}
		maxLSN, _, err := scanLastLSN(f)
		f.Close()
		if err != nil {
			return err
		}
		l.lfm.UpdateLastLSN(e.Index, maxLSN)
	}

	path := filepath.Join(l.dir, logfilemgr.FileName(newest.Index))
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return ioError("open existing log file", err)
	}

	lastLSN, size, err := scanLastLSN(f)
	if err != nil {
		f.Close()
		return err
	}

	l.curFile = f
	l.curIndex = newest.Index
	l.curFileSize = size
	l.nextLSN = lastLSN + 1
	l.writtenLSN = lastLSN
	l.fsyncedLSN = lastLSN
	l.lastLSN = lastLSN
	l.lfm.UpdateLastLSN(newest.Index, lastLSN)
	return nil
}

// scanLastLSN reads a log file's header and then every frame to find the
// highest LSN written, returning that LSN and the file's total size.
func scanLastLSN(f *os.File) (types.LSN, int64, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return 0, 0, ioError("seek to header", err)
	}
	if err := readAndCheckHeader(f); err != nil {
		return 0, 0, err
	}

	var last types.LSN
	offset := int64(logHeaderLen)
	for {
		rec, n, err := record.ReadFrameForward(f)
		if err != nil {
			break // trailing partial frame, or clean EOF: stop here
		}
		last = rec.LSN
		offset += int64(n)
	}
	// The final (failed) read attempt may have consumed bytes past the
	// last valid frame; reposition the file so subsequent appends are
	// written immediately after the last good frame, not wherever the
	// failed read attempt left the cursor.
	if _, err := f.Seek(offset, 0); err != nil {
		return 0, 0, ioError("seek past last valid frame", err)
	}
	return last, offset, nil
}

func (l *Logger) closeHandles() {
	if l.curFile != nil {
		l.curFile.Close()
	}
	if l.lockFD != nil {
		unix.Flock(int(l.lockFD.Fd()), unix.LOCK_UN)
		l.lockFD.Close()
	}
	if l.dirFD != nil {
		l.dirFD.Close()
	}
}

// IsOpen reports whether the logger has an active log file.
func (l *Logger) IsOpen() bool {
	return l.isOpen.Load()
}

// IsPanicked reports whether a prior write-path failure has made the
// logger permanently unusable.
func (l *Logger) IsPanicked() bool {
	return l.panicked.Load()
}

func (l *Logger) checkUsable() error {
	if l.panicked.Load() {
		if err, ok := l.panicErr.Load().(error); ok && err != nil {
			return fmt.Errorf("%w: %v", ErrPanicked, err)
		}
		return ErrPanicked
	}
	return nil
}

// Panic records an unrecoverable write-path failure. From then on Append,
// Fsync, FsyncIfLSNNotFsynced, Shutdown, Restart, MaybeTrimLog and
// LogArchive fail with an error that wraps ErrPanicked and carries err's
// message; the other methods do not check for a panic.
func (l *Logger) Panic(err error) {
	if l.panicked.CompareAndSwap(false, true) {
		l.panicErr.Store(err)
	}
}

// LastLSN returns the highest LSN assigned so far.
func (l *Logger) LastLSN() types.LSN {
	l.inputMu.Lock()
	defer l.inputMu.Unlock()
	if l.nextLSN == 0 {
		return 0
	}
	return l.nextLSN - 1
}

// OldestLivingXid returns the smallest live transaction id, if any are
// live, delegating to the live-transaction registry.
func (l *Logger) OldestLivingXid() (types.TxnID, bool) {
	return l.txns.OldestLivingID()
}

// RegisterTxn/UnregisterTxn expose the live-transaction registry to the
// external transaction manager (see internal/collab).
func (l *Logger) RegisterTxn(id types.TxnID, handle any) {
	l.txns.Insert(id, handle)
}

func (l *Logger) UnregisterTxn(id types.TxnID) bool {
	return l.txns.Remove(id)
}

// SetRemoveFinalizeCallback registers a callback invoked after a log file
// is deleted by trim, naming the index of the file that was removed.
// Matches toku_logger_set_remove_finalize_callback.
func (l *Logger) SetRemoveFinalizeCallback(cb func(logFileIndex uint64)) {
	l.removeFinalizeMu.Lock()
	defer l.removeFinalizeMu.Unlock()
	l.removeFinalize = cb
}

func (l *Logger) callRemoveFinalizeCallback(logFileIndex uint64) {
	l.removeFinalizeMu.Lock()
	cb := l.removeFinalize
	l.removeFinalizeMu.Unlock()
	if cb != nil {
		cb(logFileIndex)
	}
}

// Status returns a snapshot of the logger's observability counters.
func (l *Logger) Status() Status {
	return Status{
		InputLockCtr:           l.inputLockCtr.Load(),
		OutputConditionLockCtr: l.outputLockCtr.Load(),
		SwapCtr:                l.swapCtr.Load(),
		NumLogFiles:            l.lfm.NumLogFiles(),
		LastLSN:                l.LastLSN(),
		FsyncedLSN:             l.snapshotFsyncedLSN(),
	}
}

func (l *Logger) snapshotFsyncedLSN() types.LSN {
	l.outputMu.Lock()
	defer l.outputMu.Unlock()
	return l.fsyncedLSN
}

// GetLgMax returns the current log-file rollover threshold.
func (l *Logger) GetLgMax() int64 {
	return l.opts.LgMax
}

// SetLgMax changes the rollover threshold. Matches toku_logger_set_lg_max:
// only valid before the logger is open.
func (l *Logger) SetLgMax(n int64) error {
	if l.IsOpen() {
		return fmt.Errorf("%w: SetLgMax after open", ErrInvalidArg)
	}
	l.opts.LgMax = n
	return nil
}

// SetLgBsize changes the input-buffer flush threshold. Matches
// toku_logger_set_lg_bsize: only valid before the logger is open.
func (l *Logger) SetLgBsize(n int) error {
	if l.IsOpen() {
		return fmt.Errorf("%w: SetLgBsize after open", ErrInvalidArg)
	}
	l.opts.LgBsize = n
	return nil
}
