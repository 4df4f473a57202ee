package logger

import (
	"bytes"
	"fmt"

	"waldb/internal/record"
	"waldb/pkg/types"
)

// Append assigns the next LSN, serializes rec, and copies it into the
// input buffer, making space first if the buffer is at its flush
// threshold. It returns the assigned LSN; the record is not guaranteed
// durable until Fsync(lsn) returns.
func (l *Logger) Append(rec *record.Record) (types.LSN, error) {
	if err := l.checkUsable(); err != nil {
		return 0, err
	}
	if !l.IsOpen() {
		return 0, fmt.Errorf("%w: append to closed logger", ErrInvalidArg)
	}

	l.lockInput()
	defer l.inputMu.Unlock()

	lsn := l.nextLSN
	l.nextLSN++
	rec.LSN = lsn
	l.lastLSN = lsn

	var body bytes.Buffer
	if _, err := record.WriteFrame(&body, rec); err != nil {
		return 0, fmt.Errorf("%w: serialize record: %v", ErrInvalidArg, err)
	}

	if err := l.makeSpaceInInbufLocked(body.Len()); err != nil {
		return 0, err
	}

	l.inbuf.append(body.Bytes())
	l.inbuf.maxLSN = lsn
	return lsn, nil
}

// makeSpaceInInbufLocked ensures the input buffer has room for n more
// bytes, flushing it to the output buffer and out to the log file first if
// it's already past the flush threshold. Caller holds inputMu on entry and
// must hold it again on return; this method may release and reacquire it
// in between, matching toku_logger_make_space_in_inbuf's release-input/
// grab-output/reacquire-input discipline (inputMu and outputMu are never
// held at the same instant; inputMu is briefly retaken while output
// permission is held, to swap the buffers).
func (l *Logger) makeSpaceInInbufLocked(n int) error {
	if l.inbuf.len()+n <= l.opts.LgBsize {
		return nil
	}

	l.inputMu.Unlock()
	err := l.swapAndWrite()
	l.lockInput()
	if err != nil {
		return err
	}

	if l.inbuf.len()+n > maxBufferSize {
		return fmt.Errorf("%w: record of %d bytes would exceed the %d byte buffer ceiling", ErrOutOfMemory, n, maxBufferSize)
	}
	return nil
}

// swapAndWrite grabs output permission, swaps the input and output
// buffers under a briefly-reacquired input lock, then writes the (now
// former-input) output buffer out to the log file. It does not fsync —
// callers that need durability call maybeFsync instead, which performs the
// same swap and additionally syncs.
func (l *Logger) swapAndWrite() error {
	if _, err := l.grabOutput(); err != nil {
		return err
	}
	defer l.releaseOutput()

	l.lockInput()
	if l.inbuf.len() > 0 {
		l.swapCtr.Add(1)
		l.inbuf, l.outbuf = l.outbuf, l.inbuf
		l.inbuf.reset()
	}
	l.inputMu.Unlock()

	if err := l.writeOutbufToLogfileLocked(); err != nil {
		l.Panic(err)
		return err
	}
	return nil
}

// writeOutbufToLogfileLocked writes the output buffer's contents to the
// active log file, rolling over first if the write would push the file
// past LgMax. Caller holds output permission, not inputMu.
func (l *Logger) writeOutbufToLogfileLocked() error {
	if l.outbuf.len() == 0 {
		return nil
	}
	maxLSN := l.outbuf.maxLSN

	if l.writeLogFiles.Load() {
		if l.curFileSize+int64(l.outbuf.len()) > l.opts.LgMax {
			if err := l.closeAndOpenLogfile(); err != nil {
				return err
			}
		}
		n, err := l.curFile.Write(l.outbuf.data)
		if err != nil {
			return ioError("write log buffer", err)
		}
		l.curFileSize += int64(n)
	}

	l.writtenLSN = maxLSN
	l.outbuf.reset()
	return nil
}

// Fsync ensures every record up to and including lsn is durable on disk,
// performing a swap-and-write-and-sync only if some other goroutine's
// group commit hasn't already covered lsn. Concurrent callers requesting
// overlapping LSN ranges share a single fsync.
func (l *Logger) Fsync(lsn types.LSN) error {
	return l.maybeFsync(lsn)
}

// FsyncIfLSNNotFsynced is an alias for Fsync kept to mirror the original
// API name callers (the rollback store, the checkpointer) expect.
func (l *Logger) FsyncIfLSNNotFsynced(lsn types.LSN) error {
	return l.maybeFsync(lsn)
}

func (l *Logger) maybeFsync(lsn types.LSN) error {
	if err := l.checkUsable(); err != nil {
		return err
	}
	if lsn == types.InvalidLSN {
		return nil
	}

	l.outputMu.Lock()
	alreadyDone := l.fsyncedLSN >= lsn
	l.outputMu.Unlock()
	if alreadyDone {
		return nil
	}

	fsyncedSnapshot, err := l.grabOutput()
	if err != nil {
		return err
	}
	if fsyncedSnapshot >= lsn {
		l.releaseOutput()
		return nil
	}

	l.lockInput()
	if l.inbuf.len() > 0 {
		l.swapCtr.Add(1)
		l.inbuf, l.outbuf = l.outbuf, l.inbuf
		l.inbuf.reset()
	}
	l.inputMu.Unlock()

	if err := l.writeOutbufToLogfileLocked(); err != nil {
		l.Panic(err)
		l.releaseOutput()
		return err
	}

	if l.writeLogFiles.Load() {
		if err := l.curFile.Sync(); err != nil {
			werr := ioError("fsync log file", err)
			l.Panic(werr)
			l.releaseOutput()
			return werr
		}
	}

	l.outputMu.Lock()
	if l.writtenLSN > l.fsyncedLSN {
		l.fsyncedLSN = l.writtenLSN
	}
	finalFsynced := l.fsyncedLSN
	l.outputMu.Unlock()

	l.lfm.UpdateLastLSN(l.curIndex, finalFsynced)
	l.releaseOutput()
	return nil
}

// grabOutput waits until output permission is available, claims it, and
// returns a snapshot of fsyncedLSN taken at the moment of claiming — the
// same snapshot-on-grab threading as the original's grab_output, used by
// callers to decide whether someone else's group commit already covered
// the LSN they care about.
func (l *Logger) grabOutput() (types.LSN, error) {
	l.outputMu.Lock()
	for !l.outputAvailable {
		l.outputLockCtr.Add(1)
		l.outputCond.Wait()
	}
	l.outputAvailable = false
	snapshot := l.fsyncedLSN
	l.outputMu.Unlock()
	return snapshot, nil
}

// releaseOutput returns output permission and wakes every goroutine
// waiting for it.
func (l *Logger) releaseOutput() {
	l.outputMu.Lock()
	l.outputAvailable = true
	l.outputCond.Broadcast()
	l.outputMu.Unlock()
}

func (l *Logger) lockInput() {
	l.inputMu.Lock()
	l.inputLockCtr.Add(1)
}
