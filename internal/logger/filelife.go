package logger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"waldb/internal/logfilemgr"
)

// writeHeader writes the 12-byte log file header: the magic "tokulogg"
// followed by the format version, both stored in network/big-endian byte
// order regardless of how record fields themselves are encoded — this
// matches the original's toku_read_logmagic, which always reads the
// version with toku_ntohl.
func writeHeader(f *os.File) error {
	var buf [logHeaderLen]byte
	copy(buf[:logMagicLen], logMagic)
	binary.BigEndian.PutUint32(buf[logMagicLen:], logVersion)
	if _, err := f.Write(buf[:]); err != nil {
		return ioError("write log header", err)
	}
	return nil
}

// readAndCheckHeader reads and validates the 12-byte header at the current
// file position (which must be 0).
func readAndCheckHeader(f *os.File) error {
	var buf [logHeaderLen]byte
	if _, err := readFull(f, buf[:]); err != nil {
		return fmt.Errorf("%w: read log header: %v", ErrInvalidArg, err)
	}
	if !bytes.Equal(buf[:logMagicLen], []byte(logMagic)) {
		return fmt.Errorf("%w: bad log file magic", ErrBadFormat)
	}
	version := binary.BigEndian.Uint32(buf[logMagicLen:])
	if version != logVersion {
		return fmt.Errorf("%w: unsupported log file version %d", ErrBadFormat, version)
	}
	return nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// fsyncLogDir fsyncs the log directory's own inode, making a just-created
// file's directory entry durable independent of the file's own data fsync.
func (l *Logger) fsyncLogDir() error {
	if err := unix.Fsync(int(l.dirFD.Fd())); err != nil {
		return ioError("fsync log directory", err)
	}
	return nil
}

// openNextLogfile creates the next log file in sequence: O_CREAT|O_EXCL so
// two loggers can never race onto the same index, fsyncs the directory
// entry before anything else so the file's existence is durable even
// before a single byte of its own content has been fsynced (matching
// open_logfile's ordering — see SPEC_FULL.md §5), then writes the header.
func (l *Logger) openNextLogfile() error {
	index := l.lfm.NextUnusedIndex()
	path := filepath.Join(l.dir, logfilemgr.FileName(index))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return ioError("create log file", err)
	}

	if err := l.fsyncLogDir(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	if err := writeHeader(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	l.lfm.Add(index, 0)
	l.curFile = f
	l.curIndex = index
	l.curFileSize = int64(logHeaderLen)
	return nil
}

// closeAndOpenLogfile finishes the current log file (fsyncs it, records
// its final LSN watermark, closes it) and opens the next one. Called from
// writeOutbufToLogfileLocked when the pending write would push the active
// file past LgMax. Caller must hold output permission.
func (l *Logger) closeAndOpenLogfile() error {
	if err := l.curFile.Sync(); err != nil {
		return ioError("fsync rolling log file", err)
	}
	l.lfm.UpdateLastLSN(l.curIndex, l.writtenLSN)
	if err := l.curFile.Close(); err != nil {
		return ioError("close rolling log file", err)
	}
	return l.openNextLogfile()
}
