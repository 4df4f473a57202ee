package logger

import (
	"errors"
	"fmt"

	"waldb/internal/codec"
)

// The error taxonomy mirrors the original logger's five-way classification:
// a caller mistake, a framing problem detected while reading back a log
// file, an I/O failure, or a failed allocation. ErrTruncated/ErrBadFormat
// are re-exported from internal/codec so callers can errors.Is against one
// taxonomy regardless of which package detected the problem.
var (
	// ErrInvalidArg is returned for a caller mistake: a bad argument, a call
	// made against an already-open/not-yet-open logger, or (through
	// ErrPanicked, which wraps it) a call made against a panicked logger.
	ErrInvalidArg = errors.New("logger: invalid argument")

	// ErrTruncated and ErrBadFormat are the codec package's framing errors,
	// re-exported here.
	ErrTruncated = codec.ErrTruncated
	ErrBadFormat = codec.ErrBadFormat

	// ErrOutOfMemory is returned when a buffer grow would exceed the
	// logger's internal size ceiling.
	ErrOutOfMemory = errors.New("logger: out of memory")

	// ErrPanicked is returned by the append, fsync, shutdown, restart, trim
	// and archive calls of a logger that has recorded a prior write-path I/O
	// failure (see Logger.Panic). It wraps ErrInvalidArg. Once panicked, a
	// logger never recovers; the caller must discard it.
	ErrPanicked = fmt.Errorf("logger: panicked: %w", ErrInvalidArg)
)

// ioError wraps an I/O failure from the filesystem, classified like the
// original's errno-carrying IO error kind.
func ioError(op string, err error) error {
	return fmt.Errorf("logger: io error during %s: %w", op, err)
}
