// Package types provides the primitive identifiers shared by every layer of
// the write-ahead logger: log sequence numbers, transaction identifiers, and
// the on-disk identifiers (FILENUM, BLOCKNUM) that log record payloads
// reference.
package types

import "fmt"

// LSN (Log Sequence Number) identifies the position of one log record.
// LSNs are strictly increasing across the entire logger lifetime; the zero
// value means "none".
type LSN uint64

// InvalidLSN is the reserved LSN meaning "no LSN".
const InvalidLSN LSN = 0

// String implements fmt.Stringer.
func (l LSN) String() string {
	return fmt.Sprintf("lsn=%d", uint64(l))
}

// TxnID identifies a transaction. Transaction identifiers are assigned by
// the (external) transaction manager; the logger only ever compares them.
type TxnID uint64

// InvalidTxnID is the reserved TxnID meaning "no transaction" (used for
// logger-internal records, such as checkpoints, that aren't attributed to
// any one transaction).
const InvalidTxnID TxnID = 0

// MaxTxnID is the largest representable TxnID.
const MaxTxnID TxnID = ^TxnID(0)

// String implements fmt.Stringer.
func (t TxnID) String() string {
	return fmt.Sprintf("txnid=%d", uint64(t))
}

// CompareTxnID is a 3-way comparator over TxnID, used by the live-transaction
// index to maintain its ordering without relying on subtraction (which would
// wrap around near the uint64 boundary).
func CompareTxnID(a, b TxnID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FileNum identifies a stored table file, as referenced from log record
// payloads (fcreate/fdelete/fopen). The logger treats it as an opaque
// 32-bit value; it never interprets the bytes.
type FileNum uint32

// InvalidFileNum is the reserved FileNum meaning "no file".
const InvalidFileNum FileNum = 0xFFFFFFFF

// BlockNum identifies a block within a table file, as referenced from log
// record payloads. The logger treats it as an opaque 64-bit value.
type BlockNum uint64

// InvalidBlockNum is the reserved BlockNum meaning "no block".
const InvalidBlockNum BlockNum = ^BlockNum(0)
