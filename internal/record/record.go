// Package record defines the catalog of log record types the logger
// appends and the framing that wraps each one on disk. The catalog is
// deliberately small and declarative — one case per record type in
// [Record.encodeBody]/[decodeBody] — so that adding a new record type to
// the log format is a matter of adding one case, not touching the framing
// or checksum logic.
package record

import (
	"fmt"

	"waldb/internal/codec"
	"waldb/pkg/types"
)

// Type identifies a record's shape, stored as the frame's leading cmd byte.
type Type byte

// The record catalog. Transaction bracketing (Begin/Commit/Abort) and row
// mutations (Insert/Update/Delete) are attributed to a TxnID; file lifecycle
// records (FileCreate/FileDelete) carry a FileNum; Checkpoint brackets a
// checkpoint and carries the set of transactions live at that point, the
// detail the rollback store and recovery engine need to resume correctly;
// Comment is an operator/diagnostic marker with no replay semantics (used
// e.g. at clean shutdown, mirroring the teacher's recovery progress prints).
const (
	TypeBeginTxn        Type = 'b'
	TypeCommit          Type = 'c'
	TypeAbort           Type = 'a'
	TypeInsert          Type = 'i'
	TypeUpdate          Type = 'u'
	TypeDelete          Type = 'd'
	TypeFileCreate      Type = 'F'
	TypeFileDelete      Type = 'f'
	TypeCheckpointBegin Type = 'x'
	TypeCheckpointEnd   Type = 'X'
	TypeComment         Type = '#'
)

func (t Type) String() string {
	switch t {
	case TypeBeginTxn:
		return "begin"
	case TypeCommit:
		return "commit"
	case TypeAbort:
		return "abort"
	case TypeInsert:
		return "insert"
	case TypeUpdate:
		return "update"
	case TypeDelete:
		return "delete"
	case TypeFileCreate:
		return "filecreate"
	case TypeFileDelete:
		return "filedelete"
	case TypeCheckpointBegin:
		return "checkpoint_begin"
	case TypeCheckpointEnd:
		return "checkpoint_end"
	case TypeComment:
		return "comment"
	default:
		return fmt.Sprintf("unknown(%q)", byte(t))
	}
}

// Record is one decoded log entry. Not every field is meaningful for every
// Type; see the catalog comment above for which fields a given Type uses.
type Record struct {
	Type    Type
	LSN     types.LSN
	TxnID   types.TxnID
	FileNum types.FileNum
	Block   types.BlockNum
	Key     []byte
	Before  []byte
	After   []byte
	LiveTxn []types.TxnID
	Comment string
}

// encodeBody writes everything after the cmd byte: the LSN, then the fields
// specific to r.Type. Every record carries its LSN right after the cmd byte
// so a reader can report "truncated at LSN N" even for record types it
// fails to decode further.
func (r *Record) encodeBody(w *codec.Writer) error {
	if err := w.WriteLSN(r.LSN); err != nil {
		return err
	}
	switch r.Type {
	case TypeBeginTxn, TypeCommit, TypeAbort:
		return w.WriteTxnID(r.TxnID)
	case TypeInsert, TypeUpdate, TypeDelete:
		if err := w.WriteTxnID(r.TxnID); err != nil {
			return err
		}
		if err := w.WriteFileNum(r.FileNum); err != nil {
			return err
		}
		if err := w.WriteBlockNum(r.Block); err != nil {
			return err
		}
		if err := w.WriteBytestring(r.Key); err != nil {
			return err
		}
		if err := w.WriteBytestring(r.Before); err != nil {
			return err
		}
		return w.WriteBytestring(r.After)
	case TypeFileCreate, TypeFileDelete:
		return w.WriteFileNum(r.FileNum)
	case TypeCheckpointBegin, TypeCheckpointEnd:
		return w.WriteFileNums(txnsToFileNums(r.LiveTxn))
	case TypeComment:
		return w.WriteBytestring([]byte(r.Comment))
	default:
		return fmt.Errorf("record: unknown type %v", r.Type)
	}
}

// decodeBody is the mirror of encodeBody: it reads whatever fields belong
// to the already-known Type t.
func decodeBody(r *codec.Reader, t Type) (*Record, error) {
	lsn, err := r.ReadLSN()
	if err != nil {
		return nil, err
	}
	rec := &Record{Type: t, LSN: lsn}
	switch t {
	case TypeBeginTxn, TypeCommit, TypeAbort:
		rec.TxnID, err = r.ReadTxnID()
		return rec, err
	case TypeInsert, TypeUpdate, TypeDelete:
		if rec.TxnID, err = r.ReadTxnID(); err != nil {
			return nil, err
		}
		if rec.FileNum, err = r.ReadFileNum(); err != nil {
			return nil, err
		}
		if rec.Block, err = r.ReadBlockNum(); err != nil {
			return nil, err
		}
		if rec.Key, err = r.ReadBytestring(); err != nil {
			return nil, err
		}
		if rec.Before, err = r.ReadBytestring(); err != nil {
			return nil, err
		}
		rec.After, err = r.ReadBytestring()
		return rec, err
	case TypeFileCreate, TypeFileDelete:
		rec.FileNum, err = r.ReadFileNum()
		return rec, err
	case TypeCheckpointBegin, TypeCheckpointEnd:
		nums, err := r.ReadFileNums()
		if err != nil {
			return nil, err
		}
		rec.LiveTxn = fileNumsToTxns(nums)
		return rec, nil
	case TypeComment:
		c, err := r.ReadBytestring()
		if err != nil {
			return nil, err
		}
		rec.Comment = string(c)
		return rec, nil
	default:
		return nil, fmt.Errorf("record: %w: unknown type %q", codec.ErrBadFormat, byte(t))
	}
}

// txnsToFileNums/fileNumsToTxns let a checkpoint record reuse the FILENUMS
// vector codec for its live-transaction-id list rather than adding a
// dedicated TXNIDS wire type; both are length-prefixed uint64/uint32
// vectors over an opaque identifier, the same shape.
func txnsToFileNums(txns []types.TxnID) []types.FileNum {
	out := make([]types.FileNum, len(txns)*2)
	for i, id := range txns {
		out[2*i] = types.FileNum(uint64(id) >> 32)
		out[2*i+1] = types.FileNum(uint64(id))
	}
	return out
}

func fileNumsToTxns(nums []types.FileNum) []types.TxnID {
	out := make([]types.TxnID, 0, len(nums)/2)
	for i := 0; i+1 < len(nums); i += 2 {
		v := uint64(nums[i])<<32 | uint64(nums[i+1])
		out = append(out, types.TxnID(v))
	}
	return out
}

// BeginTxn, Commit, Abort, Insert, Update, Delete, FileCreate, FileDelete,
// CheckpointBegin, CheckpointEnd and Comment are convenience constructors
// matching the teacher's LogBegin/LogCommit/LogAbort/LogUpdate/LogInsert/
// LogDelete/LogCheckpoint helpers, adapted to this package's field names.

func BeginTxn(txn types.TxnID) *Record { return &Record{Type: TypeBeginTxn, TxnID: txn} }
func Commit(txn types.TxnID) *Record   { return &Record{Type: TypeCommit, TxnID: txn} }
func Abort(txn types.TxnID) *Record    { return &Record{Type: TypeAbort, TxnID: txn} }

func Insert(txn types.TxnID, fn types.FileNum, blk types.BlockNum, key, after []byte) *Record {
	return &Record{Type: TypeInsert, TxnID: txn, FileNum: fn, Block: blk, Key: key, After: after}
}

func Update(txn types.TxnID, fn types.FileNum, blk types.BlockNum, key, before, after []byte) *Record {
	return &Record{Type: TypeUpdate, TxnID: txn, FileNum: fn, Block: blk, Key: key, Before: before, After: after}
}

func Delete(txn types.TxnID, fn types.FileNum, blk types.BlockNum, key, before []byte) *Record {
	return &Record{Type: TypeDelete, TxnID: txn, FileNum: fn, Block: blk, Key: key, Before: before}
}

func FileCreate(fn types.FileNum) *Record { return &Record{Type: TypeFileCreate, FileNum: fn} }
func FileDelete(fn types.FileNum) *Record { return &Record{Type: TypeFileDelete, FileNum: fn} }

func CheckpointBegin(live []types.TxnID) *Record {
	return &Record{Type: TypeCheckpointBegin, LiveTxn: live}
}

func CheckpointEnd(live []types.TxnID) *Record {
	return &Record{Type: TypeCheckpointEnd, LiveTxn: live}
}

func Comment(text string) *Record { return &Record{Type: TypeComment, Comment: text} }
