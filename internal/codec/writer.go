package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"waldb/internal/checksum"
	"waldb/pkg/types"
)

// Writer encodes primitives to a byte stream, accumulating a running X1764
// checksum and byte count as it goes, the write-side mirror of [Reader]. A
// Writer is single-use and not safe for concurrent use.
type Writer struct {
	w       io.Writer
	sum     *checksum.X1764
	n       int64
	scratch [8]byte
}

// NewWriter wraps w for primitive encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, sum: checksum.New()}
}

// Checksum returns the running X1764 digest over everything written so far.
func (wr *Writer) Checksum() uint64 {
	return wr.sum.Sum64()
}

// BytesWritten returns the total number of bytes emitted so far.
func (wr *Writer) BytesWritten() int64 {
	return wr.n
}

func (wr *Writer) writeFull(buf []byte) error {
	n, err := wr.w.Write(buf)
	wr.n += int64(n)
	wr.sum.Add(buf[:n])
	if err != nil {
		return fmt.Errorf("write %d bytes: %w", len(buf), err)
	}
	return nil
}

// WriteUint8 encodes a single byte.
func (wr *Writer) WriteUint8(v uint8) error {
	buf := wr.scratch[:1]
	buf[0] = v
	return wr.writeFull(buf)
}

// WriteUint32 encodes a big-endian uint32.
func (wr *Writer) WriteUint32(v uint32) error {
	buf := wr.scratch[:4]
	binary.BigEndian.PutUint32(buf, v)
	return wr.writeFull(buf)
}

// WriteUint64 encodes a big-endian uint64.
func (wr *Writer) WriteUint64(v uint64) error {
	buf := wr.scratch[:8]
	binary.BigEndian.PutUint64(buf, v)
	return wr.writeFull(buf)
}

// WriteLSN encodes an LSN (big-endian uint64).
func (wr *Writer) WriteLSN(v types.LSN) error {
	return wr.WriteUint64(uint64(v))
}

// WriteTxnID encodes a TxnID (big-endian uint64).
func (wr *Writer) WriteTxnID(v types.TxnID) error {
	return wr.WriteUint64(uint64(v))
}

// WriteFileNum encodes a FileNum (big-endian uint32).
func (wr *Writer) WriteFileNum(v types.FileNum) error {
	return wr.WriteUint32(uint32(v))
}

// WriteBlockNum encodes a BlockNum (big-endian uint64).
func (wr *Writer) WriteBlockNum(v types.BlockNum) error {
	return wr.WriteUint64(uint64(v))
}

// WriteBytestring encodes a length-prefixed byte string: a uint32 length
// followed by the bytes themselves.
func (wr *Writer) WriteBytestring(b []byte) error {
	if err := wr.WriteUint32(uint32(len(b))); err != nil {
		return err
	}
	return wr.writeFull(b)
}

// WriteFileNums encodes a vector of FILENUMs: a uint32 count followed by
// that many big-endian uint32 FileNum values.
func (wr *Writer) WriteFileNums(nums []types.FileNum) error {
	if err := wr.WriteUint32(uint32(len(nums))); err != nil {
		return err
	}
	for _, v := range nums {
		if err := wr.WriteFileNum(v); err != nil {
			return err
		}
	}
	return nil
}
