// Package codec implements the byte-granular primitives the write-ahead log
// uses to encode and decode record fields: fixed-width big-endian integers,
// length-prefixed byte strings, and vectors of FILENUMs, each folded into a
// running X1764 checksum as it is read or written. This mirrors the
// toku_fread_u_int8_t/u_int32_t/u_int64_t/LSN/BLOCKNUM/FILENUM/TXNID/
// BYTESTRING/FILENUMS family: every primitive both decodes a value and
// extends the checksum that the record's trailing crc32 field is checked
// against.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"waldb/internal/checksum"
	"waldb/pkg/types"
)

// Reader decodes primitives from a byte stream, accumulating a running
// X1764 checksum and a byte count as it goes. A Reader is single-use and
// not safe for concurrent use.
type Reader struct {
	r    io.Reader
	sum  *checksum.X1764
	n    int64
	scratch [8]byte
}

// NewReader wraps r for primitive decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, sum: checksum.New()}
}

// Checksum returns the running X1764 digest over everything read so far.
func (rd *Reader) Checksum() uint64 {
	return rd.sum.Sum64()
}

// BytesRead returns the total number of bytes consumed so far.
func (rd *Reader) BytesRead() int64 {
	return rd.n
}

func (rd *Reader) readFull(buf []byte) error {
	n, err := io.ReadFull(rd.r, buf)
	rd.n += int64(n)
	rd.sum.Add(buf[:n])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("read %d bytes: %w", len(buf), ErrTruncated)
		}
		return err
	}
	return nil
}

// ReadUint8 decodes a single byte.
func (rd *Reader) ReadUint8() (uint8, error) {
	buf := rd.scratch[:1]
	if err := rd.readFull(buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint32 decodes a big-endian uint32.
func (rd *Reader) ReadUint32() (uint32, error) {
	buf := rd.scratch[:4]
	if err := rd.readFull(buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// ReadUint64 decodes a big-endian uint64.
func (rd *Reader) ReadUint64() (uint64, error) {
	buf := rd.scratch[:8]
	if err := rd.readFull(buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// ReadLSN decodes an LSN (big-endian uint64).
func (rd *Reader) ReadLSN() (types.LSN, error) {
	v, err := rd.ReadUint64()
	return types.LSN(v), err
}

// ReadTxnID decodes a TxnID (big-endian uint64).
func (rd *Reader) ReadTxnID() (types.TxnID, error) {
	v, err := rd.ReadUint64()
	return types.TxnID(v), err
}

// ReadFileNum decodes a FileNum (big-endian uint32).
func (rd *Reader) ReadFileNum() (types.FileNum, error) {
	v, err := rd.ReadUint32()
	return types.FileNum(v), err
}

// ReadBlockNum decodes a BlockNum (big-endian uint64).
func (rd *Reader) ReadBlockNum() (types.BlockNum, error) {
	v, err := rd.ReadUint64()
	return types.BlockNum(v), err
}

// ReadBytestring decodes a length-prefixed byte string: a uint32 length
// followed by that many bytes.
func (rd *Reader) ReadBytestring() ([]byte, error) {
	n, err := rd.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxBytestringLen {
		return nil, fmt.Errorf("bytestring length %d exceeds limit: %w", n, ErrBadFormat)
	}
	buf := make([]byte, n)
	if err := rd.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFileNums decodes a vector of FILENUMs: a uint32 count followed by
// that many big-endian uint32 FileNum values.
func (rd *Reader) ReadFileNums() ([]types.FileNum, error) {
	n, err := rd.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxFileNumsCount {
		return nil, fmt.Errorf("filenums count %d exceeds limit: %w", n, ErrBadFormat)
	}
	out := make([]types.FileNum, n)
	for i := range out {
		v, err := rd.ReadFileNum()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// maxBytestringLen and maxFileNumsCount bound a single record's embedded
// byte string/vector so a corrupt length prefix cannot force an
// out-of-memory allocation attempt before the surrounding crc32 check has a
// chance to reject the record.
const (
	maxBytestringLen = 1 << 28
	maxFileNumsCount = 1 << 20
)
