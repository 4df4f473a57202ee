package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"waldb/internal/checksum"
	"waldb/internal/codec"
)

// On disk, every record is framed as:
//
//	cmd_byte | record_body | crc32(4 bytes) | length_u32(4 bytes)
//
// crc32 is the folded X1764 digest of cmd_byte|record_body. length_u32 is
// the total frame length (cmd byte + body + crc32 + itself), written again
// at the tail so a reader positioned at the end of the file can step
// backwards one frame at a time without having scanned forward first.

// WriteFrame encodes rec and writes its full on-disk frame to w, returning
// the number of bytes written.
func WriteFrame(w io.Writer, rec *Record) (int, error) {
	var body bytes.Buffer
	bw := codec.NewWriter(&body)
	if err := rec.encodeBody(bw); err != nil {
		return 0, fmt.Errorf("record: encode %v: %w", rec.Type, err)
	}

	sum := checksum.New()
	sum.AddByte(byte(rec.Type))
	sum.Add(body.Bytes())

	frameLen := 1 + body.Len() + 4 + 4

	var footer [8]byte
	binary.BigEndian.PutUint32(footer[0:4], sum.Sum32())
	binary.BigEndian.PutUint32(footer[4:8], uint32(frameLen))

	var out bytes.Buffer
	out.Grow(frameLen)
	out.WriteByte(byte(rec.Type))
	out.Write(body.Bytes())
	out.Write(footer[:])

	n, err := w.Write(out.Bytes())
	if err != nil {
		return n, fmt.Errorf("record: write frame: %w", err)
	}
	if n != frameLen {
		return n, fmt.Errorf("record: short write: wrote %d of %d bytes", n, frameLen)
	}
	return n, nil
}

// ReadFrameForward decodes one frame from r, verifying its checksum and
// length footer, and returns the decoded record plus the frame's total
// on-disk length.
func ReadFrameForward(r io.Reader) (*Record, int, error) {
	var body bytes.Buffer
	tee := io.TeeReader(r, &body)

	cr := codec.NewReader(tee)
	cmdByte, err := cr.ReadUint8()
	if err != nil {
		return nil, 0, err
	}

	rec, err := decodeBody(cr, Type(cmdByte))
	if err != nil {
		return nil, 0, fmt.Errorf("record: decode %q: %w", cmdByte, err)
	}

	fr := codec.NewReader(r)
	gotCRC, err := fr.ReadUint32()
	if err != nil {
		return nil, 0, fmt.Errorf("record: read crc32 footer: %w", err)
	}
	gotLen, err := fr.ReadUint32()
	if err != nil {
		return nil, 0, fmt.Errorf("record: read length footer: %w", err)
	}

	// body captured everything read through tee, the cmd byte included.
	sum := checksum.New()
	sum.Add(body.Bytes())
	if sum.Sum32() != gotCRC {
		return nil, 0, fmt.Errorf("record: checksum mismatch at lsn %v: %w", rec.LSN, codec.ErrBadFormat)
	}

	frameLen := body.Len() + 4 + 4
	if int(gotLen) != frameLen {
		return nil, 0, fmt.Errorf("record: length footer %d does not match frame length %d: %w", gotLen, frameLen, codec.ErrBadFormat)
	}

	return rec, frameLen, nil
}
