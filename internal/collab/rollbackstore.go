// Package collab provides minimal stand-ins for the logger's external
// collaborators — the rollback store and the transaction manager — used
// only to exercise the logger's public contract from tests and from
// cmd/walctl's repl subcommand. Neither implementation is meant to be a real
// rollback store or transaction manager; both exist solely so something
// concrete can call Logger.OpenRollback/CloseRollback and
// Logger.RegisterTxn/UnregisterTxn the way a full storage engine would.
package collab

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"waldb/pkg/types"
)

const (
	rollbackHeaderSize = 16                             // magic(8) + version(4) + numSegments(4)
	rollbackMagic      = uint64(0x7761_6C64_6252_4253) // "waldbRBS" in ASCII, packed
	rollbackVersion    = uint32(1)
)

// RollbackStore is the opaque handle the logger's OpenRollback/
// CloseRollback pass through unexamined. It stores one undo segment per
// BlockNum the storage engine is about to modify, so a transaction's
// before-image can be recovered without needing to replay the whole log.
type RollbackStore struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	numSegments uint32
	offsets     map[types.BlockNum]int64
}

// OpenRollbackStore creates or opens the rollback store file at path.
func OpenRollbackStore(path string) (*RollbackStore, error) {
	rs := &RollbackStore{path: path, offsets: make(map[types.BlockNum]int64)}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("collab: create rollback store: %w", err)
		}
		rs.file = f
		if err := rs.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return rs, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("collab: open rollback store: %w", err)
	}
	rs.file = f
	if err := rs.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return rs, nil
}

func (rs *RollbackStore) writeHeader() error {
	header := make([]byte, rollbackHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], rollbackMagic)
	binary.LittleEndian.PutUint32(header[8:12], rollbackVersion)
	binary.LittleEndian.PutUint32(header[12:16], rs.numSegments)
	if _, err := rs.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("collab: write rollback store header: %w", err)
	}
	return rs.file.Sync()
}

func (rs *RollbackStore) readHeader() error {
	header := make([]byte, rollbackHeaderSize)
	n, err := rs.file.ReadAt(header, 0)
	if err != nil || n < rollbackHeaderSize {
		return fmt.Errorf("collab: read rollback store header: %w", err)
	}
	magic := binary.LittleEndian.Uint64(header[0:8])
	if magic != rollbackMagic {
		return fmt.Errorf("collab: bad rollback store magic")
	}
	version := binary.LittleEndian.Uint32(header[8:12])
	if version != rollbackVersion {
		return fmt.Errorf("collab: unsupported rollback store version %d", version)
	}
	rs.numSegments = binary.LittleEndian.Uint32(header[12:16])
	return nil
}

// PutBeforeImage records the before-image for blk, appending it to the
// store. It overwrites any previously recorded image for the same block.
func (rs *RollbackStore) PutBeforeImage(blk types.BlockNum, image []byte) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	info, err := rs.file.Stat()
	if err != nil {
		return fmt.Errorf("collab: stat rollback store: %w", err)
	}
	offset := info.Size()

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(image)))
	if _, err := rs.file.WriteAt(lenBuf, offset); err != nil {
		return fmt.Errorf("collab: write before-image length: %w", err)
	}
	if _, err := rs.file.WriteAt(image, offset+4); err != nil {
		return fmt.Errorf("collab: write before-image: %w", err)
	}

	rs.offsets[blk] = offset
	rs.numSegments++
	return rs.writeHeader()
}

// GetBeforeImage returns the most recently recorded before-image for blk.
func (rs *RollbackStore) GetBeforeImage(blk types.BlockNum) ([]byte, bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	offset, ok := rs.offsets[blk]
	if !ok {
		return nil, false, nil
	}

	lenBuf := make([]byte, 4)
	if _, err := rs.file.ReadAt(lenBuf, offset); err != nil {
		return nil, false, fmt.Errorf("collab: read before-image length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf)
	image := make([]byte, n)
	if _, err := rs.file.ReadAt(image, offset+4); err != nil {
		return nil, false, fmt.Errorf("collab: read before-image: %w", err)
	}
	return image, true, nil
}

// Empty reports whether the store has no recorded segments left, the
// precondition the logger's CloseRollback checks before releasing the
// handle.
func (rs *RollbackStore) Empty() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.offsets) == 0
}

// Clear discards all recorded before-images without touching the
// underlying file's allocated space, used once their transactions have all
// committed or aborted.
func (rs *RollbackStore) Clear() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.offsets = make(map[types.BlockNum]int64)
	rs.numSegments = 0
}

// Close syncs and closes the underlying file.
func (rs *RollbackStore) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.file.Sync(); err != nil {
		return fmt.Errorf("collab: sync rollback store: %w", err)
	}
	return rs.file.Close()
}
