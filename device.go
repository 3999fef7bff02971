package flashfat

import "errors"

// BlockDevice is the storage abstraction flashfat mounts onto, grounded on
// the teacher's BlockDevice interface in fat.go: each call starts at a
// block index, no implicit caching. The device holds 2*ImageSize bytes (the
// A/B superblock pair); Mount reads all of it starting at block 0, and
// Flush writes and reads back one ImageSize copy starting at that copy's
// first block.
type BlockDevice interface {
	ReadBlocks(dst []byte, startBlock int64) (int, error)
	WriteBlocks(data []byte, startBlock int64) (int, error)
	EraseBlocks(startBlock, numBlocks int64) error
}

// MemDevice is an in-memory BlockDevice backed by a byte slice, grounded on
// the teacher's BlockByteSlice test fake (vfs_test.go). It is exported
// because an in-memory-only flash emulation is a legitimate production use
// case for this module, not merely a test helper.
type MemDevice struct {
	buf       []byte
	blockSize int64
}

// NewMemDevice allocates a MemDevice sized for two superblock copies.
func NewMemDevice() *MemDevice {
	return &MemDevice{
		buf:       make([]byte, 2*ImageSize),
		blockSize: SectorSize,
	}
}

func (m *MemDevice) BlockSize() int { return int(m.blockSize) }
func (m *MemDevice) Size() int64    { return int64(len(m.buf)) }

func (m *MemDevice) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	if startBlock < 0 {
		return 0, errors.New("flashfat: negative startBlock")
	}
	off := startBlock * m.blockSize
	end := off + int64(len(dst))
	if off > int64(len(m.buf)) || end > int64(len(m.buf)) {
		return 0, errors.New("flashfat: read past end of device")
	}
	return copy(dst, m.buf[off:end]), nil
}

func (m *MemDevice) WriteBlocks(data []byte, startBlock int64) (int, error) {
	if startBlock < 0 {
		return 0, errors.New("flashfat: negative startBlock")
	}
	off := startBlock * m.blockSize
	end := off + int64(len(data))
	if off > int64(len(m.buf)) || end > int64(len(m.buf)) {
		return 0, errors.New("flashfat: write past end of device")
	}
	return copy(m.buf[off:end], data), nil
}

func (m *MemDevice) EraseBlocks(startBlock, numBlocks int64) error {
	if startBlock < 0 || numBlocks <= 0 {
		return errors.New("flashfat: invalid erase range")
	}
	off := startBlock * m.blockSize
	end := off + numBlocks*m.blockSize
	if end > int64(len(m.buf)) {
		return errors.New("flashfat: erase past end of device")
	}
	clear(m.buf[off:end])
	return nil
}
