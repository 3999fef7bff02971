package flashfat

import "encoding/binary"

// Header field offsets within the first HeaderSize bytes of each
// superblock copy, grounded on fat16/vfs.c's vfs_header_t layout.
const (
	hdrOffMagic    = 0
	hdrOffCRC32    = 4
	hdrOffSequence = 8
	hdrOffActive   = 16
	// bytes [17:HeaderSize) are reserved padding, zeroed; like the rest of
	// the header they lie outside the checksum, which covers only the
	// payload that follows the header.
)

// headerView wraps the fixed HeaderSize-byte window of a superblock copy.
type headerView struct {
	data []byte // len == HeaderSize
}

func newHeaderView(b []byte) headerView {
	if len(b) < HeaderSize {
		panic("flashfat: header window too small")
	}
	return headerView{data: b[:HeaderSize:HeaderSize]}
}

func (h headerView) magic() uint32    { return binary.LittleEndian.Uint32(h.data[hdrOffMagic:]) }
func (h headerView) crc() uint32      { return binary.LittleEndian.Uint32(h.data[hdrOffCRC32:]) }
func (h headerView) sequence() uint64 { return binary.LittleEndian.Uint64(h.data[hdrOffSequence:]) }
func (h headerView) active() bool     { return h.data[hdrOffActive] != 0 }

func (h headerView) setMagic(v uint32)      { binary.LittleEndian.PutUint32(h.data[hdrOffMagic:], v) }
func (h headerView) setCRC(v uint32)        { binary.LittleEndian.PutUint32(h.data[hdrOffCRC32:], v) }
func (h headerView) setSequence(v uint64)   { binary.LittleEndian.PutUint64(h.data[hdrOffSequence:], v) }
func (h headerView) setActive(v bool) {
	if v {
		h.data[hdrOffActive] = 1
	} else {
		h.data[hdrOffActive] = 0
	}
}

// valid reports whether the header's magic is correct and its stored CRC32
// matches a freshly computed checksum over the payload that follows it.
func (h headerView) valid(payload []byte) bool {
	return h.magic() == headerMagic && h.crc() == crc32Checksum(payload)
}
