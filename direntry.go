package flashfat

import "encoding/binary"

// Directory entry field offsets, grounded on the teacher's dirSector typed
// view in sectors.go and on fat16/vfs.c's dirent_t layout (32 bytes: an
// 11-byte fixed name, an attribute byte, reserved padding, packed
// time/date, first cluster, and size).
const (
	deOffName         = 0
	deNameLen         = MaxNameLen
	deOffAttr         = 11
	deOffReserved     = 12
	deReservedLen     = 10
	deOffTime         = 22
	deOffDate         = 24
	deOffFirstCluster = 26
	deOffSize         = 28
)

// dirEntryView wraps one fixed 32-byte directory slot, whether it lives in
// the flat root table or inside a sub-directory cluster.
type dirEntryView struct {
	data []byte // len == DirEntrySize
}

func newDirEntryView(b []byte) dirEntryView {
	if len(b) < DirEntrySize {
		panic("flashfat: directory entry window too small")
	}
	return dirEntryView{data: b[:DirEntrySize:DirEntrySize]}
}

func (v dirEntryView) name() [MaxNameLen]byte {
	var n [MaxNameLen]byte
	copy(n[:], v.data[deOffName:deOffName+deNameLen])
	return n
}

func (v dirEntryView) setName(n [MaxNameLen]byte) {
	copy(v.data[deOffName:deOffName+deNameLen], n[:])
}

func (v dirEntryView) attr() byte     { return v.data[deOffAttr] }
func (v dirEntryView) setAttr(a byte) { v.data[deOffAttr] = a }

func (v dirEntryView) isDir() bool  { return v.attr()&attrDirectory != 0 }
func (v dirEntryView) isFree() bool { return v.data[deOffName] == nameFree }
func (v dirEntryView) isDeleted() bool {
	return v.data[deOffName] == nameDeleted
}
func (v dirEntryView) isLive() bool { return !v.isFree() && !v.isDeleted() }

func (v dirEntryView) firstCluster() uint16 {
	return binary.LittleEndian.Uint16(v.data[deOffFirstCluster:])
}
func (v dirEntryView) setFirstCluster(c uint16) {
	binary.LittleEndian.PutUint16(v.data[deOffFirstCluster:], c)
}

func (v dirEntryView) size() uint32     { return binary.LittleEndian.Uint32(v.data[deOffSize:]) }
func (v dirEntryView) setSize(s uint32) { binary.LittleEndian.PutUint32(v.data[deOffSize:], s) }

func (v dirEntryView) modTime() datetime {
	return datetime{
		time: binary.LittleEndian.Uint16(v.data[deOffTime:]),
		date: binary.LittleEndian.Uint16(v.data[deOffDate:]),
	}
}

func (v dirEntryView) setModTime(d datetime) {
	binary.LittleEndian.PutUint16(v.data[deOffTime:], d.time)
	binary.LittleEndian.PutUint16(v.data[deOffDate:], d.date)
}

// clear wipes the slot back to nameFree, the state a never-used entry
// starts in.
func (v dirEntryView) clear() {
	for i := range v.data {
		v.data[i] = 0
	}
}

// markDeleted tombstones a live entry the way unlink/rmdir do: the slot
// keeps its bytes (so a crash mid-delete is distinguishable from
// never-used) but becomes eligible for reuse.
func (v dirEntryView) markDeleted() {
	v.data[deOffName] = nameDeleted
}

// packName converts a path component into the fixed 11-byte padded name
// representation, right-padded with spaces the way 8.3 names are padded.
// Returns false if the component does not fit.
func packName(component string) (name [MaxNameLen]byte, ok bool) {
	if len(component) == 0 || len(component) > MaxNameLen {
		return name, false
	}
	for i := range name {
		name[i] = ' '
	}
	copy(name[:], component)
	return name, true
}

// unpackName trims the trailing space padding back into a plain string.
func unpackName(name [MaxNameLen]byte) string {
	end := len(name)
	for end > 0 && name[end-1] == ' ' {
		end--
	}
	return string(name[:end])
}
