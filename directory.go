package flashfat

// directory is a fixed-slot table of dirEntryView, either the flat root
// table (RootEntries slots) or a single cluster's worth of sub-directory
// slots (ClusterSize/DirEntrySize slots). Both share the same find,
// free-slot and emptiness logic, grounded on fat16/vfs.c's findEntry and
// its root/cluster dispatch.
type directory struct {
	raw []byte
}

func (d directory) numSlots() int { return len(d.raw) / DirEntrySize }

func (d directory) slot(i int) dirEntryView {
	return newDirEntryView(d.raw[i*DirEntrySize : (i+1)*DirEntrySize])
}

// find returns the slot index and view of the live entry named name, or
// ok==false if no such entry exists in this directory.
func (d directory) find(name [MaxNameLen]byte) (idx int, entry dirEntryView, ok bool) {
	for i := 0; i < d.numSlots(); i++ {
		e := d.slot(i)
		if !e.isLive() {
			// A free or deleted slot can appear before a later live one
			// once entries are removed out of order, so scanning cannot
			// stop at the first non-live slot it sees.
			continue
		}
		if e.name() == name {
			return i, e, true
		}
	}
	return 0, dirEntryView{}, false
}

// findFreeSlot returns the first slot eligible for a new entry: the
// lowest-indexed slot that is either never-used or deleted (a deleted slot
// is reused rather than leaving a sparse gap).
func (d directory) findFreeSlot() (int, bool) {
	for i := 0; i < d.numSlots(); i++ {
		if !d.slot(i).isLive() {
			return i, true
		}
	}
	return 0, false
}

// isEmptyFrom reports whether every live slot at or past start is absent.
// Sub-directories reserve slots 0/1 for "." and ".." (see Mkdir), which are
// always live and must be excluded when checking emptiness for Rmdir.
func (d directory) isEmptyFrom(start int) bool {
	for i := start; i < d.numSlots(); i++ {
		if d.slot(i).isLive() {
			return false
		}
	}
	return true
}
