package flashfat

import "log/slog"

const (
	dotSlot    = 0
	dotDotSlot = 1
	// subdirStart is the first slot a sub-directory's own contents can
	// occupy, past the reserved "." and ".." bookkeeping entries.
	subdirStart = 2
)

// isFileBusy reports whether any open file handle currently references the
// slot (parentCluster, slot), which must hold still while Unlink is in
// flight. isDirBusy does the same for open directory handles.
func (fs *FS) isFileBusy(parentCluster uint16, slot int) bool {
	for _, d := range fs.openFiles {
		if d.used && d.dirCluster == parentCluster && d.slot == slot {
			return true
		}
	}
	return false
}

func (fs *FS) isDirBusy(cluster uint16) bool {
	for _, h := range fs.openDirs {
		if h.used && h.cluster == cluster {
			return true
		}
	}
	return false
}

// Unlink removes the file at path. Returns ResultBusy if it is currently
// open, ResultIsADirectory if path names a directory (use Rmdir instead).
func (fs *FS) Unlink(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return errNotMounted
	}
	if path == "/" {
		return ResultIsADirectory.err()
	}
	parentCluster, slot, entry, res := fs.resolvePath(path, false)
	if res != ResultOK {
		return res.err()
	}
	if entry.isDir() {
		return ResultIsADirectory.err()
	}
	if fs.isFileBusy(parentCluster, slot) {
		return ResultBusy.err()
	}
	if entry.firstCluster() != 0 {
		fs.fat.freeChain(entry.firstCluster())
	}
	entry.markDeleted()
	fs.dirty = true
	fs.trace("unlink", slog.String("path", path))
	return nil
}

// Mkdir creates an empty sub-directory at path, stamping the "." and ".."
// bookkeeping entries the way sub-directories are conventionally seeded in
// fat16/vfs.c.
func (fs *FS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return errNotMounted
	}
	if _, _, _, res := fs.resolvePath(path, false); res == ResultOK {
		return ResultExists.err()
	} else if res != ResultNotFound {
		return res.err()
	}

	parentCluster, _, _, res := fs.resolvePath(path, true)
	if res != ResultOK {
		return res.err()
	}
	name, res := finalComponent(path)
	if res != ResultOK {
		return res.err()
	}
	packed, ok := packName(name)
	if !ok {
		return ResultNameTooLong.err()
	}

	parentDir := fs.directoryAt(parentCluster)
	if _, _, found := parentDir.find(packed); found {
		return ResultExists.err()
	}
	freeSlot, ok := parentDir.findFreeSlot()
	if !ok {
		return ResultOutOfSpace.err()
	}

	cluster, allocRes := fs.fat.allocFirstFit()
	if allocRes != ResultOK {
		return allocRes.err()
	}

	content := fs.clusterBytes(cluster)
	for i := range content {
		content[i] = 0
	}
	sub := directory{raw: content}
	dot, ok := packName(".")
	if !ok {
		panic("flashfat: \".\" does not fit in a name field")
	}
	dotdot, ok := packName("..")
	if !ok {
		panic("flashfat: \"..\" does not fit in a name field")
	}
	dotEntry := sub.slot(dotSlot)
	dotEntry.setName(dot)
	dotEntry.setAttr(attrDirectory)
	dotEntry.setFirstCluster(cluster)
	dotDotEntry := sub.slot(dotDotSlot)
	dotDotEntry.setName(dotdot)
	dotDotEntry.setAttr(attrDirectory)
	dotDotEntry.setFirstCluster(parentCluster)

	e := parentDir.slot(freeSlot)
	e.clear()
	e.setName(packed)
	e.setAttr(attrDirectory)
	e.setFirstCluster(cluster)
	e.setModTime(newDatetime(fs.clock()))
	fs.dirty = true
	fs.trace("mkdir", slog.String("path", path), slog.Int("cluster", int(cluster)))
	return nil
}

// Rmdir removes the empty sub-directory at path. Returns ResultNotEmpty if
// it still has live entries beyond "." and "..", ResultBusy if a handle is
// currently iterating it.
func (fs *FS) Rmdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return errNotMounted
	}
	if path == "/" {
		// spec.md §7/§8: rmdir of "/" is rejected as Busy, not a plain
		// invalid argument — root has no parent slot to tombstone and is
		// always considered in use.
		return ResultBusy.err()
	}
	_, _, entry, res := fs.resolvePath(path, false)
	if res != ResultOK {
		return res.err()
	}
	if !entry.isDir() {
		return ResultNotADirectory.err()
	}
	cluster := entry.firstCluster()
	if fs.isDirBusy(cluster) {
		return ResultBusy.err()
	}
	sub := fs.directoryAt(cluster)
	if !sub.isEmptyFrom(subdirStart) {
		return ResultNotEmpty.err()
	}
	fs.fat.freeChain(cluster)
	entry.markDeleted()
	fs.dirty = true
	fs.trace("rmdir", slog.String("path", path))
	return nil
}
