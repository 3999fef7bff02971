package flashfat

import "io"

// dirHandle is one slot of the open-directory table (spec.md §4.9):
// which directory's slots it is iterating and how far it has gotten.
type dirHandle struct {
	used    bool
	cluster uint16
	index   int
}

// OpenDir resolves path, which must name the root or a sub-directory, and
// returns an iteration handle over its entries.
func (fs *FS) OpenDir(path string) (*Dir, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return nil, errNotMounted
	}

	var cluster uint16
	if path != "/" {
		_, _, entry, res := fs.resolvePath(path, false)
		if res != ResultOK {
			return nil, res.err()
		}
		if !entry.isDir() {
			return nil, ResultNotADirectory
		}
		cluster = entry.firstCluster()
	}

	fdIdx := -1
	for i, d := range fs.openDirs {
		if !d.used {
			fdIdx = i
			break
		}
	}
	if fdIdx == -1 {
		return nil, ResultTooManyOpen
	}

	start := 0
	if cluster != 0 {
		// Skip the "." and ".." bookkeeping slots every sub-directory
		// reserves at creation (see Mkdir); the root table has no such
		// slots and iterates from 0, the REDESIGN FLAG corrected behavior.
		start = 2
	}
	fs.openDirs[fdIdx] = dirHandle{used: true, cluster: cluster, index: start}
	return &Dir{fs: fs, fd: fdIdx, path: path}, nil
}

func (fs *FS) readDir(fd int) (Info, error) {
	if fd < 0 || fd >= MaxOpenDirs || !fs.openDirs[fd].used {
		return Info{}, ResultBadDescriptor
	}
	h := &fs.openDirs[fd]
	dir := fs.directoryAt(h.cluster)
	for h.index < dir.numSlots() {
		e := dir.slot(h.index)
		h.index++
		if !e.isLive() {
			continue
		}
		return Info{
			Name:    unpackName(e.name()),
			Size:    e.size(),
			ModTime: e.modTime().Time(),
			IsDir:   e.isDir(),
		}, nil
	}
	return Info{}, io.EOF
}

func (fs *FS) closeDir(fd int) error {
	if fd < 0 || fd >= MaxOpenDirs || !fs.openDirs[fd].used {
		return ResultBadDescriptor
	}
	fs.openDirs[fd] = dirHandle{}
	return nil
}

// Dir is the public handle returned by OpenDir, grounded on the teacher's
// Dir type in exported.go (there a callback-based ForEachFile, here a
// pull-based Next matching spec.md's readdir/closedir pair more directly).
type Dir struct {
	fs   *FS
	fd   int
	path string
}

// Next returns the next live entry, or io.EOF once the directory is
// exhausted.
func (d *Dir) Next() (Info, error) {
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	return d.fs.readDir(d.fd)
}

func (d *Dir) Close() error {
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	return d.fs.closeDir(d.fd)
}
