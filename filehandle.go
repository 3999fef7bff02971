package flashfat

import (
	"io"
	"log/slog"
)

// Mode is the bitset of flags OpenFile accepts, grounded on the teacher's
// Mode type in exported.go plus the ModeAppend flag supplemented from the
// broader shell this spec's original source was extracted from.
type Mode uint8

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeCreate
	ModeExcl
	ModeAppend
)

// fileDesc is one slot of the open-file table (spec.md §4.8): which
// directory entry it points at, its cluster chain head, current size, and
// the cursor a Read/Write/Seek advances.
type fileDesc struct {
	used         bool
	dirCluster   uint16 // cluster of the parent directory holding this entry (0 == root)
	slot         int
	firstCluster uint16
	size         uint32
	offset       int64
	mode         Mode
}

func (fs *FS) entryView(d fileDesc) dirEntryView {
	return fs.directoryAt(d.dirCluster).slot(d.slot)
}

// OpenFile resolves path under mode, creating it if ModeCreate is set and
// it does not already exist, and returns a handle.
func (fs *FS) OpenFile(path string, mode Mode) (*File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return nil, errNotMounted
	}
	if mode&(ModeRead|ModeWrite) == 0 {
		return nil, errInvalidMode
	}
	if path == "/" {
		return nil, ResultIsADirectory
	}

	fdIdx := -1
	for i, d := range fs.openFiles {
		if !d.used {
			fdIdx = i
			break
		}
	}
	if fdIdx == -1 {
		return nil, ResultTooManyOpen
	}

	parentCluster, slot, entry, res := fs.resolvePath(path, false)
	var desc fileDesc
	switch res {
	case ResultOK:
		if entry.isDir() {
			return nil, ResultIsADirectory
		}
		if mode&ModeCreate != 0 && mode&ModeExcl != 0 {
			return nil, ResultExists
		}
		desc = fileDesc{
			used:         true,
			dirCluster:   parentCluster,
			slot:         slot,
			firstCluster: entry.firstCluster(),
			size:         entry.size(),
			mode:         mode,
		}
	case ResultNotFound:
		if mode&ModeCreate == 0 {
			return nil, ResultNotFound
		}
		name, nres := finalComponent(path)
		if nres != ResultOK {
			return nil, nres.err()
		}
		packed, ok := packName(name)
		if !ok {
			return nil, ResultNameTooLong
		}
		parentCluster, _, _, pres := fs.resolvePath(path, true)
		if pres != ResultOK {
			return nil, pres.err()
		}
		dir := fs.directoryAt(parentCluster)
		if _, _, found := dir.find(packed); found {
			return nil, ResultExists
		}
		freeSlot, ok := dir.findFreeSlot()
		if !ok {
			return nil, ResultOutOfSpace
		}
		e := dir.slot(freeSlot)
		e.clear()
		e.setName(packed)
		e.setAttr(attrFile)
		e.setModTime(newDatetime(fs.clock()))
		fs.dirty = true
		desc = fileDesc{
			used:       true,
			dirCluster: parentCluster,
			slot:       freeSlot,
			mode:       mode,
		}
	default:
		return nil, res.err()
	}

	if mode&ModeAppend != 0 {
		desc.offset = int64(desc.size)
	}
	fs.openFiles[fdIdx] = desc
	fs.trace("open", slog.String("path", path), slog.Int("fd", fdIdx))
	return &File{fs: fs, fd: fdIdx, name: path}, nil
}

func (fs *FS) closeFile(fd int) error {
	if fd < 0 || fd >= MaxOpenFiles || !fs.openFiles[fd].used {
		return ResultBadDescriptor
	}
	fs.openFiles[fd] = fileDesc{}
	return nil
}

func (fs *FS) readFile(fd int, buf []byte) (int, error) {
	if fd < 0 || fd >= MaxOpenFiles || !fs.openFiles[fd].used {
		return 0, ResultBadDescriptor
	}
	if buf == nil {
		return 0, errNilBuffer
	}
	d := fs.openFiles[fd]
	if d.mode&ModeRead == 0 {
		return 0, ResultInvalidArgument
	}
	if d.firstCluster == 0 || d.offset >= int64(d.size) {
		return 0, io.EOF
	}
	remaining := int64(d.size) - d.offset
	want := len(buf)
	if int64(want) > remaining {
		want = int(remaining)
	}
	chain := fs.fat.chain(d.firstCluster)
	n := 0
	for n < want {
		clusterIdx := int((d.offset + int64(n)) / ClusterSize)
		within := int((d.offset + int64(n)) % ClusterSize)
		if clusterIdx >= len(chain) {
			break
		}
		cb := fs.clusterBytes(chain[clusterIdx])
		chunk := ClusterSize - within
		if chunk > want-n {
			chunk = want - n
		}
		copy(buf[n:n+chunk], cb[within:within+chunk])
		n += chunk
	}
	fs.openFiles[fd].offset += int64(n)
	return n, nil
}

func (fs *FS) writeFile(fd int, buf []byte) (int, error) {
	if fd < 0 || fd >= MaxOpenFiles || !fs.openFiles[fd].used {
		return 0, ResultBadDescriptor
	}
	d := &fs.openFiles[fd]
	if d.mode&ModeWrite == 0 {
		return 0, ResultInvalidArgument
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if d.firstCluster == 0 {
		c, res := fs.fat.allocFirstFit()
		if res != ResultOK {
			return 0, res.err()
		}
		d.firstCluster = c
	}

	chain := fs.fat.chain(d.firstCluster)
	endOffset := d.offset + int64(len(buf))
	neededClusters := int((endOffset + ClusterSize - 1) / ClusterSize)
	for len(chain) < neededClusters {
		tail := chain[len(chain)-1]
		next, res := fs.fat.extend(tail)
		if res != ResultOK {
			return 0, res.err()
		}
		chain = append(chain, next)
	}

	n := 0
	for n < len(buf) {
		clusterIdx := int((d.offset + int64(n)) / ClusterSize)
		within := int((d.offset + int64(n)) % ClusterSize)
		cb := fs.clusterBytes(chain[clusterIdx])
		chunk := ClusterSize - within
		if chunk > len(buf)-n {
			chunk = len(buf) - n
		}
		copy(cb[within:within+chunk], buf[n:n+chunk])
		n += chunk
	}
	d.offset += int64(n)
	if uint32(d.offset) > d.size {
		d.size = uint32(d.offset)
	}

	e := fs.entryView(*d)
	e.setFirstCluster(d.firstCluster)
	e.setSize(d.size)
	e.setModTime(newDatetime(fs.clock()))
	fs.dirty = true
	return n, nil
}

func (fs *FS) seekFile(fd int, offset int64, whence int) (int64, error) {
	if fd < 0 || fd >= MaxOpenFiles || !fs.openFiles[fd].used {
		return 0, ResultBadDescriptor
	}
	d := &fs.openFiles[fd]
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = d.offset
	case io.SeekEnd:
		base = int64(d.size)
	default:
		return 0, errInvalidWhence
	}
	newOffset := base + offset
	if newOffset < 0 {
		return 0, ResultInvalidArgument
	}
	d.offset = newOffset
	return newOffset, nil
}

// File is the public handle returned by OpenFile, implementing
// io.ReadWriteSeeker and io.Closer the way the teacher's File type
// implements io.Reader/io.Writer in exported.go.
type File struct {
	fs   *FS
	fd   int
	name string
}

func (f *File) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.fs.readFile(f.fd, p)
}

func (f *File) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.fs.writeFile(f.fd, p)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.fs.seekFile(f.fd, offset, whence)
}

func (f *File) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.fs.closeFile(f.fd)
}

// Name returns the path File was opened with.
func (f *File) Name() string { return f.name }
