package flashfat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// slogLevelTrace is a sub-debug verbosity level, the same trick the
// teacher uses to separate "every BlockDevice call" tracing from ordinary
// debug logging without adding a second logger.
const slogLevelTrace = slog.LevelDebug - 2

// FS is a mounted flashfat filesystem: one active superblock image held
// entirely in memory, backed by a BlockDevice for mount/flush, gated by a
// single mutex exactly like fat16/vfs.c's pthread_mutex_t around every
// vfs_* call.
type FS struct {
	mu sync.Mutex

	dev   BlockDevice
	clock Clock
	log   *slog.Logger

	sequence   uint64
	activeCopy int // 0 or 1: which on-device copy currently holds the mounted image
	volumeID   uuid.UUID
	mounted    bool
	dirty      bool // true when fs.image has mutations not yet committed by Flush

	image []byte // imageBody bytes: boot sector + FAT region + root table + data
	boot  []byte
	fatR  []byte
	root  []byte
	data  []byte
	fat   *allocTable

	openFiles [MaxOpenFiles]fileDesc
	openDirs  [MaxOpenDirs]dirHandle
}

// New constructs an unmounted FS. Call Init to format a fresh image or
// Mount to load an existing one.
func New() *FS {
	return &FS{log: slog.New(discardHandler{})}
}

// SetLogger installs a structured logger, replacing the default discard
// logger. Mirrors the teacher's pattern of taking a *slog.Logger by
// dependency injection rather than a package-level global.
func (fs *FS) SetLogger(l *slog.Logger) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log = l
}

func (fs *FS) trace(msg string, args ...any)    { fs.log.Log(context.Background(), slogLevelTrace, msg, args...) }
func (fs *FS) debug(msg string, args ...any)    { fs.log.Debug(msg, args...) }
func (fs *FS) info(msg string, args ...any)     { fs.log.Info(msg, args...) }
func (fs *FS) warn(msg string, args ...any)     { fs.log.Warn(msg, args...) }
func (fs *FS) logerror(msg string, args ...any) { fs.log.Error(msg, args...) }

// discardHandler is a zero-dependency slog.Handler that drops everything,
// used as the default so SetLogger is optional rather than mandatory.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }

// allocateWindows carves fs.image into its fixed sub-regions. Called once
// after fs.image is allocated, both from Init and from Mount.
func (fs *FS) allocateWindows() {
	fs.boot = fs.image[0:BootSectorSize]
	fs.fatR = fs.image[BootSectorSize : BootSectorSize+FATRegionSize]
	fs.root = fs.image[BootSectorSize+FATRegionSize : BootSectorSize+FATRegionSize+rootDirSize]
	fs.data = fs.image[BootSectorSize+FATRegionSize+rootDirSize:]
	fs.fat = newAllocTable(fs.fatR)
}

// clusterBytes returns the window of fs.data backing cluster c. c must be
// in [firstDataCluster, NumClusters).
func (fs *FS) clusterBytes(c uint16) []byte {
	if c < firstDataCluster || c >= NumClusters {
		panic(fmt.Sprintf("flashfat: cluster %d out of range", c))
	}
	off := int(c-firstDataCluster) * ClusterSize
	return fs.data[off : off+ClusterSize]
}

// Init formats a brand-new image and mounts it, the way vfs_init followed
// by an implicit first mount works in the original. dev must already be
// sized for 2*ImageSize bytes.
func (fs *FS) Init(dev BlockDevice, clock Clock) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.mounted {
		return errAlreadyMount
	}
	if clock == nil {
		clock = defaultClock
	}
	fs.dev = dev
	fs.clock = clock
	return fs.formatLocked()
}

// formatLocked zeroes and stamps a fresh image over fs.dev and mounts it,
// assuming fs.dev/fs.clock are already set and fs.mu is held. Used both by
// Init and by Mount's fresh-start fallback (spec.md §4.9: "on failure,
// start fresh").
func (fs *FS) formatLocked() error {
	fs.image = make([]byte, imageBody)
	fs.allocateWindows()
	fs.volumeID = uuid.New()
	newBootSectorView(fs.boot).stamp(fs.volumeID)
	fs.fat.rebuildFree()
	fs.sequence = 0
	fs.activeCopy = 1 // flush will write copy 0 first
	fs.mounted = true
	fs.dirty = true
	fs.info("formatting new image", slog.String("volume_id", fs.volumeID.String()))
	if err := fs.flushLocked(); err != nil {
		fs.mounted = false
		return err
	}
	return nil
}

// Mount loads the higher-sequence valid superblock copy from dev. If
// neither copy carries a valid header/CRC pair or the stamped geometry
// does not match this build, it formats and mounts a fresh image instead
// of failing, matching fat16/vfs.c's vfs_mount falling through to
// vfs_init.
func (fs *FS) Mount(dev BlockDevice, clock Clock) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.mounted {
		return errAlreadyMount
	}
	if clock == nil {
		clock = defaultClock
	}
	fs.dev = dev
	fs.clock = clock

	buf := make([]byte, 2*ImageSize)
	if _, err := dev.ReadBlocks(buf, 0); err != nil {
		return ResultIoError
	}

	type candidate struct {
		copyIdx  int
		sequence uint64
		payload  []byte
	}
	var best *candidate
	for copyIdx := 0; copyIdx < 2; copyIdx++ {
		off := copyIdx * ImageSize
		hdr := newHeaderView(buf[off : off+HeaderSize])
		payload := buf[off+HeaderSize : off+ImageSize]
		if !hdr.valid(payload) {
			fs.warn("superblock copy failed validation", slog.Int("copy", copyIdx))
			continue
		}
		if best == nil || hdr.sequence() > best.sequence {
			best = &candidate{copyIdx: copyIdx, sequence: hdr.sequence(), payload: payload}
		}
	}
	if best == nil {
		fs.warn("no valid superblock copy found, formatting fresh image")
		return fs.formatLocked()
	}

	fs.image = make([]byte, imageBody)
	copy(fs.image, best.payload[:imageBody])
	fs.allocateWindows()
	fs.fat.rebuildFree()
	bs := newBootSectorView(fs.boot)
	if !bs.validGeometry() {
		fs.warn("stamped geometry mismatch, formatting fresh image")
		return fs.formatLocked()
	}
	fs.volumeID = bs.volumeID()
	fs.sequence = best.sequence
	fs.activeCopy = best.copyIdx
	fs.mounted = true
	fs.dirty = false
	fs.info("mounted", slog.Int("copy", best.copyIdx), slog.Uint64("sequence", best.sequence))
	return nil
}

// Flush commits the in-memory image to the inactive on-device copy and
// verifies it by reading it back, exactly as spec.md §4.3 requires. It is
// a no-op when nothing has mutated the image since the last successful
// flush (spec.md §4.3, "executed only when dirty == true").
func (fs *FS) Flush() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return errNotMounted
	}
	return fs.flushLocked()
}

func (fs *FS) flushLocked() error {
	if !fs.dirty {
		return nil
	}
	target := 1 - fs.activeCopy
	seq := fs.sequence + 1

	payload := make([]byte, ImageSize-HeaderSize)
	copy(payload, fs.image)
	// bytes beyond imageBody stay zero, matching the original's unused
	// tail region within each FLASH_SIZE-sized copy.

	hdr := headerView{data: make([]byte, HeaderSize)}
	hdr.setMagic(headerMagic)
	hdr.setSequence(seq)
	hdr.setActive(true)
	hdr.setCRC(crc32Checksum(payload))

	out := make([]byte, ImageSize)
	copy(out, hdr.data)
	copy(out[HeaderSize:], payload)

	startBlock := int64(target) * int64(ImageSize/SectorSize)
	if _, err := fs.dev.WriteBlocks(out, startBlock); err != nil {
		fs.logerror("flush write failed", slog.Any("err", err))
		return ResultIoError
	}

	verify := make([]byte, ImageSize)
	if _, err := fs.dev.ReadBlocks(verify, startBlock); err != nil {
		fs.logerror("flush verify read failed", slog.Any("err", err))
		return ResultIoError
	}
	vhdr := newHeaderView(verify[:HeaderSize])
	if !vhdr.valid(verify[HeaderSize:]) {
		fs.logerror("flush verify mismatch", slog.Int("copy", target))
		return ResultIoError
	}

	fs.activeCopy = target
	fs.sequence = seq
	fs.dirty = false
	fs.trace("flush committed", slog.Int("copy", target), slog.Uint64("sequence", fs.sequence))
	return nil
}

// VolumeID returns the identifier stamped into the boot sector at Init.
func (fs *FS) VolumeID() uuid.UUID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.volumeID
}

// Info describes a directory entry the way Stat and ReadDir report it.
type Info struct {
	Name    string
	Size    uint32
	ModTime time.Time
	IsDir   bool
}

// Stat resolves path and reports its directory entry metadata.
func (fs *FS) Stat(path string) (Info, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return Info{}, errNotMounted
	}
	if path == "/" {
		return Info{Name: "/", IsDir: true}, nil
	}
	_, _, entry, res := fs.resolvePath(path, false)
	if res != ResultOK {
		return Info{}, res.err()
	}
	name, _ := finalComponent(path)
	return Info{
		Name:    name,
		Size:    entry.size(),
		ModTime: entry.modTime().Time(),
		IsDir:   entry.isDir(),
	}, nil
}

var _ io.Closer = (*File)(nil)
