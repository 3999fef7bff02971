package flashfat

import (
	"errors"
	"io"
	"testing"
	"time"
)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func newMountedFS(t *testing.T) (*FS, *MemDevice) {
	t.Helper()
	dev := NewMemDevice()
	fs := New()
	if err := fs.Init(dev, fixedClock(time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return fs, dev
}

// S1: a file written then read back, within one mount, matches byte for
// byte and reports the expected size via Stat.
func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := newMountedFS(t)
	f, err := fs.OpenFile("/hello.txt", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	payload := []byte("hello, flashfat")
	if n, err := f.Write(payload); err != nil || n != len(payload) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(payload))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, len(payload))
	if n, err := f.Read(got); err != nil || n != len(payload) {
		t.Fatalf("Read = (%d, %v), want (%d, nil)", n, err, len(payload))
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := fs.Stat("/hello.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != uint32(len(payload)) {
		t.Fatalf("Stat size = %d, want %d", info.Size, len(payload))
	}
}

// S2/Round-trip persistence: after Flush, a fresh Mount on the same device
// recovers exactly what was written.
func TestMountRecoversFlushedData(t *testing.T) {
	fs, dev := newMountedFS(t)
	f, err := fs.OpenFile("/a.txt", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte("persisted")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fs2 := New()
	if err := fs2.Mount(dev, nil); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	f2, err := fs2.OpenFile("/a.txt", ModeRead)
	if err != nil {
		t.Fatalf("reopen after mount: %v", err)
	}
	got := make([]byte, len("persisted"))
	if _, err := f2.Read(got); err != nil {
		t.Fatalf("Read after mount: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("data after remount = %q, want %q", got, "persisted")
	}
}

// Sequence monotonicity: each Flush following a real mutation increments
// the sequence and alternates the committed copy.
func TestFlushSequenceMonotonic(t *testing.T) {
	fs, _ := newMountedFS(t)
	seq0 := fs.sequence
	copy0 := fs.activeCopy

	if err := fs.OpenFileAndClose("/a"); err != nil {
		t.Fatalf("setup a: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fs.sequence != seq0+1 {
		t.Fatalf("sequence after flush = %d, want %d", fs.sequence, seq0+1)
	}
	if fs.activeCopy == copy0 {
		t.Fatal("active copy did not alternate after flush")
	}

	if err := fs.OpenFileAndClose("/b"); err != nil {
		t.Fatalf("setup b: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if fs.sequence != seq0+2 {
		t.Fatalf("sequence after second flush = %d, want %d", fs.sequence, seq0+2)
	}
	if fs.activeCopy != copy0 {
		t.Fatal("active copy should alternate back after two flushes")
	}
}

// Idempotent flush: flushing twice with no intervening mutation is a true
// no-op (no sequence bump, no copy flip), and the committed data is still
// mountable and readable afterward.
func TestFlushIdempotentData(t *testing.T) {
	fs, dev := newMountedFS(t)
	if err := fs.Mkdir("/dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush 1: %v", err)
	}
	seqAfterFirst := fs.sequence
	copyAfterFirst := fs.activeCopy

	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush 2: %v", err)
	}
	if fs.sequence != seqAfterFirst {
		t.Fatalf("no-op flush changed sequence: got %d, want %d", fs.sequence, seqAfterFirst)
	}
	if fs.activeCopy != copyAfterFirst {
		t.Fatalf("no-op flush flipped active copy: got %d, want %d", fs.activeCopy, copyAfterFirst)
	}

	fs2 := New()
	if err := fs2.Mount(dev, nil); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if _, err := fs2.Stat("/dir"); err != nil {
		t.Fatalf("Stat /dir after double flush: %v", err)
	}
}

// CRC detection: corrupting the higher-sequence copy on the device makes
// Mount fall back to the other, still-valid copy instead of loading
// garbage.
func TestMountFallsBackFromCorruptCopy(t *testing.T) {
	fs, dev := newMountedFS(t) // Init already committed copy 0, sequence 1
	if err := fs.OpenFileAndClose("/keep.txt"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := fs.Flush(); err != nil { // commits copy 1, sequence 2
		t.Fatalf("Flush: %v", err)
	}
	if fs.activeCopy != 1 {
		t.Fatalf("expected copy 1 active after second flush, got %d", fs.activeCopy)
	}

	// Corrupt the higher-sequence copy (1); copy 0 (sequence 1, without
	// /keep.txt) must still be there and still valid.
	corrupt := []byte{0xFF}
	off := int64(1)*int64(ImageSize/SectorSize) + int64(HeaderSize/SectorSize)
	if _, err := dev.WriteBlocks(corrupt, off); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}

	fs2 := New()
	if err := fs2.Mount(dev, nil); err != nil {
		t.Fatalf("Mount should fall back to the valid older copy, got: %v", err)
	}
	if fs2.activeCopy != 0 {
		t.Fatalf("Mount loaded copy %d, want fallback to copy 0", fs2.activeCopy)
	}
	if _, err := fs2.Stat("/keep.txt"); err == nil {
		t.Fatal("fell-back copy should predate /keep.txt, but Stat found it")
	}
}

// Both copies invalid (never formatted, or both corrupted) must make Mount
// start fresh rather than fail, matching the "on failure, start fresh"
// mount recovery contract: the caller gets back a live, empty filesystem.
func TestMountFormatsFreshWhenNoCopyIsValid(t *testing.T) {
	dev := NewMemDevice()
	fs := New()
	if err := fs.Mount(dev, nil); err != nil {
		t.Fatalf("Mount on a never-formatted device should format fresh, got: %v", err)
	}
	dir, err := fs.OpenDir("/")
	if err != nil {
		t.Fatalf("OpenDir /: %v", err)
	}
	defer dir.Close()
	if _, err := dir.Next(); err != io.EOF {
		t.Fatalf("fresh root should be empty, got err = %v", err)
	}
}

// Crash safety: a write failure during Flush must not disturb the
// previously committed, still-mountable copy.
func TestFlushFailureLeavesPriorCopyMountable(t *testing.T) {
	dev := NewMemDevice()
	fs := New()
	if err := fs.Init(dev, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := fs.OpenFileAndClose("/before-crash.txt"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	failing := &failOnceDevice{MemDevice: dev}
	fs.dev = failing
	failing.failNextWrite = true
	if err := fs.Mkdir("/after-crash"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fs.Flush(); err == nil {
		t.Fatal("expected Flush to fail when the device write fails")
	}

	fs2 := New()
	if err := fs2.Mount(dev, nil); err != nil {
		t.Fatalf("Mount after failed flush: %v", err)
	}
	if _, err := fs2.Stat("/before-crash.txt"); err != nil {
		t.Fatalf("prior data lost after failed flush: %v", err)
	}
	if _, err := fs2.Stat("/after-crash"); err == nil {
		t.Fatal("uncommitted mutation should not have survived the failed flush")
	}
}

// Name uniqueness: OpenFile with ModeExcl rejects a path that already
// exists, and Mkdir rejects a duplicate name regardless of type.
func TestNameUniqueness(t *testing.T) {
	fs, _ := newMountedFS(t)
	if err := fs.OpenFileAndClose("/dup"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := fs.Mkdir("/dup"); !errors.Is(err, ResultExists) {
		t.Fatalf("Mkdir over existing file = %v, want ResultExists", err)
	}
	if _, err := fs.OpenFile("/dup", ModeRead|ModeWrite|ModeCreate|ModeExcl); !errors.Is(err, ResultExists) {
		t.Fatalf("OpenFile excl over existing file = %v, want ResultExists", err)
	}
}

// Handle isolation: two independently opened handles to the same file
// track their own cursors.
func TestHandleIsolation(t *testing.T) {
	fs, _ := newMountedFS(t)
	w, err := fs.OpenFile("/shared.txt", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatalf("OpenFile write: %v", err)
	}
	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r1, err := fs.OpenFile("/shared.txt", ModeRead)
	if err != nil {
		t.Fatalf("OpenFile r1: %v", err)
	}
	r2, err := fs.OpenFile("/shared.txt", ModeRead)
	if err != nil {
		t.Fatalf("OpenFile r2: %v", err)
	}
	buf1 := make([]byte, 4)
	buf2 := make([]byte, 2)
	if _, err := r1.Read(buf1); err != nil {
		t.Fatalf("r1 Read: %v", err)
	}
	if _, err := r2.Read(buf2); err != nil {
		t.Fatalf("r2 Read: %v", err)
	}
	if string(buf1) != "0123" || string(buf2) != "01" {
		t.Fatalf("cursors not isolated: r1=%q r2=%q", buf1, buf2)
	}
}

// Chain integrity: a file spanning multiple clusters reads back correctly
// across cluster boundaries.
func TestMultiClusterChainIntegrity(t *testing.T) {
	fs, _ := newMountedFS(t)
	f, err := fs.OpenFile("/big.bin", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	payload := make([]byte, ClusterSize*3+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, len(payload))
	n, err := io.ReadFull(f, got)
	if err != nil || n != len(payload) {
		t.Fatalf("ReadFull = (%d, %v), want (%d, nil)", n, err, len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], payload[i])
		}
	}
}

// Busy: unlinking a file that is currently open is rejected.
func TestUnlinkBusyFile(t *testing.T) {
	fs, _ := newMountedFS(t)
	f, err := fs.OpenFile("/open.txt", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := fs.Unlink("/open.txt"); !errors.Is(err, ResultBusy) {
		t.Fatalf("Unlink busy file = %v, want ResultBusy", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fs.Unlink("/open.txt"); err != nil {
		t.Fatalf("Unlink after close: %v", err)
	}
}

// Rmdir refuses a non-empty directory and succeeds once emptied.
func TestRmdirNotEmptyThenEmpty(t *testing.T) {
	fs, _ := newMountedFS(t)
	if err := fs.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fs.OpenFileAndClose("/d/child.txt"); err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := fs.Rmdir("/d"); !errors.Is(err, ResultNotEmpty) {
		t.Fatalf("Rmdir non-empty = %v, want ResultNotEmpty", err)
	}
	if err := fs.Unlink("/d/child.txt"); err != nil {
		t.Fatalf("Unlink child: %v", err)
	}
	if err := fs.Rmdir("/d"); err != nil {
		t.Fatalf("Rmdir after emptying: %v", err)
	}
}

// S3: directory exhaustion. A single-cluster sub-directory holds exactly
// numSlots() slots, two of which ("." and "..") are reserved at creation;
// filling every remaining slot succeeds, the next create fails with
// OutOfSpace, and flush+remount preserves every file that did fit.
func TestDirectoryExhaustion(t *testing.T) {
	fs, dev := newMountedFS(t)
	if err := fs.Mkdir("/sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	sub := fs.directoryAt(mustStatFirstCluster(t, fs, "/sub"))
	capacity := sub.numSlots() - subdirStart

	for i := 0; i < capacity; i++ {
		name := "/sub/" + string(rune('A'+i%26)) + string(rune('0'+(i/26)%10))
		if err := fs.OpenFileAndClose(name); err != nil {
			t.Fatalf("create file %d (%s): %v", i, name, err)
		}
	}

	overflowName := "/sub/" + string(rune('A'+capacity%26)) + string(rune('0'+(capacity/26)%10))
	if _, err := fs.OpenFile(overflowName, ModeRead|ModeWrite|ModeCreate); !errors.Is(err, ResultOutOfSpace) {
		t.Fatalf("create past capacity = %v, want ResultOutOfSpace", err)
	}

	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fs2 := New()
	if err := fs2.Mount(dev, nil); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for i := 0; i < capacity; i++ {
		name := "/sub/" + string(rune('A'+i%26)) + string(rune('0'+(i/26)%10))
		if _, err := fs2.Stat(name); err != nil {
			t.Fatalf("Stat %s after remount: %v", name, err)
		}
	}
}

func mustStatFirstCluster(t *testing.T, fs *FS, path string) uint16 {
	t.Helper()
	_, _, entry, res := fs.resolvePath(path, false)
	if res != ResultOK {
		t.Fatalf("resolvePath(%s): %v", path, res)
	}
	return entry.firstCluster()
}

// OpenFileAndClose is a test convenience wrapping the common
// create-then-close sequence used across several scenarios above.
func (fs *FS) OpenFileAndClose(path string) error {
	f, err := fs.OpenFile(path, ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		return err
	}
	return f.Close()
}

// failOnceDevice wraps a MemDevice and fails the next WriteBlocks call,
// simulating a crash partway through a Flush.
type failOnceDevice struct {
	*MemDevice
	failNextWrite bool
}

func (f *failOnceDevice) WriteBlocks(data []byte, startBlock int64) (int, error) {
	if f.failNextWrite {
		f.failNextWrite = false
		return 0, errors.New("simulated crash during write")
	}
	return f.MemDevice.WriteBlocks(data, startBlock)
}
