package flashfat

import "testing"

func TestDirectoryFindAndFreeSlot(t *testing.T) {
	raw := make([]byte, 4*DirEntrySize)
	d := directory{raw: raw}

	name, _ := packName("A")
	e := d.slot(0)
	e.setName(name)
	e.setAttr(attrFile)

	idx, found, ok := d.find(name)
	if !ok {
		t.Fatal("expected to find entry A")
	}
	if idx != 0 {
		t.Fatalf("found index = %d, want 0", idx)
	}
	if !found.isLive() {
		t.Fatal("found entry should be live")
	}

	slot, ok := d.findFreeSlot()
	if !ok || slot != 1 {
		t.Fatalf("findFreeSlot() = (%d, %v), want (1, true)", slot, ok)
	}
}

func TestDirectoryReusesDeletedSlotBeforeFree(t *testing.T) {
	raw := make([]byte, 4*DirEntrySize)
	d := directory{raw: raw}
	name, _ := packName("A")
	d.slot(0).setName(name)
	d.slot(0).markDeleted()

	slot, ok := d.findFreeSlot()
	if !ok || slot != 0 {
		t.Fatalf("findFreeSlot() = (%d, %v), want (0, true) reusing the deleted slot", slot, ok)
	}
}

func TestDirectoryIsEmptyFromIgnoresDotEntries(t *testing.T) {
	raw := make([]byte, 4*DirEntrySize)
	d := directory{raw: raw}
	dot, _ := packName(".")
	dotdot, _ := packName("..")
	d.slot(0).setName(dot)
	d.slot(0).setAttr(attrDirectory)
	d.slot(1).setName(dotdot)
	d.slot(1).setAttr(attrDirectory)

	if !d.isEmptyFrom(subdirStart) {
		t.Fatal("directory with only dot entries should be empty from subdirStart")
	}

	child, _ := packName("CHILD")
	d.slot(2).setName(child)
	d.slot(2).setAttr(attrFile)
	if d.isEmptyFrom(subdirStart) {
		t.Fatal("directory with a live child entry should not be empty")
	}
}
