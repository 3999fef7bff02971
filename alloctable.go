package flashfat

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
)

// allocTable is the cluster allocation table: NumClusters u16 cells, each
// either clusterFree, clusterEOF, or the index of the next cluster in a
// chain. This is the authoritative on-disk structure (spec.md §4.4); the
// bitset alongside it is a derived, never-persisted accelerator.
type allocTable struct {
	data []byte // len == NumClusters*2, a window into the FAT region

	// free tracks which cluster indices are unallocated, rebuilt from data
	// on every mount. A plain linear scan over 125 cells is cheap enough by
	// itself, but wiring bits-and-blooms/bitset gives allocFirstFit an O(1)
	// "is anything free at all" precheck before it walks the table doing
	// the actual first-fit scan spec.md requires.
	free *bitset.BitSet
}

func newAllocTable(b []byte) *allocTable {
	if len(b) < NumClusters*2 {
		panic("flashfat: FAT window too small")
	}
	return &allocTable{data: b[: NumClusters*2 : NumClusters*2], free: bitset.New(NumClusters)}
}

func (t *allocTable) cell(c uint16) uint16 {
	return binary.LittleEndian.Uint16(t.data[int(c)*2:])
}

func (t *allocTable) setCell(c uint16, v uint16) {
	binary.LittleEndian.PutUint16(t.data[int(c)*2:], v)
}

// rebuildFree recomputes the free-cluster bitset from the cell array. Call
// after mounting an image or restoring from a journal copy, never persisted
// itself since it is fully derivable from data.
func (t *allocTable) rebuildFree() {
	t.free.ClearAll()
	for c := uint16(firstDataCluster); c < NumClusters; c++ {
		if t.cell(c) == clusterFree {
			t.free.Set(uint(c))
		}
	}
}

// hasFree is the O(1) accelerated precheck; it never replaces the
// authoritative scan in allocFirstFit, it only short-circuits it.
func (t *allocTable) hasFree() bool {
	return t.free.Any()
}

// allocFirstFit returns the lowest-indexed free cluster, marking it EOF, or
// ResultOutOfSpace if none exists. Ascending first-fit per spec.md §4.4.
func (t *allocTable) allocFirstFit() (uint16, Result) {
	if !t.hasFree() {
		return 0, ResultOutOfSpace
	}
	for c := uint16(firstDataCluster); c < NumClusters; c++ {
		if t.cell(c) == clusterFree {
			t.setCell(c, clusterEOF)
			t.free.Clear(uint(c))
			return c, ResultOK
		}
	}
	// free bitset said yes but the scan found nothing: the accelerator and
	// the authoritative table have diverged.
	panic("flashfat: free bitset out of sync with allocation table")
}

// extend appends a freshly allocated cluster to the chain ending at tail,
// returning the new cluster or ResultOutOfSpace.
func (t *allocTable) extend(tail uint16) (uint16, Result) {
	c, res := t.allocFirstFit()
	if res != ResultOK {
		return 0, res
	}
	t.setCell(tail, c)
	return c, ResultOK
}

// chain walks the cluster chain starting at head, returning the ordered
// list of cluster indices. An empty chain (head == clusterFree) yields nil.
func (t *allocTable) chain(head uint16) []uint16 {
	if head == clusterFree {
		return nil
	}
	var out []uint16
	c := head
	for {
		out = append(out, c)
		next := t.cell(c)
		if next == clusterEOF || next == clusterFree {
			break
		}
		c = next
	}
	return out
}

// freeChain releases every cluster in the chain starting at head back to
// the free pool.
func (t *allocTable) freeChain(head uint16) {
	c := head
	for c != clusterFree && c != clusterEOF {
		next := t.cell(c)
		t.setCell(c, clusterFree)
		t.free.Set(uint(c))
		if next == clusterEOF {
			break
		}
		c = next
	}
}
