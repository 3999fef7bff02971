package flashfat

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Boot sector field offsets, following the teacher's biosParamBlock /
// internal/mbr typed-view idiom: a fixed-size byte window plus named
// offset constants and binary.LittleEndian accessors, rather than a
// struct with encoding/gob or reflection-based (de)serialization.
const (
	bsOffBytesPerSector    = 0
	bsOffSectorsPerCluster = 2
	bsOffNumClusters       = 4
	bsOffRootEntries       = 6
	bsOffVolumeID          = 8
	bsVolumeIDLen          = 16
)

// bootSectorView wraps the fixed-size boot sector region of a superblock
// image. The geometry it records is static (spec.md's Data Model does not
// allow variable geometry) but is still written out for the same reason
// the teacher's BIOS parameter block is: a mounted image should describe
// itself without consulting compile-time constants.
type bootSectorView struct {
	data []byte // len == BootSectorSize
}

func newBootSectorView(b []byte) bootSectorView {
	if len(b) < BootSectorSize {
		panic("flashfat: boot sector window too small")
	}
	return bootSectorView{data: b[:BootSectorSize:BootSectorSize]}
}

func (v bootSectorView) bytesPerSector() uint16 {
	return binary.LittleEndian.Uint16(v.data[bsOffBytesPerSector:])
}
func (v bootSectorView) sectorsPerCluster() uint16 {
	return binary.LittleEndian.Uint16(v.data[bsOffSectorsPerCluster:])
}
func (v bootSectorView) numClusters() uint16 {
	return binary.LittleEndian.Uint16(v.data[bsOffNumClusters:])
}
func (v bootSectorView) rootEntries() uint16 {
	return binary.LittleEndian.Uint16(v.data[bsOffRootEntries:])
}
func (v bootSectorView) volumeID() uuid.UUID {
	var id uuid.UUID
	copy(id[:], v.data[bsOffVolumeID:bsOffVolumeID+bsVolumeIDLen])
	return id
}

// stamp writes the fixed geometry plus a fresh (or carried-over) volume ID.
// Called once at Init and reproduced verbatim on every subsequent flush.
func (v bootSectorView) stamp(id uuid.UUID) {
	binary.LittleEndian.PutUint16(v.data[bsOffBytesPerSector:], SectorSize)
	binary.LittleEndian.PutUint16(v.data[bsOffSectorsPerCluster:], ClusterSize/SectorSize)
	binary.LittleEndian.PutUint16(v.data[bsOffNumClusters:], NumClusters)
	binary.LittleEndian.PutUint16(v.data[bsOffRootEntries:], RootEntries)
	copy(v.data[bsOffVolumeID:bsOffVolumeID+bsVolumeIDLen], id[:])
}

// validGeometry reports whether the stamped geometry matches the fixed
// constants this build was compiled with. A mismatch means the image was
// written by an incompatible version of flashfat.
func (v bootSectorView) validGeometry() bool {
	return v.bytesPerSector() == SectorSize &&
		v.sectorsPerCluster() == ClusterSize/SectorSize &&
		v.numClusters() == NumClusters &&
		v.rootEntries() == RootEntries
}
