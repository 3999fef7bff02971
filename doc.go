// Package flashfat implements a small, fixed-geometry FAT16-style
// filesystem that lives entirely in memory and journals itself across two
// on-device superblock copies (A/B), so a crash mid-flush never corrupts a
// previously committed image. It is grown from a teacher repository that
// implements real FAT12/16/32 and exFAT parsing; flashfat keeps that
// repository's BlockDevice abstraction, typed byte-window accessors, and
// slog-based logging, but trades variable on-disk geometry for a single
// fixed 512 KiB layout with a dual-copy CRC32-guarded header instead of a
// single mutable volume.
package flashfat
