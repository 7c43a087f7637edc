// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipcodec

import (
	"encoding/binary"
	"fmt"
)

// RawDirectory returns the live central directory buffer.
// Writes through the returned slice edit records in place.
func (a *Archive) RawDirectory() []byte {
	return a.centralDir
}

// PatchLocalHeaderOffset rewrites local header offset of the record at recordOfs.
// ZIP64 records are patched in their extended information field.
func (a *Archive) PatchLocalHeaderOffset(recordOfs uint64, value uint64) error {
	if a.state != stateWriting {
		return ErrWrongMode
	}

	rec, err := a.record(recordOfs)
	if err != nil {
		return err
	}

	if binary.LittleEndian.Uint32(rec[cdhLocalHeaderOfs:]) != max32 {
		if value >= max32 {
			return fmt.Errorf("%w: local header offset %d needs ZIP64", ErrArchiveTooLarge, value)
		}

		binary.LittleEndian.PutUint32(rec[cdhLocalHeaderOfs:], uint32(value))
		return nil
	}

	nameLen := int(binary.LittleEndian.Uint16(rec[cdhNameLenOfs:]))
	extraLen := int(binary.LittleEndian.Uint16(rec[cdhExtraLenOfs:]))
	field, ok := findExtra(rec[centralHeaderSize+nameLen:centralHeaderSize+nameLen+extraLen], zip64ExtraID)
	if !ok {
		return fmt.Errorf("%w: record at %d: missing ZIP64 extra", ErrInvalidHeader, recordOfs)
	}

	pos := 0
	if binary.LittleEndian.Uint32(rec[cdhUncompSizeOfs:]) == max32 {
		pos += 8
	}
	if binary.LittleEndian.Uint32(rec[cdhCompSizeOfs:]) == max32 {
		pos += 8
	}
	if pos+8 > len(field) {
		return fmt.Errorf("%w: record at %d: short ZIP64 extra", ErrInvalidHeader, recordOfs)
	}

	binary.LittleEndian.PutUint64(field[pos:], value)
	return nil
}

// TruncateDirectory shrinks the central directory buffer to size bytes.
func (a *Archive) TruncateDirectory(size uint64) error {
	if a.state != stateWriting {
		return ErrWrongMode
	}

	if size > uint64(len(a.centralDir)) {
		return fmt.Errorf("%w: directory size %d exceeds buffer %d", ErrInvalidHeader, size, len(a.centralDir))
	}

	a.centralDir = a.centralDir[:size]
	return nil
}

// RebuildOffsetIndex replaces record offset index and entry count.
// Every offset must address a complete record in the current buffer.
func (a *Archive) RebuildOffsetIndex(offsets []uint64) error {
	if a.state != stateWriting {
		return ErrWrongMode
	}

	for _, ofs := range offsets {
		if _, err := a.record(ofs); err != nil {
			return err
		}
	}

	a.offsets = offsets
	a.names = nil
	return nil
}

// SetArchiveSize moves the append offset, used after data was shifted in place.
func (a *Archive) SetArchiveSize(size uint64) {
	a.archiveSize = size
}
