// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

// Package zipcodec is a small ZIP record engine: it indexes and writes the
// central directory in memory, streams entry payloads through store, deflate,
// or zstd, and exposes its raw directory buffer for in-place editing.
package zipcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"
)

// state is archive engine lifecycle state.
type state uint8

const (
	stateInvalid state = iota
	stateReading
	stateWriting
	stateFinalized
)

// Archive is ZIP engine state bound to one Stream.
type Archive struct {
	s Stream
	// centralDir holds raw central directory records back to back.
	centralDir []byte
	// offsets holds start offset of every record inside centralDir.
	offsets []uint64
	// names caches name to index lookups; nil when stale.
	names map[string]int
	// archiveSize is end of valid data; in writing state it is the next append offset.
	archiveSize uint64
	// centralDirOfs is central directory offset found on read.
	centralDirOfs uint64
	state         state
	zip64         bool
}

// FileStat describes one central directory record.
type FileStat struct {
	// Modified is stored modification time.
	Modified time.Time
	// Name is entry name exactly as stored.
	Name string
	// Index is record position in directory order.
	Index int
	// CentralDirOffset is record offset inside raw central directory buffer.
	CentralDirOffset uint64
	// LocalHeaderOffset is absolute offset of entry local header.
	LocalHeaderOffset uint64
	// CompressedSize is stored payload size.
	CompressedSize uint64
	// UncompressedSize is decoded payload size.
	UncompressedSize uint64
	// CRC32 is stored checksum of decoded payload.
	CRC32 uint32
	// ExternalAttr is host-dependent attribute word.
	ExternalAttr uint32
	// Flags is general purpose bit flag.
	Flags uint16
	// Method is compression method id.
	Method Method
	// IsDirectory reports directory marker entries.
	IsDirectory bool
}

// Encrypted reports whether the encryption flag is set.
func (fs *FileStat) Encrypted() bool {
	return fs.Flags&flagEncrypted != 0
}

// NewWriter initializes an empty archive for writing at offset zero.
func NewWriter(s Stream, zip64 bool) *Archive {
	return &Archive{
		s:       s,
		state:   stateWriting,
		zip64:   zip64,
		names:   map[string]int{},
		offsets: make([]uint64, 0, 16),
	}
}

// NewReader indexes the central directory of an archive of given size.
func NewReader(s Stream, size uint64) (*Archive, error) {
	a := &Archive{s: s, archiveSize: size}
	if err := a.readCentralDir(); err != nil {
		return nil, err
	}

	a.state = stateReading
	return a, nil
}

// InitWriterFromReader switches a reading archive to append mode.
// New entries start at the old central directory offset.
func (a *Archive) InitWriterFromReader() error {
	if a.state != stateReading {
		return ErrWrongMode
	}

	a.archiveSize = a.centralDirOfs
	a.state = stateWriting
	return nil
}

// End releases in-memory directory state.
func (a *Archive) End() {
	a.centralDir = nil
	a.offsets = nil
	a.names = nil
	a.state = stateInvalid
}

// IsZip64 reports whether archive uses ZIP64 end records.
func (a *Archive) IsZip64() bool {
	return a.zip64
}

// TotalFiles returns number of central directory records.
func (a *Archive) TotalFiles() int {
	return len(a.offsets)
}

// ArchiveSize returns current logical archive size.
func (a *Archive) ArchiveSize() uint64 {
	return a.archiveSize
}

// Writing reports whether archive accepts new entries.
func (a *Archive) Writing() bool {
	return a.state == stateWriting
}

// Locate returns directory index of exact name.
func (a *Archive) Locate(name string) (int, error) {
	if a.state == stateInvalid {
		return 0, ErrWrongMode
	}

	if a.names == nil {
		a.names = make(map[string]int, len(a.offsets))
		for i := range a.offsets {
			st, err := a.Stat(i)
			if err != nil {
				a.names = nil
				return 0, err
			}

			if _, exists := a.names[st.Name]; !exists {
				a.names[st.Name] = i
			}
		}
	}

	idx, ok := a.names[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}

	return idx, nil
}

// Stat decodes central directory record at index.
func (a *Archive) Stat(index int) (FileStat, error) {
	if index < 0 || index >= len(a.offsets) {
		return FileStat{}, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	ofs := a.offsets[index]
	rec, err := a.record(ofs)
	if err != nil {
		return FileStat{}, err
	}

	nameLen := int(binary.LittleEndian.Uint16(rec[cdhNameLenOfs:]))
	extraLen := int(binary.LittleEndian.Uint16(rec[cdhExtraLenOfs:]))
	name := string(rec[centralHeaderSize : centralHeaderSize+nameLen])
	extra := rec[centralHeaderSize+nameLen : centralHeaderSize+nameLen+extraLen]

	st := FileStat{
		Name:              name,
		Index:             index,
		CentralDirOffset:  ofs,
		Flags:             binary.LittleEndian.Uint16(rec[cdhFlagsOfs:]),
		Method:            Method(binary.LittleEndian.Uint16(rec[cdhMethodOfs:])),
		CRC32:             binary.LittleEndian.Uint32(rec[cdhCRCOfs:]),
		CompressedSize:    uint64(binary.LittleEndian.Uint32(rec[cdhCompSizeOfs:])),
		UncompressedSize:  uint64(binary.LittleEndian.Uint32(rec[cdhUncompSizeOfs:])),
		LocalHeaderOffset: uint64(binary.LittleEndian.Uint32(rec[cdhLocalHeaderOfs:])),
		ExternalAttr:      binary.LittleEndian.Uint32(rec[cdhExternalAttrOfs:]),
		Modified: dosToTime(
			binary.LittleEndian.Uint16(rec[cdhDateOfs:]),
			binary.LittleEndian.Uint16(rec[cdhTimeOfs:]),
		),
	}

	needUncomp := st.UncompressedSize == max32
	needComp := st.CompressedSize == max32
	needOffset := st.LocalHeaderOffset == max32
	if needUncomp || needComp || needOffset {
		field, ok := findExtra(extra, zip64ExtraID)
		if !ok {
			return FileStat{}, fmt.Errorf("%w: %q: missing ZIP64 extra", ErrInvalidHeader, name)
		}

		if needUncomp {
			if len(field) < 8 {
				return FileStat{}, fmt.Errorf("%w: %q: short ZIP64 extra", ErrInvalidHeader, name)
			}
			st.UncompressedSize = binary.LittleEndian.Uint64(field)
			field = field[8:]
		}
		if needComp {
			if len(field) < 8 {
				return FileStat{}, fmt.Errorf("%w: %q: short ZIP64 extra", ErrInvalidHeader, name)
			}
			st.CompressedSize = binary.LittleEndian.Uint64(field)
			field = field[8:]
		}
		if needOffset {
			if len(field) < 8 {
				return FileStat{}, fmt.Errorf("%w: %q: short ZIP64 extra", ErrInvalidHeader, name)
			}
			st.LocalHeaderOffset = binary.LittleEndian.Uint64(field)
		}
	}

	st.IsDirectory = len(name) > 0 && name[len(name)-1] == '/'
	if !st.IsDirectory && st.ExternalAttr&dosDirectoryAttr != 0 && st.UncompressedSize == 0 {
		st.IsDirectory = true
	}

	return st, nil
}

// record returns raw central record starting at buffer offset.
func (a *Archive) record(ofs uint64) ([]byte, error) {
	if ofs+centralHeaderSize > uint64(len(a.centralDir)) {
		return nil, fmt.Errorf("%w: central record at %d out of bounds", ErrInvalidHeader, ofs)
	}

	rec := a.centralDir[ofs:]
	if binary.LittleEndian.Uint32(rec) != centralHeaderSignature {
		return nil, fmt.Errorf("%w: bad central record signature at %d", ErrInvalidHeader, ofs)
	}

	size := uint64(centralHeaderSize) +
		uint64(binary.LittleEndian.Uint16(rec[cdhNameLenOfs:])) +
		uint64(binary.LittleEndian.Uint16(rec[cdhExtraLenOfs:])) +
		uint64(binary.LittleEndian.Uint16(rec[cdhCommentLenOfs:]))
	if ofs+size > uint64(len(a.centralDir)) {
		return nil, fmt.Errorf("%w: central record at %d truncated", ErrInvalidHeader, ofs)
	}

	return rec[:size], nil
}

// readCentralDir locates end records and loads the raw central directory.
func (a *Archive) readCentralDir() error {
	if a.archiveSize < endSize {
		return ErrNotArchive
	}

	endOfs, end, err := a.findEnd()
	if err != nil {
		return err
	}

	diskNum := binary.LittleEndian.Uint16(end[4:])
	cdDisk := binary.LittleEndian.Uint16(end[6:])
	diskRecords := uint64(binary.LittleEndian.Uint16(end[8:]))
	records := uint64(binary.LittleEndian.Uint16(end[10:]))
	cdSize := uint64(binary.LittleEndian.Uint32(end[12:]))
	cdOfs := uint64(binary.LittleEndian.Uint32(end[16:]))

	if endOfs >= end64LocatorSize {
		var loc [end64LocatorSize]byte
		if err := readFull(a.s, endOfs-end64LocatorSize, loc[:]); err != nil {
			return err
		}

		if binary.LittleEndian.Uint32(loc[:]) == end64LocatorSignature {
			e64, err := a.readEnd64(binary.LittleEndian.Uint64(loc[8:]))
			if err != nil {
				return err
			}

			a.zip64 = true
			diskNum = uint16(min(binary.LittleEndian.Uint32(e64[16:]), max16))  //nolint:gosec // clamped
			cdDisk = uint16(min(binary.LittleEndian.Uint32(e64[20:]), max16))   //nolint:gosec // clamped
			diskRecords = binary.LittleEndian.Uint64(e64[24:])
			records = binary.LittleEndian.Uint64(e64[32:])
			cdSize = binary.LittleEndian.Uint64(e64[40:])
			cdOfs = binary.LittleEndian.Uint64(e64[48:])
		}
	}

	if diskNum != 0 || cdDisk != 0 || diskRecords != records {
		return ErrUnsupportedMultiDisk
	}

	if cdOfs+cdSize < cdOfs || cdOfs+cdSize > a.archiveSize {
		return fmt.Errorf("%w: central directory out of bounds", ErrInvalidHeader)
	}

	if records > cdSize/centralHeaderSize+1 {
		return fmt.Errorf("%w: record count %d does not fit directory", ErrInvalidHeader, records)
	}

	a.centralDirOfs = cdOfs
	a.centralDir = make([]byte, cdSize)
	if err := readFull(a.s, cdOfs, a.centralDir); err != nil {
		return err
	}

	a.offsets = make([]uint64, 0, records)
	var ofs uint64
	for ofs < cdSize {
		rec, err := a.record(ofs)
		if err != nil {
			return err
		}

		if binary.LittleEndian.Uint16(rec[cdhDiskStartOfs:]) != 0 {
			return ErrUnsupportedMultiDisk
		}

		a.offsets = append(a.offsets, ofs)
		ofs += uint64(len(rec))
	}

	if uint64(len(a.offsets)) != records {
		return fmt.Errorf("%w: found %d records, end record says %d", ErrInvalidHeader, len(a.offsets), records)
	}

	return nil
}

// findEnd scans archive tail backwards for the end of central directory record.
func (a *Archive) findEnd() (uint64, []byte, error) {
	tailLen := min(a.archiveSize, uint64(endSize+maxCommentSize))
	tailOfs := a.archiveSize - tailLen

	tail := make([]byte, tailLen)
	if err := readFull(a.s, tailOfs, tail); err != nil {
		return 0, nil, err
	}

	sig := []byte{'P', 'K', 5, 6}
	for i := len(tail) - endSize; i >= 0; {
		idx := bytes.LastIndex(tail[:i+len(sig)], sig)
		if idx < 0 {
			break
		}

		commentLen := int(binary.LittleEndian.Uint16(tail[idx+20:]))
		if idx+endSize+commentLen <= len(tail) {
			return tailOfs + uint64(idx), tail[idx : idx+endSize], nil //nolint:gosec // idx is non-negative
		}

		i = idx - 1
	}

	return 0, nil, ErrNotArchive
}

// readEnd64 reads and validates ZIP64 end of central directory record.
func (a *Archive) readEnd64(ofs uint64) ([]byte, error) {
	if ofs+end64Size > a.archiveSize {
		return nil, fmt.Errorf("%w: ZIP64 end record out of bounds", ErrInvalidHeader)
	}

	buf := make([]byte, end64Size)
	if err := readFull(a.s, ofs, buf); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint32(buf) != end64Signature {
		return nil, fmt.Errorf("%w: bad ZIP64 end record signature", ErrInvalidHeader)
	}

	return buf, nil
}

// findExtra returns payload of extra field with given id.
func findExtra(extra []byte, id uint16) ([]byte, bool) {
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if 4+size > len(extra) {
			return nil, false
		}

		if tag == id {
			return extra[4 : 4+size], true
		}

		extra = extra[4+size:]
	}

	return nil, false
}

// validName reports whether name fits a ZIP name field.
func validName(name string) bool {
	return name != "" && len(name) <= max16
}

// nameFlags returns general purpose flags implied by entry name encoding.
func nameFlags(name string) uint16 {
	for i := 0; i < len(name); i++ {
		if name[i] >= utf8.RuneSelf {
			if utf8.ValidString(name) {
				return flagUTF8
			}

			return 0
		}
	}

	return 0
}
