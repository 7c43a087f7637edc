// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// DefaultLevel selects codec default compression level.
const DefaultLevel = -1

// payloadCopyBufferSize is chunk size for streaming source payloads.
const payloadCopyBufferSize = 64 * 1024

// errExpanded aborts a compression attempt that outgrew its source.
var errExpanded = errors.New("compressed payload is not smaller than source")

var payloadCopyBufferPool = sync.Pool{
	New: func() any {
		return new([payloadCopyBufferSize]byte)
	},
}

// Add streams size bytes from src into a new entry.
// Compressed output that does not shrink the payload is replaced with stored bytes.
func (a *Archive) Add(name string, src Stream, size uint64, modified time.Time, method Method, level int) error {
	if err := a.checkWritable(name); err != nil {
		return err
	}

	if !method.Supported() {
		return fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}

	if err := a.checkCapacity(len(name), size); err != nil {
		return err
	}

	if level == 0 {
		method = Store
	}

	dosDate, dosTime := timeToDOS(modified)
	hdr := localEntry{
		name:    name,
		flags:   nameFlags(name),
		method:  method,
		dosDate: dosDate,
		dosTime: dosTime,
	}

	lhOfs := a.archiveSize
	if err := writeFull(a.s, lhOfs, hdr.encode(a.zip64)); err != nil {
		return err
	}

	dataOfs := lhOfs + uint64(hdr.size(a.zip64))
	crc, compSize, usedMethod, err := a.writePayload(src, size, dataOfs, method, level)
	if err != nil {
		return err
	}

	hdr.method = usedMethod
	hdr.crc = crc
	hdr.compSize = compSize
	hdr.uncompSize = size
	if err := writeFull(a.s, lhOfs, hdr.encode(a.zip64)); err != nil {
		return err
	}

	a.appendCentral(hdr, lhOfs, unixFileMode<<16)
	a.archiveSize = dataOfs + compSize
	return nil
}

// AddEmpty writes a zero-length entry, used for directory markers.
func (a *Archive) AddEmpty(name string, modified time.Time) error {
	if err := a.checkWritable(name); err != nil {
		return err
	}

	if err := a.checkCapacity(len(name), 0); err != nil {
		return err
	}

	dosDate, dosTime := timeToDOS(modified)
	hdr := localEntry{
		name:    name,
		flags:   nameFlags(name),
		method:  Store,
		dosDate: dosDate,
		dosTime: dosTime,
	}

	lhOfs := a.archiveSize
	raw := hdr.encode(a.zip64)
	if err := writeFull(a.s, lhOfs, raw); err != nil {
		return err
	}

	attr := uint32(unixFileMode) << 16
	if name[len(name)-1] == '/' {
		attr = uint32(unixDirMode)<<16 | dosDirectoryAttr
	}

	a.appendCentral(hdr, lhOfs, attr)
	a.archiveSize = lhOfs + uint64(len(raw))
	return nil
}

// Finalize writes central directory and end records at the append offset.
func (a *Archive) Finalize() error {
	switch a.state {
	case stateWriting:
	case stateFinalized:
		return ErrFinalized
	default:
		return ErrWrongMode
	}

	cdOfs := a.archiveSize
	cdSize := uint64(len(a.centralDir))
	records := uint64(len(a.offsets))
	if !a.zip64 && (records > max16 || cdOfs+cdSize+endSize > max32) {
		return ErrArchiveTooLarge
	}

	if err := writeFull(a.s, cdOfs, a.centralDir); err != nil {
		return err
	}

	pos := cdOfs + cdSize
	if a.zip64 {
		tail := make([]byte, end64Size+end64LocatorSize)
		binary.LittleEndian.PutUint32(tail[0:], end64Signature)
		binary.LittleEndian.PutUint64(tail[4:], end64Size-12)
		binary.LittleEndian.PutUint16(tail[12:], versionMadeBy)
		binary.LittleEndian.PutUint16(tail[14:], versionZip64)
		binary.LittleEndian.PutUint64(tail[24:], records)
		binary.LittleEndian.PutUint64(tail[32:], records)
		binary.LittleEndian.PutUint64(tail[40:], cdSize)
		binary.LittleEndian.PutUint64(tail[48:], cdOfs)

		loc := tail[end64Size:]
		binary.LittleEndian.PutUint32(loc[0:], end64LocatorSignature)
		binary.LittleEndian.PutUint64(loc[8:], pos)
		binary.LittleEndian.PutUint32(loc[16:], 1)

		if err := writeFull(a.s, pos, tail); err != nil {
			return err
		}

		pos += uint64(len(tail))
	}

	var end [endSize]byte
	binary.LittleEndian.PutUint32(end[0:], endSignature)
	binary.LittleEndian.PutUint16(end[8:], clamp16(records, a.zip64))
	binary.LittleEndian.PutUint16(end[10:], clamp16(records, a.zip64))
	binary.LittleEndian.PutUint32(end[12:], clamp32(cdSize, a.zip64))
	binary.LittleEndian.PutUint32(end[16:], clamp32(cdOfs, a.zip64))
	if err := writeFull(a.s, pos, end[:]); err != nil {
		return err
	}

	a.archiveSize = pos + endSize
	a.state = stateFinalized
	return nil
}

// checkWritable validates state and name for a new entry.
func (a *Archive) checkWritable(name string) error {
	switch a.state {
	case stateWriting:
	case stateFinalized:
		return ErrFinalized
	default:
		return ErrWrongMode
	}

	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	_, err := a.Locate(name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	case errors.Is(err, ErrFileNotFound):
		return nil
	default:
		return err
	}
}

// checkCapacity rejects entries that would overflow classic 32-bit records.
func (a *Archive) checkCapacity(nameLen int, size uint64) error {
	if a.zip64 {
		return nil
	}

	if len(a.offsets)+1 > max16 {
		return ErrTooManyFiles
	}

	need := a.archiveSize +
		localHeaderSize + uint64(nameLen) + size +
		uint64(len(a.centralDir)) + centralHeaderSize + uint64(nameLen) +
		endSize
	if need > max32 {
		return fmt.Errorf("%w: entry of %d bytes needs ZIP64", ErrArchiveTooLarge, size)
	}

	return nil
}

// writePayload writes entry data at dataOfs and returns CRC, stored size and final method.
func (a *Archive) writePayload(src Stream, size uint64, dataOfs uint64, method Method, level int) (uint32, uint64, Method, error) {
	arr := payloadCopyBufferPool.Get().(*[payloadCopyBufferSize]byte) //nolint:forcetypeassert // pool holds fixed-size buffers
	defer payloadCopyBufferPool.Put(arr)

	if method != Store && size > 0 {
		crc, compSize, err := a.compressPayload(src, size, dataOfs, method, level, arr[:])
		if err == nil {
			return crc, compSize, method, nil
		}
		if !errors.Is(err, errExpanded) {
			return 0, 0, method, err
		}
	}

	crc := crc32.NewIEEE()
	out := &offsetWriter{s: a.s, off: dataOfs}
	in := &sectionReader{s: src, remain: size}
	if _, err := io.CopyBuffer(io.MultiWriter(out, crc), in, arr[:]); err != nil {
		return 0, 0, Store, err
	}

	return crc.Sum32(), size, Store, nil
}

// compressPayload streams src through method encoder into archive stream.
func (a *Archive) compressPayload(src Stream, size uint64, dataOfs uint64, method Method, level int, buf []byte) (uint32, uint64, error) {
	out := &offsetWriter{s: a.s, off: dataOfs, limit: size}
	enc, err := newCompressor(method, out, level)
	if err != nil {
		return 0, 0, err
	}

	crc := crc32.NewIEEE()
	in := io.TeeReader(&sectionReader{s: src, remain: size}, crc)
	if _, err := io.CopyBuffer(enc, in, buf); err != nil {
		_ = enc.Close()
		return 0, 0, err
	}

	if err := enc.Close(); err != nil {
		return 0, 0, err
	}

	return crc.Sum32(), out.written, nil
}

// newCompressor returns encoder for method writing to w.
func newCompressor(method Method, w io.Writer, level int) (io.WriteCloser, error) {
	switch method {
	case Deflate:
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			level = flate.DefaultCompression
		}

		return flate.NewWriter(w, level)
	case Zstd:
		encLevel := zstd.SpeedDefault
		if level > 0 {
			encLevel = zstd.EncoderLevelFromZstd(level)
		}

		return zstd.NewWriter(w, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}
}

// appendCentral appends central directory record for a written local entry.
func (a *Archive) appendCentral(hdr localEntry, lhOfs uint64, externalAttr uint32) {
	var extra []byte
	compSize := uint32(hdr.compSize)     //nolint:gosec // checked by checkCapacity unless ZIP64
	uncompSize := uint32(hdr.uncompSize) //nolint:gosec // checked by checkCapacity unless ZIP64
	localOfs := uint32(lhOfs)            //nolint:gosec // checked by checkCapacity unless ZIP64
	if a.zip64 {
		extra = make([]byte, 4+24)
		binary.LittleEndian.PutUint16(extra[0:], zip64ExtraID)
		binary.LittleEndian.PutUint16(extra[2:], 24)
		binary.LittleEndian.PutUint64(extra[4:], hdr.uncompSize)
		binary.LittleEndian.PutUint64(extra[12:], hdr.compSize)
		binary.LittleEndian.PutUint64(extra[20:], lhOfs)
		compSize, uncompSize, localOfs = max32, max32, max32
	}

	rec := make([]byte, centralHeaderSize+len(hdr.name)+len(extra))
	binary.LittleEndian.PutUint32(rec[0:], centralHeaderSignature)
	binary.LittleEndian.PutUint16(rec[4:], versionMadeBy)
	binary.LittleEndian.PutUint16(rec[6:], hdr.version(a.zip64))
	binary.LittleEndian.PutUint16(rec[cdhFlagsOfs:], hdr.flags)
	binary.LittleEndian.PutUint16(rec[cdhMethodOfs:], uint16(hdr.method))
	binary.LittleEndian.PutUint16(rec[cdhTimeOfs:], hdr.dosTime)
	binary.LittleEndian.PutUint16(rec[cdhDateOfs:], hdr.dosDate)
	binary.LittleEndian.PutUint32(rec[cdhCRCOfs:], hdr.crc)
	binary.LittleEndian.PutUint32(rec[cdhCompSizeOfs:], compSize)
	binary.LittleEndian.PutUint32(rec[cdhUncompSizeOfs:], uncompSize)
	binary.LittleEndian.PutUint16(rec[cdhNameLenOfs:], uint16(len(hdr.name))) //nolint:gosec // validName bounds length
	binary.LittleEndian.PutUint16(rec[cdhExtraLenOfs:], uint16(len(extra)))   //nolint:gosec // fixed size
	binary.LittleEndian.PutUint32(rec[cdhExternalAttrOfs:], externalAttr)
	binary.LittleEndian.PutUint32(rec[cdhLocalHeaderOfs:], localOfs)
	copy(rec[centralHeaderSize:], hdr.name)
	copy(rec[centralHeaderSize+len(hdr.name):], extra)

	if a.names != nil {
		a.names[hdr.name] = len(a.offsets)
	}

	a.offsets = append(a.offsets, uint64(len(a.centralDir)))
	a.centralDir = append(a.centralDir, rec...)
}

// localEntry carries field values shared by local and central records.
type localEntry struct {
	name       string
	compSize   uint64
	uncompSize uint64
	crc        uint32
	flags      uint16
	method     Method
	dosDate    uint16
	dosTime    uint16
}

// version returns "version needed to extract" for entry.
func (e *localEntry) version(zip64 bool) uint16 {
	switch {
	case e.method == Zstd:
		return versionZstd
	case zip64:
		return versionZip64
	default:
		return versionDefault
	}
}

// size returns encoded local header length.
func (e *localEntry) size(zip64 bool) int {
	n := localHeaderSize + len(e.name)
	if zip64 {
		n += 4 + 16
	}

	return n
}

// encode builds local header bytes.
func (e *localEntry) encode(zip64 bool) []byte {
	buf := make([]byte, e.size(zip64))
	binary.LittleEndian.PutUint32(buf[0:], localHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:], e.version(zip64))
	binary.LittleEndian.PutUint16(buf[lfhFlagsOfs:], e.flags)
	binary.LittleEndian.PutUint16(buf[lfhMethodOfs:], uint16(e.method))
	binary.LittleEndian.PutUint16(buf[10:], e.dosTime)
	binary.LittleEndian.PutUint16(buf[12:], e.dosDate)
	binary.LittleEndian.PutUint32(buf[lfhCRCOfs:], e.crc)
	binary.LittleEndian.PutUint16(buf[lfhNameLenOfs:], uint16(len(e.name))) //nolint:gosec // validName bounds length
	copy(buf[localHeaderSize:], e.name)

	if zip64 {
		binary.LittleEndian.PutUint32(buf[lfhCompSizeOfs:], max32)
		binary.LittleEndian.PutUint32(buf[lfhUncompSizeOfs:], max32)
		binary.LittleEndian.PutUint16(buf[lfhExtraLenOfs:], 4+16)

		extra := buf[localHeaderSize+len(e.name):]
		binary.LittleEndian.PutUint16(extra[0:], zip64ExtraID)
		binary.LittleEndian.PutUint16(extra[2:], 16)
		binary.LittleEndian.PutUint64(extra[4:], e.uncompSize)
		binary.LittleEndian.PutUint64(extra[12:], e.compSize)
		return buf
	}

	binary.LittleEndian.PutUint32(buf[lfhCompSizeOfs:], uint32(e.compSize))     //nolint:gosec // checked by checkCapacity
	binary.LittleEndian.PutUint32(buf[lfhUncompSizeOfs:], uint32(e.uncompSize)) //nolint:gosec // checked by checkCapacity
	return buf
}

// clamp16 returns v or the ZIP64 sentinel when archive uses ZIP64 records.
func clamp16(v uint64, zip64 bool) uint16 {
	if zip64 || v > max16 {
		return max16
	}

	return uint16(v)
}

// clamp32 returns v or the ZIP64 sentinel when archive uses ZIP64 records.
func clamp32(v uint64, zip64 bool) uint32 {
	if zip64 || v > max32 {
		return max32
	}

	return uint32(v)
}
