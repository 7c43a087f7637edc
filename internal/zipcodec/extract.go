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

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// extractCopyBufferSize is the decoded copy chunk used while extracting.
const extractCopyBufferSize = 64 * 1024

// zstdDecompressor is shared decoder factory for method 93 payloads.
var zstdDecompressor = zstd.ZipDecompressor()

// Extract decodes entry at index into w and verifies size and CRC-32.
func (a *Archive) Extract(index int, w io.Writer) error {
	if a.state != stateReading && a.state != stateWriting {
		return ErrWrongMode
	}

	st, err := a.Stat(index)
	if err != nil {
		return err
	}

	if st.Encrypted() {
		return fmt.Errorf("%w: %q", ErrUnsupportedEncryption, st.Name)
	}

	if !st.Method.Supported() {
		return fmt.Errorf("%w: %q uses method %d", ErrUnsupportedMethod, st.Name, st.Method)
	}

	dataOfs, err := a.localDataOffset(st)
	if err != nil {
		return err
	}

	src := &sectionReader{s: a.s, off: dataOfs, remain: st.CompressedSize}
	dec, err := newDecompressor(st.Method, src)
	if err != nil {
		return err
	}
	defer func() { _ = dec.Close() }()

	crc := crc32.NewIEEE()
	out := &sinkWriter{w: w}
	buf := make([]byte, extractCopyBufferSize)
	written, err := io.CopyBuffer(io.MultiWriter(out, crc), io.LimitReader(dec, int64(st.UncompressedSize)+1), buf) //nolint:gosec // sizes bounded by archive
	if err != nil {
		if out.err != nil {
			return fmt.Errorf("%w: extract %q: %w", ErrWriteCallbackFailed, st.Name, out.err)
		}

		if errors.Is(err, ErrFileReadFailed) {
			return fmt.Errorf("extract %q: %w", st.Name, err)
		}

		return fmt.Errorf("%w: extract %q: %w", ErrInvalidHeader, st.Name, err)
	}

	if uint64(written) != st.UncompressedSize { //nolint:gosec // written is non-negative
		return fmt.Errorf("%w: %q: got %d bytes, want %d", ErrSizeMismatch, st.Name, written, st.UncompressedSize)
	}

	if crc.Sum32() != st.CRC32 {
		return fmt.Errorf("%w: %q", ErrCRCMismatch, st.Name)
	}

	return nil
}

// localDataOffset validates local header of entry and returns payload offset.
func (a *Archive) localDataOffset(st FileStat) (uint64, error) {
	var hdr [localHeaderSize]byte
	if st.LocalHeaderOffset+localHeaderSize > a.archiveSize {
		return 0, fmt.Errorf("%w: %q: local header out of bounds", ErrInvalidHeader, st.Name)
	}

	if err := readFull(a.s, st.LocalHeaderOffset, hdr[:]); err != nil {
		return 0, err
	}

	if binary.LittleEndian.Uint32(hdr[:]) != localHeaderSignature {
		return 0, fmt.Errorf("%w: %q: bad local header signature", ErrInvalidHeader, st.Name)
	}

	dataOfs := st.LocalHeaderOffset + localHeaderSize +
		uint64(binary.LittleEndian.Uint16(hdr[lfhNameLenOfs:])) +
		uint64(binary.LittleEndian.Uint16(hdr[lfhExtraLenOfs:]))
	if dataOfs+st.CompressedSize > a.archiveSize {
		return 0, fmt.Errorf("%w: %q: payload out of bounds", ErrInvalidHeader, st.Name)
	}

	return dataOfs, nil
}

// sinkWriter remembers the first error returned by caller sink.
type sinkWriter struct {
	w   io.Writer
	err error
}

// Write implements io.Writer.
func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil && s.err == nil {
		s.err = err
	}

	return n, err
}

// newDecompressor returns decoder for method reading from r.
func newDecompressor(method Method, r io.Reader) (io.ReadCloser, error) {
	switch method {
	case Store:
		return io.NopCloser(r), nil
	case Deflate:
		return flate.NewReader(r), nil
	case Zstd:
		return zstdDecompressor(r), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}
}
