// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipcodec

import "io"

// Stream is offset-addressed byte storage used for all archive I/O.
// Implementations report transferred byte count and never fail loudly:
// a short or zero count is the only failure signal.
type Stream interface {
	// ReadBlock reads up to len(p) bytes at off and returns bytes read.
	ReadBlock(off uint64, p []byte) int
	// WriteBlock writes p at off and returns len(p) on success, 0 otherwise.
	WriteBlock(off uint64, p []byte) int
}

// readFull reads exactly len(p) bytes at off or fails with ErrFileReadFailed.
func readFull(s Stream, off uint64, p []byte) error {
	if len(p) == 0 {
		return nil
	}

	if n := s.ReadBlock(off, p); n != len(p) {
		return ErrFileReadFailed
	}

	return nil
}

// writeFull writes all of p at off or fails with ErrFileWriteFailed.
func writeFull(s Stream, off uint64, p []byte) error {
	if len(p) == 0 {
		return nil
	}

	if n := s.WriteBlock(off, p); n != len(p) {
		return ErrFileWriteFailed
	}

	return nil
}

// sectionReader exposes [off, off+remain) of a Stream as io.Reader.
type sectionReader struct {
	s      Stream
	off    uint64
	remain uint64
}

// Read implements io.Reader.
func (r *sectionReader) Read(p []byte) (int, error) {
	if r.remain == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > r.remain {
		p = p[:r.remain]
	}

	n := r.s.ReadBlock(r.off, p)
	if n <= 0 {
		return 0, ErrFileReadFailed
	}

	r.off += uint64(n)
	r.remain -= uint64(n)
	return n, nil
}

// offsetWriter appends sequential writes to a Stream starting at off.
// A non-zero limit makes writes fail with errExpanded once output would reach it.
type offsetWriter struct {
	s       Stream
	off     uint64
	written uint64
	limit   uint64
}

// Write implements io.Writer.
func (w *offsetWriter) Write(p []byte) (int, error) {
	if w.limit > 0 && w.written+uint64(len(p)) >= w.limit {
		return 0, errExpanded
	}

	if err := writeFull(w.s, w.off+w.written, p); err != nil {
		return 0, err
	}

	w.written += uint64(len(p))
	return len(p), nil
}
