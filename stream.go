// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"errors"
	"io"
	"math"
)

// streamIO adapts a seekable byte stream to the codec block interface.
// Writes require the stream to also implement io.Writer.
// Transfer failures surface only as short counts.
type streamIO struct {
	rs io.ReadSeeker
}

// newStreamIO wraps rs for offset-addressed codec I/O.
func newStreamIO(rs io.ReadSeeker) *streamIO {
	return &streamIO{rs: rs}
}

// ReadBlock seeks to off and reads until p is full or stream ends.
func (s *streamIO) ReadBlock(off uint64, p []byte) int {
	if s == nil || s.rs == nil || off > math.MaxInt64 {
		return 0
	}

	if _, err := s.rs.Seek(int64(off), io.SeekStart); err != nil {
		return 0
	}

	n, err := io.ReadFull(s.rs, p)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0
	}

	return n
}

// WriteBlock seeks to off and writes all of p.
func (s *streamIO) WriteBlock(off uint64, p []byte) int {
	if s == nil || s.rs == nil || off > math.MaxInt64 {
		return 0
	}

	w, ok := s.rs.(io.Writer)
	if !ok {
		return 0
	}

	if _, err := s.rs.Seek(int64(off), io.SeekStart); err != nil {
		return 0
	}

	n, err := w.Write(p)
	if err != nil || n != len(p) {
		return 0
	}

	return n
}
