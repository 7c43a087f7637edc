// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"fmt"
	"io"
)

// OpenEntry opens the named file entry for streaming reads.
// Decoding runs in background and holds the session until the returned
// stream is drained or closed, so close it before other session calls.
// Close on the session ends a pending stream with ErrClosed.
func (a *Archive) OpenEntry(name string) (io.ReadCloser, error) {
	if err := a.acquire("open entry", readModes); err != nil {
		return nil, err
	}

	entry, err := normalizeFileEntryName(name)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}

	if _, err := a.codec.Locate(entry); err != nil {
		a.mu.Unlock()
		return nil, codecError(err)
	}

	pr, pw := io.Pipe()
	a.trackEntryStream(pr)
	go a.streamEntry(entry, pr, pw)

	return pr, nil
}

// streamEntry decodes one entry into pipe writer and releases the session lock.
func (a *Archive) streamEntry(entry string, pr *io.PipeReader, dst *io.PipeWriter) {
	defer a.mu.Unlock()
	defer a.untrackEntryStream(pr)

	if _, err := a.extractLocked(entry, dst); err != nil {
		_ = dst.CloseWithError(fmt.Errorf("read entry %s: %w", entry, err))
		return
	}

	_ = dst.Close()
}

// trackEntryStream records pr as the stream holding the session lock.
// A stream opened while Close is pending is ended right away.
func (a *Archive) trackEntryStream(pr *io.PipeReader) {
	a.readerMu.Lock()
	defer a.readerMu.Unlock()

	if a.closing {
		_ = pr.CloseWithError(ErrClosed)
		return
	}

	a.reader = pr
}

// untrackEntryStream forgets pr once its decoder finished.
func (a *Archive) untrackEntryStream(pr *io.PipeReader) {
	a.readerMu.Lock()
	defer a.readerMu.Unlock()

	if a.reader == pr {
		a.reader = nil
	}
}

// cancelEntryStream ends the tracked stream with ErrClosed so its decoder
// returns and releases the session lock.
func (a *Archive) cancelEntryStream() {
	a.readerMu.Lock()
	defer a.readerMu.Unlock()

	a.closing = true
	if a.reader != nil {
		_ = a.reader.CloseWithError(ErrClosed)
		a.reader = nil
	}
}

// ReadEntry reads full decoded content of the named file entry.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	rc, err := a.OpenEntry(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}
