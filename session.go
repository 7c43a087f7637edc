// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/woozymasta/zipedit/internal/zipcodec"
)

// Archive is an open ZIP archive session bound to one file.
// Methods are safe for concurrent use; calls are serialized.
type Archive struct {
	// file is owned archive file handle.
	file *os.File
	// stream adapts file for codec block I/O.
	stream *streamIO
	// codec holds central directory state.
	codec *zipcodec.Archive
	// compress selects entries stored with compression; nil compresses all.
	compress *compressMatcher
	// log receives session debug records.
	log *slog.Logger
	// path is archive file path as passed to Open.
	path string
	// opts are defaulted session options.
	opts Options
	// origSize is file size observed at open.
	origSize uint64
	// mu serializes all session operations.
	mu sync.Mutex
	// mode is current open mode; ModeNone after Close.
	mode OpenMode
	// broken is set when deletion failed after archive bytes were changed.
	broken bool
	// readerMu guards reader and closing without waiting on mu.
	readerMu sync.Mutex
	// reader is the pipe of an OpenEntry stream still holding mu.
	reader *io.PipeReader
	// closing is set once Close started; later streams fail at once.
	closing bool
}

// Open opens archive at path in mode with default options.
func Open(path string, mode OpenMode) (*Archive, error) {
	return OpenWithOptions(path, mode, Options{})
}

// OpenWithOptions opens archive at path in mode using explicit options.
//
// ModeReadOnly and ModeUpdate index an existing archive. ModeCreate and
// ModeCreate64 truncate or create the file and start an empty archive;
// ModeCreate64 writes ZIP64 records regardless of size.
func OpenWithOptions(path string, mode OpenMode, opts Options) (*Archive, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var flag int
	switch mode {
	case ModeReadOnly:
		flag = os.O_RDONLY
	case ModeUpdate:
		flag = os.O_RDWR
	case ModeCreate, ModeCreate64:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("%w: open mode %s", ErrInvalidParameter, mode)
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty archive path", ErrInvalidParameter)
	}

	matcher, err := newCompressMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, flag, opts.FileMode) //nolint:gosec // caller selects archive path
	if err != nil {
		return nil, ioError(path, "cannot open archive", err)
	}

	a := &Archive{
		file:     f,
		stream:   newStreamIO(f),
		compress: matcher,
		log:      opts.Logger,
		path:     path,
		opts:     opts,
		mode:     mode,
	}

	if err := a.init(); err != nil {
		_ = f.Close()
		return nil, err
	}

	a.log.Debug("archive opened",
		slog.String("path", path),
		slog.String("mode", mode.String()),
		slog.Int("entries", a.codec.TotalFiles()),
		slog.Bool("zip64", a.codec.IsZip64()),
	)

	return a, nil
}

// init builds codec state for the open mode.
func (a *Archive) init() error {
	switch a.mode {
	case ModeCreate:
		a.codec = zipcodec.NewWriter(a.stream, false)
		return nil
	case ModeCreate64:
		a.codec = zipcodec.NewWriter(a.stream, true)
		return nil
	}

	size, err := a.file.Seek(0, io.SeekEnd)
	if err != nil {
		return ioError(a.path, "cannot obtain archive size", err)
	}

	codec, err := zipcodec.NewReader(a.stream, uint64(size)) //nolint:gosec // size is non-negative
	if err != nil {
		return codecError(err)
	}

	if a.mode == ModeUpdate {
		if err := codec.InitWriterFromReader(); err != nil {
			return codecError(err)
		}
	}

	a.codec = codec
	a.origSize = uint64(size) //nolint:gosec // size is non-negative
	return nil
}

// Close finalizes writable sessions, shrinks the file when deletions
// reclaimed space, and releases the file. Closing twice is a no-op.
// A session broken by failed deletion is released without finalizing.
// A pending OpenEntry stream is closed with ErrClosed first, so an
// abandoned reader cannot block Close.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}

	a.cancelEntryStream()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mode == ModeNone {
		return nil
	}

	var errs []error
	writable := a.mode != ModeReadOnly
	finalized := false
	if writable && !a.broken {
		if err := a.codec.Finalize(); err != nil {
			errs = append(errs, codecError(err))
		} else {
			finalized = true
		}
	}

	size := a.codec.ArchiveSize()
	a.codec.End()

	if finalized && size < a.origSize {
		if err := a.file.Truncate(int64(size)); err != nil { //nolint:gosec // size below original file size
			errs = append(errs, ioError(a.path, "cannot truncate archive", err))
		}
	}

	if writable && a.opts.Sync {
		if err := a.file.Sync(); err != nil {
			errs = append(errs, ioError(a.path, "cannot sync archive", err))
		}
	}

	if err := a.file.Close(); err != nil {
		errs = append(errs, ioError(a.path, "cannot close archive", err))
	}

	a.log.Debug("archive closed",
		slog.String("path", a.path),
		slog.String("mode", a.mode.String()),
		slog.Uint64("size", size),
		slog.Bool("broken", a.broken),
	)

	a.mode = ModeNone
	a.file = nil
	a.stream = nil
	a.codec = nil
	return errors.Join(errs...)
}

// IsZip64 reports whether the archive uses ZIP64 records.
// Legal in ModeReadOnly and ModeUpdate.
func (a *Archive) IsZip64() (bool, error) {
	if err := a.acquire("is zip64", readModes); err != nil {
		return false, err
	}
	defer a.mu.Unlock()

	return a.codec.IsZip64(), nil
}

// Mode returns current open mode; ModeNone once closed.
func (a *Archive) Mode() OpenMode {
	if a == nil {
		return ModeNone
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Path returns archive file path.
func (a *Archive) Path() string {
	if a == nil {
		return ""
	}

	return a.path
}

// acquire locks the session and checks op is legal in current mode.
// On success the caller must unlock a.mu.
func (a *Archive) acquire(op string, allowed []OpenMode) error {
	if a == nil {
		return fmt.Errorf("%w: %s: nil archive", ErrInvalidOperation, op)
	}

	a.mu.Lock()
	switch {
	case a.mode == ModeNone:
		a.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrInvalidOperation, op, ErrClosed)
	case a.broken:
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBrokenArchive, op)
	case !slices.Contains(allowed, a.mode):
		mode := a.mode
		a.mu.Unlock()
		return fmt.Errorf("%w: %s is not allowed in %s mode", ErrInvalidOperation, op, mode)
	}

	return nil
}
