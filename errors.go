// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations. Use errors.Is in callers.
var (
	// ErrInvalidParameter means a name, selection, mode, or option is empty or ill-formed.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidOperation means the operation is not legal in the current open mode.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrUnsupportedFeature is reserved for container features the session does not handle.
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrIO means opening, seeking, reading, writing, or truncating a file failed.
	ErrIO = errors.New("I/O error")
	// ErrCodec wraps diagnostics reported by the ZIP codec engine.
	ErrCodec = errors.New("codec error")
	// ErrClosed means the archive session is already closed.
	ErrClosed = errors.New("archive already closed")
	// ErrBrokenArchive means an in-place deletion failed midway and archive consistency is lost.
	ErrBrokenArchive = errors.New("archive left inconsistent by failed deletion")
	// ErrInvalidCompressPattern means one or more compression rules are invalid.
	ErrInvalidCompressPattern = errors.New("invalid compress rules")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrExtractPathOutsideRoot means resolved extraction path escapes destination root.
	ErrExtractPathOutsideRoot = errors.New("extract path escapes destination root")
)

// ioError reports failed file operation with offending path.
func ioError(path string, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s: %q", ErrIO, msg, path)
	}

	return fmt.Errorf("%w: %s: %q: %w", ErrIO, msg, path, err)
}

// codecError wraps codec engine diagnostic without hiding it from errors.Is.
func codecError(err error) error {
	return fmt.Errorf("%w: %w", ErrCodec, err)
}
