// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipcodec

import "errors"

// Codec diagnostics. Callers above the codec wrap these, never replace them.
var (
	// ErrNotArchive means the end of central directory record could not be found.
	ErrNotArchive = errors.New("not a ZIP archive")
	// ErrInvalidHeader means a local or central record is malformed.
	ErrInvalidHeader = errors.New("invalid header or archive is corrupted")
	// ErrUnsupportedMultiDisk means the archive spans several disks.
	ErrUnsupportedMultiDisk = errors.New("multi-disk archives are not supported")
	// ErrUnsupportedMethod means the entry compression method is unknown.
	ErrUnsupportedMethod = errors.New("unsupported compression method")
	// ErrUnsupportedEncryption means the entry is encrypted.
	ErrUnsupportedEncryption = errors.New("encrypted entries are not supported")
	// ErrCRCMismatch means decoded bytes do not match the stored CRC-32.
	ErrCRCMismatch = errors.New("CRC-32 check failed")
	// ErrSizeMismatch means decoded length does not match the stored size.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
	// ErrFileNotFound means no entry has the requested name.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileReadFailed means the stream returned fewer bytes than requested.
	ErrFileReadFailed = errors.New("file read failed")
	// ErrFileWriteFailed means the stream accepted fewer bytes than requested.
	ErrFileWriteFailed = errors.New("file write failed")
	// ErrWriteCallbackFailed means the extraction sink rejected decoded bytes.
	ErrWriteCallbackFailed = errors.New("write callback failed")
	// ErrArchiveTooLarge means the archive needs ZIP64 records but was not opened for them.
	ErrArchiveTooLarge = errors.New("archive is too large")
	// ErrTooManyFiles means entry count exceeds the classic 65535 record limit.
	ErrTooManyFiles = errors.New("too many files")
	// ErrDuplicateName means an entry with the same name already exists.
	ErrDuplicateName = errors.New("duplicate entry name")
	// ErrInvalidName means the entry name is empty or too long.
	ErrInvalidName = errors.New("invalid entry name")
	// ErrInvalidIndex means the entry index is out of range.
	ErrInvalidIndex = errors.New("invalid entry index")
	// ErrWrongMode means the operation is not valid for reading or writing state.
	ErrWrongMode = errors.New("invalid archive state for operation")
	// ErrFinalized means the archive was already finalized.
	ErrFinalized = errors.New("archive already finalized")
)
