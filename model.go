// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/zipedit/internal/zipcodec"
)

// Default session tuning values.
const (
	DefaultLevel          = 6
	DefaultMoveBufferSize = 64 * 1024
	DefaultFileMode       = os.FileMode(0o644)
)

// OpenMode selects archive session lifecycle.
type OpenMode uint8

// Archive open modes.
const (
	// ModeNone is the zero mode; passing it to Open is an error. Closed sessions report it.
	ModeNone OpenMode = iota
	// ModeReadOnly reads and indexes an existing archive.
	ModeReadOnly
	// ModeUpdate reads an existing archive and allows insertion and deletion.
	ModeUpdate
	// ModeCreate truncates or creates a classic archive.
	ModeCreate
	// ModeCreate64 truncates or creates an archive with ZIP64 records.
	ModeCreate64
)

// String returns lower-case mode name.
func (m OpenMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeReadOnly:
		return "read_only"
	case ModeUpdate:
		return "update"
	case ModeCreate:
		return "create"
	case ModeCreate64:
		return "create64"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Mode groups accepted by session operations.
var (
	readModes   = []OpenMode{ModeReadOnly, ModeUpdate}
	writeModes  = []OpenMode{ModeUpdate, ModeCreate, ModeCreate64}
	updateModes = []OpenMode{ModeUpdate}
)

// CompressionMethod names payload encoding for inserted entries.
type CompressionMethod string

// Supported compression methods.
const (
	// MethodDeflate is classic deflate (ZIP method 8).
	MethodDeflate CompressionMethod = "deflate"
	// MethodZstd is Zstandard (ZIP method 93).
	MethodZstd CompressionMethod = "zstd"
	// MethodStore writes payload bytes unchanged (ZIP method 0).
	MethodStore CompressionMethod = "store"
)

// codec maps method name to ZIP method id.
func (m CompressionMethod) codec() (zipcodec.Method, bool) {
	switch m {
	case MethodDeflate:
		return zipcodec.Deflate, true
	case MethodZstd:
		return zipcodec.Zstd, true
	case MethodStore:
		return zipcodec.Store, true
	default:
		return 0, false
	}
}

// methodName maps ZIP method id back to method name.
func methodName(m zipcodec.Method) CompressionMethod {
	switch m {
	case zipcodec.Deflate:
		return MethodDeflate
	case zipcodec.Zstd:
		return MethodZstd
	case zipcodec.Store:
		return MethodStore
	default:
		return CompressionMethod(fmt.Sprintf("method(%d)", uint16(m)))
	}
}

// Options configures archive session behavior.
type Options struct {
	// Logger receives debug records for open, close, and compaction. Nil discards.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Method is encoding for inserted file payloads. Default is deflate.
	Method CompressionMethod `json:"method,omitempty" yaml:"method,omitempty"`
	// Compress limits compression to entries included by ordered path rules.
	// Empty rules compress every inserted file; excluded entries are stored.
	Compress []pathrules.Rule `json:"compress,omitempty" yaml:"compress,omitempty"`
	// CompressMatcherOptions control compression path rule matching.
	CompressMatcherOptions pathrules.MatcherOptions `json:"compress_matcher_options,omitzero" yaml:"compress_matcher_options,omitzero"`
	// Level is compression level 1..9 (zstd levels are mapped). Zero means DefaultLevel.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`
	// MoveBufferSize is working buffer size for shifting entry data during deletion.
	// Default is 64 KiB; any positive value works, memory use does not depend on entry size.
	MoveBufferSize int `json:"move_buffer_size,omitempty" yaml:"move_buffer_size,omitempty"`
	// FileMode is permission for archives created by ModeCreate and ModeCreate64.
	FileMode os.FileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// Sync flushes archive file to stable storage on Close for writable modes.
	Sync bool `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// EntryInfo describes one archive entry as recorded in the central directory.
type EntryInfo struct {
	// Modified is stored modification time (2 second resolution, UTC).
	Modified time.Time `json:"modified" yaml:"modified"`
	// Name is normalized entry path; folder markers end with "/".
	Name string `json:"name" yaml:"name"`
	// Method is stored payload encoding.
	Method CompressionMethod `json:"method" yaml:"method"`
	// Size is decoded payload size in bytes; zero for folders.
	Size uint64 `json:"size" yaml:"size"`
	// CompressedSize is stored payload size in bytes.
	CompressedSize uint64 `json:"compressed_size" yaml:"compressed_size"`
	// LocalHeaderOffset is absolute offset of entry local header.
	LocalHeaderOffset uint64 `json:"local_header_offset" yaml:"local_header_offset"`
	// DirectoryOffset is record offset inside the central directory.
	DirectoryOffset uint64 `json:"directory_offset" yaml:"directory_offset"`
	// CRC32 is checksum of decoded payload.
	CRC32 uint32 `json:"crc32" yaml:"crc32"`
	// IsDir reports folder marker entries.
	IsDir bool `json:"is_dir,omitempty" yaml:"is_dir,omitempty"`
}

// entryInfoFromStat converts codec record into public entry metadata.
func entryInfoFromStat(st zipcodec.FileStat) EntryInfo {
	info := EntryInfo{
		Modified:          st.Modified,
		Name:              st.Name,
		Method:            methodName(st.Method),
		Size:              st.UncompressedSize,
		CompressedSize:    st.CompressedSize,
		LocalHeaderOffset: st.LocalHeaderOffset,
		DirectoryOffset:   st.CentralDirOffset,
		CRC32:             st.CRC32,
		IsDir:             st.IsDirectory,
	}
	if info.IsDir {
		info.Size = 0
	}

	return info
}

// ExtractOptions configures ExtractTo behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one file entry is fully written to disk.
	OnEntryDone func(entry EntryInfo, written int64, outputPath string) `json:"-" yaml:"-"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// SanitizeNames rewrites unsafe or reserved entry names instead of rejecting them.
	SanitizeNames bool `json:"sanitize_names,omitempty" yaml:"sanitize_names,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// applyDefaults fills zero-valued session options with defaults.
func (opts *Options) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.Method == "" {
		opts.Method = MethodDeflate
	}

	if opts.Level == 0 {
		opts.Level = DefaultLevel
	}

	if opts.MoveBufferSize <= 0 {
		opts.MoveBufferSize = DefaultMoveBufferSize
	}

	if opts.FileMode == 0 {
		opts.FileMode = DefaultFileMode
	}

	if opts.CompressMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.CompressMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.CompressMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.CompressMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// validate reports option values that defaults cannot repair.
func (opts *Options) validate() error {
	if _, ok := opts.Method.codec(); !ok {
		return fmt.Errorf("%w: compression method %q", ErrInvalidParameter, opts.Method)
	}

	if opts.Level < 1 || opts.Level > 9 {
		return fmt.Errorf("%w: compression level %d", ErrInvalidParameter, opts.Level)
	}

	return nil
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}
}

// validate reports unknown extract file modes.
func (opts *ExtractOptions) validate() error {
	switch opts.FileMode {
	case ExtractFileModeAuto, ExtractFileModeTruncate, ExtractFileModeCreateOnly:
		return nil
	default:
		return fmt.Errorf("%w: unknown extract file mode %q", ErrInvalidParameter, opts.FileMode)
	}
}
