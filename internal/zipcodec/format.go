// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipcodec

import (
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record signatures and fixed sizes.
const (
	localHeaderSignature   = 0x04034b50
	centralHeaderSignature = 0x02014b50
	endSignature           = 0x06054b50
	end64Signature         = 0x06064b50
	end64LocatorSignature  = 0x07064b50

	localHeaderSize   = 30
	centralHeaderSize = 46
	endSize           = 22
	end64Size         = 56
	end64LocatorSize  = 20

	// maxCommentSize bounds EOCD search distance from the end of archive.
	maxCommentSize = 0xffff
)

// Central header field offsets used by in-place patching.
const (
	cdhFlagsOfs        = 8
	cdhMethodOfs       = 10
	cdhTimeOfs         = 12
	cdhDateOfs         = 14
	cdhCRCOfs          = 16
	cdhCompSizeOfs     = 20
	cdhUncompSizeOfs   = 24
	cdhNameLenOfs      = 28
	cdhExtraLenOfs     = 30
	cdhCommentLenOfs   = 32
	cdhDiskStartOfs    = 34
	cdhExternalAttrOfs = 38
	cdhLocalHeaderOfs  = 42
)

// Local header field offsets.
const (
	lfhFlagsOfs      = 6
	lfhMethodOfs     = 8
	lfhCRCOfs        = 14
	lfhCompSizeOfs   = 18
	lfhUncompSizeOfs = 22
	lfhNameLenOfs    = 26
	lfhExtraLenOfs   = 28
)

// Format limits and markers.
const (
	max16 = 0xffff
	max32 = 0xffffffff

	zip64ExtraID = 0x0001

	flagEncrypted = 0x0001
	flagUTF8      = 0x0800

	versionDefault = 20
	versionZip64   = 45
	versionZstd    = 63
	// versionMadeBy marks Unix host and APPNOTE 6.3.
	versionMadeBy = 3<<8 | 63

	dosDirectoryAttr = 0x10
	unixDirMode      = 0o040755
	unixFileMode     = 0o100644
)

// Method is a ZIP compression method id.
type Method uint16

// Supported compression methods.
const (
	// Store keeps bytes as-is.
	Store Method = 0
	// Deflate is RFC 1951 deflate.
	Deflate Method = 8
	// Zstd is Zstandard as registered by WinZip (method 93).
	Zstd Method = zstd.ZipMethodWinZip
)

// String returns lower-case method name.
func (m Method) String() string {
	switch m {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Supported reports whether codec can encode and decode method.
func (m Method) Supported() bool {
	return m == Store || m == Deflate || m == Zstd
}

// dosEpoch is the earliest representable MS-DOS timestamp.
var dosEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// timeToDOS converts t into MS-DOS date and time fields (UTC, 2s resolution).
func timeToDOS(t time.Time) (dosDate uint16, dosTime uint16) {
	t = t.UTC()
	if t.Before(dosEpoch) {
		t = dosEpoch
	}
	if t.Year() > 2107 {
		t = time.Date(2107, time.December, 31, 23, 59, 58, 0, time.UTC)
	}

	dosDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9) //nolint:gosec // clamped to DOS range
	dosTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)      //nolint:gosec // clamped to DOS range
	return dosDate, dosTime
}

// dosToTime converts MS-DOS date and time fields into UTC time.
func dosToTime(dosDate uint16, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9)+1980,
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f)*2,
		0,
		time.UTC,
	)
}
