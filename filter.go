// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

// EntryFilter selects entries from a listing. Zero value keeps everything.
type EntryFilter struct {
	// Prefix keeps the named entry and everything below it.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// MinSize drops file entries with smaller decoded size.
	MinSize uint64 `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	// MinCompressedSize drops file entries with smaller stored size.
	MinCompressedSize uint64 `json:"min_compressed_size,omitempty" yaml:"min_compressed_size,omitempty"`
	// FilesOnly drops folder markers.
	FilesOnly bool `json:"files_only,omitempty" yaml:"files_only,omitempty"`
	// ASCIIOnly drops entries whose name has non-ASCII bytes.
	ASCIIOnly bool `json:"ascii_only,omitempty" yaml:"ascii_only,omitempty"`
}

// FilterEntries returns entries accepted by f, keeping input order.
func FilterEntries(entries []EntryInfo, f EntryFilter) []EntryInfo {
	out := entries
	if prefix := NormalizePath(f.Prefix); prefix != "" {
		out = filterEntriesByPrefix(out, prefix)
	}

	if f.FilesOnly {
		out = filterEntries(out, func(e EntryInfo) bool { return !e.IsDir })
	}

	if f.MinSize > 0 || f.MinCompressedSize > 0 {
		out = filterEntriesBySize(out, f.MinSize, f.MinCompressedSize)
	}

	if f.ASCIIOnly {
		out = filterEntries(out, func(e EntryInfo) bool { return isASCIIOnly(e.Name) })
	}

	return out
}

// filterEntries keeps entries accepted by keep in a new slice.
func filterEntries(entries []EntryInfo, keep func(EntryInfo) bool) []EntryInfo {
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}

	return out
}

// filterEntriesBySize keeps folders and file entries meeting both size thresholds.
func filterEntriesBySize(entries []EntryInfo, minSize uint64, minCompressedSize uint64) []EntryInfo {
	return filterEntries(entries, func(e EntryInfo) bool {
		if e.IsDir {
			return true
		}

		return e.Size >= minSize && e.CompressedSize >= minCompressedSize
	})
}

// filterEntriesByPrefix keeps entries equal to or nested under normalized prefix.
func filterEntriesByPrefix(entries []EntryInfo, prefix string) []EntryInfo {
	prefix = trimFolderSlash(prefix)
	return filterEntries(entries, func(e EntryInfo) bool {
		return hasDirPrefix(e.Name, prefix)
	})
}

// isASCIIOnly reports whether value contains only ASCII bytes.
func isASCIIOnly(value string) bool {
	for idx := 0; idx < len(value); idx++ {
		if value[idx] >= 0x80 {
			return false
		}
	}

	return true
}

// trimFolderSlash drops the folder marker slash from a normalized path.
func trimFolderSlash(name string) string {
	if isFolderName(name) {
		return name[:len(name)-1]
	}

	return name
}
