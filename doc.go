// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

/*
Package zipedit opens ZIP archives on disk as sessions that can list,
extract, append, and delete entries. Deletion works in place: surviving
entry data is shifted left over removed entries, offsets in the central
directory are patched, and the file is truncated on Close. No temporary
copy of the archive is written.

Open modes (summary):
  - ModeReadOnly indexes an existing archive for listing and extraction;
  - ModeUpdate additionally appends and deletes entries;
  - ModeCreate and ModeCreate64 start a new archive, the latter with ZIP64 records;
  - every operation checks the mode and fails with ErrInvalidOperation otherwise.

Entry names are normalized: "\" becomes "/", leading "/" and "./" are
dropped, "." and ".." are resolved, and folder markers end with "/".

# Reading

	a, err := zipedit.Open("bundle.zip", zipedit.ModeReadOnly)
	if err != nil {
	    return err
	}
	defer a.Close()
	names, err := a.List()
	if err != nil {
	    return err
	}
	for _, name := range names {
	    data, _ := a.ReadEntry(name)
	    // use data
	}

For metadata-only scans:

	entries, err := zipedit.ListEntries("bundle.zip")
	if err != nil {
	    return err
	}
	_ = entries

# Extracting

Extract streams one entry and returns its stored modification time:

	mtime, err := a.Extract("docs/readme.txt", os.Stdout)
	if err != nil {
	    return err
	}
	_ = mtime

ExtractTo writes a file or a whole folder below a destination directory:

	err := a.ExtractTo(ctx, "docs", "out", zipedit.ExtractOptions{
	    FileMode: zipedit.ExtractFileModeTruncate,
	})
	if err != nil {
	    return err
	}

Entries named with device names, reserved characters, or ".." segments are
rejected unless ExtractOptions.SanitizeNames rewrites them (see SanitizePath).

OpenEntry returns a streaming reader; close it before the next session call.

# Filtering

FilterEntries narrows a listing by prefix, size, or kind:

	big := zipedit.FilterEntries(entries, zipedit.EntryFilter{
	    Prefix:    "assets",
	    MinSize:   1 << 20,
	    FilesOnly: true,
	})

# Writing

	a, err := zipedit.OpenWithOptions("bundle.zip", zipedit.ModeCreate, zipedit.Options{
	    Method: zipedit.MethodZstd,
	    Compress: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.txt"},
	    },
	})
	if err != nil {
	    return err
	}
	if err := a.InsertFolder("docs/"); err != nil {
	    return err
	}
	if err := a.InsertBytes("docs/readme.txt", []byte("hello")); err != nil {
	    return err
	}
	return a.Close()

Compressed output that does not shrink a payload is stored instead.

# Deleting

	a, err := zipedit.Open("bundle.zip", zipedit.ModeUpdate)
	if err != nil {
	    return err
	}
	if err := a.Delete("docs", "old.bin"); err != nil {
	    _ = a.Close()
	    return err
	}
	return a.Close()

Deleting a folder removes its marker and every entry below it. Names that
match nothing are ignored. Delete is not atomic: when it fails after bytes
were moved, the session is marked broken, further calls return
ErrBrokenArchive, and Close leaves the file without a central directory.
*/
package zipedit
