// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Insert appends a file entry with payload read from src.
// Source length is taken by seeking to its end and must be non-zero.
// Legal in ModeUpdate, ModeCreate and ModeCreate64.
func (a *Archive) Insert(name string, src io.ReadSeeker, modified time.Time) error {
	if err := a.acquire("insert", writeModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	entry, err := normalizeFileEntryName(name)
	if err != nil {
		return err
	}

	return a.insertLocked(entry, src, modified)
}

// insertLocked adds normalized file entry with session lock held.
func (a *Archive) insertLocked(entry string, src io.ReadSeeker, modified time.Time) error {
	if src == nil {
		return fmt.Errorf("%w: nil source for %q", ErrInvalidParameter, entry)
	}

	size, err := src.Seek(0, io.SeekEnd)
	if err != nil || size <= 0 {
		return ioError(entry, "cannot obtain input size", err)
	}

	method, level := compressionFor(a.opts, a.compress, entry)
	if err := a.codec.Add(entry, newStreamIO(src), uint64(size), modified, method, level); err != nil {
		return codecError(err)
	}

	return nil
}

// InsertBytes appends a file entry holding data, stamped with current time.
func (a *Archive) InsertBytes(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty data for %q", ErrInvalidParameter, name)
	}

	return a.Insert(name, bytes.NewReader(data), time.Now())
}

// InsertFile appends a file entry from file at srcPath using its modification time.
func (a *Archive) InsertFile(name string, srcPath string) error {
	if err := a.acquire("insert file", writeModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	entry, err := normalizeFileEntryName(name)
	if err != nil {
		return err
	}

	return a.insertFileLocked(entry, srcPath)
}

// insertFileLocked adds one disk file with session lock held.
// Empty files become zero-length file entries.
func (a *Archive) insertFileLocked(entry string, srcPath string) error {
	f, err := os.Open(srcPath) //nolint:gosec // caller selects source
	if err != nil {
		return ioError(srcPath, "cannot open file", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ioError(srcPath, "cannot stat file", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", ErrInvalidParameter, srcPath)
	}

	if info.Size() == 0 {
		if err := a.codec.AddEmpty(entry, info.ModTime()); err != nil {
			return codecError(err)
		}

		return nil
	}

	return a.insertLocked(entry, f, info.ModTime())
}

// InsertFolder appends a folder marker entry. Name must end with "/".
func (a *Archive) InsertFolder(name string) error {
	if err := a.acquire("insert folder", writeModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	entry, err := normalizeFolderEntryName(name)
	if err != nil {
		return err
	}

	if err := a.codec.AddEmpty(entry, time.Now()); err != nil {
		return codecError(err)
	}

	return nil
}

// InsertFrom appends a disk file, or a directory tree with a folder marker
// for every directory, under archive name. Tree entries are added in
// lexical walk order.
func (a *Archive) InsertFrom(name string, srcPath string) error {
	if err := a.acquire("insert from", writeModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	root := strings.TrimSuffix(NormalizePath(name), "/")
	if root == "" {
		return fmt.Errorf("%w: entry name %q", ErrInvalidParameter, name)
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return ioError(srcPath, "cannot stat source", err)
	}

	if !info.IsDir() {
		return a.insertFileLocked(root, srcPath)
	}

	added := 0
	err = filepath.WalkDir(srcPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return ioError(path, "cannot walk source", walkErr)
		}

		rel, err := filepath.Rel(srcPath, path)
		if err != nil {
			return ioError(path, "cannot resolve relative path", err)
		}

		entry := root
		if rel != "." {
			entry = root + "/" + filepath.ToSlash(rel)
		}

		switch {
		case d.IsDir():
			fi, err := d.Info()
			if err != nil {
				return ioError(path, "cannot stat directory", err)
			}

			if err := a.codec.AddEmpty(entry+"/", fi.ModTime()); err != nil {
				return codecError(err)
			}
		case d.Type().IsRegular():
			if err := a.insertFileLocked(entry, path); err != nil {
				return err
			}
		default:
			return nil
		}

		added++
		return nil
	})
	if err != nil {
		return err
	}

	a.log.Debug("inserted tree",
		slog.String("path", a.path),
		slog.String("source", srcPath),
		slog.String("entry", root+"/"),
		slog.Int("entries", added),
	)

	return nil
}
