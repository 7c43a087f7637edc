// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"errors"
	"fmt"

	"github.com/woozymasta/zipedit/internal/zipcodec"
)

// Count returns number of entries. Legal in ModeReadOnly and ModeUpdate.
func (a *Archive) Count() (int, error) {
	if err := a.acquire("count", readModes); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	return a.codec.TotalFiles(), nil
}

// List returns entry names in central directory order.
func (a *Archive) List() ([]string, error) {
	if err := a.acquire("list", readModes); err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	names := make([]string, 0, a.codec.TotalFiles())
	for i := range a.codec.TotalFiles() {
		st, err := a.codec.Stat(i)
		if err != nil {
			return nil, codecError(err)
		}

		names = append(names, st.Name)
	}

	return names, nil
}

// Entries returns metadata of all entries in central directory order.
func (a *Archive) Entries() ([]EntryInfo, error) {
	if err := a.acquire("entries", readModes); err != nil {
		return nil, err
	}
	defer a.mu.Unlock()

	entries := make([]EntryInfo, 0, a.codec.TotalFiles())
	for i := range a.codec.TotalFiles() {
		st, err := a.codec.Stat(i)
		if err != nil {
			return nil, codecError(err)
		}

		entries = append(entries, entryInfoFromStat(st))
	}

	return entries, nil
}

// Has reports whether an entry with the normalized name exists.
// Folder markers are found only by their "/"-terminated name.
func (a *Archive) Has(name string) (bool, error) {
	if err := a.acquire("has", readModes); err != nil {
		return false, err
	}
	defer a.mu.Unlock()

	_, err := a.statLocked(name)
	if errors.Is(err, zipcodec.ErrFileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Size returns decoded size of the named entry; zero for folder markers.
func (a *Archive) Size(name string) (int64, error) {
	if err := a.acquire("size", readModes); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	st, err := a.statLocked(name)
	if err != nil {
		return 0, err
	}

	if st.IsDirectory {
		return 0, nil
	}

	return int64(st.UncompressedSize), nil //nolint:gosec // ZIP64 sizes fit int64 in practice
}

// Stat returns metadata of the named entry.
func (a *Archive) Stat(name string) (EntryInfo, error) {
	if err := a.acquire("stat", readModes); err != nil {
		return EntryInfo{}, err
	}
	defer a.mu.Unlock()

	st, err := a.statLocked(name)
	if err != nil {
		return EntryInfo{}, err
	}

	return entryInfoFromStat(st), nil
}

// statLocked normalizes name and looks up its central record.
func (a *Archive) statLocked(name string) (zipcodec.FileStat, error) {
	entry := NormalizePath(name)
	if entry == "" {
		return zipcodec.FileStat{}, fmt.Errorf("%w: entry name %q", ErrInvalidParameter, name)
	}

	idx, err := a.codec.Locate(entry)
	if err != nil {
		return zipcodec.FileStat{}, codecError(err)
	}

	st, err := a.codec.Stat(idx)
	if err != nil {
		return zipcodec.FileStat{}, codecError(err)
	}

	return st, nil
}

// ListEntries opens archive read-only and returns metadata of all entries.
func ListEntries(path string) ([]EntryInfo, error) {
	a, err := Open(path, ModeReadOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	return a.Entries()
}
