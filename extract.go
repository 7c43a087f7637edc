// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/woozymasta/zipedit/internal/zipcodec"
)

// extractWorkItem stores one selected entry with prepared output relative path.
type extractWorkItem struct {
	relPath string
	entry   zipcodec.FileStat
}

// Extract streams decoded bytes of the named file entry into w and returns
// its stored modification time. Legal in ModeReadOnly and ModeUpdate.
func (a *Archive) Extract(name string, w io.Writer) (time.Time, error) {
	if err := a.acquire("extract", readModes); err != nil {
		return time.Time{}, err
	}
	defer a.mu.Unlock()

	return a.extractLocked(name, w)
}

// extractLocked implements Extract with session lock held.
func (a *Archive) extractLocked(name string, w io.Writer) (time.Time, error) {
	if w == nil {
		return time.Time{}, fmt.Errorf("%w: nil writer", ErrInvalidParameter)
	}

	entry, err := normalizeFileEntryName(name)
	if err != nil {
		return time.Time{}, err
	}

	idx, err := a.codec.Locate(entry)
	if err != nil {
		return time.Time{}, codecError(err)
	}

	st, err := a.codec.Stat(idx)
	if err != nil {
		return time.Time{}, codecError(err)
	}

	if err := a.codec.Extract(idx, w); err != nil {
		return time.Time{}, codecError(err)
	}

	return st.Modified, nil
}

// ExtractToFile writes the named file entry to dst and sets its modification time.
func (a *Archive) ExtractToFile(name string, dst string) error {
	if err := a.acquire("extract to file", readModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if strings.TrimSpace(dst) == "" {
		return fmt.Errorf("%w: empty destination path", ErrInvalidParameter)
	}

	entry, err := normalizeFileEntryName(name)
	if err != nil {
		return err
	}

	if _, err := a.codec.Locate(entry); err != nil {
		return codecError(err)
	}

	f, err := os.Create(dst) //nolint:gosec // caller selects destination
	if err != nil {
		return ioError(dst, "cannot open file", err)
	}

	mtime, extractErr := a.extractLocked(name, f)
	closeErr := f.Close()
	if extractErr != nil {
		return extractErr
	}

	if closeErr != nil {
		return ioError(dst, "cannot close file", closeErr)
	}

	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return ioError(dst, "cannot set modification time", err)
	}

	return nil
}

// ExtractTo writes the named file, or a folder with everything below it,
// under dstDir keeping archive-relative paths. Entry paths that are absolute
// or climb above dstDir are rejected unless opts.SanitizeNames rewrites them.
func (a *Archive) ExtractTo(ctx context.Context, name string, dstDir string, opts ExtractOptions) error {
	if err := a.acquire("extract to", readModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return err
	}

	prefix := strings.TrimSuffix(NormalizePath(name), "/")
	if prefix == "" {
		return fmt.Errorf("%w: entry name %q", ErrInvalidParameter, name)
	}

	workItems, err := a.prepareExtractWorkItems(prefix, opts.SanitizeNames)
	if err != nil {
		return err
	}

	if len(workItems) == 0 {
		return codecError(fmt.Errorf("%w: %q", zipcodec.ErrFileNotFound, prefix))
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return ioError(dstDir, "cannot resolve output dir", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return ioError(dstRootAbs, "cannot create output dir", err)
	}

	for _, task := range workItems {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := a.extractPreparedEntry(dstRootAbs, task, opts); err != nil {
			return err
		}
	}

	return nil
}

// prepareExtractWorkItems selects entries under prefix and validates output paths.
// With sanitize set, unsafe names are rewritten instead of rejected.
func (a *Archive) prepareExtractWorkItems(prefix string, sanitize bool) ([]extractWorkItem, error) {
	var sanitizer *pathSanitizer
	if sanitize {
		sanitizer = newPathSanitizer()
	}

	workItems := make([]extractWorkItem, 0, 8)
	for i := range a.codec.TotalFiles() {
		st, err := a.codec.Stat(i)
		if err != nil {
			return nil, codecError(err)
		}

		if !hasDirPrefix(st.Name, prefix) {
			continue
		}

		var normalizedPath string
		if sanitizer != nil {
			normalizedPath, err = sanitizer.sanitize(st.Name, st.IsDirectory)
		} else {
			normalizedPath, err = normalizeExtractEntryPath(st.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("normalize entry path %s: %w", st.Name, err)
		}

		workItems = append(workItems, extractWorkItem{
			entry:   st,
			relPath: filepath.FromSlash(normalizedPath),
		})
	}

	return workItems, nil
}

// extractPreparedEntry writes one prepared work item to destination root.
func (a *Archive) extractPreparedEntry(dstRootAbs string, task extractWorkItem, opts ExtractOptions) error {
	outPath := filepath.Join(dstRootAbs, task.relPath)
	rel, err := filepath.Rel(dstRootAbs, outPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrExtractPathOutsideRoot, task.entry.Name)
	}

	if task.entry.IsDirectory {
		if err := os.MkdirAll(outPath, 0o750); err != nil {
			return ioError(outPath, "cannot create output directory", err)
		}

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return ioError(filepath.Dir(outPath), "cannot create output directory", err)
	}

	file, err := openExtractFile(outPath, opts.FileMode)
	if err != nil {
		return ioError(outPath, "cannot open file", err)
	}

	counter := &countingWriter{w: file}
	extractErr := a.codec.Extract(task.entry.Index, counter)
	closeErr := file.Close()
	if extractErr != nil {
		return codecError(extractErr)
	}

	if closeErr != nil {
		return ioError(outPath, "cannot close file", closeErr)
	}

	if err := os.Chtimes(outPath, task.entry.Modified, task.entry.Modified); err != nil {
		return ioError(outPath, "cannot set modification time", err)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(entryInfoFromStat(task.entry), counter.n, outPath)
	}

	return nil
}

// countingWriter counts bytes passed to the wrapped writer.
type countingWriter struct {
	w io.Writer
	n int64
}

// Write implements io.Writer.
func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path validated against root
		if err == nil {
			return file, nil
		}

		if !os.IsExist(err) {
			return nil, err
		}

		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // path validated against root
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // path validated against root
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path validated against root
	default:
		return nil, fmt.Errorf("%w: unknown extract file mode %q", ErrInvalidParameter, mode)
	}
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
