// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts an entry path to archive form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/",
// and resolves "." and ".." segments lexically. Paths naming a folder keep
// one trailing "/". An empty result means the path names nothing.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	if raw == "" {
		return ""
	}

	folder := strings.HasSuffix(raw, "/")
	if last := raw[strings.LastIndexByte(raw, '/')+1:]; last == "." || last == ".." {
		folder = true
	}

	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" || raw == "." {
		return ""
	}

	if folder {
		return raw + "/"
	}

	return raw
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(path string) string {
	path = strings.TrimSpace(path)
	path = strings.ReplaceAll(path, `\`, `/`)
	path = strings.TrimPrefix(path, "./")
	return path
}

// isFolderName reports whether normalized entry name is a folder marker.
func isFolderName(name string) bool {
	return strings.HasSuffix(name, "/")
}

// normalizeFileEntryName returns archive name for a file entry.
func normalizeFileEntryName(raw string) (string, error) {
	name := NormalizePath(raw)
	if name == "" || isFolderName(name) {
		return "", fmt.Errorf("%w: file entry name %q", ErrInvalidParameter, raw)
	}

	return name, nil
}

// normalizeFolderEntryName returns archive name for a folder marker entry.
func normalizeFolderEntryName(raw string) (string, error) {
	name := NormalizePath(raw)
	if name == "" || !isFolderName(name) {
		return "", fmt.Errorf("%w: folder entry name %q", ErrInvalidParameter, raw)
	}

	return name, nil
}

// normalizeSelection converts deletion names into slash-free selection paths.
// A selection names one entry and everything below it.
func normalizeSelection(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrInvalidParameter)
	}

	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		sel := strings.TrimSuffix(NormalizePath(raw), "/")
		if sel == "" {
			return nil, fmt.Errorf("%w: selection name %q", ErrInvalidParameter, raw)
		}

		if _, ok := seen[sel]; ok {
			continue
		}

		seen[sel] = struct{}{}
		out = append(out, sel)
	}

	return out, nil
}

// hasDirPrefix reports whether path equals prefix or is nested under it.
// A trailing "/" on path is ignored, so folder markers match their own name.
func hasDirPrefix(path string, prefix string) bool {
	path = strings.TrimSuffix(path, "/")
	if path == prefix {
		return true
	}

	return strings.HasPrefix(path, prefix) && path[len(prefix)] == '/'
}
