// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"fmt"
	"hash/fnv"
	"path"
	"strconv"
	"strings"
	"unicode"
)

// maxSanitizedSegmentLen limits one path segment to common filesystem-safe length.
const maxSanitizedSegmentLen = 240

// reservedDeviceNames contains case-insensitive reserved Windows device names.
var reservedDeviceNames = map[string]struct{}{
	"aux": {}, "con": {}, "nul": {}, "prn": {},
	"clock$": {}, "conin$": {}, "conout$": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// SanitizePath rewrites an entry name to a filesystem-safe relative path.
// Unsafe characters become "_", reserved device names get a "_" prefix,
// and ".." segments are neutralized instead of rejected.
func SanitizePath(name string) (string, error) {
	sanitized, err := sanitizeRelativePath(strings.ReplaceAll(name, `\`, `/`))
	if err != nil {
		return "", err
	}

	if _, err := normalizeExtractEntryPath(sanitized); err != nil {
		return "", err
	}

	return sanitized, nil
}

// pathSanitizer rewrites entry names for one extraction run and keeps
// results unique under case-insensitive comparison.
type pathSanitizer struct {
	used       map[string]struct{}
	nextSuffix map[string]int
}

// newPathSanitizer returns sanitizer with empty collision state.
func newPathSanitizer() *pathSanitizer {
	return &pathSanitizer{
		used:       make(map[string]struct{}),
		nextSuffix: make(map[string]int),
	}
}

// sanitize returns unique safe relative path for entry name.
// Folder markers share namespace with their files, so only file paths are reserved.
func (p *pathSanitizer) sanitize(name string, folder bool) (string, error) {
	sanitized, err := SanitizePath(name)
	if err != nil {
		return "", fmt.Errorf("sanitize path %s: %w", name, err)
	}

	if folder {
		return sanitized, nil
	}

	sanitized, err = p.unique(sanitized)
	if err != nil {
		return "", fmt.Errorf("sanitize path %s: %w", name, err)
	}

	return sanitized, nil
}

// unique resolves collisions by adding deterministic numeric suffix.
func (p *pathSanitizer) unique(value string) (string, error) {
	key := strings.ToLower(value)
	if _, exists := p.used[key]; !exists {
		p.used[key] = struct{}{}
		return value, nil
	}

	dir, name := path.Split(value)
	start := max(p.nextSuffix[key], 2)
	for idx := start; idx < 1_000_000; idx++ {
		candidate := dir + withNumericSuffix(name, idx)
		candidateKey := strings.ToLower(candidate)
		if _, exists := p.used[candidateKey]; exists {
			continue
		}

		p.used[candidateKey] = struct{}{}
		p.nextSuffix[key] = idx + 1
		return candidate, nil
	}

	return "", ErrInvalidExtractPath
}

// sanitizeRelativePath sanitizes each segment of slash-separated path.
func sanitizeRelativePath(relativePath string) (string, error) {
	parts := strings.Split(relativePath, "/")
	sanitized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." {
			continue
		}

		segment, err := sanitizePathSegment(part)
		if err != nil {
			return "", err
		}

		sanitized = append(sanitized, segment)
	}

	if len(sanitized) == 0 {
		return "_", nil
	}

	return strings.Join(sanitized, "/"), nil
}

// sanitizePathSegment sanitizes one path segment for broad filesystem compatibility.
func sanitizePathSegment(segment string) (string, error) {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		if isUnsafePathRune(r) {
			b.WriteByte('_')
			continue
		}

		b.WriteRune(r)
	}

	sanitized := strings.TrimRight(b.String(), ". ")
	if sanitized == "" {
		return "_", nil
	}

	if isReservedDeviceName(sanitized) {
		sanitized = "_" + sanitized
	}

	if len(sanitized) > maxSanitizedSegmentLen {
		sanitized = shortenSegmentDeterministic(sanitized, maxSanitizedSegmentLen)
	}

	if sanitized == "" {
		return "", ErrInvalidExtractPath
	}

	return sanitized, nil
}

// isUnsafePathRune reports runes rejected by common filesystems or unsafe in terminal output.
func isUnsafePathRune(r rune) bool {
	if unicode.IsControl(r) || unicode.In(r, unicode.Cf) || r == unicode.ReplacementChar {
		return true
	}

	return strings.ContainsRune(`<>:"/\|?*`, r)
}

// isReservedDeviceName reports whether segment names a reserved device, with or without extension.
func isReservedDeviceName(segment string) bool {
	candidate := strings.ToLower(segment)
	if dot := strings.IndexByte(candidate, '.'); dot >= 0 {
		candidate = candidate[:dot]
	}

	candidate = strings.TrimRight(candidate, " ")
	_, ok := reservedDeviceNames[candidate]
	return ok
}

// withNumericSuffix appends "~N" before extension and preserves max segment length.
func withNumericSuffix(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := "~" + strconv.Itoa(n)
	allowedBaseLen := max(maxSanitizedSegmentLen-len(ext)-len(suffix), 1)
	if len(base) > allowedBaseLen {
		base = shortenSegmentDeterministic(base, allowedBaseLen)
	}

	return base + suffix + ext
}

// shortenSegmentDeterministic shortens long segment keeping a stable hash of the full value.
func shortenSegmentDeterministic(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}

	if maxLen <= 10 {
		return value[:maxLen]
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	hashPart := fmt.Sprintf("~%08x", h.Sum32())
	return value[:max(maxLen-len(hashPart), 1)] + hashPart
}
