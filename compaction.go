// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/woozymasta/zipedit/internal/zipcodec"
)

// directoryEditor is the codec surface used by in-place compaction.
type directoryEditor interface {
	TotalFiles() int
	Stat(index int) (zipcodec.FileStat, error)
	ArchiveSize() uint64
	SetArchiveSize(size uint64)
	RawDirectory() []byte
	PatchLocalHeaderOffset(recordOfs uint64, value uint64) error
	TruncateDirectory(size uint64) error
	RebuildOffsetIndex(offsets []uint64) error
}

// entryAction is per-run classification of one entry.
type entryAction uint8

const (
	// actionKeep entries precede the first deleted entry and stay in place.
	actionKeep entryAction = iota
	// actionDelete entries are removed.
	actionDelete
	// actionMove entries follow a deleted entry and shift left.
	actionMove
)

// entryRecord is working state of one entry during a compaction run.
type entryRecord struct {
	name     string
	localOfs uint64
	localLen uint64
	dirOfs   uint64
	dirLen   uint64
	action   entryAction
}

// compactResult summarizes one compaction run.
type compactResult struct {
	deleted    int
	localBytes uint64
	dirBytes   uint64
}

// compactor removes selected entries by shifting survivors left in place.
type compactor struct {
	dir directoryEditor
	s   zipcodec.Stream
	buf []byte
	// advise hints sequential access over a byte range; may be nil.
	advise func(off, length uint64)
	// dirty is set once archive or directory bytes were changed.
	dirty bool
}

// moveBufferPool reuses default-sized move buffers.
var moveBufferPool = sync.Pool{
	New: func() any {
		return new([DefaultMoveBufferSize]byte)
	},
}

// acquireMoveBuffer returns a move buffer of size bytes and release callback.
func acquireMoveBuffer(size int) ([]byte, func()) {
	if size == DefaultMoveBufferSize {
		arr := moveBufferPool.Get().(*[DefaultMoveBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
		return arr[:], func() {
			moveBufferPool.Put(arr)
		}
	}

	return make([]byte, size), func() {}
}

// run deletes every entry matching selection and returns reclaimed sizes.
func (c *compactor) run(selection []string) (compactResult, error) {
	n := c.dir.TotalFiles()
	if n == 0 {
		return compactResult{}, nil
	}

	entries := make([]entryRecord, n)
	for i := range entries {
		st, err := c.dir.Stat(i)
		if err != nil {
			return compactResult{}, codecError(err)
		}

		entries[i] = entryRecord{
			name:     st.Name,
			localOfs: st.LocalHeaderOffset,
			dirOfs:   st.CentralDirOffset,
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return entries[order[i]].localOfs < entries[order[j]].localOfs
	})

	deleted := classifyEntries(entries, order, selection)
	if deleted == 0 {
		return compactResult{}, nil
	}

	if err := measureEntries(entries, order, c.dir.ArchiveSize(), uint64(len(c.dir.RawDirectory()))); err != nil {
		return compactResult{}, err
	}

	localBytes, err := c.compactLocal(entries, order)
	if err != nil {
		return compactResult{}, err
	}
	c.dir.SetArchiveSize(c.dir.ArchiveSize() - localBytes)

	dirBytes, err := c.compactDirectory(entries, n-deleted)
	if err != nil {
		return compactResult{}, err
	}

	return compactResult{
		deleted:    deleted,
		localBytes: localBytes,
		dirBytes:   dirBytes,
	}, nil
}

// classifyEntries tags entries in physical order and returns deleted count.
func classifyEntries(entries []entryRecord, order []int, selection []string) int {
	deleted := 0
	for _, idx := range order {
		e := &entries[idx]
		switch {
		case matchesSelection(e.name, selection):
			e.action = actionDelete
			deleted++
		case deleted > 0:
			e.action = actionMove
		default:
			e.action = actionKeep
		}
	}

	return deleted
}

// matchesSelection reports whether name equals or is nested under any selection.
func matchesSelection(name string, selection []string) bool {
	for _, sel := range selection {
		if hasDirPrefix(name, sel) {
			return true
		}
	}

	return false
}

// measureEntries derives region lengths from consecutive offsets.
// Local lengths follow physical order, directory lengths follow record order.
func measureEntries(entries []entryRecord, order []int, archiveSize uint64, dirSize uint64) error {
	n := len(entries)
	for i := range n {
		cur := &entries[order[i]]
		end := archiveSize
		if i+1 < n {
			end = entries[order[i+1]].localOfs
		}
		if end < cur.localOfs {
			return fmt.Errorf("%w: %w: %q local data beyond archive end", ErrCodec, zipcodec.ErrInvalidHeader, cur.name)
		}
		cur.localLen = end - cur.localOfs

		rec := &entries[i]
		end = dirSize
		if i+1 < n {
			end = entries[i+1].dirOfs
		}
		if end < rec.dirOfs {
			return fmt.Errorf("%w: %w: %q directory record out of order", ErrCodec, zipcodec.ErrInvalidHeader, rec.name)
		}
		rec.dirLen = end - rec.dirOfs
	}

	return nil
}

// compactLocal shifts moved runs of local data left over deleted runs and
// patches their offsets in the directory buffer. Returns total deleted length.
func (c *compactor) compactLocal(entries []entryRecord, order []int) (uint64, error) {
	n := len(order)
	if n == 0 {
		return 0, nil
	}

	// Local data may start past byte 0 behind a stub or prefix.
	idx := 0
	wr := entries[order[0]].localOfs
	for idx < n && entries[order[idx]].action == actionKeep {
		wr += entries[order[idx]].localLen
		idx++
	}

	rd := wr
	for idx < n {
		for idx < n && entries[order[idx]].action == actionDelete {
			rd += entries[order[idx]].localLen
			idx++
		}

		shift := rd - wr
		var moveLen uint64
		for idx < n && entries[order[idx]].action == actionMove {
			e := &entries[order[idx]]
			moveLen += e.localLen
			e.localOfs -= shift

			c.dirty = true
			if err := c.dir.PatchLocalHeaderOffset(e.dirOfs, e.localOfs); err != nil {
				return 0, codecError(err)
			}
			idx++
		}

		if moveLen == 0 {
			break
		}

		if err := c.moveBlock(wr, rd, moveLen); err != nil {
			return 0, err
		}

		wr += moveLen
		rd += moveLen
	}

	return rd - wr, nil
}

// compactDirectory closes gaps left by deleted records in directory order
// and rebuilds the record offset index. Returns total deleted length.
func (c *compactor) compactDirectory(entries []entryRecord, survivors int) (uint64, error) {
	raw := c.dir.RawDirectory()
	offsets := make([]uint64, 0, survivors)

	n := len(entries)
	idx := 0
	var wr, rd uint64
	for idx < n {
		for idx < n && entries[idx].action == actionDelete {
			rd += entries[idx].dirLen
			idx++
		}

		shift := rd - wr
		var moveLen uint64
		for idx < n && entries[idx].action != actionDelete {
			e := &entries[idx]
			moveLen += e.dirLen
			e.dirOfs -= shift
			offsets = append(offsets, e.dirOfs)
			idx++
		}

		if moveLen == 0 {
			break
		}

		if shift > 0 {
			c.dirty = true
			copy(raw[wr:wr+moveLen], raw[rd:rd+moveLen])
		}

		wr += moveLen
		rd += moveLen
	}

	deleted := rd - wr
	c.dirty = true
	if err := c.dir.TruncateDirectory(uint64(len(raw)) - deleted); err != nil {
		return 0, codecError(err)
	}

	if err := c.dir.RebuildOffsetIndex(offsets); err != nil {
		return 0, codecError(err)
	}

	return deleted, nil
}

// moveBlock copies length bytes from src to dst (dst < src) through the
// working buffer, front to back, so overlapping ranges stay intact.
func (c *compactor) moveBlock(dst, src, length uint64) error {
	if length == 0 || dst == src {
		return nil
	}

	if c.advise != nil {
		c.advise(src, length)
	}

	c.dirty = true
	for length > 0 {
		chunk := uint64(len(c.buf))
		if length < chunk {
			chunk = length
		}

		p := c.buf[:chunk]
		if got := c.s.ReadBlock(src, p); got != len(p) {
			return fmt.Errorf("%w: cannot read %d bytes at offset %d while moving entry data", ErrIO, chunk, src)
		}

		if put := c.s.WriteBlock(dst, p); put != len(p) {
			return fmt.Errorf("%w: cannot write %d bytes at offset %d while moving entry data", ErrIO, chunk, dst)
		}

		src += chunk
		dst += chunk
		length -= chunk
	}

	return nil
}
