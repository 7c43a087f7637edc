// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

package zipedit

import "log/slog"

// Delete removes entries from an archive opened in ModeUpdate.
//
// Each name selects the entry with that normalized name and every entry
// nested under it, so deleting "dir" or "dir/" removes the folder marker
// and all descendants. Names matching nothing are ignored. Survivor data is
// shifted left in place; the file shrinks on Close.
//
// Delete is not atomic. If it fails after archive bytes were changed, the
// session becomes broken: later calls return ErrBrokenArchive and Close
// releases the file without writing a central directory.
func (a *Archive) Delete(names ...string) error {
	if err := a.acquire("delete", updateModes); err != nil {
		return err
	}
	defer a.mu.Unlock()

	selection, err := normalizeSelection(names)
	if err != nil {
		return err
	}

	buf, release := acquireMoveBuffer(a.opts.MoveBufferSize)
	defer release()

	c := &compactor{
		dir: a.codec,
		s:   a.stream,
		buf: buf,
		advise: func(off, length uint64) {
			adviseSequential(a.file, off, length)
		},
	}

	res, err := c.run(selection)
	if err != nil {
		if c.dirty {
			a.broken = true
			a.log.Error("archive compaction failed",
				slog.String("path", a.path),
				slog.Any("error", err),
			)
		}

		return err
	}

	if res.deleted == 0 {
		a.log.Debug("nothing to delete",
			slog.String("path", a.path),
			slog.Any("selection", selection),
		)
		return nil
	}

	a.log.Debug("archive compacted",
		slog.String("path", a.path),
		slog.Int("deleted", res.deleted),
		slog.Uint64("local_bytes", res.localBytes),
		slog.Uint64("directory_bytes", res.dirBytes),
		slog.Int("remaining", a.codec.TotalFiles()),
	)

	return nil
}
