// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/zipedit

//go:build linux

package zipedit

import (
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints kernel that [off, off+length) of f is read once, in order.
func adviseSequential(f *os.File, off, length uint64) {
	if f == nil || length == 0 || off > math.MaxInt64 || length > math.MaxInt64-off {
		return
	}

	_ = unix.Fadvise(int(f.Fd()), int64(off), int64(length), unix.FADV_SEQUENTIAL) //nolint:gosec // fd fits int
}
