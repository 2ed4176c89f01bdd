// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package parkmutex

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// wait parks the calling goroutine until *addr no longer holds val, using
// the Linux futex syscall directly (golang.org/x/sys/unix supplies the
// SYS_FUTEX constant; there is no higher-level wrapper with the exact
// semantics spec §4.2 needs, so we issue the syscall ourselves, the way the
// teacher's own platform-specific files reach for raw syscalls when no
// package API fits).
func wait(addr *atomic.Uint32, val uint32) {
	word := (*uint32)(unsafe.Pointer(addr))
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(val),
		0, 0, 0,
	)
}

// wake wakes up to n parked waiters (n == -1 wakes all of them).
func wake(addr *atomic.Uint32, n int32) {
	word := (*uint32)(unsafe.Pointer(addr))
	count := uintptr(n)
	if n < 0 {
		count = uintptr(int32(^uint32(0) >> 1)) // INT_MAX
	}
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(unix.FUTEX_WAKE),
		count,
		0, 0, 0,
	)
}
