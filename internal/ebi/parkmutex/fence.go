// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parkmutex

import "sync/atomic"

// Fence is a one-bit gate all threads can wait on (spec §4.2). Close/Open
// flip the gate; Wait blocks until it reads open. Fairness is not
// required, matching the spec.
type Fence struct {
	closed atomic.Uint32 // 0 = open, 1 = closed
}

// Close shuts the gate.
func (f *Fence) Close() { f.closed.Store(1) }

// Open opens the gate and wakes every waiter.
func (f *Fence) Open() {
	f.closed.Store(0)
	wake(&f.closed, -1) // -1: wake all waiters (FUTEX_WAKE with INT_MAX on Linux)
}

// Wait blocks until the gate is open.
func (f *Fence) Wait() {
	for {
		if f.closed.Load() == 0 {
			return
		}
		wait(&f.closed, 1)
	}
}
