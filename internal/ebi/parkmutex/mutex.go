// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parkmutex implements the mutex and fence primitives spec §4.2
// asks for: a 1-bit lock word plus a 31-bit waiter count, with an
// uncontended acquire/release costing a single CAS and contention parking
// on the OS's wait-on-address primitive (the futex syscall through
// golang.org/x/sys/unix on Linux; elsewhere, a polling backoff loop that
// yields and briefly sleeps until the word changes, per spec §9's
// explicit license to replace the OS-specific primitive).
package parkmutex

import "sync/atomic"

const (
	lockedBit   = 1
	waiterShift = 1
)

// Mutex is a 1-bit lock plus a 31-bit waiter counter, the shape spec §4.2
// names. The zero value is an unlocked mutex.
type Mutex struct {
	state atomic.Uint32
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock() bool {
	for {
		s := m.state.Load()
		if s&lockedBit != 0 {
			return false
		}
		if m.state.CompareAndSwap(s, s|lockedBit) {
			return true
		}
	}
}

// Lock acquires the mutex, parking on contention.
func (m *Mutex) Lock() {
	if m.state.CompareAndSwap(0, lockedBit) {
		return
	}
	for {
		s := m.state.Load()
		if s&lockedBit == 0 {
			if m.state.CompareAndSwap(s, s|lockedBit) {
				return
			}
			continue
		}
		// Register as a waiter, then park until the word changes.
		withWaiter := s + (1 << waiterShift)
		if !m.state.CompareAndSwap(s, withWaiter) {
			continue
		}
		wait(&m.state, withWaiter)
		// Unregister before retrying the acquire.
		for {
			cur := m.state.Load()
			if m.state.CompareAndSwap(cur, cur-(1<<waiterShift)) {
				break
			}
		}
	}
}

// Unlock releases the mutex and wakes one parked waiter if any are
// registered.
func (m *Mutex) Unlock() {
	for {
		s := m.state.Load()
		if s&lockedBit == 0 {
			panic("parkmutex: unlock of unlocked mutex")
		}
		if m.state.CompareAndSwap(s, s&^lockedBit) {
			if s>>waiterShift != 0 {
				wake(&m.state, 1)
			}
			return
		}
	}
}
