// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "sync"

// arena keeps a strong Go-level reference to every managed allocation's
// backing byte slice for as long as ebi itself considers the allocation
// live. Go's own collector never looks inside the slice (a []byte's
// backing array is pointer-free from its point of view), so ebi's own
// mark/sweep is the only thing that can decide an object is dead; only
// then does arena.free drop the reference, after which Go's collector may
// reclaim the bytes. This is the off-heap-arena pattern used by manually
// tracked byte regions elsewhere in the ecosystem (e.g. a generation-
// counted mmap'd slot cache), adapted here to plain heap-allocated bytes
// since the malloc-per-object path (spec §1 non-goal: no slab allocator)
// needs no real mmap.
type arena struct {
	mu    sync.Mutex
	live  map[*header][]byte
	total int64
}

func newArena() *arena {
	return &arena{live: make(map[*header][]byte)}
}

func (a *arena) alloc(size uintptr) (*header, []byte) {
	buf := make([]byte, headerSize+size)
	h := (*header)(bufHeader(buf))
	a.mu.Lock()
	a.live[h] = buf
	a.total += int64(len(buf))
	a.mu.Unlock()
	return h, buf
}

func (a *arena) free(h *header) {
	a.mu.Lock()
	if buf, ok := a.live[h]; ok {
		a.total -= int64(len(buf))
		delete(a.live, h)
	}
	a.mu.Unlock()
}

// liveBytes reports the arena's current footprint, for diagnostics only
// (e.g. cmd/ebistat, cmd/ebifsck).
func (a *arena) liveBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *arena) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
