// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "github.com/bqqbarbhg/ebi/internal/ebi/parkmutex"

// WeakRef is a generation-tagged handle into the weak table (spec §4.9):
// {slot_index, generation}. A handle resolved after its slot has been
// reused for a different object reports itself dead rather than
// resolving to the wrong object.
type WeakRef struct {
	Slot uint32
	Gen  uint32
}

type weakSlotEntry struct {
	header *header
	gen    uint32
}

// weakTable is the VM-wide slot table backing every weak handle and the
// intern table's entries. Slot 0 is never issued so header.weakSlot == 0
// can mean "no weak handle yet" without an extra bool.
type weakTable struct {
	vm    *VM
	mu    parkmutex.Mutex
	slots []weakSlotEntry
	free  []uint32
}

func newWeakTable(vm *VM) *weakTable {
	return &weakTable{vm: vm, slots: make([]weakSlotEntry, 1)}
}

// MakeWeak returns a handle for obj, allocating a fresh slot the first
// time obj is weakly referenced and reusing it on every subsequent call
// (spec §4.9 make_weak).
func (t *Thread) MakeWeak(obj Ref) WeakRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	h := headerOf(obj)
	wt := t.vm.weak

	wt.mu.Lock()
	defer wt.mu.Unlock()

	if h.weakSlot != 0 {
		s := &wt.slots[h.weakSlot]
		return WeakRef{Slot: h.weakSlot, Gen: s.gen}
	}

	var idx uint32
	if n := len(wt.free); n > 0 {
		idx = wt.free[n-1]
		wt.free = wt.free[:n-1]
	} else {
		idx = uint32(len(wt.slots))
		wt.slots = append(wt.slots, weakSlotEntry{})
	}
	s := &wt.slots[idx]
	s.header = h
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	h.weakSlot = idx
	return WeakRef{Slot: idx, Gen: s.gen}
}

// ResolveWeak returns the referenced object, or nil if it has been
// collected, the handle is stale, or (spec §4.9) the collector is mid
// SWEEP and has not yet established that this generation's copy of the
// object survives — resolving during that window must never resurrect
// an object the sweep is about to free. Outside of SWEEP, an object the
// collector has not yet tagged with the current generation is revived by
// marking it on the spot, so a weak-only reference can keep an object
// alive through the cycle in progress (spec §4.8's "revive on resolve").
func (vm *VM) ResolveWeak(w WeakRef) Ref {
	vm.weak.mu.Lock()
	defer vm.weak.mu.Unlock()

	if w.Slot == 0 || int(w.Slot) >= len(vm.weak.slots) {
		return nil
	}
	s := &vm.weak.slots[w.Slot]
	if s.gen != w.Gen || s.header == nil {
		return nil
	}

	h := s.header
	cur := vm.CurrentGen()
	if h.gen.G != cur.G && (h.gen.G != 0 || h.gen.N != cur.N) {
		vm.gcMutex.Lock()
		sweeping := vm.driverState == stateSweep
		vm.gcMutex.Unlock()
		if sweeping {
			if !aliveTest(h.gen, cur) {
				return nil
			}
		} else {
			vm.markType(payloadOf(h), h.typ, h.gen.inTenured(false))
			vm.flushMarkList()
		}
	}
	return payloadOf(h)
}

// probablyAlive is the non-reviving liveness check the intern table's
// rehash-time pruning uses (spec §4.9: "prunes those whose weak handle is
// no longer probably valid"). Unlike ResolveWeak it never marks: pruning
// must not be the thing that keeps an otherwise-dead interned string
// alive, since the intern table holds its entries weakly by design.
func (vm *VM) probablyAlive(w WeakRef) bool {
	vm.weak.mu.Lock()
	defer vm.weak.mu.Unlock()

	if w.Slot == 0 || int(w.Slot) >= len(vm.weak.slots) {
		return false
	}
	s := &vm.weak.slots[w.Slot]
	if s.gen != w.Gen || s.header == nil {
		return false
	}

	vm.gcMutex.Lock()
	sweeping := vm.driverState == stateSweep
	cur := vm.CurrentGen()
	vm.gcMutex.Unlock()
	if sweeping {
		return aliveTest(s.header.gen, cur)
	}
	return true
}

// release is called by freeHeader when the sweep reclaims an object that
// held a weak slot: the slot is cleared and returned to the free list so
// any outstanding WeakRef sees gen mismatch or header == nil.
func (wt *weakTable) release(slot uint32) {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	wt.slots[slot].header = nil
	wt.free = append(wt.free, slot)
}
