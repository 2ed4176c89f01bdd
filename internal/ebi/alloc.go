// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "unsafe"

// countPrefixSize is the width of the uint32 element-count prefix spec §3
// requires at the start of every trailing array's region.
const countPrefixSize = 4

// New allocates a scalar instance of typ, zeroed, and records it in the
// N2 alive buffer (spec §4.4).
func (t *Thread) New(typ *TypeDesc) Ref {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	h, _ := t.vm.arena.alloc(typ.DataSize)
	h.typ = typ
	h.gen = Gen{G: 0, N: t.localGen.N}
	t.recordNew(h)
	return payloadOf(h)
}

// NewArray allocates typ.data_size fixed bytes plus a count-prefixed
// trailing array of count typ.elem_size elements (spec §4.4).
func (t *Thread) NewArray(typ *TypeDesc, count int) Ref {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	size := typ.DataSize + countPrefixSize + typ.ElemSize*uintptr(count)
	h, _ := t.vm.arena.alloc(size)
	h.typ = typ
	h.gen = Gen{G: 0, N: t.localGen.N}
	ref := payloadOf(h)
	*countOf(ref, typ) = uint32(count)
	t.recordNew(h)
	return ref
}

// NewCopy allocates like NewArray (count==0 for non-suffix types behaves
// like New) and memcpy's from src, then immediately marks every reference
// slot in the copy so the source's outgoing edges cannot be lost even
// though the copy didn't exist when the collector last looked (spec §4.5:
// equivalent to running an insertion barrier over every field of the new
// object).
func (t *Thread) NewCopy(typ *TypeDesc, count int, src Ref) Ref {
	var ref Ref
	var n uintptr
	if typ.Flags&FlagHasSuffix != 0 {
		ref = t.NewArray(typ, count)
		n = typ.DataSize + countPrefixSize + typ.ElemSize*uintptr(count)
	} else {
		ref = t.New(typ)
		n = typ.DataSize
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(ref)), int(n))
	srcBytes := unsafe.Slice((*byte)(unsafe.Pointer(src)), int(n))
	copy(dst, srcBytes)
	t.vm.traceFields(unsafe.Pointer(ref), typ, headerOf(ref).gen.inTenured(false))
	return ref
}

// countOf returns a pointer to the uint32 element-count prefix of an
// instance of typ at ref.
func countOf(ref Ref, typ *TypeDesc) *uint32 {
	return (*uint32)(unsafe.Add(unsafe.Pointer(ref), typ.DataSize))
}

// Count reads the element count of a trailing-array instance.
func Count(ref Ref, typ *TypeDesc) uint32 {
	return *countOf(ref, typ)
}

// suffixBase returns the address of the first trailing-array element.
func suffixBase(ref Ref, typ *TypeDesc) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(ref), typ.DataSize+countPrefixSize)
}

func (t *Thread) recordNew(h *header) {
	t.curN2.push(h)
	if t.curN2.full() {
		t.curN2 = t.vm.flushTo(&t.vm.aliveN2, t.curN2)
	}
	t.vm.liveObjects.Add(1)
}
