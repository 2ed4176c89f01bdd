// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import (
	"unsafe"

	"github.com/bqqbarbhg/ebi/internal/ebi/lfstack"
)

// markType is the single entry point every root, barrier and copy path
// calls with a (possibly nil) child reference (spec §4.6). It tags the
// header with the current generation — so a later sweep sees it as
// recently touched — and, the first time an object is tagged in a given
// epoch, enqueues it for the collector to trace its own fields.
func (vm *VM) markType(ref Ref, typ *TypeDesc, toG bool) {
	if ref == nil {
		return
	}
	h := headerOf(ref)
	if vm.tagMarked(h, toG) {
		vm.enqueueMark(h)
	}
}

// tagMarked reports whether h newly became marked this epoch (in which
// case the caller must enqueue it for tracing) or was already marked
// (in which case tracing it again would loop on cyclic graphs).
// Tenured (G != 0) objects are untouched by a minor mark (toG == false):
// their liveness is decided independently by the next major cycle.
func (vm *VM) tagMarked(h *header, toG bool) bool {
	cur := vm.CurrentGen()
	if toG {
		if h.gen.G == cur.G {
			return false
		}
		h.gen.G = cur.G
		return true
	}
	if h.gen.inTenured(false) {
		return false
	}
	if h.gen.N == cur.N {
		return false
	}
	h.gen.N = cur.N
	return true
}

// traceFields walks typ's described fields (and, if present, its
// trailing suffix array) starting at base, calling markType on every
// reference it finds (spec §4.2's structural descriptor walk).
func (vm *VM) traceFields(base unsafe.Pointer, typ *TypeDesc, toG bool) {
	for _, f := range typ.Fields {
		faddr := unsafe.Add(base, f.Offset)
		switch {
		case f.Flags&FlagIsRef != 0:
			child := *(*Ref)(faddr)
			vm.markType(child, f.Type, toG)
		case f.Flags&FlagHasRefs != 0:
			vm.traceFields(faddr, f.Type, toG)
		}
	}
	if typ.Flags&FlagHasSuffix != 0 {
		vm.traceSuffix(base, typ, toG)
	}
}

// traceSuffix walks a type's trailing count-prefixed array, dispatching
// per-element the same way traceFields dispatches per-field.
func (vm *VM) traceSuffix(base unsafe.Pointer, typ *TypeDesc, toG bool) {
	elemTyp := typ.Suffix
	if elemTyp == nil || elemTyp.Flags&(FlagIsRef|FlagHasRefs) == 0 {
		return
	}
	ref := Ref(base)
	count := int(Count(ref, typ))
	elemBase := suffixBase(ref, typ)
	for i := 0; i < count; i++ {
		eaddr := unsafe.Add(elemBase, uintptr(i)*typ.ElemSize)
		if elemTyp.Flags&FlagIsRef != 0 {
			child := *(*Ref)(eaddr)
			vm.markType(child, elemTyp, toG)
		} else {
			vm.traceFields(eaddr, elemTyp, toG)
		}
	}
}

// enqueueMark appends h to the VM's shared staging list for the global
// mark stack, flushing a full link the same way a thread flushes its own
// buffers (spec §4.3). Multiple threads may enqueue marks concurrently
// (roots scanned by one thread, barriers fired by another), so the
// staging list itself is guarded by a small mutex.
func (vm *VM) enqueueMark(h *header) {
	vm.markListMu.Lock()
	if vm.curMarkList == nil {
		vm.curMarkList = vm.getFreeList()
	}
	vm.curMarkList.push(h)
	if vm.curMarkList.full() {
		vm.curMarkList = vm.flushTo(&vm.markStack, vm.curMarkList)
	}
	vm.markListMu.Unlock()
}

// flushMarkList hands a partially-filled staging list to the shared mark
// stack. Unlike a thread's own buffers, the staging list has no owner
// that will naturally call Checkpoint, so the collector driver flushes
// it explicitly whenever it might be holding unreported work (end of
// scanRoots, and before MARK concludes).
func (vm *VM) flushMarkList() {
	vm.markListMu.Lock()
	if vm.curMarkList != nil && !vm.curMarkList.empty() {
		vm.markStack.Push(&vm.curMarkList.Node)
		vm.curMarkList = nil
	}
	vm.markListMu.Unlock()
}

// gcMark performs one bounded unit of mark work: pop one link of objects
// already tagged reachable and trace their fields, discovering further
// reachable objects. It returns false when the mark stack is currently
// empty (spec §4.7's MARK step: "repeat until the mark stack is empty").
func (vm *VM) gcMark() bool {
	n := vm.markStack.Pop()
	if n == nil {
		return false
	}
	list := listFromNode(n)
	for i := 0; i < list.count; i++ {
		h := list.objs[i]
		toG := h.gen.inTenured(false)
		if h.typ == vm.types.TypeDesc {
			vm.traceTypeDesc(typeDescOf(payloadOf(h)), toG)
		} else {
			vm.traceFields(unsafe.Pointer(payloadOf(h)), h.typ, toG)
		}
	}
	list.count = 0
	vm.reuseLists.Push(&list.Node)
	return true
}

// traceTypeDesc marks a TypeDesc's own pointer-shaped members (spec §9's
// bootstrap note, see the doc comment on TypeDesc): its Name string, its
// Suffix element type, and every Fields[i].Type. A TypeDesc's layout is
// native Go, not described by a TypeDesc of its own, so it cannot go
// through traceFields/Fields like an ordinary instance.
func (vm *VM) traceTypeDesc(td *TypeDesc, toG bool) {
	if td == nil {
		return
	}
	vm.markType(td.Name.Data, vm.types.Bytes, toG)
	if td.Suffix != nil {
		vm.markType(td.Suffix.AsRef(), vm.types.TypeDesc, toG)
	}
	for _, f := range td.Fields {
		if f.Type != nil {
			vm.markType(f.Type.AsRef(), vm.types.TypeDesc, toG)
		}
	}
}

// aliveTest implements spec §4.6's liveness rule: an object is alive if
// its recorded generation tag falls in the "recent half" of the tag
// space relative to the collector's current generation, computed with
// wraparound (mod-256) arithmetic so tags never need resetting.
func aliveTest(og, cur Gen) bool {
	if uint8(og.G-cur.G) < 128 {
		return true
	}
	if og.G == 0 && uint8(og.N-cur.N) < 128 {
		return true
	}
	return false
}

// gcSweep performs one bounded unit of sweep work: pop one link of
// candidate objects, partition it into survivors (re-filed under
// aliveG/aliveN1 for the next cycle) and garbage (returned to the
// arena), and fall through to sweepNext once sweepStack runs dry (spec
// §4.7's SWEEP step). It returns false once both are empty.
func (vm *VM) gcSweep() bool {
	n := vm.sweepStack.Pop()
	if n == nil {
		if next := vm.sweepNext.PopAll(); next != nil {
			vm.sweepStack.PushAll(next)
			return true
		}
		return false
	}
	list := listFromNode(n)
	cur := vm.CurrentGen()
	g := vm.getFreeList()
	n1 := vm.getFreeList()
	for i := 0; i < list.count; i++ {
		h := list.objs[i]
		if aliveTest(h.gen, cur) {
			if h.gen.inTenured(false) {
				g.push(h)
				if g.full() {
					g = vm.flushTo(&vm.aliveG, g)
				}
			} else {
				n1.push(h)
				if n1.full() {
					n1 = vm.flushTo(&vm.aliveN1, n1)
				}
			}
		} else {
			vm.freeHeader(h)
		}
	}
	vm.spillList(&vm.aliveG, g)
	vm.spillList(&vm.aliveN1, n1)
	list.count = 0
	vm.reuseLists.Push(&list.Node)
	return true
}

// spillList pushes a partially-filled list onto stack if it holds any
// survivors, otherwise returns it to the reuse pool.
func (vm *VM) spillList(stack *lfstack.Stack, l *objList) {
	if !l.empty() {
		stack.Push(&l.Node)
	} else {
		vm.reuseLists.Push(&l.Node)
	}
}

// freeHeader reclaims a dead object's weak slot (if any) and its arena
// storage.
func (vm *VM) freeHeader(h *header) {
	if h.weakSlot != 0 {
		vm.weak.release(h.weakSlot)
	}
	vm.arena.free(h)
	vm.freedObjects.Add(1)
	vm.liveObjects.Add(-1)
}
