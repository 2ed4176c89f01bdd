// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "unsafe"

// rootStackBytes is the fixed capacity of a thread's root stack. Spec §4.4
// describes "a thread-owned contiguous byte stack"; we preallocate it once
// so pointers handed out by Push remain valid for the frame's lifetime —
// growing the backing slice would relocate it and dangle every outstanding
// Ref, which a stack discipline must never do.
const rootStackBytes = 1 << 20

func (t *Thread) ensureRootStack() {
	if t.rootBytes == nil {
		t.rootBytes = make([]byte, rootStackBytes)
	}
}

// Push bump-allocates type.DataSize*count zeroed bytes on the thread's root
// stack and records {base, type, count} as a frame (spec §4.4). The
// returned Ref is precisely scanned by the collector on every generation
// change until the matching Pop.
func (t *Thread) Push(typ *TypeDesc, count int) Ref {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	t.ensureRootStack()

	size := int(typ.DataSize) * count
	if t.rootPos+size > len(t.rootBytes) {
		panic("ebi: root stack overflow")
	}
	base := t.rootPos
	for i := base; i < base+size; i++ {
		t.rootBytes[i] = 0
	}
	t.rootPos += size
	t.frames = append(t.frames, rootFrame{base: base, typ: typ, count: count})
	return Ref(unsafe.Pointer(&t.rootBytes[base]))
}

// Pop unwinds the most recently pushed frame.
func (t *Thread) Pop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	if len(t.frames) == 0 {
		panic("ebi: pop of empty root stack")
	}
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.rootPos = f.base
}

// PopCheck unwinds the most recently pushed frame, asserting that it is
// the frame whose base is ref — a precondition violation (spec §7: fatal,
// not recoverable) if the caller's notion of the stack has drifted from
// the runtime's.
func (t *Thread) PopCheck(ref Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	if len(t.frames) == 0 {
		panic("ebi: pop_check of empty root stack")
	}
	f := t.frames[len(t.frames)-1]
	if uintptr(unsafe.Pointer(&t.rootBytes[f.base])) != uintptr(unsafe.Pointer(ref)) {
		panic("ebi: pop_check base mismatch")
	}
	t.frames = t.frames[:len(t.frames)-1]
	t.rootPos = f.base
}

// scanFrames precisely marks every root frame of every live thread (spec
// §4.4: "On epoch change the runtime scans every frame of every live
// thread precisely, using the frame's type descriptor"), called from the
// IDLE entry action (spec §4.7).
func (vm *VM) scanFrames(toG bool) {
	vm.threadMutex.Lock()
	threads := append([]*Thread(nil), vm.threads...)
	vm.threadMutex.Unlock()

	for _, t := range threads {
		for _, f := range t.frames {
			base := unsafe.Pointer(&t.rootBytes[f.base])
			for i := 0; i < f.count; i++ {
				elem := Ref(unsafe.Add(base, uintptr(i)*f.typ.DataSize))
				vm.traceFields(unsafe.Pointer(elem), f.typ, toG)
			}
		}
	}
}
