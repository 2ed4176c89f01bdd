// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "unsafe"

// AssignRef writes value into the reference-typed field at byte offset
// offset of inst, applying the two-phase barrier of spec §4.5. The
// deletion side marks the slot's old contents immediately, in their own
// group, preserving the snapshot-at-the-beginning invariant for whatever
// the mutator is about to disconnect. The insertion side is deferred: it
// only matters once the new edge is visible, so recording it can wait
// for a batched flush instead of paying a mark on every single write.
//
// inst may be a heap allocation or a root-stack frame (spec §4.4's
// push/pop); a frame has no header of its own, but it is already
// rescanned precisely on every epoch change, so a write into one needs
// no deferred bookkeeping — the next scan observes the new edge
// directly.
func (t *Thread) AssignRef(inst Ref, offset uintptr, value Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpointLocked()
	slot := (*Ref)(unsafe.Add(unsafe.Pointer(inst), offset))
	old := *slot
	if old != nil {
		h := headerOf(old)
		t.vm.markType(old, h.typ, h.gen.inTenured(false))
	}
	if value != nil && !t.inRootStack(inst) {
		t.deferLink(headerOf(inst), headerOf(value))
	}
	*slot = value
}

// inRootStack reports whether ref falls within this thread's root-stack
// backing array rather than pointing at a header-prefixed heap
// allocation.
func (t *Thread) inRootStack(ref Ref) bool {
	if len(t.rootBytes) == 0 {
		return false
	}
	p := uintptr(unsafe.Pointer(ref))
	base := uintptr(unsafe.Pointer(&t.rootBytes[0]))
	return p >= base && p < base+uintptr(len(t.rootBytes))
}

// SetString writes src into the EbiString-shaped field at dst (the Data
// reference goes through AssignRef; Begin/Length are plain scalar
// writes, spec §4.2's distinction between reference and value fields).
func (t *Thread) SetString(dst Ref, src EbiString) {
	t.AssignRef(dst, 0, src.Data)
	base := unsafe.Add(unsafe.Pointer(dst), uintptrSize)
	*(*uint32)(base) = src.Begin
	*(*uint32)(unsafe.Add(base, 4)) = src.Length
}

func (t *Thread) deferLink(src, dst *header) {
	if t.deferredCount == deferredCap {
		t.flushDeferred()
	}
	t.deferred[t.deferredCount] = deferredLink{src: src, dst: dst}
	t.deferredCount++
}

// flushDeferred drains the deferred-link buffer (spec §4.5/§4.7, called
// from synchronize and whenever the buffer fills). Every deferred link
// records the *new* value a field was just pointed at; flushing it marks
// that value reachable so the edge the mutator just inserted cannot be
// missed by the current cycle. A link that crosses the tenured/nursery
// boundary in either direction promotes the destination (toG=true) so a
// minor cycle — which never retraces an already-tenured object's fields
// — still keeps a freshly attached nursery object alive (spec §4.6). A
// link that stays within the tenured group must still mark dst *in its
// own group* (spec §4.5): since dst is already tenured, that group is G,
// so toG is forced true there too — otherwise an edge inserted into an
// already-blackened G object mid-major-cycle would never be traced.
func (t *Thread) flushDeferred() {
	for i := 0; i < t.deferredCount; i++ {
		link := t.deferred[i]
		crossGen := link.src.gen.inTenured(false) != link.dst.gen.inTenured(false)
		toG := crossGen || link.dst.gen.inTenured(false)
		t.vm.markType(payloadOf(link.dst), link.dst.typ, toG)
	}
	t.deferredCount = 0
}
