// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "unsafe"

// Ref is a pointer to a managed object's payload — the address immediately
// after its header, which is what every ebi operation hands callers. It is
// never dereferenced directly except through the field accessors in this
// package; external collaborators only pass it back to ebi.
type Ref unsafe.Pointer

// Gen is the two-byte generation tag from spec §3: g==0 means the object
// lives in the nursery ("N"); g!=0 means promoted ("G"). n is its current
// nursery epoch. Kept as two bytes, not a boolean pair, because changing
// the representation would require re-specifying the §4.6 aliveness test.
type Gen struct {
	G, N uint8
}

// header is prepended to every managed allocation. It is never handed out
// directly; Ref points just past it.
type header struct {
	typ        *TypeDesc
	gen        Gen
	weakSlot   uint32
	poolOffset uint32 // reserved for the slab allocator sketch; always 0 on the malloc path
}

var headerSize = unsafe.Sizeof(header{})

// headerOf recovers the header immediately preceding ref's payload. ref
// must be a non-nil Ref returned by this package.
func headerOf(ref Ref) *header {
	return (*header)(unsafe.Add(unsafe.Pointer(ref), -int(headerSize)))
}

// payloadOf returns the payload address for a freshly allocated block whose
// header starts at h.
func payloadOf(h *header) Ref {
	return Ref(unsafe.Add(unsafe.Pointer(h), headerSize))
}

// bufHeader returns the address of buf's backing array, which a fresh
// allocation uses as its header address.
func bufHeader(buf []byte) unsafe.Pointer {
	return unsafe.Pointer(&buf[0])
}

// inTenured reports whether g is in the tenured group G (promoted objects
// stay tenured forever; toG forces treating an object as tenured even
// before its gen.G is actually set, which is how marking with to_g=true
// reclassifies an object mid-trace, per spec §4.6).
func (g Gen) inTenured(toG bool) bool {
	return g.G != 0 || toG
}
