// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

// This file carries the original implementation's slab size-class table
// (spec §1/§9: a production ebi heap allocates small objects from
// fixed-stride slabs rather than one `[]byte` per object). The Go arena
// in arena.go deliberately does not use it — Go's own allocator already
// size-classes small `[]byte` allocations, so layering a second slab
// allocator on top would only fight the runtime it's built on — but the
// table is kept verbatim as the reference a future slab-backed arena
// would need, rather than invented from scratch.

// heapClass describes one slab size class: the largest object it holds,
// and the half-open range of slab indices that format a slab's free-list
// bitmask for that size (slabOffset, slabOffset+slabCount).
type heapClass struct {
	maxSize            uint16
	slabOffset, slabCount uint16
}

// heapMaxClassSize is the largest allocation still handled by the slab
// path; anything bigger goes through a dedicated big-object path.
const heapMaxClassSize = 2048

// heapClasses is ebi_heap_classes from the original implementation,
// generated there by misc/make_heap_sizes.py.
var heapClasses = [22]heapClass{
	{16, 0, 128}, {32, 128, 128}, {48, 256, 128},
	{64, 384, 128}, {80, 512, 128}, {96, 640, 128},
	{112, 768, 128}, {128, 896, 127}, {160, 1023, 102},
	{192, 1125, 85}, {224, 1210, 72}, {256, 1282, 63},
	{320, 1345, 51}, {384, 1396, 42}, {448, 1438, 36},
	{512, 1474, 31}, {768, 1505, 21}, {1024, 1526, 15},
	{1280, 1541, 12}, {1536, 1553, 10}, {1792, 1563, 9},
	{2048, 1572, 7},
}

// heapSizeToClass maps (size-1)/16 to a heapClasses index, for sizes up
// to heapMaxClassSize. ebi_heap_size_to_class in the original.
var heapSizeToClass = [128]uint8{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 8, 9, 9, 10, 10, 11, 11,
	12, 12, 12, 12, 13, 13, 13, 13, 14, 14, 14, 14, 15, 15, 15, 15,
	16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16,
	17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17,
	18, 18, 18, 18, 18, 18, 18, 18, 18, 18, 18, 18, 18, 18, 18, 18,
	19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19, 19,
	20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20,
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21,
}

// classForSize returns the slab class that would serve an allocation of
// size bytes, or false if it belongs on the big-object path. It is the
// only reader of the tables above; nothing in the package calls it.
func classForSize(size uintptr) (heapClass, bool) {
	if size == 0 || size > heapMaxClassSize {
		return heapClass{}, false
	}
	return heapClasses[heapSizeToClass[(size-1)/16]], true
}
