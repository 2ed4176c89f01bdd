// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "unsafe"

// EbiString is the managed string view: a reference to a byte-array
// object's payload plus a begin/length window into it, the shape spec §6's
// set_string convenience writer assumes ("barriered write of the data
// pointer plus plain assignment of begin/length").
type EbiString struct {
	Data         Ref
	Begin, Length uint32
}

// Bytes reads the window EbiString describes. It does not itself
// synchronize with the collector; callers must be on a checked-in thread
// (spec §5: between checkpoints a thread's observable state is stable).
func (s EbiString) Bytes() []byte {
	if s.Data == nil || s.Length == 0 {
		return nil
	}
	base := unsafe.Add(unsafe.Pointer(s.Data), uintptr(4)+uintptr(s.Begin))
	return unsafe.Slice((*byte)(base), int(s.Length))
}

// newByteArray allocates a managed byte array (spec §3: "a trailing
// array's element count lives as a uint32 prefix at the start of the
// trailing region") and copies data into it, returning an EbiString
// spanning the whole thing.
func (t *Thread) newByteArray(data []byte) EbiString {
	ref := t.NewArray(t.vm.types.Bytes, len(data))
	if len(data) > 0 {
		dst := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(ref), 4)), len(data))
		copy(dst, data)
	}
	return EbiString{Data: ref, Begin: 0, Length: uint32(len(data))}
}
