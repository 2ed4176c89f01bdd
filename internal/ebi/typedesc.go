// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "unsafe"

// TypeFlag describes what a TypeDesc's payload looks like to the tracer.
type TypeFlag uint8

const (
	// FlagIsRef marks a reference cell: the whole payload is a single Ref.
	FlagIsRef TypeFlag = 1 << iota
	// FlagHasRefs means one or more field offsets carry managed references.
	FlagHasRefs
	// FlagHasSuffix means the instance carries a length-prefixed trailing
	// array whose element type is Suffix.
	FlagHasSuffix
)

// Field describes one reference-bearing field of a type's fixed head.
type Field struct {
	Type   *TypeDesc
	Offset uintptr
	Flags  TypeFlag
}

// TypeDesc is the structural type descriptor that drives precise marking
// (spec §3, §4.6). A TypeDesc is itself a managed object — its header is
// marked too — but unlike ordinary instances, whose layout is only known
// through a TypeDesc's own Fields list, a TypeDesc's own fields are native
// Go fields (Fields is a real slice, Suffix/Name are real pointers). Tracing
// a TypeDesc therefore doesn't go through mark_type recursively on itself;
// traceTypeDesc (trace.go) marks its three pointer-shaped members directly.
// This is the Go rendition of spec §9's bootstrap note: the descriptor type
// describes itself, and the one object whose layout isn't described by a
// TypeDesc is a TypeDesc.
type TypeDesc struct {
	header

	DataSize uintptr // head size
	ElemSize uintptr // trailing-array element stride, or 0
	Flags    TypeFlag
	Fields   []Field   // ordinary reference-bearing fields
	Suffix   *TypeDesc // trailing-array element type, set iff FlagHasSuffix
	Name     EbiString // for diagnostics
}

// AsRef exposes t's payload address the way any other managed object's
// would be exposed, for storage in reference-bearing fields (e.g. an
// instance header's typ field conceptually, or a field that stores "a
// type" as data).
func (t *TypeDesc) AsRef() Ref {
	return payloadOf(&t.header)
}

// typeDescOf recovers the *TypeDesc whose payload is ref, valid because
// header is TypeDesc's first field (the same trick lfstack.Node relies on
// for its embedders: a pointer to a struct's first field shares the
// struct's own address).
func typeDescOf(ref Ref) *TypeDesc {
	if ref == nil {
		return nil
	}
	return (*TypeDesc)(unsafe.Pointer(headerOf(ref)))
}
