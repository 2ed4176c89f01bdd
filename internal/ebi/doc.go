// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ebi implements the managed-memory runtime of the ebi virtual
// machine: a shared heap coordinating several mutator threads and
// background collector steps, structural type descriptors that drive
// precise marking, a deletion (Yuasa) write barrier with deferred link
// promotion, weak references, and a string-interning table layered on weak
// references.
//
// The surface language (lexer, parser, CLI front end) is out of scope;
// this package only implements the runtime those would call into.
package ebi
