// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Error is the small immutable error value spec §7 assigns to builtins
// (e.g. list_push) and bounds-check failures. The surface language treats
// these as exceptions; the core runtime only defines the type, not a
// stack-unwinding policy.
type Error struct {
	Message string
	frame   xerrors.Frame
}

func newError(format string, args ...interface{}) *Error {
	return &Error{
		Message: xerrors.Errorf(format, args...).Error(),
		frame:   xerrors.Caller(1),
	}
}

func (e *Error) Error() string { return e.Message }

// FormatError implements xerrors.Formatter so *Error prints a call site the
// way every other xerrors-based error in this module's dependency graph does.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Print(e.Message)
	e.frame.Format(p)
	return nil
}

// Format hands fmt's verbs to xerrors.FormatError, which uses FormatError.
func (e *Error) Format(s fmt.State, v rune) { xerrors.FormatError(e, s, v) }

// ErrBoundsCheck is returned by indexed accesses that fail their bounds
// check (spec §7).
func ErrBoundsCheck() *Error {
	return newError("Bounds check")
}
