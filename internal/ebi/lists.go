// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import (
	"unsafe"

	"github.com/bqqbarbhg/ebi/internal/ebi/lfstack"
)

// objListCap is the fixed size of one link in an object-list chain (spec
// §3 grouping, §4.3): "a chain of fixed-size object lists (64 per link) so
// it can be handed off between threads atomically."
const objListCap = 64

// objList is a 64-slot fixed array plus a count and an intrusive next,
// exactly spec §4.3. It embeds lfstack.Node as its first field so full and
// empty lists can be pushed onto the lock-free global stacks below.
type objList struct {
	lfstack.Node
	count int
	objs  [objListCap]*header
}

func listFromNode(n *lfstack.Node) *objList {
	if n == nil {
		return nil
	}
	return (*objList)(unsafe.Pointer(n))
}

func (l *objList) full() bool  { return l.count == objListCap }
func (l *objList) empty() bool { return l.count == 0 }

func (l *objList) push(h *header) {
	l.objs[l.count] = h
	l.count++
}

// getFreeList takes an empty objList from the shared reuse pool, or
// allocates a new one if the pool is empty.
func (vm *VM) getFreeList() *objList {
	if n := vm.reuseLists.Pop(); n != nil {
		l := listFromNode(n)
		l.count = 0
		return l
	}
	return &objList{}
}

// flushTo pushes cur onto stack if it holds any objects (otherwise returns
// it to the reuse pool) and hands back a fresh list to keep filling. This
// is spec §4.3's flush_marks/flush_alive(group).
func (vm *VM) flushTo(stack *lfstack.Stack, cur *objList) *objList {
	if cur != nil {
		if !cur.empty() {
			stack.Push(&cur.Node)
		} else {
			vm.reuseLists.Push(&cur.Node)
		}
	}
	return vm.getFreeList()
}

// takeAll moves every link from src into dst, used by the MARK entry
// rotation and the SWEEP entry action (spec §4.7: "atomically take
// alive[N1] into sweep"). The chain is detached from src in one atomic
// step and its links are then pushed onto dst one at a time, so dst may
// already hold links of its own.
func takeAll(dst, src *lfstack.Stack) {
	for n := src.PopAll(); n != nil; {
		next := n.Next()
		dst.Push(n)
		n = next
	}
}
