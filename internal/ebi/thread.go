// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

import "github.com/bqqbarbhg/ebi/internal/ebi/parkmutex"

// deferredCap is the per-thread deferred-link buffer size spec §4.5/§9
// picks: "a buffer of 64 {src, dst} entries per thread is sufficient when
// the amortized cost of a memory fence per flush dominates."
const deferredCap = 64

type deferredLink struct {
	src, dst *header
}

type rootFrame struct {
	base  int
	typ   *TypeDesc
	count int
}

// Thread is one registered mutator (spec §3 "thread-local mutator state").
// It owns bounded buffers for newly marked objects, newly allocated
// objects split by generational group, deferred link records, and a root
// stack for precise scanning of its call frames.
type Thread struct {
	vm *VM
	id uint64

	// mu guards this thread's local buffers against being drained by the
	// collector (running on another thread) during thread_barrier.
	mu parkmutex.Mutex

	localCheckpoint uint64
	localGen        Gen

	curG, curN1, curN2 *objList
	curMark            *objList

	deferred      [deferredCap]deferredLink
	deferredCount int

	rootBytes []byte
	rootPos   int
	frames    []rootFrame
}

// MakeThread registers a new mutator with vm (spec §6 make_thread).
func (vm *VM) MakeThread() *Thread {
	t := &Thread{
		vm:        vm,
		localGen:  vm.CurrentGen(),
		rootBytes: make([]byte, rootStackBytes),
	}
	t.curG = vm.getFreeList()
	t.curN1 = vm.getFreeList()
	t.curN2 = vm.getFreeList()
	t.curMark = vm.getFreeList()

	vm.threadMutex.Lock()
	t.id = uint64(len(vm.threads))
	vm.threads = append(vm.threads, t)
	vm.threadMutex.Unlock()

	t.localCheckpoint = vm.checkpoint.Load()
	return t
}

// LockThread and UnlockThread bracket a region of mutator activity; both
// call Checkpoint (spec §4.7).
func (t *Thread) LockThread() {
	t.mu.Lock()
	t.checkpointLocked()
}

func (t *Thread) UnlockThread() {
	t.checkpointLocked()
	t.mu.Unlock()
}

// Checkpoint is the mutator safe point (spec §4.7), exposed as a
// standalone operation for callers not already inside a LockThread/
// UnlockThread bracket or one of the ops below that brackets its own
// buffer access. It takes the thread's own mutex for the duration, the
// same mutex the collector's thread_barrier locks to drain this thread's
// buffers (spec §5: the per-thread mutex "guards that thread's local
// buffers when another thread needs to drain them").
func (t *Thread) Checkpoint() {
	t.mu.Lock()
	t.checkpointLocked()
	t.mu.Unlock()
}

// checkpointLocked is Checkpoint's body, run with t.mu already held by the
// caller. If the thread is behind the VM's checkpoint counter, it
// synchronizes; if a global barrier is in flight, it releases its own
// mutex, waits on the fence, and reacquires — never holding the mutex
// across the wait (spec §5 deadlock avoidance) even though the caller
// expects to find it held again on return.
func (t *Thread) checkpointLocked() {
	if vmCp := t.vm.checkpoint.Load(); t.localCheckpoint != vmCp {
		t.synchronize(false)
		t.localCheckpoint = vmCp
	}
	if t.vm.checkpointFence.Load() {
		t.mu.Unlock()
		t.vm.threadFence.Wait()
		t.mu.Lock()
	}
}

// synchronize imports the VM's current generation and flushes this
// thread's marks, alive buffers, and deferred links. When full is true,
// it additionally drains the global mark queue to completion before
// returning, per spec §4.7's synchronize_thread(true) vs.
// synchronize_thread(ot, false) distinction. Every current caller
// (checkpointLocked, drainThreads, threadBarrier) passes false.
func (t *Thread) synchronize(full bool) {
	t.localGen = t.vm.CurrentGen()
	t.flushDeferred()
	t.flushAlive()
	t.flushMarks()
	if full {
		for t.vm.gcMark() {
		}
	}
}

func (t *Thread) flushAlive() {
	t.curG = t.vm.flushTo(&t.vm.aliveG, t.curG)
	t.curN1 = t.vm.flushTo(&t.vm.aliveN1, t.curN1)
	t.curN2 = t.vm.flushTo(&t.vm.aliveN2, t.curN2)
}

func (t *Thread) flushMarks() {
	t.curMark = t.vm.flushTo(&t.vm.markStack, t.curMark)
}
