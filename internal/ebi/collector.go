// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ebi

// GCStep advances the collector's IDLE -> MARK -> SWEEP state machine by
// one bounded unit of work (spec §4.7). Any registered thread may call
// it; there is no dedicated collector goroutine. Calling it while IDLE
// starts a new cycle: a stop-the-world thread_barrier that publishes a
// fresh generation epoch, followed by a scan of every global root.
func (vm *VM) GCStep() {
	vm.gcMutex.Lock()
	state := vm.driverState
	major := vm.major
	vm.gcMutex.Unlock()

	switch state {
	case stateIdle:
		vm.enterMark()
	case stateMark:
		if vm.gcMark() {
			return
		}
		// MARK only ends once every thread has flushed its deferred
		// links, alive buffers and local mark list past the current
		// checkpoint (spec §4.7's exit trigger) — draining them can
		// itself surface new mark work, so try once more before
		// handing off to SWEEP.
		vm.drainThreads()
		vm.flushMarkList()
		if !vm.gcMark() {
			vm.enterSweep(major)
		}
	case stateSweep:
		if !vm.gcSweep() {
			vm.enterIdle()
		}
	}
}

// drainThreads forces every registered thread to flush its local
// buffers, the same work a thread's own Checkpoint performs, without
// waiting for each thread to reach one on its own.
func (vm *VM) drainThreads() {
	vm.threadMutex.Lock()
	threads := append([]*Thread(nil), vm.threads...)
	vm.threadMutex.Unlock()

	for _, t := range threads {
		t.mu.Lock()
		t.synchronize(false)
		t.mu.Unlock()
	}
}

// GCAssist drives the collector through one entire cycle before
// returning, for callers that want a synchronous collection (tests, an
// explicit "collect now" request) instead of incremental background
// steps. The VM must be IDLE when called.
func (vm *VM) GCAssist() {
	vm.GCStep()
	for {
		vm.gcMutex.Lock()
		s := vm.driverState
		vm.gcMutex.Unlock()
		if s == stateIdle {
			return
		}
		vm.GCStep()
	}
}

// enterMark picks major/minor per the configured policy, runs the
// stop-the-world barrier, rotates last cycle's freshly-allocated buffer
// into this cycle's sweep candidates, and scans every root.
func (vm *VM) enterMark() {
	vm.gcMutex.Lock()
	major := vm.majorCycles%vm.majorEvery == 0
	vm.major = major
	vm.driverState = stateMark
	vm.gcMutex.Unlock()

	vm.threadBarrier(major)

	// Objects allocated during the cycle that just ended were too young
	// to sweep then (spec §4.3: N2 is "freshly allocated this cycle");
	// by now the barrier has flushed every thread's N2 buffer into
	// vm.aliveN2, so they become this cycle's N1 (§4.6/§4.7: "N1 is
	// previous nursery, candidate for next minor sweep"), and N2 starts
	// empty to collect whatever this cycle allocates.
	takeAll(&vm.aliveN1, &vm.aliveN2)

	vm.scanRoots(major)
}

// scanRoots marks every global root: the type registry (types are
// permanent, tenured objects) and every mutator thread's root stack
// (spec §4.4). The intern table is only pruned of dead entries here; it
// holds its strings weakly and marks nothing (spec §4.9).
func (vm *VM) scanRoots(major bool) {
	vm.typeRegistryMu.Lock()
	types := append([]*TypeDesc(nil), vm.typeRegistry...)
	vm.typeRegistryMu.Unlock()

	for _, t := range types {
		vm.markType(t.AsRef(), vm.types.TypeDesc, true)
	}
	vm.intern.markRoots(major)
	vm.scanFrames(major)
	vm.flushMarkList()
}

// enterSweep hands alive[N1] to the sweep stack, and on a major cycle
// also hands alive[G] to sweepNext so tenured space is reclaimed too
// (spec §4.6: minor cycles never revisit tenured memory).
func (vm *VM) enterSweep(major bool) {
	takeAll(&vm.sweepStack, &vm.aliveN1)
	if major {
		takeAll(&vm.sweepNext, &vm.aliveG)
	}
	vm.gcMutex.Lock()
	vm.driverState = stateSweep
	vm.gcMutex.Unlock()
}

func (vm *VM) enterIdle() {
	vm.gcMutex.Lock()
	vm.driverState = stateIdle
	vm.majorCycles++
	vm.gcMutex.Unlock()
}

// threadBarrier is the one moment every mutator thread is synchronized
// at once (spec §4.7/§5): lock out new threads, close the gate so any
// thread hitting Checkpoint blocks, bump the checkpoint counter and the
// generation epoch, drain every registered thread's local buffers under
// its own mutex, then reopen the gate. No thread ever holds its own
// mutex while waiting on the gate (see Thread.Checkpoint), so this
// cannot deadlock against a thread blocked in LockThread/UnlockThread.
func (vm *VM) threadBarrier(major bool) {
	vm.threadMutex.Lock()
	vm.threadFence.Close()
	vm.checkpointFence.Store(true)
	vm.checkpoint.Add(1)
	vm.bumpGen(major)

	for _, t := range vm.threads {
		t.mu.Lock()
		t.synchronize(false)
		t.mu.Unlock()
	}

	vm.checkpointFence.Store(false)
	vm.threadFence.Open()
	vm.threadMutex.Unlock()
}

// bumpGen publishes the next generation epoch. N always advances (0 is
// reserved so a zeroed header.gen.N never aliases a real epoch); G only
// advances on a major cycle.
func (vm *VM) bumpGen(major bool) {
	cur := vm.CurrentGen()
	n := cur.N + 1
	if n == 0 {
		n = 1
	}
	g := cur.G
	if major {
		g++
		if g == 0 {
			g = 1
		}
	}
	vm.curGen.Store(packGen(Gen{G: g, N: n}))
}
