// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ebistat drives a synthetic allocation workload through an ebi
// VM, times each garbage collection cycle, and reports pause-time
// statistics the same way the teacher's benchplot/buildstats report
// benchmark-over-time metrics: percentile summaries via the author's own
// go-moremath/stats package, basic reductions via gonum/floats, and (by
// default) an SVG plot of pause time against cycle index via go-gg.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"
	"unsafe"

	"github.com/aclements/go-gg/gg"
	"github.com/aclements/go-gg/table"
	"github.com/aclements/go-moremath/stats"
	"github.com/gonum/floats"

	"github.com/bqqbarbhg/ebi/internal/ebi"
)

func main() {
	log.SetPrefix("ebistat: ")
	log.SetFlags(0)

	var (
		flagCycles = flag.Int("cycles", 20, "run `n` collection cycles")
		flagNodes  = flag.Int("nodes", 5000, "size of the rooted allocation graph")
		flagOut    = flag.String("o", "", "write SVG plot to `file` (default: ebistat.svg)")
		flagTable  = flag.Bool("table", false, "print the per-cycle sample table instead of a plot")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	samples := runWorkload(*flagCycles, *flagNodes)

	pauses := make([]float64, len(samples))
	for i, s := range samples {
		pauses[i] = s.PauseMS
	}
	summarize(pauses)

	if *flagTable {
		table.Print(table.TableFromStructs(samples))
		return
	}

	out := *flagOut
	if out == "" {
		out = "ebistat.svg"
	}
	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	p := gg.NewPlot(table.TableFromStructs(samples))
	p.Add(gg.LayerLines{X: "Cycle", Y: "PauseMS"})
	p.Add(gg.Title(fmt.Sprintf("ebi GC pause time over %d cycles (%d nodes)", *flagCycles, *flagNodes)))
	if err := p.WriteSVG(f, 800, 400); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", out)
}

// sample is one collection cycle's measurement; its exported field names
// become table.TableFromStructs column names.
type sample struct {
	Cycle   int
	PauseMS float64
}

var ptrSize = unsafe.Sizeof(uintptr(0))

// runWorkload builds a rooted ring of nodes (every node's Left points to
// the next; the head's Right is pointed at a fresh leaf each cycle —
// enough cross-generational churn to exercise promotion and the deletion
// barrier) and drives nCycles full collections, timing each with GCAssist.
func runWorkload(nCycles, nNodes int) []sample {
	vm := ebi.MakeVM(ebi.Config{})
	thread := vm.MakeThread()

	pair := vm.NewType(ebi.TypeDesc{DataSize: 2 * ptrSize, Flags: ebi.FlagHasRefs})
	pair.Fields = []ebi.Field{
		{Type: pair, Offset: 0, Flags: ebi.FlagIsRef},
		{Type: pair, Offset: ptrSize, Flags: ebi.FlagIsRef},
	}

	root := thread.Push(pair, 1)
	head := thread.New(pair)
	thread.AssignRef(root, 0, head)

	prev := head
	for i := 1; i < nNodes; i++ {
		n := thread.New(pair)
		thread.AssignRef(prev, 0, n)
		prev = n
	}
	thread.AssignRef(prev, 0, head) // close the ring

	samples := make([]sample, nCycles)
	for c := 0; c < nCycles; c++ {
		// Replace head's Right leaf every cycle so the deletion
		// barrier and deferred-link promotion see real cross-
		// generation traffic (spec §4.5/§4.6): the old leaf goes
		// white, the new one starts in the nursery.
		leaf := thread.New(pair)
		thread.AssignRef(head, ptrSize, leaf)

		start := time.Now()
		vm.GCAssist()
		samples[c] = sample{Cycle: c, PauseMS: float64(time.Since(start)) / float64(time.Millisecond)}
	}
	return samples
}

func summarize(pauses []float64) {
	mean := stats.Mean(pauses)
	p50 := stats.Sample{Xs: pauses}.Percentile(0.5)
	p99 := stats.Sample{Xs: pauses}.Percentile(0.99)
	sum := floats.Sum(pauses)
	max := floats.Max(pauses)
	fmt.Printf("cycles=%d mean=%.3fms p50=%.3fms p99=%.3fms max=%.3fms total=%.3fms\n",
		len(pauses), mean, p50, p99, max, sum)
}
