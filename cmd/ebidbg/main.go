// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ebidbg is an interactive console for poking at a running ebi
// VM: interning strings, rooting and dropping them, forcing collection
// cycles, and resolving weak handles. It is not a debugger for the
// surface language (out of core scope, spec §1) — just a small
// line-edited front end onto the runtime's exported operations, filling
// the interactive-tool gap the teacher's own goi leaves unfinished.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"golang.org/x/term"

	"github.com/bqqbarbhg/ebi/internal/ebi"
)

func main() {
	log.SetPrefix("ebidbg: ")
	log.SetFlags(0)

	var flagMajorEvery = flag.Uint64("major-every", 0, "collect a major cycle every `n`th collection (0: default)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	vm := ebi.MakeVM(ebi.Config{MajorEvery: *flagMajorEvery})
	d := &console{vm: vm, thread: vm.MakeThread()}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		d.runInteractive()
	} else {
		d.runPiped(os.Stdin)
	}
}

// console holds named interned strings. "intern" does not root a string;
// "keep" roots it by pushing a frame on the thread's root stack, and
// "drop" pops the most recently pushed frame whatever name it is given.
// Because Thread.Pop always unwinds the most recently pushed frame, roots
// must be dropped in LIFO order — the same discipline the runtime itself
// requires of any caller (spec §4.4).
type console struct {
	vm     *ebi.VM
	thread *ebi.Thread
	roots  []root
}

type root struct {
	name string
	str  ebi.EbiString
	weak ebi.WeakRef
}

func (d *console) runInteractive() {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatalf("entering raw mode: %v", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	rw := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	t := term.NewTerminal(rw, "ebi> ")

	for {
		line, err := t.ReadLine()
		if err != nil {
			return
		}
		if out := d.eval(line); out != "" {
			fmt.Fprint(t, strings.ReplaceAll(out, "\n", "\r\n"))
		}
	}
}

func (d *console) runPiped(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if out := d.eval(scanner.Text()); out != "" {
			fmt.Fprint(os.Stdout, out)
		}
	}
}

// eval parses one command line with shell-style quoting (the same
// tokenizing the teacher's build tooling pulls this library in for) and
// dispatches it, returning the output to print.
func (d *console) eval(line string) string {
	words, err := shellquote.Split(line)
	if err != nil {
		return fmt.Sprintf("parse error: %v\n", err)
	}
	if len(words) == 0 {
		return ""
	}

	switch words[0] {
	case "help":
		return "commands: intern <name> <text> | keep <name> | drop <name> | weak <name> | resolve <name> | gc | stats | quit\n"
	case "intern":
		if len(words) != 3 {
			return "usage: intern <name> <text>\n"
		}
		s := d.thread.Intern([]byte(words[2]))
		d.roots = append(d.roots, root{name: words[1], str: s})
		return fmt.Sprintf("%s = %q\n", words[1], s.Bytes())
	case "keep":
		if len(words) != 2 {
			return "usage: keep <name>\n"
		}
		r := d.find(words[1])
		if r == nil {
			return "no such name\n"
		}
		ref := d.thread.Push(d.vm.StringType(), 1)
		d.thread.SetString(ref, r.str)
		return fmt.Sprintf("rooted %s (drop it before any other keep/drop)\n", words[1])
	case "drop":
		if len(words) != 2 {
			return "usage: drop <name>\n"
		}
		if d.find(words[1]) == nil {
			return "no such name\n"
		}
		d.thread.Pop()
		return ""
	case "weak":
		if len(words) != 2 {
			return "usage: weak <name>\n"
		}
		r := d.find(words[1])
		if r == nil {
			return "no such name\n"
		}
		r.weak = d.thread.MakeWeak(r.str.Data)
		return fmt.Sprintf("weak(%s) = {slot=%d gen=%d}\n", words[1], r.weak.Slot, r.weak.Gen)
	case "resolve":
		if len(words) != 2 {
			return "usage: resolve <name>\n"
		}
		r := d.find(words[1])
		if r == nil {
			return "no such name\n"
		}
		if d.vm.ResolveWeak(r.weak) != nil {
			return "alive\n"
		}
		return "dead\n"
	case "gc":
		d.vm.GCAssist()
		gen := d.vm.CurrentGen()
		return fmt.Sprintf("ran one full collection cycle, generation now {G:%d N:%d}\n", gen.G, gen.N)
	case "stats":
		gen := d.vm.CurrentGen()
		return fmt.Sprintf("generation {G:%d N:%d}\n", gen.G, gen.N)
	case "quit", "exit":
		os.Exit(0)
	default:
		return fmt.Sprintf("unknown command %q (try help)\n", words[0])
	}
	return ""
}

func (d *console) find(name string) *root {
	for i := range d.roots {
		if d.roots[i].name == name {
			return &d.roots[i]
		}
	}
	return nil
}
