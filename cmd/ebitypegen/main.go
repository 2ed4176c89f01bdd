// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ebitypegen derives ebi.TypeDesc literals from Go struct
// declarations, the way a caller embedding the ebi runtime would describe
// its own managed object shapes without hand-writing field offset tables.
//
// ebitypegen loads a package with go/packages, walks its syntax with
// go/ast/inspector looking for struct types marked with a leading
// "//ebi:type" doc comment, and for each one emits a var of type
// ebi.TypeDesc whose Fields use unsafe.Offsetof against the real struct so
// the offsets stay correct even as the struct's layout changes — the
// generated file lets the Go compiler compute them, rather than ebitypegen
// guessing at layout itself.
//
// A field is treated as a managed reference if its type is a pointer to
// another "//ebi:type"-marked struct in the same package. A trailing field
// whose type is a slice of a marked struct becomes the type's suffix
// array; only the last field may be a slice.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/format"
	"go/types"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/packages"
)

func main() {
	log.SetPrefix("ebitypegen: ")
	log.SetFlags(0)

	var (
		flagOutput = flag.String("o", "ebitypes_gen.go", "write generated source to `file`")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <package pattern>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	pattern := flag.Arg(0)

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo |
			packages.NeedSyntax | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		log.Fatalf("loading %s: %v", pattern, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}
	if len(pkgs) != 1 {
		log.Fatalf("pattern %s must resolve to exactly one package, got %d", pattern, len(pkgs))
	}
	pkg := pkgs[0]

	marked := findMarkedStructs(pkg)
	if len(marked) == 0 {
		log.Fatalf("no //ebi:type structs found in %s", pkg.PkgPath)
	}

	src := generate(pkg.Name, marked)
	formatted, err := format.Source(src)
	if err != nil {
		log.Fatalf("generated invalid Go source: %v\n%s", err, src)
	}
	if err := os.WriteFile(*flagOutput, formatted, 0o644); err != nil {
		log.Fatalf("writing %s: %v", *flagOutput, err)
	}
}

type markedStruct struct {
	name   string
	fields []*types.Var
}

type refField struct {
	name, typ string
}

// findMarkedStructs walks pkg's syntax for type declarations with a
// leading "//ebi:type" doc comment and records their field lists from the
// type-checked AST (so embedded field types resolve correctly).
func findMarkedStructs(pkg *packages.Package) map[string]markedStruct {
	out := map[string]markedStruct{}
	insp := inspector.New(pkg.Syntax)
	insp.Preorder([]ast.Node{(*ast.GenDecl)(nil)}, func(n ast.Node) {
		gd := n.(*ast.GenDecl)
		if gd.Tok.String() != "type" || gd.Doc == nil || !hasMarker(gd.Doc) {
			return
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if _, ok := ts.Type.(*ast.StructType); !ok {
				continue
			}
			obj, ok := pkg.TypesInfo.Defs[ts.Name]
			if !ok {
				continue
			}
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			structType, ok := named.Underlying().(*types.Struct)
			if !ok {
				continue
			}
			var fields []*types.Var
			for i := 0; i < structType.NumFields(); i++ {
				fields = append(fields, structType.Field(i))
			}
			out[ts.Name.Name] = markedStruct{name: ts.Name.Name, fields: fields}
		}
	})
	return out
}

func hasMarker(doc *ast.CommentGroup) bool {
	for _, c := range doc.List {
		if strings.Contains(c.Text, "ebi:type") {
			return true
		}
	}
	return false
}

// describeFields classifies s's fields into reference fields (pointer to
// another marked struct) and an optional trailing suffix field (a slice
// of a marked struct, only permitted as the last field).
func describeFields(name string, s markedStruct, marked map[string]markedStruct) (fields []refField, suffix string) {
	for i, f := range s.fields {
		last := i == len(s.fields)-1
		switch t := f.Type().(type) {
		case *types.Pointer:
			if n, ok := t.Elem().(*types.Named); ok {
				if _, ok := marked[n.Obj().Name()]; ok {
					fields = append(fields, refField{name: f.Name(), typ: n.Obj().Name()})
				}
			}
		case *types.Slice:
			if n, ok := t.Elem().(*types.Named); ok {
				if _, ok := marked[n.Obj().Name()]; ok {
					if !last {
						log.Fatalf("%s.%s: slice fields are only supported as the last (suffix) field", name, f.Name())
					}
					suffix = n.Obj().Name()
				}
			}
		}
	}
	return fields, suffix
}

func generate(pkgName string, marked map[string]markedStruct) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by ebitypegen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkgName)
	fmt.Fprintf(&buf, "import (\n\t\"unsafe\"\n\n\t\"github.com/bqqbarbhg/ebi/internal/ebi\"\n)\n\n")

	names := make([]string, 0, len(marked))
	for n := range marked {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		s := marked[name]
		fields, suffix := describeFields(name, s, marked)

		fmt.Fprintf(&buf, "var %sType = ebi.TypeDesc{\n", name)
		fmt.Fprintf(&buf, "\tDataSize: unsafe.Sizeof(%s{}),\n", name)

		var flags []string
		if len(fields) > 0 {
			flags = append(flags, "ebi.FlagHasRefs")
		}
		if suffix != "" {
			flags = append(flags, "ebi.FlagHasSuffix")
		}
		if len(flags) > 0 {
			fmt.Fprintf(&buf, "\tFlags: %s,\n", strings.Join(flags, "|"))
		}
		if len(fields) > 0 {
			fmt.Fprintf(&buf, "\tFields: []ebi.Field{\n")
			for _, f := range fields {
				fmt.Fprintf(&buf, "\t\t{Type: &%sType, Offset: unsafe.Offsetof(%s{}.%s), Flags: ebi.FlagIsRef},\n", f.typ, name, f.name)
			}
			fmt.Fprintf(&buf, "\t},\n")
		}
		if suffix != "" {
			fmt.Fprintf(&buf, "\tSuffix: &%sType,\n", suffix)
		}
		fmt.Fprintf(&buf, "}\n\n")
	}
	return buf.Bytes()
}
