// Command heapsum is the demonstration driver for the summary engine:
// real class loading and bytecode lowering live outside this module, so
// this driver
// wires together a small fixture method set via pkg/external's map-backed
// test doubles, runs the bottom-up scheduler over it, and prints the
// resulting heap summaries. Dispatch is os.Args-driven, with no flag
// package: a handful of positional subcommands and options parsed by hand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/config"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/scheduler"
	"github.com/jawa-analysis/heapsum/internal/summary"
	"github.com/jawa-analysis/heapsum/internal/token"
	"github.com/jawa-analysis/heapsum/pkg/external"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-config path] [-no-color]\n", os.Args[0])
}

func main() {
	var configPath string
	noColor := os.Getenv("NO_COLOR") != ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config":
			if i+1 >= len(args) {
				usage()
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case "-no-color":
			noColor = true
		case "-h", "-help", "--help":
			usage()
			return
		default:
			fmt.Fprintf(os.Stderr, "unrecognized argument: %s\n", args[i])
			usage()
			os.Exit(2)
		}
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "heapsum: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	useColor := !noColor && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	global, graph, methods := fixtureProgram()
	var mgr external.SummaryManager
	if cfg.CacheBackend == config.CacheSQLite {
		m, err := summary.NewManagerWithCache(cfg.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "heapsum: %v\n", err)
			os.Exit(1)
		}
		mgr = m
	} else {
		mgr = summary.NewManager()
	}

	outcomes := scheduler.Run(context.Background(), graph, methods, global, external.NewTableModelCallHandler(), mgr, cfg)

	var failed bool
	for _, o := range outcomes {
		if o.Err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "heapsum: %s: %v\n", o.Signature, o.Err)
			continue
		}
		printSummary(os.Stdout, o.Signature, o.Heap, useColor)
	}
	if failed {
		os.Exit(1)
	}
}

func printSummary(w *os.File, signature string, s *summary.Summary, useColor bool) {
	header := signature
	if useColor {
		header = "\x1b[1m" + header + "\x1b[0m"
	}
	fmt.Fprintln(w, header)
	if s.Incomplete {
		note := "  (incomplete: fixpoint timed out)"
		if useColor {
			note = "\x1b[33m" + note + "\x1b[0m"
		}
		fmt.Fprintln(w, note)
	}
	if len(s.Rules) == 0 {
		fmt.Fprintln(w, "  (no rules)")
		return
	}
	for _, r := range s.Rules {
		fmt.Fprintf(w, "  %s\n", r)
	}
}

// fixtureProgram builds the canonical Box/Object boundary example —
//
//	class Box { Object f; }
//	void set(Box b, Object o) { b.f = o; }
//	Object get(Box b) { return b.f; }
//	void useBox() { Box b = new Box(); Object o = new Object(); b.f = o; Object r = b.f; }
//
// — as a small program of JawaMethod test doubles, so the scheduler, call
// resolver, and rule-extraction walk all run end to end without a real
// class loader or bytecode reader.
func fixtureProgram() (*external.MapGlobal, scheduler.CallGraph, map[string]external.JawaMethod) {
	pos := token.Position{}
	global := external.NewMapGlobal()
	global.RegisterClass(external.ClassInfo{Name: "Box"})
	global.RegisterClass(external.ClassInfo{Name: "Object"})

	setSig := "Box.set(LBox;LObject;)V"
	getSig := "Box.get(LBox;)LObject;"
	useBoxSig := "Driver.useBox()V"

	setMethod := &external.Method{
		Sig: setSig,
		ParamList: []ast.Param{
			{Name: "b", Type: ast.Type{Name: "Box"}},
			{Name: "o", Type: ast.Type{Name: "Object"}},
		},
		Class: "Box",
		LoweredBody: ir.Body{
			Locations: []ir.Location{
				{Index: 0, Stmt: ir.Assign(pos, ir.Access("b", "f"), ir.Name("o"))},
				{Index: 1, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
			},
		},
	}

	getMethod := &external.Method{
		Sig: getSig,
		ParamList: []ast.Param{
			{Name: "b", Type: ast.Type{Name: "Box"}},
		},
		Class: "Box",
		LoweredBody: ir.Body{
			Locations: []ir.Location{
				{Index: 0, Stmt: ir.Assign(pos, ir.Name("r"), ir.Access("b", "f"))},
				{Index: 1, Stmt: ir.Return(pos, "r", true, ir.ReturnObject)},
			},
		},
	}

	useBoxMethod := &external.Method{
		Sig:   useBoxSig,
		Class: "Driver",
		LoweredBody: ir.Body{
			Locations: []ir.Location{
				{Index: 0, Stmt: ir.Assign(pos, ir.Name("b"), ir.New("Box", nil))},
				{Index: 1, Stmt: ir.Assign(pos, ir.Name("o"), ir.New("Object", nil))},
				{Index: 2, Stmt: ir.CallStmt(pos, &ir.Call{
					Signature: setSig,
					Kind:      ir.CallVirtual,
					Receiver:  "b",
					Args:      []ir.Temp{"o"},
				})},
				{Index: 3, Stmt: ir.Assign(pos, ir.Name("r"), ir.Access("b", "f"))},
				{Index: 4, Stmt: ir.Return(pos, "", false, ir.ReturnVoid)},
			},
		},
	}

	global.RegisterMethod(setMethod)
	global.RegisterMethod(getMethod)
	global.RegisterMethod(useBoxMethod)

	methods := map[string]external.JawaMethod{
		setSig:    setMethod,
		getSig:    getMethod,
		useBoxSig: useBoxMethod,
	}
	graph := scheduler.CallGraph{
		setSig:    nil,
		getSig:    nil,
		useBoxSig: {setSig},
	}
	return global, graph, methods
}
