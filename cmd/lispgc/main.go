// lispgc runs a Lisp program against a fresh heap and collects it once.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/lispgc/manifest"
	"github.com/chazu/lispgc/reader"
	"github.com/chazu/lispgc/vm"
	"github.com/chazu/lispgc/vm/snapshot"
)

var log = commonlog.GetLogger("lispgc.cmd")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it. It returns
// 0 on success, 1 on a fault and 2 on a usage error.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lispgc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	debug := fs.Bool("debug", false, "Print heap dumps after marking and after sweeping")
	interactive := fs.Bool("i", false, "Start interactive REPL")
	verbosity := fs.Int("v", 0, "Log verbosity (0 = errors only, 4 = debug)")
	maxObjects := fs.Int("max-objects", 0, "Heap capacity in objects (0 = unbounded)")
	maxDepth := fs.Int("max-depth", 0, "Evaluation depth limit (0 = unlimited)")
	dump := fs.String("dump", "", "Write heap snapshots taken around the collection to this file (YAML for .yaml/.yml, else CBOR)")
	configPath := fs.String("config", "", "Configuration file (default: nearest "+manifest.FileName+")")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lispgc [options] FILE\n")
		fmt.Fprintf(stderr, "       lispgc -i [options]\n\n")
		fmt.Fprintf(stderr, "Evaluates FILE in a fresh root environment, prints the result and runs one\n")
		fmt.Fprintf(stderr, "garbage collection.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  lispgc prog.lisp               # Run a program\n")
		fmt.Fprintf(stderr, "  lispgc -debug prog.lisp        # Show the heap during collection\n")
		fmt.Fprintf(stderr, "  lispgc -dump heap.yaml prog.lisp # Write readable heap snapshots\n")
		fmt.Fprintf(stderr, "  lispgc -i                      # Start REPL\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags given on the command line override the configuration file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.GC.Debug = *debug
		case "v":
			cfg.Log.Verbosity = *verbosity
		case "max-objects":
			cfg.Heap.MaxObjects = *maxObjects
		case "max-depth":
			cfg.Eval.MaxDepth = *maxDepth
		case "dump":
			cfg.GC.Dump = *dump
		}
	})
	configureLogging(cfg)

	if *interactive {
		return runREPL(cfg, stdout, stderr)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if err := runFile(fs.Arg(0), cfg, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the file named by -config, or the nearest lispgc.toml
// above the working directory, falling back to the defaults.
func loadConfig(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	log.Debugf("using configuration %s", m.Dir)
	return m, nil
}

func configureLogging(cfg *manifest.Manifest) {
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

// vmOptions translates the configuration into session options. Heap dumps
// go to w when GC debugging is on.
func vmOptions(cfg *manifest.Manifest, w io.Writer) []vm.Option {
	opts := []vm.Option{
		vm.WithMaxObjects(cfg.Heap.MaxObjects),
		vm.WithMaxDepth(cfg.Eval.MaxDepth),
	}
	if cfg.GC.Debug {
		opts = append(opts, vm.WithGCTrace(w))
	}
	return opts
}

// runFile parses the whole file once, prints the parsed program, evaluates
// it in a fresh root environment, prints the result and then collects.
func runFile(path string, cfg *manifest.Manifest, stdout io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	report := vm.WithGCReport(func(stats *vm.GCStats) {
		fmt.Fprintf(stdout, "Swept heap down from %d to %d values.\n", stats.Before, stats.After)
	})
	v, err := vm.NewVM(append(vmOptions(cfg, stdout), report)...)
	if err != nil {
		return err
	}
	defer v.Shutdown()
	log.Infof("session %s: running %s", v.ID, path)

	expr, err := reader.Parse(v, string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintln(stdout, v.Show(expr))

	result, err := v.Eval(expr, v.Root())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, v.Show(result))

	var snaps []*vm.Snapshot
	dumpPath := cfg.DumpPath()
	if dumpPath != "" {
		before, err := v.Snapshot("before")
		if err != nil {
			return err
		}
		snaps = append(snaps, before)
	}

	fmt.Fprintf(stdout, "Mark and sweep... %s\n", v.ID)
	if _, err := v.Collect(); err != nil {
		return err
	}

	if dumpPath != "" {
		after, err := v.Snapshot("after")
		if err != nil {
			return err
		}
		if err := snapshot.WriteFile(dumpPath, append(snaps, after)); err != nil {
			return err
		}
		log.Infof("wrote heap snapshots to %s", dumpPath)
	}

	fmt.Fprintln(stdout, "Done.")
	return nil
}
