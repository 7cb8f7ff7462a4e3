package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/lispgc/manifest"
	"github.com/chazu/lispgc/reader"
	"github.com/chazu/lispgc/vm"
)

const (
	promptMain = "lisp> "
	promptCont = "...   "
)

// session is the REPL's view of one VM. Faults are reported and the loop
// carries on with the same root environment.
type session struct {
	v      *vm.VM
	out    io.Writer
	errOut io.Writer
}

func runREPL(cfg *manifest.Manifest, stdout, stderr io.Writer) int {
	v, err := vm.NewVM(vmOptions(cfg, stdout)...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer v.Shutdown()
	s := &session{v: v, out: stdout, errOut: stderr}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := cfg.HistoryPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Fprintf(stdout, "lispgc REPL, session %s (:help for commands)\n", v.ID)
	for {
		input, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(stdout)
			return 0
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if s.handle(input) {
			return 0
		}
	}
}

// readInput reads lines until they form complete input, using the reader
// to tell unfinished lists and strings from real errors. It returns false
// at end of input.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if err := reader.Validate(src); reader.IsIncomplete(err) {
			continue
		}
		return src, true
	}
}

// handle evaluates one complete input and reports whether the REPL should
// exit. Every form is evaluated before the heap is collected, so results
// are printed while they are still reachable.
func (s *session) handle(input string) (quit bool) {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed)
	}

	forms, err := reader.ReadAll(s.v, input)
	if err != nil {
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		s.collect(false)
		return false
	}
	for _, form := range forms {
		result, err := s.v.Eval(form, s.v.Root())
		if err != nil {
			fmt.Fprintf(s.errOut, "Error: %v\n", err)
			break
		}
		fmt.Fprintln(s.out, s.v.Show(result))
	}
	s.collect(false)
	return false
}

func (s *session) command(cmd string) (quit bool) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(s.out, "  :gc               Run a collection and report it")
		fmt.Fprintln(s.out, "  :heap             Dump every heap slot")
		fmt.Fprintln(s.out, "  :stats            Show heap and collector counters")
		fmt.Fprintln(s.out, "  :quit, :q         Exit REPL")
	case ":gc":
		s.collect(true)
	case ":heap":
		if err := s.v.DumpHeap(s.out); err != nil {
			fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
	case ":stats":
		h := s.v.Heap()
		fmt.Fprintf(s.out, "live %d, slots %d, limit %d, cycles %d\n",
			h.Live(), h.Len(), h.Limit(), s.v.Collector().SweepCount())
		if st := s.v.Collector().LastStats(); st != nil {
			fmt.Fprintf(s.out, "last cycle: swept %d of %d in %s\n", st.Swept, st.Before, st.Duration)
		}
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(s.errOut, "unknown command %s. Type :help for commands.\n", cmd)
	}
	return false
}

func (s *session) collect(report bool) {
	stats, err := s.v.Collect()
	if err != nil {
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	if report {
		fmt.Fprintf(s.out, "Swept heap down from %d to %d values.\n", stats.Before, stats.After)
	}
}
