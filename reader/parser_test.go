package reader

import (
	"errors"
	"testing"

	"github.com/chazu/lispgc/vm"
)

func newVM(t *testing.T) *vm.VM {
	t.Helper()
	v, err := vm.NewVM()
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	t.Cleanup(v.Shutdown)
	return v
}

func TestParseRendersBack(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"-1.5", "-1.5"},
		{"1e3", "1000"},
		{"1e999", "+Inf"},
		{"-1e999", "-Inf"},
		{"1e-999", "0"},
		{"#t", "#t"},
		{"#f", "#f"},
		{"#nil", "#nil"},
		{"()", "#nil"},
		{"foo", "foo"},
		{`"hi\n"`, `"hi\n"`},
		{"(+ 1 2)", "(+ 1 2)"},
		{"(a (b c) ())", "(a (b c) #nil)"},
		{"'x", "(quote x)"},
		{"'(1 2)", "(quote (1 2))"},
		{"(a . b)", "(a . b)"},
		{"(a b . c)", "(a b . c)"},
		{"(a . (b c))", "(a b c)"},
		{"  ; comment\n (car '(1))  ", "(car (quote (1)))"},
		{"1 2 3", "(begin 1 2 3)"},
		{"(define x 1) x", "(begin (define x 1) x)"},
	}

	for _, tc := range tests {
		v := newVM(t)
		ref, err := Parse(v, tc.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.input, err)
			continue
		}
		if got := v.Show(ref); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseEmptyListIsCanonicalNil(t *testing.T) {
	v := newVM(t)
	for _, src := range []string{"()", "#nil", "( )"} {
		ref, err := Parse(v, src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", src, err)
		}
		if ref != v.Heap().Nil() {
			t.Errorf("Parse(%q) = %d, want canonical nil %d", src, ref, v.Heap().Nil())
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input      string
		incomplete bool
	}{
		{"", false},
		{"   ; only a comment", false},
		{")", false},
		{"(1 2))", false},
		{"(. a)", false},
		{"(a .)", false},
		{"(a . b c)", false},
		{".", false},
		{"1abc", false},
		{"#x", false},
		{`"\q"`, false},
		{"(1 2", true},
		{"((a)", true},
		{"(a . b", true},
		{"'", true},
		{`"open`, true},
		{`(print "open`, true},
	}

	for _, tc := range tests {
		v := newVM(t)
		_, err := Parse(v, tc.input)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tc.input)
			continue
		}
		if !errors.Is(err, vm.ErrParse) {
			t.Errorf("Parse(%q): error %v does not match ErrParse", tc.input, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): error %T is not a *ParseError", tc.input, err)
			continue
		}
		if IsIncomplete(err) != tc.incomplete {
			t.Errorf("Parse(%q): incomplete = %v, want %v (%v)", tc.input, pe.Incomplete, tc.incomplete, err)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	v := newVM(t)
	_, err := Parse(v, "(1\n  ))")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Pos.Line != 2 || pe.Pos.Column != 4 {
		t.Errorf("position = %s, want 2:4", pe.Pos)
	}
}

func TestReadAll(t *testing.T) {
	v := newVM(t)
	forms, err := ReadAll(v, "1 (a b) 'c")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []string{"1", "(a b)", "(quote c)"}
	if len(forms) != len(want) {
		t.Fatalf("ReadAll returned %d forms, want %d", len(forms), len(want))
	}
	for i, ref := range forms {
		if got := v.Show(ref); got != want[i] {
			t.Errorf("form[%d] = %s, want %s", i, got, want[i])
		}
	}

	forms, err = ReadAll(v, "  ")
	if err != nil || len(forms) != 0 {
		t.Errorf("ReadAll(blank) = %v, %v; want no forms", forms, err)
	}
}

func TestParseAfterShutdown(t *testing.T) {
	v, err := vm.NewVM()
	if err != nil {
		t.Fatal(err)
	}
	v.Shutdown()
	if _, err := Parse(v, "1"); !errors.Is(err, vm.ErrShutdown) {
		t.Errorf("Parse after Shutdown: %v, want ErrShutdown", err)
	}
}

func TestParseSymbolsShareIDs(t *testing.T) {
	v := newVM(t)
	ref, err := Parse(v, "(foo foo)")
	if err != nil {
		t.Fatal(err)
	}
	h := v.Heap()
	items, err := h.Slice("test", ref)
	if err != nil {
		t.Fatal(err)
	}
	a, b := h.Get(items[0]), h.Get(items[1])
	if items[0] == items[1] {
		t.Error("each occurrence should be its own heap object")
	}
	if a.Sym != b.Sym {
		t.Errorf("symbol IDs differ: %d vs %d", a.Sym, b.Sym)
	}
}

func TestValidate(t *testing.T) {
	v := newVM(t)
	live := v.Heap().Live()

	if err := Validate("(define x '(1 2)) x"); err != nil {
		t.Errorf("Validate of good source: %v", err)
	}
	if err := Validate("(define x"); !IsIncomplete(err) {
		t.Errorf("Validate of open list: %v, want incomplete", err)
	}
	if err := Validate(")"); err == nil || IsIncomplete(err) {
		t.Errorf("Validate of stray paren: %v, want complete error", err)
	}
	if v.Heap().Live() != live {
		t.Error("Validate allocated on the session heap")
	}
}
