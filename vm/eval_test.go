package vm_test

import (
	"errors"
	"testing"

	"github.com/chazu/lispgc/reader"
	"github.com/chazu/lispgc/vm"
)

// ---------------------------------------------------------------------------
// Evaluator tests, driven through the reader
// ---------------------------------------------------------------------------

func newVM(t *testing.T, opts ...vm.Option) *vm.VM {
	t.Helper()
	v, err := vm.NewVM(opts...)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	t.Cleanup(v.Shutdown)
	return v
}

// eval parses and evaluates src in the root environment.
func eval(v *vm.VM, src string) (vm.Ref, error) {
	expr, err := reader.Parse(v, src)
	if err != nil {
		return vm.NoRef, err
	}
	return v.Eval(expr, v.Root())
}

func evalString(t *testing.T, v *vm.VM, src string) string {
	t.Helper()
	ref, err := eval(v, src)
	if err != nil {
		t.Fatalf("eval(%q): %v", src, err)
	}
	return v.Show(ref)
}

func TestEvalExpressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"number", "42", "42"},
		{"string", `"abc"`, `"abc"`},
		{"bool", "#f", "#f"},
		{"nil", "#nil", "#nil"},
		{"empty list", "()", "#nil"},
		{"quote symbol", "'x", "x"},
		{"quote list", "(quote (1 (2) . 3))", "(1 (2) . 3)"},
		{"quote unevaluated", "'(undefined-thing)", "(undefined-thing)"},

		{"add", "(+ 1 2 3)", "6"},
		{"add none", "(+)", "0"},
		{"mul", "(* 2 3 4)", "24"},
		{"mul none", "(*)", "1"},
		{"sub", "(- 10 3 2)", "5"},
		{"sub one", "(- 5)", "5"},
		{"sub none", "(-)", "0"},
		{"div", "(/ 8 2 2)", "2"},
		{"div fraction", "(/ 1 4)", "0.25"},
		{"div none", "(/)", "1"},
		{"div one", "(/ 2)", "2"},
		{"div chain", "(/ 100 10 2)", "5"},
		{"nested arithmetic", "(+ (* 2 3) (- 10 4))", "12"},
		{"overflowing literal", "(> 1e999 0)", "#t"},

		{"eq", "(= 1 1)", "#t"},
		{"ne", "(!= 1 1)", "#f"},
		{"lt", "(< 1 2)", "#t"},
		{"gt", "(> 1 2)", "#f"},
		{"le", "(<= 2 2)", "#t"},
		{"ge", "(>= 1 2)", "#f"},

		{"car", "(car '(1 2))", "1"},
		{"cdr", "(cdr '(1 2))", "(2)"},
		{"cdr last", "(cdr '(1))", "#nil"},
		{"cons", "(cons 1 2)", "(1 . 2)"},
		{"cons list", "(cons 1 '(2 3))", "(1 2 3)"},
		{"nil? empty", "(nil? '())", "#t"},
		{"nil? literal", "(nil? #nil)", "#t"},
		{"nil? other", "(nil? 0)", "#f"},
		{"nil? dotted pair", "(nil? (cons 1 2))", "#f"},
		{"nil? one element list", "(nil? '(1))", "#f"},
		{"nil? string", `(nil? "s")`, "#f"},
		{"nil? symbol", "(nil? 'a)", "#f"},
		{"nil? false", "(nil? #f)", "#f"},
		{"nil? primitive", "(nil? car)", "#f"},
		{"nil? closure", "(nil? (lambda () 1))", "#f"},
		{"list", "(list 1 (+ 1 1) 3)", "(1 2 3)"},
		{"list empty", "(list)", "#nil"},
		{"begin", "(begin 1 2 3)", "3"},
		{"begin empty", "(begin)", "#nil"},

		{"if true", "(if #t 1 2)", "1"},
		{"if false", "(if #f 1 2)", "2"},
		{"if skips else", "(if #t 1 undefined-thing)", "1"},
		{"if skips then", "(if (< 2 1) undefined-thing 2)", "2"},

		{"lambda value", "(lambda (x y) x)", "#<lambda (x y)>"},
		{"primitive value", "car", "#<primitive car>"},
		{"apply lambda", "((lambda (x) (* x x)) 4)", "16"},
		{"missing argument ignored when unused", "((lambda (a b) a) 1)", "1"},
		{"extra argument ignored", "((lambda (a) a) 1 2)", "1"},
		{"thunk", "((lambda () 7))", "7"},

		{"define returns nil", "(define x 5)", "#nil"},
		{"define then use", "(define x 5) (+ x 1)", "6"},
		{"redefine", "(define x 1) (define x 2) x", "2"},
		{"shadowing", "(define x 1) ((lambda (x) x) 2)", "2"},
		{"shadowing leaves outer", "(define x 1) ((lambda (x) x) 2) x", "1"},
		{"argument order", "(list (define a 1) a)", "(#nil 1)"},
		{"closure captures", "(define make-adder (lambda (n) (lambda (x) (+ x n)))) ((make-adder 2) 40)", "42"},
		{"closure sees later defines", "(define f (lambda () late)) (define late 9) (f)", "9"},
		{"recursion", "(define fact (lambda (n) (if (<= n 1) 1 (* n (fact (- n 1)))))) (fact 5)", "120"},
		{"large numbers use exponent form", "(* 1000 1000)", "1e+06"},
		{"higher order", "(define twice (lambda (f x) (f (f x)))) (twice (lambda (n) (* n 3)) 2)", "18"},
		{"primitive through binding", "(define first car) (first '(9 8))", "9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newVM(t)
			if got := evalString(t, v, tc.src); got != tc.want {
				t.Errorf("eval(%q) = %s, want %s", tc.src, got, tc.want)
			}
		})
	}
}

func TestEvalFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unbound", "undefined-thing", vm.ErrUnboundSymbol},
		{"unbound in call", "(+ 1 nope)", vm.ErrUnboundSymbol},
		{"define is local to call", "(define f (lambda () (define inner 3))) (f) inner", vm.ErrUnboundSymbol},
		{"missing argument used", "((lambda (a b) b) 1)", vm.ErrUnboundSymbol},

		{"call number", "(1 2)", vm.ErrNotCallable},
		{"call string", `("f")`, vm.ErrNotCallable},
		{"call empty list", "(#nil)", vm.ErrNotCallable},
		{"call number is type mismatch", "(1)", vm.ErrTypeMismatch},

		{"car of number", "(car 1)", vm.ErrTypeMismatch},
		{"car of empty", "(car '())", vm.ErrTypeMismatch},
		{"cdr of empty", "(cdr #nil)", vm.ErrTypeMismatch},
		{"car arity", "(car '(1) '(2))", vm.ErrTypeMismatch},
		{"cons arity", "(cons 1)", vm.ErrTypeMismatch},
		{"nil? arity", "(nil?)", vm.ErrTypeMismatch},
		{"add non-number", "(+ 1 #t)", vm.ErrTypeMismatch},
		{"compare arity", "(< 1)", vm.ErrTypeMismatch},
		{"compare too many", "(= 1 1 1)", vm.ErrTypeMismatch},
		{"compare non-number", `(< 1 "2")`, vm.ErrTypeMismatch},

		{"if non-bool", "(if 1 2 3)", vm.ErrTypeMismatch},
		{"if nil condition", "(if #nil 2 3)", vm.ErrTypeMismatch},
		{"if missing else", "(if #t 1)", vm.ErrTypeMismatch},
		{"quote arity", "(quote)", vm.ErrTypeMismatch},
		{"quote too many", "(quote 1 2)", vm.ErrTypeMismatch},
		{"lambda symbol params", "(lambda x x)", vm.ErrTypeMismatch},
		{"lambda arity", "(lambda (x))", vm.ErrTypeMismatch},
		{"define non-symbol", "(define 1 2)", vm.ErrTypeMismatch},
		{"define arity", "(define x)", vm.ErrTypeMismatch},
		{"dotted call", "(+ 1 . 2)", vm.ErrTypeMismatch},
		{"bad parameter", "((lambda (1) 1) 2)", vm.ErrTypeMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newVM(t)
			_, err := eval(v, tc.src)
			if !errors.Is(err, tc.want) {
				t.Errorf("eval(%q) error = %v, want %v", tc.src, err, tc.want)
			}
		})
	}
}

func TestIfEvaluatesOnlyTakenBranch(t *testing.T) {
	tests := []struct {
		src   string
		want  string
		bound string
		unset string
	}{
		{"(if #t (define taken 1) (define skipped 2))", "#nil", "taken", "skipped"},
		{"(if #f (define skipped 1) (define taken 2))", "#nil", "taken", "skipped"},
	}
	for _, tc := range tests {
		v := newVM(t)
		if got := evalString(t, v, tc.src); got != tc.want {
			t.Errorf("eval(%q) = %s", tc.src, got)
		}
		if _, err := v.Resolve(v.Root(), tc.bound); err != nil {
			t.Errorf("%s: %s should be bound: %v", tc.src, tc.bound, err)
		}
		if _, err := v.Resolve(v.Root(), tc.unset); !errors.Is(err, vm.ErrUnboundSymbol) {
			t.Errorf("%s: %s should be unbound, got %v", tc.src, tc.unset, err)
		}
	}
}

func TestCarConsCdrLaws(t *testing.T) {
	values := []string{"1", "#t", `"s"`, "'sym", "'(1 2)", "#nil", "(lambda (x) x)", "car"}
	v := newVM(t)
	for _, a := range values {
		for _, b := range values {
			car := evalString(t, v, "(car (cons "+a+" "+b+"))")
			cdr := evalString(t, v, "(cdr (cons "+a+" "+b+"))")
			if want := evalString(t, v, a); car != want {
				t.Errorf("car of (cons %s %s) = %s, want %s", a, b, car, want)
			}
			if want := evalString(t, v, b); cdr != want {
				t.Errorf("cdr of (cons %s %s) = %s, want %s", a, b, cdr, want)
			}
		}
	}
}

func TestEvalFaultDetail(t *testing.T) {
	v := newVM(t)
	_, err := eval(v, "(car 5)")
	var f *vm.Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected *vm.Fault, got %T", err)
	}
	if f.Kind != vm.FaultTypeMismatch || f.Op != "car" {
		t.Errorf("fault = %+v", f)
	}
	if f.Error() != "TypeMismatch in car: expected non-empty pair, got 5" {
		t.Errorf("message = %q", f.Error())
	}
}

func TestEvalFailureKeepsEarlierDefines(t *testing.T) {
	v := newVM(t)
	if _, err := eval(v, "(define kept 1) (car 1)"); err == nil {
		t.Fatal("expected an error")
	}
	if got := evalString(t, v, "kept"); got != "1" {
		t.Errorf("kept = %s, want 1", got)
	}
}

func TestEvalMaxDepth(t *testing.T) {
	v := newVM(t, vm.WithMaxDepth(200))
	_, err := eval(v, "(define loop (lambda (n) (loop n))) (loop 1)")
	if !errors.Is(err, vm.ErrDepthExceeded) {
		t.Fatalf("runaway recursion: %v, want DepthExceeded", err)
	}

	// The depth counter unwinds, so the session stays usable.
	if got := evalString(t, v, "(+ 1 1)"); got != "2" {
		t.Errorf("after depth fault: %s", got)
	}
}

func TestEvalCapacity(t *testing.T) {
	v := newVM(t, vm.WithMaxObjects(40))
	_, err := eval(v, "(list 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16)")
	if !errors.Is(err, vm.ErrCapacity) {
		t.Fatalf("eval past capacity: %v, want CapacityFault", err)
	}

	if _, err := v.Collect(); err != nil {
		t.Fatal(err)
	}
	if got := evalString(t, v, "(+ 1 2)"); got != "3" {
		t.Errorf("after collection: %s", got)
	}
}

func TestEvalRejectsEnvironmentAsExpression(t *testing.T) {
	v := newVM(t)
	if _, err := v.Eval(v.Root(), v.Root()); !errors.Is(err, vm.ErrTypeMismatch) {
		t.Errorf("Eval(env) = %v, want TypeMismatch", err)
	}
}

// ---------------------------------------------------------------------------
// Evaluation interleaved with collection
// ---------------------------------------------------------------------------

func TestClosuresSurviveCollection(t *testing.T) {
	v := newVM(t)
	evalString(t, v, `
		(define make-counter (lambda (start) (lambda (step) (+ start step))))
		(define from-ten (make-counter 10))`)

	stats, err := v.Collect()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Swept == 0 {
		t.Error("the parsed program should have become garbage")
	}

	if got := evalString(t, v, "(from-ten 5)"); got != "15" {
		t.Errorf("(from-ten 5) = %s after collection, want 15", got)
	}
}

func TestRepeatedEvaluationDoesNotLeak(t *testing.T) {
	v := newVM(t)
	evalString(t, v, "(define fact (lambda (n) (if (<= n 1) 1 (* n (fact (- n 1))))))")
	if _, err := v.Collect(); err != nil {
		t.Fatal(err)
	}
	baseline := v.Heap().Live()

	for i := 0; i < 5; i++ {
		if got := evalString(t, v, "(fact 8)"); got != "40320" {
			t.Fatalf("(fact 8) = %s", got)
		}
		stats, err := v.Collect()
		if err != nil {
			t.Fatal(err)
		}
		if stats.After != baseline {
			t.Fatalf("round %d: %d live objects, want %d", i, stats.After, baseline)
		}
	}
}

func TestPinnedResultSurvivesCollection(t *testing.T) {
	v := newVM(t)
	ref, err := eval(v, "(list 1 2 3)")
	if err != nil {
		t.Fatal(err)
	}
	v.Pin(ref)
	if _, err := v.Collect(); err != nil {
		t.Fatal(err)
	}
	if got := v.Show(ref); got != "(1 2 3)" {
		t.Errorf("pinned result = %s", got)
	}
	v.Unpin(ref)
}
