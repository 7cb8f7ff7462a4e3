package vm

import "fmt"

// ---------------------------------------------------------------------------
// Primitive catalogue
// ---------------------------------------------------------------------------

// PrimitiveID identifies a native procedure.
type PrimitiveID uint8

const (
	PrimBegin PrimitiveID = iota
	PrimCar
	PrimCdr
	PrimCons
	PrimIsNil
	PrimList
	PrimAdd
	PrimSub
	PrimMul
	PrimDiv
	PrimEq
	PrimNe
	PrimLt
	PrimGt
	PrimLe
	PrimGe
	primCount
)

var primitiveNames = [primCount]string{
	PrimBegin: "begin",
	PrimCar:   "car",
	PrimCdr:   "cdr",
	PrimCons:  "cons",
	PrimIsNil: "nil?",
	PrimList:  "list",
	PrimAdd:   "+",
	PrimSub:   "-",
	PrimMul:   "*",
	PrimDiv:   "/",
	PrimEq:    "=",
	PrimNe:    "!=",
	PrimLt:    "<",
	PrimGt:    ">",
	PrimLe:    "<=",
	PrimGe:    ">=",
}

func (id PrimitiveID) String() string {
	if id < primCount {
		return primitiveNames[id]
	}
	return fmt.Sprintf("primitive(%d)", uint8(id))
}

// LookupPrimitive returns the primitive registered under name.
func LookupPrimitive(name string) (PrimitiveID, bool) {
	for id, n := range primitiveNames {
		if n == name {
			return PrimitiveID(id), true
		}
	}
	return 0, false
}

// primitiveFunc receives the evaluated argument list as a pair chain.
type primitiveFunc func(h *Heap, args Ref) (Ref, error)

var primitiveFuncs = [primCount]primitiveFunc{
	PrimBegin: primBegin,
	PrimCar:   primCar,
	PrimCdr:   primCdr,
	PrimCons:  primCons,
	PrimIsNil: primIsNil,
	PrimList:  primList,
	PrimAdd:   foldNumbers("+", 0, func(acc, x float64) float64 { return acc + x }, false),
	PrimSub:   foldNumbers("-", 0, func(acc, x float64) float64 { return acc - x }, true),
	PrimMul:   foldNumbers("*", 1, func(acc, x float64) float64 { return acc * x }, false),
	PrimDiv:   foldNumbers("/", 1, func(acc, x float64) float64 { return acc / x }, true),
	PrimEq:    compareNumbers("=", func(a, b float64) bool { return a == b }),
	PrimNe:    compareNumbers("!=", func(a, b float64) bool { return a != b }),
	PrimLt:    compareNumbers("<", func(a, b float64) bool { return a < b }),
	PrimGt:    compareNumbers(">", func(a, b float64) bool { return a > b }),
	PrimLe:    compareNumbers("<=", func(a, b float64) bool { return a <= b }),
	PrimGe:    compareNumbers(">=", func(a, b float64) bool { return a >= b }),
}

// callPrimitive invokes id with an evaluated argument list.
func (h *Heap) callPrimitive(id PrimitiveID, args Ref) (Ref, error) {
	if id >= primCount {
		return NoRef, faultf(FaultTypeMismatch, "apply", "unknown primitive %d", id)
	}
	return primitiveFuncs[id](h, args)
}

// installPrimitives binds every catalogue entry in env.
func (h *Heap) installPrimitives(env Ref) error {
	for id := PrimitiveID(0); id < primCount; id++ {
		ref, err := h.NewPrimitive(id)
		if err != nil {
			return err
		}
		if err := h.Define(env, primitiveNames[id], ref); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pair and list primitives
// ---------------------------------------------------------------------------

// arguments returns the argument list as a slice, requiring at least min
// and, when max >= 0, at most max elements.
func (h *Heap) arguments(op string, args Ref, min, max int) ([]Ref, error) {
	items, err := h.Slice(op, args)
	if err != nil {
		return nil, err
	}
	if len(items) < min || (max >= 0 && len(items) > max) {
		want := fmt.Sprintf("%d", min)
		switch {
		case max < 0:
			want = fmt.Sprintf("at least %d", min)
		case max != min:
			want = fmt.Sprintf("%d to %d", min, max)
		}
		return nil, faultf(FaultTypeMismatch, op, "expected %s arguments, got %d", want, len(items))
	}
	return items, nil
}

// primBegin returns the last argument. The caller has already evaluated
// every argument in order.
func primBegin(h *Heap, args Ref) (Ref, error) {
	items, err := h.Slice("begin", args)
	if err != nil {
		return NoRef, err
	}
	if len(items) == 0 {
		return h.nilRef, nil
	}
	return items[len(items)-1], nil
}

func primCar(h *Heap, args Ref) (Ref, error) {
	items, err := h.arguments("car", args, 1, 1)
	if err != nil {
		return NoRef, err
	}
	return h.Car(items[0])
}

func primCdr(h *Heap, args Ref) (Ref, error) {
	items, err := h.arguments("cdr", args, 1, 1)
	if err != nil {
		return NoRef, err
	}
	return h.Cdr(items[0])
}

func primCons(h *Heap, args Ref) (Ref, error) {
	items, err := h.arguments("cons", args, 2, 2)
	if err != nil {
		return NoRef, err
	}
	return h.NewPair(items[0], items[1])
}

func primIsNil(h *Heap, args Ref) (Ref, error) {
	items, err := h.arguments("nil?", args, 1, 1)
	if err != nil {
		return NoRef, err
	}
	return h.NewBool(h.IsNil(items[0]))
}

// primList returns its argument list, which is already a proper list.
func primList(h *Heap, args Ref) (Ref, error) {
	return args, nil
}

// ---------------------------------------------------------------------------
// Numeric primitives
// ---------------------------------------------------------------------------

func (h *Heap) numbers(op string, args Ref) ([]float64, error) {
	items, err := h.Slice(op, args)
	if err != nil {
		return nil, err
	}
	nums := make([]float64, len(items))
	for i, ref := range items {
		o := h.Get(ref)
		if o == nil || o.Kind != KindNumber {
			return nil, faultf(FaultTypeMismatch, op, "expected number, got %s", h.Show(ref))
		}
		nums[i] = o.Num
	}
	return nums, nil
}

// foldNumbers builds a left fold. With seedFirst the first argument seeds
// the fold, so a single argument is returned unchanged; otherwise identity
// seeds it. With no arguments the result is identity either way.
func foldNumbers(op string, identity float64, step func(acc, x float64) float64, seedFirst bool) primitiveFunc {
	return func(h *Heap, args Ref) (Ref, error) {
		nums, err := h.numbers(op, args)
		if err != nil {
			return NoRef, err
		}
		acc := identity
		for i, n := range nums {
			if i == 0 && seedFirst {
				acc = n
				continue
			}
			acc = step(acc, n)
		}
		return h.NewNumber(acc)
	}
}

func compareNumbers(op string, cmp func(a, b float64) bool) primitiveFunc {
	return func(h *Heap, args Ref) (Ref, error) {
		if _, err := h.arguments(op, args, 2, 2); err != nil {
			return NoRef, err
		}
		nums, err := h.numbers(op, args)
		if err != nil {
			return NoRef, err
		}
		return h.NewBool(cmp(nums[0], nums[1]))
	}
}
