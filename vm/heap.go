package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Heap: the object store
// ---------------------------------------------------------------------------

// maxSlots is the largest slot count a Ref can address.
var maxSlots = math.MaxInt32

// Heap owns every value and environment. Objects live in a growable slot
// slice addressed by Ref; a parallel mark slice holds the collector's mark
// bits. Free slots are nil and are reused before the slice grows.
//
// The heap is not synchronized. The VM serializes evaluation and collection;
// hosts that build values directly (the reader, tests) must not do so
// concurrently with either.
type Heap struct {
	Symbols *SymbolTable

	slots  []*Object
	marks  []bool
	live   int
	cursor int // every slot below cursor is occupied
	limit  int // maximum slot count, 0 = unbounded

	nilRef Ref
}

// NewHeap creates a heap holding at most limit objects (0 = unbounded).
// The canonical empty list is allocated in slot 0.
func NewHeap(limit int) *Heap {
	if limit < 0 {
		limit = 0
	}
	h := &Heap{
		Symbols: NewSymbolTable(),
		slots:   make([]*Object, 0, 256),
		marks:   make([]bool, 0, 256),
		limit:   limit,
	}
	h.slots = append(h.slots, &Object{Kind: KindPair, Fst: NoRef, Snd: NoRef})
	h.marks = append(h.marks, false)
	h.live = 1
	h.cursor = 1
	h.nilRef = 0
	return h
}

// place stores obj in the first free slot at or after the cursor, growing
// the slice when none is free. It fails before touching any slot when the
// heap is at its limit.
func (h *Heap) place(obj *Object) (Ref, error) {
	for i := h.cursor; i < len(h.slots); i++ {
		if h.slots[i] == nil {
			h.slots[i] = obj
			h.marks[i] = false
			h.cursor = i + 1
			h.live++
			return Ref(i), nil
		}
	}
	if limit := h.capacity(); len(h.slots) >= limit {
		h.cursor = len(h.slots)
		return NoRef, faultf(FaultCapacity, "alloc", "heap full at %d objects", limit)
	}
	h.slots = append(h.slots, obj)
	h.marks = append(h.marks, false)
	h.cursor = len(h.slots)
	h.live++
	return Ref(len(h.slots) - 1), nil
}

// capacity is the configured limit, or the addressable maximum when the
// heap is unbounded.
func (h *Heap) capacity() int {
	if h.limit > 0 && h.limit < maxSlots {
		return h.limit
	}
	return maxSlots
}

// free releases a slot. Only the sweep phase calls it.
func (h *Heap) free(ref Ref) {
	if h.slots[ref] == nil {
		return
	}
	h.slots[ref] = nil
	h.marks[ref] = false
	h.live--
	if int(ref) < h.cursor {
		h.cursor = int(ref)
	}
}

// truncate drops trailing slots from n onward; they must all be free.
func (h *Heap) truncate(n int) {
	for i := n; i < len(h.slots); i++ {
		h.slots[i] = nil
	}
	h.slots = h.slots[:n]
	h.marks = h.marks[:n]
	h.cursor = 0
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Nil returns the canonical empty list.
func (h *Heap) Nil() Ref {
	return h.nilRef
}

// NewNil returns the canonical empty list. It never allocates.
func (h *Heap) NewNil() (Ref, error) {
	return h.nilRef, nil
}

// NewBool allocates a boolean.
func (h *Heap) NewBool(b bool) (Ref, error) {
	return h.place(&Object{Kind: KindBool, Bool: b})
}

// NewNumber allocates a number.
func (h *Heap) NewNumber(f float64) (Ref, error) {
	return h.place(&Object{Kind: KindNumber, Num: f})
}

// NewSymbol allocates a symbol, interning its name.
func (h *Heap) NewSymbol(name string) (Ref, error) {
	return h.place(&Object{Kind: KindSymbol, Sym: h.Symbols.Intern(name)})
}

// NewString allocates a string.
func (h *Heap) NewString(s string) (Ref, error) {
	return h.place(&Object{Kind: KindString, Str: s})
}

// NewPair allocates a pair. Both slots must be live references.
func (h *Heap) NewPair(fst, snd Ref) (Ref, error) {
	if h.Get(fst) == nil || h.Get(snd) == nil {
		return NoRef, faultf(FaultTypeMismatch, "cons", "invalid reference")
	}
	return h.place(&Object{Kind: KindPair, Fst: fst, Snd: snd})
}

// NewClosure allocates a closure over env. The environment is captured by
// reference; the closure keeps it alive.
func (h *Heap) NewClosure(params, body, env Ref) (Ref, error) {
	if o := h.Get(env); o == nil || o.Kind != KindEnv {
		return NoRef, faultf(FaultTypeMismatch, "lambda", "closure environment is not an environment")
	}
	return h.place(&Object{Kind: KindClosure, Params: params, Body: body, Env: env})
}

// NewPrimitive allocates a primitive procedure value.
func (h *Heap) NewPrimitive(id PrimitiveID) (Ref, error) {
	if id >= primCount {
		return NoRef, faultf(FaultTypeMismatch, "primitive", "unknown primitive %d", id)
	}
	return h.place(&Object{Kind: KindPrimitive, Prim: id})
}

// List allocates a proper list holding items in order.
func (h *Heap) List(items ...Ref) (Ref, error) {
	list := h.nilRef
	for i := len(items) - 1; i >= 0; i-- {
		var err error
		if list, err = h.NewPair(items[i], list); err != nil {
			return NoRef, err
		}
	}
	return list, nil
}

// ---------------------------------------------------------------------------
// Access
// ---------------------------------------------------------------------------

// Get returns the object in ref's slot, or nil if ref is out of range or
// its slot is free.
func (h *Heap) Get(ref Ref) *Object {
	if ref < 0 || int(ref) >= len(h.slots) {
		return nil
	}
	return h.slots[ref]
}

// IsNil reports whether ref is the canonical empty list.
func (h *Heap) IsNil(ref Ref) bool {
	return ref == h.nilRef
}

// Car returns the first slot of a non-empty pair.
func (h *Heap) Car(ref Ref) (Ref, error) {
	o, err := h.pair("car", ref)
	if err != nil {
		return NoRef, err
	}
	return o.Fst, nil
}

// Cdr returns the second slot of a non-empty pair.
func (h *Heap) Cdr(ref Ref) (Ref, error) {
	o, err := h.pair("cdr", ref)
	if err != nil {
		return NoRef, err
	}
	return o.Snd, nil
}

func (h *Heap) pair(op string, ref Ref) (*Object, error) {
	o := h.Get(ref)
	if o == nil || o.Kind != KindPair || o.IsNil() {
		return nil, faultf(FaultTypeMismatch, op, "expected non-empty pair, got %s", h.Show(ref))
	}
	return o, nil
}

// Slice walks a proper list and returns its elements.
func (h *Heap) Slice(op string, list Ref) ([]Ref, error) {
	var items []Ref
	for !h.IsNil(list) {
		o := h.Get(list)
		if o == nil || o.Kind != KindPair {
			return nil, faultf(FaultTypeMismatch, op, "expected proper list, got %s", h.Show(list))
		}
		items = append(items, o.Fst)
		list = o.Snd
	}
	return items, nil
}

// Marked reports the mark bit of ref's slot. Outside a collection cycle
// every mark is clear.
func (h *Heap) Marked(ref Ref) bool {
	if h.Get(ref) == nil {
		return false
	}
	return h.marks[ref]
}

// Live returns the number of objects currently allocated.
func (h *Heap) Live() int {
	return h.live
}

// Len returns the slot high-water mark, free holes included.
func (h *Heap) Len() int {
	return len(h.slots)
}

// Limit returns the configured maximum object count (0 = unbounded).
func (h *Heap) Limit() int {
	return h.limit
}

// Each calls fn for every occupied slot in index order until fn returns
// false.
func (h *Heap) Each(fn func(ref Ref, obj *Object, marked bool) bool) {
	for i, obj := range h.slots {
		if obj == nil {
			continue
		}
		if !fn(Ref(i), obj, h.marks[i]) {
			return
		}
	}
}

func (h *Heap) String() string {
	return fmt.Sprintf("Heap{live: %d, slots: %d, limit: %d}", h.live, len(h.slots), h.limit)
}
