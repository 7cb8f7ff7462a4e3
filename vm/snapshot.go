package vm

import (
	"slices"
	"time"
)

// Snapshot is a copy of every occupied heap slot at one moment, for
// offline inspection of collector behaviour.
type Snapshot struct {
	Session string       `cbor:"session" yaml:"session"`
	Label   string       `cbor:"label" yaml:"label"`
	Cycle   uint64       `cbor:"cycle" yaml:"cycle"`
	Taken   time.Time    `cbor:"taken" yaml:"taken"`
	Live    int          `cbor:"live" yaml:"live"`
	Slots   int          `cbor:"slots" yaml:"slots"`
	Objects []SlotRecord `cbor:"objects" yaml:"objects"`
}

// SlotRecord describes one occupied slot.
type SlotRecord struct {
	Index  int    `cbor:"index" yaml:"index"`
	Kind   string `cbor:"kind" yaml:"kind"`
	Marked bool   `cbor:"marked" yaml:"marked"`
	Text   string `cbor:"text" yaml:"text"`
	Refs   []int  `cbor:"refs,omitempty" yaml:"refs,omitempty,flow"`
}

// Snapshot captures the heap under label. Marks are only set inside a
// collection cycle, so a snapshot taken here shows every mark clear.
func (vm *VM) Snapshot(label string) (*Snapshot, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return nil, ErrShutdown
	}
	return vm.snapshot(label, vm.collector.SweepCount()), nil
}

func (vm *VM) snapshot(label string, cycle uint64) *Snapshot {
	h := vm.heap
	s := &Snapshot{
		Session: vm.ID,
		Label:   label,
		Cycle:   cycle,
		Taken:   time.Now().UTC(),
		Live:    h.Live(),
		Slots:   h.Len(),
		Objects: make([]SlotRecord, 0, h.Live()),
	}
	h.Each(func(ref Ref, obj *Object, marked bool) bool {
		s.Objects = append(s.Objects, SlotRecord{
			Index:  int(ref),
			Kind:   obj.Kind.String(),
			Marked: marked,
			Text:   h.Show(ref),
			Refs:   outgoing(obj),
		})
		return true
	})
	return s
}

// outgoing lists the heap references held by obj, in the order the
// collector follows them.
func outgoing(obj *Object) []int {
	var refs []Ref
	switch obj.Kind {
	case KindPair:
		if !obj.IsNil() {
			refs = []Ref{obj.Fst, obj.Snd}
		}
	case KindClosure:
		refs = []Ref{obj.Params, obj.Body, obj.Env}
	case KindEnv:
		if obj.env.parent != NoRef {
			refs = append(refs, obj.env.parent)
		}
		bound := make([]Ref, 0, len(obj.env.bindings))
		for _, val := range obj.env.bindings {
			bound = append(bound, val)
		}
		slices.Sort(bound)
		refs = append(refs, bound...)
	}
	if len(refs) == 0 {
		return nil
	}
	out := make([]int, len(refs))
	for i, r := range refs {
		out[i] = int(r)
	}
	return out
}
