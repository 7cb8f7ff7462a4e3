package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

// Show renders ref as text.
func (h *Heap) Show(ref Ref) string {
	var sb strings.Builder
	h.write(&sb, ref)
	return sb.String()
}

// Print writes the rendering of ref to w.
func (h *Heap) Print(w io.Writer, ref Ref) error {
	_, err := io.WriteString(w, h.Show(ref))
	return err
}

func (h *Heap) write(sb *strings.Builder, ref Ref) {
	o := h.Get(ref)
	if o == nil {
		fmt.Fprintf(sb, "#<invalid %d>", ref)
		return
	}
	switch o.Kind {
	case KindBool:
		if o.Bool {
			sb.WriteString("#t")
		} else {
			sb.WriteString("#f")
		}
	case KindNumber:
		sb.WriteString(strconv.FormatFloat(o.Num, 'g', -1, 64))
	case KindSymbol:
		sb.WriteString(h.Symbols.Name(o.Sym))
	case KindString:
		sb.WriteByte('"')
		sb.WriteString(stringEscaper.Replace(o.Str))
		sb.WriteByte('"')
	case KindPair:
		h.writeList(sb, o)
	case KindClosure:
		sb.WriteString("#<lambda ")
		h.write(sb, o.Params)
		sb.WriteByte('>')
	case KindPrimitive:
		fmt.Fprintf(sb, "#<primitive %s>", o.Prim)
	case KindEnv:
		fmt.Fprintf(sb, "#<environment %d>", ref)
	default:
		fmt.Fprintf(sb, "#<%s>", o.Kind)
	}
}

func (h *Heap) writeList(sb *strings.Builder, o *Object) {
	if o.IsNil() {
		sb.WriteString("#nil")
		return
	}
	sb.WriteByte('(')
	for {
		h.write(sb, o.Fst)
		next := h.Get(o.Snd)
		switch {
		case next == nil || next.Kind != KindPair:
			sb.WriteString(" . ")
			h.write(sb, o.Snd)
			sb.WriteByte(')')
			return
		case next.IsNil():
			sb.WriteByte(')')
			return
		}
		sb.WriteByte(' ')
		o = next
	}
}

// DumpHeap writes one line per slot: "-" for a free slot, otherwise the
// mark bit followed by the object's rendering.
func (h *Heap) DumpHeap(w io.Writer) error {
	for i, obj := range h.slots {
		var err error
		if obj == nil {
			_, err = fmt.Fprintf(w, "%3d: -\n", i)
		} else {
			mark := 0
			if h.marks[i] {
				mark = 1
			}
			_, err = fmt.Fprintf(w, "%3d: %d %s\n", i, mark, h.Show(Ref(i)))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
