package vm

import "fmt"

// Kind identifies which variant a heap object holds.
type Kind uint8

const (
	KindBool Kind = iota
	KindNumber
	KindSymbol
	KindString
	KindPair
	KindClosure
	KindPrimitive
	KindEnv
)

var kindNames = [...]string{
	KindBool:      "bool",
	KindNumber:    "number",
	KindSymbol:    "symbol",
	KindString:    "string",
	KindPair:      "pair",
	KindClosure:   "closure",
	KindPrimitive: "primitive",
	KindEnv:       "environment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Ref is a handle to a heap slot. A Ref stays valid until the collector
// frees its slot; after that the slot may be reused by a new object.
type Ref int32

// NoRef marks an absent reference, e.g. the parent of the root environment
// or the slots of the canonical empty list.
const NoRef Ref = -1

// Object is the payload of one heap slot. Only the fields that belong to
// Kind carry meaning.
type Object struct {
	Kind Kind

	Bool bool        // KindBool
	Num  float64     // KindNumber
	Sym  uint32      // KindSymbol: interned symbol ID
	Str  string      // KindString
	Prim PrimitiveID // KindPrimitive

	// KindPair. Both are NoRef for the canonical empty list.
	Fst, Snd Ref

	// KindClosure
	Params, Body, Env Ref

	env *environment // KindEnv
}

// IsNil reports whether o is the empty list.
func (o *Object) IsNil() bool {
	return o.Kind == KindPair && o.Fst == NoRef && o.Snd == NoRef
}

// environment is the payload of a KindEnv object.
type environment struct {
	parent   Ref
	bindings map[uint32]Ref // symbol ID -> value
}
