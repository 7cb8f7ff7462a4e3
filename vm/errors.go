package vm

import (
	"errors"
	"fmt"
)

// FaultKind classifies runtime faults.
type FaultKind int

const (
	FaultParse FaultKind = iota
	FaultUnboundSymbol
	FaultTypeMismatch
	FaultNotCallable
	FaultCapacity
	FaultDepthExceeded
)

var faultNames = [...]string{
	FaultParse:         "ParseError",
	FaultUnboundSymbol: "UnboundSymbol",
	FaultTypeMismatch:  "TypeMismatch",
	FaultNotCallable:   "NotCallable",
	FaultCapacity:      "CapacityFault",
	FaultDepthExceeded: "DepthExceeded",
}

func (k FaultKind) String() string {
	if int(k) >= 0 && int(k) < len(faultNames) {
		return faultNames[k]
	}
	return fmt.Sprintf("Fault(%d)", int(k))
}

// Fault is the error type returned by evaluation and allocation.
// Op names the operation that failed (a special form, primitive, or heap
// operation) and Detail describes the offending operand.
type Fault struct {
	Kind   FaultKind
	Op     string
	Detail string
}

func (f *Fault) Error() string {
	switch {
	case f.Op == "" && f.Detail == "":
		return f.Kind.String()
	case f.Op == "":
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	return fmt.Sprintf("%s in %s: %s", f.Kind, f.Op, f.Detail)
}

// Is matches faults by kind, so errors.Is(err, ErrTypeMismatch) holds for
// every type mismatch regardless of Op and Detail. A NotCallable fault is
// also a TypeMismatch.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	if t.Kind == f.Kind {
		return true
	}
	return f.Kind == FaultNotCallable && t.Kind == FaultTypeMismatch
}

// Sentinel faults for use with errors.Is.
var (
	ErrParse         = &Fault{Kind: FaultParse}
	ErrUnboundSymbol = &Fault{Kind: FaultUnboundSymbol}
	ErrTypeMismatch  = &Fault{Kind: FaultTypeMismatch}
	ErrNotCallable   = &Fault{Kind: FaultNotCallable}
	ErrCapacity      = &Fault{Kind: FaultCapacity}
	ErrDepthExceeded = &Fault{Kind: FaultDepthExceeded}
)

// ErrShutdown is returned by VM entry points after Shutdown.
var ErrShutdown = errors.New("vm: shut down")

func faultf(kind FaultKind, op, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}
