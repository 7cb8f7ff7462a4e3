package vm

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: one interpreter session
// ---------------------------------------------------------------------------

// VM is an interpreter session: a heap, a root environment preloaded with
// the primitives, and a collector. Sessions share no state, so several can
// exist side by side (each is still single-threaded).
type VM struct {
	// ID identifies the session in logs and heap snapshots.
	ID string

	mu        sync.Mutex
	heap      *Heap
	root      Ref
	kw        keywords
	collector *Collector

	// keepAlive holds extra collection roots pinned by the host, with a
	// pin count per reference.
	keepAlive map[Ref]int

	depth    int
	maxDepth int

	log commonlog.Logger
}

// Option configures a VM.
type Option func(*vmConfig)

type vmConfig struct {
	maxObjects int
	maxDepth   int
	trace      io.Writer
	capture    bool
	report     func(*GCStats)
}

// WithMaxObjects caps the heap at n objects; allocation beyond it fails
// with a CapacityFault. Zero means unbounded.
func WithMaxObjects(n int) Option {
	return func(c *vmConfig) { c.maxObjects = n }
}

// WithMaxDepth caps evaluation nesting at n; deeper recursion fails with a
// DepthExceeded fault. Zero means no limit.
func WithMaxDepth(n int) Option {
	return func(c *vmConfig) { c.maxDepth = n }
}

// WithGCTrace dumps the whole heap to w during every collection.
func WithGCTrace(w io.Writer) Option {
	return func(c *vmConfig) { c.trace = w }
}

// WithGCReport calls fn with each cycle's statistics as soon as the sweep
// finishes, between the two trace dumps.
func WithGCReport(fn func(*GCStats)) Option {
	return func(c *vmConfig) { c.report = fn }
}

// WithSnapshots records heap snapshots in each cycle's GCStats.
func WithSnapshots(enabled bool) Option {
	return func(c *vmConfig) { c.capture = enabled }
}

// NewVM creates a session and builds its root environment.
func NewVM(opts ...Option) (*VM, error) {
	cfg := &vmConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	heap := NewHeap(cfg.maxObjects)
	vm := &VM{
		ID:        uuid.New().String(),
		heap:      heap,
		kw:        internKeywords(heap.Symbols),
		keepAlive: make(map[Ref]int),
		maxDepth:  cfg.maxDepth,
		log:       commonlog.GetLogger("lispgc.vm"),
	}
	vm.collector = NewCollector(vm)
	vm.collector.SetTrace(cfg.trace)
	vm.collector.SetCapture(cfg.capture)
	vm.collector.SetReport(cfg.report)

	root, err := heap.NewEnv(NoRef)
	if err != nil {
		return nil, fmt.Errorf("vm: create root environment: %w", err)
	}
	if err := heap.installPrimitives(root); err != nil {
		return nil, fmt.Errorf("vm: install primitives: %w", err)
	}
	vm.root = root

	vm.log.Debugf("session %s started with %d objects", vm.ID, heap.Live())
	return vm, nil
}

// Shutdown releases the heap. Every entry point fails with ErrShutdown
// afterwards.
func (vm *VM) Shutdown() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return
	}
	vm.log.Debugf("session %s shut down with %d live objects", vm.ID, vm.heap.Live())
	vm.heap = nil
	vm.root = NoRef
	vm.keepAlive = nil
}

// Heap returns the session's heap, or nil after Shutdown. The heap itself is
// unsynchronized; callers building values on it must not run concurrently
// with Eval or Collect.
func (vm *VM) Heap() *Heap {
	return vm.heap
}

// Root returns the root environment.
func (vm *VM) Root() Ref {
	return vm.root
}

// Collector returns the session's collector.
func (vm *VM) Collector() *Collector {
	return vm.collector
}

// Show renders ref using the session's heap.
func (vm *VM) Show(ref Ref) string {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return "#<shut down>"
	}
	return vm.heap.Show(ref)
}

// Print writes the rendering of ref to w.
func (vm *VM) Print(w io.Writer, ref Ref) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return ErrShutdown
	}
	return vm.heap.Print(w, ref)
}

// DumpHeap writes every slot with its mark bit to w.
func (vm *VM) DumpHeap(w io.Writer) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return ErrShutdown
	}
	return vm.heap.DumpHeap(w)
}

// Define binds name to val in env.
func (vm *VM) Define(env Ref, name string, val Ref) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return ErrShutdown
	}
	return vm.heap.Define(env, name, val)
}

// Resolve looks name up starting at env.
func (vm *VM) Resolve(env Ref, name string) (Ref, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return NoRef, ErrShutdown
	}
	return vm.heap.Resolve(env, name)
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Collect runs one mark-and-sweep cycle. It takes the same lock as Eval,
// so it never runs while an evaluation is in progress.
func (vm *VM) Collect() (*GCStats, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return nil, ErrShutdown
	}
	return vm.collector.collect(vm.roots()), nil
}

// roots returns the root environment, the canonical empty list, and every
// pinned reference.
func (vm *VM) roots() []Ref {
	roots := make([]Ref, 0, 2+len(vm.keepAlive))
	roots = append(roots, vm.root, vm.heap.Nil())
	for ref := range vm.keepAlive {
		roots = append(roots, ref)
	}
	return roots
}

// Pin keeps ref alive across collections until a matching Unpin. Hosts use
// it for values they hold outside the root environment.
func (vm *VM) Pin(ref Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.keepAlive != nil {
		vm.keepAlive[ref]++
	}
}

// Unpin releases one Pin of ref.
func (vm *VM) Unpin(ref Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if n, ok := vm.keepAlive[ref]; ok {
		if n <= 1 {
			delete(vm.keepAlive, ref)
		} else {
			vm.keepAlive[ref] = n - 1
		}
	}
}
