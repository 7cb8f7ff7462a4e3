package vm

// ---------------------------------------------------------------------------
// Environments: binding scopes stored on the heap
// ---------------------------------------------------------------------------

// Environments are ordinary heap objects. There is no destroy operation: a
// scope lives as long as something reachable (the root, a closure, a
// child scope) refers to it.

// NewEnv allocates an empty scope whose enclosing scope is parent. Pass
// NoRef for a root scope.
func (h *Heap) NewEnv(parent Ref) (Ref, error) {
	if parent != NoRef {
		if o := h.Get(parent); o == nil || o.Kind != KindEnv {
			return NoRef, faultf(FaultTypeMismatch, "environment", "parent is not an environment")
		}
	}
	return h.place(&Object{
		Kind: KindEnv,
		env:  &environment{parent: parent, bindings: make(map[uint32]Ref)},
	})
}

// Define binds name to val in env only, shadowing any binding of the same
// name in enclosing scopes.
func (h *Heap) Define(env Ref, name string, val Ref) error {
	return h.define(env, h.Symbols.Intern(name), val)
}

// Resolve looks name up in env and then each enclosing scope in turn,
// returning the first binding found.
func (h *Heap) Resolve(env Ref, name string) (Ref, error) {
	id, ok := h.Symbols.Lookup(name)
	if !ok {
		return NoRef, faultf(FaultUnboundSymbol, "lookup", "%s", name)
	}
	return h.resolve(env, id)
}

// Parent returns the enclosing scope of env, or NoRef for a root scope.
func (h *Heap) Parent(env Ref) (Ref, error) {
	e, err := h.scope("parent", env)
	if err != nil {
		return NoRef, err
	}
	return e.parent, nil
}

// Bindings returns the number of bindings held directly by env.
func (h *Heap) Bindings(env Ref) int {
	e, err := h.scope("bindings", env)
	if err != nil {
		return 0
	}
	return len(e.bindings)
}

func (h *Heap) scope(op string, env Ref) (*environment, error) {
	o := h.Get(env)
	if o == nil || o.Kind != KindEnv {
		return nil, faultf(FaultTypeMismatch, op, "not an environment")
	}
	return o.env, nil
}

func (h *Heap) define(env Ref, sym uint32, val Ref) error {
	e, err := h.scope("define", env)
	if err != nil {
		return err
	}
	if h.Get(val) == nil {
		return faultf(FaultTypeMismatch, "define", "invalid reference for %s", h.Symbols.Name(sym))
	}
	e.bindings[sym] = val
	return nil
}

func (h *Heap) resolve(env Ref, sym uint32) (Ref, error) {
	for env != NoRef {
		e, err := h.scope("lookup", env)
		if err != nil {
			return NoRef, err
		}
		if val, ok := e.bindings[sym]; ok {
			return val, nil
		}
		env = e.parent
	}
	return NoRef, faultf(FaultUnboundSymbol, "lookup", "%s", h.Symbols.Name(sym))
}
