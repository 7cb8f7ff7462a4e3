package vm

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

// keywords holds the interned IDs of the special-form names. Special forms
// are recognised by name, whatever the symbol is bound to.
type keywords struct {
	ifID, lambdaID, quoteID, defineID uint32
}

func internKeywords(st *SymbolTable) keywords {
	return keywords{
		ifID:     st.Intern("if"),
		lambdaID: st.Intern("lambda"),
		quoteID:  st.Intern("quote"),
		defineID: st.Intern("define"),
	}
}

// Eval evaluates expr in env. Collection is excluded while Eval runs.
func (vm *VM) Eval(expr, env Ref) (Ref, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.heap == nil {
		return NoRef, ErrShutdown
	}
	result, err := vm.eval(expr, env)
	if err != nil {
		vm.log.Debugf("eval failed: %v", err)
		return NoRef, err
	}
	return result, nil
}

func (vm *VM) eval(expr, env Ref) (Ref, error) {
	if vm.maxDepth > 0 && vm.depth >= vm.maxDepth {
		return NoRef, faultf(FaultDepthExceeded, "eval", "recursion deeper than %d", vm.maxDepth)
	}
	vm.depth++
	defer func() { vm.depth-- }()

	h := vm.heap
	o := h.Get(expr)
	if o == nil {
		return NoRef, faultf(FaultTypeMismatch, "eval", "invalid reference %d", expr)
	}

	switch o.Kind {
	case KindBool, KindNumber, KindString, KindPrimitive, KindClosure:
		return expr, nil
	case KindSymbol:
		return h.resolve(env, o.Sym)
	case KindPair:
		if o.IsNil() {
			return expr, nil
		}
		return vm.evalPair(o, env)
	case KindEnv:
		return NoRef, faultf(FaultTypeMismatch, "eval", "an environment is not an expression")
	}
	return NoRef, faultf(FaultTypeMismatch, "eval", "unknown kind %s", o.Kind)
}

func (vm *VM) evalPair(form *Object, env Ref) (Ref, error) {
	if head := vm.heap.Get(form.Fst); head != nil && head.Kind == KindSymbol {
		switch head.Sym {
		case vm.kw.ifID:
			return vm.evalIf(form.Snd, env)
		case vm.kw.lambdaID:
			return vm.evalLambda(form.Snd, env)
		case vm.kw.quoteID:
			return vm.evalQuote(form.Snd)
		case vm.kw.defineID:
			return vm.evalDefine(form.Snd, env)
		}
	}
	return vm.apply(form.Fst, form.Snd, env)
}

// operands returns the operands of a special form, which must number
// exactly n.
func (vm *VM) operands(op string, tail Ref, n int) ([]Ref, error) {
	items, err := vm.heap.Slice(op, tail)
	if err != nil {
		return nil, err
	}
	if len(items) != n {
		return nil, faultf(FaultTypeMismatch, op, "expected %d operands, got %d", n, len(items))
	}
	return items, nil
}

// evalIf evaluates (if COND THEN ELSE). Only the taken branch is evaluated.
func (vm *VM) evalIf(tail Ref, env Ref) (Ref, error) {
	parts, err := vm.operands("if", tail, 3)
	if err != nil {
		return NoRef, err
	}
	cond, err := vm.eval(parts[0], env)
	if err != nil {
		return NoRef, err
	}
	c := vm.heap.Get(cond)
	if c == nil || c.Kind != KindBool {
		return NoRef, faultf(FaultTypeMismatch, "if", "condition is not a boolean: %s", vm.heap.Show(cond))
	}
	if c.Bool {
		return vm.eval(parts[1], env)
	}
	return vm.eval(parts[2], env)
}

// evalLambda evaluates (lambda PARAMS BODY), capturing env by reference.
func (vm *VM) evalLambda(tail Ref, env Ref) (Ref, error) {
	parts, err := vm.operands("lambda", tail, 2)
	if err != nil {
		return NoRef, err
	}
	if p := vm.heap.Get(parts[0]); p == nil || p.Kind != KindPair {
		return NoRef, faultf(FaultTypeMismatch, "lambda", "parameters must be a list, got %s", vm.heap.Show(parts[0]))
	}
	return vm.heap.NewClosure(parts[0], parts[1], env)
}

// evalQuote returns the datum of (quote DATUM) unevaluated.
func (vm *VM) evalQuote(tail Ref) (Ref, error) {
	parts, err := vm.operands("quote", tail, 1)
	if err != nil {
		return NoRef, err
	}
	return parts[0], nil
}

// evalDefine evaluates (define NAME EXPR) and binds NAME in env itself.
func (vm *VM) evalDefine(tail Ref, env Ref) (Ref, error) {
	parts, err := vm.operands("define", tail, 2)
	if err != nil {
		return NoRef, err
	}
	name := vm.heap.Get(parts[0])
	if name == nil || name.Kind != KindSymbol {
		return NoRef, faultf(FaultTypeMismatch, "define", "name must be a symbol, got %s", vm.heap.Show(parts[0]))
	}
	val, err := vm.eval(parts[1], env)
	if err != nil {
		return NoRef, err
	}
	if err := vm.heap.define(env, name.Sym, val); err != nil {
		return NoRef, err
	}
	return vm.heap.Nil(), nil
}

// apply evaluates the head, then each argument left to right, and calls
// the result.
func (vm *VM) apply(head, tail Ref, env Ref) (Ref, error) {
	fn, err := vm.eval(head, env)
	if err != nil {
		return NoRef, err
	}
	args, err := vm.evalArgs(tail, env)
	if err != nil {
		return NoRef, err
	}

	callee := vm.heap.Get(fn)
	if callee == nil {
		return NoRef, faultf(FaultTypeMismatch, "apply", "invalid reference %d", fn)
	}
	switch callee.Kind {
	case KindPrimitive:
		return vm.heap.callPrimitive(callee.Prim, args)
	case KindClosure:
		return vm.callClosure(callee, args)
	}
	return NoRef, faultf(FaultNotCallable, "apply", "%s is not a procedure", vm.heap.Show(fn))
}

// evalArgs evaluates every expression of a proper list in order and
// returns a fresh list of the results.
func (vm *VM) evalArgs(list Ref, env Ref) (Ref, error) {
	exprs, err := vm.heap.Slice("apply", list)
	if err != nil {
		return NoRef, err
	}
	vals := make([]Ref, len(exprs))
	for i, expr := range exprs {
		if vals[i], err = vm.eval(expr, env); err != nil {
			return NoRef, err
		}
	}
	return vm.heap.List(vals...)
}

// callClosure binds parameters to arguments pairwise in a new child of the
// closure's environment. Binding stops at the end of either list: missing
// arguments leave parameters unbound and extra arguments are ignored.
func (vm *VM) callClosure(c *Object, args Ref) (Ref, error) {
	h := vm.heap
	callEnv, err := h.NewEnv(c.Env)
	if err != nil {
		return NoRef, err
	}
	params := c.Params
	for !h.IsNil(params) && !h.IsNil(args) {
		p := h.Get(params)
		if p == nil || p.Kind != KindPair {
			return NoRef, faultf(FaultTypeMismatch, "apply", "improper parameter list %s", h.Show(c.Params))
		}
		name := h.Get(p.Fst)
		if name == nil || name.Kind != KindSymbol {
			return NoRef, faultf(FaultTypeMismatch, "apply", "parameter is not a symbol: %s", h.Show(p.Fst))
		}
		a := h.Get(args)
		if err := h.define(callEnv, name.Sym, a.Fst); err != nil {
			return NoRef, err
		}
		params, args = p.Snd, a.Snd
	}
	return vm.eval(c.Body, callEnv)
}
