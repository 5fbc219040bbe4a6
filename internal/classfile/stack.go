package classfile

import "math"

// stackEffect returns the words popped and pushed by in.
func stackEffect(pool *Pool, in *Instruction) (pop, push int, err error) {
	info := opTable[in.Op]
	if info.pop != variable && info.push != variable {
		return info.pop, info.push, nil
	}
	switch in.Op {
	case GETSTATIC, PUTSTATIC, GETFIELD, PUTFIELD:
		ref, err := pool.Member(in.Index)
		if err != nil {
			return 0, 0, err
		}
		w := TypeWidth(ref.Desc)
		switch in.Op {
		case GETSTATIC:
			return 0, w, nil
		case PUTSTATIC:
			return w, 0, nil
		case GETFIELD:
			return 1, w, nil
		default:
			return 1 + w, 0, nil
		}
	case INVOKEVIRTUAL, INVOKESPECIAL, INVOKESTATIC, INVOKEINTERFACE:
		ref, err := pool.Member(in.Index)
		if err != nil {
			return 0, 0, err
		}
		mt, err := ParseMethodDescriptor(ref.Desc)
		if err != nil {
			return 0, 0, err
		}
		pop = mt.ArgWords()
		if in.Op != INVOKESTATIC {
			pop++
		}
		return pop, TypeWidth(mt.Return), nil
	case INVOKEDYNAMIC:
		_, desc, err := pool.Dynamic(in.Index)
		if err != nil {
			return 0, 0, err
		}
		mt, err := ParseMethodDescriptor(desc)
		if err != nil {
			return 0, 0, err
		}
		return mt.ArgWords(), TypeWidth(mt.Return), nil
	case MULTIANEWARRAY:
		return int(in.Int), 1, nil
	}
	return info.pop, info.push, nil
}

// localsUsed returns one past the highest local slot that in touches.
func localsUsed(in *Instruction) int {
	info := opTable[in.Op]
	if info.kind != kindLocal && info.kind != kindIinc && info.implicit < 0 {
		return 0
	}
	width := 1
	switch in.Op {
	case LLOAD, DLOAD, LSTORE, DSTORE,
		LLOAD_0, LLOAD_1, LLOAD_2, LLOAD_3, DLOAD_0, DLOAD_1, DLOAD_2, DLOAD_3,
		LSTORE_0, LSTORE_1, LSTORE_2, LSTORE_3, DSTORE_0, DSTORE_1, DSTORE_2, DSTORE_3:
		width = 2
	}
	return in.Var + width
}

// computeMaxs derives max_stack by propagating operand stack depth along
// every control path, including exception edges, and raises max_locals to
// cover the parameters and every slot an instruction touches.
func (c *Code) computeMaxs(pool *Pool, m *Method) error {
	n := len(c.Insts)
	if n == 0 {
		return c.computeError(-1, "empty method body")
	}
	idx := c.indexes()
	target := func(l *Label) int {
		if l.inst == nil {
			return n
		}
		return idx[l.inst]
	}

	// handlers[i] lists the handler entry points covering instruction i.
	handlers := make([][]int, n)
	for _, h := range c.Handlers {
		start, end, entry := target(h.Start), target(h.End), target(h.Handler)
		for i := start; i < end && i < n; i++ {
			handlers[i] = append(handlers[i], entry)
		}
	}

	depth := make([]int, n)
	for i := range depth {
		depth[i] = -1
	}
	var work []int
	var mergeErr error
	enter := func(from, to, d int) {
		if mergeErr != nil {
			return
		}
		if to >= n {
			mergeErr = c.computeError(from, "control falls off the end of the code")
			return
		}
		switch depth[to] {
		case -1:
			depth[to] = d
			work = append(work, to)
		case d:
		default:
			mergeErr = c.computeError(to, "inconsistent stack depth %d and %d at merge point", depth[to], d)
		}
	}

	enter(0, 0, 0)
	maxDepth := 0
	for len(work) > 0 && mergeErr == nil {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := c.Insts[i]
		d := depth[i]

		for _, h := range handlers[i] {
			enter(i, h, 1)
			maxDepth = max(maxDepth, 1)
		}

		pop, push, err := stackEffect(pool, in)
		if err != nil {
			return c.computeError(i, "%s: %v", in.Op, err)
		}
		if d < pop {
			return c.computeError(i, "stack underflow: %s pops %d with depth %d", in.Op, pop, d)
		}
		next := d - pop + push
		maxDepth = max(maxDepth, next)

		switch {
		case in.Switch != nil:
			enter(i, target(in.Switch.Default), next)
			for _, t := range in.Switch.Targets {
				enter(i, target(t), next)
			}
		case in.Op == JSR || in.Op == JSR_W:
			enter(i, target(in.Target), next)
			enter(i, i+1, d)
		case in.Target != nil:
			enter(i, target(in.Target), next)
			if !in.Op.endsBlock() {
				enter(i, i+1, next)
			}
		case !in.Op.endsBlock():
			enter(i, i+1, next)
		}
	}
	if mergeErr != nil {
		return mergeErr
	}
	if maxDepth > math.MaxUint16 {
		return c.computeError(-1, "max stack %d exceeds %d", maxDepth, math.MaxUint16)
	}
	c.MaxStack = uint16(maxDepth)

	locals := 0
	if mt, err := ParseMethodDescriptor(m.Desc); err == nil {
		locals = mt.ArgWords()
		if !m.Access.IsStatic() {
			locals++
		}
	}
	for _, in := range c.Insts {
		locals = max(locals, localsUsed(in))
	}
	if locals > int(c.MaxLocals) {
		if locals > math.MaxUint16 {
			return c.computeError(-1, "max locals %d exceeds %d", locals, math.MaxUint16)
		}
		c.MaxLocals = uint16(locals)
	}
	return nil
}
