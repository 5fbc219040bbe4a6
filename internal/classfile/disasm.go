package classfile

import (
	"fmt"
	"io"
	"strings"
)

var arrayTypeNames = map[int32]string{
	ArrayBoolean: "boolean", ArrayChar: "char", ArrayFloat: "float", ArrayDouble: "double",
	ArrayByte: "byte", ArrayShort: "short", ArrayInt: "int", ArrayLong: "long",
}

// Disassemble renders a listing of c. Instruction offsets are those of the
// most recent Parse or Write.
func Disassemble(c *Class) string {
	var sb strings.Builder
	Fprint(&sb, c)
	return sb.String()
}

// Fprint writes the listing of c to w.
func Fprint(w io.Writer, c *Class) {
	kind := "class"
	if c.Access.IsInterface() {
		kind = "interface"
	}
	fmt.Fprintf(w, "%s %s", kind, c.Name())
	if s := c.SuperName(); s != "" {
		fmt.Fprintf(w, " extends %s", s)
	}
	fmt.Fprintf(w, " (version %d.%d)\n", c.Major, c.Minor)
	for _, a := range c.Attributes {
		fmt.Fprintf(w, "  attribute %s (%d bytes)\n", a.Name, len(a.Data))
	}
	for _, f := range c.Fields {
		fmt.Fprintf(w, "  field %s\n", signature(f.Access, f.Name+" "+f.Desc))
	}
	for _, m := range c.Methods {
		fmt.Fprintf(w, "\n  method %s\n", signature(m.Access, m.Name+m.Desc))
		if m.Code == nil {
			continue
		}
		code := m.Code
		fmt.Fprintf(w, "    stack=%d locals=%d\n", code.MaxStack, code.MaxLocals)
		for _, in := range code.Insts {
			fmt.Fprintf(w, "    %4d: %s\n", in.Offset, FormatInstruction(c.Pool, code, in))
		}
		for _, h := range code.Handlers {
			catch := "any"
			if h.CatchType != 0 {
				catch, _ = c.Pool.ClassName(h.CatchType)
			}
			fmt.Fprintf(w, "    handler [%d, %d) -> %d %s\n",
				labelOffset(code, h.Start), labelOffset(code, h.End), labelOffset(code, h.Handler), catch)
		}
		for _, ln := range code.Lines() {
			if ln.Inst != nil {
				fmt.Fprintf(w, "    line %d: %d\n", ln.Line, ln.Inst.Offset)
			}
		}
	}
}

func signature(access AccessFlags, member string) string {
	if mods := access.Modifiers(); mods != "" {
		return mods + " " + member
	}
	return member
}

func labelOffset(code *Code, l *Label) int {
	if l == nil {
		return -1
	}
	if l.inst == nil {
		if n := len(code.Insts); n > 0 {
			last := code.Insts[n-1]
			return last.Offset + last.size(last.Offset)
		}
		return 0
	}
	return l.inst.Offset
}

// FormatInstruction renders in as it appears in a listing, without its offset.
func FormatInstruction(pool *Pool, code *Code, in *Instruction) string {
	info := opTable[in.Op]
	name := in.Op.String()
	if in.Wide {
		name = "wide " + name
	}
	switch info.kind {
	case kindByte, kindShort:
		return fmt.Sprintf("%s %d", name, in.Int)
	case kindLocal:
		return fmt.Sprintf("%s %d", name, in.Var)
	case kindIinc:
		return fmt.Sprintf("%s %d %d", name, in.Var, in.Int)
	case kindLdc, kindPool:
		return name + " " + formatPoolOperand(pool, in.Index)
	case kindInterface:
		return fmt.Sprintf("%s %s %d", name, formatPoolOperand(pool, in.Index), in.Int)
	case kindDynamic:
		n, d, err := pool.Dynamic(in.Index)
		if err != nil {
			return fmt.Sprintf("%s #%d", name, in.Index)
		}
		return fmt.Sprintf("%s %s%s", name, n, d)
	case kindMultiArray:
		return fmt.Sprintf("%s %s %d", name, formatPoolOperand(pool, in.Index), in.Int)
	case kindNewArray:
		return name + " " + arrayTypeNames[in.Int]
	case kindBranch, kindBranchWide:
		return fmt.Sprintf("%s %d", name, labelOffset(code, in.Target))
	case kindTableSwitch:
		parts := make([]string, len(in.Switch.Targets))
		for i, t := range in.Switch.Targets {
			parts[i] = fmt.Sprintf("%d: %d", in.Switch.Low+int32(i), labelOffset(code, t))
		}
		return fmt.Sprintf("%s default=%d [%s]", name, labelOffset(code, in.Switch.Default), strings.Join(parts, ", "))
	case kindLookupSwitch:
		parts := make([]string, len(in.Switch.Targets))
		for i, t := range in.Switch.Targets {
			parts[i] = fmt.Sprintf("%d: %d", in.Switch.Keys[i], labelOffset(code, t))
		}
		return fmt.Sprintf("%s default=%d [%s]", name, labelOffset(code, in.Switch.Default), strings.Join(parts, ", "))
	}
	return name
}

func formatPoolOperand(pool *Pool, index uint16) string {
	c, err := pool.Get(index)
	if err != nil {
		return fmt.Sprintf("#%d", index)
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		if ref, err := pool.Member(index); err == nil {
			return ref.String()
		}
	case TagClass:
		if n, err := pool.ClassName(index); err == nil {
			return n
		}
	default:
		if s, _, err := pool.Loadable(index); err == nil {
			return s
		}
	}
	return fmt.Sprintf("#%d", index)
}
