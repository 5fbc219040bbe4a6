package hooks

import "github.com/roach88/classweave/internal/classfile"

// Resolver turns a Spec into checked method references.
type Resolver struct {
	spec  Spec
	table SymbolTable
}

// NewResolver resolves spec's hooks against table.
func NewResolver(spec Spec, table SymbolTable) *Resolver {
	return &Resolver{spec: spec, table: table}
}

// Spec returns the hook configuration being resolved.
func (r *Resolver) Spec() Spec { return r.spec }

// ResolveWrap returns the wrapper factory reference.
func (r *Resolver) ResolveWrap() (classfile.MemberRef, error) {
	return r.resolve(r.spec.WrapRef())
}

// ResolveLog returns the log sink reference.
func (r *Resolver) ResolveLog() (classfile.MemberRef, error) {
	return r.resolve(r.spec.LogRef())
}

func (r *Resolver) resolve(ref classfile.MemberRef) (classfile.MemberRef, error) {
	if r.table == nil {
		return ref, &LinkError{Symbol: ref, Reason: "no symbol table"}
	}
	ok, err := r.table.LookupStatic(ref.Owner, ref.Name, ref.Desc)
	if err != nil {
		return ref, &LinkError{Symbol: ref, Reason: "lookup failed", Err: err}
	}
	if !ok {
		return ref, &LinkError{Symbol: ref, Reason: "no such static method"}
	}
	return ref, nil
}
