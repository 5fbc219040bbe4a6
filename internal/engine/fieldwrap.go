package engine

import (
	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/hooks"
)

// FieldWrap routes values stored into loggable static fields through the
// wrapper factory.
type FieldWrap struct {
	resolver *hooks.Resolver
}

// NewFieldWrap returns the pass for the resolver's loggable type.
func NewFieldWrap(r *hooks.Resolver) *FieldWrap {
	return &FieldWrap{resolver: r}
}

// Kind implements Pass.
func (p *FieldWrap) Kind() PassKind { return PassFieldWrap }

// Matches implements Pass.
func (p *FieldWrap) Matches(m *Member) bool {
	return matchLoggableField(m, p.resolver.Spec().LoggableType)
}

// Synthesize implements Pass. Each store gets its own block; a field
// assigned twice is wrapped twice.
func (p *FieldWrap) Synthesize(m *Member) ([]Injection, error) {
	c := m.Class
	clinit := c.Method(classfile.ClassInitializer, "()V")
	sites, err := findStores(c, clinit, m.Name, m.Desc)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, nil
	}
	wrap, err := p.resolver.ResolveWrap()
	if err != nil {
		return nil, linkError(c.Name(), m, err)
	}
	loggable := p.resolver.Spec().LoggableType
	var out []Injection
	for _, s := range sites {
		if !matchLoggableStore(m.Desc, s.prev, loggable) {
			continue
		}
		out = append(out, Injection{
			Method: clinit,
			Anchor: s.store,
			Mode:   At,
			Block:  []*classfile.Instruction{classfile.PoolInsn(classfile.INVOKESTATIC, c.Pool.Ref(wrap))},
		})
	}
	return out, nil
}
