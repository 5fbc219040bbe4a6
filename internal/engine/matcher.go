package engine

import (
	"github.com/roach88/classweave/internal/classfile"
)

// matchLoggableStore decides whether a store into a field of type fieldDesc
// is wrapped. Only the declared descriptor is compared; prev, the
// instruction that produced the stored value, does not affect the outcome.
func matchLoggableStore(fieldDesc string, prev *classfile.Instruction, loggableType string) bool {
	return fieldDesc == loggableType
}

// matchLoggableField selects static fields declared with the loggable type.
func matchLoggableField(m *Member, loggableType string) bool {
	return m.Kind == KindField && m.Static && m.Desc == loggableType
}

// matchMethodEntry selects every method with a body except the static
// initializer. Static and instance methods are both eligible.
func matchMethodEntry(m *Member) bool {
	return m.Kind == KindMethod && m.HasBody && m.Name != classfile.ClassInitializer
}

// storeSite is a putstatic to a particular field inside <clinit>.
type storeSite struct {
	store *classfile.Instruction
	prev  *classfile.Instruction
}

// findStores returns every putstatic in clinit that targets the named field
// of the class being transformed, in stream order.
func findStores(c *classfile.Class, clinit *classfile.Method, name, desc string) ([]storeSite, error) {
	if clinit == nil || clinit.Code == nil {
		return nil, nil
	}
	var sites []storeSite
	var prev *classfile.Instruction
	for _, in := range clinit.Code.Insts {
		if in.Op == classfile.PUTSTATIC {
			ref, err := c.Pool.Member(in.Index)
			if err != nil {
				return nil, err
			}
			if ref.Owner == c.Name() && ref.Name == name && ref.Desc == desc {
				sites = append(sites, storeSite{store: in, prev: prev})
			}
		}
		prev = in
	}
	return sites, nil
}
