package classfile

// MemberRef is a resolved field or method reference.
type MemberRef struct {
	// Kind is TagFieldref, TagMethodref, or TagInterfaceMethodref.
	Kind  ConstantTag
	Owner string
	Name  string
	Desc  string
}

// FieldRefOf returns a field reference.
func FieldRefOf(owner, name, desc string) MemberRef {
	return MemberRef{Kind: TagFieldref, Owner: owner, Name: name, Desc: desc}
}

// MethodRefOf returns a class method reference.
func MethodRefOf(owner, name, desc string) MemberRef {
	return MemberRef{Kind: TagMethodref, Owner: owner, Name: name, Desc: desc}
}

func (m MemberRef) String() string {
	if m.Kind == TagFieldref {
		return m.Owner + "." + m.Name + ":" + m.Desc
	}
	return m.Owner + "." + m.Name + m.Desc
}
