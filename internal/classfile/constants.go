package classfile

// Magic is the class file signature.
const Magic = 0xCAFEBABE

// AccessFlags holds class, field or method access and property flags.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
)

func (f AccessFlags) IsPublic() bool    { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool   { return f&AccPrivate != 0 }
func (f AccessFlags) IsProtected() bool { return f&AccProtected != 0 }
func (f AccessFlags) IsStatic() bool    { return f&AccStatic != 0 }
func (f AccessFlags) IsFinal() bool     { return f&AccFinal != 0 }
func (f AccessFlags) IsNative() bool    { return f&AccNative != 0 }
func (f AccessFlags) IsAbstract() bool  { return f&AccAbstract != 0 }
func (f AccessFlags) IsInterface() bool { return f&AccInterface != 0 }

// memberFlagNames lists field/method modifiers in source order for listings.
var memberFlagNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccNative, "native"},
	{AccAbstract, "abstract"},
	{AccSynthetic, "synthetic"},
}

// Modifiers renders the flags as space separated source modifiers.
func (f AccessFlags) Modifiers() string {
	out := ""
	for _, m := range memberFlagNames {
		if f&m.flag == 0 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += m.name
	}
	return out
}

// ConstantTag identifies a constant pool entry kind.
// See: https://docs.oracle.com/javase/specs/jvms/se17/html/jvms-4.html#jvms-4.4
type ConstantTag uint8

const (
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

var tagNames = map[ConstantTag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t ConstantTag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "Unknown"
}

// Well-known attribute names.
const (
	AttrCode                   = "Code"
	AttrLineNumberTable        = "LineNumberTable"
	AttrLocalVariableTable     = "LocalVariableTable"
	AttrLocalVariableTypeTable = "LocalVariableTypeTable"
	AttrStackMapTable          = "StackMapTable"
	AttrVisibleTypeAnnotations = "RuntimeVisibleTypeAnnotations"
	AttrHiddenTypeAnnotations  = "RuntimeInvisibleTypeAnnotations"
)

// Special method names.
const (
	ClassInitializer    = "<clinit>"
	InstanceInitializer = "<init>"
)

// DefaultMajorVersion is used by Builder. Version 49 does not require
// StackMapTable frames, which builder-made classes do not carry.
const DefaultMajorVersion = 49
