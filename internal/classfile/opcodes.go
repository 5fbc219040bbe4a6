package classfile

// Opcode is a single JVM instruction opcode.
type Opcode byte

// Opcodes in numeric order.
// See: https://docs.oracle.com/javase/specs/jvms/se17/html/jvms-6.html
const (
	NOP Opcode = iota
	ACONST_NULL
	ICONST_M1
	ICONST_0
	ICONST_1
	ICONST_2
	ICONST_3
	ICONST_4
	ICONST_5
	LCONST_0
	LCONST_1
	FCONST_0
	FCONST_1
	FCONST_2
	DCONST_0
	DCONST_1
	BIPUSH
	SIPUSH
	LDC
	LDC_W
	LDC2_W
	ILOAD
	LLOAD
	FLOAD
	DLOAD
	ALOAD
	ILOAD_0
	ILOAD_1
	ILOAD_2
	ILOAD_3
	LLOAD_0
	LLOAD_1
	LLOAD_2
	LLOAD_3
	FLOAD_0
	FLOAD_1
	FLOAD_2
	FLOAD_3
	DLOAD_0
	DLOAD_1
	DLOAD_2
	DLOAD_3
	ALOAD_0
	ALOAD_1
	ALOAD_2
	ALOAD_3
	IALOAD
	LALOAD
	FALOAD
	DALOAD
	AALOAD
	BALOAD
	CALOAD
	SALOAD
	ISTORE
	LSTORE
	FSTORE
	DSTORE
	ASTORE
	ISTORE_0
	ISTORE_1
	ISTORE_2
	ISTORE_3
	LSTORE_0
	LSTORE_1
	LSTORE_2
	LSTORE_3
	FSTORE_0
	FSTORE_1
	FSTORE_2
	FSTORE_3
	DSTORE_0
	DSTORE_1
	DSTORE_2
	DSTORE_3
	ASTORE_0
	ASTORE_1
	ASTORE_2
	ASTORE_3
	IASTORE
	LASTORE
	FASTORE
	DASTORE
	AASTORE
	BASTORE
	CASTORE
	SASTORE
	POP
	POP2
	DUP
	DUP_X1
	DUP_X2
	DUP2
	DUP2_X1
	DUP2_X2
	SWAP
	IADD
	LADD
	FADD
	DADD
	ISUB
	LSUB
	FSUB
	DSUB
	IMUL
	LMUL
	FMUL
	DMUL
	IDIV
	LDIV
	FDIV
	DDIV
	IREM
	LREM
	FREM
	DREM
	INEG
	LNEG
	FNEG
	DNEG
	ISHL
	LSHL
	ISHR
	LSHR
	IUSHR
	LUSHR
	IAND
	LAND
	IOR
	LOR
	IXOR
	LXOR
	IINC
	I2L
	I2F
	I2D
	L2I
	L2F
	L2D
	F2I
	F2L
	F2D
	D2I
	D2L
	D2F
	I2B
	I2C
	I2S
	LCMP
	FCMPL
	FCMPG
	DCMPL
	DCMPG
	IFEQ
	IFNE
	IFLT
	IFGE
	IFGT
	IFLE
	IF_ICMPEQ
	IF_ICMPNE
	IF_ICMPLT
	IF_ICMPGE
	IF_ICMPGT
	IF_ICMPLE
	IF_ACMPEQ
	IF_ACMPNE
	GOTO
	JSR
	RET
	TABLESWITCH
	LOOKUPSWITCH
	IRETURN
	LRETURN
	FRETURN
	DRETURN
	ARETURN
	RETURN
	GETSTATIC
	PUTSTATIC
	GETFIELD
	PUTFIELD
	INVOKEVIRTUAL
	INVOKESPECIAL
	INVOKESTATIC
	INVOKEINTERFACE
	INVOKEDYNAMIC
	NEW
	NEWARRAY
	ANEWARRAY
	ARRAYLENGTH
	ATHROW
	CHECKCAST
	INSTANCEOF
	MONITORENTER
	MONITOREXIT
	WIDE
	MULTIANEWARRAY
	IFNULL
	IFNONNULL
	GOTO_W
	JSR_W
)

// operandKind describes how an opcode's operands are encoded.
type operandKind uint8

const (
	kindNone        operandKind = iota
	kindByte                    // signed byte immediate
	kindShort                   // signed short immediate
	kindLocal                   // u1 slot (u2 under wide)
	kindLdc                     // u1 constant pool index
	kindPool                    // u2 constant pool index
	kindIinc                    // u1 slot, s1 delta (u2, s2 under wide)
	kindBranch                  // s2 branch offset
	kindBranchWide              // s4 branch offset
	kindInterface               // u2 index, u1 count, u1 zero
	kindDynamic                 // u2 index, u2 zero
	kindNewArray                // u1 primitive array type
	kindMultiArray              // u2 index, u1 dimensions
	kindTableSwitch             // padded table
	kindLookupSwitch            // padded match/offset pairs
	kindWide                    // prefix, never stored in a stream
)

// variable marks a stack effect that depends on the operand.
const variable = -1

type opInfo struct {
	name     string
	kind     operandKind
	implicit int // implicit local slot for *_n forms, -1 otherwise
	pop      int // words popped, or variable
	push     int // words pushed, or variable
}

var opTable [256]*opInfo

func def(op Opcode, name string, kind operandKind, pop, push int) {
	opTable[op] = &opInfo{name: name, kind: kind, implicit: -1, pop: pop, push: push}
}

func defImplicit(first Opcode, prefix string, pop, push int) {
	for i := 0; i < 4; i++ {
		op := first + Opcode(i)
		opTable[op] = &opInfo{name: prefix + "_" + string(rune('0'+i)), kind: kindNone, implicit: i, pop: pop, push: push}
	}
}

func init() {
	def(NOP, "nop", kindNone, 0, 0)
	def(ACONST_NULL, "aconst_null", kindNone, 0, 1)
	def(ICONST_M1, "iconst_m1", kindNone, 0, 1)
	for i := 0; i <= 5; i++ {
		def(ICONST_0+Opcode(i), "iconst_"+string(rune('0'+i)), kindNone, 0, 1)
	}
	def(LCONST_0, "lconst_0", kindNone, 0, 2)
	def(LCONST_1, "lconst_1", kindNone, 0, 2)
	def(FCONST_0, "fconst_0", kindNone, 0, 1)
	def(FCONST_1, "fconst_1", kindNone, 0, 1)
	def(FCONST_2, "fconst_2", kindNone, 0, 1)
	def(DCONST_0, "dconst_0", kindNone, 0, 2)
	def(DCONST_1, "dconst_1", kindNone, 0, 2)
	def(BIPUSH, "bipush", kindByte, 0, 1)
	def(SIPUSH, "sipush", kindShort, 0, 1)
	def(LDC, "ldc", kindLdc, 0, 1)
	def(LDC_W, "ldc_w", kindPool, 0, 1)
	def(LDC2_W, "ldc2_w", kindPool, 0, 2)

	def(ILOAD, "iload", kindLocal, 0, 1)
	def(LLOAD, "lload", kindLocal, 0, 2)
	def(FLOAD, "fload", kindLocal, 0, 1)
	def(DLOAD, "dload", kindLocal, 0, 2)
	def(ALOAD, "aload", kindLocal, 0, 1)
	defImplicit(ILOAD_0, "iload", 0, 1)
	defImplicit(LLOAD_0, "lload", 0, 2)
	defImplicit(FLOAD_0, "fload", 0, 1)
	defImplicit(DLOAD_0, "dload", 0, 2)
	defImplicit(ALOAD_0, "aload", 0, 1)

	def(IALOAD, "iaload", kindNone, 2, 1)
	def(LALOAD, "laload", kindNone, 2, 2)
	def(FALOAD, "faload", kindNone, 2, 1)
	def(DALOAD, "daload", kindNone, 2, 2)
	def(AALOAD, "aaload", kindNone, 2, 1)
	def(BALOAD, "baload", kindNone, 2, 1)
	def(CALOAD, "caload", kindNone, 2, 1)
	def(SALOAD, "saload", kindNone, 2, 1)

	def(ISTORE, "istore", kindLocal, 1, 0)
	def(LSTORE, "lstore", kindLocal, 2, 0)
	def(FSTORE, "fstore", kindLocal, 1, 0)
	def(DSTORE, "dstore", kindLocal, 2, 0)
	def(ASTORE, "astore", kindLocal, 1, 0)
	defImplicit(ISTORE_0, "istore", 1, 0)
	defImplicit(LSTORE_0, "lstore", 2, 0)
	defImplicit(FSTORE_0, "fstore", 1, 0)
	defImplicit(DSTORE_0, "dstore", 2, 0)
	defImplicit(ASTORE_0, "astore", 1, 0)

	def(IASTORE, "iastore", kindNone, 3, 0)
	def(LASTORE, "lastore", kindNone, 4, 0)
	def(FASTORE, "fastore", kindNone, 3, 0)
	def(DASTORE, "dastore", kindNone, 4, 0)
	def(AASTORE, "aastore", kindNone, 3, 0)
	def(BASTORE, "bastore", kindNone, 3, 0)
	def(CASTORE, "castore", kindNone, 3, 0)
	def(SASTORE, "sastore", kindNone, 3, 0)

	def(POP, "pop", kindNone, 1, 0)
	def(POP2, "pop2", kindNone, 2, 0)
	def(DUP, "dup", kindNone, 1, 2)
	def(DUP_X1, "dup_x1", kindNone, 2, 3)
	def(DUP_X2, "dup_x2", kindNone, 3, 4)
	def(DUP2, "dup2", kindNone, 2, 4)
	def(DUP2_X1, "dup2_x1", kindNone, 3, 5)
	def(DUP2_X2, "dup2_x2", kindNone, 4, 6)
	def(SWAP, "swap", kindNone, 2, 2)

	arith := []struct {
		op   Opcode
		name string
	}{{IADD, "add"}, {ISUB, "sub"}, {IMUL, "mul"}, {IDIV, "div"}, {IREM, "rem"}}
	for _, a := range arith {
		def(a.op, "i"+a.name, kindNone, 2, 1)
		def(a.op+1, "l"+a.name, kindNone, 4, 2)
		def(a.op+2, "f"+a.name, kindNone, 2, 1)
		def(a.op+3, "d"+a.name, kindNone, 4, 2)
	}
	def(INEG, "ineg", kindNone, 1, 1)
	def(LNEG, "lneg", kindNone, 2, 2)
	def(FNEG, "fneg", kindNone, 1, 1)
	def(DNEG, "dneg", kindNone, 2, 2)
	def(ISHL, "ishl", kindNone, 2, 1)
	def(LSHL, "lshl", kindNone, 3, 2)
	def(ISHR, "ishr", kindNone, 2, 1)
	def(LSHR, "lshr", kindNone, 3, 2)
	def(IUSHR, "iushr", kindNone, 2, 1)
	def(LUSHR, "lushr", kindNone, 3, 2)
	def(IAND, "iand", kindNone, 2, 1)
	def(LAND, "land", kindNone, 4, 2)
	def(IOR, "ior", kindNone, 2, 1)
	def(LOR, "lor", kindNone, 4, 2)
	def(IXOR, "ixor", kindNone, 2, 1)
	def(LXOR, "lxor", kindNone, 4, 2)
	def(IINC, "iinc", kindIinc, 0, 0)

	def(I2L, "i2l", kindNone, 1, 2)
	def(I2F, "i2f", kindNone, 1, 1)
	def(I2D, "i2d", kindNone, 1, 2)
	def(L2I, "l2i", kindNone, 2, 1)
	def(L2F, "l2f", kindNone, 2, 1)
	def(L2D, "l2d", kindNone, 2, 2)
	def(F2I, "f2i", kindNone, 1, 1)
	def(F2L, "f2l", kindNone, 1, 2)
	def(F2D, "f2d", kindNone, 1, 2)
	def(D2I, "d2i", kindNone, 2, 1)
	def(D2L, "d2l", kindNone, 2, 2)
	def(D2F, "d2f", kindNone, 2, 1)
	def(I2B, "i2b", kindNone, 1, 1)
	def(I2C, "i2c", kindNone, 1, 1)
	def(I2S, "i2s", kindNone, 1, 1)
	def(LCMP, "lcmp", kindNone, 4, 1)
	def(FCMPL, "fcmpl", kindNone, 2, 1)
	def(FCMPG, "fcmpg", kindNone, 2, 1)
	def(DCMPL, "dcmpl", kindNone, 4, 1)
	def(DCMPG, "dcmpg", kindNone, 4, 1)

	def(IFEQ, "ifeq", kindBranch, 1, 0)
	def(IFNE, "ifne", kindBranch, 1, 0)
	def(IFLT, "iflt", kindBranch, 1, 0)
	def(IFGE, "ifge", kindBranch, 1, 0)
	def(IFGT, "ifgt", kindBranch, 1, 0)
	def(IFLE, "ifle", kindBranch, 1, 0)
	def(IF_ICMPEQ, "if_icmpeq", kindBranch, 2, 0)
	def(IF_ICMPNE, "if_icmpne", kindBranch, 2, 0)
	def(IF_ICMPLT, "if_icmplt", kindBranch, 2, 0)
	def(IF_ICMPGE, "if_icmpge", kindBranch, 2, 0)
	def(IF_ICMPGT, "if_icmpgt", kindBranch, 2, 0)
	def(IF_ICMPLE, "if_icmple", kindBranch, 2, 0)
	def(IF_ACMPEQ, "if_acmpeq", kindBranch, 2, 0)
	def(IF_ACMPNE, "if_acmpne", kindBranch, 2, 0)
	def(GOTO, "goto", kindBranch, 0, 0)
	def(JSR, "jsr", kindBranch, 0, 1)
	def(RET, "ret", kindLocal, 0, 0)
	def(TABLESWITCH, "tableswitch", kindTableSwitch, 1, 0)
	def(LOOKUPSWITCH, "lookupswitch", kindLookupSwitch, 1, 0)

	def(IRETURN, "ireturn", kindNone, 1, 0)
	def(LRETURN, "lreturn", kindNone, 2, 0)
	def(FRETURN, "freturn", kindNone, 1, 0)
	def(DRETURN, "dreturn", kindNone, 2, 0)
	def(ARETURN, "areturn", kindNone, 1, 0)
	def(RETURN, "return", kindNone, 0, 0)

	def(GETSTATIC, "getstatic", kindPool, variable, variable)
	def(PUTSTATIC, "putstatic", kindPool, variable, variable)
	def(GETFIELD, "getfield", kindPool, variable, variable)
	def(PUTFIELD, "putfield", kindPool, variable, variable)
	def(INVOKEVIRTUAL, "invokevirtual", kindPool, variable, variable)
	def(INVOKESPECIAL, "invokespecial", kindPool, variable, variable)
	def(INVOKESTATIC, "invokestatic", kindPool, variable, variable)
	def(INVOKEINTERFACE, "invokeinterface", kindInterface, variable, variable)
	def(INVOKEDYNAMIC, "invokedynamic", kindDynamic, variable, variable)

	def(NEW, "new", kindPool, 0, 1)
	def(NEWARRAY, "newarray", kindNewArray, 1, 1)
	def(ANEWARRAY, "anewarray", kindPool, 1, 1)
	def(ARRAYLENGTH, "arraylength", kindNone, 1, 1)
	def(ATHROW, "athrow", kindNone, 1, 0)
	def(CHECKCAST, "checkcast", kindPool, 1, 1)
	def(INSTANCEOF, "instanceof", kindPool, 1, 1)
	def(MONITORENTER, "monitorenter", kindNone, 1, 0)
	def(MONITOREXIT, "monitorexit", kindNone, 1, 0)
	def(WIDE, "wide", kindWide, 0, 0)
	def(MULTIANEWARRAY, "multianewarray", kindMultiArray, variable, 1)
	def(IFNULL, "ifnull", kindBranch, 1, 0)
	def(IFNONNULL, "ifnonnull", kindBranch, 1, 0)
	def(GOTO_W, "goto_w", kindBranchWide, 0, 0)
	def(JSR_W, "jsr_w", kindBranchWide, 0, 1)
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool { return opTable[op] != nil }

func (op Opcode) String() string {
	if info := opTable[op]; info != nil {
		return info.name
	}
	return "invalid"
}

// ImplicitVar returns the slot encoded in a *_n opcode, or -1.
func (op Opcode) ImplicitVar() int {
	if info := opTable[op]; info != nil {
		return info.implicit
	}
	return -1
}

// IsBranch reports whether op carries a single branch target.
func (op Opcode) IsBranch() bool {
	info := opTable[op]
	return info != nil && (info.kind == kindBranch || info.kind == kindBranchWide)
}

// IsReturn reports whether op returns from the method.
func (op Opcode) IsReturn() bool {
	return op >= IRETURN && op <= RETURN
}

// endsBlock reports whether control never falls through op.
func (op Opcode) endsBlock() bool {
	switch op {
	case GOTO, GOTO_W, RET, ATHROW, TABLESWITCH, LOOKUPSWITCH:
		return true
	}
	return op.IsReturn()
}

// Primitive array types for newarray.
const (
	ArrayBoolean = 4
	ArrayChar    = 5
	ArrayFloat   = 6
	ArrayDouble  = 7
	ArrayByte    = 8
	ArrayShort   = 9
	ArrayInt     = 10
	ArrayLong    = 11
)

// LoadOp returns the load opcode for a field type's first descriptor byte,
// choosing the implicit *_n form for slots 0-3.
func LoadOp(desc byte, slot int) Opcode {
	var base, short Opcode
	switch desc {
	case 'Z', 'B', 'C', 'S', 'I':
		base, short = ILOAD, ILOAD_0
	case 'J':
		base, short = LLOAD, LLOAD_0
	case 'F':
		base, short = FLOAD, FLOAD_0
	case 'D':
		base, short = DLOAD, DLOAD_0
	default:
		base, short = ALOAD, ALOAD_0
	}
	if slot >= 0 && slot <= 3 {
		return short + Opcode(slot)
	}
	return base
}

// StoreOp is LoadOp for stores.
func StoreOp(desc byte, slot int) Opcode {
	return ShortVarOp(LoadOp(desc, -1)+(ISTORE-ILOAD), slot)
}

// ShortVarOp narrows a typed load or store to its implicit *_n form when
// slot is 0-3. Any other opcode is returned unchanged.
func ShortVarOp(op Opcode, slot int) Opcode {
	if slot < 0 || slot > 3 {
		return op
	}
	switch {
	case op >= ILOAD && op <= ALOAD:
		return ILOAD_0 + (op-ILOAD)*4 + Opcode(slot)
	case op >= ISTORE && op <= ASTORE:
		return ISTORE_0 + (op-ISTORE)*4 + Opcode(slot)
	}
	return op
}
