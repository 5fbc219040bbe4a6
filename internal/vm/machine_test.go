package vm

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/hooks"
	"github.com/roach88/classweave/internal/testutil"
)

const calc = "demo/Calc"

func define(t *testing.T, m *Machine, b *classfile.Builder) {
	t.Helper()
	data, err := b.Bytes()
	require.NoError(t, err)
	_, err = m.Define(data)
	require.NoError(t, err)
}

func calcClass() *classfile.Builder {
	b := classfile.NewBuilder(calc, testutil.ObjectName)
	b.Field(classfile.AccStatic, "calls", "I")

	// static int sum(int n) { int s = 0; while (n > 0) { s += n; n--; } calls++; return s; }
	sum := b.Method(classfile.AccPublic|classfile.AccStatic, "sum", "(I)I")
	loop, done := sum.NewLabel(), sum.NewLabel()
	sum.Op(classfile.ICONST_0).Var(classfile.ISTORE, 1).
		Bind(loop).Var(classfile.ILOAD, 0).Jump(classfile.IFLE, done).
		Var(classfile.ILOAD, 1).Var(classfile.ILOAD, 0).Op(classfile.IADD).Var(classfile.ISTORE, 1).
		Iinc(0, -1).
		Jump(classfile.GOTO, loop).
		Bind(done).Field(classfile.GETSTATIC, calc, "calls", "I").Op(classfile.ICONST_1, classfile.IADD).
		Field(classfile.PUTSTATIC, calc, "calls", "I").
		Var(classfile.ILOAD, 1).Op(classfile.IRETURN)

	// static long scale(long a, int b) { return a * b; }
	b.Method(classfile.AccPublic|classfile.AccStatic, "scale", "(JI)J").
		Var(classfile.LLOAD, 0).Var(classfile.ILOAD, 2).Op(classfile.I2L, classfile.LMUL, classfile.LRETURN)

	// static int div(int a, int b) { return a / b; }
	b.Method(classfile.AccPublic|classfile.AccStatic, "div", "(II)I").
		Var(classfile.ILOAD, 0).Var(classfile.ILOAD, 1).Op(classfile.IDIV, classfile.IRETURN)

	// static int safeDiv(int a, int b) { try { return a / b; } catch (ArithmeticException e) { return -1; } }
	safe := b.Method(classfile.AccPublic|classfile.AccStatic, "safeDiv", "(II)I")
	start, handler := safe.NewLabel(), safe.NewLabel()
	safe.Bind(start).Var(classfile.ILOAD, 0).Var(classfile.ILOAD, 1).Op(classfile.IDIV, classfile.IRETURN).
		Bind(handler).Var(classfile.ASTORE, 2).Op(classfile.ICONST_M1, classfile.IRETURN).
		Catch(start, handler, handler, "java/lang/ArithmeticException")

	// static String pick(int k) { switch (k) { case 1: return "one"; case 2: return "two"; default: return "many"; } }
	pick := b.Method(classfile.AccPublic|classfile.AccStatic, "pick", "(I)Ljava/lang/String;")
	one, two, many := pick.NewLabel(), pick.NewLabel(), pick.NewLabel()
	pick.Var(classfile.ILOAD, 0)
	pick.Switch(many, 1, one, two)
	pick.Bind(one).Ldc("one").Op(classfile.ARETURN).
		Bind(two).Ldc("two").Op(classfile.ARETURN).
		Bind(many).Ldc("many").Op(classfile.ARETURN)

	// static int total(int[] xs)
	total := b.Method(classfile.AccPublic|classfile.AccStatic, "total", "([I)I")
	head, end := total.NewLabel(), total.NewLabel()
	total.Op(classfile.ICONST_0).Var(classfile.ISTORE, 1).
		Op(classfile.ICONST_0).Var(classfile.ISTORE, 2).
		Bind(head).Var(classfile.ILOAD, 2).Var(classfile.ALOAD, 0).Op(classfile.ARRAYLENGTH).
		Jump(classfile.IF_ICMPGE, end).
		Var(classfile.ILOAD, 1).Var(classfile.ALOAD, 0).Var(classfile.ILOAD, 2).Op(classfile.IALOAD, classfile.IADD).
		Var(classfile.ISTORE, 1).Iinc(2, 1).Jump(classfile.GOTO, head).
		Bind(end).Var(classfile.ILOAD, 1).Op(classfile.IRETURN)

	// static void legacy() uses jsr.
	legacy := b.Method(classfile.AccPublic|classfile.AccStatic, "legacy", "()V")
	sub := legacy.NewLabel()
	legacy.Jump(classfile.JSR, sub).Op(classfile.RETURN).
		Bind(sub).Var(classfile.ASTORE, 0).Var(classfile.RET, 0)

	// static void spin() { for (;;) {} }
	spin := b.Method(classfile.AccPublic|classfile.AccStatic, "spin", "()V")
	top := spin.NewLabel()
	spin.Bind(top).Jump(classfile.GOTO, top)
	return b
}

func TestArithmeticAndControlFlow(t *testing.T) {
	m := New()
	define(t, m, calcClass())

	v, err := m.Invoke(calc, "sum", "(I)I", nil, int32(10))
	require.NoError(t, err)
	assert.Equal(t, int32(55), v)

	_, err = m.Invoke(calc, "sum", "(I)I", nil, int32(3))
	require.NoError(t, err)
	calls, err := m.Static(calc, "calls")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)

	v, err = m.Invoke(calc, "scale", "(JI)J", nil, int64(1)<<40, int32(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3)<<40, v)

	for k, want := range map[int32]string{1: "one", 2: "two", 7: "many", -1: "many"} {
		v, err = m.Invoke(calc, "pick", "(I)Ljava/lang/String;", nil, k)
		require.NoError(t, err)
		assert.Equal(t, want, v, "pick(%d)", k)
	}

	xs := &Array{Elem: "I", Values: []Value{int32(4), int32(5), int32(6)}}
	v, err = m.Invoke(calc, "total", "([I)I", nil, xs)
	require.NoError(t, err)
	assert.Equal(t, int32(15), v)
}

func TestExceptions(t *testing.T) {
	m := New()
	define(t, m, calcClass())

	v, err := m.Invoke(calc, "safeDiv", "(II)I", nil, int32(7), int32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)

	v, err = m.Invoke(calc, "safeDiv", "(II)I", nil, int32(7), int32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	_, err = m.Invoke(calc, "div", "(II)I", nil, int32(1), int32(0))
	require.Error(t, err)
	assert.True(t, IsThrown(err, "java/lang/ArithmeticException"))
	assert.EqualError(t, err, "uncaught java.lang.ArithmeticException: / by zero")

	var thrown *Thrown
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, []string{calc + ".div(II)I"}, thrown.Trace)

	_, err = m.Invoke(calc, "total", "([I)I", nil, nil)
	assert.True(t, IsThrown(err, "java/lang/NullPointerException"))
}

func TestUnsupportedAndLimits(t *testing.T) {
	m := New(WithStepLimit(1000))
	define(t, m, calcClass())

	_, err := m.Invoke(calc, "legacy", "()V", nil)
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
	assert.Contains(t, err.Error(), "jsr")

	_, err = m.Invoke(calc, "spin", "()V", nil)
	assert.ErrorIs(t, err, ErrStepLimit)

	_, err = m.Invoke(calc, "missing", "()V", nil)
	var link *LinkageError
	assert.ErrorAs(t, err, &link)
}

func TestDefineTwice(t *testing.T) {
	m := New()
	define(t, m, calcClass())
	data, err := calcClass().Bytes()
	require.NoError(t, err)
	_, err = m.Define(data)
	assert.Error(t, err)
}

func TestUntransformedHelloWorld(t *testing.T) {
	var stderr bytes.Buffer
	m := New(WithStderr(&stderr))
	_, err := m.Define(testutil.HelloWorld(t))
	require.NoError(t, err)

	obj, err := m.New(testutil.HelloWorldName)
	require.NoError(t, err)

	v, err := m.Invoke(testutil.HelloWorldName, "foo", "(Ljava/lang/String;)Ljava/lang/String;", obj, "hello")
	require.NoError(t, err)
	assert.Equal(t, "foobar hello", v)

	_, err = m.Invoke(testutil.HelloWorldName, "hello", "()V", obj)
	require.NoError(t, err)
	assert.Equal(t,
		"INFO: ctransform.HelloWorld: foobar hello\n"+
			"INFO: ctransform.HelloWorld: staticMethod: that's static\n",
		stderr.String())

	logger, err := m.Static(testutil.HelloWorldName, "logger1")
	require.NoError(t, err)
	require.IsType(t, &Logger{}, logger)
	assert.Equal(t, "ctransform.HelloWorld", logger.(*Logger).Name())
}

func TestHookDispatchOnlyWithRuntime(t *testing.T) {
	spec := hooks.NewSpec("", "")
	b := classfile.NewBuilder("demo/Caller", testutil.ObjectName)
	b.Method(classfile.AccPublic|classfile.AccStatic, "call", "()V").
		Ldc("call").Op(classfile.ICONST_1).Type(classfile.ANEWARRAY, testutil.ObjectName).
		Op(classfile.DUP, classfile.ICONST_0).Int(42).
		Invoke(classfile.INVOKESTATIC, "java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;").
		Op(classfile.AASTORE).
		Invoke(classfile.INVOKESTATIC, spec.LogRef().Owner, spec.LogRef().Name, spec.LogRef().Desc).
		Op(classfile.RETURN)

	rec := &hooks.Recorder{}
	m := New(WithRuntime(spec, rec))
	define(t, m, b)
	_, err := m.Invoke("demo/Caller", "call", "()V", nil)
	require.NoError(t, err)
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, hooks.Call{Name: "call", Args: []any{int32(42)}}, rec.Calls()[0])

	bare := New()
	define(t, bare, b)
	_, err = bare.Invoke("demo/Caller", "call", "()V", nil)
	var link *LinkageError
	require.ErrorAs(t, err, &link)
	assert.Equal(t, spec.LogRef().Owner, link.Ref.Owner)
}

func TestHostValue(t *testing.T) {
	inner := &Array{Elem: "Ljava/lang/Object;", Values: []Value{Boxed{Type: 'Z', Value: int32(1)}, nil}}
	outer := &Array{Elem: "Ljava/lang/Object;", Values: []Value{"x", inner, Boxed{Type: 'C', Value: int32('q')}}}
	got := hostValue(outer, map[*Array][]any{})
	assert.Equal(t, []any{"x", []any{true, nil}, "q"}, got)

	self := &Array{Elem: "Ljava/lang/Object;", Values: make([]Value, 1)}
	self.Values[0] = self
	list := hostValue(self, map[*Array][]any{}).([]any)
	assert.Equal(t, "[[...]]", hooks.FormatArgs(list))
}

func TestJavaString(t *testing.T) {
	assert.Equal(t, "null", javaString(nil))
	assert.Equal(t, "1.0", javaString(float64(1)))
	assert.Equal(t, "2.5", javaString(float32(2.5)))
	assert.Equal(t, "NaN", javaString(math.NaN()))
	assert.Equal(t, "true", javaString(Boxed{Type: 'Z', Value: int32(1)}))
	assert.Equal(t, "class a.B", javaString(&ClassValue{Name: "a/B"}))
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		desc string
		in   any
		want Value
	}{
		{"I", 7, int32(7)},
		{"I", "-3", int32(-3)},
		{"J", 1 << 40, int64(1 << 40)},
		{"J", "12", int64(12)},
		{"Z", true, int32(1)},
		{"Z", "false", int32(0)},
		{"C", "x", int32('x')},
		{"B", 127, int32(127)},
		{"D", 1.5, 1.5},
		{"D", 2, float64(2)},
		{"F", "0.5", float32(0.5)},
		{"Ljava/lang/String;", "hi", "hi"},
		{"Ljava/lang/Object;", "hi", "hi"},
		{"[I", nil, nil},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.desc, tt.in)
		require.NoError(t, err, "%s %v", tt.desc, tt.in)
		assert.Equal(t, tt.want, got, "%s %v", tt.desc, tt.in)
	}

	bad := []struct {
		desc string
		in   any
	}{
		{"I", "x"},
		{"I", 1 << 40},
		{"B", 200},
		{"I", 1.5},
		{"Z", 1},
		{"Ljava/util/List;", "x"},
		{"", 1},
	}
	for _, tt := range bad {
		_, err := Coerce(tt.desc, tt.in)
		assert.Error(t, err, "%s %v", tt.desc, tt.in)
	}
}
