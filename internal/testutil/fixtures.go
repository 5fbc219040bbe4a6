package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/classfile"
)

// Common descriptors used by fixtures.
const (
	LoggerDesc = "Ljava/util/logging/Logger;"
	StringDesc = "Ljava/lang/String;"
	ObjectName = "java/lang/Object"

	sb = "java/lang/StringBuilder"
)

// HelloWorldName is the internal name of the HelloWorld fixture.
const HelloWorldName = "ctransform/HelloWorld"

// HelloWorld builds the demo class:
//
//	public class HelloWorld {
//	    private static final Logger logger1 = Logger.getLogger(HelloWorld.class.getName());
//	    public void hello() { logger1.info(foo("hello")); staticMethod("that's static"); }
//	    public String foo(String arg) { return bar("foo", arg); }
//	    public String bar(String foo, String arg) { return foo + "bar " + arg; }
//	    private static void staticMethod(String arg) { logger1.info("staticMethod: " + arg); }
//	}
func HelloWorld(t testing.TB) []byte {
	t.Helper()
	data, err := HelloWorldBuilder().Bytes()
	require.NoError(t, err)
	return data
}

// HelloWorldBuilder returns the unfinished HelloWorld builder.
func HelloWorldBuilder() *classfile.Builder {
	const self = HelloWorldName
	b := classfile.NewBuilder(self, ObjectName)
	b.Field(classfile.AccPrivate|classfile.AccStatic|classfile.AccFinal, "logger1", LoggerDesc)

	b.Method(classfile.AccPublic, classfile.InstanceInitializer, "()V").
		Var(classfile.ALOAD, 0).
		Invoke(classfile.INVOKESPECIAL, ObjectName, classfile.InstanceInitializer, "()V").
		Op(classfile.RETURN)

	b.Method(classfile.AccPublic, "hello", "()V").
		Field(classfile.GETSTATIC, self, "logger1", LoggerDesc).
		Var(classfile.ALOAD, 0).
		Ldc("hello").
		Invoke(classfile.INVOKEVIRTUAL, self, "foo", "(Ljava/lang/String;)Ljava/lang/String;").
		Invoke(classfile.INVOKEVIRTUAL, "java/util/logging/Logger", "info", "(Ljava/lang/String;)V").
		Ldc("that's static").
		Invoke(classfile.INVOKESTATIC, self, "staticMethod", "(Ljava/lang/String;)V").
		Op(classfile.RETURN)

	b.Method(classfile.AccPublic, "foo", "(Ljava/lang/String;)Ljava/lang/String;").
		Var(classfile.ALOAD, 0).
		Ldc("foo").
		Var(classfile.ALOAD, 1).
		Invoke(classfile.INVOKEVIRTUAL, self, "bar", "(Ljava/lang/String;Ljava/lang/String;)Ljava/lang/String;").
		Op(classfile.ARETURN)

	concat(b.Method(classfile.AccPublic, "bar", "(Ljava/lang/String;Ljava/lang/String;)Ljava/lang/String;"),
		func(a *classfile.Asm) { a.Var(classfile.ALOAD, 1) },
		func(a *classfile.Asm) { a.Ldc("bar ") },
		func(a *classfile.Asm) { a.Var(classfile.ALOAD, 2) },
	).Op(classfile.ARETURN)

	m := b.Method(classfile.AccPrivate|classfile.AccStatic, "staticMethod", "(Ljava/lang/String;)V")
	m.Field(classfile.GETSTATIC, self, "logger1", LoggerDesc)
	concat(m,
		func(a *classfile.Asm) { a.Ldc("staticMethod: ") },
		func(a *classfile.Asm) { a.Var(classfile.ALOAD, 0) },
	)
	m.Invoke(classfile.INVOKEVIRTUAL, "java/util/logging/Logger", "info", "(Ljava/lang/String;)V").
		Op(classfile.RETURN)

	b.Method(classfile.AccStatic, classfile.ClassInitializer, "()V").
		Ldc(classfile.ClassLiteral(self)).
		Invoke(classfile.INVOKEVIRTUAL, "java/lang/Class", "getName", "()Ljava/lang/String;").
		Invoke(classfile.INVOKESTATIC, "java/util/logging/Logger", "getLogger", "(Ljava/lang/String;)Ljava/util/logging/Logger;").
		Field(classfile.PUTSTATIC, self, "logger1", LoggerDesc).
		Op(classfile.RETURN)
	return b
}

// concat emits new StringBuilder().append(p1)...append(pn).toString().
func concat(a *classfile.Asm, parts ...func(*classfile.Asm)) *classfile.Asm {
	a.Type(classfile.NEW, sb).Op(classfile.DUP).Invoke(classfile.INVOKESPECIAL, sb, classfile.InstanceInitializer, "()V")
	for _, p := range parts {
		p(a)
		a.Invoke(classfile.INVOKEVIRTUAL, sb, "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;")
	}
	return a.Invoke(classfile.INVOKEVIRTUAL, sb, "toString", "()Ljava/lang/String;")
}

// Arity builds a class with a static method taking n int parameters named
// "wide" and an instance method "narrow(I)I".
func Arity(t testing.TB, n int) []byte {
	t.Helper()
	data, err := ArityBuilder(n).Bytes()
	require.NoError(t, err)
	return data
}

// ArityBuilder returns the unfinished Arity builder.
func ArityBuilder(n int) *classfile.Builder {
	b := classfile.NewBuilder("ctransform/Arity", ObjectName)
	b.Method(classfile.AccPublic|classfile.AccStatic, "wide", "("+strings.Repeat("I", n)+")V").Op(classfile.RETURN)
	b.Method(classfile.AccPublic, "narrow", "(I)I").Var(classfile.ILOAD, 1).Op(classfile.IRETURN)
	return b
}

// Mixed builds a class whose methods take every primitive kind:
//
//	static int s(int a, long b, String c, double d, boolean e)
//	int i(int a, long b, String c, double d, boolean e)
//
// Both return a.
func Mixed(t testing.TB) []byte {
	t.Helper()
	data, err := MixedBuilder().Bytes()
	require.NoError(t, err)
	return data
}

// MixedBuilder returns the unfinished Mixed builder.
func MixedBuilder() *classfile.Builder {
	const desc = "(IJLjava/lang/String;DZ)I"
	b := classfile.NewBuilder("ctransform/Mixed", ObjectName)
	b.Method(classfile.AccPublic|classfile.AccStatic, "s", desc).Var(classfile.ILOAD, 0).Op(classfile.IRETURN)
	b.Method(classfile.AccPublic, "i", desc).Var(classfile.ILOAD, 1).Op(classfile.IRETURN)
	b.Abstract(classfile.AccPublic|classfile.AccAbstract, "a", "()V")
	b.Abstract(classfile.AccPublic|classfile.AccNative, "n", "(I)V")
	return b
}

// HookClasses builds minimal hook classes for module: an identity
// LoggerWrapper.logger and an empty MethodLogger.log.
func HookClasses(t testing.TB, module string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)

	wrap := classfile.NewBuilder(module+"/LoggerWrapper", ObjectName)
	wrap.Method(classfile.AccPublic|classfile.AccStatic, "logger", "("+LoggerDesc+")"+LoggerDesc).Var(classfile.ALOAD, 0).Op(classfile.ARETURN)
	data, err := wrap.Bytes()
	require.NoError(t, err)
	out[module+"/LoggerWrapper"] = data

	log := classfile.NewBuilder(module+"/MethodLogger", ObjectName)
	log.Method(classfile.AccPublic|classfile.AccStatic, "log", "(Ljava/lang/String;[Ljava/lang/Object;)V").Op(classfile.RETURN)
	data, err = log.Bytes()
	require.NoError(t, err)
	out[module+"/MethodLogger"] = data
	return out
}

// WriteClasses writes classes keyed by internal name under dir and returns dir.
func WriteClasses(t testing.TB, dir string, classes map[string][]byte) string {
	t.Helper()
	for name, data := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644), fmt.Sprintf("write %s", name))
	}
	return dir
}
