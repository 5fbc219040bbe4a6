package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/hooks"
	"github.com/roach88/classweave/internal/testutil"
	"github.com/roach88/classweave/internal/vm"
)

const fooDesc = "(Ljava/lang/String;)Ljava/lang/String;"

func transformed(t *testing.T, spec hooks.Spec) []byte {
	t.Helper()
	e := engine.New(hooks.NewResolver(spec, hooks.DefaultExports(spec)))
	out, err := e.Run(testutil.HelloWorld(t))
	require.NoError(t, err)
	return out.Bytes
}

func TestTransformedHelloWorldPreservesBehavior(t *testing.T) {
	spec := hooks.NewSpec("", "")

	plain := vm.New()
	_, err := plain.Define(testutil.HelloWorld(t))
	require.NoError(t, err)
	plainObj, err := plain.New(testutil.HelloWorldName)
	require.NoError(t, err)
	want, err := plain.Invoke(testutil.HelloWorldName, "foo", fooDesc, plainObj, "hello")
	require.NoError(t, err)

	rec := &hooks.Recorder{}
	m := vm.New(vm.WithRuntime(spec, rec))
	_, err = m.Define(transformed(t, spec))
	require.NoError(t, err)

	obj, err := m.New(testutil.HelloWorldName)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Wraps(), "the static initializer wraps logger1 once")

	got, err := m.Invoke(testutil.HelloWorldName, "foo", fooDesc, obj, "hello")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "foobar hello", got)

	calls := rec.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "<init>", calls[0].Name)
	assert.Empty(t, calls[0].Args)
	assert.Equal(t, hooks.Call{Name: "foo", Args: []any{"hello"}}, calls[1])
	assert.Equal(t, hooks.Call{Name: "bar", Args: []any{"foo", "hello"}}, calls[2])
	assert.Equal(t, 1, rec.Wraps())
}

func TestTransformedHelloWorldConsole(t *testing.T) {
	spec := hooks.NewSpec("", "")
	var out bytes.Buffer
	m := vm.New(vm.WithRuntime(spec, hooks.NewConsole(&out)), vm.WithStderr(&out))
	_, err := m.Define(transformed(t, spec))
	require.NoError(t, err)

	obj, err := m.New(testutil.HelloWorldName)
	require.NoError(t, err)
	_, err = m.Invoke(testutil.HelloWorldName, "hello", "()V", obj)
	require.NoError(t, err)

	assert.Equal(t, `<init>([])
hello([])
foo([hello])
bar([foo, hello])
LoggerWrapper: foobar hello
INFO: ctransform.HelloWorld: foobar hello
staticMethod([that's static])
LoggerWrapper: staticMethod: that's static
INFO: ctransform.HelloWorld: staticMethod: that's static
`, out.String())
}

func TestTransformedMixedBoxesArguments(t *testing.T) {
	spec := hooks.NewSpec("", "")
	e := engine.New(hooks.NewResolver(spec, hooks.DefaultExports(spec)))
	out, err := e.Run(testutil.Mixed(t))
	require.NoError(t, err)

	rec := &hooks.Recorder{}
	m := vm.New(vm.WithRuntime(spec, rec))
	_, err = m.Define(out.Bytes)
	require.NoError(t, err)

	v, err := m.Invoke("ctransform/Mixed", "s", "(IJLjava/lang/String;DZ)I", nil,
		int32(7), int64(1)<<33, "s", float64(2.5), int32(1))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, hooks.Call{
		Name: "s",
		Args: []any{int32(7), int64(1) << 33, "s", float64(2.5), true},
	}, calls[0])
	assert.Equal(t, "s([7, 8589934592, s, 2.5, true])", "s("+hooks.FormatArgs(calls[0].Args)+")")
}
