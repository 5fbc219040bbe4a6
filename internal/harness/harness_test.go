package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"hello_world", "exclude", "mixed", "arity"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(load(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_HelloWorldTrace(t *testing.T) {
	result, err := Run(load(t, "hello_world"))
	require.NoError(t, err)

	var lines []string
	for _, e := range result.Trace {
		lines = append(lines, e.String())
	}
	assert.Equal(t, []string{
		"wrap ctransform.HelloWorld",
		"<init>([])",
		"new ctransform/HelloWorld",
		"hello([])",
		"foo([hello])",
		"bar([foo, hello])",
		"ctransform.HelloWorld: foobar hello",
		"staticMethod([that's static])",
		"ctransform.HelloWorld: staticMethod: that's static",
		"return ctransform/HelloWorld.hello",
	}, lines)
	assert.Equal(t, "INFO: ctransform.HelloWorld: foobar hello\nINFO: ctransform.HelloWorld: staticMethod: that's static\n", result.Output)

	require.Len(t, result.Classes, 1)
	assert.Equal(t, 6, result.Classes[0].Injected)
}

func helloScenario(flow []Step, assertions ...Assertion) *Scenario {
	if len(assertions) == 0 {
		assertions = []Assertion{{Type: AssertInjected, Count: 6}}
	}
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Fixtures:    []string{"hello_world"},
		Flow:        flow,
		Assertions:  assertions,
	}
}

func strptr(s string) *string { return &s }

func TestRun_ReturnMismatch(t *testing.T) {
	result, err := Run(helloScenario([]Step{
		{New: "ctransform/HelloWorld"},
		{
			Invoke: "ctransform/HelloWorld.foo",
			Desc:   "(Ljava/lang/String;)Ljava/lang/String;",
			Args:   []any{"x"},
			Expect: &Expect{Return: strptr("nope")},
		},
	}))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected return "nope", got "foobar x"`)
}

func TestRun_MissingInstanceStopsFlow(t *testing.T) {
	result, err := Run(helloScenario([]Step{
		{Invoke: "ctransform/HelloWorld.hello", Desc: "()V"},
		{New: "ctransform/HelloWorld"},
	}))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0]: no instance of ctransform/HelloWorld")
	assert.Empty(t, result.Trace, "the flow stops at the first failed step")
}

func TestRun_ArgumentErrors(t *testing.T) {
	result, err := Run(helloScenario([]Step{
		{New: "ctransform/HelloWorld"},
		{Invoke: "ctransform/HelloWorld.foo", Desc: "(Ljava/lang/String;)Ljava/lang/String;"},
	}))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "takes 1 arguments, got 0")
}

func TestRun_ThrowExpectations(t *testing.T) {
	result, err := Run(helloScenario([]Step{
		{Invoke: "ctransform/HelloWorld.staticMethod", Desc: "(Ljava/lang/String;)V", Static: true, Args: []any{"s"}, Expect: &Expect{Throws: "java/lang/RuntimeException"}},
	}))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected java/lang/RuntimeException to be thrown")
}

func TestRun_FailedAssertion(t *testing.T) {
	result, err := Run(helloScenario(
		[]Step{{New: "ctransform/HelloWorld"}},
		Assertion{Type: AssertLogContains, Name: "hello"},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]: Assertion failed: log_contains")
	assert.Contains(t, result.Errors[0], "[2] <init>([])")
}

func TestRun_InvalidConfig(t *testing.T) {
	s := helloScenario(nil)
	s.Config.Exclude = "name =="
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario inline config")
}

func TestRun_LoggableTypeOverride(t *testing.T) {
	s := helloScenario(
		[]Step{{New: "ctransform/HelloWorld"}},
		Assertion{Type: AssertWrapCount, Count: 0},
		Assertion{Type: AssertInjected, Count: 5},
		Assertion{Type: AssertMember, Class: "ctransform/HelloWorld", Member: "logger1:Ljava/util/logging/Logger;", Outcome: OutcomeUnmatched},
	)
	s.Config.LoggableType = "Ljava/lang/String;"
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
