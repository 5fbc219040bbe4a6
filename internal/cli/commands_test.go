package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/testutil"
)

// helloDir writes the HelloWorld fixture under a fresh directory.
func helloDir(t *testing.T) string {
	t.Helper()
	return testutil.WriteClasses(t, t.TempDir(), map[string][]byte{
		testutil.HelloWorldName: testutil.HelloWorld(t),
	})
}

func TestWeaveCommand(t *testing.T) {
	in := helloDir(t)
	work := t.TempDir()
	out := filepath.Join(work, "out")
	db := filepath.Join(work, "ledger.db")
	prom := filepath.Join(work, "classweave.prom")
	rep := filepath.Join(work, "report.json")

	stdout, _, err := execute(t, "weave", in, "-o", out, "--db", db, "--metrics", prom, "--report", rep)
	require.NoError(t, err)
	assert.Contains(t, stdout, "OK    ctransform/HelloWorld.class (6 injections)")
	assert.Contains(t, stdout, "1 classes: 1 transformed, 0 unchanged, 0 cached, 0 failed; 6 injections")

	assert.FileExists(t, filepath.Join(out, "ctransform", "HelloWorld.class"))
	assert.FileExists(t, db)

	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `classweave_classes_total{outcome="transformed"} 1`)

	data, err := os.ReadFile(rep)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotEmpty(t, decoded["run_id"])

	stdout, _, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "RUN")
	assert.Contains(t, stdout, decoded["run_id"].(string))

	stdout, _, err = execute(t, "history", "--db", db, decoded["run_id"].(string))
	require.NoError(t, err)
	assert.Contains(t, stdout, "ctransform/HelloWorld.class")
}

func TestWeaveCommand_Failures(t *testing.T) {
	in := helloDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(in, "Bad.class"), []byte("nope"), 0o644))

	stdout, _, err := execute(t, "weave", in, "--dry-run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "FAIL  Bad.class")

	_, _, err = execute(t, "weave", in)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "--output is required")

	_, _, err = execute(t, "weave", in, "--dry-run", "--incremental")
	assert.Equal(t, ExitCommandError, GetExitCode(err), "--incremental needs --db")
}

func TestWeaveCommand_JSON(t *testing.T) {
	stdout, _, err := execute(t, "weave", helloDir(t), "--dry-run", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Totals struct {
				Injected int `json:"injected"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 6, resp.Data.Totals.Injected)
}

func TestExecCommand_WovenHelloWorld(t *testing.T) {
	out := t.TempDir()
	_, _, err := execute(t, "weave", helloDir(t), "-o", out)
	require.NoError(t, err)

	stdout, _, err := execute(t, "exec", filepath.Join(out, "ctransform", "HelloWorld.class"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "<init>([])\nhello([])\nfoo([hello])\nbar([foo, hello])\nLoggerWrapper: foobar hello\n")
	assert.Contains(t, stdout, "staticMethod([that's static])")
}

func TestExecCommand_UnknownMethod(t *testing.T) {
	stdout, _, err := execute(t, "exec", helloDir(t), "--method", "missing", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeExec)
}

func TestExecCommand_Args(t *testing.T) {
	const desc = "(Ljava/lang/String;)Ljava/lang/String;"
	stdout, _, err := execute(t, "exec", helloDir(t), "--method", "foo", "--desc", desc, "--arg", "world")
	require.NoError(t, err)
	assert.Contains(t, stdout, "=> foobar world")

	stdout, _, err = execute(t, "exec", helloDir(t), "--method", "foo", "--desc", desc, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeInvalidArgs)
}

func TestInspectCommand(t *testing.T) {
	out := t.TempDir()
	_, _, err := execute(t, "weave", helloDir(t), "-o", out)
	require.NoError(t, err)

	stdout, _, err := execute(t, "inspect", filepath.Join(out, "ctransform", "HelloWorld.class"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "classweave.Instrumented")
	assert.Contains(t, stdout, "invokestatic at/rseiler/concept/MethodLogger.log")

	stdout, _, err = execute(t, "inspect", filepath.Join(out, "ctransform", "HelloWorld.class"), "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.Data.Instrumented)
	assert.Equal(t, testutil.HelloWorldName, resp.Data.Class)
}

func TestValidateConfigCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("max_arity: 10\n"), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_arity: 1000\nloggable_type: I\n"), 0o644))

	stdout, _, err := execute(t, "validate-config", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "config valid")

	stdout, _, err = execute(t, "validate-config", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "[E201]")
	assert.Contains(t, stdout, "[E202]")

	_, _, err = execute(t, "validate-config", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSchemaCommand(t *testing.T) {
	stdout, _, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"run_id"`)
}
