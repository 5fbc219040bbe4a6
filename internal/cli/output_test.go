package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeParse, "truncated class file", map[string]string{"file": "A.class"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
	assert.Equal(t, "truncated class file", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Success("config valid"))
	require.NoError(t, formatter.Error(ErrCodeConfig, "invalid config", "max_arity"))
	assert.Equal(t, "config valid\nError [E200]: invalid config\nDetails: max_arity\n", buf.String())
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("found %d classes", 3)
	assert.Empty(t, out.String())
	assert.Equal(t, "found 3 classes\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "found 3 classes\n", errOut.String())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open ledger", errors.New("locked")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open ledger: locked", wrapped.Error())
}

func TestFail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.fail(ExitCommandError, ErrCodeNotFound, "read class", errors.New("no such file"), nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "Error [E005]: read class: no such file\n", buf.String())
}
