package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/engine"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func result(injected int) *engine.Result {
	return &engine.Result{
		Class: "demo/A",
		Members: []engine.MemberResult{
			{Kind: engine.KindMethod, Name: "run", Desc: "()V", Pass: engine.PassMethodEntryLog, State: engine.StateDone, Injections: injected},
		},
		Injected: injected,
	}
}

func sample(runID string, started time.Time) *Report {
	r := New(runID, "cfg", started)
	r.Add(FromResult("demo/B.class", []byte("b-in"), []byte("b-in"), result(0)))
	r.Add(FromResult("demo/A.class", []byte("a-in"), []byte("a-out"), result(1)))
	r.Add(Failed("demo/C.class", []byte("junk"), errors.New("truncated")))
	r.Finish(started.Add(time.Second))
	return r
}

func TestFinish(t *testing.T) {
	r := sample("run-1", t0)

	require.Len(t, r.Classes, 3)
	assert.Equal(t, "demo/A.class", r.Classes[0].Path, "entries are sorted by path")
	assert.Equal(t, Totals{Classes: 3, Transformed: 1, Unchanged: 1, Failed: 1, Injected: 1}, r.Totals)
	assert.False(t, r.OK())
	assert.Equal(t, ClassDigest([]byte("a-in")), r.Classes[0].InputDigest)
	assert.Equal(t, "truncated", r.Classes[2].Error)
}

func TestDigest_IgnoresRunIdentity(t *testing.T) {
	d1, err := Digest(sample("run-1", t0))
	require.NoError(t, err)
	d2, err := Digest(sample("run-2", t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	changed := sample("run-1", t0)
	changed.ConfigDigest = "other"
	d3, err := Digest(changed)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestDigest_CachedMatchesFresh(t *testing.T) {
	fresh := sample("run-1", t0)
	cached := sample("run-2", t0)
	cached.Classes[0].Outcome = OutcomeCached

	d1, err := Digest(fresh)
	require.NoError(t, err)
	d2, err := Digest(cached)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainClass, data), hashWithDomain(DomainReport, data))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("class"), "cfg1")
	assert.Equal(t, a, Fingerprint([]byte("class"), "cfg1"))
	assert.NotEqual(t, a, Fingerprint([]byte("class"), "cfg2"))
	assert.NotEqual(t, a, Fingerprint([]byte("klass"), "cfg1"))
}

func TestConfigDigest(t *testing.T) {
	d1, err := ConfigDigest(map[string]any{"max_arity": 127, "module": "a/b"})
	require.NoError(t, err)
	d2, err := ConfigDigest(map[string]any{"module": "a/b", "max_arity": 127})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	_, err = ConfigDigest(map[string]any{"ratio": 0.5})
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample("run-1", t0).WriteJSON(&buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 3, decoded.Totals.Classes)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var s map[string]any
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, "classweave report", s["title"])
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "run_id")
	assert.Contains(t, props, "classes")
}
