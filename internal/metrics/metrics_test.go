package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/engine"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		Class: "demo/A",
		Members: []engine.MemberResult{
			{Kind: engine.KindField, Name: "log", Pass: engine.PassFieldWrap, State: engine.StateDone, Injections: 1},
			{Kind: engine.KindMethod, Name: "run", Pass: engine.PassMethodEntryLog, State: engine.StateDone, Injections: 1},
			{Kind: engine.KindMethod, Name: "<clinit>", State: engine.StateDone},
		},
		Warnings: []string{"dropped LocalVariableTypeTable from run()V"},
		Injected: 2,
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.Observe(sampleResult(), time.Millisecond)
	m.Observe(&engine.Result{Class: "demo/B"}, time.Millisecond)
	m.Observe(nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classes.WithLabelValues(OutcomeTransformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classes.WithLabelValues(OutcomeUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classes.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Injections.WithLabelValues(string(engine.PassFieldWrap))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Members.WithLabelValues("method", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Warnings))
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.Observe(sampleResult(), 2*time.Millisecond)

	path := filepath.Join(t.TempDir(), "classweave.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `classweave_classes_total{outcome="transformed"} 1`)
	assert.Contains(t, out, `classweave_injections_total{pass="MethodEntryLog"} 1`)
	assert.Contains(t, out, "classweave_transform_duration_seconds_count 1")
}
