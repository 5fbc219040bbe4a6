package weave

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/hooks"
	"github.com/roach88/classweave/internal/metrics"
	"github.com/roach88/classweave/internal/report"
	"github.com/roach88/classweave/internal/store"
	fixtures "github.com/roach88/classweave/internal/testutil"
)

func newEngine() *engine.Engine {
	spec := hooks.NewSpec("", "")
	return engine.New(hooks.NewResolver(spec, hooks.DefaultExports(spec)))
}

// inputDir lays out two valid classes and one corrupt file.
func inputDir(t *testing.T) string {
	t.Helper()
	dir := fixtures.WriteClasses(t, t.TempDir(), map[string][]byte{
		fixtures.HelloWorldName: fixtures.HelloWorld(t),
		"ctransform/Arity":      fixtures.Arity(t, 200),
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctransform", "Broken.class"), []byte{0xCA, 0xFE}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a class"), 0o644))
	return dir
}

func TestCollect(t *testing.T) {
	dir := inputDir(t)
	inputs, err := Collect([]string{dir})
	require.NoError(t, err)

	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = in.Path
	}
	assert.Equal(t, []string{"ctransform/Arity.class", "ctransform/Broken.class", "ctransform/HelloWorld.class"}, paths)

	single, err := Collect([]string{filepath.Join(dir, "ctransform", "Arity.class")})
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "Arity.class", single[0].Path)
}

func TestCollect_Errors(t *testing.T) {
	_, err := Collect([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	dir := inputDir(t)
	a := filepath.Join(dir, "ctransform", "Arity.class")
	_, err = Collect([]string{a, a})
	assert.ErrorContains(t, err, "same output")
}

func TestRun(t *testing.T) {
	inputs, err := Collect([]string{inputDir(t)})
	require.NoError(t, err)
	out := t.TempDir()
	m := metrics.New()

	w := New(newEngine(),
		WithOutputDir(out),
		WithConcurrency(2),
		WithMetrics(m),
		WithRunIDs(fixtures.NewSequentialRunIDs("")),
		WithClock(fixtures.NewStepClock(time.Second).Now),
	)
	rep, err := w.Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, "run-0001", rep.RunID)
	assert.Equal(t, fixtures.Epoch, rep.StartedAt)
	assert.Equal(t, report.Totals{Classes: 3, Transformed: 2, Failed: 1, Injected: 7, Warnings: 1}, rep.Totals)
	assert.False(t, rep.OK())

	broken := rep.Classes[1]
	assert.Equal(t, report.OutcomeFailed, broken.Outcome)
	assert.NoFileExists(t, filepath.Join(out, "ctransform", "Broken.class"))

	data, err := os.ReadFile(filepath.Join(out, "ctransform", "HelloWorld.class"))
	require.NoError(t, err)
	cls, err := classfile.Parse(data)
	require.NoError(t, err)
	assert.True(t, cls.HasAttribute(engine.MarkerAttribute))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classes.WithLabelValues(metrics.OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Classes.WithLabelValues(metrics.OutcomeTransformed)))
}

func TestRun_IncrementalReusesLedger(t *testing.T) {
	ctx := context.Background()
	inputs, err := Collect([]string{inputDir(t)})
	require.NoError(t, err)

	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	ids := fixtures.NewSequentialRunIDs("")
	run := func(out string) *report.Report {
		w := New(newEngine(),
			WithOutputDir(out),
			WithLedger(ledger, true),
			WithRunIDs(ids),
			WithConfigDigest("cfg"),
		)
		rep, err := w.Run(ctx, inputs)
		require.NoError(t, err)
		return rep
	}

	first := run(t.TempDir())
	secondOut := t.TempDir()
	second := run(secondOut)

	assert.Equal(t, 0, first.Totals.Cached)
	assert.Equal(t, 2, second.Totals.Cached)
	assert.Equal(t, 1, second.Totals.Failed, "failures are retried, never cached")
	assert.FileExists(t, filepath.Join(secondOut, "ctransform", "HelloWorld.class"))

	d1, err := report.Digest(first)
	require.NoError(t, err)
	d2, err := report.Digest(second)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	runs, err := ledger.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-0002", runs[0].ID)
	assert.Equal(t, d2, runs[0].ReportDigest)

	entries, err := ledger.Entries(ctx, "run-0002")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, report.OutcomeCached, entries[0].Report.Outcome)
}

func TestRun_ReadErrorAbortsLedgerRun(t *testing.T) {
	ctx := context.Background()
	dir := inputDir(t)
	inputs, err := Collect([]string{dir})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "ctransform", "HelloWorld.class")))

	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	w := New(newEngine(),
		WithOutputDir(t.TempDir()),
		WithLedger(ledger, false),
		WithRunIDs(fixtures.NewSequentialRunIDs("")),
		WithClock(fixtures.NewStepClock(time.Second).Now),
	)
	_, err = w.Run(ctx, inputs)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	run, err := ledger.GetRun(ctx, "run-0001")
	require.NoError(t, err)
	assert.Contains(t, run.Error, "HelloWorld.class")
	assert.False(t, run.FinishedAt.IsZero(), "an aborted run is closed")
	assert.Empty(t, run.ReportDigest)
}

func TestRun_Cancelled(t *testing.T) {
	inputs, err := Collect([]string{inputDir(t)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(newEngine()).Run(ctx, inputs)
	assert.ErrorIs(t, err, context.Canceled)
}
