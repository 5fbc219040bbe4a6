package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/report"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s1, err := Open(path)
	require.NoError(t, err)
	beginTestRun(t, s1, "run-1")
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	runs, err := s2.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")

	require.NoError(t, s.WriteEntry(ctx, createTestEntry("run-1", 2, "demo/B.class", "fp-b")))
	require.NoError(t, s.WriteEntry(ctx, createTestEntry("run-1", 1, "demo/A.class", "fp-a")))
	require.NoError(t, s.WriteEntry(ctx, createTestEntry("run-1", 1, "demo/dup.class", "fp-x")), "duplicate seq is ignored")

	rep := report.New("run-1", "cfg", testStart)
	entries, err := s.Entries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "demo/A.class", entries[0].Report.Path)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Nil(t, entries[0].Output, "listings do not load outputs")
	require.Len(t, entries[0].Report.Members, 1)
	assert.Equal(t, "run()V", entries[0].Report.Members[0].ID())

	for _, e := range entries {
		rep.Add(e.Report)
	}
	rep.Finish(testStart.Add(time.Minute))
	require.NoError(t, s.FinishRun(ctx, rep, "digest"))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Classes)
	assert.Equal(t, 2, run.Injected)
	assert.Equal(t, "digest", run.ReportDigest)
	assert.True(t, run.StartedAt.Equal(testStart))
	assert.True(t, run.FinishedAt.Equal(testStart.Add(time.Minute)))
}

func TestFinishRun_Unknown(t *testing.T) {
	s := createTestStore(t)
	rep := report.New("ghost", "cfg", testStart)
	rep.Finish(testStart)
	err := s.FinishRun(context.Background(), rep, "d")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.GetRun(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestAbortRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	require.NoError(t, s.WriteEntry(ctx, createTestEntry("run-1", 1, "demo/A.class", "fp-a")))

	require.NoError(t, s.AbortRun(ctx, "run-1", testStart.Add(time.Second), errors.New("write out/A.class: disk full")))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "write out/A.class: disk full", run.Error)
	assert.True(t, run.FinishedAt.Equal(testStart.Add(time.Second)))
	assert.Empty(t, run.ReportDigest)

	entries, err := s.Entries(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "entries written before the failure are kept")

	err = s.AbortRun(ctx, "ghost", testStart, nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	beginTestRun(t, s, "run-2")

	require.NoError(t, s.WriteEntry(ctx, createTestEntry("run-1", 1, "demo/A.class", "fp")))
	newer := createTestEntry("run-2", 1, "demo/A.class", "fp")
	newer.Output = []byte{1, 2, 3}
	require.NoError(t, s.WriteEntry(ctx, newer))

	failed := createTestEntry("run-2", 2, "demo/Bad.class", "fp-bad")
	failed.Report.Outcome = report.OutcomeFailed
	failed.Output = nil
	require.NoError(t, s.WriteEntry(ctx, failed))

	e, ok, err := s.Lookup(ctx, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-2", e.RunID)
	assert.Equal(t, []byte{1, 2, 3}, e.Output)

	_, ok, err = s.Lookup(ctx, "fp-bad")
	require.NoError(t, err)
	assert.False(t, ok, "failed entries are never reused")

	_, ok, err = s.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	gen := UUIDv7Generator{}
	first := gen.Generate()
	time.Sleep(2 * time.Millisecond)
	second := gen.Generate()
	beginTestRun(t, s, first)
	beginTestRun(t, s, second)

	runs, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)
}

func TestReport_Rebuild(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	require.NoError(t, s.WriteEntry(ctx, createTestEntry("run-1", 1, "demo/A.class", "fp")))

	rep, err := s.Report(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "cfg", rep.ConfigDigest)
	assert.Equal(t, 1, rep.Totals.Transformed)
	assert.Equal(t, []string{"dropped LocalVariableTypeTable from run()V"}, rep.Classes[0].Warnings)
}

func TestForeignKey(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteEntry(context.Background(), createTestEntry("no-such-run", 1, "x.class", "fp"))
	assert.Error(t, err)
}
