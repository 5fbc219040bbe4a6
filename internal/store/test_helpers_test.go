package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/report"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.BeginRun(context.Background(), Run{
		ID:           id,
		StartedAt:    testStart,
		ConfigDigest: "cfg",
		ToolVersion:  report.ToolVersion,
	}))
}

// createTestEntry creates a transformed entry with one injected method.
func createTestEntry(runID string, seq int64, path, fingerprint string) Entry {
	return Entry{
		RunID:       runID,
		Seq:         seq,
		Fingerprint: fingerprint,
		Report: report.ClassReport{
			Path:         path,
			Class:        "demo/A",
			Outcome:      report.OutcomeTransformed,
			InputDigest:  "in",
			OutputDigest: "out",
			Injected:     1,
			Members: []engine.MemberResult{
				{Kind: engine.KindMethod, Name: "run", Desc: "()V", Pass: engine.PassMethodEntryLog, State: engine.StateDone, Injections: 1},
			},
			Warnings: []string{"dropped LocalVariableTypeTable from run()V"},
		},
		Output: []byte{0xCA, 0xFE, 0xBA, 0xBE},
	}
}
