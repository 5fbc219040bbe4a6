package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/classweave/internal/report"
)

// Run is one row of the runs table.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	ConfigDigest string
	ReportDigest string
	ToolVersion  string
	Classes      int
	Failed       int
	Injected     int

	// Error is set when the run was aborted instead of finished.
	Error string
}

// Entry is one processed input.
type Entry struct {
	RunID       string
	Seq         int64
	Fingerprint string
	Report      report.ClassReport

	// Output is the serialized class; nil for failed inputs.
	Output []byte
}

// detail is the JSON stored alongside an entry's indexed columns.
type detail struct {
	Error    string `json:"error,omitempty"`
	Members  any    `json:"members,omitempty"`
	Warnings any    `json:"warnings,omitempty"`
}

const timeLayout = time.RFC3339Nano

// BeginRun inserts a run with its start time and configuration.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, config_digest, tool_version)
		VALUES (?, ?, ?, ?)
	`,
		r.ID,
		r.StartedAt.UTC().Format(timeLayout),
		r.ConfigDigest,
		r.ToolVersion,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteEntry records one input of a run. Writing the same (run, seq) twice
// is a no-op.
func (s *Store) WriteEntry(ctx context.Context, e Entry) error {
	d, err := json.Marshal(detail{Error: e.Report.Error, Members: e.Report.Members, Warnings: e.Report.Warnings})
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries
		(run_id, seq, path, class, outcome, fingerprint, input_digest, output_digest, injected, detail, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		e.RunID,
		e.Seq,
		e.Report.Path,
		e.Report.Class,
		e.Report.Outcome,
		e.Fingerprint,
		e.Report.InputDigest,
		e.Report.OutputDigest,
		e.Report.Injected,
		string(d),
		e.Output,
	)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// FinishRun stores the run's totals and report digest.
func (s *Store) FinishRun(ctx context.Context, rep *report.Report, reportDigest string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, report_digest = ?, classes = ?, failed = ?, injected = ?
		WHERE id = ?
	`,
		rep.FinishedAt.UTC().Format(timeLayout),
		reportDigest,
		rep.Totals.Classes,
		rep.Totals.Failed,
		rep.Totals.Injected,
		rep.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: %w: %s", ErrRunNotFound, rep.RunID)
	}
	return nil
}

// AbortRun closes a run that could not finish, recording cause. The run
// keeps whatever entries were written before the failure.
func (s *Store) AbortRun(ctx context.Context, runID string, at time.Time, cause error) error {
	msg := "aborted"
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, error = ?
		WHERE id = ?
	`,
		at.UTC().Format(timeLayout),
		msg,
		runID,
	)
	if err != nil {
		return fmt.Errorf("abort run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("abort run: %w: %s", ErrRunNotFound, runID)
	}
	return nil
}
