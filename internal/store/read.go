package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/report"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Runs returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, COALESCE(finished_at, ''), config_digest, COALESCE(report_digest, ''),
		       tool_version, classes, failed, injected, COALESCE(error, '')
		FROM runs
		ORDER BY id COLLATE BINARY DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, ''), config_digest, COALESCE(report_digest, ''),
		       tool_version, classes, failed, injected, COALESCE(error, '')
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Entries returns a run's entries ordered by seq. Outputs are not loaded.
func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, path, class, outcome, fingerprint, input_digest, output_digest, injected, detail
		FROM entries
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Lookup finds the most recent successful entry with the given fingerprint,
// including its output. ok is false when there is none.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (e Entry, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, seq, path, class, outcome, fingerprint, input_digest, output_digest, injected, detail, output
		FROM entries
		WHERE fingerprint = ? AND outcome != ?
		ORDER BY run_id COLLATE BINARY DESC, seq DESC
		LIMIT 1
	`, fingerprint, report.OutcomeFailed)
	var out []byte
	e, err = scanEntry(row, &out)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.Output = out
	return e, true, nil
}

// Report rebuilds the report of a finished run.
func (s *Store) Report(ctx context.Context, runID string) (*report.Report, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Entries(ctx, runID)
	if err != nil {
		return nil, err
	}
	rep := report.New(run.ID, run.ConfigDigest, run.StartedAt)
	rep.Tool = run.ToolVersion
	for _, e := range entries {
		rep.Add(e.Report)
	}
	rep.Finish(run.FinishedAt)
	return rep, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	err := row.Scan(&r.ID, &started, &finished, &r.ConfigDigest, &r.ReportDigest,
		&r.ToolVersion, &r.Classes, &r.Failed, &r.Injected, &r.Error)
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", r.ID, err)
	}
	if finished != "" {
		if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return Run{}, fmt.Errorf("run %s: finished_at: %w", r.ID, err)
		}
	}
	return r, nil
}

// scanEntry scans the common entry columns followed by any extra targets.
func scanEntry(row scanner, extra ...any) (Entry, error) {
	var (
		e Entry
		d string
		m struct {
			Error    string                `json:"error"`
			Members  []engine.MemberResult `json:"members"`
			Warnings []string              `json:"warnings"`
		}
	)
	dest := []any{&e.RunID, &e.Seq, &e.Report.Path, &e.Report.Class, &e.Report.Outcome, &e.Fingerprint,
		&e.Report.InputDigest, &e.Report.OutputDigest, &e.Report.Injected, &d}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(d), &m); err != nil {
		return Entry{}, fmt.Errorf("entry %s/%d: detail: %w", e.RunID, e.Seq, err)
	}
	e.Report.Error = m.Error
	e.Report.Members = m.Members
	e.Report.Warnings = m.Warnings
	return e, nil
}
