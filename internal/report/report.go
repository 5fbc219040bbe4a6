package report

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/roach88/classweave/internal/engine"
)

// Class outcomes.
const (
	OutcomeTransformed = "transformed"
	OutcomeUnchanged   = "unchanged"
	OutcomeCached      = "cached"
	OutcomeFailed      = "failed"
)

// ClassReport is the outcome for one input file.
type ClassReport struct {
	// Path is the input path relative to the run's input root.
	Path string `json:"path" jsonschema:"description=Input path relative to the input root"`

	// Class is the internal name; empty when the input did not parse.
	Class   string `json:"class,omitempty"`
	Outcome string `json:"outcome" jsonschema:"enum=transformed,enum=unchanged,enum=cached,enum=failed"`

	// Error holds the fatal error for failed inputs.
	Error string `json:"error,omitempty"`

	InputDigest  string `json:"input_digest"`
	OutputDigest string `json:"output_digest,omitempty"`

	Injected int                   `json:"injected"`
	Members  []engine.MemberResult `json:"members,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// Totals summarizes a report.
type Totals struct {
	Classes     int `json:"classes"`
	Transformed int `json:"transformed"`
	Unchanged   int `json:"unchanged"`
	Cached      int `json:"cached"`
	Failed      int `json:"failed"`
	Injected    int `json:"injected"`
	Warnings    int `json:"warnings"`
}

// Report is the outcome of one weave run.
type Report struct {
	Version      string        `json:"version"`
	Tool         string        `json:"tool"`
	RunID        string        `json:"run_id" jsonschema:"description=UUIDv7 of the run"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	ConfigDigest string        `json:"config_digest"`
	Classes      []ClassReport `json:"classes"`
	Totals       Totals        `json:"totals"`
}

// New returns an empty report for a run.
func New(runID, configDigest string, started time.Time) *Report {
	return &Report{
		Version:      Version,
		Tool:         ToolVersion,
		RunID:        runID,
		StartedAt:    started.UTC(),
		ConfigDigest: configDigest,
		Classes:      []ClassReport{},
	}
}

// FromResult builds the report entry for a successfully transformed input.
func FromResult(path string, in, out []byte, res *engine.Result) ClassReport {
	cr := ClassReport{
		Path:         path,
		Class:        res.Class,
		Outcome:      OutcomeUnchanged,
		InputDigest:  ClassDigest(in),
		OutputDigest: ClassDigest(out),
		Injected:     res.Injected,
		Members:      res.Members,
		Warnings:     res.Warnings,
	}
	if res.Transformed() {
		cr.Outcome = OutcomeTransformed
	}
	return cr
}

// Failed builds the report entry for an input that could not be woven.
func Failed(path string, in []byte, err error) ClassReport {
	return ClassReport{
		Path:        path,
		Outcome:     OutcomeFailed,
		Error:       err.Error(),
		InputDigest: ClassDigest(in),
	}
}

// Add appends cr.
func (r *Report) Add(cr ClassReport) {
	r.Classes = append(r.Classes, cr)
}

// Finish sorts entries by path and computes totals.
func (r *Report) Finish(at time.Time) {
	r.FinishedAt = at.UTC()
	sort.Slice(r.Classes, func(i, j int) bool { return r.Classes[i].Path < r.Classes[j].Path })
	t := Totals{Classes: len(r.Classes)}
	for _, c := range r.Classes {
		switch c.Outcome {
		case OutcomeTransformed:
			t.Transformed++
		case OutcomeUnchanged:
			t.Unchanged++
		case OutcomeCached:
			t.Cached++
		case OutcomeFailed:
			t.Failed++
		}
		t.Injected += c.Injected
		t.Warnings += len(c.Warnings)
	}
	r.Totals = t
}

// OK reports whether every input was woven.
func (r *Report) OK() bool { return r.Totals.Failed == 0 }

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *Report) canonical() map[string]any {
	classes := make([]any, len(r.Classes))
	for i, c := range r.Classes {
		outcome := c.Outcome
		if outcome == OutcomeCached {
			// A cached entry has the same content as the run that produced it.
			outcome = OutcomeTransformed
			if c.Injected == 0 {
				outcome = OutcomeUnchanged
			}
		}
		members := make([]any, len(c.Members))
		for j, m := range c.Members {
			members[j] = map[string]any{
				"id":         m.ID(),
				"pass":       string(m.Pass),
				"state":      string(m.State),
				"injections": m.Injections,
			}
		}
		classes[i] = map[string]any{
			"path":          c.Path,
			"class":         c.Class,
			"outcome":       outcome,
			"error":         c.Error,
			"input_digest":  c.InputDigest,
			"output_digest": c.OutputDigest,
			"members":       members,
			"warnings":      append([]string{}, c.Warnings...),
		}
	}
	return map[string]any{
		"version":       r.Version,
		"config_digest": r.ConfigDigest,
		"classes":       classes,
	}
}
