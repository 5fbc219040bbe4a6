package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/classweave/internal/report"
)

// Snapshot is the golden-file view of a scenario run.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap builds the canonical JSON tree. Members are reduced to
// their ID, outcome and injection count; empty fields are omitted.
func (s *Snapshot) toCanonicalMap() map[string]any {
	classes := make([]any, 0, len(s.Result.Classes))
	for _, res := range s.Result.Classes {
		members := make([]any, 0, len(res.Members))
		for _, m := range res.Members {
			members = append(members, map[string]any{
				"id":         m.ID(),
				"outcome":    memberOutcome(m),
				"injections": m.Injections,
			})
		}
		entry := map[string]any{
			"class":    res.Class,
			"injected": res.Injected,
			"members":  members,
		}
		if len(res.Warnings) > 0 {
			entry["warnings"] = res.Warnings
		}
		classes = append(classes, entry)
	}

	trace := make([]any, 0, len(s.Result.Trace))
	for _, e := range s.Result.Trace {
		event := map[string]any{
			"seq":  e.Seq,
			"type": e.Type,
		}
		if e.Name != "" {
			event["name"] = e.Name
		}
		if e.Type == EventLog {
			args := e.Args
			if args == nil {
				args = []string{}
			}
			event["args"] = args
		}
		if e.Value != "" {
			event["value"] = e.Value
		}
		trace = append(trace, event)
	}

	m := map[string]any{
		"scenario": s.ScenarioName,
		"classes":  classes,
		"trace":    trace,
	}
	if s.Result.Output != "" {
		m["output"] = s.Result.Output
	}
	return m
}

// RunWithGolden runs scenario and compares its snapshot with
// testdata/golden/<name>.golden. Expectation and assertion failures are
// reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, e)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares result with the golden file for scenarioName
// without re-running anything.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{ScenarioName: scenarioName, Result: result}
	data, err := report.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
