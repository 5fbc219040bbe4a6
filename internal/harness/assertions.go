package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/classweave/internal/engine"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event)
		}
	}
	return buf.String()
}

// String renders the event on one line.
func (e TraceEvent) String() string {
	switch e.Type {
	case EventLog:
		return e.Name + "([" + strings.Join(e.Args, ", ") + "])"
	case EventInfo:
		return e.Name + ": " + e.Value
	}
	s := e.Type + " " + e.Name
	if e.Value != "" {
		s += " => " + e.Value
	}
	return s
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertLogContains:
		return assertLogContains(result.Trace, a)
	case AssertLogOrder:
		return assertLogOrder(result.Trace, a)
	case AssertLogCount:
		return assertLogCount(result.Trace, a)
	case AssertWrapCount:
		return assertWrapCount(result.Trace, a)
	case AssertInfoContains:
		return assertInfoContains(result.Trace, a)
	case AssertMember:
		return assertMember(result.Classes, a)
	case AssertInjected:
		return assertInjected(result.Classes, a)
	case AssertWarningContains:
		return assertWarningContains(result.Classes, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertLogContains checks that the log sink saw the method, with exactly
// the given arguments when any are given.
func assertLogContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type != EventLog || event.Name != a.Name {
			continue
		}
		if a.Args == nil || slices.Equal(event.Args, a.Args) {
			return nil
		}
	}
	expected := a.Name
	if a.Args != nil {
		expected = fmt.Sprintf("%s([%s])", a.Name, strings.Join(a.Args, ", "))
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertLogOrder checks that the names appear in order among log events.
// Other events may come between them.
func assertLogOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.Names) {
			break
		}
		if event.Type == EventLog && event.Name == a.Names[next] {
			next++
		}
	}
	if next < len(a.Names) {
		return &AssertionError{
			Type:     AssertLogOrder,
			Expected: fmt.Sprintf("log calls in order: %v", a.Names),
			Actual:   fmt.Sprintf("%s not found after %v", a.Names[next], a.Names[:next]),
			Trace:    trace,
		}
	}
	return nil
}

func assertLogCount(trace []TraceEvent, a Assertion) error {
	count := countEvents(trace, EventLog, a.Name)
	if count != a.Count {
		return &AssertionError{
			Type:     AssertLogCount,
			Expected: fmt.Sprintf("%d log calls of %s", a.Count, a.Name),
			Actual:   fmt.Sprintf("%d log calls", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertWrapCount(trace []TraceEvent, a Assertion) error {
	count := countEvents(trace, EventWrap, "")
	if count != a.Count {
		return &AssertionError{
			Type:     AssertWrapCount,
			Expected: fmt.Sprintf("%d wraps", a.Count),
			Actual:   fmt.Sprintf("%d wraps", count),
			Trace:    trace,
		}
	}
	return nil
}

// countEvents counts events of type typ; an empty name matches any.
func countEvents(trace []TraceEvent, typ, name string) int {
	n := 0
	for _, event := range trace {
		if event.Type == typ && (name == "" || event.Name == name) {
			n++
		}
	}
	return n
}

func assertInfoContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventInfo && strings.Contains(event.Value, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertInfoContains,
		Expected: fmt.Sprintf("a logged message containing %q", a.Text),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// memberOutcome classifies a finished member.
func memberOutcome(m engine.MemberResult) string {
	switch {
	case m.Injections > 0:
		return OutcomeInjected
	case strings.HasPrefix(m.Reason, "excluded by "):
		return OutcomeExcluded
	case m.Pass != "":
		return OutcomeSkipped
	}
	return OutcomeUnmatched
}

func assertMember(classes []*engine.Result, a Assertion) error {
	for _, res := range classes {
		if res.Class != a.Class {
			continue
		}
		m, ok := res.Member(a.Member)
		if !ok {
			break
		}
		if got := memberOutcome(m); got != a.Outcome {
			return &AssertionError{
				Type:     AssertMember,
				Expected: fmt.Sprintf("%s %s %s", a.Class, a.Member, a.Outcome),
				Actual:   got,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertMember,
		Expected: fmt.Sprintf("%s %s %s", a.Class, a.Member, a.Outcome),
		Actual:   "member not found",
	}
}

func assertInjected(classes []*engine.Result, a Assertion) error {
	total := 0
	for _, res := range classes {
		total += res.Injected
	}
	if total != a.Count {
		return &AssertionError{
			Type:     AssertInjected,
			Expected: fmt.Sprintf("%d injections", a.Count),
			Actual:   fmt.Sprintf("%d injections", total),
		}
	}
	return nil
}

func assertWarningContains(classes []*engine.Result, a Assertion) error {
	var all []string
	for _, res := range classes {
		for _, w := range res.Warnings {
			if strings.Contains(w, a.Text) {
				return nil
			}
			all = append(all, w)
		}
	}
	return &AssertionError{
		Type:     AssertWarningContains,
		Expected: fmt.Sprintf("a warning containing %q", a.Text),
		Actual:   fmt.Sprintf("warnings: %q", all),
	}
}
