package harness

import "github.com/roach88/classweave/internal/engine"

// Trace event types.
const (
	EventWrap   = "wrap"
	EventLog    = "log"
	EventInfo   = "info"
	EventNew    = "new"
	EventReturn = "return"
	EventThrow  = "throw"
)

// TraceEvent is one observable step of a scenario run.
//
// For log events Name is the logged method and Args the rendered
// arguments. For wrap and info events Name is the logger's name and Value
// the message. For new, return and throw events Name is the class or
// owner.method, and Value the rendered result or the exception class.
type TraceEvent struct {
	Seq   int      `json:"seq"`
	Type  string   `json:"type"`
	Name  string   `json:"name,omitempty"`
	Args  []string `json:"args,omitempty"`
	Value string   `json:"value,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Classes holds one transform result per fixture, in fixture order.
	Classes []*engine.Result `json:"classes"`

	// Output is what the executed code printed.
	Output string `json:"output,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) record(e TraceEvent) {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}
