package engine

// MemberResult is the outcome for one field or method.
type MemberResult struct {
	Kind MemberKind `json:"kind"`
	Name string     `json:"name"`
	Desc string     `json:"desc"`

	// Pass is the pass that matched, empty when none did.
	Pass PassKind `json:"pass,omitempty"`

	State      State `json:"state"`
	Injections int   `json:"injections"`

	// Reason explains a skip after a match or an exclusion.
	Reason string `json:"reason,omitempty"`
}

// ID mirrors Member.ID.
func (r MemberResult) ID() string {
	if r.Kind == KindField {
		return r.Name + ":" + r.Desc
	}
	return r.Name + r.Desc
}

// Result reports every member's outcome for one class.
type Result struct {
	Class   string         `json:"class"`
	Members []MemberResult `json:"members"`

	// Warnings lists recoverable conditions: skipped methods and code
	// attributes dropped from rewritten bodies.
	Warnings []string `json:"warnings,omitempty"`

	// Injected is the total number of blocks inserted.
	Injected int `json:"injected"`
}

// Transformed reports whether anything was injected.
func (r *Result) Transformed() bool { return r.Injected > 0 }

// Partial reports whether a matched member was skipped.
func (r *Result) Partial() bool {
	for _, m := range r.Members {
		if m.Pass != "" && m.Reason != "" {
			return true
		}
	}
	return false
}

// Member returns the result for the member with the given ID.
func (r *Result) Member(id string) (MemberResult, bool) {
	for _, m := range r.Members {
		if m.ID() == id {
			return m, true
		}
	}
	return MemberResult{}, false
}

// Output is a serialized class and its report.
type Output struct {
	Bytes  []byte
	Result *Result
}
