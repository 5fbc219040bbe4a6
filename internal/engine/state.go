package engine

import "fmt"

// State is a member's position in the orchestration lifecycle.
type State string

const (
	StateUnvisited State = "unvisited"
	StateMatched   State = "matched"
	StateInjected  State = "injected"
	StateSkipped   State = "skipped"
	StateDone      State = "done"
)

// transitions lists the legal successors of each state. Done is terminal.
var transitions = map[State][]State{
	StateUnvisited: {StateMatched, StateSkipped},
	StateMatched:   {StateInjected, StateSkipped},
	StateInjected:  {StateDone},
	StateSkipped:   {StateDone},
}

// advance moves r to the next state, rejecting transitions the lifecycle
// does not allow. Reaching Done twice is impossible since Done has no
// successors.
func advance(r *MemberResult, to State) error {
	for _, next := range transitions[r.State] {
		if next == to {
			r.State = to
			return nil
		}
	}
	return &TransformError{
		Code:    ErrCodeIllegalTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", r.State, to),
		Member:  r.ID(),
	}
}
