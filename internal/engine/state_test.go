package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_LegalPaths(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{"injected", []State{StateMatched, StateInjected, StateDone}},
		{"skipped after match", []State{StateMatched, StateSkipped, StateDone}},
		{"unmatched", []State{StateSkipped, StateDone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MemberResult{Kind: KindMethod, Name: "m", Desc: "()V", State: StateUnvisited}
			for _, s := range tt.path {
				require.NoError(t, advance(r, s))
				assert.Equal(t, s, r.State)
			}
		})
	}
}

func TestAdvance_IllegalTransitions(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StateUnvisited, StateInjected},
		{StateUnvisited, StateDone},
		{StateMatched, StateDone},
		{StateSkipped, StateInjected},
		{StateInjected, StateSkipped},
		{StateDone, StateDone},
		{StateDone, StateMatched},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			r := &MemberResult{Kind: KindField, Name: "f", Desc: "I", State: tt.from}
			err := advance(r, tt.to)
			require.Error(t, err)
			assert.True(t, hasCode(err, ErrCodeIllegalTransition))
			assert.Contains(t, err.Error(), "member=f:I")
			assert.Equal(t, tt.from, r.State, "state unchanged on rejection")
		})
	}
}
