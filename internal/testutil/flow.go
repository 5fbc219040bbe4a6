package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates "run-0001", "run-0002", ... so ledger tests
// can name runs before they happen and golden reports stay stable.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs returns a generator using prefix, "run" when empty.
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
