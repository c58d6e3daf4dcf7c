package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates run IDs "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic run logs and golden snapshot comparison.
// Implements engine.RunIDGenerator.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run ID.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
