// Package testutil provides deterministic fakes for the external
// capabilities the engine consumes: projection loading, name lookup, the
// wall clock, and run IDs.
package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/reconcile/internal/ir"
)

// CountingLoader returns a fixed full projection and counts fetches.
// Implements construction.ShadowLoader.
type CountingLoader struct {
	mu      sync.Mutex
	full    *ir.Shadow
	err     error
	calls   int
	reasons []string
}

// NewCountingLoader creates a loader answering with full.
func NewCountingLoader(full *ir.Shadow) *CountingLoader {
	return &CountingLoader{full: full}
}

// FailWith makes every fetch fail with err.
func (l *CountingLoader) FailWith(err error) *CountingLoader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	return l
}

// LoadFull records the call and returns a copy of the configured projection.
func (l *CountingLoader) LoadFull(_ context.Context, reason string) (*ir.Shadow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.reasons = append(l.reasons, reason)
	if l.err != nil {
		return nil, l.err
	}
	if l.full == nil {
		return nil, nil
	}
	cp := *l.full
	return &cp, nil
}

// Calls returns the number of fetches.
func (l *CountingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Reasons returns the reasons passed to each fetch.
func (l *CountingLoader) Reasons() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.reasons)
}

// CountingLookup answers name lookups from a fixed table and records batches.
// Implements resolve.NameLookup.
type CountingLookup struct {
	mu      sync.Mutex
	names   map[string]string
	err     error
	batches [][]string
}

// NewCountingLookup creates a lookup over oid -> name.
func NewCountingLookup(names map[string]string) *CountingLookup {
	return &CountingLookup{names: names}
}

// FailWith makes every lookup fail with err.
func (l *CountingLookup) FailWith(err error) *CountingLookup {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	return l
}

// LookupNames returns names for the known oids. Unknown oids are absent.
func (l *CountingLookup) LookupNames(_ context.Context, oids []string) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, slices.Clone(oids))
	if l.err != nil {
		return nil, l.err
	}
	out := make(map[string]string, len(oids))
	for _, oid := range oids {
		if name, ok := l.names[oid]; ok {
			out[oid] = name
		}
	}
	return out, nil
}

// Calls returns the number of batches requested.
func (l *CountingLookup) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

// Batches returns the identifier lists of each batch.
func (l *CountingLookup) Batches() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.batches))
	for i, b := range l.batches {
		out[i] = slices.Clone(b)
	}
	return out
}
