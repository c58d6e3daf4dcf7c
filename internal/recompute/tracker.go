// Package recompute tracks the earliest moment at which a unit of work must
// be evaluated again because one of its mappings stops being valid.
package recompute

import (
	"time"

	"github.com/roach88/reconcile/internal/ir"
)

// Tracker aggregates mapping validity windows into a single next-recompute
// timestamp. The tracked value never moves later once narrowed.
//
// Not safe for concurrent use; each evaluation owns its tracker.
type Tracker struct {
	next *time.Time
}

// NewTracker creates an empty tracker (no recompute needed).
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update folds a window into the tracker and returns the tracked value.
// Only the upper bound matters: recompute exists to catch mappings expiring.
// Mappings that are not valid yet are handled by separate scheduled triggers.
func (t *Tracker) Update(w ir.TimeWindow) *time.Time {
	t.next = Earliest(t.next, w.To)
	return t.Next()
}

// Next returns a copy of the tracked timestamp, or nil if none.
func (t *Tracker) Next() *time.Time {
	if t.next == nil {
		return nil
	}
	v := *t.next
	return &v
}

// Earliest returns the earlier of current and candidate. A nil candidate
// leaves current unchanged; a nil current takes the candidate.
func Earliest(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.Before(*current) {
		v := *candidate
		return &v
	}
	return current
}
