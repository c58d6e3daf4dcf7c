package construction

import (
	"context"

	"github.com/roach88/reconcile/internal/ir"
)

// ShadowLoader fetches the full projection object from the resource.
// Reason describes which mapping triggered the fetch.
type ShadowLoader interface {
	LoadFull(ctx context.Context, reason string) (*ir.Shadow, error)
}

// LoaderFunc adapts a function to ShadowLoader.
type LoaderFunc func(ctx context.Context, reason string) (*ir.Shadow, error)

// LoadFull implements ShadowLoader.
func (f LoaderFunc) LoadFull(ctx context.Context, reason string) (*ir.Shadow, error) {
	return f(ctx, reason)
}

// ProjectionContext is what the pass knows about one projection of the focus.
type ProjectionContext struct {
	// Focus is the identity being reconciled.
	Focus *ir.Focus

	// Current is the cheap baseline snapshot, nil when the projection does
	// not exist yet.
	Current *ir.Shadow

	// Loader fetches the full projection on demand.
	Loader ShadowLoader
}
