// Package ir provides the value graph and definition types shared by the
// reconciliation engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - References are pointers (*IRRef) so name resolution can patch them in place
//   - Mapping declaration order is preserved on Construction
//   - All JSON tags use snake_case
package ir
