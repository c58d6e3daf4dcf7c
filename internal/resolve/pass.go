// Package resolve attaches display names to references in a value graph.
//
// Resolution is two-phase: a walk collects the references selected for
// resolution, one batched lookup fetches all their names, and a patch step
// writes the names into the references in place.
package resolve

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
)

// Selector picks graph paths whose references want name resolution.
// Paths are dot-separated object keys; "*" matches one key. Array
// indices are not part of a path.
type Selector struct {
	Path         string `json:"path" yaml:"path"`
	ResolveNames bool   `json:"resolve_names" yaml:"resolve_names"`
}

// NameLookup fetches display names for a batch of identifiers.
// Identifiers without a known name are left out of the answer.
type NameLookup interface {
	LookupNames(ctx context.Context, oids []string) (map[string]string, error)
}

// LookupFunc adapts a function to NameLookup.
type LookupFunc func(ctx context.Context, oids []string) (map[string]string, error)

// LookupNames implements NameLookup.
func (f LookupFunc) LookupNames(ctx context.Context, oids []string) (map[string]string, error) {
	return f(ctx, oids)
}

// Report summarizes one pass.
type Report struct {
	// Requested is the number of distinct identifiers sent to the lookup.
	Requested int `json:"requested"`
	// Resolved counts references that got a name.
	Resolved int `json:"resolved"`
	// NotFound counts references the lookup had no name for.
	NotFound int `json:"not_found"`
	// Failed counts references left unresolved because the lookup failed.
	Failed int `json:"failed"`
}

// Pass resolves names over a graph.
type Pass interface {
	Resolve(ctx context.Context, root ir.IRValue) (Report, error)
}

// From returns a pass for the selectors that request resolution. When none
// does, the returned pass does nothing and never walks the graph.
func From(selectors []Selector, lookup NameLookup) Pass {
	var patterns [][]string
	for _, s := range selectors {
		if s.ResolveNames {
			patterns = append(patterns, splitPath(s.Path))
		}
	}
	if len(patterns) == 0 || lookup == nil {
		return noopPass{}
	}
	return &batchPass{patterns: patterns, lookup: lookup}
}

type noopPass struct{}

func (noopPass) Resolve(context.Context, ir.IRValue) (Report, error) {
	return Report{}, nil
}

type batchPass struct {
	patterns [][]string
	lookup   NameLookup
}

type frame struct {
	value ir.IRValue
	path  []string
}

// Resolve implements Pass.
func (p *batchPass) Resolve(ctx context.Context, root ir.IRValue) (Report, error) {
	refs := p.collect(root)
	if len(refs) == 0 {
		return Report{}, nil
	}

	oids := make([]string, 0, len(refs))
	for _, ref := range refs {
		oids = append(oids, ref.OID)
	}
	slices.Sort(oids)
	oids = slices.Compact(oids)

	report := Report{Requested: len(oids)}
	names, err := p.lookup.LookupNames(ctx, oids)
	if err != nil {
		for _, ref := range refs {
			ref.Resolution = ir.ResolutionFailed
		}
		report.Failed = len(refs)
		if fault.KindOf(err) == "" {
			err = fault.Communication("resolve.lookup", err)
		}
		return report, err
	}

	for _, ref := range refs {
		if name, ok := names[ref.OID]; ok && name != "" {
			ref.TargetName = name
			ref.Resolution = ir.ResolutionResolved
			report.Resolved++
		} else {
			ref.Resolution = ir.ResolutionNotFound
			report.NotFound++
		}
	}
	return report, nil
}

// collect walks the graph with an explicit stack and returns the selected
// unresolved references in a deterministic order.
func (p *batchPass) collect(root ir.IRValue) []*ir.IRRef {
	var work []*ir.IRRef
	stack := []frame{{value: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := top.value.(type) {
		case *ir.IRRef:
			if v == nil || v.OID == "" || v.TargetName != "" || v.Embedded != nil {
				continue
			}
			if p.matches(top.path) {
				work = append(work, v)
			}
		case ir.IRArray:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, frame{value: v[i], path: top.path})
			}
		case ir.IRObject:
			keys := v.SortedKeys()
			for i := len(keys) - 1; i >= 0; i-- {
				child := append(slices.Clip(top.path), keys[i])
				stack = append(stack, frame{value: v[keys[i]], path: child})
			}
		}
	}
	return work
}

func (p *batchPass) matches(path []string) bool {
	for _, pattern := range p.patterns {
		if matchPath(pattern, path) {
			return true
		}
	}
	return false
}

func matchPath(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if seg != "*" && seg != path[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
