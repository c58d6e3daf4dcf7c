// Package compiler turns CUE construction definitions into ir.Construction
// values and validates them.
package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/reconcile/internal/ir"
)

// CompileConstruction parses a CUE value into a Construction.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the construction struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`construction: "ldap-account": { ... }`)
//	c, err := CompileConstruction(v.LookupPath(cue.ParsePath(`construction."ldap-account"`)))
//
// Mappings keep their declaration order.
func CompileConstruction(v cue.Value) (*ir.Construction, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &ir.Construction{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		c.ID = labels[len(labels)-1].Unquoted()
	}

	resourceVal := v.LookupPath(cue.ParsePath("resource"))
	if !resourceVal.Exists() {
		return nil, &CompileError{
			Field:   "resource",
			Message: "resource is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	if c.Resource, err = resourceVal.String(); err != nil {
		return nil, formatCUEError(err)
	}
	if c.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	if c.Kind, err = optionalString(v, "kind"); err != nil {
		return nil, err
	}
	if c.Intent, err = optionalString(v, "intent"); err != nil {
		return nil, err
	}
	if c.ObjectClass, err = optionalString(v, "object_class"); err != nil {
		return nil, err
	}

	c.Attributes, err = parseMappings(v, "attribute", ir.AttributePath)
	if err != nil {
		return nil, err
	}
	c.Associations, err = parseMappings(v, "association", ir.AssociationPath)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// parseMappings reads the mapping struct under field, in declaration order.
func parseMappings(v cue.Value, field string, pathOf func(string) ir.ItemPath) ([]ir.ItemMapping, error) {
	groupVal := v.LookupPath(cue.ParsePath(field))
	if !groupVal.Exists() {
		return nil, nil
	}

	iter, err := groupVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var mappings []ir.ItemMapping
	for iter.Next() {
		m, err := parseMapping(iter.Selector().Unquoted(), iter.Value(), field)
		if err != nil {
			return nil, err
		}
		m.Path = pathOf(m.Name)
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func parseMapping(name string, v cue.Value, group string) (ir.ItemMapping, error) {
	m := ir.ItemMapping{Name: name}

	var err error
	if m.Expression, err = optionalString(v, "expression"); err != nil {
		return m, err
	}
	if m.Condition, err = optionalString(v, "condition"); err != nil {
		return m, err
	}
	strength, err := optionalString(v, "strength")
	if err != nil {
		return m, err
	}
	m.Strength = ir.Strength(strength)

	fullVal := v.LookupPath(cue.ParsePath("requires_full_shadow"))
	if fullVal.Exists() {
		if m.RequiresFullShadow, err = fullVal.Bool(); err != nil {
			return m, formatCUEError(err)
		}
	}

	sourcesVal := v.LookupPath(cue.ParsePath("sources"))
	if sourcesVal.Exists() {
		list, err := sourcesVal.List()
		if err != nil {
			return m, formatCUEError(err)
		}
		for list.Next() {
			src, err := list.Value().String()
			if err != nil {
				return m, formatCUEError(err)
			}
			m.Sources = append(m.Sources, src)
		}
	}

	if m.Window.From, err = optionalTime(v, "time_from", group, name); err != nil {
		return m, err
	}
	if m.Window.To, err = optionalTime(v, "time_to", group, name); err != nil {
		return m, err
	}

	return m, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalTime parses an RFC 3339 timestamp field.
func optionalTime(v cue.Value, field, group, name string) (*time.Time, error) {
	s, err := optionalString(v, field)
	if err != nil || s == "" {
		return nil, err
	}
	t, err := ir.ParseTime(s)
	if err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("%s.%s.%s", group, name, field),
			Message: fmt.Sprintf("invalid RFC 3339 timestamp %q", s),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return &t, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with position info wins
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
