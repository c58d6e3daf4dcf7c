package construction

import (
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/mapping"
)

// Evaluated accumulates the outputs of one construction evaluation in
// declaration order.
type Evaluated struct {
	Attributes   []*mapping.Output `json:"attributes"`
	Associations []*mapping.Output `json:"associations"`
}

func (e *Evaluated) add(group string, out *mapping.Output) {
	if group == ir.GroupAssociations {
		e.Associations = append(e.Associations, out)
		return
	}
	e.Attributes = append(e.Attributes, out)
}

// Len returns the number of registered outputs.
func (e *Evaluated) Len() int {
	return len(e.Attributes) + len(e.Associations)
}

// Attribute returns the output registered for the named attribute, or nil.
func (e *Evaluated) Attribute(name string) *mapping.Output {
	return find(e.Attributes, name)
}

// Association returns the output registered for the named association, or nil.
func (e *Evaluated) Association(name string) *mapping.Output {
	return find(e.Associations, name)
}

func find(outs []*mapping.Output, name string) *mapping.Output {
	for _, out := range outs {
		if out.Name == name {
			return out
		}
	}
	return nil
}

// AttributeValues returns the attribute values produced so far, keyed by name.
func (e *Evaluated) AttributeValues() ir.IRObject {
	obj := make(ir.IRObject, len(e.Attributes))
	for _, out := range e.Attributes {
		existing, _ := obj[out.Name].(ir.IRArray)
		obj[out.Name] = append(existing, out.Values...)
	}
	return obj
}

// AsObject renders the accumulator as a value graph:
//
//	{"attributes": {name: [values]}, "associations": {name: [values]}}
func (e *Evaluated) AsObject() ir.IRObject {
	assoc := make(ir.IRObject, len(e.Associations))
	for _, out := range e.Associations {
		existing, _ := assoc[out.Name].(ir.IRArray)
		assoc[out.Name] = append(existing, out.Values...)
	}
	return ir.IRObject{
		ir.GroupAttributes:   e.AttributeValues(),
		ir.GroupAssociations: assoc,
	}
}
