package ir

import "time"

// Construction binds a resource-object template (kind/intent/object class)
// to a focus. Mappings keep declaration order.
type Construction struct {
	ID           string        `json:"id"`
	Description  string        `json:"description,omitempty"`
	Resource     string        `json:"resource"`
	Kind         string        `json:"kind"`
	Intent       string        `json:"intent"`
	ObjectClass  string        `json:"object_class,omitempty"`
	Attributes   []ItemMapping `json:"attributes"`
	Associations []ItemMapping `json:"associations"`
}

// ItemMapping is one declarative mapping for a single attribute or association.
type ItemMapping struct {
	Name       string     `json:"name"`
	Path       ItemPath   `json:"path"`
	Expression string     `json:"expression"`
	Condition  string     `json:"condition,omitempty"`
	Strength   Strength   `json:"strength,omitempty"`
	Window     TimeWindow `json:"window"`

	// Sources lists the variable paths the mapping reads, e.g.
	// "projection.attributes.memberOf". Used to decide whether the cheap
	// baseline snapshot is enough.
	Sources []string `json:"sources,omitempty"`

	// RequiresFullShadow forces the full projection object to be loaded
	// before this mapping is evaluated.
	RequiresFullShadow bool `json:"requires_full_shadow,omitempty"`
}

// ItemPath addresses an item of the projection, e.g. "attributes.mail".
type ItemPath string

// Item groups.
const (
	GroupAttributes   = "attributes"
	GroupAssociations = "associations"
)

// AttributePath returns the path of the named attribute.
func AttributePath(name string) ItemPath {
	return ItemPath(GroupAttributes + "." + name)
}

// AssociationPath returns the path of the named association.
func AssociationPath(name string) ItemPath {
	return ItemPath(GroupAssociations + "." + name)
}

// Strength controls how a mapping's output competes with existing values.
type Strength string

const (
	StrengthNormal Strength = "normal"
	StrengthWeak   Strength = "weak"
	StrengthStrong Strength = "strong"
)

// ValidStrengths defines allowed mapping strengths. Empty means normal.
var ValidStrengths = map[Strength]bool{
	"":             true,
	StrengthNormal: true,
	StrengthWeak:   true,
	StrengthStrong: true,
}

// TimeWindow is the validity of a mapping. A nil bound is open in that direction.
type TimeWindow struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Bounded reports whether the window has an upper bound.
func (w TimeWindow) Bounded() bool {
	return w.To != nil
}

// Shadow is a snapshot of a projection (resource object) as far as it is known.
// Complete is false when only the attributes returned by default fetch are present.
type Shadow struct {
	OID        string   `json:"oid"`
	Resource   string   `json:"resource"`
	Kind       string   `json:"kind"`
	Intent     string   `json:"intent"`
	Attributes IRObject `json:"attributes"`
	Complete   bool     `json:"complete"`
}

// Has reports whether the snapshot carries the named attribute.
func (s *Shadow) Has(attr string) bool {
	if s == nil || s.Attributes == nil {
		return false
	}
	_, ok := s.Attributes[attr]
	return ok
}

// AsObject renders the shadow as an object for expression variables.
func (s *Shadow) AsObject() IRObject {
	if s == nil {
		return nil
	}
	attrs := s.Attributes
	if attrs == nil {
		attrs = IRObject{}
	}
	return IRObject{
		"oid":        IRString(s.OID),
		"resource":   IRString(s.Resource),
		"kind":       IRString(s.Kind),
		"intent":     IRString(s.Intent),
		"attributes": attrs,
		"complete":   IRBool(s.Complete),
	}
}

// Focus is the identity whose change is being reconciled.
type Focus struct {
	OID        string   `json:"oid"`
	Type       string   `json:"type"`
	Attributes IRObject `json:"attributes"`
}

// AsObject renders the focus for expression variables. Attributes are
// merged at the top level next to oid and type.
func (f *Focus) AsObject() IRObject {
	obj := make(IRObject, len(f.Attributes)+2)
	for k, v := range f.Attributes {
		obj[k] = v
	}
	obj["oid"] = IRString(f.OID)
	obj["type"] = IRString(f.Type)
	return obj
}
