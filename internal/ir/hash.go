package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConstruction = "reconcile/construction/v1"
	DomainValue        = "reconcile/value/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConstructionHash computes a content hash over the definition-relevant fields
// of a construction. Two constructions with the same hash produce the same
// outputs for the same inputs; the run log records it so a schedule entry can
// be invalidated when the definition changes.
func ConstructionHash(c *Construction) (string, error) {
	obj := IRObject{
		"id":           IRString(c.ID),
		"resource":     IRString(c.Resource),
		"kind":         IRString(c.Kind),
		"intent":       IRString(c.Intent),
		"object_class": IRString(c.ObjectClass),
		"attributes":   mappingsObject(c.Attributes),
		"associations": mappingsObject(c.Associations),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConstructionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConstruction, canonical), nil
}

func mappingsObject(ms []ItemMapping) IRArray {
	arr := make(IRArray, len(ms))
	for i, m := range ms {
		obj := IRObject{
			"name":       IRString(m.Name),
			"path":       IRString(m.Path),
			"expression": IRString(m.Expression),
			"condition":  IRString(m.Condition),
			"strength":   IRString(m.Strength),
			"sources":    Strings(m.Sources...),
			"full":       IRBool(m.RequiresFullShadow),
		}
		if m.Window.From != nil {
			obj["from"] = IRString(m.Window.From.UTC().Format(timeLayout))
		}
		if m.Window.To != nil {
			obj["to"] = IRString(m.Window.To.UTC().Format(timeLayout))
		}
		arr[i] = obj
	}
	return arr
}

// ValueHash computes the content hash of a single value, used to
// de-duplicate produced values.
func ValueHash(v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// MustConstructionHash is like ConstructionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConstructionHash(c *Construction) string {
	h, err := ConstructionHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
