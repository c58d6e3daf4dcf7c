package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing constrained value types.
// Only IRNull, IRString, IRInt, IRBool, IRArray, IRObject and *IRRef implement this.
// NO IRFloat - floats are forbidden in the value graph.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value in the IR.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value in the IR.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value in the IR.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value in the IR.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// RefKey is the object key that marks a reference in external (JSON/YAML/CEL) form:
//
//	{"$ref": "oid-123", "type": "RoleType", "name": "Engineers"}
const RefKey = "$ref"

// Resolution records what the name resolution pass learned about a reference.
type Resolution string

const (
	// ResolutionPending means no resolution was attempted.
	ResolutionPending Resolution = ""
	// ResolutionResolved means a display name was attached.
	ResolutionResolved Resolution = "resolved"
	// ResolutionNotFound means the lookup answered but had no entry (target deleted or never existed).
	ResolutionNotFound Resolution = "not_found"
	// ResolutionFailed means the batched lookup itself failed.
	ResolutionFailed Resolution = "failed"
)

// IRRef is a reference to another object by identifier.
// It is a pointer type in the graph so it can be patched in place.
type IRRef struct {
	OID        string     `json:"oid"`
	TargetType string     `json:"type,omitempty"`
	TargetName string     `json:"name,omitempty"`
	Embedded   IRObject   `json:"embedded,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
}

func (*IRRef) irValue() {}

// NewIRRef creates a reference to oid of the given target type.
func NewIRRef(oid, targetType string) *IRRef {
	return &IRRef{OID: oid, TargetType: targetType}
}

// asObject renders the reference in its external object form.
func (r *IRRef) asObject() IRObject {
	obj := IRObject{RefKey: IRString(r.OID)}
	if r.TargetType != "" {
		obj["type"] = IRString(r.TargetType)
	}
	if r.TargetName != "" {
		obj["name"] = IRString(r.TargetName)
	}
	if r.Embedded != nil {
		obj["embedded"] = r.Embedded
	}
	if r.Resolution != ResolutionPending {
		obj["resolution"] = IRString(r.Resolution)
	}
	return obj
}

// MarshalJSON implements json.Marshaler for *IRRef using the external object form.
func (r *IRRef) MarshalJSON() ([]byte, error) {
	return r.asObject().MarshalJSON()
}

// refFromObject returns the reference encoded by obj, if obj carries RefKey.
func refFromObject(obj IRObject) (*IRRef, bool, error) {
	raw, ok := obj[RefKey]
	if !ok {
		return nil, false, nil
	}
	oid, ok := raw.(IRString)
	if !ok {
		return nil, true, fmt.Errorf("%s must be a string, got %T", RefKey, raw)
	}
	ref := &IRRef{OID: string(oid)}
	if v, ok := obj["type"].(IRString); ok {
		ref.TargetType = string(v)
	}
	if v, ok := obj["name"].(IRString); ok {
		ref.TargetName = string(v)
	}
	if v, ok := obj["embedded"].(IRObject); ok {
		ref.Embedded = v
	}
	if v, ok := obj["resolution"].(IRString); ok {
		ref.Resolution = Resolution(v)
	}
	return ref, true, nil
}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair for ergonomic construction.
// Example: NewIRObjectFromPairs(O("name", IRString("jdoe")), O("uid", IRInt(5)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// Strings builds an IRArray of IRString values.
func Strings(vals ...string) IRArray {
	arr := make(IRArray, len(vals))
	for i, v := range vals {
		arr[i] = IRString(v)
	}
	return arr
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
// Objects carrying "$ref" inside the object are decoded as *IRRef values.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(IRObject, len(raw))
	for k, v := range raw {
		val, err := unmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRObject key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(IRArray, len(raw))
	for i, v := range raw {
		val, err := unmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRArray index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalIRValue decodes a JSON value into the appropriate IRValue type.
// Floats in JSON are rejected. null decodes to IRNull.
func unmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys (RFC 8785 ordering).
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	case *IRRef:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// UnmarshalIRValue deserializes JSON into an IRValue.
// Rejects floats; null becomes IRNull.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	return unmarshalIRValue(data)
}

// FromAny converts a decoded Go value (from encoding/json with UseNumber,
// gopkg.in/yaml.v3, or a CEL native conversion) into an IRValue.
// Maps carrying "$ref" become *IRRef. Floats are rejected unless integral.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return IRInt(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in IR: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return IRInt(n), nil
	case float64:
		return nil, fmt.Errorf("floats are forbidden in IR: %v", val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		ref, isRef, err := refFromObject(obj)
		if err != nil {
			return nil, err
		}
		if isRef {
			return ref, nil
		}
		return obj, nil
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key must be a string, got %T", k)
			}
			m[ks] = elem
		}
		return FromAny(m)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromAny converts a decoded map into an IRObject.
func ObjectFromAny(m map[string]any) (IRObject, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return obj, nil
}

// ToAny converts an IRValue into plain Go values (string, int64, bool,
// []any, map[string]any, nil). References render in their "$ref" object form.
func ToAny(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	case *IRRef:
		return ToAny(val.asObject())
	default:
		return nil
	}
}
