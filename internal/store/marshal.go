package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/reconcile/internal/ir"
)

// marshalOutputs converts an output graph to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalOutputs(outputs ir.IRObject) (string, error) {
	if outputs == nil {
		outputs = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(outputs)
	if err != nil {
		return "", fmt.Errorf("marshal outputs: %w", err)
	}
	return string(data), nil
}

// unmarshalOutputs parses canonical JSON TEXT to IRObject.
// References come back as *ir.IRRef.
func unmarshalOutputs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal outputs: expected object, got %T", v)
	}
	return obj, nil
}

// toNanos stores an optional instant, NULL when absent.
func toNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

// fromNanos is the inverse of toNanos.
func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
