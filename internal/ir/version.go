package ir

import "time"

// Version constants for the value graph and engine.
const (
	// IRVersion is the value graph schema version.
	IRVersion = "1"

	// EngineVersion is the reconciliation engine version.
	EngineVersion = "0.1.0"
)

// timeLayout is the canonical timestamp format for windows and schedules.
const timeLayout = time.RFC3339Nano

// FormatTime renders t in the canonical layout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses an RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
