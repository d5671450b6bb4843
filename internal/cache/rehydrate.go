package cache

import (
	"strings"
	"time"
)

// Timestamp-bearing field names are matched by convention: exact well-known
// names plus the At/Time/Timestamp suffixes used across the domain types.
var exactDateFields = map[string]struct{}{
	"timestamp": {},
	"date":      {},
	"createdAt": {},
	"updatedAt": {},
}

// RehydrateDates walks a decoded JSON object and restores string values in
// timestamp-named fields to time.Time. JSON round-trips collapse times to
// strings, so generic map reads cannot assume values survive unchanged.
// Non-parseable strings are left as-is.
func RehydrateDates(m map[string]any) {
	for key, value := range m {
		switch v := value.(type) {
		case string:
			if !isDateField(key) {
				continue
			}
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				m[key] = t
			}
		case map[string]any:
			RehydrateDates(v)
		case []any:
			for _, item := range v {
				if nested, ok := item.(map[string]any); ok {
					RehydrateDates(nested)
				}
			}
		}
	}
}

// isDateField reports whether a field name conventionally carries a timestamp.
func isDateField(name string) bool {
	if _, ok := exactDateFields[name]; ok {
		return true
	}
	return strings.HasSuffix(name, "At") ||
		strings.HasSuffix(name, "Time") ||
		strings.HasSuffix(name, "Timestamp")
}
