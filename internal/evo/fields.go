package evo

import (
	"strconv"
	"strings"
)

// Record is a decoded EVO JSON object, treated as an opaque attribute bag
type Record = map[string]any

// FirstValue returns the first present, non-empty value among the aliased
// keys. EVO spells the same semantic field a dozen ways across endpoint
// versions, so every lookup goes through an ordered alias list.
func FirstValue(record Record, aliases ...string) any {
	for _, k := range aliases {
		v, ok := record[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case []any:
			if len(t) > 0 {
				return t
			}
		default:
			return v
		}
	}
	return nil
}

// FirstString is FirstValue narrowed to a string result; numbers are
// formatted (integral floats without the trailing ".0" the JSON decoder
// introduces) and everything non-scalar yields ""
func FirstString(record Record, aliases ...string) string {
	v := FirstValue(record, aliases...)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// ToList flattens an EVO list payload. Lists arrive either bare or wrapped
// in an envelope under data/items/results/list/rows (or, failing those, any
// key holding a list).
func ToList(payload any) []Record {
	switch t := payload.(type) {
	case []any:
		return toRecords(t)
	case map[string]any:
		for _, key := range []string{"data", "items", "results", "list", "rows"} {
			if inner, ok := t[key].([]any); ok {
				return toRecords(inner)
			}
		}
		for _, v := range t {
			if inner, ok := v.([]any); ok {
				return toRecords(inner)
			}
		}
	}
	return nil
}

func toRecords(items []any) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Unwrap peels a single-object envelope: {"data": {...}} becomes {...}
func Unwrap(payload any) Record {
	rec, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := rec["data"].(map[string]any); ok {
		return inner
	}
	return rec
}

// DateOnly truncates an ISO timestamp like "2025-06-10T09:00:00" to its date
func DateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
