package commerce

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one backend entity as returned by the REST surface. The backend
// may return attributes flattened on the record or nested under "attributes".
type Record map[string]any

// Size is a size catalog entry.
type Size struct {
	ID    string
	Value string
}

// ID normalizes numeric and string identifiers to a string.
func (r Record) ID() string {
	return idString(r["id"])
}

// Attribute looks the key up on the record, then under "attributes".
func (r Record) Attribute(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[key]; ok {
		return v, true
	}
	if attrs, ok := r["attributes"].(map[string]any); ok {
		v, ok := attrs[key]
		return v, ok
	}
	return nil, false
}

// String returns a string attribute or "".
func (r Record) String(key string) string {
	v, ok := r.Attribute(key)
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

// Relation returns the related records stored under key. It accepts a plain
// array, a {"data": [...]} wrapper and a single {"data": {...}} object.
func (r Record) Relation(key string) []Record {
	v, ok := r.Attribute(key)
	if !ok {
		return nil
	}
	return toRecords(v)
}

func toRecords(v any) []Record {
	switch typed := v.(type) {
	case []any:
		out := make([]Record, 0, len(typed))
		for _, item := range typed {
			if m, ok := item.(map[string]any); ok {
				out = append(out, Record(m))
			}
		}
		return out
	case map[string]any:
		if inner, ok := typed["data"]; ok {
			return toRecords(inner)
		}
		return []Record{Record(typed)}
	default:
		return nil
	}
}

func idString(v any) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

func sizesFrom(records []Record) []Size {
	out := make([]Size, 0, len(records))
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			continue
		}
		out = append(out, Size{ID: id, Value: rec.String("value")})
	}
	return out
}
