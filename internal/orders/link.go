package orders

import "strings"

// LinkMode selects how the order update treats existing relations.
type LinkMode string

const (
	// LinkSet replaces the relation with the given ids.
	LinkSet LinkMode = "set"
	// LinkConnect adds the given ids to the relation.
	LinkConnect LinkMode = "connect"
)

// LinkStrategy is one attempt at attaching line items to their order.
type LinkStrategy struct {
	Field string   `json:"field"`
	Mode  LinkMode `json:"mode"`
}

// Payload builds the order update body for ids.
func (s LinkStrategy) Payload(ids []string) map[string]any {
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	if s.Mode == LinkConnect {
		return map[string]any{s.Field: map[string]any{"connect": values}}
	}
	return map[string]any{s.Field: values}
}

func (s LinkStrategy) String() string {
	return s.Field + ":" + string(s.Mode)
}

// LinkStrategies expands candidate field names into the ordered trial list:
// every candidate with set semantics, then every candidate with connect.
func LinkStrategies(fields []string) []LinkStrategy {
	candidates := normalizeFields(fields)
	out := make([]LinkStrategy, 0, len(candidates)*2)
	for _, mode := range []LinkMode{LinkSet, LinkConnect} {
		for _, field := range candidates {
			out = append(out, LinkStrategy{Field: field, Mode: mode})
		}
	}
	return out
}

func normalizeFields(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	return out
}
