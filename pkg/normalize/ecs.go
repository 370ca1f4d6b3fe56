package normalize

import "strings"

// ecsFlattenMapping lists nested ECS-style paths and the flat field they
// populate when the flat field is absent or empty (§4.A). Explicit flat
// fields always take priority over the nested form.
var ecsFlattenMapping = []struct {
	nestedPath []string
	flatField  string
}{
	{[]string{"host", "name"}, "host"},
	{[]string{"resource", "host", "name"}, "host"},
	{[]string{"source", "ip"}, "source_ip"},
	{[]string{"service", "name"}, "service"},
	{[]string{"log", "level"}, "severity"},
	{[]string{"@timestamp"}, "timestamp"},
	{[]string{"attributes", "trace_id"}, "trace_id"},
	{[]string{"attributes", "span_id"}, "span_id"},
	{[]string{"trace", "id"}, "trace_id"},
	{[]string{"span", "id"}, "span_id"},
	{[]string{"process", "name"}, "program"},
	{[]string{"log", "syslog", "facility", "code"}, "facility"},
	{[]string{"network", "transport"}, "transport"},
}

// flattenECS walks the fixed mapping table and fills any missing/empty flat
// field from its nested ECS path. The input map is mutated in place and
// also returned for convenience.
func flattenECS(raw map[string]interface{}) map[string]interface{} {
	for _, m := range ecsFlattenMapping {
		if hasNonEmpty(raw, m.flatField) {
			continue
		}
		if v, ok := lookupNested(raw, m.nestedPath); ok {
			raw[m.flatField] = v
		}
	}
	return raw
}

func hasNonEmpty(raw map[string]interface{}, key string) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// lookupNested resolves a dotted path, first by traversing nested maps, then
// (as a fallback) by the literal dotted key — some shippers send ECS fields
// already flattened with literal dots in a single-level map.
func lookupNested(raw map[string]interface{}, path []string) (interface{}, bool) {
	if len(path) == 1 {
		if v, ok := raw[path[0]]; ok {
			return v, true
		}
	}
	cur := interface{}(raw)
	for _, seg := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			break
		}
		v, ok := m[seg]
		if !ok {
			cur = nil
			break
		}
		cur = v
	}
	if cur != nil {
		return cur, true
	}

	dotted := strings.Join(path, ".")
	if v, ok := raw[dotted]; ok {
		return v, true
	}
	return nil, false
}
