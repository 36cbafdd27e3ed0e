package engine

import "fmt"

// configStringList reads a []string (or []any of strings) config value,
// returning nil when absent or of the wrong shape. Graph JSON/YAML decode
// arrays as []any, so both representations are accepted.
func configStringList(config map[string]any, key string) []string {
	if config == nil {
		return nil
	}
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// configIntMap reads a map<string, int> config value, tolerating the
// map[string]any shape produced by JSON/YAML decoding of numeric literals.
func configIntMap(config map[string]any, key string) map[string]int {
	out := map[string]int{}
	if config == nil {
		return out
	}
	switch v := config[key].(type) {
	case map[string]int:
		for k, n := range v {
			out[k] = n
		}
	case map[string]any:
		for k, raw := range v {
			switch n := raw.(type) {
			case int:
				out[k] = n
			case int64:
				out[k] = int(n)
			case float64:
				out[k] = int(n)
			}
		}
	}
	return out
}

// toStringAny renders an arbitrary collected-data value as a comparison
// string for SWITCH's case matching, leaving nil as empty rather than "<nil>".
func toStringAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
