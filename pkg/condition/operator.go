// Package condition implements the restricted condition dialect used by CONDITION
// and QUALIFICATION nodes: single-operator comparisons plus a
// hand-rolled boolean-expression parser over AND/OR/NOT/parentheses. Unlike the
// original's evaluate_expression, which delegates to Python's eval() under a
// restricted builtins dict, expressions here are never handed to a host-language
// evaluator — they are lexed, parsed into an AST, and interpreted directly.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smilemakc/convoflow/pkg/models"
)

// Evaluate applies a single operator to an actual/expected value pair, grounded
// fail-closed. Unknown operators and regex
// compile failures evaluate to false rather than erroring, matching the
// original's fail-closed behavior.
func Evaluate(actual any, op models.Operator, expected any) bool {
	switch op {
	case models.OpEquals:
		return equals(normalize(actual), normalize(expected))
	case models.OpNotEquals:
		return !equals(normalize(actual), normalize(expected))
	case models.OpContains:
		return contains(normalize(actual), normalize(expected))
	case models.OpNotContains:
		return !contains(normalize(actual), normalize(expected))
	case models.OpStartsWith:
		return startsWith(normalize(actual), normalize(expected))
	case models.OpEndsWith:
		return endsWith(normalize(actual), normalize(expected))
	case models.OpGreaterThan:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a > b })
	case models.OpLessThan:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a < b })
	case models.OpGreaterOrEqual:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a >= b })
	case models.OpLessOrEqual:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a <= b })
	case models.OpIsEmpty:
		return isEmpty(actual)
	case models.OpIsNotEmpty:
		return !isEmpty(actual)
	case models.OpExists:
		return actual != nil
	case models.OpMatchesRegex:
		return matchesRegex(actual, expected)
	case models.OpInList:
		return inList(actual, expected)
	case models.OpNotInList:
		return !inList(actual, expected)
	default:
		return false
	}
}

func normalize(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return v
}

func equals(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	if af, aok := toFloat(actual); aok {
		if ef, eok := toFloat(expected); eok {
			return af == ef
		}
	}
	return toStr(actual) == toStr(expected)
}

func contains(actual, expected any) bool {
	if actual == nil || expected == nil {
		return false
	}
	return strings.Contains(toStr(actual), toStr(expected))
}

func startsWith(actual, expected any) bool {
	if actual == nil || expected == nil {
		return false
	}
	return strings.HasPrefix(toStr(actual), toStr(expected))
}

func endsWith(actual, expected any) bool {
	if actual == nil || expected == nil {
		return false
	}
	return strings.HasSuffix(toStr(actual), toStr(expected))
}

func compareNumeric(actual, expected any, cmp func(a, b float64) bool) bool {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if !aok || !eok {
		return false
	}
	return cmp(af, ef)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func matchesRegex(value, pattern any) bool {
	if value == nil || pattern == nil {
		return false
	}
	re, err := regexp.Compile("(?i)" + toStr(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(toStr(value))
}

func inList(value, list any) bool {
	if value == nil {
		return false
	}
	needle := strings.ToLower(toStr(value))
	switch l := list.(type) {
	case []any:
		for _, item := range l {
			if strings.ToLower(toStr(item)) == needle {
				return true
			}
		}
		return false
	case []string:
		for _, item := range l {
			if strings.ToLower(item) == needle {
				return true
			}
		}
		return false
	case string:
		for _, item := range strings.Split(l, ",") {
			if strings.ToLower(strings.TrimSpace(item)) == needle {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toStr(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
