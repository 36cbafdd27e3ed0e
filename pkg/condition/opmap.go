package condition

import (
	"fmt"

	"github.com/smilemakc/convoflow/pkg/models"
)

// inlineOperator maps an inline comparison token ("==", "!=", ">", "<", ">=",
// "<=") from the expression dialect to the shared Operator set.
func inlineOperator(tok string) (models.Operator, error) {
	switch tok {
	case "==":
		return models.OpEquals, nil
	case "!=":
		return models.OpNotEquals, nil
	case ">":
		return models.OpGreaterThan, nil
	case "<":
		return models.OpLessThan, nil
	case ">=":
		return models.OpGreaterOrEqual, nil
	case "<=":
		return models.OpLessOrEqual, nil
	default:
		return "", fmt.Errorf("condition: unknown inline operator %q", tok)
	}
}

// opFromDialectOrInline resolves an operator name that may come from either
// the named Operator set (e.g. "contains") used by condition lists, or an
// inline symbol (e.g. "==") used by free-form expressions.
func opFromDialectOrInline(name string) (models.Operator, error) {
	if models.ValidOperator(name) {
		return models.Operator(name), nil
	}
	return inlineOperator(name)
}
