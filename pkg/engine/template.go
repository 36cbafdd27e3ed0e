package engine

import (
	"fmt"
	"math/rand"
	"regexp"
)

// placeholderPattern matches the flat {field} substitution syntax. The
// conversation graph's templates only ever reference collected-data fields
// by name, so there is no nested path dialect here.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderTemplate substitutes {field} occurrences from data, removing any
// placeholder whose field isn't present.
func RenderTemplate(tpl string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := data[name]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// PickMessage chooses between config's primary "message" and "alternatives"
// with an intentional 50/50 jitter, rendered against data. rnd is
// injected so callers can make the choice deterministic in tests.
func PickMessage(message string, alternatives []string, data map[string]any, rnd *rand.Rand) string {
	if len(alternatives) > 0 && rnd.Float64() < 0.5 {
		idx := rnd.Intn(len(alternatives))
		return RenderTemplate(alternatives[idx], data)
	}
	return RenderTemplate(message, data)
}
