package validators

import "strings"

// urgencyBuckets is the closed set of normalized urgency values.
const (
	UrgencyImmediate = "imediata"
	UrgencyThisWeek   = "esta_semana"
	UrgencyThisMonth  = "este_mes"
	UrgencyNoPressure = "sem_pressa"
)

// urgencyKeywords maps free-text phrases to a normalized bucket. Checked in
// the order listed so more specific phrases win over generic ones.
var urgencyKeywords = []struct {
	bucket   string
	keywords []string
}{
	{UrgencyImmediate, []string{"urgente", "imediat", "agora", "hoje", "o quanto antes", "já"}},
	{UrgencyThisWeek, []string{"esta semana", "essa semana", "nessa semana", "próximos dias"}},
	{UrgencyThisMonth, []string{"este mes", "este mês", "esse mes", "esse mês", "próximo mes", "próximo mês"}},
	{UrgencyNoPressure, []string{"sem pressa", "sem urgência", "sem urgencia", "quando der", "futuramente", "ainda não sei", "ainda nao sei"}},
}

// NormalizeUrgency maps free text to one of the four canonical buckets,
// defaulting to UrgencyNoPressure when nothing matches.
func NormalizeUrgency(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, bucket := range []string{UrgencyImmediate, UrgencyThisWeek, UrgencyThisMonth, UrgencyNoPressure} {
		if lower == bucket {
			return bucket
		}
	}
	for _, entry := range urgencyKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.bucket
			}
		}
	}
	return UrgencyNoPressure
}

// checkUrgency always succeeds; urgency free text is lossy-mapped rather than
// rejected: the normalizer stage turns every answer into one of the buckets.
func checkUrgency(string) (bool, string) {
	return true, ""
}
