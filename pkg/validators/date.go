package validators

import (
	"strings"
	"time"
)

// acceptedLayouts is the pinned list of date layouts tried in order.
var acceptedLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"2/1/2006",
}

// normalizeDate canonicalizes a date string to DD/MM/YYYY, falling back to
// dateparse.ParseAny for anything outside the pinned layout list.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006")
		}
	}
	if canonical, ok := fallbackDateParse(s); ok {
		return canonical
	}
	return s
}

func parseCanonical(s string) (time.Time, bool) {
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// checkDate enforces the year-bounds invariant (1900-2100). The value has
// already been canonicalized to DD/MM/YYYY by the cleaner.
func checkDate(s string) (bool, string) {
	t, ok := parseCanonical(s)
	if !ok {
		return false, ""
	}
	if t.Year() < 1900 || t.Year() > 2100 {
		return false, "Ano fora do intervalo permitido (1900-2100)"
	}
	return true, ""
}

// checkBirthDate additionally enforces the date be in the past and the
// resulting age be at most 150 years.
func checkBirthDate(s string) (bool, string) {
	ok, msg := checkDate(s)
	if !ok {
		return false, msg
	}
	t, _ := parseCanonical(s)
	now := time.Now()
	if !t.Before(now) {
		return false, "Data de nascimento deve estar no passado"
	}
	age := now.Year() - t.Year()
	if now.YearDay() < t.YearDay() {
		age--
	}
	if age > 150 {
		return false, "Data de nascimento inválida"
	}
	return true, ""
}
