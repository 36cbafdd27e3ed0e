// Package validators implements the field-validation pipeline: per-field-kind
// parse/clean/check, producing a cleaned value or a typed error.
package validators

import (
	"regexp"
	"strings"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/smilemakc/convoflow/pkg/models"
)

// Result is the outcome of validating a single field.
type Result struct {
	IsValid       bool
	CleanedValue  string
	ErrorMessage  string
	ErrorCode     models.ErrorCode
	OriginalValue string
}

type cleanerFunc func(string) string
type checkerFunc func(string) (bool, string)
type normalizerFunc func(string) string

// config is the per-field-kind pipeline description.
type config struct {
	Pattern      *regexp.Regexp
	MinLen       int
	MaxLen       int
	Cleaner      cleanerFunc
	Checker      checkerFunc
	Normalizer   normalizerFunc
	ErrorMessage string
}

var titleCaser = cases.Title(language.BrazilianPortuguese)

var emailPattern = regexp.MustCompile(`^[\w.+-]+@[\w.-]+\.[a-zA-Z]{2,}$`)
var phonePattern = regexp.MustCompile(`^\d{10,11}$`)
var taxIDPersonPattern = regexp.MustCompile(`^\d{11}$`)
var taxIDOrgPattern = regexp.MustCompile(`^\d{14}$`)
var cepPattern = regexp.MustCompile(`^\d{8}$`)
var dateCanonicalPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
var nonDigit = regexp.MustCompile(`\D`)

// registry holds one config per FieldKind, built as a value once at package
// init; the pipeline carries no mutable state.
var registry = map[models.FieldKind]config{
	models.FieldEmail: {
		Pattern:      emailPattern,
		MinLen:       5,
		MaxLen:       254,
		Cleaner:      func(s string) string { return strings.ToLower(strings.TrimSpace(s)) },
		ErrorMessage: "Email inválido. Exemplo: nome@email.com",
	},
	models.FieldPhone: {
		Pattern:      phonePattern,
		MinLen:       10,
		MaxLen:       11,
		Cleaner:      cleanPhone,
		ErrorMessage: "Telefone inválido. Informe DDD + número (ex: 11999998888)",
	},
	models.FieldTaxIDPerson: {
		Pattern:      taxIDPersonPattern,
		Cleaner:      func(s string) string { return nonDigit.ReplaceAllString(s, "") },
		Checker:      checkCPF,
		ErrorMessage: "CPF inválido. Verifique os dígitos informados.",
	},
	models.FieldTaxIDOrg: {
		Pattern:      taxIDOrgPattern,
		Cleaner:      func(s string) string { return nonDigit.ReplaceAllString(s, "") },
		Checker:      checkCNPJ,
		ErrorMessage: "CNPJ inválido. Verifique os dígitos informados.",
	},
	models.FieldCEP: {
		Pattern:      cepPattern,
		Cleaner:      func(s string) string { return nonDigit.ReplaceAllString(s, "") },
		ErrorMessage: "CEP inválido. Informe 8 dígitos (ex: 01310100)",
	},
	models.FieldDate: {
		// normalizeDate runs as the cleaner so accepted layouts
		// (DD-MM-YYYY, YYYY-MM-DD, ...) are canonical before the pattern
		// gate; unparseable input stays as-is and fails the pattern.
		Pattern:      dateCanonicalPattern,
		Cleaner:      normalizeDate,
		Checker:      checkDate,
		ErrorMessage: "Data inválida. Use o formato DD/MM/AAAA",
	},
	models.FieldBirthdate: {
		Pattern:      dateCanonicalPattern,
		Cleaner:      normalizeDate,
		Checker:      checkBirthDate,
		ErrorMessage: "Data de nascimento inválida. Use o formato DD/MM/AAAA",
	},
	models.FieldName_: {
		MinLen:       2,
		MaxLen:       100,
		Cleaner:      collapseWhitespace,
		Normalizer:   func(s string) string { return titleCaser.String(s) },
		ErrorMessage: "Nome inválido. Informe pelo menos 2 caracteres.",
	},
	models.FieldCity: {
		MinLen:       2,
		MaxLen:       100,
		Cleaner:      collapseWhitespace,
		Normalizer:   func(s string) string { return titleCaser.String(s) },
		ErrorMessage: "Cidade inválida. Informe o nome da cidade.",
	},
	models.FieldAddress: {
		MinLen:       5,
		MaxLen:       200,
		Cleaner:      collapseWhitespace,
		ErrorMessage: "Endereço inválido. Informe o endereço completo.",
	},
	models.FieldCurrency: {
		Cleaner:      cleanCurrency,
		Checker:      checkCurrency,
		ErrorMessage: "Orçamento inválido. Informe um valor em reais.",
	},
	models.FieldUrgency: {
		Checker:      checkUrgency,
		Normalizer:   NormalizeUrgency,
		ErrorMessage: "Urgência inválida. Opções: imediata, esta semana, este mês, sem pressa",
	},
	models.FieldInterest: {
		MinLen:       3,
		MaxLen:       500,
		Cleaner:      strings.TrimSpace,
		ErrorMessage: "Interesse inválido. Descreva o que você está buscando.",
	},
}

// Validate runs the six-stage pipeline for one field: empty handling, clean,
// length, pattern, checker, normalize.
func Validate(kind models.FieldKind, raw string, required bool) Result {
	original := strings.TrimSpace(raw)

	// 1. Empty handling.
	if original == "" {
		if required {
			return Result{
				IsValid:   false,
				ErrorCode: models.ErrCodeRequired,
				ErrorMessage: "Este campo é obrigatório",
			}
		}
		return Result{IsValid: true}
	}

	cfg, known := registry[kind]
	if !known {
		return Result{IsValid: true, CleanedValue: original, OriginalValue: original}
	}

	value := original

	// 2. Clean.
	if cfg.Cleaner != nil {
		value = cfg.Cleaner(value)
	}

	// 3. Length.
	if cfg.MinLen > 0 && len(value) < cfg.MinLen {
		return Result{IsValid: false, ErrorCode: models.ErrCodeTooShort, ErrorMessage: cfg.ErrorMessage, OriginalValue: original}
	}
	if cfg.MaxLen > 0 && len(value) > cfg.MaxLen {
		return Result{IsValid: false, ErrorCode: models.ErrCodeTooLong, ErrorMessage: cfg.ErrorMessage, OriginalValue: original}
	}

	// 4. Pattern.
	if cfg.Pattern != nil && !cfg.Pattern.MatchString(value) {
		return Result{IsValid: false, ErrorCode: models.ErrCodeInvalidFormat, ErrorMessage: cfg.ErrorMessage, OriginalValue: original}
	}

	// 5. Checker.
	if cfg.Checker != nil {
		ok, msg := cfg.Checker(value)
		if !ok {
			code := models.ErrCodeInvalidValue
			if kind == models.FieldTaxIDPerson || kind == models.FieldTaxIDOrg {
				code = models.ErrCodeInvalidChecksum
			}
			if msg == "" {
				msg = cfg.ErrorMessage
			}
			return Result{IsValid: false, ErrorCode: code, ErrorMessage: msg, OriginalValue: original}
		}
	}

	// 6. Normalize.
	if cfg.Normalizer != nil {
		value = cfg.Normalizer(value)
	}

	return Result{IsValid: true, CleanedValue: value, OriginalValue: original}
}

// ManyResult is the outcome of running Validate over a map of fields.
type ManyResult struct {
	Cleaned map[string]string
	Errors  map[string]Result
}

// ValidateMany validates a set of raw field values against the kind each is mapped to,
// with a required flag per field.
func ValidateMany(raw map[string]string, kinds map[string]models.FieldKind, required map[string]bool) ManyResult {
	out := ManyResult{Cleaned: map[string]string{}, Errors: map[string]Result{}}
	for field, value := range raw {
		kind := kinds[field]
		r := Validate(kind, value, required[field])
		if r.IsValid {
			if r.CleanedValue != "" {
				out.Cleaned[field] = r.CleanedValue
			}
		} else {
			out.Errors[field] = r
		}
	}
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func cleanPhone(s string) string {
	digits := nonDigit.ReplaceAllString(s, "")
	if len(digits) >= 12 && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	return digits
}

// fallbackDateParse tries dateparse.ParseAny for layouts outside the pinned
// set, used only to widen acceptance; the date it returns is already in the
// canonical DD/MM/YYYY form.
func fallbackDateParse(s string) (canonical string, ok bool) {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format("02/01/2006"), true
}
