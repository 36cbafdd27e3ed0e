// Package scorer implements the deterministic lead-scoring model:
// five weighted categories summed and clamped to [0, 100], bucketed into a
// temperature, with deterministic human-readable reasons and recommendations.
package scorer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Temperature is the closed set of lead-heat buckets.
type Temperature string

const (
	Hot  Temperature = "hot"
	Warm Temperature = "warm"
	Cold Temperature = "cold"
)

// Category is the closed set of scoring dimensions.
type Category string

const (
	CategoryDataCompleteness Category = "data_completeness"
	CategoryEngagement       Category = "engagement"
	CategoryUrgency          Category = "urgency"
	CategoryQualification    Category = "qualification"
	CategoryBehavior         Category = "behavior"
)

// Breakdown is the per-category contribution to the total score.
type Breakdown struct {
	Category  Category `json:"category"`
	Points    int      `json:"points"`
	MaxPoints int      `json:"max_points"`
	Factors   []string `json:"factors"`
}

// Percentage returns the breakdown's points as a percentage of its cap.
func (b Breakdown) Percentage() float64 {
	if b.MaxPoints == 0 {
		return 0
	}
	return round1(float64(b.Points) / float64(b.MaxPoints) * 100)
}

// Score is the complete scoring result for one conversation.
type Score struct {
	Total           int                  `json:"total"`
	MaxPossible     int                  `json:"max_possible"`
	Temperature     Temperature          `json:"temperature"`
	Breakdown       map[Category]Breakdown `json:"breakdown"`
	Reasons         []string             `json:"reasons"`
	Recommendations []string             `json:"recommendations"`
}

// Percentage returns the total score as a percentage of MaxPossible.
func (s Score) Percentage() float64 {
	if s.MaxPossible == 0 {
		return 0
	}
	return round1(float64(s.Total) / float64(s.MaxPossible) * 100)
}

// Metrics are conversation-level signals the behavior/engagement categories
// draw on, derived by the engine from a Context.
type Metrics struct {
	TotalMessages           int
	LeadMessages            int
	AgentMessages           int
	AvgResponseTimeSeconds  float64
	TotalDurationMinutes    float64
	RetriesPerField         map[string]int
	FieldsCollectedCount    int
	QuestionsAskedByLead    int
	SentimentScores         []string
}

// DefaultFieldWeights are the per-field points used when a tenant supplies
// no weights of its own.
var DefaultFieldWeights = map[string]int{
	"nome":            10,
	"telefone":        15,
	"email":           10,
	"cidade":          5,
	"interesse":       20,
	"orcamento":       25,
	"urgencia":        15,
	"cep":             5,
	"endereco":        5,
	"cpf":             5,
	"data_nascimento": 3,
	"produto":         10,
	"modelo":          8,
}

// urgencyKeywordScores maps urgency phrasings to points, checked in
// descending-score order so the strongest matching keyword wins.
var urgencyKeywordScores = []struct {
	keyword string
	score   int
}{
	{"imediata", 20}, {"urgente", 20}, {"imediato", 20},
	{"agora", 18}, {"hoje", 18},
	{"amanha", 15}, {"amanhã", 15},
	{"esta semana", 12}, {"essa semana", 12},
	{"esse mes", 8}, {"este mês", 8},
	{"proximo mes", 5}, {"próximo mês", 5},
	{"pesquisando", 2},
	{"sem pressa", 1},
}

var urgentInterestWords = []string{"urgente", "preciso", "rapido", "rápido", "imediato"}

// Calculate computes the full score breakdown for one conversation, grounded
// weights may be nil to use
// DefaultFieldWeights.
func Calculate(data map[string]any, metrics Metrics, weights map[string]int) Score {
	if weights == nil {
		weights = DefaultFieldWeights
	}

	dataScore := calculateDataScore(data, weights)
	engagementScore := calculateEngagementScore(metrics)
	urgencyScore := calculateUrgencyScore(data)
	qualificationScore := calculateQualificationScore(data)
	behaviorScore := calculateBehaviorScore(data, metrics)

	total := dataScore.Points + engagementScore.Points + urgencyScore.Points +
		qualificationScore.Points + behaviorScore.Points
	total = clamp(total, 0, 100)

	temperature := temperatureFor(total)

	return Score{
		Total:       total,
		MaxPossible: 100,
		Temperature: temperature,
		Breakdown: map[Category]Breakdown{
			CategoryDataCompleteness: dataScore,
			CategoryEngagement:       engagementScore,
			CategoryUrgency:          urgencyScore,
			CategoryQualification:    qualificationScore,
			CategoryBehavior:         behaviorScore,
		},
		Reasons:         buildReasons(data, metrics),
		Recommendations: buildRecommendations(temperature, data),
	}
}

// QuickScore runs Calculate with zero-value Metrics, for callers that only
// need total/temperature without a conversation history.
func QuickScore(data map[string]any) (int, Temperature) {
	s := Calculate(data, Metrics{}, nil)
	return s.Total, s.Temperature
}

func calculateDataScore(data map[string]any, weights map[string]int) Breakdown {
	points := 0
	var factors []string
	// Deterministic factor ordering: sort field names so Factors is stable.
	fields := make([]string, 0, len(weights))
	for f := range weights {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, field := range fields {
		weight := weights[field]
		if v, ok := data[field]; ok && isPresent(v) {
			points += weight
			factors = append(factors, fmt.Sprintf("%s: +%d", field, weight))
		}
	}
	return Breakdown{Category: CategoryDataCompleteness, Points: clamp(points, 0, 50), MaxPoints: 50, Factors: factors}
}

func calculateEngagementScore(m Metrics) Breakdown {
	points := 0
	var factors []string
	if m.AvgResponseTimeSeconds > 0 && m.AvgResponseTimeSeconds < 60 {
		points += 5
		factors = append(factors, "resposta_rapida: +5")
	}
	if m.QuestionsAskedByLead >= 2 {
		points += 5
		factors = append(factors, "multiplas_perguntas: +5")
	}
	if m.LeadMessages >= 5 {
		points += 5
		factors = append(factors, "conversa_engajada: +5")
	}
	if m.FieldsCollectedCount >= 5 {
		points += 5
		factors = append(factors, "todas_respostas: +5")
	}
	return Breakdown{Category: CategoryEngagement, Points: clamp(points, 0, 20), MaxPoints: 20, Factors: factors}
}

func calculateUrgencyScore(data map[string]any) Breakdown {
	points := 0
	var factors []string

	urgency := strings.ToLower(stringField(data, "urgencia"))
	for _, kw := range urgencyKeywordScores {
		if strings.Contains(urgency, kw.keyword) {
			if kw.score > points {
				points = kw.score
			}
			factors = append(factors, fmt.Sprintf("urgencia '%s': +%d", kw.keyword, kw.score))
			break
		}
	}

	interesse := strings.ToLower(stringField(data, "interesse"))
	for _, word := range urgentInterestWords {
		if strings.Contains(interesse, word) {
			points += 5
			factors = append(factors, "interesse indica urgência: +5")
			break
		}
	}

	return Breakdown{Category: CategoryUrgency, Points: clamp(points, 0, 20), MaxPoints: 20, Factors: factors}
}

func calculateQualificationScore(data map[string]any) Breakdown {
	points := 0
	var factors []string

	budget := ParseBudget(data["orcamento"])

	if v := strings.ToLower(stringField(data, "urgencia")); v == "imediata" || v == "urgente" || v == "imediato" || v == "agora" || v == "hoje" {
		points += 15
		factors = append(factors, "urgencia_imediata: +15")
	}
	if budget > 50000 {
		points += 10
		factors = append(factors, "orcamento_alto: +10")
	} else if budget >= 10000 && budget <= 50000 {
		points += 5
		factors = append(factors, "orcamento_medio: +5")
	}
	if len(stringField(data, "interesse")) > 20 {
		points += 8
		factors = append(factors, "interesse_especifico: +8")
	}
	if isPresent(data["telefone"]) && isPresent(data["email"]) {
		points += 10
		factors = append(factors, "contato_completo: +10")
	}
	if isPresent(data["nome"]) && isPresent(data["cpf"]) {
		points += 5
		factors = append(factors, "identificacao_completa: +5")
	}
	if isPresent(data["cidade"]) && (isPresent(data["cep"]) || isPresent(data["endereco"])) {
		points += 5
		factors = append(factors, "localizacao_completa: +5")
	}

	return Breakdown{Category: CategoryQualification, Points: clamp(points, 0, 30), MaxPoints: 30, Factors: factors}
}

func calculateBehaviorScore(data map[string]any, m Metrics) Breakdown {
	points := 0
	var factors []string

	if maxRetries(m.RetriesPerField) > 3 {
		points -= 10
		factors = append(factors, "muitos_retries: -10")
	}
	if m.LeadMessages > 0 && m.AvgResponseTimeSeconds > 0 && m.AvgResponseTimeSeconds < 2 {
		points -= 5
		factors = append(factors, "respostas_muito_curtas: -5")
	}
	if m.AvgResponseTimeSeconds > 300 {
		points -= 5
		factors = append(factors, "demora_responder: -5")
	}
	if m.TotalDurationMinutes > 60 {
		points -= 5
		factors = append(factors, "conversa_muito_longa: -5")
	}
	if containsString(m.SentimentScores, "negative") {
		points -= 10
		factors = append(factors, "sentimento_negativo: -10")
	}

	points += 10 // neutral baseline

	if len(factors) == 0 {
		factors = []string{"comportamento neutro: +10"}
	}

	return Breakdown{Category: CategoryBehavior, Points: clamp(points, -10, 10), MaxPoints: 10, Factors: factors}
}

func temperatureFor(total int) Temperature {
	switch {
	case total >= 80:
		return Hot
	case total >= 50:
		return Warm
	default:
		return Cold
	}
}

func buildReasons(data map[string]any, m Metrics) []string {
	var reasons []string

	present := 0
	for _, v := range data {
		if isPresent(v) {
			present++
		}
	}
	switch {
	case present >= 5:
		reasons = append(reasons, fmt.Sprintf("Dados completos (%d campos coletados)", present))
	case present >= 3:
		reasons = append(reasons, fmt.Sprintf("Dados parciais (%d campos coletados)", present))
	default:
		reasons = append(reasons, fmt.Sprintf("Poucos dados coletados (%d campos)", present))
	}

	hasPhone := isPresent(data["telefone"])
	hasEmail := isPresent(data["email"])
	switch {
	case hasPhone && hasEmail:
		reasons = append(reasons, "Contato completo (telefone e email)")
	case hasPhone:
		reasons = append(reasons, "Telefone informado")
	case hasEmail:
		reasons = append(reasons, "Email informado")
	}

	urgency := strings.ToLower(stringField(data, "urgencia"))
	switch {
	case containsAny(urgency, "imediata", "urgente", "imediato"):
		reasons = append(reasons, "Urgência alta")
	case containsAny(urgency, "semana", "esta"):
		reasons = append(reasons, "Urgência média")
	}

	budget := ParseBudget(data["orcamento"])
	switch {
	case budget > 50000:
		reasons = append(reasons, fmt.Sprintf("Orçamento alto (R$ %s)", formatThousands(budget)))
	case budget > 10000:
		reasons = append(reasons, fmt.Sprintf("Orçamento médio (R$ %s)", formatThousands(budget)))
	}

	if m.QuestionsAskedByLead >= 2 {
		reasons = append(reasons, "Lead fez perguntas (engajamento alto)")
	}

	return reasons
}

func buildRecommendations(temperature Temperature, data map[string]any) []string {
	var recs []string

	switch temperature {
	case Hot:
		recs = append(recs, "Entrar em contato imediatamente", "Preparar proposta personalizada")
	case Warm:
		recs = append(recs, "Enviar mais informações")
		if !isPresent(data["email"]) {
			recs = append(recs, "Tentar coletar email para follow-up")
		}
		recs = append(recs, "Agendar follow-up em 24h")
	default:
		recs = append(recs, "Nutrir com conteúdo educativo", "Agendar follow-up em 3-5 dias")
	}

	var missing []string
	if !isPresent(data["telefone"]) {
		missing = append(missing, "telefone")
	}
	if !isPresent(data["email"]) {
		missing = append(missing, "email")
	}
	if !isPresent(data["orcamento"]) {
		missing = append(missing, "orçamento")
	}
	if len(missing) > 0 {
		recs = append(recs, fmt.Sprintf("Coletar: %s", strings.Join(missing, ", ")))
	}

	return recs
}

var budgetCleanPattern = regexp.MustCompile(`[R$\s,.]`)
var budgetUnitPattern = regexp.MustCompile(`(?i)(mil|reais|k)`)

// ParseBudget parses a free-form budget value into reais. Distinct from the
// currency field validator, which targets the question-answer pipeline
// rather than scoring.
func ParseBudget(value any) float64 {
	if value == nil {
		return 0
	}
	str := fmt.Sprint(value)
	if strings.TrimSpace(str) == "" {
		return 0
	}
	cleaned := budgetCleanPattern.ReplaceAllString(str, "")
	cleaned = budgetUnitPattern.ReplaceAllString(cleaned, "")
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	lower := strings.ToLower(str)
	if strings.Contains(lower, "mil") || strings.Contains(lower, "k") {
		n *= 1000
	}
	return n
}

func isPresent(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) != ""
	case bool:
		return val
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

func stringField(data map[string]any, field string) string {
	v, ok := data[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func maxRetries(m map[string]int) int {
	max := 0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

func formatThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ".")
	if neg {
		out = "-" + out
	}
	return out
}
