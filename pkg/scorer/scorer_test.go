package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBudget(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"plain number", "500000", 500000},
		{"with currency symbol strips separators", "R$ 50.000,00", 5000000},
		{"with mil suffix", "50 mil", 50000},
		{"nil", nil, 0},
		{"unparseable", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseBudget(tt.value), 0.01)
		})
	}
}

func TestCalculate_HotLead(t *testing.T) {
	data := map[string]any{
		"nome":      "Maria Silva",
		"telefone":  "11999998888",
		"email":     "maria@example.com",
		"cidade":    "São Paulo",
		"interesse": "Apartamento de 3 quartos na zona sul, com vaga de garagem",
		"orcamento": "800000",
		"urgencia":  "imediata",
		"cep":       "01310100",
		"cpf":       "11144477735",
	}
	metrics := Metrics{
		QuestionsAskedByLead:   3,
		LeadMessages:           6,
		FieldsCollectedCount:   9,
		AvgResponseTimeSeconds: 30,
	}

	score := Calculate(data, metrics, nil)
	assert.Equal(t, Hot, score.Temperature)
	assert.GreaterOrEqual(t, score.Total, 80)
	assert.LessOrEqual(t, score.Total, 100)
	assert.Contains(t, score.Recommendations, "Entrar em contato imediatamente")
}

func TestCalculate_ColdLead(t *testing.T) {
	data := map[string]any{"nome": "João"}
	score := Calculate(data, Metrics{}, nil)
	assert.Equal(t, Cold, score.Temperature)
	assert.Less(t, score.Total, 50)
}

func TestCalculate_BehaviorPenalties(t *testing.T) {
	data := map[string]any{"nome": "João"}
	metrics := Metrics{
		RetriesPerField: map[string]int{"telefone": 5},
		SentimentScores: []string{"negative"},
	}
	score := Calculate(data, metrics, nil)
	behavior := score.Breakdown[CategoryBehavior]
	assert.Equal(t, -10, behavior.Points)
}

func TestCalculate_ClampsTotalToZeroAndHundred(t *testing.T) {
	score := Calculate(map[string]any{}, Metrics{}, nil)
	assert.GreaterOrEqual(t, score.Total, 0)
	assert.LessOrEqual(t, score.Total, 100)
}

func TestQuickScore(t *testing.T) {
	total, temp := QuickScore(map[string]any{"orcamento": "100000", "urgencia": "urgente"})
	assert.Greater(t, total, 0)
	assert.NotEmpty(t, temp)
}

func TestCalculate_Deterministic(t *testing.T) {
	data := map[string]any{
		"nome":      "Maria Silva",
		"telefone":  "11999998888",
		"interesse": "Quero comprar um apartamento na zona sul",
		"orcamento": "R$ 800.000",
		"urgencia":  "imediata",
	}
	metrics := Metrics{LeadMessages: 6, QuestionsAskedByLead: 2, AvgResponseTimeSeconds: 45}

	first := Calculate(data, metrics, nil)
	second := Calculate(data, metrics, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestBreakdownPercentage(t *testing.T) {
	b := Breakdown{Points: 25, MaxPoints: 50}
	assert.Equal(t, 50.0, b.Percentage())
}

func TestCalculate_MissingDataRecommendation(t *testing.T) {
	score := Calculate(map[string]any{"nome": "João"}, Metrics{}, nil)
	found := false
	for _, r := range score.Recommendations {
		if r == "Coletar: telefone, email, orçamento" {
			found = true
		}
	}
	assert.True(t, found)
}
