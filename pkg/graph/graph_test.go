package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/convoflow/pkg/models"
)

func diagCodes(diags []models.Diagnostic) []string {
	codes := make([]string, 0, len(diags))
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	return codes
}

func TestLoadJSONBasicGraph(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "greet",
		"version": "1",
		"nodes": [
			{"id": "greet", "type": "GREETING", "name": "Greeting", "config": {"message": "Oi!"}, "next_node_id": "name"},
			{"id": "name", "type": "NAME", "name": "Name", "config": {"prompt": "Seu nome?"}, "next_node_id": "end"},
			{"id": "end", "type": "END", "name": "End", "config": {}}
		]
	}`)

	g, diags, err := LoadJSON(raw)
	require.NoError(t, err)
	assert.False(t, models.HasErrors(diags))
	assert.Equal(t, "greet", g.StartNodeID)
	assert.Equal(t, []string{"greet", "name", "end"}, g.NodeOrder)

	name, ok := g.GetNode("name")
	require.True(t, ok)
	assert.Equal(t, "nome", name.ConfigString("field_name", ""))
	assert.Equal(t, "name", name.ConfigString("field_kind", ""))
}

func TestAutocorrectEmptyGraphSynthesizesGreeting(t *testing.T) {
	g, diags, err := LoadJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, models.HasErrors(diags))

	start, ok := g.GetNode(g.StartNodeID)
	require.True(t, ok)
	assert.Equal(t, models.KindGreeting, start.Kind)
	assert.NotEmpty(t, start.ConfigString("message", ""))
}

func TestAutocorrectFillsDefaults(t *testing.T) {
	raw := []byte(`{"nodes": [{"type": "MESSAGE", "config": {"message": "x"}}, {"id": "b", "config": {"message": "y"}}]}`)
	g, _, err := LoadJSON(raw)
	require.NoError(t, err)

	first, ok := g.GetNode("node_0")
	require.True(t, ok)
	assert.Equal(t, models.KindMessage, first.Kind)
	assert.Equal(t, "Node node_0", first.Name)

	second, ok := g.GetNode("b")
	require.True(t, ok)
	assert.Equal(t, models.KindMessage, second.Kind)
	assert.Equal(t, "node_0", g.StartNodeID)
}

func TestAutocorrectDropsDanglingReferences(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "a",
		"nodes": [
			{"id": "a", "type": "CONDITION", "config": {"field": "x", "operator": "equals", "value": 1},
			 "true_node_id": "missing", "false_node_id": "b", "case_node_ids": {"k": "also_missing"}},
			{"id": "b", "type": "END", "config": {}}
		],
		"edges": [
			{"id": "e1", "source": "a", "target": "b"},
			{"id": "e2", "source": "a", "target": "ghost"}
		]
	}`)

	g, diags, err := LoadJSON(raw)
	require.NoError(t, err)

	a, _ := g.GetNode("a")
	assert.Nil(t, a.OnTrue)
	require.NotNil(t, a.OnFalse)
	assert.Equal(t, "b", *a.OnFalse)
	assert.Empty(t, a.Cases)
	assert.Len(t, g.Edges, 1)
	assert.Contains(t, diagCodes(diags), "MISSING_ON_TRUE")
}

func TestAutocorrectIdempotent(t *testing.T) {
	raw := []byte(`{
		"nodes": [
			{"type": "GREETING", "next_node_id": "ghost"},
			{"id": "q", "type": "EMAIL", "config": {"prompt": "email?"}}
		]
	}`)
	g, _, err := LoadJSON(raw)
	require.NoError(t, err)

	before, err := json.Marshal(struct {
		Start string
		Nodes []*models.Node
	}{g.StartNodeID, g.NodesInOrder()})
	require.NoError(t, err)

	g2 := Autocorrect(g)
	after, err := json.Marshal(struct {
		Start string
		Nodes []*models.Node
	}{g2.StartNodeID, g2.NodesInOrder()})
	require.NoError(t, err)

	assert.JSONEq(t, string(before), string(after))
}

func TestValidateRequiredConfig(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "q",
		"nodes": [
			{"id": "q", "type": "QUESTION", "config": {}, "next_node_id": "hook"},
			{"id": "hook", "type": "WEBHOOK_CALL", "config": {}, "next_node_id": "h"},
			{"id": "h", "type": "HANDOFF", "config": {}}
		]
	}`)

	_, diags, err := LoadJSON(raw)
	require.NoError(t, err)
	assert.True(t, models.HasErrors(diags))

	codes := diagCodes(diags)
	assert.Contains(t, codes, "MISSING_PROMPT")
	assert.Contains(t, codes, "MISSING_FIELD_NAME")
	assert.Contains(t, codes, "MISSING_URL")
	assert.Contains(t, codes, "MISSING_CLIENT_MESSAGE")
}

func TestValidateInvalidOperator(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "c",
		"nodes": [
			{"id": "c", "type": "CONDITION", "config": {"field": "x", "operator": "spaceship"},
			 "true_node_id": "e", "false_node_id": "e"},
			{"id": "e", "type": "END", "config": {}}
		]
	}`)

	_, diags, err := LoadJSON(raw)
	require.NoError(t, err)
	assert.Contains(t, diagCodes(diags), "INVALID_OPERATOR")
}

func TestValidateOrphanDetection(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "a",
		"nodes": [
			{"id": "a", "type": "MESSAGE", "config": {"message": "x"}, "next_node_id": "b"},
			{"id": "b", "type": "END", "config": {}},
			{"id": "island", "type": "MESSAGE", "config": {"message": "y"}}
		]
	}`)

	_, diags, err := LoadJSON(raw)
	require.NoError(t, err)

	found := false
	for _, d := range diags {
		if d.Code == "ORPHAN_NODE" && d.NodeID == "island" {
			found = true
			assert.Equal(t, models.SeverityWarning, d.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidateCycleIsWarningOnly(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "a",
		"nodes": [
			{"id": "a", "type": "MESSAGE", "config": {"message": "x"}, "next_node_id": "b"},
			{"id": "b", "type": "MESSAGE", "config": {"message": "y"}, "next_node_id": "a"}
		]
	}`)

	_, diags, err := LoadJSON(raw)
	require.NoError(t, err)
	assert.Contains(t, diagCodes(diags), "CYCLE_DETECTED")
	assert.False(t, models.HasErrors(diags))
}

func TestValidateLoopBackEdgeNotChased(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "loop",
		"nodes": [
			{"id": "loop", "type": "LOOP", "config": {"loop_condition": "true", "max_iterations": 3},
			 "true_node_id": "loop", "false_node_id": "end"},
			{"id": "end", "type": "END", "config": {}}
		]
	}`)

	_, diags, err := LoadJSON(raw)
	require.NoError(t, err)
	assert.NotContains(t, diagCodes(diags), "CYCLE_DETECTED")
}

func TestValidateNegativeWeights(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "e",
		"nodes": [{"id": "e", "type": "END", "config": {}}],
		"global_config": {"session_timeout_seconds": 1800, "qualification_weights": {"nome": -5}}
	}`)

	_, diags, err := LoadJSON(raw)
	require.NoError(t, err)
	assert.Contains(t, diagCodes(diags), "NEGATIVE_WEIGHT")
	assert.True(t, models.HasErrors(diags))
}

func TestLoadJSONPreservesCaseOrder(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "sw",
		"nodes": [
			{"id": "sw", "type": "SWITCH", "config": {"field": "orcamento"},
			 "case_node_ids": {"zebra": "z", "alto": "a", "medio": "m", "default": "d"}},
			{"id": "z", "type": "END", "config": {}},
			{"id": "a", "type": "END", "config": {}},
			{"id": "m", "type": "END", "config": {}},
			{"id": "d", "type": "END", "config": {}}
		]
	}`)

	g, _, err := LoadJSON(raw)
	require.NoError(t, err)

	sw, ok := g.GetNode("sw")
	require.True(t, ok)
	assert.Equal(t, []string{"zebra", "alto", "medio", "default"}, sw.Config["case_order"])
	assert.Equal(t, map[string]string{"zebra": "z", "alto": "a", "medio": "m", "default": "d"}, sw.Cases)
}

func TestLoadJSONHandSuppliedCaseOrderWins(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "sw",
		"nodes": [
			{"id": "sw", "type": "SWITCH",
			 "config": {"field": "orcamento", "case_order": ["b", "a"]},
			 "case_node_ids": {"a": "x", "b": "x"}},
			{"id": "x", "type": "END", "config": {}}
		]
	}`)

	g, _, err := LoadJSON(raw)
	require.NoError(t, err)

	sw, _ := g.GetNode("sw")
	assert.Equal(t, []string{"b", "a"}, sw.Config["case_order"])
}

func TestAutocorrectPrunesDroppedCasesFromCaseOrder(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "sw",
		"nodes": [
			{"id": "sw", "type": "SWITCH", "config": {"field": "f"},
			 "case_node_ids": {"keep": "end", "dangling": "ghost"}},
			{"id": "end", "type": "END", "config": {}}
		]
	}`)

	g, _, err := LoadJSON(raw)
	require.NoError(t, err)

	sw, _ := g.GetNode("sw")
	assert.Equal(t, map[string]string{"keep": "end"}, sw.Cases)
	assert.Equal(t, []string{"keep"}, sw.Config["case_order"])
}

func TestLoadYAMLPreservesCaseOrder(t *testing.T) {
	raw := []byte(`
start_node_id: sw
nodes:
  - id: sw
    type: SWITCH
    config:
      field: orcamento
    case_node_ids:
      medio: m
      alto: a
      default: d
  - id: m
    type: END
    config: {}
  - id: a
    type: END
    config: {}
  - id: d
    type: END
    config: {}
`)

	g, _, err := LoadYAML(raw)
	require.NoError(t, err)

	sw, ok := g.GetNode("sw")
	require.True(t, ok)
	assert.Equal(t, []string{"medio", "alto", "default"}, sw.Config["case_order"])
}

func TestLoadYAML(t *testing.T) {
	raw := []byte(`
start_node_id: greet
nodes:
  - id: greet
    type: GREETING
    name: Saudar
    config:
      message: "Olá!"
    next_node_id: end
  - id: end
    type: END
    config: {}
`)

	g, diags, err := LoadYAML(raw)
	require.NoError(t, err)
	assert.False(t, models.HasErrors(diags))
	greet, ok := g.GetNode("greet")
	require.True(t, ok)
	assert.Equal(t, "Olá!", greet.ConfigString("message", ""))
}

func TestNavigatorResolve(t *testing.T) {
	next := "n2"
	onTrue := "t"
	onFalse := "f"
	node := &models.Node{
		ID:       "n1",
		Kind:     models.KindCondition,
		Next:     &next,
		OnTrue:   &onTrue,
		OnFalse:  &onFalse,
		Cases:    map[string]string{"a": "ca", "default": "cd"},
		Parallel: []string{"p0", "p1"},
	}

	tests := []struct {
		name    string
		outcome Outcome
		wantID  string
		wantOK  bool
	}{
		{"true branch", Outcome{Kind: OutcomeTrueBranch}, "t", true},
		{"false branch", Outcome{Kind: OutcomeFalseBranch}, "f", true},
		{"sequential", Outcome{Kind: OutcomeSequential}, "n2", true},
		{"switch match", Outcome{Kind: OutcomeSwitch, Key: "a"}, "ca", true},
		{"switch default", Outcome{Kind: OutcomeSwitch, Key: "zz"}, "cd", true},
		{"empty outcome is terminal", Outcome{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Resolve(node, tt.outcome)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNavigatorTerminalKinds(t *testing.T) {
	next := "x"
	end := &models.Node{ID: "end", Kind: models.KindEnd, Next: &next}
	_, ok := Resolve(end, Outcome{Kind: OutcomeSequential})
	assert.False(t, ok)

	handoff := &models.Node{ID: "h", Kind: models.KindHandoff}
	_, ok = Resolve(handoff, Outcome{Kind: OutcomeSequential})
	assert.False(t, ok)
}

func TestGraphJSONRoundTripPreservesTransitions(t *testing.T) {
	raw := []byte(`{
		"start_node_id": "sw",
		"version": "7",
		"nodes": [
			{"id": "sw", "type": "SWITCH", "name": "Budget switch",
			 "config": {"field": "orcamento", "case_order": ["alto", "baixo"]},
			 "case_node_ids": {"alto": "a", "baixo": "b", "default": "d"}},
			{"id": "a", "type": "END", "config": {}},
			{"id": "b", "type": "END", "config": {}},
			{"id": "d", "type": "END", "config": {}}
		]
	}`)

	g1, _, err := LoadJSON(raw)
	require.NoError(t, err)

	encoded, err := json.Marshal(struct {
		StartNodeID string         `json:"start_node_id"`
		Version     string         `json:"version"`
		Nodes       []*models.Node `json:"nodes"`
	}{g1.StartNodeID, g1.Version, g1.NodesInOrder()})
	require.NoError(t, err)

	g2, _, err := LoadJSON(encoded)
	require.NoError(t, err)

	assert.Equal(t, g1.StartNodeID, g2.StartNodeID)
	assert.Equal(t, g1.Version, g2.Version)
	assert.Equal(t, g1.NodeOrder, g2.NodeOrder)
	sw1, _ := g1.GetNode("sw")
	sw2, _ := g2.GetNode("sw")
	assert.Equal(t, sw1.Cases, sw2.Cases)
	assert.Equal(t, sw1.Config["field"], sw2.Config["field"])
}
