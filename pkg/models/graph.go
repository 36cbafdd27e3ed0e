package models

// NodeKind is the closed tagged-sum of node types the engine dispatches on. Unknown
// kinds only ever occur at the graph-loading boundary; the handler table is exhaustive
// over this type.
type NodeKind string

const (
	// Utterance
	KindGreeting NodeKind = "GREETING"
	KindMessage  NodeKind = "MESSAGE"
	KindEnd      NodeKind = "END"

	// Input
	KindQuestion    NodeKind = "QUESTION"
	KindName        NodeKind = "NAME"
	KindEmail       NodeKind = "EMAIL"
	KindPhone       NodeKind = "PHONE"
	KindCity        NodeKind = "CITY"
	KindAddress     NodeKind = "ADDRESS"
	KindTaxIDPerson NodeKind = "TAXID_PERSON"
	KindBirthdate   NodeKind = "BIRTHDATE"
	KindInterest    NodeKind = "INTEREST"
	KindBudget      NodeKind = "BUDGET"
	KindUrgency     NodeKind = "URGENCY"

	// Branching
	KindCondition     NodeKind = "CONDITION"
	KindSwitch        NodeKind = "SWITCH"
	KindQualification NodeKind = "QUALIFICATION"

	// Side-effect
	KindAction         NodeKind = "ACTION"
	KindWebhookCall    NodeKind = "WEBHOOK_CALL"
	KindAPIIntegration NodeKind = "API_INTEGRATION"
	KindNotification   NodeKind = "NOTIFICATION"
	KindAlert          NodeKind = "ALERT"
	KindFollowup       NodeKind = "FOLLOWUP"
	KindProposal       NodeKind = "PROPOSAL"
	KindNegotiation    NodeKind = "NEGOTIATION"
	KindScheduling     NodeKind = "SCHEDULING"
	KindVisit          NodeKind = "VISIT"

	// Media
	KindImage    NodeKind = "IMAGE"
	KindDocument NodeKind = "DOCUMENT"
	KindAudio    NodeKind = "AUDIO"
	KindVideo    NodeKind = "VIDEO"

	// Control
	KindDelay    NodeKind = "DELAY"
	KindLoop     NodeKind = "LOOP"
	KindParallel NodeKind = "PARALLEL"
	KindHandoff  NodeKind = "HANDOFF"
)

// typedInputFieldKinds maps the typed-shortcut input kinds to their default
// field name and validator kind.
var typedInputFieldKinds = map[NodeKind]struct {
	FieldName string
	Validator FieldKind
}{
	KindName:        {"nome", FieldName_},
	KindEmail:       {"email", FieldEmail},
	KindPhone:       {"telefone", FieldPhone},
	KindCity:        {"cidade", FieldCity},
	KindAddress:     {"endereco", FieldAddress},
	KindTaxIDPerson: {"cpf", FieldTaxIDPerson},
	KindBirthdate:   {"data_nascimento", FieldBirthdate},
	KindInterest:    {"interesse", FieldInterest},
	KindBudget:      {"orcamento", FieldCurrency},
	KindUrgency:     {"urgencia", FieldUrgency},
}

// DefaultFieldFor returns the default field name and validator kind for a typed-input
// node kind. The second return is false for QUESTION and any non-input kind, where the
// node's config must supply both explicitly.
func DefaultFieldFor(k NodeKind) (fieldName string, validator FieldKind, ok bool) {
	d, ok := typedInputFieldKinds[k]
	return d.FieldName, d.Validator, ok
}

// IsTerminalKind reports whether a node kind never has an outgoing transition of its own
// (HANDOFF and END are the only unconditionally terminal kinds).
func IsTerminalKind(k NodeKind) bool {
	return k == KindHandoff || k == KindEnd
}

// Node is one vertex of the conversation graph. Different kinds use different
// transition slots; slots unused by a kind are left nil.
type Node struct {
	ID     string         `json:"id" yaml:"id"`
	Kind   NodeKind       `json:"type" yaml:"type"`
	Name   string         `json:"name" yaml:"name"`
	Config map[string]any `json:"config" yaml:"config"`

	Next     *string           `json:"next_node_id,omitempty" yaml:"next_node_id,omitempty"`
	OnTrue   *string           `json:"true_node_id,omitempty" yaml:"true_node_id,omitempty"`
	OnFalse  *string           `json:"false_node_id,omitempty" yaml:"false_node_id,omitempty"`
	Cases    map[string]string `json:"case_node_ids,omitempty" yaml:"case_node_ids,omitempty"`
	Parallel []string          `json:"parallel_node_ids,omitempty" yaml:"parallel_node_ids,omitempty"`

	Position map[string]any `json:"position,omitempty" yaml:"position,omitempty"`
}

// ConfigString returns a string config value, or the given default when absent or of
// the wrong type.
func (n *Node) ConfigString(key, def string) string {
	if n.Config == nil {
		return def
	}
	if v, ok := n.Config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// ConfigInt returns an int config value, or the given default when absent.
func (n *Node) ConfigInt(key string, def int) int {
	if n.Config == nil {
		return def
	}
	switch v := n.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// ConfigBool returns a bool config value, or the given default when absent.
func (n *Node) ConfigBool(key string, def bool) bool {
	if n.Config == nil {
		return def
	}
	if v, ok := n.Config[key].(bool); ok {
		return v
	}
	return def
}

// Edge is advisory: the graph's authoritative transitions come from the node
// transition slots. Edges exist for visual tooling and for the autocorrector's
// reference-integrity pass.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// GlobalConfig holds graph-wide defaults.
type GlobalConfig struct {
	MandatoryFields         []string       `json:"mandatory_fields" yaml:"mandatory_fields"`
	MessageTimeoutSeconds   int            `json:"message_timeout_seconds" yaml:"message_timeout_seconds"`
	SessionTimeoutSeconds   int            `json:"session_timeout_seconds" yaml:"session_timeout_seconds"`
	IdleFollowupSeconds     int            `json:"idle_followup_seconds" yaml:"idle_followup_seconds"`
	MaxRetries              int            `json:"max_retries" yaml:"max_retries"`
	QualificationWeights    map[string]int `json:"qualification_weights" yaml:"qualification_weights"`
	QualificationThreshold  int            `json:"qualification_threshold" yaml:"qualification_threshold"`
	TimeoutMessage          string         `json:"timeout_message" yaml:"timeout_message"`
	ValidationErrorMessage  string         `json:"validation_error_message" yaml:"validation_error_message"`
	FarewellMessage         string         `json:"farewell_message" yaml:"farewell_message"`
}

// DefaultGlobalConfig returns the stock graph-wide defaults.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		MandatoryFields:        nil,
		MessageTimeoutSeconds:  300,
		SessionTimeoutSeconds:  1800,
		IdleFollowupSeconds:    600,
		MaxRetries:             3,
		QualificationWeights:   map[string]int{},
		QualificationThreshold: 70,
		TimeoutMessage:         "Nossa conversa expirou por inatividade. Se precisar, é só chamar novamente!",
		ValidationErrorMessage: "Não entendi sua resposta, pode tentar novamente?",
		FarewellMessage:        "Atendimento encerrado. Obrigado!",
	}
}

// Graph is immutable after load: every conversation reads the same instance.
type Graph struct {
	Nodes       map[string]*Node `json:"-" yaml:"-"`
	NodeOrder   []string         `json:"-" yaml:"-"`
	Edges       []Edge           `json:"edges" yaml:"edges"`
	StartNodeID string           `json:"start_node_id" yaml:"start_node_id"`
	Version     string           `json:"version" yaml:"version"`
	GlobalCfg   GlobalConfig      `json:"global_config" yaml:"global_config"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]any   `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// GetNode looks the node up by ID, returning ok=false when absent.
func (g *Graph) GetNode(id string) (*Node, bool) {
	if g.Nodes == nil {
		return nil, false
	}
	n, ok := g.Nodes[id]
	return n, ok
}

// NodesInOrder returns the nodes in the order they were declared on load, for
// byte-stable JSON round-tripping.
func (g *Graph) NodesInOrder() []*Node {
	out := make([]*Node, 0, len(g.NodeOrder))
	for _, id := range g.NodeOrder {
		if n, ok := g.Nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Severity is the diagnostic severity emitted by the autocorrector/validator.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Diagnostic is one finding from loading/validating a graph.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	Message  string   `json:"message"`
}

// HasErrors reports whether any diagnostic is ERROR-level; the engine refuses to run
// only in that case.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
