package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/smilemakc/convoflow/pkg/models"
)

// yamlGraph mirrors the on-disk graph shape. A node's routing lives on the
// node itself (next/true/false/cases/parallel); the edge list is advisory
// and only consumed by visual tooling.
type yamlGraph struct {
	Name            string         `yaml:"name" json:"name"`
	Description     string         `yaml:"description" json:"description"`
	Version         string         `yaml:"version" json:"version"`
	StartNodeID     string         `yaml:"start_node_id" json:"start_node_id"`
	GlobalConfig    yamlGlobalCfg  `yaml:"global_config" json:"global_config"`
	Variables       map[string]any `yaml:"variables" json:"variables"`
	Nodes           []yamlNode     `yaml:"nodes" json:"nodes"`
	Edges           []yamlEdge     `yaml:"edges" json:"edges"`
}

type yamlGlobalCfg struct {
	MandatoryFields        []string       `yaml:"mandatory_fields" json:"mandatory_fields"`
	MessageTimeoutSeconds  int            `yaml:"message_timeout_seconds" json:"message_timeout_seconds"`
	SessionTimeoutSeconds  int            `yaml:"session_timeout_seconds" json:"session_timeout_seconds"`
	IdleFollowupSeconds    int            `yaml:"idle_followup_seconds" json:"idle_followup_seconds"`
	MaxRetries             int            `yaml:"max_retries" json:"max_retries"`
	QualificationWeights   map[string]int `yaml:"qualification_weights" json:"qualification_weights"`
	QualificationThreshold int            `yaml:"qualification_threshold" json:"qualification_threshold"`
	TimeoutMessage         string         `yaml:"timeout_message" json:"timeout_message"`
	ValidationErrorMessage string         `yaml:"validation_error_message" json:"validation_error_message"`
	FarewellMessage        string         `yaml:"farewell_message" json:"farewell_message"`
}

type yamlNode struct {
	ID       string         `yaml:"id" json:"id"`
	Type     string         `yaml:"type" json:"type"`
	Name     string         `yaml:"name" json:"name"`
	Config   map[string]any `yaml:"config" json:"config"`
	Next     *string        `yaml:"next_node_id" json:"next_node_id"`
	OnTrue   *string        `yaml:"true_node_id" json:"true_node_id"`
	OnFalse  *string        `yaml:"false_node_id" json:"false_node_id"`
	Cases    orderedCases   `yaml:"case_node_ids" json:"case_node_ids"`
	Parallel []string       `yaml:"parallel_node_ids" json:"parallel_node_ids"`
	Position map[string]any `yaml:"position" json:"position"`
}

// orderedCases decodes a case_node_ids object while remembering its key
// order. SWITCH tie-breaks iterate cases in definition order, and a plain Go
// map loses it; the remembered order is stashed in the node's config as
// case_order for the handler to consult.
type orderedCases struct {
	m     map[string]string
	order []string
}

// UnmarshalJSON walks the object token by token so key order survives.
func (c *orderedCases) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("graph: case_node_ids must be an object")
	}
	c.m = map[string]string{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("graph: case_node_ids key must be a string")
		}
		var target string
		if err := dec.Decode(&target); err != nil {
			return fmt.Errorf("graph: case_node_ids[%s] must be a node ID: %w", key, err)
		}
		if _, seen := c.m[key]; !seen {
			c.order = append(c.order, key)
		}
		c.m[key] = target
	}
	_, err = dec.Token() // closing brace
	return err
}

// UnmarshalYAML reads the mapping node's content pairs, which yaml.v3 keeps
// in document order.
func (c *orderedCases) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("graph: case_node_ids must be a mapping")
	}
	c.m = map[string]string{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		target := value.Content[i+1].Value
		if _, seen := c.m[key]; !seen {
			c.order = append(c.order, key)
		}
		c.m[key] = target
	}
	return nil
}

type yamlEdge struct {
	ID     string `yaml:"id" json:"id"`
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// LoadJSON parses a graph from JSON, autocorrects it, and runs the structural
// validator. Returns the canonical graph and any diagnostics; callers should
// check models.HasErrors(diags) before handing the graph to the engine.
func LoadJSON(data []byte) (*models.Graph, []models.Diagnostic, error) {
	var doc yamlGraph
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("graph: invalid JSON: %w", err)
	}
	return load(doc)
}

// LoadYAML parses a graph from YAML, autocorrects it, and runs the structural
// validator.
func LoadYAML(data []byte) (*models.Graph, []models.Diagnostic, error) {
	var doc yamlGraph
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("graph: invalid YAML: %w", err)
	}
	return load(doc)
}

func load(doc yamlGraph) (*models.Graph, []models.Diagnostic, error) {
	g := &models.Graph{
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		StartNodeID: doc.StartNodeID,
		Variables:   doc.Variables,
		Nodes:       make(map[string]*models.Node, len(doc.Nodes)),
		NodeOrder:   make([]string, 0, len(doc.Nodes)),
		Edges:       make([]models.Edge, 0, len(doc.Edges)),
		GlobalCfg: models.GlobalConfig{
			MandatoryFields:        doc.GlobalConfig.MandatoryFields,
			MessageTimeoutSeconds:  doc.GlobalConfig.MessageTimeoutSeconds,
			SessionTimeoutSeconds:  doc.GlobalConfig.SessionTimeoutSeconds,
			IdleFollowupSeconds:    doc.GlobalConfig.IdleFollowupSeconds,
			MaxRetries:             doc.GlobalConfig.MaxRetries,
			QualificationWeights:   doc.GlobalConfig.QualificationWeights,
			QualificationThreshold: doc.GlobalConfig.QualificationThreshold,
			TimeoutMessage:         doc.GlobalConfig.TimeoutMessage,
			ValidationErrorMessage: doc.GlobalConfig.ValidationErrorMessage,
			FarewellMessage:        doc.GlobalConfig.FarewellMessage,
		},
	}

	for i, n := range doc.Nodes {
		id := n.ID
		if id == "" {
			id = synthesizeNodeID(i)
		}
		config := n.Config
		if len(n.Cases.order) > 0 {
			if config == nil {
				config = map[string]any{}
			}
			// Hand-supplied case_order wins; otherwise carry the wire order.
			if _, ok := config["case_order"]; !ok {
				config["case_order"] = append([]string{}, n.Cases.order...)
			}
		}
		g.Nodes[id] = &models.Node{
			ID:       id,
			Kind:     models.NodeKind(n.Type),
			Name:     n.Name,
			Config:   config,
			Next:     n.Next,
			OnTrue:   n.OnTrue,
			OnFalse:  n.OnFalse,
			Cases:    n.Cases.m,
			Parallel: n.Parallel,
			Position: n.Position,
		}
		g.NodeOrder = append(g.NodeOrder, id)
	}

	for _, e := range doc.Edges {
		g.Edges = append(g.Edges, models.Edge{ID: e.ID, Source: e.Source, Target: e.Target})
	}

	g = Autocorrect(g)
	diags := Validate(g)
	return g, diags, nil
}
