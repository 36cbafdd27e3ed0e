// Package graph implements the graph loader/autocorrector, structural
// validator, and pure Navigator over the canonical conversation-flow Graph
// in pkg/models.
package graph

import (
	"fmt"

	"github.com/smilemakc/convoflow/pkg/models"
)

const stockGreeting = "Olá! Seja bem-vindo(a). Como posso ajudar você hoje?"

// Autocorrect fills defaults and drops dangling references in a loosely
// parsed graph, returning a canonical Graph ready for Validate.
func Autocorrect(g *models.Graph) *models.Graph {
	if g == nil {
		g = &models.Graph{}
	}
	if g.Nodes == nil {
		g.Nodes = map[string]*models.Node{}
	}
	if g.Edges == nil {
		g.Edges = []models.Edge{}
	}

	// Rule 2-5: per-node defaults. NodeOrder, if already populated by the
	// loader, is preserved; any node present in Nodes but missing from
	// NodeOrder is appended in map-iteration order as a fallback (callers
	// that need byte-stable order should populate NodeOrder themselves).
	seen := map[string]bool{}
	for _, id := range g.NodeOrder {
		seen[id] = true
	}
	for id, node := range g.Nodes {
		if node.ID == "" {
			node.ID = id
		}
		if node.Kind == "" {
			node.Kind = models.KindMessage
		}
		if node.Name == "" {
			node.Name = "Node " + node.ID
		}
		if node.Config == nil {
			node.Config = map[string]any{}
		}
		applyKindDefaults(node)
		if !seen[id] {
			g.NodeOrder = append(g.NodeOrder, id)
			seen[id] = true
		}
	}

	// Rule 6: missing/unknown start_node_id.
	if g.StartNodeID == "" || !nodeExists(g, g.StartNodeID) {
		if len(g.NodeOrder) > 0 {
			g.StartNodeID = g.NodeOrder[0]
		} else {
			greetingID := "node_0"
			greeting := &models.Node{
				ID:     greetingID,
				Kind:   models.KindGreeting,
				Name:   "Node " + greetingID,
				Config: map[string]any{"message": stockGreeting},
			}
			g.Nodes[greetingID] = greeting
			g.NodeOrder = append(g.NodeOrder, greetingID)
			g.StartNodeID = greetingID
		}
	}

	// Rule 7: drop dangling edges and null-out transition slots pointing at
	// missing node IDs.
	validEdges := make([]models.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if nodeExists(g, e.Source) && nodeExists(g, e.Target) {
			validEdges = append(validEdges, e)
		}
	}
	g.Edges = validEdges

	for _, node := range g.Nodes {
		clearDanglingSlots(g, node)
	}

	// Rule 8: missing global_config. GlobalCfg is a value type (not a
	// pointer), so "missing" means the zero value: a loader that never set
	// it leaves SessionTimeoutSeconds at 0, which no real config uses.
	if g.GlobalCfg.SessionTimeoutSeconds == 0 {
		g.GlobalCfg = models.DefaultGlobalConfig()
	}

	return g
}

func applyKindDefaults(node *models.Node) {
	if node.Kind == models.KindGreeting {
		if node.ConfigString("message", "") == "" {
			node.Config["message"] = stockGreeting
		}
		return
	}
	if fieldName, fieldKind, ok := models.DefaultFieldFor(node.Kind); ok {
		if node.ConfigString("field_name", "") == "" {
			node.Config["field_name"] = fieldName
		}
		if node.ConfigString("field_kind", "") == "" {
			node.Config["field_kind"] = string(fieldKind)
		}
	}
}

func clearDanglingSlots(g *models.Graph, node *models.Node) {
	if node.Next != nil && !nodeExists(g, *node.Next) {
		node.Next = nil
	}
	if node.OnTrue != nil && !nodeExists(g, *node.OnTrue) {
		node.OnTrue = nil
	}
	if node.OnFalse != nil && !nodeExists(g, *node.OnFalse) {
		node.OnFalse = nil
	}
	if node.Cases != nil {
		for k, target := range node.Cases {
			if !nodeExists(g, target) {
				delete(node.Cases, k)
			}
		}
		pruneCaseOrder(node)
	}
	if node.Parallel != nil {
		kept := node.Parallel[:0]
		for _, target := range node.Parallel {
			if nodeExists(g, target) {
				kept = append(kept, target)
			}
		}
		node.Parallel = kept
	}
}

// pruneCaseOrder drops case_order entries whose case no longer exists, so
// the order the SWITCH handler walks stays in lockstep with Cases.
func pruneCaseOrder(node *models.Node) {
	if node.Config == nil {
		return
	}
	raw, ok := node.Config["case_order"]
	if !ok {
		return
	}
	var kept []string
	switch order := raw.(type) {
	case []string:
		for _, k := range order {
			if _, exists := node.Cases[k]; exists {
				kept = append(kept, k)
			}
		}
	case []any:
		for _, item := range order {
			if k, ok := item.(string); ok {
				if _, exists := node.Cases[k]; exists {
					kept = append(kept, k)
				}
			}
		}
	default:
		return
	}
	node.Config["case_order"] = kept
}

// nodeExists is a convenience wrapper around Graph.GetNode's two-value form.
func nodeExists(g *models.Graph, id string) bool {
	_, ok := g.GetNode(id)
	return ok
}

// synthesizeNodeID is used by loaders that parse nodes from a lenient
// untyped source and need to fabricate an ID for rule 2; kept here so the
// ID-synthesis format is owned by one package.
func synthesizeNodeID(index int) string {
	return fmt.Sprintf("node_%d", index)
}
