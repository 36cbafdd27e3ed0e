package graph

import (
	"fmt"

	"github.com/smilemakc/convoflow/pkg/models"
)

// Validate runs the structural checks over an already-autocorrected graph:
// reference integrity of every transition slot, per-kind required config,
// operator validity, orphan detection via BFS from the start node, and cycle
// detection via DFS with a recursion stack.
func Validate(g *models.Graph) []models.Diagnostic {
	var diags []models.Diagnostic

	for _, id := range g.NodeOrder {
		node, ok := g.GetNode(id)
		if !ok {
			continue
		}
		diags = append(diags, validateTransitions(g, node)...)
		diags = append(diags, validateKindConfig(node)...)
	}

	diags = append(diags, validateGlobalConfig(g.GlobalCfg)...)
	diags = append(diags, detectOrphans(g)...)
	diags = append(diags, detectCycles(g)...)

	return diags
}

func validateGlobalConfig(cfg models.GlobalConfig) []models.Diagnostic {
	var diags []models.Diagnostic
	if cfg.MessageTimeoutSeconds < 0 || cfg.SessionTimeoutSeconds < 0 || cfg.IdleFollowupSeconds < 0 {
		diags = append(diags, errDiag("NEGATIVE_TIMEOUT", "", "global_config timeouts must be non-negative"))
	}
	if cfg.MaxRetries < 0 {
		diags = append(diags, errDiag("NEGATIVE_MAX_RETRIES", "", "global_config max_retries must be non-negative"))
	}
	for field, w := range cfg.QualificationWeights {
		if w < 0 {
			diags = append(diags, errDiag("NEGATIVE_WEIGHT", "", fmt.Sprintf("qualification weight for %q must be >= 0", field)))
		}
	}
	return diags
}

func validateTransitions(g *models.Graph, node *models.Node) []models.Diagnostic {
	var diags []models.Diagnostic

	switch node.Kind {
	case models.KindCondition:
		if node.OnTrue == nil {
			diags = append(diags, warn("MISSING_ON_TRUE", node.ID, "CONDITION node has no true_node_id"))
		}
		if node.OnFalse == nil {
			diags = append(diags, warn("MISSING_ON_FALSE", node.ID, "CONDITION node has no false_node_id"))
		}
	case models.KindSwitch:
		if len(node.Cases) == 0 {
			diags = append(diags, warn("EMPTY_SWITCH", node.ID, "SWITCH node has no cases"))
		}
	case models.KindParallel:
		if len(node.Parallel) == 0 {
			diags = append(diags, warn("EMPTY_PARALLEL", node.ID, "PARALLEL node has no branches"))
		}
	default:
		if !models.IsTerminalKind(node.Kind) && node.Next == nil {
			diags = append(diags, warn("MISSING_NEXT_NODE", node.ID, fmt.Sprintf("%s node has no next_node_id", node.Kind)))
		}
	}

	return diags
}

func validateKindConfig(node *models.Node) []models.Diagnostic {
	var diags []models.Diagnostic

	switch node.Kind {
	case models.KindGreeting, models.KindMessage:
		if node.ConfigString("message", "") == "" {
			diags = append(diags, warn("MISSING_MESSAGE", node.ID, fmt.Sprintf("%s node has no message", node.Kind)))
		}
	case models.KindQuestion:
		if node.ConfigString("prompt", "") == "" {
			diags = append(diags, errDiag("MISSING_PROMPT", node.ID, "QUESTION node has no prompt"))
		}
		if node.ConfigString("field_name", "") == "" {
			diags = append(diags, errDiag("MISSING_FIELD_NAME", node.ID, "QUESTION node has no field_name"))
		}
	case models.KindCondition:
		if node.ConfigString("expression", "") == "" {
			if node.ConfigString("field", "") == "" {
				diags = append(diags, errDiag("MISSING_FIELD", node.ID, "CONDITION node has neither expression nor field"))
			}
			if node.ConfigString("operator", "") == "" {
				diags = append(diags, errDiag("MISSING_OPERATOR", node.ID, "CONDITION node has neither expression nor operator"))
			}
		}
	case models.KindWebhookCall, models.KindAPIIntegration:
		if node.ConfigString("url", "") == "" {
			diags = append(diags, errDiag("MISSING_URL", node.ID, fmt.Sprintf("%s node has no url", node.Kind)))
		}
	case models.KindHandoff:
		if node.ConfigString("client_message", "") == "" {
			diags = append(diags, errDiag("MISSING_CLIENT_MESSAGE", node.ID, "HANDOFF node has no client_message"))
		}
	case models.KindNotification, models.KindAlert:
		if node.ConfigString("channel", "") == "" {
			diags = append(diags, errDiag("MISSING_CHANNEL", node.ID, fmt.Sprintf("%s node has no channel", node.Kind)))
		}
	case models.KindDelay:
		if node.ConfigInt("delay_seconds", 0) < 0 {
			diags = append(diags, errDiag("NEGATIVE_DELAY", node.ID, "DELAY node has a negative delay_seconds value"))
		}
	}

	if v, ok := node.Config["operator"]; ok {
		if s, ok := v.(string); ok && !models.ValidOperator(s) {
			diags = append(diags, errDiag("INVALID_OPERATOR", node.ID, fmt.Sprintf("unknown operator %q", s)))
		}
	}

	return diags
}

// detectOrphans BFS-walks from StartNodeID across next/true/false/case/parallel
// slots and flags any declared node the walk never reaches.
func detectOrphans(g *models.Graph) []models.Diagnostic {
	reachable := map[string]bool{}
	queue := []string{g.StartNodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		node, ok := g.GetNode(id)
		if !ok {
			continue
		}
		for _, next := range successors(node) {
			if !reachable[next] {
				queue = append(queue, next)
			}
		}
	}

	var diags []models.Diagnostic
	for _, id := range g.NodeOrder {
		if !reachable[id] {
			diags = append(diags, warn("ORPHAN_NODE", id, "node is unreachable from start_node_id"))
		}
	}
	return diags
}

// detectCycles DFS-walks the graph with a recursion stack, reporting the
// offending node sequence per cycle found. LOOP nodes make deliberate
// back-edges legal, so cycles are flagged rather than refused.
func detectCycles(g *models.Graph) []models.Diagnostic {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var diags []models.Diagnostic
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		if color[id] == black {
			return
		}
		if color[id] == gray {
			diags = append(diags, warn("CYCLE_DETECTED", id, fmt.Sprintf("cycle through %v", append(append([]string{}, stack...), id))))
			return
		}
		node, ok := g.GetNode(id)
		if !ok {
			return
		}
		if node.Kind == models.KindLoop {
			// LOOP nodes own their back-edge; don't chase it here.
			color[id] = black
			return
		}
		color[id] = gray
		stack = append(stack, id)
		for _, next := range successors(node) {
			visit(next)
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range g.NodeOrder {
		if color[id] == white {
			visit(id)
		}
	}
	return diags
}

// successors enumerates every node ID a node's transition slots can lead to.
func successors(node *models.Node) []string {
	var out []string
	if node.Next != nil {
		out = append(out, *node.Next)
	}
	if node.OnTrue != nil {
		out = append(out, *node.OnTrue)
	}
	if node.OnFalse != nil {
		out = append(out, *node.OnFalse)
	}
	for _, target := range node.Cases {
		out = append(out, target)
	}
	out = append(out, node.Parallel...)
	return out
}

func warn(code, nodeID, msg string) models.Diagnostic {
	return models.Diagnostic{Code: code, Severity: models.SeverityWarning, NodeID: nodeID, Message: msg}
}

func errDiag(code, nodeID, msg string) models.Diagnostic {
	return models.Diagnostic{Code: code, Severity: models.SeverityError, NodeID: nodeID, Message: msg}
}
