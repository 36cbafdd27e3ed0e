package graph

import (
	"strconv"

	"github.com/smilemakc/convoflow/pkg/models"
)

// OutcomeKind is the closed set of outcomes a node handler can yield to the
// Navigator.
type OutcomeKind string

const (
	OutcomeTrueBranch OutcomeKind = "true_branch"
	OutcomeFalseBranch OutcomeKind = "false_branch"
	OutcomeSequential  OutcomeKind = "sequential"
	OutcomeSwitch      OutcomeKind = "switch"
	OutcomeParallel    OutcomeKind = "parallel_index"
)

// Outcome is the handler's verdict on which transition slot to follow. Key is
// only meaningful for OutcomeSwitch (the matched case key) and OutcomeParallel
// (the branch index, encoded as a string).
type Outcome struct {
	Kind OutcomeKind
	Key  string
}

// Resolve computes the next node ID for a node given its handler's outcome,
// consulting only the node's own transition slots (never collected_data —
// that's the handler's job). Returns ok=false when the outcome is terminal
// (HANDOFF/END, or a dangling slot the autocorrector already nulled out).
func Resolve(node *models.Node, outcome Outcome) (nextID string, ok bool) {
	if node == nil {
		return "", false
	}
	if models.IsTerminalKind(node.Kind) {
		return "", false
	}

	switch outcome.Kind {
	case OutcomeTrueBranch:
		if node.OnTrue != nil {
			return *node.OnTrue, true
		}
		return "", false
	case OutcomeFalseBranch:
		if node.OnFalse != nil {
			return *node.OnFalse, true
		}
		return "", false
	case OutcomeSwitch:
		if target, ok := node.Cases[outcome.Key]; ok {
			return target, true
		}
		if target, ok := node.Cases["default"]; ok {
			return target, true
		}
		return "", false
	case OutcomeParallel:
		idx, err := strconv.Atoi(outcome.Key)
		if err == nil && idx >= 0 && idx < len(node.Parallel) {
			return node.Parallel[idx], true
		}
		return "", false
	case OutcomeSequential:
		if node.Next != nil {
			return *node.Next, true
		}
		return "", false
	default:
		return "", false
	}
}

// AvailableTransitions reports every node ID a node could possibly reach,
// regardless of which outcome is chosen at runtime — used by the validator
// and by diagnostics tooling that wants to render the graph's shape.
func AvailableTransitions(node *models.Node) []string {
	return successors(node)
}
