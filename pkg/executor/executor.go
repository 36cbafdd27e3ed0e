// Package executor dispatches the typed action requests a conversation step
// emits (webhook, send_email, send_sms, tag_lead, notify_team, ...) to the
// collaborator that actually performs them. The engine itself only produces
// Action records; the serving layer drains them through a Registry so that
// delivery stays outside the chat path and webhook handlers can be swapped
// in tests.
//
// Built-in executors include:
//   - webhook: performs the outbound HTTP call contract
//   - log: records the action for sub-kinds whose delivery is external
//
// Custom executors can be registered at runtime using the Manager.
package executor

import (
	"context"
	"fmt"

	"github.com/smilemakc/convoflow/pkg/models"
)

// Executor performs one kind of side-effect action. collected is the
// conversation's collected-data snapshot, available for template
// substitution in payload values.
type Executor interface {
	// Execute performs the action and returns any result payload.
	Execute(ctx context.Context, action *models.Action, collected map[string]any) (map[string]any, error)

	// Validate checks the action's payload before execution.
	Validate(action *models.Action) error
}

// Manager manages the registration and retrieval of executors, keyed by
// action name.
type Manager interface {
	// Register registers an executor for a specific action name.
	Register(actionName string, executor Executor) error

	// Get retrieves an executor by action name.
	Get(actionName string) (Executor, error)

	// Has checks if an executor is registered for the given action name.
	Has(actionName string) bool

	// List returns all registered action names.
	List() []string

	// Unregister removes an executor for a specific action name.
	Unregister(actionName string) error
}

// ExecutorFunc is an adapter to allow ordinary functions as Executors.
type ExecutorFunc struct {
	ExecuteFn  func(ctx context.Context, action *models.Action, collected map[string]any) (map[string]any, error)
	ValidateFn func(action *models.Action) error
}

// Execute calls the ExecuteFn function.
func (f *ExecutorFunc) Execute(ctx context.Context, action *models.Action, collected map[string]any) (map[string]any, error) {
	return f.ExecuteFn(ctx, action, collected)
}

// Validate calls the ValidateFn function.
func (f *ExecutorFunc) Validate(action *models.Action) error {
	if f.ValidateFn == nil {
		return nil
	}
	return f.ValidateFn(action)
}

// NewExecutorFunc creates a new ExecutorFunc with the given functions.
func NewExecutorFunc(
	executeFn func(ctx context.Context, action *models.Action, collected map[string]any) (map[string]any, error),
	validateFn func(action *models.Action) error,
) Executor {
	return &ExecutorFunc{
		ExecuteFn:  executeFn,
		ValidateFn: validateFn,
	}
}

// Dispatch validates and executes an action through the manager, falling
// back to an error when no executor claims the action name.
func Dispatch(ctx context.Context, m Manager, action *models.Action, collected map[string]any) (map[string]any, error) {
	if action == nil {
		return nil, fmt.Errorf("action cannot be nil")
	}
	exec, err := m.Get(action.Name)
	if err != nil {
		return nil, err
	}
	if err := exec.Validate(action); err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", action.Name, err)
	}
	return exec.Execute(ctx, action, collected)
}
