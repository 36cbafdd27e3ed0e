package executor

import (
	"context"
	"fmt"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/pkg/engine"
	"github.com/smilemakc/convoflow/pkg/models"
)

// WebhookExecutor performs the outbound HTTP contract for "webhook" action
// requests whose payload carries url/method/headers/body.
type WebhookExecutor struct {
	client engine.HTTPDoer
}

// NewWebhookExecutor creates a webhook executor over the given HTTP client.
func NewWebhookExecutor(client engine.HTTPDoer) *WebhookExecutor {
	return &WebhookExecutor{client: client}
}

// Validate implements Executor.
func (e *WebhookExecutor) Validate(action *models.Action) error {
	if url, _ := action.Payload["url"].(string); url == "" {
		return fmt.Errorf("webhook action requires a url")
	}
	return nil
}

// Execute implements Executor.
func (e *WebhookExecutor) Execute(ctx context.Context, action *models.Action, collected map[string]any) (map[string]any, error) {
	url, _ := action.Payload["url"].(string)
	method, _ := action.Payload["method"].(string)

	headers := map[string]string{}
	if h, ok := action.Payload["headers"].(map[string]any); ok {
		for k, v := range h {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	body, _ := action.Payload["body"].(map[string]any)

	timeout := 0
	switch v := action.Payload["timeout_seconds"].(type) {
	case int:
		timeout = v
	case float64:
		timeout = int(v)
	}
	retry, _ := action.Payload["retry_on_fail"].(bool)

	res := engine.CallWebhook(ctx, e.client, engine.WebhookRequest{
		URL:            url,
		Method:         engine.ParseMethod(method),
		Headers:        headers,
		Body:           body,
		TimeoutSeconds: timeout,
		RetryOnFail:    retry,
	}, collected)

	out := map[string]any{
		"success":      res.Success,
		"status_code":  res.StatusCode,
		"body_excerpt": res.BodyExcerpt,
	}
	if !res.Success {
		if res.Err != "" {
			return out, fmt.Errorf("webhook failed: %s", res.Err)
		}
		return out, fmt.Errorf("webhook returned status %d", res.StatusCode)
	}
	return out, nil
}

// LogExecutor records action requests whose delivery happens outside this
// process (send_email, send_sms, tag_lead, move_status, update_field,
// set_variable, followup, and the commercial payloads). The log line is the
// handover point for the external delivery worker.
type LogExecutor struct {
	log *logger.Logger
}

// NewLogExecutor creates a log executor.
func NewLogExecutor(log *logger.Logger) *LogExecutor {
	if log == nil {
		log = logger.Default()
	}
	return &LogExecutor{log: log}
}

// Validate implements Executor.
func (e *LogExecutor) Validate(*models.Action) error {
	return nil
}

// Execute implements Executor.
func (e *LogExecutor) Execute(_ context.Context, action *models.Action, _ map[string]any) (map[string]any, error) {
	e.log.Info("action request recorded", "action", action.Name, "payload", action.Payload)
	return map[string]any{"recorded": true}, nil
}

// externalActionNames are the ACTION sub-kinds the engine emits as request
// objects without executing (spec-level "external collaborator" actions).
var externalActionNames = []string{
	"update_field",
	"move_status",
	"tag_lead",
	"send_email",
	"send_sms",
	"set_variable",
	"followup",
	"proposal",
	"negotiation",
	"scheduling",
	"visit",
	"webhook_call",
	"api_integration",
}

// RegisterBuiltins wires the default executor set into a manager: a real
// webhook executor plus the log-and-forward executor for every external
// action sub-kind.
func RegisterBuiltins(m Manager, client engine.HTTPDoer, log *logger.Logger) error {
	if err := m.Register("webhook", NewWebhookExecutor(client)); err != nil {
		return err
	}
	logExec := NewLogExecutor(log)
	for _, name := range externalActionNames {
		if err := m.Register(name, logExec); err != nil {
			return err
		}
	}
	return nil
}
