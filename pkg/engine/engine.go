// Package engine implements the conversation graph interpreter: one step
// per inbound message, dispatching to the node-kind handler table and
// advancing the conversation's Context through the Navigator.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/pkg/graph"
	"github.com/smilemakc/convoflow/pkg/models"
)

// maxSequentialHops bounds how many node transitions a single inbound
// message may drive before the engine gives up and surfaces an error —
// defense in depth against a cyclic graph the validator failed to flag.
const maxSequentialHops = 200

// Engine is the conversation graph interpreter. It holds no per-conversation
// state — Context and Graph are passed in on every call — so one Engine
// safely services many conversations concurrently.
type Engine struct {
	// HTTPClient issues outbound WEBHOOK_CALL/API_INTEGRATION/ACTION(webhook)
	// requests. Defaults to http.DefaultClient.
	HTTPClient HTTPDoer

	// Lock enforces the single-flight-per-conversation rule.
	// Defaults to an InProcessLock; a Redis-backed implementation is used
	// for multi-process deployments (internal/store).
	Lock ConversationLock

	// Sink receives every analytics event, fire-and-forget. Defaults to
	// NoopSink.
	Sink AnalyticsSink

	// DefaultMaxRetries is the fallback used when neither the node's config
	// nor the graph's GlobalConfig specify max_retries.
	DefaultMaxRetries int

	Logger *logger.Logger

	randMu  sync.Mutex
	randSrc *rand.Rand
}

// New constructs an Engine with the given HTTP client, defaulting every
// other collaborator. Pass a nil client to use http.DefaultClient.
func New(client HTTPDoer) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{
		HTTPClient:        client,
		Lock:              NewInProcessLock(),
		Sink:              NoopSink{},
		DefaultMaxRetries: 3,
		Logger:            logger.Default(),
		randSrc:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// rnd returns an independent *rand.Rand seeded off the engine's shared
// source, safe to hand to a concurrent step without the caller taking a lock
// (math/rand.Rand itself is not concurrency-safe for shared use).
func (e *Engine) rnd() *rand.Rand {
	e.randMu.Lock()
	seed := e.randSrc.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (e *Engine) newID() string {
	return uuid.NewString()
}

// globalMaxRetries resolves the effective max_retries for a field-input node
// that didn't specify its own: the active graph's GlobalConfig value (stashed
// on the context at step start, since handlers only see the node) falling
// back to the engine-level default.
func (e *Engine) globalMaxRetries(cctx *models.Context) int {
	if v, ok := cctx.GetVariable("_global_max_retries"); ok {
		if n, ok := v.(int); ok && n > 0 {
			return n
		}
	}
	if e.DefaultMaxRetries > 0 {
		return e.DefaultMaxRetries
	}
	return 3
}

// qualificationThreshold resolves the graph's QUALIFICATION min-score default
// for a QUALIFICATION node that didn't set min_score itself.
func (e *Engine) qualificationThreshold(cctx *models.Context) int {
	if v, ok := cctx.GetVariable("_qualification_threshold"); ok {
		if n, ok := v.(int); ok && n > 0 {
			return n
		}
	}
	return models.DefaultGlobalConfig().QualificationThreshold
}

// callWebhookFromConfig builds a WebhookRequest from a node's config and
// issues it, translating the result into the ACTION_ERROR/WEBHOOK_ERROR
// contract.
func (e *Engine) callWebhookFromConfig(ctx context.Context, node *models.Node, data map[string]any) (WebhookResult, *models.ErrorInfo) {
	req := WebhookRequest{
		URL:            node.ConfigString("url", ""),
		Method:         ParseMethod(node.ConfigString("method", "")),
		Headers:        configStringMap(node.Config, "headers"),
		Body:           configMap(node.Config, "body"),
		TimeoutSeconds: node.ConfigInt("timeout_seconds", 30),
		RetryOnFail:    node.ConfigBool("retry_on_fail", false),
	}

	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	res := CallWebhook(ctx, client, req, data)
	if res.Success {
		return res, nil
	}

	code := models.ErrCodeWebhookError
	if node.Kind == models.KindAction {
		code = models.ErrCodeActionError
	}
	msg := res.Err
	if msg == "" {
		msg = fmt.Sprintf("webhook returned status %d", res.StatusCode)
	}
	return res, &models.ErrorInfo{Message: msg, Code: code, Recoverable: true}
}

// ProcessMessage drives one inbound message through the graph: it acquires
// the per-conversation lock, checks for a terminal state or an expired
// session, then dispatches the current node (and every node reachable
// without waiting for more user input) until the conversation needs a reply,
// a side effect, or terminates. The caller is responsible for loading cctx
// and g before the call and persisting cctx afterward.
func (e *Engine) ProcessMessage(ctx context.Context, g *models.Graph, cctx *models.Context, userMessage string, now time.Time) *models.StepResult {
	if !e.Lock.TryAcquire(cctx.ConversationID) {
		return &models.StepResult{
			ResultKind: models.ResultError,
			Error: &models.ErrorInfo{
				Message:     "conversation is locked by another step",
				Code:        models.ErrCodeConversationBusy,
				Recoverable: true,
			},
		}
	}
	defer e.Lock.Release(cctx.ConversationID)

	if cctx.Status().IsTerminal() {
		return &models.StepResult{
			ResultKind: models.ResultError,
			Error: &models.ErrorInfo{
				Message:     "conversation has already reached a terminal state",
				Code:        models.ErrCodeFlowAlreadyTerminal,
				Recoverable: false,
			},
		}
	}

	cfg := g.GlobalCfg
	if _, ok := cctx.GetVariable("_global_max_retries"); !ok {
		cctx.SetVariable("_global_max_retries", cfg.MaxRetries)
	}
	if _, ok := cctx.GetVariable("_qualification_threshold"); !ok {
		cctx.SetVariable("_qualification_threshold", cfg.QualificationThreshold)
	}

	sessionTimeout := time.Duration(cfg.SessionTimeoutSeconds) * time.Second
	if sessionTimeout > 0 && cctx.Status() != models.StatusNotStarted && cctx.IdleFor(now) > sessionTimeout {
		cctx.SetStatus(models.StatusTimeout)
		cctx.Touch(now)
		msg := cfg.TimeoutMessage
		if msg == "" {
			msg = models.DefaultGlobalConfig().TimeoutMessage
		}
		e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventConversationAbandoned, nil)
		return &models.StepResult{ReplyText: msg, ResultKind: models.ResultMessage}
	}

	if err := ctx.Err(); err != nil {
		return &models.StepResult{
			ResultKind: models.ResultError,
			Error: &models.ErrorInfo{
				Message:     "step deadline exceeded",
				Code:        models.ErrCodeStepDeadline,
				Recoverable: true,
			},
		}
	}

	if cctx.Status() == models.StatusNotStarted {
		cctx.SetStatus(models.StatusInProgress)
		e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventConversationStarted, map[string]any{"graph_id": cctx.GraphID})
	}
	if cctx.AwaitingInput || cctx.AwaitingMedia {
		e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventMessageReceived, map[string]any{"node_id": cctx.CurrentNodeID})
	}
	cctx.AwaitingInput = false
	cctx.AwaitingMedia = false

	input := userMessage
	var agg *models.StepResult

	for hop := 0; hop < maxSequentialHops; hop++ {
		if err := ctx.Err(); err != nil {
			return e.finalizeDeadline(cctx, agg)
		}

		node, ok := g.GetNode(cctx.CurrentNodeID)
		if !ok {
			return e.mergeTerminal(cctx, agg, &models.StepResult{
				ResultKind: models.ResultError,
				Error: &models.ErrorInfo{
					Message:     "current node not found: " + cctx.CurrentNodeID,
					Code:        models.ErrCodeUnknownNodeKind,
					Recoverable: true,
				},
			})
		}

		enteredAt := now
		usedInput := input
		e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventNodeEntered, map[string]any{"node_id": node.ID, "kind": string(node.Kind)})
		result, outcome := e.safeDispatch(ctx, node, usedInput, cctx, now)
		input = ""

		visit := models.NodeVisit{
			NodeID:     node.ID,
			Kind:       node.Kind,
			EnteredAt:  enteredAt,
			DurationMs: time.Since(enteredAt).Milliseconds(),
		}
		if usedInput != "" {
			ui := usedInput
			visit.UserInput = &ui
		}
		if result.ReplyText != "" {
			resp := result.ReplyText
			visit.Response = &resp
		}
		if result.CollectedField != "" && result.CollectedValue != nil {
			df := result.CollectedField
			visit.DataCollected = &df
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventFieldCollected, map[string]any{"field": result.CollectedField})
		}
		cctx.AppendVisit(visit)
		e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventNodeCompleted, map[string]any{"node_id": node.ID, "kind": string(node.Kind)})

		if result.ValidationError != "" {
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventFieldValidationFailed, map[string]any{"field": result.CollectedField, "error": result.ValidationError})
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventFieldRetry, map[string]any{"field": result.CollectedField, "retries": cctx.CurrentFieldRetries})
		}
		if node.Kind == models.KindCondition {
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventConditionEvaluated, map[string]any{"node_id": node.ID, "outcome": string(outcome.Kind)})
		}
		if q := result.Qualification; q != nil && q.Qualified != nil {
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventLeadScored, map[string]any{"score": q.Score, "breakdown": q.Breakdown})
			if *q.Qualified {
				e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventLeadQualified, map[string]any{"score": q.Score})
			} else {
				e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventLeadDisqualified, map[string]any{"score": q.Score})
			}
		}
		if result.Notification != nil {
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventNotificationTriggered, map[string]any{"channel": result.Notification.Channel})
		}
		if result.Error != nil {
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventErrorOccurred, map[string]any{"code": string(result.Error.Code), "message": result.Error.Message, "recoverable": result.Error.Recoverable})
		}

		agg = mergeStep(agg, result)

		if result.HandoffInfo != nil {
			cctx.SetStatus(models.StatusHandoff)
			cctx.Touch(now)
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventHandoffRequested, map[string]any{"reason": result.HandoffInfo.Reason})
			return agg
		}

		if result.ResultKind == models.ResultEnd {
			cctx.SetStatus(models.StatusCompleted)
			cctx.Touch(now)
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventFlowCompleted, nil)
			return agg
		}

		if result.Error != nil && !result.Error.Recoverable {
			cctx.SetStatus(models.StatusError)
			cctx.Touch(now)
			return agg
		}

		if result.ShouldWait {
			cctx.Touch(now)
			if result.AwaitingMedia {
				cctx.AwaitingMedia = true
				cctx.ExpectedMediaKind = result.AwaitingMediaKind
				cctx.SetStatus(models.StatusWaitingMedia)
			} else {
				cctx.AwaitingInput = true
				cctx.SetStatus(models.StatusWaitingInput)
			}
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventMessageSent, map[string]any{"node_id": node.ID})
			return agg
		}

		var nextID string
		if result.NextNodeOverride != nil {
			nextID = *result.NextNodeOverride
			ok = true
		} else {
			nextID, ok = graph.Resolve(node, outcome)
		}
		if outcome.Kind == graph.OutcomeSwitch {
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventSwitchBranchTaken, map[string]any{"node_id": node.ID, "case": outcome.Key})
		}
		if !ok {
			cctx.SetStatus(models.StatusCompleted)
			cctx.Touch(now)
			e.emit(cctx.TenantID, cctx.LeadID, cctx.ConversationID, models.EventFlowCompleted, map[string]any{"reason": "dead_end"})
			return agg
		}

		cctx.SetCurrentNode(nextID)
		cctx.Touch(now)
		cctx.ResetCurrentFieldRetries()
	}

	return e.mergeTerminal(cctx, agg, &models.StepResult{
		ResultKind: models.ResultError,
		Error: &models.ErrorInfo{
			Message:     "exceeded maximum node hops for a single step",
			Code:        models.ErrCodeActionError,
			Recoverable: true,
		},
	})
}

func (e *Engine) finalizeDeadline(cctx *models.Context, agg *models.StepResult) *models.StepResult {
	errResult := &models.StepResult{
		ResultKind: models.ResultError,
		Error: &models.ErrorInfo{
			Message:     "step deadline exceeded",
			Code:        models.ErrCodeStepDeadline,
			Recoverable: true,
		},
	}
	return e.mergeTerminal(cctx, agg, errResult)
}

func (e *Engine) mergeTerminal(cctx *models.Context, agg, final *models.StepResult) *models.StepResult {
	merged := mergeStep(agg, final)
	if final.Error != nil && !final.Error.Recoverable {
		cctx.SetStatus(models.StatusError)
	}
	return merged
}

// mergeStep folds a newly dispatched node's result into the running
// aggregate for this inbound message: the first result seeds the aggregate,
// every subsequent node's reply text is appended to extra_messages, and side
// effects (action/notification/media/qualification/error) from the latest
// node win, since they are what the caller needs to act on next.
func mergeStep(agg, next *models.StepResult) *models.StepResult {
	if agg == nil {
		return next
	}
	if next.ReplyText != "" {
		if agg.ReplyText == "" {
			agg.ReplyText = next.ReplyText
		} else {
			agg.ExtraMessages = append(agg.ExtraMessages, next.ReplyText)
		}
	}
	agg.ResultKind = next.ResultKind
	agg.ShouldWait = next.ShouldWait
	agg.NextNodeOverride = next.NextNodeOverride
	if next.CollectedField != "" {
		agg.CollectedField = next.CollectedField
		agg.CollectedValue = next.CollectedValue
	}
	if next.ValidationError != "" {
		agg.ValidationError = next.ValidationError
	}
	if next.Media != nil {
		agg.Media = next.Media
	}
	if next.ActionReq != nil {
		agg.ActionReq = next.ActionReq
	}
	if next.Notification != nil {
		agg.Notification = next.Notification
	}
	if next.HandoffInfo != nil {
		agg.HandoffInfo = next.HandoffInfo
	}
	if next.Qualification != nil {
		agg.Qualification = next.Qualification
	}
	if next.Error != nil {
		agg.Error = next.Error
	}
	if len(next.ParallelExtraPaths) > 0 {
		agg.ParallelExtraPaths = next.ParallelExtraPaths
	}
	if len(next.Metadata) > 0 {
		if agg.Metadata == nil {
			agg.Metadata = map[string]any{}
		}
		for k, v := range next.Metadata {
			agg.Metadata[k] = v
		}
	}
	agg.AwaitingMedia = next.AwaitingMedia
	agg.AwaitingMediaKind = next.AwaitingMediaKind
	return agg
}

// safeDispatch recovers from a handler panic: caught, logged, converted to
// an ERROR result with recoverable=true, the context staying on the current
// node.
func (e *Engine) safeDispatch(ctx context.Context, node *models.Node, userInput string, cctx *models.Context, now time.Time) (result *models.StepResult, outcome graph.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if e.Logger != nil {
				e.Logger.Error("handler panic", "node_id", node.ID, "kind", string(node.Kind), "panic", r)
			}
			result = &models.StepResult{
				ResultKind: models.ResultError,
				ShouldWait: true,
				Error: &models.ErrorInfo{
					Message:     fmt.Sprintf("panic in handler: %v", r),
					Code:        models.ErrCodeActionError,
					Recoverable: true,
				},
			}
			outcome = graph.Outcome{}
		}
	}()
	return dispatch(ctx, e, node, userInput, cctx, now)
}

func configStringMap(config map[string]any, key string) map[string]string {
	out := map[string]string{}
	if config == nil {
		return out
	}
	if m, ok := config[key].(map[string]any); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

func configMap(config map[string]any, key string) map[string]any {
	if config == nil {
		return nil
	}
	if m, ok := config[key].(map[string]any); ok {
		return m
	}
	return nil
}
