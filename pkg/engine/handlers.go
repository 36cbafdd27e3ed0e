package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/smilemakc/convoflow/pkg/condition"
	"github.com/smilemakc/convoflow/pkg/graph"
	"github.com/smilemakc/convoflow/pkg/models"
	"github.com/smilemakc/convoflow/pkg/validators"
)

// handlerFunc is the shared signature every node kind dispatches through.
// ctx carries the step deadline for handlers that suspend (outbound HTTP,
// DELAY).
type handlerFunc func(ctx context.Context, eng *Engine, node *models.Node, userInput string, cctx *models.Context, now time.Time) (*models.StepResult, graph.Outcome)

// handlers is the exhaustive dispatch table over models.NodeKind.
var handlers = map[models.NodeKind]handlerFunc{
	models.KindGreeting: handleUtterance,
	models.KindMessage:  handleUtterance,
	models.KindEnd:      handleEnd,

	models.KindQuestion:    handleInput,
	models.KindName:        handleInput,
	models.KindEmail:       handleInput,
	models.KindPhone:       handleInput,
	models.KindCity:        handleInput,
	models.KindAddress:     handleInput,
	models.KindTaxIDPerson: handleInput,
	models.KindBirthdate:   handleInput,
	models.KindInterest:    handleInput,
	models.KindBudget:      handleInput,
	models.KindUrgency:     handleInput,

	models.KindCondition:     handleCondition,
	models.KindSwitch:        handleSwitch,
	models.KindQualification: handleQualification,

	models.KindAction:         handleAction,
	models.KindWebhookCall:    handleWebhookNode,
	models.KindAPIIntegration: handleWebhookNode,
	models.KindNotification:   handleNotification,
	models.KindAlert:          handleNotification,
	models.KindFollowup:       handleFollowup,
	models.KindProposal:       handleCommercial,
	models.KindNegotiation:    handleCommercial,
	models.KindScheduling:     handleCommercial,
	models.KindVisit:          handleCommercial,

	models.KindImage:    handleMedia,
	models.KindDocument: handleMedia,
	models.KindAudio:    handleMedia,
	models.KindVideo:    handleMedia,

	models.KindDelay:    handleDelay,
	models.KindLoop:     handleLoop,
	models.KindParallel: handleParallel,
	models.KindHandoff:  handleHandoff,
}

// dispatch resolves and invokes the handler for a node. An unknown tag only
// ever arrives from the graph-loading boundary — autocorrect/validate
// diagnostics flag it earlier, but the engine must still degrade gracefully.
func dispatch(ctx context.Context, eng *Engine, node *models.Node, userInput string, cctx *models.Context, now time.Time) (*models.StepResult, graph.Outcome) {
	h, ok := handlers[node.Kind]
	if !ok {
		result := &models.StepResult{
			ResultKind: models.ResultError,
			Error: &models.ErrorInfo{
				Message:     "unknown node kind: " + string(node.Kind),
				Code:        models.ErrCodeUnknownNodeKind,
				Recoverable: true,
			},
		}
		if node.Next != nil {
			return result, graph.Outcome{Kind: graph.OutcomeSequential}
		}
		return result, graph.Outcome{}
	}
	return h(ctx, eng, node, userInput, cctx, now)
}

func handleUtterance(_ context.Context, eng *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	text := renderNodeMessage(eng, node, cctx)
	return &models.StepResult{ReplyText: text, ResultKind: models.ResultMessage}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleEnd(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	msg := node.ConfigString("message", "")
	if msg == "" {
		msg = "Atendimento encerrado. Obrigado!"
	}
	return &models.StepResult{
		ReplyText:  RenderTemplate(msg, cctx.SnapshotCollectedData()),
		ResultKind: models.ResultEnd,
	}, graph.Outcome{}
}

// handleInput covers QUESTION and every typed-input shortcut kind, sharing
// the two-phase prompt/validate protocol.
func handleInput(_ context.Context, eng *Engine, node *models.Node, userInput string, cctx *models.Context, now time.Time) (*models.StepResult, graph.Outcome) {
	fieldName, fieldKind := resolveInputField(node)

	if strings.TrimSpace(userInput) == "" {
		prompt := node.ConfigString("prompt", "")
		if opts := configStringList(node.Config, "options"); len(opts) > 0 {
			var b strings.Builder
			b.WriteString(RenderTemplate(prompt, cctx.SnapshotCollectedData()))
			for _, o := range opts {
				b.WriteString("\n- ")
				b.WriteString(o)
			}
			prompt = b.String()
		} else {
			prompt = RenderTemplate(prompt, cctx.SnapshotCollectedData())
		}
		return &models.StepResult{
			ReplyText:      prompt,
			ResultKind:     models.ResultQuestion,
			ShouldWait:     true,
			CollectedField: fieldName,
		}, graph.Outcome{}
	}

	required := node.ConfigBool("required", true)
	res := validators.Validate(fieldKind, userInput, required)
	if res.IsValid {
		cctx.SetField(fieldName, res.CleanedValue)
		cctx.RecordValidationSuccess(fieldName, now)
		cctx.ResetCurrentFieldRetries()
		return &models.StepResult{
			ResultKind:     models.ResultContinue,
			CollectedField: fieldName,
			CollectedValue: res.CleanedValue,
		}, graph.Outcome{Kind: graph.OutcomeSequential}
	}

	cctx.RecordValidationAttempt(fieldName, res.ErrorMessage)
	retries := cctx.IncrementCurrentFieldRetries()
	maxRetries := node.ConfigInt("max_retries", 0)
	if maxRetries <= 0 {
		maxRetries = eng.globalMaxRetries(cctx)
	}
	if retries >= maxRetries {
		department := node.ConfigString("fallback_department", "")
		return &models.StepResult{
			ReplyText:  node.ConfigString("handoff_message", "Vou te transferir para um de nossos atendentes."),
			ResultKind: models.ResultHandoff,
			HandoffInfo: &models.Handoff{
				Reason:     "max_retries_exceeded",
				Department: department,
			},
			Error: &models.ErrorInfo{
				Message:     res.ErrorMessage,
				Code:        models.ErrCodeMaxRetriesExceeded,
				Recoverable: false,
			},
		}, graph.Outcome{}
	}

	errMsg := node.ConfigString("error_message", "")
	if errMsg == "" {
		errMsg = res.ErrorMessage
	}
	return &models.StepResult{
		ReplyText:       errMsg,
		ResultKind:      models.ResultQuestion,
		ShouldWait:      true,
		CollectedField:  fieldName,
		ValidationError: res.ErrorMessage,
	}, graph.Outcome{}
}

func resolveInputField(node *models.Node) (string, models.FieldKind) {
	if fieldName, fieldKind, ok := models.DefaultFieldFor(node.Kind); ok {
		if n := node.ConfigString("field_name", ""); n != "" {
			fieldName = n
		}
		return fieldName, fieldKind
	}
	fieldName := node.ConfigString("field_name", "")
	fieldKind := models.FieldKind(node.ConfigString("field_kind", string(models.FieldGeneric)))
	return fieldName, fieldKind
}

func handleCondition(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	data := cctx.SnapshotCollectedData()
	var ok bool
	if expr := node.ConfigString("expression", ""); expr != "" {
		ok = condition.EvaluateExpression(expr, data)
	} else {
		field := node.ConfigString("field", "")
		opStr := node.ConfigString("operator", "")
		if models.ValidOperator(opStr) {
			ok = condition.Evaluate(data[field], models.Operator(opStr), node.Config["value"])
		}
	}
	outcome := graph.Outcome{Kind: graph.OutcomeFalseBranch}
	if ok {
		outcome = graph.Outcome{Kind: graph.OutcomeTrueBranch}
	}
	return &models.StepResult{ResultKind: models.ResultContinue}, outcome
}

// handleSwitch resolves a case in three rounds: exact case match first,
// then substring (case-key is substring of the field value), then default,
// in case-definition order. Node.Cases is an unordered Go map; the graph
// loader preserves the wire order of case_node_ids in config["case_order"]
// (hand-supplied case_order wins). A node built without the loader and
// without case_order falls back to sorted keys, which is at least
// deterministic.
func handleSwitch(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	field := node.ConfigString("field", "")
	value, _ := cctx.GetField(field)
	valueStr := strings.ToLower(strings.TrimSpace(toStringAny(value)))

	order := configStringList(node.Config, "case_order")
	if len(order) == 0 {
		for k := range node.Cases {
			order = append(order, k)
		}
		sort.Strings(order)
	}

	for _, key := range order {
		if key == "default" {
			continue
		}
		if strings.ToLower(key) == valueStr {
			return &models.StepResult{ResultKind: models.ResultContinue}, graph.Outcome{Kind: graph.OutcomeSwitch, Key: key}
		}
	}
	for _, key := range order {
		if key == "default" {
			continue
		}
		if valueStr != "" && strings.Contains(valueStr, strings.ToLower(key)) {
			return &models.StepResult{ResultKind: models.ResultContinue}, graph.Outcome{Kind: graph.OutcomeSwitch, Key: key}
		}
	}
	return &models.StepResult{ResultKind: models.ResultContinue}, graph.Outcome{Kind: graph.OutcomeSwitch, Key: "default"}
}

func handleQualification(_ context.Context, eng *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	data := cctx.SnapshotCollectedData()
	weights := configIntMap(node.Config, "weights")
	fieldsEvaluated := configStringList(node.Config, "fields_evaluated")

	score := 0
	breakdown := map[string]int{}
	evalFields := fieldsEvaluated
	if len(evalFields) == 0 {
		for f := range weights {
			evalFields = append(evalFields, f)
		}
	}
	for _, f := range evalFields {
		v, present := data[f]
		if !present || toStringAny(v) == "" {
			continue
		}
		pts := weights[f]
		score += pts
		breakdown[f] = pts
	}

	minScore := node.ConfigInt("min_score", 0)
	if minScore <= 0 {
		minScore = eng.qualificationThreshold(cctx)
	}
	qualified := score >= minScore

	cctx.IsQualified = &qualified
	cctx.QualificationScore = &score

	outcome := graph.Outcome{Kind: graph.OutcomeFalseBranch}
	if qualified {
		outcome = graph.Outcome{Kind: graph.OutcomeTrueBranch}
	}
	return &models.StepResult{
		ResultKind: models.ResultContinue,
		Qualification: &models.Qualification{
			Qualified: &qualified,
			Score:     &score,
			Breakdown: breakdown,
		},
		Metadata: map[string]any{"score_breakdown": breakdown},
	}, outcome
}

func handleAction(ctx context.Context, eng *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	subKind := node.ConfigString("sub_kind", node.ConfigString("action_type", "webhook"))
	data := cctx.SnapshotCollectedData()

	if subKind == "webhook" {
		res, errInfo := eng.callWebhookFromConfig(ctx, node, data)
		return &models.StepResult{ResultKind: models.ResultAction, ActionReq: &models.Action{Name: "webhook", Payload: map[string]any{"status_code": res.StatusCode, "success": res.Success}}, Error: errInfo}, graph.Outcome{Kind: graph.OutcomeSequential}
	}

	if subKind == "notify_team" {
		return &models.StepResult{
			ResultKind: models.ResultAction,
			Notification: &models.Notification{
				Channel:    node.ConfigString("channel", "team"),
				Message:    RenderTemplate(node.ConfigString("message", ""), data),
				Recipients: configStringList(node.Config, "recipients"),
				Urgency:    node.ConfigString("urgency", "normal"),
			},
		}, graph.Outcome{Kind: graph.OutcomeSequential}
	}

	return &models.StepResult{
		ResultKind: models.ResultAction,
		ActionReq:  &models.Action{Name: subKind, Payload: node.Config},
	}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleWebhookNode(ctx context.Context, eng *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	data := cctx.SnapshotCollectedData()
	res, errInfo := eng.callWebhookFromConfig(ctx, node, data)
	return &models.StepResult{
		ResultKind: models.ResultAction,
		ActionReq:  &models.Action{Name: strings.ToLower(string(node.Kind)), Payload: map[string]any{"status_code": res.StatusCode, "success": res.Success, "body_excerpt": res.BodyExcerpt}},
		Error:      errInfo,
	}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleNotification(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	data := cctx.SnapshotCollectedData()
	urgency := node.ConfigString("urgency", "normal")
	if node.Kind == models.KindAlert && node.ConfigString("urgency", "") == "" {
		urgency = "high"
	}
	return &models.StepResult{
		ResultKind: models.ResultAction,
		Notification: &models.Notification{
			Channel:    node.ConfigString("channel", ""),
			Message:    RenderTemplate(node.ConfigString("message", ""), data),
			Recipients: configStringList(node.Config, "recipients"),
			Urgency:    urgency,
		},
	}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleFollowup(_ context.Context, eng *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	text := renderNodeMessage(eng, node, cctx)
	return &models.StepResult{
		ReplyText:  text,
		ResultKind: models.ResultMessage,
		ActionReq: &models.Action{
			Name: "followup",
			Payload: map[string]any{
				"intervals":     node.Config["intervals"],
				"messages":      node.Config["messages"],
				"max_followups": node.ConfigInt("max_followups", 0),
			},
		},
	}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleCommercial(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	data := cctx.SnapshotCollectedData()
	var b strings.Builder
	if title := node.ConfigString("title", ""); title != "" {
		b.WriteString(RenderTemplate(title, data))
		b.WriteString("\n\n")
	}
	for _, section := range configStringList(node.Config, "sections") {
		b.WriteString(RenderTemplate(section, data))
		b.WriteString("\n")
	}
	if node.Kind == models.KindProposal {
		if validity := node.ConfigString("validity", ""); validity != "" {
			b.WriteString("\n")
			b.WriteString(RenderTemplate(validity, data))
		}
	}
	if node.Kind == models.KindScheduling {
		for _, t := range configStringList(node.Config, "times") {
			b.WriteString("\n- ")
			b.WriteString(t)
		}
	}
	return &models.StepResult{
		ReplyText:  strings.TrimSpace(b.String()),
		ResultKind: models.ResultAction,
		ActionReq:  &models.Action{Name: strings.ToLower(string(node.Kind)), Payload: node.Config},
	}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleMedia(_ context.Context, _ *Engine, node *models.Node, userInput string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	kind := mediaKindFor(node.Kind)
	data := cctx.SnapshotCollectedData()
	if url := node.ConfigString("media_url", ""); url != "" {
		return &models.StepResult{
			ResultKind: models.ResultMediaSend,
			Media: &models.Media{
				Kind:    kind,
				URL:     RenderTemplate(url, data),
				Caption: RenderTemplate(node.ConfigString("caption", ""), data),
			},
		}, graph.Outcome{Kind: graph.OutcomeSequential}
	}

	if strings.TrimSpace(userInput) != "" {
		fieldName := node.ConfigString("field_name", "_media_"+node.ID)
		cctx.SetField(fieldName, userInput)
		return &models.StepResult{ResultKind: models.ResultContinue, CollectedField: fieldName, CollectedValue: userInput}, graph.Outcome{Kind: graph.OutcomeSequential}
	}

	return &models.StepResult{
		ResultKind:        models.ResultMediaRequest,
		ReplyText:         RenderTemplate(node.ConfigString("prompt", ""), data),
		ShouldWait:        true,
		AwaitingMedia:     true,
		AwaitingMediaKind: kind,
	}, graph.Outcome{}
}

func handleDelay(ctx context.Context, _ *Engine, node *models.Node, _ string, _ *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	seconds := node.ConfigInt("delay_seconds", 0)
	if seconds > 0 {
		timer := time.NewTimer(time.Duration(seconds) * time.Second)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return &models.StepResult{ResultKind: models.ResultContinue}, graph.Outcome{Kind: graph.OutcomeSequential}
}

func handleLoop(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	key := "_loop_" + node.ID + "_count"
	count := 0
	if v, ok := cctx.GetVariable(key); ok {
		switch n := v.(type) {
		case int:
			count = n
		case float64:
			count = int(n)
		}
	}
	cctx.SetVariable(key, count+1)

	maxIterations := node.ConfigInt("max_iterations", 1)
	loopOK := true
	if expr := strings.TrimSpace(node.ConfigString("loop_condition", "")); expr != "" {
		loopOK = condition.EvaluateExpression(expr, cctx.SnapshotCollectedData())
	}

	// count holds completed traversals; the bound is checked before this one.
	outcome := graph.Outcome{Kind: graph.OutcomeFalseBranch}
	if loopOK && count < maxIterations {
		outcome = graph.Outcome{Kind: graph.OutcomeTrueBranch}
	}
	return &models.StepResult{ResultKind: models.ResultContinue}, outcome
}

func handleParallel(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	if len(node.Parallel) == 0 {
		return &models.StepResult{ResultKind: models.ResultMessage}, graph.Outcome{Kind: graph.OutcomeSequential}
	}
	first := node.Parallel[0]
	rest := append([]string{}, node.Parallel[1:]...)
	cctx.SetVariable("_parallel_"+node.ID, map[string]any{
		"remaining_paths": rest,
		"wait_for_all":    node.ConfigBool("wait_for_all", false),
		"merge_node_id":   node.ConfigString("merge_node_id", ""),
	})
	return &models.StepResult{
		ResultKind:         models.ResultParallel,
		NextNodeOverride:   &first,
		ParallelExtraPaths: rest,
	}, graph.Outcome{}
}

func handleHandoff(_ context.Context, _ *Engine, node *models.Node, _ string, cctx *models.Context, _ time.Time) (*models.StepResult, graph.Outcome) {
	data := cctx.SnapshotCollectedData()
	result := &models.StepResult{
		ReplyText:  RenderTemplate(node.ConfigString("client_message", ""), data),
		ResultKind: models.ResultHandoff,
		HandoffInfo: &models.Handoff{
			Reason:     node.ConfigString("reason", "handoff"),
			Department: node.ConfigString("department", ""),
		},
	}
	if node.ConfigBool("notify_team", false) {
		result.Notification = &models.Notification{
			Channel:    node.ConfigString("channel", "team"),
			Message:    result.ReplyText,
			Recipients: configStringList(node.Config, "recipients"),
			Urgency:    node.ConfigString("urgency", "normal"),
		}
	}
	return result, graph.Outcome{}
}

func mediaKindFor(k models.NodeKind) models.MediaKind {
	switch k {
	case models.KindImage:
		return models.MediaImage
	case models.KindDocument:
		return models.MediaDocument
	case models.KindAudio:
		return models.MediaAudio
	case models.KindVideo:
		return models.MediaVideo
	default:
		return models.MediaImage
	}
}

// renderNodeMessage applies the shared message/alternatives jitter,
// honouring config.delay_ms before returning.
func renderNodeMessage(eng *Engine, node *models.Node, cctx *models.Context) string {
	data := cctx.SnapshotCollectedData()
	msg := node.ConfigString("message", "")
	alternatives := configStringList(node.Config, "alternatives")
	if delayMs := node.ConfigInt("delay_ms", 0); delayMs > 0 {
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
	}
	return PickMessage(msg, alternatives, data, eng.rnd())
}
