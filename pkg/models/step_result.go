package models

// ResultKind is the closed tagged-sum a StepResult carries.
type ResultKind string

const (
	ResultMessage      ResultKind = "MESSAGE"
	ResultQuestion     ResultKind = "QUESTION"
	ResultMediaRequest ResultKind = "MEDIA_REQUEST"
	ResultMediaSend    ResultKind = "MEDIA_SEND"
	ResultAction       ResultKind = "ACTION"
	ResultHandoff      ResultKind = "HANDOFF"
	ResultError        ResultKind = "ERROR"
	ResultEnd          ResultKind = "END"
	ResultContinue     ResultKind = "CONTINUE"
	ResultParallel     ResultKind = "PARALLEL"
)

// MediaKind is the closed set of media request/send kinds.
type MediaKind string

const (
	MediaImage    MediaKind = "IMAGE"
	MediaDocument MediaKind = "DOCUMENT"
	MediaAudio    MediaKind = "AUDIO"
	MediaVideo    MediaKind = "VIDEO"
)

// Media carries the media-request or media-send payload of a StepResult.
type Media struct {
	Kind    MediaKind `json:"kind"`
	URL     string    `json:"url,omitempty"`
	Caption string    `json:"caption,omitempty"`
}

// Action carries a typed side-effect request the engine does not itself
// execute; delivery belongs to an external collaborator.
type Action struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notification carries a notify-team request; delivery is external.
type Notification struct {
	Channel    string   `json:"channel"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients,omitempty"`
	Urgency    string   `json:"urgency"`
}

// Handoff carries the reason and destination department for a human takeover.
type Handoff struct {
	Reason     string `json:"reason"`
	Department string `json:"department,omitempty"`
}

// Qualification carries the QUALIFICATION node's verdict.
type Qualification struct {
	Qualified *bool          `json:"qualified,omitempty"`
	Score     *int           `json:"score,omitempty"`
	Breakdown map[string]int `json:"score_breakdown,omitempty"`
}

// ErrorInfo carries a recoverable or fatal error surfaced on a StepResult.
type ErrorInfo struct {
	Message     string    `json:"message"`
	Code        ErrorCode `json:"code"`
	Recoverable bool      `json:"recoverable"`
}

// StepResult is what a node handler returns for one inbound message.
// next_node_override, should_wait, and terminal are mutually exclusive in
// their effect on the outgoing context.
type StepResult struct {
	ReplyText        string     `json:"reply_text,omitempty"`
	ResultKind       ResultKind `json:"result_kind"`
	NextNodeOverride *string    `json:"next_node_id,omitempty"`
	ShouldWait       bool       `json:"should_wait"`

	CollectedField    string `json:"collected_field,omitempty"`
	CollectedValue    any    `json:"collected_value,omitempty"`
	ValidationError   string `json:"validation_error,omitempty"`

	Media         *Media         `json:"media,omitempty"`
	ActionReq     *Action        `json:"action,omitempty"`
	Notification  *Notification  `json:"notification,omitempty"`
	HandoffInfo   *Handoff       `json:"handoff,omitempty"`
	Qualification *Qualification `json:"qualification,omitempty"`
	Error         *ErrorInfo     `json:"error,omitempty"`

	ParallelExtraPaths []string `json:"parallel_extra_paths,omitempty"`
	ExecutionTimeMs    int64    `json:"execution_time_ms,omitempty"`

	ExtraMessages []string       `json:"extra_messages,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	// AwaitingMedia / AwaitingMediaKind mirror the context flags set by a
	// MEDIA_REQUEST result, surfaced here so the engine doesn't need to re-derive them.
	AwaitingMedia     bool      `json:"-"`
	AwaitingMediaKind MediaKind `json:"-"`
}

// IsTerminal reports whether this result ends the conversation.
func (r *StepResult) IsTerminal() bool {
	if r.HandoffInfo != nil {
		return true
	}
	if r.ResultKind == ResultEnd {
		return true
	}
	if r.Error != nil && !r.Error.Recoverable {
		return true
	}
	return false
}
