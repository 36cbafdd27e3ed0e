package models

import (
	"sort"
	"sync"
	"time"
)

// SchemaVersion is the current context serialization version tag.
const SchemaVersion = "2.0"

// Status is the closed set of conversation lifecycle states.
type Status string

const (
	StatusNotStarted   Status = "not_started"
	StatusInProgress   Status = "in_progress"
	StatusWaitingInput Status = "waiting_input"
	StatusWaitingMedia Status = "waiting_media"
	StatusCompleted    Status = "completed"
	StatusHandoff      Status = "handoff"
	StatusError        Status = "error"
	StatusTimeout      Status = "timeout"
)

// IsTerminal reports whether a conversation in this status accepts no further steps.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusHandoff, StatusError, StatusTimeout:
		return true
	default:
		return false
	}
}

// NodeVisit is one entry in a conversation's history.
type NodeVisit struct {
	NodeID         string     `json:"node_id"`
	Kind           NodeKind   `json:"kind"`
	EnteredAt      time.Time  `json:"entered_at"`
	UserInput      *string    `json:"user_input,omitempty"`
	Response       *string    `json:"response,omitempty"`
	DataCollected  *string    `json:"data_collected,omitempty"`
	DurationMs     int64      `json:"duration_ms"`
}

// FieldValidation is the per-field validation record: attempt count, last
// error, and where the field sits in the retry pipeline.
type FieldValidation struct {
	Attempts    int              `json:"attempts"`
	LastError   string           `json:"last_error,omitempty"`
	ValidatedAt *time.Time       `json:"validated_at,omitempty"`
	Status      ValidationStatus `json:"status"`
}

// Context is the per-conversation state, mutated only by the engine under
// single-threaded per-conversation access. It is the unit the caller
// persists after every step and reloads at the start of the next.
//
// The zero value is not ready for use; construct with NewContext.
type Context struct {
	mu sync.RWMutex

	SchemaVersion string `json:"schema_version"`

	ConversationID string `json:"conversation_id"`
	LeadID         string `json:"lead_id"`
	TenantID       string `json:"tenant_id"`
	GraphID        string `json:"graph_id"`

	CurrentNodeID  string `json:"current_node_id"`
	PreviousNodeID string `json:"previous_node_id,omitempty"`
	StatusVal      Status `json:"status"`

	Visits          []NodeVisit                `json:"visits"`
	visitedIDs      map[string]struct{}        `json:"-"`
	CollectedData   map[string]any             `json:"collected_data"`
	FieldValidations map[string]*FieldValidation `json:"field_validations"`

	GlobalRetries       int `json:"global_retries"`
	CurrentFieldRetries int `json:"current_field_retries"`

	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`

	AwaitingInput      bool      `json:"awaiting_input"`
	AwaitingMedia      bool      `json:"awaiting_media"`
	ExpectedMediaKind  MediaKind `json:"expected_media_kind,omitempty"`
	IsQualified        *bool     `json:"is_qualified,omitempty"`
	QualificationScore *int      `json:"qualification_score,omitempty"`

	Variables map[string]any `json:"variables"`
	Metadata  map[string]any `json:"metadata"`
}

// NewContext creates a freshly-started Context for a conversation.
func NewContext(conversationID, leadID, tenantID, graphID, startNodeID string, now time.Time) *Context {
	return &Context{
		SchemaVersion:    SchemaVersion,
		ConversationID:   conversationID,
		LeadID:           leadID,
		TenantID:         tenantID,
		GraphID:          graphID,
		CurrentNodeID:    startNodeID,
		StatusVal:        StatusNotStarted,
		Visits:           []NodeVisit{},
		visitedIDs:       map[string]struct{}{},
		CollectedData:    map[string]any{},
		FieldValidations: map[string]*FieldValidation{},
		StartedAt:        now,
		LastActivity:     now,
		Variables:        map[string]any{},
		Metadata:         map[string]any{},
	}
}

// Status returns the current lifecycle status under a read lock.
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.StatusVal
}

// SetStatus mutates the lifecycle status under a write lock.
func (c *Context) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusVal = s
}

// VisitedNodeIDs returns the set of visited node IDs as a sorted slice; it
// always equals the set of node IDs present in Visits.
func (c *Context) VisitedNodeIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.visitedIDs))
	for id := range c.visitedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AppendVisit records a node visit and advances the current/previous node pointers.
func (c *Context) AppendVisit(v NodeVisit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Visits = append(c.Visits, v)
	if c.visitedIDs == nil {
		c.visitedIDs = map[string]struct{}{}
	}
	c.visitedIDs[v.NodeID] = struct{}{}
}

// SetCurrentNode moves the conversation's position, tracking the previous node.
func (c *Context) SetCurrentNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PreviousNodeID = c.CurrentNodeID
	c.CurrentNodeID = nodeID
}

// GetField reads a collected value by field name.
func (c *Context) GetField(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.CollectedData[name]
	return v, ok
}

// SetField records a validated field value; a VALID field_validations entry
// always has a corresponding collected_data key with the normalized value.
func (c *Context) SetField(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CollectedData == nil {
		c.CollectedData = map[string]any{}
	}
	c.CollectedData[name] = value
}

// SnapshotCollectedData returns a shallow copy of the collected-data map, safe to
// hand to the scorer/condition evaluator without holding the Context lock.
func (c *Context) SnapshotCollectedData() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.CollectedData))
	for k, v := range c.CollectedData {
		out[k] = v
	}
	return out
}

// FieldValidationRecord returns the validation record for a field, creating a PENDING one
// if absent.
func (c *Context) FieldValidationRecord(field string) *FieldValidation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FieldValidations == nil {
		c.FieldValidations = map[string]*FieldValidation{}
	}
	fv, ok := c.FieldValidations[field]
	if !ok {
		fv = &FieldValidation{Status: ValidationPending}
		c.FieldValidations[field] = fv
	}
	return fv
}

// RecordValidationAttempt updates the per-field validation record on a failed attempt.
func (c *Context) RecordValidationAttempt(field, lastError string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FieldValidations == nil {
		c.FieldValidations = map[string]*FieldValidation{}
	}
	fv, ok := c.FieldValidations[field]
	if !ok {
		fv = &FieldValidation{}
		c.FieldValidations[field] = fv
	}
	fv.Attempts++
	fv.LastError = lastError
	fv.Status = ValidationInvalid
}

// RecordValidationSuccess marks a field VALID and stamps the validation time.
func (c *Context) RecordValidationSuccess(field string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FieldValidations == nil {
		c.FieldValidations = map[string]*FieldValidation{}
	}
	fv, ok := c.FieldValidations[field]
	if !ok {
		fv = &FieldValidation{}
		c.FieldValidations[field] = fv
	}
	fv.Status = ValidationValid
	fv.LastError = ""
	fv.ValidatedAt = &at
}

// ResetCurrentFieldRetries zeroes the per-field retry counter, called on every
// node transition.
func (c *Context) ResetCurrentFieldRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentFieldRetries = 0
}

// IncrementCurrentFieldRetries bumps the counter and returns the new value.
func (c *Context) IncrementCurrentFieldRetries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentFieldRetries++
	c.GlobalRetries++
	return c.CurrentFieldRetries
}

// Touch advances last_activity, enforcing the monotonic-non-decreasing invariant.
func (c *Context) Touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(c.LastActivity) {
		c.LastActivity = now
	}
}

// IdleFor returns now - last_activity.
func (c *Context) IdleFor(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Sub(c.LastActivity)
}

// SessionDuration returns now - started_at.
func (c *Context) SessionDuration(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Sub(c.StartedAt)
}

// RetriesPerField derives the {field -> attempts} map used by the lead
// scorer's behavior-penalty rules from the per-field validation records.
func (c *Context) RetriesPerField() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.FieldValidations))
	for field, fv := range c.FieldValidations {
		out[field] = fv.Attempts
	}
	return out
}

// SetVariable stores a value in the free-form variables map (used by LOOP to persist
// iteration counters, and by PARALLEL to persist sibling-path bookkeeping).
func (c *Context) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Variables == nil {
		c.Variables = map[string]any{}
	}
	c.Variables[key] = value
}

// GetVariable reads a value from the variables map.
func (c *Context) GetVariable(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Variables[key]
	return v, ok
}
