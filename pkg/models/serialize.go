package models

import (
	"encoding/json"
	"sort"
	"time"
)

// contextJSON is the stable wire shape of Context: timestamps as ISO-8601, sets as sorted arrays,
// statuses as lowercase snake-case strings. Unknown keys are ignored on
// load; missing keys take their defaults.
type contextJSON struct {
	SchemaVersion string `json:"schema_version"`

	ConversationID string `json:"conversation_id"`
	LeadID         string `json:"lead_id"`
	TenantID       string `json:"tenant_id"`
	GraphID        string `json:"graph_id"`

	CurrentNodeID  string `json:"current_node_id"`
	PreviousNodeID string `json:"previous_node_id,omitempty"`
	Status         Status `json:"status"`

	Visits           []NodeVisit                 `json:"visits"`
	VisitedNodeIDs   []string                    `json:"visited_node_ids"`
	CollectedData    map[string]any              `json:"collected_data"`
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

// MarshalJSON is an explicit encode to the stable wire shape, not a
// reflection-based dump.
func (c *Context) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.visitedIDs))
	for id := range c.visitedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return json.Marshal(contextJSON{
		SchemaVersion:       c.SchemaVersion,
		ConversationID:      c.ConversationID,
		LeadID:              c.LeadID,
		TenantID:            c.TenantID,
		GraphID:             c.GraphID,
		CurrentNodeID:       c.CurrentNodeID,
		PreviousNodeID:      c.PreviousNodeID,
		Status:              c.StatusVal,
		Visits:              c.Visits,
		VisitedNodeIDs:      ids,
		CollectedData:       c.CollectedData,
		FieldValidations:    c.FieldValidations,
		GlobalRetries:       c.GlobalRetries,
		CurrentFieldRetries: c.CurrentFieldRetries,
		StartedAt:           c.StartedAt,
		LastActivity:        c.LastActivity,
		AwaitingInput:       c.AwaitingInput,
		AwaitingMedia:       c.AwaitingMedia,
		ExpectedMediaKind:   c.ExpectedMediaKind,
		IsQualified:         c.IsQualified,
		QualificationScore:  c.QualificationScore,
		Variables:           c.Variables,
		Metadata:            c.Metadata,
	})
}

// UnmarshalJSON decodes the wire shape, defaulting every missing key and
// rebuilding the visited-ID set from the visit history, so the set stays
// consistent even when the snapshot predates the visited_node_ids key.
func (c *Context) UnmarshalJSON(data []byte) error {
	var w contextJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.SchemaVersion = w.SchemaVersion
	if c.SchemaVersion == "" {
		c.SchemaVersion = SchemaVersion
	}
	c.ConversationID = w.ConversationID
	c.LeadID = w.LeadID
	c.TenantID = w.TenantID
	c.GraphID = w.GraphID
	c.CurrentNodeID = w.CurrentNodeID
	c.PreviousNodeID = w.PreviousNodeID
	c.StatusVal = w.Status
	if c.StatusVal == "" {
		c.StatusVal = StatusNotStarted
	}
	c.Visits = w.Visits
	if c.Visits == nil {
		c.Visits = []NodeVisit{}
	}
	c.CollectedData = w.CollectedData
	if c.CollectedData == nil {
		c.CollectedData = map[string]any{}
	}
	c.FieldValidations = w.FieldValidations
	if c.FieldValidations == nil {
		c.FieldValidations = map[string]*FieldValidation{}
	}
	c.GlobalRetries = w.GlobalRetries
	c.CurrentFieldRetries = w.CurrentFieldRetries
	c.StartedAt = w.StartedAt
	c.LastActivity = w.LastActivity
	c.AwaitingInput = w.AwaitingInput
	c.AwaitingMedia = w.AwaitingMedia
	c.ExpectedMediaKind = w.ExpectedMediaKind
	c.IsQualified = w.IsQualified
	c.QualificationScore = w.QualificationScore
	c.Variables = w.Variables
	if c.Variables == nil {
		c.Variables = map[string]any{}
	}
	c.Metadata = w.Metadata
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}

	c.visitedIDs = make(map[string]struct{}, len(c.Visits))
	for _, v := range c.Visits {
		c.visitedIDs[v.NodeID] = struct{}{}
	}
	for _, id := range w.VisitedNodeIDs {
		c.visitedIDs[id] = struct{}{}
	}
	return nil
}
