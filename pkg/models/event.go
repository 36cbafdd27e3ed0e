package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AnalyticsEventType is the closed set of event kinds the engine emits
// fire-and-forget.
type AnalyticsEventType string

const (
	EventConversationStarted   AnalyticsEventType = "conversation_started"
	EventConversationEnded     AnalyticsEventType = "conversation_ended"
	EventConversationAbandoned AnalyticsEventType = "conversation_abandoned"
	EventMessageReceived       AnalyticsEventType = "message_received"
	EventMessageSent           AnalyticsEventType = "message_sent"
	EventMessageFailed         AnalyticsEventType = "message_failed"
	EventFieldCollected        AnalyticsEventType = "field_collected"
	EventFieldValidationFailed AnalyticsEventType = "field_validation_failed"
	EventFieldRetry            AnalyticsEventType = "field_retry"
	EventNodeEntered           AnalyticsEventType = "node_entered"
	EventNodeCompleted         AnalyticsEventType = "node_completed"
	EventConditionEvaluated    AnalyticsEventType = "condition_evaluated"
	EventSwitchBranchTaken     AnalyticsEventType = "switch_branch_taken"
	EventFlowCompleted         AnalyticsEventType = "flow_completed"
	EventFlowAbandoned         AnalyticsEventType = "flow_abandoned"
	EventLeadScored            AnalyticsEventType = "lead_scored"
	EventLeadQualified         AnalyticsEventType = "lead_qualified"
	EventLeadDisqualified      AnalyticsEventType = "lead_disqualified"
	EventTemperatureChanged    AnalyticsEventType = "temperature_changed"
	EventNotificationTriggered AnalyticsEventType = "notification_triggered"
	EventNotificationSent      AnalyticsEventType = "notification_sent"
	EventNotificationFailed    AnalyticsEventType = "notification_failed"
	EventHandoffRequested      AnalyticsEventType = "handoff_requested"
	EventHandoffCompleted      AnalyticsEventType = "handoff_completed"
	EventUserIntentDetected    AnalyticsEventType = "user_intent_detected"
	EventSentimentDetected     AnalyticsEventType = "sentiment_detected"
	EventErrorOccurred         AnalyticsEventType = "error_occurred"
	EventRateLimited           AnalyticsEventType = "rate_limited"
)

// AnalyticsEvent is one row appended to the analytics sink. The engine never reads these back.
type AnalyticsEvent struct {
	bun.BaseModel `bun:"table:analytics_events" json:"-"`

	ID             string             `json:"id" bun:",pk"`
	TenantID       string             `json:"tenant_id" bun:",notnull"`
	LeadID         string             `json:"lead_id,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
	EventType      AnalyticsEventType `json:"event_type" bun:",notnull"`
	EventData      map[string]any     `json:"event_data,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bun:",notnull,default:current_timestamp"`
}
