package engine

import (
	"context"

	"github.com/smilemakc/convoflow/pkg/models"
)

// AnalyticsSink is the boundary the engine emits typed events across. The
// engine never reads events back and never blocks a step on delivery — Engine.emit always
// dispatches off the request goroutine.
type AnalyticsSink interface {
	Emit(ctx context.Context, event models.AnalyticsEvent)
}

// NoopSink discards every event; the zero value of Engine is safe to step
// with no sink configured.
type NoopSink struct{}

// Emit implements AnalyticsSink.
func (NoopSink) Emit(context.Context, models.AnalyticsEvent) {}

// TeeSink fans each event out to several sinks, letting the persistent
// event store and the live observer fan-out both see the same stream.
type TeeSink []AnalyticsSink

// Emit implements AnalyticsSink.
func (t TeeSink) Emit(ctx context.Context, event models.AnalyticsEvent) {
	for _, sink := range t {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}

// emit fires an analytics event without blocking the step. A fresh context decouples
// delivery from the caller's step deadline, which may already have expired
// by the time the sink's goroutine runs.
func (e *Engine) emit(tenantID, leadID, conversationID string, eventType models.AnalyticsEventType, data map[string]any) {
	if e.Sink == nil {
		return
	}
	ev := models.AnalyticsEvent{
		ID:             e.newID(),
		TenantID:       tenantID,
		LeadID:         leadID,
		ConversationID: conversationID,
		EventType:      eventType,
		EventData:      data,
	}
	sink := e.Sink
	go sink.Emit(context.Background(), ev)
}
