// Package observer implements fan-out of engine analytics events to
// registered observers: live dashboards over WebSocket, HTTP callbacks,
// and test doubles. Delivery is fire-and-forget; a slow or failing
// observer never blocks the chat path.
package observer

import (
	"context"

	"github.com/smilemakc/convoflow/pkg/models"
)

// Observer receives analytics events emitted by the engine.
type Observer interface {
	// OnEvent is called for every event that passes the observer's filter.
	OnEvent(ctx context.Context, event models.AnalyticsEvent) error

	// Name returns the observer's unique identifier.
	Name() string

	// Filter returns the event filter for this observer (nil = all events).
	Filter() EventFilter
}

// EventFilter decides which events reach an observer.
type EventFilter interface {
	ShouldNotify(event models.AnalyticsEvent) bool
}

// EventTypeFilter filters events by their analytics event type.
type EventTypeFilter struct {
	allowedTypes map[models.AnalyticsEventType]bool
}

// NewEventTypeFilter creates a filter for specific event types. With no
// types given it returns nil, which means all events.
func NewEventTypeFilter(types ...models.AnalyticsEventType) EventFilter {
	if len(types) == 0 {
		return nil
	}
	filter := &EventTypeFilter{allowedTypes: make(map[models.AnalyticsEventType]bool, len(types))}
	for _, t := range types {
		filter.allowedTypes[t] = true
	}
	return filter
}

// ShouldNotify implements EventFilter.
func (f *EventTypeFilter) ShouldNotify(event models.AnalyticsEvent) bool {
	if f == nil || len(f.allowedTypes) == 0 {
		return true
	}
	return f.allowedTypes[event.EventType]
}

// TenantFilter restricts an observer to a single tenant's events.
type TenantFilter struct {
	tenantID string
}

// NewTenantFilter creates a filter that passes only the given tenant's events.
func NewTenantFilter(tenantID string) EventFilter {
	return &TenantFilter{tenantID: tenantID}
}

// ShouldNotify implements EventFilter.
func (f *TenantFilter) ShouldNotify(event models.AnalyticsEvent) bool {
	return f.tenantID == "" || event.TenantID == f.tenantID
}

// CombinedFilter requires every inner filter to pass.
type CombinedFilter struct {
	filters []EventFilter
}

// NewCombinedFilter composes filters with AND semantics.
func NewCombinedFilter(filters ...EventFilter) EventFilter {
	return &CombinedFilter{filters: filters}
}

// ShouldNotify implements EventFilter.
func (f *CombinedFilter) ShouldNotify(event models.AnalyticsEvent) bool {
	for _, inner := range f.filters {
		if inner != nil && !inner.ShouldNotify(event) {
			return false
		}
	}
	return true
}
