package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/pkg/models"
)

// Manager fans analytics events out to registered observers. Notification is
// non-blocking: each observer runs on its own goroutine and errors are
// logged, never propagated back to the engine's step.
type Manager struct {
	observers []Observer
	logger    *logger.Logger
	mu        sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for the manager.
func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates an empty observer manager.
func NewManager(opts ...ManagerOption) *Manager {
	mgr := &Manager{observers: make([]Observer, 0)}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Register adds an observer; names must be unique.
func (m *Manager) Register(observer Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, obs := range m.observers {
		if obs.Name() == observer.Name() {
			return fmt.Errorf("observer with name %q already registered", observer.Name())
		}
	}
	m.observers = append(m.observers, observer)
	return nil
}

// Unregister removes an observer by name.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, obs := range m.observers {
		if obs.Name() == name {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("observer %q not found", name)
}

// Emit implements the engine's AnalyticsSink boundary: every registered
// observer is notified without blocking the caller.
func (m *Manager) Emit(ctx context.Context, event models.AnalyticsEvent) {
	m.mu.RLock()
	observersCopy := make([]Observer, len(m.observers))
	copy(observersCopy, m.observers)
	m.mu.RUnlock()

	for _, obs := range observersCopy {
		go m.notifyObserver(ctx, obs, event)
	}
}

// notifyObserver delivers one event to one observer with panic recovery.
func (m *Manager) notifyObserver(ctx context.Context, obs Observer, event models.AnalyticsEvent) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "Observer panic recovered",
					"observer", obs.Name(),
					"event_type", string(event.EventType),
					"panic", r,
				)
			}
		}
	}()

	filter := obs.Filter()
	if filter != nil && !filter.ShouldNotify(event) {
		return
	}

	if err := obs.OnEvent(ctx, event); err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "Observer notification failed",
				"observer", obs.Name(),
				"event_type", string(event.EventType),
				"error", err,
			)
		}
	}
}

// Count returns the number of registered observers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}
