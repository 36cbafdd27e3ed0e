package store

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/pkg/models"
)

// AnalyticsSink appends engine events to Postgres through a bounded queue
// with drop-oldest overflow, so an unreachable database sheds events instead
// of surfacing back-pressure to the chat path.
type AnalyticsSink struct {
	db    bun.IDB
	log   *logger.Logger
	queue chan models.AnalyticsEvent

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewAnalyticsSink creates a sink and starts its background writer.
func NewAnalyticsSink(db bun.IDB, queueSize int, log *logger.Logger) *AnalyticsSink {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = logger.Default()
	}
	s := &AnalyticsSink{
		db:    db,
		log:   log,
		queue: make(chan models.AnalyticsEvent, queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit implements the engine's AnalyticsSink boundary: enqueue without
// blocking, dropping the oldest queued event when full.
func (s *AnalyticsSink) Emit(_ context.Context, event models.AnalyticsEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	for {
		select {
		case s.queue <- event:
			return
		default:
		}
		select {
		case dropped := <-s.queue:
			s.log.Warn("analytics queue full, dropping oldest event", "event_type", string(dropped.EventType))
		default:
		}
	}
}

func (s *AnalyticsSink) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			s.drain()
			return
		case event := <-s.queue:
			s.insert(event)
		}
	}
}

func (s *AnalyticsSink) drain() {
	for {
		select {
		case event := <-s.queue:
			s.insert(event)
		default:
			return
		}
	}
}

func (s *AnalyticsSink) insert(event models.AnalyticsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.db.NewInsert().Model(&event).Exec(ctx); err != nil {
		s.log.Error("failed to append analytics event",
			"event_type", string(event.EventType),
			"conversation_id", event.ConversationID,
			"error", err,
		)
	}
}

// Close stops the background writer after draining what is queued.
func (s *AnalyticsSink) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
