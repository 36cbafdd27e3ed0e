package store

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/pkg/models"
)

// TimeoutSweeper periodically scans persisted contexts and marks
// conversations whose idle time exceeds the session timeout as TIMEOUT, so
// that a lead who simply stops answering is still closed out and counted,
// not only one who sends a late message.
type TimeoutSweeper struct {
	contexts       *ContextStore
	sink           interface {
		Emit(ctx context.Context, event models.AnalyticsEvent)
	}
	sessionTimeout time.Duration
	log            *logger.Logger
	cron           *cron.Cron
}

// NewTimeoutSweeper creates a sweeper over the given context store. sink may
// be nil when abandonment events are not wanted.
func NewTimeoutSweeper(contexts *ContextStore, sink interface {
	Emit(ctx context.Context, event models.AnalyticsEvent)
}, sessionTimeout time.Duration, log *logger.Logger) *TimeoutSweeper {
	if log == nil {
		log = logger.Default()
	}
	return &TimeoutSweeper{
		contexts:       contexts,
		sink:           sink,
		sessionTimeout: sessionTimeout,
		log:            log,
		cron:           cron.New(),
	}
}

// Start schedules the sweep on the given cron spec (e.g. "@every 1m").
func (s *TimeoutSweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish.
func (s *TimeoutSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass. It returns the number of conversations it timed out.
func (s *TimeoutSweeper) Sweep(ctx context.Context) int {
	ids, err := s.contexts.ActiveConversationIDs(ctx)
	if err != nil {
		s.log.Error("timeout sweep scan failed", "error", err)
		return 0
	}

	now := time.Now().UTC()
	swept := 0
	for _, id := range ids {
		cctx, err := s.contexts.Load(ctx, id)
		if err != nil {
			continue
		}
		if cctx.Status().IsTerminal() {
			continue
		}
		if cctx.IdleFor(now) <= s.sessionTimeout {
			continue
		}
		cctx.SetStatus(models.StatusTimeout)
		if err := s.contexts.Save(ctx, cctx); err != nil {
			s.log.Error("timeout sweep save failed", "conversation_id", id, "error", err)
			continue
		}
		swept++
		if s.sink != nil {
			s.sink.Emit(ctx, models.AnalyticsEvent{
				TenantID:       cctx.TenantID,
				LeadID:         cctx.LeadID,
				ConversationID: cctx.ConversationID,
				EventType:      models.EventFlowAbandoned,
				EventData:      map[string]any{"idle_seconds": int(cctx.IdleFor(now).Seconds())},
				CreatedAt:      now,
			})
		}
	}
	if swept > 0 {
		s.log.Info("timeout sweep completed", "timed_out", swept)
	}
	return swept
}
