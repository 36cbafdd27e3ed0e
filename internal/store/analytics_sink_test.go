package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/smilemakc/convoflow/pkg/models"
)

func testSinkDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestAnalyticsSinkAppendsEvent(t *testing.T) {
	db, mock := testSinkDB(t)
	mock.ExpectExec(`INSERT INTO "analytics_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewAnalyticsSink(db, 8, nil)
	sink.Emit(context.Background(), models.AnalyticsEvent{
		ID:             "evt-1",
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		EventType:      models.EventNodeEntered,
		EventData:      map[string]any{"node_id": "n1"},
	})
	sink.Close()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsSinkSurvivesInsertFailure(t *testing.T) {
	db, mock := testSinkDB(t)
	mock.ExpectExec(`INSERT INTO "analytics_events"`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectExec(`INSERT INTO "analytics_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewAnalyticsSink(db, 8, nil)
	sink.Emit(context.Background(), models.AnalyticsEvent{ID: "bad", TenantID: "t", EventType: models.EventErrorOccurred})
	sink.Emit(context.Background(), models.AnalyticsEvent{ID: "good", TenantID: "t", EventType: models.EventNodeCompleted})
	sink.Close()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsSinkDropsOldestWhenFull(t *testing.T) {
	db, mock := testSinkDB(t)
	// The background writer runs from construction, so it may insert some
	// events while later emits drop the oldest queued ones; how many of the
	// 5 emits end up inserted depends on timing.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec(`INSERT INTO "analytics_events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "analytics_events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "analytics_events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "analytics_events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "analytics_events"`).WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewAnalyticsSink(db, 2, nil)
	for i := 0; i < 5; i++ {
		sink.Emit(context.Background(), models.AnalyticsEvent{
			ID:        string(rune('a' + i)),
			TenantID:  "t",
			EventType: models.EventMessageSent,
		})
	}
	sink.Close()
	// No assertion on exact insert count: the drop-oldest policy makes it
	// timing-dependent. The point is Close returns and nothing blocks.
}
