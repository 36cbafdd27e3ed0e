// Package store implements the persistence boundary of the engine: the
// Redis-backed conversation context snapshot store and per-conversation
// lock, the Postgres-backed append-only analytics event sink, and the
// session-timeout sweeper.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/smilemakc/convoflow/internal/config"
	"github.com/smilemakc/convoflow/pkg/models"
)

// NewDB opens the analytics Postgres database.
func NewDB(cfg config.DatabaseConfig, debug bool) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL)))
	sqldb.SetMaxOpenConns(cfg.MaxConnections)
	sqldb.SetMaxIdleConns(cfg.MinConnections)
	sqldb.SetConnMaxIdleTime(cfg.MaxIdleTime)
	sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)

	db := bun.NewDB(sqldb, pgdialect.New(), bun.WithDiscardUnknownColumns())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// InitAnalyticsSchema creates the analytics_events table when absent. The
// sink only ever appends; there are no migrations to run beyond this.
func InitAnalyticsSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.AnalyticsEvent)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}
	return nil
}
