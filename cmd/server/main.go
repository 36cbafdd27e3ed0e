// ConvoFlow Server - conversation-flow execution engine
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smilemakc/convoflow/internal/application/observer"
	"github.com/smilemakc/convoflow/internal/config"
	"github.com/smilemakc/convoflow/internal/infrastructure/api/rest"
	"github.com/smilemakc/convoflow/internal/infrastructure/cache"
	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/internal/store"
	"github.com/smilemakc/convoflow/pkg/engine"
	"github.com/smilemakc/convoflow/pkg/executor"
	"github.com/smilemakc/convoflow/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("Starting ConvoFlow Server",
		"version", "2.0.0",
		"port", cfg.Server.Port,
	)

	// Initialize the analytics database
	db, err := store.NewDB(cfg.Database, cfg.Logging.Level == "debug")
	if err != nil {
		appLogger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.InitAnalyticsSchema(context.Background(), db); err != nil {
		appLogger.Error("Failed to initialize analytics schema", "error", err)
		os.Exit(1)
	}

	// Initialize Redis for context snapshots and conversation locks
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		appLogger.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	contexts := store.NewContextStore(redisCache.Client(), cfg.Engine.ContextTTL)
	lock := store.NewRedisLock(redisCache.Client(), cfg.Engine.LockTTL, appLogger)

	// Analytics pipeline: persistent sink plus live observer fan-out
	sink := store.NewAnalyticsSink(db, cfg.Observer.BufferSize, appLogger)
	defer sink.Close()

	observers := observer.NewManager(observer.WithLogger(appLogger))

	var wsObserver *rest.WebSocketObserver
	if cfg.Observer.EnableWebSocket {
		wsObserver = rest.NewWebSocketObserver(appLogger, cfg.Observer.WebSocketBufferSize)
		if err := observers.Register(wsObserver); err != nil {
			appLogger.Error("Failed to register websocket observer", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Observer.EnableHTTP && cfg.Observer.HTTPCallbackURL != "" {
		httpObs := observer.NewHTTPCallbackObserver(cfg.Observer.HTTPCallbackURL,
			observer.WithHTTPMethod(cfg.Observer.HTTPMethod),
			observer.WithHTTPHeaders(cfg.Observer.HTTPHeaders),
			observer.WithHTTPTimeout(cfg.Observer.HTTPTimeout),
			observer.WithHTTPRetry(cfg.Observer.HTTPMaxRetries, cfg.Observer.HTTPRetryDelay, 2.0),
		)
		if err := observers.Register(httpObs); err != nil {
			appLogger.Error("Failed to register http observer", "error", err)
			os.Exit(1)
		}
	}

	var engineSink engine.AnalyticsSink = engine.TeeSink{sink, observers}
	if !cfg.Observer.EnableDatabase {
		engineSink = engine.TeeSink{observers}
	}

	// Conversation engine
	eng := engine.New(http.DefaultClient)
	eng.Lock = lock
	eng.Sink = engineSink
	eng.Logger = appLogger

	// Action executors for side-effect requests the engine emits
	actions := executor.NewManager()
	if err := executor.RegisterBuiltins(actions, http.DefaultClient, appLogger); err != nil {
		appLogger.Error("Failed to register action executors", "error", err)
		os.Exit(1)
	}

	// Session-timeout sweeper for conversations that never message again
	sessionTimeout := time.Duration(models.DefaultGlobalConfig().SessionTimeoutSeconds) * time.Second
	sweeper := store.NewTimeoutSweeper(contexts, engineSink, sessionTimeout, appLogger)
	if err := sweeper.Start(fmt.Sprintf("@every %s", cfg.Engine.SessionSweepInterval)); err != nil {
		appLogger.Error("Failed to start timeout sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	// HTTP surface
	server := &rest.Server{
		Engine:       eng,
		Graphs:       rest.NewGraphRegistry(),
		Contexts:     contexts,
		Actions:      actions,
		Log:          appLogger,
		StepDeadline: cfg.Engine.StepDeadline,
	}
	router := rest.NewRouter(server, wsObserver, cfg.Observer.WebSocketBufferSize, appLogger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed", "error", err)
	}
	appLogger.Info("Server stopped")
}
