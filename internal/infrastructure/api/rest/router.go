package rest

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
)

// NewRouter builds the gin engine with the full route table.
func NewRouter(s *Server, ws *WebSocketObserver, wsBufferSize int, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/health", s.Health)

	engineGroup := router.Group("/engine")
	{
		engineGroup.POST("/step", s.Step)
		engineGroup.GET("/context/:conversation_id", s.GetContext)
		engineGroup.GET("/score/:conversation_id", s.GetScore)
	}

	graphsGroup := router.Group("/graphs")
	{
		graphsGroup.POST("", s.RegisterGraph)
		graphsGroup.POST("/validate", s.ValidateGraph)
	}

	if ws != nil {
		router.GET("/ws/events", ws.Handler(wsBufferSize))
	}

	return router
}

// requestLogger logs each request with latency and status.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log != nil {
			log.Info("http request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"latency_ms", time.Since(start).Milliseconds(),
			)
		}
	}
}
