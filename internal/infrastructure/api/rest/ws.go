package rest

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/smilemakc/convoflow/internal/application/observer"
	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/pkg/models"
)

// WebSocketObserver streams analytics events live to connected operator
// dashboards. It implements observer.Observer so the same manager that feeds
// the persistent sink feeds every open socket.
type WebSocketObserver struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan models.AnalyticsEvent
}

// NewWebSocketObserver creates the observer. Its bufferSize argument is not
// used; each client's send queue is sized by the bufferSize passed to
// Handler (slow clients drop events rather than stall the fan-out).
func NewWebSocketObserver(log *logger.Logger, bufferSize int) *WebSocketObserver {
	if log == nil {
		log = logger.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &WebSocketObserver{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*wsClient]struct{}),
	}
}

// Name implements observer.Observer.
func (w *WebSocketObserver) Name() string {
	return "websocket_stream"
}

// Filter implements observer.Observer; the stream carries all events.
func (w *WebSocketObserver) Filter() observer.EventFilter {
	return nil
}

// OnEvent implements observer.Observer: enqueue for every connected client,
// dropping for clients whose queue is full.
func (w *WebSocketObserver) OnEvent(_ context.Context, event models.AnalyticsEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for client := range w.conns {
		select {
		case client.send <- event:
		default:
		}
	}
	return nil
}

// Handler upgrades GET /ws/events connections and pumps events until the
// client disconnects.
func (w *WebSocketObserver) Handler(bufferSize int) gin.HandlerFunc {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return func(c *gin.Context) {
		conn, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			w.log.Error("websocket upgrade failed", "error", err)
			return
		}
		client := &wsClient{conn: conn, send: make(chan models.AnalyticsEvent, bufferSize)}

		w.mu.Lock()
		w.conns[client] = struct{}{}
		w.mu.Unlock()

		go w.writePump(client)
		w.readPump(client)
	}
}

func (w *WebSocketObserver) writePump(client *wsClient) {
	for event := range client.send {
		if err := client.conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// readPump blocks until the client closes, then tears the client down.
func (w *WebSocketObserver) readPump(client *wsClient) {
	defer func() {
		w.mu.Lock()
		delete(w.conns, client)
		w.mu.Unlock()
		close(client.send)
		_ = client.conn.Close()
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (w *WebSocketObserver) ClientCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.conns)
}
