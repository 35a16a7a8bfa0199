package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/events"
	"github.com/glasspane/glasspane/internal/infrastructure/monitoring"
	"github.com/glasspane/glasspane/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // gateway sits behind its own origin policy
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	subscriberBuffer = 64
)

// Handler streams policy events to WebSocket clients.
type Handler struct {
	bus     *events.Bus
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a WebSocket event-stream handler.
func NewHandler(bus *events.Bus, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{bus: bus, metrics: metrics, log: log.Component("ws")}
}

// HandleConnection upgrades the request and forwards bus events until the
// client goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	ch, cancel := h.bus.Subscribe(subscriberBuffer)
	defer cancel()

	// Drain client frames so pong handlers run and closes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			raw, err := e.Marshal()
			if err != nil {
				h.log.Warn("event marshal failed", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
