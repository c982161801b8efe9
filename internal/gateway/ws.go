// ABOUTME: WebSocket transport bridging client connections to the session coordinator
// ABOUTME: One reader and one writer goroutine per connection; the writer drains the hub outbox

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/helpdesk-gateway/internal/metrics"
	"github.com/2389/helpdesk-gateway/internal/protocol"
)

// wsConn is one upgraded client connection.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	outbox <-chan *protocol.Event
	logger *slog.Logger
}

func (g *Gateway) upgrader() *websocket.Upgrader {
	allowed := g.config.CORS.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		},
	}
}

// handleWebSocket upgrades the request and serves the connection until it
// closes. The disconnect is reported to the coordinator exactly once.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader().Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbox, err := g.hub.Subscribe(ctx, connID)
	if err != nil {
		g.logger.Warn("rejecting websocket connection", "error", err)
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = ws.Close()
		return
	}

	c := &wsConn{
		id:     connID,
		ws:     ws,
		outbox: outbox,
		logger: g.logger.With("connection_id", connID),
	}
	metrics.WebSocketConnections.Inc()
	c.logger.Debug("websocket connected", "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.writePump(c)
	}()

	g.readPump(c)

	g.coordinator.Disconnect(connID)
	cancel()
	<-done

	metrics.WebSocketConnections.Dec()
	c.logger.Debug("websocket disconnected")
}

// readPump decodes inbound frames until the connection fails or closes.
func (g *Gateway) readPump(c *wsConn) {
	defer c.ws.Close()

	tc := g.config.Transport
	c.ws.SetReadLimit(tc.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(tc.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(tc.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		g.handleFrame(c, data)
	}
}

// handleFrame validates one frame and hands it to the coordinator.
func (g *Gateway) handleFrame(c *wsConn, data []byte) {
	frame, err := protocol.ParseFrame(data)
	if err == nil {
		var req protocol.Request
		req, err = protocol.Decode(frame)
		if err == nil {
			_ = g.coordinator.Dispatch(c.id, req)
			return
		}
	}

	if errors.Is(err, protocol.ErrUnknownType) {
		c.logger.Debug("ignoring unknown event", "type", frame.Type)
		metrics.InboundEvents.WithLabelValues("unknown", "ignored").Inc()
		return
	}

	var verr *protocol.ValidationError
	message := "Invalid request"
	if errors.As(err, &verr) {
		message = verr.PublicMessage()
	}
	c.logger.Debug("rejecting malformed event", "type", frame.Type, "error", err)
	metrics.InboundEvents.WithLabelValues("malformed", "error").Inc()
	g.hub.SendTo(c.id, protocol.NewError(message))
}

// writePump drains the outbox and keeps the connection alive with pings.
// It returns when the outbox is closed or a write fails.
func (g *Gateway) writePump(c *wsConn) {
	tc := g.config.Transport
	ticker := time.NewTicker(tc.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(tc.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := ev.Encode()
			if err != nil {
				c.logger.Error("failed to encode event", "type", ev.Type, "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(tc.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
