// Package transport bridges WebSocket connections into the signalling
// dispatcher.
package transport

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/metrics"
	"github.com/shareview/signaller/internal/v1/ratelimit"
	"github.com/shareview/signaller/internal/v1/registry"
)

// Hub accepts WebSocket upgrades and runs one Client per connection.
type Hub struct {
	registry   *registry.Registry
	dispatcher messageHandler
	limiter    *ratelimit.Limiter
	ipSalt     []byte
	upgrader   websocket.Upgrader
}

// NewHub creates a Hub. limiter may be nil to disable connection throttling;
// an empty allowedOrigins list accepts every origin (the server performs no
// client authentication by design).
func NewHub(reg *registry.Registry, dispatcher messageHandler, limiter *ratelimit.Limiter, allowedOrigins []string, ipSalt []byte) *Hub {
	return &Hub{
		registry:   reg,
		dispatcher: dispatcher,
		limiter:    limiter,
		ipSalt:     ipSalt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		return allowedSet[origin]
	}
}

// ServeWs upgrades the HTTP request and starts the connection's pumps.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.AllowWebSocket(c) {
		return // response already written
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Not a WebSocket handshake; the upgrader already replied.
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	h.HandleConnection(conn)
}

// HandleConnection wires an established connection into the dispatcher.
func (h *Hub) HandleConnection(conn wsConnection) {
	hashedIP := h.hashRemote(conn.RemoteAddr())
	metrics.IncConnection(hashedIP)
	logging.Info(context.Background(), "websocket connection established",
		zap.String("remote", conn.RemoteAddr().String()))

	client := newClient(conn, h.dispatcher, hashedIP, h.handleDisconnect)
	go client.writePump()
	go client.readPump()
}

// handleDisconnect runs when a connection's read pump exits. If the remote
// address owned a session, the registry tears it down.
func (h *Hub) handleDisconnect(c *Client) {
	h.registry.OnDisconnect(c.remoteAddr)
	metrics.DecConnection(c.hashedIP)
	logging.Info(context.Background(), "websocket disconnected",
		zap.String("remote", c.remoteAddr))
}

// hashRemote derives the hashed_ip metric label from a remote socket address.
func (h *Hub) hashRemote(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "unknown"
	}
	return metrics.HashIP(ip, h.ipSalt)
}

// Shutdown closes every session, notifying all viewers, before the process
// exits.
func (h *Hub) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down hub - closing all sessions")
	h.registry.CloseAllSessions()
	return nil
}
