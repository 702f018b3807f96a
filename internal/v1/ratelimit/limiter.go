// Package ratelimit throttles WebSocket upgrades per client IP using an
// in-memory store.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/metrics"
)

// Limiter enforces the per-IP connection rate.
type Limiter struct {
	ws *limiter.Limiter
}

// New creates a Limiter from a formatted rate such as "100-M".
func New(wsRate string) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(wsRate)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket rate: %w", err)
	}
	return &Limiter{ws: limiter.New(memory.NewStore(), rate)}, nil
}

// AllowWebSocket checks whether this IP may open another connection.
// Returns false after writing a 429 response. Store failures fail open.
func (rl *Limiter) AllowWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()

	ipContext, err := rl.ws.Get(ctx, c.ClientIP())
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err))
		return true
	}

	if ipContext.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(ipContext.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}
