package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.1:54321"
	return c, rec
}

func TestNew_InvalidRate(t *testing.T) {
	_, err := New("not-a-rate")
	assert.Error(t, err)
}

func TestAllowWebSocket_UnderLimit(t *testing.T) {
	rl, err := New("100-M")
	require.NoError(t, err)

	c, _ := newTestContext()
	assert.True(t, rl.AllowWebSocket(c))
}

func TestAllowWebSocket_OverLimit(t *testing.T) {
	rl, err := New("2-M")
	require.NoError(t, err)

	var rec *httptest.ResponseRecorder
	allowedCount := 0
	for i := 0; i < 3; i++ {
		var c *gin.Context
		c, rec = newTestContext()
		if rl.AllowWebSocket(c) {
			allowedCount++
		}
	}

	assert.Equal(t, 2, allowedCount)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Retry-After"))
}
