package metrics

import (
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConnectionGauge(t *testing.T) {
	hashed := "test-hash-label"

	before := testutil.ToFloat64(NumConnectedClients.WithLabelValues(hashed))

	IncConnection(hashed)
	IncConnection(hashed)
	assert.Equal(t, before+2, testutil.ToFloat64(NumConnectedClients.WithLabelValues(hashed)))

	DecConnection(hashed)
	assert.Equal(t, before+1, testutil.ToFloat64(NumConnectedClients.WithLabelValues(hashed)))
}

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(NumOngoingSessions)

	NumOngoingSessions.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(NumOngoingSessions))

	NumOngoingSessions.Dec()
	assert.Equal(t, before, testutil.ToFloat64(NumOngoingSessions))
}

func TestHashIP_Deterministic(t *testing.T) {
	ip := net.ParseIP("203.0.113.7")
	salt := []byte("metrics-salt")

	h1 := HashIP(ip, salt)
	h2 := HashIP(ip, salt)

	assert.NotEmpty(t, h1)
	assert.Equal(t, h1, h2, "same ip and salt must hash identically")
}

func TestHashIP_SaltAndIPChangeHash(t *testing.T) {
	ip := net.ParseIP("203.0.113.7")
	other := net.ParseIP("203.0.113.8")
	salt := []byte("metrics-salt")

	assert.NotEqual(t, HashIP(ip, salt), HashIP(other, salt))
	assert.NotEqual(t, HashIP(ip, salt), HashIP(ip, []byte("different-salt")))
}

func TestHashIP_DoesNotLeakIP(t *testing.T) {
	ip := net.ParseIP("198.51.100.23")

	h := HashIP(ip, []byte("s"))
	assert.NotContains(t, h, "198.51.100.23")
}
