// Package ice brokers TURN/STUN credentials from an external vendor. The
// server itself never uses the credentials; it only relays them to clients.
package ice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/shareview/signaller/internal/v1/logging"
	"github.com/shareview/signaller/internal/v1/metrics"
	"github.com/shareview/signaller/internal/v1/protocol"
)

const defaultBaseURL = "https://api.twilio.com"

// Disabled is the broker used when no vendor credentials are configured.
// It always returns an empty list.
type Disabled struct{}

func (Disabled) ICEServers(_ context.Context) ([]protocol.IceServer, error) {
	return []protocol.IceServer{}, nil
}

// Twilio requests short-lived TURN credentials from the Twilio token API.
// Calls go through a circuit breaker so a degraded vendor cannot stall every
// ice_servers dispatch behind slow timeouts.
type Twilio struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

// NewTwilio creates a broker for the given account credentials.
func NewTwilio(accountSID, authToken string) *Twilio {
	st := gobreaker.Settings{
		Name:        "twilio",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         gobreaker.NewCircuitBreaker(st),
	}
}

// token is the subset of Twilio's Tokens resource the broker reads.
type token struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	IceServers []struct {
		URL string `json:"url"`
	} `json:"ice_servers"`
}

// ICEServers fetches a fresh TURN token and maps it into the wire schema.
func (t *Twilio) ICEServers(ctx context.Context) ([]protocol.IceServer, error) {
	result, err := t.cb.Execute(func() (interface{}, error) {
		return t.createToken(ctx)
	})
	if err != nil {
		return nil, err
	}

	tok := result.(*token)
	servers := make([]protocol.IceServer, 0, len(tok.IceServers))
	for _, s := range tok.IceServers {
		if s.URL == "" {
			continue
		}
		servers = append(servers, protocol.IceServer{
			URL:      s.URL,
			Username: tok.Username,
			Password: tok.Password,
		})
	}

	logging.Info(ctx, "fetched ICE servers from vendor", zap.Int("count", len(servers)))
	return servers, nil
}

func (t *Twilio) createToken(ctx context.Context) (*token, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Tokens.json",
		t.baseURL, url.PathEscape(t.accountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twilio token request returned status %d", resp.StatusCode)
	}

	var tok token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding twilio token response: %w", err)
	}
	return &tok, nil
}
