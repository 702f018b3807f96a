// Package config merges the YAML config file, environment variables and
// built-in defaults into one validated Config. Precedence, lowest to highest:
// defaults, file, environment. CLI flags are applied on top by the caller.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddress        = "0.0.0.0:8080"
	DefaultMetricsAddress = "0.0.0.0:9090"
	DefaultConfigPath     = "config.yaml"
	defaultRateLimitWsIP  = "100-M"
)

// Config holds the validated runtime configuration.
type Config struct {
	// Bind addresses
	Address        string `yaml:"address"`
	MetricsAddress string `yaml:"metrics_address"`

	// Twilio TURN credentials. Both empty disables the ICE broker; clients
	// then receive an empty ice_servers list.
	TwilioAccountSID string `yaml:"twilio_account_sid"`
	TwilioAuthToken  string `yaml:"twilio_auth_token"`

	// IPHashSalt is the base64 salt mixed into the hashed_ip metric label.
	IPHashSalt string `yaml:"ip_hash_salt"`

	DevelopmentMode bool     `yaml:"development_mode"`
	LogLevel        string   `yaml:"log_level"`
	AllowedOrigins  []string `yaml:"allowed_origins"`

	// RateLimitWsIP limits WebSocket upgrades per client IP, in
	// ulule/limiter notation (count-period).
	RateLimitWsIP string `yaml:"rate_limit_ws_ip"`
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. A missing file is created with an empty document so operators
// have something to edit, matching the deployment convention.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Address:        DefaultAddress,
		MetricsAddress: DefaultMetricsAddress,
		LogLevel:       "info",
		RateLimitWsIP:  defaultRateLimitWsIP,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return os.WriteFile(path, []byte("# signaller configuration\n"), 0o644)
	}
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setIfPresent(&c.Address, "SIGNALLER_ADDRESS")
	setIfPresent(&c.MetricsAddress, "SIGNALLER_METRICS_ADDRESS")
	setIfPresent(&c.TwilioAccountSID, "TWILIO_ACCOUNT_SID")
	setIfPresent(&c.TwilioAuthToken, "TWILIO_AUTH_TOKEN")
	setIfPresent(&c.IPHashSalt, "IP_HASH_SALT")
	setIfPresent(&c.LogLevel, "LOG_LEVEL")
	setIfPresent(&c.RateLimitWsIP, "RATE_LIMIT_WS_IP")

	if v := os.Getenv("DEVELOPMENT_MODE"); v == "true" {
		c.DevelopmentMode = true
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitOrigins(v)
	}
}

func (c *Config) validate() error {
	var errs []string

	if !isValidHostPort(c.Address) {
		errs = append(errs, fmt.Sprintf("address must be in format 'host:port' (got '%s')", c.Address))
	}
	if !isValidHostPort(c.MetricsAddress) {
		errs = append(errs, fmt.Sprintf("metrics_address must be in format 'host:port' (got '%s')", c.MetricsAddress))
	}
	if (c.TwilioAccountSID == "") != (c.TwilioAuthToken == "") {
		errs = append(errs, "twilio_account_sid and twilio_auth_token must be set together")
	}
	if c.IPHashSalt != "" {
		if _, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(c.IPHashSalt, "=")); err != nil {
			errs = append(errs, fmt.Sprintf("ip_hash_salt must be base64 (got '%s')", c.IPHashSalt))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TwilioEnabled reports whether both Twilio credentials are configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// SaltBytes decodes IPHashSalt. An empty salt yields a fixed fallback so the
// hashed_ip label stays stable within a deployment that never set one.
func (c *Config) SaltBytes() []byte {
	if c.IPHashSalt == "" {
		return []byte("signaller-default-salt")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(c.IPHashSalt, "="))
	if err != nil {
		// validate() rejects undecodable salts before this point.
		return []byte("signaller-default-salt")
	}
	return decoded
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	return parts[0] != ""
}

func setIfPresent(dst *string, key string) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		*dst = value
	}
}

func splitOrigins(v string) []string {
	parts := strings.Split(v, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
