// Package config reads the server's environment into a Config, layering
// explicit variables over the selected profile's defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/qc"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
	TransportHTTP  = "http"
)

type Config struct {
	Profile *core.ProfileDefaults

	UserID    string
	APIToken  string
	APIURL    string
	AgentName string

	APITimeout     time.Duration
	APIMaxAttempts int

	Transport  string
	TCPListen  string
	HTTPListen string
	AuthSecret string

	LogLevel slog.Level

	ToolAllowlist string
	DatabaseURL   string
}

// Load reads configuration through getenv, normally os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	profile, err := core.LoadProfile(getenv("MCP_PROFILE"))
	if err != nil {
		return nil, fmt.Errorf("MCP_PROFILE: %w", err)
	}

	cfg := &Config{
		Profile:       profile,
		UserID:        env("QUANTCONNECT_USER_ID", ""),
		APIToken:      env("QUANTCONNECT_API_TOKEN", ""),
		APIURL:        env("QUANTCONNECT_API_URL", qc.DefaultBaseURL),
		AgentName:     env("AGENT_NAME", "MCP Server"),
		Transport:     strings.ToLower(env("MCP_TRANSPORT", TransportStdio)),
		TCPListen:     env("MCP_TCP_LISTEN", "127.0.0.1:8090"),
		HTTPListen:    env("MCP_HTTP_LISTEN", "127.0.0.1:8080"),
		AuthSecret:    env("MCP_AUTH_SECRET", ""),
		ToolAllowlist: env("TOOL_ALLOWLIST", ""),
		DatabaseURL:   env("DATABASE_URL", ""),
	}

	var errs []error
	if cfg.UserID == "" {
		errs = append(errs, errors.New("QUANTCONNECT_USER_ID is required"))
	}
	if cfg.APIToken == "" {
		errs = append(errs, errors.New("QUANTCONNECT_API_TOKEN is required"))
	}
	switch cfg.Transport {
	case TransportStdio, TransportTCP, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("MCP_TRANSPORT %q (valid: stdio, tcp, http)", cfg.Transport))
	}

	timeoutSecs, err := positiveInt(env("MCP_API_TIMEOUT_SECONDS", ""), profile.APITimeoutSeconds)
	if err != nil {
		errs = append(errs, fmt.Errorf("MCP_API_TIMEOUT_SECONDS: %w", err))
	}
	cfg.APITimeout = time.Duration(timeoutSecs) * time.Second

	cfg.APIMaxAttempts, err = positiveInt(env("MCP_API_MAX_ATTEMPTS", ""), profile.APIMaxAttempts)
	if err != nil {
		errs = append(errs, fmt.Errorf("MCP_API_MAX_ATTEMPTS: %w", err))
	} else if cfg.APIMaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("MCP_API_MAX_ATTEMPTS %d outside 1..10", cfg.APIMaxAttempts))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("MCP_LOG_LEVEL", profile.LogLevel))); err != nil {
		errs = append(errs, fmt.Errorf("MCP_LOG_LEVEL: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func positiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback, fmt.Errorf("%q is not a positive integer", raw)
	}
	return v, nil
}

// LogValue hides credentials when the config is logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("profile", c.Profile.Name),
		slog.String("api_url", c.APIURL),
		slog.String("agent_name", c.AgentName),
		slog.Duration("api_timeout", c.APITimeout),
		slog.Int("api_max_attempts", c.APIMaxAttempts),
		slog.String("transport", c.Transport),
		slog.Bool("auth", c.AuthSecret != ""),
		slog.Bool("journal", c.DatabaseURL != ""),
		slog.String("tool_allowlist", c.ToolAllowlist),
	)
}
