package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"QUANTCONNECT_USER_ID":   "123",
		"QUANTCONNECT_API_TOKEN": "tok",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(envMap(baseEnv()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile.Name != "dev" {
		t.Fatalf("profile = %q", cfg.Profile.Name)
	}
	if cfg.Transport != TransportStdio {
		t.Fatalf("transport = %q", cfg.Transport)
	}
	if cfg.AgentName != "MCP Server" {
		t.Fatalf("agent = %q", cfg.AgentName)
	}
	if cfg.APITimeout != 60*time.Second || cfg.APIMaxAttempts != 3 {
		t.Fatalf("api timeout/attempts = %v/%d", cfg.APITimeout, cfg.APIMaxAttempts)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["MCP_PROFILE"] = "prod"
	env["MCP_TRANSPORT"] = "HTTP"
	env["MCP_API_TIMEOUT_SECONDS"] = "5"
	env["AGENT_NAME"] = "Research Agent"
	env["MCP_LOG_LEVEL"] = "warn"

	cfg, err := Load(envMap(env))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != TransportHTTP {
		t.Fatalf("transport = %q", cfg.Transport)
	}
	if cfg.APITimeout != 5*time.Second || cfg.APIMaxAttempts != 4 {
		t.Fatalf("api timeout/attempts = %v/%d", cfg.APITimeout, cfg.APIMaxAttempts)
	}
	if cfg.AgentName != "Research Agent" || cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing credentials", env: map[string]string{}, want: "QUANTCONNECT_USER_ID is required"},
		{name: "unknown profile", env: map[string]string{"MCP_PROFILE": "staging"}, want: "valid: dev, prod"},
		{name: "bad transport", env: map[string]string{"MCP_TRANSPORT": "ws"}, want: "MCP_TRANSPORT"},
		{name: "bad timeout", env: map[string]string{"MCP_API_TIMEOUT_SECONDS": "-3"}, want: "MCP_API_TIMEOUT_SECONDS"},
		{name: "too many attempts", env: map[string]string{"MCP_API_MAX_ATTEMPTS": "50"}, want: "outside 1..10"},
		{name: "bad log level", env: map[string]string{"MCP_LOG_LEVEL": "loud"}, want: "MCP_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			if tt.name == "missing credentials" {
				env = map[string]string{}
			}
			for k, v := range tt.env {
				env[k] = v
			}
			_, err := Load(envMap(env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLogValueHidesSecrets(t *testing.T) {
	env := baseEnv()
	env["MCP_AUTH_SECRET"] = "s3cret"
	cfg, err := Load(envMap(env))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var sb strings.Builder
	slog.New(slog.NewTextHandler(&sb, nil)).Info("config", "cfg", cfg)
	out := sb.String()
	if strings.Contains(out, "s3cret") || strings.Contains(out, "tok") {
		t.Fatalf("secrets leaked: %s", out)
	}
	if !strings.Contains(out, "cfg.auth=true") {
		t.Fatalf("missing auth flag: %s", out)
	}
}
