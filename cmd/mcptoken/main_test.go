package main

import (
	"testing"

	httpsvr "github.com/quantmcp/quantmcp/internal/http"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestIssueTokenVerifiesWithServerAuthenticator(t *testing.T) {
	token, err := issueToken(envMap(map[string]string{
		"MCP_AUTH_SECRET":   "s3cret",
		"MCP_TOKEN_SUBJECT": "research-agent",
		"MCP_TOKEN_TTL":     "1h",
	}))
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	sub, err := httpsvr.NewAuthenticator("s3cret", httpsvr.DefaultIssuer).Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "research-agent" {
		t.Fatalf("subject = %q, want research-agent", sub)
	}
}

func TestIssueTokenDefaultsSubject(t *testing.T) {
	token, err := issueToken(envMap(map[string]string{"MCP_AUTH_SECRET": "s3cret"}))
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	sub, err := httpsvr.NewAuthenticator("s3cret", httpsvr.DefaultIssuer).Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != defaultSubject {
		t.Fatalf("subject = %q, want %q", sub, defaultSubject)
	}
}

func TestIssueTokenErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "bad ttl", env: map[string]string{"MCP_AUTH_SECRET": "s", "MCP_TOKEN_TTL": "soon"}},
		{name: "negative ttl", env: map[string]string{"MCP_AUTH_SECRET": "s", "MCP_TOKEN_TTL": "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issueToken(envMap(tt.env)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
