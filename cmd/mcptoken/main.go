// Command mcptoken prints a bearer token for the HTTP transport, signed with
// MCP_AUTH_SECRET. MCP_TOKEN_SUBJECT and MCP_TOKEN_TTL override the
// defaults.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	httpsvr "github.com/quantmcp/quantmcp/internal/http"
)

const (
	defaultSubject = "operator"
	defaultTTL     = 24 * time.Hour
)

func main() {
	token, err := issueToken(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mcptoken:", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, token)
}

func issueToken(getenv func(string) string) (string, error) {
	secret := strings.TrimSpace(getenv("MCP_AUTH_SECRET"))
	if secret == "" {
		return "", errors.New("MCP_AUTH_SECRET is required")
	}
	subject := strings.TrimSpace(getenv("MCP_TOKEN_SUBJECT"))
	if subject == "" {
		subject = defaultSubject
	}
	ttl := defaultTTL
	if raw := strings.TrimSpace(getenv("MCP_TOKEN_TTL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return "", fmt.Errorf("MCP_TOKEN_TTL %q must be a positive duration", raw)
		}
		ttl = d
	}
	return httpsvr.NewAuthenticator(secret, httpsvr.DefaultIssuer).IssueToken(subject, ttl)
}
