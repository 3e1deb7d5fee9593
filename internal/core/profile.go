package core

import (
	"fmt"
	"strings"
)

// ProfileDefaults holds environment-specific default configuration values.
// Profiles provide defaults only; explicit env vars always override.
type ProfileDefaults struct {
	Name              string
	APITimeoutSeconds int
	APIMaxAttempts    int
	LogLevel          string
}

var profiles = map[string]*ProfileDefaults{
	"dev": {
		Name:              "dev",
		APITimeoutSeconds: 60,
		APIMaxAttempts:    3,
		LogLevel:          "debug",
	},
	"prod": {
		Name:              "prod",
		APITimeoutSeconds: 30,
		APIMaxAttempts:    4,
		LogLevel:          "info",
	},
}

// LoadProfile returns profile defaults for the given name.
// Empty name defaults to "dev". Unknown names return an error.
func LoadProfile(name string) (*ProfileDefaults, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		name = "dev"
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (valid: dev, prod)", name)
	}
	copy := *p
	return &copy, nil
}
