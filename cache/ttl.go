package cache

import (
	"strings"
	"time"
)

// Rule maps a URL path prefix to a freshness duration
type Rule struct {
	Prefix string
	TTL    time.Duration
}

// NewTTLRegistry returns a registry resolving per-endpoint freshness
// durations. Rules are evaluated in declaration order and the first prefix
// match wins, so overlapping prefixes must be ordered deliberately;
// defaultTTL applies when no rule matches.
func NewTTLRegistry(rules []Rule, defaultTTL time.Duration) *TTLRegistry {
	return &TTLRegistry{
		rules:      rules,
		defaultTTL: defaultTTL,
	}
}

// TTLRegistry is an ordered mapping from URL path prefix to a freshness duration
type TTLRegistry struct {
	rules      []Rule
	defaultTTL time.Duration
}

// Lookup returns the freshness duration for a request path
func (r *TTLRegistry) Lookup(path string) time.Duration {
	for _, rule := range r.rules {
		if strings.HasPrefix(path, rule.Prefix) {
			return rule.TTL
		}
	}

	return r.defaultTTL
}
