package server

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/offlinegate/offlinegate/cache"
)

// Config represents a server config
type Config struct {
	ListenAddr    string
	TLSListenAddr string
	TLSOnly       bool
	TLS           *TLSConfig
	Verbose       bool
	// Origin is the base URL of the fronted application server
	Origin string
	// APIRoot is the path prefix of API traffic
	APIRoot string
	// Generation tags the cache stores; bump it on deploy to retire the
	// previous generation wholesale
	Generation string
	// StorageDir holds the cache store files
	StorageDir string
	// CacheBudget is the runtime store byte budget
	CacheBudget int64
	// DefaultTTL applies to API paths without a matching TTL rule
	DefaultTTL time.Duration
	// TTLRules are evaluated in order, first prefix match wins
	TTLRules []cache.Rule
	// Precache lists asset paths installed into the static store
	Precache []string
	// SkipWaiting activates a freshly installed engine immediately
	SkipWaiting bool
}

// TLSConfig represents a TLS configuration
type TLSConfig struct {
	KeyFile  string
	CertFile string
}

// ParseTTLRules parses "prefix=duration" strings into ordered TTL rules
func ParseTTLRules(specs []string) ([]cache.Rule, error) {
	rules := make([]cache.Rule, 0, len(specs))
	for _, spec := range specs {
		prefix, value, found := strings.Cut(spec, "=")
		if !found || prefix == "" {
			return nil, errors.Errorf("invalid TTL rule %q, expected prefix=duration", spec)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid TTL rule %q", spec)
		}
		rules = append(rules, cache.Rule{Prefix: prefix, TTL: d})
	}

	return rules, nil
}
