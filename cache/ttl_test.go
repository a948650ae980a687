package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLLookupFirstMatchWins(t *testing.T) {
	assert := assert.New(t)

	r := NewTTLRegistry([]Rule{
		{Prefix: "/api/competitors", TTL: 5 * time.Minute},
		{Prefix: "/api/competitors/archived", TTL: time.Hour},
		{Prefix: "/api/reports", TTL: 10 * time.Minute},
	}, time.Minute)

	// declaration order decides, not prefix specificity
	assert.Equal(5*time.Minute, r.Lookup("/api/competitors/archived"))
	assert.Equal(5*time.Minute, r.Lookup("/api/competitors"))
	assert.Equal(5*time.Minute, r.Lookup("/api/competitors/5/dimensions"))
	assert.Equal(10*time.Minute, r.Lookup("/api/reports/42"))
}

func TestTTLLookupDefault(t *testing.T) {
	assert := assert.New(t)

	r := NewTTLRegistry([]Rule{
		{Prefix: "/api/competitors", TTL: 5 * time.Minute},
	}, 90*time.Second)

	assert.Equal(90*time.Second, r.Lookup("/api/settings"))
	assert.Equal(90*time.Second, r.Lookup("/"))
}

func TestTTLLookupNoRules(t *testing.T) {
	assert := assert.New(t)

	r := NewTTLRegistry(nil, 2*time.Minute)
	assert.Equal(2*time.Minute, r.Lookup("/api/anything"))
}
