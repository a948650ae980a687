package cache

import "time"

// Verdict is the freshness decision for a cached entry consulted after a
// failed network fetch
type Verdict string

const (
	// VerdictFresh means the entry's age is below its TTL
	VerdictFresh Verdict = "fresh"
	// VerdictUnknownAge means the entry carries no stamp; unknown age is
	// distinct from expired and the entry is served
	VerdictUnknownAge Verdict = "unknown age"
	// VerdictOfflineGrace means the entry is past its TTL but the client is
	// offline, so it is served anyway
	VerdictOfflineGrace Verdict = "offline grace"
	// VerdictExpired means the entry is past its TTL while the network is
	// reachable; stale data is never served silently
	VerdictExpired Verdict = "expired"
)

// Usable reports whether an entry with this verdict may be served
func (v Verdict) Usable() bool {
	return v != VerdictExpired
}

// evaluate decides whether a cached entry may stand in for a failed fetch.
// The TTL is a ceiling on staleness that only a confirmed offline state
// relaxes; a flaky but reachable network never serves arbitrarily stale data.
func evaluate(e *Entry, ttl time.Duration, now time.Time, online bool) Verdict {
	stamped, ok := e.StampedAt()
	if !ok {
		return VerdictUnknownAge
	}
	if now.Sub(stamped) < ttl {
		return VerdictFresh
	}
	if !online {
		return VerdictOfflineGrace
	}

	return VerdictExpired
}
