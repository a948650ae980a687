package cache

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// RelatedPrefix computes the invalidation prefix for a mutation path: the
// first three non-empty path segments, rejoined with a leading slash.
// A mutation to /api/competitors/5/dimensions yields /api/competitors/5,
// which covers entries nested under the same resource but not a shorter
// list-level path such as /api/competitors.
func RelatedPrefix(mutationPath string) string {
	segments := []string{}
	for _, s := range strings.Split(mutationPath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 3 {
		segments = segments[:3]
	}

	return "/" + strings.Join(segments, "/")
}

// invalidateRelated purges every runtime-store entry whose path starts with
// the related prefix of a mutation path. Best-effort: the caller logs and
// discards the returned error, a mutation response is never failed or
// delayed by cache maintenance.
func (e *Engine) invalidateRelated(mutationPath string) error {
	prefix := RelatedPrefix(mutationPath)

	var lastErr error
	deleted := 0
	for _, entry := range e.runtime.Entries() {
		if !strings.HasPrefix(entry.Path, prefix) {
			continue
		}
		if err := e.runtime.Delete(entry.Key()); err != nil {
			lastErr = err
			continue
		}
		deleted++
	}
	log.Debugf("invalidated %d cached entries under %s", deleted, prefix)

	return lastErr
}
