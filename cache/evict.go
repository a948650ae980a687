package cache

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// enforceBudget keeps the runtime store's total size under the configured
// byte budget by deleting the oldest entries first. Entries without a stamp
// sort as oldest. Sizes are recomputed from every body on each pass, there
// is no running total; the scan is O(n) in the number of entries.
//
// The pass runs after every runtime write, off the request path. It is not
// atomic with concurrent writes: a write landing between the size scan and
// the deletions can leave the store over budget until the next pass. That
// soft bound is accepted. The static store is never touched.
func (e *Engine) enforceBudget() error {
	if e.budget <= 0 {
		return nil
	}

	entries := e.runtime.Entries()
	total := int64(0)
	for _, entry := range entries {
		total += int64(entry.Size())
	}
	if total <= e.budget {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, _ := entries[i].StampedAt()
		tj, _ := entries[j].StampedAt()
		return ti.Before(tj)
	})

	var lastErr error
	for _, entry := range entries {
		if total <= e.budget {
			break
		}
		if err := e.runtime.Delete(entry.Key()); err != nil {
			lastErr = err
			continue
		}
		total -= int64(entry.Size())
		log.Debugf("evicted %s (%d bytes)", entry.Key(), entry.Size())
	}

	return lastErr
}
