package sync

import (
	"fmt"

	"borntoski-evo-sync/internal/evo"
)

// DetailCache memoizes schedule-detail lookups for the duration of one sync
// run. It is injected into the agenda sync instead of living as process
// state, and a fresh cache is created per run.
type DetailCache struct {
	entries map[string]evo.Record
	hits    int
	misses  int
}

// NewDetailCache creates an empty cache
func NewDetailCache() *DetailCache {
	return &DetailCache{entries: make(map[string]evo.Record)}
}

func detailKey(configurationID int64, dateISO string) string {
	return fmt.Sprintf("%d@%s", configurationID, dateISO)
}

// Get returns the cached detail for a slot, if present
func (c *DetailCache) Get(configurationID int64, dateISO string) (evo.Record, bool) {
	rec, ok := c.entries[detailKey(configurationID, dateISO)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return rec, ok
}

// Put stores a fetched detail
func (c *DetailCache) Put(configurationID int64, dateISO string, detail evo.Record) {
	c.entries[detailKey(configurationID, dateISO)] = detail
}

// Stats returns hit/miss counters for logging
func (c *DetailCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
