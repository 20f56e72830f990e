// Package store holds the session-scoped record cache and the bundled relay
// transport adapters. The cache is an explicit object owned by whoever
// constructs the facade; there is no process-wide shared state.
package store

import (
	"sync"

	"relayvault/internal/onion"
)

// RecordCache accumulates successfully opened records across fetches within
// one session, keyed by envelope id so replayed and duplicated broadcasts
// collapse to one entry.
type RecordCache struct {
	mu      sync.Mutex
	records map[string]*onion.Opened
}

func NewRecordCache() *RecordCache {
	return &RecordCache{records: make(map[string]*onion.Opened)}
}

// Merge adds opened records, ignoring duplicates. Returns how many were new.
func (c *RecordCache) Merge(opened []*onion.Opened) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, o := range opened {
		if o == nil || o.EnvelopeID == "" {
			continue
		}
		if _, ok := c.records[o.EnvelopeID]; !ok {
			c.records[o.EnvelopeID] = o
			added++
		}
	}
	return added
}

// Snapshot returns the cached records as a new slice. The resolver operates
// on snapshots, never on the live map.
func (c *RecordCache) Snapshot() []*onion.Opened {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*onion.Opened, 0, len(c.records))
	for _, o := range c.records {
		out = append(out, o)
	}
	return out
}

func (c *RecordCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Reset drops everything, for explicit session teardown.
func (c *RecordCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]*onion.Opened)
}
