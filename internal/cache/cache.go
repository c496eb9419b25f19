// Package cache holds the run-scoped mapping from domain to its most
// recently computed search pattern.
package cache

import (
	"sync"
	"time"

	"github.com/searchscout/searchscout/internal/pattern"
)

type entry struct {
	pattern    pattern.SearchPattern
	insertedAt time.Time
}

// PatternCache short-circuits re-discovery within a run. It is safe for
// concurrent use; distinct domains never contend on the same entry. It is
// never the system of record; the persistence gateway is.
type PatternCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	locks   map[string]*sync.Mutex
	ttl     time.Duration
	clock   pattern.Clock
}

// New creates a PatternCache. A zero ttl means entries live for the whole
// run.
func New(ttl time.Duration, clock pattern.Clock) *PatternCache {
	return &PatternCache{
		entries: make(map[string]entry),
		locks:   make(map[string]*sync.Mutex),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached pattern for a domain, expiring stale entries.
func (c *PatternCache) Get(domain string) (pattern.SearchPattern, bool) {
	c.mu.RLock()
	e, ok := c.entries[domain]
	c.mu.RUnlock()
	if !ok {
		return pattern.SearchPattern{}, false
	}
	if c.ttl > 0 && c.clock.Now().Sub(e.insertedAt) > c.ttl {
		c.Invalidate(domain)
		return pattern.SearchPattern{}, false
	}
	return e.pattern, true
}

// Put stores the pattern for its domain, replacing any prior entry.
func (c *PatternCache) Put(p pattern.SearchPattern) {
	c.mu.Lock()
	c.entries[p.Domain] = entry{pattern: p, insertedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Invalidate drops a domain's entry, e.g. when verification detects drift.
func (c *PatternCache) Invalidate(domain string) {
	c.mu.Lock()
	delete(c.entries, domain)
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LockDomain serializes pipeline work on one domain key and returns the
// unlock function. Different domains proceed independently.
func (c *PatternCache) LockDomain(domain string) func() {
	c.mu.Lock()
	l, ok := c.locks[domain]
	if !ok {
		l = &sync.Mutex{}
		c.locks[domain] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}
