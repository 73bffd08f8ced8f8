package access

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultFreshFor is how long a resolution is served without question.
	defaultFreshFor = 10 * time.Second
	// defaultStaleFor is the extra window during which a stale resolution is
	// still served while a refresh runs in the background.
	defaultStaleFor = 60 * time.Second
)

type cacheEntry struct {
	eff        Effective
	calendarID uuid.UUID
	storedAt   time.Time
}

// permCache is a stale-while-revalidate cache of resolved permissions. A
// fresh hit is returned as is; a stale hit is returned immediately while one
// background recompute (deduplicated per key) replaces the entry. Entries
// past the stale window are misses.
type permCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	freshFor time.Duration
	staleFor time.Duration
	group    singleflight.Group

	now func() time.Time
}

func newPermCache(freshFor, staleFor time.Duration) *permCache {
	return &permCache{
		entries:  make(map[string]cacheEntry),
		freshFor: freshFor,
		staleFor: staleFor,
		now:      time.Now,
	}
}

func cacheKey(calendarID uuid.UUID, caller Caller, scope *uuid.UUID) string {
	var b strings.Builder
	b.WriteString(calendarID.String())
	b.WriteByte('|')
	if caller.UserID != nil {
		b.WriteString(caller.UserID.String())
	}
	b.WriteByte('|')
	b.WriteString(caller.LinkToken)
	b.WriteByte('|')
	if scope != nil {
		b.WriteString(scope.String())
	}
	return b.String()
}

// get returns a cached resolution when one is usable. When the entry is
// stale, revalidate runs once in the background and the stale value is
// served in the meantime.
func (c *permCache) get(key string, revalidate func() (Effective, error)) (Effective, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return Effective{}, false
	}
	age := c.now().Sub(entry.storedAt)
	if age >= c.freshFor+c.staleFor {
		delete(c.entries, key)
		c.mu.Unlock()
		return Effective{}, false
	}
	c.mu.Unlock()

	if age >= c.freshFor {
		go func() {
			c.group.Do(key, func() (any, error) {
				eff, err := revalidate()
				if err != nil {
					return nil, err
				}
				c.put(key, entry.calendarID, eff)
				return eff, nil
			})
		}()
	}
	return entry.eff, true
}

func (c *permCache) put(key string, calendarID uuid.UUID, eff Effective) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{eff: eff, calendarID: calendarID, storedAt: c.now()}
}

func (c *permCache) invalidate(calendarID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.calendarID == calendarID {
			delete(c.entries, key)
		}
	}
}
