package client

import (
	"context"
	"sync"
	"time"
)

// Permission cache freshness windows. An entry younger than freshFor is
// served as-is; between freshFor and freshFor+staleFor it is served stale
// while a background fetch corrects it; older entries are dropped.
const (
	permFreshFor = 10 * time.Second
	permStaleFor = 60 * time.Second
)

type permEntry struct {
	eff      Effective
	storedAt time.Time
}

// PermCache is a stale-while-revalidate cache of effective permissions keyed
// by calendar id, fed by MyPermission.
type PermCache struct {
	client *Client

	mu      sync.Mutex
	entries map[string]permEntry
	pending map[string]bool

	now func() time.Time
}

func NewPermCache(c *Client) *PermCache {
	return &PermCache{
		client:  c,
		entries: map[string]permEntry{},
		pending: map[string]bool{},
		now:     time.Now,
	}
}

// Get returns the caller's standing on the calendar. A fresh cached value is
// returned directly; a stale one is returned immediately while one background
// fetch corrects it; a missing or expired one blocks on the server.
func (p *PermCache) Get(ctx context.Context, calendarID string) (Effective, error) {
	p.mu.Lock()
	entry, ok := p.entries[calendarID]
	if ok {
		age := p.now().Sub(entry.storedAt)
		if age < permFreshFor {
			p.mu.Unlock()
			return entry.eff, nil
		}
		if age < permFreshFor+permStaleFor {
			if !p.pending[calendarID] {
				p.pending[calendarID] = true
				go p.revalidate(calendarID)
			}
			p.mu.Unlock()
			return entry.eff, nil
		}
		delete(p.entries, calendarID)
	}
	p.mu.Unlock()

	eff, err := p.client.MyPermission(ctx, calendarID)
	if err != nil {
		return Effective{}, err
	}
	p.put(calendarID, *eff)
	return *eff, nil
}

func (p *PermCache) revalidate(calendarID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eff, err := p.client.MyPermission(ctx, calendarID)

	p.mu.Lock()
	delete(p.pending, calendarID)
	p.mu.Unlock()
	if err != nil {
		return
	}
	p.put(calendarID, *eff)
}

func (p *PermCache) put(calendarID string, eff Effective) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[calendarID] = permEntry{eff: eff, storedAt: p.now()}
}

// Invalidate drops the cached standing for one calendar.
func (p *PermCache) Invalidate(calendarID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, calendarID)
}
