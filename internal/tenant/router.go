package tenant

import (
	"context"
	"sync"
	"time"
)

// cacheEntry holds a resolved workspace, or records that phoneID is
// known not to resolve to any workspace (negative caching) so a flood of
// webhooks for an unknown or deleted phone number doesn't hammer Postgres.
type cacheEntry struct {
	workspace *Workspace
	negative  bool
	expires   time.Time
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.After(e.expires)
}

// Loader fetches a workspace by provider phone_number_id on a cache miss.
type Loader interface {
	GetByPhoneNumberID(ctx context.Context, phoneID string) (*Workspace, error)
}

// PhoneWorkspaceCache resolves a provider phone_number_id to its owning
// Workspace. It is the hot path for every inbound webhook and outbound
// send, so it is held entirely in memory with a short TTL rather than
// querying Postgres per request.
//
// Shaped directly on the session store this service inherited: a
// sync.RWMutex-guarded map, double-checked-locking fill on miss, and a
// background sweep goroutine, generalized from session expiry to the
// 5-minute resolution TTL and with negative-result caching added so a
// webhook for an unrecognized phone number doesn't repeatedly hit the
// database.
type PhoneWorkspaceCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	loader  Loader
	ttl     time.Duration
	negTTL  time.Duration
	stop    chan struct{}
}

const (
	defaultResolveTTL    = 5 * time.Minute
	defaultNegativeTTL   = 30 * time.Second
	sweepInterval        = 10 * time.Minute
)

// NewPhoneWorkspaceCache creates a cache backed by loader and starts its
// sweep goroutine. Call Close to stop the goroutine on shutdown.
func NewPhoneWorkspaceCache(loader Loader) *PhoneWorkspaceCache {
	c := &PhoneWorkspaceCache{
		entries: make(map[string]cacheEntry),
		loader:  loader,
		ttl:     defaultResolveTTL,
		negTTL:  defaultNegativeTTL,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *PhoneWorkspaceCache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.entries {
				if v.expired(now) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Resolve returns the workspace owning phoneID, or nil if none does.
func (c *PhoneWorkspaceCache) Resolve(ctx context.Context, phoneID string) (*Workspace, error) {
	now := time.Now()

	c.mu.RLock()
	if e, ok := c.entries[phoneID]; ok && !e.expired(now) {
		c.mu.RUnlock()
		if e.negative {
			return nil, nil
		}
		return e.workspace, nil
	}
	c.mu.RUnlock()

	w, err := c.loader.GetByPhoneNumberID(ctx, phoneID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Double-checked: another goroutine may have filled it while we were
	// loading. A concurrent Invalidate racing this fill is acceptable —
	// the caller is the fresh read we just performed, so it wins.
	if e, ok := c.entries[phoneID]; ok && !e.expired(now) {
		if e.negative {
			return nil, nil
		}
		return e.workspace, nil
	}
	if w == nil {
		c.entries[phoneID] = cacheEntry{negative: true, expires: now.Add(c.negTTL)}
		return nil, nil
	}
	c.entries[phoneID] = cacheEntry{workspace: w, expires: now.Add(c.ttl)}
	return w, nil
}

// Invalidate drops phoneID from the cache. Callers that reassign a phone
// number MUST call this before the reassignment commits, so that no
// request observes the old owner after the database no longer does.
func (c *PhoneWorkspaceCache) Invalidate(phoneID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, phoneID)
}

// ClearPhoneCache drops every cached entry. Used by the admin API and by
// tests that need a clean resolution state.
func (c *PhoneWorkspaceCache) ClearPhoneCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Close stops the sweep goroutine.
func (c *PhoneWorkspaceCache) Close() error {
	close(c.stop)
	return nil
}
