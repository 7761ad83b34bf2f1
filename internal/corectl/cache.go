package corectl

import "sync"

// decisionKey is the "tier|escalationReason" composite key for decision entries (§4.4).
type decisionKey struct {
	tier   Tier
	reason EscalationReason
}

func (k decisionKey) String() string {
	return string(k.tier) + "|" + string(k.reason)
}

type cacheEntry struct {
	perception *PerceptionPayload
	decisions  map[decisionKey]*NavigatorActionDecision
	screenshot *ScreenshotPayload
	insertedAt int64 // ms since epoch, caller-supplied clock
}

// ObservationCache is a single-TTL, per-task cache of perception payloads,
// keyed decision payloads, and Tier-2 screenshots (§4.4). It is owned by one
// task's orchestrator and discarded on task termination; it performs no I/O.
type ObservationCache struct {
	mu      sync.Mutex
	ttlMs   int64
	entries map[string]*cacheEntry
	stats   ObservationCacheStats
}

// NewObservationCache builds an empty cache with the given TTL in milliseconds.
func NewObservationCache(ttlMs int) *ObservationCache {
	return &ObservationCache{
		ttlMs:   int64(ttlMs),
		entries: make(map[string]*cacheEntry),
	}
}

func (c *ObservationCache) entryLocked(url string) *cacheEntry {
	e, ok := c.entries[url]
	if !ok {
		e = &cacheEntry{decisions: make(map[decisionKey]*NavigatorActionDecision)}
		c.entries[url] = e
	}
	return e
}

func (c *ObservationCache) expiredLocked(e *cacheEntry, nowMs int64) bool {
	return nowMs-e.insertedAt > c.ttlMs
}

// GetPerception returns the cached perception payload for url and its age in
// ms, iff present and within TTL as of nowMs.
func (c *ObservationCache) GetPerception(url string, nowMs int64) (PerceptionPayload, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok || e.perception == nil || c.expiredLocked(e, nowMs) {
		c.stats.PerceptionMisses++
		return PerceptionPayload{}, 0, false
	}
	c.stats.PerceptionHits++
	return *e.perception, nowMs - e.insertedAt, true
}

// SetPerception inserts or refreshes the perception payload for url.
func (c *ObservationCache) SetPerception(url string, payload PerceptionPayload, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(url)
	e.perception = &payload
	e.insertedAt = nowMs
}

// GetDecision returns the cached decision for (url, tier, reason) iff present and unexpired.
func (c *ObservationCache) GetDecision(url string, tier Tier, reason EscalationReason, nowMs int64) (NavigatorActionDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok || c.expiredLocked(e, nowMs) {
		c.stats.DecisionMisses++
		return NavigatorActionDecision{}, false
	}
	d, ok := e.decisions[decisionKey{tier, reason}]
	if !ok {
		c.stats.DecisionMisses++
		return NavigatorActionDecision{}, false
	}
	c.stats.DecisionHits++
	return *d, true
}

// SetDecision caches a decision keyed by (url, tier, reason).
func (c *ObservationCache) SetDecision(url string, tier Tier, reason EscalationReason, decision NavigatorActionDecision, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(url)
	if e.insertedAt == 0 {
		e.insertedAt = nowMs
	}
	e.decisions[decisionKey{tier, reason}] = &decision
}

// GetTier2Screenshot returns the cached Tier-2 screenshot for url, if unexpired.
func (c *ObservationCache) GetTier2Screenshot(url string, nowMs int64) (ScreenshotPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok || e.screenshot == nil || c.expiredLocked(e, nowMs) {
		return ScreenshotPayload{}, false
	}
	return *e.screenshot, true
}

// SetTier2Screenshot caches a Tier-2 screenshot for url.
func (c *ObservationCache) SetTier2Screenshot(url string, shot ScreenshotPayload, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(url)
	e.screenshot = &shot
	if e.insertedAt == 0 {
		e.insertedAt = nowMs
	}
}

// PruneExpired lazily evicts every entry stale as of nowMs.
func (c *ObservationCache) PruneExpired(nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, e := range c.entries {
		if c.expiredLocked(e, nowMs) {
			delete(c.entries, url)
		}
	}
}

// Invalidate removes the perception payload, all decisions, and the
// screenshot cached for url (§4.4 invalidation triggers).
func (c *ObservationCache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[url]; ok {
		delete(c.entries, url)
		c.stats.Invalidations++
	}
}

// Stats returns a snapshot of cumulative hit/miss/invalidation counts.
func (c *ObservationCache) Stats() ObservationCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
