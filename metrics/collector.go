// Package metrics provides process-level metrics collection.
//
// The Collector accumulates counters across render passes. It is a leaf
// package with no internal dependencies. Per-pass fetch telemetry lives in
// the generation store; the collector only holds process-wide aggregates.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Render passes
	PassesStarted     int64 `json:"passes_started"`
	PassesStatic      int64 `json:"passes_static"`
	PassesDynamic     int64 `json:"passes_dynamic"`
	PassesFailed      int64 `json:"passes_failed"`
	DynamicDowngrades int64 `json:"dynamic_downgrades"`

	// Outbound fetches
	FetchesTotal     int64 `json:"fetches_total"`
	FetchesCoalesced int64 `json:"fetches_coalesced"`
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
	CacheBypassed    int64 `json:"cache_bypassed"`

	// Incremental cache writes
	CacheWriteSuccess int64 `json:"cache_write_success"`
	CacheWriteFailure int64 `json:"cache_write_failure"`

	// Revalidation
	RevalidationsQueued    int64 `json:"revalidations_queued"`
	RevalidationsCompleted int64 `json:"revalidations_completed"`
	RevalidationsFailed    int64 `json:"revalidations_failed"`

	// Dimensions (informational, set at construction)
	CacheBackend string `json:"cache_backend"`
	Service      string `json:"service"`
}

// Collector accumulates metrics across render passes.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	passesStarted     int64
	passesStatic      int64
	passesDynamic     int64
	passesFailed      int64
	dynamicDowngrades int64

	fetchesTotal     int64
	fetchesCoalesced int64
	cacheHits        int64
	cacheMisses      int64
	cacheBypassed    int64

	cacheWriteSuccess int64
	cacheWriteFailure int64

	revalidationsQueued    int64
	revalidationsCompleted int64
	revalidationsFailed    int64

	cacheBackend string
	service      string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(cacheBackend, service string) *Collector {
	return &Collector{
		cacheBackend: cacheBackend,
		service:      service,
	}
}

// --- Render passes ---

// IncPassStarted records a render pass start.
func (c *Collector) IncPassStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.passesStarted++
	c.mu.Unlock()
}

// IncPassStatic records a pass that completed with a static artifact.
func (c *Collector) IncPassStatic() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.passesStatic++
	c.mu.Unlock()
}

// IncPassDynamic records a pass that completed as per-request dynamic.
func (c *Collector) IncPassDynamic() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.passesDynamic++
	c.mu.Unlock()
}

// IncPassFailed records a failed render pass.
func (c *Collector) IncPassFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.passesFailed++
	c.mu.Unlock()
}

// IncDynamicDowngrade records a static pass silently downgraded to dynamic.
func (c *Collector) IncDynamicDowngrade() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dynamicDowngrades++
	c.mu.Unlock()
}

// --- Outbound fetches ---

// IncFetch records one outbound fetch observation.
func (c *Collector) IncFetch() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchesTotal++
	c.mu.Unlock()
}

// IncFetchCoalesced records a fetch that shared another caller's in-flight
// network round trip.
func (c *Collector) IncFetchCoalesced() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fetchesCoalesced++
	c.mu.Unlock()
}

// IncCacheHit records a fetch served by the incremental cache.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// IncCacheMiss records a fetch that went to the origin.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// IncCacheBypass records a fetch that deliberately skipped the cache.
func (c *Collector) IncCacheBypass() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheBypassed++
	c.mu.Unlock()
}

// --- Incremental cache writes ---

// IncCacheWriteSuccess records a successful incremental cache write.
func (c *Collector) IncCacheWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheWriteSuccess++
	c.mu.Unlock()
}

// IncCacheWriteFailure records a failed incremental cache write.
func (c *Collector) IncCacheWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheWriteFailure++
	c.mu.Unlock()
}

// --- Revalidation ---

// IncRevalidationQueued records a queued revalidation side-effect.
func (c *Collector) IncRevalidationQueued() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.revalidationsQueued++
	c.mu.Unlock()
}

// IncRevalidationCompleted records a revalidation that ran to completion.
func (c *Collector) IncRevalidationCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.revalidationsCompleted++
	c.mu.Unlock()
}

// IncRevalidationFailed records a revalidation that returned an error.
func (c *Collector) IncRevalidationFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.revalidationsFailed++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		PassesStarted:     c.passesStarted,
		PassesStatic:      c.passesStatic,
		PassesDynamic:     c.passesDynamic,
		PassesFailed:      c.passesFailed,
		DynamicDowngrades: c.dynamicDowngrades,

		FetchesTotal:     c.fetchesTotal,
		FetchesCoalesced: c.fetchesCoalesced,
		CacheHits:        c.cacheHits,
		CacheMisses:      c.cacheMisses,
		CacheBypassed:    c.cacheBypassed,

		CacheWriteSuccess: c.cacheWriteSuccess,
		CacheWriteFailure: c.cacheWriteFailure,

		RevalidationsQueued:    c.revalidationsQueued,
		RevalidationsCompleted: c.revalidationsCompleted,
		RevalidationsFailed:    c.revalidationsFailed,

		CacheBackend: c.cacheBackend,
		Service:      c.service,
	}
}
