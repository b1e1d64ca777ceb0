// Package store implements the per-request generation store.
//
// Exactly one Store is created per render pass and made ambient to the
// pass's call graph via the carrier package. Field mutation goes through
// dedicated setters that enforce write-once, monotonic, and append-only
// policies; direct assignment is impossible from outside the package.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/types"
)

// PendingRevalidate is a queued revalidation side-effect. Queued functions
// must be allowed to run to completion even when the originating response
// is aborted, so callers receive a context detached from the request.
type PendingRevalidate func(ctx context.Context) error

// Options configures a new Store. All fields set here are immutable for
// the lifetime of the pass.
type Options struct {
	// Route is the identity of the pass.
	Route types.RouteMeta
	// IsStaticGeneration is true when this pass produces a statically
	// cacheable artifact.
	IsStaticGeneration bool
	// IncrementalCache is the cache capability for this pass. May be nil.
	IncrementalCache cache.Incremental
	// IsOnDemandRevalidate is true when the pass was triggered by an
	// explicit revalidation request.
	IsOnDemandRevalidate bool
	// IsPrerendering is true during build-time prerendering.
	IsPrerendering bool
	// IsRevalidate is true during runtime revalidation.
	IsRevalidate bool
	// DynamicShouldError makes dynamic behavior during a static pass a
	// hard failure instead of a silent downgrade.
	DynamicShouldError bool
}

// Store is the mutable generation record for one render pass.
//
// A Store is exclusively owned by one request's call graph, but fetches
// within that request may race on it, so all mutation is serialized by an
// internal mutex. The scan-then-append step of RecordFetch is atomic with
// respect to other recordings on the same Store.
type Store struct {
	// Immutable after creation.
	route                types.RouteMeta
	isStaticGeneration   bool
	incrementalCache     cache.Incremental
	isOnDemandRevalidate bool
	isPrerendering       bool
	isRevalidate         bool
	dynamicShouldError   bool

	mu sync.Mutex

	// Classification. forceDynamic is monotonic (false -> true only);
	// forceStatic is settable once. Dynamic wins when both are set.
	forceDynamic bool
	forceStatic  bool

	// Diagnostics, write-once alongside the first dynamic trigger.
	dynamicUsageDescription string
	dynamicUsageStack       string

	// fetchCache is settable once per pass; later writers are ignored.
	fetchCache    types.FetchCachePolicy
	fetchCacheSet bool

	// revalidate accumulates contributions via Merge (min wins, never sticky).
	revalidate types.Revalidate

	pendingRevalidates []PendingRevalidate
	pathWasRevalidated bool

	tags            []string
	revalidatedTags []string

	nextFetchID  int
	fetchMetrics []types.FetchEvent // lazily initialized on first recording

	// now is the clock used to stamp fetch completion times.
	now func() time.Time
}

// New creates a Store for one render pass.
func New(opts Options) *Store {
	return &Store{
		route:                opts.Route,
		isStaticGeneration:   opts.IsStaticGeneration,
		incrementalCache:     opts.IncrementalCache,
		isOnDemandRevalidate: opts.IsOnDemandRevalidate,
		isPrerendering:       opts.IsPrerendering,
		isRevalidate:         opts.IsRevalidate,
		dynamicShouldError:   opts.DynamicShouldError,
		now:                  time.Now,
	}
}

// Route returns the pass identity.
func (s *Store) Route() types.RouteMeta { return s.route }

// Pathname returns the logical route being rendered.
func (s *Store) Pathname() string { return s.route.Pathname }

// IsStaticGeneration reports whether the pass was created as static.
// This is the creation-time flag; see Telemetry for the effective
// classification after dynamic triggers.
func (s *Store) IsStaticGeneration() bool { return s.isStaticGeneration }

// IsOnDemandRevalidate reports whether the pass was triggered by an
// explicit revalidation request.
func (s *Store) IsOnDemandRevalidate() bool { return s.isOnDemandRevalidate }

// IsPrerendering reports whether the pass is a build-time prerender.
func (s *Store) IsPrerendering() bool { return s.isPrerendering }

// IsRevalidate reports whether the pass is a runtime revalidation.
func (s *Store) IsRevalidate() bool { return s.isRevalidate }

// DynamicShouldError reports whether dynamic behavior is fatal for this pass.
func (s *Store) DynamicShouldError() bool { return s.dynamicShouldError }

// IncrementalCache returns the cache capability held by this pass.
// May be nil; callers degrade to uncached operation.
func (s *Store) IncrementalCache() cache.Incremental { return s.incrementalCache }

// ForceDynamic marks the pass as dynamic, capturing what triggered the
// downgrade. The transition is monotonic; only the first trigger's
// diagnostics are retained.
//
// When the pass was created static with DynamicShouldError set, the pass
// must fail instead of silently downgrading: ForceDynamic returns a
// *DynamicUsageError and the store is left marked dynamic so telemetry
// still reflects the trigger.
func (s *Store) ForceDynamic(description, stack string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.forceDynamic {
		s.forceDynamic = true
		s.dynamicUsageDescription = description
		s.dynamicUsageStack = stack
	}

	if s.isStaticGeneration && s.dynamicShouldError {
		return &DynamicUsageError{
			Pathname:    s.route.Pathname,
			Description: s.dynamicUsageDescription,
			Stack:       s.dynamicUsageStack,
		}
	}
	return nil
}

// ForceStatic forces static classification despite dynamic signals.
// Settable once; dynamic wins over static when both are requested.
func (s *Store) ForceStatic() {
	s.mu.Lock()
	s.forceStatic = true
	s.mu.Unlock()
}

// SetFetchCache states the route-level fetch caching policy. The first
// writer wins; later calls within the same pass are ignored.
func (s *Store) SetFetchCache(p types.FetchCachePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchCacheSet {
		return
	}
	s.fetchCache = p
	s.fetchCacheSet = true
}

// FetchCache returns the effective route-level fetch caching policy.
func (s *Store) FetchCache() types.FetchCachePolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCache
}

// AddRevalidate contributes a revalidation interval. Contributions are
// reconciled into the tightest constraint: the minimum of all stated
// finite intervals, with an explicit never sticky against later finite
// values. Contributions may arrive in any order.
func (s *Store) AddRevalidate(r types.Revalidate) {
	s.mu.Lock()
	s.revalidate = s.revalidate.Merge(r)
	s.mu.Unlock()
}

// Revalidate returns the effective reconciled revalidation policy.
func (s *Store) Revalidate() types.Revalidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revalidate
}

// AddPendingRevalidate queues a revalidation side-effect to await before
// the response completes.
func (s *Store) AddPendingRevalidate(fn PendingRevalidate) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.pendingRevalidates = append(s.pendingRevalidates, fn)
	s.mu.Unlock()
}

// TakePendingRevalidates returns the queued side-effects in append order
// and clears the queue.
func (s *Store) TakePendingRevalidates() []PendingRevalidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := s.pendingRevalidates
	s.pendingRevalidates = nil
	return fns
}

// MarkPathRevalidated records that an on-demand revalidation completed
// for this pass's route.
func (s *Store) MarkPathRevalidated() {
	s.mu.Lock()
	s.pathWasRevalidated = true
	s.mu.Unlock()
}

// AddTags associates cache tags with this pass. Duplicates are dropped;
// insertion order is preserved.
func (s *Store) AddTags(tags ...string) {
	s.mu.Lock()
	s.tags = appendUnique(s.tags, tags)
	s.mu.Unlock()
}

// AddRevalidatedTags records cache tags invalidated by this pass.
func (s *Store) AddRevalidatedTags(tags ...string) {
	s.mu.Lock()
	s.revalidatedTags = appendUnique(s.revalidatedTags, tags)
	s.mu.Unlock()
}

func appendUnique(dst []string, add []string) []string {
	for _, t := range add {
		if t == "" {
			continue
		}
		seen := false
		for _, existing := range dst {
			if existing == t {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, t)
		}
	}
	return dst
}
