package store

import "github.com/pithecene-io/kiln/types"

// Telemetry is an immutable point-in-time view of a pass's classification
// and fetch log, handed to the response-assembly layer.
type Telemetry struct {
	// Route is the pass identity.
	Route types.RouteMeta
	// Static is the effective classification: true only when the pass was
	// created static and no dynamic trigger downgraded it. Dynamic wins
	// over a forced-static request.
	Static bool
	// Downgraded is true when a static pass was downgraded to dynamic.
	Downgraded bool
	// Revalidate is the reconciled revalidation policy.
	Revalidate types.Revalidate
	// FetchCache is the route-level fetch caching policy, if stated.
	FetchCache types.FetchCachePolicy
	// Tags are the cache tags associated with this pass.
	Tags []string
	// RevalidatedTags are the cache tags invalidated by this pass.
	RevalidatedTags []string
	// PathWasRevalidated is true after an on-demand revalidation completed.
	PathWasRevalidated bool
	// FetchMetrics is the deduplicated fetch log in append order.
	FetchMetrics []types.FetchEvent
	// DynamicUsageDescription describes what triggered dynamic behavior,
	// when anything did.
	DynamicUsageDescription string
	// DynamicUsageStack is the trigger site trace, when captured.
	DynamicUsageStack string
}

// Telemetry snapshots the store. The snapshot is safe to read concurrently;
// the Store can continue to be mutated independently.
func (s *Store) Telemetry() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()

	static := s.isStaticGeneration && !s.forceDynamic
	if s.forceStatic && !s.forceDynamic {
		static = true
	}

	tel := Telemetry{
		Route:                   s.route,
		Static:                  static,
		Downgraded:              s.isStaticGeneration && s.forceDynamic,
		Revalidate:              s.revalidate,
		FetchCache:              s.fetchCache,
		PathWasRevalidated:      s.pathWasRevalidated,
		DynamicUsageDescription: s.dynamicUsageDescription,
		DynamicUsageStack:       s.dynamicUsageStack,
	}

	if len(s.tags) > 0 {
		tel.Tags = append([]string(nil), s.tags...)
	}
	if len(s.revalidatedTags) > 0 {
		tel.RevalidatedTags = append([]string(nil), s.revalidatedTags...)
	}
	if len(s.fetchMetrics) > 0 {
		tel.FetchMetrics = make([]types.FetchEvent, len(s.fetchMetrics))
		copy(tel.FetchMetrics, s.fetchMetrics)
	}

	return tel
}
