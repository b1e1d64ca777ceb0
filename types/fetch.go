package types

import "fmt"

// CacheStatus describes whether the incremental cache served a fetch.
type CacheStatus string

const (
	// CacheHit indicates the fetch was served from the incremental cache.
	CacheHit CacheStatus = "hit"
	// CacheMiss indicates the fetch went to the origin and was cached.
	CacheMiss CacheStatus = "miss"
	// CacheBypass indicates the fetch deliberately skipped the cache.
	CacheBypass CacheStatus = "bypass"
)

// FetchEvent is one recorded observation of an outbound data fetch
// performed during a render pass. Timestamps are unix milliseconds.
type FetchEvent struct {
	// ID is a monotonically increasing identifier, unique within a pass.
	ID int `json:"id"`
	// URL is the fetched resource identifier.
	URL string `json:"url"`
	// Start is the time the fetch was initiated.
	Start int64 `json:"start"`
	// End is the time the fetch completed. Zero until recorded.
	End int64 `json:"end"`
	// Method is the HTTP method.
	Method string `json:"method"`
	// Status is the HTTP response status.
	Status int `json:"status"`
	// CacheStatus is the incremental cache outcome for this fetch.
	CacheStatus CacheStatus `json:"cache_status"`
	// CacheReason is an optional human-readable explanation for CacheStatus.
	CacheReason string `json:"cache_reason,omitempty"`
}

// FetchCachePolicy is the route-level fetch caching policy.
type FetchCachePolicy string

// Fetch cache policy values. The empty string means no policy was stated.
const (
	FetchCacheUnset          FetchCachePolicy = ""
	FetchCacheOnlyCache      FetchCachePolicy = "only-cache"
	FetchCacheForceCache     FetchCachePolicy = "force-cache"
	FetchCacheDefaultCache   FetchCachePolicy = "default-cache"
	FetchCacheForceNoStore   FetchCachePolicy = "force-no-store"
	FetchCacheDefaultNoStore FetchCachePolicy = "default-no-store"
	FetchCacheOnlyNoStore    FetchCachePolicy = "only-no-store"
)

// ParseFetchCachePolicy parses a policy string. The empty string is valid
// and parses to FetchCacheUnset.
func ParseFetchCachePolicy(s string) (FetchCachePolicy, error) {
	switch FetchCachePolicy(s) {
	case FetchCacheUnset, FetchCacheOnlyCache, FetchCacheForceCache,
		FetchCacheDefaultCache, FetchCacheForceNoStore,
		FetchCacheDefaultNoStore, FetchCacheOnlyNoStore:
		return FetchCachePolicy(s), nil
	default:
		return FetchCacheUnset, fmt.Errorf("invalid fetch cache policy: %q", s)
	}
}

// NoStore returns true for policies under which fetch responses are not
// stored. This covers the unconditional force/only modes and
// default-no-store; under default-no-store a fetch can opt back into
// caching by stating an explicit revalidate interval.
func (p FetchCachePolicy) NoStore() bool {
	return p == FetchCacheForceNoStore || p == FetchCacheOnlyNoStore ||
		p == FetchCacheDefaultNoStore
}
