// Package fetch implements the instrumented outbound fetch client.
//
// Every fetch performed inside a render pass consults the pass's ambient
// generation store: route- and request-level cache policies are reconciled,
// the incremental cache is consulted and filled, logically identical
// concurrent fetches are coalesced into one origin round trip, and each
// observed outcome is recorded into the pass's deduplicated fetch log.
//
// Outside any render pass the client degrades gracefully to a plain,
// uninstrumented HTTP fetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/carrier"
	"github.com/pithecene-io/kiln/iox"
	"github.com/pithecene-io/kiln/metrics"
	"github.com/pithecene-io/kiln/store"
	"github.com/pithecene-io/kiln/types"
)

// DefaultTimeout is the default per-fetch timeout.
const DefaultTimeout = 30 * time.Second

// ErrOnlyCacheMiss is returned when an only-cache fetch finds no entry in
// the incremental cache.
var ErrOnlyCacheMiss = errors.New("fetch: only-cache fetch missed the incremental cache")

// PolicyConflictError is returned when a per-request cache option
// contradicts the route-level fetch cache policy.
type PolicyConflictError struct {
	Route   types.FetchCachePolicy
	Request types.FetchCachePolicy
}

// Error implements the error interface.
func (e *PolicyConflictError) Error() string {
	return fmt.Sprintf("fetch: request cache %q conflicts with route policy %q", e.Request, e.Route)
}

// Options are the per-request fetch options.
type Options struct {
	// Cache overrides the route-level fetch cache policy for this fetch.
	Cache types.FetchCachePolicy
	// Revalidate states this fetch's revalidation interval. Contributes to
	// the pass's reconciled revalidate value.
	Revalidate types.Revalidate
	// Tags associate cache tags with the cached response and the pass.
	Tags []string
}

// Result is the outcome of one fetch.
type Result struct {
	// Status is the HTTP response status.
	Status int
	// Body is the response payload.
	Body []byte
	// ContentType is the response content type.
	ContentType string
	// CacheStatus reports how the incremental cache served this fetch.
	CacheStatus types.CacheStatus
	// CacheReason explains CacheStatus.
	CacheReason string
}

// netResult is the shared outcome of one coalesced origin round trip.
type netResult struct {
	status      int
	body        []byte
	contentType string
}

// Client performs instrumented outbound fetches.
// Safe for concurrent use by any number of render passes.
type Client struct {
	http      *http.Client
	group     singleflight.Group
	collector *metrics.Collector
}

// NewClient creates a fetch client. httpClient may be nil to use a default
// client with DefaultTimeout; collector may be nil to skip process metrics.
func NewClient(httpClient *http.Client, collector *metrics.Collector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: httpClient, collector: collector}
}

// Get performs an instrumented GET fetch.
func (c *Client) Get(ctx context.Context, url string, opts Options) (*Result, error) {
	return c.Do(ctx, http.MethodGet, url, opts)
}

// Do performs an instrumented body-less fetch with the given method.
func (c *Client) Do(ctx context.Context, method, url string, opts Options) (*Result, error) {
	st := carrier.FromContext(ctx)
	if st == nil {
		// Outside any render pass: plain fetch, no instrumentation and no
		// coalescing, so unrelated callers never share a cancellation.
		net, err := c.roundTrip(ctx, method, url)
		if err != nil {
			return nil, err
		}
		return &Result{
			Status:      net.status,
			Body:        net.body,
			ContentType: net.contentType,
			CacheStatus: types.CacheBypass,
			CacheReason: "no ambient render pass",
		}, nil
	}

	policy := effectivePolicy(st.FetchCache(), opts.Cache)
	if err := checkPolicyConflict(st.FetchCache(), opts.Cache); err != nil {
		return nil, err
	}

	start := time.Now().UnixMilli()
	id := st.NextFetchID()

	// default-no-store yields to an explicit per-fetch revalidate interval,
	// which opts the fetch back into the cached path. The force and only
	// variants never do.
	if policy.NoStore() && !(policy == types.FetchCacheDefaultNoStore && opts.Revalidate.IsSet()) {
		return c.fetchNoStore(ctx, st, method, url, id, start, policy)
	}

	if opts.Revalidate.IsSet() {
		st.AddRevalidate(opts.Revalidate)
	}
	st.AddTags(opts.Tags...)

	return c.fetchCached(ctx, st, method, url, id, start, policy, opts)
}

// fetchNoStore bypasses the incremental cache and marks the pass dynamic.
// Under DynamicShouldError the dynamic trigger is fatal for the pass.
func (c *Client) fetchNoStore(ctx context.Context, st *store.Store, method, url string, id int, start int64, policy types.FetchCachePolicy) (*Result, error) {
	description := fmt.Sprintf("no-store fetch %s %s", method, url)
	if err := st.ForceDynamic(description, ""); err != nil {
		return nil, err
	}

	net, shared, err := c.coalesced(ctx, st.Route().RequestID, method, url)
	if err != nil {
		return nil, err
	}

	reason := string(policy) + " directive"
	c.record(st, types.FetchEvent{
		ID:          id,
		URL:         url,
		Start:       start,
		Method:      method,
		Status:      net.status,
		CacheStatus: types.CacheBypass,
		CacheReason: reason,
	}, shared)
	c.collector.IncCacheBypass()

	return &Result{
		Status:      net.status,
		Body:        net.body,
		ContentType: net.contentType,
		CacheStatus: types.CacheBypass,
		CacheReason: reason,
	}, nil
}

// fetchCached consults the incremental cache, falling back to a coalesced
// origin fetch with write-through on miss.
func (c *Client) fetchCached(ctx context.Context, st *store.Store, method, url string, id int, start int64, policy types.FetchCachePolicy, opts Options) (*Result, error) {
	ic := st.IncrementalCache()
	if ic == nil {
		if policy == types.FetchCacheOnlyCache {
			return nil, ErrOnlyCacheMiss
		}
		return c.fetchOrigin(ctx, st, nil, "", method, url, id, start, opts, "no incremental cache")
	}

	key := cache.FetchKey(method, url)

	// An on-demand revalidation pass exists to refresh cached data; skip
	// the cache read and fetch the origin, unless the policy forbids it.
	if st.IsOnDemandRevalidate() && policy != types.FetchCacheOnlyCache {
		return c.fetchOrigin(ctx, st, ic, key, method, url, id, start, opts, "on-demand revalidation")
	}

	entry, err := ic.Read(ctx, key)
	if err != nil {
		// A failing cache read must not fail the fetch.
		entry = nil
	}

	if entry != nil {
		fresh := entry.Fresh(time.Now())
		serveStale := policy == types.FetchCacheOnlyCache || policy == types.FetchCacheForceCache

		if fresh || serveStale {
			reason := "fetch cache hit"
			if !fresh {
				reason = "stale entry served under " + string(policy)
			}
			c.record(st, types.FetchEvent{
				ID:          id,
				URL:         url,
				Start:       start,
				Method:      method,
				Status:      entry.Status,
				CacheStatus: types.CacheHit,
				CacheReason: reason,
			}, false)
			c.collector.IncCacheHit()
			return &Result{
				Status:      entry.Status,
				Body:        entry.Body,
				ContentType: entry.ContentType,
				CacheStatus: types.CacheHit,
				CacheReason: reason,
			}, nil
		}

		// Stale under a default policy: serve the stale entry and queue a
		// background refresh to run before the response completes.
		c.queueRefresh(st, ic, key, method, url, opts)
		reason := "stale entry, refresh queued"
		c.record(st, types.FetchEvent{
			ID:          id,
			URL:         url,
			Start:       start,
			Method:      method,
			Status:      entry.Status,
			CacheStatus: types.CacheHit,
			CacheReason: reason,
		}, false)
		c.collector.IncCacheHit()
		return &Result{
			Status:      entry.Status,
			Body:        entry.Body,
			ContentType: entry.ContentType,
			CacheStatus: types.CacheHit,
			CacheReason: reason,
		}, nil
	}

	if policy == types.FetchCacheOnlyCache {
		return nil, ErrOnlyCacheMiss
	}
	return c.fetchOrigin(ctx, st, ic, key, method, url, id, start, opts, "fetch cache miss")
}

// fetchOrigin performs the coalesced network round trip, writing through to
// the incremental cache when one is available.
func (c *Client) fetchOrigin(ctx context.Context, st *store.Store, ic cache.Incremental, key, method, url string, id int, start int64, opts Options, reason string) (*Result, error) {
	net, shared, err := c.coalesced(ctx, st.Route().RequestID, method, url)
	if err != nil {
		return nil, err
	}

	// Only successful responses are cacheable.
	if ic != nil && net.status < 400 {
		writeErr := ic.Write(ctx, key, &cache.Entry{
			Body:        net.body,
			ContentType: net.contentType,
			Status:      net.status,
			StoredAt:    time.Now().UnixMilli(),
			Revalidate:  opts.Revalidate,
			Tags:        opts.Tags,
		})
		if writeErr != nil {
			c.collector.IncCacheWriteFailure()
		} else {
			c.collector.IncCacheWriteSuccess()
		}
	}

	c.record(st, types.FetchEvent{
		ID:          id,
		URL:         url,
		Start:       start,
		Method:      method,
		Status:      net.status,
		CacheStatus: types.CacheMiss,
		CacheReason: reason,
	}, shared)
	c.collector.IncCacheMiss()

	return &Result{
		Status:      net.status,
		Body:        net.body,
		ContentType: net.contentType,
		CacheStatus: types.CacheMiss,
		CacheReason: reason,
	}, nil
}

// queueRefresh queues a pending revalidation that refetches the stale entry.
// The queued work receives a context detached from the originating request,
// so it completes even when the response is aborted.
func (c *Client) queueRefresh(st *store.Store, ic cache.Incremental, key, method, url string, opts Options) {
	st.AddPendingRevalidate(func(ctx context.Context) error {
		net, _, err := c.coalesced(ctx, st.Route().RequestID, method, url)
		if err != nil {
			return err
		}
		if net.status >= 400 {
			return fmt.Errorf("fetch: refresh %s %s: status %d", method, url, net.status)
		}
		return ic.Write(ctx, key, &cache.Entry{
			Body:        net.body,
			ContentType: net.contentType,
			Status:      net.status,
			StoredAt:    time.Now().UnixMilli(),
			Revalidate:  opts.Revalidate,
			Tags:        opts.Tags,
		})
	})
	c.collector.IncRevalidationQueued()
}

// record submits one observation to the pass's fetch log. Coalesced and
// duplicate submissions are expected; the store's recorder deduplicates.
func (c *Client) record(st *store.Store, ev types.FetchEvent, shared bool) {
	st.RecordFetch(ev)
	c.collector.IncFetch()
	if shared {
		c.collector.IncFetchCoalesced()
	}
}

// coalesced performs the network round trip, sharing one in-flight request
// among concurrent callers fetching the same (method, url) within the same
// render pass. The flight key carries the pass's request ID so fetches from
// one pass never join, and cannot be cancelled by, a flight of another.
func (c *Client) coalesced(ctx context.Context, scope, method, url string) (*netResult, bool, error) {
	v, err, shared := c.group.Do(scope+" "+method+" "+url, func() (any, error) {
		return c.roundTrip(ctx, method, url)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*netResult), shared, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string) (*netResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request %s %s: %w", method, url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s %s: %w", method, url, err)
	}
	defer iox.DrainClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body %s %s: %w", method, url, err)
	}

	return &netResult{
		status:      resp.StatusCode,
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

// effectivePolicy reconciles the route-level policy with a per-request
// override. The request-level option wins when stated.
func effectivePolicy(route, request types.FetchCachePolicy) types.FetchCachePolicy {
	if request != types.FetchCacheUnset {
		return request
	}
	if route != types.FetchCacheUnset {
		return route
	}
	return types.FetchCacheDefaultCache
}

// checkPolicyConflict rejects request options that contradict a strict
// route-level policy.
func checkPolicyConflict(route, request types.FetchCachePolicy) error {
	if request == types.FetchCacheUnset {
		return nil
	}
	switch {
	case route == types.FetchCacheOnlyNoStore && !request.NoStore():
		return &PolicyConflictError{Route: route, Request: request}
	case route == types.FetchCacheOnlyCache && request.NoStore():
		return &PolicyConflictError{Route: route, Request: request}
	}
	return nil
}
