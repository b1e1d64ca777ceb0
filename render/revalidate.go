package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/kiln/adapter"
	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/log"
	"github.com/pithecene-io/kiln/metrics"
	"github.com/pithecene-io/kiln/types"
)

// Revalidator performs on-demand revalidation by path and by cache tag.
type Revalidator struct {
	cache     cache.Incremental
	collector *metrics.Collector
	adapter   adapter.Adapter
	logger    *log.Logger
}

// NewRevalidator creates a revalidator over the given incremental cache.
// collector and a may be nil.
func NewRevalidator(ic cache.Incremental, collector *metrics.Collector, a adapter.Adapter) (*Revalidator, error) {
	if ic == nil {
		return nil, errors.New("render: revalidator requires an incremental cache")
	}
	return &Revalidator{
		cache:     ic,
		collector: collector,
		adapter:   a,
		logger:    log.NewLogger(nil),
	}, nil
}

// RevalidatePath drops the cached artifact for pathname and, when rerender
// is non-nil, immediately re-renders it in an on-demand static pass. The
// returned result is nil when no re-render was requested.
func (r *Revalidator) RevalidatePath(ctx context.Context, pathname string, rerender RenderFunc) (*PassResult, error) {
	route := types.RouteMeta{RequestID: uuid.NewString(), Pathname: pathname}
	if err := route.Validate(); err != nil {
		return nil, fmt.Errorf("revalidate path: %w", err)
	}

	r.collector.IncRevalidationQueued()

	if err := r.cache.Delete(ctx, cache.RouteKey(pathname)); err != nil {
		r.collector.IncRevalidationFailed()
		return nil, fmt.Errorf("revalidate path %s: drop artifact: %w", pathname, err)
	}

	if rerender == nil {
		r.collector.IncRevalidationCompleted()
		r.notify(ctx, route, nil)
		r.logger.Info("path revalidated", map[string]any{
			"pathname": pathname,
		})
		return nil, nil
	}

	orch, err := NewOrchestrator(&PassConfig{
		Route:              route,
		Static:             true,
		OnDemandRevalidate: true,
		Cache:              r.cache,
		Collector:          r.collector,
		Adapter:            r.adapter,
	})
	if err != nil {
		r.collector.IncRevalidationFailed()
		return nil, err
	}

	result, err := orch.Execute(ctx, rerender)
	if err != nil {
		r.collector.IncRevalidationFailed()
		return nil, err
	}
	if result.Outcome == types.OutcomeFailed {
		r.collector.IncRevalidationFailed()
		return result, fmt.Errorf("revalidate path %s: re-render failed: %s", pathname, result.Message)
	}

	r.collector.IncRevalidationCompleted()
	return result, nil
}

// RevalidateTag invalidates every cache entry carrying tag and returns the
// number of entries removed. Affected routes are re-rendered lazily on
// their next request.
func (r *Revalidator) RevalidateTag(ctx context.Context, tag string) (int, error) {
	if tag == "" {
		return 0, errors.New("revalidate tag: empty tag")
	}

	r.collector.IncRevalidationQueued()

	removed, err := r.cache.InvalidateTag(ctx, tag)
	if err != nil {
		r.collector.IncRevalidationFailed()
		return 0, fmt.Errorf("revalidate tag %s: %w", tag, err)
	}

	r.collector.IncRevalidationCompleted()
	r.notify(ctx, types.RouteMeta{RequestID: uuid.NewString(), Pathname: "/"}, []string{tag})
	r.logger.Info("tag revalidated", map[string]any{
		"tag":     tag,
		"removed": removed,
	})
	return removed, nil
}

// notify publishes a revalidation event, best effort.
func (r *Revalidator) notify(ctx context.Context, route types.RouteMeta, tags []string) {
	if r.adapter == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := &adapter.PassCompletedEvent{
		EventType:       adapter.EventTypeRevalidated,
		RequestID:       route.RequestID,
		Pathname:        route.Pathname,
		RevalidatedTags: tags,
		PathRevalidated: len(tags) == 0,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.adapter.Publish(publishCtx, ev); err != nil {
		r.logger.Warn("adapter publish failed (best effort)", map[string]any{
			"error": err.Error(),
		})
	}
}
