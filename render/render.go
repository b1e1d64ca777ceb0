// Package render orchestrates render passes.
//
// A pass owns exactly one generation store, makes it ambient to the render
// function's call graph, classifies the outcome, persists static artifacts
// in the incremental cache, drains queued revalidations, and notifies
// downstream adapters.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/kiln/adapter"
	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/carrier"
	"github.com/pithecene-io/kiln/log"
	"github.com/pithecene-io/kiln/metrics"
	"github.com/pithecene-io/kiln/store"
	"github.com/pithecene-io/kiln/types"
)

// DefaultArtifactContentType is the content type stored for route artifacts
// when the render function does not state one.
const DefaultArtifactContentType = "text/html; charset=utf-8"

// pendingFlushTimeout bounds the detached drain of queued revalidations.
const pendingFlushTimeout = 30 * time.Second

// publishTimeout bounds the detached adapter publish.
const publishTimeout = 10 * time.Second

// RenderFunc produces the route artifact for one pass. It runs with the
// pass's store ambient in ctx; fetches made through the instrumented client
// are recorded against that store.
type RenderFunc func(ctx context.Context) ([]byte, error)

// PassConfig configures a single render pass.
type PassConfig struct {
	// Route is the pass identity and target pathname.
	Route types.RouteMeta
	// Static requests static generation for this pass.
	Static bool
	// DynamicShouldError makes dynamic behavior during a static pass fatal.
	DynamicShouldError bool
	// FetchCache is the route-level fetch caching policy, if any.
	FetchCache types.FetchCachePolicy
	// DefaultRevalidate seeds the pass's revalidation policy. Fetch-level
	// contributions merge against it.
	DefaultRevalidate types.Revalidate
	// Tags are route-level cache tags attached to the pass and its artifact.
	Tags []string
	// OnDemandRevalidate marks the pass as triggered by an explicit
	// revalidation request.
	OnDemandRevalidate bool
	// Prerendering marks the pass as a build-time prerender.
	Prerendering bool
	// Revalidating marks the pass as a runtime revalidation of an existing
	// artifact.
	Revalidating bool
	// Cache is the incremental cache capability. May be nil.
	Cache cache.Incremental
	// Collector receives process metrics. May be nil.
	Collector *metrics.Collector
	// Adapter receives the pass completion event. May be nil.
	Adapter adapter.Adapter
}

// PassResult is the outcome of one render pass, including the partial fetch
// log when the pass failed.
type PassResult struct {
	// Route is the pass identity.
	Route types.RouteMeta
	// Outcome is the final classification.
	Outcome types.PassOutcome
	// Message describes a failed outcome.
	Message string
	// Revalidate is the reconciled revalidation policy.
	Revalidate types.Revalidate
	// FetchMetrics is the deduplicated fetch log in append order.
	FetchMetrics []types.FetchEvent
	// Tags are the cache tags accumulated by the pass.
	Tags []string
	// RevalidatedTags are the tags invalidated by the pass.
	RevalidatedTags []string
	// PathWasRevalidated is true after an on-demand revalidation completed.
	PathWasRevalidated bool
	// Body is the rendered artifact. Nil when the pass failed.
	Body []byte
	// Duration is the total pass duration.
	Duration time.Duration
	// DynamicUsageDescription describes what made the pass dynamic, if
	// anything did.
	DynamicUsageDescription string
	// DynamicUsageStack is the trigger site trace, when captured.
	DynamicUsageStack string
}

// Orchestrator runs a single render pass.
type Orchestrator struct {
	config    *PassConfig
	logger    *log.Logger
	startTime time.Time
}

// NewOrchestrator creates a pass orchestrator.
// Returns an error if the route metadata is invalid.
func NewOrchestrator(config *PassConfig) (*Orchestrator, error) {
	if err := config.Route.Validate(); err != nil {
		return nil, fmt.Errorf("invalid route metadata: %w", err)
	}

	return &Orchestrator{
		config: config,
		logger: log.NewLogger(&config.Route),
	}, nil
}

// Execute runs the pass end-to-end.
//
// Execution flow:
//  1. Build the generation store and make it ambient
//  2. Run the render function
//  3. Drain queued revalidations, detached from the request context
//  4. Classify the outcome
//  5. Persist the artifact when the pass stayed static
//  6. Publish the adapter event and record metrics
//
// Render failures are classified into the result rather than returned;
// Execute returns an error only when orchestration itself breaks.
func (o *Orchestrator) Execute(ctx context.Context, render RenderFunc) (*PassResult, error) {
	if render == nil {
		return nil, errors.New("render: nil render function")
	}

	o.startTime = time.Now()
	o.config.Collector.IncPassStarted()

	o.logger.Info("starting render pass", map[string]any{
		"static":    o.config.Static,
		"on_demand": o.config.OnDemandRevalidate,
	})

	st := store.New(store.Options{
		Route:                o.config.Route,
		IsStaticGeneration:   o.config.Static,
		IncrementalCache:     o.config.Cache,
		IsOnDemandRevalidate: o.config.OnDemandRevalidate,
		IsPrerendering:       o.config.Prerendering,
		IsRevalidate:         o.config.Revalidating,
		DynamicShouldError:   o.config.DynamicShouldError,
	})
	if o.config.FetchCache != types.FetchCacheUnset {
		st.SetFetchCache(o.config.FetchCache)
	}
	if o.config.DefaultRevalidate.IsSet() {
		st.AddRevalidate(o.config.DefaultRevalidate)
	}
	st.AddTags(o.config.Tags...)

	var body []byte
	renderErr := carrier.Run(ctx, st, func(ctx context.Context) error {
		b, err := render(ctx)
		body = b
		return err
	})

	if renderErr == nil && o.config.OnDemandRevalidate {
		st.MarkPathRevalidated()
	}

	// Queued revalidations must run to completion even when the client
	// aborted the request, on every termination path.
	o.drainPending(ctx, st)

	tel := st.Telemetry()
	result := o.buildResult(tel, body, renderErr)

	if result.Outcome == types.OutcomeStatic {
		o.persistArtifact(ctx, tel, body)
	}

	o.publish(ctx, result)

	o.logger.Info("render pass completed", map[string]any{
		"outcome":  string(result.Outcome),
		"fetches":  len(result.FetchMetrics),
		"duration": result.Duration.String(),
	})

	return result, nil
}

// buildResult classifies the pass and assembles the result. A failed pass
// keeps its partial fetch log; fetches observed before the failure stay
// reportable.
func (o *Orchestrator) buildResult(tel store.Telemetry, body []byte, renderErr error) *PassResult {
	result := &PassResult{
		Route:                   tel.Route,
		Revalidate:              tel.Revalidate,
		FetchMetrics:            tel.FetchMetrics,
		Tags:                    tel.Tags,
		RevalidatedTags:         tel.RevalidatedTags,
		PathWasRevalidated:      tel.PathWasRevalidated,
		Duration:                time.Since(o.startTime),
		DynamicUsageDescription: tel.DynamicUsageDescription,
		DynamicUsageStack:       tel.DynamicUsageStack,
	}

	switch {
	case renderErr != nil:
		result.Outcome = types.OutcomeFailed
		result.Message = renderErr.Error()

		var usage *store.DynamicUsageError
		if errors.As(renderErr, &usage) {
			o.logger.Error("dynamic behavior in forced-static pass", map[string]any{
				"description": usage.Description,
			})
		} else {
			o.logger.Error("render failed", map[string]any{
				"error": renderErr.Error(),
			})
		}
		o.config.Collector.IncPassFailed()

	case tel.Static:
		result.Outcome = types.OutcomeStatic
		result.Body = body
		o.config.Collector.IncPassStatic()

	default:
		result.Outcome = types.OutcomeDynamic
		result.Body = body
		o.config.Collector.IncPassDynamic()
		if tel.Downgraded {
			o.config.Collector.IncDynamicDowngrade()
			o.logger.Info("static pass downgraded to dynamic", map[string]any{
				"description": tel.DynamicUsageDescription,
			})
		}
	}

	return result
}

// persistArtifact writes the static artifact under the route key.
// A failed write degrades the pass to uncached, it does not fail it.
func (o *Orchestrator) persistArtifact(ctx context.Context, tel store.Telemetry, body []byte) {
	ic := o.config.Cache
	if ic == nil || body == nil {
		return
	}

	entry := &cache.Entry{
		Body:        body,
		ContentType: DefaultArtifactContentType,
		Status:      200,
		StoredAt:    time.Now().UnixMilli(),
		Revalidate:  tel.Revalidate,
		Tags:        tel.Tags,
	}
	if err := ic.Write(ctx, cache.RouteKey(tel.Route.Pathname), entry); err != nil {
		o.config.Collector.IncCacheWriteFailure()
		o.logger.Warn("artifact write failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	o.config.Collector.IncCacheWriteSuccess()
}

// drainPending runs the store's queued revalidations to completion under a
// context detached from the originating request, so a client abort cannot
// cancel them. Failures are logged and counted, never propagated.
func (o *Orchestrator) drainPending(ctx context.Context, st *store.Store) {
	pending := st.TakePendingRevalidates()
	if len(pending) == 0 {
		return
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pendingFlushTimeout)
	defer cancel()

	var g errgroup.Group
	for _, fn := range pending {
		g.Go(func() error {
			if err := fn(drainCtx); err != nil {
				o.config.Collector.IncRevalidationFailed()
				o.logger.Warn("queued revalidation failed", map[string]any{
					"error": err.Error(),
				})
				return nil
			}
			o.config.Collector.IncRevalidationCompleted()
			return nil
		})
	}
	_ = g.Wait()
}

// publish notifies the adapter, best effort, detached from the request.
func (o *Orchestrator) publish(ctx context.Context, result *PassResult) {
	a := o.config.Adapter
	if a == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := adapter.NewPassCompletedEvent(result.Route, result.Outcome, result.Revalidate, result.FetchMetrics, result.Duration)
	ev.RevalidatedTags = result.RevalidatedTags
	ev.PathRevalidated = result.PathWasRevalidated

	if err := a.Publish(publishCtx, ev); err != nil {
		o.logger.Warn("adapter publish failed (best effort)", map[string]any{
			"error": err.Error(),
		})
	}
}
