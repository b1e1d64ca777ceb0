// Package adapter defines the downstream notification boundary.
//
// Adapters publish pass completion events to downstream systems: cache
// purgers, CDNs, audit sinks. The gateway owns adapter lifecycle; users
// provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/kiln/types"
)

// EventTypePassCompleted is the event type for completed render passes.
const EventTypePassCompleted = "pass_completed"

// EventTypeRevalidated is the event type for on-demand revalidations.
const EventTypeRevalidated = "revalidated"

// PassCompletedEvent is the payload published when a render pass or an
// on-demand revalidation finishes.
type PassCompletedEvent struct {
	EventType       string   `json:"event_type"`
	RequestID       string   `json:"request_id"`
	Pathname        string   `json:"pathname"`
	Outcome         string   `json:"outcome"` // static, dynamic, failed
	RevalidateAfter *int64   `json:"revalidate_after,omitempty"`
	FetchCount      int      `json:"fetch_count"`
	CacheHitRatio   float64  `json:"cache_hit_ratio"`
	RevalidatedTags []string `json:"revalidated_tags,omitempty"`
	PathRevalidated bool     `json:"path_revalidated"`
	DurationMs      int64    `json:"duration_ms"`
	Timestamp       string   `json:"timestamp"` // ISO 8601
}

// NewPassCompletedEvent builds an event from a pass's route identity and
// fetch log. Revalidate is flattened to a nullable interval: absent when
// unset or never.
func NewPassCompletedEvent(route types.RouteMeta, outcome types.PassOutcome, revalidate types.Revalidate, events []types.FetchEvent, duration time.Duration) *PassCompletedEvent {
	ev := &PassCompletedEvent{
		EventType:  EventTypePassCompleted,
		RequestID:  route.RequestID,
		Pathname:   route.Pathname,
		Outcome:    string(outcome),
		FetchCount: len(events),
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if revalidate.IsSet() && !revalidate.Never() {
		secs := revalidate.Seconds()
		ev.RevalidateAfter = &secs
	}
	if len(events) > 0 {
		hits := 0
		for _, e := range events {
			if e.CacheStatus == types.CacheHit {
				hits++
			}
		}
		ev.CacheHitRatio = float64(hits) / float64(len(events))
	}
	return ev
}

// Adapter publishes pass completion events to a downstream system.
// Implementations must be safe for concurrent use across passes.
type Adapter interface {
	// Publish sends a pass completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *PassCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
