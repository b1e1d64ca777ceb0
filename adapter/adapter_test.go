package adapter

import (
	"testing"
	"time"

	"github.com/pithecene-io/kiln/types"
)

func TestNewPassCompletedEvent(t *testing.T) {
	route := types.RouteMeta{RequestID: "req-001", Pathname: "/blog"}
	events := []types.FetchEvent{
		{ID: 1, URL: "https://api.example.com/posts", CacheStatus: types.CacheHit},
		{ID: 2, URL: "https://api.example.com/authors", CacheStatus: types.CacheMiss},
		{ID: 3, URL: "https://api.example.com/live", CacheStatus: types.CacheBypass},
		{ID: 4, URL: "https://api.example.com/tags", CacheStatus: types.CacheHit},
	}

	ev := NewPassCompletedEvent(route, types.OutcomeStatic, types.RevalidateAfter(60), events, 1500*time.Millisecond)

	if ev.EventType != EventTypePassCompleted {
		t.Errorf("event type = %q", ev.EventType)
	}
	if ev.RequestID != "req-001" || ev.Pathname != "/blog" {
		t.Errorf("identity = %s %s", ev.RequestID, ev.Pathname)
	}
	if ev.Outcome != "static" {
		t.Errorf("outcome = %q", ev.Outcome)
	}
	if ev.RevalidateAfter == nil || *ev.RevalidateAfter != 60 {
		t.Errorf("revalidate_after = %v", ev.RevalidateAfter)
	}
	if ev.FetchCount != 4 {
		t.Errorf("fetch count = %d", ev.FetchCount)
	}
	if ev.CacheHitRatio != 0.5 {
		t.Errorf("cache hit ratio = %v", ev.CacheHitRatio)
	}
	if ev.DurationMs != 1500 {
		t.Errorf("duration = %d", ev.DurationMs)
	}
	if _, err := time.Parse(time.RFC3339, ev.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
}

func TestNewPassCompletedEvent_RevalidateFlattening(t *testing.T) {
	route := types.RouteMeta{RequestID: "req-002", Pathname: "/about"}

	cases := []struct {
		name       string
		revalidate types.Revalidate
		want       *int64
	}{
		{"unset", types.Revalidate{}, nil},
		{"never", types.RevalidateNever(), nil},
		{"finite", types.RevalidateAfter(300), ptr(int64(300))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := NewPassCompletedEvent(route, types.OutcomeDynamic, tc.revalidate, nil, time.Second)
			switch {
			case tc.want == nil && ev.RevalidateAfter != nil:
				t.Errorf("revalidate_after = %v, want absent", *ev.RevalidateAfter)
			case tc.want != nil && (ev.RevalidateAfter == nil || *ev.RevalidateAfter != *tc.want):
				t.Errorf("revalidate_after = %v, want %d", ev.RevalidateAfter, *tc.want)
			}
		})
	}
}

func TestNewPassCompletedEvent_NoFetches(t *testing.T) {
	ev := NewPassCompletedEvent(types.RouteMeta{RequestID: "r", Pathname: "/"}, types.OutcomeFailed, types.Revalidate{}, nil, 0)
	if ev.FetchCount != 0 || ev.CacheHitRatio != 0 {
		t.Errorf("empty pass event = %+v", ev)
	}
	if ev.Outcome != "failed" {
		t.Errorf("outcome = %q", ev.Outcome)
	}
}

func ptr[T any](v T) *T { return &v }
