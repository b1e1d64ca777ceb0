package render

import (
	"context"
	"testing"
	"time"

	"github.com/pithecene-io/kiln/adapter"
	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/cache/memory"
	"github.com/pithecene-io/kiln/metrics"
	"github.com/pithecene-io/kiln/types"
)

func seedArtifact(t *testing.T, ic cache.Incremental, pathname string, tags ...string) {
	t.Helper()
	err := ic.Write(t.Context(), cache.RouteKey(pathname), &cache.Entry{
		Body:       []byte("stale artifact"),
		Status:     200,
		StoredAt:   time.Now().UnixMilli(),
		Revalidate: types.RevalidateAfter(3600),
		Tags:       tags,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRevalidatePath_DropsArtifact(t *testing.T) {
	ic := memory.New()
	fa := &fakeAdapter{}
	collector := metrics.NewCollector("memory", "test")

	seedArtifact(t, ic, "/blog")

	r, err := NewRevalidator(ic, collector, fa)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := r.RevalidatePath(t.Context(), "/blog", nil)
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil without rerender", result)
	}

	entry, _ := ic.Read(t.Context(), cache.RouteKey("/blog"))
	if entry != nil {
		t.Error("artifact should be dropped")
	}

	ev := fa.last(t)
	if ev.EventType != adapter.EventTypeRevalidated || !ev.PathRevalidated {
		t.Errorf("event = %+v", ev)
	}
	if ev.Pathname != "/blog" {
		t.Errorf("event pathname = %q", ev.Pathname)
	}

	if s := collector.Snapshot(); s.RevalidationsCompleted != 1 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestRevalidatePath_Rerenders(t *testing.T) {
	ic := memory.New()
	seedArtifact(t, ic, "/blog")

	r, err := NewRevalidator(ic, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := r.RevalidatePath(t.Context(), "/blog", func(_ context.Context) ([]byte, error) {
		return []byte("fresh artifact"), nil
	})
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}

	if result == nil || result.Outcome != types.OutcomeStatic {
		t.Fatalf("result = %+v", result)
	}
	if !result.PathWasRevalidated {
		t.Error("re-rendered pass must mark the path revalidated")
	}

	entry, _ := ic.Read(t.Context(), cache.RouteKey("/blog"))
	if entry == nil || string(entry.Body) != "fresh artifact" {
		t.Errorf("artifact = %+v", entry)
	}
}

func TestRevalidatePath_RerenderFailure(t *testing.T) {
	ic := memory.New()
	collector := metrics.NewCollector("memory", "test")

	r, err := NewRevalidator(ic, collector, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := r.RevalidatePath(t.Context(), "/blog", func(_ context.Context) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected error for failed re-render")
	}
	if result == nil || result.Outcome != types.OutcomeFailed {
		t.Errorf("result = %+v", result)
	}

	if s := collector.Snapshot(); s.RevalidationsFailed != 1 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestRevalidatePath_RejectsRelativePath(t *testing.T) {
	r, err := NewRevalidator(memory.New(), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := r.RevalidatePath(t.Context(), "blog", nil); err == nil {
		t.Fatal("expected error for non-rooted pathname")
	}
}

func TestRevalidateTag(t *testing.T) {
	ic := memory.New()
	fa := &fakeAdapter{}

	seedArtifact(t, ic, "/blog", "posts")
	seedArtifact(t, ic, "/blog/archive", "posts")
	seedArtifact(t, ic, "/about")

	r, err := NewRevalidator(ic, nil, fa)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	removed, err := r.RevalidateTag(t.Context(), "posts")
	if err != nil {
		t.Fatalf("revalidate tag: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	// Untagged entries are untouched.
	if entry, _ := ic.Read(t.Context(), cache.RouteKey("/about")); entry == nil {
		t.Error("untagged artifact should survive")
	}

	ev := fa.last(t)
	if ev.EventType != adapter.EventTypeRevalidated {
		t.Errorf("event type = %q", ev.EventType)
	}
	if len(ev.RevalidatedTags) != 1 || ev.RevalidatedTags[0] != "posts" {
		t.Errorf("event tags = %v", ev.RevalidatedTags)
	}
	if ev.PathRevalidated {
		t.Error("tag revalidation must not claim path revalidation")
	}
}

func TestRevalidateTag_EmptyTag(t *testing.T) {
	r, err := NewRevalidator(memory.New(), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := r.RevalidateTag(t.Context(), ""); err == nil {
		t.Fatal("expected error for empty tag")
	}
}

func TestNewRevalidator_RequiresCache(t *testing.T) {
	if _, err := NewRevalidator(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil cache")
	}
}
