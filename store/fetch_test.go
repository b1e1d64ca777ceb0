package store

import (
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/kiln/types"
)

func TestRecordFetch_DistinctTriplesAppendInOrder(t *testing.T) {
	s := testStore(Options{})

	candidates := []types.FetchEvent{
		{URL: "https://api.example.com/x", Method: "GET", Status: 200},
		{URL: "https://api.example.com/y", Method: "GET", Status: 200},
		{URL: "https://api.example.com/x", Method: "POST", Status: 200},
		{URL: "https://api.example.com/x", Method: "GET", Status: 500},
	}

	for i, c := range candidates {
		c.ID = s.NextFetchID()
		c.Start = time.Now().UnixMilli()
		if !s.RecordFetch(c) {
			t.Errorf("candidate %d: not recorded, want recorded", i)
		}
	}

	got := s.FetchMetrics()
	if len(got) != len(candidates) {
		t.Fatalf("len(fetchMetrics) = %d, want %d", len(got), len(candidates))
	}

	// Append order, monotonically increasing ids, stamped completion times.
	for i, ev := range got {
		if ev.URL != candidates[i].URL || ev.Method != candidates[i].Method || ev.Status != candidates[i].Status {
			t.Errorf("entry %d = %s %s %d, want %s %s %d",
				i, ev.Method, ev.URL, ev.Status,
				candidates[i].Method, candidates[i].URL, candidates[i].Status)
		}
		if i > 0 && got[i].ID <= got[i-1].ID {
			t.Errorf("entry %d: id %d not greater than previous %d", i, got[i].ID, got[i-1].ID)
		}
		if ev.End == 0 {
			t.Errorf("entry %d: End not stamped", i)
		}
	}
}

func TestRecordFetch_DuplicateTripleSuppressed(t *testing.T) {
	s := testStore(Options{})

	first := types.FetchEvent{ID: s.NextFetchID(), URL: "https://api.example.com/x", Method: "GET", Status: 200}
	if !s.RecordFetch(first) {
		t.Fatal("first recording should succeed")
	}

	dup := types.FetchEvent{ID: s.NextFetchID(), URL: "https://api.example.com/x", Method: "GET", Status: 200}
	if s.RecordFetch(dup) {
		t.Error("duplicate triple should not be recorded")
	}

	if got := s.FetchMetrics(); len(got) != 1 {
		t.Errorf("len(fetchMetrics) = %d, want 1", len(got))
	}

	// Distinct status to the same URL is a distinct triple.
	errored := types.FetchEvent{ID: s.NextFetchID(), URL: "https://api.example.com/x", Method: "GET", Status: 500}
	if !s.RecordFetch(errored) {
		t.Error("distinct status should be recorded")
	}
	if got := s.FetchMetrics(); len(got) != 2 {
		t.Errorf("len(fetchMetrics) = %d, want 2", len(got))
	}
}

func TestRecordFetch_FirstInstanceWins(t *testing.T) {
	s := testStore(Options{})
	s.now = func() time.Time { return time.UnixMilli(1000) }

	first := types.FetchEvent{ID: 1, URL: "https://api.example.com/x", Method: "GET", Status: 200, CacheReason: "first"}
	s.RecordFetch(first)

	s.now = func() time.Time { return time.UnixMilli(9000) }
	dup := types.FetchEvent{ID: 2, URL: "https://api.example.com/x", Method: "GET", Status: 200, CacheReason: "second"}
	s.RecordFetch(dup)

	got := s.FetchMetrics()
	if got[0].CacheReason != "first" || got[0].End != 1000 || got[0].ID != 1 {
		t.Errorf("retained entry = %+v, want the first instance's metadata", got[0])
	}
}

func TestRecordFetch_RacingDuplicates(t *testing.T) {
	// Two recordings racing on the same triple must not both be recorded.
	s := testStore(Options{})

	const racers = 16
	var wg sync.WaitGroup
	results := make([]bool, racers)

	for i := range racers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.RecordFetch(types.FetchEvent{
				ID:     i + 1,
				URL:    "https://api.example.com/contended",
				Method: "GET",
				Status: 200,
			})
		}(i)
	}
	wg.Wait()

	recorded := 0
	for _, r := range results {
		if r {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("recorded = %d racers, want exactly 1", recorded)
	}
	if got := s.FetchMetrics(); len(got) != 1 {
		t.Errorf("len(fetchMetrics) = %d, want 1", len(got))
	}
}

func TestNextFetchID_Monotonic(t *testing.T) {
	s := testStore(Options{})
	prev := 0
	for range 10 {
		id := s.NextFetchID()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestNextFetchID_StoreScoped(t *testing.T) {
	// Counters are owned by the store, not shared process-wide.
	a := testStore(Options{})
	b := testStore(Options{})

	for range 5 {
		a.NextFetchID()
	}
	if id := b.NextFetchID(); id != 1 {
		t.Errorf("fresh store first id = %d, want 1", id)
	}
}

func TestFetchMetrics_EmptyUntilFirstRecording(t *testing.T) {
	s := testStore(Options{})
	if got := s.FetchMetrics(); got != nil {
		t.Errorf("FetchMetrics = %v, want nil before first recording", got)
	}
}
