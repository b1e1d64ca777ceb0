package store

import "github.com/pithecene-io/kiln/types"

// NextFetchID returns the next fetch event identifier for this pass.
// IDs are scoped to the Store and monotonically increasing, starting at 1.
func (s *Store) NextFetchID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFetchID++
	return s.nextFetchID
}

// RecordFetch appends a fetch observation to the pass's fetch log,
// deduplicating on the (url, method, status) triple. The candidate's End
// field is ignored; the completion time is stamped here.
//
// The upstream fetch layer coalesces logically identical concurrent
// fetches, so the same observation can be submitted more than once per
// pass. Returns false when a matching entry already exists; the first
// recorded instance wins and the log is left unchanged. The scan and
// append are a single atomic step, so two recordings racing on the same
// triple never both return true.
func (s *Store) RecordFetch(candidate types.FetchEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.fetchMetrics {
		if existing.URL == candidate.URL &&
			existing.Method == candidate.Method &&
			existing.Status == candidate.Status {
			return false
		}
	}

	candidate.End = s.now().UnixMilli()
	s.fetchMetrics = append(s.fetchMetrics, candidate)
	return true
}

// FetchMetrics returns a copy of the recorded fetch events in append order.
// Partial logs are valid: consumers may read them even when the overall
// render failed.
func (s *Store) FetchMetrics() []types.FetchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fetchMetrics) == 0 {
		return nil
	}
	out := make([]types.FetchEvent, len(s.fetchMetrics))
	copy(out, s.fetchMetrics)
	return out
}
