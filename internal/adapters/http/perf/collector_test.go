package perf_test

import (
	"testing"
	"time"

	"fitclub/internal/adapters/http/perf"
)

// TestCollector_RecordAndSnapshot tests aggregation over the ring buffer.
func TestCollector_RecordAndSnapshot(t *testing.T) {
	c := perf.NewCollector(100)
	now := time.Now()

	for i := 0; i < 4; i++ {
		c.Record(perf.Entry{Kind: perf.KindRequest, Path: "/api/plan/week", DurationMs: 10, Timestamp: now})
	}
	c.Record(perf.Entry{Kind: perf.KindRequest, Path: "/api/dashboard", DurationMs: 40, Timestamp: now})
	c.Record(perf.Entry{Kind: perf.KindQuery, Path: "session.ListByAccountAndDateRange", DurationMs: 5, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Minute), 5)
	if snap.TotalRecorded != 6 {
		t.Errorf("TotalRecorded = %d, want 6", snap.TotalRecorded)
	}
	if len(snap.SlowestPaths) != 2 {
		t.Fatalf("SlowestPaths = %d entries, want 2", len(snap.SlowestPaths))
	}
	if snap.SlowestPaths[0].Path != "/api/dashboard" {
		t.Errorf("slowest path = %s, want /api/dashboard", snap.SlowestPaths[0].Path)
	}
	if len(snap.SlowestQueries) != 1 {
		t.Errorf("SlowestQueries = %d entries, want 1", len(snap.SlowestQueries))
	}
	if snap.RequestP50Ms != 10 {
		t.Errorf("RequestP50Ms = %v, want 10", snap.RequestP50Ms)
	}
}

// TestCollector_RingOverwrite tests that the buffer wraps without growing.
func TestCollector_RingOverwrite(t *testing.T) {
	c := perf.NewCollector(4)
	now := time.Now()
	for i := 0; i < 10; i++ {
		c.Record(perf.Entry{Kind: perf.KindRequest, Path: "/x", DurationMs: 1, Timestamp: now})
	}
	snap := c.Snapshot(now.Add(-time.Minute), 5)
	if snap.TotalRecorded != 10 {
		t.Errorf("TotalRecorded = %d, want 10", snap.TotalRecorded)
	}
	if snap.SlowestPaths[0].Count != 4 {
		t.Errorf("ring retained %d entries, want 4", snap.SlowestPaths[0].Count)
	}
}

// TestCollector_SinceFilter tests that old entries are excluded.
func TestCollector_SinceFilter(t *testing.T) {
	c := perf.NewCollector(10)
	old := time.Now().Add(-time.Hour)
	c.Record(perf.Entry{Kind: perf.KindRequest, Path: "/old", DurationMs: 1, Timestamp: old})

	snap := c.Snapshot(time.Now().Add(-time.Minute), 5)
	if len(snap.SlowestPaths) != 0 {
		t.Errorf("entries before since should be excluded, got %v", snap.SlowestPaths)
	}
}
