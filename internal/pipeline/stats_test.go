package pipeline

import (
	"testing"
	"time"
)

func TestSynthStatsSnapshotPercentiles(t *testing.T) {
	stats := NewSynthStats(time.Hour)
	stats.Record(100, 10)
	stats.Record(500, 50)
	stats.Record(300, 30)
	stats.Record(200, 20)
	stats.Record(400, 40)

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.TotalChars != 150 {
		t.Fatalf("expected total_chars=150, got %d", snap.TotalChars)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestSynthStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewSynthStats(10 * time.Millisecond)
	stats.Record(100, 1)
	stats.RecordFailure()
	time.Sleep(25 * time.Millisecond)

	snap := stats.Snapshot()
	if snap.Count != 0 || snap.Failures != 0 {
		t.Fatalf("expected empty window after prune, got count=%d failures=%d", snap.Count, snap.Failures)
	}

	stats.Record(200, 2)
	snap = stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestSynthStatsFailuresOnly(t *testing.T) {
	stats := NewSynthStats(time.Hour)
	stats.RecordFailure()
	stats.RecordFailure()
	snap := stats.Snapshot()
	if snap.Failures != 2 || snap.Count != 0 {
		t.Fatalf("expected 2 failures and no samples, got %+v", snap)
	}
}

func TestSynthStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewSynthStats(time.Hour)
	stats.Record(-10, 0)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}
