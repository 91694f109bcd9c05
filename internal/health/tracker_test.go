package health

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testTracker() *Tracker {
	return NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordSuccessSeedsEWMA(t *testing.T) {
	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	tr.RecordSuccess("c1", 5*time.Millisecond)

	m, ok := tr.Get("c1")
	if !ok {
		t.Fatal("expected metrics to exist")
	}
	if m.RTTMillis != 5 {
		t.Fatalf("expected first sample to seed rtt_ms directly, got %v", m.RTTMillis)
	}
	if m.TotalMessages != 1 {
		t.Fatalf("expected total_messages=1, got %d", m.TotalMessages)
	}
}

func TestRecordSuccessEWMASmoothing(t *testing.T) {
	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	tr.RecordSuccess("c1", 10*time.Millisecond)
	tr.RecordSuccess("c1", 20*time.Millisecond)

	m, _ := tr.Get("c1")
	want := 0.9*10 + 0.1*20
	if m.RTTMillis != want {
		t.Fatalf("expected ewma %v, got %v", want, m.RTTMillis)
	}
}

func TestRecordFailureIncrementsStreak(t *testing.T) {
	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	tr.RecordSuccess("c1", 5*time.Millisecond)
	tr.RecordFailure("c1")
	tr.RecordFailure("c1")

	m, _ := tr.Get("c1")
	if m.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", m.ConsecutiveFailures)
	}
	if m.TotalErrors != 2 {
		t.Fatalf("expected 2 total errors, got %d", m.TotalErrors)
	}
	// success rate = 1 message / 3 total = 33.33%
	if m.SuccessRate < 33 || m.SuccessRate > 34 {
		t.Fatalf("expected success rate ~33.3, got %v", m.SuccessRate)
	}
}

func TestHealthyRequiresScoreAndFailureStreak(t *testing.T) {
	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	for i := 0; i < 5; i++ {
		tr.RecordFailure("c1")
	}

	m, _ := tr.Get("c1")
	if m.Healthy() {
		t.Fatal("expected connection with 5 consecutive failures to be unhealthy")
	}
}

func TestScoreClampedToHundred(t *testing.T) {
	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	tr.RecordSuccess("c1", 1*time.Millisecond)

	m, _ := tr.Get("c1")
	if m.HealthScore > 100 {
		t.Fatalf("expected score clamped to 100, got %v", m.HealthScore)
	}
}

func TestUnregisteredConnectionIsNoop(t *testing.T) {
	tr := testTracker()
	tr.RecordSuccess("ghost", time.Millisecond)
	if _, ok := tr.Get("ghost"); ok {
		t.Fatal("expected no metrics for unregistered connection")
	}
}
