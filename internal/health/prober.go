package health

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Prober performs a lightweight REST ping against each exchange's health
// endpoint, seeding the tracker's EWMA before a connection's first
// WebSocket round-trip lands. Mirrors the teacher's resty-backed REST
// client: short per-request timeout, no retries (a failed probe is itself
// the signal).
type Prober struct {
	http *resty.Client
}

// NewProber builds a prober with a 3s per-probe timeout.
func NewProber() *Prober {
	return &Prober{
		http: resty.New().SetTimeout(3 * time.Second),
	}
}

// Probe issues a GET against url and records the outcome against
// connectionID in tracker.
func (p *Prober) Probe(ctx context.Context, tracker *Tracker, connectionID, url string) error {
	start := time.Now()
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		tracker.RecordFailure(connectionID)
		return fmt.Errorf("probe %s: %w", connectionID, err)
	}
	if resp.IsError() {
		tracker.RecordFailure(connectionID)
		return fmt.Errorf("probe %s: status %d", connectionID, resp.StatusCode())
	}
	tracker.RecordSuccess(connectionID, time.Since(start))
	return nil
}

// ProbeAll probes every (connectionID, url) pair concurrently and returns
// once all have completed; errors are recorded in the tracker rather than
// surfaced, since a probe sweep is best-effort.
func (p *Prober) ProbeAll(ctx context.Context, tracker *Tracker, endpoints map[string]string) {
	done := make(chan struct{}, len(endpoints))
	for id, url := range endpoints {
		go func(id, url string) {
			defer func() { done <- struct{}{} }()
			_ = p.Probe(ctx, tracker, id, url)
		}(id, url)
	}
	for range endpoints {
		<-done
	}
}
