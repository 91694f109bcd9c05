// Package health implements the connection health tracker (C10): EWMA RTT,
// success rate, consecutive-failure tracking, and the composite health
// score formula from §4.9.
package health

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tradingctl/controlplane/pkg/types"
)

// rttAlpha is the EWMA smoothing factor for rtt_ms (§4.9).
const rttAlpha = 0.1

// Tracker owns every ConnectionMetrics record. The pool's selector (C11)
// reads metrics immutably through Get/All; only the tracker itself mutates.
type Tracker struct {
	mu      sync.RWMutex
	metrics map[string]*types.ConnectionMetrics

	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		metrics: make(map[string]*types.ConnectionMetrics),
		logger:  logger.With("component", "health_tracker"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a zero-value metrics record for a connection id if one
// doesn't already exist.
func (t *Tracker) Register(id, exchange, marketType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.metrics[id]; ok {
		return
	}
	t.metrics[id] = &types.ConnectionMetrics{
		ID:         id,
		Exchange:   exchange,
		MarketType: marketType,
		LastUpdate: t.now(),
	}
}

// RecordSuccess folds a successful round-trip of rtt into the connection's
// EWMA and resets its failure streak (§4.9).
func (t *Tracker) RecordSuccess(id string, rtt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics[id]
	if m == nil {
		return
	}
	m.RTTMillis = ewma(m.RTTMillis, float64(rtt.Microseconds())/1000.0)
	m.ConsecutiveFailures = 0
	m.TotalMessages++
	m.LastUpdate = t.now()
	t.recomputeLocked(m)
}

// RecordFailure marks a failed round-trip: bumps consecutive_failures and
// total_errors, leaving rtt_ms untouched (a timeout has no sample).
func (t *Tracker) RecordFailure(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics[id]
	if m == nil {
		return
	}
	m.ConsecutiveFailures++
	m.TotalErrors++
	m.LastUpdate = t.now()
	t.recomputeLocked(m)

	if m.ConsecutiveFailures >= 5 {
		t.logger.Warn("connection unhealthy",
			"id", id,
			"consecutive_failures", m.ConsecutiveFailures,
			"health_score", m.HealthScore,
			"rtt", humanize.SIWithDigits(m.RTTMillis/1000, 1, "s"),
			"last_update", humanize.Time(m.LastUpdate))
	}
}

func ewma(prev, sample float64) float64 {
	if prev == 0 {
		return sample
	}
	return 0.9*prev + rttAlpha*sample
}

// recomputeLocked derives health_score from four components: the success
// rate term plus the RTT, failure-streak and recency bands. Caller
// must hold t.mu.
func (t *Tracker) recomputeLocked(m *types.ConnectionMetrics) {
	total := m.TotalMessages + m.TotalErrors
	successRate := 100.0
	if total > 0 {
		successRate = 100.0 * float64(m.TotalMessages) / float64(total)
	}
	m.SuccessRate = successRate

	score := successRate * 0.4
	score += rttBand(m.RTTMillis)
	score += failureBand(m.ConsecutiveFailures)
	score += recencyBand(t.now().Sub(m.LastUpdate))

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	m.HealthScore = score
}

func rttBand(rttMs float64) float64 {
	switch {
	case rttMs < 10:
		return 30
	case rttMs < 50:
		return 25
	case rttMs < 100:
		return 20
	case rttMs < 200:
		return 15
	case rttMs < 500:
		return 10
	default:
		return 5
	}
}

func failureBand(consecutiveFailures int) float64 {
	switch consecutiveFailures {
	case 0:
		return 20
	case 1:
		return 15
	case 2:
		return 10
	case 3:
		return 5
	default:
		return 0
	}
}

func recencyBand(age time.Duration) float64 {
	switch {
	case age < 10*time.Second:
		return 10
	case age < 30*time.Second:
		return 8
	case age < 60*time.Second:
		return 6
	case age < 300*time.Second:
		return 4
	default:
		return 2
	}
}

// Get returns a copy of the metrics for id, or false if unknown.
func (t *Tracker) Get(id string) (types.ConnectionMetrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.metrics[id]
	if !ok {
		return types.ConnectionMetrics{}, false
	}
	return *m, true
}

// All returns a snapshot of every tracked connection's metrics, filtered to
// a given (exchange, marketType) when either is non-empty.
func (t *Tracker) All(exchange, marketType string) []types.ConnectionMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.ConnectionMetrics, 0, len(t.metrics))
	for _, m := range t.metrics {
		if exchange != "" && m.Exchange != exchange {
			continue
		}
		if marketType != "" && m.MarketType != marketType {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// Touch recomputes a connection's recency band without a new sample; call
// periodically so idle connections decay even between traffic.
func (t *Tracker) Touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics[id]
	if m == nil {
		return
	}
	t.recomputeLocked(m)
}
