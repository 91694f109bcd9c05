// Package pool implements the connection selector (C11) and the WebSocket
// connection runners (C12): strategy-based fan-out over healthy
// connections, and per-exchange keepalive/reconnect loops.
package pool

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/tradingctl/controlplane/pkg/types"
)

// Strategy selects how Select ranks candidate connections (§4.10).
type Strategy string

const (
	RoundRobin   Strategy = "ROUND_ROBIN"
	HealthScore  Strategy = "HEALTH_SCORE"
	LeastLatency Strategy = "LEAST_LATENCY"
	Random       Strategy = "RANDOM"
)

// MetricsSource is the read-only view the selector needs from the health
// tracker. It's an interface so tests can substitute fixed metrics without
// depending on internal/health.
type MetricsSource interface {
	All(exchange, marketType string) []types.ConnectionMetrics
}

// Selector picks k connections out of the healthy set for (exchange, marketType).
type Selector struct {
	mu      sync.Mutex
	metrics MetricsSource
	cursors map[string]int // RoundRobin cursor per (exchange, marketType)
	rand    *rand.Rand
}

// NewSelector creates a selector backed by metrics.
func NewSelector(metrics MetricsSource) *Selector {
	return &Selector{
		metrics: metrics,
		cursors: make(map[string]int),
		rand:    rand.New(rand.NewSource(1)),
	}
}

// Select filters to healthy connections for (exchange, marketType) and
// ranks them per strategy, returning up to k distinct ids (§4.10).
//
// Every strategy uses the same filter: score >= 30 and fewer than 5
// consecutive failures. No strategy uses a lower health floor.
func (s *Selector) Select(exchange, marketType string, k int, strategy Strategy) []string {
	candidates := s.metrics.All(exchange, marketType)
	floor := 30.0
	filtered := make([]types.ConnectionMetrics, 0, len(candidates))
	for _, m := range candidates {
		if m.ConsecutiveFailures >= 5 {
			continue
		}
		if m.HealthScore < floor {
			continue
		}
		filtered = append(filtered, m)
	}

	switch strategy {
	case HealthScore:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].HealthScore > filtered[j].HealthScore
		})
		return ids(firstN(filtered, k))
	case LeastLatency:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].RTTMillis < filtered[j].RTTMillis
		})
		return ids(firstN(filtered, k))
	case Random:
		s.mu.Lock()
		shuffled := append([]types.ConnectionMetrics(nil), filtered...)
		s.rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		s.mu.Unlock()
		return ids(firstN(shuffled, k))
	default: // RoundRobin
		return s.roundRobin(exchange, marketType, filtered, k)
	}
}

func (s *Selector) roundRobin(exchange, marketType string, filtered []types.ConnectionMetrics, k int) []string {
	if len(filtered) == 0 {
		return nil
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })

	key := exchange + "|" + marketType
	s.mu.Lock()
	cursor := s.cursors[key]
	s.mu.Unlock()

	n := len(filtered)
	if k > n {
		k = n
	}
	out := make([]string, 0, k)
	seen := make(map[string]bool, k)
	for i := 0; len(out) < k && i < n; i++ {
		m := filtered[(cursor+i)%n]
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m.ID)
	}

	s.mu.Lock()
	s.cursors[key] = (cursor + k) % n
	s.mu.Unlock()
	return out
}

// GetBackupConnections selects count connections for (exchange, marketType)
// excluding primary, using HealthScore ranking (§4.10).
func (s *Selector) GetBackupConnections(exchange, marketType, primary string, count int) []string {
	candidates := s.metrics.All(exchange, marketType)
	filtered := make([]types.ConnectionMetrics, 0, len(candidates))
	for _, m := range candidates {
		if m.ID == primary {
			continue
		}
		if m.ConsecutiveFailures >= 5 || m.HealthScore < 30 {
			continue
		}
		filtered = append(filtered, m)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].HealthScore > filtered[j].HealthScore
	})
	return ids(firstN(filtered, count))
}

func firstN(m []types.ConnectionMetrics, n int) []types.ConnectionMetrics {
	if n > len(m) {
		n = len(m)
	}
	if n < 0 {
		n = 0
	}
	return m[:n]
}

func ids(m []types.ConnectionMetrics) []string {
	out := make([]string, len(m))
	for i, c := range m {
		out[i] = c.ID
	}
	return out
}
