package pool

import (
	"testing"

	"github.com/tradingctl/controlplane/pkg/types"
)

type fakeMetrics struct {
	all []types.ConnectionMetrics
}

func (f fakeMetrics) All(exchange, marketType string) []types.ConnectionMetrics {
	return f.all
}

func conn(id string, score, rtt float64) types.ConnectionMetrics {
	return types.ConnectionMetrics{ID: id, HealthScore: score, RTTMillis: rtt}
}

func TestSelectHealthScoreRanksDescending(t *testing.T) {
	s := NewSelector(fakeMetrics{all: []types.ConnectionMetrics{
		conn("a", 40, 5), conn("b", 90, 5), conn("c", 60, 5),
	}})
	got := s.Select("binance", "spot", 2, HealthScore)
	want := []string{"b", "c"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSelectLeastLatencyRanksAscending(t *testing.T) {
	s := NewSelector(fakeMetrics{all: []types.ConnectionMetrics{
		conn("a", 90, 50), conn("b", 90, 5), conn("c", 90, 20),
	}})
	got := s.Select("binance", "spot", 3, LeastLatency)
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSelectFiltersUnhealthyBelowThirty(t *testing.T) {
	s := NewSelector(fakeMetrics{all: []types.ConnectionMetrics{
		conn("a", 29, 5), conn("b", 30, 5),
	}})
	got := s.Select("binance", "spot", 2, HealthScore)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected only b, got %v", got)
	}
}

func TestSelectFiltersConsecutiveFailureStreak(t *testing.T) {
	unhealthy := conn("a", 90, 5)
	unhealthy.ConsecutiveFailures = 5
	s := NewSelector(fakeMetrics{all: []types.ConnectionMetrics{unhealthy, conn("b", 90, 5)}})
	got := s.Select("binance", "spot", 2, HealthScore)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected only b, got %v", got)
	}
}

func TestSelectRoundRobinWrapsAndAdvancesCursor(t *testing.T) {
	s := NewSelector(fakeMetrics{all: []types.ConnectionMetrics{
		conn("a", 90, 5), conn("b", 90, 5), conn("c", 90, 5),
	}})
	first := s.Select("binance", "spot", 2, RoundRobin)
	second := s.Select("binance", "spot", 2, RoundRobin)

	if first[0] != "a" || first[1] != "b" {
		t.Fatalf("expected [a b] on first call, got %v", first)
	}
	if second[0] != "c" || second[1] != "a" {
		t.Fatalf("expected [c a] on second call (wrap), got %v", second)
	}
}

func TestGetBackupConnectionsExcludesPrimary(t *testing.T) {
	s := NewSelector(fakeMetrics{all: []types.ConnectionMetrics{
		conn("primary", 99, 5), conn("a", 90, 5), conn("b", 80, 5),
	}})
	got := s.GetBackupConnections("binance", "spot", "primary", 2)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}
