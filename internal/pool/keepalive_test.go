package pool

import (
	"testing"
	"time"
)

func TestKeepaliveIntervalsMatchExchangeContracts(t *testing.T) {
	cases := []struct {
		name     string
		k        Keepalive
		interval time.Duration
	}{
		{"binance", BinancePolicy{}, 185 * time.Second},
		{"okx", OKXPolicy{}, 25 * time.Second},
		{"bybit", BybitPolicy{}, 20 * time.Second},
	}
	for _, c := range cases {
		if got := c.k.Interval(); got != c.interval {
			t.Errorf("%s: expected interval %v, got %v", c.name, c.interval, got)
		}
	}
}
