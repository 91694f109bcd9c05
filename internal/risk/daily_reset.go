package risk

import (
	"context"
	"log/slog"
	"time"
)

// DailyResetScheduler resets daily counters once per UTC day. §9 flags the
// naive "hour==0 && minute==0" tick check as a likely source bug: a missed
// tick in that minute skips a day entirely. This implementation instead
// polls on a short interval and compares the current UTC date against the
// date of the last successful reset, so a missed tick just means the reset
// runs a little late, never skips a day.
type DailyResetScheduler struct {
	state        *State
	logger       *slog.Logger
	pollInterval time.Duration
	lastReset    time.Time
}

// NewDailyResetScheduler creates a scheduler bound to state.
func NewDailyResetScheduler(state *State, logger *slog.Logger) *DailyResetScheduler {
	return &DailyResetScheduler{
		state:        state,
		logger:       logger.With("component", "risk_daily_reset"),
		pollInterval: time.Minute,
	}
}

// Run blocks, resetting daily counters once per UTC calendar day, until ctx is cancelled.
func (d *DailyResetScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.maybeReset()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.maybeReset()
		}
	}
}

func (d *DailyResetScheduler) maybeReset() {
	now := time.Now().UTC()
	if sameUTCDate(now, d.lastReset) {
		return
	}
	d.state.ResetDaily()
	d.lastReset = now
	d.logger.Info("daily risk counters reset", "date", now.Format("2006-01-02"))
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
