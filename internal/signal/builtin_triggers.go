package signal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/pkg/types"
)

// Builtin triggers are stubs with configurable thresholds (§1 non-goals:
// "not a strategy engine"). They read the table's latest values and the
// incoming signal to decide whether to emit a TradingEvent.

// MTTrigger opens a position when an adaptive spread deviation and a
// funding-rate-direction signal agree: the percentile reaches MinPercentile and
// funding direction is non-neutral. Mirrors the "Happy open" scenario (§8.1).
type MTTrigger struct {
	MinPercentile float64
	DefaultQty    decimal.Decimal
}

func (t MTTrigger) Name() string                     { return "MT" }
func (t MTTrigger) Priority() types.TriggerPriority   { return types.PriorityHigh }

func (t MTTrigger) Evaluate(table *Table, incoming types.Signal) *types.TradingEvent {
	if incoming.Kind != types.SignalAdaptiveSpreadDeviation && incoming.Kind != types.SignalFundingRateDirection {
		return nil
	}

	spread := table.GetLast(types.SignalAdaptiveSpreadDeviation)
	funding := table.GetLast(types.SignalFundingRateDirection)
	if spread == nil || funding == nil {
		return nil
	}
	if spread.Percentile < t.MinPercentile {
		return nil
	}
	if funding.Direction == types.FundingNeutral {
		return nil
	}

	side := types.Sell
	if funding.Direction == types.FundingNegative {
		side = types.Buy
	}

	qty := t.DefaultQty
	if qty.IsZero() {
		qty = decimal.NewFromInt(100)
	}

	return &types.TradingEvent{
		Kind:        types.EventOpenPosition,
		Symbol:      incoming.SymbolID,
		ExchangeIDs: []uint32{incoming.ExchangeID},
		Side:        side,
		Quantity:    qty,
		TriggerType: t.Name(),
		Reason:      "adaptive spread deviation confirmed by funding direction",
		Timestamp:   incoming.Timestamp,
	}
}

// MTCloseTrigger closes a position when the real-time funding risk signal
// crosses its configured threshold, indicating the funding carry no longer
// justifies holding the position.
type MTCloseTrigger struct {
	MaxRiskRate float64
}

func (t MTCloseTrigger) Name() string                   { return "MTClose" }
func (t MTCloseTrigger) Priority() types.TriggerPriority { return types.PriorityMedium }

func (t MTCloseTrigger) Evaluate(table *Table, incoming types.Signal) *types.TradingEvent {
	if incoming.Kind != types.SignalRealTimeFundingRisk {
		return nil
	}
	if incoming.Rate < t.MaxRiskRate {
		return nil
	}

	return &types.TradingEvent{
		Kind:        types.EventClosePosition,
		Symbol:      incoming.SymbolID,
		ExchangeIDs: []uint32{incoming.ExchangeID},
		TriggerType: t.Name(),
		Reason:      "real-time funding risk exceeded threshold",
		Timestamp:   incoming.Timestamp,
	}
}

// HedgeTrigger emits a hedge leg when a fixed spread deviation signal shows
// the configured side of the book has moved beyond its threshold, in the
// opposite direction of the last known funding signal.
type HedgeTrigger struct {
	MinSpread float64
	HedgeQty  decimal.Decimal
}

func (t HedgeTrigger) Name() string                   { return "Hedge" }
func (t HedgeTrigger) Priority() types.TriggerPriority { return types.PriorityMedium }

func (t HedgeTrigger) Evaluate(table *Table, incoming types.Signal) *types.TradingEvent {
	if incoming.Kind != types.SignalFixedSpreadDeviation {
		return nil
	}
	if incoming.Spread < t.MinSpread {
		return nil
	}

	funding := table.GetLast(types.SignalFundingRateDirection)
	side := types.Buy
	if funding != nil && funding.Direction == types.FundingNegative {
		side = types.Sell
	}

	qty := t.HedgeQty
	if qty.IsZero() {
		qty = decimal.NewFromInt(50)
	}

	now := incoming.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &types.TradingEvent{
		Kind:        types.EventHedgePosition,
		Symbol:      incoming.SymbolID,
		ExchangeIDs: []uint32{incoming.ExchangeID},
		Side:        side,
		Quantity:    qty,
		TriggerType: t.Name(),
		Reason:      "fixed spread deviation exceeded hedge threshold",
		Timestamp:   now,
	}
}
