// Package transport bridges the executor's Sender contract (C13) onto the
// pool's WebSocket connection runners (C12): RunnerSender fans a signed
// order payload out over a runner's write half and resolves the matching
// response by client_order_id once the runner's read loop delivers it.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/internal/pool"
	"github.com/tradingctl/controlplane/pkg/types"
)

// wireExecutionReport is the exchange-native JSON shape an order ack/fill
// message arrives in; per §6 only the fields the core needs are fixed, so
// this struct carries exactly those.
type wireExecutionReport struct {
	ClientOrderID   string `json:"client_order_id"`
	ExchangeOrderID string `json:"exchange_order_id"`
	Symbol          uint32 `json:"symbol"`
	Side            string `json:"side"`
	Status          string `json:"status"`
	FilledQuantity  string `json:"filled_qty"`
	FilledPrice     string `json:"filled_price"`
	Fee             string `json:"fee"`
	FeeCurrency     string `json:"fee_currency"`
	TradeID         string `json:"trade_id"`
	Error           string `json:"error"`
}

func (w wireExecutionReport) toExecutionReport() types.ExecutionReport {
	qty, _ := decimal.NewFromString(w.FilledQuantity)
	price, _ := decimal.NewFromString(w.FilledPrice)
	fee, _ := decimal.NewFromString(w.Fee)
	return types.ExecutionReport{
		ClientOrderID:   w.ClientOrderID,
		ExchangeOrderID: w.ExchangeOrderID,
		Symbol:          w.Symbol,
		Side:            types.Side(w.Side),
		Status:          types.ResponseStatus(w.Status),
		FilledQuantity:  qty,
		FilledPrice:     price,
		Fee:             fee,
		FeeCurrency:     w.FeeCurrency,
		TradeID:         w.TradeID,
		Error:           w.Error,
	}
}

// RunnerSender implements executor.Sender over a set of registered runners.
type RunnerSender struct {
	mu      sync.Mutex
	runners map[string]*pool.Runner
	pending map[string]chan types.ExecutionReport
	logger  *slog.Logger
}

// NewRunnerSender creates an empty sender; Attach each runner before use.
func NewRunnerSender(logger *slog.Logger) *RunnerSender {
	return &RunnerSender{
		runners: make(map[string]*pool.Runner),
		pending: make(map[string]chan types.ExecutionReport),
		logger:  logger.With("component", "runner_sender"),
	}
}

// Attach registers runner and installs the message handler that resolves
// pending sends. Call before runner.Run starts reading.
func (s *RunnerSender) Attach(runner *pool.Runner) {
	runner.Handler = func(data []byte) { s.handleMessage(data) }
	s.mu.Lock()
	s.runners[runner.ID] = runner
	s.mu.Unlock()
}

func (s *RunnerSender) handleMessage(data []byte) {
	var w wireExecutionReport
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn("failed to decode execution report", "error", err)
		return
	}
	report := w.toExecutionReport()

	s.mu.Lock()
	ch, ok := s.pending[report.ClientOrderID]
	if ok {
		delete(s.pending, report.ClientOrderID)
	}
	s.mu.Unlock()

	if ok {
		ch <- report
	}
}

// Send writes payload over connectionID's runner and blocks until a
// matching response arrives or ctx is done.
func (s *RunnerSender) Send(ctx context.Context, connectionID string, payload []byte) (types.ExecutionReport, error) {
	s.mu.Lock()
	runner, ok := s.runners[connectionID]
	if !ok {
		s.mu.Unlock()
		return types.ExecutionReport{}, fmt.Errorf("unknown connection %s", connectionID)
	}
	clientID, err := extractClientID(payload)
	if err != nil {
		s.mu.Unlock()
		return types.ExecutionReport{}, err
	}
	ch := make(chan types.ExecutionReport, 1)
	s.pending[clientID] = ch
	s.mu.Unlock()

	runner.Send(payload)

	select {
	case report := <-ch:
		return report, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, clientID)
		s.mu.Unlock()
		return types.ExecutionReport{}, ctx.Err()
	}
}

// extractClientID pulls clientId out of the executor's sorted
// query-string-encoded payload.
func extractClientID(payload []byte) (string, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return "", fmt.Errorf("parse payload: %w", err)
	}
	id := values.Get("clientId")
	if id == "" {
		return "", fmt.Errorf("payload missing clientId")
	}
	return id, nil
}
