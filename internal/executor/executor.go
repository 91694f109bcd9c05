package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradingctl/controlplane/internal/health"
	"github.com/tradingctl/controlplane/internal/pool"
	"github.com/tradingctl/controlplane/pkg/types"
)

// Command is the executor's single public input (§4.12).
type Command struct {
	ID                  string
	Exchange            string
	Symbol              uint32
	Side                types.Side
	OrderType           types.OrderType
	Quantity            string
	Price               string
	TIF                 types.TimeInForce
	ConcurrentSendCount int
	OrderTimeout        time.Duration
	MaxRetryAttempts    int
}

// Result is the executor's single public output (§4.12).
type Result struct {
	Success       bool
	ClientOrderID string
	Response      *types.ExecutionReport
	Error         string
}

// Sender sends signed order bytes over a single selected connection and
// waits for the exchange's response, or ctx's deadline. Implementations
// bind this to a pool.Runner in the trading engine process.
type Sender interface {
	Send(ctx context.Context, connectionID string, payload []byte) (types.ExecutionReport, error)
}

// clientIDPrefix namespaces minted ids; distinct per process/deployment if needed.
const clientIDPrefix = "tc"

// dedupSweepDefault is how long a minted id is remembered before Cleanup
// may drop it (§4.12: "Cleanup drops ids older than a configured age").
const dedupSweepDefault = 10 * time.Minute

// Executor implements the single execute(command) -> result operation.
type Executor struct {
	mu     sync.Mutex
	dedup  map[string]time.Time
	signed *SignerRegistry

	selector *pool.Selector
	metrics  *health.Tracker
	sender   Sender

	logger *slog.Logger
	now    func() time.Time
}

// New builds an Executor.
func New(signers *SignerRegistry, selector *pool.Selector, metrics *health.Tracker, sender Sender, logger *slog.Logger) *Executor {
	return &Executor{
		dedup:    make(map[string]time.Time),
		signed:   signers,
		selector: selector,
		metrics:  metrics,
		sender:   sender,
		logger:   logger.With("component", "executor"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs the seven §4.12 steps: mint id, look up signer, build the
// signed request, select connections, fan out, pick the best response, and
// retry on failure up to MaxRetryAttempts with linear backoff.
func (e *Executor) Execute(ctx context.Context, cmd Command) Result {
	clientID := e.mintClientID(cmd)
	if !e.reserve(clientID) {
		return Result{Success: false, ClientOrderID: clientID, Error: "Duplicate order"}
	}

	signer, ok := e.signed.Lookup(cmd.Exchange)
	if !ok {
		return Result{Success: false, ClientOrderID: clientID, Error: fmt.Sprintf("No signer for %s", cmd.Exchange)}
	}

	params := e.buildParams(cmd, clientID)
	sig, err := signer.Sign(params, "POST", "/order", "")
	if err != nil {
		return Result{Success: false, ClientOrderID: clientID, Error: fmt.Sprintf("sign: %v", err)}
	}
	params["signature"] = sig
	payload := encodeParams(params)

	maxAttempts := cmd.MaxRetryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = e.attempt(ctx, cmd, clientID, payload)
		if last.Success {
			return last
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return last
}

func (e *Executor) attempt(ctx context.Context, cmd Command, clientID string, payload []byte) Result {
	connections := e.selector.Select(cmd.Exchange, "", cmd.ConcurrentSendCount, pool.HealthScore)
	if len(connections) == 0 {
		return Result{Success: false, ClientOrderID: clientID, Error: "No healthy connections"}
	}

	responses := e.fanOut(ctx, cmd, connections, payload)
	best := selectBestResponse(responses)
	if best == nil {
		return Result{Success: false, ClientOrderID: clientID, Error: "No response"}
	}
	if best.Status.Successful() {
		return Result{Success: true, ClientOrderID: clientID, Response: best}
	}
	return Result{Success: false, ClientOrderID: clientID, Response: best, Error: best.Error}
}

func (e *Executor) fanOut(ctx context.Context, cmd Command, connections []string, payload []byte) []types.ExecutionReport {
	timeout := cmd.OrderTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var wg sync.WaitGroup
	results := make(chan types.ExecutionReport, len(connections))

	for _, connID := range connections {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			report, err := e.sender.Send(sendCtx, connID, payload)
			if err != nil {
				if e.metrics != nil {
					e.metrics.RecordFailure(connID)
				}
				return
			}
			if e.metrics != nil {
				e.metrics.RecordSuccess(connID, time.Since(start))
			}
			if report.Error != "" {
				return
			}
			results <- report
		}(connID)
	}

	wg.Wait()
	close(results)

	out := make([]types.ExecutionReport, 0, len(connections))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// selectBestResponse is §4.12 step 6: highest Rank() wins, ignoring
// responses with a non-empty error (already filtered out in fanOut).
func selectBestResponse(responses []types.ExecutionReport) *types.ExecutionReport {
	var best *types.ExecutionReport
	for i := range responses {
		r := &responses[i]
		if best == nil || r.Status.Rank() > best.Status.Rank() {
			best = r
		}
	}
	return best
}

// mintClientID is §4.12 step 1: "<prefix>_<command_uuid>_<ms_timestamp>".
func (e *Executor) mintClientID(cmd Command) string {
	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}
	return fmt.Sprintf("%s_%s_%d", clientIDPrefix, id, e.now().UnixMilli())
}

// reserve atomically claims clientID in the dedup map; false if already present.
func (e *Executor) reserve(clientID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.dedup[clientID]; exists {
		return false
	}
	e.dedup[clientID] = e.now()
	return true
}

// Cleanup drops dedup entries older than maxAge (default dedupSweepDefault).
func (e *Executor) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = dedupSweepDefault
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := e.now().Add(-maxAge)
	removed := 0
	for id, at := range e.dedup {
		if at.Before(cutoff) {
			delete(e.dedup, id)
			removed++
		}
	}
	return removed
}

func (e *Executor) buildParams(cmd Command, clientID string) map[string]string {
	params := map[string]string{
		"symbol":    fmt.Sprintf("%d", cmd.Symbol),
		"side":      string(cmd.Side),
		"type":      string(cmd.OrderType),
		"quantity":  cmd.Quantity,
		"tif":       string(cmd.TIF),
		"clientId":  clientID,
		"timestamp": fmt.Sprintf("%d", e.now().UnixMilli()),
	}
	if cmd.Price != "" {
		params["price"] = cmd.Price
	}
	return params
}

func encodeParams(params map[string]string) []byte {
	return []byte(sortedQueryString(params))
}
