package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RunnerState is the connection runner's lifecycle state (§4.11).
type RunnerState string

const (
	Disconnected RunnerState = "DISCONNECTED"
	Connecting   RunnerState = "CONNECTING"
	Connected    RunnerState = "CONNECTED"
)

// reconnectBackoff is the constant backoff between reconnect attempts
// (§4.11 specifies a flat interval rather than the teacher's exponential
// ramp — connection runners here are cheap to retry and callers depend on
// a bounded worst-case reconnect time for health scoring).
const reconnectBackoff = 5 * time.Second

// Keepalive captures one exchange's ping/pong contract (§4.11). Each
// exchange wires its own concrete policy.
type Keepalive interface {
	// Interval is how often the client-side timer fires.
	Interval() time.Duration
	// Deadline is how long to wait for the counterparty's half of the
	// handshake before treating the connection as dead.
	Deadline() time.Duration
	// OnTick is called on every client timer tick; exchanges that expect
	// the server to initiate (Binance) no-op here.
	OnTick(conn *websocket.Conn) error
	// OnServerPing is called when the server sends a ping frame; exchanges
	// that drive keepalive themselves (OKX, Bybit) no-op here.
	OnServerPing(conn *websocket.Conn, payload string) error
}

// BinancePolicy: server pings, client answers with pong echoing the
// payload. Expect a ping at least every 180s + 5s grace.
type BinancePolicy struct{}

func (BinancePolicy) Interval() time.Duration { return 180*time.Second + 5*time.Second }
func (BinancePolicy) Deadline() time.Duration { return 180*time.Second + 5*time.Second }
func (BinancePolicy) OnTick(*websocket.Conn) error { return nil }
func (BinancePolicy) OnServerPing(conn *websocket.Conn, payload string) error {
	return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
}

// OKXPolicy: client sends text "ping" every 25s, expects text "pong" back.
type OKXPolicy struct{}

func (OKXPolicy) Interval() time.Duration { return 25 * time.Second }
func (OKXPolicy) Deadline() time.Duration { return 25 * time.Second }
func (OKXPolicy) OnTick(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}
func (OKXPolicy) OnServerPing(*websocket.Conn, string) error { return nil }

// BybitPolicy is symmetric to OKX at a 20s cadence.
type BybitPolicy struct{}

func (BybitPolicy) Interval() time.Duration { return 20 * time.Second }
func (BybitPolicy) Deadline() time.Duration { return 20 * time.Second }
func (BybitPolicy) OnTick(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}
func (BybitPolicy) OnServerPing(*websocket.Conn, string) error { return nil }

// Command is sent to a Runner's command channel to drive outbound traffic
// or a graceful shutdown.
type Command struct {
	SendMessage []byte
	Disconnect  bool
}

// Runner is one long-lived task per configured endpoint (§4.11). It owns
// the connection, dispatches inbound frames to Handler, and auto-reconnects
// on failure with a flat 5s backoff, re-subscribing via Resubscribe.
type Runner struct {
	ID         string
	URL        string
	Exchange   string
	MarketType string

	Keepalive   Keepalive
	Handler     func(data []byte)
	Resubscribe func(conn *websocket.Conn) error

	OnSuccess func(rtt time.Duration)
	OnFailure func()

	mu    sync.Mutex
	state RunnerState
	conn  *websocket.Conn

	cmdCh  chan Command
	logger *slog.Logger
}

// NewRunner constructs a runner in state Disconnected.
func NewRunner(id, url, exchange, marketType string, keepalive Keepalive, logger *slog.Logger) *Runner {
	return &Runner{
		ID:         id,
		URL:        url,
		Exchange:   exchange,
		MarketType: marketType,
		Keepalive:  keepalive,
		state:      Disconnected,
		cmdCh:      make(chan Command, 16),
		logger:     logger.With("component", "ws_runner", "id", id, "exchange", exchange),
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Send enqueues an outbound message for the runner's write half.
func (r *Runner) Send(data []byte) {
	select {
	case r.cmdCh <- Command{SendMessage: data}:
	default:
		r.logger.Warn("command channel full, dropping outbound message")
	}
}

// Disconnect requests a graceful shutdown of the runner's loop.
func (r *Runner) Disconnect() {
	select {
	case r.cmdCh <- Command{Disconnect: true}:
	default:
	}
}

// Run drives the Disconnected -> Connecting -> Connected lifecycle with
// auto-reconnect until ctx is cancelled or Disconnect is requested.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			r.setState(Disconnected)
			return ctx.Err()
		}

		r.setState(Connecting)
		err := r.connectAndServe(ctx)
		if errIsShutdown(err) {
			r.setState(Disconnected)
			return nil
		}
		if ctx.Err() != nil {
			r.setState(Disconnected)
			return ctx.Err()
		}

		r.setState(Disconnected)
		if r.OnFailure != nil {
			r.OnFailure()
		}
		r.logger.Warn("connection lost, reconnecting", "error", err, "backoff", reconnectBackoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

type shutdownErr struct{}

func (shutdownErr) Error() string { return "runner: graceful disconnect requested" }

func errIsShutdown(err error) bool {
	_, ok := err.(shutdownErr)
	return ok
}

func (r *Runner) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		conn.Close()
		r.conn = nil
		r.mu.Unlock()
	}()

	conn.SetPingHandler(func(payload string) error {
		return r.Keepalive.OnServerPing(conn, payload)
	})

	if r.Resubscribe != nil {
		if err := r.Resubscribe(conn); err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}

	r.setState(Connected)
	r.logger.Info("connected")

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	keepaliveErr := make(chan error, 1)
	go r.keepaliveLoop(readCtx, conn, keepaliveErr)

	readErr := make(chan error, 1)
	go r.readLoop(conn, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-keepaliveErr:
			return err
		case err := <-readErr:
			return err
		case cmd := <-r.cmdCh:
			if cmd.Disconnect {
				return shutdownErr{}
			}
			if cmd.SendMessage != nil {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, cmd.SendMessage); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	}
}

func (r *Runner) readLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		conn.SetReadDeadline(time.Now().Add(r.Keepalive.Deadline()))
		start := time.Now()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if r.OnFailure != nil {
				r.OnFailure()
			}
			errCh <- fmt.Errorf("read: %w", err)
			return
		}
		if r.OnSuccess != nil {
			r.OnSuccess(time.Since(start))
		}
		if r.Handler != nil {
			r.Handler(msg)
		}
	}
}

func (r *Runner) keepaliveLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error) {
	interval := r.Keepalive.Interval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Keepalive.OnTick(conn); err != nil {
				errCh <- fmt.Errorf("keepalive: %w", err)
				return
			}
		}
	}
}

func (r *Runner) setState(s RunnerState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
