// Command tradingengine owns the per-connection WebSocket runners, the
// connection health tracker, the connection selector, and the order
// executor (C10-C13). Connection tasks run concurrently; each owns its
// write half exclusively (§5).
package main

import (
	"context"
	"fmt"
	"os"
	osSignal "os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tradingctl/controlplane/internal/config"
	"github.com/tradingctl/controlplane/internal/executor"
	"github.com/tradingctl/controlplane/internal/health"
	"github.com/tradingctl/controlplane/internal/logging"
	"github.com/tradingctl/controlplane/internal/pool"
	"github.com/tradingctl/controlplane/internal/transport"
)

var cfgPath string
var logLevel string

func main() {
	root := &cobra.Command{
		Use:   "tradingengine",
		Short: "run connection pools, health tracking, and order execution",
		RunE:  run,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "configs/config.yaml", "path to process config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level from config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := logging.New(cfg.Logging)

	registry, err := config.LoadRegistry(cfg.ExchangesDir)
	if err != nil {
		logger.Error("failed to load exchange registry", "error", err)
		os.Exit(1)
	}

	metrics := health.NewTracker(logger)
	selector := pool.NewSelector(metrics)
	sender := transport.NewRunnerSender(logger)
	signers := executor.NewSignerRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, ex := range registry.Exchanges {
		registerSigner(signers, ex.Name)

		keepalive := keepaliveFor(ex.Name)
		connID := fmt.Sprintf("%s-primary", ex.Name)
		runner := pool.NewRunner(connID, wsURLFor(ex.Name), ex.Name, ex.Type, keepalive, logger)
		sender.Attach(runner)
		metrics.Register(connID, ex.Name, ex.Type)
		go runner.Run(ctx)
	}

	exec := executor.New(signers, selector, metrics, sender, logger)

	logger.Info("tradingengine started",
		"exchanges", len(registry.Exchanges),
		"concurrent_send_count", cfg.Executor.ConcurrentSendCount,
		"order_timeout", cfg.Executor.OrderTimeout)

	// exec.Execute is the seam engine/commands delivers into and
	// engine/responses is fed from; the commands bus is external (§6).
	_ = exec

	sigCh := make(chan os.Signal, 1)
	osSignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
	cancel()
	return nil
}

// registerSigner wires a per-exchange HMAC signer from its TC_<EXCHANGE>_SECRET
// env var, mirroring the teacher's POLY_API_SECRET override pattern.
func registerSigner(signers *executor.SignerRegistry, exchange string) {
	secret := os.Getenv("TC_" + strings.ToUpper(exchange) + "_SECRET")
	switch exchange {
	case "okx":
		signers.Register(exchange, executor.OKXSigner{Secret: secret})
	case "bybit":
		signers.Register(exchange, executor.BybitSigner{Secret: secret})
	default:
		signers.Register(exchange, executor.BinanceSigner{Secret: secret})
	}
}

// keepaliveFor maps an exchange name to its keepalive contract (§4.11).
func keepaliveFor(exchange string) pool.Keepalive {
	switch exchange {
	case "okx":
		return pool.OKXPolicy{}
	case "bybit":
		return pool.BybitPolicy{}
	default:
		return pool.BinancePolicy{}
	}
}

// wsURLFor maps an exchange name to its WebSocket order endpoint. Not part
// of exchanges.toml's fixed schema (§6), since that file is keyed on
// exchange id/symbols, not per-exchange connection endpoints.
func wsURLFor(exchange string) string {
	switch exchange {
	case "okx":
		return "wss://ws.okx.com:8443/ws/v5/private"
	case "bybit":
		return "wss://stream.bybit.com/v5/trade"
	default:
		return "wss://ws-api.binance.com:443/ws-api/v3"
	}
}
