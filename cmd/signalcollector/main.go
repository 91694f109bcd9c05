// Command signalcollector decodes inbound signal wire frames, maintains the
// latest-value signal table, and dispatches trigger-fired trading events onto
// the events/trading bus (C1-C4).
package main

import (
	"fmt"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tradingctl/controlplane/internal/config"
	"github.com/tradingctl/controlplane/internal/logging"
	trigsignal "github.com/tradingctl/controlplane/internal/signal"
	"github.com/tradingctl/controlplane/pkg/types"
)

var cfgPath string
var logLevel string

func main() {
	root := &cobra.Command{
		Use:   "signalcollector",
		Short: "decode inbound signals and dispatch trigger-fired trading events",
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

	if _, err := config.LoadRegistry(cfg.ExchangesDir); err != nil {
		logger.Error("failed to load exchange registry", "error", err)
		os.Exit(1)
	}

	table := trigsignal.NewTable(func() time.Time { return time.Now().UTC() })
	registry := trigsignal.NewRegistry()
	registerBuiltinTriggers(table, registry)
	dispatcher := trigsignal.NewDispatcher(table, registry)

	logger.Info("signalcollector started",
		"triggers", registry.Len(),
		"max_signal_age", cfg.Signal.MaxAge)

	// Inbound decode and outbound event publish ride the shared-memory bus,
	// an external collaborator per the wire contract (§6); dispatcher.Dispatch
	// is the seam a bus-attached receive loop calls on every decoded frame.
	_ = dispatcher

	sigCh := make(chan os.Signal, 1)
	osSignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
	return nil
}

// registerBuiltinTriggers wires each builtin trigger to the signal kinds it
// reads from (§4.3: a trigger may watch more than one kind).
func registerBuiltinTriggers(table *trigsignal.Table, registry *trigsignal.Registry) {
	mt := registry.Register(trigsignal.MTTrigger{MinPercentile: 0.8, DefaultQty: decimal.NewFromInt(100)})
	table.RegisterTrigger(types.SignalAdaptiveSpreadDeviation, mt)
	table.RegisterTrigger(types.SignalFundingRateDirection, mt)

	mtClose := registry.Register(trigsignal.MTCloseTrigger{MaxRiskRate: 0.05})
	table.RegisterTrigger(types.SignalRealTimeFundingRisk, mtClose)

	hedge := registry.Register(trigsignal.HedgeTrigger{MinSpread: 0.02, HedgeQty: decimal.NewFromInt(50)})
	table.RegisterTrigger(types.SignalFixedSpreadDeviation, hedge)
}
