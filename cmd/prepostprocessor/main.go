// Command prepostprocessor runs the risk state, order state machine,
// arbitrage coordinator, and the pre/post pipeline that sits between them
// (C5-C9). It is the only writer of order and risk state in the system.
package main

import (
	"context"
	"fmt"
	"os"
	osSignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tradingctl/controlplane/internal/arb"
	"github.com/tradingctl/controlplane/internal/config"
	"github.com/tradingctl/controlplane/internal/logging"
	"github.com/tradingctl/controlplane/internal/order"
	"github.com/tradingctl/controlplane/internal/pipeline"
	"github.com/tradingctl/controlplane/internal/risk"
	"github.com/tradingctl/controlplane/pkg/types"
)

var cfgPath string
var logLevel string

func main() {
	root := &cobra.Command{
		Use:   "prepostprocessor",
		Short: "run risk, order, arbitrage, and pre/post pipeline state",
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

	riskCfg := risk.DefaultConfig()
	if v, err := decimal.NewFromString(cfg.Risk.MaxPositionPerSymbol); err == nil {
		riskCfg.PositionLimitPerSymbol = v
	}
	if v, err := decimal.NewFromString(cfg.Risk.MaxDailyLoss); err == nil {
		riskCfg.CapitalLimitPerSymbol = v
	}

	riskState := risk.NewState(riskCfg)
	chain := risk.NewDefaultChain(riskCfg)
	orders := order.NewManager(logger)
	arbCoord := arb.NewCoordinator()

	idGen := func(event types.TradingEvent) string {
		return fmt.Sprintf("%s_%d_%d", event.TriggerType, event.Symbol, time.Now().UTC().UnixNano())
	}
	preCfg := pipeline.DefaultPreConfig(chain, idGen)
	preCfg.MaxSignalAge = cfg.Signal.MaxAge
	if v, err := decimal.NewFromString(cfg.Signal.DefaultPositionCap); err == nil {
		preCfg.PositionCapDefault = v
	}
	preChain := pipeline.NewPreChain(preCfg, logger)

	book := newMemPositionBook()
	postChain := pipeline.NewPostChain(pipeline.PostConfig{
		Positions: book,
		Persist:   func(snapshot pipeline.PersistSnapshot) error { return nil },
		Logger:    logger,
	}, logger)

	proc := pipeline.NewProcessor(preChain, postChain, riskState, orders, arbCoord, logger)

	// proc.HandleTradingEvent and proc.HandleExecutionReport are the seams a
	// bus-attached receive loop drives on every dispatched event and executor
	// response; the signals/events/engine/responses bus itself is an external
	// collaborator (§6), so nothing in this repo calls them directly.
	_ = proc

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := risk.NewDailyResetScheduler(riskState, logger)
	go scheduler.Run(ctx)

	logger.Info("prepostprocessor started",
		"position_cap_default", cfg.Signal.DefaultPositionCap,
		"max_global_exposure", cfg.Risk.MaxGlobalExposure)

	sigCh := make(chan os.Signal, 1)
	osSignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
	cancel()
	return nil
}

// memPositionBook is the process-local position store the post chain reads
// and writes through the pipeline.PositionBook interface; a real deployment
// may swap this for a snapshot-backed implementation via the persist() hook
// without touching pipeline or risk code.
type memPositionBook struct {
	mu   sync.Mutex
	byID map[uint64]*types.Position
}

func newMemPositionBook() *memPositionBook {
	return &memPositionBook{byID: make(map[uint64]*types.Position)}
}

func key(exchangeID, symbol uint32) uint64 {
	return uint64(exchangeID)<<32 | uint64(symbol)
}

func (b *memPositionBook) Get(exchangeID, symbol uint32) *types.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byID[key(exchangeID, symbol)]
}

func (b *memPositionBook) Put(p *types.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID[key(p.ExchangeID, p.Symbol)] = p
}
