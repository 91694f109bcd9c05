package arb

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/internal/order"
	"github.com/tradingctl/controlplane/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPair(id string) *types.ArbitragePair {
	return &types.ArbitragePair{
		ID:             id,
		Symbol:         1,
		Quantity:       decimal.NewFromInt(1),
		MakerPrice:     decimal.NewFromInt(100),
		TakerPrice:     decimal.NewFromInt(101),
		ExpectedProfit: decimal.NewFromInt(1),
	}
}

func TestBothFilledCompletesWithProfitHaircut(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	if err := c.UpdateMakerStatus("p1", types.StateFilled); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateTakerStatus("p1", types.StateFilled); err != nil {
		t.Fatal(err)
	}

	got := c.Get("p1")
	if got.State != types.ArbCompleted {
		t.Fatalf("expected Completed, got %s", got.State)
	}
	if got.ActualProfit == nil || !got.ActualProfit.Equal(decimal.NewFromFloat(0.95)) {
		t.Fatalf("expected actual_profit 0.95, got %v", got.ActualProfit)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

// TestMakerFilledTakerRejectedIsPartialSuccess is spec scenario 5 (§8.5).
func TestMakerFilledTakerRejectedIsPartialSuccess(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	if err := c.UpdateMakerStatus("p1", types.StateFilled); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateTakerStatus("p1", types.StateRejected); err != nil {
		t.Fatal(err)
	}

	got := c.Get("p1")
	if got.State != types.ArbPartialSuccess {
		t.Fatalf("expected PartialSuccess, got %s", got.State)
	}
	hedge := c.GetHedgeRequiredPairs()
	if len(hedge) != 1 || hedge[0].ID != "p1" {
		t.Fatalf("expected p1 in hedge-required set, got %v", hedge)
	}
}

func TestTakerFilledMakerFailedIsPartialSuccess(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	if err := c.UpdateMakerStatus("p1", types.StateCancelled); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateTakerStatus("p1", types.StateFilled); err != nil {
		t.Fatal(err)
	}

	got := c.Get("p1")
	if got.State != types.ArbPartialSuccess {
		t.Fatalf("expected PartialSuccess, got %s", got.State)
	}
}

func TestBothFailedIsFailed(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	if err := c.UpdateMakerStatus("p1", types.StateRejected); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateTakerStatus("p1", types.StateExpired); err != nil {
		t.Fatal(err)
	}

	got := c.Get("p1")
	if got.State != types.ArbFailed {
		t.Fatalf("expected Failed, got %s", got.State)
	}
}

func TestMakerFilledTakerStillOpenIsMakerFilled(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	if err := c.UpdateMakerStatus("p1", types.StateFilled); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateTakerStatus("p1", types.StateSubmitted); err != nil {
		t.Fatal(err)
	}

	got := c.Get("p1")
	if got.State != types.ArbMakerFilled {
		t.Fatalf("expected MakerFilled, got %s", got.State)
	}
}

func TestTerminalPairIgnoresFurtherUpdates(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)
	c.UpdateMakerStatus("p1", types.StateFilled)
	c.UpdateTakerStatus("p1", types.StateFilled)

	if err := c.UpdateMakerStatus("p1", types.StateCancelled); err != nil {
		t.Fatal(err)
	}
	got := c.Get("p1")
	if got.State != types.ArbCompleted {
		t.Fatalf("expected pair to remain Completed, got %s", got.State)
	}
}

func TestUnknownPairReturnsError(t *testing.T) {
	c := NewCoordinator()
	if err := c.UpdateMakerStatus("missing", types.StateFilled); err == nil {
		t.Fatal("expected error for unknown pair")
	}
}

func TestGetByOrderResolvesPairFromClientOrderID(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	orders := order.NewManager(testLogger())
	orders.Create(&types.Order{ClientOrderID: "maker-order", ArbitrageID: "p1"})

	got := c.GetByOrder(orders, "maker-order")
	if got == nil || got.ID != "p1" {
		t.Fatalf("expected pair p1, got %v", got)
	}
}

func TestGetByOrderReturnsNilForOrderWithoutArbitrageID(t *testing.T) {
	c := NewCoordinator()
	orders := order.NewManager(testLogger())
	orders.Create(&types.Order{ClientOrderID: "solo-order"})

	if got := c.GetByOrder(orders, "solo-order"); got != nil {
		t.Fatalf("expected nil pair, got %v", got)
	}
}

func TestCancelAbandonsNonTerminalPair(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)

	if err := c.Cancel("p1"); err != nil {
		t.Fatal(err)
	}
	got := c.Get("p1")
	if got.State != types.ArbCancelled {
		t.Fatalf("expected Cancelled, got %s", got.State)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestCancelIsNoOpOnTerminalPair(t *testing.T) {
	c := NewCoordinator()
	p := newPair("p1")
	c.Create(p)
	c.UpdateMakerStatus("p1", types.StateFilled)
	c.UpdateTakerStatus("p1", types.StateFilled)

	if err := c.Cancel("p1"); err != nil {
		t.Fatal(err)
	}
	got := c.Get("p1")
	if got.State != types.ArbCompleted {
		t.Fatalf("expected pair to remain Completed, got %s", got.State)
	}
}

func TestCancelUnknownPairReturnsError(t *testing.T) {
	c := NewCoordinator()
	if err := c.Cancel("missing"); err == nil {
		t.Fatal("expected error for unknown pair")
	}
}
