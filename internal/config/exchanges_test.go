package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExchangesFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	toml := `
[[exchanges]]
id = 1
name = "binance"
type = "spot"
description = "Binance spot market"
symbols_file = "binance_symbols.csv"

[[exchanges]]
id = 2
name = "okx"
type = "spot"
description = "OKX spot market"
symbols_file = "okx_symbols.csv"
`
	if err := os.WriteFile(filepath.Join(dir, "exchanges.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write exchanges.toml: %v", err)
	}

	binanceCSV := "id,symbol\n1,BTCUSDT\n2,ETHUSDT\n"
	if err := os.WriteFile(filepath.Join(dir, "binance_symbols.csv"), []byte(binanceCSV), 0o644); err != nil {
		t.Fatalf("write binance csv: %v", err)
	}
	okxCSV := "id,symbol\n1,BTC-USDT\n"
	if err := os.WriteFile(filepath.Join(dir, "okx_symbols.csv"), []byte(okxCSV), 0o644); err != nil {
		t.Fatalf("write okx csv: %v", err)
	}
	return dir
}

func TestLoadRegistryParsesExchangesAndSymbols(t *testing.T) {
	dir := writeExchangesFixture(t)

	reg, err := LoadRegistry(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(reg.Exchanges))
	}
	binance := reg.Exchanges[1]
	if binance.Name != "binance" || binance.Type != "spot" {
		t.Fatalf("unexpected binance entry: %+v", binance)
	}

	table := reg.Symbols[1]
	if table.Len() != 2 {
		t.Fatalf("expected 2 symbols for binance, got %d", table.Len())
	}
	symbol, ok := table.Symbol(1)
	if !ok || symbol != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT for id 1, got %q ok=%v", symbol, ok)
	}
	id, ok := table.ID("ETHUSDT")
	if !ok || id != 2 {
		t.Fatalf("expected id 2 for ETHUSDT, got %d ok=%v", id, ok)
	}
}

func TestLoadRegistryRejectsDuplicateExchangeID(t *testing.T) {
	dir := t.TempDir()
	toml := `
[[exchanges]]
id = 1
name = "binance"
type = "spot"
description = "a"
symbols_file = "a.csv"

[[exchanges]]
id = 1
name = "okx"
type = "spot"
description = "b"
symbols_file = "b.csv"
`
	os.WriteFile(filepath.Join(dir, "exchanges.toml"), []byte(toml), 0o644)
	os.WriteFile(filepath.Join(dir, "a.csv"), []byte("id,symbol\n1,X\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.csv"), []byte("id,symbol\n1,Y\n"), 0o644)

	if _, err := LoadRegistry(dir); err == nil {
		t.Fatal("expected error for duplicate exchange id")
	}
}

func TestLoadRegistryMissingSymbolsFileErrors(t *testing.T) {
	dir := t.TempDir()
	toml := `
[[exchanges]]
id = 1
name = "binance"
type = "spot"
description = "a"
symbols_file = "missing.csv"
`
	os.WriteFile(filepath.Join(dir, "exchanges.toml"), []byte(toml), 0o644)

	if _, err := LoadRegistry(dir); err == nil {
		t.Fatal("expected error for missing symbols file")
	}
}
