// Package config loads the two on-disk inputs external to the core (§6):
// exchanges.toml (the exchange registry) and the per-exchange symbol CSVs it
// references, plus each process's own YAML settings file in the teacher's
// config.Load/Validate shape.
package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Exchange is one row of exchanges.toml (§6: "{id:u32, name, type,
// description, symbols_file}").
type Exchange struct {
	ID          uint32 `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Description string `mapstructure:"description"`
	SymbolsFile string `mapstructure:"symbols_file"`
}

type exchangesFile struct {
	Exchanges []Exchange `mapstructure:"exchanges"`
}

// SymbolTable maps an exchange-local numeric symbol id to its ticker string,
// loaded from the CSV exchanges.toml points to: "id,symbol[,...]", header
// row skipped.
type SymbolTable struct {
	byID     map[uint32]string
	bySymbol map[string]uint32
}

func (t *SymbolTable) Symbol(id uint32) (string, bool) {
	s, ok := t.byID[id]
	return s, ok
}

func (t *SymbolTable) ID(symbol string) (uint32, bool) {
	id, ok := t.bySymbol[symbol]
	return id, ok
}

func (t *SymbolTable) Len() int { return len(t.byID) }

// Registry is the parsed exchanges.toml plus every exchange's symbol table,
// keyed by exchange id.
type Registry struct {
	Exchanges map[uint32]Exchange
	Symbols   map[uint32]*SymbolTable
}

// LoadRegistry reads exchanges.toml from dir and every CSV it references
// (resolved relative to dir).
func LoadRegistry(dir string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "exchanges.toml"))
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read exchanges.toml: %w", err)
	}

	var parsed exchangesFile
	if err := v.Unmarshal(&parsed); err != nil {
		return nil, fmt.Errorf("unmarshal exchanges.toml: %w", err)
	}

	reg := &Registry{
		Exchanges: make(map[uint32]Exchange, len(parsed.Exchanges)),
		Symbols:   make(map[uint32]*SymbolTable, len(parsed.Exchanges)),
	}
	for _, ex := range parsed.Exchanges {
		if _, dup := reg.Exchanges[ex.ID]; dup {
			return nil, fmt.Errorf("duplicate exchange id %d", ex.ID)
		}
		table, err := loadSymbolTable(filepath.Join(dir, ex.SymbolsFile))
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", ex.Name, err)
		}
		reg.Exchanges[ex.ID] = ex
		reg.Symbols[ex.ID] = table
	}
	return reg, nil
}

func loadSymbolTable(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbols file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	table := &SymbolTable{byID: make(map[uint32]string), bySymbol: make(map[string]uint32)}
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read symbols csv: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(record) < 2 {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(record[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse symbol id %q: %w", record[0], err)
		}
		symbol := strings.TrimSpace(record[1])
		table.byID[uint32(id)] = symbol
		table.bySymbol[symbol] = uint32(id)
	}
	return table, nil
}
