package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a genesis file. A missing file is created with the default
// genesis so a fresh node has something to serve.
func Load(path string) (*Genesis, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis path required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	g := &Genesis{}
	meta, err := toml.DecodeFile(path, g)
	if err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("genesis %s: unknown key %s", path, undecoded[0].String())
	}
	if err := ValidateGenesis(g); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return g, nil
}

// Default returns a two-reserve genesis with no balances.
func Default() *Genesis {
	return &Genesis{
		InterestModel: InterestModel{BaseRate: "0.02", Slope1: "0.15", Slope2: "0.6", Kink: "0.8"},
		Reserves: []ReserveGenesis{
			{
				Asset:                   "0x00000000000000000000000000000000000000a1",
				Decimals:                18,
				Price:                   "1",
				LTVBps:                  7_500,
				LiquidationThresholdBps: 8_000,
				LiquidationBonusBps:     10_500,
				ReserveFactorBps:        1_000,
				BorrowingEnabled:        true,
			},
			{
				Asset:                   "0x00000000000000000000000000000000000000b1",
				Decimals:                6,
				Price:                   "1",
				LTVBps:                  8_000,
				LiquidationThresholdBps: 8_500,
				LiquidationBonusBps:     10_500,
				ReserveFactorBps:        1_000,
				BorrowingEnabled:        true,
			},
		},
	}
}

func createDefault(path string) (*Genesis, error) {
	g := Default()
	if err := Save(path, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Save writes g as TOML, creating parent directories.
func Save(path string, g *Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(g)
}
