package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/native/lending"
)

// ValidateGenesis checks addresses, amounts and risk parameters before any of
// them reach the pool.
func ValidateGenesis(g *Genesis) error {
	if g == nil {
		return fmt.Errorf("genesis is missing")
	}
	if _, err := g.Model(); err != nil {
		return err
	}
	if len(g.Reserves) > lending.MaxReserves {
		return fmt.Errorf("reserves: %d listed, at most %d allowed", len(g.Reserves), lending.MaxReserves)
	}
	seen := make(map[common.Address]struct{}, len(g.Reserves))
	for i, reserve := range g.Reserves {
		asset, err := parseAddress(reserve.Asset)
		if err != nil {
			return fmt.Errorf("reserves[%d].Asset: %w", i, err)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("reserves[%d]: duplicate asset %s", i, asset.Hex())
		}
		seen[asset] = struct{}{}
		for name, raw := range map[string]string{"ClaimToken": reserve.ClaimToken, "DebtToken": reserve.DebtToken} {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			if _, err := parseAddress(raw); err != nil {
				return fmt.Errorf("reserves[%d].%s: %w", i, name, err)
			}
		}
		if _, err := parsePositive(reserve.Price); err != nil {
			return fmt.Errorf("reserves[%d].Price: %w", i, err)
		}
		if err := reserve.Configuration().Validate(); err != nil {
			return fmt.Errorf("reserves[%d]: %w", i, err)
		}
	}
	for i, account := range g.Accounts {
		if _, err := parseAddress(account.Address); err != nil {
			return fmt.Errorf("accounts[%d].Address: %w", i, err)
		}
		asset, err := parseAddress(account.Asset)
		if err != nil {
			return fmt.Errorf("accounts[%d].Asset: %w", i, err)
		}
		if _, ok := seen[asset]; !ok {
			return fmt.Errorf("accounts[%d]: asset %s is not a genesis reserve", i, asset.Hex())
		}
		if _, err := parsePositive(account.Amount); err != nil {
			return fmt.Errorf("accounts[%d].Amount: %w", i, err)
		}
	}
	return nil
}

// Model parses the interest model. An empty section keeps the pool default.
func (g *Genesis) Model() (*lending.InterestModel, error) {
	m := g.InterestModel
	if m == (InterestModel{}) {
		return nil, nil
	}
	model, err := lending.ParseInterestModel(m.BaseRate, m.Slope1, m.Slope2, m.Kink)
	if err != nil {
		return nil, fmt.Errorf("interest model: %w", err)
	}
	return model, nil
}

// Configuration converts the genesis entry into pool risk parameters. Genesis
// reserves are always listed active.
func (r ReserveGenesis) Configuration() lending.ReserveConfiguration {
	return lending.ReserveConfiguration{
		LTVBps:                  r.LTVBps,
		LiquidationThresholdBps: r.LiquidationThresholdBps,
		LiquidationBonusBps:     r.LiquidationBonusBps,
		ReserveFactorBps:        r.ReserveFactorBps,
		SupplyCap:               r.SupplyCap,
		BorrowCap:               r.BorrowCap,
		Active:                  true,
		Frozen:                  r.Frozen,
		Paused:                  r.Paused,
		BorrowingEnabled:        r.BorrowingEnabled,
	}
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

func parsePositive(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("must be positive, got %s", value)
	}
	return value, nil
}
