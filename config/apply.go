package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "lendingcore/native/common"
	"lendingcore/native/lending"
)

// Apply seeds pool from g. Prices and pauses are always installed. Reserves
// already present in the ledger are left as they are, and account balances
// are credited only for reserves this call listed, so restarting a node over
// persistent storage does not mint twice.
func (g *Genesis) Apply(pool *lending.Pool, oracle *lending.StaticOracle, pauses *nativecommon.PauseSet) ([]common.Address, error) {
	if err := ValidateGenesis(g); err != nil {
		return nil, err
	}
	model, err := g.Model()
	if err != nil {
		return nil, err
	}
	if model != nil {
		pool.SetInterestModel(model)
	}
	if g.Pauses.Lending {
		pauses.Pause(lending.ModuleName)
	}

	listed := make(map[common.Address]struct{})
	var order []common.Address
	for _, reserve := range g.Reserves {
		asset, _ := parseAddress(reserve.Asset)
		price, _ := parsePositive(reserve.Price)
		if err := oracle.SetAssetPrice(asset, price); err != nil {
			return nil, fmt.Errorf("price %s: %w", asset.Hex(), err)
		}
		params := lending.InitReserveParams{
			Asset:         asset,
			Decimals:      reserve.Decimals,
			Configuration: reserve.Configuration(),
		}
		if strings.TrimSpace(reserve.ClaimToken) != "" {
			params.ClaimToken = common.HexToAddress(reserve.ClaimToken)
		}
		if strings.TrimSpace(reserve.DebtToken) != "" {
			params.DebtToken = common.HexToAddress(reserve.DebtToken)
		}
		if _, err := pool.InitReserve(params); err != nil {
			if errors.Is(err, lending.ErrReserveAlreadyAdded) {
				continue
			}
			return nil, fmt.Errorf("list %s: %w", asset.Hex(), err)
		}
		listed[asset] = struct{}{}
		order = append(order, asset)
	}
	for _, account := range g.Accounts {
		asset, _ := parseAddress(account.Asset)
		if _, ok := listed[asset]; !ok {
			continue
		}
		holder, _ := parseAddress(account.Address)
		amount, _ := parsePositive(account.Amount)
		if err := pool.Fund(asset, holder, amount); err != nil {
			return nil, fmt.Errorf("fund %s: %w", holder.Hex(), err)
		}
	}
	return order, nil
}
