package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/core/events"
)

// ExecuteBorrow opens variable debt for caller and pays the underlying out of
// custody.
func (e *Engine) ExecuteBorrow(caller common.Address, params ExecuteBorrowParams) error {
	if err := e.guard(); err != nil {
		return err
	}
	reserve, cache, err := e.prepare(params.Asset)
	if err != nil {
		return err
	}
	cfg, err := e.registry.Config(caller)
	if err != nil {
		return err
	}
	available, err := e.custody.BalanceOf(params.Asset, cache.ClaimToken)
	if err != nil {
		return err
	}
	count, err := e.reservesCount()
	if err != nil {
		return err
	}
	if err := e.validator.ValidateBorrow(e.state, cache, BorrowParams{
		User:               caller,
		UserConfig:         cfg,
		Amount:             params.Amount,
		AvailableLiquidity: available,
		ReservesCount:      count,
		Oracle:             e.oracle,
		Timestamp:          e.blockTime,
	}); err != nil {
		return err
	}
	first, err := e.debt.Mint(params.Asset, caller, params.Amount, cache.NextVariableBorrowIndex)
	if err != nil {
		return err
	}
	if first {
		if _, err := e.registry.SetBorrowing(caller, cache.ReserveID, true); err != nil {
			return err
		}
	}
	if err := e.reserves.UpdateInterestRates(reserve, cache, nil, params.Amount); err != nil {
		return err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return err
	}
	if err := e.custody.TransferOut(params.Asset, cache.ClaimToken, caller, params.Amount); err != nil {
		return err
	}
	e.emit(events.Borrow{
		Reserve:      params.Asset,
		User:         caller,
		OnBehalfOf:   caller,
		Amount:       new(big.Int).Set(params.Amount),
		BorrowRate:   cloneInt(reserve.CurrentVariableBorrowRate),
		ReferralCode: params.ReferralCode,
	})
	return nil
}

// ExecuteRepay pays down OnBehalfOf's debt with caller's underlying and
// returns the amount actually repaid.
func (e *Engine) ExecuteRepay(caller common.Address, params ExecuteRepayParams) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	reserve, cache, err := e.prepare(params.Asset)
	if err != nil {
		return nil, err
	}
	debt, err := e.debt.BalanceOf(params.Asset, params.OnBehalfOf, cache.NextVariableBorrowIndex)
	if err != nil {
		return nil, err
	}
	if err := e.validator.ValidateRepay(cache, params.Amount, debt); err != nil {
		return nil, err
	}
	payback := debt
	if !IsMaxAmount(params.Amount) {
		payback = minInt(params.Amount, debt)
	}
	repaid, err := e.debt.Burn(params.Asset, params.OnBehalfOf, payback, cache.NextVariableBorrowIndex)
	if err != nil {
		return nil, err
	}
	if repaid {
		if _, err := e.registry.SetBorrowing(params.OnBehalfOf, cache.ReserveID, false); err != nil {
			return nil, err
		}
	}
	if err := e.reserves.UpdateInterestRates(reserve, cache, payback, nil); err != nil {
		return nil, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return nil, err
	}
	if err := e.custody.TransferIn(params.Asset, caller, cache.ClaimToken, payback); err != nil {
		return nil, err
	}
	e.emit(events.Repay{
		Reserve: params.Asset,
		User:    params.OnBehalfOf,
		Repayer: caller,
		Amount:  new(big.Int).Set(payback),
	})
	return new(big.Int).Set(payback), nil
}

// UserAccountData aggregates user's positions across every listed reserve.
func (e *Engine) UserAccountData(user common.Address) (*AccountData, error) {
	cfg, err := e.registry.Config(user)
	if err != nil {
		return nil, err
	}
	count, err := e.reservesCount()
	if err != nil {
		return nil, err
	}
	return CalculateUserAccountData(e.state, user, cfg, count, e.oracle, e.blockTime)
}

// Position reports user's balances and flags in asset with interest accrued
// up to the block time.
func (e *Engine) Position(user, asset common.Address) (*Position, error) {
	reserve, err := e.loadReserve(asset)
	if err != nil {
		return nil, err
	}
	cfg, err := e.registry.Config(user)
	if err != nil {
		return nil, err
	}
	scaled, err := e.claims.ScaledBalanceOf(asset, user)
	if err != nil {
		return nil, err
	}
	scaledDebt, err := e.state.ScaledDebtOf(asset, user)
	if err != nil {
		return nil, err
	}
	return &Position{
		Asset:             asset,
		User:              user,
		ScaledBalance:     scaled,
		Balance:           rayMul(scaled, reserve.NormalizedIncome(e.blockTime)),
		ScaledDebt:        scaledDebt,
		Debt:              rayMul(scaledDebt, reserve.NormalizedDebt(e.blockTime)),
		UsingAsCollateral: cfg.IsUsingAsCollateral(reserve.ID),
		Borrowing:         cfg.IsBorrowing(reserve.ID),
	}, nil
}

// Reserves lists every reserve in id order.
func (e *Engine) Reserves() ([]*ReserveData, error) {
	count, err := e.reservesCount()
	if err != nil {
		return nil, err
	}
	out := make([]*ReserveData, 0, count)
	for id := uint16(0); id < count; id++ {
		reserve, err := e.state.ReserveByID(id)
		if err != nil {
			return nil, err
		}
		reserve.EnsureDefaults()
		out = append(out, reserve)
	}
	return out, nil
}
