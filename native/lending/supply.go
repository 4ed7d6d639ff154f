package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/core/events"
)

// ExecuteSupply moves amount of the underlying from caller into custody and
// credits OnBehalfOf with claim at the refreshed liquidity index.
func (e *Engine) ExecuteSupply(caller common.Address, params ExecuteSupplyParams) error {
	if err := e.guard(); err != nil {
		return err
	}
	reserve, cache, err := e.prepare(params.Asset)
	if err != nil {
		return err
	}
	if err := e.validator.ValidateSupply(cache, params.Amount); err != nil {
		return err
	}
	if err := e.reserves.UpdateInterestRates(reserve, cache, params.Amount, nil); err != nil {
		return err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return err
	}
	if err := e.custody.TransferIn(params.Asset, caller, cache.ClaimToken, params.Amount); err != nil {
		return err
	}
	if _, err := e.claims.Mint(params.Asset, params.OnBehalfOf, params.Amount, cache.NextLiquidityIndex); err != nil {
		return err
	}

	if params.UseAsCollateral {
		if _, err := e.registry.SetUsingAsCollateral(params.OnBehalfOf, cache.ReserveID, true); err != nil {
			return err
		}
		e.emit(events.ReserveUsedAsCollateralEnabled{Reserve: params.Asset, User: params.OnBehalfOf})
	} else {
		// Opt-in is per call: a supply without it leaves the flag cleared.
		before, err := e.registry.Config(params.OnBehalfOf)
		if err != nil {
			return err
		}
		after, err := e.registry.SetUsingAsCollateral(params.OnBehalfOf, cache.ReserveID, false)
		if err != nil {
			return err
		}
		if before.IsUsingAsCollateral(cache.ReserveID) && before.IsBorrowingAny() {
			if err := e.validateHealthFactor(params.Asset, params.OnBehalfOf, after, nil); err != nil {
				return err
			}
		}
		e.emit(events.ReserveUsedAsCollateralDisabled{Reserve: params.Asset, User: params.OnBehalfOf})
	}

	e.emit(events.Supply{
		Reserve:      params.Asset,
		User:         caller,
		OnBehalfOf:   params.OnBehalfOf,
		Amount:       new(big.Int).Set(params.Amount),
		ReferralCode: params.ReferralCode,
	})
	return nil
}

// ExecuteWithdraw burns caller's claim and pays the underlying to To. The
// resolved amount is returned so MaxAmount callers learn what they received.
func (e *Engine) ExecuteWithdraw(caller common.Address, params ExecuteWithdrawParams) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	reserve, cache, err := e.prepare(params.Asset)
	if err != nil {
		return nil, err
	}
	balance, err := e.claims.BalanceOf(params.Asset, caller, cache.NextLiquidityIndex)
	if err != nil {
		return nil, err
	}
	amount := params.Amount
	if IsMaxAmount(amount) {
		amount = new(big.Int).Set(balance)
	}
	available, err := e.custody.BalanceOf(params.Asset, cache.ClaimToken)
	if err != nil {
		return nil, err
	}
	if err := e.validator.ValidateWithdraw(cache, amount, balance, available); err != nil {
		return nil, err
	}
	if err := e.reserves.UpdateInterestRates(reserve, cache, nil, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return nil, err
	}
	emptied, err := e.claims.Burn(params.Asset, caller, amount, cache.NextLiquidityIndex)
	if err != nil {
		return nil, err
	}
	if err := e.custody.TransferOut(params.Asset, cache.ClaimToken, params.To, amount); err != nil {
		return nil, err
	}

	cfg, err := e.registry.Config(caller)
	if err != nil {
		return nil, err
	}
	if cfg.IsUsingAsCollateral(cache.ReserveID) {
		if cfg.IsBorrowingAny() {
			if err := e.validateHealthFactor(params.Asset, caller, cfg, nil); err != nil {
				return nil, err
			}
		}
		if emptied || amount.Cmp(balance) == 0 {
			if _, err := e.registry.SetUsingAsCollateral(caller, cache.ReserveID, false); err != nil {
				return nil, err
			}
			e.emit(events.ReserveUsedAsCollateralDisabled{Reserve: params.Asset, User: caller})
		}
	}

	e.emit(events.Withdraw{
		Reserve: params.Asset,
		User:    caller,
		To:      params.To,
		Amount:  new(big.Int).Set(amount),
	})
	return amount, nil
}

// FinalizeTransfer reconciles collateral flags after the claim token moved
// Amount from From to To.
func (e *Engine) FinalizeTransfer(params FinalizeTransferParams) error {
	return e.finalizeTransfer(params, false)
}

// finalizeTransfer clears From's flag when its real balance reaches zero or
// when fromEmptied reports that no scaled claim is left.
func (e *Engine) finalizeTransfer(params FinalizeTransferParams, fromEmptied bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	reserve, err := e.loadReserve(params.Asset)
	if err != nil {
		return err
	}
	cache, err := e.reserves.Cache(reserve)
	if err != nil {
		return err
	}
	if err := e.validator.ValidateTransfer(cache); err != nil {
		return err
	}
	if params.From == params.To {
		return nil
	}
	amount := params.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}

	fromCfg, err := e.registry.Config(params.From)
	if err != nil {
		return err
	}
	if fromCfg.IsUsingAsCollateral(reserve.ID) {
		if fromCfg.IsBorrowingAny() {
			if err := e.validateHealthFactor(params.Asset, params.From, fromCfg, params.Oracle); err != nil {
				return err
			}
		}
		drained := params.BalanceFromBefore != nil && new(big.Int).Sub(params.BalanceFromBefore, amount).Sign() == 0
		if fromEmptied || drained {
			if _, err := e.registry.SetUsingAsCollateral(params.From, reserve.ID, false); err != nil {
				return err
			}
			e.emit(events.ReserveUsedAsCollateralDisabled{Reserve: params.Asset, User: params.From})
		}
	}

	if (params.BalanceToBefore == nil || params.BalanceToBefore.Sign() == 0) && amount.Sign() != 0 {
		if _, err := e.registry.SetUsingAsCollateral(params.To, reserve.ID, true); err != nil {
			return err
		}
		e.emit(events.ReserveUsedAsCollateralEnabled{Reserve: params.Asset, User: params.To})
	}
	return nil
}

// Transfer moves amount of claim from from to to at the current normalized
// income and finalizes the flags in the same unit of work.
func (e *Engine) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	reserve, err := e.loadReserve(asset)
	if err != nil {
		return err
	}
	cache, err := e.reserves.Cache(reserve)
	if err != nil {
		return err
	}
	// Accrue on the snapshot only; transfers do not persist index updates.
	if err := e.reserves.UpdateState(reserve.Clone(), cache); err != nil {
		return err
	}
	index := cache.NextLiquidityIndex
	fromBefore, err := e.claims.BalanceOf(asset, from, index)
	if err != nil {
		return err
	}
	toBefore, err := e.claims.BalanceOf(asset, to, index)
	if err != nil {
		return err
	}
	if fromBefore.Cmp(amount) < 0 {
		return ErrNotEnoughAvailableUserBalance
	}
	emptied, err := e.claims.Transfer(asset, from, to, amount, index)
	if err != nil {
		return err
	}
	count, err := e.reservesCount()
	if err != nil {
		return err
	}
	return e.finalizeTransfer(FinalizeTransferParams{
		Asset:             asset,
		From:              from,
		To:                to,
		Amount:            amount,
		BalanceFromBefore: fromBefore,
		BalanceToBefore:   toBefore,
		ReservesCount:     count,
		Oracle:            e.oracle,
	}, emptied)
}

// SetUserUseReserveAsCollateral toggles the caller's collateral flag without
// moving balances. Disabling is rejected when the caller would become
// unhealthy.
func (e *Engine) SetUserUseReserveAsCollateral(caller common.Address, params ExecuteSetCollateralParams) error {
	if err := e.guard(); err != nil {
		return err
	}
	reserve, err := e.loadReserve(params.Asset)
	if err != nil {
		return err
	}
	cache, err := e.reserves.Cache(reserve)
	if err != nil {
		return err
	}
	balance, err := e.claims.BalanceOf(params.Asset, caller, cache.CurrLiquidityIndex)
	if err != nil {
		return err
	}
	if err := e.validator.ValidateSetUseReserveAsCollateral(cache, balance, params.UseAsCollateral); err != nil {
		return err
	}
	cfg, err := e.registry.SetUsingAsCollateral(caller, reserve.ID, params.UseAsCollateral)
	if err != nil {
		return err
	}
	if params.UseAsCollateral {
		e.emit(events.ReserveUsedAsCollateralEnabled{Reserve: params.Asset, User: caller})
		return nil
	}
	if err := e.validateHealthFactor(params.Asset, caller, cfg, nil); err != nil {
		return err
	}
	e.emit(events.ReserveUsedAsCollateralDisabled{Reserve: params.Asset, User: caller})
	return nil
}
