package lending

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// HealthFactorParams carries the context of a global solvency check.
type HealthFactorParams struct {
	// Asset is the reserve whose collateral was reduced.
	Asset         common.Address
	User          common.Address
	UserConfig    UserConfiguration
	ReservesCount uint16
	Oracle        PriceOracle
	// Timestamp is the block time positions are valued at.
	Timestamp uint64
}

// BorrowParams carries the context of a borrow check.
type BorrowParams struct {
	User               common.Address
	UserConfig         UserConfiguration
	Amount             *big.Int
	AvailableLiquidity *big.Int
	ReservesCount      uint16
	Oracle             PriceOracle
	Timestamp          uint64
}

// Validator holds the pure precondition and solvency rules.
type Validator interface {
	ValidateSupply(cache *ReserveCache, amount *big.Int) error
	ValidateWithdraw(cache *ReserveCache, amount, userBalance, availableLiquidity *big.Int) error
	ValidateTransfer(cache *ReserveCache) error
	ValidateSetUseReserveAsCollateral(cache *ReserveCache, userBalance *big.Int, useAsCollateral bool) error
	ValidateBorrow(view LedgerView, cache *ReserveCache, params BorrowParams) error
	ValidateRepay(cache *ReserveCache, amount, debt *big.Int) error
	ValidateHealthFactor(view LedgerView, params HealthFactorParams) error
}

// DefaultValidator implements the standard rule set.
type DefaultValidator struct{}

func checkActive(cfg ReserveConfiguration) error {
	if !cfg.Active {
		return ErrReserveInactive
	}
	if cfg.Paused {
		return ErrReservePaused
	}
	return nil
}

func (DefaultValidator) ValidateSupply(cache *ReserveCache, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := checkActive(cache.Configuration); err != nil {
		return err
	}
	if cache.Configuration.Frozen {
		return ErrReserveFrozen
	}
	if supplyCap := cache.Configuration.SupplyCap; supplyCap != 0 {
		total := rayMul(cache.ScaledTotalSupply, cache.NextLiquidityIndex)
		total.Add(total, amount)
		limit := new(big.Int).Mul(new(big.Int).SetUint64(supplyCap), cache.Unit())
		if total.Cmp(limit) > 0 {
			return ErrSupplyCapExceeded
		}
	}
	return nil
}

func (DefaultValidator) ValidateWithdraw(cache *ReserveCache, amount, userBalance, availableLiquidity *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if userBalance == nil || amount.Cmp(userBalance) > 0 {
		return ErrNotEnoughAvailableUserBalance
	}
	if err := checkActive(cache.Configuration); err != nil {
		return err
	}
	if availableLiquidity == nil || availableLiquidity.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	return nil
}

func (DefaultValidator) ValidateTransfer(cache *ReserveCache) error {
	if cache.Configuration.Paused {
		return ErrReservePaused
	}
	return nil
}

func (DefaultValidator) ValidateSetUseReserveAsCollateral(cache *ReserveCache, userBalance *big.Int, useAsCollateral bool) error {
	if err := checkActive(cache.Configuration); err != nil {
		return err
	}
	if useAsCollateral && (userBalance == nil || userBalance.Sign() == 0) {
		return ErrUnderlyingBalanceZero
	}
	return nil
}

func (DefaultValidator) ValidateBorrow(view LedgerView, cache *ReserveCache, params BorrowParams) error {
	amount := params.Amount
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	cfg := cache.Configuration
	if err := checkActive(cfg); err != nil {
		return err
	}
	if cfg.Frozen {
		return ErrReserveFrozen
	}
	if !cfg.BorrowingEnabled {
		return ErrBorrowingNotEnabled
	}
	if params.AvailableLiquidity == nil || params.AvailableLiquidity.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	if cfg.BorrowCap != 0 {
		total := rayMul(cache.ScaledTotalDebt, cache.NextVariableBorrowIndex)
		total.Add(total, amount)
		limit := new(big.Int).Mul(new(big.Int).SetUint64(cfg.BorrowCap), cache.Unit())
		if total.Cmp(limit) > 0 {
			return ErrBorrowCapExceeded
		}
	}

	data, err := CalculateUserAccountData(view, params.User, params.UserConfig, params.ReservesCount, params.Oracle, params.Timestamp)
	if err != nil {
		return err
	}
	if data.TotalCollateralBase.Sign() == 0 {
		return ErrCollateralBalanceZero
	}
	if data.LTVBps == 0 {
		return ErrLTVValidationFailed
	}
	if data.HealthFactor.Cmp(HealthFactorThreshold) < 0 {
		return ErrHealthFactorBelowThreshold
	}
	price, err := params.Oracle.AssetPrice(cache.Asset)
	if err != nil {
		return err
	}
	needed := new(big.Int).Add(data.TotalDebtBase, toBaseCeil(amount, price, cache.Unit()))
	needed.Mul(needed, basisPoints)
	collateralCap := new(big.Int).Mul(data.TotalCollateralBase, new(big.Int).SetUint64(data.LTVBps))
	if needed.Cmp(collateralCap) > 0 {
		return ErrCollateralCannotCoverNewBorrow
	}
	return nil
}

func (DefaultValidator) ValidateRepay(cache *ReserveCache, amount, debt *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := checkActive(cache.Configuration); err != nil {
		return err
	}
	if debt == nil || debt.Sign() == 0 {
		return ErrNoDebtOfSelectedType
	}
	return nil
}

// ValidateHealthFactor requires the user to stay at or above the health
// factor threshold. While any enabled collateral has zero LTV, reducing a
// collateral with nonzero LTV is rejected as well.
func (DefaultValidator) ValidateHealthFactor(view LedgerView, params HealthFactorParams) error {
	data, err := CalculateUserAccountData(view, params.User, params.UserConfig, params.ReservesCount, params.Oracle, params.Timestamp)
	if err != nil {
		return err
	}
	if data.HealthFactor.Cmp(HealthFactorThreshold) < 0 {
		return ErrHealthFactorBelowThreshold
	}
	if data.HasZeroLTVCollateral {
		reserve, err := view.Reserve(params.Asset)
		if err != nil {
			return err
		}
		if reserve.Configuration.LTVBps != 0 {
			return ErrLTVValidationFailed
		}
	}
	return nil
}

// CalculateUserAccountData aggregates every reserve the user supplies as
// collateral or borrows, valued at indexes accrued up to now. The health
// factor is wad scaled; a user without debt reports MaxAmount.
func CalculateUserAccountData(view LedgerView, user common.Address, cfg UserConfiguration, reservesCount uint16, oracle PriceOracle, now uint64) (*AccountData, error) {
	data := &AccountData{
		TotalCollateralBase:  big.NewInt(0),
		TotalDebtBase:        big.NewInt(0),
		AvailableBorrowsBase: big.NewInt(0),
		HealthFactor:         new(big.Int).Set(MaxAmount),
	}
	if cfg.IsEmpty() {
		return data, nil
	}
	if oracle == nil {
		return nil, ErrPriceUnavailable
	}
	weightedLTV := big.NewInt(0)
	weightedThreshold := big.NewInt(0)
	for id := uint16(0); id < reservesCount && id < MaxReserves; id++ {
		if !cfg.IsUsingAsCollateralOrBorrowing(id) {
			continue
		}
		reserve, err := view.ReserveByID(id)
		if err != nil {
			return nil, err
		}
		reserve.EnsureDefaults()
		price, err := oracle.AssetPrice(reserve.Asset)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, reserve.Asset.Hex())
		}
		unit := reserve.Unit()
		if cfg.IsUsingAsCollateral(id) && reserve.Configuration.LiquidationThresholdBps != 0 {
			scaled, err := view.ScaledBalanceOf(reserve.Asset, user)
			if err != nil {
				return nil, err
			}
			value := toBase(rayMul(scaled, reserve.NormalizedIncome(now)), price, unit)
			data.TotalCollateralBase.Add(data.TotalCollateralBase, value)
			if reserve.Configuration.LTVBps == 0 {
				if value.Sign() != 0 {
					data.HasZeroLTVCollateral = true
				}
			} else {
				weightedLTV.Add(weightedLTV, new(big.Int).Mul(value, new(big.Int).SetUint64(reserve.Configuration.LTVBps)))
			}
			weightedThreshold.Add(weightedThreshold, new(big.Int).Mul(value, new(big.Int).SetUint64(reserve.Configuration.LiquidationThresholdBps)))
		}
		if cfg.IsBorrowing(id) {
			scaled, err := view.ScaledDebtOf(reserve.Asset, user)
			if err != nil {
				return nil, err
			}
			data.TotalDebtBase.Add(data.TotalDebtBase, toBaseCeil(rayMul(scaled, reserve.NormalizedDebt(now)), price, unit))
		}
	}
	if data.TotalCollateralBase.Sign() != 0 {
		data.LTVBps = new(big.Int).Quo(weightedLTV, data.TotalCollateralBase).Uint64()
		data.LiquidationThresholdBps = new(big.Int).Quo(weightedThreshold, data.TotalCollateralBase).Uint64()
	}
	if data.TotalDebtBase.Sign() != 0 {
		hf := new(big.Int).Mul(weightedThreshold, wad)
		hf.Quo(hf, basisPoints)
		data.HealthFactor = hf.Quo(hf, data.TotalDebtBase)
	}
	borrowable := new(big.Int).Quo(weightedLTV, basisPoints)
	if borrowable.Cmp(data.TotalDebtBase) > 0 {
		data.AvailableBorrowsBase = borrowable.Sub(borrowable, data.TotalDebtBase)
	}
	return data, nil
}
