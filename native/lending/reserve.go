package lending

import (
	"math/big"
)

// ReserveLogic owns index accrual and rate updates for reserves.
type ReserveLogic interface {
	// Cache snapshots reserve for the duration of one operation.
	Cache(reserve *ReserveData) (*ReserveCache, error)
	// UpdateState accrues interest up to the current block time, advancing
	// both reserve and cache.
	UpdateState(reserve *ReserveData, cache *ReserveCache) error
	// UpdateInterestRates recomputes rates as if liquidityAdded entered and
	// liquidityTaken left the reserve's custody.
	UpdateInterestRates(reserve *ReserveData, cache *ReserveCache, liquidityAdded, liquidityTaken *big.Int) error
}

// ReserveState is the ledger-backed ReserveLogic.
type ReserveState struct {
	state   State
	custody Custody
	model   *InterestModel
	now     func() uint64
}

// NewReserveState builds the accrual logic. A nil model means rates stay at
// zero; a nil clock freezes time at zero.
func NewReserveState(state State, custody Custody, model *InterestModel, now func() uint64) *ReserveState {
	if now == nil {
		now = func() uint64 { return 0 }
	}
	return &ReserveState{state: state, custody: custody, model: model, now: now}
}

func (r *ReserveState) Cache(reserve *ReserveData) (*ReserveCache, error) {
	if reserve == nil {
		return nil, ErrReserveNotListed
	}
	reserve.EnsureDefaults()
	supply, err := r.state.ScaledTotalSupply(reserve.Asset)
	if err != nil {
		return nil, err
	}
	debt, err := r.state.ScaledTotalDebt(reserve.Asset)
	if err != nil {
		return nil, err
	}
	return &ReserveCache{
		ReserveID:               reserve.ID,
		Asset:                   reserve.Asset,
		ClaimToken:              reserve.ClaimToken,
		DebtToken:               reserve.DebtToken,
		Decimals:                reserve.Decimals,
		Configuration:           reserve.Configuration,
		CurrLiquidityIndex:      cloneInt(reserve.LiquidityIndex),
		NextLiquidityIndex:      cloneInt(reserve.LiquidityIndex),
		CurrVariableBorrowIndex: cloneInt(reserve.VariableBorrowIndex),
		NextVariableBorrowIndex: cloneInt(reserve.VariableBorrowIndex),
		CurrLiquidityRate:       cloneInt(reserve.CurrentLiquidityRate),
		CurrVariableBorrowRate:  cloneInt(reserve.CurrentVariableBorrowRate),
		ScaledTotalSupply:       supply,
		ScaledTotalDebt:         debt,
		LastUpdateTimestamp:     reserve.LastUpdateTimestamp,
	}, nil
}

func (r *ReserveState) UpdateState(reserve *ReserveData, cache *ReserveCache) error {
	now := r.now()
	if now <= reserve.LastUpdateTimestamp {
		return nil
	}
	elapsed := now - reserve.LastUpdateTimestamp
	if cache.CurrLiquidityRate.Sign() != 0 {
		cache.NextLiquidityIndex = rayMul(linearInterest(cache.CurrLiquidityRate, elapsed), cache.CurrLiquidityIndex)
		reserve.LiquidityIndex = cloneInt(cache.NextLiquidityIndex)
	}
	if cache.ScaledTotalDebt.Sign() != 0 {
		cache.NextVariableBorrowIndex = rayMul(linearInterest(cache.CurrVariableBorrowRate, elapsed), cache.CurrVariableBorrowIndex)
		reserve.VariableBorrowIndex = cloneInt(cache.NextVariableBorrowIndex)
	}
	reserve.LastUpdateTimestamp = now
	cache.LastUpdateTimestamp = now
	return nil
}

func (r *ReserveState) UpdateInterestRates(reserve *ReserveData, cache *ReserveCache, liquidityAdded, liquidityTaken *big.Int) error {
	available, err := r.custody.BalanceOf(reserve.Asset, reserve.ClaimToken)
	if err != nil {
		return err
	}
	available = new(big.Int).Set(available)
	if liquidityAdded != nil {
		available.Add(available, liquidityAdded)
	}
	if liquidityTaken != nil {
		available.Sub(available, liquidityTaken)
	}
	if available.Sign() < 0 {
		return ErrInsufficientLiquidity
	}
	scaledDebt, err := r.state.ScaledTotalDebt(reserve.Asset)
	if err != nil {
		return err
	}
	cache.ScaledTotalDebt = scaledDebt
	totalDebt := rayMul(scaledDebt, cache.NextVariableBorrowIndex)

	liquidityRate, borrowRate := big.NewInt(0), big.NewInt(0)
	if r.model != nil {
		liquidityRate, borrowRate = r.model.Rates(totalDebt, available, cache.Configuration.ReserveFactorBps)
	}
	reserve.CurrentLiquidityRate = liquidityRate
	reserve.CurrentVariableBorrowRate = borrowRate
	return nil
}
