package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxReserves bounds the number of listed reserves; two bitmap bits per
// reserve fill a 256-bit user configuration.
const MaxReserves = 128

// MaxAmount is the "entire balance" sentinel accepted by Withdraw and Repay.
var MaxAmount = new(uint256.Int).SetAllOne().ToBig()

// IsMaxAmount reports whether amount is the MaxAmount sentinel.
func IsMaxAmount(amount *big.Int) bool {
	return amount != nil && amount.Cmp(MaxAmount) == 0
}

// ReserveConfiguration groups the governance controlled switches and risk
// parameters of a reserve.
type ReserveConfiguration struct {
	// LTVBps is the share of collateral value that may be borrowed against,
	// expressed in basis points.
	LTVBps uint64
	// LiquidationThresholdBps is the collateral share at which a position
	// becomes unhealthy, expressed in basis points.
	LiquidationThresholdBps uint64
	// LiquidationBonusBps is recorded for liquidation tooling; the pool does
	// not execute liquidations.
	LiquidationBonusBps uint64
	// ReserveFactorBps is the share of borrow interest withheld from
	// suppliers when deriving the supply rate.
	ReserveFactorBps uint64
	// SupplyCap and BorrowCap are whole-token limits. Zero disables the cap.
	SupplyCap uint64
	BorrowCap uint64

	Active           bool
	Frozen           bool
	Paused           bool
	BorrowingEnabled bool
}

// Validate checks the risk parameters are internally consistent.
func (c ReserveConfiguration) Validate() error {
	if c.LiquidationThresholdBps > 10_000 || c.LTVBps > c.LiquidationThresholdBps {
		return ErrInvalidReserveParams
	}
	if c.LiquidationThresholdBps != 0 && c.LiquidationBonusBps != 0 && c.LiquidationBonusBps < 10_000 {
		return ErrInvalidReserveParams
	}
	if c.ReserveFactorBps > 10_000 {
		return ErrInvalidReserveParams
	}
	return nil
}

// ReserveData is the persisted accrual state of one listed asset.
type ReserveData struct {
	ID         uint16
	Asset      common.Address
	ClaimToken common.Address
	DebtToken  common.Address
	Decimals   uint8

	// LiquidityIndex converts scaled claim balances into underlying (ray).
	LiquidityIndex *big.Int
	// VariableBorrowIndex converts scaled debt into underlying (ray).
	VariableBorrowIndex       *big.Int
	CurrentLiquidityRate      *big.Int
	CurrentVariableBorrowRate *big.Int
	LastUpdateTimestamp       uint64

	Configuration ReserveConfiguration
}

// EnsureDefaults populates nil big.Int fields so arithmetic and RLP handling
// is safe.
func (r *ReserveData) EnsureDefaults() {
	if r == nil {
		return
	}
	if r.LiquidityIndex == nil || r.LiquidityIndex.Sign() == 0 {
		r.LiquidityIndex = new(big.Int).Set(ray)
	}
	if r.VariableBorrowIndex == nil || r.VariableBorrowIndex.Sign() == 0 {
		r.VariableBorrowIndex = new(big.Int).Set(ray)
	}
	if r.CurrentLiquidityRate == nil {
		r.CurrentLiquidityRate = big.NewInt(0)
	}
	if r.CurrentVariableBorrowRate == nil {
		r.CurrentVariableBorrowRate = big.NewInt(0)
	}
}

// Clone returns a deep copy of the reserve.
func (r *ReserveData) Clone() *ReserveData {
	if r == nil {
		return nil
	}
	clone := *r
	clone.LiquidityIndex = cloneInt(r.LiquidityIndex)
	clone.VariableBorrowIndex = cloneInt(r.VariableBorrowIndex)
	clone.CurrentLiquidityRate = cloneInt(r.CurrentLiquidityRate)
	clone.CurrentVariableBorrowRate = cloneInt(r.CurrentVariableBorrowRate)
	return &clone
}

// NormalizedIncome is the liquidity index accrued up to now. The reserve
// itself is left unchanged.
func (r *ReserveData) NormalizedIncome(now uint64) *big.Int {
	if now <= r.LastUpdateTimestamp {
		return cloneInt(r.LiquidityIndex)
	}
	return rayMul(linearInterest(r.CurrentLiquidityRate, now-r.LastUpdateTimestamp), r.LiquidityIndex)
}

// NormalizedDebt is the variable borrow index accrued up to now.
func (r *ReserveData) NormalizedDebt(now uint64) *big.Int {
	if now <= r.LastUpdateTimestamp {
		return cloneInt(r.VariableBorrowIndex)
	}
	return rayMul(linearInterest(r.CurrentVariableBorrowRate, now-r.LastUpdateTimestamp), r.VariableBorrowIndex)
}

// Unit returns 10^decimals, the number of base units in one whole token.
func (r *ReserveData) Unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(r.Decimals)), nil)
}

// ReserveCache is the per-operation snapshot of a reserve. It is built once,
// advanced by UpdateState and never persisted.
type ReserveCache struct {
	ReserveID  uint16
	Asset      common.Address
	ClaimToken common.Address
	DebtToken  common.Address
	Decimals   uint8

	Configuration ReserveConfiguration

	CurrLiquidityIndex      *big.Int
	NextLiquidityIndex      *big.Int
	CurrVariableBorrowIndex *big.Int
	NextVariableBorrowIndex *big.Int
	CurrLiquidityRate       *big.Int
	CurrVariableBorrowRate  *big.Int

	ScaledTotalSupply   *big.Int
	ScaledTotalDebt     *big.Int
	LastUpdateTimestamp uint64
}

// Unit returns 10^decimals for the cached reserve.
func (c *ReserveCache) Unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.Decimals)), nil)
}

// Position is a user's standing in a single reserve.
type Position struct {
	Asset             common.Address
	User              common.Address
	ScaledBalance     *big.Int
	Balance           *big.Int
	ScaledDebt        *big.Int
	Debt              *big.Int
	UsingAsCollateral bool
	Borrowing         bool
}

// AccountData aggregates a user's positions in base currency.
type AccountData struct {
	TotalCollateralBase     *big.Int
	TotalDebtBase           *big.Int
	AvailableBorrowsBase    *big.Int
	LTVBps                  uint64
	LiquidationThresholdBps uint64
	HealthFactor            *big.Int
	HasZeroLTVCollateral    bool
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
