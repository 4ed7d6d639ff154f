package lending

import (
	"fmt"
	"math/big"
)

// InterestModel is a kinked utilisation curve shared by every reserve.
type InterestModel struct {
	// BaseRate is the borrow APR at zero utilisation.
	BaseRate *big.Rat
	// Slope1 is the APR added per unit of utilisation up to Kink.
	Slope1 *big.Rat
	// Slope2 is the APR added per unit of utilisation above Kink.
	Slope2 *big.Rat
	// Kink is the utilisation ratio where the curve steepens.
	Kink *big.Rat
}

// Clone returns a deep copy of the interest model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	return &InterestModel{
		BaseRate: cloneRat(m.BaseRate),
		Slope1:   cloneRat(m.Slope1),
		Slope2:   cloneRat(m.Slope2),
		Kink:     cloneRat(m.Kink),
	}
}

// NewInterestModel constructs an interest model from decimal inputs, e.g. a
// 2% base rate is 0.02 and an 80% kink is 0.8.
func NewInterestModel(baseRate, slope1, slope2, kink float64) *InterestModel {
	model := &InterestModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

// ParseInterestModel builds a model from exact decimal strings such as
// "0.02". Empty strings are treated as zero.
func ParseInterestModel(baseRate, slope1, slope2, kink string) (*InterestModel, error) {
	parse := func(name, value string) (*big.Rat, error) {
		if value == "" {
			return new(big.Rat), nil
		}
		r, ok := new(big.Rat).SetString(value)
		if !ok || r.Sign() < 0 {
			return nil, fmt.Errorf("interest model: invalid %s %q", name, value)
		}
		return r, nil
	}
	var err error
	model := &InterestModel{}
	if model.BaseRate, err = parse("base rate", baseRate); err != nil {
		return nil, err
	}
	if model.Slope1, err = parse("slope1", slope1); err != nil {
		return nil, err
	}
	if model.Slope2, err = parse("slope2", slope2); err != nil {
		return nil, err
	}
	if model.Kink, err = parse("kink", kink); err != nil {
		return nil, err
	}
	if model.Kink.Cmp(big.NewRat(1, 1)) > 0 {
		return nil, fmt.Errorf("interest model: kink %s above 1", kink)
	}
	return model, nil
}

// Utilisation computes U = totalDebt / (availableLiquidity + totalDebt). With
// no debt the utilisation is zero.
func (m *InterestModel) Utilisation(totalDebt, availableLiquidity *big.Int) *big.Rat {
	if totalDebt == nil || totalDebt.Sign() == 0 {
		return new(big.Rat)
	}
	total := new(big.Int).Set(totalDebt)
	if availableLiquidity != nil {
		total.Add(total, availableLiquidity)
	}
	return new(big.Rat).SetFrac(totalDebt, total)
}

// BorrowAPR derives the variable borrow APR at the given utilisation.
func (m *InterestModel) BorrowAPR(utilisation *big.Rat) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	rate := cloneRat(m.BaseRate)
	if utilisation == nil || utilisation.Sign() == 0 {
		return rate
	}
	kink := cloneRat(m.Kink)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		return rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope1), utilisation))
	}
	rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope1), kink))
	excess := new(big.Rat).Sub(utilisation, kink)
	return rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope2), excess))
}

// SupplyAPY is the borrow APR weighted by utilisation, less the reserve
// factor share.
func (m *InterestModel) SupplyAPY(utilisation *big.Rat, reserveFactorBps uint64) *big.Rat {
	if m == nil || utilisation == nil || utilisation.Sign() == 0 {
		return new(big.Rat)
	}
	borrowAPR := m.BorrowAPR(utilisation)
	reserveFactor := new(big.Rat).SetFrac(new(big.Int).SetUint64(reserveFactorBps), basisPoints)
	keep := new(big.Rat).Sub(big.NewRat(1, 1), reserveFactor)
	if keep.Sign() < 0 {
		keep.SetInt64(0)
	}
	supply := new(big.Rat).Mul(borrowAPR, utilisation)
	return supply.Mul(supply, keep)
}

// Rates returns the liquidity and variable borrow rates in ray precision.
func (m *InterestModel) Rates(totalDebt, availableLiquidity *big.Int, reserveFactorBps uint64) (liquidityRate, borrowRate *big.Int) {
	utilisation := m.Utilisation(totalDebt, availableLiquidity)
	return rateToRay(m.SupplyAPY(utilisation, reserveFactorBps)), rateToRay(m.BorrowAPR(utilisation))
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

// DefaultInterestModel is a kinked curve with a modest base rate.
var DefaultInterestModel = NewInterestModel(0.02, 0.15, 0.6, 0.8)
