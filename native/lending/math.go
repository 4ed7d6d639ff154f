package lending

import "math/big"

const secondsPerYear = 365 * 24 * 60 * 60

var (
	basisPoints = big.NewInt(10_000)
	ray         = mustBigInt("1000000000000000000000000000") // 1e27 precision
	halfRay     = new(big.Int).Rsh(ray, 1)
	wad         = mustBigInt("1000000000000000000") // 1e18, health factor precision
)

// HealthFactorThreshold is the health factor below which a borrower is
// considered unsafe.
var HealthFactorThreshold = new(big.Int).Set(wad)

// Ray returns a copy of the ray unit (1e27).
func Ray() *big.Int { return new(big.Int).Set(ray) }

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	product.Quo(product, ray)
	return product
}

func rayDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, ray)
	numerator.Add(numerator, halfUp(b))
	numerator.Quo(numerator, b)
	return numerator
}

// rateToRay converts a decimal annual rate into ray precision. A nil or zero
// rate yields zero.
func rateToRay(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(ray))
	num := scaled.Num()
	den := scaled.Denom()
	return new(big.Int).Quo(new(big.Int).Add(num, halfUp(den)), den)
}

// linearInterest returns the ray factor 1 + rate*elapsed/year.
func linearInterest(rate *big.Int, elapsed uint64) *big.Int {
	if rate == nil || rate.Sign() == 0 || elapsed == 0 {
		return new(big.Int).Set(ray)
	}
	accrued := new(big.Int).Mul(rate, new(big.Int).SetUint64(elapsed))
	accrued.Quo(accrued, big.NewInt(secondsPerYear))
	return accrued.Add(accrued, ray)
}

// toBase converts an amount of asset base units into base currency using a
// price quoted per whole token.
func toBase(amount, price, unit *big.Int) *big.Int {
	if amount == nil || price == nil || amount.Sign() == 0 || unit.Sign() == 0 {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, unit)
}

// toBaseCeil is toBase rounded up so debt is never understated.
func toBaseCeil(amount, price, unit *big.Int) *big.Int {
	if amount == nil || price == nil || amount.Sign() == 0 || unit.Sign() == 0 {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	value.Add(value, new(big.Int).Sub(unit, big.NewInt(1)))
	return value.Quo(value, unit)
}

func halfUp(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	if x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
