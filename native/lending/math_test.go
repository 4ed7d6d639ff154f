package lending

import (
	"math/big"
	"testing"
)

func TestRayMulDivRoundTrip(t *testing.T) {
	index := mustBigInt("1050000000000000000000000000") // 1.05
	amount := big.NewInt(1_000_000)
	scaled := rayDiv(amount, index)
	if got := rayMul(scaled, index); got.Cmp(amount) != 0 {
		t.Fatalf("expected %s back, got %s", amount, got)
	}
	if rayDiv(amount, big.NewInt(0)).Sign() != 0 {
		t.Fatalf("division by zero index must yield zero")
	}
}

func TestLinearInterest(t *testing.T) {
	tenPercent := rateToRay(big.NewRat(1, 10))
	factor := linearInterest(tenPercent, secondsPerYear)
	want := mustBigInt("1100000000000000000000000000")
	if factor.Cmp(want) != 0 {
		t.Fatalf("expected 1.1 ray, got %s", factor)
	}
	if linearInterest(tenPercent, 0).Cmp(ray) != 0 {
		t.Fatalf("no elapsed time must yield exactly one ray")
	}
}

func TestInterestModelKink(t *testing.T) {
	model, err := ParseInterestModel("0.02", "0.1", "1", "0.8")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if below := model.BorrowAPR(big.NewRat(1, 2)); below.Cmp(big.NewRat(7, 100)) != 0 {
		t.Fatalf("expected 7%% below kink, got %s", below.FloatString(4))
	}
	// 0.02 + 0.1*0.8 + 1*0.1
	if above := model.BorrowAPR(big.NewRat(9, 10)); above.Cmp(big.NewRat(1, 5)) != 0 {
		t.Fatalf("expected 20%% above kink, got %s", above.FloatString(4))
	}
	if base := model.BorrowAPR(nil); base.Cmp(big.NewRat(1, 50)) != 0 {
		t.Fatalf("expected base rate at zero utilisation, got %s", base.FloatString(4))
	}
}

func TestInterestModelRates(t *testing.T) {
	model, err := ParseInterestModel("0", "0.2", "1", "0.8")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	liquidity, borrow := model.Rates(big.NewInt(500), big.NewInt(500), 1_000)
	// U = 0.5, borrow = 0.1, supply = 0.1 * 0.5 * 0.9
	if borrow.Cmp(mustBigInt("100000000000000000000000000")) != 0 {
		t.Fatalf("unexpected borrow rate %s", borrow)
	}
	if liquidity.Cmp(mustBigInt("45000000000000000000000000")) != 0 {
		t.Fatalf("unexpected liquidity rate %s", liquidity)
	}
	zeroLiquidity, _ := model.Rates(big.NewInt(0), big.NewInt(1_000), 0)
	if zeroLiquidity.Sign() != 0 {
		t.Fatalf("idle reserve must pay no supply rate")
	}
}

func TestParseInterestModelRejectsInvalid(t *testing.T) {
	if _, err := ParseInterestModel("abc", "", "", ""); err == nil {
		t.Fatalf("expected parse failure")
	}
	if _, err := ParseInterestModel("0", "0", "0", "1.5"); err == nil {
		t.Fatalf("expected kink above one to fail")
	}
}

func TestReserveStateAccruesOverTime(t *testing.T) {
	st := newMockState()
	custody := NewLedgerCustody(st)
	now := uint64(0)
	logic := NewReserveState(st, custody, DefaultInterestModel, func() uint64 { return now })
	reserve := &ReserveData{Asset: makeAddress(0xA1), ClaimToken: makeAddress(0xA2), Configuration: activeConfig()}
	reserve.EnsureDefaults()
	reserve.CurrentLiquidityRate = rateToRay(big.NewRat(1, 10))
	reserve.CurrentVariableBorrowRate = rateToRay(big.NewRat(1, 5))
	_ = st.SetScaledTotalDebt(reserve.Asset, big.NewInt(1))

	now = secondsPerYear
	cache, err := logic.Cache(reserve)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	if err := logic.UpdateState(reserve, cache); err != nil {
		t.Fatalf("update state: %v", err)
	}
	if cache.NextLiquidityIndex.Cmp(mustBigInt("1100000000000000000000000000")) != 0 {
		t.Fatalf("unexpected liquidity index %s", cache.NextLiquidityIndex)
	}
	if reserve.VariableBorrowIndex.Cmp(mustBigInt("1200000000000000000000000000")) != 0 {
		t.Fatalf("unexpected borrow index %s", reserve.VariableBorrowIndex)
	}
	if cache.CurrLiquidityIndex.Cmp(ray) != 0 {
		t.Fatalf("snapshot current index must stay at the pre-accrual value")
	}
	if reserve.LastUpdateTimestamp != secondsPerYear {
		t.Fatalf("timestamp not advanced")
	}
}
