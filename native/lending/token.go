package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimToken is the interest-bearing supply position of a reserve. Balances
// are stored scaled by the liquidity index.
type ClaimToken interface {
	// Mint credits amount/index scaled units to user and reports whether the
	// user held no balance before.
	Mint(asset, user common.Address, amount, index *big.Int) (bool, error)
	// Burn reports whether user holds no scaled claim afterwards.
	Burn(asset, user common.Address, amount, index *big.Int) (bool, error)
	// Transfer reports whether from holds no scaled claim afterwards.
	Transfer(asset, from, to common.Address, amount, index *big.Int) (bool, error)
	ScaledBalanceOf(asset, user common.Address) (*big.Int, error)
	BalanceOf(asset, user common.Address, index *big.Int) (*big.Int, error)
}

// DebtToken tracks variable debt scaled by the borrow index.
type DebtToken interface {
	// Mint reports whether the user had no debt before.
	Mint(asset, user common.Address, amount, index *big.Int) (bool, error)
	// Burn reports whether the debt is now fully repaid.
	Burn(asset, user common.Address, amount, index *big.Int) (bool, error)
	BalanceOf(asset, user common.Address, index *big.Int) (*big.Int, error)
}

// Custody moves the underlying asset between holders.
type Custody interface {
	TransferIn(asset, from, custodian common.Address, amount *big.Int) error
	TransferOut(asset, custodian, to common.Address, amount *big.Int) error
	BalanceOf(asset, holder common.Address) (*big.Int, error)
}

// ScaledClaimToken keeps claim balances in the ledger.
type ScaledClaimToken struct {
	state State
}

func NewScaledClaimToken(state State) *ScaledClaimToken {
	return &ScaledClaimToken{state: state}
}

func (t *ScaledClaimToken) Mint(asset, user common.Address, amount, index *big.Int) (bool, error) {
	scaled := rayDiv(amount, index)
	if scaled.Sign() == 0 {
		return false, ErrInvalidMintAmount
	}
	balance, err := t.state.ScaledBalanceOf(asset, user)
	if err != nil {
		return false, err
	}
	total, err := t.state.ScaledTotalSupply(asset)
	if err != nil {
		return false, err
	}
	if err := t.state.SetScaledBalance(asset, user, new(big.Int).Add(balance, scaled)); err != nil {
		return false, err
	}
	if err := t.state.SetScaledTotalSupply(asset, new(big.Int).Add(total, scaled)); err != nil {
		return false, err
	}
	return balance.Sign() == 0, nil
}

func (t *ScaledClaimToken) Burn(asset, user common.Address, amount, index *big.Int) (bool, error) {
	balance, err := t.state.ScaledBalanceOf(asset, user)
	if err != nil {
		return false, err
	}
	scaled, err := scaledForAmount(balance, amount, index)
	if err != nil {
		return false, err
	}
	total, err := t.state.ScaledTotalSupply(asset)
	if err != nil {
		return false, err
	}
	if total.Cmp(scaled) < 0 {
		return false, ErrCorruptLedger
	}
	remaining := new(big.Int).Sub(balance, scaled)
	if err := t.state.SetScaledBalance(asset, user, remaining); err != nil {
		return false, err
	}
	if err := t.state.SetScaledTotalSupply(asset, new(big.Int).Sub(total, scaled)); err != nil {
		return false, err
	}
	return remaining.Sign() == 0, nil
}

func (t *ScaledClaimToken) Transfer(asset, from, to common.Address, amount, index *big.Int) (bool, error) {
	fromBalance, err := t.state.ScaledBalanceOf(asset, from)
	if err != nil {
		return false, err
	}
	scaled, err := scaledForAmount(fromBalance, amount, index)
	if err != nil {
		return false, err
	}
	if from == to {
		return false, nil
	}
	toBalance, err := t.state.ScaledBalanceOf(asset, to)
	if err != nil {
		return false, err
	}
	remaining := new(big.Int).Sub(fromBalance, scaled)
	if err := t.state.SetScaledBalance(asset, from, remaining); err != nil {
		return false, err
	}
	if err := t.state.SetScaledBalance(asset, to, new(big.Int).Add(toBalance, scaled)); err != nil {
		return false, err
	}
	return remaining.Sign() == 0, nil
}

func (t *ScaledClaimToken) ScaledBalanceOf(asset, user common.Address) (*big.Int, error) {
	return t.state.ScaledBalanceOf(asset, user)
}

func (t *ScaledClaimToken) BalanceOf(asset, user common.Address, index *big.Int) (*big.Int, error) {
	scaled, err := t.state.ScaledBalanceOf(asset, user)
	if err != nil {
		return nil, err
	}
	return rayMul(scaled, index), nil
}

// scaledForAmount converts amount into scaled units against balance. Moving
// the whole real balance always moves every scaled unit so rounding never
// strands dust.
func scaledForAmount(balance, amount, index *big.Int) (*big.Int, error) {
	if rayMul(balance, index).Cmp(amount) == 0 {
		if balance.Sign() == 0 {
			return nil, ErrInvalidBurnAmount
		}
		return new(big.Int).Set(balance), nil
	}
	scaled := rayDiv(amount, index)
	if scaled.Sign() == 0 {
		return nil, ErrInvalidBurnAmount
	}
	if scaled.Cmp(balance) > 0 {
		return nil, ErrNotEnoughAvailableUserBalance
	}
	return scaled, nil
}

// VariableDebtToken keeps scaled variable debt in the ledger.
type VariableDebtToken struct {
	state State
}

func NewVariableDebtToken(state State) *VariableDebtToken {
	return &VariableDebtToken{state: state}
}

func (t *VariableDebtToken) Mint(asset, user common.Address, amount, index *big.Int) (bool, error) {
	scaled := rayDiv(amount, index)
	if scaled.Sign() == 0 {
		return false, ErrInvalidMintAmount
	}
	debt, err := t.state.ScaledDebtOf(asset, user)
	if err != nil {
		return false, err
	}
	total, err := t.state.ScaledTotalDebt(asset)
	if err != nil {
		return false, err
	}
	if err := t.state.SetScaledDebt(asset, user, new(big.Int).Add(debt, scaled)); err != nil {
		return false, err
	}
	if err := t.state.SetScaledTotalDebt(asset, new(big.Int).Add(total, scaled)); err != nil {
		return false, err
	}
	return debt.Sign() == 0, nil
}

func (t *VariableDebtToken) Burn(asset, user common.Address, amount, index *big.Int) (bool, error) {
	debt, err := t.state.ScaledDebtOf(asset, user)
	if err != nil {
		return false, err
	}
	scaled, err := scaledForAmount(debt, amount, index)
	if err != nil {
		return false, err
	}
	total, err := t.state.ScaledTotalDebt(asset)
	if err != nil {
		return false, err
	}
	if total.Cmp(scaled) < 0 {
		return false, ErrCorruptLedger
	}
	remaining := new(big.Int).Sub(debt, scaled)
	if err := t.state.SetScaledDebt(asset, user, remaining); err != nil {
		return false, err
	}
	if err := t.state.SetScaledTotalDebt(asset, new(big.Int).Sub(total, scaled)); err != nil {
		return false, err
	}
	return remaining.Sign() == 0, nil
}

func (t *VariableDebtToken) BalanceOf(asset, user common.Address, index *big.Int) (*big.Int, error) {
	scaled, err := t.state.ScaledDebtOf(asset, user)
	if err != nil {
		return nil, err
	}
	return rayMul(scaled, index), nil
}

// LedgerCustody keeps underlying balances in the ledger.
type LedgerCustody struct {
	state State
}

func NewLedgerCustody(state State) *LedgerCustody {
	return &LedgerCustody{state: state}
}

func (c *LedgerCustody) TransferIn(asset, from, custodian common.Address, amount *big.Int) error {
	return c.move(asset, from, custodian, amount)
}

func (c *LedgerCustody) TransferOut(asset, custodian, to common.Address, amount *big.Int) error {
	return c.move(asset, custodian, to, amount)
}

func (c *LedgerCustody) BalanceOf(asset, holder common.Address) (*big.Int, error) {
	return c.state.UnderlyingBalance(asset, holder)
}

// Credit adds amount of underlying to holder without a counterparty. It
// models deposits arriving from outside the pool.
func (c *LedgerCustody) Credit(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := c.state.UnderlyingBalance(asset, holder)
	if err != nil {
		return err
	}
	return c.state.SetUnderlyingBalance(asset, holder, new(big.Int).Add(balance, amount))
}

func (c *LedgerCustody) move(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := c.state.UnderlyingBalance(asset, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientUnderlying
	}
	if from == to {
		return nil
	}
	toBalance, err := c.state.UnderlyingBalance(asset, to)
	if err != nil {
		return err
	}
	if err := c.state.SetUnderlyingBalance(asset, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return c.state.SetUnderlyingBalance(asset, to, new(big.Int).Add(toBalance, amount))
}
