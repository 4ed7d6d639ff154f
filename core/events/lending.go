package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/core/types"
)

const (
	// TypeLendingSupply is emitted when liquidity is deposited into a reserve.
	TypeLendingSupply = "lending.supply"
	// TypeLendingWithdraw is emitted when liquidity leaves a reserve.
	TypeLendingWithdraw = "lending.withdraw"
	// TypeLendingCollateralEnabled is emitted when a reserve starts backing a
	// user's borrowings.
	TypeLendingCollateralEnabled = "lending.collateral.enabled"
	// TypeLendingCollateralDisabled is emitted when a reserve stops backing a
	// user's borrowings.
	TypeLendingCollateralDisabled = "lending.collateral.disabled"
	// TypeLendingBorrow is emitted when variable debt is opened.
	TypeLendingBorrow = "lending.borrow"
	// TypeLendingRepay is emitted when variable debt is paid down.
	TypeLendingRepay = "lending.repay"
)

// Supply records a deposit made by User on behalf of OnBehalfOf.
type Supply struct {
	Reserve      common.Address
	User         common.Address
	OnBehalfOf   common.Address
	Amount       *big.Int
	ReferralCode uint16
}

func (Supply) EventType() string { return TypeLendingSupply }

func (e Supply) Event() *types.Event {
	attrs := map[string]string{
		"reserve":    formatAddress(e.Reserve),
		"user":       formatAddress(e.User),
		"onBehalfOf": formatAddress(e.OnBehalfOf),
		"amount":     formatAmount(e.Amount),
	}
	if e.ReferralCode != 0 {
		attrs["referralCode"] = strconv.FormatUint(uint64(e.ReferralCode), 10)
	}
	return &types.Event{Type: TypeLendingSupply, Attributes: attrs}
}

// Withdraw records underlying paid out of a reserve to To.
type Withdraw struct {
	Reserve common.Address
	User    common.Address
	To      common.Address
	Amount  *big.Int
}

func (Withdraw) EventType() string { return TypeLendingWithdraw }

func (e Withdraw) Event() *types.Event {
	return &types.Event{Type: TypeLendingWithdraw, Attributes: map[string]string{
		"reserve": formatAddress(e.Reserve),
		"user":    formatAddress(e.User),
		"to":      formatAddress(e.To),
		"amount":  formatAmount(e.Amount),
	}}
}

// ReserveUsedAsCollateralEnabled marks the collateral flag being set.
type ReserveUsedAsCollateralEnabled struct {
	Reserve common.Address
	User    common.Address
}

func (ReserveUsedAsCollateralEnabled) EventType() string { return TypeLendingCollateralEnabled }

func (e ReserveUsedAsCollateralEnabled) Event() *types.Event {
	return &types.Event{Type: TypeLendingCollateralEnabled, Attributes: map[string]string{
		"reserve": formatAddress(e.Reserve),
		"user":    formatAddress(e.User),
	}}
}

// ReserveUsedAsCollateralDisabled marks the collateral flag being cleared. It
// may be emitted for a flag that was already clear.
type ReserveUsedAsCollateralDisabled struct {
	Reserve common.Address
	User    common.Address
}

func (ReserveUsedAsCollateralDisabled) EventType() string { return TypeLendingCollateralDisabled }

func (e ReserveUsedAsCollateralDisabled) Event() *types.Event {
	return &types.Event{Type: TypeLendingCollateralDisabled, Attributes: map[string]string{
		"reserve": formatAddress(e.Reserve),
		"user":    formatAddress(e.User),
	}}
}

// Borrow records variable debt opened by OnBehalfOf and paid to User.
type Borrow struct {
	Reserve      common.Address
	User         common.Address
	OnBehalfOf   common.Address
	Amount       *big.Int
	BorrowRate   *big.Int
	ReferralCode uint16
}

func (Borrow) EventType() string { return TypeLendingBorrow }

func (e Borrow) Event() *types.Event {
	attrs := map[string]string{
		"reserve":    formatAddress(e.Reserve),
		"user":       formatAddress(e.User),
		"onBehalfOf": formatAddress(e.OnBehalfOf),
		"amount":     formatAmount(e.Amount),
		"borrowRate": formatAmount(e.BorrowRate),
	}
	if e.ReferralCode != 0 {
		attrs["referralCode"] = strconv.FormatUint(uint64(e.ReferralCode), 10)
	}
	return &types.Event{Type: TypeLendingBorrow, Attributes: attrs}
}

// Repay records debt of User paid down by Repayer.
type Repay struct {
	Reserve common.Address
	User    common.Address
	Repayer common.Address
	Amount  *big.Int
}

func (Repay) EventType() string { return TypeLendingRepay }

func (e Repay) Event() *types.Event {
	return &types.Event{Type: TypeLendingRepay, Attributes: map[string]string{
		"reserve": formatAddress(e.Reserve),
		"user":    formatAddress(e.User),
		"repayer": formatAddress(e.Repayer),
		"amount":  formatAmount(e.Amount),
	}}
}

// Renderer is implemented by events that expose an indexable form.
type Renderer interface {
	Event() *types.Event
}

// Render converts evt into its indexable form. Events without a renderer are
// reported with their type only.
func Render(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if r, ok := evt.(Renderer); ok {
		return r.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
