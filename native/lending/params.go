package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExecuteSupplyParams describes a deposit. OnBehalfOf receives the claim.
type ExecuteSupplyParams struct {
	Asset           common.Address
	Amount          *big.Int
	OnBehalfOf      common.Address
	UseAsCollateral bool
	ReferralCode    uint16
}

// ExecuteWithdrawParams describes a withdrawal. Amount may be MaxAmount.
type ExecuteWithdrawParams struct {
	Asset  common.Address
	Amount *big.Int
	To     common.Address
}

// FinalizeTransferParams describes a claim transfer already applied at the
// token layer. Balances are real (unscaled) amounts before the move.
type FinalizeTransferParams struct {
	Asset             common.Address
	From              common.Address
	To                common.Address
	Amount            *big.Int
	BalanceFromBefore *big.Int
	BalanceToBefore   *big.Int
	ReservesCount     uint16
	Oracle            PriceOracle
}

// ExecuteSetCollateralParams toggles the caller's collateral flag.
type ExecuteSetCollateralParams struct {
	Asset           common.Address
	UseAsCollateral bool
}

// ExecuteBorrowParams opens variable debt for the caller.
type ExecuteBorrowParams struct {
	Asset        common.Address
	Amount       *big.Int
	ReferralCode uint16
}

// ExecuteRepayParams pays down OnBehalfOf's debt. Amount may be MaxAmount.
type ExecuteRepayParams struct {
	Asset      common.Address
	Amount     *big.Int
	OnBehalfOf common.Address
}

// InitReserveParams lists a new reserve. Zero token addresses are derived
// from the asset address.
type InitReserveParams struct {
	Asset         common.Address
	ClaimToken    common.Address
	DebtToken     common.Address
	Decimals      uint8
	Configuration ReserveConfiguration
}
