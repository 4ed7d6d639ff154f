package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerView is the read-only ledger surface handed to the solvency
// validator. Missing balances read as zero.
type LedgerView interface {
	Reserve(asset common.Address) (*ReserveData, error)
	ReserveByID(id uint16) (*ReserveData, error)
	ReservesCount() (uint16, error)
	ScaledBalanceOf(asset, user common.Address) (*big.Int, error)
	ScaledDebtOf(asset, user common.Address) (*big.Int, error)
}

// State is the mutable ledger the engine runs against. One State is bound to
// one unit of work.
type State interface {
	LedgerView

	PutReserve(reserve *ReserveData) error
	// ListReserve records asset at the next free reserve id.
	ListReserve(reserve *ReserveData) error

	SetScaledBalance(asset, user common.Address, scaled *big.Int) error
	ScaledTotalSupply(asset common.Address) (*big.Int, error)
	SetScaledTotalSupply(asset common.Address, scaled *big.Int) error

	SetScaledDebt(asset, user common.Address, scaled *big.Int) error
	ScaledTotalDebt(asset common.Address) (*big.Int, error)
	SetScaledTotalDebt(asset common.Address, scaled *big.Int) error

	UnderlyingBalance(asset, holder common.Address) (*big.Int, error)
	SetUnderlyingBalance(asset, holder common.Address, amount *big.Int) error

	UserConfig(user common.Address) (UserConfiguration, error)
	PutUserConfig(user common.Address, cfg UserConfiguration) error
}
