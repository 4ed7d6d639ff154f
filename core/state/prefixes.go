package state

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	lendingReserveListKeyBytes = []byte("lending/reserves")
	lendingReservePrefix       = []byte("lending/reserve/")
	lendingSupplyPrefix        = []byte("lending/supply/")
	lendingTotalSupplyPrefix   = []byte("lending/supply-total/")
	lendingDebtPrefix          = []byte("lending/debt/")
	lendingTotalDebtPrefix     = []byte("lending/debt-total/")
	lendingUnderlyingPrefix    = []byte("lending/underlying/")
	lendingUserConfigPrefix    = []byte("lending/user-config/")
)

func kvKey(parts ...[]byte) []byte {
	return ethcrypto.Keccak256(parts...)
}

// LendingReserveListKey addresses the ordered list of listed assets.
func LendingReserveListKey() []byte { return kvKey(lendingReserveListKeyBytes) }

// LendingReserveKey addresses the reserve record of asset.
func LendingReserveKey(asset common.Address) []byte {
	return kvKey(lendingReservePrefix, asset.Bytes())
}

// LendingSupplyKey addresses user's scaled claim balance in asset.
func LendingSupplyKey(asset, user common.Address) []byte {
	return kvKey(lendingSupplyPrefix, asset.Bytes(), user.Bytes())
}

func LendingTotalSupplyKey(asset common.Address) []byte {
	return kvKey(lendingTotalSupplyPrefix, asset.Bytes())
}

// LendingDebtKey addresses user's scaled variable debt in asset.
func LendingDebtKey(asset, user common.Address) []byte {
	return kvKey(lendingDebtPrefix, asset.Bytes(), user.Bytes())
}

func LendingTotalDebtKey(asset common.Address) []byte {
	return kvKey(lendingTotalDebtPrefix, asset.Bytes())
}

// LendingUnderlyingKey addresses holder's balance of the underlying asset.
func LendingUnderlyingKey(asset, holder common.Address) []byte {
	return kvKey(lendingUnderlyingPrefix, asset.Bytes(), holder.Bytes())
}

// LendingUserConfigKey addresses user's collateral and borrowing bitmap.
func LendingUserConfigKey(user common.Address) []byte {
	return kvKey(lendingUserConfigPrefix, user.Bytes())
}
