package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"lendingcore/native/lending"
	"lendingcore/storage"
)

func TestLendingStateReserveRoundTrip(t *testing.T) {
	st := NewLendingState(storage.NewMemDB())
	asset := common.HexToAddress("0x01")

	missing, err := st.Reserve(asset)
	require.NoError(t, err)
	require.Nil(t, missing)

	reserve := &lending.ReserveData{
		ID:                  0,
		Asset:               asset,
		ClaimToken:          common.HexToAddress("0x0a"),
		Decimals:            6,
		LiquidityIndex:      new(big.Int).Mul(lending.Ray(), big.NewInt(2)),
		LastUpdateTimestamp: 42,
		Configuration: lending.ReserveConfiguration{
			LTVBps:                  7_500,
			LiquidationThresholdBps: 8_000,
			SupplyCap:               1_000,
			Active:                  true,
			BorrowingEnabled:        true,
		},
	}
	require.NoError(t, st.ListReserve(reserve))

	count, err := st.ReservesCount()
	require.NoError(t, err)
	require.Equal(t, uint16(1), count)

	loaded, err := st.ReserveByID(0)
	require.NoError(t, err)
	require.Equal(t, asset, loaded.Asset)
	require.Equal(t, uint8(6), loaded.Decimals)
	require.Equal(t, uint64(42), loaded.LastUpdateTimestamp)
	require.Zero(t, loaded.LiquidityIndex.Cmp(reserve.LiquidityIndex))
	require.Zero(t, loaded.VariableBorrowIndex.Cmp(lending.Ray()), "missing index defaults to ray")
	require.Equal(t, reserve.Configuration, loaded.Configuration)

	_, err = st.ReserveByID(1)
	require.ErrorIs(t, err, lending.ErrInvalidReserveIndex)
	require.ErrorIs(t, err, lending.ErrInvariant)
}

func TestLendingStateListReserveRejectsGap(t *testing.T) {
	st := NewLendingState(storage.NewMemDB())
	err := st.ListReserve(&lending.ReserveData{ID: 3, Asset: common.HexToAddress("0x01")})
	require.ErrorIs(t, err, lending.ErrCorruptLedger)
}

func TestLendingStateAmountsDeleteOnZero(t *testing.T) {
	db := storage.NewMemDB()
	st := NewLendingState(db)
	asset := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")

	balance, err := st.ScaledBalanceOf(asset, user)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, st.SetScaledBalance(asset, user, big.NewInt(99)))
	balance, err = st.ScaledBalanceOf(asset, user)
	require.NoError(t, err)
	require.Equal(t, int64(99), balance.Int64())

	require.NoError(t, st.SetScaledBalance(asset, user, big.NewInt(0)))
	require.Empty(t, db.Keys())

	require.ErrorIs(t, st.SetUnderlyingBalance(asset, user, big.NewInt(-1)), lending.ErrCorruptLedger)
}

func TestLendingStateUserConfig(t *testing.T) {
	db := storage.NewMemDB()
	st := NewLendingState(db)
	user := common.HexToAddress("0x02")

	cfg, err := st.UserConfig(user)
	require.NoError(t, err)
	require.True(t, cfg.IsEmpty())

	require.NoError(t, cfg.SetUsingAsCollateral(5, true))
	require.NoError(t, cfg.SetBorrowing(127, true))
	require.NoError(t, st.PutUserConfig(user, cfg))

	loaded, err := st.UserConfig(user)
	require.NoError(t, err)
	require.True(t, loaded.IsUsingAsCollateral(5))
	require.True(t, loaded.IsBorrowing(127))
	require.False(t, loaded.IsBorrowing(5))

	require.NoError(t, st.PutUserConfig(user, lending.UserConfiguration{}))
	require.Empty(t, db.Keys())
}

func TestLendingStateKeysAreDistinct(t *testing.T) {
	asset := common.HexToAddress("0x01")
	user := common.HexToAddress("0x02")
	keys := map[string]string{}
	for name, key := range map[string][]byte{
		"reserve":    LendingReserveKey(asset),
		"supply":     LendingSupplyKey(asset, user),
		"supplyRev":  LendingSupplyKey(user, asset),
		"total":      LendingTotalSupplyKey(asset),
		"debt":       LendingDebtKey(asset, user),
		"debtTotal":  LendingTotalDebtKey(asset),
		"underlying": LendingUnderlyingKey(asset, user),
		"config":     LendingUserConfigKey(user),
		"list":       LendingReserveListKey(),
	} {
		require.Len(t, key, 32, name)
		if other, ok := keys[string(key)]; ok {
			t.Fatalf("key collision between %s and %s", name, other)
		}
		keys[string(key)] = name
	}
}
