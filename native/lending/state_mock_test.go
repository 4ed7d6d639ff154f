package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type positionKey struct {
	asset common.Address
	user  common.Address
}

type mockState struct {
	reserves    map[common.Address]*ReserveData
	list        []common.Address
	supply      map[positionKey]*big.Int
	totalSupply map[common.Address]*big.Int
	debt        map[positionKey]*big.Int
	totalDebt   map[common.Address]*big.Int
	underlying  map[positionKey]*big.Int
	configs     map[common.Address]UserConfiguration
}

func newMockState() *mockState {
	return &mockState{
		reserves:    make(map[common.Address]*ReserveData),
		supply:      make(map[positionKey]*big.Int),
		totalSupply: make(map[common.Address]*big.Int),
		debt:        make(map[positionKey]*big.Int),
		totalDebt:   make(map[common.Address]*big.Int),
		underlying:  make(map[positionKey]*big.Int),
		configs:     make(map[common.Address]UserConfiguration),
	}
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (m *mockState) Reserve(asset common.Address) (*ReserveData, error) {
	if r, ok := m.reserves[asset]; ok {
		return r.Clone(), nil
	}
	return nil, nil
}

func (m *mockState) ReserveByID(id uint16) (*ReserveData, error) {
	if int(id) >= len(m.list) {
		return nil, ErrInvalidReserveIndex
	}
	return m.Reserve(m.list[id])
}

func (m *mockState) ReservesCount() (uint16, error) { return uint16(len(m.list)), nil }

func (m *mockState) PutReserve(r *ReserveData) error {
	m.reserves[r.Asset] = r.Clone()
	return nil
}

func (m *mockState) ListReserve(r *ReserveData) error {
	m.list = append(m.list, r.Asset)
	return m.PutReserve(r)
}

func (m *mockState) ScaledBalanceOf(asset, user common.Address) (*big.Int, error) {
	return amountOrZero(m.supply[positionKey{asset, user}]), nil
}

func (m *mockState) SetScaledBalance(asset, user common.Address, v *big.Int) error {
	m.supply[positionKey{asset, user}] = amountOrZero(v)
	return nil
}

func (m *mockState) ScaledTotalSupply(asset common.Address) (*big.Int, error) {
	return amountOrZero(m.totalSupply[asset]), nil
}

func (m *mockState) SetScaledTotalSupply(asset common.Address, v *big.Int) error {
	m.totalSupply[asset] = amountOrZero(v)
	return nil
}

func (m *mockState) ScaledDebtOf(asset, user common.Address) (*big.Int, error) {
	return amountOrZero(m.debt[positionKey{asset, user}]), nil
}

func (m *mockState) SetScaledDebt(asset, user common.Address, v *big.Int) error {
	m.debt[positionKey{asset, user}] = amountOrZero(v)
	return nil
}

func (m *mockState) ScaledTotalDebt(asset common.Address) (*big.Int, error) {
	return amountOrZero(m.totalDebt[asset]), nil
}

func (m *mockState) SetScaledTotalDebt(asset common.Address, v *big.Int) error {
	m.totalDebt[asset] = amountOrZero(v)
	return nil
}

func (m *mockState) UnderlyingBalance(asset, holder common.Address) (*big.Int, error) {
	return amountOrZero(m.underlying[positionKey{asset, holder}]), nil
}

func (m *mockState) SetUnderlyingBalance(asset, holder common.Address, v *big.Int) error {
	m.underlying[positionKey{asset, holder}] = amountOrZero(v)
	return nil
}

func (m *mockState) UserConfig(user common.Address) (UserConfiguration, error) {
	return m.configs[user], nil
}

func (m *mockState) PutUserConfig(user common.Address, cfg UserConfiguration) error {
	m.configs[user] = cfg
	return nil
}

func makeAddress(b byte) common.Address {
	var addr common.Address
	addr[len(addr)-1] = b
	return addr
}

func activeConfig() ReserveConfiguration {
	return ReserveConfiguration{
		LTVBps:                  7_500,
		LiquidationThresholdBps: 8_000,
		LiquidationBonusBps:     10_500,
		Active:                  true,
		BorrowingEnabled:        true,
	}
}
