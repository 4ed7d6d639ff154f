package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"lendingcore/native/lending"
	"lendingcore/storage"
)

// LendingState persists the lending ledger as RLP records under hashed keys.
// It holds no cache; wrapping the store in a storage.Overlay gives the unit of
// work semantics the pool relies on.
type LendingState struct {
	kv storage.KV
}

// NewLendingState binds the ledger to kv.
func NewLendingState(kv storage.KV) *LendingState {
	return &LendingState{kv: kv}
}

// OpenLendingState satisfies lending.StateOpener.
func OpenLendingState(kv storage.KV) lending.State {
	return NewLendingState(kv)
}

var _ lending.State = (*LendingState)(nil)

func (s *LendingState) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.kv.Put(key, encoded)
}

// get decodes the value under key into out and reports whether it existed.
func (s *LendingState) get(key []byte, out interface{}) (bool, error) {
	data, err := s.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("%w: decode: %v", lending.ErrCorruptLedger, err)
	}
	return true, nil
}

func (s *LendingState) getAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	if _, err := s.get(key, value); err != nil {
		return nil, err
	}
	return value, nil
}

// putAmount stores a non-negative amount. Zero amounts delete the key so empty
// positions leave no residue.
func (s *LendingState) putAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return s.kv.Delete(key)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", lending.ErrCorruptLedger)
	}
	return s.put(key, amount)
}

func (s *LendingState) reserveList() ([]common.Address, error) {
	var list []common.Address
	if _, err := s.get(LendingReserveListKey(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *LendingState) Reserve(asset common.Address) (*lending.ReserveData, error) {
	reserve := new(lending.ReserveData)
	ok, err := s.get(LendingReserveKey(asset), reserve)
	if err != nil || !ok {
		return nil, err
	}
	reserve.EnsureDefaults()
	return reserve, nil
}

func (s *LendingState) ReserveByID(id uint16) (*lending.ReserveData, error) {
	list, err := s.reserveList()
	if err != nil {
		return nil, err
	}
	if int(id) >= len(list) {
		return nil, lending.ErrInvalidReserveIndex
	}
	reserve, err := s.Reserve(list[id])
	if err != nil {
		return nil, err
	}
	if reserve == nil || reserve.ID != id {
		return nil, fmt.Errorf("%w: reserve %d", lending.ErrCorruptLedger, id)
	}
	return reserve, nil
}

func (s *LendingState) ReservesCount() (uint16, error) {
	list, err := s.reserveList()
	if err != nil {
		return 0, err
	}
	return uint16(len(list)), nil
}

func (s *LendingState) PutReserve(reserve *lending.ReserveData) error {
	if reserve == nil {
		return fmt.Errorf("%w: nil reserve", lending.ErrCorruptLedger)
	}
	return s.put(LendingReserveKey(reserve.Asset), reserve)
}

func (s *LendingState) ListReserve(reserve *lending.ReserveData) error {
	list, err := s.reserveList()
	if err != nil {
		return err
	}
	if int(reserve.ID) != len(list) {
		return fmt.Errorf("%w: reserve id %d, expected %d", lending.ErrCorruptLedger, reserve.ID, len(list))
	}
	list = append(list, reserve.Asset)
	if err := s.put(LendingReserveListKey(), list); err != nil {
		return err
	}
	return s.PutReserve(reserve)
}

func (s *LendingState) ScaledBalanceOf(asset, user common.Address) (*big.Int, error) {
	return s.getAmount(LendingSupplyKey(asset, user))
}

func (s *LendingState) SetScaledBalance(asset, user common.Address, scaled *big.Int) error {
	return s.putAmount(LendingSupplyKey(asset, user), scaled)
}

func (s *LendingState) ScaledTotalSupply(asset common.Address) (*big.Int, error) {
	return s.getAmount(LendingTotalSupplyKey(asset))
}

func (s *LendingState) SetScaledTotalSupply(asset common.Address, scaled *big.Int) error {
	return s.putAmount(LendingTotalSupplyKey(asset), scaled)
}

func (s *LendingState) ScaledDebtOf(asset, user common.Address) (*big.Int, error) {
	return s.getAmount(LendingDebtKey(asset, user))
}

func (s *LendingState) SetScaledDebt(asset, user common.Address, scaled *big.Int) error {
	return s.putAmount(LendingDebtKey(asset, user), scaled)
}

func (s *LendingState) ScaledTotalDebt(asset common.Address) (*big.Int, error) {
	return s.getAmount(LendingTotalDebtKey(asset))
}

func (s *LendingState) SetScaledTotalDebt(asset common.Address, scaled *big.Int) error {
	return s.putAmount(LendingTotalDebtKey(asset), scaled)
}

func (s *LendingState) UnderlyingBalance(asset, holder common.Address) (*big.Int, error) {
	return s.getAmount(LendingUnderlyingKey(asset, holder))
}

func (s *LendingState) SetUnderlyingBalance(asset, holder common.Address, amount *big.Int) error {
	return s.putAmount(LendingUnderlyingKey(asset, holder), amount)
}

func (s *LendingState) UserConfig(user common.Address) (lending.UserConfiguration, error) {
	data, err := s.kv.Get(LendingUserConfigKey(user))
	if errors.Is(err, storage.ErrNotFound) {
		return lending.UserConfiguration{}, nil
	}
	if err != nil {
		return lending.UserConfiguration{}, err
	}
	return lending.UserConfigurationFromBytes(data)
}

func (s *LendingState) PutUserConfig(user common.Address, cfg lending.UserConfiguration) error {
	if cfg.IsEmpty() {
		return s.kv.Delete(LendingUserConfigKey(user))
	}
	return s.kv.Put(LendingUserConfigKey(user), cfg.Bytes())
}
