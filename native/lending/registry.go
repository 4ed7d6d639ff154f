package lending

import "github.com/ethereum/go-ethereum/common"

// FlagStore persists user configurations.
type FlagStore interface {
	UserConfig(user common.Address) (UserConfiguration, error)
	PutUserConfig(user common.Address, cfg UserConfiguration) error
}

// FlagRegistry owns the per-user collateral and borrowing bitmaps. Every
// mutation is written through to the store of the current unit of work.
type FlagRegistry struct {
	store FlagStore
}

// NewFlagRegistry binds a registry to store.
func NewFlagRegistry(store FlagStore) *FlagRegistry {
	return &FlagRegistry{store: store}
}

// Config returns the user's current bitmap.
func (r *FlagRegistry) Config(user common.Address) (UserConfiguration, error) {
	return r.store.UserConfig(user)
}

// SetUsingAsCollateral updates the collateral bit of reserve id for user and
// returns the resulting bitmap.
func (r *FlagRegistry) SetUsingAsCollateral(user common.Address, id uint16, using bool) (UserConfiguration, error) {
	cfg, err := r.store.UserConfig(user)
	if err != nil {
		return cfg, err
	}
	if err := cfg.SetUsingAsCollateral(id, using); err != nil {
		return cfg, err
	}
	return cfg, r.store.PutUserConfig(user, cfg)
}

// SetBorrowing updates the borrowing bit of reserve id for user and returns
// the resulting bitmap.
func (r *FlagRegistry) SetBorrowing(user common.Address, id uint16, borrowing bool) (UserConfiguration, error) {
	cfg, err := r.store.UserConfig(user)
	if err != nil {
		return cfg, err
	}
	if err := cfg.SetBorrowing(id, borrowing); err != nil {
		return cfg, err
	}
	return cfg, r.store.PutUserConfig(user, cfg)
}
