package lending

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PriceOracle quotes the price of one whole token of asset in the base
// currency.
type PriceOracle interface {
	AssetPrice(asset common.Address) (*big.Int, error)
}

// StaticOracle serves prices from a configured table.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[common.Address]*big.Int
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[common.Address]*big.Int)}
}

// SetAssetPrice records the price of asset. Prices must be positive.
func (o *StaticOracle) SetAssetPrice(asset common.Address, price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidAmount
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = new(big.Int).Set(price)
	return nil
}

func (o *StaticOracle) AssetPrice(asset common.Address) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return new(big.Int).Set(price), nil
}

// Prices returns a copy of the price table.
func (o *StaticOracle) Prices() map[common.Address]*big.Int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[common.Address]*big.Int, len(o.prices))
	for asset, price := range o.prices {
		out[asset] = new(big.Int).Set(price)
	}
	return out
}
