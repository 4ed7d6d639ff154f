package lending

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendingcore/core/events"
	nativecommon "lendingcore/native/common"
)

// ModuleName is the pause key checked before every mutation.
const ModuleName = "lending"

// Engine executes position accounting against one State. It performs no
// rollback of its own; callers run it inside a unit of work and discard the
// unit when an error is returned.
type Engine struct {
	state     State
	reserves  ReserveLogic
	validator Validator
	claims    ClaimToken
	debt      DebtToken
	custody   Custody
	registry  *FlagRegistry
	oracle    PriceOracle
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	blockTime uint64
}

// NewEngine wires the ledger-backed collaborators to state.
func NewEngine(state State, oracle PriceOracle) *Engine {
	e := &Engine{
		state:     state,
		validator: DefaultValidator{},
		claims:    NewScaledClaimToken(state),
		debt:      NewVariableDebtToken(state),
		custody:   NewLedgerCustody(state),
		registry:  NewFlagRegistry(state),
		oracle:    oracle,
		emitter:   events.NoopEmitter{},
	}
	e.reserves = NewReserveState(state, e.custody, DefaultInterestModel, e.now)
	return e
}

func (e *Engine) now() uint64 { return e.blockTime }

// SetBlockTime records the timestamp used when accruing interest.
func (e *Engine) SetBlockTime(ts uint64) {
	if e == nil {
		return
	}
	e.blockTime = ts
}

// SetInterestModel replaces the rate curve of the default reserve logic.
func (e *Engine) SetInterestModel(model *InterestModel) {
	if e == nil {
		return
	}
	e.reserves = NewReserveState(e.state, e.custody, model.Clone(), e.now)
}

func (e *Engine) SetReserveLogic(logic ReserveLogic) {
	if e == nil || logic == nil {
		return
	}
	e.reserves = logic
}

func (e *Engine) SetValidator(v Validator) {
	if e == nil || v == nil {
		return
	}
	e.validator = v
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Registry exposes the user flag registry of this engine.
func (e *Engine) Registry() *FlagRegistry { return e.registry }

func (e *Engine) guard() error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return errModulePaused(err)
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// loadReserve fetches a listed reserve. Acting on an unlisted asset is an
// invariant failure.
func (e *Engine) loadReserve(asset common.Address) (*ReserveData, error) {
	reserve, err := e.state.Reserve(asset)
	if err != nil {
		return nil, err
	}
	if reserve == nil {
		return nil, fmt.Errorf("%w: %s", ErrReserveNotListed, asset.Hex())
	}
	reserve.EnsureDefaults()
	if err := checkReserveID(reserve.ID); err != nil {
		return nil, err
	}
	return reserve, nil
}

// prepare loads a reserve, snapshots it and accrues interest.
func (e *Engine) prepare(asset common.Address) (*ReserveData, *ReserveCache, error) {
	reserve, err := e.loadReserve(asset)
	if err != nil {
		return nil, nil, err
	}
	cache, err := e.reserves.Cache(reserve)
	if err != nil {
		return nil, nil, err
	}
	if err := e.reserves.UpdateState(reserve, cache); err != nil {
		return nil, nil, err
	}
	return reserve, cache, nil
}

func (e *Engine) reservesCount() (uint16, error) {
	return e.state.ReservesCount()
}

func (e *Engine) validateHealthFactor(asset, user common.Address, cfg UserConfiguration, oracle PriceOracle) error {
	count, err := e.reservesCount()
	if err != nil {
		return err
	}
	if oracle == nil {
		oracle = e.oracle
	}
	return e.validator.ValidateHealthFactor(e.state, HealthFactorParams{
		Asset:         asset,
		User:          user,
		UserConfig:    cfg,
		ReservesCount: count,
		Oracle:        oracle,
		Timestamp:     e.blockTime,
	})
}

// InitReserve lists a reserve at the next free id.
func (e *Engine) InitReserve(params InitReserveParams) (*ReserveData, error) {
	if params.Asset == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if err := params.Configuration.Validate(); err != nil {
		return nil, err
	}
	existing, err := e.state.Reserve(params.Asset)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrReserveAlreadyAdded
	}
	count, err := e.reservesCount()
	if err != nil {
		return nil, err
	}
	if count >= MaxReserves {
		return nil, ErrNoMoreReservesAllowed
	}
	reserve := &ReserveData{
		ID:                  count,
		Asset:               params.Asset,
		ClaimToken:          params.ClaimToken,
		DebtToken:           params.DebtToken,
		Decimals:            params.Decimals,
		LastUpdateTimestamp: e.blockTime,
		Configuration:       params.Configuration,
	}
	if reserve.ClaimToken == (common.Address{}) {
		reserve.ClaimToken = DeriveTokenAddress("claim", params.Asset)
	}
	if reserve.DebtToken == (common.Address{}) {
		reserve.DebtToken = DeriveTokenAddress("debt", params.Asset)
	}
	reserve.EnsureDefaults()
	if err := e.state.ListReserve(reserve); err != nil {
		return nil, err
	}
	return reserve.Clone(), nil
}

// ConfigureReserve replaces the configuration of a listed reserve after
// accruing interest under the old one.
func (e *Engine) ConfigureReserve(asset common.Address, cfg ReserveConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	reserve, cache, err := e.prepare(asset)
	if err != nil {
		return err
	}
	reserve.Configuration = cfg
	cache.Configuration = cfg
	if err := e.reserves.UpdateInterestRates(reserve, cache, nil, nil); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// Fund credits underlying to holder from outside the pool.
func (e *Engine) Fund(asset, holder common.Address, amount *big.Int) error {
	if _, err := e.loadReserve(asset); err != nil {
		return err
	}
	custody, ok := e.custody.(*LedgerCustody)
	if !ok {
		return invariant("custody does not accept external credits")
	}
	return custody.Credit(asset, holder, amount)
}

// DeriveTokenAddress returns the deterministic token address of kind for
// asset.
func DeriveTokenAddress(kind string, asset common.Address) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(kind+":"), asset.Bytes())[12:])
}
