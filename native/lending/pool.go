package lending

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/core/events"
	nativecommon "lendingcore/native/common"
	"lendingcore/observability"
	"lendingcore/storage"
)

// StateOpener binds a ledger State to a key-value store.
type StateOpener func(kv storage.KV) State

// Pool is the serialized entry point of the lending pool. Every mutating call
// runs as one unit of work: writes are buffered in an overlay and events in a
// buffer, and both are either committed together or dropped together.
type Pool struct {
	mu      sync.Mutex
	db      storage.Database
	open    StateOpener
	oracle  PriceOracle
	model   *InterestModel
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.LendingMetrics
	clock   func() uint64
}

// NewPool constructs a pool over db. The oracle quotes prices for solvency
// checks.
func NewPool(db storage.Database, open StateOpener, oracle PriceOracle) *Pool {
	return &Pool{
		db:      db,
		open:    open,
		oracle:  oracle,
		model:   DefaultInterestModel.Clone(),
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		clock:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

func (p *Pool) SetEmitter(emitter events.Emitter) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p.emitter = emitter
}

func (p *Pool) SetPauses(pauses nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses = pauses
}

func (p *Pool) SetInterestModel(model *InterestModel) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model.Clone()
}

func (p *Pool) SetLogger(logger *slog.Logger) {
	if p == nil || logger == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// SetMetrics enables operation metrics. Pools without metrics record nothing.
func (p *Pool) SetMetrics(metrics *observability.LendingMetrics) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = metrics
}

// SetClock replaces the source of block timestamps (unix seconds).
func (p *Pool) SetClock(clock func() uint64) {
	if p == nil || clock == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
}

// Oracle returns the price oracle used for solvency checks.
func (p *Pool) Oracle() PriceOracle { return p.oracle }

func (p *Pool) engine(kv storage.KV, emitter events.Emitter) *Engine {
	engine := NewEngine(p.open(kv), p.oracle)
	engine.SetBlockTime(p.clock())
	engine.SetInterestModel(p.model)
	engine.SetPauses(p.pauses)
	engine.SetEmitter(emitter)
	return engine
}

// atomic runs fn in a fresh unit of work. Nothing fn writes or emits is
// visible unless fn succeeds and the overlay commits.
func (p *Pool) atomic(operation string, asset, user common.Address, fn func(*Engine) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	overlay := storage.NewOverlay(p.db)
	buffer := &events.Buffer{}
	err := fn(p.engine(overlay, buffer))
	if err == nil {
		err = overlay.Commit()
	}
	if err != nil {
		overlay.Discard()
		buffer.Reset()
		p.metrics.RecordOperation(operation, Outcome(err), time.Since(started))
		level := slog.LevelDebug
		if !IsRejection(err) || errors.Is(err, ErrInvariant) {
			level = slog.LevelError
		}
		p.logger.Log(context.Background(), level, "lending operation rejected",
			slog.String("operation", operation),
			slog.String("reserve", asset.Hex()),
			slog.String("user", user.Hex()),
			slog.String("error", err.Error()))
		return err
	}
	for _, evt := range buffer.Events() {
		switch evt.(type) {
		case events.ReserveUsedAsCollateralEnabled:
			p.metrics.RecordCollateralTransition("enabled")
		case events.ReserveUsedAsCollateralDisabled:
			p.metrics.RecordCollateralTransition("disabled")
		}
	}
	buffer.Flush(p.emitter)
	p.metrics.RecordOperation(operation, Outcome(nil), time.Since(started))
	return nil
}

// view runs a read-only fn against committed state.
func (p *Pool) view(fn func(*Engine) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.engine(p.db, events.NoopEmitter{}))
}

// Supply deposits params.Amount of caller's underlying.
func (p *Pool) Supply(caller common.Address, params ExecuteSupplyParams) error {
	return p.atomic("supply", params.Asset, caller, func(e *Engine) error {
		return e.ExecuteSupply(caller, params)
	})
}

// Withdraw redeems caller's claim and returns the amount paid out.
func (p *Pool) Withdraw(caller common.Address, params ExecuteWithdrawParams) (*big.Int, error) {
	var amount *big.Int
	err := p.atomic("withdraw", params.Asset, caller, func(e *Engine) error {
		var err error
		amount, err = e.ExecuteWithdraw(caller, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// Transfer moves claim between users and reconciles their collateral flags.
func (p *Pool) Transfer(asset, from, to common.Address, amount *big.Int) error {
	return p.atomic("transfer", asset, from, func(e *Engine) error {
		return e.Transfer(asset, from, to, amount)
	})
}

// FinalizeTransfer reconciles flags for a transfer applied by external token
// mechanics.
func (p *Pool) FinalizeTransfer(params FinalizeTransferParams) error {
	return p.atomic("finalize_transfer", params.Asset, params.From, func(e *Engine) error {
		return e.FinalizeTransfer(params)
	})
}

// SetUserUseReserveAsCollateral toggles caller's collateral flag.
func (p *Pool) SetUserUseReserveAsCollateral(caller common.Address, params ExecuteSetCollateralParams) error {
	return p.atomic("set_collateral", params.Asset, caller, func(e *Engine) error {
		return e.SetUserUseReserveAsCollateral(caller, params)
	})
}

// Borrow opens variable debt for caller.
func (p *Pool) Borrow(caller common.Address, params ExecuteBorrowParams) error {
	return p.atomic("borrow", params.Asset, caller, func(e *Engine) error {
		return e.ExecuteBorrow(caller, params)
	})
}

// Repay pays down debt and returns the amount repaid.
func (p *Pool) Repay(caller common.Address, params ExecuteRepayParams) (*big.Int, error) {
	var repaid *big.Int
	err := p.atomic("repay", params.Asset, caller, func(e *Engine) error {
		var err error
		repaid, err = e.ExecuteRepay(caller, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repaid, nil
}

// InitReserve lists a new reserve.
func (p *Pool) InitReserve(params InitReserveParams) (*ReserveData, error) {
	var reserve *ReserveData
	err := p.atomic("init_reserve", params.Asset, common.Address{}, func(e *Engine) error {
		var err error
		reserve, err = e.InitReserve(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reserve, nil
}

// ConfigureReserve replaces a reserve's configuration.
func (p *Pool) ConfigureReserve(asset common.Address, cfg ReserveConfiguration) error {
	return p.atomic("configure_reserve", asset, common.Address{}, func(e *Engine) error {
		return e.ConfigureReserve(asset, cfg)
	})
}

// Fund credits underlying to holder from outside the pool.
func (p *Pool) Fund(asset, holder common.Address, amount *big.Int) error {
	return p.atomic("fund", asset, holder, func(e *Engine) error {
		return e.Fund(asset, holder, amount)
	})
}

// Reserve returns the committed reserve for asset.
func (p *Pool) Reserve(asset common.Address) (*ReserveData, error) {
	var reserve *ReserveData
	err := p.view(func(e *Engine) error {
		var err error
		reserve, err = e.loadReserve(asset)
		return err
	})
	return reserve, err
}

// Reserves lists the committed reserves in id order.
func (p *Pool) Reserves() ([]*ReserveData, error) {
	var out []*ReserveData
	err := p.view(func(e *Engine) error {
		var err error
		out, err = e.Reserves()
		return err
	})
	return out, err
}

// Position reports user's committed standing in asset.
func (p *Pool) Position(user, asset common.Address) (*Position, error) {
	var pos *Position
	err := p.view(func(e *Engine) error {
		var err error
		pos, err = e.Position(user, asset)
		return err
	})
	return pos, err
}

// UserAccountData aggregates user's committed positions.
func (p *Pool) UserAccountData(user common.Address) (*AccountData, error) {
	var data *AccountData
	err := p.view(func(e *Engine) error {
		var err error
		data, err = e.UserAccountData(user)
		return err
	})
	return data, err
}

// UserConfiguration returns user's committed bitmap.
func (p *Pool) UserConfiguration(user common.Address) (UserConfiguration, error) {
	var cfg UserConfiguration
	err := p.view(func(e *Engine) error {
		var err error
		cfg, err = e.Registry().Config(user)
		return err
	})
	return cfg, err
}

// UnderlyingBalance returns holder's committed underlying balance.
func (p *Pool) UnderlyingBalance(asset, holder common.Address) (*big.Int, error) {
	var balance *big.Int
	err := p.view(func(e *Engine) error {
		var err error
		balance, err = e.custody.BalanceOf(asset, holder)
		return err
	})
	return balance, err
}

// IsRejection reports whether err is a classified engine rejection rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	return KindOf(err) != nil || errors.Is(err, nativecommon.ErrModulePaused)
}
