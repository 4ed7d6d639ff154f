package server

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendingcore/native/lending"
	"lendingcore/observability"
	"lendingcore/services/lending/eventlog"
)

// Pool is the lending surface served over HTTP.
type Pool interface {
	Supply(caller common.Address, params lending.ExecuteSupplyParams) error
	Withdraw(caller common.Address, params lending.ExecuteWithdrawParams) (*big.Int, error)
	Transfer(asset, from, to common.Address, amount *big.Int) error
	FinalizeTransfer(params lending.FinalizeTransferParams) error
	SetUserUseReserveAsCollateral(caller common.Address, params lending.ExecuteSetCollateralParams) error
	Borrow(caller common.Address, params lending.ExecuteBorrowParams) error
	Repay(caller common.Address, params lending.ExecuteRepayParams) (*big.Int, error)
	InitReserve(params lending.InitReserveParams) (*lending.ReserveData, error)
	ConfigureReserve(asset common.Address, cfg lending.ReserveConfiguration) error
	Fund(asset, holder common.Address, amount *big.Int) error
	Reserve(asset common.Address) (*lending.ReserveData, error)
	Reserves() ([]*lending.ReserveData, error)
	Position(user, asset common.Address) (*lending.Position, error)
	UserAccountData(user common.Address) (*lending.AccountData, error)
	UserConfiguration(user common.Address) (lending.UserConfiguration, error)
}

// EventLog serves committed events.
type EventLog interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error)
	Verify(ctx context.Context) error
	Head() (uint64, string)
}

// PriceSetter updates oracle prices.
type PriceSetter interface {
	SetAssetPrice(asset common.Address, price *big.Int) error
}

// Pauser toggles module pauses.
type Pauser interface {
	Pause(module string)
	Resume(module string)
	Paused() []string
}

// Options wires the optional collaborators of Service.
type Options struct {
	Events    EventLog
	Prices    PriceSetter
	Pauses    Pauser
	Auth      *Authenticator
	RateLimit *RateLimiter
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Service exposes the pool as a JSON API.
type Service struct {
	pool Pool
	opts Options
}

// New constructs the lending API.
func New(pool Pool, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{pool: pool, opts: opts}
}

// Handler returns the routed and instrumented API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID, instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.opts.RateLimit.Middleware)

		r.Get("/reserves", s.listReserves)
		r.Get("/reserves/{asset}", s.getReserve)
		r.Get("/accounts/{user}", s.getAccount)
		r.Get("/accounts/{user}/positions/{asset}", s.getPosition)
		r.Get("/events", s.listEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate())
			r.Post("/supply", s.supply)
			r.Post("/withdraw", s.withdraw)
			r.Post("/transfer", s.transfer)
			r.Post("/collateral", s.setCollateral)
			r.Post("/borrow", s.borrow)
			r.Post("/repay", s.repay)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticate(ScopeAdmin))
			r.Post("/reserves", s.initReserve)
			r.Put("/reserves/{asset}/configuration", s.configureReserve)
			r.Put("/prices/{asset}", s.setPrice)
			r.Post("/fund", s.fund)
			r.Post("/finalize-transfer", s.finalizeTransfer)
			r.Post("/pause", s.pause)
			r.Post("/resume", s.resume)
			r.Get("/events/verify", s.verifyEvents)
		})
	})
	return otelhttp.NewHandler(r, "lendingd")
}

func (s *Service) authenticate(scopes ...string) func(http.Handler) http.Handler {
	if s.opts.Auth == nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, ErrorBody{
					Error:     "authentication is not configured",
					Kind:      "unauthenticated",
					RequestID: requestID(r.Context()),
				})
			})
		}
	}
	return s.opts.Auth.Middleware(scopes...)
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.opts.Logger != nil {
		return s.opts.Logger
	}
	return slog.Default()
}

// caller resolves the account a user route acts for. Operator tokens have no
// account and are refused.
func (s *Service) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok || principal.Operator {
		writeJSON(w, http.StatusForbidden, ErrorBody{
			Error:     "user token required",
			Kind:      "forbidden",
			RequestID: requestID(r.Context()),
		})
		return common.Address{}, false
	}
	return principal.Address, true
}

func (s *Service) listReserves(w http.ResponseWriter, r *http.Request) {
	reserves, err := s.pool.Reserves()
	if err != nil {
		s.writeError(w, r, "list_reserves", err)
		return
	}
	out := make([]ReserveView, 0, len(reserves))
	for _, reserve := range reserves {
		out = append(out, toReserveView(reserve))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) getReserve(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, "get_reserve", err)
		return
	}
	reserve, err := s.pool.Reserve(asset)
	if err != nil {
		s.writeError(w, r, "get_reserve", err)
		return
	}
	writeJSON(w, http.StatusOK, toReserveView(reserve))
}

func (s *Service) getAccount(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("user", chi.URLParam(r, "user"))
	if err != nil {
		s.writeError(w, r, "get_account", err)
		return
	}
	cfg, err := s.pool.UserConfiguration(user)
	if err != nil {
		s.writeError(w, r, "get_account", err)
		return
	}
	data, err := s.pool.UserAccountData(user)
	if err != nil {
		s.writeError(w, r, "get_account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(user, cfg, data))
}

func (s *Service) getPosition(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("user", chi.URLParam(r, "user"))
	if err != nil {
		s.writeError(w, r, "get_position", err)
		return
	}
	asset, err := parseAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, "get_position", err)
		return
	}
	pos, err := s.pool.Position(user, asset)
	if err != nil {
		s.writeError(w, r, "get_position", err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionView(pos))
}

func (s *Service) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		writeJSON(w, http.StatusOK, []EventView{})
		return
	}
	query := r.URL.Query()
	filter := eventlog.Filter{
		Reserve: query.Get("reserve"),
		Account: query.Get("user"),
		Type:    query.Get("type"),
	}
	if raw := query.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, "list_events", badRequest("after: %v", err))
			return
		}
		filter.After = after
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, "list_events", badRequest("limit: %v", err))
			return
		}
		filter.Limit = limit
	}
	records, err := s.opts.Events.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, "list_events", err)
		return
	}
	out := make([]EventView, 0, len(records))
	for _, record := range records {
		view, err := toEventView(record)
		if err != nil {
			s.writeError(w, r, "list_events", err)
			return
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) supply(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req SupplyRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "supply", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "supply", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		s.writeError(w, r, "supply", err)
		return
	}
	onBehalfOf, err := parseOptionalAddress("onBehalfOf", req.OnBehalfOf, caller)
	if err != nil {
		s.writeError(w, r, "supply", err)
		return
	}
	params := lending.ExecuteSupplyParams{
		Asset:           asset,
		Amount:          amount,
		OnBehalfOf:      onBehalfOf,
		UseAsCollateral: req.UseAsCollateral,
		ReferralCode:    req.ReferralCode,
	}
	if err := s.pool.Supply(caller, params); err != nil {
		s.writeError(w, r, "supply", err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount.String()})
}

func (s *Service) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "withdraw", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "withdraw", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		s.writeError(w, r, "withdraw", err)
		return
	}
	to, err := parseOptionalAddress("to", req.To, caller)
	if err != nil {
		s.writeError(w, r, "withdraw", err)
		return
	}
	withdrawn, err := s.pool.Withdraw(caller, lending.ExecuteWithdrawParams{Asset: asset, Amount: amount, To: to})
	if err != nil {
		s.writeError(w, r, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: withdrawn.String()})
}

func (s *Service) transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "transfer", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "transfer", err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeError(w, r, "transfer", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		s.writeError(w, r, "transfer", err)
		return
	}
	if err := s.pool.Transfer(asset, caller, to, amount); err != nil {
		s.writeError(w, r, "transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount.String()})
}

func (s *Service) setCollateral(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req CollateralRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "set_collateral", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "set_collateral", err)
		return
	}
	params := lending.ExecuteSetCollateralParams{Asset: asset, UseAsCollateral: req.UseAsCollateral}
	if err := s.pool.SetUserUseReserveAsCollateral(caller, params); err != nil {
		s.writeError(w, r, "set_collateral", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) borrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req BorrowRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "borrow", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "borrow", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		s.writeError(w, r, "borrow", err)
		return
	}
	params := lending.ExecuteBorrowParams{Asset: asset, Amount: amount, ReferralCode: req.ReferralCode}
	if err := s.pool.Borrow(caller, params); err != nil {
		s.writeError(w, r, "borrow", err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount.String()})
}

func (s *Service) repay(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req RepayRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "repay", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "repay", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		s.writeError(w, r, "repay", err)
		return
	}
	onBehalfOf, err := parseOptionalAddress("onBehalfOf", req.OnBehalfOf, caller)
	if err != nil {
		s.writeError(w, r, "repay", err)
		return
	}
	repaid, err := s.pool.Repay(caller, lending.ExecuteRepayParams{Asset: asset, Amount: amount, OnBehalfOf: onBehalfOf})
	if err != nil {
		s.writeError(w, r, "repay", err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: repaid.String()})
}

func (s *Service) initReserve(w http.ResponseWriter, r *http.Request) {
	var req InitReserveRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "init_reserve", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "init_reserve", err)
		return
	}
	params := lending.InitReserveParams{
		Asset:         asset,
		Decimals:      req.Decimals,
		Configuration: req.Configuration.configuration(),
	}
	if params.ClaimToken, err = parseOptionalAddress("claimToken", req.ClaimToken, common.Address{}); err != nil {
		s.writeError(w, r, "init_reserve", err)
		return
	}
	if params.DebtToken, err = parseOptionalAddress("debtToken", req.DebtToken, common.Address{}); err != nil {
		s.writeError(w, r, "init_reserve", err)
		return
	}
	var price *big.Int
	if strings.TrimSpace(req.Price) != "" {
		if price, err = parseAmount("price", req.Price, false); err != nil {
			s.writeError(w, r, "init_reserve", err)
			return
		}
	}
	reserve, err := s.pool.InitReserve(params)
	if err != nil {
		s.writeError(w, r, "init_reserve", err)
		return
	}
	if price != nil && s.opts.Prices != nil {
		if err := s.opts.Prices.SetAssetPrice(asset, price); err != nil {
			s.writeError(w, r, "init_reserve", err)
			return
		}
	}
	s.log().Info("reserve listed", "reserve", asset.Hex(), "id", reserve.ID)
	writeJSON(w, http.StatusCreated, toReserveView(reserve))
}

func (s *Service) configureReserve(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, "configure_reserve", err)
		return
	}
	var req ReserveConfigRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "configure_reserve", err)
		return
	}
	if err := s.pool.ConfigureReserve(asset, req.configuration()); err != nil {
		s.writeError(w, r, "configure_reserve", err)
		return
	}
	reserve, err := s.pool.Reserve(asset)
	if err != nil {
		s.writeError(w, r, "configure_reserve", err)
		return
	}
	writeJSON(w, http.StatusOK, toReserveView(reserve))
}

func (s *Service) setPrice(w http.ResponseWriter, r *http.Request) {
	if s.opts.Prices == nil {
		s.writeError(w, r, "set_price", errors.New("price oracle is read only"))
		return
	}
	asset, err := parseAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, r, "set_price", err)
		return
	}
	var req PriceRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "set_price", err)
		return
	}
	price, err := parseAmount("price", req.Price, false)
	if err != nil {
		s.writeError(w, r, "set_price", err)
		return
	}
	if err := s.opts.Prices.SetAssetPrice(asset, price); err != nil {
		s.writeError(w, r, "set_price", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) fund(w http.ResponseWriter, r *http.Request) {
	var req FundRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "fund", err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		s.writeError(w, r, "fund", err)
		return
	}
	holder, err := parseAddress("holder", req.Holder)
	if err != nil {
		s.writeError(w, r, "fund", err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		s.writeError(w, r, "fund", err)
		return
	}
	if err := s.pool.Fund(asset, holder, amount); err != nil {
		s.writeError(w, r, "fund", err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount.String()})
}

func (s *Service) finalizeTransfer(w http.ResponseWriter, r *http.Request) {
	var req FinalizeTransferRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, r, "finalize_transfer", err)
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeError(w, r, "finalize_transfer", err)
		return
	}
	if err := s.pool.FinalizeTransfer(params); err != nil {
		s.writeError(w, r, "finalize_transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) pause(w http.ResponseWriter, r *http.Request) {
	s.togglePause(w, r, true)
}

func (s *Service) resume(w http.ResponseWriter, r *http.Request) {
	s.togglePause(w, r, false)
}

func (s *Service) togglePause(w http.ResponseWriter, r *http.Request, paused bool) {
	if s.opts.Pauses == nil {
		s.writeError(w, r, "pause", errors.New("pauses are not configurable"))
		return
	}
	req := ModuleRequest{Module: lending.ModuleName}
	if r.ContentLength != 0 {
		if err := decodeRequest(r, &req); err != nil {
			s.writeError(w, r, "pause", err)
			return
		}
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		module = lending.ModuleName
	}
	if paused {
		s.opts.Pauses.Pause(module)
	} else {
		s.opts.Pauses.Resume(module)
	}
	s.log().Warn("module pause changed", "module", module, "paused", paused)
	writeJSON(w, http.StatusOK, map[string][]string{"paused": s.opts.Pauses.Paused()})
}

func (s *Service) verifyEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sequence": 0, "head": ""})
		return
	}
	if err := s.opts.Events.Verify(r.Context()); err != nil {
		s.writeError(w, r, "verify_events", err)
		return
	}
	seq, head := s.opts.Events.Head()
	writeJSON(w, http.StatusOK, map[string]any{"sequence": seq, "head": head})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTP().Observe(route, r.Method, status, time.Since(started))
	})
}
