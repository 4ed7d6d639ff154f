package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/native/lending"
	"lendingcore/services/lending/eventlog"
)

const requestLimit = 1 << 20 // 1 MiB

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// SupplyRequest deposits Amount of Asset for OnBehalfOf, defaulting to the
// caller.
type SupplyRequest struct {
	Asset           string `json:"asset"`
	Amount          string `json:"amount"`
	OnBehalfOf      string `json:"onBehalfOf,omitempty"`
	UseAsCollateral bool   `json:"useAsCollateral"`
	ReferralCode    uint16 `json:"referralCode,omitempty"`
}

// WithdrawRequest redeems Amount ("max" for everything) to To, defaulting to
// the caller.
type WithdrawRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	To     string `json:"to,omitempty"`
}

type TransferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type CollateralRequest struct {
	Asset           string `json:"asset"`
	UseAsCollateral bool   `json:"useAsCollateral"`
}

type BorrowRequest struct {
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	ReferralCode uint16 `json:"referralCode,omitempty"`
}

// RepayRequest pays down OnBehalfOf's debt, defaulting to the caller.
type RepayRequest struct {
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	OnBehalfOf string `json:"onBehalfOf,omitempty"`
}

// FinalizeTransferRequest reconciles flags after a claim moved at the token
// layer.
type FinalizeTransferRequest struct {
	Asset             string `json:"asset"`
	From              string `json:"from"`
	To                string `json:"to"`
	Amount            string `json:"amount"`
	BalanceFromBefore string `json:"balanceFromBefore"`
	BalanceToBefore   string `json:"balanceToBefore"`
}

func (r FinalizeTransferRequest) params() (lending.FinalizeTransferParams, error) {
	var (
		params lending.FinalizeTransferParams
		err    error
	)
	if params.Asset, err = parseAddress("asset", r.Asset); err != nil {
		return params, err
	}
	if params.From, err = parseAddress("from", r.From); err != nil {
		return params, err
	}
	if params.To, err = parseAddress("to", r.To); err != nil {
		return params, err
	}
	if params.Amount, err = parseAmount("amount", r.Amount, false); err != nil {
		return params, err
	}
	if params.BalanceFromBefore, err = parseAmount("balanceFromBefore", r.BalanceFromBefore, false); err != nil {
		return params, err
	}
	params.BalanceToBefore, err = parseAmount("balanceToBefore", r.BalanceToBefore, false)
	return params, err
}

// ReserveConfigRequest mirrors lending.ReserveConfiguration.
type ReserveConfigRequest struct {
	LTVBps                  uint64 `json:"ltvBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	LiquidationBonusBps     uint64 `json:"liquidationBonusBps"`
	ReserveFactorBps        uint64 `json:"reserveFactorBps"`
	SupplyCap               uint64 `json:"supplyCap"`
	BorrowCap               uint64 `json:"borrowCap"`
	Active                  bool   `json:"active"`
	Frozen                  bool   `json:"frozen"`
	Paused                  bool   `json:"paused"`
	BorrowingEnabled        bool   `json:"borrowingEnabled"`
}

func (r ReserveConfigRequest) configuration() lending.ReserveConfiguration {
	return lending.ReserveConfiguration{
		LTVBps:                  r.LTVBps,
		LiquidationThresholdBps: r.LiquidationThresholdBps,
		LiquidationBonusBps:     r.LiquidationBonusBps,
		ReserveFactorBps:        r.ReserveFactorBps,
		SupplyCap:               r.SupplyCap,
		BorrowCap:               r.BorrowCap,
		Active:                  r.Active,
		Frozen:                  r.Frozen,
		Paused:                  r.Paused,
		BorrowingEnabled:        r.BorrowingEnabled,
	}
}

type InitReserveRequest struct {
	Asset         string               `json:"asset"`
	ClaimToken    string               `json:"claimToken,omitempty"`
	DebtToken     string               `json:"debtToken,omitempty"`
	Decimals      uint8                `json:"decimals"`
	Price         string               `json:"price,omitempty"`
	Configuration ReserveConfigRequest `json:"configuration"`
}

type PriceRequest struct {
	Price string `json:"price"`
}

type FundRequest struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

type ModuleRequest struct {
	Module string `json:"module"`
}

// ReserveView is the JSON form of a listed reserve.
type ReserveView struct {
	ID                        uint16               `json:"id"`
	Asset                     string               `json:"asset"`
	ClaimToken                string               `json:"claimToken"`
	DebtToken                 string               `json:"debtToken"`
	Decimals                  uint8                `json:"decimals"`
	LiquidityIndex            string               `json:"liquidityIndex"`
	VariableBorrowIndex       string               `json:"variableBorrowIndex"`
	CurrentLiquidityRate      string               `json:"currentLiquidityRate"`
	CurrentVariableBorrowRate string               `json:"currentVariableBorrowRate"`
	LastUpdateTimestamp       uint64               `json:"lastUpdateTimestamp"`
	Configuration             ReserveConfigRequest `json:"configuration"`
}

// PositionView reports one user's standing in one reserve.
type PositionView struct {
	Asset             string `json:"asset"`
	User              string `json:"user"`
	ScaledBalance     string `json:"scaledBalance"`
	Balance           string `json:"balance"`
	ScaledDebt        string `json:"scaledDebt"`
	Debt              string `json:"debt"`
	UsingAsCollateral bool   `json:"usingAsCollateral"`
	Borrowing         bool   `json:"borrowing"`
}

// AccountView aggregates a user's positions.
type AccountView struct {
	User                    string `json:"user"`
	UserConfiguration       string `json:"userConfiguration"`
	TotalCollateralBase     string `json:"totalCollateralBase"`
	TotalDebtBase           string `json:"totalDebtBase"`
	AvailableBorrowsBase    string `json:"availableBorrowsBase"`
	LTVBps                  uint64 `json:"ltvBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	HealthFactor            string `json:"healthFactor"`
}

type EventView struct {
	Sequence   uint64            `json:"sequence"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	CreatedAt  string            `json:"createdAt"`
}

// AmountResponse carries the resolved amount of Withdraw and Repay.
type AmountResponse struct {
	Amount string `json:"amount"`
}

func toReserveView(r *lending.ReserveData) ReserveView {
	cfg := r.Configuration
	return ReserveView{
		ID:                        r.ID,
		Asset:                     r.Asset.Hex(),
		ClaimToken:                r.ClaimToken.Hex(),
		DebtToken:                 r.DebtToken.Hex(),
		Decimals:                  r.Decimals,
		LiquidityIndex:            formatInt(r.LiquidityIndex),
		VariableBorrowIndex:       formatInt(r.VariableBorrowIndex),
		CurrentLiquidityRate:      formatInt(r.CurrentLiquidityRate),
		CurrentVariableBorrowRate: formatInt(r.CurrentVariableBorrowRate),
		LastUpdateTimestamp:       r.LastUpdateTimestamp,
		Configuration: ReserveConfigRequest{
			LTVBps:                  cfg.LTVBps,
			LiquidationThresholdBps: cfg.LiquidationThresholdBps,
			LiquidationBonusBps:     cfg.LiquidationBonusBps,
			ReserveFactorBps:        cfg.ReserveFactorBps,
			SupplyCap:               cfg.SupplyCap,
			BorrowCap:               cfg.BorrowCap,
			Active:                  cfg.Active,
			Frozen:                  cfg.Frozen,
			Paused:                  cfg.Paused,
			BorrowingEnabled:        cfg.BorrowingEnabled,
		},
	}
}

func toPositionView(p *lending.Position) PositionView {
	return PositionView{
		Asset:             p.Asset.Hex(),
		User:              p.User.Hex(),
		ScaledBalance:     formatInt(p.ScaledBalance),
		Balance:           formatInt(p.Balance),
		ScaledDebt:        formatInt(p.ScaledDebt),
		Debt:              formatInt(p.Debt),
		UsingAsCollateral: p.UsingAsCollateral,
		Borrowing:         p.Borrowing,
	}
}

func toAccountView(user common.Address, cfg lending.UserConfiguration, data *lending.AccountData) AccountView {
	health := formatInt(data.HealthFactor)
	if lending.IsMaxAmount(data.HealthFactor) {
		health = "max"
	}
	return AccountView{
		User:                    user.Hex(),
		UserConfiguration:       cfg.Hex(),
		TotalCollateralBase:     formatInt(data.TotalCollateralBase),
		TotalDebtBase:           formatInt(data.TotalDebtBase),
		AvailableBorrowsBase:    formatInt(data.AvailableBorrowsBase),
		LTVBps:                  data.LTVBps,
		LiquidationThresholdBps: data.LiquidationThresholdBps,
		HealthFactor:            health,
	}
}

func toEventView(r eventlog.Record) (EventView, error) {
	evt, err := r.Event()
	if err != nil {
		return EventView{}, err
	}
	return EventView{
		Sequence:   r.Sequence,
		ID:         r.ID.String(),
		Type:       r.Type,
		Attributes: evt.Attributes,
		Digest:     r.Digest,
		CreatedAt:  r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func decodeRequest(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, badRequest("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseOptionalAddress returns fallback when raw is empty.
func parseOptionalAddress(field, raw string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return parseAddress(field, raw)
}

// parseAmount accepts a base-10 integer. With allowMax, "max" selects
// lending.MaxAmount.
func parseAmount(field, raw string, allowMax bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if allowMax && strings.EqualFold(trimmed, "max") {
		return new(big.Int).Set(lending.MaxAmount), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, badRequest("%s: invalid amount %q", field, raw)
	}
	return value, nil
}

func formatInt(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
