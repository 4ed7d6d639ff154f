package lending

import (
	"errors"
	"fmt"

	nativecommon "lendingcore/native/common"
)

// Failure kinds. Every error returned by the engine matches exactly one of
// these through errors.Is.
var (
	// ErrPrecondition covers invalid input and reserve states that reject the
	// operation before any balance moves.
	ErrPrecondition = errors.New("lending: precondition violation")
	// ErrSolvency is returned when the operation would leave a borrower below
	// the liquidation threshold or break the LTV rules.
	ErrSolvency = errors.New("lending: solvency violation")
	// ErrInvariant signals ledger corruption or misuse that correct
	// deployments never hit.
	ErrInvariant = errors.New("lending: invariant violation")
)

// Error is a classified engine failure.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lending: %s: %v", e.Reason, e.Err)
	}
	return "lending: " + e.Reason
}

// Is matches the kind sentinel in addition to the error itself.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

func precondition(reason string) *Error { return &Error{Kind: ErrPrecondition, Reason: reason} }
func solvency(reason string) *Error     { return &Error{Kind: ErrSolvency, Reason: reason} }
func invariant(reason string) *Error    { return &Error{Kind: ErrInvariant, Reason: reason} }

var (
	ErrInvalidAmount                 = precondition("amount must be positive")
	ErrReserveInactive               = precondition("reserve inactive")
	ErrReservePaused                 = precondition("reserve paused")
	ErrReserveFrozen                 = precondition("reserve frozen")
	ErrSupplyCapExceeded             = precondition("supply cap exceeded")
	ErrBorrowCapExceeded             = precondition("borrow cap exceeded")
	ErrBorrowingNotEnabled           = precondition("borrowing not enabled")
	ErrNotEnoughAvailableUserBalance = precondition("not enough available user balance")
	ErrInsufficientLiquidity         = precondition("insufficient available liquidity")
	ErrUnderlyingBalanceZero         = precondition("underlying balance zero")
	ErrInsufficientUnderlying        = precondition("insufficient underlying balance")
	ErrInvalidMintAmount             = precondition("scaled mint amount rounds to zero")
	ErrInvalidBurnAmount             = precondition("scaled burn amount rounds to zero")
	ErrNoDebtOfSelectedType          = precondition("no outstanding debt")
	ErrCollateralBalanceZero         = precondition("collateral balance zero")
	ErrReserveAlreadyAdded           = precondition("reserve already listed")
	ErrNoMoreReservesAllowed         = precondition("reserve limit reached")
	ErrZeroAddress                   = precondition("zero address")
	ErrInvalidReserveParams          = precondition("invalid reserve parameters")
	ErrPriceUnavailable              = precondition("asset price unavailable")

	ErrHealthFactorBelowThreshold     = solvency("health factor below liquidation threshold")
	ErrLTVValidationFailed            = solvency("ltv validation failed")
	ErrCollateralCannotCoverNewBorrow = solvency("collateral cannot cover new borrow")

	ErrReserveNotListed    = invariant("reserve not listed")
	ErrInvalidReserveIndex = invariant("reserve index out of range")
	ErrCorruptLedger       = invariant("ledger record inconsistent")
)

// errModulePaused wraps the module-wide pause so callers see a precondition.
func errModulePaused(err error) error {
	return &Error{Kind: ErrPrecondition, Reason: "module paused", Err: err}
}

// KindOf reports the failure kind of err, or nil when err is not classified.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSolvency):
		return ErrSolvency
	case errors.Is(err, ErrInvariant):
		return ErrInvariant
	case errors.Is(err, ErrPrecondition):
		return ErrPrecondition
	case errors.Is(err, nativecommon.ErrModulePaused):
		return ErrPrecondition
	default:
		return nil
	}
}

// Outcome renders err as a short label for metrics and logs.
func Outcome(err error) string {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return "ok"
		}
		return "error"
	case ErrSolvency:
		return "solvency"
	case ErrInvariant:
		return "invariant"
	default:
		return "precondition"
	}
}
