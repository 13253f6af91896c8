package lockup

import (
	"errors"
	"fmt"
	"math/big"

	"vaultlock/core/types"
)

// FailureReason buckets terminal run failures for callers that render or
// meter them.
type FailureReason string

const (
	ReasonValidation        FailureReason = "validation"
	ReasonInsufficientFunds FailureReason = "insufficient_funds"
	ReasonTransfer          FailureReason = "transfer"
	ReasonCustody           FailureReason = "custody"
	ReasonCanister          FailureReason = "canister"
)

// BalancePool names which balance fell short in an InsufficientFundsError.
type BalancePool string

const (
	PoolWallet  BalancePool = "wallet"
	PoolVault   BalancePool = "vault"
	PoolPayment BalancePool = "payment"
)

// ValidationError reports a locally detected bad input. No network I/O has
// been performed when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "lockup: " + e.Msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports a computed shortfall, naming the pool that
// is short and the exact missing amount in base units.
type InsufficientFundsError struct {
	Pool    BalancePool
	Symbol  string
	Missing *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("lockup: %s balance short by %s %s", e.Pool, e.Missing.String(), e.Symbol)
}

// TransferError reports a ledger-rejected transfer. The ledger's structured
// rejection reason is serialized into Detail.
type TransferError struct {
	Ledger types.Principal
	Detail string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("lockup: ledger %s rejected transfer: %s", e.Ledger, e.Detail)
}

// CustodyStage identifies which half of the claim/transfer pair failed.
type CustodyStage string

const (
	StageClaim    CustodyStage = "claim"
	StageTransfer CustodyStage = "transfer"
)

// CustodyError reports a half-completed position custody handover. It is
// distinct from TransferError because the next attempt must resume custody
// rather than restart from payment.
type CustodyError struct {
	Stage      CustodyStage
	PositionID uint64
	Detail     string
}

func (e *CustodyError) Error() string {
	return fmt.Sprintf("lockup: position %d custody %s failed: %s", e.PositionID, e.Stage, e.Detail)
}

// CanisterError carries a lock-service rejection verbatim.
type CanisterError struct {
	Msg string
}

func (e *CanisterError) Error() string { return "lockup: " + e.Msg }

// Classify maps any engine error onto the failure taxonomy. Unrecognised
// errors (transport failures, context cancellation) are treated as canister
// errors: the call never produced a usable answer.
func Classify(err error) FailureReason {
	var (
		validation   *ValidationError
		insufficient *InsufficientFundsError
		transfer     *TransferError
		custody      *CustodyError
	)
	switch {
	case errors.As(err, &validation):
		return ReasonValidation
	case errors.As(err, &insufficient):
		return ReasonInsufficientFunds
	case errors.As(err, &transfer):
		return ReasonTransfer
	case errors.As(err, &custody):
		return ReasonCustody
	default:
		return ReasonCanister
	}
}
