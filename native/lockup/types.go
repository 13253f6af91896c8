package lockup

import (
	"math/big"

	"vaultlock/core/types"
)

// CustodyState tracks who currently controls a liquidity position.
type CustodyState string

const (
	// OwnedByCaller means the position is still held by the user wallet.
	OwnedByCaller CustodyState = "owned_by_caller"
	// Claiming means a claim has been registered but custody has not moved.
	Claiming CustodyState = "claiming"
	// Transferring means on-chain custody is moving to the vault.
	Transferring CustodyState = "transferring"
	// ClaimedByVault means the service holds the position; it may be locked.
	ClaimedByVault CustodyState = "claimed_by_vault"
)

// LiquidityPosition is a one-attempt snapshot of a DEX position. The
// custodian mutates CustodyState during the handover; once ClaimedByVault it
// is immutable input to lock creation.
type LiquidityPosition struct {
	SwapCanisterID types.Principal
	DexID          uint32
	PositionID     uint64
	Token0         types.Principal
	Token1         types.Principal
	Token0Amount   *big.Int
	Token1Amount   *big.Int
	CustodyState   CustodyState
}

// ClaimedPosition is one entry of the service's prior-claims lookup.
type ClaimedPosition struct {
	SwapCanisterID types.Principal
	PositionID     uint64
	LockID         *uint64
}

// LockRequest is the discriminated input of one orchestration run. Exactly
// TokenLockRequest and PositionLockRequest implement it.
type LockRequest interface {
	Kind() LockKind
	RequestCaller() types.Principal
	RequestPremium() bool
	RequestExpiryNs() uint64
}

// TokenLockRequest asks for a fungible-token lock.
type TokenLockRequest struct {
	Caller   types.Principal
	Premium  bool
	Token    *Token
	Amount   *big.Int
	ExpiryNs uint64
}

func (r TokenLockRequest) Kind() LockKind                 { return KindToken }
func (r TokenLockRequest) RequestCaller() types.Principal { return r.Caller }
func (r TokenLockRequest) RequestPremium() bool           { return r.Premium }
func (r TokenLockRequest) RequestExpiryNs() uint64        { return r.ExpiryNs }

// PositionLockRequest asks for a liquidity-position lock.
type PositionLockRequest struct {
	Caller   types.Principal
	Premium  bool
	Position *LiquidityPosition
	ExpiryNs uint64
}

func (r PositionLockRequest) Kind() LockKind                 { return KindPosition }
func (r PositionLockRequest) RequestCaller() types.Principal { return r.Caller }
func (r PositionLockRequest) RequestPremium() bool           { return r.Premium }
func (r PositionLockRequest) RequestExpiryNs() uint64        { return r.ExpiryNs }

// StepKind labels the four executable phases of a run.
type StepKind string

const (
	StepPayment StepKind = "payment"
	StepDeposit StepKind = "deposit"
	StepCustody StepKind = "custody"
	StepCreate  StepKind = "create"
)

// StepStatus is the lifecycle of one planned step.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusActive  StepStatus = "active"
	// StatusPreCompleted marks a planned step found already satisfied when
	// its precondition was re-checked at execution time.
	StatusPreCompleted StepStatus = "pre_completed"
	StatusCompleted    StepStatus = "completed"
	StatusFailed       StepStatus = "failed"
)

// ProgressStep is one entry of the per-run plan. The list is rebuilt from
// fresh state on every attempt; which steps appear depends on what is still
// unsatisfied.
type ProgressStep struct {
	Label  string     `json:"label"`
	Kind   StepKind   `json:"kind"`
	Status StepStatus `json:"status"`
}

// Receipt is the successful outcome of a run.
type Receipt struct {
	RunID  string         `json:"runId"`
	LockID uint64         `json:"lockId"`
	Steps  []ProgressStep `json:"steps"`
}

// RunError is the terminal failure of a run. It wraps the typed cause and
// snapshots the step plan so callers can offer a retry that skips steps that
// already completed.
type RunError struct {
	RunID string
	Step  StepKind
	Steps []ProgressStep
	Err   error
}

func (e *RunError) Error() string {
	if e.Step != "" {
		return string(e.Step) + " step failed: " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }

// Reason classifies the wrapped cause.
func (e *RunError) Reason() FailureReason { return Classify(e.Err) }
