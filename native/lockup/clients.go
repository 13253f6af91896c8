package lockup

import (
	"context"
	"math/big"

	"vaultlock/core/types"
)

// TransferArgs mirrors the ledger transfer call contract. Amount is the net
// amount credited to the destination; the ledger deducts Fee from the sender
// on top of it.
type TransferArgs struct {
	FromSubaccount *types.Subaccount
	To             types.Account
	Amount         *big.Int
	Fee            *big.Int
	Memo           []byte
	CreatedAtTime  uint64
}

// Ledger is the slice of the ledger canister surface the coordinators use.
// Implementations act on behalf of the already-authenticated caller.
type Ledger interface {
	BalanceOf(ctx context.Context, ledger types.Principal, account types.Account) (*big.Int, error)
	Transfer(ctx context.Context, ledger types.Principal, args TransferArgs) (uint64, error)
}

// PositionLockArgs carries the inputs of the create-position-lock call.
type PositionLockArgs struct {
	SwapCanisterID types.Principal
	DexID          uint32
	PositionID     uint64
	ExpiryNs       uint64
	Token0         types.Principal
	Token1         types.Principal
}

// LockService is the slice of the lock canister surface the engine uses.
type LockService interface {
	FeeSchedule(ctx context.Context) (*FeeSchedule, error)
	PaymentSubaccount(ctx context.Context, caller types.Principal) (types.Subaccount, error)
	PaymentBalance(ctx context.Context, caller types.Principal) (*big.Int, error)
	CreateTokenLock(ctx context.Context, amount *big.Int, ledgerID types.Principal, expiryNs uint64) (uint64, error)
	ClaimPosition(ctx context.Context, swapCanisterID types.Principal, positionID uint64) (bool, error)
	TransferPosition(ctx context.Context, swapCanisterID types.Principal, from, to types.Principal, positionID uint64) error
	CreatePositionLock(ctx context.Context, args PositionLockArgs) (uint64, error)
	ClaimedPositions(ctx context.Context, caller types.Principal) ([]ClaimedPosition, error)
}
