package lockup

import (
	"context"
	"math/big"

	"vaultlock/core/types"
)

// createTokenLock invokes the final lock-creation call. Any rejection is
// terminal for the run and surfaced verbatim; the engine never retries it on
// its own.
func (e *Engine) createTokenLock(ctx context.Context, amount *big.Int, ledgerID types.Principal, expiryNs uint64) (uint64, error) {
	lockID, err := e.service.CreateTokenLock(ctx, amount, ledgerID, expiryNs)
	if err != nil {
		return 0, asCanisterError(err)
	}
	return lockID, nil
}

func (e *Engine) createPositionLock(ctx context.Context, position *LiquidityPosition, expiryNs uint64) (uint64, error) {
	lockID, err := e.service.CreatePositionLock(ctx, PositionLockArgs{
		SwapCanisterID: position.SwapCanisterID,
		DexID:          position.DexID,
		PositionID:     position.PositionID,
		ExpiryNs:       expiryNs,
		Token0:         position.Token0,
		Token1:         position.Token1,
	})
	if err != nil {
		return 0, asCanisterError(err)
	}
	return lockID, nil
}

func asCanisterError(err error) error {
	if _, ok := err.(*CanisterError); ok {
		return err
	}
	return &CanisterError{Msg: err.Error()}
}
