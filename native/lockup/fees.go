package lockup

import (
	"errors"
	"math/big"
)

// LockKind discriminates the two kinds of lock the service supports.
type LockKind string

const (
	// KindToken locks a fungible token amount.
	KindToken LockKind = "token"
	// KindPosition locks a DEX liquidity position.
	KindPosition LockKind = "position"
)

// FeeSchedule is an immutable snapshot of the service's lock fees, in base
// units of the fee ledger. It is fetched exactly once per orchestration run.
type FeeSchedule struct {
	TokenLockFee           *big.Int
	PremiumTokenLockFee    *big.Int
	PositionLockFee        *big.Int
	PremiumPositionLockFee *big.Int
}

var errNilSchedule = errors.New("lockup: fee schedule unavailable")

// ResolveFee selects the fee owed for the given lock kind and caller tier.
// A missing schedule is a fatal precondition failure; the orchestrator must
// report it before attempting any transfer.
func ResolveFee(kind LockKind, premium bool, schedule *FeeSchedule) (*big.Int, error) {
	if schedule == nil {
		return nil, errNilSchedule
	}
	var fee *big.Int
	switch kind {
	case KindToken:
		if premium {
			fee = schedule.PremiumTokenLockFee
		} else {
			fee = schedule.TokenLockFee
		}
	case KindPosition:
		if premium {
			fee = schedule.PremiumPositionLockFee
		} else {
			fee = schedule.PositionLockFee
		}
	default:
		return nil, errors.New("lockup: unknown lock kind")
	}
	return cloneBigInt(fee), nil
}
