package lockup

import (
	"context"

	"vaultlock/core/types"
)

// custodySatisfied reports whether the position is already fully under vault
// custody: the claim is registered with the service and on-chain ownership
// has moved. Evaluated against freshly fetched state only.
func custodySatisfied(position *LiquidityPosition, claims []ClaimedPosition) bool {
	return position.CustodyState == ClaimedByVault && claimRegistered(position, claims)
}

func claimRegistered(position *LiquidityPosition, claims []ClaimedPosition) bool {
	for _, claim := range claims {
		if claim.SwapCanisterID == position.SwapCanisterID && claim.PositionID == position.PositionID {
			return true
		}
	}
	return false
}

// ensureCustody walks the position through claim and ownership transfer. Both
// halves are required; each is skipped individually when a prior attempt
// already completed it, so a half-finished handover resumes where it stopped
// instead of restarting. Failures are reported as CustodyError naming the
// half that failed.
func (e *Engine) ensureCustody(ctx context.Context, caller types.Principal, position *LiquidityPosition) error {
	claims, err := e.service.ClaimedPositions(ctx, caller)
	if err != nil {
		return err
	}
	if custodySatisfied(position, claims) {
		return nil
	}
	if !claimRegistered(position, claims) {
		position.CustodyState = Claiming
		ok, err := e.service.ClaimPosition(ctx, position.SwapCanisterID, position.PositionID)
		if err != nil {
			return &CustodyError{Stage: StageClaim, PositionID: position.PositionID, Detail: err.Error()}
		}
		if !ok {
			return &CustodyError{Stage: StageClaim, PositionID: position.PositionID, Detail: "claim rejected by lock service"}
		}
	}
	if position.CustodyState != ClaimedByVault {
		position.CustodyState = Transferring
		if err := e.service.TransferPosition(ctx, position.SwapCanisterID, caller, e.cfg.ServicePrincipal, position.PositionID); err != nil {
			return &CustodyError{Stage: StageTransfer, PositionID: position.PositionID, Detail: err.Error()}
		}
	}
	position.CustodyState = ClaimedByVault
	return nil
}
