package lockclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"vaultlock/core/types"
	"vaultlock/native/lockup"
)

// ServiceClient talks JSON-RPC to the lock service and implements
// lockup.LockService.
type ServiceClient struct {
	*rpcCore
}

// NewServiceClient builds a client against the lock service RPC endpoint.
func NewServiceClient(baseURL, authToken string, opts ...Option) *ServiceClient {
	return &ServiceClient{rpcCore: newRPCCore(baseURL, authToken, opts...)}
}

var _ lockup.LockService = (*ServiceClient)(nil)

type feeScheduleResult struct {
	TokenLockFee           string `json:"tokenLockFee"`
	PremiumTokenLockFee    string `json:"premiumTokenLockFee"`
	PositionLockFee        string `json:"positionLockFee"`
	PremiumPositionLockFee string `json:"premiumPositionLockFee"`
}

// FeeSchedule fetches the current fee schedule snapshot.
func (c *ServiceClient) FeeSchedule(ctx context.Context) (*lockup.FeeSchedule, error) {
	if err := c.waitQuery(ctx); err != nil {
		return nil, err
	}
	var result feeScheduleResult
	if err := c.call(ctx, "lock_feeSchedule", []interface{}{}, &result); err != nil {
		return nil, err
	}
	schedule := &lockup.FeeSchedule{}
	for _, field := range []struct {
		raw  string
		dest **big.Int
	}{
		{result.TokenLockFee, &schedule.TokenLockFee},
		{result.PremiumTokenLockFee, &schedule.PremiumTokenLockFee},
		{result.PositionLockFee, &schedule.PositionLockFee},
		{result.PremiumPositionLockFee, &schedule.PremiumPositionLockFee},
	} {
		amount, err := parseAmount("lock_feeSchedule", field.raw)
		if err != nil {
			return nil, err
		}
		*field.dest = amount
	}
	return schedule, nil
}

// PaymentSubaccount resolves the service-held escrow subaccount for a caller.
func (c *ServiceClient) PaymentSubaccount(ctx context.Context, caller types.Principal) (types.Subaccount, error) {
	if err := c.waitQuery(ctx); err != nil {
		return types.Subaccount{}, err
	}
	var result struct {
		Subaccount string `json:"subaccount"`
	}
	params := []interface{}{map[string]string{"principal": caller.String()}}
	if err := c.call(ctx, "lock_paymentSubaccount", params, &result); err != nil {
		return types.Subaccount{}, err
	}
	raw, err := hex.DecodeString(result.Subaccount)
	if err != nil {
		return types.Subaccount{}, fmt.Errorf("lock_paymentSubaccount: invalid subaccount hex: %w", err)
	}
	return types.SubaccountFromBytes(raw)
}

// PaymentBalance reads the caller's escrowed fee balance from the service.
func (c *ServiceClient) PaymentBalance(ctx context.Context, caller types.Principal) (*big.Int, error) {
	if err := c.waitQuery(ctx); err != nil {
		return nil, err
	}
	var result struct {
		Balance string `json:"balance"`
	}
	params := []interface{}{map[string]string{"principal": caller.String()}}
	if err := c.call(ctx, "lock_paymentBalance", params, &result); err != nil {
		return nil, err
	}
	return parseAmount("lock_paymentBalance", result.Balance)
}

// CreateTokenLock submits the final token lock creation call.
func (c *ServiceClient) CreateTokenLock(ctx context.Context, amount *big.Int, ledgerID types.Principal, expiryNs uint64) (uint64, error) {
	params := []interface{}{map[string]interface{}{
		"amount":   amount.String(),
		"ledgerId": ledgerID.String(),
		"expiryNs": expiryNs,
	}}
	var result struct {
		LockID uint64 `json:"lockId"`
	}
	if err := c.call(ctx, "lock_createTokenLock", params, &result); err != nil {
		return 0, err
	}
	return result.LockID, nil
}

// ClaimPosition registers lock intent for a position with the service.
func (c *ServiceClient) ClaimPosition(ctx context.Context, swapCanisterID types.Principal, positionID uint64) (bool, error) {
	params := []interface{}{map[string]interface{}{
		"swapCanisterId": swapCanisterID.String(),
		"positionId":     positionID,
	}}
	var result struct {
		Claimed bool `json:"claimed"`
	}
	if err := c.call(ctx, "lock_claimPosition", params, &result); err != nil {
		return false, err
	}
	return result.Claimed, nil
}

// TransferPosition moves on-chain custody of a position.
func (c *ServiceClient) TransferPosition(ctx context.Context, swapCanisterID types.Principal, from, to types.Principal, positionID uint64) error {
	params := []interface{}{map[string]interface{}{
		"swapCanisterId": swapCanisterID.String(),
		"from":           from.String(),
		"to":             to.String(),
		"positionId":     positionID,
	}}
	return c.call(ctx, "lock_transferPosition", params, nil)
}

// CreatePositionLock submits the final position lock creation call.
func (c *ServiceClient) CreatePositionLock(ctx context.Context, args lockup.PositionLockArgs) (uint64, error) {
	params := []interface{}{map[string]interface{}{
		"swapCanisterId": args.SwapCanisterID.String(),
		"dexId":          args.DexID,
		"positionId":     args.PositionID,
		"expiryNs":       args.ExpiryNs,
		"token0":         args.Token0.String(),
		"token1":         args.Token1.String(),
	}}
	var result struct {
		LockID uint64 `json:"lockId"`
	}
	if err := c.call(ctx, "lock_createPositionLock", params, &result); err != nil {
		return 0, err
	}
	return result.LockID, nil
}

type claimedPositionResult struct {
	SwapCanisterID string  `json:"swapCanisterId"`
	PositionID     uint64  `json:"positionId"`
	LockID         *uint64 `json:"lockId,omitempty"`
}

// ClaimedPositions lists the caller's prior claims.
func (c *ServiceClient) ClaimedPositions(ctx context.Context, caller types.Principal) ([]lockup.ClaimedPosition, error) {
	if err := c.waitQuery(ctx); err != nil {
		return nil, err
	}
	var result []claimedPositionResult
	params := []interface{}{map[string]string{"principal": caller.String()}}
	if err := c.call(ctx, "lock_claimedPositions", params, &result); err != nil {
		return nil, err
	}
	claims := make([]lockup.ClaimedPosition, 0, len(result))
	for _, entry := range result {
		swap, err := types.ParsePrincipal(entry.SwapCanisterID)
		if err != nil {
			return nil, fmt.Errorf("lock_claimedPositions: %w", err)
		}
		claims = append(claims, lockup.ClaimedPosition{
			SwapCanisterID: swap,
			PositionID:     entry.PositionID,
			LockID:         entry.LockID,
		})
	}
	return claims, nil
}
