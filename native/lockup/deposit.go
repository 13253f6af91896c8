package lockup

import (
	"context"
	"math/big"

	"vaultlock/core/types"
)

// depositNeeded is the amount that must still move from the wallet into the
// caller's vault subaccount before `requested` can be locked. Zero or
// negative means the vault already holds enough; nothing is ever re-sent.
func depositNeeded(token *Token, requested *big.Int) *big.Int {
	return new(big.Int).Sub(nonNil(requested), token.AvailableInVault())
}

// ensureDeposit moves the missing portion of the requested amount into the
// caller's vault subaccount. The destination is derived deterministically
// from the caller principal, so retries top up the same subaccount.
// Returns the vault balance re-read after the transfer.
func (e *Engine) ensureDeposit(ctx context.Context, caller types.Principal, token *Token, requested *big.Int) (*big.Int, error) {
	needed := depositNeeded(token, requested)
	if needed.Sign() <= 0 {
		return nonNil(token.VaultBalance), nil
	}
	if nonNil(token.WalletBalance).Cmp(needed) < 0 {
		return nil, &InsufficientFundsError{
			Pool:    PoolWallet,
			Symbol:  token.Symbol,
			Missing: new(big.Int).Sub(needed, nonNil(token.WalletBalance)),
		}
	}
	vaultSub := VaultSubaccount(caller)
	args := TransferArgs{
		To:            types.Account{Owner: e.cfg.ServicePrincipal, Subaccount: &vaultSub},
		Amount:        needed,
		Fee:           cloneBigInt(token.Fee),
		Memo:          e.transferMemo(),
		CreatedAtTime: e.nowNs(),
	}
	if _, err := e.ledger.Transfer(ctx, token.LedgerID, args); err != nil {
		return nil, asTransferError(token.LedgerID, err)
	}
	vault, err := e.ledger.BalanceOf(ctx, token.LedgerID, types.Account{Owner: e.cfg.ServicePrincipal, Subaccount: &vaultSub})
	if err != nil {
		return nil, err
	}
	return vault, nil
}
