package lockup

import (
	"context"
	"math/big"

	"vaultlock/core/types"
)

// PaymentState is a one-attempt snapshot of the caller's fee escrow under the
// lock service. DepositedBalance is only ever refreshed from the service,
// never incremented locally.
type PaymentState struct {
	Subaccount       types.Subaccount
	DepositedBalance *big.Int
	RequiredFee      *big.Int
}

// Shortfall is the amount still missing from the escrow, floored at zero.
func (s *PaymentState) Shortfall() *big.Int {
	short := new(big.Int).Sub(nonNil(s.RequiredFee), nonNil(s.DepositedBalance))
	if short.Sign() < 0 {
		return big.NewInt(0)
	}
	return short
}

// Satisfied reports whether no payment transfer is needed. It is a pure
// predicate over fetched state, so the orchestrator can evaluate it both
// while planning and again immediately before executing the step.
func (s *PaymentState) Satisfied() bool {
	return nonNil(s.RequiredFee).Sign() == 0 || s.Shortfall().Sign() == 0
}

func (e *Engine) fetchPaymentState(ctx context.Context, caller types.Principal, requiredFee *big.Int) (*PaymentState, error) {
	sub, err := e.service.PaymentSubaccount(ctx, caller)
	if err != nil {
		return nil, err
	}
	deposited, err := e.service.PaymentBalance(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &PaymentState{
		Subaccount:       sub,
		DepositedBalance: nonNil(deposited),
		RequiredFee:      cloneBigInt(requiredFee),
	}, nil
}

// ensurePayment tops the fee escrow up to the required fee. It is idempotent:
// when the escrow already covers the fee it performs no transfer, so re-running
// an orchestration after a partial failure never double-pays. Returns the
// refreshed state.
func (e *Engine) ensurePayment(ctx context.Context, caller types.Principal, state *PaymentState) (*PaymentState, error) {
	if state.Satisfied() {
		return state, nil
	}
	shortfall := state.Shortfall()
	// The top-up transfer itself costs one ledger fee, which the wallet
	// must also cover.
	amountToSend := new(big.Int).Add(shortfall, nonNil(e.cfg.FeeLedgerFee))
	wallet, err := e.ledger.BalanceOf(ctx, e.cfg.FeeLedgerID, types.Account{Owner: caller})
	if err != nil {
		return nil, err
	}
	if wallet.Cmp(amountToSend) < 0 {
		return nil, &InsufficientFundsError{
			Pool:    PoolWallet,
			Symbol:  e.cfg.FeeSymbol,
			Missing: new(big.Int).Sub(amountToSend, wallet),
		}
	}
	args := TransferArgs{
		To:            types.Account{Owner: e.cfg.ServicePrincipal, Subaccount: &state.Subaccount},
		Amount:        shortfall,
		Fee:           cloneBigInt(e.cfg.FeeLedgerFee),
		Memo:          e.transferMemo(),
		CreatedAtTime: e.nowNs(),
	}
	if _, err := e.ledger.Transfer(ctx, e.cfg.FeeLedgerID, args); err != nil {
		return nil, asTransferError(e.cfg.FeeLedgerID, err)
	}
	// Never assume the transfer landed; the service's view is the source
	// of truth for the escrow balance.
	deposited, err := e.service.PaymentBalance(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &PaymentState{
		Subaccount:       state.Subaccount,
		DepositedBalance: nonNil(deposited),
		RequiredFee:      cloneBigInt(state.RequiredFee),
	}, nil
}

func asTransferError(ledger types.Principal, err error) error {
	if _, ok := err.(*TransferError); ok {
		return err
	}
	return &TransferError{Ledger: ledger, Detail: err.Error()}
}
