package lockclient

import (
	"context"
	"encoding/hex"
	"math/big"

	"vaultlock/core/types"
	"vaultlock/native/lockup"
)

// LedgerClient talks JSON-RPC to the ledger bridge and implements
// lockup.Ledger. Calls act on behalf of the already-authenticated caller
// identity configured on the bridge side.
type LedgerClient struct {
	*rpcCore
}

// NewLedgerClient builds a client against the ledger RPC endpoint.
func NewLedgerClient(baseURL, authToken string, opts ...Option) *LedgerClient {
	return &LedgerClient{rpcCore: newRPCCore(baseURL, authToken, opts...)}
}

var _ lockup.Ledger = (*LedgerClient)(nil)

// BalanceOf reads an account balance on the given ledger.
func (c *LedgerClient) BalanceOf(ctx context.Context, ledger types.Principal, account types.Account) (*big.Int, error) {
	if err := c.waitQuery(ctx); err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"ledger": ledger.String(),
		"owner":  account.Owner.String(),
	}
	if account.Subaccount != nil && !account.Subaccount.IsZero() {
		payload["subaccount"] = account.Subaccount.String()
	}
	var result struct {
		Balance string `json:"balance"`
	}
	if err := c.call(ctx, "ledger_balanceOf", []interface{}{payload}, &result); err != nil {
		return nil, err
	}
	return parseAmount("ledger_balanceOf", result.Balance)
}

// Transfer submits a ledger transfer and returns the block index. Rejections
// come back as *RPCError carrying the ledger's structured variant.
func (c *LedgerClient) Transfer(ctx context.Context, ledger types.Principal, args lockup.TransferArgs) (uint64, error) {
	payload := map[string]interface{}{
		"ledger":  ledger.String(),
		"toOwner": args.To.Owner.String(),
		"amount":  args.Amount.String(),
	}
	if args.To.Subaccount != nil && !args.To.Subaccount.IsZero() {
		payload["toSubaccount"] = args.To.Subaccount.String()
	}
	if args.FromSubaccount != nil && !args.FromSubaccount.IsZero() {
		payload["fromSubaccount"] = args.FromSubaccount.String()
	}
	if args.Fee != nil {
		payload["fee"] = args.Fee.String()
	}
	if len(args.Memo) > 0 {
		payload["memo"] = hex.EncodeToString(args.Memo)
	}
	if args.CreatedAtTime > 0 {
		payload["createdAtTime"] = args.CreatedAtTime
	}
	var result struct {
		BlockIndex uint64 `json:"blockIndex"`
	}
	if err := c.call(ctx, "ledger_transfer", []interface{}{payload}, &result); err != nil {
		return 0, err
	}
	return result.BlockIndex, nil
}
