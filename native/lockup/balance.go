package lockup

import (
	"math/big"

	"vaultlock/core/types"
)

// Token is a one-attempt snapshot of a ledger asset and the caller's
// balances on it. It is rebuilt from fresh queries for every orchestration
// run; nothing here survives across attempts.
type Token struct {
	LedgerID      types.Principal
	Symbol        string
	Decimals      uint8
	Fee           *big.Int
	WalletBalance *big.Int
	VaultBalance  *big.Int
	LockedAmount  *big.Int
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Available is the total the caller could lock across both pools before
// transfer fees: wallet + vault - already locked.
func (t *Token) Available() *big.Int {
	avail := new(big.Int).Add(nonNil(t.WalletBalance), nonNil(t.VaultBalance))
	avail.Sub(avail, nonNil(t.LockedAmount))
	if avail.Sign() < 0 {
		return big.NewInt(0)
	}
	return avail
}

// AvailableInVault is the portion already sitting in the caller's vault
// subaccount and not committed to an existing lock, floored at zero.
func (t *Token) AvailableInVault() *big.Int {
	avail := new(big.Int).Sub(nonNil(t.VaultBalance), nonNil(t.LockedAmount))
	if avail.Sign() < 0 {
		return big.NewInt(0)
	}
	return avail
}

// MaxLockable is the largest amount a single lock attempt can cover. Vault
// funds count in full; wallet funds count minus the single transfer fee it
// costs to move them into the vault.
func (t *Token) MaxLockable() *big.Int {
	max := t.AvailableInVault()
	available := t.Available()
	if available.Cmp(max) > 0 {
		walletShare := new(big.Int).Sub(available, max)
		walletShare.Sub(walletShare, nonNil(t.Fee))
		if walletShare.Sign() > 0 {
			max = new(big.Int).Add(max, walletShare)
		}
	}
	if max.Sign() < 0 {
		return big.NewInt(0)
	}
	return max
}

// ExceedsAvailable reports whether the requested amount cannot be satisfied
// from the caller's combined balances.
func (t *Token) ExceedsAvailable(requested *big.Int) bool {
	return nonNil(requested).Cmp(t.Available()) > 0
}
