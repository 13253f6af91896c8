package lockup

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vaultlock/core/types"
)

// vault subaccount domain separator, hashed together with the principal so
// the derivation can never collide with other service subaccount families.
var vaultSubaccountDomain = []byte("vaultlock.vault.v1")

// VaultSubaccount derives the caller's deposit subaccount under the lock
// service. The derivation is deterministic, so every attempt addresses the
// same subaccount and partial deposits from earlier attempts stay reachable.
func VaultSubaccount(caller types.Principal) types.Subaccount {
	digest := ethcrypto.Keccak256(vaultSubaccountDomain, []byte(caller.String()))
	var sub types.Subaccount
	copy(sub[:], digest)
	return sub
}
