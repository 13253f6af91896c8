package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Principal is the textual identifier of an on-chain actor (a user wallet or
// a service canister). The orchestrator treats it as opaque; it is validated
// once at the boundary and passed through verbatim afterwards.
type Principal string

// ParsePrincipal normalises and validates a textual principal.
func ParsePrincipal(raw string) (Principal, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", fmt.Errorf("types: empty principal")
	}
	for _, r := range trimmed {
		if r != '-' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("types: invalid principal %q", raw)
		}
	}
	return Principal(trimmed), nil
}

// String implements fmt.Stringer.
func (p Principal) String() string { return string(p) }

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool { return strings.TrimSpace(string(p)) == "" }

// SubaccountSize is the fixed byte width of ledger subaccounts.
const SubaccountSize = 32

// Subaccount addresses a sub-balance of a ledger account.
type Subaccount [SubaccountSize]byte

// SubaccountFromBytes copies raw bytes into a Subaccount, rejecting any
// length other than SubaccountSize.
func SubaccountFromBytes(raw []byte) (Subaccount, error) {
	var sub Subaccount
	if len(raw) != SubaccountSize {
		return sub, fmt.Errorf("types: subaccount must be %d bytes, got %d", SubaccountSize, len(raw))
	}
	copy(sub[:], raw)
	return sub, nil
}

// IsZero reports whether the subaccount is the default (all zero) subaccount.
func (s Subaccount) IsZero() bool { return s == Subaccount{} }

// String renders the subaccount as lowercase hex.
func (s Subaccount) String() string { return hex.EncodeToString(s[:]) }

// Account pairs an owner principal with an optional subaccount, matching the
// ledger's account addressing scheme. A nil subaccount means the owner's
// default subaccount.
type Account struct {
	Owner      Principal   `json:"owner"`
	Subaccount *Subaccount `json:"subaccount,omitempty"`
}

// String renders the account for logs and error messages.
func (a Account) String() string {
	if a.Subaccount == nil || a.Subaccount.IsZero() {
		return a.Owner.String()
	}
	return a.Owner.String() + "." + a.Subaccount.String()
}

// Event represents a typed event emitted during an orchestration run.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
