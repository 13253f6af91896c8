package lockup

import (
	"fmt"
	"math/big"
	"strings"
)

var ten = big.NewInt(10)

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
}

// ToBaseUnits parses a user-supplied decimal amount into the asset's smallest
// unit. The fractional part may carry at most `decimals` digits; anything
// beyond that is rejected rather than silently rounded. Thousands separators
// produced by FormatBaseUnits are accepted.
func ToBaseUnits(text string, decimals uint8) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if cleaned == "" {
		return nil, fmt.Errorf("lockup: empty amount")
	}
	if strings.HasPrefix(cleaned, "-") {
		return nil, fmt.Errorf("lockup: negative amount %q", text)
	}
	if strings.HasPrefix(cleaned, "+") {
		cleaned = cleaned[1:]
	}
	intPart := cleaned
	fracPart := ""
	if idx := strings.IndexByte(cleaned, '.'); idx >= 0 {
		intPart = cleaned[:idx]
		fracPart = cleaned[idx+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, fmt.Errorf("lockup: malformed amount %q", text)
		}
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("lockup: malformed amount %q", text)
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("lockup: amount %q has more than %d fractional digits", text, decimals)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return nil, fmt.Errorf("lockup: malformed amount %q", text)
	}
	// Right-pad the fraction to exactly `decimals` digits so the
	// concatenation is already scaled.
	padded := fracPart + strings.Repeat("0", int(decimals)-len(fracPart))
	value, ok := new(big.Int).SetString(intPart+padded, 10)
	if !ok {
		return nil, fmt.Errorf("lockup: malformed amount %q", text)
	}
	return value, nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatBaseUnits renders a base-unit value as a human readable decimal
// string. Trailing fractional zeros are stripped and the integer part is
// grouped with commas. Negative values keep their sign but are never produced
// by the engine itself.
func FormatBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	v := new(big.Int).Set(value)
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	quo, rem := new(big.Int).QuoRem(v, pow10(decimals), new(big.Int))
	intPart := groupThousands(quo.String())
	remDigits := rem.String()
	if pad := int(decimals) - len(remDigits); pad > 0 {
		remDigits = strings.Repeat("0", pad) + remDigits
	}
	frac := strings.TrimRight(remDigits, "0")
	if decimals == 0 || frac == "" {
		return sign + intPart
	}
	return sign + intPart + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
