// Package units converts between decimal ether strings and integer wei.
//
// Conversions are exact: values are handled as arbitrary precision decimals,
// never as floats, so any input with at most 18 fractional digits maps to
// exactly one wei amount and back.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/medledger/medledger/pkg/apperr"
)

// EtherDecimals is the number of base-unit digits in one ether.
const EtherDecimals = 18

// Unsigned decimal: "1", "1.", "1.5", ".5". No sign, no exponent.
var amountPattern = regexp.MustCompile(`^([0-9]+\.?[0-9]*|\.[0-9]+)$`)

// ParseEther converts a decimal ether amount to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// ParseUnits converts a decimal amount in a unit with the given number of
// decimals to the integer base unit.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, apperr.Validation("amount is required")
	}
	if !amountPattern.MatchString(s) {
		return nil, apperr.Newf(apperr.KindValidation, "invalid amount %q", amount)
	}
	if i := strings.IndexByte(s, '.'); i >= 0 && int32(len(s)-i-1) > decimals {
		return nil, apperr.Newf(apperr.KindValidation, "amount %q has more than %d fractional digits", amount, decimals)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "invalid amount %q", amount)
	}
	return d.Shift(decimals).BigInt(), nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros,
// e.g. 1500000000000000000 -> "1.5".
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// FormatUnits renders a base-unit amount in the major unit.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// MustParseEther is ParseEther for constants and tests.
func MustParseEther(amount string) *big.Int {
	v, err := ParseEther(amount)
	if err != nil {
		panic(fmt.Sprintf("units: %v", err))
	}
	return v
}
