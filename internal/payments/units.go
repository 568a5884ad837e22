package payments

import (
	"fmt"     // Error and message formatting
	"strings" // String manipulation

	"github.com/shopspring/decimal" // Money amounts
)

// Currencies Stripe charges without a fractional unit
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

func exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// MinorUnits converts amount to the integer Stripe expects, e.g. 12.34 USD -> 1234
func MinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := exponent(currency)
	if !amount.IsPositive() || !amount.Equal(amount.Round(exp)) {
		return 0, fmt.Errorf("%w: %s is not a positive %s amount", ErrInvalidAmount, amount, strings.ToUpper(currency))
	}
	return amount.Shift(exp).IntPart(), nil
}

// MajorUnits is the inverse of MinorUnits
func MajorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -exponent(currency))
}
