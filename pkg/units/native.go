package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the number of decimals of the chain's native coin.
const NativeDecimals = 18

var ErrInvalidAmount = errors.New("invalid native amount")

// ParseNative converts a decimal coin amount ("0.1") to wei.
func ParseNative(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	// Trailing zeros past the last wei digit are exact and allowed.
	if !d.Equal(d.Truncate(NativeDecimals)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, NativeDecimals)
	}
	return d.Shift(NativeDecimals).BigInt(), nil
}

// FormatNative renders wei as a decimal coin amount without trailing zeros.
func FormatNative(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -NativeDecimals).String()
}
