/*
This file contains helpers for moving between whole-token decimal strings, base-unit integers and floats.
Amounts on the simulated chain are base-unit integers; configuration and reporting use whole tokens.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals  = errors.New("decimals are invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

const maxDecimals = 18

func checkDecimals(decimals int) error {
	if decimals < 0 || decimals > maxDecimals {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, maxDecimals)
	}
	return nil
}

// ParseUnits converts a whole-token decimal string such as "0.05" into base units.
// Digits beyond decimals are truncated.
func ParseUnits(amount string, decimals int) (sdkmath.Int, error) {
	if err := checkDecimals(decimals); err != nil {
		return sdkmath.ZeroInt(), err
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	dec, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q: %w", ErrConversionFailed, amount, err)
	}
	if dec.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return dec.MulInt(sdkmath.NewIntWithDecimal(1, decimals)).TruncateInt(), nil
}

// MustParseUnits is ParseUnits for compile-time constants. It panics on invalid input.
func MustParseUnits(amount string, decimals int) sdkmath.Int {
	v, err := ParseUnits(amount, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders base units as a whole-token decimal string without trailing zeros.
func FormatUnits(amount sdkmath.Int, decimals int) string {
	if amount.IsNil() {
		return "0"
	}
	if decimals <= 0 || decimals > maxDecimals {
		return amount.String()
	}
	dec := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(decimals))
	s := dec.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// ToFloat64 converts base units into a whole-token float for reporting and metrics.
func ToFloat64(amount sdkmath.Int, decimals int) (float64, error) {
	if err := checkDecimals(decimals); err != nil {
		return 0, err
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	result, err := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(decimals)).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// ToFloat64OrZero is ToFloat64 for display paths where a bad value should read as zero.
func ToFloat64OrZero(amount sdkmath.Int, decimals int) float64 {
	f, err := ToFloat64(amount, decimals)
	if err != nil {
		return 0
	}
	return f
}

// MulBps returns amount*bps/10000, truncated.
func MulBps(amount sdkmath.Int, bps uint64) sdkmath.Int {
	return amount.Mul(sdkmath.NewIntFromUint64(bps)).QuoRaw(10000)
}

// Ratio returns num/den as a float, or 0 when den is zero.
func Ratio(num, den sdkmath.Int) float64 {
	if num.IsNil() || den.IsNil() || den.IsZero() {
		return 0
	}
	r, err := sdkmath.LegacyNewDecFromInt(num).QuoInt(den).Float64()
	if err != nil {
		return 0
	}
	return r
}
