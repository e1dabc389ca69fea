/*

Constant-product pricing with a 0.25% fee per hop (PancakeSwap v2 numbers).

Quotes are computed on 256-bit unsigned integers with explicit overflow checks so a quote
that would not fit a uint256 is reported as an error instead of silently growing.

*/

package amm

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/holiman/uint256"
)

const (
	FeeNumerator     = 9975
	FeeDenominator   = 10000
	MinimumLiquidity = 1000
)

var (
	feeNumerator   = uint256.NewInt(FeeNumerator)
	feeDenominator = uint256.NewInt(FeeDenominator)
)

func toU256(x sdkmath.Int) (*uint256.Int, error) {
	if x.IsNil() || x.IsNegative() {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "amount %s is not a uint256", x)
	}
	z, overflow := uint256.FromBig(x.BigInt())
	if overflow {
		return nil, errorsmod.Wrapf(types.ErrMathOverflow, "amount %s exceeds 256 bits", x)
	}
	return z, nil
}

func fromU256(z *uint256.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(z.ToBig())
}

func mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, errorsmod.Wrap(types.ErrMathOverflow, "ds-math-mul-overflow")
	}
	return z, nil
}

func add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errorsmod.Wrap(types.ErrMathOverflow, "ds-math-add-overflow")
	}
	return z, nil
}

// GetAmountOut returns the maximum output for amountIn given the pair reserves.
func GetAmountOut(amountIn, reserveIn, reserveOut sdkmath.Int) (sdkmath.Int, error) {
	if !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidParameter, "insufficient input amount")
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInsufficientLiquidity, "empty reserves")
	}
	in, err := toU256(amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rIn, err := toU256(reserveIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rOut, err := toU256(reserveOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	inWithFee, err := mul(in, feeNumerator)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	numerator, err := mul(inWithFee, rOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	scaledReserve, err := mul(rIn, feeDenominator)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	denominator, err := add(scaledReserve, inWithFee)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return fromU256(new(uint256.Int).Div(numerator, denominator)), nil
}

// GetAmountIn returns the minimum input needed to receive amountOut given the pair reserves.
func GetAmountIn(amountOut, reserveIn, reserveOut sdkmath.Int) (sdkmath.Int, error) {
	if !amountOut.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidParameter, "insufficient output amount")
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() || amountOut.GTE(reserveOut) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(types.ErrInsufficientLiquidity, "cannot take %s out of reserve %s", amountOut, reserveOut)
	}
	out, err := toU256(amountOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rIn, err := toU256(reserveIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rOut, err := toU256(reserveOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	numerator, err := mul(rIn, out)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if numerator, err = mul(numerator, feeDenominator); err != nil {
		return sdkmath.ZeroInt(), err
	}
	denominator, err := mul(new(uint256.Int).Sub(rOut, out), feeNumerator)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	in := new(uint256.Int).Div(numerator, denominator)
	return fromU256(in.AddUint64(in, 1)), nil
}

// Quote returns the amount of B equivalent to amountA at the current reserve ratio, without fees.
func Quote(amountA, reserveA, reserveB sdkmath.Int) (sdkmath.Int, error) {
	if !amountA.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidParameter, "insufficient amount")
	}
	if !reserveA.IsPositive() || !reserveB.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInsufficientLiquidity, "empty reserves")
	}
	a, err := toU256(amountA)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rA, err := toU256(reserveA)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	rB, err := toU256(reserveB)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	numerator, err := mul(a, rB)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return fromU256(new(uint256.Int).Div(numerator, rA)), nil
}

// sqrt returns floor(sqrt(x)).
func sqrt(x sdkmath.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(x.BigInt()))
}

