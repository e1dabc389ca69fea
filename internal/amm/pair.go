package amm

import (
	"context"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// deadAddress receives the permanently locked minimum liquidity.
var deadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// MaxReserve is the largest balance a pair can hold (uint112). Every product the pair
// computes then stays well inside 256 bits.
var MaxReserve = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1)))

// Pair is a constant-product pool of two tokens. The pair itself is the LP token.
type Pair struct {
	*token.Token

	token0 *token.Token
	token1 *token.Token

	reserve0 *chain.Value[sdkmath.Int]
	reserve1 *chain.Value[sdkmath.Int]
}

// sortTokens orders two tokens by address, as pair storage does.
func sortTokens(a, b *token.Token) (*token.Token, *token.Token) {
	if a.Address().Cmp(b.Address()) < 0 {
		return a, b
	}
	return b, a
}

func (p *Pair) Token0() *token.Token { return p.token0 }
func (p *Pair) Token1() *token.Token { return p.token1 }

// GetReserves returns the reserves recorded at the last sync.
func (p *Pair) GetReserves() (sdkmath.Int, sdkmath.Int) {
	return p.reserve0.Get(), p.reserve1.Get()
}

// ReservesFor returns (reserveIn, reserveOut) for a swap that starts with tokenIn.
func (p *Pair) ReservesFor(tokenIn common.Address) (sdkmath.Int, sdkmath.Int, error) {
	r0, r1 := p.GetReserves()
	switch tokenIn {
	case p.token0.Address():
		return r0, r1, nil
	case p.token1.Address():
		return r1, r0, nil
	default:
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), errorsmod.Wrapf(types.ErrInvalidPath, "token %s not in pair %s", tokenIn.Hex(), p.Address().Hex())
	}
}

// Other returns the token of the pair that is not addr.
func (p *Pair) Other(addr common.Address) *token.Token {
	if addr == p.token0.Address() {
		return p.token1
	}
	return p.token0
}

// TokenOf returns the pair token with address addr, or nil.
func (p *Pair) TokenOf(addr common.Address) *token.Token {
	switch addr {
	case p.token0.Address():
		return p.token0
	case p.token1.Address():
		return p.token1
	}
	return nil
}

// balances reads the pair's token balances, rejecting any above MaxReserve.
func (p *Pair) balances() (sdkmath.Int, sdkmath.Int, error) {
	balance0 := p.token0.BalanceOf(p.Address())
	balance1 := p.token1.BalanceOf(p.Address())
	if balance0.GT(MaxReserve) || balance1.GT(MaxReserve) {
		return balance0, balance1, errorsmod.Wrap(types.ErrMathOverflow, "OVERFLOW")
	}
	return balance0, balance1, nil
}

func (p *Pair) update(ctx context.Context) {
	p.reserve0.Set(ctx, p.token0.BalanceOf(p.Address()))
	p.reserve1.Set(ctx, p.token1.BalanceOf(p.Address()))
}

// Mint credits LP tokens to to for whatever was transferred to the pair since the last sync.
func (p *Pair) Mint(ctx context.Context, to common.Address) (sdkmath.Int, error) {
	r0, r1 := p.GetReserves()
	balance0, balance1, err := p.balances()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	amount0 := balance0.Sub(r0)
	amount1 := balance1.Sub(r1)

	var liquidity sdkmath.Int
	totalSupply := p.TotalSupply()
	if totalSupply.IsZero() {
		liquidity = sqrt(amount0.Mul(amount1)).SubRaw(MinimumLiquidity)
		if !liquidity.IsPositive() {
			return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInsufficientLiquidity, "insufficient liquidity minted")
		}
		if err := p.Token.Mint(ctx, p.Address(), deadAddress, sdkmath.NewInt(MinimumLiquidity)); err != nil {
			return sdkmath.ZeroInt(), err
		}
	} else {
		liquidity = sdkmath.MinInt(
			amount0.Mul(totalSupply).Quo(r0),
			amount1.Mul(totalSupply).Quo(r1),
		)
	}
	if !liquidity.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInsufficientLiquidity, "insufficient liquidity minted")
	}
	if err := p.Token.Mint(ctx, p.Address(), to, liquidity); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.update(ctx)
	return liquidity, nil
}

// Burn redeems the LP tokens held by the pair itself and sends the underlying tokens to to.
func (p *Pair) Burn(ctx context.Context, to common.Address) (sdkmath.Int, sdkmath.Int, error) {
	balance0, balance1, err := p.balances()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	liquidity := p.BalanceOf(p.Address())
	totalSupply := p.TotalSupply()

	amount0 := liquidity.Mul(balance0).Quo(totalSupply)
	amount1 := liquidity.Mul(balance1).Quo(totalSupply)
	if !amount0.IsPositive() || !amount1.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInsufficientLiquidity, "insufficient liquidity burned")
	}
	if err := p.Token.Burn(ctx, p.Address(), liquidity); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := p.token0.Transfer(ctx, p.Address(), to, amount0); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := p.token1.Transfer(ctx, p.Address(), to, amount1); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	p.update(ctx)
	return amount0, amount1, nil
}

// Swap sends the requested outputs to to, then checks that the inputs already transferred to the
// pair keep the fee-adjusted constant product from decreasing.
func (p *Pair) Swap(ctx context.Context, amount0Out, amount1Out sdkmath.Int, to common.Address) error {
	if !amount0Out.IsPositive() && !amount1Out.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "insufficient output amount")
	}
	r0, r1 := p.GetReserves()
	if amount0Out.GTE(r0) || amount1Out.GTE(r1) {
		return errorsmod.Wrap(types.ErrInsufficientLiquidity, "insufficient liquidity")
	}
	if to == p.token0.Address() || to == p.token1.Address() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "invalid to")
	}
	if amount0Out.IsPositive() {
		if err := p.token0.Transfer(ctx, p.Address(), to, amount0Out); err != nil {
			return err
		}
	}
	if amount1Out.IsPositive() {
		if err := p.token1.Transfer(ctx, p.Address(), to, amount1Out); err != nil {
			return err
		}
	}

	balance0, balance1, err := p.balances()
	if err != nil {
		return err
	}
	amount0In := sdkmath.ZeroInt()
	if balance0.GT(r0.Sub(amount0Out)) {
		amount0In = balance0.Sub(r0.Sub(amount0Out))
	}
	amount1In := sdkmath.ZeroInt()
	if balance1.GT(r1.Sub(amount1Out)) {
		amount1In = balance1.Sub(r1.Sub(amount1Out))
	}
	if !amount0In.IsPositive() && !amount1In.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "insufficient input amount")
	}

	feeCut := sdkmath.NewInt(FeeDenominator - FeeNumerator)
	adjusted0 := balance0.MulRaw(FeeDenominator).Sub(amount0In.Mul(feeCut))
	adjusted1 := balance1.MulRaw(FeeDenominator).Sub(amount1In.Mul(feeCut))
	if adjusted0.Mul(adjusted1).LT(r0.Mul(r1).MulRaw(FeeDenominator * FeeDenominator)) {
		return errorsmod.Wrap(types.ErrInvalidParameter, "K")
	}

	p.update(ctx)
	return nil
}
