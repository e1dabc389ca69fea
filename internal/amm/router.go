package amm

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Router moves tokens through chains of pairs. Callers approve the router and it pulls the
// input with TransferFrom, as a v2 router does.
type Router struct {
	host    *chain.Host
	address common.Address
	factory *Factory
	wnative *token.WNative

	logger zerolog.Logger
}

func NewRouter(host *chain.Host, deployer common.Address, factory *Factory, wnative *token.WNative) *Router {
	return &Router{
		host:    host,
		address: host.NewContractAddress(deployer),
		factory: factory,
		wnative: wnative,
		logger:  logger.GetForComponent("amm_router"),
	}
}

func (r *Router) Address() common.Address { return r.address }
func (r *Router) Factory() *Factory       { return r.factory }
func (r *Router) WNative() *token.WNative { return r.wnative }

func (r *Router) pairFor(a, b common.Address) (*Pair, error) {
	pair, ok := r.factory.GetPair(a, b)
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrInvalidPath, "no pair for %s/%s", a.Hex(), b.Hex())
	}
	return pair, nil
}

// GetAmountsOut returns the amount at every hop of path when amountIn enters at path[0].
func (r *Router) GetAmountsOut(amountIn sdkmath.Int, path []common.Address) ([]sdkmath.Int, error) {
	if len(path) < 2 {
		return nil, errorsmod.Wrapf(types.ErrInvalidPath, "path of length %d", len(path))
	}
	amounts := make([]sdkmath.Int, len(path))
	amounts[0] = amountIn
	for i := 0; i < len(path)-1; i++ {
		pair, err := r.pairFor(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut, err := pair.ReservesFor(path[i])
		if err != nil {
			return nil, err
		}
		if amounts[i+1], err = GetAmountOut(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// GetAmountsIn returns the amount needed at every hop of path so that amountOut leaves at the end.
func (r *Router) GetAmountsIn(amountOut sdkmath.Int, path []common.Address) ([]sdkmath.Int, error) {
	if len(path) < 2 {
		return nil, errorsmod.Wrapf(types.ErrInvalidPath, "path of length %d", len(path))
	}
	amounts := make([]sdkmath.Int, len(path))
	amounts[len(path)-1] = amountOut
	for i := len(path) - 1; i > 0; i-- {
		pair, err := r.pairFor(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut, err := pair.ReservesFor(path[i-1])
		if err != nil {
			return nil, err
		}
		if amounts[i-1], err = GetAmountIn(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// Quote prices amountA of tokenA in tokenB at the pair's reserve ratio.
func (r *Router) Quote(amountA sdkmath.Int, tokenA, tokenB common.Address) (sdkmath.Int, error) {
	pair, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	reserveA, reserveB, err := pair.ReservesFor(tokenA)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return Quote(amountA, reserveA, reserveB)
}

// SwapExactTokensForTokens sells exactly amountIn of path[0] and sends the path[len-1] output to to.
func (r *Router) SwapExactTokensForTokens(ctx context.Context, caller common.Address, amountIn, amountOutMin sdkmath.Int, path []common.Address, to common.Address) ([]sdkmath.Int, error) {
	var amounts []sdkmath.Int
	err := r.host.Transact(ctx, func(ctx context.Context) error {
		var err error
		if amounts, err = r.GetAmountsOut(amountIn, path); err != nil {
			return err
		}
		if out := amounts[len(amounts)-1]; out.LT(amountOutMin) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "output %s below minimum %s", out, amountOutMin)
		}
		return r.pullAndSwap(ctx, caller, amounts, path, to)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapTokensForExactTokens buys exactly amountOut of path[len-1], spending at most amountInMax.
func (r *Router) SwapTokensForExactTokens(ctx context.Context, caller common.Address, amountOut, amountInMax sdkmath.Int, path []common.Address, to common.Address) ([]sdkmath.Int, error) {
	var amounts []sdkmath.Int
	err := r.host.Transact(ctx, func(ctx context.Context) error {
		var err error
		if amounts, err = r.GetAmountsIn(amountOut, path); err != nil {
			return err
		}
		if in := amounts[0]; in.GT(amountInMax) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "input %s above maximum %s", in, amountInMax)
		}
		return r.pullAndSwap(ctx, caller, amounts, path, to)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

func (r *Router) pullAndSwap(ctx context.Context, caller common.Address, amounts []sdkmath.Int, path []common.Address, to common.Address) error {
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	if err := first.TokenOf(path[0]).TransferFrom(ctx, r.address, caller, first.Address(), amounts[0]); err != nil {
		return err
	}
	return r.swap(ctx, amounts, path, to)
}

// swap runs the hops of path. The input of the first hop must already sit in the first pair.
func (r *Router) swap(ctx context.Context, amounts []sdkmath.Int, path []common.Address, to common.Address) error {
	for i := 0; i < len(path)-1; i++ {
		pair, err := r.pairFor(path[i], path[i+1])
		if err != nil {
			return err
		}
		amount0Out, amount1Out := sdkmath.ZeroInt(), amounts[i+1]
		if path[i] != pair.Token0().Address() {
			amount0Out, amount1Out = amounts[i+1], sdkmath.ZeroInt()
		}
		recipient := to
		if i < len(path)-2 {
			next, err := r.pairFor(path[i+1], path[i+2])
			if err != nil {
				return err
			}
			recipient = next.Address()
		}
		if err := pair.Swap(ctx, amount0Out, amount1Out, recipient); err != nil {
			return err
		}
	}
	r.logger.Debug().
		Str("in", amounts[0].String()).
		Str("out", amounts[len(amounts)-1].String()).
		Int("hops", len(path)-1).
		Msg("Swap")
	return nil
}

// AddLiquidity deposits tokenA and tokenB at the current ratio and mints LP tokens to to.
// The pair is created on first use.
func (r *Router) AddLiquidity(
	ctx context.Context,
	caller common.Address,
	tokenA, tokenB *token.Token,
	amountADesired, amountBDesired, amountAMin, amountBMin sdkmath.Int,
	to common.Address,
) (amountA, amountB, liquidity sdkmath.Int, err error) {
	err = r.host.Transact(ctx, func(ctx context.Context) error {
		pair, ok := r.factory.GetPair(tokenA.Address(), tokenB.Address())
		if !ok {
			var err error
			if pair, err = r.factory.CreatePair(ctx, tokenA, tokenB); err != nil {
				return err
			}
		}
		reserveA, reserveB, err := pair.ReservesFor(tokenA.Address())
		if err != nil {
			return err
		}

		if reserveA.IsZero() && reserveB.IsZero() {
			amountA, amountB = amountADesired, amountBDesired
		} else {
			amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
			if err != nil {
				return err
			}
			if amountBOptimal.LTE(amountBDesired) {
				if amountBOptimal.LT(amountBMin) {
					return errorsmod.Wrapf(types.ErrSlippageExceeded, "insufficient %s amount", tokenB.Symbol())
				}
				amountA, amountB = amountADesired, amountBOptimal
			} else {
				amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
				if err != nil {
					return err
				}
				if amountAOptimal.GT(amountADesired) || amountAOptimal.LT(amountAMin) {
					return errorsmod.Wrapf(types.ErrSlippageExceeded, "insufficient %s amount", tokenA.Symbol())
				}
				amountA, amountB = amountAOptimal, amountBDesired
			}
		}

		if err := tokenA.TransferFrom(ctx, r.address, caller, pair.Address(), amountA); err != nil {
			return err
		}
		if err := tokenB.TransferFrom(ctx, r.address, caller, pair.Address(), amountB); err != nil {
			return err
		}
		liquidity, err = pair.Mint(ctx, to)
		return err
	})
	return amountA, amountB, liquidity, err
}

// RemoveLiquidity burns liquidity LP tokens of caller and sends the underlying tokens to to.
func (r *Router) RemoveLiquidity(
	ctx context.Context,
	caller common.Address,
	tokenA, tokenB common.Address,
	liquidity, amountAMin, amountBMin sdkmath.Int,
	to common.Address,
) (amountA, amountB sdkmath.Int, err error) {
	err = r.host.Transact(ctx, func(ctx context.Context) error {
		pair, err := r.pairFor(tokenA, tokenB)
		if err != nil {
			return err
		}
		if err := pair.TransferFrom(ctx, r.address, caller, pair.Address(), liquidity); err != nil {
			return err
		}
		amount0, amount1, err := pair.Burn(ctx, to)
		if err != nil {
			return err
		}
		amountA, amountB = amount0, amount1
		if tokenA != pair.Token0().Address() {
			amountA, amountB = amount1, amount0
		}
		if amountA.LT(amountAMin) || amountB.LT(amountBMin) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "removed %s/%s below minimum %s/%s", amountA, amountB, amountAMin, amountBMin)
		}
		return nil
	})
	return amountA, amountB, err
}
