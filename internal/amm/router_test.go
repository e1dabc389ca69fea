package amm_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func ether(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, 18) }
func tenth() sdkmath.Int        { return sdkmath.NewIntWithDecimal(1, 17) }

type fixture struct {
	host   *chain.Host
	router *amm.Router
	wbnb   *token.WNative
	cake   *token.Token
	owner  common.Address
	alice  common.Address
}

// setupPool deploys WBNB and CAKE and seeds a 1 WBNB : 0.1 CAKE pool.
func setupPool(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	host := chain.NewHost(time.Unix(1_700_000_000, 0), 3*time.Second)
	f := &fixture{
		host:  host,
		owner: chain.Account("deployer"),
		alice: chain.Account("alice"),
	}
	f.wbnb = token.NewWNative(host, f.owner, "WBNB")
	f.cake = token.New(host, f.owner, "CAKE", 18)
	f.router = amm.NewRouter(host, f.owner, amm.NewFactory(host, f.owner), f.wbnb)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		host.Fund(ctx, f.owner, ether(10))
		host.Fund(ctx, f.alice, ether(10))
		for _, acc := range []common.Address{f.owner, f.alice} {
			if err := f.wbnb.Deposit(ctx, acc, ether(5)); err != nil {
				return err
			}
			if err := f.cake.Mint(ctx, f.owner, acc, ether(5)); err != nil {
				return err
			}
			if err := f.wbnb.Approve(ctx, acc, f.router.Address(), ether(100)); err != nil {
				return err
			}
			if err := f.cake.Approve(ctx, acc, f.router.Address(), ether(100)); err != nil {
				return err
			}
		}
		return nil
	}))

	_, _, liquidity, err := f.router.AddLiquidity(ctx, f.owner, f.wbnb.Token, f.cake, ether(1), tenth(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), f.owner)
	require.NoError(t, err)
	require.Equal(t, "316227766016836933", liquidity.String())
	return f
}

func TestGetAmountOut(t *testing.T) {
	out, err := amm.GetAmountOut(tenth(), ether(1), tenth())
	require.NoError(t, err)
	require.Equal(t, "9070243237099340", out.String())

	in, err := amm.GetAmountIn(out, ether(1), tenth())
	require.NoError(t, err)
	require.Equal(t, "99999999999999991", in.String())

	_, err = amm.GetAmountOut(sdkmath.ZeroInt(), ether(1), tenth())
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	_, err = amm.GetAmountOut(tenth(), sdkmath.ZeroInt(), tenth())
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)

	_, err = amm.GetAmountIn(tenth(), ether(1), tenth())
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestGetAmountOutOverflow(t *testing.T) {
	huge, ok := sdkmath.NewIntFromString("100000000000000000000000000000000000000000000000000000000000000000000000")
	require.True(t, ok)
	_, err := amm.GetAmountOut(huge, huge, huge)
	require.ErrorIs(t, err, types.ErrMathOverflow)
}

func TestReserveOverflow(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()
	zero := sdkmath.ZeroInt()
	huge := sdkmath.NewIntWithDecimal(1, 38)
	aaa := token.New(f.host, f.owner, "AAA", 18)
	bbb := token.New(f.host, f.owner, "BBB", 18)
	require.NoError(t, f.host.Transact(ctx, func(ctx context.Context) error {
		for _, tk := range []*token.Token{aaa, bbb} {
			if err := tk.Mint(ctx, f.owner, f.owner, huge.MulRaw(2)); err != nil {
				return err
			}
			if err := tk.Approve(ctx, f.owner, f.router.Address(), huge.MulRaw(2)); err != nil {
				return err
			}
		}
		return nil
	}))

	// 1e38 per side is past uint112
	require.NotPanics(t, func() {
		_, _, _, err := f.router.AddLiquidity(ctx, f.owner, aaa, bbb, huge, huge, zero, zero, f.owner)
		require.ErrorIs(t, err, types.ErrMathOverflow)
	})
	require.Equal(t, huge.MulRaw(2), aaa.BalanceOf(f.owner))
	_, exists := f.router.Factory().GetPair(aaa.Address(), bbb.Address())
	require.False(t, exists)

	half := amm.MaxReserve.QuoRaw(2)
	_, _, _, err := f.router.AddLiquidity(ctx, f.owner, aaa, bbb, half, half, zero, zero, f.owner)
	require.NoError(t, err)

	path := []common.Address{aaa.Address(), bbb.Address()}
	require.NotPanics(t, func() {
		_, err := f.router.SwapExactTokensForTokens(ctx, f.owner, huge.QuoRaw(10), zero, path, f.owner)
		require.ErrorIs(t, err, types.ErrMathOverflow)
	})
	pair, ok := f.router.Factory().GetPair(aaa.Address(), bbb.Address())
	require.True(t, ok)
	r0, r1 := pair.GetReserves()
	require.Equal(t, half, r0)
	require.Equal(t, half, r1)

	// a swap that stays under the cap still settles
	_, err = f.router.SwapExactTokensForTokens(ctx, f.owner, ether(1), zero, path, f.owner)
	require.NoError(t, err)
}

func TestSwapExactTokensForTokens(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()
	path := []common.Address{f.wbnb.Address(), f.cake.Address()}

	quoted, err := f.router.GetAmountsOut(tenth(), path)
	require.NoError(t, err)

	amounts, err := f.router.SwapExactTokensForTokens(ctx, f.alice, tenth(), sdkmath.ZeroInt(), path, f.alice)
	require.NoError(t, err)
	require.Equal(t, quoted, amounts)
	require.Equal(t, "9070243237099340", amounts[1].String())
	require.Equal(t, ether(5).Add(amounts[1]), f.cake.BalanceOf(f.alice))
	require.Equal(t, ether(5).Sub(tenth()), f.wbnb.BalanceOf(f.alice))
}

func TestSwapSlippageRevertsEverything(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()
	path := []common.Address{f.wbnb.Address(), f.cake.Address()}
	block := f.host.BlockNumber()

	minOut := sdkmath.NewInt(9070243237099341)
	_, err := f.router.SwapExactTokensForTokens(ctx, f.alice, tenth(), minOut, path, f.alice)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	require.Equal(t, block, f.host.BlockNumber())
	require.Equal(t, ether(5), f.wbnb.BalanceOf(f.alice))
	require.Equal(t, ether(5), f.cake.BalanceOf(f.alice))
}

func TestSwapTokensForExactTokens(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()
	path := []common.Address{f.wbnb.Address(), f.cake.Address()}
	want := sdkmath.NewInt(9070243237099340)

	_, err := f.router.SwapTokensForExactTokens(ctx, f.alice, want, sdkmath.NewInt(99999999999999990), path, f.alice)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	amounts, err := f.router.SwapTokensForExactTokens(ctx, f.alice, want, tenth(), path, f.alice)
	require.NoError(t, err)
	require.Equal(t, "99999999999999991", amounts[0].String())
	require.Equal(t, ether(5).Add(want), f.cake.BalanceOf(f.alice))
}

func TestMultiHopSwap(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()
	alpaca := token.New(f.host, f.owner, "ALPACA", 18)
	require.NoError(t, f.host.Transact(ctx, func(ctx context.Context) error {
		if err := alpaca.Mint(ctx, f.owner, f.owner, ether(10)); err != nil {
			return err
		}
		return alpaca.Approve(ctx, f.owner, f.router.Address(), ether(10))
	}))
	_, _, _, err := f.router.AddLiquidity(ctx, f.owner, f.cake, alpaca, ether(1), ether(10), sdkmath.ZeroInt(), sdkmath.ZeroInt(), f.owner)
	require.NoError(t, err)

	path := []common.Address{f.wbnb.Address(), f.cake.Address(), alpaca.Address()}
	quoted, err := f.router.GetAmountsOut(tenth(), path)
	require.NoError(t, err)
	require.Len(t, quoted, 3)

	amounts, err := f.router.SwapExactTokensForTokens(ctx, f.alice, tenth(), quoted[2], path, f.alice)
	require.NoError(t, err)
	require.Equal(t, quoted, amounts)
	require.Equal(t, quoted[2], alpaca.BalanceOf(f.alice))
	require.Equal(t, ether(5), f.cake.BalanceOf(f.alice))
}

func TestInvalidPath(t *testing.T) {
	f := setupPool(t)
	other := token.New(f.host, f.owner, "BUSD", 18)

	_, err := f.router.GetAmountsOut(tenth(), []common.Address{f.wbnb.Address()})
	require.ErrorIs(t, err, types.ErrInvalidPath)

	_, err = f.router.GetAmountsOut(tenth(), []common.Address{f.wbnb.Address(), other.Address()})
	require.ErrorIs(t, err, types.ErrInvalidPath)

	_, err = f.router.GetAmountsIn(tenth(), []common.Address{other.Address(), f.cake.Address()})
	require.ErrorIs(t, err, types.ErrInvalidPath)
}

func TestAddAndRemoveLiquidity(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()
	pair, ok := f.router.Factory().GetPair(f.wbnb.Address(), f.cake.Address())
	require.True(t, ok)

	// Minimum liquidity stays locked forever.
	require.Equal(t, "316227766016837933", pair.TotalSupply().String())

	lp := pair.BalanceOf(f.owner)
	require.NoError(t, f.host.Transact(ctx, func(ctx context.Context) error {
		return pair.Approve(ctx, f.owner, f.router.Address(), lp)
	}))
	amountWBNB, amountCAKE, err := f.router.RemoveLiquidity(ctx, f.owner, f.wbnb.Address(), f.cake.Address(), lp, sdkmath.ZeroInt(), sdkmath.ZeroInt(), f.owner)
	require.NoError(t, err)
	require.Equal(t, "999999999999996837", amountWBNB.String())
	require.Equal(t, "99999999999999683", amountCAKE.String())
	require.True(t, pair.BalanceOf(f.owner).IsZero())

	r0, r1 := pair.GetReserves()
	require.Equal(t, "1000", pair.TotalSupply().String())
	require.True(t, r0.IsPositive())
	require.True(t, r1.IsPositive())
}

func TestAddLiquidityAtRatio(t *testing.T) {
	f := setupPool(t)
	ctx := context.Background()

	// Offering 2 WBNB : 0.1 CAKE only uses 1 WBNB, matching the 10:1 reserves.
	amountA, amountB, _, err := f.router.AddLiquidity(ctx, f.alice, f.wbnb.Token, f.cake, ether(2), tenth(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), f.alice)
	require.NoError(t, err)
	require.Equal(t, ether(1), amountA)
	require.Equal(t, tenth(), amountB)

	_, _, _, err = f.router.AddLiquidity(ctx, f.alice, f.wbnb.Token, f.cake, ether(2), tenth(), ether(2), sdkmath.ZeroInt(), f.alice)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
}
