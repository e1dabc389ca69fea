package strategy_test

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/deploy"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/worker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func units(s string) sdkmath.Int { return utils.MustParseUnits(s, 18) }

// setup returns a deployment and a WBNB/CAKE worker operated by Alice, funded with 0.1 WBNB.
func setup(t *testing.T) (*deploy.Deployment, *worker.Worker, context.Context) {
	t.Helper()
	ctx := context.Background()
	d, err := deploy.Genesis(ctx, deploy.DefaultOptions())
	require.NoError(t, err)
	w, err := d.NewWorker(ctx, deploy.WorkerSpec{
		Operator:  d.Alice,
		BaseToken: d.WNative.Token,
		Path:      []common.Address{d.WNative.Address(), d.Cake.Address()},
	})
	require.NoError(t, err)
	require.NoError(t, d.Host.Transact(ctx, func(ctx context.Context) error {
		return d.WNative.Transfer(ctx, d.Alice, w.Address(), units("0.1"))
	}))
	return d, w, ctx
}

func TestOnlyApprovedWorkers(t *testing.T) {
	d, w, ctx := setup(t)

	require.True(t, d.AddBaseTokenOnly.IsWorkerOk(w.Address()))
	require.False(t, d.AddBaseTokenOnly.IsWorkerOk(d.Alice))

	err := d.Host.Transact(ctx, func(ctx context.Context) error {
		return d.AddBaseTokenOnly.Execute(ctx, d.Alice, d.Alice, sdkmath.ZeroInt(), strategy.AddBaseTokenOnlyParams{})
	})
	require.ErrorIs(t, err, types.ErrBadWorker)

	err = d.Host.Transact(ctx, func(ctx context.Context) error {
		return d.AddBaseTokenOnly.SetWorkersOk(ctx, d.Alice, []strategy.Worker{w}, false)
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, d.AddBaseTokenOnly.SetWorkersOk(ctx, d.Deployer, []strategy.Worker{w}, false))
	require.False(t, d.AddBaseTokenOnly.IsWorkerOk(w.Address()))
	err = w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.AddBaseTokenOnly,
		Params:   strategy.AddBaseTokenOnlyParams{},
	})
	require.ErrorIs(t, err, types.ErrBadWorker)
}

func TestParamsMustMatch(t *testing.T) {
	d, w, ctx := setup(t)

	err := w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.AddBaseTokenOnly,
		Params:   strategy.LiquidateParams{},
	})
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	err = w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{Strategy: d.Liquidate})
	require.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestSlippageProtection(t *testing.T) {
	d, w, ctx := setup(t)

	// 0.1 WBNB buys 0.00907 CAKE from the 1 WBNB : 0.1 CAKE pool.
	err := w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.AddBaseTokenOnly,
		Params:   strategy.AddBaseTokenOnlyParams{MinFarmingAmount: units("0.01")},
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	require.NoError(t, w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.AddBaseTokenOnly,
		Params:   strategy.AddBaseTokenOnlyParams{MinFarmingAmount: units("0.009")},
	}))

	err = w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.Liquidate,
		Params:   strategy.LiquidateParams{MinBaseAmount: units("0.1")},
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	err = w.Work(ctx, d.Alice, 0, d.Alice, units("0.05"), strategy.Call{
		Strategy: d.WithdrawMinimizeTrading,
		Params:   strategy.WithdrawMinimizeTradingParams{MinFarmingAmount: units("0.005")},
	})
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
	require.Equal(t, "9070243237099340", w.Shares(0).String())
}

func TestAddBaseWithFarmNeedsFunds(t *testing.T) {
	d, w, ctx := setup(t)

	// The worker has no fund requester, so only a zero farming amount works.
	err := w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.AddBaseWithFarm,
		Params:   strategy.AddBaseWithFarmParams{FarmingAmount: units("0.01")},
	})
	require.ErrorIs(t, err, types.ErrNotInExecution)

	require.NoError(t, w.Work(ctx, d.Alice, 0, d.Alice, sdkmath.ZeroInt(), strategy.Call{
		Strategy: d.AddBaseWithFarm,
		Params:   strategy.AddBaseWithFarmParams{},
	}))
	require.Equal(t, "9070243237099340", w.Shares(0).String())
}

func TestParamsKind(t *testing.T) {
	require.Equal(t, "add_base_token_only", strategy.AddBaseTokenOnlyParams{}.Kind())
	require.Equal(t, "add_base_with_farm", strategy.AddBaseWithFarmParams{}.Kind())
	require.Equal(t, "withdraw_minimize_trading", strategy.WithdrawMinimizeTradingParams{}.Kind())
	require.Equal(t, "liquidate", strategy.LiquidateParams{}.Kind())
}
