package keeper_test

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/deploy"
	"github.com/elys-network/farmworker/internal/keeper"
	"github.com/elys-network/farmworker/internal/metrics"
	"github.com/elys-network/farmworker/internal/state"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func units(s string) sdkmath.Int { return utils.MustParseUnits(s, 18) }

type fixture struct {
	d       *deploy.Deployment
	ctx     context.Context
	store   *state.Memory
	metrics *metrics.Metrics
}

func setup(t *testing.T, positions uint64) *fixture {
	t.Helper()
	ctx := context.Background()
	d, err := deploy.Genesis(ctx, deploy.DefaultOptions())
	require.NoError(t, err)
	_, err = d.SeedPositions(ctx, positions)
	require.NoError(t, err)
	m, err := metrics.New()
	require.NoError(t, err)
	return &fixture{d: d, ctx: ctx, store: state.NewMemory(10), metrics: m}
}

func (f *fixture) config() keeper.Config {
	return keeper.Config{
		Host:    f.d.Host,
		Router:  f.d.Router,
		Vault:   f.d.Vault,
		Workers: f.d.Workers(),
		Account: f.d.Eve,
		Params:  f.d.Params,
		Store:   f.store,
		Metrics: f.metrics,
		Market:  f.d,
	}
}

func (f *fixture) keeper(t *testing.T, mutate func(*keeper.Config)) *keeper.Keeper {
	t.Helper()
	cfg := f.config()
	if mutate != nil {
		mutate(&cfg)
	}
	k, err := keeper.NewKeeper(cfg)
	require.NoError(t, err)
	return k
}

func TestNewKeeperValidation(t *testing.T) {
	f := setup(t, 0)

	for name, mutate := range map[string]func(*keeper.Config){
		"no host":    func(c *keeper.Config) { c.Host = nil },
		"no router":  func(c *keeper.Config) { c.Router = nil },
		"no vault":   func(c *keeper.Config) { c.Vault = nil },
		"no workers": func(c *keeper.Config) { c.Workers = nil },
		"no store":   func(c *keeper.Config) { c.Store = nil },
		"no account": func(c *keeper.Config) { c.Account = [20]byte{} },
		"no market": func(c *keeper.Config) {
			c.Market = nil
			c.SellPressure = units("1")
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := f.config()
			mutate(&cfg)
			_, err := keeper.NewKeeper(cfg)
			require.Error(t, err)
		})
	}
}

func TestCycleReinvests(t *testing.T) {
	f := setup(t, 2)
	k := f.keeper(t, func(c *keeper.Config) { c.BlocksPerCycle = 100 })

	cakeBefore := f.d.Cake.BalanceOf(f.d.Eve)
	startBlock := f.d.Host.BlockNumber()

	snap, err := k.RunCycle(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, snap.CycleNumber)
	require.Equal(t, startBlock+100, snap.StartBlock)
	require.Greater(t, snap.EndBlock, snap.StartBlock)
	require.Len(t, snap.InitialPositions, 2)
	require.Len(t, snap.FinalPositions, 2)
	require.Len(t, snap.Pairs, 3)
	require.Zero(t, snap.PositionsAtRisk)

	require.Len(t, snap.ActionPlan.Actions, 1)
	require.Equal(t, types.ActionReinvest, snap.ActionPlan.Actions[0].Type)
	require.Len(t, snap.ActionReceipts, 1)
	receipt := snap.ActionReceipts[0]
	require.True(t, receipt.Success, receipt.Message)
	require.Len(t, snap.TxIDs, 1)
	require.Equal(t, receipt.TxID, snap.TxIDs[0])
	require.Len(t, receipt.ResultingCoins, 1)
	require.Equal(t, "cake", receipt.ResultingCoins[0].Denom)

	gained := f.d.Cake.BalanceOf(f.d.Eve).Sub(cakeBefore)
	require.True(t, gained.IsPositive())
	require.Equal(t, gained, receipt.ResultingCoins[0].Amount)
	require.Equal(t, receipt.Action.ExpectedBounty, gained)
	require.InDelta(t, utils.ToFloat64OrZero(gained, 18), snap.BountyEarned, 1e-12)
	require.True(t, snap.FinalWorkers[0].PendingReward.LT(snap.InitialWorkers[0].PendingReward))
	require.True(t, snap.FinalWorkers[0].TotalBalance.GT(snap.InitialWorkers[0].TotalBalance))

	saved, err := f.store.CycleByID(snap.SnapshotID)
	require.NoError(t, err)
	require.Equal(t, snap.CycleID, saved.CycleID)
	require.Len(t, saved.ActionReceipts, 1)

	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Cycles))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reinvests))
	require.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Kills))
	require.Equal(t, float64(snap.EndBlock), testutil.ToFloat64(f.metrics.BlockHeight))

	snap, err = k.RunCycle(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snap.CycleNumber)
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Cycles))

	perf, err := f.store.Performance()
	require.NoError(t, err)
	require.Equal(t, 2, perf.TotalCycles)
	require.Equal(t, perf.Reinvests, int(testutil.ToFloat64(f.metrics.Reinvests)))
}

func TestCycleWithoutActions(t *testing.T) {
	f := setup(t, 1)
	k := f.keeper(t, func(c *keeper.Config) { c.Params.MinReinvestReward = "1000" })

	snap, err := k.RunCycle(f.ctx)
	require.NoError(t, err)
	require.Empty(t, snap.ActionPlan.Actions)
	require.Equal(t, "No action needed", snap.ActionPlan.GoalDescription)
	require.Empty(t, snap.ActionReceipts)
	require.Empty(t, snap.TxIDs)
	require.Equal(t, snap.StartBlock, snap.EndBlock)
	require.Equal(t, snap.InitialPositions, snap.FinalPositions)
}

func TestCycleKillsAfterPriceDrop(t *testing.T) {
	f := setup(t, 1)
	k := f.keeper(t, func(c *keeper.Config) { c.SellPressure = units("1.4") })

	eve := f.d.Host.NativeBalance(f.d.Eve)
	snap, err := k.RunCycle(f.ctx)
	require.NoError(t, err)

	require.Len(t, snap.InitialPositions, 1)
	pos := snap.InitialPositions[0]
	require.True(t, pos.Killable)
	require.Greater(t, pos.DebtRatioPercent, 80.0)
	require.Equal(t, 1, snap.PositionsAtRisk)

	require.NotEmpty(t, snap.ActionPlan.Actions)
	kill := snap.ActionPlan.Actions[0]
	require.Equal(t, types.ActionKill, kill.Type)
	require.Equal(t, pos.ID, kill.PositionID)
	require.True(t, kill.ExpectedPrize.IsPositive())

	receipt := snap.ActionReceipts[0]
	require.True(t, receipt.Success, receipt.Message)
	prize := f.d.Host.NativeBalance(f.d.Eve).Sub(eve)
	require.Equal(t, kill.ExpectedPrize, prize)
	require.Equal(t, prize, receipt.ResultingCoins[0].Amount)
	require.InDelta(t, utils.ToFloat64OrZero(prize, 18), snap.PrizeEarned, 1e-12)

	require.Empty(t, snap.FinalPositions)
	require.Zero(t, snap.PositionsAtRisk)
	require.Zero(t, snap.FailedActions)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Kills))

	closed, err := k.Position(f.ctx, pos.ID)
	require.NoError(t, err)
	require.True(t, closed.DebtShare.IsZero())
	require.True(t, closed.Shares.IsZero())

	perf, err := f.store.Performance()
	require.NoError(t, err)
	require.Equal(t, 1, perf.Kills)
	require.Equal(t, 1, perf.TotalCycles)
}

func TestCycleRespectsKillLimit(t *testing.T) {
	f := setup(t, 1)
	k := f.keeper(t, func(c *keeper.Config) {
		c.SellPressure = units("1.4")
		c.Params.MaxKillsPerCycle = 0
		c.Params.MinReinvestReward = "1000"
	})

	snap, err := k.RunCycle(f.ctx)
	require.NoError(t, err)
	require.Empty(t, snap.ActionPlan.Actions)
	require.Len(t, snap.FinalPositions, 1)
	require.Equal(t, 1, snap.PositionsAtRisk)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PositionsAtRisk))
}

func TestLiveViews(t *testing.T) {
	f := setup(t, 3)
	k := f.keeper(t, nil)

	positions, err := k.Positions(f.ctx)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	for i, p := range positions {
		require.Equal(t, uint64(i+1), p.ID)
		require.Equal(t, f.d.Worker.Address(), p.Worker)
		require.True(t, p.Debt.IsPositive())
		require.False(t, p.Killable)
	}
	require.Equal(t, f.d.Alice, positions[0].Owner)
	require.Equal(t, f.d.Bob, positions[1].Owner)

	p, err := k.Position(f.ctx, 2)
	require.NoError(t, err)
	require.Equal(t, positions[1].Health, p.Health)

	_, err = k.Position(f.ctx, 42)
	require.ErrorIs(t, err, keeper.ErrUnknownPosition)

	workers, err := k.Workers(f.ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	require.Equal(t, f.d.Worker.Address(), workers[0].Address)
	require.Equal(t, "CAKE", workers[0].RewardToken)
}
