package planner_test

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/config"
	"github.com/elys-network/farmworker/internal/planner"
	"github.com/elys-network/farmworker/internal/simulations"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/vault"
	"github.com/elys-network/farmworker/internal/worker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	workerA = common.HexToAddress("0xa1")
	workerB = common.HexToAddress("0xb2")
)

func units(s string) sdkmath.Int { return utils.MustParseUnits(s, 18) }

type fakeSimulator struct {
	reinvests map[common.Address]simulations.ReinvestEstimationResult
	kills     map[uint64]simulations.KillEstimationResult
	failing   map[uint64]bool
	killCalls []uint64
}

func (f *fakeSimulator) Reinvest(_ context.Context, w common.Address) (simulations.ReinvestEstimationResult, error) {
	est, ok := f.reinvests[w]
	if !ok {
		return est, errors.New("no reinvest estimate")
	}
	return est, nil
}

func (f *fakeSimulator) Kill(_ context.Context, _ common.Address, id uint64) (simulations.KillEstimationResult, error) {
	f.killCalls = append(f.killCalls, id)
	if f.failing[id] {
		return simulations.KillEstimationResult{}, errors.New("position is healthy")
	}
	est, ok := f.kills[id]
	if !ok {
		est = killEstimate("0.01", 0.3)
	}
	return est, nil
}

func killEstimate(prize string, impact float64) simulations.KillEstimationResult {
	return simulations.KillEstimationResult{
		KillResult:  vault.KillResult{Proceeds: units("0.6"), Debt: units("0.5"), Prize: units(prize), Left: units("0.04")},
		PriceImpact: impact,
	}
}

func reinvestEstimate(reward, bounty string, impact float64) simulations.ReinvestEstimationResult {
	return simulations.ReinvestEstimationResult{
		ReinvestResult: worker.ReinvestResult{Reward: units(reward), CallerBounty: units(bounty)},
		PriceImpact:    impact,
	}
}

func workerSnapshot(addr common.Address, pending string) types.WorkerSnapshot {
	return types.WorkerSnapshot{
		Address:        addr,
		Name:           addr.Hex(),
		RewardToken:    config.SymbolFarming,
		RewardDecimals: 18,
		TotalShare:     units("1"),
		TotalBalance:   units("1"),
		PendingReward:  units(pending),
	}
}

func position(id uint64, ratio float64, killable bool) types.PositionSnapshot {
	return types.PositionSnapshot{ID: id, Worker: workerA, DebtRatioPercent: ratio, Killable: killable}
}

func input() planner.Input {
	return planner.Input{VaultDecimals: 18, Params: config.DefaultWorkerParameters}
}

func TestIsKillable(t *testing.T) {
	// 80% kill factor: killable once debt is above 80% of health.
	require.False(t, planner.IsKillable(units("1"), units("0.8"), 8000))
	require.True(t, planner.IsKillable(units("1"), units("0.800000000000000001"), 8000))
	require.False(t, planner.IsKillable(units("1"), sdkmath.ZeroInt(), 8000))
	require.True(t, planner.IsKillable(sdkmath.ZeroInt(), units("0.1"), 8000))
}

func TestDebtRatioPercent(t *testing.T) {
	require.InDelta(t, 50.0, planner.DebtRatioPercent(units("2"), units("1")), 1e-9)
	require.Equal(t, 0.0, planner.DebtRatioPercent(units("2"), sdkmath.ZeroInt()))
	require.Equal(t, 100.0, planner.DebtRatioPercent(sdkmath.ZeroInt(), units("1")))
}

func TestPlanKillsWorstFirst(t *testing.T) {
	in := input()
	in.Positions = []types.PositionSnapshot{
		position(1, 82, true),
		position(2, 60, false),
		position(3, 95, true),
		position(4, 82, true),
	}
	sim := &fakeSimulator{}

	plan, err := planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 3)
	require.Equal(t, []uint64{3, 1, 4}, []uint64{plan.Actions[0].PositionID, plan.Actions[1].PositionID, plan.Actions[2].PositionID})
	for _, a := range plan.Actions {
		require.Equal(t, types.ActionKill, a.Type)
		require.Equal(t, units("0.01"), a.ExpectedPrize)
		require.Equal(t, units("0.6"), a.ExpectedProceeds)
	}
}

func TestPlanKillLimitAndPrize(t *testing.T) {
	in := input()
	in.Params.MaxKillsPerCycle = 2
	in.Params.MinKillPrize = "0.005"
	in.Positions = []types.PositionSnapshot{
		position(1, 90, true),
		position(2, 85, true),
		position(3, 84, true),
		position(4, 83, true),
	}
	sim := &fakeSimulator{
		kills:   map[uint64]simulations.KillEstimationResult{2: killEstimate("0.001", 0.1)},
		failing: map[uint64]bool{1: true},
	}

	plan, err := planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	require.Equal(t, uint64(3), plan.Actions[0].PositionID)
	require.Equal(t, uint64(4), plan.Actions[1].PositionID)
	require.Equal(t, []uint64{1, 2, 3, 4}, sim.killCalls)

	in.Params.MaxKillsPerCycle = 0
	sim.killCalls = nil
	plan, err = planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Empty(t, plan.Actions)
	require.Empty(t, sim.killCalls)
	require.Equal(t, "No action needed", plan.GoalDescription)
}

func TestPlanReinvests(t *testing.T) {
	in := input()
	in.Workers = []types.WorkerSnapshot{
		workerSnapshot(workerA, "1"),
		workerSnapshot(workerB, "0.01"),
	}
	sim := &fakeSimulator{reinvests: map[common.Address]simulations.ReinvestEstimationResult{
		workerA: reinvestEstimate("1", "0.01", 0.3),
		workerB: reinvestEstimate("0.01", "0.0001", 0.3),
	}}

	plan, err := planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	a := plan.Actions[0]
	require.Equal(t, types.ActionReinvest, a.Type)
	require.Equal(t, workerA, a.Worker)
	require.Equal(t, units("1"), a.ExpectedReward)
	require.Equal(t, units("0.01"), a.ExpectedBounty)

	// Too much price impact defers the reinvest.
	sim.reinvests[workerA] = reinvestEstimate("1", "0.01", 7.5)
	plan, err = planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Empty(t, plan.Actions)

	// Nothing staked, nothing to compound.
	in.Workers[0].TotalShare = sdkmath.ZeroInt()
	sim.reinvests[workerA] = reinvestEstimate("1", "0.01", 0.3)
	plan, err = planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Empty(t, plan.Actions)
}

func TestPlanKillsBeforeReinvests(t *testing.T) {
	in := input()
	in.Workers = []types.WorkerSnapshot{workerSnapshot(workerA, "1")}
	in.Positions = []types.PositionSnapshot{position(7, 88, true)}
	sim := &fakeSimulator{reinvests: map[common.Address]simulations.ReinvestEstimationResult{
		workerA: reinvestEstimate("1", "0.01", 0.3),
	}}

	plan, err := planner.GenerateActionPlan(context.Background(), in, sim)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	require.Equal(t, types.ActionKill, plan.Actions[0].Type)
	require.Equal(t, types.ActionReinvest, plan.Actions[1].Type)
	require.Equal(t, "Kill 1 unhealthy position(s), reinvest 1 worker(s)", plan.GoalDescription)
}

func TestPlanValidation(t *testing.T) {
	ctx := context.Background()

	_, err := planner.GenerateActionPlan(ctx, input(), nil)
	require.ErrorIs(t, err, planner.ErrMissingSimulator)

	in := input()
	in.Params.MaxPriceImpactPct = 0
	_, err = planner.GenerateActionPlan(ctx, in, &fakeSimulator{})
	require.ErrorIs(t, err, planner.ErrInvalidParams)

	in = input()
	in.Params.MinKillPrize = "lots"
	_, err = planner.GenerateActionPlan(ctx, in, &fakeSimulator{})
	require.ErrorIs(t, err, planner.ErrInvalidParams)

	in = input()
	in.VaultDecimals = -1
	_, err = planner.GenerateActionPlan(ctx, in, &fakeSimulator{})
	require.ErrorIs(t, err, planner.ErrInvalidVaultToken)

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	in = input()
	in.Positions = []types.PositionSnapshot{position(1, 90, true)}
	_, err = planner.GenerateActionPlan(ctx, in, &fakeSimulator{})
	require.ErrorIs(t, err, context.Canceled)
}
