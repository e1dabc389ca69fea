package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/simulations"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/ethereum/go-ethereum/common"
)

// Error definitions for input validation
var (
	ErrInvalidParams     = errors.New("worker parameters contain invalid values")
	ErrMissingSimulator  = errors.New("simulator is required")
	ErrInvalidVaultToken = errors.New("vault token decimals are invalid")
)

const bpsDenominator = 10000

// Simulator estimates keeper actions against the current chain state without changing it.
type Simulator interface {
	Reinvest(ctx context.Context, worker common.Address) (simulations.ReinvestEstimationResult, error)
	Kill(ctx context.Context, worker common.Address, id uint64) (simulations.KillEstimationResult, error)
}

// Input is the assessed state a plan is built from.
type Input struct {
	Workers       []types.WorkerSnapshot
	Positions     []types.PositionSnapshot
	VaultDecimals int
	Params        types.WorkerParameters
}

// IsKillable reports whether debt exceeds killFactorBps of health, the condition under which the
// vault lets anyone liquidate a position.
func IsKillable(health, debt sdkmath.Int, killFactorBps uint64) bool {
	if !debt.IsPositive() {
		return false
	}
	return health.MulRaw(int64(killFactorBps)).LT(debt.MulRaw(bpsDenominator))
}

// DebtRatioPercent is debt over health in percent. A position without health but with debt is
// reported at 100%.
func DebtRatioPercent(health, debt sdkmath.Int) float64 {
	if !debt.IsPositive() {
		return 0
	}
	if !health.IsPositive() {
		return 100
	}
	return utils.Ratio(debt, health) * 100
}

// GenerateActionPlan decides which positions to kill and which workers to reinvest.
//
// Kills come first, worst debt ratio first and at most MaxKillsPerCycle of them, and are dropped
// when the simulated prize is below MinKillPrize. Workers whose pending reward reaches
// MinReinvestReward are reinvested unless the simulated swap impact exceeds MaxPriceImpactPct.
// Actions whose simulation fails are left out of the plan.
func GenerateActionPlan(ctx context.Context, in Input, sim Simulator) (types.ActionPlan, error) {
	planLogger := logger.GetForComponent("action_planner")

	if err := validateInputs(in, sim); err != nil {
		planLogger.Error().Err(err).Msg("Input validation failed")
		return types.ActionPlan{}, err
	}

	plan := types.ActionPlan{Actions: make([]types.PlannedAction, 0)}

	kills, err := planKills(ctx, in, sim)
	if err != nil {
		return types.ActionPlan{}, err
	}
	plan.Actions = append(plan.Actions, kills...)

	reinvests, err := planReinvests(ctx, in, sim)
	if err != nil {
		return types.ActionPlan{}, err
	}
	plan.Actions = append(plan.Actions, reinvests...)

	switch {
	case len(plan.Actions) == 0:
		plan.GoalDescription = "No action needed"
	default:
		plan.GoalDescription = fmt.Sprintf("Kill %d unhealthy position(s), reinvest %d worker(s)", len(kills), len(reinvests))
	}

	planLogger.Info().
		Int("kills", len(kills)).
		Int("reinvests", len(reinvests)).
		Msg("Action plan generated")
	return plan, nil
}

func validateInputs(in Input, sim Simulator) error {
	if sim == nil {
		return ErrMissingSimulator
	}
	if in.VaultDecimals < 0 || in.VaultDecimals > 18 {
		return fmt.Errorf("%w: %d", ErrInvalidVaultToken, in.VaultDecimals)
	}
	p := in.Params
	if p.MaxKillsPerCycle < 0 {
		return fmt.Errorf("%w: max kills per cycle %d", ErrInvalidParams, p.MaxKillsPerCycle)
	}
	if p.MaxPriceImpactPct <= 0 || p.MaxPriceImpactPct > 100 {
		return fmt.Errorf("%w: max price impact %.2f%%", ErrInvalidParams, p.MaxPriceImpactPct)
	}
	if _, err := utils.ParseUnits(p.MinKillPrize, in.VaultDecimals); err != nil {
		return fmt.Errorf("%w: min kill prize: %v", ErrInvalidParams, err)
	}
	for _, w := range in.Workers {
		if _, err := utils.ParseUnits(p.MinReinvestReward, w.RewardDecimals); err != nil {
			return fmt.Errorf("%w: min reinvest reward for %s: %v", ErrInvalidParams, w.Name, err)
		}
	}
	return nil
}

func planKills(ctx context.Context, in Input, sim Simulator) ([]types.PlannedAction, error) {
	killLogger := logger.GetForComponent("action_planner")
	minPrize := utils.MustParseUnits(in.Params.MinKillPrize, in.VaultDecimals)

	candidates := make([]types.PositionSnapshot, 0)
	for _, pos := range in.Positions {
		if pos.Killable {
			candidates = append(candidates, pos)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DebtRatioPercent != candidates[j].DebtRatioPercent {
			return candidates[i].DebtRatioPercent > candidates[j].DebtRatioPercent
		}
		return candidates[i].ID < candidates[j].ID
	})

	actions := make([]types.PlannedAction, 0)
	for _, pos := range candidates {
		if len(actions) >= in.Params.MaxKillsPerCycle {
			killLogger.Info().
				Int("deferred", len(candidates)-len(actions)).
				Int("maxKillsPerCycle", in.Params.MaxKillsPerCycle).
				Msg("Kill limit reached, remaining positions deferred to the next cycle")
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		est, err := sim.Kill(ctx, pos.Worker, pos.ID)
		if err != nil {
			killLogger.Warn().Err(err).Uint64("id", pos.ID).Msg("Kill simulation failed, skipping position")
			continue
		}
		if est.Prize.LT(minPrize) {
			killLogger.Info().
				Uint64("id", pos.ID).
				Str("prize", est.Prize.String()).
				Str("minPrize", minPrize.String()).
				Msg("Kill prize below threshold, skipping position")
			continue
		}

		actions = append(actions, types.PlannedAction{
			Type:             types.ActionKill,
			Worker:           pos.Worker,
			PositionID:       pos.ID,
			ExpectedProceeds: est.Proceeds,
			ExpectedPrize:    est.Prize,
			PriceImpact:      est.PriceImpact,
		})
		killLogger.Debug().
			Uint64("id", pos.ID).
			Float64("debtRatio", pos.DebtRatioPercent).
			Str("prize", est.Prize.String()).
			Msg("Planned kill")
	}
	return actions, nil
}

func planReinvests(ctx context.Context, in Input, sim Simulator) ([]types.PlannedAction, error) {
	reinvestLogger := logger.GetForComponent("action_planner")

	actions := make([]types.PlannedAction, 0)
	for _, w := range in.Workers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		minReward := utils.MustParseUnits(in.Params.MinReinvestReward, w.RewardDecimals)
		if w.TotalShare.IsNil() || w.TotalShare.IsZero() || w.PendingReward.IsNil() || w.PendingReward.LT(minReward) {
			continue
		}

		est, err := sim.Reinvest(ctx, w.Address)
		if err != nil {
			reinvestLogger.Warn().Err(err).Str("worker", w.Name).Msg("Reinvest simulation failed, skipping worker")
			continue
		}
		if est.PriceImpact > in.Params.MaxPriceImpactPct {
			reinvestLogger.Info().
				Str("worker", w.Name).
				Float64("priceImpact", est.PriceImpact).
				Float64("maxPriceImpact", in.Params.MaxPriceImpactPct).
				Msg("Reinvest price impact too high, deferring")
			continue
		}

		actions = append(actions, types.PlannedAction{
			Type:           types.ActionReinvest,
			Worker:         w.Address,
			ExpectedReward: est.Reward,
			ExpectedBounty: est.CallerBounty,
			PriceImpact:    est.PriceImpact,
		})
	}
	return actions, nil
}
