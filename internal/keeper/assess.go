package keeper

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/planner"
	"github.com/elys-network/farmworker/internal/simulations"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/vault"
	"github.com/ethereum/go-ethereum/common"
)

// assessment is the chain state a cycle plans against.
type assessment struct {
	workers         []types.WorkerSnapshot
	positions       []types.PositionSnapshot // open positions only
	pairs           []types.PairSnapshot
	vaultTotalToken float64
	atRisk          int
}

func (k *Keeper) assess(ctx context.Context) (assessment, error) {
	var a assessment
	err := k.host.View(ctx, func(ctx context.Context) error {
		var err error
		if a.positions, err = k.openPositions(ctx); err != nil {
			return err
		}
		a.workers = k.workerSnapshots()
		a.pairs = k.pairSnapshots()
		a.vaultTotalToken = utils.ToFloat64OrZero(k.vault.TotalToken(), k.vault.Token().Decimals())
		return nil
	})
	if err != nil {
		return a, err
	}
	for _, p := range a.positions {
		if p.Killable || p.DebtRatioPercent >= k.params.AtRiskDebtRatioPct {
			a.atRisk++
		}
	}
	return a, nil
}

// openPositions lists positions that still hold debt or worker shares, by id.
func (k *Keeper) openPositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	ids := k.vault.PositionIDs()
	positions := make([]types.PositionSnapshot, 0, len(ids))
	for _, id := range ids {
		pos, ok := k.vault.Position(id)
		if !ok {
			continue
		}
		snap, err := k.positionSnapshot(ctx, id, pos)
		if err != nil {
			k.logger.Warn().Err(err).Uint64("id", id).Msg("Skipping position that cannot be valued")
			continue
		}
		if !snap.DebtShare.IsPositive() && !snap.Shares.IsPositive() {
			continue
		}
		positions = append(positions, snap)
	}
	return positions, nil
}

func (k *Keeper) positionSnapshot(ctx context.Context, id uint64, pos vault.Position) (types.PositionSnapshot, error) {
	snap := types.PositionSnapshot{
		ID:        id,
		Worker:    pos.Worker,
		Owner:     pos.Owner,
		DebtShare: pos.DebtShare,
		Shares:    sdkmath.ZeroInt(),
	}
	if w, ok := k.byAddr[pos.Worker]; ok {
		snap.Shares = w.Shares(id)
	}

	health, debt, err := k.vault.PositionInfo(ctx, id)
	if err != nil {
		return snap, err
	}
	snap.Health, snap.Debt = health, debt
	snap.DebtRatioPercent = planner.DebtRatioPercent(health, debt)
	if cfg, ok := k.vault.WorkerConfig(pos.Worker); ok {
		snap.Killable = planner.IsKillable(health, debt, cfg.KillFactorBps)
	}
	return snap, nil
}

func (k *Keeper) workerSnapshots() []types.WorkerSnapshot {
	out := make([]types.WorkerSnapshot, 0, len(k.workers))
	for _, w := range k.workers {
		out = append(out, w.Snapshot())
	}
	return out
}

func (k *Keeper) pairSnapshots() []types.PairSnapshot {
	pairs := k.router.Factory().AllPairs()
	out := make([]types.PairSnapshot, 0, len(pairs))
	for _, p := range pairs {
		r0, r1 := p.GetReserves()
		t0, t1 := p.Token0(), p.Token1()
		snap := types.PairSnapshot{
			Address:     p.Address(),
			Token0:      t0.Symbol(),
			Token1:      t1.Symbol(),
			Reserve0:    r0,
			Reserve1:    r1,
			TotalSupply: p.TotalSupply(),
		}
		if f0 := utils.ToFloat64OrZero(r0, t0.Decimals()); f0 > 0 {
			snap.Price0 = utils.ToFloat64OrZero(r1, t1.Decimals()) / f0
		}
		out = append(out, snap)
	}
	return out
}

// Positions returns the open vault positions as of the latest block.
func (k *Keeper) Positions(ctx context.Context) ([]types.PositionSnapshot, error) {
	var out []types.PositionSnapshot
	err := k.host.View(ctx, func(ctx context.Context) error {
		var err error
		out, err = k.openPositions(ctx)
		return err
	})
	return out, err
}

// Position returns position id, open or closed.
func (k *Keeper) Position(ctx context.Context, id uint64) (types.PositionSnapshot, error) {
	var out types.PositionSnapshot
	err := k.host.View(ctx, func(ctx context.Context) error {
		pos, ok := k.vault.Position(id)
		if !ok {
			return fmt.Errorf("position %d: %w", id, ErrUnknownPosition)
		}
		var err error
		out, err = k.positionSnapshot(ctx, id, pos)
		return err
	})
	return out, err
}

// Workers returns the state of every watched worker.
func (k *Keeper) Workers(ctx context.Context) ([]types.WorkerSnapshot, error) {
	var out []types.WorkerSnapshot
	err := k.host.View(ctx, func(ctx context.Context) error {
		out = k.workerSnapshots()
		return nil
	})
	return out, err
}

// Params returns the parameters the keeper plans with.
func (k *Keeper) Params() types.WorkerParameters { return k.params }

// simulator estimates actions for the planner by dry-running them as the keeper account.
type simulator struct {
	k *Keeper
}

var _ planner.Simulator = (*simulator)(nil)

func (s *simulator) Reinvest(ctx context.Context, addr common.Address) (simulations.ReinvestEstimationResult, error) {
	w, ok := s.k.byAddr[addr]
	if !ok {
		return simulations.ReinvestEstimationResult{}, fmt.Errorf("%w: %s", ErrUnknownWorker, addr.Hex())
	}
	return simulations.SimulateReinvest(ctx, s.k.host, s.k.router, w, s.k.account)
}

func (s *simulator) Kill(ctx context.Context, addr common.Address, id uint64) (simulations.KillEstimationResult, error) {
	w, ok := s.k.byAddr[addr]
	if !ok {
		return simulations.KillEstimationResult{}, fmt.Errorf("%w: %s", ErrUnknownWorker, addr.Hex())
	}
	return simulations.SimulateKill(ctx, s.k.host, s.k.router, s.k.vault, w, s.k.account, id)
}
