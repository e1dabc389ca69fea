package worker

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// admin runs fn as an owner-only transaction.
func (w *Worker) admin(ctx context.Context, caller common.Address, fn func(ctx context.Context) error) error {
	return w.host.Transact(ctx, func(ctx context.Context) error {
		if caller != w.owner {
			return errorsmod.Wrapf(types.ErrUnauthorized, "worker: %s is not the owner", caller.Hex())
		}
		return fn(ctx)
	})
}

func (w *Worker) SetStrategyOk(ctx context.Context, caller common.Address, strategies []common.Address, ok bool) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		for _, s := range strategies {
			w.okStrategies.Set(ctx, s, ok)
		}
		return nil
	})
}

func (w *Worker) SetReinvestorOk(ctx context.Context, caller common.Address, reinvestors []common.Address, ok bool) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		for _, r := range reinvestors {
			w.okReinvestors.Set(ctx, r, ok)
		}
		return nil
	})
}

func (w *Worker) SetReinvestBountyBps(ctx context.Context, caller common.Address, value uint64) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		if limit := w.maxReinvestBountyBps.Get(); value > limit {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "worker: reinvest bounty %d exceeds max %d", value, limit)
		}
		w.reinvestBountyBps.Set(ctx, value)
		return nil
	})
}

func (w *Worker) SetMaxReinvestBountyBps(ctx context.Context, caller common.Address, value uint64) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		if current := w.reinvestBountyBps.Get(); value < current {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "worker: max reinvest bounty %d below current %d", value, current)
		}
		if value > MaxReinvestBountyCap {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "worker: max reinvest bounty %d exceeds %d", value, MaxReinvestBountyCap)
		}
		w.maxReinvestBountyBps.Set(ctx, value)
		return nil
	})
}

func (w *Worker) SetBeneficialVaultBountyBps(ctx context.Context, caller common.Address, value uint64) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		if value > BpsDenominator {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "worker: beneficial vault bounty %d exceeds %d", value, BpsDenominator)
		}
		w.beneficialVaultBountyBps.Set(ctx, value)
		return nil
	})
}

// SetBeneficialVault replaces the beneficial vault together with its bounty and the path that
// buys its token.
func (w *Worker) SetBeneficialVault(ctx context.Context, caller common.Address, bountyBps uint64, vault BeneficialVault, rewardPath []common.Address) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		if bountyBps > BpsDenominator {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "worker: beneficial vault bounty %d exceeds %d", bountyBps, BpsDenominator)
		}
		w.beneficialVault.Set(ctx, vault)
		w.beneficialVaultBountyBps.Set(ctx, bountyBps)
		return w.setRewardPath(ctx, rewardPath)
	})
}

func (w *Worker) SetCriticalStrategies(ctx context.Context, caller common.Address, add, liquidate strategy.Strategy) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		if add == nil || liquidate == nil {
			return errorsmod.Wrap(types.ErrInvalidParameter, "worker: critical strategies are required")
		}
		w.addStrategy.Set(ctx, add)
		w.liquidateStrategy.Set(ctx, liquidate)
		return nil
	})
}

func (w *Worker) SetPath(ctx context.Context, caller common.Address, path []common.Address) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		return w.setPath(ctx, path)
	})
}

func (w *Worker) SetRewardPath(ctx context.Context, caller common.Address, path []common.Address) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		return w.setRewardPath(ctx, path)
	})
}

func (w *Worker) SetReinvestPath(ctx context.Context, caller common.Address, path []common.Address) error {
	return w.admin(ctx, caller, func(ctx context.Context) error {
		return w.setReinvestPath(ctx, path)
	})
}

// checkPath requires path to run from "from" to "to" over existing pairs.
func (w *Worker) checkPath(path []common.Address, from, to common.Address) error {
	if len(path) < 2 || path[0] != from || path[len(path)-1] != to {
		return errorsmod.Wrapf(types.ErrInvalidPath, "worker: path must run from %s to %s", from.Hex(), to.Hex())
	}
	for i := 0; i < len(path)-1; i++ {
		if _, ok := w.router.Factory().GetPair(path[i], path[i+1]); !ok {
			return errorsmod.Wrapf(types.ErrInvalidPath, "worker: no pair for %s/%s", path[i].Hex(), path[i+1].Hex())
		}
	}
	return nil
}

func (w *Worker) setPath(ctx context.Context, path []common.Address) error {
	if err := w.checkPath(path, w.baseToken.Address(), w.farmingToken.Address()); err != nil {
		return err
	}
	w.path.Set(ctx, append([]common.Address(nil), path...))
	return nil
}

func (w *Worker) setRewardPath(ctx context.Context, path []common.Address) error {
	vault := w.beneficialVault.Get()
	if vault == nil {
		return errorsmod.Wrap(types.ErrInvalidParameter, "worker: reward path without a beneficial vault")
	}
	if vault.Token().Address() != w.rewardToken.Address() {
		if err := w.checkPath(path, w.rewardToken.Address(), vault.Token().Address()); err != nil {
			return err
		}
	}
	w.rewardPath.Set(ctx, append([]common.Address(nil), path...))
	return nil
}

func (w *Worker) setReinvestPath(ctx context.Context, path []common.Address) error {
	if err := w.checkPath(path, w.rewardToken.Address(), w.farmingToken.Address()); err != nil {
		return err
	}
	w.reinvestPath.Set(ctx, append([]common.Address(nil), path...))
	return nil
}
