package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

func (v *Vault) admin(ctx context.Context, caller common.Address, fn func(ctx context.Context) error) error {
	return v.host.Transact(ctx, func(ctx context.Context) error {
		if caller != v.owner {
			return errorsmod.Wrapf(types.ErrUnauthorized, "vault: %s is not the owner", caller.Hex())
		}
		return fn(ctx)
	})
}

// SetWorkerConfig registers w, or updates its risk parameters.
func (v *Vault) SetWorkerConfig(ctx context.Context, caller common.Address, w Worker, cfg WorkerConfig) error {
	return v.admin(ctx, caller, func(ctx context.Context) error {
		if w == nil {
			return errorsmod.Wrap(types.ErrInvalidParameter, "vault: worker is required")
		}
		if cfg.WorkFactorBps > cfg.KillFactorBps || cfg.KillFactorBps > BpsDenominator {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "vault: work factor %d must not exceed kill factor %d, nor kill factor %d", cfg.WorkFactorBps, cfg.KillFactorBps, BpsDenominator)
		}
		v.workers.Set(ctx, w.Address(), registeredWorker{worker: w, config: cfg})
		v.logger.Info().
			Str("worker", w.Address().Hex()).
			Bool("accept_debt", cfg.AcceptDebt).
			Uint64("work_factor", cfg.WorkFactorBps).
			Uint64("kill_factor", cfg.KillFactorBps).
			Msg("SetWorkerConfig")
		return nil
	})
}

// UpdateConfig replaces the vault parameters. Interest up to now accrues at the old rate.
func (v *Vault) UpdateConfig(ctx context.Context, caller common.Address, cfg Config) error {
	return v.admin(ctx, caller, func(ctx context.Context) error {
		if err := validateConfig(cfg); err != nil {
			return err
		}
		v.accrue(ctx)
		v.config.Set(ctx, cfg)
		return nil
	})
}

// WithdrawReserve pays amount out of the reserve pool to to.
func (v *Vault) WithdrawReserve(ctx context.Context, caller, to common.Address, amount sdkmath.Int) error {
	return v.admin(ctx, caller, func(ctx context.Context) error {
		reserve := v.reservePool.Get()
		if amount.IsNegative() || amount.GT(reserve) {
			return errorsmod.Wrapf(types.ErrInsufficientBalance, "vault: reserve is %s, %s requested", reserve, amount)
		}
		v.reservePool.Set(ctx, reserve.Sub(amount))
		return v.token.Transfer(ctx, v.address, to, amount)
	})
}
