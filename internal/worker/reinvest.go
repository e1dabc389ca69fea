package worker

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// ReinvestResult describes what a reinvest paid and compounded.
type ReinvestResult struct {
	Reward           sdkmath.Int // Reward token harvested, including rewards collected during Work
	Bounty           sdkmath.Int // Total bounty carved out of Reward
	CallerBounty     sdkmath.Int // Reward token paid to the caller
	BeneficialBounty sdkmath.Int // Reward token sold for the beneficial vault
	BeneficialOut    sdkmath.Int // Beneficial vault token bought with BeneficialBounty
	Compounded       sdkmath.Int // Farming token staked without new shares
}

func zeroResult() ReinvestResult {
	return ReinvestResult{
		Reward:           sdkmath.ZeroInt(),
		Bounty:           sdkmath.ZeroInt(),
		CallerBounty:     sdkmath.ZeroInt(),
		BeneficialBounty: sdkmath.ZeroInt(),
		BeneficialOut:    sdkmath.ZeroInt(),
		Compounded:       sdkmath.ZeroInt(),
	}
}

// Reinvest harvests the staking reward, pays the caller and the beneficial vault their bounty and
// stakes the remainder for all positions. With nothing to harvest, or nobody staked, it changes
// nothing and succeeds.
func (w *Worker) Reinvest(ctx context.Context, caller common.Address) (ReinvestResult, error) {
	res := zeroResult()
	err := w.host.Transact(ctx, func(ctx context.Context) error {
		if !w.okReinvestors.Get(caller) {
			return errorsmod.Wrapf(types.ErrUnauthorized, "worker: %s is not a reinvestor", caller.Hex())
		}
		release, err := w.enter()
		if err != nil {
			return err
		}
		defer release()

		if w.ledger.TotalShare().IsZero() {
			return nil
		}
		harvested, err := w.chef.Withdraw(ctx, w.address, w.pid, sdkmath.ZeroInt())
		if err != nil {
			return err
		}
		w.creditReward(ctx, harvested)

		res.Reward = w.rewardBalance.Get()
		if res.Reward.IsZero() {
			return nil
		}

		res.Bounty = res.Reward.MulRaw(int64(w.reinvestBountyBps.Get())).Quo(bps)
		if res.Bounty.IsPositive() {
			res.BeneficialBounty = res.Bounty.MulRaw(int64(w.beneficialVaultBountyBps.Get())).Quo(bps)
			if res.BeneficialBounty.IsPositive() {
				if res.BeneficialOut, err = w.rewardToBeneficialVault(ctx, res.BeneficialBounty); err != nil {
					return err
				}
			}
			res.CallerBounty = res.Bounty.Sub(res.BeneficialBounty)
			if err := w.rewardToken.Transfer(ctx, w.address, caller, res.CallerBounty); err != nil {
				return err
			}
		}

		w.rewardBalance.Set(ctx, sdkmath.ZeroInt())
		if res.Compounded, err = w.convertReward(ctx, res.Reward.Sub(res.Bounty)); err != nil {
			return err
		}
		if res.Compounded.IsPositive() {
			if err := w.stake(ctx, res.Compounded); err != nil {
				return err
			}
			w.ledger.Compound(ctx, res.Compounded)
		}

		w.logger.Info().
			Str("caller", caller.Hex()).
			Str("reward", res.Reward.String()).
			Str("bounty", res.CallerBounty.String()).
			Str("beneficial", res.BeneficialBounty.String()).
			Str("compounded", res.Compounded.String()).
			Msg("Reinvest")
		return nil
	})
	if err != nil {
		return zeroResult(), err
	}
	return res, nil
}

// convertReward turns amount reward tokens into farming tokens along the reinvest path.
func (w *Worker) convertReward(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	if !amount.IsPositive() || w.rewardToken.Address() == w.farmingToken.Address() {
		return amount, nil
	}
	path := w.reinvestPath.Get()
	if err := w.rewardToken.Approve(ctx, w.address, w.router.Address(), amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	amounts, err := w.router.SwapExactTokensForTokens(ctx, w.address, amount, sdkmath.ZeroInt(), path, w.address)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amounts[len(amounts)-1], nil
}

// rewardToBeneficialVault buys the beneficial vault token with amount reward tokens and hands it over.
func (w *Worker) rewardToBeneficialVault(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	vault := w.beneficialVault.Get()
	if vault == nil {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidParameter, "worker: no beneficial vault")
	}
	vaultToken := vault.Token()

	out := amount
	if vaultToken.Address() != w.rewardToken.Address() {
		if err := w.rewardToken.Approve(ctx, w.address, w.router.Address(), amount); err != nil {
			return sdkmath.ZeroInt(), err
		}
		amounts, err := w.router.SwapExactTokensForTokens(ctx, w.address, amount, sdkmath.ZeroInt(), w.rewardPath.Get(), w.address)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		out = amounts[len(amounts)-1]
	}
	if err := vaultToken.Transfer(ctx, w.address, vault.Address(), out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := vault.ReceiveBounty(ctx, w.address, out); err != nil {
		return sdkmath.ZeroInt(), err
	}

	w.logger.Info().
		Str("vault", vault.Address().Hex()).
		Str("sold", amount.String()).
		Str("bought", out.String()).
		Msg("BeneficialVaultTokenBuyback")
	return out, nil
}
