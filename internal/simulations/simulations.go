/*

Package simulations estimates the outcome of keeper actions before they are sent.

Estimates are exact: DryRun executes the real operation in a transaction that is always reverted,
so the chain is left untouched and the result is what the same call would produce in the next
block. Swap price impact is derived from the router quote and the current pair reserves.

*/

package simulations

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/vault"
	"github.com/elys-network/farmworker/internal/worker"
	"github.com/ethereum/go-ethereum/common"
)

var (
	swapLogger     = logger.GetForComponent("swap_simulator")
	reinvestLogger = logger.GetForComponent("reinvest_simulator")
	killLogger     = logger.GetForComponent("kill_simulator")
)

// errDryRun aborts a simulated transaction after it succeeded.
var errDryRun = errors.New("dry run")

// DryRun executes fn in a transaction on host and reverts everything it wrote. It returns fn's
// error, or nil if fn succeeded.
func DryRun(ctx context.Context, host *chain.Host, fn func(ctx context.Context) error) error {
	err := host.Transact(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return errDryRun
	})
	if errors.Is(err, errDryRun) {
		return nil
	}
	return err
}

// SwapEstimationResult contains the result of a swap simulation
type SwapEstimationResult struct {
	AmountIn  sdkmath.Int
	AmountOut sdkmath.Int
	// Percent lost against the spot price of the path, swap fees included
	PriceImpact float64
}

// SimulateSwap quotes amountIn along path and measures the price impact against spot reserves.
func SimulateSwap(router *amm.Router, amountIn sdkmath.Int, path []common.Address) (SwapEstimationResult, error) {
	res := SwapEstimationResult{AmountIn: amountIn, AmountOut: sdkmath.ZeroInt()}
	if !amountIn.IsPositive() {
		return res, nil
	}
	amounts, err := router.GetAmountsOut(amountIn, path)
	if err != nil {
		return res, err
	}
	res.AmountOut = amounts[len(amounts)-1]

	spot := 1.0
	for i := 0; i < len(path)-1; i++ {
		pair, ok := router.Factory().GetPair(path[i], path[i+1])
		if !ok {
			return res, errorsmod.Wrapf(types.ErrInvalidPath, "no pair for %s/%s", path[i].Hex(), path[i+1].Hex())
		}
		reserveIn, reserveOut, err := pair.ReservesFor(path[i])
		if err != nil {
			return res, err
		}
		spot *= utils.Ratio(reserveOut, reserveIn)
	}
	if spot > 0 {
		res.PriceImpact = (1 - utils.Ratio(res.AmountOut, amountIn)/spot) * 100
		if res.PriceImpact < 0 {
			res.PriceImpact = 0
		}
	}

	swapLogger.Debug().
		Str("amountIn", amountIn.String()).
		Str("amountOut", res.AmountOut.String()).
		Float64("priceImpact", res.PriceImpact).
		Int("hops", len(path)-1).
		Msg("Swap simulated")
	return res, nil
}

// ReinvestEstimationResult contains the result of a reinvest simulation
type ReinvestEstimationResult struct {
	worker.ReinvestResult
	// Impact of the reward swap, on the reinvest path or, when the reward is the farming token,
	// on the beneficial vault buyback.
	PriceImpact float64
}

// SimulateReinvest runs a reinvest of w as caller and reverts it.
func SimulateReinvest(ctx context.Context, host *chain.Host, router *amm.Router, w *worker.Worker, caller common.Address) (ReinvestEstimationResult, error) {
	var est ReinvestEstimationResult
	err := DryRun(ctx, host, func(ctx context.Context) error {
		var err error
		est.ReinvestResult, err = w.Reinvest(ctx, caller)
		return err
	})
	if err != nil {
		return est, err
	}

	var swap SwapEstimationResult
	if w.RewardToken().Address() != w.FarmingToken().Address() {
		swap, err = SimulateSwap(router, est.Reward.Sub(est.Bounty), w.ReinvestPath())
	} else if est.BeneficialBounty.IsPositive() && len(w.RewardPath()) > 1 {
		swap, err = SimulateSwap(router, est.BeneficialBounty, w.RewardPath())
	}
	if err != nil {
		return est, err
	}
	est.PriceImpact = swap.PriceImpact

	reinvestLogger.Debug().
		Str("worker", w.Name()).
		Str("reward", est.Reward.String()).
		Str("callerBounty", est.CallerBounty.String()).
		Float64("priceImpact", est.PriceImpact).
		Msg("Reinvest simulated")
	return est, nil
}

// KillEstimationResult contains the result of a kill simulation
type KillEstimationResult struct {
	vault.KillResult
	// Impact of selling the position's stake back to the base token
	PriceImpact float64
}

// SimulateKill runs a kill of position id as caller and reverts it.
func SimulateKill(ctx context.Context, host *chain.Host, router *amm.Router, v vault.Manager, w *worker.Worker, caller common.Address, id uint64) (KillEstimationResult, error) {
	var est KillEstimationResult

	swap, err := SimulateSwap(router, w.ShareToBalance(w.Shares(id)), w.ReversedPath())
	if err != nil {
		return est, err
	}
	est.PriceImpact = swap.PriceImpact

	err = DryRun(ctx, host, func(ctx context.Context) error {
		var err error
		est.KillResult, err = v.Kill(ctx, caller, id)
		return err
	})
	if err != nil {
		return est, err
	}

	killLogger.Debug().
		Uint64("id", id).
		Str("proceeds", est.Proceeds.String()).
		Str("prize", est.Prize.String()).
		Float64("priceImpact", est.PriceImpact).
		Msg("Kill simulated")
	return est, nil
}
