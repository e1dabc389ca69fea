package strategy

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// AddBaseWithFarm pulls extra farming tokens from the position owner through the worker's
// operator, converts the base tokens it holds and sends everything to the worker.
type AddBaseWithFarm struct {
	base
}

func NewAddBaseWithFarm(host *chain.Host, deployer common.Address, router *amm.Router) *AddBaseWithFarm {
	return &AddBaseWithFarm{base: newBase(host, deployer, router, "strategy_add_base_with_farm")}
}

func (s *AddBaseWithFarm) Execute(ctx context.Context, caller, user common.Address, debt sdkmath.Int, params Params) error {
	p, ok := params.(AddBaseWithFarmParams)
	if !ok {
		return wrongParams("add_base_with_farm", params)
	}
	return s.host.Transact(ctx, func(ctx context.Context) error {
		w, err := s.worker(caller)
		if err != nil {
			return err
		}
		baseToken, farmingToken := w.BaseToken(), w.FarmingToken()

		if amount := orZero(p.FarmingAmount); amount.IsPositive() {
			funds := w.FundRequester()
			if funds == nil {
				return errorsmod.Wrap(types.ErrNotInExecution, "worker operator cannot provide funds")
			}
			if err := funds.RequestFunds(ctx, s.address, farmingToken, amount); err != nil {
				return err
			}
		}

		before := farmingToken.BalanceOf(s.address)
		if err := s.swapExactIn(ctx, baseToken, baseToken.BalanceOf(s.address), sdkmath.ZeroInt(), w.Path()); err != nil {
			return err
		}
		if minFarming := orZero(p.MinFarmingAmount); farmingToken.BalanceOf(s.address).Sub(before).LT(minFarming) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "received %s farming tokens, want %s", farmingToken.BalanceOf(s.address).Sub(before), minFarming)
		}

		farmed, err := s.sweep(ctx, farmingToken, caller)
		if err != nil {
			return err
		}
		s.logger.Debug().
			Str("worker", caller.Hex()).
			Str("user", user.Hex()).
			Str("requested", orZero(p.FarmingAmount).String()).
			Str("farming", farmed.String()).
			Msg("AddBaseWithFarm executed")
		return nil
	})
}
