package strategy

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// AddBaseTokenOnly converts all base tokens it holds into farming tokens for the worker.
type AddBaseTokenOnly struct {
	base
}

func NewAddBaseTokenOnly(host *chain.Host, deployer common.Address, router *amm.Router) *AddBaseTokenOnly {
	return &AddBaseTokenOnly{base: newBase(host, deployer, router, "strategy_add_base_token_only")}
}

func (s *AddBaseTokenOnly) Execute(ctx context.Context, caller, user common.Address, debt sdkmath.Int, params Params) error {
	p, ok := params.(AddBaseTokenOnlyParams)
	if !ok {
		return wrongParams("add_base_token_only", params)
	}
	return s.host.Transact(ctx, func(ctx context.Context) error {
		w, err := s.worker(caller)
		if err != nil {
			return err
		}
		baseToken, farmingToken := w.BaseToken(), w.FarmingToken()

		if err := s.swapExactIn(ctx, baseToken, baseToken.BalanceOf(s.address), orZero(p.MinFarmingAmount), w.Path()); err != nil {
			return err
		}
		farmed, err := s.sweep(ctx, farmingToken, caller)
		if err != nil {
			return err
		}
		s.logger.Debug().
			Str("worker", caller.Hex()).
			Str("user", user.Hex()).
			Str("farming", farmed.String()).
			Msg("AddBaseTokenOnly executed")
		return nil
	})
}
