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

// Liquidate sells every farming token it holds for base tokens and returns them to the worker.
type Liquidate struct {
	base
}

func NewLiquidate(host *chain.Host, deployer common.Address, router *amm.Router) *Liquidate {
	return &Liquidate{base: newBase(host, deployer, router, "strategy_liquidate")}
}

func (s *Liquidate) Execute(ctx context.Context, caller, user common.Address, debt sdkmath.Int, params Params) error {
	p, ok := params.(LiquidateParams)
	if !ok {
		return wrongParams("liquidate", params)
	}
	return s.host.Transact(ctx, func(ctx context.Context) error {
		w, err := s.worker(caller)
		if err != nil {
			return err
		}
		baseToken, farmingToken := w.BaseToken(), w.FarmingToken()

		if err := s.swapExactIn(ctx, farmingToken, farmingToken.BalanceOf(s.address), sdkmath.ZeroInt(), w.ReversedPath()); err != nil {
			return err
		}
		if balance, minBase := baseToken.BalanceOf(s.address), orZero(p.MinBaseAmount); balance.LT(minBase) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "received %s base tokens, want %s", balance, minBase)
		}
		proceeds, err := s.sweep(ctx, baseToken, caller)
		if err != nil {
			return err
		}
		s.logger.Debug().
			Str("worker", caller.Hex()).
			Str("user", user.Hex()).
			Str("base", proceeds.String()).
			Msg("Liquidate executed")
		return nil
	})
}
