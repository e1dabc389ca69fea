package strategy

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// WithdrawMinimizeTrading sells only as many farming tokens as needed to cover debt in base
// tokens. The base tokens go back to the worker and the remaining farming tokens go to the user.
type WithdrawMinimizeTrading struct {
	base
	relayer *token.Relayer
}

func NewWithdrawMinimizeTrading(host *chain.Host, deployer common.Address, router *amm.Router, relayer *token.Relayer) *WithdrawMinimizeTrading {
	return &WithdrawMinimizeTrading{
		base:    newBase(host, deployer, router, "strategy_withdraw_minimize_trading"),
		relayer: relayer,
	}
}

func (s *WithdrawMinimizeTrading) Execute(ctx context.Context, caller, user common.Address, debt sdkmath.Int, params Params) error {
	p, ok := params.(WithdrawMinimizeTradingParams)
	if !ok {
		return wrongParams("withdraw_minimize_trading", params)
	}
	return s.host.Transact(ctx, func(ctx context.Context) error {
		w, err := s.worker(caller)
		if err != nil {
			return err
		}
		baseToken, farmingToken := w.BaseToken(), w.FarmingToken()

		debt = orZero(debt)
		if shortfall := debt.Sub(baseToken.BalanceOf(s.address)); shortfall.IsPositive() {
			available := farmingToken.BalanceOf(s.address)
			if err := farmingToken.Approve(ctx, s.address, s.router.Address(), available); err != nil {
				return err
			}
			if _, err := s.router.SwapTokensForExactTokens(ctx, s.address, shortfall, available, w.ReversedPath(), s.address); err != nil {
				return err
			}
			if err := farmingToken.Approve(ctx, s.address, s.router.Address(), sdkmath.ZeroInt()); err != nil {
				return err
			}
		}
		repaid, err := s.sweep(ctx, baseToken, caller)
		if err != nil {
			return err
		}

		remaining := farmingToken.BalanceOf(s.address)
		if minFarming := orZero(p.MinFarmingAmount); remaining.LT(minFarming) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "%s farming tokens left, want %s", remaining, minFarming)
		}
		if remaining.IsPositive() {
			if err := s.payUser(ctx, farmingToken, user, remaining); err != nil {
				return err
			}
		}
		s.logger.Debug().
			Str("worker", caller.Hex()).
			Str("user", user.Hex()).
			Str("base", repaid.String()).
			Str("farming", remaining.String()).
			Msg("WithdrawMinimizeTrading executed")
		return nil
	})
}

// payUser sends farming tokens to user, unwrapping them first when they are the wrapped native coin.
func (s *WithdrawMinimizeTrading) payUser(ctx context.Context, farmingToken *token.Token, user common.Address, amount sdkmath.Int) error {
	if s.relayer == nil || farmingToken.Address() != s.router.WNative().Address() {
		return farmingToken.Transfer(ctx, s.address, user, amount)
	}
	if err := farmingToken.Transfer(ctx, s.address, s.relayer.Address(), amount); err != nil {
		return err
	}
	if err := s.relayer.Withdraw(ctx, s.address, amount); err != nil {
		return err
	}
	return s.host.TransferNative(ctx, s.address, user, amount)
}
