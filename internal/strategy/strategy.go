/*

Strategies turn a position's capital into the farming token and back.

A worker hands its tokens to a strategy, calls Execute and receives the result back in the same
transaction. Every strategy keeps its own list of workers it agrees to serve.

*/

package strategy

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Params is the typed argument block of one strategy kind.
type Params interface {
	isParams()
	Kind() string
}

type AddBaseTokenOnlyParams struct {
	MinFarmingAmount sdkmath.Int
}

type AddBaseWithFarmParams struct {
	FarmingAmount    sdkmath.Int
	MinFarmingAmount sdkmath.Int
}

type WithdrawMinimizeTradingParams struct {
	MinFarmingAmount sdkmath.Int
}

type LiquidateParams struct {
	MinBaseAmount sdkmath.Int
}

func (AddBaseTokenOnlyParams) isParams()        {}
func (AddBaseWithFarmParams) isParams()         {}
func (WithdrawMinimizeTradingParams) isParams() {}
func (LiquidateParams) isParams()               {}

func (AddBaseTokenOnlyParams) Kind() string        { return "add_base_token_only" }
func (AddBaseWithFarmParams) Kind() string         { return "add_base_with_farm" }
func (WithdrawMinimizeTradingParams) Kind() string { return "withdraw_minimize_trading" }
func (LiquidateParams) Kind() string               { return "liquidate" }

// Strategy is what a worker dispatches to.
type Strategy interface {
	Address() common.Address
	// Execute runs with caller being the worker. The worker has already transferred the
	// position's tokens to the strategy.
	Execute(ctx context.Context, caller, user common.Address, debt sdkmath.Int, params Params) error
}

// Call pairs a strategy with its arguments.
type Call struct {
	Strategy Strategy
	Params   Params
}

// FundRequester lets a strategy pull extra tokens from the owner of the position being worked on.
type FundRequester interface {
	RequestFunds(ctx context.Context, caller common.Address, tkn *token.Token, amount sdkmath.Int) error
}

// Worker is the view of a worker that strategies rely on.
type Worker interface {
	Address() common.Address
	BaseToken() *token.Token
	FarmingToken() *token.Token
	// Path routes base token to farming token.
	Path() []common.Address
	ReversedPath() []common.Address
	// FundRequester may be nil when the operator cannot provide funds.
	FundRequester() FundRequester
}

// base carries what all strategies share: the router, the owner and the worker whitelist.
type base struct {
	host    *chain.Host
	address common.Address
	owner   common.Address
	router  *amm.Router

	workers *chain.Store[common.Address, Worker]

	logger zerolog.Logger
}

func newBase(host *chain.Host, deployer common.Address, router *amm.Router, component string) base {
	return base{
		host:    host,
		address: host.NewContractAddress(deployer),
		owner:   deployer,
		router:  router,
		workers: chain.NewStore[common.Address, Worker](host, nil),
		logger:  logger.GetForComponent(component),
	}
}

func (b *base) Address() common.Address { return b.address }

// SetWorkersOk adds or removes workers allowed to call the strategy.
func (b *base) SetWorkersOk(ctx context.Context, caller common.Address, workers []Worker, ok bool) error {
	return b.host.Transact(ctx, func(ctx context.Context) error {
		if caller != b.owner {
			return errorsmod.Wrap(types.ErrUnauthorized, "strategy: caller is not the owner")
		}
		for _, w := range workers {
			if ok {
				b.workers.Set(ctx, w.Address(), w)
			} else {
				b.workers.Delete(ctx, w.Address())
			}
		}
		return nil
	})
}

// IsWorkerOk reports whether addr may call Execute.
func (b *base) IsWorkerOk(addr common.Address) bool {
	return b.workers.Has(addr)
}

func (b *base) worker(caller common.Address) (Worker, error) {
	w := b.workers.Get(caller)
	if w == nil {
		return nil, errorsmod.Wrapf(types.ErrBadWorker, "%s is not an approved worker", caller.Hex())
	}
	return w, nil
}

// swapExactIn sells amount of path[0] held by the strategy, keeping the output.
func (b *base) swapExactIn(ctx context.Context, tkn *token.Token, amount, minOut sdkmath.Int, path []common.Address) error {
	if !amount.IsPositive() {
		if minOut.IsPositive() {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "nothing to swap, want at least %s", minOut)
		}
		return nil
	}
	if err := tkn.Approve(ctx, b.address, b.router.Address(), amount); err != nil {
		return err
	}
	if _, err := b.router.SwapExactTokensForTokens(ctx, b.address, amount, minOut, path, b.address); err != nil {
		return err
	}
	return tkn.Approve(ctx, b.address, b.router.Address(), sdkmath.ZeroInt())
}

// sweep sends the whole strategy balance of tkn to to.
func (b *base) sweep(ctx context.Context, tkn *token.Token, to common.Address) (sdkmath.Int, error) {
	balance := tkn.BalanceOf(b.address)
	if balance.IsZero() {
		return balance, nil
	}
	return balance, tkn.Transfer(ctx, b.address, to, balance)
}

func wrongParams(want string, got Params) error {
	if got == nil {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "%s: missing params", want)
	}
	return errorsmod.Wrapf(types.ErrInvalidParameter, "%s: got %s params", want, got.Kind())
}

func orZero(x sdkmath.Int) sdkmath.Int {
	if x.IsNil() {
		return sdkmath.ZeroInt()
	}
	return x
}
