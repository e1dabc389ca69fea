/*

Worker stakes a single farming token in a MasterChef pool on behalf of many positions.

Positions own shares of the worker's pooled stake. Each Work call takes one position out of the
pool, lets a strategy transform its tokens, and stakes the result again under fresh shares.
Reinvest harvests the pool reward, pays the bounties, and stakes the rest without minting shares,
so every share appreciates.

All entry points run as a single host transaction: any failure reverts every token, pool and
ledger change made by the call.

*/

package worker

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/ledger"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/masterchef"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	BpsDenominator = 10000
	// MaxReinvestBountyCap is the highest value MaxReinvestBountyBps may take.
	MaxReinvestBountyCap = 3000
)

var bps = sdkmath.NewInt(BpsDenominator)

// BeneficialVault receives a share of every reinvest bounty, bought in its own token.
type BeneficialVault interface {
	Address() common.Address
	Token() *token.Token
	ReceiveBounty(ctx context.Context, caller common.Address, amount sdkmath.Int) error
}

type Config struct {
	Name     string
	Owner    common.Address
	Operator common.Address
	// Funds lets AddBaseWithFarm pull farming tokens from position owners. Optional.
	Funds strategy.FundRequester

	BaseToken    *token.Token
	FarmingToken *token.Token
	MasterChef   *masterchef.MasterChef
	PID          uint64
	Router       *amm.Router

	AddStrategy       strategy.Strategy
	LiquidateStrategy strategy.Strategy

	ReinvestBountyBps        uint64
	MaxReinvestBountyBps     uint64
	BeneficialVault          BeneficialVault
	BeneficialVaultBountyBps uint64

	// Path routes base token to farming token.
	Path []common.Address
	// RewardPath routes reward token to the beneficial vault token.
	RewardPath []common.Address
	// ReinvestPath routes reward token to farming token. Only used when they differ.
	ReinvestPath []common.Address
}

type Worker struct {
	host     *chain.Host
	address  common.Address
	name     string
	owner    common.Address
	operator common.Address
	funds    strategy.FundRequester

	baseToken    *token.Token
	farmingToken *token.Token
	rewardToken  *token.Token
	chef         *masterchef.MasterChef
	pid          uint64
	router       *amm.Router

	ledger        *ledger.Ledger
	rewardBalance *chain.Value[sdkmath.Int]

	okStrategies  *chain.Store[common.Address, bool]
	okReinvestors *chain.Store[common.Address, bool]

	addStrategy       *chain.Value[strategy.Strategy]
	liquidateStrategy *chain.Value[strategy.Strategy]

	reinvestBountyBps        *chain.Value[uint64]
	maxReinvestBountyBps     *chain.Value[uint64]
	beneficialVault          *chain.Value[BeneficialVault]
	beneficialVaultBountyBps *chain.Value[uint64]

	path         *chain.Value[[]common.Address]
	rewardPath   *chain.Value[[]common.Address]
	reinvestPath *chain.Value[[]common.Address]

	// entered guards against a strategy calling back into the worker.
	entered bool

	logger zerolog.Logger
}

// New deploys a worker. The configuration is validated the same way the setters validate it.
func New(ctx context.Context, host *chain.Host, deployer common.Address, cfg Config) (*Worker, error) {
	if cfg.BaseToken == nil || cfg.FarmingToken == nil || cfg.MasterChef == nil || cfg.Router == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "worker: base token, farming token, masterchef and router are required")
	}
	pool, err := cfg.MasterChef.PoolInfo(cfg.PID)
	if err != nil {
		return nil, err
	}
	if pool.StakeToken.Address() != cfg.FarmingToken.Address() {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "worker: pool %d stakes %s, not %s", cfg.PID, pool.StakeToken.Symbol(), cfg.FarmingToken.Symbol())
	}
	if cfg.MaxReinvestBountyBps > MaxReinvestBountyCap || cfg.ReinvestBountyBps > cfg.MaxReinvestBountyBps {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "worker: reinvest bounty %d over max %d", cfg.ReinvestBountyBps, cfg.MaxReinvestBountyBps)
	}
	if cfg.BeneficialVaultBountyBps > BpsDenominator {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "worker: beneficial vault bounty %d exceeds %d", cfg.BeneficialVaultBountyBps, BpsDenominator)
	}
	if cfg.Owner == (common.Address{}) {
		cfg.Owner = deployer
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("%s-%s maxi", cfg.FarmingToken.Symbol(), cfg.BaseToken.Symbol())
	}

	w := &Worker{
		host:     host,
		address:  host.NewContractAddress(deployer),
		name:     cfg.Name,
		owner:    cfg.Owner,
		operator: cfg.Operator,
		funds:    cfg.Funds,

		baseToken:    cfg.BaseToken,
		farmingToken: cfg.FarmingToken,
		rewardToken:  cfg.MasterChef.RewardToken(),
		chef:         cfg.MasterChef,
		pid:          cfg.PID,
		router:       cfg.Router,

		ledger:        ledger.New(host),
		rewardBalance: chain.NewValue(host, sdkmath.ZeroInt()),

		okStrategies:  chain.NewStore[common.Address](host, false),
		okReinvestors: chain.NewStore[common.Address](host, false),

		addStrategy:       chain.NewValue(host, cfg.AddStrategy),
		liquidateStrategy: chain.NewValue(host, cfg.LiquidateStrategy),

		reinvestBountyBps:        chain.NewValue(host, cfg.ReinvestBountyBps),
		maxReinvestBountyBps:     chain.NewValue(host, cfg.MaxReinvestBountyBps),
		beneficialVault:          chain.NewValue(host, cfg.BeneficialVault),
		beneficialVaultBountyBps: chain.NewValue(host, cfg.BeneficialVaultBountyBps),

		path:         chain.NewValue(host, []common.Address(nil)),
		rewardPath:   chain.NewValue(host, []common.Address(nil)),
		reinvestPath: chain.NewValue(host, []common.Address(nil)),

		logger: logger.GetForComponent("worker").With().Str("worker", cfg.Name).Logger(),
	}

	err = host.Transact(ctx, func(ctx context.Context) error {
		if err := w.setPath(ctx, cfg.Path); err != nil {
			return err
		}
		if cfg.BeneficialVault != nil || len(cfg.RewardPath) > 0 {
			if err := w.setRewardPath(ctx, cfg.RewardPath); err != nil {
				return err
			}
		}
		if w.rewardToken.Address() != w.farmingToken.Address() {
			if err := w.setReinvestPath(ctx, cfg.ReinvestPath); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) Address() common.Address            { return w.address }
func (w *Worker) Name() string                       { return w.name }
func (w *Worker) Owner() common.Address              { return w.owner }
func (w *Worker) Operator() common.Address           { return w.operator }
func (w *Worker) BaseToken() *token.Token            { return w.baseToken }
func (w *Worker) FarmingToken() *token.Token         { return w.farmingToken }
func (w *Worker) RewardToken() *token.Token          { return w.rewardToken }
func (w *Worker) MasterChef() *masterchef.MasterChef { return w.chef }
func (w *Worker) PID() uint64                        { return w.pid }

// FundRequester satisfies strategy.Worker.
func (w *Worker) FundRequester() strategy.FundRequester { return w.funds }

func (w *Worker) Path() []common.Address {
	return append([]common.Address(nil), w.path.Get()...)
}

// ReversedPath routes farming token back to base token.
func (w *Worker) ReversedPath() []common.Address {
	path := w.path.Get()
	reversed := make([]common.Address, len(path))
	for i, addr := range path {
		reversed[len(path)-1-i] = addr
	}
	return reversed
}

func (w *Worker) RewardPath() []common.Address {
	return append([]common.Address(nil), w.rewardPath.Get()...)
}

func (w *Worker) ReinvestPath() []common.Address {
	return append([]common.Address(nil), w.reinvestPath.Get()...)
}

func (w *Worker) Shares(id uint64) sdkmath.Int                   { return w.ledger.Shares(id) }
func (w *Worker) TotalShare() sdkmath.Int                        { return w.ledger.TotalShare() }
func (w *Worker) TotalBalance() sdkmath.Int                      { return w.ledger.TotalBalance() }
func (w *Worker) ShareToBalance(share sdkmath.Int) sdkmath.Int   { return w.ledger.ShareToBalance(share) }
func (w *Worker) BalanceToShare(balance sdkmath.Int) sdkmath.Int { return w.ledger.BalanceToShare(balance) }
func (w *Worker) Positions() []uint64                            { return w.ledger.Positions() }
func (w *Worker) RewardBalance() sdkmath.Int                     { return w.rewardBalance.Get() }
func (w *Worker) ReinvestBountyBps() uint64                      { return w.reinvestBountyBps.Get() }
func (w *Worker) MaxReinvestBountyBps() uint64                   { return w.maxReinvestBountyBps.Get() }
func (w *Worker) BeneficialVaultBountyBps() uint64               { return w.beneficialVaultBountyBps.Get() }
func (w *Worker) BeneficialVault() BeneficialVault               { return w.beneficialVault.Get() }
func (w *Worker) AddStrategy() strategy.Strategy                 { return w.addStrategy.Get() }
func (w *Worker) LiquidateStrategy() strategy.Strategy           { return w.liquidateStrategy.Get() }
func (w *Worker) IsStrategyOk(addr common.Address) bool          { return w.okStrategies.Get(addr) }
func (w *Worker) IsReinvestorOk(addr common.Address) bool        { return w.okReinvestors.Get(addr) }

// PendingReward is the reward the next reinvest would harvest, including rewards already
// harvested as a side effect of Work.
func (w *Worker) PendingReward() sdkmath.Int {
	return w.rewardBalance.Get().Add(w.chef.PendingReward(w.pid, w.address))
}

// Snapshot reports the aggregate state of the worker.
func (w *Worker) Snapshot() types.WorkerSnapshot {
	return types.WorkerSnapshot{
		Address:        w.address,
		Name:           w.name,
		BaseToken:      w.baseToken.Symbol(),
		FarmingToken:   w.farmingToken.Symbol(),
		RewardToken:    w.rewardToken.Symbol(),
		RewardDecimals: w.rewardToken.Decimals(),
		TotalShare:     w.ledger.TotalShare(),
		TotalBalance:   w.ledger.TotalBalance(),
		RewardBalance:  w.rewardBalance.Get(),
		PendingReward:  w.PendingReward(),
	}
}

// enter sets the reentrancy guard. The returned function clears it.
func (w *Worker) enter() (func(), error) {
	if w.entered {
		return nil, errorsmod.Wrap(types.ErrReentrant, "worker: reentrant call")
	}
	w.entered = true
	return func() { w.entered = false }, nil
}

// actualFarmingBalance is the farming token balance that belongs to positions, excluding
// harvested rewards waiting for the next reinvest.
func (w *Worker) actualFarmingBalance() sdkmath.Int {
	balance := w.farmingToken.BalanceOf(w.address)
	if w.farmingToken.Address() == w.rewardToken.Address() {
		balance = balance.Sub(w.rewardBalance.Get())
	}
	return balance
}

func (w *Worker) creditReward(ctx context.Context, harvested sdkmath.Int) {
	if harvested.IsPositive() {
		w.rewardBalance.Set(ctx, w.rewardBalance.Get().Add(harvested))
	}
}

// removeShare unstakes the whole balance of position id back into the worker.
func (w *Worker) removeShare(ctx context.Context, id uint64) (sdkmath.Int, error) {
	if w.ledger.Shares(id).IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	balance := w.ledger.WithdrawAll(ctx, id)
	harvested, err := w.chef.Withdraw(ctx, w.address, w.pid, balance)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	w.creditReward(ctx, harvested)
	w.logger.Debug().Uint64("id", id).Str("balance", balance.String()).Msg("RemoveShare")
	return balance, nil
}

// addShare stakes every farming token held for positions and credits position id with it.
func (w *Worker) addShare(ctx context.Context, id uint64) (sdkmath.Int, error) {
	balance := w.actualFarmingBalance()
	if !balance.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := w.stake(ctx, balance); err != nil {
		return sdkmath.ZeroInt(), err
	}
	share := w.ledger.Deposit(ctx, id, balance)
	w.logger.Debug().Uint64("id", id).Str("balance", balance.String()).Str("share", share.String()).Msg("AddShare")
	return share, nil
}

func (w *Worker) stake(ctx context.Context, amount sdkmath.Int) error {
	if err := w.farmingToken.Approve(ctx, w.address, w.chef.Address(), amount); err != nil {
		return err
	}
	harvested, err := w.chef.Deposit(ctx, w.address, w.pid, amount)
	if err != nil {
		return err
	}
	w.creditReward(ctx, harvested)
	return nil
}

// Work runs call against position id. Base tokens sent to the worker beforehand are handed to the
// strategy along with the position's stake; whatever base tokens come back go to the operator.
func (w *Worker) Work(ctx context.Context, caller common.Address, id uint64, user common.Address, debt sdkmath.Int, call strategy.Call) error {
	return w.host.Transact(ctx, func(ctx context.Context) error {
		if caller != w.operator {
			return errorsmod.Wrapf(types.ErrUnauthorized, "worker: %s is not the operator", caller.Hex())
		}
		release, err := w.enter()
		if err != nil {
			return err
		}
		defer release()

		if _, err := w.removeShare(ctx, id); err != nil {
			return err
		}
		if call.Strategy == nil || !w.okStrategies.Get(call.Strategy.Address()) {
			return errorsmod.Wrap(types.ErrUnapprovedStrategy, "worker: unapproved work strategy")
		}
		if err := w.execute(ctx, call.Strategy, user, debt, call.Params); err != nil {
			return err
		}
		share, err := w.addShare(ctx, id)
		if err != nil {
			return err
		}
		returned, err := w.returnBase(ctx)
		if err != nil {
			return err
		}

		w.logger.Info().
			Uint64("id", id).
			Str("user", user.Hex()).
			Str("strategy", call.Strategy.Address().Hex()).
			Str("share", share.String()).
			Str("returned", returned.String()).
			Msg("Work")
		return nil
	})
}

// execute hands every base token and the positions' farming tokens to strat and runs it.
func (w *Worker) execute(ctx context.Context, strat strategy.Strategy, user common.Address, debt sdkmath.Int, params strategy.Params) error {
	if baseBalance := w.baseToken.BalanceOf(w.address); baseBalance.IsPositive() {
		if err := w.baseToken.Transfer(ctx, w.address, strat.Address(), baseBalance); err != nil {
			return err
		}
	}
	if farming := w.actualFarmingBalance(); farming.IsPositive() {
		if err := w.farmingToken.Transfer(ctx, w.address, strat.Address(), farming); err != nil {
			return err
		}
	}
	return strat.Execute(ctx, w.address, user, debt, params)
}

func (w *Worker) returnBase(ctx context.Context) (sdkmath.Int, error) {
	balance := w.baseToken.BalanceOf(w.address)
	if balance.IsZero() {
		return balance, nil
	}
	return balance, w.baseToken.Transfer(ctx, w.address, w.operator, balance)
}

// Health values position id in base tokens by simulating a sale of its stake along the reversed path.
func (w *Worker) Health(ctx context.Context, id uint64) (sdkmath.Int, error) {
	health := sdkmath.ZeroInt()
	err := w.host.View(ctx, func(ctx context.Context) error {
		balance := w.ledger.PositionBalance(id)
		if balance.IsZero() {
			return nil
		}
		amounts, err := w.router.GetAmountsOut(balance, w.ReversedPath())
		if err != nil {
			return err
		}
		health = amounts[len(amounts)-1]
		return nil
	})
	return health, err
}

// Liquidate sells the whole stake of position id with the liquidation strategy and sends the
// base token proceeds to the operator.
func (w *Worker) Liquidate(ctx context.Context, caller common.Address, id uint64) (sdkmath.Int, error) {
	proceeds := sdkmath.ZeroInt()
	err := w.host.Transact(ctx, func(ctx context.Context) error {
		if caller != w.operator {
			return errorsmod.Wrapf(types.ErrUnauthorized, "worker: %s is not the operator", caller.Hex())
		}
		release, err := w.enter()
		if err != nil {
			return err
		}
		defer release()

		liq := w.liquidateStrategy.Get()
		if liq == nil {
			return errorsmod.Wrap(types.ErrInvalidParameter, "worker: no liquidation strategy")
		}
		balance, err := w.removeShare(ctx, id)
		if err != nil {
			return err
		}
		if farming := w.actualFarmingBalance(); farming.IsPositive() {
			if err := w.farmingToken.Transfer(ctx, w.address, liq.Address(), farming); err != nil {
				return err
			}
		}
		if err := liq.Execute(ctx, w.address, common.Address{}, sdkmath.ZeroInt(), strategy.LiquidateParams{MinBaseAmount: sdkmath.ZeroInt()}); err != nil {
			return err
		}
		if proceeds, err = w.returnBase(ctx); err != nil {
			return err
		}

		w.logger.Info().
			Uint64("id", id).
			Str("staked", balance.String()).
			Str("proceeds", proceeds.String()).
			Msg("Liquidate")
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return proceeds, nil
}
