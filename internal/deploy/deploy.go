/*

Package deploy builds a complete leveraged farming deployment on a fresh simulated chain.

Genesis funds the named accounts, deploys the tokens listed in config.Tokens, seeds the AMM pairs
from config.Liquidity, and wires the staking pool, the strategies, the lending vaults and the
vault-operated worker together the way a production deployment script would.

*/

package deploy

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/config"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/masterchef"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/vault"
	"github.com/elys-network/farmworker/internal/worker"
	"github.com/ethereum/go-ethereum/common"
)

// StakingPoolAllocPoint is the allocation of the farming token pool in the staking contract.
const StakingPoolAllocPoint = 1000

type Options struct {
	Genesis   time.Time
	BlockTime time.Duration
	Params    types.WorkerParameters
}

// DefaultOptions starts the chain at a fixed time with 3 second blocks and default parameters.
func DefaultOptions() Options {
	return Options{
		Genesis:   time.Unix(1_700_000_000, 0).UTC(),
		BlockTime: 3 * time.Second,
		Params:    config.DefaultWorkerParameters,
	}
}

type Deployment struct {
	Host     *chain.Host
	Params   types.WorkerParameters
	Accounts map[string]common.Address

	Deployer common.Address
	Alice    common.Address
	Bob      common.Address
	Eve      common.Address

	WNative *token.WNative
	Base    *token.Token
	Cake    *token.Token
	Alpaca  *token.Token
	Relayer *token.Relayer

	Factory *amm.Factory
	Router  *amm.Router
	Chef    *masterchef.MasterChef
	PID     uint64

	AddBaseTokenOnly        *strategy.AddBaseTokenOnly
	AddBaseWithFarm         *strategy.AddBaseWithFarm
	Liquidate               *strategy.Liquidate
	WithdrawMinimizeTrading *strategy.WithdrawMinimizeTrading

	// Vault lends the wrapped native token and operates Worker.
	Vault *vault.Vault
	// AlpacaVault lends ALPACA and receives the reinvest buybacks of standalone workers.
	AlpacaVault *vault.Vault
	Worker      *worker.Worker

	workers []*worker.Worker
}

// Genesis deploys everything in a single block.
func Genesis(ctx context.Context, opts Options) (*Deployment, error) {
	log := logger.GetForComponent("deploy")
	host := chain.NewHost(opts.Genesis, opts.BlockTime)

	d := &Deployment{
		Host:     host,
		Params:   opts.Params,
		Accounts: make(map[string]common.Address),
	}
	for name := range config.NativeFunds {
		d.Accounts[name] = chain.Account(name)
	}
	d.Deployer, d.Alice, d.Bob, d.Eve = d.Accounts["deployer"], d.Accounts["alice"], d.Accounts["bob"], d.Accounts["eve"]

	p, err := parseParams(opts.Params)
	if err != nil {
		return nil, err
	}

	err = host.Transact(ctx, func(ctx context.Context) error {
		for name, amount := range config.NativeFunds {
			funds, err := utils.ParseUnits(amount, 18)
			if err != nil {
				return fmt.Errorf("native funds of %s: %w", name, err)
			}
			host.Fund(ctx, d.Accounts[name], funds)
		}

		if err := d.deployTokens(ctx); err != nil {
			return err
		}
		d.Factory = amm.NewFactory(host, d.Deployer)
		d.Router = amm.NewRouter(host, d.Deployer, d.Factory, d.WNative)
		d.Relayer = token.NewRelayer(host, d.Deployer, d.WNative)
		if err := d.seedLiquidity(ctx); err != nil {
			return err
		}

		d.Chef = masterchef.New(host, d.Deployer, d.Cake, p.rewardPerBlock)
		if err := d.Cake.TransferOwnership(ctx, d.Deployer, d.Chef.Address()); err != nil {
			return err
		}
		if d.PID, err = d.Chef.AddPool(ctx, d.Deployer, StakingPoolAllocPoint, d.Cake); err != nil {
			return err
		}

		d.AddBaseTokenOnly = strategy.NewAddBaseTokenOnly(host, d.Deployer, d.Router)
		d.AddBaseWithFarm = strategy.NewAddBaseWithFarm(host, d.Deployer, d.Router)
		d.Liquidate = strategy.NewLiquidate(host, d.Deployer, d.Router)
		d.WithdrawMinimizeTrading = strategy.NewWithdrawMinimizeTrading(host, d.Deployer, d.Router, d.Relayer)

		if d.Vault, err = vault.NewNative(host, d.Deployer, d.WNative, d.Relayer, p.vault); err != nil {
			return err
		}
		if d.AlpacaVault, err = vault.New(host, d.Deployer, d.Alpaca, p.vault); err != nil {
			return err
		}
		if err := d.Relayer.SetCallerOk(ctx, d.Deployer, []common.Address{
			d.WithdrawMinimizeTrading.Address(),
			d.Liquidate.Address(),
			d.AddBaseWithFarm.Address(),
			d.AddBaseTokenOnly.Address(),
			d.Vault.Address(),
		}, true); err != nil {
			return err
		}

		d.Worker, err = d.NewWorker(ctx, WorkerSpec{
			Operator:                 d.Vault.Address(),
			Funds:                    d.Vault,
			BaseToken:                d.WNative.Token,
			BeneficialVault:          d.Vault,
			BeneficialVaultBountyBps: opts.Params.BeneficialVaultBountyBps,
			Path:                     []common.Address{d.WNative.Address(), d.Cake.Address()},
			RewardPath:               []common.Address{d.Cake.Address(), d.WNative.Address()},
		})
		if err != nil {
			return err
		}
		return d.Vault.SetWorkerConfig(ctx, d.Deployer, d.Worker, vault.WorkerConfig{
			AcceptDebt:    true,
			WorkFactorBps: opts.Params.WorkFactorBps,
			KillFactorBps: opts.Params.KillFactorBps,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("genesis failed: %w", err)
	}

	log.Info().
		Uint64("block", host.BlockNumber()).
		Str("vault", d.Vault.Address().Hex()).
		Str("worker", d.Worker.Address().Hex()).
		Str("router", d.Router.Address().Hex()).
		Msg("Genesis deployed")
	return d, nil
}

func (d *Deployment) deployTokens(ctx context.Context) error {
	for _, spec := range config.Tokens {
		var tkn *token.Token
		if spec.Native {
			d.WNative = token.NewWNative(d.Host, d.Deployer, spec.Symbol)
			tkn = d.WNative.Token
		} else {
			tkn = token.New(d.Host, d.Deployer, spec.Symbol, spec.Decimals)
		}
		switch spec.Symbol {
		case config.SymbolBase:
			d.Base = tkn
		case config.SymbolFarming:
			d.Cake = tkn
		case config.SymbolAlpaca:
			d.Alpaca = tkn
		}

		for name, amount := range spec.Balances {
			value, err := utils.ParseUnits(amount, spec.Decimals)
			if err != nil {
				return fmt.Errorf("%s balance of %s: %w", spec.Symbol, name, err)
			}
			if spec.Native {
				err = d.WNative.Deposit(ctx, d.Accounts[name], value)
			} else {
				err = tkn.Mint(ctx, d.Deployer, d.Accounts[name], value)
			}
			if err != nil {
				return err
			}
		}
	}
	if d.WNative == nil || d.Base == nil || d.Cake == nil || d.Alpaca == nil {
		return fmt.Errorf("genesis token list must include %s, %s, %s and %s", config.SymbolWNative, config.SymbolBase, config.SymbolFarming, config.SymbolAlpaca)
	}
	return nil
}

func (d *Deployment) seedLiquidity(ctx context.Context) error {
	for _, l := range config.Liquidity {
		tokenA, tokenB := d.TokenBySymbol(l.TokenA), d.TokenBySymbol(l.TokenB)
		if tokenA == nil || tokenB == nil {
			return fmt.Errorf("liquidity for unknown pair %s/%s", l.TokenA, l.TokenB)
		}
		amountA, err := utils.ParseUnits(l.AmountA, tokenA.Decimals())
		if err != nil {
			return err
		}
		amountB, err := utils.ParseUnits(l.AmountB, tokenB.Decimals())
		if err != nil {
			return err
		}
		provider := d.Accounts[l.Provider]
		if err := d.ProvideLiquidity(ctx, provider, tokenA, tokenB, amountA, amountB); err != nil {
			return err
		}
	}
	return nil
}

// ProvideLiquidity approves the router and adds amountA/amountB to the pair, creating it if needed.
func (d *Deployment) ProvideLiquidity(ctx context.Context, provider common.Address, tokenA, tokenB *token.Token, amountA, amountB sdkmath.Int) error {
	return d.Host.Transact(ctx, func(ctx context.Context) error {
		if err := tokenA.Approve(ctx, provider, d.Router.Address(), amountA); err != nil {
			return err
		}
		if err := tokenB.Approve(ctx, provider, d.Router.Address(), amountB); err != nil {
			return err
		}
		_, _, _, err := d.Router.AddLiquidity(ctx, provider, tokenA, tokenB, amountA, amountB, sdkmath.ZeroInt(), sdkmath.ZeroInt(), provider)
		return err
	})
}

// TokenBySymbol returns the deployed token with symbol, or nil.
func (d *Deployment) TokenBySymbol(symbol string) *token.Token {
	for _, t := range d.Tokens() {
		if t.Symbol() == symbol {
			return t
		}
	}
	return nil
}

// Tokens lists every deployed token.
func (d *Deployment) Tokens() []*token.Token {
	return []*token.Token{d.WNative.Token, d.Base, d.Cake, d.Alpaca}
}

// Strategies lists the four deployed strategies.
func (d *Deployment) Strategies() []strategy.Strategy {
	return []strategy.Strategy{d.AddBaseTokenOnly, d.AddBaseWithFarm, d.Liquidate, d.WithdrawMinimizeTrading}
}

// Workers lists every worker deployed through NewWorker.
func (d *Deployment) Workers() []*worker.Worker {
	return append([]*worker.Worker(nil), d.workers...)
}

// WorkerSpec is what varies between workers of the deployment. Everything else is shared.
type WorkerSpec struct {
	Name     string
	Operator common.Address
	Funds    strategy.FundRequester

	BaseToken *token.Token

	BeneficialVault          worker.BeneficialVault
	BeneficialVaultBountyBps uint64

	Path       []common.Address
	RewardPath []common.Address
}

// NewWorker deploys a CAKE staking worker, approves every strategy on it, lets Eve reinvest and
// registers it with every strategy.
func (d *Deployment) NewWorker(ctx context.Context, spec WorkerSpec) (*worker.Worker, error) {
	var w *worker.Worker
	err := d.Host.Transact(ctx, func(ctx context.Context) error {
		var err error
		w, err = worker.New(ctx, d.Host, d.Deployer, worker.Config{
			Name:                     spec.Name,
			Operator:                 spec.Operator,
			Funds:                    spec.Funds,
			BaseToken:                spec.BaseToken,
			FarmingToken:             d.Cake,
			MasterChef:               d.Chef,
			PID:                      d.PID,
			Router:                   d.Router,
			AddStrategy:              d.AddBaseTokenOnly,
			LiquidateStrategy:        d.Liquidate,
			ReinvestBountyBps:        d.Params.ReinvestBountyBps,
			MaxReinvestBountyBps:     d.Params.MaxReinvestBountyBps,
			BeneficialVault:          spec.BeneficialVault,
			BeneficialVaultBountyBps: spec.BeneficialVaultBountyBps,
			Path:                     spec.Path,
			RewardPath:               spec.RewardPath,
		})
		if err != nil {
			return err
		}

		strategies := make([]common.Address, 0, 4)
		for _, s := range d.Strategies() {
			strategies = append(strategies, s.Address())
		}
		if err := w.SetStrategyOk(ctx, d.Deployer, strategies, true); err != nil {
			return err
		}
		if err := w.SetReinvestorOk(ctx, d.Deployer, []common.Address{d.Eve}, true); err != nil {
			return err
		}

		approved := []strategy.Worker{w}
		if err := d.AddBaseTokenOnly.SetWorkersOk(ctx, d.Deployer, approved, true); err != nil {
			return err
		}
		if err := d.AddBaseWithFarm.SetWorkersOk(ctx, d.Deployer, approved, true); err != nil {
			return err
		}
		if err := d.Liquidate.SetWorkersOk(ctx, d.Deployer, approved, true); err != nil {
			return err
		}
		return d.WithdrawMinimizeTrading.SetWorkersOk(ctx, d.Deployer, approved, true)
	})
	if err != nil {
		return nil, err
	}
	d.workers = append(d.workers, w)
	return w, nil
}

type parsedParams struct {
	rewardPerBlock sdkmath.Int
	vault          vault.Config
}

func parseParams(p types.WorkerParameters) (parsedParams, error) {
	rewardPerBlock, err := utils.ParseUnits(p.RewardPerBlock, 18)
	if err != nil {
		return parsedParams{}, fmt.Errorf("reward_per_block: %w", err)
	}
	minDebt, err := utils.ParseUnits(p.MinDebtSize, 18)
	if err != nil {
		return parsedParams{}, fmt.Errorf("min_debt_size: %w", err)
	}
	rate, ok := sdkmath.NewIntFromString(p.InterestRatePerSec)
	if !ok || rate.IsNegative() {
		return parsedParams{}, fmt.Errorf("interest_rate_per_sec must be a non-negative integer, got %q", p.InterestRatePerSec)
	}
	return parsedParams{
		rewardPerBlock: rewardPerBlock,
		vault: vault.Config{
			MinDebtSize:        minDebt,
			InterestRatePerSec: rate,
			ReservePoolBps:     p.ReservePoolBps,
			KillPrizeBps:       p.KillPrizeBps,
		},
	}, nil
}
