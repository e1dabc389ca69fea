/*

Vault lends its token to leveraged positions opened on whitelisted workers.

Lenders deposit the vault token and receive interest-bearing ib tokens. A position borrows from the
vault through Work, which hands principal plus loan to a worker, and carries debt shares that grow
with the vault's interest. Once a position's debt crosses the worker's kill factor anyone may Kill
it: the worker liquidates the stake, the killer earns a prize, the vault is repaid and the owner
receives what is left.

*/

package vault

import (
	"context"
	"slices"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	BpsDenominator = 10000

	noPosition    uint64 = 0
	firstPosition uint64 = 1
)

var (
	bps           = sdkmath.NewInt(BpsDenominator)
	ratePrecision = sdkmath.NewIntWithDecimal(1, 18)
)

// Worker is what the vault needs from a worker it lends to. The vault must be the worker's operator.
type Worker interface {
	Address() common.Address
	IsStrategyOk(addr common.Address) bool
	Work(ctx context.Context, caller common.Address, id uint64, user common.Address, debt sdkmath.Int, call strategy.Call) error
	Health(ctx context.Context, id uint64) (sdkmath.Int, error)
	Liquidate(ctx context.Context, caller common.Address, id uint64) (sdkmath.Int, error)
}

type Config struct {
	MinDebtSize sdkmath.Int
	// InterestRatePerSec is charged per unit of debt per second, scaled by 1e18.
	InterestRatePerSec sdkmath.Int
	ReservePoolBps     uint64
	KillPrizeBps       uint64
}

// WorkerConfig holds the risk parameters of one worker.
type WorkerConfig struct {
	AcceptDebt    bool
	WorkFactorBps uint64 // Max debt/health in bps when opening or adding to a position
	KillFactorBps uint64 // Debt/health in bps above which the position may be killed
}

type Position struct {
	Worker    common.Address
	Owner     common.Address
	DebtShare sdkmath.Int
}

// KillResult describes where the proceeds of a kill went.
type KillResult struct {
	Proceeds sdkmath.Int // Base token returned by the worker
	Debt     sdkmath.Int // Debt value written off the position
	Prize    sdkmath.Int // Paid to the killer
	Left     sdkmath.Int // Paid to the position owner
}

type registeredWorker struct {
	worker Worker
	config WorkerConfig
}

type Vault struct {
	host    *chain.Host
	address common.Address
	owner   common.Address
	token   *token.Token
	ib      *token.Token
	// relayer is set when token is the wrapped native coin; payouts are then made in native coins.
	relayer *token.Relayer

	config  *chain.Value[Config]
	workers *chain.Store[common.Address, registeredWorker]

	positions      *chain.Store[uint64, Position]
	nextPositionID *chain.Value[uint64]

	vaultDebtShare *chain.Value[sdkmath.Int]
	vaultDebtVal   *chain.Value[sdkmath.Int]
	reservePool    *chain.Value[sdkmath.Int]
	lastAccrueTime *chain.Value[uint64]
	bountyReceived *chain.Value[sdkmath.Int]

	// execID is the position being worked on, noPosition outside Work.
	execID uint64

	logger zerolog.Logger
}

// New deploys a vault lending tkn.
func New(host *chain.Host, deployer common.Address, tkn *token.Token, cfg Config) (*Vault, error) {
	if tkn == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "vault: token is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	address := host.NewContractAddress(deployer)
	v := &Vault{
		host:    host,
		address: address,
		owner:   deployer,
		token:   tkn,
		ib:      token.New(host, address, "ib"+tkn.Symbol(), tkn.Decimals()),

		config:  chain.NewValue(host, cfg),
		workers: chain.NewStore[common.Address](host, registeredWorker{}),

		positions:      chain.NewStore[uint64](host, Position{DebtShare: sdkmath.ZeroInt()}),
		nextPositionID: chain.NewValue(host, firstPosition),

		vaultDebtShare: chain.NewValue(host, sdkmath.ZeroInt()),
		vaultDebtVal:   chain.NewValue(host, sdkmath.ZeroInt()),
		reservePool:    chain.NewValue(host, sdkmath.ZeroInt()),
		lastAccrueTime: chain.NewValue(host, host.Timestamp()),
		bountyReceived: chain.NewValue(host, sdkmath.ZeroInt()),

		logger: logger.GetForComponent("vault").With().Str("token", tkn.Symbol()).Logger(),
	}
	return v, nil
}

// NewNative deploys a vault lending the wrapped native coin. Withdrawals and payouts are unwrapped
// through relayer, which must whitelist the vault.
func NewNative(host *chain.Host, deployer common.Address, wnative *token.WNative, relayer *token.Relayer, cfg Config) (*Vault, error) {
	if wnative == nil || relayer == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "vault: wrapped native token and relayer are required")
	}
	v, err := New(host, deployer, wnative.Token, cfg)
	if err != nil {
		return nil, err
	}
	v.relayer = relayer
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.MinDebtSize.IsNil() || cfg.MinDebtSize.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "vault: min debt size must be set and non-negative")
	}
	if cfg.InterestRatePerSec.IsNil() || cfg.InterestRatePerSec.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidParameter, "vault: interest rate must be set and non-negative")
	}
	if cfg.ReservePoolBps > BpsDenominator || cfg.KillPrizeBps > BpsDenominator {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "vault: reserve %d and kill prize %d bps must not exceed %d", cfg.ReservePoolBps, cfg.KillPrizeBps, BpsDenominator)
	}
	return nil
}

func (v *Vault) Address() common.Address     { return v.address }
func (v *Vault) Owner() common.Address       { return v.owner }
func (v *Vault) Token() *token.Token         { return v.token }
func (v *Vault) IBToken() *token.Token       { return v.ib }
func (v *Vault) Config() Config              { return v.config.Get() }
func (v *Vault) VaultDebtShare() sdkmath.Int { return v.vaultDebtShare.Get() }
func (v *Vault) VaultDebtVal() sdkmath.Int   { return v.vaultDebtVal.Get() }
func (v *Vault) ReservePool() sdkmath.Int    { return v.reservePool.Get() }
func (v *Vault) BountyReceived() sdkmath.Int { return v.bountyReceived.Get() }

func (v *Vault) Position(id uint64) (Position, bool) {
	if !v.positions.Has(id) {
		return Position{}, false
	}
	return v.positions.Get(id), true
}

// PositionIDs lists every position ever opened, in ascending order.
func (v *Vault) PositionIDs() []uint64 {
	ids := v.positions.Keys()
	slices.Sort(ids)
	return ids
}

func (v *Vault) WorkerConfig(addr common.Address) (WorkerConfig, bool) {
	if !v.workers.Has(addr) {
		return WorkerConfig{}, false
	}
	return v.workers.Get(addr).config, true
}

// TotalToken is the value owed to ib holders: idle tokens plus lent debt, minus the reserve.
func (v *Vault) TotalToken() sdkmath.Int {
	return v.token.BalanceOf(v.address).Add(v.vaultDebtVal.Get()).Sub(v.reservePool.Get())
}

// PendingInterest is the interest the next accrual would add to the vault debt.
func (v *Vault) PendingInterest() sdkmath.Int {
	now, last := v.host.Timestamp(), v.lastAccrueTime.Get()
	if now <= last {
		return sdkmath.ZeroInt()
	}
	elapsed := sdkmath.NewIntFromUint64(now - last)
	return v.config.Get().InterestRatePerSec.Mul(v.vaultDebtVal.Get()).Mul(elapsed).Quo(ratePrecision)
}

func (v *Vault) accrue(ctx context.Context) {
	interest := v.PendingInterest()
	if interest.IsPositive() {
		reserve := interest.MulRaw(int64(v.config.Get().ReservePoolBps)).Quo(bps)
		v.reservePool.Set(ctx, v.reservePool.Get().Add(reserve))
		v.vaultDebtVal.Set(ctx, v.vaultDebtVal.Get().Add(interest))
	}
	v.lastAccrueTime.Set(ctx, v.host.Timestamp())
}

func (v *Vault) DebtShareToVal(share sdkmath.Int) sdkmath.Int {
	totalShare := v.vaultDebtShare.Get()
	if totalShare.IsZero() {
		return share
	}
	return share.Mul(v.vaultDebtVal.Get()).Quo(totalShare)
}

func (v *Vault) DebtValToShare(val sdkmath.Int) sdkmath.Int {
	totalShare := v.vaultDebtShare.Get()
	if totalShare.IsZero() {
		return val
	}
	return val.Mul(totalShare).Quo(v.vaultDebtVal.Get())
}

// PositionInfo returns the health of position id in the vault token and its debt value.
func (v *Vault) PositionInfo(ctx context.Context, id uint64) (health, debt sdkmath.Int, err error) {
	health, debt = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	err = v.host.View(ctx, func(ctx context.Context) error {
		pos, ok := v.Position(id)
		if !ok {
			return errorsmod.Wrapf(types.ErrBadPosition, "vault: position %d does not exist", id)
		}
		reg := v.workers.Get(pos.Worker)
		if reg.worker == nil {
			return errorsmod.Wrapf(types.ErrBadWorker, "vault: worker %s is not registered", pos.Worker.Hex())
		}
		h, err := reg.worker.Health(ctx, id)
		if err != nil {
			return err
		}
		health, debt = h, v.DebtShareToVal(pos.DebtShare)
		return nil
	})
	return health, debt, err
}

// Deposit pulls amount tokens from caller and mints ib tokens at the current share price.
func (v *Vault) Deposit(ctx context.Context, caller common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	share := sdkmath.ZeroInt()
	err := v.host.Transact(ctx, func(ctx context.Context) error {
		if !amount.IsPositive() {
			return errorsmod.Wrap(types.ErrInvalidParameter, "vault: deposit amount must be positive")
		}
		v.accrue(ctx)
		total := v.TotalToken()
		if err := v.token.TransferFrom(ctx, v.address, caller, v.address, amount); err != nil {
			return err
		}
		supply := v.ib.TotalSupply()
		share = amount
		if total.IsPositive() && supply.IsPositive() {
			share = amount.Mul(supply).Quo(total)
		}
		if err := v.ib.Mint(ctx, v.address, caller, share); err != nil {
			return err
		}
		v.logger.Info().Str("account", caller.Hex()).Str("amount", amount.String()).Str("share", share.String()).Msg("Deposit")
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return share, nil
}

// Withdraw burns share ib tokens of caller and pays out the tokens they are worth.
func (v *Vault) Withdraw(ctx context.Context, caller common.Address, share sdkmath.Int) (sdkmath.Int, error) {
	amount := sdkmath.ZeroInt()
	err := v.host.Transact(ctx, func(ctx context.Context) error {
		if !share.IsPositive() {
			return errorsmod.Wrap(types.ErrInvalidParameter, "vault: withdraw share must be positive")
		}
		v.accrue(ctx)
		supply := v.ib.TotalSupply()
		if supply.IsZero() {
			return errorsmod.Wrap(types.ErrInsufficientBalance, "vault: no ib tokens outstanding")
		}
		amount = share.Mul(v.TotalToken()).Quo(supply)
		if err := v.ib.Burn(ctx, caller, share); err != nil {
			return err
		}
		if idle := v.token.BalanceOf(v.address).Sub(v.reservePool.Get()); idle.LT(amount) {
			return errorsmod.Wrapf(types.ErrInsufficientLiquidity, "vault: %s idle, %s requested", idle, amount)
		}
		if err := v.safeUnwrap(ctx, caller, amount); err != nil {
			return err
		}
		v.logger.Info().Str("account", caller.Hex()).Str("share", share.String()).Str("amount", amount.String()).Msg("Withdraw")
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}

// Work opens position id (0 for a new one) on workerAddr, or adjusts it. Principal is pulled from
// caller and loan is lent by the vault; both go to the worker, which runs call. Up to maxReturn of
// the base tokens coming back repay debt and the rest is paid out to caller. The remaining debt must
// stay within the worker's work factor. It returns the position id.
func (v *Vault) Work(ctx context.Context, caller common.Address, id uint64, workerAddr common.Address, principal, loan, maxReturn sdkmath.Int, call strategy.Call) (uint64, error) {
	err := v.host.Transact(ctx, func(ctx context.Context) error {
		if v.execID != noPosition {
			return errorsmod.Wrap(types.ErrReentrant, "vault: already working on a position")
		}
		principal, loan, maxReturn = orZero(principal), orZero(loan), orZero(maxReturn)
		if principal.IsNegative() || loan.IsNegative() || maxReturn.IsNegative() {
			return errorsmod.Wrap(types.ErrInvalidParameter, "vault: negative work amounts")
		}
		reg := v.workers.Get(workerAddr)
		if reg.worker == nil {
			return errorsmod.Wrapf(types.ErrBadWorker, "vault: worker %s is not registered", workerAddr.Hex())
		}
		if loan.IsPositive() && !reg.config.AcceptDebt {
			return errorsmod.Wrapf(types.ErrBadWorker, "vault: worker %s does not accept more debt", workerAddr.Hex())
		}
		v.accrue(ctx)

		if id == noPosition {
			id = v.nextPositionID.Get()
			v.nextPositionID.Set(ctx, id+1)
			v.positions.Set(ctx, id, Position{Worker: workerAddr, Owner: caller, DebtShare: sdkmath.ZeroInt()})
		} else {
			pos, ok := v.Position(id)
			if !ok || pos.Worker != workerAddr {
				return errorsmod.Wrapf(types.ErrBadPosition, "vault: position %d is not on worker %s", id, workerAddr.Hex())
			}
			if pos.Owner != caller {
				return errorsmod.Wrapf(types.ErrUnauthorized, "vault: %s does not own position %d", caller.Hex(), id)
			}
		}

		v.execID = id
		defer func() { v.execID = noPosition }()

		debt := v.removeDebt(ctx, id).Add(loan)
		start := v.token.BalanceOf(v.address)
		if principal.IsPositive() {
			if err := v.token.TransferFrom(ctx, v.address, caller, v.address, principal); err != nil {
				return err
			}
		}
		if idle := start.Sub(v.reservePool.Get()); idle.LT(loan) {
			return errorsmod.Wrapf(types.ErrInsufficientLiquidity, "vault: %s idle, loan of %s requested", idle, loan)
		}
		if sent := principal.Add(loan); sent.IsPositive() {
			if err := v.token.Transfer(ctx, v.address, workerAddr, sent); err != nil {
				return err
			}
		}
		if err := reg.worker.Work(ctx, v.address, id, caller, debt, call); err != nil {
			return err
		}
		back := v.token.BalanceOf(v.address).Sub(start.Sub(loan))

		lessDebt := sdkmath.MinInt(debt, sdkmath.MinInt(back, maxReturn))
		debt = debt.Sub(lessDebt)
		if debt.IsPositive() {
			if debt.LT(v.config.Get().MinDebtSize) {
				return errorsmod.Wrapf(types.ErrDebtTooSmall, "vault: debt %s below minimum %s", debt, v.config.Get().MinDebtSize)
			}
			health, err := reg.worker.Health(ctx, id)
			if err != nil {
				return err
			}
			if !withinFactor(health, debt, reg.config.WorkFactorBps) {
				return errorsmod.Wrapf(types.ErrBadWorkFactor, "vault: debt %s over health %s exceeds work factor %d", debt, health, reg.config.WorkFactorBps)
			}
			v.addDebt(ctx, id, debt)
		}
		if rest := back.Sub(lessDebt); rest.IsPositive() {
			if err := v.safeUnwrap(ctx, caller, rest); err != nil {
				return err
			}
		}

		v.logger.Info().
			Uint64("id", id).
			Str("owner", caller.Hex()).
			Str("worker", workerAddr.Hex()).
			Str("principal", principal.String()).
			Str("loan", loan.String()).
			Str("debt", debt.String()).
			Str("back", back.String()).
			Msg("Work")
		return nil
	})
	if err != nil {
		return noPosition, err
	}
	return id, nil
}

// Kill liquidates position id once its debt crosses the worker's kill factor. caller earns the kill
// prize out of the proceeds.
func (v *Vault) Kill(ctx context.Context, caller common.Address, id uint64) (KillResult, error) {
	var res KillResult
	err := v.host.Transact(ctx, func(ctx context.Context) error {
		if v.execID != noPosition {
			return errorsmod.Wrap(types.ErrReentrant, "vault: kill during work")
		}
		v.accrue(ctx)
		pos, ok := v.Position(id)
		if !ok || !pos.DebtShare.IsPositive() {
			return errorsmod.Wrapf(types.ErrCannotLiquidate, "vault: position %d has no debt", id)
		}
		reg := v.workers.Get(pos.Worker)
		if reg.worker == nil {
			return errorsmod.Wrapf(types.ErrBadWorker, "vault: worker %s is not registered", pos.Worker.Hex())
		}
		debt := v.DebtShareToVal(pos.DebtShare)
		health, err := reg.worker.Health(ctx, id)
		if err != nil {
			return err
		}
		if withinFactor(health, debt, reg.config.KillFactorBps) {
			return errorsmod.Wrapf(types.ErrCannotLiquidate, "vault: position %d is healthy (health %s, debt %s)", id, health, debt)
		}

		v.removeDebt(ctx, id)
		before := v.token.BalanceOf(v.address)
		if _, err := reg.worker.Liquidate(ctx, v.address, id); err != nil {
			return err
		}
		back := v.token.BalanceOf(v.address).Sub(before)

		prize := back.MulRaw(int64(v.config.Get().KillPrizeBps)).Quo(bps)
		rest := back.Sub(prize)
		left := sdkmath.ZeroInt()
		if rest.GT(debt) {
			left = rest.Sub(debt)
		}
		if prize.IsPositive() {
			if err := v.safeUnwrap(ctx, caller, prize); err != nil {
				return err
			}
		}
		if left.IsPositive() {
			if err := v.safeUnwrap(ctx, pos.Owner, left); err != nil {
				return err
			}
		}
		res = KillResult{Proceeds: back, Debt: debt, Prize: prize, Left: left}

		ev := v.logger.Info()
		if rest.LT(debt) {
			ev = v.logger.Warn().Str("bad_debt", debt.Sub(rest).String())
		}
		ev.Uint64("id", id).
			Str("killer", caller.Hex()).
			Str("proceeds", back.String()).
			Str("debt", debt.String()).
			Str("prize", prize.String()).
			Str("left", left.String()).
			Msg("Kill")
		return nil
	})
	return res, err
}

// RequestFunds moves amount of tkn from the owner of the position being worked on to caller, which
// must be a strategy approved by the position's worker. The owner must have approved the vault.
func (v *Vault) RequestFunds(ctx context.Context, caller common.Address, tkn *token.Token, amount sdkmath.Int) error {
	return v.host.Transact(ctx, func(ctx context.Context) error {
		if v.execID == noPosition {
			return errorsmod.Wrap(types.ErrNotInExecution, "vault: no position is being worked on")
		}
		pos := v.positions.Get(v.execID)
		reg := v.workers.Get(pos.Worker)
		if reg.worker == nil || !reg.worker.IsStrategyOk(caller) {
			return errorsmod.Wrapf(types.ErrUnapprovedStrategy, "vault: %s is not a strategy of worker %s", caller.Hex(), pos.Worker.Hex())
		}
		return tkn.TransferFrom(ctx, v.address, pos.Owner, caller, amount)
	})
}

// ReceiveBounty records a beneficial vault bounty that caller has already transferred.
func (v *Vault) ReceiveBounty(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	return v.host.Transact(ctx, func(ctx context.Context) error {
		v.bountyReceived.Set(ctx, v.bountyReceived.Get().Add(amount))
		v.logger.Debug().Str("from", caller.Hex()).Str("amount", amount.String()).Msg("ReceiveBounty")
		return nil
	})
}

func (v *Vault) removeDebt(ctx context.Context, id uint64) sdkmath.Int {
	pos := v.positions.Get(id)
	share := pos.DebtShare
	if !share.IsPositive() {
		return sdkmath.ZeroInt()
	}
	val := v.DebtShareToVal(share)
	pos.DebtShare = sdkmath.ZeroInt()
	v.positions.Set(ctx, id, pos)
	v.vaultDebtShare.Set(ctx, v.vaultDebtShare.Get().Sub(share))
	v.vaultDebtVal.Set(ctx, v.vaultDebtVal.Get().Sub(val))
	v.logger.Debug().Uint64("id", id).Str("share", share.String()).Str("value", val.String()).Msg("RemoveDebt")
	return val
}

func (v *Vault) addDebt(ctx context.Context, id uint64, val sdkmath.Int) {
	share := v.DebtValToShare(val)
	pos := v.positions.Get(id)
	pos.DebtShare = pos.DebtShare.Add(share)
	v.positions.Set(ctx, id, pos)
	v.vaultDebtShare.Set(ctx, v.vaultDebtShare.Get().Add(share))
	v.vaultDebtVal.Set(ctx, v.vaultDebtVal.Get().Add(val))
	v.logger.Debug().Uint64("id", id).Str("share", share.String()).Str("value", val.String()).Msg("AddDebt")
}

// safeUnwrap pays amount to to, in native coins when the vault lends the wrapped native token.
func (v *Vault) safeUnwrap(ctx context.Context, to common.Address, amount sdkmath.Int) error {
	if v.relayer == nil {
		return v.token.Transfer(ctx, v.address, to, amount)
	}
	if err := v.token.Transfer(ctx, v.address, v.relayer.Address(), amount); err != nil {
		return err
	}
	if err := v.relayer.Withdraw(ctx, v.address, amount); err != nil {
		return err
	}
	return v.host.TransferNative(ctx, v.address, to, amount)
}

// withinFactor reports whether debt is at most factorBps of health.
func withinFactor(health, debt sdkmath.Int, factorBps uint64) bool {
	return health.MulRaw(int64(factorBps)).GTE(debt.Mul(bps))
}

func orZero(x sdkmath.Int) sdkmath.Int {
	if x.IsNil() {
		return sdkmath.ZeroInt()
	}
	return x
}
