/*

MasterChef distributes a fixed reward per block across staking pools by allocation points.

Each pool keeps an accumulated reward per staked unit scaled by 1e12. A staker's pending reward
is amount*acc/1e12 - rewardDebt and is paid out (minted) whenever the staker touches the pool.

*/

package masterchef

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// AccPrecision scales the per-share reward accumulator.
var AccPrecision = sdkmath.NewInt(1_000_000_000_000)

type PoolInfo struct {
	StakeToken        *token.Token
	AllocPoint        uint64
	LastRewardBlock   uint64
	AccRewardPerShare sdkmath.Int
	TotalStaked       sdkmath.Int
}

type UserInfo struct {
	Amount     sdkmath.Int
	RewardDebt sdkmath.Int
}

type userKey struct {
	pid     uint64
	account common.Address
}

type MasterChef struct {
	host    *chain.Host
	address common.Address
	owner   common.Address
	reward  *token.Token

	rewardPerBlock  *chain.Value[sdkmath.Int]
	totalAllocPoint *chain.Value[uint64]
	poolCount       *chain.Value[uint64]
	pools           *chain.Store[uint64, PoolInfo]
	users           *chain.Store[userKey, UserInfo]

	logger zerolog.Logger
}

// New deploys a chef paying rewardPerBlock of reward. The chef must be made the owner of reward
// before anyone can harvest.
func New(host *chain.Host, deployer common.Address, reward *token.Token, rewardPerBlock sdkmath.Int) *MasterChef {
	return &MasterChef{
		host:            host,
		address:         host.NewContractAddress(deployer),
		owner:           deployer,
		reward:          reward,
		rewardPerBlock:  chain.NewValue(host, rewardPerBlock),
		totalAllocPoint: chain.NewValue(host, uint64(0)),
		poolCount:       chain.NewValue(host, uint64(0)),
		pools:           chain.NewStore[uint64](host, PoolInfo{}),
		users:           chain.NewStore[userKey](host, UserInfo{Amount: sdkmath.ZeroInt(), RewardDebt: sdkmath.ZeroInt()}),
		logger:          logger.GetForComponent("masterchef"),
	}
}

func (mc *MasterChef) Address() common.Address     { return mc.address }
func (mc *MasterChef) RewardToken() *token.Token   { return mc.reward }
func (mc *MasterChef) RewardPerBlock() sdkmath.Int { return mc.rewardPerBlock.Get() }
func (mc *MasterChef) PoolLength() uint64          { return mc.poolCount.Get() }

// PoolInfo returns the pool pid as of its last update.
func (mc *MasterChef) PoolInfo(pid uint64) (PoolInfo, error) {
	if pid >= mc.poolCount.Get() {
		return PoolInfo{}, errorsmod.Wrapf(types.ErrInvalidParameter, "masterchef: unknown pool %d", pid)
	}
	return mc.pools.Get(pid), nil
}

func (mc *MasterChef) UserInfo(pid uint64, account common.Address) UserInfo {
	return mc.users.Get(userKey{pid: pid, account: account})
}

// AddPool registers a new staking pool. All pools are updated first so the new weights only
// apply to future blocks.
func (mc *MasterChef) AddPool(ctx context.Context, caller common.Address, allocPoint uint64, stakeToken *token.Token) (uint64, error) {
	var pid uint64
	err := mc.host.Transact(ctx, func(ctx context.Context) error {
		if caller != mc.owner {
			return errorsmod.Wrap(types.ErrUnauthorized, "masterchef: caller is not the owner")
		}
		mc.massUpdatePools(ctx)

		pid = mc.poolCount.Get()
		mc.pools.Set(ctx, pid, PoolInfo{
			StakeToken:        stakeToken,
			AllocPoint:        allocPoint,
			LastRewardBlock:   mc.host.BlockNumber(),
			AccRewardPerShare: sdkmath.ZeroInt(),
			TotalStaked:       sdkmath.ZeroInt(),
		})
		mc.poolCount.Set(ctx, pid+1)
		mc.totalAllocPoint.Set(ctx, mc.totalAllocPoint.Get()+allocPoint)
		return nil
	})
	return pid, err
}

// SetRewardPerBlock changes the emission rate from the next block on.
func (mc *MasterChef) SetRewardPerBlock(ctx context.Context, caller common.Address, rewardPerBlock sdkmath.Int) error {
	return mc.host.Transact(ctx, func(ctx context.Context) error {
		if caller != mc.owner {
			return errorsmod.Wrap(types.ErrUnauthorized, "masterchef: caller is not the owner")
		}
		mc.massUpdatePools(ctx)
		mc.rewardPerBlock.Set(ctx, rewardPerBlock)
		return nil
	})
}

// accrued returns the pool accumulator as it would be at block.
func (mc *MasterChef) accrued(pool PoolInfo, block uint64) sdkmath.Int {
	if block <= pool.LastRewardBlock || pool.TotalStaked.IsZero() || mc.totalAllocPoint.Get() == 0 {
		return pool.AccRewardPerShare
	}
	blocks := sdkmath.NewIntFromUint64(block - pool.LastRewardBlock)
	reward := blocks.Mul(mc.rewardPerBlock.Get()).
		Mul(sdkmath.NewIntFromUint64(pool.AllocPoint)).
		Quo(sdkmath.NewIntFromUint64(mc.totalAllocPoint.Get()))
	return pool.AccRewardPerShare.Add(reward.Mul(AccPrecision).Quo(pool.TotalStaked))
}

func (mc *MasterChef) updatePool(ctx context.Context, pid uint64) PoolInfo {
	pool := mc.pools.Get(pid)
	block := mc.host.BlockNumber()
	if block <= pool.LastRewardBlock {
		return pool
	}
	pool.AccRewardPerShare = mc.accrued(pool, block)
	pool.LastRewardBlock = block
	mc.pools.Set(ctx, pid, pool)
	return pool
}

func (mc *MasterChef) massUpdatePools(ctx context.Context) {
	for pid := uint64(0); pid < mc.poolCount.Get(); pid++ {
		mc.updatePool(ctx, pid)
	}
}

// PendingReward returns what account would harvest from pid at the current block.
func (mc *MasterChef) PendingReward(pid uint64, account common.Address) sdkmath.Int {
	if pid >= mc.poolCount.Get() {
		return sdkmath.ZeroInt()
	}
	user := mc.UserInfo(pid, account)
	acc := mc.accrued(mc.pools.Get(pid), mc.host.BlockNumber())
	return user.Amount.Mul(acc).Quo(AccPrecision).Sub(user.RewardDebt)
}

// harvest pays out the pending reward of user against the updated pool.
func (mc *MasterChef) harvest(ctx context.Context, pool PoolInfo, user UserInfo, account common.Address) (sdkmath.Int, error) {
	if !user.Amount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	pending := user.Amount.Mul(pool.AccRewardPerShare).Quo(AccPrecision).Sub(user.RewardDebt)
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := mc.reward.Mint(ctx, mc.address, account, pending); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return pending, nil
}

// Deposit stakes amount of the pool token of caller and returns the reward harvested on the way.
// A zero amount only harvests.
func (mc *MasterChef) Deposit(ctx context.Context, caller common.Address, pid uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	harvested := sdkmath.ZeroInt()
	err := mc.host.Transact(ctx, func(ctx context.Context) error {
		if pid >= mc.poolCount.Get() {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "masterchef: unknown pool %d", pid)
		}
		if amount.IsNegative() {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "masterchef: negative deposit %s", amount)
		}
		pool := mc.updatePool(ctx, pid)
		key := userKey{pid: pid, account: caller}
		user := mc.users.Get(key)

		var err error
		if harvested, err = mc.harvest(ctx, pool, user, caller); err != nil {
			return err
		}
		if amount.IsPositive() {
			if err := pool.StakeToken.TransferFrom(ctx, mc.address, caller, mc.address, amount); err != nil {
				return err
			}
			user.Amount = user.Amount.Add(amount)
			pool.TotalStaked = pool.TotalStaked.Add(amount)
			mc.pools.Set(ctx, pid, pool)
		}
		user.RewardDebt = user.Amount.Mul(pool.AccRewardPerShare).Quo(AccPrecision)
		mc.users.Set(ctx, key, user)
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	mc.logger.Debug().
		Uint64("pid", pid).
		Str("account", caller.Hex()).
		Str("amount", amount.String()).
		Str("harvested", harvested.String()).
		Msg("Deposit")
	return harvested, nil
}

// Withdraw unstakes amount for caller and returns the reward harvested on the way.
// A zero amount only harvests.
func (mc *MasterChef) Withdraw(ctx context.Context, caller common.Address, pid uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	harvested := sdkmath.ZeroInt()
	err := mc.host.Transact(ctx, func(ctx context.Context) error {
		if pid >= mc.poolCount.Get() {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "masterchef: unknown pool %d", pid)
		}
		key := userKey{pid: pid, account: caller}
		user := mc.users.Get(key)
		if amount.IsNegative() || user.Amount.LT(amount) {
			return errorsmod.Wrapf(types.ErrInsufficientBalance, "masterchef: withdraw %s of staked %s", amount, user.Amount)
		}
		pool := mc.updatePool(ctx, pid)

		var err error
		if harvested, err = mc.harvest(ctx, pool, user, caller); err != nil {
			return err
		}
		if amount.IsPositive() {
			user.Amount = user.Amount.Sub(amount)
			pool.TotalStaked = pool.TotalStaked.Sub(amount)
			mc.pools.Set(ctx, pid, pool)
			if err := pool.StakeToken.Transfer(ctx, mc.address, caller, amount); err != nil {
				return err
			}
		}
		user.RewardDebt = user.Amount.Mul(pool.AccRewardPerShare).Quo(AccPrecision)
		mc.users.Set(ctx, key, user)
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	mc.logger.Debug().
		Uint64("pid", pid).
		Str("account", caller.Hex()).
		Str("amount", amount.String()).
		Str("harvested", harvested.String()).
		Msg("Withdraw")
	return harvested, nil
}
