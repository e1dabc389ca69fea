package vault_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/deploy"
	"github.com/elys-network/farmworker/internal/strategy"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func units(s string) sdkmath.Int { return utils.MustParseUnits(s, 18) }

func genesis(t *testing.T) (*deploy.Deployment, context.Context) {
	t.Helper()
	ctx := context.Background()
	d, err := deploy.Genesis(ctx, deploy.DefaultOptions())
	require.NoError(t, err)
	return d, ctx
}

func addBaseTokenOnly(d *deploy.Deployment) strategy.Call {
	return strategy.Call{Strategy: d.AddBaseTokenOnly, Params: strategy.AddBaseTokenOnlyParams{MinFarmingAmount: sdkmath.ZeroInt()}}
}

func liquidate(d *deploy.Deployment) strategy.Call {
	return strategy.Call{Strategy: d.Liquidate, Params: strategy.LiquidateParams{MinBaseAmount: sdkmath.ZeroInt()}}
}

// approve lets the vault pull amount wrapped native tokens from owner.
func approve(t *testing.T, d *deploy.Deployment, ctx context.Context, owner common.Address, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, d.Host.Transact(ctx, func(ctx context.Context) error {
		return d.WNative.Approve(ctx, owner, d.Vault.Address(), amount)
	}))
}

func deposit(t *testing.T, d *deploy.Deployment, ctx context.Context, lender common.Address, amount sdkmath.Int) sdkmath.Int {
	t.Helper()
	approve(t, d, ctx, lender, amount)
	share, err := d.Vault.Deposit(ctx, lender, amount)
	require.NoError(t, err)
	return share
}

func TestDepositWithdraw(t *testing.T) {
	d, ctx := genesis(t)
	v := d.Vault

	share := deposit(t, d, ctx, d.Alice, units("1"))
	require.Equal(t, units("1"), share)
	require.Equal(t, units("1"), v.IBToken().BalanceOf(d.Alice))
	require.Equal(t, units("1"), v.TotalToken())

	share = deposit(t, d, ctx, d.Bob, units("2"))
	require.Equal(t, units("2"), share)

	_, err := v.Deposit(ctx, d.Bob, units("1"))
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)
	_, err = v.Deposit(ctx, d.Bob, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	native := d.Host.NativeBalance(d.Alice)
	amount, err := v.Withdraw(ctx, d.Alice, units("0.4"))
	require.NoError(t, err)
	require.Equal(t, units("0.4"), amount)
	// The vault lends the wrapped native token and pays out native coins.
	require.Equal(t, units("0.4"), d.Host.NativeBalance(d.Alice).Sub(native))
	require.Equal(t, units("0.6"), v.IBToken().BalanceOf(d.Alice))

	_, err = v.Withdraw(ctx, d.Alice, units("1"))
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestWorkOpensAndAdjustsPosition(t *testing.T) {
	d, ctx := genesis(t)
	v, w := d.Vault, d.Worker

	deposit(t, d, ctx, d.Alice, units("1"))
	approve(t, d, ctx, d.Alice, units("10"))

	id, err := v.Work(ctx, d.Alice, 0, w.Address(), units("0.05"), units("0.05"), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.Equal(t, "9070243237099340", w.Shares(id).String())

	pos, ok := v.Position(id)
	require.True(t, ok)
	require.Equal(t, d.Alice, pos.Owner)
	require.Equal(t, w.Address(), pos.Worker)
	require.Equal(t, units("0.05"), pos.DebtShare)
	require.Equal(t, units("1"), v.TotalToken())

	id, err = v.Work(ctx, d.Alice, id, w.Address(), units("0.1"), sdkmath.ZeroInt(), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.Equal(t, "16630354291151718", w.Shares(id).String())

	health, debt, err := v.PositionInfo(ctx, id)
	require.NoError(t, err)
	require.True(t, health.GT(debt))
	require.True(t, debt.GTE(units("0.05")))
	require.Equal(t, []uint64{1}, v.PositionIDs())

	// Only the owner may touch the position.
	_, err = v.Work(ctx, d.Bob, id, w.Address(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestReinvestPaysBeneficialVault(t *testing.T) {
	d, ctx := genesis(t)
	v, w := d.Vault, d.Worker

	deposit(t, d, ctx, d.Alice, units("1"))
	approve(t, d, ctx, d.Alice, units("10"))
	id, err := v.Work(ctx, d.Alice, 0, w.Address(), units("0.05"), units("0.05"), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.NoError(t, err)
	_, err = v.Work(ctx, d.Alice, id, w.Address(), units("0.1"), sdkmath.ZeroInt(), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.NoError(t, err)

	before := v.TotalToken()
	eveBefore := d.Cake.BalanceOf(d.Eve)
	res, err := w.Reinvest(ctx, d.Eve)
	require.NoError(t, err)
	require.Equal(t, "199999999999980246", res.Reward.String())
	require.Equal(t, "1999999999999802", res.Bounty.String())
	require.Equal(t, "199999999999980", res.BeneficialBounty.String())
	require.Equal(t, "1799999999999822", res.CallerBounty.String())
	require.Equal(t, res.Bounty, res.CallerBounty.Add(res.BeneficialBounty))
	require.Equal(t, res.CallerBounty, d.Cake.BalanceOf(d.Eve).Sub(eveBefore))

	// The bounty is bought in WBNB and raises the value of every ib token.
	require.Equal(t, "2864693637458453", res.BeneficialOut.String())
	require.Equal(t, res.BeneficialOut, v.BountyReceived())
	require.Equal(t, res.BeneficialOut, v.TotalToken().Sub(before))
}

func TestWorkWithFarmingTokensFromOwner(t *testing.T) {
	d, ctx := genesis(t)
	v, w := d.Vault, d.Worker

	deposit(t, d, ctx, d.Bob, units("1"))
	approve(t, d, ctx, d.Alice, units("10"))
	call := strategy.Call{Strategy: d.AddBaseWithFarm, Params: strategy.AddBaseWithFarmParams{
		FarmingAmount:    units("0.04"),
		MinFarmingAmount: sdkmath.ZeroInt(),
	}}

	_, err := v.Work(ctx, d.Alice, 0, w.Address(), units("0.1"), sdkmath.ZeroInt(), sdkmath.ZeroInt(), call)
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)

	require.NoError(t, d.Host.Transact(ctx, func(ctx context.Context) error {
		return d.Cake.Approve(ctx, d.Alice, v.Address(), units("0.04"))
	}))
	id, err := v.Work(ctx, d.Alice, 0, w.Address(), units("0.1"), sdkmath.ZeroInt(), sdkmath.ZeroInt(), call)
	require.NoError(t, err)
	require.Equal(t, "49070243237099340", w.Shares(id).String())

	// Funds can only be requested while a position is being worked on.
	err = d.Host.Transact(ctx, func(ctx context.Context) error {
		return v.RequestFunds(ctx, d.AddBaseWithFarm.Address(), d.Cake, units("0.01"))
	})
	require.ErrorIs(t, err, types.ErrNotInExecution)
}

func TestWorkRiskChecks(t *testing.T) {
	d, ctx := genesis(t)
	v, w := d.Vault, d.Worker

	deposit(t, d, ctx, d.Bob, units("1"))
	approve(t, d, ctx, d.Alice, units("10"))
	open := func(principal, loan string) error {
		_, err := v.Work(ctx, d.Alice, 0, w.Address(), units(principal), units(loan), sdkmath.ZeroInt(), addBaseTokenOnly(d))
		return err
	}

	require.ErrorIs(t, open("0.1", "0.01"), types.ErrDebtTooSmall)
	require.ErrorIs(t, open("0.05", "0.5"), types.ErrBadWorkFactor)
	require.ErrorIs(t, open("0.1", "2"), types.ErrInsufficientLiquidity)

	_, err := v.Work(ctx, d.Alice, 0, d.Alice, units("0.1"), sdkmath.ZeroInt(), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.ErrorIs(t, err, types.ErrBadWorker)

	require.NoError(t, v.SetWorkerConfig(ctx, d.Deployer, w, vault.WorkerConfig{AcceptDebt: false, WorkFactorBps: 7000, KillFactorBps: 8000}))
	require.ErrorIs(t, open("0.1", "0.1"), types.ErrBadWorker)
	require.NoError(t, open("0.1", "0"))

	// Failed attempts left no positions and no debt behind.
	require.Equal(t, []uint64{1}, v.PositionIDs())
	require.True(t, v.VaultDebtVal().IsZero())
	require.True(t, v.VaultDebtShare().IsZero())
	require.Equal(t, units("1"), v.TotalToken())
}

func TestClosePositionRepaysDebt(t *testing.T) {
	d, ctx := genesis(t)
	v, w := d.Vault, d.Worker

	deposit(t, d, ctx, d.Bob, units("1"))
	approve(t, d, ctx, d.Alice, units("10"))
	id, err := v.Work(ctx, d.Alice, 0, w.Address(), units("0.1"), units("0.1"), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.NoError(t, err)

	native := d.Host.NativeBalance(d.Alice)
	_, debt, err := v.PositionInfo(ctx, id)
	require.NoError(t, err)
	// maxReturn caps what is repaid. Debt left on a liquidated position has no health behind it.
	_, err = v.Work(ctx, d.Alice, id, w.Address(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), units("0.01"), liquidate(d))
	require.ErrorIs(t, err, types.ErrBadWorkFactor)
	_, err = v.Work(ctx, d.Alice, id, w.Address(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), units("0.06"), liquidate(d))
	require.ErrorIs(t, err, types.ErrDebtTooSmall)

	_, err = v.Work(ctx, d.Alice, id, w.Address(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), units("1000"), liquidate(d))
	require.NoError(t, err)

	pos, _ := v.Position(id)
	require.True(t, pos.DebtShare.IsZero())
	require.True(t, v.VaultDebtVal().IsZero())
	require.True(t, v.VaultDebtShare().IsZero())
	require.True(t, w.Shares(id).IsZero())
	require.True(t, d.Host.NativeBalance(d.Alice).Sub(native).IsPositive())
	require.True(t, v.TotalToken().GTE(units("1")), "interest paid %s on debt %s", v.TotalToken(), debt)
}

func TestInterestAccrual(t *testing.T) {
	d, ctx := genesis(t)
	v := d.Vault

	deposit(t, d, ctx, d.Bob, units("1"))
	approve(t, d, ctx, d.Alice, units("10"))
	_, err := v.Work(ctx, d.Alice, 0, d.Worker.Address(), units("0.1"), units("0.05"), sdkmath.ZeroInt(), addBaseTokenOnly(d))
	require.NoError(t, err)

	d.Host.AdvanceTime(1000 * time.Second)
	// 3472222222222 per second on 0.05 for 1000 seconds.
	require.Equal(t, "173611111111100", v.PendingInterest().String())

	reserveBefore := v.ReservePool()
	require.NoError(t, v.UpdateConfig(ctx, d.Deployer, v.Config()))
	interest := v.VaultDebtVal().Sub(units("0.05"))
	require.True(t, interest.GTE(sdkmath.NewInt(173611111111100)))
	require.Equal(t, interest.QuoRaw(10), v.ReservePool().Sub(reserveBefore))
	require.True(t, v.PendingInterest().IsZero())

	// Lenders earn the interest net of the reserve.
	require.Equal(t, units("1").Add(interest).Sub(v.ReservePool()), v.TotalToken())

	err = v.WithdrawReserve(ctx, d.Alice, d.Alice, v.ReservePool())
	require.ErrorIs(t, err, types.ErrUnauthorized)
	reserve := v.ReservePool()
	require.NoError(t, v.WithdrawReserve(ctx, d.Deployer, d.Deployer, reserve))
	require.True(t, v.ReservePool().IsZero())
}

func TestKill(t *testing.T) {
	d, ctx := genesis(t)
	v := d.Vault

	ids, err := d.SeedPositions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ids)
	id := ids[0]

	health, _, err := v.PositionInfo(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "995101813263076585", health.String())

	_, err = v.Kill(ctx, d.Eve, id)
	require.ErrorIs(t, err, types.ErrCannotLiquidate)

	_, err = d.SellPressure(ctx, units("1.4"))
	require.NoError(t, err)
	health, debt, err := v.PositionInfo(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "610363371521647755", health.String())

	eve, alice := d.Host.NativeBalance(d.Eve), d.Host.NativeBalance(d.Alice)
	res, err := v.Kill(ctx, d.Eve, id)
	require.NoError(t, err)
	require.Equal(t, "610363371521647755", res.Proceeds.String())
	require.Equal(t, "61036337152164775", res.Prize.String())
	require.True(t, res.Debt.GTE(debt))
	require.Equal(t, res.Proceeds.Sub(res.Prize).Sub(res.Debt), res.Left)
	require.Equal(t, res.Prize, d.Host.NativeBalance(d.Eve).Sub(eve))
	require.Equal(t, res.Left, d.Host.NativeBalance(d.Alice).Sub(alice))

	pos, _ := v.Position(id)
	require.True(t, pos.DebtShare.IsZero())
	require.True(t, v.VaultDebtVal().IsZero())
	require.True(t, d.Worker.Shares(id).IsZero())

	_, err = v.Kill(ctx, d.Eve, id)
	require.ErrorIs(t, err, types.ErrCannotLiquidate)
}

func TestKillWithBadDebt(t *testing.T) {
	d, ctx := genesis(t)
	v := d.Vault

	ids, err := d.SeedPositions(ctx, 1)
	require.NoError(t, err)
	_, err = d.SellPressure(ctx, units("3"))
	require.NoError(t, err)

	before := v.TotalToken()
	alice := d.Host.NativeBalance(d.Alice)
	res, err := v.Kill(ctx, d.Eve, ids[0])
	require.NoError(t, err)
	require.True(t, res.Left.IsZero())
	require.True(t, res.Proceeds.Sub(res.Prize).LT(res.Debt))
	require.Equal(t, alice, d.Host.NativeBalance(d.Alice))

	// Lenders absorb the shortfall, softened only by the interest accrued during the kill.
	shortfall := res.Debt.Sub(res.Proceeds.Sub(res.Prize))
	require.True(t, v.TotalToken().LT(before))
	require.True(t, v.TotalToken().GTE(before.Sub(shortfall)))
}

func TestAdmin(t *testing.T) {
	d, ctx := genesis(t)
	v := d.Vault

	err := v.SetWorkerConfig(ctx, d.Alice, d.Worker, vault.WorkerConfig{AcceptDebt: true, WorkFactorBps: 7000, KillFactorBps: 8000})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	err = v.SetWorkerConfig(ctx, d.Deployer, d.Worker, vault.WorkerConfig{AcceptDebt: true, WorkFactorBps: 9000, KillFactorBps: 8000})
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	cfg := v.Config()
	cfg.KillPrizeBps = vault.BpsDenominator + 1
	require.ErrorIs(t, v.UpdateConfig(ctx, d.Deployer, cfg), types.ErrInvalidParameter)

	wc, ok := v.WorkerConfig(d.Worker.Address())
	require.True(t, ok)
	require.Equal(t, vault.WorkerConfig{AcceptDebt: true, WorkFactorBps: 7000, KillFactorBps: 8000}, wc)
	_, ok = v.WorkerConfig(d.Alice)
	require.False(t, ok)
}
