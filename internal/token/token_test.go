package token_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	deployer = chain.Account("deployer")
	alice    = chain.Account("alice")
	bob      = chain.Account("bob")
)

func newHost() *chain.Host {
	return chain.NewHost(time.Unix(1_700_000_000, 0), 3*time.Second)
}

func TestMintTransferBurn(t *testing.T) {
	host := newHost()
	ctx := context.Background()
	tkn := token.New(host, deployer, "CAKE", 18)
	require.Equal(t, deployer, tkn.Owner())
	require.Equal(t, "cake", tkn.Info().Denom())

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		if err := tkn.Mint(ctx, deployer, alice, sdkmath.NewInt(100)); err != nil {
			return err
		}
		return tkn.Transfer(ctx, alice, bob, sdkmath.NewInt(30))
	}))
	require.Equal(t, sdkmath.NewInt(70), tkn.BalanceOf(alice))
	require.Equal(t, sdkmath.NewInt(30), tkn.BalanceOf(bob))
	require.Equal(t, sdkmath.NewInt(100), tkn.TotalSupply())

	err := host.Transact(ctx, func(ctx context.Context) error {
		return tkn.Mint(ctx, alice, alice, sdkmath.NewInt(1))
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	err = host.Transact(ctx, func(ctx context.Context) error {
		return tkn.Transfer(ctx, bob, alice, sdkmath.NewInt(31))
	})
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		return tkn.Burn(ctx, bob, sdkmath.NewInt(30))
	}))
	require.True(t, tkn.BalanceOf(bob).IsZero())
	require.Equal(t, sdkmath.NewInt(70), tkn.TotalSupply())
}

func TestAllowance(t *testing.T) {
	host := newHost()
	ctx := context.Background()
	tkn := token.New(host, deployer, "BTOKEN", 18)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		if err := tkn.Mint(ctx, deployer, alice, sdkmath.NewInt(100)); err != nil {
			return err
		}
		return tkn.Approve(ctx, alice, bob, sdkmath.NewInt(50))
	}))

	err := host.Transact(ctx, func(ctx context.Context) error {
		return tkn.TransferFrom(ctx, bob, alice, bob, sdkmath.NewInt(51))
	})
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		return tkn.TransferFrom(ctx, bob, alice, bob, sdkmath.NewInt(20))
	}))
	require.Equal(t, sdkmath.NewInt(30), tkn.Allowance(alice, bob))
	require.Equal(t, sdkmath.NewInt(20), tkn.BalanceOf(bob))
}

func TestOwnership(t *testing.T) {
	host := newHost()
	ctx := context.Background()
	tkn := token.New(host, deployer, "CAKE", 18)

	err := host.Transact(ctx, func(ctx context.Context) error {
		return tkn.TransferOwnership(ctx, alice, alice)
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		if err := tkn.TransferOwnership(ctx, deployer, alice); err != nil {
			return err
		}
		return tkn.Mint(ctx, alice, bob, sdkmath.NewInt(5))
	}))
	require.Equal(t, alice, tkn.Owner())
	require.Equal(t, sdkmath.NewInt(5), tkn.BalanceOf(bob))
}

func TestWrapAndRelay(t *testing.T) {
	host := newHost()
	ctx := context.Background()
	wbnb := token.NewWNative(host, deployer, "WBNB")
	relayer := token.NewRelayer(host, deployer, wbnb)
	contract := chain.Account("contract")
	require.True(t, wbnb.Info().Native)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		host.Fund(ctx, alice, sdkmath.NewInt(100))
		if err := wbnb.Deposit(ctx, alice, sdkmath.NewInt(60)); err != nil {
			return err
		}
		return wbnb.Withdraw(ctx, alice, sdkmath.NewInt(10))
	}))
	require.Equal(t, sdkmath.NewInt(50), wbnb.BalanceOf(alice))
	require.Equal(t, sdkmath.NewInt(50), host.NativeBalance(alice))
	require.Equal(t, sdkmath.NewInt(50), host.NativeBalance(wbnb.Address()))

	unwrap := func(ctx context.Context) error {
		if err := wbnb.Transfer(ctx, alice, contract, sdkmath.NewInt(5)); err != nil {
			return err
		}
		if err := wbnb.Transfer(ctx, contract, relayer.Address(), sdkmath.NewInt(5)); err != nil {
			return err
		}
		return relayer.Withdraw(ctx, contract, sdkmath.NewInt(5))
	}
	require.ErrorIs(t, host.Transact(ctx, unwrap), types.ErrUnauthorized)

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		return relayer.SetCallerOk(ctx, deployer, []common.Address{contract}, true)
	}))
	require.NoError(t, host.Transact(ctx, unwrap))
	require.Equal(t, sdkmath.NewInt(5), host.NativeBalance(contract))
	require.True(t, wbnb.BalanceOf(relayer.Address()).IsZero())
}
