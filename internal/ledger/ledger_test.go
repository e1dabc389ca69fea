package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/ledger"
	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	zero := sdkmath.ZeroInt()
	require.True(t, ledger.ShareToBalance(sdkmath.NewInt(5), zero, zero).IsZero())
	require.Equal(t, sdkmath.NewInt(7), ledger.BalanceToShare(sdkmath.NewInt(7), zero, zero))

	// 3 shares over 10 balance: conversions truncate toward the pool.
	require.Equal(t, sdkmath.NewInt(3), ledger.ShareToBalance(sdkmath.NewInt(1), sdkmath.NewInt(3), sdkmath.NewInt(10)))
	require.Equal(t, sdkmath.NewInt(1), ledger.BalanceToShare(sdkmath.NewInt(4), sdkmath.NewInt(3), sdkmath.NewInt(10)))
}

func TestDepositWithdrawCompound(t *testing.T) {
	host := chain.NewHost(time.Unix(0, 0), time.Second)
	l := ledger.New(host)
	ctx := context.Background()

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		require.Equal(t, sdkmath.NewInt(100), l.Deposit(ctx, 1, sdkmath.NewInt(100)))
		l.Compound(ctx, sdkmath.NewInt(50))
		// 150 balance backs 100 shares now.
		require.Equal(t, sdkmath.NewInt(66), l.Deposit(ctx, 2, sdkmath.NewInt(100)))
		return nil
	}))
	require.Equal(t, sdkmath.NewInt(166), l.TotalShare())
	require.Equal(t, sdkmath.NewInt(250), l.TotalBalance())
	require.Equal(t, []uint64{1, 2}, l.Positions())
	require.Equal(t, sdkmath.NewInt(150), l.PositionBalance(1))
	require.Equal(t, sdkmath.NewInt(99), l.PositionBalance(2))

	var got sdkmath.Int
	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		got = l.WithdrawAll(ctx, 2)
		return nil
	}))
	require.Equal(t, sdkmath.NewInt(99), got)
	require.True(t, l.Shares(2).IsZero())
	// The rounding dust stays with the remaining position.
	require.Equal(t, sdkmath.NewInt(151), l.PositionBalance(1))

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		got = l.WithdrawAll(ctx, 1)
		return nil
	}))
	require.Equal(t, sdkmath.NewInt(151), got)
	require.True(t, l.TotalShare().IsZero())
	require.True(t, l.TotalBalance().IsZero())
	require.Empty(t, l.Positions())
}

func TestRollback(t *testing.T) {
	host := chain.NewHost(time.Unix(0, 0), time.Second)
	l := ledger.New(host)
	ctx := context.Background()
	errBoom := errors.New("boom")

	require.NoError(t, host.Transact(ctx, func(ctx context.Context) error {
		l.Deposit(ctx, 1, sdkmath.NewInt(10))
		return nil
	}))
	err := host.Transact(ctx, func(ctx context.Context) error {
		l.Deposit(ctx, 2, sdkmath.NewInt(10))
		l.WithdrawAll(ctx, 1)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, sdkmath.NewInt(10), l.Shares(1))
	require.True(t, l.Shares(2).IsZero())
	require.Equal(t, sdkmath.NewInt(10), l.TotalBalance())
}

func TestWriteOutsideTransactionPanics(t *testing.T) {
	host := chain.NewHost(time.Unix(0, 0), time.Second)
	l := ledger.New(host)
	require.PanicsWithValue(t, chain.ErrWriteOutsideTransaction, func() {
		l.Deposit(context.Background(), 1, sdkmath.NewInt(1))
	})
}
