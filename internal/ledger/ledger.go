/*

Ledger tracks how a worker's pooled staked balance is split between positions.

Positions hold shares. The exchange rate between shares and staked balance is always the live
ratio totalBalance/totalShare; it is never stored. Divisions truncate, so rounding always stays
in the pool instead of being paid to the position being converted.

*/

package ledger

import (
	"context"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
)

// ShareToBalance converts share into staked balance at the given totals.
func ShareToBalance(share, totalShare, totalBalance sdkmath.Int) sdkmath.Int {
	if share.IsZero() || totalShare.IsZero() {
		return sdkmath.ZeroInt()
	}
	return share.Mul(totalBalance).Quo(totalShare)
}

// BalanceToShare converts balance into shares at the given totals. The first depositor gets
// shares one to one.
func BalanceToShare(balance, totalShare, totalBalance sdkmath.Int) sdkmath.Int {
	if totalShare.IsZero() || totalBalance.IsZero() {
		return balance
	}
	return balance.Mul(totalShare).Quo(totalBalance)
}

type Ledger struct {
	shares       *chain.Store[uint64, sdkmath.Int]
	totalShare   *chain.Value[sdkmath.Int]
	totalBalance *chain.Value[sdkmath.Int]
}

func New(host *chain.Host) *Ledger {
	return &Ledger{
		shares:       chain.NewStore[uint64](host, sdkmath.ZeroInt()),
		totalShare:   chain.NewValue(host, sdkmath.ZeroInt()),
		totalBalance: chain.NewValue(host, sdkmath.ZeroInt()),
	}
}

func (l *Ledger) Shares(id uint64) sdkmath.Int { return l.shares.Get(id) }
func (l *Ledger) TotalShare() sdkmath.Int      { return l.totalShare.Get() }
func (l *Ledger) TotalBalance() sdkmath.Int    { return l.totalBalance.Get() }

func (l *Ledger) ShareToBalance(share sdkmath.Int) sdkmath.Int {
	return ShareToBalance(share, l.totalShare.Get(), l.totalBalance.Get())
}

func (l *Ledger) BalanceToShare(balance sdkmath.Int) sdkmath.Int {
	return BalanceToShare(balance, l.totalShare.Get(), l.totalBalance.Get())
}

// PositionBalance is the staked balance currently claimable by position id.
func (l *Ledger) PositionBalance(id uint64) sdkmath.Int {
	return l.ShareToBalance(l.shares.Get(id))
}

// Positions returns the ids holding shares, in ascending order.
func (l *Ledger) Positions() []uint64 {
	ids := l.shares.Keys()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Deposit credits position id with the shares worth balance before balance is added to the pool.
func (l *Ledger) Deposit(ctx context.Context, id uint64, balance sdkmath.Int) sdkmath.Int {
	share := l.BalanceToShare(balance)
	if share.IsPositive() {
		l.shares.Set(ctx, id, l.shares.Get(id).Add(share))
		l.totalShare.Set(ctx, l.totalShare.Get().Add(share))
	}
	l.totalBalance.Set(ctx, l.totalBalance.Get().Add(balance))
	return share
}

// WithdrawAll removes every share of position id and returns the balance they were worth.
func (l *Ledger) WithdrawAll(ctx context.Context, id uint64) sdkmath.Int {
	share := l.shares.Get(id)
	if share.IsZero() {
		return sdkmath.ZeroInt()
	}
	balance := l.ShareToBalance(share)
	l.shares.Delete(ctx, id)
	l.totalShare.Set(ctx, l.totalShare.Get().Sub(share))
	l.totalBalance.Set(ctx, l.totalBalance.Get().Sub(balance))
	return balance
}

// Compound adds balance to the pool without minting shares, raising the value of every share.
func (l *Ledger) Compound(ctx context.Context, balance sdkmath.Int) {
	l.totalBalance.Set(ctx, l.totalBalance.Get().Add(balance))
}
