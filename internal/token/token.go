/*

Token is a mintable fungible token ledger with ERC20 semantics (balances, allowances, total supply).

*/

package token

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type Token struct {
	host     *chain.Host
	address  common.Address
	symbol   string
	decimals int

	owner       *chain.Value[common.Address]
	totalSupply *chain.Value[sdkmath.Int]
	balances    *chain.Store[common.Address, sdkmath.Int]
	allowances  *chain.Store[allowanceKey, sdkmath.Int]
}

// New deploys a token. The deployer becomes its owner and the only account allowed to mint.
func New(host *chain.Host, deployer common.Address, symbol string, decimals int) *Token {
	return &Token{
		host:        host,
		address:     host.NewContractAddress(deployer),
		symbol:      symbol,
		decimals:    decimals,
		owner:       chain.NewValue(host, deployer),
		totalSupply: chain.NewValue(host, sdkmath.ZeroInt()),
		balances:    chain.NewStore[common.Address](host, sdkmath.ZeroInt()),
		allowances:  chain.NewStore[allowanceKey](host, sdkmath.ZeroInt()),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() int           { return t.decimals }
func (t *Token) Owner() common.Address   { return t.owner.Get() }

// Info returns the token metadata used in snapshots.
func (t *Token) Info() types.Token {
	return types.Token{Symbol: t.symbol, Address: t.address, Decimals: t.decimals}
}

func (t *Token) TotalSupply() sdkmath.Int {
	return t.totalSupply.Get()
}

func (t *Token) BalanceOf(account common.Address) sdkmath.Int {
	return t.balances.Get(account)
}

func (t *Token) Allowance(owner, spender common.Address) sdkmath.Int {
	return t.allowances.Get(allowanceKey{owner: owner, spender: spender})
}

// TransferOwnership hands minting rights to another account.
func (t *Token) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	if caller != t.owner.Get() {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s: caller is not the owner", t.symbol)
	}
	t.owner.Set(ctx, newOwner)
	return nil
}

// Mint creates amount tokens for to. Only the owner may mint.
func (t *Token) Mint(ctx context.Context, caller, to common.Address, amount sdkmath.Int) error {
	if caller != t.owner.Get() {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s: caller is not the minter", t.symbol)
	}
	return t.mint(ctx, to, amount)
}

func (t *Token) mint(ctx context.Context, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "%s: negative mint amount %s", t.symbol, amount)
	}
	t.totalSupply.Set(ctx, t.totalSupply.Get().Add(amount))
	t.balances.Set(ctx, to, t.balances.Get(to).Add(amount))
	return nil
}

// Burn destroys amount tokens held by from.
func (t *Token) Burn(ctx context.Context, from common.Address, amount sdkmath.Int) error {
	balance := t.balances.Get(from)
	if balance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s: burn amount exceeds balance (%s < %s)", t.symbol, balance, amount)
	}
	t.balances.Set(ctx, from, balance.Sub(amount))
	t.totalSupply.Set(ctx, t.totalSupply.Get().Sub(amount))
	return nil
}

// Transfer moves amount tokens from one account to another.
func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "%s: negative transfer amount %s", t.symbol, amount)
	}
	balance := t.balances.Get(from)
	if balance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s: transfer amount exceeds balance of %s (%s < %s)", t.symbol, from.Hex(), balance, amount)
	}
	if amount.IsZero() || from == to {
		return nil
	}
	t.balances.Set(ctx, from, balance.Sub(amount))
	t.balances.Set(ctx, to, t.balances.Get(to).Add(amount))
	return nil
}

// Approve sets the amount spender may move on behalf of owner.
func (t *Token) Approve(ctx context.Context, owner, spender common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "%s: negative allowance %s", t.symbol, amount)
	}
	t.allowances.Set(ctx, allowanceKey{owner: owner, spender: spender}, amount)
	return nil
}

// TransferFrom moves amount tokens from one account to another using spender's allowance.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to common.Address, amount sdkmath.Int) error {
	key := allowanceKey{owner: from, spender: spender}
	allowance := t.allowances.Get(key)
	if allowance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientAllowance, "%s: %s may move %s of %s, need %s", t.symbol, spender.Hex(), allowance, from.Hex(), amount)
	}
	if err := t.Transfer(ctx, from, to, amount); err != nil {
		return err
	}
	t.allowances.Set(ctx, key, allowance.Sub(amount))
	return nil
}
