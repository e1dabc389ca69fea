package token

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// WNative wraps the chain's native coin one-to-one.
type WNative struct {
	*Token
}

func NewWNative(host *chain.Host, deployer common.Address, symbol string) *WNative {
	return &WNative{Token: New(host, deployer, symbol, 18)}
}

// Info marks the token as the wrapped native coin.
func (w *WNative) Info() types.Token {
	info := w.Token.Info()
	info.Native = true
	return info
}

// Deposit locks amount native coins of caller and mints the same amount of wrapped tokens.
func (w *WNative) Deposit(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if err := w.host.TransferNative(ctx, caller, w.address, amount); err != nil {
		return err
	}
	return w.mint(ctx, caller, amount)
}

// Withdraw burns amount wrapped tokens of caller and releases the native coins.
func (w *WNative) Withdraw(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if err := w.Burn(ctx, caller, amount); err != nil {
		return err
	}
	return w.host.TransferNative(ctx, w.address, caller, amount)
}

// Relayer unwraps wrapped native tokens on behalf of whitelisted contracts.
// Callers first transfer the wrapped tokens to the relayer, then ask it to withdraw.
type Relayer struct {
	host    *chain.Host
	address common.Address
	owner   common.Address
	wnative *WNative

	okCallers *chain.Store[common.Address, bool]
}

func NewRelayer(host *chain.Host, deployer common.Address, wnative *WNative) *Relayer {
	return &Relayer{
		host:      host,
		address:   host.NewContractAddress(deployer),
		owner:     deployer,
		wnative:   wnative,
		okCallers: chain.NewStore[common.Address](host, false),
	}
}

func (r *Relayer) Address() common.Address { return r.address }

// SetCallerOk whitelists or removes contracts allowed to withdraw through the relayer.
func (r *Relayer) SetCallerOk(ctx context.Context, caller common.Address, callers []common.Address, ok bool) error {
	if caller != r.owner {
		return errorsmod.Wrap(types.ErrUnauthorized, "relayer: caller is not the owner")
	}
	for _, c := range callers {
		r.okCallers.Set(ctx, c, ok)
	}
	return nil
}

// Withdraw unwraps amount tokens held by the relayer and sends the native coins to caller.
func (r *Relayer) Withdraw(ctx context.Context, caller common.Address, amount sdkmath.Int) error {
	if !r.okCallers.Get(caller) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "relayer: %s is not whitelisted", caller.Hex())
	}
	if err := r.wnative.Withdraw(ctx, r.address, amount); err != nil {
		return err
	}
	return r.host.TransferNative(ctx, r.address, caller, amount)
}
