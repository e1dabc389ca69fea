package chain

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account derives a stable externally-owned address from a human readable name.
func Account(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("farmworker/account/" + name))[12:])
}

// NewContractAddress derives the address of the next contract deployed by deployer,
// the same way CREATE does.
func (h *Host) NewContractAddress(deployer common.Address) common.Address {
	h.nonceMu.Lock()
	defer h.nonceMu.Unlock()

	nonce := h.nonces[deployer]
	h.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

// NativeBalance returns the native coin balance of addr.
func (h *Host) NativeBalance(addr common.Address) sdkmath.Int {
	return h.native.Get(addr)
}

// Fund credits native coins out of thin air. It is meant for genesis and tests.
func (h *Host) Fund(ctx context.Context, addr common.Address, amount sdkmath.Int) {
	h.native.Set(ctx, addr, h.native.Get(addr).Add(amount))
}

// TransferNative moves native coins between accounts.
func (h *Host) TransferNative(ctx context.Context, from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "negative native transfer %s", amount)
	}
	balance := h.native.Get(from)
	if balance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "native balance of %s is %s, need %s", from.Hex(), balance, amount)
	}
	h.native.Set(ctx, from, balance.Sub(amount))
	h.native.Set(ctx, to, h.native.Get(to).Add(amount))
	return nil
}
