package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace shared by every farmworker component.
const Codespace = "farmworker"

var (
	ErrUnauthorized          = errorsmod.Register(Codespace, 2, "unauthorized")
	ErrUnapprovedStrategy    = errorsmod.Register(Codespace, 3, "unapproved work strategy")
	ErrSlippageExceeded      = errorsmod.Register(Codespace, 4, "slippage exceeded")
	ErrInvalidParameter      = errorsmod.Register(Codespace, 5, "invalid parameter")
	ErrReentrant             = errorsmod.Register(Codespace, 6, "reentrant call")
	ErrInsufficientBalance   = errorsmod.Register(Codespace, 7, "insufficient balance")
	ErrInsufficientAllowance = errorsmod.Register(Codespace, 8, "insufficient allowance")
	ErrInsufficientLiquidity = errorsmod.Register(Codespace, 9, "insufficient liquidity")
	ErrInvalidPath           = errorsmod.Register(Codespace, 10, "invalid swap path")
	ErrBadPosition           = errorsmod.Register(Codespace, 11, "bad position")
	ErrBadWorkFactor         = errorsmod.Register(Codespace, 12, "bad work factor")
	ErrDebtTooSmall          = errorsmod.Register(Codespace, 13, "debt below minimum size")
	ErrCannotLiquidate       = errorsmod.Register(Codespace, 14, "position cannot be liquidated")
	ErrNotInExecution        = errorsmod.Register(Codespace, 15, "not within a position execution")
	ErrBadWorker             = errorsmod.Register(Codespace, 16, "worker not whitelisted")
	ErrMathOverflow          = errorsmod.Register(Codespace, 17, "math overflow")
)
