package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/token"
	"github.com/ethereum/go-ethereum/common"
)

// Manager defines the interface the keeper uses to watch and liquidate vault positions.
// It abstracts the lending vault so that the keeper can be driven by any implementation,
// including test doubles.
type Manager interface {
	// Address returns the vault's account.
	Address() common.Address

	// Token returns the token the vault lends.
	Token() *token.Token

	// TotalToken returns the value owed to lenders, in the vault token.
	TotalToken() sdkmath.Int

	// PositionIDs returns every position ever opened.
	PositionIDs() []uint64

	// Position returns the owner, worker and debt share of a position.
	Position(id uint64) (Position, bool)

	// PositionInfo returns the health and the debt value of a position.
	PositionInfo(ctx context.Context, id uint64) (health, debt sdkmath.Int, err error)

	// WorkerConfig returns the risk parameters of a registered worker.
	WorkerConfig(addr common.Address) (WorkerConfig, bool)

	// Kill liquidates an unhealthy position, paying the prize to caller.
	Kill(ctx context.Context, caller common.Address, id uint64) (KillResult, error)
}

var _ Manager = (*Vault)(nil)
