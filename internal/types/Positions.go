/*

This file contains the types for positions, planned keeper actions and the per-cycle snapshot.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"
)

// PositionSnapshot is a vault position as seen by the keeper.
type PositionSnapshot struct {
	ID        uint64         `json:"id"`
	Worker    common.Address `json:"worker"`
	Owner     common.Address `json:"owner"`
	DebtShare sdkmath.Int    `json:"debt_share"`
	Debt      sdkmath.Int    `json:"debt"`   // Debt value in the vault token
	Health    sdkmath.Int    `json:"health"` // Worker health in the base token
	Shares    sdkmath.Int    `json:"shares"` // Worker ledger shares held by the position
	// Debt over health in percent. Liquidation is allowed once this crosses KillFactor/100.
	DebtRatioPercent float64 `json:"debt_ratio_percent"`
	Killable         bool    `json:"killable"`
}

// WorkerSnapshot is the aggregate state of one worker.
type WorkerSnapshot struct {
	Address        common.Address `json:"address"`
	Name           string         `json:"name"`
	BaseToken      string         `json:"base_token"`
	FarmingToken   string         `json:"farming_token"`
	RewardToken    string         `json:"reward_token"`
	RewardDecimals int            `json:"reward_decimals"`
	TotalShare     sdkmath.Int    `json:"total_share"`
	TotalBalance   sdkmath.Int    `json:"total_balance"`
	RewardBalance  sdkmath.Int    `json:"reward_balance"`
	PendingReward  sdkmath.Int    `json:"pending_reward"`
}

// ActionType defines the operations the keeper can perform.
type ActionType string

const (
	ActionReinvest ActionType = "REINVEST"
	ActionKill     ActionType = "KILL"
	ActionNoOp     ActionType = "NO_OP"
)

// PlannedAction is a single executable step in a keeper plan.
type PlannedAction struct {
	Type ActionType `json:"type"`

	Worker     common.Address `json:"worker"`
	PositionID uint64         `json:"position_id,omitempty"` // For KILL

	// Simulation results
	ExpectedReward   sdkmath.Int `json:"expected_reward,omitempty"`   // For REINVEST: reward that will be harvested
	ExpectedBounty   sdkmath.Int `json:"expected_bounty,omitempty"`   // For REINVEST: bounty paid to the keeper
	ExpectedProceeds sdkmath.Int `json:"expected_proceeds,omitempty"` // For KILL: base token out of the liquidation
	ExpectedPrize    sdkmath.Int `json:"expected_prize,omitempty"`    // For KILL: prize paid to the keeper
	PriceImpact      float64     `json:"price_impact,omitempty"`      // Percent price impact of the swap involved
}

// ActionPlan holds the ordered actions of a cycle.
type ActionPlan struct {
	GoalDescription string          `json:"goal_description"`
	Actions         []PlannedAction `json:"actions"`
}

// ActionReceipt records the outcome of one executed action.
type ActionReceipt struct {
	ReceiptID      int64           `json:"receipt_id,omitempty"` // Auto-incremented by DB
	TxID           string          `json:"tx_id"`
	Action         PlannedAction   `json:"action"`
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	Block          uint64          `json:"block"`
	Timestamp      time.Time       `json:"timestamp"`
	ResultingCoins []sdktypes.Coin `json:"resulting_coins,omitempty"` // Tokens received by the keeper
}

// CycleSnapshot is the full record of one keeper cycle.
type CycleSnapshot struct {
	SnapshotID  int64     `json:"snapshot_id,omitempty"`
	CycleID     string    `json:"cycle_id"`
	CycleNumber int       `json:"cycle_number"`
	Timestamp   time.Time `json:"timestamp"`
	ParamsID    *int64    `json:"params_id,omitempty"`
	StartBlock  uint64    `json:"start_block"`
	EndBlock    uint64    `json:"end_block"`

	// Pre-Action State
	InitialWorkers   []WorkerSnapshot   `json:"initial_workers"`
	InitialPositions []PositionSnapshot `json:"initial_positions"`
	Pairs            []PairSnapshot     `json:"pairs"`

	// The Plan
	ActionPlan ActionPlan `json:"action_plan"`

	// The Outcome
	FinalWorkers   []WorkerSnapshot   `json:"final_workers"`
	FinalPositions []PositionSnapshot `json:"final_positions"`
	TxIDs          []string           `json:"tx_ids"`
	ActionReceipts []ActionReceipt    `json:"action_receipts"`

	// Keeper earnings in the reward token (reinvest bounty) and vault token (kill prize)
	BountyEarned    float64 `json:"bounty_earned"`
	PrizeEarned     float64 `json:"prize_earned"`
	VaultTotalToken float64 `json:"vault_total_token"`
	PositionsAtRisk int     `json:"positions_at_risk"`
	FailedActions   int     `json:"failed_actions"`
}
