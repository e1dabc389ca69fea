/*

This file contains the configurable protocol and keeper parameters.

*/

package types

// WorkerParameters holds every tunable value of a deployment: worker bounties, vault risk factors,
// interest and reward emission, and the keeper's own action thresholds.
// Amounts are decimal strings in whole-token units (e.g., "0.05") so they survive JSON and SQL round trips
// without float rounding.
type WorkerParameters struct {
	// --- Worker ---
	ReinvestBountyBps        uint64 `json:"reinvest_bounty_bps"`         // Share of harvested reward paid to the reinvest caller (100 = 1%).
	MaxReinvestBountyBps     uint64 `json:"max_reinvest_bounty_bps"`     // Upper bound the owner may raise ReinvestBountyBps to.
	BeneficialVaultBountyBps uint64 `json:"beneficial_vault_bounty_bps"` // Share of the bounty bought back for the beneficial vault.

	// --- Vault ---
	WorkFactorBps      uint64 `json:"work_factor_bps"`       // Max debt/health for opening or adding to a position.
	KillFactorBps      uint64 `json:"kill_factor_bps"`       // Debt/health above which a position may be killed.
	KillPrizeBps       uint64 `json:"kill_prize_bps"`        // Share of liquidation proceeds paid to the killer.
	ReservePoolBps     uint64 `json:"reserve_pool_bps"`      // Share of accrued interest kept as protocol reserve.
	MinDebtSize        string `json:"min_debt_size"`         // Smallest debt a position may carry.
	InterestRatePerSec string `json:"interest_rate_per_sec"` // Interest per unit of debt per second, 1e18 scaled.

	// --- Staking pool ---
	RewardPerBlock string `json:"reward_per_block"` // Reward token emitted per block to the staking pool.

	// --- Keeper ---
	MinReinvestReward  string  `json:"min_reinvest_reward"`    // Pending reward below which reinvest is skipped.
	MinKillPrize       string  `json:"min_kill_prize"`         // Skip kills whose simulated prize is below this.
	MaxKillsPerCycle   int     `json:"max_kills_per_cycle"`    // Caps liquidations per cycle, worst health first.
	MaxPriceImpactPct  float64 `json:"max_price_impact_pct"`   // Reinvest is deferred while the swap impact is above this.
	AtRiskDebtRatioPct float64 `json:"at_risk_debt_ratio_pct"` // Positions above this debt ratio are reported as at risk.
}
