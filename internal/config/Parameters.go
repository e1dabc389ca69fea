/*

This file contains the default protocol and keeper parameters of a farmworker deployment.

The worker and vault values follow the deployment the leveraged farming suite was calibrated on: a
1% reinvest bounty, 70% work factor and 80% kill factor against a single-asset staking pool.
The keeper values are tuned for the simulated chain, where a cycle spans a few hundred blocks.

*/

package config

import (
	"github.com/elys-network/farmworker/internal/types"
)

// DefaultWorkerParameters provides a baseline set of parameters for the deployment and the keeper.
// These values are used if no active parameters are found in the database during initialization.
var DefaultWorkerParameters = types.WorkerParameters{
	// --- Worker ---
	ReinvestBountyBps: 100, // Pay 1% of the harvested reward to whoever reinvests.
	// Rationale: Large enough that an external keeper covers its costs, small enough
	// that compounding keeps almost the whole reward for the positions.

	MaxReinvestBountyBps: 500, // The owner may raise the bounty up to 5%.
	// Rationale: Leaves room to attract keepers in quiet markets without letting the
	// owner drain the reward. The hard protocol cap is 30%.

	BeneficialVaultBountyBps: 1000, // 10% of the bounty buys the beneficial vault token.
	// Rationale: Routes a small, steady buyback to lenders of the beneficial vault.

	// --- Vault ---
	WorkFactorBps: 7000, // A position may open with debt up to 70% of its health.
	// Rationale: Allows roughly 3x leverage while leaving a 10 point cushion
	// before the kill factor is reached.

	KillFactorBps: 8000, // A position may be killed once debt exceeds 80% of its health.
	// Rationale: Liquidating at 80% leaves enough value to pay the kill prize
	// and repay the vault after the liquidation swap's slippage.

	KillPrizeBps: 1000, // 10% of the liquidation proceeds go to the killer.
	// Rationale: Kills must be attractive even for small positions, otherwise
	// bad debt accumulates in the vault.

	ReservePoolBps: 1000, // Keep 10% of accrued interest as protocol reserve.
	// Rationale: The reserve absorbs bad debt left by kills that do not cover the debt.

	MinDebtSize: "0.05", // Positions may not carry less than 0.05 of the vault token in debt.
	// Rationale: Kill prizes on dust positions cannot cover the liquidation cost.

	InterestRatePerSec: "3472222222222", // About 30% per year on borrowed funds.
	// Rationale: Fixed-rate lending; the value is per second and 1e18 scaled.

	// --- Staking pool ---
	RewardPerBlock: "0.1", // The staking pool mints 0.1 reward token per block.

	// --- Keeper ---
	MinReinvestReward: "0.05", // Do not reinvest for less than 0.05 reward token.
	// Rationale: Every reinvest swaps and restakes; tiny harvests waste the bounty on price impact.

	MinKillPrize: "0", // Kill every eligible position regardless of prize.
	// Rationale: Bad debt grows with time; protecting lenders matters more than keeper profit.

	MaxKillsPerCycle: 10, // At most 10 liquidations per cycle, worst positions first.
	// Rationale: Each liquidation sells farming token into the same pool. Spreading them over
	// cycles limits the price impact that would push further positions over the kill factor.

	MaxPriceImpactPct: 5.0, // Defer reinvest while the reward swap would move the price by more than 5%.
	// Rationale: A reinvest into a thin pool compounds less than it loses to slippage.

	AtRiskDebtRatioPct: 75.0, // Report positions above 75% debt ratio as at risk.
	// Rationale: Gives the dashboard an early warning band below the 80% kill factor.
}
