package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/farmworker/internal/types"
	"github.com/rs/zerolog/log"
)

const parameterColumns = `
	reinvest_bounty_bps, max_reinvest_bounty_bps, beneficial_vault_bounty_bps,
	work_factor_bps, kill_factor_bps, kill_prize_bps, reserve_pool_bps,
	min_debt_size, interest_rate_per_sec, reward_per_block,
	min_reinvest_reward, min_kill_prize, max_kills_per_cycle,
	max_price_impact_pct, at_risk_debt_ratio_pct`

// SaveWorkerParameters saves a new version of the worker parameters.
func SaveWorkerParameters(params types.WorkerParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		_, err = tx.Exec(`UPDATE worker_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO worker_parameters (
			version, config_name, is_active, activated_at, created_at,` + parameterColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20
		) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.ReinvestBountyBps, params.MaxReinvestBountyBps, params.BeneficialVaultBountyBps,
		params.WorkFactorBps, params.KillFactorBps, params.KillPrizeBps, params.ReservePoolBps,
		params.MinDebtSize, params.InterestRatePerSec, params.RewardPerBlock,
		params.MinReinvestReward, params.MinKillPrize, params.MaxKillsPerCycle,
		params.MaxPriceImpactPct, params.AtRiskDebtRatioPct,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert worker parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved worker parameters")
	return paramsID, nil
}

func scanParameters(row *sql.Row, p *types.WorkerParameters) error {
	return row.Scan(
		&p.ReinvestBountyBps, &p.MaxReinvestBountyBps, &p.BeneficialVaultBountyBps,
		&p.WorkFactorBps, &p.KillFactorBps, &p.KillPrizeBps, &p.ReservePoolBps,
		&p.MinDebtSize, &p.InterestRatePerSec, &p.RewardPerBlock,
		&p.MinReinvestReward, &p.MinKillPrize, &p.MaxKillsPerCycle,
		&p.MaxPriceImpactPct, &p.AtRiskDebtRatioPct,
	)
}

// LoadActiveWorkerParameters loads the currently active worker parameters.
func LoadActiveWorkerParameters(configName string) (*types.WorkerParameters, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `SELECT` + parameterColumns + `
		FROM worker_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	p := &types.WorkerParameters{}
	if err := scanParameters(DB.QueryRow(query, configName), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no active worker parameters found for config '%s': %w", configName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan active worker parameters for config '%s': %w", configName, err)
	}
	log.Info().Str("config", configName).Msg("Loaded active worker parameters")
	return p, nil
}

// GetActiveWorkerParametersID returns the params_id of the currently active worker parameters,
// or nil when none is active.
func GetActiveWorkerParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT params_id
		FROM worker_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var paramsID int64
	if err := DB.QueryRow(query, configName).Scan(&paramsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("config", configName).Msg("No active worker parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active worker parameters ID for config '%s': %w", configName, err)
	}

	log.Debug().Str("config", configName).Int64("params_id", paramsID).Msg("Retrieved active worker parameters ID")
	return &paramsID, nil
}
