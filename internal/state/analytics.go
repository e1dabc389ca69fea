package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/farmworker/internal/types"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// WorkerSummary represents the latest known state of the farm
type WorkerSummary struct {
	Workers         []types.WorkerSnapshot `json:"workers"`
	PositionCount   int                    `json:"position_count"`
	PositionsAtRisk int                    `json:"positions_at_risk"`
	VaultTotalToken float64                `json:"vault_total_token"`
	TotalCycles     int                    `json:"total_cycles"`
	LastBlock       uint64                 `json:"last_block"`
	LastUpdated     *time.Time             `json:"last_updated,omitempty"`
}

// PerformanceMetrics represents aggregated keeper results
type PerformanceMetrics struct {
	TotalBounty      float64 `json:"total_bounty"`
	TotalPrize       float64 `json:"total_prize"`
	TotalCycles      int     `json:"total_cycles"`
	SuccessfulCycles int     `json:"successful_cycles"` // Cycles without failed actions
	FailedActions    int     `json:"failed_actions"`
	Reinvests        int     `json:"reinvests"`
	Kills            int     `json:"kills"`
}

const snapshotColumns = `
	snapshot_id, cycle_id, cycle_number, snapshot_timestamp, params_id, start_block, end_block,
	initial_workers, initial_positions, pairs,
	action_plan,
	final_workers, final_positions, tx_ids,
	bounty_earned, prize_earned, vault_total_token, positions_at_risk, failed_actions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (types.CycleSnapshot, error) {
	var (
		cycle    types.CycleSnapshot
		paramsID sql.NullInt64
		js       snapshotJSON
	)
	err := row.Scan(
		&cycle.SnapshotID, &cycle.CycleID, &cycle.CycleNumber, &cycle.Timestamp, &paramsID, &cycle.StartBlock, &cycle.EndBlock,
		&js.initialWorkers, &js.initialPositions, &js.pairs,
		&js.actionPlan,
		&js.finalWorkers, &js.finalPositions, pq.Array(&cycle.TxIDs),
		&cycle.BountyEarned, &cycle.PrizeEarned, &cycle.VaultTotalToken, &cycle.PositionsAtRisk, &cycle.FailedActions,
	)
	if err != nil {
		return cycle, err
	}
	if paramsID.Valid {
		cycle.ParamsID = &paramsID.Int64
	}
	return cycle, unmarshalJSONFields(&cycle, js)
}

// unmarshalJSONFields unmarshals the JSONB columns of a cycle snapshot
func unmarshalJSONFields(cycle *types.CycleSnapshot, js snapshotJSON) error {
	for _, f := range []struct {
		name string
		src  []byte
		dst  any
	}{
		{"initial workers", js.initialWorkers, &cycle.InitialWorkers},
		{"initial positions", js.initialPositions, &cycle.InitialPositions},
		{"pairs", js.pairs, &cycle.Pairs},
		{"action plan", js.actionPlan, &cycle.ActionPlan},
		{"final workers", js.finalWorkers, &cycle.FinalWorkers},
		{"final positions", js.finalPositions, &cycle.FinalPositions},
	} {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	return nil
}

// GetRecentCycles retrieves recent cycle snapshots, newest first. Receipts are not loaded.
func GetRecentCycles(limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	limit = clampLimit(limit)

	query := `SELECT` + snapshotColumns + `
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT $1`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycles")
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		cycle, err := scanSnapshot(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(cycles)).Int("limit", limit).Msg("Retrieved recent cycles")
	return cycles, nil
}

// GetCycleByID retrieves a specific cycle, including its action receipts
func GetCycleByID(snapshotID int64) (*types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `SELECT` + snapshotColumns + `
		FROM cycle_snapshots
		WHERE snapshot_id = $1`

	cycle, err := scanSnapshot(DB.QueryRow(query, snapshotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cycle with ID %d: %w", snapshotID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query cycle by ID: %w", err)
	}

	cycle.ActionReceipts, err = GetActionReceipts(snapshotID)
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetWorkerSummary summarises the most recent cycle
func GetWorkerSummary() (*WorkerSummary, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	cycles, err := GetRecentCycles(1)
	if err != nil {
		return nil, err
	}

	summary := &WorkerSummary{Workers: []types.WorkerSnapshot{}}
	if err := DB.QueryRow("SELECT COUNT(*) FROM cycle_snapshots").Scan(&summary.TotalCycles); err != nil {
		log.Error().Err(err).Msg("Failed to get total cycle count")
	}
	if len(cycles) > 0 {
		fillSummary(summary, cycles[0])
	}
	return summary, nil
}

// GetPerformanceMetrics aggregates keeper results over all cycles
func GetPerformanceMetrics() (*PerformanceMetrics, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	metrics := &PerformanceMetrics{}
	query := `
		SELECT
			COALESCE(SUM(bounty_earned), 0),
			COALESCE(SUM(prize_earned), 0),
			COUNT(*),
			COUNT(CASE WHEN failed_actions = 0 THEN 1 END),
			COALESCE(SUM(failed_actions), 0)
		FROM cycle_snapshots
	`
	err := DB.QueryRow(query).Scan(
		&metrics.TotalBounty,
		&metrics.TotalPrize,
		&metrics.TotalCycles,
		&metrics.SuccessfulCycles,
		&metrics.FailedActions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance metrics: %w", err)
	}

	countsQuery := `
		SELECT
			COUNT(CASE WHEN action_type = $1 THEN 1 END),
			COUNT(CASE WHEN action_type = $2 THEN 1 END)
		FROM action_receipts
		WHERE success = TRUE
	`
	err = DB.QueryRow(countsQuery, string(types.ActionReinvest), string(types.ActionKill)).Scan(&metrics.Reinvests, &metrics.Kills)
	if err != nil {
		return nil, fmt.Errorf("failed to count executed actions: %w", err)
	}

	log.Debug().
		Float64("totalBounty", metrics.TotalBounty).
		Float64("totalPrize", metrics.TotalPrize).
		Int("totalCycles", metrics.TotalCycles).
		Msg("Retrieved performance metrics")
	return metrics, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}

// fillSummary copies the end state of cycle into summary.
func fillSummary(summary *WorkerSummary, cycle types.CycleSnapshot) {
	summary.Workers = cycle.FinalWorkers
	summary.PositionCount = len(cycle.FinalPositions)
	summary.PositionsAtRisk = cycle.PositionsAtRisk
	summary.VaultTotalToken = cycle.VaultTotalToken
	summary.LastBlock = cycle.EndBlock
	ts := cycle.Timestamp
	summary.LastUpdated = &ts
}
