package state

import (
	"encoding/json"
	"fmt"

	"github.com/elys-network/farmworker/internal/types"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"
)

// SaveCycleSnapshot saves a complete cycle snapshot and its action receipts in one transaction.
func SaveCycleSnapshot(snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	fields, err := marshalJSONFields(snapshot)
	if err != nil {
		return 0, err
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := `
		INSERT INTO cycle_snapshots (
			cycle_id, cycle_number, snapshot_timestamp, params_id, start_block, end_block,
			initial_workers, initial_positions, pairs,
			action_plan,
			final_workers, final_positions, tx_ids,
			bounty_earned, prize_earned, vault_total_token, positions_at_risk, failed_actions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = tx.QueryRow(
		query,
		snapshot.CycleID, snapshot.CycleNumber, snapshot.Timestamp, snapshot.ParamsID, snapshot.StartBlock, snapshot.EndBlock,
		fields.initialWorkers, fields.initialPositions, fields.pairs,
		fields.actionPlan,
		fields.finalWorkers, fields.finalPositions, pq.Array(snapshot.TxIDs),
		snapshot.BountyEarned, snapshot.PrizeEarned, snapshot.VaultTotalToken, snapshot.PositionsAtRisk, snapshot.FailedActions,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	if err = saveActionReceipts(tx, snapshotID, snapshot.ActionReceipts); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Int("receipts", len(snapshot.ActionReceipts)).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

type snapshotJSON struct {
	initialWorkers, initialPositions, pairs, actionPlan, finalWorkers, finalPositions []byte
}

func marshalJSONFields(s types.CycleSnapshot) (snapshotJSON, error) {
	var out snapshotJSON
	for _, f := range []struct {
		name string
		v    any
		dst  *[]byte
	}{
		{"initial_workers", s.InitialWorkers, &out.initialWorkers},
		{"initial_positions", s.InitialPositions, &out.initialPositions},
		{"pairs", s.Pairs, &out.pairs},
		{"action_plan", s.ActionPlan, &out.actionPlan},
		{"final_workers", s.FinalWorkers, &out.finalWorkers},
		{"final_positions", s.FinalPositions, &out.finalPositions},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return out, fmt.Errorf("failed to marshal %s: %w", f.name, err)
		}
		*f.dst = b
	}
	return out, nil
}
