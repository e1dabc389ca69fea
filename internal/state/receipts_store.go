package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/elys-network/farmworker/internal/types"
)

// saveActionReceipts stores the receipts of one cycle inside the snapshot's transaction and sets
// their ReceiptID.
func saveActionReceipts(tx *sql.Tx, snapshotID int64, receipts []types.ActionReceipt) error {
	stmt := `
		INSERT INTO action_receipts (
			snapshot_id, tx_id, action_timestamp, action_type, worker_address, position_id,
			block_number, success, message, action, resulting_coins
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING receipt_id;`

	for i := range receipts {
		r := &receipts[i]
		actionJSON, err := json.Marshal(r.Action)
		if err != nil {
			return fmt.Errorf("failed to marshal action of receipt %s: %w", r.TxID, err)
		}
		coinsJSON, err := json.Marshal(r.ResultingCoins)
		if err != nil {
			return fmt.Errorf("failed to marshal resulting coins of receipt %s: %w", r.TxID, err)
		}
		positionID := sql.NullInt64{Int64: int64(r.Action.PositionID), Valid: r.Action.Type == types.ActionKill}

		err = tx.QueryRow(stmt,
			snapshotID, r.TxID, r.Timestamp, string(r.Action.Type), r.Action.Worker.Hex(), positionID,
			r.Block, r.Success, r.Message, actionJSON, coinsJSON,
		).Scan(&r.ReceiptID)
		if err != nil {
			return fmt.Errorf("failed to save action receipt %s: %w", r.TxID, err)
		}
	}
	return nil
}

// GetActionReceipts loads the receipts of a stored cycle snapshot in execution order.
func GetActionReceipts(snapshotID int64) ([]types.ActionReceipt, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT receipt_id, tx_id, action_timestamp, block_number, success, message, action, resulting_coins
		FROM action_receipts
		WHERE snapshot_id = $1
		ORDER BY receipt_id ASC;`

	rows, err := DB.Query(query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]types.ActionReceipt, 0)
	for rows.Next() {
		var (
			r                     types.ActionReceipt
			message               sql.NullString
			actionJSON, coinsJSON []byte
		)
		if err := rows.Scan(&r.ReceiptID, &r.TxID, &r.Timestamp, &r.Block, &r.Success, &message, &actionJSON, &coinsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan action receipt: %w", err)
		}
		r.Message = message.String
		if len(actionJSON) > 0 {
			if err := json.Unmarshal(actionJSON, &r.Action); err != nil {
				return nil, fmt.Errorf("failed to unmarshal action of receipt %d: %w", r.ReceiptID, err)
			}
		}
		if len(coinsJSON) > 0 {
			if err := json.Unmarshal(coinsJSON, &r.ResultingCoins); err != nil {
				return nil, fmt.Errorf("failed to unmarshal coins of receipt %d: %w", r.ReceiptID, err)
			}
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during receipt iteration: %w", err)
	}
	return receipts, nil
}
