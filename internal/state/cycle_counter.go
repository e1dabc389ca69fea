package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// The counter is a single row seeded by EnsureSchema, so cycle numbers survive restarts and
// are shared by every keeper writing to the same database.
const (
	selectCycleSQL    = `SELECT current_cycle FROM cycle_counter WHERE id = 1;`
	incrementCycleSQL = `
		UPDATE cycle_counter
		SET current_cycle = current_cycle + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_cycle;`
)

// GetCurrentCycleNumber returns the number of the last cycle that was started.
func GetCurrentCycleNumber() (int, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	var n int
	switch err := DB.QueryRow(selectCycleSQL).Scan(&n); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read cycle counter: %w", err)
	}
	return n, nil
}

// IncrementCycleNumber claims the next cycle number.
func IncrementCycleNumber() (int, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	var n int
	if err := DB.QueryRow(incrementCycleSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter: %w", err)
	}
	log.Debug().Int("cycle", n).Msg("Claimed cycle number")
	return n, nil
}
