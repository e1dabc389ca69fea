/*

Store is what the keeper and the dashboard need from persistence.

Postgres delegates to the package-level functions backed by DB. Memory keeps a bounded history in
process and is used when no database is configured.

*/

package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/elys-network/farmworker/internal/types"
)

var (
	ErrNotInitialized = errors.New("database not initialized")
	ErrNotFound       = errors.New("not found")
)

// DefaultConfigName is the parameter set the keeper loads and records its cycles against.
const (
	DefaultConfigName    = "default_farmworker_keeper"
	DefaultConfigVersion = 1
)

type Store interface {
	// NextCycleNumber advances and returns the global cycle counter.
	NextCycleNumber() (int, error)
	// CurrentCycleNumber returns the last number NextCycleNumber handed out.
	CurrentCycleNumber() (int, error)
	// ActiveParamsID returns the id of the parameter set in use, if it was stored.
	ActiveParamsID() (*int64, error)
	// SaveCycle stores a finished cycle with its receipts and returns the snapshot id.
	SaveCycle(snapshot types.CycleSnapshot) (int64, error)

	RecentCycles(limit int) ([]types.CycleSnapshot, error)
	CycleByID(id int64) (*types.CycleSnapshot, error)
	Summary() (*WorkerSummary, error)
	Performance() (*PerformanceMetrics, error)
	Healthy() error
}

// Postgres is the Store backed by the global DB pool.
type Postgres struct {
	ConfigName string
}

var _ Store = Postgres{}

func (p Postgres) ActiveParamsID() (*int64, error) {
	return GetActiveWorkerParametersID(p.ConfigName)
}

func (p Postgres) NextCycleNumber() (int, error)                         { return IncrementCycleNumber() }
func (p Postgres) CurrentCycleNumber() (int, error)                      { return GetCurrentCycleNumber() }
func (p Postgres) SaveCycle(s types.CycleSnapshot) (int64, error)        { return SaveCycleSnapshot(s) }
func (p Postgres) RecentCycles(limit int) ([]types.CycleSnapshot, error) { return GetRecentCycles(limit) }
func (p Postgres) CycleByID(id int64) (*types.CycleSnapshot, error)      { return GetCycleByID(id) }
func (p Postgres) Summary() (*WorkerSummary, error)                      { return GetWorkerSummary() }
func (p Postgres) Performance() (*PerformanceMetrics, error)             { return GetPerformanceMetrics() }
func (p Postgres) Healthy() error                                        { return TestDBConnection() }

// Memory is an in-process Store holding the last Capacity cycles. Aggregates cover every cycle
// ever saved.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	cycles   []types.CycleSnapshot // oldest first
	nextID   int64
	counter  int
	perf     PerformanceMetrics
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory store retaining up to capacity cycles.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 100
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) NextCycleNumber() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, nil
}

func (m *Memory) CurrentCycleNumber() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counter, nil
}

func (m *Memory) ActiveParamsID() (*int64, error) { return nil, nil }

func (m *Memory) SaveCycle(s types.CycleSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s.SnapshotID = m.nextID
	s.ActionReceipts = append([]types.ActionReceipt(nil), s.ActionReceipts...)
	for i := range s.ActionReceipts {
		s.ActionReceipts[i].ReceiptID = m.nextID*1000 + int64(i) + 1
	}

	m.cycles = append(m.cycles, s)
	if len(m.cycles) > m.capacity {
		m.cycles = m.cycles[len(m.cycles)-m.capacity:]
	}

	m.perf.TotalCycles++
	m.perf.TotalBounty += s.BountyEarned
	m.perf.TotalPrize += s.PrizeEarned
	m.perf.FailedActions += s.FailedActions
	if s.FailedActions == 0 {
		m.perf.SuccessfulCycles++
	}
	for _, r := range s.ActionReceipts {
		if !r.Success {
			continue
		}
		switch r.Action.Type {
		case types.ActionReinvest:
			m.perf.Reinvests++
		case types.ActionKill:
			m.perf.Kills++
		}
	}
	return s.SnapshotID, nil
}

func (m *Memory) RecentCycles(limit int) ([]types.CycleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = clampLimit(limit)
	out := make([]types.CycleSnapshot, 0, limit)
	for i := len(m.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		c := m.cycles[i]
		c.ActionReceipts = nil
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) CycleByID(id int64) (*types.CycleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.cycles {
		if m.cycles[i].SnapshotID == id {
			c := m.cycles[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("cycle with ID %d: %w", id, ErrNotFound)
}

func (m *Memory) Summary() (*WorkerSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := &WorkerSummary{Workers: []types.WorkerSnapshot{}, TotalCycles: m.perf.TotalCycles}
	if len(m.cycles) > 0 {
		fillSummary(summary, m.cycles[len(m.cycles)-1])
	}
	return summary, nil
}

func (m *Memory) Performance() (*PerformanceMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perf := m.perf
	return &perf, nil
}

func (m *Memory) Healthy() error { return nil }
