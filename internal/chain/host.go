/*

The host is the in-process ledger every simulated contract lives on.

It gives the contracts the two properties they would otherwise get from an EVM:
- serialized execution: one state-mutating transaction at a time, guarded by a RWMutex;
- atomicity: every store write records an undo operation, and a failing transaction
  replays them backwards to its restore point.

A committed outermost transaction mines exactly one block. A reverted one mines nothing.

*/

package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

var (
	ErrWriteOutsideTransaction = errors.New("state write outside of a transaction")
	ErrWriteInView             = errors.New("state write inside a read-only view")
)

type frameKey struct{}

// frame marks a context as executing on a host.
type frame struct {
	host     *Host
	readOnly bool
}

// Host is a single simulated chain.
type Host struct {
	mu sync.RWMutex

	number    atomic.Uint64
	timestamp atomic.Uint64
	blockTime uint64

	// ops is the undo log of the running transaction.
	ops []func()

	nonceMu sync.Mutex
	nonces  map[common.Address]uint64
	native  *Store[common.Address, sdkmath.Int]
	txCount atomic.Uint64

	logger zerolog.Logger
}

// NewHost creates a chain whose genesis block carries the given time.
// Every mined block advances the clock by blockTime (at least one second).
func NewHost(genesis time.Time, blockTime time.Duration) *Host {
	seconds := uint64(blockTime / time.Second)
	if seconds == 0 {
		seconds = 1
	}
	h := &Host{
		blockTime: seconds,
		nonces:    make(map[common.Address]uint64),
		logger:    logger.GetForComponent("chain"),
	}
	h.native = NewStore[common.Address](h, sdkmath.ZeroInt())
	h.timestamp.Store(uint64(genesis.Unix()))
	return h
}

// BlockNumber returns the number of the current block.
func (h *Host) BlockNumber() uint64 {
	return h.number.Load()
}

// Timestamp returns the unix time of the current block.
func (h *Host) Timestamp() uint64 {
	return h.timestamp.Load()
}

// Time returns the current block time.
func (h *Host) Time() time.Time {
	return time.Unix(int64(h.timestamp.Load()), 0).UTC()
}

// TxCount returns the number of committed transactions.
func (h *Host) TxCount() uint64 {
	return h.txCount.Load()
}

// Transact runs fn as a transaction.
//
// Called with a context that is already inside a transaction on this host, it runs fn as a
// nested call: on error only the writes made by fn are reverted and the error is returned to
// the caller, which may decide to continue. The outermost call holds the write lock, mines a
// block and reverts everything if fn fails or panics.
func (h *Host) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok && f.host == h {
		if f.readOnly {
			return ErrWriteInView
		}
		mark := len(h.ops)
		if err = fn(ctx); err != nil {
			h.rollback(mark)
		}
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	number, timestamp := h.number.Load(), h.timestamp.Load()
	h.number.Store(number + 1)
	h.timestamp.Store(timestamp + h.blockTime)

	defer func() {
		if p := recover(); p != nil {
			h.rollback(0)
			h.number.Store(number)
			h.timestamp.Store(timestamp)
			panic(p) // Re-panic after rollback
		}
	}()

	txCtx := context.WithValue(ctx, frameKey{}, &frame{host: h})
	if err = fn(txCtx); err != nil {
		h.rollback(0)
		h.number.Store(number)
		h.timestamp.Store(timestamp)
		h.logger.Debug().Err(err).Uint64("block", number+1).Msg("Transaction reverted")
		return err
	}

	h.ops = h.ops[:0]
	h.txCount.Add(1)
	return nil
}

// View runs fn under the read lock. Any store write attempted inside fn panics.
// Inside a transaction View simply runs fn against the in-flight state.
func (h *Host) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok && f.host == h {
		return fn(ctx)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(context.WithValue(ctx, frameKey{}, &frame{host: h, readOnly: true}))
}

// Mine advances the chain by n empty blocks.
func (h *Host) Mine(n uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.number.Add(n)
	h.timestamp.Add(n * h.blockTime)
}

// AdvanceTime moves the clock forward without mining a block.
func (h *Host) AdvanceTime(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.timestamp.Add(uint64(d / time.Second))
}

// record appends an undo operation for the transaction running in ctx.
func (h *Host) record(ctx context.Context, undo func()) {
	f, ok := ctx.Value(frameKey{}).(*frame)
	if !ok || f.host != h {
		panic(ErrWriteOutsideTransaction)
	}
	if f.readOnly {
		panic(ErrWriteInView)
	}
	h.ops = append(h.ops, undo)
}

// rollback undoes every operation recorded after restorePoint.
func (h *Host) rollback(restorePoint int) {
	for i := len(h.ops) - 1; i >= restorePoint; i-- {
		h.ops[i]()
	}
	h.ops = h.ops[:restorePoint]
}

// InTransaction reports whether ctx carries a writable frame of this host.
func (h *Host) InTransaction(ctx context.Context) bool {
	f, ok := ctx.Value(frameKey{}).(*frame)
	return ok && f.host == h && !f.readOnly
}

func (h *Host) String() string {
	return fmt.Sprintf("chain(block=%d, time=%d)", h.BlockNumber(), h.Timestamp())
}
