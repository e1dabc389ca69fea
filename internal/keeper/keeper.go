package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/farmworker/internal/amm"
	"github.com/elys-network/farmworker/internal/chain"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/metrics"
	"github.com/elys-network/farmworker/internal/planner"
	"github.com/elys-network/farmworker/internal/state"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/vault"
	"github.com/elys-network/farmworker/internal/worker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownWorker   = errors.New("worker is not watched by this keeper")
	ErrUnknownPosition = fmt.Errorf("position %w", state.ErrNotFound)
)

// Market moves prices between cycles. The simulated deployment implements it by selling farming
// tokens into the pool.
type Market interface {
	SellPressure(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)
}

// Keeper reinvests worker rewards and kills unhealthy vault positions, one cycle at a time.
type Keeper struct {
	logger zerolog.Logger

	host    *chain.Host
	router  *amm.Router
	vault   vault.Manager
	workers []*worker.Worker
	byAddr  map[common.Address]*worker.Worker
	account common.Address
	params  types.WorkerParameters
	store   state.Store
	metrics *metrics.Metrics
	market  Market

	blocksPerCycle uint64
	sellPressure   sdkmath.Int

	// serializes cycles
	mu         sync.Mutex
	cycleCount int
}

// Config holds the dependencies of a Keeper. Metrics and Market are optional.
type Config struct {
	Host    *chain.Host
	Router  *amm.Router
	Vault   vault.Manager
	Workers []*worker.Worker
	// Account sends the keeper transactions and receives bounties and prizes.
	Account common.Address
	Params  types.WorkerParameters
	Store   state.Store
	Metrics *metrics.Metrics
	Market  Market

	// BlocksPerCycle is how far the chain is mined before each cycle. Zero leaves it alone.
	BlocksPerCycle uint64
	// SellPressure is the farming token amount Market sells before each cycle.
	SellPressure sdkmath.Int
}

// NewKeeper creates a Keeper after validating its dependencies.
func NewKeeper(cfg Config) (*Keeper, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}

	k := &Keeper{
		logger:         logger.GetForComponent("keeper"),
		host:           cfg.Host,
		router:         cfg.Router,
		vault:          cfg.Vault,
		workers:        cfg.Workers,
		byAddr:         make(map[common.Address]*worker.Worker, len(cfg.Workers)),
		account:        cfg.Account,
		params:         cfg.Params,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		market:         cfg.Market,
		blocksPerCycle: cfg.BlocksPerCycle,
		sellPressure:   cfg.SellPressure,
	}
	if k.sellPressure.IsNil() {
		k.sellPressure = sdkmath.ZeroInt()
	}
	for _, w := range cfg.Workers {
		k.byAddr[w.Address()] = w
	}

	k.logger.Info().
		Str("account", k.account.Hex()).
		Str("vault", k.vault.Address().Hex()).
		Int("workers", len(k.workers)).
		Uint64("blocksPerCycle", k.blocksPerCycle).
		Str("sellPressure", k.sellPressure.String()).
		Msg("Keeper created")
	return k, nil
}

func validateConfig(cfg Config) error {
	if cfg.Host == nil {
		return errors.New("chain host cannot be nil")
	}
	if cfg.Router == nil {
		return errors.New("router cannot be nil")
	}
	if cfg.Vault == nil {
		return errors.New("vault manager cannot be nil")
	}
	if len(cfg.Workers) == 0 {
		return errors.New("at least one worker is required")
	}
	for i, w := range cfg.Workers {
		if w == nil {
			return fmt.Errorf("worker %d is nil", i)
		}
	}
	if cfg.Account == (common.Address{}) {
		return errors.New("keeper account cannot be empty")
	}
	if cfg.Store == nil {
		return errors.New("store cannot be nil")
	}
	if !cfg.SellPressure.IsNil() && cfg.SellPressure.IsPositive() && cfg.Market == nil {
		return errors.New("sell pressure requires a market")
	}
	return nil
}

// RunLoop runs a cycle immediately and then every interval until ctx is cancelled.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().Dur("interval", interval).Msg("Starting keeper main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	k.runCounted(ctx)
	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.runCounted(ctx)
		}
	}
}

func (k *Keeper) runCounted(ctx context.Context) {
	k.cycleCount++
	k.logger.Info().Int("cycle", k.cycleCount).Msg("Initiating keeper cycle")
	if _, err := k.RunCycle(ctx); err != nil {
		k.logger.Error().Err(err).Int("cycle", k.cycleCount).Msg("Keeper cycle aborted")
		return
	}
	k.logger.Info().Int("cycle", k.cycleCount).Msg("Keeper cycle completed")
}

// RunCycle advances the chain, assesses every position and worker, plans and executes kills and
// reinvests, and records the cycle. A failed action does not abort the cycle; it is recorded in
// its receipt.
func (k *Keeper) RunCycle(ctx context.Context) (types.CycleSnapshot, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cycleStartTime := time.Now()
	cycleID := uuid.New().String()
	cycleLogger := k.logger.With().Str("cycle_id", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting Keeper Cycle ---")

	snapshot := types.CycleSnapshot{
		CycleID:        cycleID,
		CycleNumber:    k.nextCycleNumber(),
		Timestamp:      cycleStartTime,
		ParamsID:       k.activeParamsID(),
		TxIDs:          make([]string, 0),
		ActionReceipts: make([]types.ActionReceipt, 0),
	}

	// --- Step 1: Advance the chain ---
	cycleLogger.Info().Msg("Step 1: Advancing the chain...")
	if k.blocksPerCycle > 0 {
		k.host.Mine(k.blocksPerCycle)
	}
	if k.market != nil && k.sellPressure.IsPositive() {
		out, err := k.market.SellPressure(ctx, k.sellPressure)
		if err != nil {
			cycleLogger.Warn().Err(err).Msg("Sell pressure failed, continuing")
		} else {
			cycleLogger.Info().Str("sold", k.sellPressure.String()).Str("received", out.String()).Msg("Sell pressure applied")
		}
	}
	snapshot.StartBlock = k.host.BlockNumber()
	cycleLogger.Info().Uint64("block", snapshot.StartBlock).Msg("Step 1: Chain advanced.")

	// --- Step 2: Assessment ---
	cycleLogger.Info().Msg("Step 2: Assessing positions and workers...")
	initial, err := k.assess(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("initial assessment: %w", err)
	}
	snapshot.InitialWorkers = initial.workers
	snapshot.InitialPositions = initial.positions
	snapshot.Pairs = initial.pairs
	cycleLogger.Info().
		Int("positions", len(initial.positions)).
		Int("workers", len(initial.workers)).
		Int("pairs", len(initial.pairs)).
		Msg("Step 2: Assessment complete.")

	// --- Step 3: Planning ---
	cycleLogger.Info().Msg("Step 3: Generating action plan...")
	plan, err := planner.GenerateActionPlan(ctx, planner.Input{
		Workers:       initial.workers,
		Positions:     initial.positions,
		VaultDecimals: k.vault.Token().Decimals(),
		Params:        k.params,
	}, &simulator{k: k})
	if err != nil {
		return snapshot, fmt.Errorf("planning: %w", err)
	}
	snapshot.ActionPlan = plan
	if planJSON, err := json.MarshalIndent(plan, "", "  "); err == nil {
		cycleLogger.Debug().Str("actionPlan", string(planJSON)).Msg("--- Detailed Action Plan ---")
	}
	cycleLogger.Info().Int("actions", len(plan.Actions)).Str("goal", plan.GoalDescription).Msg("Step 3: Action plan generated.")

	// --- Step 4: Execution ---
	cycleLogger.Info().Msg("Step 4: Executing action plan...")
	bounty, prize := 0.0, 0.0
	for _, action := range plan.Actions {
		receipt, earned := k.execute(ctx, action)
		snapshot.TxIDs = append(snapshot.TxIDs, receipt.TxID)
		snapshot.ActionReceipts = append(snapshot.ActionReceipts, receipt)
		if !receipt.Success {
			snapshot.FailedActions++
			cycleLogger.Warn().
				Str("actionType", string(action.Type)).
				Str("txID", receipt.TxID).
				Str("message", receipt.Message).
				Msg("Action failed")
			continue
		}
		switch action.Type {
		case types.ActionReinvest:
			bounty += earned
		case types.ActionKill:
			prize += earned
		}
		cycleLogger.Info().
			Str("actionType", string(action.Type)).
			Str("txID", receipt.TxID).
			Uint64("block", receipt.Block).
			Msg("Action executed")
	}

	// --- Step 5: Final state ---
	cycleLogger.Info().Msg("Step 5: Capturing final state...")
	final, err := k.assess(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to assess final state, using initial state")
		final = initial
	}
	snapshot.FinalWorkers = final.workers
	snapshot.FinalPositions = final.positions
	snapshot.EndBlock = k.host.BlockNumber()
	snapshot.BountyEarned = bounty
	snapshot.PrizeEarned = prize
	snapshot.VaultTotalToken = final.vaultTotalToken
	snapshot.PositionsAtRisk = final.atRisk

	k.saveCycleSnapshot(&snapshot, cycleLogger)
	k.observe(snapshot, final, time.Since(cycleStartTime))

	cycleLogger.Info().
		Uint64("endBlock", snapshot.EndBlock).
		Int("finalPositions", len(snapshot.FinalPositions)).
		Int("positionsAtRisk", snapshot.PositionsAtRisk).
		Float64("bountyEarned", bounty).
		Float64("prizeEarned", prize).
		Int("failedActions", snapshot.FailedActions).
		Str("cycleDuration", time.Since(cycleStartTime).String()).
		Msg("--- Keeper Cycle Completed ---")
	return snapshot, nil
}

// execute runs one planned action and reports its receipt and the keeper's earnings in whole
// tokens.
func (k *Keeper) execute(ctx context.Context, action types.PlannedAction) (types.ActionReceipt, float64) {
	receipt := types.ActionReceipt{
		TxID:   uuid.New().String(),
		Action: action,
	}
	earned := 0.0

	switch action.Type {
	case types.ActionReinvest:
		w, ok := k.byAddr[action.Worker]
		if !ok {
			receipt.Message = ErrUnknownWorker.Error()
			break
		}
		res, err := w.Reinvest(ctx, k.account)
		if err != nil {
			receipt.Message = err.Error()
			break
		}
		reward := w.RewardToken().Info()
		receipt.Success = true
		receipt.Message = fmt.Sprintf("Reinvested %s %s", utils.FormatUnits(res.Reward, reward.Decimals), reward.Symbol)
		receipt.ResultingCoins = []sdk.Coin{reward.Coin(res.CallerBounty)}
		earned = utils.ToFloat64OrZero(res.CallerBounty, reward.Decimals)

	case types.ActionKill:
		res, err := k.vault.Kill(ctx, k.account, action.PositionID)
		if err != nil {
			receipt.Message = err.Error()
			break
		}
		vaultToken := k.vault.Token().Info()
		receipt.Success = true
		receipt.Message = fmt.Sprintf("Killed position %d, debt %s %s", action.PositionID, utils.FormatUnits(res.Debt, vaultToken.Decimals), vaultToken.Symbol)
		receipt.ResultingCoins = []sdk.Coin{vaultToken.Coin(res.Prize)}
		earned = utils.ToFloat64OrZero(res.Prize, vaultToken.Decimals)

	default:
		receipt.Message = fmt.Sprintf("unsupported action type %q", action.Type)
	}

	receipt.Block = k.host.BlockNumber()
	receipt.Timestamp = k.host.Time()
	if !receipt.Success && k.metrics != nil {
		k.metrics.ActionFailures.WithLabelValues(string(action.Type)).Inc()
	}
	return receipt, earned
}

// nextCycleNumber increments the persistent cycle counter, falling back to the in-process count
// when the store fails.
func (k *Keeper) nextCycleNumber() int {
	n, err := k.store.NextCycleNumber()
	if err != nil {
		k.logger.Error().Err(err).Msg("Failed to increment cycle number, using local count")
		return k.cycleCount
	}
	return n
}

func (k *Keeper) activeParamsID() *int64 {
	id, err := k.store.ActiveParamsID()
	if err != nil {
		k.logger.Error().Err(err).Msg("Failed to get active worker parameters ID")
		return nil
	}
	return id
}

func (k *Keeper) saveCycleSnapshot(snapshot *types.CycleSnapshot, cycleLogger zerolog.Logger) {
	id, err := k.store.SaveCycle(*snapshot)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
		return
	}
	snapshot.SnapshotID = id
	cycleLogger.Info().Int64("snapshotID", id).Msg("Cycle snapshot saved")
}

func (k *Keeper) observe(snapshot types.CycleSnapshot, final assessment, elapsed time.Duration) {
	m := k.metrics
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
	m.BountyEarned.Add(snapshot.BountyEarned)
	m.PrizeEarned.Add(snapshot.PrizeEarned)
	for _, r := range snapshot.ActionReceipts {
		if !r.Success {
			continue
		}
		switch r.Action.Type {
		case types.ActionReinvest:
			m.Reinvests.Inc()
		case types.ActionKill:
			m.Kills.Inc()
		}
	}

	m.PositionHealth.Reset()
	for _, p := range final.positions {
		m.PositionHealth.WithLabelValues(fmt.Sprintf("%d", p.ID)).Set(p.DebtRatioPercent)
	}
	m.PositionsAtRisk.Set(float64(final.atRisk))
	for _, w := range final.workers {
		farming := k.byAddr[w.Address].FarmingToken().Decimals()
		m.WorkerBalance.WithLabelValues(w.Name).Set(utils.ToFloat64OrZero(w.TotalBalance, farming))
		m.WorkerPending.WithLabelValues(w.Name).Set(utils.ToFloat64OrZero(w.PendingReward, w.RewardDecimals))
	}
	m.VaultTotalToken.Set(final.vaultTotalToken)
	m.BlockHeight.Set(float64(snapshot.EndBlock))
}
