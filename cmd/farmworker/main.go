package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elys-network/farmworker/internal/config"
	"github.com/elys-network/farmworker/internal/deploy"
	"github.com/elys-network/farmworker/internal/keeper"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/metrics"
	"github.com/elys-network/farmworker/internal/state"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/elys-network/farmworker/internal/utils"
	"github.com/elys-network/farmworker/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// main is the entry point for the farmworker keeper.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel, config.LogFile)
	log.Info().Str("mode", config.KeeperMode).Msg("Farmworker keeper starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Persistence (optional) ---
	params := config.DefaultWorkerParameters
	var store state.Store = state.NewMemory(100)

	if config.DatabaseEnabled() {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		params = loadParameters()
		store = state.Postgres{ConfigName: state.DefaultConfigName}
	} else {
		log.Warn().Msg("No database configured, cycle history is kept in memory.")
	}

	// --- 3. Simulated chain ---
	opts := deploy.DefaultOptions()
	opts.BlockTime = time.Duration(config.SimSecondsPerBlock) * time.Second
	opts.Params = params

	d, err := deploy.Genesis(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to deploy the farming suite")
	}
	ids, err := d.SeedPositions(ctx, config.SimSeedPositions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed positions")
	}
	log.Info().Int("positions", len(ids)).Uint64("block", d.Host.BlockNumber()).Msg("Chain deployed")

	sellPressure, err := utils.ParseUnits(config.SimSellPressure, config.TokenDecimals(config.SymbolFarming))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid sell pressure")
	}

	// --- 4. Keeper ---
	m, err := metrics.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	k, err := keeper.NewKeeper(keeper.Config{
		Host:           d.Host,
		Router:         d.Router,
		Vault:          d.Vault,
		Workers:        d.Workers(),
		Account:        d.Eve,
		Params:         params,
		Store:          store,
		Metrics:        m,
		Market:         d,
		BlocksPerCycle: config.SimBlocksPerCycle,
		SellPressure:   sellPressure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	// --- 5. Run ---
	webServer := web.NewWebServer(config.WebPort, store, k, m.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("url", "http://localhost:"+config.WebPort).Msg("Starting keeper dashboard")
		return webServer.Start(ctx)
	})
	g.Go(func() error {
		k.RunLoop(ctx, config.LoopInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Keeper stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Keeper stopped")
}

// loadParameters returns the active stored parameters, saving the defaults when none exist.
func loadParameters() types.WorkerParameters {
	params, err := state.LoadActiveWorkerParameters(state.DefaultConfigName)
	if err == nil {
		log.Info().Msg("Worker parameters loaded successfully.")
		return *params
	}

	log.Warn().Err(err).Msg("Failed to load active worker parameters, using defaults and saving.")
	defaults := config.DefaultWorkerParameters
	if _, err := state.SaveWorkerParameters(defaults, state.DefaultConfigName, state.DefaultConfigVersion, true); err != nil {
		log.Fatal().Err(err).Msg("Failed to save initial default worker parameters.")
	}
	return defaults
}
