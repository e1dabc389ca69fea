package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// KeeperMode selects what the keeper drives. Only "sim" is supported: an in-process chain.
	KeeperMode string
	// LoopInterval is the wall-clock time between keeper cycles.
	LoopInterval time.Duration

	// SimBlocksPerCycle is how many blocks the simulated chain advances before each cycle.
	SimBlocksPerCycle uint64
	// SimSecondsPerBlock is the simulated block time.
	SimSecondsPerBlock uint64
	// SimSellPressure is the farming token amount (whole tokens) dumped into the pool each cycle.
	SimSellPressure string
	// SimSeedPositions is the number of leveraged positions opened at genesis.
	SimSeedPositions uint64

	// WebPort is the dashboard port.
	WebPort string
	// LogLevel and LogFile configure the logger.
	LogLevel string
	LogFile  string
)

const ModeSim = "sim"

// LoadConfig loads configuration from environment variables and sets the global config vars.
// KEEPER_MODE is required; every other variable falls back to a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	KeeperMode, err = getEnv("KEEPER_MODE")
	if err != nil {
		return err
	}
	if KeeperMode != ModeSim {
		return errors.New("environment variable KEEPER_MODE must be \"" + ModeSim + "\", got: " + KeeperMode)
	}

	LoopInterval, err = getEnvAsDurationOr("KEEPER_LOOP_INTERVAL", 30*time.Second)
	if err != nil {
		return err
	}

	SimBlocksPerCycle, err = getEnvAsUint64Or("SIM_BLOCKS_PER_CYCLE", 200)
	if err != nil {
		return err
	}

	SimSecondsPerBlock, err = getEnvAsUint64Or("SIM_SECONDS_PER_BLOCK", 3)
	if err != nil {
		return err
	}
	if SimSecondsPerBlock == 0 {
		return errors.New("environment variable SIM_SECONDS_PER_BLOCK must be positive")
	}

	SimSellPressure = getEnvOr("SIM_SELL_PRESSURE", "0.05")
	if _, err := strconv.ParseFloat(SimSellPressure, 64); err != nil {
		return errors.New("environment variable SIM_SELL_PRESSURE must be a decimal amount, got: " + SimSellPressure)
	}

	SimSeedPositions, err = getEnvAsUint64Or("SIM_SEED_POSITIONS", 3)
	if err != nil {
		return err
	}

	WebPort = getEnvOr("WEB_PORT", "8080")
	LogLevel = getEnvOr("LOG_LEVEL", "info")
	LogFile = getEnvOr("LOG_FILE", "")

	// Load database configuration
	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("KeeperMode", KeeperMode).
		Dur("LoopInterval", LoopInterval).
		Uint64("SimBlocksPerCycle", SimBlocksPerCycle).
		Uint64("SimSeedPositions", SimSeedPositions).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable, or fallback when it is not set.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint64Or is getEnvAsUint64 with a fallback for unset variables.
func getEnvAsUint64Or(key string, fallback uint64) (uint64, error) {
	if _, exists := os.LookupEnv(key); !exists {
		return fallback, nil
	}
	return getEnvAsUint64(key)
}

// getEnvAsDurationOr retrieves an environment variable as a time.Duration ("30s", "10m").
// Returns fallback when unset and an error when invalid.
func getEnvAsDurationOr(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}
