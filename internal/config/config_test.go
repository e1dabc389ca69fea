package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"KEEPER_MODE", "KEEPER_LOOP_INTERVAL", "SIM_BLOCKS_PER_CYCLE", "SIM_SECONDS_PER_BLOCK",
	"SIM_SELL_PRESSURE", "SIM_SEED_POSITIONS", "WEB_PORT", "LOG_LEVEL", "LOG_FILE",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
}

// clearEnv unsets every keeper variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPER_MODE", ModeSim)

	require.NoError(t, LoadConfig())
	require.Equal(t, 30*time.Second, LoopInterval)
	require.Equal(t, uint64(200), SimBlocksPerCycle)
	require.Equal(t, uint64(3), SimSecondsPerBlock)
	require.Equal(t, "0.05", SimSellPressure)
	require.Equal(t, uint64(3), SimSeedPositions)
	require.Equal(t, "8080", WebPort)
	require.Equal(t, "info", LogLevel)
	require.False(t, DatabaseEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPER_MODE", ModeSim)
	t.Setenv("KEEPER_LOOP_INTERVAL", "2m")
	t.Setenv("SIM_BLOCKS_PER_CYCLE", "50")
	t.Setenv("SIM_SELL_PRESSURE", "1.25")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "keeper")
	t.Setenv("DB_NAME", "farm")

	require.NoError(t, LoadConfig())
	require.Equal(t, 2*time.Minute, LoopInterval)
	require.Equal(t, uint64(50), SimBlocksPerCycle)
	require.Equal(t, "1.25", SimSellPressure)
	require.True(t, DatabaseEnabled())
	require.Equal(t, 5432, DBPort)
	require.Equal(t, "disable", DBSSLMode)
}

func TestLoadConfigErrors(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"missing mode":      {},
		"live mode":         {"KEEPER_MODE": "live"},
		"bad interval":      {"KEEPER_MODE": ModeSim, "KEEPER_LOOP_INTERVAL": "-1s"},
		"bad blocks":        {"KEEPER_MODE": ModeSim, "SIM_BLOCKS_PER_CYCLE": "many"},
		"zero block time":   {"KEEPER_MODE": ModeSim, "SIM_SECONDS_PER_BLOCK": "0"},
		"bad sell pressure": {"KEEPER_MODE": ModeSim, "SIM_SELL_PRESSURE": "lots"},
		"db without user":   {"KEEPER_MODE": ModeSim, "DB_HOST": "localhost", "DB_NAME": "farm"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			require.Error(t, LoadConfig())
		})
	}
}

func TestTokenDecimals(t *testing.T) {
	require.Equal(t, 18, TokenDecimals(SymbolFarming))
	require.Equal(t, 18, TokenDecimals("UNKNOWN"))
}
