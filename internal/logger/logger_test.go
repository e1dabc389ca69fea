package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFileWriter(t *testing.T) {
	_, err := FileWriter("")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "logs", "keeper.log")
	w, err := FileWriter(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("{\"level\":\"info\"}\n"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "\"level\":\"info\"")
}

func TestInitializeLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Initialize("debug", "")
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Initialize("nonsense", "")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
