package config

import (
	"strconv"

	"github.com/rs/zerolog/log"
)

// Database configuration loaded from environment variables.
// Persistence is optional: without DB_HOST the keeper runs in memory only.
var (
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// DatabaseEnabled reports whether a database was configured.
func DatabaseEnabled() bool {
	return DBHost != ""
}

// loadDatabaseConfig loads database configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadDatabaseConfig() error {
	DBHost = getEnvOr("DB_HOST", "")
	if DBHost == "" {
		log.Warn().Msg("DB_HOST not set, cycle snapshots will not be persisted.")
		return nil
	}

	port, err := getEnvAsUint64Or("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DBPort = int(port)

	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	DBPassword = getEnvOr("DB_PASSWORD", "")
	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	DBSSLMode = getEnvOr("DB_SSLMODE", "disable")

	log.Debug().
		Str("DBHost", DBHost).
		Str("DBPort", strconv.Itoa(DBPort)).
		Str("DBName", DBName).
		Msg("Database configuration loaded successfully.")

	return nil
}
