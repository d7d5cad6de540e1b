// pkg/config/storage.go
package config

import (
	"strconv"
	"time"
)

// StorageProvider selects which persistence backend the service runs on.
// All three backends honor the same contract; see pkg/memory.
type StorageProvider string

const (
	ProviderEmbeddedFile StorageProvider = "embedded-file"
	ProviderManagedKV    StorageProvider = "managed-kv"
	ProviderRelational   StorageProvider = "relational"
)

type StorageConfig struct {
	Provider StorageProvider
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (rc RedisConfig) Address() string {
	return rc.Host + ":" + strconv.Itoa(rc.Port)
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Provider: StorageProvider(getEnv("STORAGE_PROVIDER", string(ProviderEmbeddedFile))),
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "./data/zero-agent.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "zero_agent"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
	}
}
