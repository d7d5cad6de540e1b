// Package memoryinfra contains the storage backends behind the
// memory.Provider contract. Three engines ship: an embedded single-file
// database, a managed key-value store, and a relational database. All
// merge and ranking logic is shared so the engines stay interchangeable.
package memoryinfra

import (
	"fmt"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
)

// NewProvider selects the backend named by configuration. The returned
// provider is not yet connected.
func NewProvider(cfg config.StorageConfig) (memory.Provider, error) {
	switch cfg.Provider {
	case config.ProviderEmbeddedFile:
		return NewSQLiteProvider(cfg.SQLite), nil
	case config.ProviderManagedKV:
		return NewRedisProvider(cfg.Redis), nil
	case config.ProviderRelational:
		return NewPostgresProvider(cfg.Database), nil
	default:
		return nil, errx.New(
			fmt.Sprintf("unknown storage provider %q", cfg.Provider),
			errx.TypeValidation,
		)
	}
}
