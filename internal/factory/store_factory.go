package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/adapters/store"
	"github.com/calder/phishscan/internal/config"
	"github.com/calder/phishscan/internal/core"
)

// StoreFactory creates scan stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateScanStore creates a scan store based on the configuration
func (f *StoreFactory) CreateScanStore() (core.ScanStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryStore(storeCfg.MaxEntries, f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeCfg.SQLitePath, storeCfg.Retention, f.logger)
	case "mysql":
		return store.NewMySQLStore(storeCfg.MySQLDSN, storeCfg.Retention, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// IsStoreEnabled returns whether scan persistence is enabled
func (f *StoreFactory) IsStoreEnabled() bool {
	return f.cfg.GetStore().Enabled
}
