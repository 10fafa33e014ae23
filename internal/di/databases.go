package di

import (
	"fmt"
	"path/filepath"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/config"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/database"
)

// InitializeDatabases opens and migrates core.db and history.db
func InitializeDatabases(container *Container, cfg *config.Config) error {
	// core.db - catalog, request queue, research tickets
	coreDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "core.db"),
		Profile: database.ProfileLedger, // queue and tickets are the audit trail
		Name:    "core",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize core database: %w", err)
	}
	container.CoreDB = coreDB

	// history.db - snapshots and daily candles
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	for _, db := range []*database.DB{coreDB, historyDB} {
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}
	return nil
}
