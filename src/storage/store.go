package storage

import (
	"fmt"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
)

// NewLayoutStore picks the backend named by storage.db_type. SQLite is the
// default.
func NewLayoutStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ILayoutStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		return NewPostgresLayoutStore(cfg, log)
	case "", "sqlite":
		return NewSQLiteLayoutStore(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported db_type %q", cfg.Storage.DBType)
	}
}
