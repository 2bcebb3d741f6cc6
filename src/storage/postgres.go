package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresLayoutStore keeps layouts in a schema named after the executable,
// so several dashboards can share one database.
type PostgresLayoutStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresLayoutStore(cfg *models.MConfig, log *logger.Logger) (*PostgresLayoutStore, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresLayoutStore{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresLayoutStore) table() string {
	return pq.QuoteIdentifier(d.Schema) + ".layouts"
}

// -----------------------------------------------------------------------------

func (d *PostgresLayoutStore) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(d.Schema))); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("create schema %s", d.Schema), err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			profile TEXT PRIMARY KEY,
			items JSONB NOT NULL,
			updated_at BIGINT NOT NULL
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create layouts table", err)
	}

	d.Logger.Info("PostgreSQL layout store ready (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresLayoutStore) GetLayout(ctx context.Context, profile string) (models.MLayout, bool, error) {
	var items string
	var updatedAt int64

	query := fmt.Sprintf(`SELECT items::text, updated_at FROM %s WHERE profile = $1`, d.table())
	err := d.DB.QueryRowContext(ctx, query, profile).Scan(&items, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MLayout{}, false, nil
	}
	if err != nil {
		return models.MLayout{}, false, helpers.NewDatabaseError(fmt.Sprintf("load layout %s", profile), err)
	}

	decoded, err := decodeItems(items)
	if err != nil {
		return models.MLayout{}, false, err
	}
	return models.MLayout{Profile: profile, Items: decoded, UpdatedAt: updatedAt}, true, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresLayoutStore) SaveLayout(ctx context.Context, layout models.MLayout) error {
	items, err := encodeItems(layout.Items)
	if err != nil {
		return err
	}
	if layout.UpdatedAt == 0 {
		layout.UpdatedAt = time.Now().UnixMilli()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (profile, items, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (profile) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = EXCLUDED.updated_at
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, layout.Profile, items, layout.UpdatedAt); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("save layout %s", layout.Profile), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresLayoutStore) DeleteLayout(ctx context.Context, profile string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE profile = $1`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, profile); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("delete layout %s", profile), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresLayoutStore) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
