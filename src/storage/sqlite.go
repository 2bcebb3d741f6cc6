package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteLayoutStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteLayoutStore(cfg *models.MConfig, log *logger.Logger) *SQLiteLayoutStore {
	return &SQLiteLayoutStore{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteLayoutStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteLayoutStore) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS layouts (
			profile TEXT PRIMARY KEY,
			items TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create layouts table", err)
	}
	d.Logger.Info("SQLite layout store ready (%s)", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteLayoutStore) GetLayout(ctx context.Context, profile string) (models.MLayout, bool, error) {
	var items string
	var updatedAt int64

	err := d.DB.QueryRowContext(ctx, `SELECT items, updated_at FROM layouts WHERE profile = ?`, profile).Scan(&items, &updatedAt)
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

func (d *SQLiteLayoutStore) SaveLayout(ctx context.Context, layout models.MLayout) error {
	items, err := encodeItems(layout.Items)
	if err != nil {
		return err
	}
	if layout.UpdatedAt == 0 {
		layout.UpdatedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO layouts (profile, items, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			items = excluded.items,
			updated_at = excluded.updated_at
	`
	if _, err := d.DB.ExecContext(ctx, query, layout.Profile, items, layout.UpdatedAt); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("save layout %s", layout.Profile), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteLayoutStore) DeleteLayout(ctx context.Context, profile string) error {
	if _, err := d.DB.ExecContext(ctx, `DELETE FROM layouts WHERE profile = ?`, profile); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("delete layout %s", profile), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteLayoutStore) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
