package interfaces

import (
	"context"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// ILayoutStore persists dashboard layout preferences per profile.
// -----------------------------------------------------------------------------

type ILayoutStore interface {

	// Initialize sets up the database schema and tables.
	Initialize() error

	// GetLayout returns the stored layout; found is false when none is stored.
	GetLayout(ctx context.Context, profile string) (layout models.MLayout, found bool, err error)

	// SaveLayout upserts the layout for its profile.
	SaveLayout(ctx context.Context, layout models.MLayout) error

	// DeleteLayout removes the stored layout so defaults apply again.
	DeleteLayout(ctx context.Context, profile string) error

	// Close the database connection
	Close() error
}
