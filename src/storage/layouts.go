package storage

import (
	"encoding/json"
	"fmt"
	"regexp"

	"market-dashboard/src/helpers"
	"market-dashboard/src/models"
)

// Built-in layout profiles.
const (
	ProfileDesktop = "desktop"
	ProfileMobile  = "mobile"
)

// gridColumns is the width of the dashboard grid.
const gridColumns = 24

var profilePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// -----------------------------------------------------------------------------

// DefaultLayout returns the factory layout for profile. Profiles other than
// mobile fall back to the desktop arrangement.
func DefaultLayout(profile string) models.MLayout {
	var items []models.MLayoutItem
	if profile == ProfileMobile {
		items = []models.MLayoutItem{
			{ID: "marketOverview", X: 0, Y: 0, W: 24, H: 10, MinW: 8, MinH: 8, MaxH: 18},
			{ID: "oscillator", X: 0, Y: 10, W: 24, H: 10, MinW: 6, MinH: 6},
			{ID: "candlestick", X: 0, Y: 20, W: 24, H: 10, MinW: 6, MinH: 6, MaxH: 18},
			{ID: "newsFeed", X: 0, Y: 30, W: 24, H: 8, MinW: 6, MinH: 6},
		}
	} else {
		items = []models.MLayoutItem{
			{ID: "marketOverview", X: 0, Y: 0, W: 14, H: 10, MinW: 6, MinH: 6, MaxH: 18},
			{ID: "oscillator", X: 14, Y: 0, W: 10, H: 10, MinW: 6, MinH: 6},
			{ID: "candlestick", X: 0, Y: 10, W: 16, H: 8, MinW: 6, MinH: 6, MaxH: 18},
			{ID: "newsFeed", X: 16, Y: 10, W: 8, H: 8, MinW: 6, MinH: 6},
		}
	}
	return models.MLayout{Profile: profile, Items: items, IsDefault: true}
}

// -----------------------------------------------------------------------------

func ValidateProfile(profile string) error {
	if !profilePattern.MatchString(profile) {
		return helpers.NewValidationError(fmt.Sprintf("invalid layout profile %q", profile))
	}
	return nil
}

// -----------------------------------------------------------------------------

// ValidateLayout checks that every item has a unique id and fits the grid.
func ValidateLayout(layout models.MLayout) error {
	if err := ValidateProfile(layout.Profile); err != nil {
		return err
	}
	if len(layout.Items) == 0 {
		return helpers.NewValidationError("layout has no items")
	}

	seen := make(map[string]struct{}, len(layout.Items))
	for _, it := range layout.Items {
		if it.ID == "" {
			return helpers.NewValidationError("layout item without id")
		}
		if _, dup := seen[it.ID]; dup {
			return helpers.NewValidationError(fmt.Sprintf("duplicate layout item %q", it.ID))
		}
		seen[it.ID] = struct{}{}

		if it.X < 0 || it.Y < 0 || it.W <= 0 || it.H <= 0 || it.X+it.W > gridColumns {
			return helpers.NewValidationError(fmt.Sprintf("layout item %q is outside the grid", it.ID))
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func encodeItems(items []models.MLayoutItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", helpers.NewDatabaseError("encode layout items", err)
	}
	return string(data), nil
}

func decodeItems(data string) ([]models.MLayoutItem, error) {
	var items []models.MLayoutItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, helpers.NewDatabaseError("decode layout items", err)
	}
	return items, nil
}
