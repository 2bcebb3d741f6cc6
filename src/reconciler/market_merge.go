package reconciler

import (
	"slices"
	"sort"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// ProjectSnapshot reduces raw 24h entries to table rows, keeping their order.
func ProjectSnapshot(entries []models.MRawMarketEntry) []models.MMarketRecord {
	records := make([]models.MMarketRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record())
	}
	return records
}

// -----------------------------------------------------------------------------

// LiveLookup indexes a stream batch by symbol. Later entries for the same
// symbol win.
func LiveLookup(batch []models.MMarketRecord) map[string]models.MMarketRecord {
	lookup := make(map[string]models.MMarketRecord, len(batch))
	for _, r := range batch {
		lookup[r.Symbol] = r
	}
	return lookup
}

// -----------------------------------------------------------------------------

// MergeMarket overlays live records onto the snapshot rows. A row is replaced
// as a whole, and only when one of its live fields differs. When nothing
// changes the base slice itself is returned so callers can skip publishing.
// base is never modified.
//
// Symbols only present in live are dropped unless includeStreamOnly is set,
// in which case they are appended in symbol order.
func MergeMarket(base []models.MMarketRecord, live map[string]models.MMarketRecord, includeStreamOnly bool) []models.MMarketRecord {
	if len(live) == 0 {
		return base
	}

	var out []models.MMarketRecord
	for i, row := range base {
		rec, ok := live[row.Symbol]
		if !ok || rec.SameLiveFields(row) {
			continue
		}
		if out == nil {
			out = slices.Clone(base)
		}
		out[i] = rec
	}

	if includeStreamOnly {
		extra := streamOnly(base, live)
		if len(extra) > 0 {
			if out == nil {
				out = slices.Clone(base)
			}
			out = append(out, extra...)
		}
	}

	if out == nil {
		return base
	}
	return out
}

// -----------------------------------------------------------------------------

func streamOnly(base []models.MMarketRecord, live map[string]models.MMarketRecord) []models.MMarketRecord {
	known := make(map[string]struct{}, len(base))
	for _, row := range base {
		known[row.Symbol] = struct{}{}
	}

	var extra []models.MMarketRecord
	for sym, rec := range live {
		if _, ok := known[sym]; !ok {
			extra = append(extra, rec)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Symbol < extra[j].Symbol })
	return extra
}

// -----------------------------------------------------------------------------

// sameRecords reports whether a and b share their backing array.
func sameRecords(a, b []models.MMarketRecord) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
