package reconciler

import (
	"slices"
	"sort"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// MergeCandle folds one bar into an ascending series and returns a new slice.
// A bar with a known OpenTime replaces it, a newer one is appended and an
// older unknown one is inserted in order. existing is never modified.
func MergeCandle(existing []models.MCandle, incoming models.MCandle) []models.MCandle {
	n := len(existing)
	if n == 0 {
		return []models.MCandle{incoming}
	}

	last := existing[n-1]
	switch {
	case incoming.OpenTime == last.OpenTime:
		out := slices.Clone(existing)
		out[n-1] = incoming
		return out

	case incoming.OpenTime > last.OpenTime:
		out := make([]models.MCandle, n, n+1)
		copy(out, existing)
		return append(out, incoming)
	}

	i := sort.Search(n, func(i int) bool { return existing[i].OpenTime >= incoming.OpenTime })
	if existing[i].OpenTime == incoming.OpenTime {
		out := slices.Clone(existing)
		out[i] = incoming
		return out
	}

	out := make([]models.MCandle, 0, n+1)
	out = append(out, existing[:i]...)
	out = append(out, incoming)
	return append(out, existing[i:]...)
}

// -----------------------------------------------------------------------------

// LimitWindow keeps the newest maxLen bars. maxLen <= 0 disables the bound.
func LimitWindow(series []models.MCandle, maxLen int) []models.MCandle {
	if maxLen <= 0 || len(series) <= maxLen {
		return series
	}
	return series[len(series)-maxLen:]
}

// -----------------------------------------------------------------------------

// NormalizeCandles sorts a backfill by OpenTime and collapses duplicates, the
// later bar winning.
func NormalizeCandles(candles []models.MCandle) []models.MCandle {
	out := slices.Clone(candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })

	w := 0
	for _, c := range out {
		if w > 0 && out[w-1].OpenTime == c.OpenTime {
			out[w-1] = c
			continue
		}
		out[w] = c
		w++
	}
	return out[:w]
}
