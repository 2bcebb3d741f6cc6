package reconciler

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"market-dashboard/src/models"
)

// Sort keys accepted by QueryMarkets.
const (
	SortSymbol = "symbol"
	SortPrice  = "price"
	SortChange = "change"
	SortVolume = "volume"
)

const DefaultPageSize = 10

// PageSizes are the page sizes the table offers.
var PageSizes = []int{5, 10, 20, 50}

// -----------------------------------------------------------------------------

type MarketQuery struct {
	Filter   string
	SortKey  string
	Desc     bool
	Page     int // 1-based
	PageSize int
}

type MarketPage struct {
	Records  []models.MMarketRecord `json:"records"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
	Pages    int                    `json:"pages"`
}

// -----------------------------------------------------------------------------

// QueryMarkets filters rows by a case-insensitive symbol substring, sorts
// them and cuts out one page. Out-of-range pages are clamped. records is not
// modified.
func QueryMarkets(records []models.MMarketRecord, q MarketQuery) MarketPage {
	filter := strings.ToUpper(strings.TrimSpace(q.Filter))

	rows := make([]models.MMarketRecord, 0, len(records))
	for _, r := range records {
		if filter == "" || strings.Contains(strings.ToUpper(r.Symbol), filter) {
			rows = append(rows, r)
		}
	}

	if less := lessFor(q.SortKey); less != nil {
		sort.SliceStable(rows, func(i, j int) bool {
			if q.Desc {
				return less(rows[j], rows[i])
			}
			return less(rows[i], rows[j])
		})
	}

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	pages := (len(rows) + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * size
	end := min(start+size, len(rows))

	return MarketPage{
		Records:  rows[start:end],
		Total:    len(rows),
		Page:     page,
		PageSize: size,
		Pages:    pages,
	}
}

// -----------------------------------------------------------------------------

func lessFor(key string) func(a, b models.MMarketRecord) bool {
	switch strings.ToLower(key) {
	case SortSymbol:
		return func(a, b models.MMarketRecord) bool { return a.Symbol < b.Symbol }
	case SortPrice:
		return numericLess(func(r models.MMarketRecord) string { return r.LastPrice })
	case SortChange:
		return numericLess(func(r models.MMarketRecord) string { return r.PriceChangePercent })
	case SortVolume:
		return numericLess(func(r models.MMarketRecord) string { return r.Volume })
	}
	return nil
}

// numericLess orders unparsable values before every number.
func numericLess(field func(models.MMarketRecord) string) func(a, b models.MMarketRecord) bool {
	return func(a, b models.MMarketRecord) bool {
		return parseOrNegInf(field(a)) < parseOrNegInf(field(b))
	}
}

func parseOrNegInf(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
