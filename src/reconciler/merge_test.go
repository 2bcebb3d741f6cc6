package reconciler

import (
	"testing"

	"market-dashboard/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(sym, price, change, vol string) models.MMarketRecord {
	return models.MMarketRecord{Symbol: sym, LastPrice: price, PriceChangePercent: change, Volume: vol}
}

func candle(t int64, c float64) models.MCandle {
	return models.MCandle{OpenTime: t, Open: c, High: c, Low: c, Close: c, Volume: 1}
}

func openTimes(series []models.MCandle) []int64 {
	out := make([]int64, len(series))
	for i, c := range series {
		out[i] = c.OpenTime
	}
	return out
}

// -----------------------------------------------------------------------------

func TestMergeMarketReplacesChangedRows(t *testing.T) {
	base := []models.MMarketRecord{
		rec("BTCUSDT", "40000", "1.0", "100"),
		rec("ETHUSDT", "2000", "-1.0", "50"),
	}
	live := LiveLookup([]models.MMarketRecord{rec("ETHUSDT", "2010", "-0.5", "51")})

	out := MergeMarket(base, live, false)
	require.Len(t, out, 2)
	assert.Equal(t, base[0], out[0])
	assert.Equal(t, rec("ETHUSDT", "2010", "-0.5", "51"), out[1])

	// base untouched
	assert.Equal(t, "2000", base[1].LastPrice)
}

func TestMergeMarketNoChangeReturnsSameSlice(t *testing.T) {
	base := []models.MMarketRecord{rec("BTCUSDT", "40000", "1.0", "100")}

	out := MergeMarket(base, LiveLookup([]models.MMarketRecord{rec("BTCUSDT", "40000", "1.0", "100")}), false)
	assert.True(t, sameRecords(base, out))

	out = MergeMarket(base, nil, false)
	assert.True(t, sameRecords(base, out))
}

func TestMergeMarketIsIdempotent(t *testing.T) {
	base := []models.MMarketRecord{rec("BTCUSDT", "40000", "1.0", "100"), rec("ETHUSDT", "2000", "1.0", "50")}
	live := LiveLookup([]models.MMarketRecord{rec("BTCUSDT", "40100", "1.2", "101")})

	once := MergeMarket(base, live, false)
	twice := MergeMarket(once, live, false)
	assert.Equal(t, once, twice)
	assert.True(t, sameRecords(once, twice))
}

func TestMergeMarketReplacesAllLiveFieldsTogether(t *testing.T) {
	base := []models.MMarketRecord{rec("BTCUSDT", "40000", "1.0", "100")}

	// only volume differs, yet the whole record comes from the stream message
	live := LiveLookup([]models.MMarketRecord{rec("BTCUSDT", "40000", "1.0", "200")})
	out := MergeMarket(base, live, false)
	assert.Equal(t, rec("BTCUSDT", "40000", "1.0", "200"), out[0])
}

func TestMergeMarketStreamOnlySymbols(t *testing.T) {
	base := []models.MMarketRecord{rec("BTCUSDT", "1", "1", "1")}
	live := LiveLookup([]models.MMarketRecord{rec("ZZZUSDT", "1", "1", "1"), rec("AAAUSDT", "2", "2", "2")})

	dropped := MergeMarket(base, live, false)
	assert.True(t, sameRecords(base, dropped))

	kept := MergeMarket(base, live, true)
	require.Len(t, kept, 3)
	assert.Equal(t, "AAAUSDT", kept[1].Symbol)
	assert.Equal(t, "ZZZUSDT", kept[2].Symbol)
	assert.Len(t, base, 1)
}

func TestLiveLookupLastWins(t *testing.T) {
	lookup := LiveLookup([]models.MMarketRecord{rec("BTCUSDT", "1", "1", "1"), rec("BTCUSDT", "2", "2", "2")})
	assert.Equal(t, "2", lookup["BTCUSDT"].LastPrice)
}

// -----------------------------------------------------------------------------

func TestMergeCandleCases(t *testing.T) {
	assert.Equal(t, []int64{100}, openTimes(MergeCandle(nil, candle(100, 1))))

	series := []models.MCandle{candle(100, 1), candle(200, 2), candle(300, 3)}

	appended := MergeCandle(series, candle(400, 4))
	assert.Equal(t, []int64{100, 200, 300, 400}, openTimes(appended))

	inserted := MergeCandle(series, candle(150, 1.5))
	assert.Equal(t, []int64{100, 150, 200, 300}, openTimes(inserted))

	first := MergeCandle(series, candle(50, 0.5))
	assert.Equal(t, []int64{50, 100, 200, 300}, openTimes(first))

	replacedMiddle := MergeCandle(series, candle(200, 9))
	assert.Equal(t, []int64{100, 200, 300}, openTimes(replacedMiddle))
	assert.Equal(t, 9.0, replacedMiddle[1].Close)

	// input never mutated
	assert.Equal(t, []int64{100, 200, 300}, openTimes(series))
	assert.Equal(t, 2.0, series[1].Close)
}

func TestMergeCandleUpdatesLastInPlace(t *testing.T) {
	series := []models.MCandle{candle(100, 1), candle(200, 2)}
	out := MergeCandle(series, candle(200, 2.5))

	assert.Equal(t, []int64{100, 200}, openTimes(out))
	assert.Equal(t, 2.5, out[1].Close)
	assert.Equal(t, 2.0, series[1].Close)
}

func TestMergeCandleKeepsStrictOrder(t *testing.T) {
	var series []models.MCandle
	for _, ts := range []int64{500, 100, 300, 100, 200, 500, 400} {
		series = MergeCandle(series, candle(ts, float64(ts)))
	}
	assert.Equal(t, []int64{100, 200, 300, 400, 500}, openTimes(series))
}

func TestLimitWindow(t *testing.T) {
	series := []models.MCandle{candle(1, 1), candle(2, 2), candle(3, 3), candle(4, 4)}

	assert.Equal(t, []int64{3, 4}, openTimes(LimitWindow(series, 2)))
	assert.Len(t, LimitWindow(series, 10), 4)
	assert.Len(t, LimitWindow(series, 0), 4)
}

func TestNormalizeCandles(t *testing.T) {
	out := NormalizeCandles([]models.MCandle{candle(300, 3), candle(100, 1), candle(300, 30), candle(200, 2)})
	assert.Equal(t, []int64{100, 200, 300}, openTimes(out))
	assert.Equal(t, 30.0, out[2].Close)

	assert.Empty(t, NormalizeCandles(nil))
}

// -----------------------------------------------------------------------------

func TestQueryMarkets(t *testing.T) {
	records := []models.MMarketRecord{
		rec("BTCUSDT", "40000", "1.5", "100"),
		rec("ETHUSDT", "2000", "-2.0", "900"),
		rec("ETHBTC", "0.05", "0.3", "50"),
		rec("SOLUSDT", "100", "5.0", "bad"),
	}

	page := QueryMarkets(records, MarketQuery{Filter: "eth"})
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	byPrice := QueryMarkets(records, MarketQuery{SortKey: SortPrice, Desc: true})
	assert.Equal(t, "BTCUSDT", byPrice.Records[0].Symbol)
	assert.Equal(t, "ETHBTC", byPrice.Records[3].Symbol)

	byVolume := QueryMarkets(records, MarketQuery{SortKey: SortVolume})
	assert.Equal(t, "SOLUSDT", byVolume.Records[0].Symbol)
	assert.Equal(t, "ETHUSDT", byVolume.Records[3].Symbol)

	paged := QueryMarkets(records, MarketQuery{SortKey: SortSymbol, Page: 2, PageSize: 3})
	assert.Equal(t, 2, paged.Pages)
	require.Len(t, paged.Records, 1)
	assert.Equal(t, "SOLUSDT", paged.Records[0].Symbol)

	clamped := QueryMarkets(records, MarketQuery{Page: 99, PageSize: 2})
	assert.Equal(t, 2, clamped.Page)

	empty := QueryMarkets(nil, MarketQuery{Filter: "x"})
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 1, empty.Pages)
	assert.Empty(t, empty.Records)

	// input order untouched
	assert.Equal(t, "BTCUSDT", records[0].Symbol)
}
