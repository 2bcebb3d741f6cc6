package models

// -----------------------------------------------------------------------------
// MMarketRecord is one row of the market table. Values are kept as the decimal
// strings the exchange sends so that no precision is lost before display.
// -----------------------------------------------------------------------------

type MMarketRecord struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
}

// SameLiveFields reports whether the three stream-driven fields are equal.
func (r MMarketRecord) SameLiveFields(o MMarketRecord) bool {
	return r.LastPrice == o.LastPrice &&
		r.PriceChangePercent == o.PriceChangePercent &&
		r.Volume == o.Volume
}

// -----------------------------------------------------------------------------
// MRawMarketEntry mirrors one element of GET /api/v3/ticker/24hr.
// -----------------------------------------------------------------------------

type MRawMarketEntry struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	PrevClosePrice     string `json:"prevClosePrice"`
	LastPrice          string `json:"lastPrice"`
	LastQty            string `json:"lastQty"`
	BidPrice           string `json:"bidPrice"`
	BidQty             string `json:"bidQty"`
	AskPrice           string `json:"askPrice"`
	AskQty             string `json:"askQty"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	FirstID            int64  `json:"firstId"`
	LastID             int64  `json:"lastId"`
	Count              int64  `json:"count"`
}

// Record projects the entry onto the table row shape.
func (e MRawMarketEntry) Record() MMarketRecord {
	return MMarketRecord{
		Symbol:             e.Symbol,
		LastPrice:          e.LastPrice,
		PriceChangePercent: e.PriceChangePercent,
		Volume:             e.Volume,
	}
}

// -----------------------------------------------------------------------------
// Snapshot fetch lifecycle
// -----------------------------------------------------------------------------

type MSnapshotEvent struct {
	Loading bool
	Entries []MRawMarketEntry
	Err     error
}
