package models

// -----------------------------------------------------------------------------
// Published view models. A view is never mutated once handed to a publisher.
// -----------------------------------------------------------------------------

type MMarketView struct {
	Records     []MMarketRecord `json:"records"`
	IsConnected bool            `json:"isConnected"`
	Loading     bool            `json:"loading"`
	Error       string          `json:"error,omitempty"`
	LiveError   string          `json:"liveError,omitempty"`
	UpdatedAt   int64           `json:"updatedAt"`
}

type MCandleView struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Candles     []MCandle `json:"candles"`
	IsConnected bool      `json:"isConnected"`
	Loading     bool      `json:"loading"`
	Error       string    `json:"error,omitempty"`
	Generation  uint64    `json:"generation"`
	UpdatedAt   int64     `json:"updatedAt"`
}

// MStreamStatus describes one stream subscription for status endpoints.
type MStreamStatus struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Label     string `json:"label"`
	Symbol    string `json:"symbol,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// -----------------------------------------------------------------------------
// Envelope pushed over the dashboard websocket
// -----------------------------------------------------------------------------

type MEnvelope struct {
	Type      string       `json:"type"` // "markets", "candles" or "error"
	Timestamp int64        `json:"timestamp"`
	Markets   *MMarketView `json:"markets,omitempty"`
	Candles   *MCandleView `json:"candles,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// MClientCommand is what a browser may send over the websocket.
type MClientCommand struct {
	Command string `json:"command"`
	Symbol  string `json:"symbol"`
}
