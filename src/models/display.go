package models

// MDisplayValue is what a renderer needs to draw one animated figure.
type MDisplayValue struct {
	Key      string  `json:"key"`
	Value    string  `json:"value"`
	Raw      float64 `json:"raw"`
	Decimals int     `json:"decimals"`
	Trend    string  `json:"trend"` // "up", "down" or "flat"
}

type MMarketDisplay struct {
	Symbol string          `json:"symbol"`
	Values []MDisplayValue `json:"values"`
}

// MOscillatorReading is the gauge reading for the selected symbol.
type MOscillatorReading struct {
	Symbol   string  `json:"symbol"`
	Value    float64 `json:"value"`
	Previous float64 `json:"previous"`
	Gauge    float64 `json:"gauge"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Trend    string  `json:"trend"`
	Ready    bool    `json:"ready"`
}

// -----------------------------------------------------------------------------
// Layout preferences
// -----------------------------------------------------------------------------

type MLayoutItem struct {
	ID   string `json:"i"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
	MinW int    `json:"minW,omitempty"`
	MinH int    `json:"minH,omitempty"`
	MaxW int    `json:"maxW,omitempty"`
	MaxH int    `json:"maxH,omitempty"`
}

type MLayout struct {
	Profile   string        `json:"profile"`
	Items     []MLayoutItem `json:"items"`
	UpdatedAt int64         `json:"updatedAt"`
	IsDefault bool          `json:"isDefault"`
}

// -----------------------------------------------------------------------------
// News
// -----------------------------------------------------------------------------

type MNewsArticle struct {
	Source      string `json:"source"`
	Author      string `json:"author,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	ImageURL    string `json:"urlToImage,omitempty"`
	PublishedAt string `json:"publishedAt"`
}
