package models

// MCandle is one OHLCV bar. OpenTime (epoch ms) is both identity and order key.
type MCandle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}
