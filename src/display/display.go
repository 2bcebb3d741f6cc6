package display

import (
	"fmt"
	"strings"
	"sync"

	"market-dashboard/src/models"
	"market-dashboard/src/stream"
)

// Oscillator gauge domain, in percent.
const (
	GaugeMin = -10.0
	GaugeMax = 10.0
)

// Connection status labels.
const (
	LabelLive       = "● Live"
	LabelConnecting = "● Connecting..."
	LabelOffline    = "● Offline"
)

// -----------------------------------------------------------------------------

func ConnectionLabel(state stream.State) string {
	switch state {
	case stream.StateOpen:
		return LabelLive
	case stream.StateConnecting:
		return LabelConnecting
	default:
		return LabelOffline
	}
}

// -----------------------------------------------------------------------------

// BuildDisplay turns one market row into renderer-ready values. previous may
// be nil; trends are then flat. Keys change with the raw value so a renderer
// can restart its animation.
func BuildDisplay(rec models.MMarketRecord, previous *models.MMarketRecord) models.MMarketDisplay {
	fields := []struct {
		name   string
		raw    string
		prev   string
		format func(string) string
	}{
		{"price", rec.LastPrice, "", FormatPrice},
		{"change", rec.PriceChangePercent, "", FormatPercent},
		{"volume", rec.Volume, "", FormatVolume},
	}
	if previous != nil {
		fields[0].prev = previous.LastPrice
		fields[1].prev = previous.PriceChangePercent
		fields[2].prev = previous.Volume
	}

	out := models.MMarketDisplay{Symbol: rec.Symbol, Values: make([]models.MDisplayValue, 0, len(fields))}
	for _, f := range fields {
		v, _ := ParseDecimal(f.raw)

		trend := TrendFlat
		if p, ok := ParseDecimal(f.prev); ok {
			trend = Trend(p, v)
		}

		out.Values = append(out.Values, models.MDisplayValue{
			Key:      fmt.Sprintf("%s-%s-%s", rec.Symbol, f.name, f.raw),
			Value:    f.format(f.raw),
			Raw:      v,
			Decimals: CountUpDecimals(v),
			Trend:    trend,
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// FindRecord looks a symbol up case-insensitively.
func FindRecord(records []models.MMarketRecord, symbol string) (models.MMarketRecord, bool) {
	for _, r := range records {
		if strings.EqualFold(r.Symbol, symbol) {
			return r, true
		}
	}
	return models.MMarketRecord{}, false
}

// -----------------------------------------------------------------------------

// OscillatorTracker remembers the last 24h change per symbol so each reading
// can report the previous one. Safe for concurrent use.
type OscillatorTracker struct {
	mu   sync.Mutex
	last map[string]float64
	prev map[string]float64
}

func NewOscillatorTracker() *OscillatorTracker {
	return &OscillatorTracker{
		last: make(map[string]float64),
		prev: make(map[string]float64),
	}
}

// -----------------------------------------------------------------------------

// Observe records the current change of every row.
func (t *OscillatorTracker) Observe(records []models.MMarketRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range records {
		v, ok := ParseDecimal(r.PriceChangePercent)
		if !ok {
			continue
		}
		sym := strings.ToUpper(r.Symbol)
		if last, seen := t.last[sym]; seen && last != v {
			t.prev[sym] = last
		}
		t.last[sym] = v
	}
}

// -----------------------------------------------------------------------------

// Reading returns the gauge reading for symbol. Unknown symbols read 0 and
// are not Ready.
func (t *OscillatorTracker) Reading(symbol string) models.MOscillatorReading {
	t.mu.Lock()
	defer t.mu.Unlock()

	sym := strings.ToUpper(strings.TrimSpace(symbol))
	value, ok := t.last[sym]
	previous := t.prev[sym]

	return models.MOscillatorReading{
		Symbol:   sym,
		Value:    value,
		Previous: previous,
		Gauge:    min(max(value, GaugeMin), GaugeMax),
		Min:      GaugeMin,
		Max:      GaugeMax,
		Trend:    Trend(previous, value),
		Ready:    ok,
	}
}
