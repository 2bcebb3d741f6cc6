package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"market-dashboard/src/helpers"
	"market-dashboard/src/models"
)

// Event type discriminators sent in the "e" field.
const (
	EventTicker = "24hrTicker"
	EventKline  = "kline"
)

// -----------------------------------------------------------------------------
// Wire shapes. encoding/json matches keys case-insensitively when there is no
// exact match, so every upper/lower pair the exchange sends has its own field.
// -----------------------------------------------------------------------------

type tickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	WeightedAvgPrice   string `json:"w"`
	FirstTradePrice    string `json:"x"`
	LastPrice          string `json:"c"`
	LastQty            string `json:"Q"`
	BidPrice           string `json:"b"`
	BidQty             string `json:"B"`
	AskPrice           string `json:"a"`
	AskQty             string `json:"A"`
	OpenPrice          string `json:"o"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
	OpenTime           int64  `json:"O"`
	CloseTime          int64  `json:"C"`
	FirstID            int64  `json:"F"`
	LastID             int64  `json:"L"`
	Count              int64  `json:"n"`
}

type klineEvent struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Kline     *klineData `json:"k"`
}

type klineData struct {
	StartTime      *int64  `json:"t"`
	CloseTime      int64   `json:"T"`
	Symbol         string  `json:"s"`
	Interval       string  `json:"i"`
	FirstTradeID   int64   `json:"f"`
	LastTradeID    int64   `json:"L"`
	Open           *string `json:"o"`
	Close          *string `json:"c"`
	High           *string `json:"h"`
	Low            *string `json:"l"`
	Volume         *string `json:"v"`
	Trades         int64   `json:"n"`
	IsClosed       bool    `json:"x"`
	QuoteVolume    string  `json:"q"`
	TakerBuyVolume string  `json:"V"`
	TakerBuyQuote  string  `json:"Q"`
	Ignore         string  `json:"B"`
}

type envelope struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

// -----------------------------------------------------------------------------
// Decoded union
// -----------------------------------------------------------------------------

type MessageKind int

const (
	KindTicker MessageKind = iota + 1
	KindKline
)

// KlineUpdate is one live bar for a symbol/interval.
type KlineUpdate struct {
	Symbol   string
	Interval string
	Closed   bool
	Candle   models.MCandle
}

// StreamMessage is the validated form of any inbound frame.
type StreamMessage struct {
	Kind    MessageKind
	Tickers []models.MMarketRecord
	Kline   KlineUpdate
}

// -----------------------------------------------------------------------------

// DecodeStreamMessage validates a raw frame. Arrays are ticker batches, objects
// are dispatched on "e". Anything else is a DecodeError.
func DecodeStreamMessage(data []byte) (StreamMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return StreamMessage{}, helpers.NewDecodeError("empty frame", nil)
	}

	if trimmed[0] == '[' {
		var events []tickerEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return StreamMessage{}, helpers.NewDecodeError("ticker batch", err)
		}
		records, err := tickerRecords(events)
		if err != nil {
			return StreamMessage{}, err
		}
		return StreamMessage{Kind: KindTicker, Tickers: records}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return StreamMessage{}, helpers.NewDecodeError("frame envelope", err)
	}

	switch env.EventType {
	case EventTicker:
		var ev tickerEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return StreamMessage{}, helpers.NewDecodeError("ticker event", err)
		}
		records, err := tickerRecords([]tickerEvent{ev})
		if err != nil {
			return StreamMessage{}, err
		}
		return StreamMessage{Kind: KindTicker, Tickers: records}, nil

	case EventKline:
		var ev klineEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return StreamMessage{}, helpers.NewDecodeError("kline event", err)
		}
		update, err := klineUpdate(ev)
		if err != nil {
			return StreamMessage{}, err
		}
		return StreamMessage{Kind: KindKline, Kline: update}, nil

	default:
		return StreamMessage{}, helpers.NewDecodeError(fmt.Sprintf("unsupported event type %q", env.EventType), nil)
	}
}

// -----------------------------------------------------------------------------

// DecodeTickerBatch accepts only ticker frames.
func DecodeTickerBatch(data []byte) ([]models.MMarketRecord, error) {
	msg, err := DecodeStreamMessage(data)
	if err != nil {
		return nil, err
	}
	if msg.Kind != KindTicker {
		return nil, helpers.NewDecodeError("expected ticker frame", nil)
	}
	return msg.Tickers, nil
}

// -----------------------------------------------------------------------------

// DecodeKline accepts only kline frames.
func DecodeKline(data []byte) (models.MCandle, error) {
	msg, err := DecodeStreamMessage(data)
	if err != nil {
		return models.MCandle{}, err
	}
	if msg.Kind != KindKline {
		return models.MCandle{}, helpers.NewDecodeError("expected kline frame", nil)
	}
	return msg.Kline.Candle, nil
}

// -----------------------------------------------------------------------------

func tickerRecords(events []tickerEvent) ([]models.MMarketRecord, error) {
	records := make([]models.MMarketRecord, 0, len(events))
	for _, ev := range events {
		if ev.EventType != EventTicker {
			return nil, helpers.NewDecodeError(fmt.Sprintf("unexpected event type %q in ticker batch", ev.EventType), nil)
		}
		if ev.Symbol == "" {
			continue
		}
		records = append(records, models.MMarketRecord{
			Symbol:             ev.Symbol,
			LastPrice:          ev.LastPrice,
			PriceChangePercent: ev.PriceChangePercent,
			Volume:             ev.Volume,
		})
	}
	if len(records) == 0 {
		return nil, helpers.NewDecodeError("ticker batch has no symbols", nil)
	}
	return records, nil
}

// -----------------------------------------------------------------------------

func klineUpdate(ev klineEvent) (KlineUpdate, error) {
	k := ev.Kline
	if k == nil || k.StartTime == nil || k.Open == nil || k.High == nil || k.Low == nil || k.Close == nil || k.Volume == nil {
		return KlineUpdate{}, helpers.NewDecodeError("kline event missing fields", nil)
	}

	var c models.MCandle
	c.OpenTime = *k.StartTime

	fields := []struct {
		raw *string
		dst *float64
	}{
		{k.Open, &c.Open},
		{k.High, &c.High},
		{k.Low, &c.Low},
		{k.Close, &c.Close},
		{k.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(*f.raw, 64)
		if err != nil {
			return KlineUpdate{}, helpers.NewDecodeError("kline numeric field", err)
		}
		*f.dst = v
	}

	symbol := k.Symbol
	if symbol == "" {
		symbol = ev.Symbol
	}

	return KlineUpdate{
		Symbol:   symbol,
		Interval: k.Interval,
		Closed:   k.IsClosed,
		Candle:   c,
	}, nil
}
