package reconciler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"market-dashboard/src/display"
	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/stream"

	"github.com/jonboulle/clockwork"
)

// -----------------------------------------------------------------------------

// TimeSeriesReconciler keeps the candle series of the selected symbol. Every
// selection starts a new generation; backfills and stream events belonging to
// an older generation are dropped on arrival.
type TimeSeriesReconciler struct {
	Config    *models.MConfig
	Source    interfaces.IMarketDataSource
	Streamer  interfaces.IKlineStreamer
	Publisher interfaces.IViewPublisher
	Clock     clockwork.Clock
	Logger    *logger.Logger

	selects    chan selectRequest
	ctx        context.Context
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.RWMutex
	symbol     string
	latest     models.MCandleView
	status     models.MStreamStatus
}

type selectRequest struct {
	symbol string
	done   chan struct{}
}

type backfillResult struct {
	generation uint64
	candles    []models.MCandle
	err        error
}

// seriesState is owned by the run goroutine.
type seriesState struct {
	generation  uint64
	symbol      string
	series      []models.MCandle
	early       []models.MCandle
	backfilled  bool
	loading     bool
	fetchErr    string
	connected   bool
	streamErr   string
	streamState stream.State

	cancel context.CancelFunc
	events <-chan stream.Event[models.MCandle]
}

// -----------------------------------------------------------------------------

func NewTimeSeriesReconciler(cfg *models.MConfig, source interfaces.IMarketDataSource, streamer interfaces.IKlineStreamer, publisher interfaces.IViewPublisher, log *logger.Logger) *TimeSeriesReconciler {
	return &TimeSeriesReconciler{
		Config:    cfg,
		Source:    source,
		Streamer:  streamer,
		Publisher: publisher,
		Clock:     clockwork.NewRealClock(),
		Logger:    log,
		selects:   make(chan selectRequest),
		status:    klineStatus("", stream.StateIdle, ""),
	}
}

// -----------------------------------------------------------------------------

// Start runs the loop and selects the configured default symbol.
func (r *TimeSeriesReconciler) Start(parentCtx context.Context, wg *sync.WaitGroup) error {
	r.mu.Lock()
	if r.isRunning.Load() {
		r.mu.Unlock()
		return fmt.Errorf("time series reconciler is already running")
	}
	ctx, cancel := context.WithCancel(parentCtx)
	r.ctx = ctx
	r.cancelFunc = cancel
	r.isRunning.Store(true)
	r.mu.Unlock()

	wg.Add(1)
	go r.run(ctx, wg)
	r.Logger.Info("Time series reconciler started")

	return r.SelectSymbol(r.Config.Exchange.DefaultSymbol)
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) Stop() error {
	r.mu.Lock()
	if !r.isRunning.CompareAndSwap(true, false) {
		r.mu.Unlock()
		return fmt.Errorf("time series reconciler is not running")
	}
	cancel := r.cancelFunc
	r.mu.Unlock()

	cancel()
	r.Logger.Info("Time series reconciler stopped")
	return nil
}

// -----------------------------------------------------------------------------

// runContext returns the context of the current run. ctx and isRunning change
// together under mu.
func (r *TimeSeriesReconciler) runContext() (context.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.isRunning.Load() {
		return nil, fmt.Errorf("time series reconciler is not running")
	}
	return r.ctx, nil
}

// -----------------------------------------------------------------------------

// SelectSymbol switches the chart to symbol. The previous series is discarded
// before it returns. Selecting the current symbol again restarts it.
func (r *TimeSeriesReconciler) SelectSymbol(symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return helpers.NewValidationError("symbol cannot be empty")
	}
	ctx, err := r.runContext()
	if err != nil {
		return err
	}

	req := selectRequest{symbol: symbol, done: make(chan struct{})}
	select {
	case r.selects <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) Symbol() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.symbol
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) Latest() models.MCandleView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) Status() models.MStreamStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	st := &seriesState{}
	backfills := make(chan backfillResult)
	defer func() {
		if st.cancel != nil {
			st.cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-r.selects:
			r.switchSymbol(ctx, st, req.symbol, backfills)
			r.publish(st)
			close(req.done)

		case res := <-backfills:
			if res.generation != st.generation {
				r.Logger.Debug("Dropping backfill of generation %d (current %d)", res.generation, st.generation)
				continue
			}
			r.applyBackfill(st, res)
			r.publish(st)

		case ev, ok := <-st.events:
			if !ok {
				st.events = nil
				continue
			}
			r.applyStream(st, ev)
			r.publish(st)
		}
	}
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) switchSymbol(ctx context.Context, st *seriesState, symbol string, backfills chan<- backfillResult) {
	if st.cancel != nil {
		st.cancel()
	}

	genCtx, cancel := context.WithCancel(ctx)
	*st = seriesState{
		generation: st.generation + 1,
		symbol:     symbol,
		loading:    true,
		cancel:     cancel,
	}

	r.mu.Lock()
	r.symbol = symbol
	r.mu.Unlock()

	interval := r.Config.Exchange.KlineInterval
	r.Logger.Info("Selected %s (%s), generation %d", symbol, interval, st.generation)

	go r.backfill(genCtx, st.generation, symbol, backfills)
	st.events = r.Streamer.SubscribeKlines(genCtx, symbol, interval)
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) backfill(ctx context.Context, generation uint64, symbol string, out chan<- backfillResult) {
	ex := r.Config.Exchange
	candles, err := r.Source.FetchKlines(ctx, symbol, ex.KlineInterval, ex.KlineLimit)

	select {
	case out <- backfillResult{generation: generation, candles: candles, err: err}:
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) applyBackfill(st *seriesState, res backfillResult) {
	st.loading = false
	st.backfilled = true

	if res.err != nil {
		r.Logger.Error("Backfill for %s failed: %v", st.symbol, res.err)
		st.fetchErr = res.err.Error()
		st.series = LimitWindow(st.early, r.Config.Exchange.MaxCandles)
		st.early = nil
		return
	}

	series := NormalizeCandles(res.candles)
	for _, c := range st.early {
		series = MergeCandle(series, c)
	}
	st.early = nil
	st.fetchErr = ""
	st.series = LimitWindow(series, r.Config.Exchange.MaxCandles)
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) applyStream(st *seriesState, ev stream.Event[models.MCandle]) {
	if ev.Kind == stream.EventMessage {
		if !st.backfilled {
			st.early = MergeCandle(st.early, ev.Message)
		}
		st.series = LimitWindow(MergeCandle(st.series, ev.Message), r.Config.Exchange.MaxCandles)
		return
	}

	st.streamState = ev.State
	st.connected = ev.State == stream.StateOpen
	switch {
	case ev.State == stream.StateOpen:
		st.streamErr = ""
	case ev.Err != nil:
		st.streamErr = ev.Err.Error()
	}
	if ev.Terminal {
		r.Logger.Error("Kline stream for %s gave up: %v", st.symbol, ev.Err)
	}
}

// -----------------------------------------------------------------------------

func (r *TimeSeriesReconciler) publish(st *seriesState) {
	candles := st.series
	if candles == nil {
		candles = []models.MCandle{}
	}

	view := models.MCandleView{
		Symbol:      st.symbol,
		Interval:    r.Config.Exchange.KlineInterval,
		Candles:     candles,
		IsConnected: st.connected,
		Loading:     st.loading,
		Error:       st.fetchErr,
		Generation:  st.generation,
		UpdatedAt:   r.Clock.Now().UnixMilli(),
	}

	r.mu.Lock()
	r.latest = view
	r.status = klineStatus(st.symbol, st.streamState, st.streamErr)
	r.mu.Unlock()

	r.Publisher.PublishCandles(view)
}

// -----------------------------------------------------------------------------

func klineStatus(symbol string, state stream.State, lastErr string) models.MStreamStatus {
	return models.MStreamStatus{
		Name:      "kline",
		State:     state.String(),
		Label:     display.ConnectionLabel(state),
		Symbol:    symbol,
		LastError: lastErr,
	}
}
