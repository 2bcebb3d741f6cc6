package reconciler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"market-dashboard/src/display"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/stream"

	"github.com/jonboulle/clockwork"
)

const snapshotBuffer = 4

// -----------------------------------------------------------------------------

// MarketReconciler merges the REST snapshot with the live ticker stream. All
// merge state is owned by the run goroutine; readers only see published views.
type MarketReconciler struct {
	Config    *models.MConfig
	Fetcher   interfaces.ISnapshotFetcher
	Streamer  interfaces.ITickerStreamer
	Publisher interfaces.IViewPublisher
	Clock     clockwork.Clock
	Logger    *logger.Logger

	restart    chan struct{}
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.RWMutex
	latest     models.MMarketView
	status     models.MStreamStatus
}

// marketState is the run goroutine's private state.
type marketState struct {
	base      []models.MMarketRecord
	live      map[string]models.MMarketRecord
	published []models.MMarketRecord

	loading     bool
	fetchErr    string
	connected   bool
	liveErr     string
	streamState stream.State
	hasView     bool

	streamCancel context.CancelFunc
}

func (st *marketState) stopStream() {
	if st.streamCancel != nil {
		st.streamCancel()
		st.streamCancel = nil
	}
}

// -----------------------------------------------------------------------------

func NewMarketReconciler(cfg *models.MConfig, fetcher interfaces.ISnapshotFetcher, streamer interfaces.ITickerStreamer, publisher interfaces.IViewPublisher, log *logger.Logger) *MarketReconciler {
	return &MarketReconciler{
		Config:    cfg,
		Fetcher:   fetcher,
		Streamer:  streamer,
		Publisher: publisher,
		Clock:     clockwork.NewRealClock(),
		Logger:    log,
		restart:   make(chan struct{}, 1),
		latest:    models.MMarketView{Records: []models.MMarketRecord{}, Loading: true},
		status:    tickerStatus(stream.StateIdle, ""),
	}
}

// -----------------------------------------------------------------------------

// Start launches the snapshot fetcher and the merge loop. Both stop when ctx
// is cancelled or Stop is called, and wg tracks them.
func (r *MarketReconciler) Start(parentCtx context.Context, wg *sync.WaitGroup) error {
	r.mu.Lock()
	if r.isRunning.Load() {
		r.mu.Unlock()
		return fmt.Errorf("market reconciler is already running")
	}
	ctx, cancel := context.WithCancel(parentCtx)
	r.cancelFunc = cancel
	r.isRunning.Store(true)
	r.mu.Unlock()

	snapshots := make(chan models.MSnapshotEvent, snapshotBuffer)
	if err := r.Fetcher.Start(ctx, snapshots, wg); err != nil {
		_ = r.Stop()
		return fmt.Errorf("failed to start snapshot fetcher: %w", err)
	}

	wg.Add(1)
	go r.run(ctx, snapshots, wg)
	r.Logger.Info("Market reconciler started")
	return nil
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) Stop() error {
	r.mu.Lock()
	if !r.isRunning.CompareAndSwap(true, false) {
		r.mu.Unlock()
		return fmt.Errorf("market reconciler is not running")
	}
	cancel := r.cancelFunc
	r.mu.Unlock()

	cancel()
	r.Logger.Info("Market reconciler stopped")
	return nil
}

// -----------------------------------------------------------------------------

// RestartStream replaces the ticker connection with a fresh one, which also
// resets its backoff budget.
func (r *MarketReconciler) RestartStream() {
	select {
	case r.restart <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) RefreshSnapshot() {
	r.Fetcher.Refresh()
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) Latest() models.MMarketView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) Status() models.MStreamStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) run(ctx context.Context, snapshots <-chan models.MSnapshotEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	st := &marketState{loading: true, live: map[string]models.MMarketRecord{}}

	events := r.subscribe(ctx, st)
	defer st.stopStream()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			r.applySnapshot(st, ev)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.applyStream(st, ev)

		case <-r.restart:
			r.Logger.Info("Restarting ticker stream")
			events = r.subscribe(ctx, st)
			st.connected = false
			st.liveErr = ""
			st.streamState = stream.StateIdle
		}

		r.publish(st)
	}
}

// -----------------------------------------------------------------------------

// subscribe replaces any open ticker subscription with a fresh one.
func (r *MarketReconciler) subscribe(ctx context.Context, st *marketState) <-chan stream.Event[[]models.MMarketRecord] {
	st.stopStream()
	streamCtx, cancel := context.WithCancel(ctx)
	st.streamCancel = cancel
	return r.Streamer.SubscribeTicker(streamCtx)
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) applySnapshot(st *marketState, ev models.MSnapshotEvent) {
	switch {
	case ev.Loading:
		st.loading = true

	case ev.Err != nil:
		st.loading = false
		st.fetchErr = ev.Err.Error()
		st.base = nil

	default:
		st.loading = false
		st.fetchErr = ""
		st.base = ProjectSnapshot(ev.Entries)
		st.live = map[string]models.MMarketRecord{}
		r.Logger.Debug("Snapshot applied with %d symbols", len(st.base))
	}
}

// -----------------------------------------------------------------------------

func (r *MarketReconciler) applyStream(st *marketState, ev stream.Event[[]models.MMarketRecord]) {
	if ev.Kind == stream.EventMessage {
		for _, rec := range ev.Message {
			st.live[rec.Symbol] = rec
		}
		return
	}

	st.streamState = ev.State
	st.connected = ev.State == stream.StateOpen
	switch {
	case ev.State == stream.StateOpen:
		st.liveErr = ""
	case ev.Err != nil:
		st.liveErr = ev.Err.Error()
	}
	if ev.Terminal {
		r.Logger.Error("Ticker stream gave up: %v", ev.Err)
	}
}

// -----------------------------------------------------------------------------

// publish emits a view only when something visible changed.
func (r *MarketReconciler) publish(st *marketState) {
	var records []models.MMarketRecord
	if st.fetchErr == "" {
		records = MergeMarket(st.base, st.live, r.Config.Reconcile.IncludeStreamOnly)
	}
	if !sameRecords(records, st.published) && slices.Equal(records, st.published) {
		records = st.published
	}
	if records == nil {
		records = []models.MMarketRecord{}
	}

	prev := r.Latest()
	unchanged := st.hasView &&
		sameRecords(records, prev.Records) &&
		prev.IsConnected == st.connected &&
		prev.Loading == st.loading &&
		prev.Error == st.fetchErr &&
		prev.LiveError == st.liveErr

	status := tickerStatus(st.streamState, st.liveErr)

	if unchanged {
		r.mu.Lock()
		r.status = status
		r.mu.Unlock()
		return
	}

	view := models.MMarketView{
		Records:     records,
		IsConnected: st.connected,
		Loading:     st.loading,
		Error:       st.fetchErr,
		LiveError:   st.liveErr,
		UpdatedAt:   r.Clock.Now().UnixMilli(),
	}
	st.published = records
	st.hasView = true

	r.mu.Lock()
	r.latest = view
	r.status = status
	r.mu.Unlock()

	r.Publisher.PublishMarkets(view)
}

// -----------------------------------------------------------------------------

func tickerStatus(state stream.State, lastErr string) models.MStreamStatus {
	return models.MStreamStatus{
		Name:      "ticker",
		State:     state.String(),
		Label:     display.ConnectionLabel(state),
		LastError: lastErr,
	}
}
