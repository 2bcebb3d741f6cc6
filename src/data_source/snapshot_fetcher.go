package datasource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/jonboulle/clockwork"
)

// SnapshotFetcher loads the 24h ticker universe once at start, again every
// refresh interval (when configured) and whenever Refresh is called. Each
// fetch is announced with a Loading event followed by the result or the error.
type SnapshotFetcher struct {
	Source   interfaces.IMarketDataSource
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *logger.Logger

	refresh    chan struct{}
	cancelFunc context.CancelFunc
	ctx        context.Context
	outputChan chan<- models.MSnapshotEvent
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewSnapshotFetcher(cfg *models.MConfig, source interfaces.IMarketDataSource, log *logger.Logger) *SnapshotFetcher {
	return &SnapshotFetcher{
		Source:   source,
		Interval: time.Duration(cfg.Exchange.SnapshotRefreshSeconds) * time.Second,
		Clock:    clockwork.NewRealClock(),
		Logger:   log,
		refresh:  make(chan struct{}, 1),
	}
}

// -----------------------------------------------------------------------------

func (f *SnapshotFetcher) Start(parentCtx context.Context, outputChan chan<- models.MSnapshotEvent, wg *sync.WaitGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isRunning.Load() {
		return fmt.Errorf("snapshot fetcher is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	f.cancelFunc = cancel
	f.ctx = ctx
	f.outputChan = outputChan
	f.isRunning.Store(true)

	wg.Add(1)
	go f.runLoop(ctx, wg)
	f.Logger.Info("Started snapshot fetcher (refresh every %v)", f.Interval)
	return nil
}

// -----------------------------------------------------------------------------

func (f *SnapshotFetcher) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isRunning.Load() {
		return fmt.Errorf("snapshot fetcher is not running")
	}

	if f.cancelFunc != nil {
		f.cancelFunc()
	}
	f.isRunning.Store(false)
	f.Logger.Info("Stopped snapshot fetcher")
	return nil
}

// -----------------------------------------------------------------------------

// Refresh requests an immediate fetch. Requests made while one is already
// queued collapse into it.
func (f *SnapshotFetcher) Refresh() {
	select {
	case f.refresh <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

func (f *SnapshotFetcher) push(ev models.MSnapshotEvent) bool {
	select {
	case f.outputChan <- ev:
		return true
	case <-f.ctx.Done():
		return false
	}
}

// -----------------------------------------------------------------------------

func (f *SnapshotFetcher) fetch(ctx context.Context) bool {
	if !f.push(models.MSnapshotEvent{Loading: true}) {
		return false
	}

	entries, err := f.Source.FetchSnapshot(ctx)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		f.Logger.Error("Snapshot fetch failed: %v", err)
		return f.push(models.MSnapshotEvent{Err: err})
	}

	return f.push(models.MSnapshotEvent{Entries: entries})
}

// -----------------------------------------------------------------------------

func (f *SnapshotFetcher) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	if !f.fetch(ctx) {
		return
	}

	var tickC <-chan time.Time
	if f.Interval > 0 {
		ticker := f.Clock.NewTicker(f.Interval)
		defer ticker.Stop()
		tickC = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
		case <-f.refresh:
		}

		if !f.fetch(ctx) {
			return
		}
	}
}
