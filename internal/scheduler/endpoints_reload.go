package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/indexnotify/internal/index"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/observability"
	"github.com/MrSnakeDoc/indexnotify/internal/sources/endpoints"
)

// fileDebounce collapses the burst of events editors emit on save.
const fileDebounce = 250 * time.Millisecond

// EndpointsReloader keeps the endpoint index in sync with the endpoints file
type EndpointsReloader struct {
	loader        *endpoints.Loader
	index         *index.EndpointIndex
	metrics       *observability.Metrics
	logger        logger.Logger
	interval      time.Duration
	debounce      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewEndpointsReloader creates a new endpoints reloader. metrics may be nil.
func NewEndpointsReloader(
	endpointsFile string,
	idx *index.EndpointIndex,
	metrics *observability.Metrics,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *EndpointsReloader {
	return &EndpointsReloader{
		loader:        endpoints.NewLoader(endpointsFile),
		index:         idx,
		metrics:       metrics,
		logger:        log,
		interval:      interval,
		debounce:      fileDebounce,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the file once, then reloads on the ticker, on manual trigger
// and on file change. The loop runs even when the first load fails; the
// error is returned so the caller can report it.
func (er *EndpointsReloader) Start(ctx context.Context) error {
	initErr := er.reload("start")

	watcher, err := er.watch()
	if err != nil {
		er.logger.Warn("endpoints file watch disabled, relying on periodic reload",
			logger.String("file", er.loader.Path()),
			logger.Error(err))
	}

	go er.loop(ctx, watcher)

	if initErr != nil {
		return fmt.Errorf("initial reload failed: %w", initErr)
	}
	return nil
}

// Stop stops the reloader. It is safe to call more than once.
func (er *EndpointsReloader) Stop() {
	er.stopOnce.Do(func() { close(er.stopCh) })
}

// Reload re-reads the endpoints file now.
func (er *EndpointsReloader) Reload() error {
	return er.reload("direct")
}

func (er *EndpointsReloader) watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and config managers replace the file.
	if err := w.Add(filepath.Dir(er.loader.Path())); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (er *EndpointsReloader) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	ticker := time.NewTicker(er.interval)
	defer ticker.Stop()

	var (
		events   <-chan fsnotify.Event
		errs     <-chan error
		debounce *time.Timer
		fire     <-chan time.Time
	)
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
		events, errs = watcher.Events, watcher.Errors
	}
	target := filepath.Clean(er.loader.Path())

	for {
		select {
		case <-ticker.C:
			er.logReload("ticker")
		case <-er.manualTrigger:
			er.logger.Info("manual reload triggered")
			er.logReload("manual")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(er.debounce)
			} else {
				debounce.Reset(er.debounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			er.logReload("file")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			er.logger.Warn("endpoints file watcher error", logger.Error(err))
		case <-er.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (er *EndpointsReloader) logReload(trigger string) {
	if err := er.reload(trigger); err != nil {
		er.logger.Error("failed to reload endpoints, keeping previous list",
			logger.String("trigger", trigger),
			logger.Int("kept", er.index.Count()),
			logger.Error(err))
	}
}

// reload replaces the index snapshot. On error the previous snapshot stays.
func (er *EndpointsReloader) reload(trigger string) error {
	list, err := er.loader.Load()
	er.metrics.RecordReload(trigger, err, len(list))
	if err != nil {
		return err
	}

	er.index.Update(er.loader.Path(), list)
	er.logger.Info("loaded endpoints from file",
		logger.String("file", er.loader.Path()),
		logger.String("trigger", trigger),
		logger.Int("count", len(list)))
	return nil
}
