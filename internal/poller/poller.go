// Package poller refreshes the knowledge base while documents are still being
// processed by the backend.
package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/config"
	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/session"
)

// Fetcher lists the data sources of the signed-in user.
type Fetcher interface {
	GetDataSources(ctx context.Context) ([]models.DataSource, error)
}

type Poller struct {
	store    *session.Store
	api      Fetcher
	interval time.Duration
	logger   *zap.Logger
	failures chan error
}

func New(store *session.Store, api Fetcher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		store:    store,
		api:      api,
		interval: interval,
		logger:   logger.Named("poller"),
		failures: make(chan error, 1),
	}
}

// Failures delivers refresh errors that stopped polling. Only the latest
// unread one is kept.
func (p *Poller) Failures() <-chan error {
	return p.failures
}

func (p *Poller) reportFailure(err error) {
	select {
	case <-p.failures:
	default:
	}
	select {
	case p.failures <- err:
	default:
	}
}

// Refresh fetches the data source list once and merges it into the store.
// Local changes made while the request was in flight are kept.
func (p *Poller) Refresh(ctx context.Context) error {
	since := p.store.DataSources.Snapshot()
	sources, err := p.api.GetDataSources(ctx)
	if err != nil {
		return err
	}
	p.store.DataSources.Merge(sources, since)
	return nil
}

// Run watches the data source collection until ctx is done. Whenever a
// record is processing it refreshes every interval, and it goes idle again
// once nothing is processing or a refresh fails. Only a later change to the
// collection wakes it up.
func (p *Poller) Run(ctx context.Context) error {
	changes, unsubscribe := p.store.Subscribe()
	defer unsubscribe()

	for {
		if p.store.HasProcessing() {
			p.poll(ctx, changes)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
}

func (p *Poller) poll(ctx context.Context, changes <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("polling started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if !p.store.HasProcessing() {
				p.logger.Debug("polling stopped, nothing processing")
				return
			}
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					p.logger.Error("failed to refresh data sources", zap.Error(err))
					p.reportFailure(err)
				}
				return
			}
			// Our own merge signalled; swallow it.
			select {
			case <-changes:
			default:
			}
			if !p.store.HasProcessing() {
				p.logger.Debug("polling stopped, nothing processing")
				return
			}
		}
	}
}

// Handle controls a poller started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs the poller in its own goroutine.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = p.Run(ctx)
	}()
	return h
}

// Stop cancels the poller and waits for it to exit.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Err is valid once Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
