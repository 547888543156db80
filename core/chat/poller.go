package chat

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-portal/core"
)

// Poller runs a refresh function every interval on its own goroutine until stopped.
// A failed refresh is retried on the next tick, except authentication failures which stop it.
type Poller struct {
	interval time.Duration
	refresh  func(context.Context) error
	log      core.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	err     error // why the polling stopped by itself
}

// DefaultPollInterval replaces a non-positive polling interval.
const DefaultPollInterval = 5 * time.Second

func NewPoller(interval time.Duration, refresh func(context.Context) error, log core.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, refresh: refresh, log: log, done: make(chan struct{})}
}

// Start begins polling. It does nothing when the poller already started.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !p.tick(ctx) {
					return
				}
			}
		}
	}()
}

func (p *Poller) tick(ctx context.Context) bool {
	err := p.refresh(ctx)
	switch {
	case err == nil:
		return true
	case ctx.Err() != nil:
		return false
	case core.IsUnauthenticated(err):
		p.log.Error("chat: polling stopped", err)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		return false
	default:
		p.log.Warn("chat: background refresh failed", err)
		return true
	}
}

// Stop cancels the polling and waits for the goroutine to exit. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Done is closed once the polling goroutine exited.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Err is the error which stopped the polling, nil when it was stopped or is still running.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
