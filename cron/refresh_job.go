// Package cron runs the client's background loops: the periodic session
// refresh and the ledger reconciliation drain. Jobs follow the same shape:
// Start launches a goroutine, Stop closes it down, Force triggers an
// immediate pass.
package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/session"
)

// Refresher is the session surface the refresh job drives.
type Refresher interface {
	Refresh(ctx context.Context) (session.Snapshot, error)
}

// RefreshJob keeps the session snapshot warm so the query server always has
// something recent to serve.
type RefreshJob struct {
	refresher  Refresher
	interval   time.Duration
	perTimeout time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
}

// NewRefreshJob creates the periodic refresh loop.
func NewRefreshJob(refresher Refresher, interval, perTimeout time.Duration, logger zerolog.Logger) *RefreshJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if perTimeout <= 0 {
		perTimeout = 20 * time.Second
	}
	return &RefreshJob{
		refresher:  refresher,
		interval:   interval,
		perTimeout: perTimeout,
		logger:     logger.With().Str("component", "refresh_cron").Logger(),
	}
}

// Start launches the background loop and returns immediately.
// Safe to call multiple times; subsequent calls are no-ops.
func (j *RefreshJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.refresher == nil {
		return errors.New("cron: refresher must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1) // buffered so Force won't block
	j.running = true
	j.wg.Add(1)

	go j.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (j *RefreshJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.running = false
	j.mu.Unlock()
	j.wg.Wait()
}

// Force requests an immediate refresh without waiting for the ticker.
func (j *RefreshJob) Force() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	select {
	case j.forceCh <- struct{}{}:
	default:
	}
}

func (j *RefreshJob) run(parent context.Context) {
	defer j.wg.Done()

	if err := j.refreshOnce(parent); err != nil {
		j.logger.Warn().Err(err).Msg("initial session refresh failed; serving stale snapshot")
	}

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-parent.Done():
			j.logger.Info().Msg("refresh cron: context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("refresh cron: stop requested; stopping")
			return
		case <-t.C:
			if err := j.refreshOnce(parent); err != nil {
				j.logger.Warn().Err(err).Msg("periodic session refresh failed; keeping previous snapshot")
			}
		case <-j.forceCh:
			if err := j.refreshOnce(parent); err != nil {
				j.logger.Warn().Err(err).Msg("forced session refresh failed; keeping previous snapshot")
			}
		}
	}
}

func (j *RefreshJob) refreshOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, j.perTimeout)
	defer cancel()

	_, err := j.refresher.Refresh(ctx)
	return err
}
