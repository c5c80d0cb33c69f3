package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/metrics"
)

// Reconciler is the ledger-backlog surface the reconcile job drives.
// *ledger.Recorder satisfies it.
type Reconciler interface {
	Flush(ctx context.Context, limit int) (int, error)
	Unsynced(walletAddress string) (int64, error)
}

// ReconcileJob periodically drains the reconciliation backlog, turning the
// "not recorded off-chain" condition back into synced state. The ledger's
// duplicate tolerance makes every redelivery safe.
type ReconcileJob struct {
	reconciler Reconciler
	interval   time.Duration
	perTimeout time.Duration
	batchSize  int
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
}

// NewReconcileJob creates the backlog drain loop.
func NewReconcileJob(reconciler Reconciler, interval, perTimeout time.Duration, batchSize int, logger zerolog.Logger) *ReconcileJob {
	if interval <= 0 {
		interval = time.Minute
	}
	if perTimeout <= 0 {
		perTimeout = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ReconcileJob{
		reconciler: reconciler,
		interval:   interval,
		perTimeout: perTimeout,
		batchSize:  batchSize,
		logger:     logger.With().Str("component", "reconcile_cron").Logger(),
	}
}

// Start launches the background loop and returns immediately.
// Safe to call multiple times; subsequent calls are no-ops.
func (j *ReconcileJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.reconciler == nil {
		return errors.New("cron: reconciler must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1)
	j.running = true
	j.wg.Add(1)

	go j.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (j *ReconcileJob) Stop() {
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

// Force requests an immediate drain pass.
func (j *ReconcileJob) Force() {
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

func (j *ReconcileJob) run(parent context.Context) {
	defer j.wg.Done()

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-parent.Done():
			j.logger.Info().Msg("reconcile cron: context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("reconcile cron: stop requested; stopping")
			return
		case <-t.C:
			j.drainOnce(parent)
		case <-j.forceCh:
			j.drainOnce(parent)
		}
	}
}

func (j *ReconcileJob) drainOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, j.perTimeout)
	defer cancel()

	drained, err := j.reconciler.Flush(ctx, j.batchSize)
	if err != nil {
		j.logger.Warn().Err(err).Msg("backlog drain failed; entries stay pending")
	}
	if drained > 0 {
		metrics.ReconciledRecords.Add(float64(drained))
		j.logger.Info().Int("drained", drained).Msg("reconciled backlog entries")
	}

	pending, err := j.reconciler.Unsynced("")
	if err != nil {
		j.logger.Warn().Err(err).Msg("failed to count pending backlog entries")
		return
	}
	metrics.UnsyncedRecords.Set(float64(pending))
}
