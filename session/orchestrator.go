// Package session orchestrates a player's game session: it serializes wager
// operations per wallet, refreshes observable state after every mutation, and
// exposes the snapshot surface the UI layer reads.
package session

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/wager"
)

// Orchestrator owns one wallet's session. State-changing calls are
// single-flight: a second call while one is running is rejected, never queued.
type Orchestrator struct {
	engine   *wager.Engine
	sweeper  *wager.Sweeper
	chain    wager.Chain
	ledger   ledger.Ledger
	recorder *ledger.Recorder
	cfg      *config.Config
	logger   zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool

	snapMu   sync.RWMutex
	snapshot Snapshot
}

// New wires an orchestrator over the wager engine and its collaborators.
func New(
	engine *wager.Engine,
	sweeper *wager.Sweeper,
	chainClient wager.Chain,
	ledgerClient ledger.Ledger,
	recorder *ledger.Recorder,
	cfg *config.Config,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		sweeper:  sweeper,
		chain:    chainClient,
		ledger:   ledgerClient,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With().Str("component", "session").Logger(),
		inFlight: make(map[string]bool),
		snapshot: Snapshot{Wallet: chainClient.WalletAddress().Hex()},
	}
}

// Events returns the wager lifecycle channel for subscribers.
func (o *Orchestrator) Events() <-chan wager.Transition {
	return o.engine.Transitions()
}

// TakeShot runs one commit end to end and refreshes the snapshot before
// returning control.
func (o *Orchestrator) TakeShot(ctx context.Context, opts wager.CommitOptions) (*wager.CommitResult, error) {
	release, err := o.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := o.engine.Commit(ctx, opts)
	o.afterMutation(ctx, err)
	return result, err
}

// RevealShot reveals the outstanding commitment and refreshes the snapshot.
func (o *Orchestrator) RevealShot(ctx context.Context) (*wager.RevealResult, error) {
	release, err := o.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := o.engine.Reveal(ctx)
	o.afterMutation(ctx, err)
	return result, err
}

// CleanupExpired clears the wallet's expired commitment and refreshes the
// snapshot.
func (o *Orchestrator) CleanupExpired(ctx context.Context) (*types.Receipt, error) {
	release, err := o.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	receipt, err := o.sweeper.Cleanup(ctx, o.chain.WalletAddress())
	o.afterMutation(ctx, err)
	return receipt, err
}

// DetectExpired reports whether the wallet's commitment has run out its
// reveal window. Read-only, so it does not take the single-flight slot.
func (o *Orchestrator) DetectExpired(ctx context.Context) (bool, error) {
	return o.sweeper.DetectExpired(ctx, o.chain.WalletAddress())
}

// Discounts returns the wallet's redeemable grants.
func (o *Orchestrator) Discounts(ctx context.Context) ([]ledger.DiscountGrant, error) {
	return o.ledger.FetchDiscounts(ctx, o.chain.WalletAddress().Hex())
}

// PlayerStats returns the ledger's per-wallet rollup.
func (o *Orchestrator) PlayerStats(ctx context.Context) (*ledger.PlayerAggregate, error) {
	return o.ledger.GetPlayerStats(ctx, o.chain.WalletAddress().Hex())
}

// ReconcileLedger drains the reconciliation backlog once.
func (o *Orchestrator) ReconcileLedger(ctx context.Context) (int, error) {
	return o.recorder.Flush(ctx, 0)
}

// acquire takes the wallet's single-flight slot or rejects.
func (o *Orchestrator) acquire() (func(), error) {
	wallet := o.chain.WalletAddress().Hex()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[wallet] {
		return nil, errors.New(errors.ErrCodeValidation,
			"a wager operation is already in flight for this wallet; wait for it to finish", nil)
	}
	o.inFlight[wallet] = true

	return func() {
		o.mu.Lock()
		delete(o.inFlight, wallet)
		o.mu.Unlock()
	}, nil
}

// afterMutation refreshes the snapshot once a state-changing call returns,
// recording the operation's error for the UI either way. The engine already
// invalidated the affected cache keys, so the refresh reads fresh state.
func (o *Orchestrator) afterMutation(ctx context.Context, opErr error) {
	if _, err := o.refresh(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("post-mutation refresh failed")
	}
	o.setLastError(opErr)
}
