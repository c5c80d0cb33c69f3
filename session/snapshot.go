package session

import (
	"context"
	"time"
)

// PendingCommitment is the snapshot view of an outstanding wager.
type PendingCommitment struct {
	CommitBlock        uint64 `json:"commit_block"`
	AmountWei          string `json:"amount_wei"`
	RevealOpensAtBlock uint64 `json:"reveal_opens_at_block"`
	ExpiresAfterBlock  uint64 `json:"expires_after_block"`
	RevealReady        bool   `json:"reveal_ready"`
	Expired            bool   `json:"expired"`
}

// Snapshot is the only state surface the UI layer may read.
type Snapshot struct {
	Wallet            string             `json:"wallet"`
	CurrentBlock      uint64             `json:"current_block"`
	PotWei            string             `json:"pot_wei"`
	PriceWei          string             `json:"price_wei"`
	CanShoot          bool               `json:"can_shoot"`
	CooldownRemaining uint64             `json:"cooldown_remaining"`
	Pending           *PendingCommitment `json:"pending,omitempty"`
	UnsyncedRecords   int64              `json:"unsynced_records"`
	LastError         string             `json:"last_error,omitempty"`
	RefreshedAt       time.Time          `json:"refreshed_at"`
}

// Snapshot returns the latest refreshed state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	return o.snapshot
}

// Refresh re-reads the full session state and returns the new snapshot.
func (o *Orchestrator) Refresh(ctx context.Context) (Snapshot, error) {
	return o.refresh(ctx)
}

// refresh issues the session reads sequentially with an enforced inter-call
// delay. The node provider rate-limits bursts; trading latency for staying
// under the limit is deliberate.
func (o *Orchestrator) refresh(ctx context.Context) (Snapshot, error) {
	wallet := o.chain.WalletAddress()
	delay := time.Duration(o.cfg.RefreshInterCallDelayMillis) * time.Millisecond

	snap := Snapshot{Wallet: wallet.Hex()}

	current, err := o.chain.CurrentBlock(ctx)
	if err != nil {
		return o.failRefresh(err)
	}
	snap.CurrentBlock = current

	if err := o.pause(ctx, delay); err != nil {
		return o.failRefresh(err)
	}
	pot, err := o.chain.GetCurrentPot(ctx)
	if err != nil {
		return o.failRefresh(err)
	}
	snap.PotWei = pot.String()

	if err := o.pause(ctx, delay); err != nil {
		return o.failRefresh(err)
	}
	price, err := o.chain.GetShotCost(ctx)
	if err != nil {
		return o.failRefresh(err)
	}
	snap.PriceWei = price.String()

	if err := o.pause(ctx, delay); err != nil {
		return o.failRefresh(err)
	}
	canShoot, err := o.chain.CanCommitShot(ctx, wallet)
	if err != nil {
		return o.failRefresh(err)
	}
	snap.CanShoot = canShoot

	if err := o.pause(ctx, delay); err != nil {
		return o.failRefresh(err)
	}
	cooldown, err := o.chain.GetCooldownRemaining(ctx, wallet)
	if err != nil {
		return o.failRefresh(err)
	}
	snap.CooldownRemaining = cooldown

	if err := o.pause(ctx, delay); err != nil {
		return o.failRefresh(err)
	}
	ps, err := o.chain.GetPendingShot(ctx, wallet)
	if err != nil {
		return o.failRefresh(err)
	}
	if ps.Exists {
		opens := ps.CommitBlock + o.cfg.RevealDelayBlocks
		last := ps.CommitBlock + o.cfg.RevealWindowBlocks
		snap.Pending = &PendingCommitment{
			CommitBlock:        ps.CommitBlock,
			AmountWei:          ps.Amount.String(),
			RevealOpensAtBlock: opens,
			ExpiresAfterBlock:  last,
			RevealReady:        current >= opens && current <= last,
			Expired:            current > last,
		}
	}

	unsynced, err := o.recorder.Unsynced(wallet.Hex())
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to count unsynced ledger records")
	} else {
		snap.UnsyncedRecords = unsynced
	}

	snap.RefreshedAt = time.Now().UTC()

	o.snapMu.Lock()
	snap.LastError = o.snapshot.LastError
	o.snapshot = snap
	o.snapMu.Unlock()
	return snap, nil
}

// pause sleeps the inter-call delay, abandoning the refresh on cancellation.
func (o *Orchestrator) pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// failRefresh keeps the previous snapshot but records the refresh failure.
func (o *Orchestrator) failRefresh(err error) (Snapshot, error) {
	o.setLastError(err)
	return o.Snapshot(), err
}

// setLastError records the most recent operation error on the snapshot; a
// nil error clears it.
func (o *Orchestrator) setLastError(err error) {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()
	if err != nil {
		o.snapshot.LastError = err.Error()
	} else {
		o.snapshot.LastError = ""
	}
}
