package ledger

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/store"
)

// Recorder delivers resolved-wager facts to the ledger and absorbs its
// failures. The on-chain outcome is already final when a Recorder method
// runs, so a ledger failure is downgraded to a warning and the payload is
// parked on the reconciliation backlog for redelivery.
type Recorder struct {
	ledger  Ledger
	backlog *store.Backlog
	logger  zerolog.Logger
}

// NewRecorder wires a Recorder over a ledger client and the backlog store.
func NewRecorder(ledger Ledger, backlog *store.Backlog, logger zerolog.Logger) *Recorder {
	return &Recorder{
		ledger:  ledger,
		backlog: backlog,
		logger:  logger.With().Str("component", "ledger_recorder").Logger(),
	}
}

// RecordShot delivers a shot record. Returns synced=false when the write is
// parked on the backlog instead; the error is non-nil only when even the
// backlog could not hold the payload.
func (r *Recorder) RecordShot(ctx context.Context, shot *ShotRecord) (synced bool, err error) {
	_, deliverErr := r.ledger.RecordShot(ctx, shot)
	return r.settle(deliverErr, store.KindShot, shot.TxHash, shot.PlayerAddress, shot)
}

// RecordWinner delivers the winning-shot fact for an already-recorded shot.
func (r *Recorder) RecordWinner(ctx context.Context, win *WinRecord) (synced bool, err error) {
	_, deliverErr := r.ledger.RecordWinner(ctx, win)
	return r.settle(deliverErr, store.KindWin, win.TxHash, win.PlayerAddress, win)
}

// settle resolves one delivery attempt. Duplicate means the ledger already
// holds the record, which is success for an at-least-once writer.
func (r *Recorder) settle(deliverErr error, kind, txHash, wallet string, payload interface{}) (bool, error) {
	if deliverErr == nil || errors.HasCode(deliverErr, errors.ErrCodeDuplicate) {
		return true, nil
	}

	r.logger.Warn().
		Err(deliverErr).
		Str("kind", kind).
		Str("tx_hash", txHash).
		Msg("ledger write failed, queueing for reconciliation")

	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return false, errors.New(errors.ErrCodeInternal, "failed to encode backlog payload", marshalErr)
	}

	enqueueErr := r.backlog.Enqueue(&store.ReconciliationEntry{
		TxHash:        txHash,
		Kind:          kind,
		WalletAddress: wallet,
		Payload:       raw,
		LastError:     deliverErr.Error(),
	})
	if enqueueErr != nil {
		return false, errors.New(errors.ErrCodeInternal, "failed to enqueue reconciliation entry", enqueueErr)
	}
	return false, nil
}

// Unsynced reports how many ledger writes are still pending redelivery,
// optionally scoped to one wallet.
func (r *Recorder) Unsynced(walletAddress string) (int64, error) {
	return r.backlog.CountPending(walletAddress)
}

// Flush drains up to limit pending backlog entries. Each successful or
// duplicate delivery marks the entry synced; other failures record the
// attempt and leave the entry pending. Returns how many entries synced.
func (r *Recorder) Flush(ctx context.Context, limit int) (int, error) {
	entries, err := r.backlog.Pending(limit)
	if err != nil {
		return 0, err
	}

	drained := 0
	for i := range entries {
		entry := &entries[i]
		if ctx.Err() != nil {
			return drained, ctx.Err()
		}

		deliverErr := r.redeliver(ctx, entry)
		if deliverErr == nil || errors.HasCode(deliverErr, errors.ErrCodeDuplicate) {
			if markErr := r.backlog.MarkSynced(entry.ID); markErr != nil {
				return drained, markErr
			}
			drained++
			continue
		}

		r.logger.Warn().
			Err(deliverErr).
			Str("kind", entry.Kind).
			Str("tx_hash", entry.TxHash).
			Int("attempts", entry.Attempts+1).
			Msg("reconciliation delivery failed")
		if markErr := r.backlog.MarkAttempt(entry.ID, deliverErr); markErr != nil {
			return drained, markErr
		}
	}
	return drained, nil
}

// redeliver replays one parked payload against the ledger.
func (r *Recorder) redeliver(ctx context.Context, entry *store.ReconciliationEntry) error {
	switch entry.Kind {
	case store.KindShot:
		var shot ShotRecord
		if err := json.Unmarshal(entry.Payload, &shot); err != nil {
			return errors.New(errors.ErrCodeInternal, "corrupt shot payload on backlog", err)
		}
		_, err := r.ledger.RecordShot(ctx, &shot)
		return err
	case store.KindWin:
		var win WinRecord
		if err := json.Unmarshal(entry.Payload, &win); err != nil {
			return errors.New(errors.ErrCodeInternal, "corrupt win payload on backlog", err)
		}
		_, err := r.ledger.RecordWinner(ctx, &win)
		return err
	default:
		return errors.Newf(errors.ErrCodeInternal, "unknown reconciliation kind %q", entry.Kind)
	}
}
