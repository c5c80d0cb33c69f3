package wager

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/metrics"
	"github.com/potshotlabs/potshot-client/store"
)

// RevealResult describes a resolved wager. Won is authoritative the moment
// the reveal confirms; Recorded only says whether the off-chain ledger has
// caught up.
type RevealResult struct {
	Won         bool
	TxHash      string
	BlockNumber uint64

	// Recorded is false when the ledger write failed and the record was
	// parked on the reconciliation backlog. The outcome above still stands.
	Recorded bool
	Warning  string
}

// Reveal runs PendingReveal through Revealing into a Resolved terminal:
// gating on the reveal window, the reveal transaction, outcome parsing from
// the ShotRevealed event, and the ledger handoff.
func (e *Engine) Reveal(ctx context.Context) (*RevealResult, error) {
	wallet := e.chain.WalletAddress()

	ps, err := e.chain.GetPendingShotFresh(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if !ps.Exists {
		return nil, errors.New(errors.ErrCodeNotFound, "no pending commitment to reveal", nil)
	}

	current, err := e.chain.CurrentBlock(ctx)
	if err != nil {
		return nil, err
	}

	if last := e.lastRevealBlock(ps.CommitBlock); current > last {
		return nil, errors.Newf(errors.ErrCodeRevealExpired,
			"the reveal window closed at block %d (now %d); the commitment must be cleaned up", last, current).
			WithContext("commit_block", ps.CommitBlock)
	}
	if opens := e.revealOpensAt(ps.CommitBlock); current < opens {
		remaining := opens - current
		return nil, errors.Newf(errors.ErrCodeRevealNotReady,
			"reveal opens at block %d, %d block(s) from now", opens, remaining).
			WithContext("blocks_remaining", remaining).
			WithContext("commit_block", ps.CommitBlock)
	}

	secret, secretRec, err := e.loadSecret(wallet.Hex())
	if err != nil {
		return nil, err
	}

	e.emit(StatePendingReveal, StateRevealing, secretRec.CommitTxHash, false)

	receipt, err := e.chain.RevealShot(ctx, secret)
	if err != nil {
		return nil, err
	}

	won, found, err := e.chain.ParseShotRevealed(receipt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.ErrCodeInternal,
			"reveal confirmed but the receipt carries no ShotRevealed event", nil).
			WithContext("tx_hash", receipt.TxHash.Hex())
	}

	e.chain.InvalidatePot()
	e.chain.InvalidatePlayer(wallet)

	if err := e.secrets.Delete(wallet.Hex(), secretRec.TxHashPrefix); err != nil {
		e.logger.Warn().Err(err).Msg("failed to delete revealed secret")
	}

	to := StateResolvedLost
	outcome := "lost"
	if won {
		to = StateResolvedWon
		outcome = "won"
	}
	metrics.ShotsResolved.WithLabelValues(outcome).Inc()
	e.emit(StateRevealing, to, receipt.TxHash.Hex(), won)

	result := &RevealResult{
		Won:         won,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}
	e.recordOutcome(ctx, result, secretRec)

	e.logger.Info().
		Str("tx_hash", result.TxHash).
		Bool("won", won).
		Bool("recorded", result.Recorded).
		Msg("wager resolved")
	return result, nil
}

// loadSecret finds the durable secret for the outstanding commitment. The
// newest row wins; older rows belong to expired commitments awaiting cleanup.
func (e *Engine) loadSecret(wallet string) ([32]byte, *store.WagerSecret, error) {
	var secret [32]byte

	recs, err := e.secrets.ListByWallet(wallet)
	if err != nil {
		return secret, nil, errors.New(errors.ErrCodeInternal, "failed to load stored secrets", err)
	}
	if len(recs) == 0 {
		return secret, nil, errors.New(errors.ErrCodeNotFound,
			"no stored secret for this wallet; the commitment cannot be revealed from this device", nil)
	}

	rec := &recs[len(recs)-1]
	raw, err := hex.DecodeString(rec.Secret)
	if err != nil || len(raw) != len(secret) {
		return secret, nil, errors.New(errors.ErrCodeInternal, "stored secret is corrupt", err)
	}
	copy(secret[:], raw)
	return secret, rec, nil
}

// recordOutcome hands the resolved wager to the ledger. Failures never
// contradict the on-chain result; they downgrade to a warning and a
// reconciliation backlog entry.
func (e *Engine) recordOutcome(ctx context.Context, result *RevealResult, secretRec *store.WagerSecret) {
	wallet := e.chain.WalletAddress().Hex()
	now := time.Now().UTC()

	shot := &ledger.ShotRecord{
		TxHash:          result.TxHash,
		PlayerAddress:   wallet,
		AmountWei:       secretRec.AmountWei,
		Won:             result.Won,
		BlockNumber:     result.BlockNumber,
		Timestamp:       now,
		CryptoType:      "ETH",
		ContractAddress: e.chain.ContractAddress().Hex(),
	}

	shotSynced, err := e.recorder.RecordShot(ctx, shot)
	if err != nil {
		e.logger.Error().Err(err).Msg("shot record lost: ledger and backlog both failed")
		result.Warning = "result not recorded off-chain; refresh later"
		return
	}

	winSynced := true
	if result.Won {
		winSynced, err = e.recorder.RecordWinner(ctx, &ledger.WinRecord{
			TxHash:        result.TxHash,
			PlayerAddress: wallet,
			AmountWei:     secretRec.AmountWei,
			BlockNumber:   result.BlockNumber,
			Timestamp:     now,
		})
		if err != nil {
			e.logger.Error().Err(err).Msg("win record lost: ledger and backlog both failed")
			result.Warning = "result not recorded off-chain; refresh later"
			return
		}
	}

	result.Recorded = shotSynced && winSynced
	if !result.Recorded {
		result.Warning = "result queued for off-chain recording; leaderboards may lag"
	}
}
