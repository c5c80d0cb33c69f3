package wager

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/metrics"
	"github.com/potshotlabs/potshot-client/store"
)

// Sweeper detects and clears expired commitments. Expiry is decided by the
// contract's window; the sweeper only observes it and submits the sanctioned
// cleanup transaction. All of its reads bypass the cache: a 30s-stale answer
// is useless for expiry math.
type Sweeper struct {
	chain   Chain
	secrets *store.SecretStore
	cfg     *config.Config
	logger  zerolog.Logger
	emit    func(from, to State, txHash string, won bool)
}

// NewSweeper creates a sweeper sharing the engine's chain client and event
// channel, so Expired transitions surface alongside the rest of the lifecycle.
func NewSweeper(engine *Engine, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		chain:   engine.chain,
		secrets: engine.secrets,
		cfg:     engine.cfg,
		logger:  logger.With().Str("component", "expiration_sweeper").Logger(),
		emit:    engine.emit,
	}
}

// DetectExpired reports whether player holds a commitment whose reveal window
// has closed. False at exactly commitBlock + window: that block is still
// revealable.
func (s *Sweeper) DetectExpired(ctx context.Context, player ethcommon.Address) (bool, error) {
	has, err := s.chain.HasPendingShotFresh(ctx, player)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}

	ps, err := s.chain.GetPendingShotFresh(ctx, player)
	if err != nil {
		return false, err
	}
	if !ps.Exists {
		return false, nil
	}

	current, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return false, err
	}
	return current > ps.CommitBlock+s.cfg.RevealWindowBlocks, nil
}

// Cleanup clears an expired commitment. Only the commitment's own wallet may
// call it; a live commitment fails with the blocks remaining until expiry.
func (s *Sweeper) Cleanup(ctx context.Context, player ethcommon.Address) (*types.Receipt, error) {
	if player != s.chain.WalletAddress() {
		return nil, errors.New(errors.ErrCodeAuth,
			"cleanup may only target the caller's own commitment", nil)
	}

	ps, err := s.chain.GetPendingShotFresh(ctx, player)
	if err != nil {
		return nil, err
	}
	if !ps.Exists {
		return nil, errors.New(errors.ErrCodeNotFound, "no pending commitment to clean up", nil)
	}

	current, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return nil, err
	}
	lastRevealable := ps.CommitBlock + s.cfg.RevealWindowBlocks
	if current <= lastRevealable {
		remaining := lastRevealable - current + 1
		return nil, errors.Newf(errors.ErrCodeNotExpired,
			"commitment is still live; expires in %d block(s)", remaining).
			WithContext("blocks_remaining", remaining).
			WithContext("commit_block", ps.CommitBlock)
	}

	receipt, err := s.chain.CleanupExpiredPendingShot(ctx, player)
	if err != nil {
		return nil, err
	}

	s.chain.InvalidatePot()
	s.chain.InvalidatePlayer(player)

	if err := s.secrets.DeleteAllForWallet(player.Hex()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to drop secrets for cleaned-up wallet")
	}

	metrics.ExpiredCleanups.Inc()
	s.logger.Info().
		Str("tx_hash", receipt.TxHash.Hex()).
		Uint64("commit_block", ps.CommitBlock).
		Msg("expired commitment cleaned up")

	s.emit(StatePendingReveal, StateExpired, receipt.TxHash.Hex(), false)
	return receipt, nil
}
