package wager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/store"
)

// CommitOptions carries the optional inputs to a commit.
type CommitOptions struct {
	// DiscountGrantID, when set, names a grant that must be valid and unused.
	// The grant is redeemed only after the commit confirms, so a failed
	// commit never burns it.
	DiscountGrantID string
}

// CommitResult describes a confirmed commit.
type CommitResult struct {
	TxHash      string
	CommitBlock uint64
	AmountWei   *big.Int

	// DiscountPercentage is ledger bookkeeping only; AmountWei is always the
	// full posted price.
	DiscountPercentage uint8

	// RevealOpensAtBlock is the first revealable block; ExpiresAfterBlock is
	// the last. One block past ExpiresAfterBlock the commitment is expired.
	RevealOpensAtBlock uint64
	ExpiresAfterBlock  uint64
}

// Commit runs Idle through Committing into PendingReveal: guards, secret
// generation, the commit transaction, and durable secret persistence.
func (e *Engine) Commit(ctx context.Context, opts CommitOptions) (*CommitResult, error) {
	wallet := e.chain.WalletAddress()

	if err := e.guardNoPendingShot(ctx); err != nil {
		return nil, err
	}

	grant, err := e.guardDiscount(ctx, opts.DiscountGrantID)
	if err != nil {
		return nil, err
	}

	price, err := e.chain.GetShotCost(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guardPot(ctx, price); err != nil {
		return nil, err
	}

	secret, commitmentHash, err := e.newCommitment()
	if err != nil {
		return nil, err
	}

	e.emit(StateIdle, StateCommitting, "", false)

	receipt, commitErr := e.chain.CommitShot(ctx, commitmentHash, price)
	if commitErr != nil {
		// A confirmation timeout still carries the submitted tx hash; the tx
		// may land later, so the secret must survive a restart.
		if errors.HasCode(commitErr, errors.ErrCodeTimeout) {
			if txHash, ok := errorTxHash(commitErr); ok {
				e.persistSecret(wallet.Hex(), txHash, secret, 0, price)
			}
		}
		return nil, commitErr
	}

	txHash := receipt.TxHash.Hex()
	commitBlock := receipt.BlockNumber.Uint64()
	e.persistSecret(wallet.Hex(), txHash, secret, commitBlock, price)

	e.chain.InvalidatePot()
	e.chain.InvalidatePlayer(wallet)

	result := &CommitResult{
		TxHash:             txHash,
		CommitBlock:        commitBlock,
		AmountWei:          price,
		RevealOpensAtBlock: e.revealOpensAt(commitBlock),
		ExpiresAfterBlock:  e.lastRevealBlock(commitBlock),
	}

	if grant != nil {
		result.DiscountPercentage = e.redeemGrant(ctx, grant)
	}

	e.logger.Info().
		Str("tx_hash", txHash).
		Uint64("commit_block", commitBlock).
		Str("amount_wei", price.String()).
		Uint64("reveal_opens_at", result.RevealOpensAtBlock).
		Uint64("expires_after", result.ExpiresAfterBlock).
		Msg("commitment confirmed")

	e.emit(StateCommitting, StatePendingReveal, txHash, false)
	return result, nil
}

// guardNoPendingShot rejects a commit while an unresolved commitment exists.
// It bypasses the cache: the rejection must happen before any transaction is
// submitted, so a stale cached view cannot be trusted here. The message
// distinguishes reveal-ready from reveal-not-yet-due so the caller knows
// whether to reveal now or wait.
func (e *Engine) guardNoPendingShot(ctx context.Context) error {
	wallet := e.chain.WalletAddress()

	has, err := e.chain.HasPendingShotFresh(ctx, wallet)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}

	ps, err := e.chain.GetPendingShotFresh(ctx, wallet)
	if err != nil {
		return err
	}
	if !ps.Exists {
		return errors.New(errors.ErrCodePendingShotExists,
			"an unresolved commitment exists for this wallet", nil)
	}

	current, err := e.chain.CurrentBlock(ctx)
	if err != nil {
		return err
	}

	opens := e.revealOpensAt(ps.CommitBlock)
	if current >= opens {
		return errors.New(errors.ErrCodePendingShotExists,
			"an unresolved commitment exists and its reveal window is open: reveal it before wagering again", nil).
			WithContext("commit_block", ps.CommitBlock)
	}
	return errors.Newf(errors.ErrCodePendingShotExists,
		"an unresolved commitment exists; its reveal opens in %d block(s)", opens-current).
		WithContext("commit_block", ps.CommitBlock).
		WithContext("blocks_remaining", opens-current)
}

// guardDiscount validates the requested grant without consuming it.
func (e *Engine) guardDiscount(ctx context.Context, grantID string) (*ledger.DiscountGrant, error) {
	if grantID == "" {
		return nil, nil
	}
	if e.discounts == nil {
		return nil, errors.New(errors.ErrCodeValidation, "discounts are not available", nil)
	}

	grants, err := e.discounts.FetchDiscounts(ctx, e.chain.WalletAddress().Hex())
	if err != nil {
		return nil, err
	}
	for i := range grants {
		g := &grants[i]
		if g.ID != grantID {
			continue
		}
		if g.Used {
			return nil, errors.New(errors.ErrCodeAlreadyUsed, "discount grant is already used", nil)
		}
		if !g.ExpiresAt.IsZero() && time.Now().After(g.ExpiresAt) {
			return nil, errors.New(errors.ErrCodeGrantExpired, "discount grant has expired", nil)
		}
		return g, nil
	}
	return nil, errors.Newf(errors.ErrCodeNotFound, "no discount grant %q for this wallet", grantID)
}

// guardPot rejects a commit when the pot cannot support a payout. The empty
// pot gets its own message: the first wager seeds the pot rather than wins it.
func (e *Engine) guardPot(ctx context.Context, price *big.Int) error {
	pot, err := e.chain.GetCurrentPot(ctx)
	if err != nil {
		return err
	}

	if pot.Sign() == 0 {
		return errors.New(errors.ErrCodePotTooSmall,
			"the pot is empty: the first wager seeds the pot and cannot win it", nil).
			WithContext("pot_wei", pot.String()).
			WithContext("min_pot_wei", price.String())
	}
	if pot.Cmp(price) < 0 {
		return errors.Newf(errors.ErrCodePotTooSmall,
			"the pot holds %s wei, below the %s wei minimum for a payout", pot, price).
			WithContext("pot_wei", pot.String()).
			WithContext("min_pot_wei", price.String())
	}
	return nil
}

// newCommitment draws a fresh 256-bit secret and derives the commitment hash
// binding it to this wallet.
func (e *Engine) newCommitment() (secret [32]byte, commitmentHash [32]byte, err error) {
	if _, err = rand.Read(secret[:]); err != nil {
		return secret, commitmentHash, errors.New(errors.ErrCodeInternal,
			"failed to generate wager secret", err)
	}
	digest := crypto.Keccak256(secret[:], e.chain.WalletAddress().Bytes())
	copy(commitmentHash[:], digest)
	return secret, commitmentHash, nil
}

// persistSecret stores the secret keyed (wallet, tx hash prefix) so a crash
// between commit and reveal does not strand funds. Persistence failure is
// logged loudly but does not fail the commit: the on-chain tx is already out.
func (e *Engine) persistSecret(wallet, txHash string, secret [32]byte, commitBlock uint64, amount *big.Int) {
	rec := &store.WagerSecret{
		WalletAddress: wallet,
		TxHashPrefix:  store.PrefixOf(txHash),
		Secret:        hex.EncodeToString(secret[:]),
		CommitTxHash:  txHash,
		CommitBlock:   commitBlock,
		AmountWei:     amount.String(),
	}
	if err := e.secrets.Save(rec); err != nil {
		e.logger.Error().
			Err(err).
			Str("tx_hash", txHash).
			Msg("failed to persist wager secret; reveal will require the in-memory copy")
	}
}

// redeemGrant consumes a validated grant after the commit confirmed. The
// redemption result is bookkeeping; failure here never affects the wager.
func (e *Engine) redeemGrant(ctx context.Context, grant *ledger.DiscountGrant) uint8 {
	redemption, err := e.discounts.RedeemDiscount(ctx, grant.ID, e.chain.WalletAddress().Hex())
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("grant_id", grant.ID).
			Msg("discount redemption failed after commit; full price was paid on-chain regardless")
		return 0
	}
	return redemption.Percentage
}

// errorTxHash pulls the submitted tx hash out of a classified error's context.
func errorTxHash(err error) (string, bool) {
	var gameErr *errors.GameError
	if !errors.As(err, &gameErr) {
		return "", false
	}
	v, ok := gameErr.Context["tx_hash"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
