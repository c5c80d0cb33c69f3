// Package wager drives the commit-reveal lifecycle for a single player
// against the shot game contract. The engine owns one wager instance at a
// time: Idle through Committing, PendingReveal, Revealing, into a Resolved
// terminal, with Expired reachable from PendingReveal when the reveal window
// closes unrevealed.
package wager

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/chain"
	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/store"
)

// State is one node of the wager lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateCommitting    State = "committing"
	StatePendingReveal State = "pending_reveal"
	StateRevealing     State = "revealing"
	StateResolvedWon   State = "resolved_won"
	StateResolvedLost  State = "resolved_lost"
	StateExpired       State = "expired"
)

// Terminal reports whether the state ends the wager instance.
func (s State) Terminal() bool {
	switch s {
	case StateResolvedWon, StateResolvedLost, StateExpired:
		return true
	default:
		return false
	}
}

// Transition is one discrete lifecycle step, published on the engine's event
// channel for subscribers to render. Decouples orchestration from display.
type Transition struct {
	Wallet string    `json:"wallet"`
	From   State     `json:"from"`
	To     State     `json:"to"`
	TxHash string    `json:"tx_hash,omitempty"`
	Won    bool      `json:"won,omitempty"`
	At     time.Time `json:"at"`
}

// transitionBuffer bounds the event channel; a slow subscriber drops events
// rather than stalling wager operations.
const transitionBuffer = 64

// Chain is the contract surface the engine consumes. *chain.Client satisfies
// it; tests substitute fakes.
type Chain interface {
	WalletAddress() ethcommon.Address
	ContractAddress() ethcommon.Address
	CurrentBlock(ctx context.Context) (uint64, error)
	GetCurrentPot(ctx context.Context) (*big.Int, error)
	GetShotCost(ctx context.Context) (*big.Int, error)
	CanCommitShot(ctx context.Context, player ethcommon.Address) (bool, error)
	CanRevealShot(ctx context.Context, player ethcommon.Address) (bool, error)
	HasPendingShot(ctx context.Context, player ethcommon.Address) (bool, error)
	HasPendingShotFresh(ctx context.Context, player ethcommon.Address) (bool, error)
	GetPendingShot(ctx context.Context, player ethcommon.Address) (*chain.PendingShot, error)
	GetPendingShotFresh(ctx context.Context, player ethcommon.Address) (*chain.PendingShot, error)
	GetCooldownRemaining(ctx context.Context, player ethcommon.Address) (uint64, error)
	CommitShot(ctx context.Context, commitmentHash [32]byte, value *big.Int) (*types.Receipt, error)
	RevealShot(ctx context.Context, secret [32]byte) (*types.Receipt, error)
	CleanupExpiredPendingShot(ctx context.Context, player ethcommon.Address) (*types.Receipt, error)
	ParseShotRevealed(receipt *types.Receipt) (won bool, found bool, err error)
	InvalidatePot()
	InvalidatePlayer(player ethcommon.Address)
}

var _ Chain = (*chain.Client)(nil)

// ResultRecorder is the ledger handoff surface. *ledger.Recorder satisfies it.
type ResultRecorder interface {
	RecordShot(ctx context.Context, shot *ledger.ShotRecord) (synced bool, err error)
	RecordWinner(ctx context.Context, win *ledger.WinRecord) (synced bool, err error)
}

var _ ResultRecorder = (*ledger.Recorder)(nil)

// DiscountSource validates and consumes discount grants. *ledger.Client
// satisfies it. Discounts affect ledger bookkeeping only; the value
// transmitted on-chain is always the full posted price.
type DiscountSource interface {
	FetchDiscounts(ctx context.Context, playerAddress string) ([]ledger.DiscountGrant, error)
	RedeemDiscount(ctx context.Context, grantID, playerAddress string) (*ledger.Redemption, error)
}

var _ DiscountSource = (*ledger.Client)(nil)

// Engine runs the wager state machine for the wallet bound to its chain
// client. Not safe for concurrent mutation; the session orchestrator
// serializes calls per wallet.
type Engine struct {
	chain     Chain
	recorder  ResultRecorder
	discounts DiscountSource
	secrets   *store.SecretStore
	cfg       *config.Config
	logger    zerolog.Logger

	events chan Transition
}

// NewEngine wires a wager engine. discounts may be nil when the ledger
// offers no grant program.
func NewEngine(
	chainClient Chain,
	recorder ResultRecorder,
	discounts DiscountSource,
	secrets *store.SecretStore,
	cfg *config.Config,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		chain:     chainClient,
		recorder:  recorder,
		discounts: discounts,
		secrets:   secrets,
		cfg:       cfg,
		logger:    logger.With().Str("component", "wager_engine").Logger(),
		events:    make(chan Transition, transitionBuffer),
	}
}

// Transitions returns the lifecycle event channel. Events are dropped, not
// queued, when the subscriber falls behind.
func (e *Engine) Transitions() <-chan Transition {
	return e.events
}

// emit publishes a transition without blocking.
func (e *Engine) emit(from, to State, txHash string, won bool) {
	t := Transition{
		Wallet: e.chain.WalletAddress().Hex(),
		From:   from,
		To:     to,
		TxHash: txHash,
		Won:    won,
		At:     time.Now().UTC(),
	}
	select {
	case e.events <- t:
	default:
		e.logger.Warn().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("transition dropped, subscriber too slow")
	}
}

// revealOpensAt is the first block at which a commitment becomes revealable.
func (e *Engine) revealOpensAt(commitBlock uint64) uint64 {
	return commitBlock + e.cfg.RevealDelayBlocks
}

// lastRevealBlock is the final block at which a commitment is still
// revealable; one block later it is expired.
func (e *Engine) lastRevealBlock(commitBlock uint64) uint64 {
	return commitBlock + e.cfg.RevealWindowBlocks
}
