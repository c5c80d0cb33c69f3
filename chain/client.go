// Package chain is the adapter between the wager engine and the remote EVM
// node. All reads flow through the resilience cache and retry helper; all
// raw node errors are classified into typed codes here, at the boundary,
// so nothing downstream parses message text.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/cache"
	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/errors"
)

// Cache keys for contract view results. Player-scoped keys embed the address.
const (
	keyPot      = "pot"
	keyShotCost = "shot_cost"
)

func keyCanCommit(addr ethcommon.Address) string { return "can_commit:" + addr.Hex() }
func keyCanReveal(addr ethcommon.Address) string { return "can_reveal:" + addr.Hex() }
func keyHasPending(addr ethcommon.Address) string { return "has_pending:" + addr.Hex() }
func keyPendingShot(addr ethcommon.Address) string { return "pending_shot:" + addr.Hex() }
func keyCooldown(addr ethcommon.Address) string { return "cooldown:" + addr.Hex() }

// PendingShot mirrors the contract's view of an outstanding commitment.
type PendingShot struct {
	CommitBlock uint64
	Amount      *big.Int
	Exists      bool
}

// Client drives the shot game contract for a single wallet.
type Client struct {
	backend      Backend
	contractAddr ethcommon.Address
	contractABI  abi.ABI
	chainID      int64

	key        *ecdsa.PrivateKey
	walletAddr ethcommon.Address

	cache       *cache.Cache
	retryConfig *cache.RetryConfig
	cfg         *config.Config
	logger      zerolog.Logger

	callTimeout time.Duration
}

// NewClient creates a chain client. The private key signs commit, reveal and
// cleanup transactions; its derived address is the player identity.
func NewClient(
	cfg *config.Config,
	backend Backend,
	key *ecdsa.PrivateKey,
	resCache *cache.Cache,
	logger zerolog.Logger,
) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("wallet key is nil")
	}
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("contract address is not configured")
	}
	contractAddr := ethcommon.HexToAddress(cfg.ContractAddress)
	if contractAddr == (ethcommon.Address{}) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	parsed, err := parseShotGameABI()
	if err != nil {
		return nil, err
	}

	retryConfig := &cache.RetryConfig{
		MaxRetries:    cfg.MaxRetries,
		BaseDelay:     time.Duration(cfg.RetryBaseDelayMillis) * time.Millisecond,
		BackoffFactor: cfg.RetryBackoffFactor,
		Retryable:     errors.IsRetryable,
	}

	return &Client{
		backend:      backend,
		contractAddr: contractAddr,
		contractABI:  parsed,
		chainID:      cfg.ChainID,
		key:          key,
		walletAddr:   crypto.PubkeyToAddress(key.PublicKey),
		cache:        resCache,
		retryConfig:  retryConfig,
		cfg:          cfg,
		logger: logger.With().
			Str("component", "chain_client").
			Str("contract", contractAddr.Hex()).
			Logger(),
		callTimeout: 10 * time.Second,
	}, nil
}

// WalletAddress returns the player address derived from the signing key.
func (c *Client) WalletAddress() ethcommon.Address {
	return c.walletAddr
}

// ContractAddress returns the shot game contract address.
func (c *Client) ContractAddress() ethcommon.Address {
	return c.contractAddr
}

// CurrentBlock returns the latest block height. Never cached: expiry and
// reveal-window math need the real chain head.
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	var blockNumber uint64
	err := cache.RetryWithBackoff(ctx, "block_number", c.retryConfig, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		n, err := c.backend.BlockNumber(callCtx)
		if err != nil {
			return errors.Classify(err)
		}
		blockNumber = n
		return nil
	})
	return blockNumber, err
}

// GetCurrentPot returns the pot balance in wei, served from cache when fresh.
func (c *Client) GetCurrentPot(ctx context.Context) (*big.Int, error) {
	return c.viewBigInt(ctx, keyPot, false, "getCurrentPot")
}

// GetShotCost returns the fixed posted price in wei, served from cache when fresh.
func (c *Client) GetShotCost(ctx context.Context) (*big.Int, error) {
	return c.viewBigInt(ctx, keyShotCost, false, "SHOT_COST")
}

// CanCommitShot reports whether the contract would accept a commit for player.
func (c *Client) CanCommitShot(ctx context.Context, player ethcommon.Address) (bool, error) {
	return c.viewBool(ctx, keyCanCommit(player), false, "canCommitShot", player)
}

// CanRevealShot reports whether the reveal window is open for player.
func (c *Client) CanRevealShot(ctx context.Context, player ethcommon.Address) (bool, error) {
	return c.viewBool(ctx, keyCanReveal(player), false, "canRevealShot", player)
}

// HasPendingShot reports whether player has an unresolved commitment.
func (c *Client) HasPendingShot(ctx context.Context, player ethcommon.Address) (bool, error) {
	return c.viewBool(ctx, keyHasPending(player), false, "hasPendingShot", player)
}

// HasPendingShotFresh is HasPendingShot with cache bypass, for guards and
// expiry sweeps that must see current chain state.
func (c *Client) HasPendingShotFresh(ctx context.Context, player ethcommon.Address) (bool, error) {
	return c.viewBool(ctx, keyHasPending(player), true, "hasPendingShot", player)
}

// GetCooldownRemaining returns the seconds until player may wager again.
func (c *Client) GetCooldownRemaining(ctx context.Context, player ethcommon.Address) (uint64, error) {
	v, err := c.viewBigInt(ctx, keyCooldown(player), false, "getCooldownRemaining", player)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// GetPendingShot returns the contract's record of player's outstanding commitment.
func (c *Client) GetPendingShot(ctx context.Context, player ethcommon.Address) (*PendingShot, error) {
	return c.pendingShot(ctx, player, false)
}

// GetPendingShotFresh is GetPendingShot with cache bypass, for guards and
// expiry sweeps that must see current chain state.
func (c *Client) GetPendingShotFresh(ctx context.Context, player ethcommon.Address) (*PendingShot, error) {
	return c.pendingShot(ctx, player, true)
}

// GetBalance returns the wallet balance in wei. Never cached: balance checks
// gate transaction submission.
func (c *Client) GetBalance(ctx context.Context, account ethcommon.Address) (*big.Int, error) {
	var balance *big.Int
	err := cache.RetryWithBackoff(ctx, "balance_at", c.retryConfig, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		b, err := c.backend.BalanceAt(callCtx, account, nil)
		if err != nil {
			return errors.Classify(err)
		}
		balance = b
		return nil
	})
	return balance, err
}

// InvalidatePot drops the cached pot and price after a state-changing tx.
func (c *Client) InvalidatePot() {
	c.cache.Invalidate(keyPot, keyShotCost)
}

// InvalidatePlayer drops every cached player-scoped view result.
func (c *Client) InvalidatePlayer(player ethcommon.Address) {
	c.cache.Invalidate(
		keyCanCommit(player),
		keyCanReveal(player),
		keyHasPending(player),
		keyPendingShot(player),
		keyCooldown(player),
	)
}

// pendingShot performs the getPendingShot view call, optionally bypassing the cache.
func (c *Client) pendingShot(ctx context.Context, player ethcommon.Address, bypass bool) (*PendingShot, error) {
	key := keyPendingShot(player)
	if !bypass {
		if v, ok := c.cache.Get(key); ok {
			if ps, ok := v.(*PendingShot); ok {
				return ps, nil
			}
		}
	}

	out, err := c.view(ctx, "getPendingShot", player)
	if err != nil {
		return nil, err
	}
	if len(out) != 3 {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("getPendingShot returned %d values, want 3", len(out)), nil)
	}

	blockNumber, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, "getPendingShot blockNumber has unexpected type", nil)
	}
	amount, ok := out[1].(*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, "getPendingShot amount has unexpected type", nil)
	}
	exists, ok := out[2].(bool)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, "getPendingShot exists has unexpected type", nil)
	}

	ps := &PendingShot{
		CommitBlock: blockNumber.Uint64(),
		Amount:      amount,
		Exists:      exists,
	}
	c.cache.Set(key, ps)
	return ps, nil
}

// viewBigInt reads a single uint256 view result through the cache.
func (c *Client) viewBigInt(ctx context.Context, key string, bypass bool, method string, args ...interface{}) (*big.Int, error) {
	if !bypass {
		if v, ok := c.cache.Get(key); ok {
			if n, ok := v.(*big.Int); ok {
				return n, nil
			}
		}
	}
	out, err := c.view(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("%s returned %d values, want 1", method, len(out)), nil)
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, method+" result has unexpected type", nil)
	}
	c.cache.Set(key, n)
	return n, nil
}

// viewBool reads a single bool view result through the cache.
func (c *Client) viewBool(ctx context.Context, key string, bypass bool, method string, args ...interface{}) (bool, error) {
	if !bypass {
		if v, ok := c.cache.Get(key); ok {
			if b, ok := v.(bool); ok {
				return b, nil
			}
		}
	}
	out, err := c.view(ctx, method, args...)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("%s returned %d values, want 1", method, len(out)), nil)
	}
	b, ok := out[0].(bool)
	if !ok {
		return false, errors.New(errors.ErrCodeInternal, method+" result has unexpected type", nil)
	}
	c.cache.Set(key, b)
	return b, nil
}

// view packs, executes and unpacks a contract view call with retry and
// boundary classification.
func (c *Client) view(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("failed to pack %s call", method), err)
	}

	msg := ethereum.CallMsg{
		To:   &c.contractAddr,
		Data: data,
	}

	var raw []byte
	err = cache.RetryWithBackoff(ctx, "view_"+method, c.retryConfig, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		out, callErr := c.backend.CallContract(callCtx, msg, nil)
		if callErr != nil {
			return errors.Classify(callErr)
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err := c.contractABI.Unpack(method, raw)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("failed to unpack %s result", method), err)
	}
	return out, nil
}
