package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/cache"
	"github.com/potshotlabs/potshot-client/errors"
)

// gasHeadroomPercent pads gas estimates so a marginal estimate does not
// strand a transaction out of gas.
const gasHeadroomPercent = 20

// receiptPollInterval is how often the confirmation wait re-queries the node.
const receiptPollInterval = 3 * time.Second

// CommitShot submits the commit transaction carrying the commitment hash and
// the full posted price. Submission is never retried; a failed submit is
// surfaced for an explicit user re-attempt.
func (c *Client) CommitShot(ctx context.Context, commitmentHash [32]byte, value *big.Int) (*types.Receipt, error) {
	return c.submit(ctx, "commitShot", value, commitmentHash)
}

// RevealShot submits the reveal transaction carrying the secret.
func (c *Client) RevealShot(ctx context.Context, secret [32]byte) (*types.Receipt, error) {
	return c.submit(ctx, "revealShot", nil, secret)
}

// CleanupExpiredPendingShot submits the cleanup transaction for an expired
// commitment. The contract enforces that only expired commitments clear.
func (c *Client) CleanupExpiredPendingShot(ctx context.Context, player ethcommon.Address) (*types.Receipt, error) {
	return c.submit(ctx, "cleanupExpiredPendingShot", nil, player)
}

// submit builds, funds-checks, signs, sends and confirms one contract call.
func (c *Client) submit(ctx context.Context, method string, value *big.Int, args ...interface{}) (*types.Receipt, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	data, err := c.contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("failed to pack %s call", method), err)
	}

	gasPrice, err := c.suggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{
		From:     c.walletAddr,
		To:       &c.contractAddr,
		Value:    value,
		GasPrice: gasPrice,
		Data:     data,
	}

	gasLimit, err := c.estimateGasWithFallback(ctx, method, msg)
	if err != nil {
		return nil, err
	}

	if err := c.verifyBalance(ctx, value, gasLimit, gasPrice); err != nil {
		return nil, err
	}

	nonce, err := c.pendingNonce(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, c.contractAddr, value, gasLimit, gasPrice, data)
	signer := types.NewEIP155Signer(big.NewInt(c.chainID))
	signedTx, err := types.SignTx(tx, signer, c.key)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "failed to sign transaction", err)
	}

	// One shot only. Once accepted by the node the tx cannot be retracted,
	// and a blind resubmit could double-spend.
	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Classify(err)
	}

	c.logger.Info().
		Str("method", method).
		Str("tx_hash", signedTx.Hash().Hex()).
		Str("value_wei", value.String()).
		Uint64("gas_limit", gasLimit).
		Str("gas_price_wei", gasPrice.String()).
		Msg("transaction submitted")

	return c.waitForReceipt(ctx, signedTx.Hash())
}

// suggestGasPrice fetches the node's gas price suggestion with retry.
func (c *Client) suggestGasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := cache.RetryWithBackoff(ctx, "suggest_gas_price", c.retryConfig, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		price, err := c.backend.SuggestGasPrice(callCtx)
		if err != nil {
			return errors.Classify(err)
		}
		gasPrice = price
		return nil
	})
	return gasPrice, err
}

// estimateGasWithFallback estimates gas for msg. A failure that classifies as
// a contract revert is raised as-is: the transaction would fail on-chain and
// must not be submitted. Any other estimation failure falls back to the
// conservative default budget from config.
func (c *Client) estimateGasWithFallback(ctx context.Context, method string, msg ethereum.CallMsg) (uint64, error) {
	var estimate uint64
	err := cache.RetryWithBackoff(ctx, "estimate_gas_"+method, c.retryConfig, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		gas, estErr := c.backend.EstimateGas(callCtx, msg)
		if estErr != nil {
			return errors.Classify(estErr)
		}
		estimate = gas
		return nil
	})
	if err == nil {
		return estimate + estimate*gasHeadroomPercent/100, nil
	}

	if isRevertCode(errors.Code(err)) {
		return 0, err
	}

	c.logger.Warn().
		Err(err).
		Str("method", method).
		Uint64("fallback_gas_limit", c.cfg.DefaultGasLimit).
		Msg("gas estimation unavailable, using default gas budget")
	return c.cfg.DefaultGasLimit, nil
}

// isRevertCode reports whether an error code means the simulated call
// reverted, as opposed to the estimation RPC merely failing.
func isRevertCode(code errors.ErrorCode) bool {
	switch code {
	case errors.ErrCodeSimulation,
		errors.ErrCodeCooldownActive,
		errors.ErrCodePendingShotExists,
		errors.ErrCodePotTooSmall,
		errors.ErrCodeRevealNotReady,
		errors.ErrCodeRevealExpired,
		errors.ErrCodeInsufficientFunds:
		return true
	default:
		return false
	}
}

// verifyBalance checks the wallet covers value plus the worst-case fee.
func (c *Client) verifyBalance(ctx context.Context, value *big.Int, gasLimit uint64, gasPrice *big.Int) error {
	balance, err := c.GetBalance(ctx, c.walletAddr)
	if err != nil {
		return err
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	required := new(big.Int).Add(value, fee)

	if balance.Cmp(required) < 0 {
		shortfall := new(big.Int).Sub(required, balance)
		return errors.New(errors.ErrCodeInsufficientFunds,
			fmt.Sprintf("balance %s wei cannot cover %s wei (value + max fee)", balance, required), nil).
			WithContext("shortfall_wei", shortfall.String())
	}
	return nil
}

// pendingNonce fetches the next nonce for the wallet with retry.
func (c *Client) pendingNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	err := cache.RetryWithBackoff(ctx, "pending_nonce", c.retryConfig, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		n, nonceErr := c.backend.PendingNonceAt(callCtx, c.walletAddr)
		if nonceErr != nil {
			return errors.Classify(nonceErr)
		}
		nonce = n
		return nil
	})
	return nonce, err
}

// waitForReceipt polls for the transaction receipt until the confirmation
// timeout. On timeout the chain may still settle the tx later; the caller
// must re-query state rather than assume failure.
func (c *Client) waitForReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	timeout := time.Duration(c.cfg.ConfirmationTimeoutSeconds) * time.Second
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, errors.New(errors.ErrCodeSimulation,
					"transaction reverted on-chain", nil).
					WithContext("tx_hash", txHash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, errors.New(errors.ErrCodeTimeout,
				"timed out waiting for confirmation; the transaction may still land, re-query before re-attempting", nil).
				WithContext("tx_hash", txHash.Hex())
		case <-ticker.C:
		}
	}
}

// ParseShotRevealed scans a reveal receipt for the ShotRevealed event and
// returns the outcome flag. found is false when the receipt carries no
// ShotRevealed log from the game contract.
func (c *Client) ParseShotRevealed(receipt *types.Receipt) (won bool, found bool, err error) {
	event, ok := c.contractABI.Events[shotRevealedEvent]
	if !ok {
		return false, false, errors.New(errors.ErrCodeInternal, "ShotRevealed event missing from ABI", nil)
	}

	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.contractAddr {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}

		out, unpackErr := c.contractABI.Unpack(shotRevealedEvent, log.Data)
		if unpackErr != nil {
			return false, false, errors.New(errors.ErrCodeInternal,
				"failed to unpack ShotRevealed event", unpackErr)
		}
		// Non-indexed outputs: amount, won
		if len(out) != 2 {
			return false, false, errors.New(errors.ErrCodeInternal,
				fmt.Sprintf("ShotRevealed carries %d values, want 2", len(out)), nil)
		}
		wonFlag, ok := out[1].(bool)
		if !ok {
			return false, false, errors.New(errors.ErrCodeInternal,
				"ShotRevealed won flag has unexpected type", nil)
		}
		return wonFlag, true, nil
	}
	return false, false, nil
}

// LoggerFor returns a child logger tagged for a subcomponent. Used by the
// wager engine so chain-related log lines share the contract context.
func (c *Client) LoggerFor(component string) zerolog.Logger {
	return c.logger.With().Str("component", component).Logger()
}
