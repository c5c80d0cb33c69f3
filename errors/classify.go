package errors

import (
	"context"
	"errors"
	"strings"
)

// Classify converts a raw error from the remote node into a GameError.
// This is the only place in the codebase where free-text error messages
// are inspected; everything downstream switches on the resulting code.
func Classify(err error) *GameError {
	if err == nil {
		return nil
	}

	// Already classified upstream
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, "remote call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeInternal, "remote call canceled", err)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "too many requests", "rate limit", "429", "request limit"):
		return New(ErrCodeRateLimit, "provider rate limit hit", err)

	case containsAny(msg, "execution reverted", "revert", "vm exception"):
		return classifyRevert(msg, err)

	case containsAny(msg, "insufficient funds", "insufficient balance"):
		return New(ErrCodeInsufficientFunds, "wallet balance cannot cover value plus fees", err)

	case containsAny(msg, "connection refused", "connection reset", "broken pipe",
		"no such host", "eof", "i/o timeout", "temporary failure", "timeout"):
		return New(ErrCodeNetwork, "transient network failure", err)

	default:
		return New(ErrCodeInternal, "unclassified node error", err)
	}
}

// classifyRevert maps a contract revert reason onto the matching code.
// Reason strings follow the shot-game contract's require messages.
func classifyRevert(msg string, err error) *GameError {
	switch {
	case containsAny(msg, "cooldown"):
		return New(ErrCodeCooldownActive, "cooldown between shots has not elapsed", err)
	case containsAny(msg, "pending shot", "existing shot", "already committed"):
		return New(ErrCodePendingShotExists, "an unresolved commitment already exists", err)
	case containsAny(msg, "pot too small", "pot is empty", "insufficient pot"):
		return New(ErrCodePotTooSmall, "pot is below the minimum payout threshold", err)
	case containsAny(msg, "reveal not ready", "too early to reveal", "reveal delay"):
		return New(ErrCodeRevealNotReady, "reveal window has not opened yet", err)
	case containsAny(msg, "reveal expired", "reveal window", "too late to reveal"):
		return New(ErrCodeRevealExpired, "reveal window has elapsed", err)
	default:
		return New(ErrCodeSimulation, "transaction simulation reverted", err)
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
