package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeRateLimit indicates the RPC provider rejected the call for rate limiting
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeSimulation indicates a gas estimation / call simulation revert
	ErrCodeSimulation ErrorCode = "SIMULATION"

	// ErrCodeInsufficientFunds indicates the wallet cannot cover value plus fees
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeCooldownActive indicates the contract cooldown has not elapsed
	ErrCodeCooldownActive ErrorCode = "COOLDOWN_ACTIVE"

	// ErrCodePendingShotExists indicates an unresolved commitment already exists
	ErrCodePendingShotExists ErrorCode = "PENDING_SHOT_EXISTS"

	// ErrCodePotTooSmall indicates the pot is below the minimum payout threshold
	ErrCodePotTooSmall ErrorCode = "POT_TOO_SMALL"

	// ErrCodeRevealNotReady indicates the reveal window has not opened yet
	ErrCodeRevealNotReady ErrorCode = "REVEAL_NOT_READY"

	// ErrCodeRevealExpired indicates the reveal window has elapsed
	ErrCodeRevealExpired ErrorCode = "REVEAL_EXPIRED"

	// ErrCodeNotExpired indicates a cleanup was attempted on a live commitment
	ErrCodeNotExpired ErrorCode = "NOT_EXPIRED"

	// ErrCodeAuth indicates the ledger rejected the caller's identity
	ErrCodeAuth ErrorCode = "AUTH"

	// ErrCodeDuplicate indicates the ledger already holds a record for this tx hash
	ErrCodeDuplicate ErrorCode = "DUPLICATE"

	// ErrCodeNotFound indicates a referenced ledger entity does not exist
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeAlreadyUsed indicates a discount grant was already redeemed
	ErrCodeAlreadyUsed ErrorCode = "ALREADY_USED"

	// ErrCodeGrantExpired indicates a discount grant expired before redemption
	ErrCodeGrantExpired ErrorCode = "GRANT_EXPIRED"

	// ErrCodeValidation indicates input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// GameError represents a classified error in the wager lifecycle.
// Classification happens once at the chain or ledger adapter boundary;
// downstream code switches on Code and never inspects message text.
type GameError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// New creates a new GameError
func New(code ErrorCode, message string, cause error) *GameError {
	return &GameError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a new GameError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *GameError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *GameError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *GameError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *GameError) WithContext(key string, value interface{}) *GameError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is safe to retry for read operations.
// Only provider rate limits and transient transport failures qualify;
// contract reverts and validation failures never do.
func (e *GameError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeNetwork, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// BlocksRemaining reads the "blocks_remaining" context value if present.
// Set on REVEAL_NOT_READY and NOT_EXPIRED errors.
func (e *GameError) BlocksRemaining() (uint64, bool) {
	v, ok := e.Context["blocks_remaining"]
	if !ok {
		return 0, false
	}
	n, ok := v.(uint64)
	return n, ok
}
