package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/errors"
)

// maxResponseBytes bounds how much of a ledger response body is read.
const maxResponseBytes = 1 << 20

// Ledger is the narrow interface to the authenticated off-chain store.
// Every method requires the auth token to assert the wallet referenced in
// the payload; the server enforces the match.
type Ledger interface {
	RecordShot(ctx context.Context, shot *ShotRecord) (*ShotRecord, error)
	RecordWinner(ctx context.Context, win *WinRecord) (*WinRecord, error)
	FetchDiscounts(ctx context.Context, playerAddress string) ([]DiscountGrant, error)
	RedeemDiscount(ctx context.Context, grantID, playerAddress string) (*Redemption, error)
	GetPlayerStats(ctx context.Context, playerAddress string) (*PlayerAggregate, error)
}

// Client talks JSON over HTTP to the ledger service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Ledger = (*Client)(nil)

// NewClient creates a ledger client from config. The auth token asserts the
// caller's wallet identity and is sent as a bearer credential.
func NewClient(cfg *config.Config, authToken string, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeValidation, "config cannot be nil", nil)
	}
	if cfg.LedgerBaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "ledger base URL is required", nil)
	}

	timeout := time.Duration(cfg.LedgerTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.LedgerBaseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With().Str("component", "ledger_client").Logger(),
	}, nil
}

// RecordShot inserts the ledger entry for a resolved wager. A Duplicate
// failure means the entry already exists and is safe to treat as success;
// the caller decides that, not this method.
func (c *Client) RecordShot(ctx context.Context, shot *ShotRecord) (*ShotRecord, error) {
	if shot == nil || shot.TxHash == "" || shot.PlayerAddress == "" {
		return nil, errors.New(errors.ErrCodeValidation, "shot record requires txHash and playerAddress", nil)
	}
	var out ShotRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/shots", shot, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordWinner inserts the winning-shot ledger fact for a transaction hash.
func (c *Client) RecordWinner(ctx context.Context, win *WinRecord) (*WinRecord, error) {
	if win == nil || win.TxHash == "" || win.PlayerAddress == "" {
		return nil, errors.New(errors.ErrCodeValidation, "win record requires txHash and playerAddress", nil)
	}
	var out WinRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/winners", win, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchDiscounts returns the player's unused, unexpired grants, oldest first.
func (c *Client) FetchDiscounts(ctx context.Context, playerAddress string) ([]DiscountGrant, error) {
	if playerAddress == "" {
		return nil, errors.New(errors.ErrCodeValidation, "player address is required", nil)
	}
	var out []DiscountGrant
	path := "/api/v1/discounts?player=" + url.QueryEscape(playerAddress)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RedeemDiscount consumes a grant. Succeeds at most once per grant; the
// server's conditional update makes concurrent redemptions safe.
func (c *Client) RedeemDiscount(ctx context.Context, grantID, playerAddress string) (*Redemption, error) {
	if grantID == "" || playerAddress == "" {
		return nil, errors.New(errors.ErrCodeValidation, "grant id and player address are required", nil)
	}
	body := map[string]string{"player": playerAddress}
	var out Redemption
	path := "/api/v1/discounts/" + url.PathEscape(grantID) + "/redeem"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPlayerStats returns the per-wallet aggregate rollup.
func (c *Client) GetPlayerStats(ctx context.Context, playerAddress string) (*PlayerAggregate, error) {
	if playerAddress == "" {
		return nil, errors.New(errors.ErrCodeValidation, "player address is required", nil)
	}
	var out PlayerAggregate
	path := "/api/v1/players/" + url.PathEscape(playerAddress) + "/stats"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request and decodes the response or the error envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.New(errors.ErrCodeInternal, "failed to encode ledger request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.New(errors.ErrCodeInternal, "failed to build ledger request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.New(errors.ErrCodeTimeout, "ledger request cancelled or timed out", err)
		}
		return errors.New(errors.ErrCodeNetwork, "ledger request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.New(errors.ErrCodeNetwork, "failed to read ledger response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.New(errors.ErrCodeInternal, "failed to decode ledger response", err)
		}
		return nil
	}

	return c.classifyStatus(resp.StatusCode, raw)
}

// errorEnvelope is the ledger's error body. The server code takes priority
// over the HTTP status so a 409 can distinguish duplicate from already-used.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyStatus maps one ledger failure to a typed error. This is the only
// place ledger responses are interpreted; callers switch on the code.
func (c *Client) classifyStatus(status int, raw []byte) error {
	var envelope errorEnvelope
	_ = json.Unmarshal(raw, &envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("ledger returned status %d", status)
	}

	switch envelope.Error.Code {
	case "duplicate":
		return errors.New(errors.ErrCodeDuplicate, msg, nil)
	case "already_used":
		return errors.New(errors.ErrCodeAlreadyUsed, msg, nil)
	case "grant_expired":
		return errors.New(errors.ErrCodeGrantExpired, msg, nil)
	case "not_found":
		return errors.New(errors.ErrCodeNotFound, msg, nil)
	case "unauthorized":
		return errors.New(errors.ErrCodeAuth, msg, nil)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeAuth, msg, nil)
	case status == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, msg, nil)
	case status == http.StatusConflict:
		return errors.New(errors.ErrCodeDuplicate, msg, nil)
	case status == http.StatusGone:
		return errors.New(errors.ErrCodeGrantExpired, msg, nil)
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeRateLimit, msg, nil)
	case status >= 500:
		return errors.New(errors.ErrCodeNetwork, msg, nil).WithContext("status", status)
	default:
		return errors.New(errors.ErrCodeInternal, msg, nil).WithContext("status", status)
	}
}
