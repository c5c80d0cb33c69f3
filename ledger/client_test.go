package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/ledger"
)

const (
	testWallet = "0xAbC0000000000000000000000000000000000001"
	testToken  = "test-session-token"
)

func newTestClient(t *testing.T, handler http.Handler) (*ledger.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.LedgerBaseURL = server.URL

	client, err := ledger.NewClient(cfg, testToken, zerolog.Nop())
	require.NoError(t, err)
	return client, server
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": msg},
	})
}

func TestNewClient_Validation(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := ledger.NewClient(nil, testToken, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("missing base URL", func(t *testing.T) {
		cfg, err := config.LoadDefaultConfig()
		require.NoError(t, err)
		cfg.LedgerBaseURL = ""
		_, err = ledger.NewClient(cfg, testToken, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestRecordShot_Success(t *testing.T) {
	var gotAuth string
	var gotBody ledger.ShotRecord

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/shots", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(gotBody)
	}))

	shot := &ledger.ShotRecord{
		TxHash:        "0xdeadbeef",
		PlayerAddress: testWallet,
		AmountWei:     "1000000000000000",
		Won:           false,
		BlockNumber:   1234,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
	}
	out, err := client.RecordShot(context.Background(), shot)
	require.NoError(t, err)
	assert.Equal(t, shot.TxHash, out.TxHash)
	assert.Equal(t, "Bearer "+testToken, gotAuth)
	assert.Equal(t, testWallet, gotBody.PlayerAddress)
}

func TestRecordShot_TypedFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		wantCode errors.ErrorCode
	}{
		{"duplicate tx hash", http.StatusConflict, "duplicate", errors.ErrCodeDuplicate},
		{"identity mismatch", http.StatusForbidden, "unauthorized", errors.ErrCodeAuth},
		{"bare 401", http.StatusUnauthorized, "", errors.ErrCodeAuth},
		{"rate limited", http.StatusTooManyRequests, "", errors.ErrCodeRateLimit},
		{"server error", http.StatusBadGateway, "", errors.ErrCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, tt.code, tt.name)
			}))

			_, err := client.RecordShot(context.Background(), &ledger.ShotRecord{
				TxHash:        "0xdeadbeef",
				PlayerAddress: testWallet,
			})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestRecordShot_RequiresKeys(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the server")
	}))

	_, err := client.RecordShot(context.Background(), &ledger.ShotRecord{PlayerAddress: testWallet})
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestRecordWinner(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/winners", r.URL.Path)
		var win ledger.WinRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&win))
		_ = json.NewEncoder(w).Encode(win)
	}))

	win := &ledger.WinRecord{TxHash: "0xfeed", PlayerAddress: testWallet, AmountWei: "5000"}
	out, err := client.RecordWinner(context.Background(), win)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", out.TxHash)
}

func TestFetchDiscounts(t *testing.T) {
	grants := []ledger.DiscountGrant{
		{ID: "g1", Percentage: 10, ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "g2", Percentage: 25, ExpiresAt: time.Now().Add(2 * time.Hour)},
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/discounts", r.URL.Path)
		require.Equal(t, testWallet, r.URL.Query().Get("player"))
		_ = json.NewEncoder(w).Encode(grants)
	}))

	out, err := client.FetchDiscounts(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "g1", out[0].ID)
	assert.Equal(t, uint8(25), out[1].Percentage)
}

func TestRedeemDiscount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/discounts/g1/redeem", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, testWallet, body["player"])
			_ = json.NewEncoder(w).Encode(ledger.Redemption{GrantID: "g1", Percentage: 10})
		}))

		out, err := client.RedeemDiscount(context.Background(), "g1", testWallet)
		require.NoError(t, err)
		assert.Equal(t, uint8(10), out.Percentage)
	})

	tests := []struct {
		name     string
		status   int
		code     string
		wantCode errors.ErrorCode
	}{
		{"unknown grant", http.StatusNotFound, "not_found", errors.ErrCodeNotFound},
		{"already redeemed", http.StatusConflict, "already_used", errors.ErrCodeAlreadyUsed},
		{"expired grant", http.StatusGone, "grant_expired", errors.ErrCodeGrantExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, tt.code, tt.name)
			}))

			_, err := client.RedeemDiscount(context.Background(), "g1", testWallet)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestGetPlayerStats(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/players/"+testWallet+"/stats", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ledger.PlayerAggregate{
			PlayerAddress: testWallet,
			TotalShots:    7,
			TotalSpentWei: "7000",
			TotalWonWei:   "12000",
		})
	}))

	stats, err := client.GetPlayerStats(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stats.TotalShots)
	assert.Equal(t, "12000", stats.TotalWonWei)
}

func TestClient_NetworkFailure(t *testing.T) {
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	// Nothing listens here
	cfg.LedgerBaseURL = "http://127.0.0.1:1"
	cfg.LedgerTimeoutSeconds = 1

	client, err := ledger.NewClient(cfg, testToken, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.GetPlayerStats(context.Background(), testWallet)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNetwork))
}
