package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/store"
)

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UnsyncedEntry is the queryable view of one reconciliation backlog row.
type UnsyncedEntry struct {
	TxHash    string    `json:"tx_hash"`
	Kind      string    `json:"kind"`
	Wallet    string    `json:"wallet"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	QueuedAt  time.Time `json:"queued_at"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleState handles GET /api/v1/state?refresh=true
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		snap, err := s.session.Refresh(r.Context())
		if err != nil {
			// A refresh failure still leaves the previous snapshot usable;
			// surface both.
			s.logger.Warn().Err(err).Msg("on-demand refresh failed")
			writeJSON(w, http.StatusOK, snap)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleDiscounts handles GET /api/v1/discounts
func (s *Server) handleDiscounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	grants, err := s.session.Discounts(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

// handleStats handles GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.session.PlayerStats(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleUnsynced handles GET /api/v1/unsynced
func (s *Server) handleUnsynced(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := s.backlog.Pending(0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read backlog"})
		return
	}

	out := make([]UnsyncedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, unsyncedView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func unsyncedView(e store.ReconciliationEntry) UnsyncedEntry {
	return UnsyncedEntry{
		TxHash:    e.TxHash,
		Kind:      e.Kind,
		Wallet:    e.WalletAddress,
		Attempts:  e.Attempts,
		LastError: e.LastError,
		QueuedAt:  e.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeLedgerError maps a classified ledger failure to an HTTP status.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch errors.Code(err) {
	case errors.ErrCodeAuth:
		status = http.StatusUnauthorized
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeValidation:
		status = http.StatusBadRequest
	case errors.ErrCodeRateLimit:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
