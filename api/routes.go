package api

import (
	"net/http"

	"github.com/potshotlabs/potshot-client/metrics"
)

// setupRoutes configures all HTTP routes for the query server.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// API v1 endpoints
	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/discounts", s.handleDiscounts)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/unsynced", s.handleUnsynced)

	// Prometheus metrics
	mux.Handle("/metrics", metrics.Handler())

	return mux
}
