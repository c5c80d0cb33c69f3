// Package api serves the query surface the UI layer reads: the session
// snapshot, discounts, player stats, the reconciliation backlog and
// prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/session"
	"github.com/potshotlabs/potshot-client/store"
)

// Session is the orchestrator surface the query server reads.
type Session interface {
	Snapshot() session.Snapshot
	Refresh(ctx context.Context) (session.Snapshot, error)
	Discounts(ctx context.Context) ([]ledger.DiscountGrant, error)
	PlayerStats(ctx context.Context) (*ledger.PlayerAggregate, error)
}

// Server provides HTTP endpoints over one player session.
type Server struct {
	session Session
	backlog *store.Backlog
	logger  zerolog.Logger
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(sess Session, backlog *store.Backlog, port int, logger zerolog.Logger) *Server {
	s := &Server{
		session: sess,
		backlog: backlog,
		logger:  logger.With().Str("component", "query_server").Logger(),
	}

	mux := s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("query server is nil")
	}

	// Channel to signal server startup result
	startupChan := make(chan error, 1)

	go func() {
		// Create a test listener to verify the port is available
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.logger.Info().Msg("Query server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("Query server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("Query server error")
		}
	}()

	// Wait for startup result with timeout
	select {
	case err := <-startupChan:
		if err != nil {
			return err
		}
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
