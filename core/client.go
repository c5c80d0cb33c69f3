// Package core wires the client's components together and runs them: chain
// adapter, stores, ledger recorder, wager engine, session orchestrator,
// query server and background jobs.
package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/api"
	"github.com/potshotlabs/potshot-client/cache"
	"github.com/potshotlabs/potshot-client/chain"
	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/cron"
	"github.com/potshotlabs/potshot-client/db"
	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/session"
	"github.com/potshotlabs/potshot-client/store"
	"github.com/potshotlabs/potshot-client/wager"
)

// Env vars carrying the secrets that never live in the config file.
const (
	envWalletKey   = "POTSHOT_WALLET_KEY"
	envLedgerToken = "POTSHOT_LEDGER_TOKEN"
)

const dataFileName = "potshot_data.db"

// Client is the assembled potshot node client.
type Client struct {
	cfg    *config.Config
	logger zerolog.Logger

	database     *db.DB
	orchestrator *session.Orchestrator
	apiServer    *api.Server
	refreshJob   *cron.RefreshJob
	reconcileJob *cron.ReconcileJob
}

// NewClient wires every component from config and environment.
func NewClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	keyHex := os.Getenv(envWalletKey)
	if keyHex == "" {
		return nil, fmt.Errorf("%s is required", envWalletKey)
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet key: %w", err)
	}

	backend, err := chain.Dial(ctx, cfg.ChainRPCURL, cfg.ChainID)
	if err != nil {
		return nil, err
	}

	database, err := db.OpenFileDB(cfg.NodeHome, dataFileName, true)
	if err != nil {
		return nil, err
	}

	resCache := cache.New(time.Duration(cfg.CacheTTLMillis)*time.Millisecond, logger)
	chainClient, err := chain.NewClient(cfg, backend, key, resCache, logger)
	if err != nil {
		return nil, err
	}

	ledgerClient, err := ledger.NewClient(cfg, os.Getenv(envLedgerToken), logger)
	if err != nil {
		return nil, err
	}

	secrets := store.NewSecretStore(database.Client())
	backlog := store.NewBacklog(database.Client())
	recorder := ledger.NewRecorder(ledgerClient, backlog, logger)

	engine := wager.NewEngine(chainClient, recorder, ledgerClient, secrets, cfg, logger)
	sweeper := wager.NewSweeper(engine, logger)
	orchestrator := session.New(engine, sweeper, chainClient, ledgerClient, recorder, cfg, logger)

	return &Client{
		cfg:          cfg,
		logger:       logger.With().Str("component", "core").Logger(),
		database:     database,
		orchestrator: orchestrator,
		apiServer:    api.NewServer(orchestrator, backlog, cfg.QueryServerPort, logger),
		refreshJob: cron.NewRefreshJob(
			orchestrator,
			time.Duration(cfg.RefreshIntervalSeconds)*time.Second,
			0,
			logger,
		),
		reconcileJob: cron.NewReconcileJob(
			recorder,
			time.Duration(cfg.ReconcileIntervalSeconds)*time.Second,
			0,
			0,
			logger,
		),
	}, nil
}

// Orchestrator exposes the session for embedding callers.
func (c *Client) Orchestrator() *session.Orchestrator {
	return c.orchestrator
}

// Start runs the query server and background jobs until ctx is canceled.
func (c *Client) Start(ctx context.Context) error {
	if err := c.apiServer.Start(); err != nil {
		return err
	}
	if err := c.refreshJob.Start(ctx); err != nil {
		return err
	}
	if err := c.reconcileJob.Start(ctx); err != nil {
		return err
	}

	c.logger.Info().
		Int("query_port", c.cfg.QueryServerPort).
		Str("wallet", c.orchestrator.Snapshot().Wallet).
		Msg("potshot client started")

	<-ctx.Done()
	return c.Stop()
}

// Stop shuts everything down in reverse order.
func (c *Client) Stop() error {
	c.reconcileJob.Stop()
	c.refreshJob.Stop()

	if err := c.apiServer.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("query server shutdown error")
	}
	if err := c.database.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("database close error")
	}

	c.logger.Info().Msg("potshot client stopped")
	return nil
}
