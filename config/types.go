package config

// Config holds all settings for the potshot client.
type Config struct {
	// Log Config
	LogLevel  int    `json:"log_level"`  // e.g., 0 = debug, 1 = info, etc.
	LogFormat string `json:"log_format"` // "json" or "console"

	// Node Config
	NodeHome string `json:"node_home"` // Client home directory (default: ~/.potshot)

	// Chain configuration
	ChainRPCURL     string `json:"chain_rpc_url"`    // EVM node RPC endpoint
	ChainID         int64  `json:"chain_id"`         // Expected numeric chain ID
	ContractAddress string `json:"contract_address"` // Shot game contract address

	// Wager protocol constants (must match the deployed contract)
	RevealDelayBlocks  uint64 `json:"reveal_delay_blocks"`  // Blocks after commit before reveal opens (default: 1)
	RevealWindowBlocks uint64 `json:"reveal_window_blocks"` // Blocks after commit until the commitment expires (default: 256)

	// Gas policy
	DefaultGasLimit            uint64 `json:"default_gas_limit"`            // Fallback when estimation fails non-fatally (default: 500000)
	ConfirmationTimeoutSeconds int    `json:"confirmation_timeout_seconds"` // Max wait for a tx receipt (default: 120)

	// Resilience cache and retry configuration
	CacheTTLMillis       int     `json:"cache_ttl_millis"`        // Freshness window for cached reads (default: 30000)
	MaxRetries           int     `json:"max_retries"`             // Total read attempts (default: 3)
	RetryBaseDelayMillis int     `json:"retry_base_delay_millis"` // First backoff delay (default: 1000)
	RetryBackoffFactor   float64 `json:"retry_backoff_factor"`    // Backoff multiplier (default: 2.0)

	// Ledger configuration
	LedgerBaseURL        string `json:"ledger_base_url"`        // Off-chain ledger API base URL
	LedgerTimeoutSeconds int    `json:"ledger_timeout_seconds"` // Per-request timeout (default: 10)

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for HTTP query server (default: 8080)

	// Background job configuration
	RefreshIntervalSeconds      int `json:"refresh_interval_seconds"`       // Periodic session refresh (default: 30)
	RefreshInterCallDelayMillis int `json:"refresh_intercall_delay_millis"` // Delay between sequential reads in one refresh (default: 200)
	ReconcileIntervalSeconds    int `json:"reconcile_interval_seconds"`     // Ledger backlog drain interval (default: 60)
}
