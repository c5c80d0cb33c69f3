// Package store contains GORM-backed SQLite models for the potshot client.
//
// Database Structure (database file: potshot_data.db):
//
//	wager_secrets          — secret material for unrevealed commitments,
//	                         keyed (wallet_address, tx_hash_prefix) so a
//	                         restart does not strand funds
//	reconciliation_entries — off-chain ledger writes that failed after a
//	                         confirmed on-chain outcome, kept until drained
package store

import (
	"gorm.io/gorm"
)

// Reconciliation entry kinds.
const (
	KindShot = "shot"
	KindWin  = "win"
)

// Reconciliation entry statuses.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// WagerSecret holds the secret for one outstanding commitment.
// At most one non-terminal commitment exists per wallet; older rows for a
// wallet are leftovers from expired commitments awaiting cleanup.
type WagerSecret struct {
	gorm.Model
	WalletAddress string `gorm:"index;uniqueIndex:idx_wallet_txprefix;not null"` // Checksummed wallet address
	TxHashPrefix  string `gorm:"uniqueIndex:idx_wallet_txprefix;not null"`       // First 10 hex chars of the commit tx hash
	Secret        string `gorm:"not null"`                                       // Hex-encoded 256-bit secret
	CommitTxHash  string // Full commit transaction hash
	CommitBlock   uint64 // Block height at commit confirmation
	AmountWei     string // Value transferred at commit time, decimal wei
}

// ReconciliationEntry tracks an off-chain ledger write that failed after the
// on-chain outcome was already final. The on-chain result is never unwound;
// the entry stays pending until a reconciliation pass succeeds.
type ReconciliationEntry struct {
	gorm.Model
	TxHash        string `gorm:"uniqueIndex:idx_txhash_kind;not null"` // Reveal transaction hash
	Kind          string `gorm:"uniqueIndex:idx_txhash_kind;not null"` // "shot" or "win"
	WalletAddress string `gorm:"index"`
	Payload       []byte // Raw JSON-encoded ledger payload
	Attempts      int    // Delivery attempts so far
	LastError     string `gorm:"type:text"`
	Status        string `gorm:"index;default:'pending'"` // "pending" or "synced"
}
