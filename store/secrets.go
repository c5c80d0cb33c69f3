package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TxHashPrefixLen is how many characters of the commit tx hash form the
// storage key, "0x" included.
const TxHashPrefixLen = 10

// PrefixOf returns the storage key prefix for a full transaction hash.
func PrefixOf(txHash string) string {
	if len(txHash) <= TxHashPrefixLen {
		return txHash
	}
	return txHash[:TxHashPrefixLen]
}

// SecretStore persists commitment secrets keyed (wallet, txHashPrefix).
type SecretStore struct {
	db *gorm.DB
}

// NewSecretStore creates a SecretStore backed by the given gorm client.
func NewSecretStore(db *gorm.DB) *SecretStore {
	return &SecretStore{db: db}
}

// Save upserts the secret for (wallet, tx hash prefix). Saving again for the
// same key overwrites, which only happens when a commit is re-attempted after
// the previous attempt never reached the chain.
func (s *SecretStore) Save(secret *WagerSecret) error {
	if secret.WalletAddress == "" || secret.TxHashPrefix == "" {
		return fmt.Errorf("wallet address and tx hash prefix are required")
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}, {Name: "tx_hash_prefix"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"secret", "commit_tx_hash", "commit_block", "amount_wei", "updated_at",
		}),
	}).Create(secret).Error
}

// Get returns the secret stored for (wallet, tx hash prefix), or nil when absent.
func (s *SecretStore) Get(walletAddress, txHashPrefix string) (*WagerSecret, error) {
	var rec WagerSecret
	err := s.db.
		Where("wallet_address = ? AND tx_hash_prefix = ?", walletAddress, txHashPrefix).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByWallet returns all stored secrets for a wallet, oldest first.
// This is the discovery index used after a restart and by cleanup.
func (s *SecretStore) ListByWallet(walletAddress string) ([]WagerSecret, error) {
	var recs []WagerSecret
	err := s.db.
		Where("wallet_address = ?", walletAddress).
		Order("created_at asc").
		Find(&recs).Error
	return recs, err
}

// Delete removes the secret for (wallet, tx hash prefix). Called once the
// wager is resolved or the commitment was cleaned up on-chain.
func (s *SecretStore) Delete(walletAddress, txHashPrefix string) error {
	return s.db.
		Where("wallet_address = ? AND tx_hash_prefix = ?", walletAddress, txHashPrefix).
		Delete(&WagerSecret{}).Error
}

// DeleteAllForWallet drops every stored secret for a wallet. Used on
// account switch after confirming no pending commitment remains.
func (s *SecretStore) DeleteAllForWallet(walletAddress string) error {
	return s.db.
		Where("wallet_address = ?", walletAddress).
		Delete(&WagerSecret{}).Error
}
