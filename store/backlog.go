package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Backlog is the queryable queue of ledger writes that failed after a
// confirmed on-chain outcome. Entries are drained by the reconciliation job;
// the duplicate-tolerant ledger makes redelivery safe.
type Backlog struct {
	db *gorm.DB
}

// NewBacklog creates a Backlog backed by the given gorm client.
func NewBacklog(db *gorm.DB) *Backlog {
	return &Backlog{db: db}
}

// Enqueue records a failed ledger write. Re-enqueueing the same
// (txHash, kind) keeps the original row and refreshes the last error.
func (b *Backlog) Enqueue(entry *ReconciliationEntry) error {
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_error", "updated_at"}),
	}).Create(entry).Error
}

// Pending returns up to limit pending entries, oldest first.
func (b *Backlog) Pending(limit int) ([]ReconciliationEntry, error) {
	var entries []ReconciliationEntry
	q := b.db.Where("status = ?", StatusPending).Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// CountPending returns the number of unsynced entries, optionally filtered
// by wallet (empty wallet counts all).
func (b *Backlog) CountPending(walletAddress string) (int64, error) {
	var count int64
	q := b.db.Model(&ReconciliationEntry{}).Where("status = ?", StatusPending)
	if walletAddress != "" {
		q = q.Where("wallet_address = ?", walletAddress)
	}
	err := q.Count(&count).Error
	return count, err
}

// MarkSynced flags an entry as delivered.
func (b *Backlog) MarkSynced(id uint) error {
	res := b.db.Model(&ReconciliationEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": StatusSynced, "last_error": ""})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAttempt increments the attempt counter and records the delivery error.
func (b *Backlog) MarkAttempt(id uint, deliveryErr error) error {
	msg := ""
	if deliveryErr != nil {
		msg = deliveryErr.Error()
	}
	return b.db.Model(&ReconciliationEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}

// Get returns an entry by (txHash, kind), or nil when absent.
func (b *Backlog) Get(txHash, kind string) (*ReconciliationEntry, error) {
	var entry ReconciliationEntry
	err := b.db.Where("tx_hash = ? AND kind = ?", txHash, kind).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
