package ledger

import "time"

// ShotRecord is the immutable ledger entry for one resolved wager.
// Exactly one record exists per on-chain transaction hash.
type ShotRecord struct {
	TxHash          string    `json:"txHash"`
	PlayerAddress   string    `json:"playerAddress"`
	AmountWei       string    `json:"amount"`
	Won             bool      `json:"won"`
	BlockNumber     uint64    `json:"blockNumber"`
	Timestamp       time.Time `json:"timestamp"`
	CryptoType      string    `json:"cryptoType"`
	ContractAddress string    `json:"contractAddress"`
}

// WinRecord is the separate ledger fact for a winning shot, tied to the
// same transaction hash as its ShotRecord.
type WinRecord struct {
	TxHash        string    `json:"txHash"`
	PlayerAddress string    `json:"playerAddress"`
	AmountWei     string    `json:"amount"`
	BlockNumber   uint64    `json:"blockNumber"`
	Timestamp     time.Time `json:"timestamp"`
}

// PlayerAggregate is the per-wallet rollup maintained by the ledger's
// storage layer. The client only reads it.
type PlayerAggregate struct {
	PlayerAddress string    `json:"playerAddress"`
	TotalShots    uint64    `json:"totalShots"`
	TotalSpentWei string    `json:"totalSpent"`
	TotalWonWei   string    `json:"totalWon"`
	LastShotTime  time.Time `json:"lastShotTime"`
}

// DiscountGrant is a percentage reduction a player may redeem once.
// Redemption affects ledger bookkeeping only; the on-chain price is
// always the full posted price.
type DiscountGrant struct {
	ID         string    `json:"id"`
	Percentage uint8     `json:"percentage"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Used       bool      `json:"used"`
}

// Redemption is the result of consuming a discount grant.
type Redemption struct {
	GrantID    string `json:"id"`
	Percentage uint8  `json:"percentage"`
}
