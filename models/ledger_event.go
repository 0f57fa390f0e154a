package models

import "time"

// LedgerEvent is a transfer observed on the ledger relay that touched
// a claimed address.
type LedgerEvent struct {
	ID        string    `gorm:"primaryKey" json:"id"` // relay event ID
	Address   string    `gorm:"index;not null" json:"address"` // derived (hex) address
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
