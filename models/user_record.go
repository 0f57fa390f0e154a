package models

import "time"

// UserRecord tracks one chat identity and its current speaking rights.
//
// ClaimedAddress and DerivedAddress are set together or not at all:
// ClaimedAddress is the base58 public key the user proved ownership of,
// DerivedAddress is its hex form used for ledger lookups. At most one
// record holds a given claimed address (unique index, additionally
// serialized by the claim registry).
type UserRecord struct {
	IdentityID     int64      `gorm:"primaryKey;autoIncrement:false" json:"identity_id"` // platform user id
	DisplayName    string     `json:"display_name"`
	ClaimedAddress *string    `gorm:"uniqueIndex" json:"claimed_address"`
	DerivedAddress *string    `gorm:"index" json:"derived_address"`
	MeritScore     uint64     `gorm:"default:0" json:"merit_score"`
	IsVerified     bool       `gorm:"default:false;index" json:"is_verified"`
	LastVerifiedAt *time.Time `json:"last_verified_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
