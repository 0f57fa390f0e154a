// Package logic implements the verification and moderation engine:
// binding chat identities to ledger addresses, gating speaking rights
// on a merit threshold, and moderating unverified speech.
package logic

import (
	"context"

	"github.com/scinklja/vip-bot/models"
)

// UserRecordStore is the persistent keyed store of per-user state.
type UserRecordStore interface {
	Create(ctx context.Context, rec *models.UserRecord) error
	FindByIdentity(ctx context.Context, identityID int64) (*models.UserRecord, error)
	FindByAddress(ctx context.Context, address string) (*models.UserRecord, error)
	Save(ctx context.Context, rec *models.UserRecord) error
	ClearClaim(ctx context.Context, identityID int64) error
	ListVerified(ctx context.Context) ([]models.UserRecord, error)
	VerifiedStats(ctx context.Context) (int64, uint64, error)
	MarkStaleByDerivedAddress(ctx context.Context, derived string) (int64, error)
}

// LedgerOracle validates ownership proofs and computes merit scores.
type LedgerOracle interface {
	DeriveAddress(address string) (string, error)
	ValidateSignature(address, proof, challenge string) (bool, error)
	ComputeMerit(ctx context.Context, derived string) (uint64, error)
}

// ChatTransport sends and deletes platform messages.
type ChatTransport interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Incoming describes the inbound message that triggered an operation.
type Incoming struct {
	ChatID     int64
	MessageID  int64
	SenderID   int64
	SenderName string
	Group      bool // true in room contexts, false in one-on-one chats
	Text       string
}
