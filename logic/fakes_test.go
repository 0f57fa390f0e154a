package logic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/scinklja/vip-bot/common"
	"github.com/scinklja/vip-bot/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fake store ---

type fakeStore struct {
	mu   sync.Mutex
	recs map[int64]models.UserRecord

	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[int64]models.UserRecord)}
}

func (f *fakeStore) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeStore) Create(ctx context.Context, rec *models.UserRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if _, ok := f.recs[rec.IdentityID]; ok {
		return fmt.Errorf("duplicate identity %d", rec.IdentityID)
	}
	f.recs[rec.IdentityID] = *rec
	return nil
}

func (f *fakeStore) FindByIdentity(ctx context.Context, identityID int64) (*models.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	rec, ok := f.recs[identityID]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (f *fakeStore) FindByAddress(ctx context.Context, address string) (*models.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	for _, rec := range f.recs {
		if rec.ClaimedAddress != nil && *rec.ClaimedAddress == address {
			out := rec
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) Save(ctx context.Context, rec *models.UserRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.recs[rec.IdentityID] = *rec
	return nil
}

func (f *fakeStore) ClearClaim(ctx context.Context, identityID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[identityID]
	if !ok {
		return common.ErrNotFound
	}
	rec.ClaimedAddress = nil
	rec.DerivedAddress = nil
	rec.IsVerified = false
	rec.MeritScore = 0
	rec.LastVerifiedAt = nil
	f.recs[identityID] = rec
	return nil
}

func (f *fakeStore) ListVerified(ctx context.Context) ([]models.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserRecord
	for _, rec := range f.recs {
		if rec.IsVerified {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) VerifiedStats(ctx context.Context) (int64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	var total uint64
	for _, rec := range f.recs {
		if rec.IsVerified {
			count++
			total += rec.MeritScore
		}
	}
	return count, total, nil
}

func (f *fakeStore) MarkStaleByDerivedAddress(ctx context.Context, derived string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for id, rec := range f.recs {
		if rec.DerivedAddress != nil && *rec.DerivedAddress == derived {
			rec.LastVerifiedAt = nil
			f.recs[id] = rec
			affected++
		}
	}
	return affected, nil
}

func (f *fakeStore) get(identityID int64) (models.UserRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[identityID]
	return rec, ok
}

// --- fake oracle ---

type fakeOracle struct {
	mu         sync.Mutex
	valid      bool
	validErr   error
	merit      uint64
	meritErr   error
	meritCalls int
}

func (f *fakeOracle) DeriveAddress(address string) (string, error) {
	return "hex-" + address, nil
}

func (f *fakeOracle) ValidateSignature(address, proof, challenge string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid, f.validErr
}

func (f *fakeOracle) ComputeMerit(ctx context.Context, derived string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meritCalls++
	return f.merit, f.meritErr
}

func (f *fakeOracle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meritCalls
}

// --- fake transport ---

type sentMessage struct {
	ChatID int64
	Text   string
	ID     int64
}

type deletedMessage struct {
	ChatID    int64
	MessageID int64
}

type fakeTransport struct {
	mu        sync.Mutex
	sent      []sentMessage
	deleted   []deletedMessage
	nextID    int64
	sendErr   error
	deleteErr error
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, ID: f.nextID})
	return f.nextID, nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deletedMessage{ChatID: chatID, MessageID: messageID})
	return f.deleteErr
}

func (f *fakeTransport) sentTo(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) allSent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTransport) allDeleted() []deletedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deletedMessage(nil), f.deleted...)
}

var errBackend = errors.New("backend exploded")
