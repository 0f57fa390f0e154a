package logic

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scinklja/vip-bot/models"
	"github.com/scinklja/vip-bot/pkg"
)

type fakeEventStore struct {
	mu     sync.Mutex
	events map[string]models.LedgerEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[string]models.LedgerEvent)}
}

func (f *fakeEventStore) SaveEvent(ctx context.Context, event *models.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[event.ID]; ok {
		return fmt.Errorf("duplicate event %s", event.ID)
	}
	f.events[event.ID] = *event
	return nil
}

func (f *fakeEventStore) ListEvents(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEvent
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventStore) LatestCreatedAt(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest int64
	for _, e := range f.events {
		if ts := e.CreatedAt.Unix(); ts > latest {
			latest = ts
		}
	}
	return latest, nil
}

func TestTransferEventMarksClaimStale(t *testing.T) {
	store := newFakeStore()
	events := newFakeEventStore()
	l := NewLedgerEventLogic(store, events, nil, testLogger())
	ctx := context.Background()

	derived := "hex-addr"
	now := time.Now()
	rec := &models.UserRecord{
		IdentityID:     1,
		DerivedAddress: &derived,
		IsVerified:     true,
		LastVerifiedAt: &now,
	}
	require.NoError(t, store.Create(ctx, rec))

	l.apply(ctx, pkg.Transfer{EventID: "ev1", Address: derived, Amount: -500, CreatedAt: now})

	saved, _ := store.get(1)
	assert.Nil(t, saved.LastVerifiedAt, "a transfer forces a re-check on next traffic")
	assert.True(t, saved.IsVerified, "the feed never demotes by itself")

	stored, err := events.ListEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(-500), stored[0].Amount)
}

func TestDuplicateTransferEventIsIgnored(t *testing.T) {
	store := newFakeStore()
	events := newFakeEventStore()
	l := NewLedgerEventLogic(store, events, nil, testLogger())
	ctx := context.Background()

	derived := "hex-addr"
	now := time.Now()
	rec := &models.UserRecord{IdentityID: 1, DerivedAddress: &derived, IsVerified: true}
	require.NoError(t, store.Create(ctx, rec))

	transfer := pkg.Transfer{EventID: "ev1", Address: derived, Amount: 10, CreatedAt: now}
	l.apply(ctx, transfer)

	// re-mark the record verified, then replay the same event
	fresh := time.Now()
	saved, _ := store.get(1)
	saved.LastVerifiedAt = &fresh
	require.NoError(t, store.Save(ctx, &saved))

	l.apply(ctx, transfer)

	after, _ := store.get(1)
	assert.NotNil(t, after.LastVerifiedAt, "replayed event must not touch records again")
}

func TestTransferEventForUnclaimedAddress(t *testing.T) {
	store := newFakeStore()
	events := newFakeEventStore()
	l := NewLedgerEventLogic(store, events, nil, testLogger())

	l.apply(context.Background(), pkg.Transfer{EventID: "ev1", Address: "nobody", Amount: 10, CreatedAt: time.Now()})

	stored, err := events.ListEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "events are recorded even when no claim is affected")
}
