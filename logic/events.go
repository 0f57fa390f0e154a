package logic

import (
	"context"
	"log/slog"
	"time"

	"github.com/scinklja/vip-bot/models"
	"github.com/scinklja/vip-bot/pkg"
)

// LedgerEventStore persists observed ledger transfers.
type LedgerEventStore interface {
	SaveEvent(ctx context.Context, event *models.LedgerEvent) error
	ListEvents(ctx context.Context, limit int) ([]models.LedgerEvent, error)
	LatestCreatedAt(ctx context.Context) (int64, error)
}

// LedgerEventLogic records transfer events from the ledger relay and
// marks affected claims stale so the next message from their owner
// re-checks merit immediately. It never demotes anyone by itself;
// demotion stays on the traffic-triggered re-check path.
type LedgerEventLogic struct {
	store  UserRecordStore
	events LedgerEventStore
	relay  *pkg.NostrClient
	log    *slog.Logger
}

func NewLedgerEventLogic(
	store UserRecordStore,
	events LedgerEventStore,
	relay *pkg.NostrClient,
	log *slog.Logger,
) *LedgerEventLogic {
	return &LedgerEventLogic{
		store:  store,
		events: events,
		relay:  relay,
		log:    log,
	}
}

func (l *LedgerEventLogic) apply(ctx context.Context, t pkg.Transfer) {
	event := &models.LedgerEvent{
		ID:        t.EventID,
		Address:   t.Address,
		Amount:    t.Amount,
		CreatedAt: t.CreatedAt,
	}
	if err := l.events.SaveEvent(ctx, event); err != nil {
		// Duplicate event ids are expected when replaying.
		l.log.Debug("transfer event not saved", "event", t.EventID, "error", err)
		return
	}

	affected, err := l.store.MarkStaleByDerivedAddress(ctx, t.Address)
	if err != nil {
		l.log.Error("failed to mark claims stale", "address", t.Address, "error", err)
		return
	}
	if affected > 0 {
		l.log.Info("transfer touched claimed address", "address", t.Address, "amount", t.Amount, "records", affected)
	}
}

// SyncEvents replays transfer events stored on the relay since the last
// one seen, so a restart does not miss transfers.
func (l *LedgerEventLogic) SyncEvents(ctx context.Context) error {
	since, err := l.events.LatestCreatedAt(ctx)
	if err != nil {
		return err
	}

	transfers, err := l.relay.FetchTransfersSince(ctx, since)
	if err != nil {
		return err
	}
	for _, t := range transfers {
		l.apply(ctx, t)
	}
	l.log.Info("ledger event sync complete", "replayed", len(transfers))
	return nil
}

// StartListener subscribes to live transfer events until ctx is
// cancelled.
func (l *LedgerEventLogic) StartListener(ctx context.Context) error {
	return l.relay.SubscribeTransfers(ctx, func(t pkg.Transfer) {
		applyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		l.apply(applyCtx, t)
	})
}
