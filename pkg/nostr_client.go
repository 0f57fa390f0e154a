package pkg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// TransferEventKind is the relay event kind carrying ledger transfers.
const TransferEventKind = 1573

// TransferPayload is the content of a ledger transfer event.
type TransferPayload struct {
	Address string `json:"address"` // derived (hex) address
	Amount  int64  `json:"amount"`
}

type ledgerMessage struct {
	Transfer *TransferPayload `json:"Transfer,omitempty"`
}

// Transfer is one decoded transfer with its relay metadata.
type Transfer struct {
	EventID   string
	Address   string
	Amount    int64
	CreatedAt time.Time
}

// NostrClient subscribes to ledger transfer events on a relay.
type NostrClient struct {
	relay   *nostr.Relay
	session string
	log     *slog.Logger
}

func NewNostrClient(ctx context.Context, relayURL, session string, log *slog.Logger) (*NostrClient, error) {
	relay, err := nostr.RelayConnect(ctx, relayURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	return &NostrClient{relay: relay, session: session, log: log}, nil
}

func (c *NostrClient) filters(since nostr.Timestamp) nostr.Filters {
	return nostr.Filters{{
		Kinds: []int{TransferEventKind},
		Since: &since,
		Tags: nostr.TagMap{
			"s": []string{c.session},
		},
	}}
}

func decodeTransfer(ev *nostr.Event) (*Transfer, bool) {
	var msg ledgerMessage
	if err := json.Unmarshal([]byte(ev.Content), &msg); err != nil || msg.Transfer == nil {
		return nil, false
	}
	return &Transfer{
		EventID:   ev.ID,
		Address:   msg.Transfer.Address,
		Amount:    msg.Transfer.Amount,
		CreatedAt: time.Unix(int64(ev.CreatedAt), 0),
	}, true
}

// FetchTransfersSince replays stored transfer events from the relay
// starting at the given unix timestamp. It returns once the relay
// signals end of stored events.
func (c *NostrClient) FetchTransfersSince(ctx context.Context, sinceUnix int64) ([]Transfer, error) {
	since := nostr.Timestamp(sinceUnix)
	sub, err := c.relay.Subscribe(ctx, c.filters(since))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsub()

	var transfers []Transfer
	for {
		select {
		case <-ctx.Done():
			return transfers, ctx.Err()
		case ev, ok := <-sub.Events:
			if !ok {
				return transfers, nil
			}
			if t, ok := decodeTransfer(ev); ok {
				transfers = append(transfers, *t)
			}
		case <-sub.EndOfStoredEvents:
			return transfers, nil
		}
	}
}

// SubscribeTransfers starts a goroutine that delivers live transfer
// events to handler until ctx is cancelled.
func (c *NostrClient) SubscribeTransfers(ctx context.Context, handler func(Transfer)) error {
	since := nostr.Now()
	sub, err := c.relay.Subscribe(ctx, c.filters(since))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		defer sub.Unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events:
				if !ok {
					c.log.Info("relay event channel closed")
					return
				}
				if t, ok := decodeTransfer(ev); ok {
					handler(*t)
				}
			case <-sub.EndOfStoredEvents:
			}
		}
	}()

	return nil
}

// Close closes the relay connection.
func (c *NostrClient) Close() {
	c.relay.Close()
}
