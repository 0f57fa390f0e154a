package logic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/scinklja/vip-bot/common"
	"github.com/scinklja/vip-bot/models"
	"github.com/scinklja/vip-bot/pkg"
)

// VerificationEngine owns the per-identity state transitions:
// unverified -> verified on a passing proof, verified -> unverified on a
// failed stale re-check or a revoke. All record writes for one identity
// are serialized through a per-identity lock.
type VerificationEngine struct {
	store      UserRecordStore
	oracle     LedgerOracle
	transport  ChatTransport
	claims     *ClaimRegistry
	cleanup    *CleanupScheduler
	roomID     int64
	threshold  uint64
	staleAfter time.Duration
	log        *slog.Logger

	mu            sync.Mutex
	identityLocks map[int64]*sync.Mutex
}

func NewVerificationEngine(
	store UserRecordStore,
	oracle LedgerOracle,
	transport ChatTransport,
	claims *ClaimRegistry,
	cleanup *CleanupScheduler,
	roomID int64,
	threshold uint64,
	staleAfter time.Duration,
	log *slog.Logger,
) *VerificationEngine {
	return &VerificationEngine{
		store:         store,
		oracle:        oracle,
		transport:     transport,
		claims:        claims,
		cleanup:       cleanup,
		roomID:        roomID,
		threshold:     threshold,
		staleAfter:    staleAfter,
		log:           log,
		identityLocks: make(map[int64]*sync.Mutex),
	}
}

func (e *VerificationEngine) identityLock(identityID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.identityLocks[identityID]
	if !ok {
		l = &sync.Mutex{}
		e.identityLocks[identityID] = l
	}
	return l
}

// Challenge returns the string an identity must sign to prove address
// ownership. Binding the identity id into the challenge prevents one
// user's proof from being replayed by another.
func Challenge(identityID int64) string {
	return fmt.Sprintf("vip-bot:%d", identityID)
}

// Resolve fetches the record for an identity, creating a fresh
// unverified one on first contact. A changed display name is persisted
// best-effort.
func (e *VerificationEngine) Resolve(ctx context.Context, identityID int64, displayName string) (*models.UserRecord, bool, error) {
	rec, err := e.store.FindByIdentity(ctx, identityID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, false, err
		}
		rec = &models.UserRecord{
			IdentityID:  identityID,
			DisplayName: displayName,
		}
		if err := e.store.Create(ctx, rec); err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}

	if displayName != "" && displayName != rec.DisplayName {
		rec.DisplayName = displayName
		if err := e.store.Save(ctx, rec); err != nil {
			e.log.Debug("display name update failed", "identity", identityID, "error", err)
		}
	}
	return rec, false, nil
}

// reply sends text into the chat the command came from. Delivery
// failures are swallowed: the recipient may have blocked the bot or the
// bot may lack posting rights. Replies in group context are registered
// for delayed cleanup together with the triggering message.
func (e *VerificationEngine) reply(ctx context.Context, in Incoming, text string) {
	msgID, err := e.transport.SendMessage(ctx, in.ChatID, text)
	if err != nil {
		e.log.Debug("reply not delivered", "chat", in.ChatID, "error", err)
		return
	}
	if in.Group && e.cleanup != nil {
		e.cleanup.Schedule(in.ChatID, in.MessageID, msgID)
	}
}

// notifyPrivately sends text to the identity's one-on-one chat.
func (e *VerificationEngine) notifyPrivately(ctx context.Context, identityID int64, text string) {
	if _, err := e.transport.SendMessage(ctx, identityID, text); err != nil {
		e.log.Debug("private notice not delivered", "identity", identityID, "error", err)
	}
}

// broadcast posts text publicly to the configured room.
func (e *VerificationEngine) broadcast(ctx context.Context, text string) {
	if _, err := e.transport.SendMessage(ctx, e.roomID, text); err != nil {
		e.log.Debug("broadcast not delivered", "room", e.roomID, "error", err)
	}
}

// Help replies with the static usage text.
func (e *VerificationEngine) Help(ctx context.Context, in Incoming) {
	e.reply(ctx, in, fmt.Sprintf(
		"Only verified users may post here. Required merit: %d.\n"+
			"/verify <address> <signature> — prove address ownership; sign the text %q\n"+
			"/revoke <address> — release your claimed address\n"+
			"/merit — your last known merit score\n"+
			"/list — verified users\n"+
			"/stats — verified count and total merit",
		e.threshold, Challenge(in.SenderID)))
}

// Verify runs the full claim-and-check flow for /verify.
func (e *VerificationEngine) Verify(ctx context.Context, in Incoming, args []string) error {
	if len(args) != 2 {
		e.reply(ctx, in, "wrong argument count, usage: /verify <address> <signature>")
		return nil
	}
	address, proof := args[0], args[1]

	ok, err := e.oracle.ValidateSignature(address, proof, Challenge(in.SenderID))
	if err != nil && !errors.Is(err, common.ErrMalformedSignature) {
		return err
	}
	if err != nil || !ok {
		pkg.VerificationsRefused.Inc()
		e.reply(ctx, in, "verification failed")
		return nil
	}

	derived, err := e.oracle.DeriveAddress(address)
	if err != nil {
		pkg.VerificationsRefused.Inc()
		e.reply(ctx, in, "verification failed")
		return nil
	}

	l := e.identityLock(in.SenderID)
	l.Lock()
	defer l.Unlock()

	rec, _, err := e.Resolve(ctx, in.SenderID, in.SenderName)
	if err != nil {
		return err
	}

	if err := e.claims.Claim(ctx, rec, address, derived); err != nil {
		var conflict *ClaimConflictError
		if errors.As(err, &conflict) {
			pkg.VerificationsRefused.Inc()
			e.reply(ctx, in, fmt.Sprintf("this address is already claimed by %s", conflict.OwnerName))
			return nil
		}
		return err
	}

	merit, err := e.oracle.ComputeMerit(ctx, derived)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.MeritScore = merit
	rec.LastVerifiedAt = &now
	rec.IsVerified = merit >= e.threshold
	if err := e.store.Save(ctx, rec); err != nil {
		return err
	}

	if rec.IsVerified {
		pkg.VerificationsGranted.Inc()
		e.broadcast(ctx, fmt.Sprintf("%s is now verified with merit %d", rec.DisplayName, merit))
		if !in.Group {
			e.reply(ctx, in, fmt.Sprintf("you are verified with merit %d", merit))
		}
	} else {
		pkg.VerificationsRefused.Inc()
		e.notifyPrivately(ctx, in.SenderID,
			fmt.Sprintf("your merit %d is below the required %d", merit, e.threshold))
	}
	return nil
}

// RecheckIfStale re-evaluates a verified record whose last check is
// older than the configured interval. A fresh record is a no-op and
// costs no oracle call. Merit loss demotes the identity with a public
// notice; merit retention refreshes the check silently.
func (e *VerificationEngine) RecheckIfStale(ctx context.Context, rec *models.UserRecord, now time.Time) error {
	if !rec.IsVerified || rec.DerivedAddress == nil {
		return nil
	}
	if rec.LastVerifiedAt != nil && now.Sub(*rec.LastVerifiedAt) <= e.staleAfter {
		return nil
	}

	l := e.identityLock(rec.IdentityID)
	l.Lock()
	defer l.Unlock()

	// Re-read under the lock: a concurrent revoke or re-check may have
	// already settled this record.
	rec, err := e.store.FindByIdentity(ctx, rec.IdentityID)
	if err != nil {
		return err
	}
	if !rec.IsVerified || rec.DerivedAddress == nil {
		return nil
	}
	if rec.LastVerifiedAt != nil && now.Sub(*rec.LastVerifiedAt) <= e.staleAfter {
		return nil
	}

	merit, err := e.oracle.ComputeMerit(ctx, *rec.DerivedAddress)
	if err != nil {
		return err
	}

	rec.MeritScore = merit
	rec.LastVerifiedAt = &now
	rec.IsVerified = merit >= e.threshold
	if err := e.store.Save(ctx, rec); err != nil {
		return err
	}

	if !rec.IsVerified {
		pkg.Demotions.Inc()
		e.broadcast(ctx, fmt.Sprintf("%s lost speaking rights: merit %d is below the required %d",
			rec.DisplayName, merit, e.threshold))
	}
	return nil
}

// Revoke releases the caller's claim on an address.
func (e *VerificationEngine) Revoke(ctx context.Context, in Incoming, args []string) error {
	if len(args) != 1 {
		e.reply(ctx, in, "wrong argument count, usage: /revoke <address>")
		return nil
	}

	l := e.identityLock(in.SenderID)
	l.Lock()
	defer l.Unlock()

	err := e.claims.Revoke(ctx, in.SenderID, args[0])
	switch {
	case errors.Is(err, common.ErrNotFound):
		e.reply(ctx, in, "user not found")
	case errors.Is(err, common.ErrNotOwner):
		e.reply(ctx, in, "you do not own this address")
	case err != nil:
		return err
	default:
		e.reply(ctx, in, "claim released, speaking rights revoked")
	}
	return nil
}

// Merit replies with the caller's last persisted merit score. It never
// queries the oracle.
func (e *VerificationEngine) Merit(ctx context.Context, in Incoming) error {
	rec, err := e.store.FindByIdentity(ctx, in.SenderID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			e.reply(ctx, in, "user not found")
			return nil
		}
		return err
	}
	e.reply(ctx, in, fmt.Sprintf("your merit: %d", rec.MeritScore))
	return nil
}

// List replies with all currently verified identities.
func (e *VerificationEngine) List(ctx context.Context, in Incoming) error {
	recs, err := e.store.ListVerified(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		e.reply(ctx, in, "no verified users yet")
		return nil
	}
	var b strings.Builder
	b.WriteString("verified users:\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "- %s (merit %d)\n", r.DisplayName, r.MeritScore)
	}
	e.reply(ctx, in, strings.TrimRight(b.String(), "\n"))
	return nil
}

// Stats replies with the verified count and total merit.
func (e *VerificationEngine) Stats(ctx context.Context, in Incoming) error {
	count, total, err := e.store.VerifiedStats(ctx)
	if err != nil {
		return err
	}
	e.reply(ctx, in, fmt.Sprintf("verified users: %d, total merit: %d", count, total))
	return nil
}
