package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/scinklja/vip-bot/common"
	"github.com/scinklja/vip-bot/models"
)

// ClaimConflictError reports that an address is already owned by another
// identity. Matches common.ErrClaimConflict under errors.Is.
type ClaimConflictError struct {
	OwnerID   int64
	OwnerName string
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("address already claimed by %s (%d)", e.OwnerName, e.OwnerID)
}

func (e *ClaimConflictError) Is(target error) bool {
	return target == common.ErrClaimConflict
}

// ClaimRegistry enforces that a ledger address belongs to at most one
// identity at a time. The lookup-then-write sequence is serialized per
// address so two concurrent claims cannot both succeed; the unique
// index on claimed_address backs this up at the store level.
type ClaimRegistry struct {
	store UserRecordStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewClaimRegistry(store UserRecordStore) *ClaimRegistry {
	return &ClaimRegistry{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *ClaimRegistry) addressLock(address string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[address]
	if !ok {
		l = &sync.Mutex{}
		r.locks[address] = l
	}
	return l
}

// Claim writes address ownership onto rec, provided no other identity
// holds it. On conflict it returns a ClaimConflictError naming the
// current owner and leaves rec untouched.
func (r *ClaimRegistry) Claim(ctx context.Context, rec *models.UserRecord, address, derived string) error {
	l := r.addressLock(address)
	l.Lock()
	defer l.Unlock()

	owner, err := r.store.FindByAddress(ctx, address)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if owner != nil && owner.IdentityID != rec.IdentityID {
		return &ClaimConflictError{OwnerID: owner.IdentityID, OwnerName: owner.DisplayName}
	}

	rec.ClaimedAddress = &address
	rec.DerivedAddress = &derived
	return r.store.Save(ctx, rec)
}

// Revoke clears the claim on the caller's record once ownership is
// confirmed. Fails with common.ErrNotFound when the identity has no
// record, and common.ErrNotOwner when the given address does not match
// the record's current claim.
func (r *ClaimRegistry) Revoke(ctx context.Context, identityID int64, address string) error {
	l := r.addressLock(address)
	l.Lock()
	defer l.Unlock()

	rec, err := r.store.FindByIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if rec.ClaimedAddress == nil || *rec.ClaimedAddress != address {
		return common.ErrNotOwner
	}
	return r.store.ClearClaim(ctx, identityID)
}
