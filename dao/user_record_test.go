package dao

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scinklja/vip-bot/common"
	"github.com/scinklja/vip-bot/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserRecord{}, &models.LedgerEvent{}))
	return db
}

func strPtr(s string) *string { return &s }

func TestUserRecordCreateAndFind(t *testing.T) {
	d := NewUserRecordDAO(newTestDB(t))
	ctx := context.Background()

	rec := &models.UserRecord{IdentityID: 1, DisplayName: "@a"}
	require.NoError(t, d.Create(ctx, rec))

	found, err := d.FindByIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "@a", found.DisplayName)
	assert.False(t, found.IsVerified)
	assert.Nil(t, found.ClaimedAddress)

	_, err = d.FindByIdentity(ctx, 2)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUserRecordFindByAddress(t *testing.T) {
	d := NewUserRecordDAO(newTestDB(t))
	ctx := context.Background()

	rec := &models.UserRecord{
		IdentityID:     1,
		ClaimedAddress: strPtr("addr"),
		DerivedAddress: strPtr("hex-addr"),
	}
	require.NoError(t, d.Create(ctx, rec))

	found, err := d.FindByAddress(ctx, "addr")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.IdentityID)

	_, err = d.FindByAddress(ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUserRecordClaimedAddressUnique(t *testing.T) {
	d := NewUserRecordDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, d.Create(ctx, &models.UserRecord{IdentityID: 1, ClaimedAddress: strPtr("addr")}))
	err := d.Create(ctx, &models.UserRecord{IdentityID: 2, ClaimedAddress: strPtr("addr")})
	assert.Error(t, err, "the unique index must reject a second claim")
}

func TestUserRecordClearClaim(t *testing.T) {
	d := NewUserRecordDAO(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	rec := &models.UserRecord{
		IdentityID:     1,
		ClaimedAddress: strPtr("addr"),
		DerivedAddress: strPtr("hex-addr"),
		MeritScore:     42000,
		IsVerified:     true,
		LastVerifiedAt: &now,
	}
	require.NoError(t, d.Create(ctx, rec))
	require.NoError(t, d.ClearClaim(ctx, 1))

	found, err := d.FindByIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, found.ClaimedAddress)
	assert.Nil(t, found.DerivedAddress)
	assert.False(t, found.IsVerified)
	assert.Zero(t, found.MeritScore)
	assert.Nil(t, found.LastVerifiedAt)
}

func TestUserRecordListVerifiedAndStats(t *testing.T) {
	d := NewUserRecordDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, d.Create(ctx, &models.UserRecord{IdentityID: 1, IsVerified: true, MeritScore: 40000}))
	require.NoError(t, d.Create(ctx, &models.UserRecord{IdentityID: 2, IsVerified: true, MeritScore: 30000}))
	require.NoError(t, d.Create(ctx, &models.UserRecord{IdentityID: 3, IsVerified: false, MeritScore: 100}))

	verified, err := d.ListVerified(ctx)
	require.NoError(t, err)
	require.Len(t, verified, 2)
	assert.Equal(t, int64(1), verified[0].IdentityID, "ordered by merit descending")

	count, total, err := d.VerifiedStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, uint64(70000), total)
}

func TestUserRecordMarkStaleByDerivedAddress(t *testing.T) {
	d := NewUserRecordDAO(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, d.Create(ctx, &models.UserRecord{
		IdentityID:     1,
		ClaimedAddress: strPtr("addr"),
		DerivedAddress: strPtr("hex-addr"),
		IsVerified:     true,
		LastVerifiedAt: &now,
	}))

	affected, err := d.MarkStaleByDerivedAddress(ctx, "hex-addr")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	found, err := d.FindByIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, found.LastVerifiedAt)
	assert.True(t, found.IsVerified, "staleness marking does not demote")

	affected, err = d.MarkStaleByDerivedAddress(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, affected)
}
