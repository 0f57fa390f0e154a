package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/scinklja/vip-bot/common"
	"github.com/scinklja/vip-bot/models"
)

// UserRecordDAO handles user record database operations
type UserRecordDAO struct {
	db *gorm.DB
}

func NewUserRecordDAO(db *gorm.DB) *UserRecordDAO {
	return &UserRecordDAO{db: db}
}

// Create inserts a new record.
func (d *UserRecordDAO) Create(ctx context.Context, rec *models.UserRecord) error {
	return d.db.WithContext(ctx).Create(rec).Error
}

// FindByIdentity retrieves a record by platform user id.
func (d *UserRecordDAO) FindByIdentity(ctx context.Context, identityID int64) (*models.UserRecord, error) {
	var rec models.UserRecord
	err := d.db.WithContext(ctx).Where("identity_id = ?", identityID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindByAddress retrieves the record currently claiming the given address.
func (d *UserRecordDAO) FindByAddress(ctx context.Context, address string) (*models.UserRecord, error) {
	var rec models.UserRecord
	err := d.db.WithContext(ctx).Where("claimed_address = ?", address).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Save persists the full record.
func (d *UserRecordDAO) Save(ctx context.Context, rec *models.UserRecord) error {
	return d.db.WithContext(ctx).Save(rec).Error
}

// ClearClaim removes the claim and all derived state from a record.
// The record itself is kept so the address can be reassigned later.
func (d *UserRecordDAO) ClearClaim(ctx context.Context, identityID int64) error {
	return d.db.WithContext(ctx).Model(&models.UserRecord{}).
		Where("identity_id = ?", identityID).
		Updates(map[string]interface{}{
			"claimed_address":  nil,
			"derived_address":  nil,
			"is_verified":      false,
			"merit_score":      0,
			"last_verified_at": nil,
		}).Error
}

// ListVerified returns all records that currently hold speaking rights.
func (d *UserRecordDAO) ListVerified(ctx context.Context) ([]models.UserRecord, error) {
	var recs []models.UserRecord
	if err := d.db.WithContext(ctx).
		Where("is_verified = ?", true).
		Order("merit_score DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// VerifiedStats returns the count of verified records and the sum of
// their merit scores.
func (d *UserRecordDAO) VerifiedStats(ctx context.Context) (int64, uint64, error) {
	var out struct {
		Count int64
		Total uint64
	}
	err := d.db.WithContext(ctx).Model(&models.UserRecord{}).
		Select("COUNT(*) AS count, COALESCE(SUM(merit_score), 0) AS total").
		Where("is_verified = ?", true).
		Scan(&out).Error
	if err != nil {
		return 0, 0, err
	}
	return out.Count, out.Total, nil
}

// MarkStaleByDerivedAddress clears last_verified_at on records claiming
// the given derived address, forcing a merit re-check on their next
// message. Returns the number of affected records.
func (d *UserRecordDAO) MarkStaleByDerivedAddress(ctx context.Context, derived string) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.UserRecord{}).
		Where("derived_address = ?", derived).
		Update("last_verified_at", nil)
	return res.RowsAffected, res.Error
}
