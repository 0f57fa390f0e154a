package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/scinklja/vip-bot/models"
)

// LedgerEventDAO handles ledger event storage
type LedgerEventDAO struct {
	db *gorm.DB
}

func NewLedgerEventDAO(db *gorm.DB) *LedgerEventDAO {
	return &LedgerEventDAO{db: db}
}

func (d *LedgerEventDAO) SaveEvent(ctx context.Context, event *models.LedgerEvent) error {
	return d.db.WithContext(ctx).Create(event).Error
}

func (d *LedgerEventDAO) ListEvents(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	q := d.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// LatestCreatedAt retrieves the latest created_at timestamp from stored
// events, or 0 when none exist yet.
func (d *LedgerEventDAO) LatestCreatedAt(ctx context.Context) (int64, error) {
	var latest models.LedgerEvent
	err := d.db.WithContext(ctx).Order("created_at DESC").First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return latest.CreatedAt.Unix(), nil
}
