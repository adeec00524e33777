package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bioreactor-monitor/internal/model"
)

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	ReactorID    int64
	Acknowledged *bool
	Since        *time.Time
	Limit        int
}

// RecordAlerts stores drafts in one transaction and returns them with ids assigned.
func (s *gormStore) RecordAlerts(ctx context.Context, drafts []model.Alert) ([]model.Alert, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	alerts := make([]model.Alert, len(drafts))
	copy(alerts, drafts)
	for i := range alerts {
		alerts[i].ID = 0
		alerts[i].Acknowledged = false
		alerts[i].AcknowledgedBy = nil
		alerts[i].AcknowledgedAt = nil
	}

	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&alerts).Error
	})
	if err != nil {
		return nil, wrap(db, "record alerts", err)
	}
	return alerts, nil
}

// Acknowledge marks the given alerts acknowledged by user. Already acknowledged alerts keep
// their original acknowledger and time. Unknown ids are ignored. The result counts the ids
// that exist, all of which are acknowledged afterwards.
func (s *gormStore) Acknowledge(ctx context.Context, ids []int64, user string) (int64, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	db, cancel := s.conn(ctx)
	defer cancel()
	var count int64
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Alert{}).
			Where("id IN ? AND acknowledged = ?", ids, false).
			Updates(map[string]any{
				"acknowledged":    true,
				"acknowledged_by": user,
				"acknowledged_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Alert{}).Where("id IN ?", ids).Count(&count).Error
	})
	if err != nil {
		return 0, wrap(db, "acknowledge alerts", err)
	}
	return count, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ListAlerts returns alerts newest first.
func (s *gormStore) ListAlerts(ctx context.Context, f AlertFilter) ([]model.Alert, error) {
	limit := f.Limit
	if limit <= 0 || limit > MaxQueryLimit {
		limit = 100
	}
	db, cancel := s.conn(ctx)
	defer cancel()
	q := db.Model(&model.Alert{})
	if f.ReactorID > 0 {
		q = q.Where("reactor_id = ?", f.ReactorID)
	}
	if f.Acknowledged != nil {
		q = q.Where("acknowledged = ?", *f.Acknowledged)
	}
	if f.Since != nil {
		q = q.Where("record_time >= ?", f.Since.UTC())
	}
	var out []model.Alert
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, wrap(db, "list alerts", err)
}

func (s *gormStore) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var a model.Alert
	if err := db.First(&a, id).Error; err != nil {
		return nil, wrap(db, "get alert", err)
	}
	return &a, nil
}
