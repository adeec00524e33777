package store

import (
	"context"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// SetPointFilter narrows ListSetPoints. Zero values match everything.
type SetPointFilter struct {
	ReactorID  int64
	DataType   model.DataType
	ActiveOnly bool
}

func (s *gormStore) CreateSetPoint(ctx context.Context, sp *model.SetPoint) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	sp.ID = 0
	db, cancel := s.conn(ctx)
	defer cancel()
	return wrap(db, "create setpoint", db.Create(sp).Error)
}

// UpdateSetPoint replaces every mutable column of an existing setpoint.
func (s *gormStore) UpdateSetPoint(ctx context.Context, sp *model.SetPoint) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	var existing model.SetPoint
	if err := db.First(&existing, sp.ID).Error; err != nil {
		return wrap(db, "update setpoint", err)
	}
	sp.CreatedAt = existing.CreatedAt
	sp.CreatedBy = existing.CreatedBy
	return wrap(db, "update setpoint", db.Save(sp).Error)
}

func (s *gormStore) DeleteSetPoint(ctx context.Context, id int64) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	res := db.Delete(&model.SetPoint{}, id)
	if res.Error != nil {
		return wrap(db, "delete setpoint", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("setpoint %d not found", id)
	}
	return nil
}

func (s *gormStore) GetSetPoint(ctx context.Context, id int64) (*model.SetPoint, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var sp model.SetPoint
	if err := db.First(&sp, id).Error; err != nil {
		return nil, wrap(db, "get setpoint", err)
	}
	return &sp, nil
}

func (s *gormStore) ListSetPoints(ctx context.Context, f SetPointFilter) ([]model.SetPoint, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	q := db.Model(&model.SetPoint{})
	if f.ReactorID > 0 {
		q = q.Where("reactor_id = ?", f.ReactorID)
	}
	if f.DataType != "" {
		q = q.Where("data_type = ?", f.DataType)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []model.SetPoint
	err := q.Order("id").Find(&out).Error
	return out, wrap(db, "list setpoints", err)
}

// ListActive returns the active setpoints for one reactor and data type in id order.
func (s *gormStore) ListActive(ctx context.Context, reactorID int64, dt model.DataType) ([]model.SetPoint, error) {
	return s.ListSetPoints(ctx, SetPointFilter{ReactorID: reactorID, DataType: dt, ActiveOnly: true})
}
