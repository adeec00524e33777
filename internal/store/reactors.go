package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// ReactorName returns the stored name, or "Reactor <id>" when no row exists.
func (s *gormStore) ReactorName(ctx context.Context, id int64) (string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var r model.Reactor
	err := db.Select("name").First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && r.Name == "") {
		return model.DefaultReactorName(id), nil
	}
	if err != nil {
		return model.DefaultReactorName(id), wrap(db, "reactor name", err)
	}
	return r.Name, nil
}

func (s *gormStore) ListReactors(ctx context.Context) ([]model.Reactor, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var out []model.Reactor
	err := db.Order("id").Find(&out).Error
	return out, wrap(db, "list reactors", err)
}

// UpsertReactor inserts or updates a reactor by id.
func (s *gormStore) UpsertReactor(ctx context.Context, r *model.Reactor) error {
	if r.ID <= 0 {
		return apperr.Validation(apperr.CodeInvalidField, "reactor_id must be positive")
	}
	if r.Name == "" {
		r.Name = model.DefaultReactorName(r.ID)
	}
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "location", "is_active", "updated_at"}),
	}).Create(r).Error
	return wrap(db, "upsert reactor", err)
}
