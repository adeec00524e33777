package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

const (
	DefaultQueryLimit = 1000
	MaxQueryLimit     = 10000
)

// QueryFilter narrows a time-series query. Zero values mean unbounded.
type QueryFilter struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

// FieldStats summarizes one numeric column.
type FieldStats struct {
	Field string   `json:"field"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
	Count int64    `json:"count"`
}

type finder func(q *gorm.DB) ([]model.SensorRecord, error)

var finders = map[model.DataType]finder{
	model.DataTypeDilution:     find[model.DilutionData],
	model.DataTypeGas:          find[model.GasData],
	model.DataTypeLevelControl: find[model.LevelControlData],
}

func find[T any, PT interface {
	*T
	model.SensorRecord
}](q *gorm.DB) ([]model.SensorRecord, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.SensorRecord, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

func (s *gormStore) Insert(ctx context.Context, rec model.SensorRecord) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	if err := db.Create(rec).Error; err != nil {
		return wrap(db, fmt.Sprintf("insert %s record", rec.Kind()), err)
	}
	return nil
}

// BulkInsert stores all records in one transaction.
func (s *gormStore) BulkInsert(ctx context.Context, recs []model.SensorRecord) error {
	if len(recs) == 0 {
		return nil
	}
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		for i, rec := range recs {
			if err := tx.Create(rec).Error; err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		return nil
	})
	return wrap(db, "bulk insert", err)
}

func (s *gormStore) scoped(db *gorm.DB, dt model.DataType, reactorID int64, f QueryFilter) *gorm.DB {
	q := db.Table(model.Describe(dt).Table).Where("reactor_id = ?", reactorID)
	if f.Start != nil {
		q = q.Where("timestamp >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("timestamp <= ?", f.End.UTC())
	}
	return q
}

// QueryByReactor returns records newest first.
func (s *gormStore) QueryByReactor(ctx context.Context, dt model.DataType, reactorID int64, f QueryFilter) ([]model.SensorRecord, error) {
	if !dt.Valid() {
		return nil, apperr.Validation(apperr.CodeUnknownDataType, "unknown data type %q", dt)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	q := s.scoped(db, dt, reactorID, f).Order("timestamp DESC").Limit(limit)
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	recs, err := finders[dt](q)
	return recs, wrap(db, fmt.Sprintf("query %s", dt), err)
}

// QueryLatest returns the newest count records, newest first.
func (s *gormStore) QueryLatest(ctx context.Context, dt model.DataType, reactorID int64, count int) ([]model.SensorRecord, error) {
	if count <= 0 {
		count = 1
	}
	return s.QueryByReactor(ctx, dt, reactorID, QueryFilter{Limit: count})
}

// DeleteBefore removes a reactor's records older than cutoff and returns how many went.
func (s *gormStore) DeleteBefore(ctx context.Context, dt model.DataType, reactorID int64, cutoff time.Time) (int64, error) {
	if !dt.Valid() {
		return 0, apperr.Validation(apperr.CodeUnknownDataType, "unknown data type %q", dt)
	}
	db, cancel := s.conn(ctx)
	defer cancel()
	res := db.Where("reactor_id = ? AND timestamp < ?", reactorID, cutoff.UTC()).Delete(model.Describe(dt).New())
	if res.Error != nil {
		return 0, wrap(db, fmt.Sprintf("delete %s", dt), res.Error)
	}
	return res.RowsAffected, nil
}

// FieldStats aggregates one whitelisted column over the filter window.
func (s *gormStore) FieldStats(ctx context.Context, dt model.DataType, reactorID int64, field string, f QueryFilter) (*FieldStats, error) {
	if !dt.Valid() {
		return nil, apperr.Validation(apperr.CodeUnknownDataType, "unknown data type %q", dt)
	}
	if !model.Describe(dt).HasField(field) {
		return nil, apperr.Validation(apperr.CodeInvalidField, "%q is not a %s field", field, dt)
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	stats := FieldStats{Field: field}
	// field is whitelisted above, so it is safe to interpolate.
	sel := fmt.Sprintf("MIN(%[1]s) AS min, MAX(%[1]s) AS max, AVG(%[1]s) AS avg, COUNT(%[1]s) AS count", field)
	if err := s.scoped(db, dt, reactorID, f).Select(sel).Scan(&stats).Error; err != nil {
		return nil, wrap(db, fmt.Sprintf("stats %s.%s", dt, field), err)
	}
	return &stats, nil
}

// ReactorIDs lists the distinct reactors that have rows of the given type.
func (s *gormStore) ReactorIDs(ctx context.Context, dt model.DataType) ([]int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var ids []int64
	err := db.Table(model.Describe(dt).Table).Distinct("reactor_id").Order("reactor_id").Pluck("reactor_id", &ids).Error
	return ids, wrap(db, fmt.Sprintf("list %s reactors", dt), err)
}
