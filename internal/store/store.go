package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// SensorStore is the persistence accessor for the per-type sensor tables.
type SensorStore interface {
	Insert(ctx context.Context, rec model.SensorRecord) error
	BulkInsert(ctx context.Context, recs []model.SensorRecord) error
	QueryByReactor(ctx context.Context, dt model.DataType, reactorID int64, f QueryFilter) ([]model.SensorRecord, error)
	QueryLatest(ctx context.Context, dt model.DataType, reactorID int64, count int) ([]model.SensorRecord, error)
	DeleteBefore(ctx context.Context, dt model.DataType, reactorID int64, cutoff time.Time) (int64, error)
	FieldStats(ctx context.Context, dt model.DataType, reactorID int64, field string, f QueryFilter) (*FieldStats, error)
	ReactorIDs(ctx context.Context, dt model.DataType) ([]int64, error)
}

// SetPointStore holds threshold definitions.
type SetPointStore interface {
	CreateSetPoint(ctx context.Context, sp *model.SetPoint) error
	UpdateSetPoint(ctx context.Context, sp *model.SetPoint) error
	DeleteSetPoint(ctx context.Context, id int64) error
	GetSetPoint(ctx context.Context, id int64) (*model.SetPoint, error)
	ListSetPoints(ctx context.Context, f SetPointFilter) ([]model.SetPoint, error)
	ListActive(ctx context.Context, reactorID int64, dt model.DataType) ([]model.SetPoint, error)
}

// AlertStore records alerts and their acknowledgement.
type AlertStore interface {
	RecordAlerts(ctx context.Context, drafts []model.Alert) ([]model.Alert, error)
	Acknowledge(ctx context.Context, ids []int64, user string) (int64, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]model.Alert, error)
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
}

// ReactorStore holds reactor metadata.
type ReactorStore interface {
	ReactorName(ctx context.Context, id int64) (string, error)
	ListReactors(ctx context.Context) ([]model.Reactor, error)
	UpsertReactor(ctx context.Context, r *model.Reactor) error
}

// PushStore holds browser push subscriptions.
type PushStore interface {
	PutPushSubscription(ctx context.Context, sub *model.PushSubscription, reactorIDs []int64) error
	GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
	PushSubscriptionsForReactor(ctx context.Context, reactorID int64) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	SensorStore
	SetPointStore
	AlertStore
	ReactorStore
	PushStore
	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormStore creates a new GORM-backed store. Every call is bounded by timeout.
func NewGormStore(db *gorm.DB, timeout time.Duration) Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &gormStore{db: db, timeout: timeout}
}

// conn returns a session bound to a context with the store's deadline.
func (s *gormStore) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// wrap converts a gorm error into the application taxonomy. A failure after the session's
// deadline passed is reported as a timeout whatever the driver returned.
func wrap(db *gorm.DB, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s: not found", op)
	}
	if ctx := db.Statement.Context; ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return apperr.Persistence(op, err)
}

func (s *gormStore) Ping(ctx context.Context) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return wrap(db, "ping", err)
	}
	return wrap(db, "ping", sqlDB.PingContext(db.Statement.Context))
}
