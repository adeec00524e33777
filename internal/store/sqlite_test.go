package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/db"
	"bioreactor-monitor/internal/model"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB, 5*time.Second)
}

func fp(v float64) *float64 { return &v }

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func gas(reactorID int64, at time.Time, ph *float64) *model.GasData {
	rec := &model.GasData{PH: ph}
	rec.ReactorID = reactorID
	rec.Timestamp = at
	return rec
}

func TestSensorLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	first := gas(1, base, fp(7.0))
	require.NoError(t, s.Insert(ctx, first))
	assert.NotZero(t, first.RecordID)

	batch := []model.SensorRecord{
		gas(1, base.Add(time.Minute), fp(7.2)),
		gas(1, base.Add(2*time.Minute), nil),
		gas(2, base.Add(time.Minute), fp(6.0)),
	}
	require.NoError(t, s.BulkInsert(ctx, batch))
	for _, rec := range batch {
		assert.NotZero(t, rec.Base().RecordID)
	}

	recs, err := s.QueryByReactor(ctx, model.DataTypeGas, 1, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].Base().Timestamp.Equal(base.Add(2*time.Minute)), "newest first")
	assert.True(t, recs[2].Base().Timestamp.Equal(base))

	start := base.Add(30 * time.Second)
	windowed, err := s.QueryByReactor(ctx, model.DataTypeGas, 1, QueryFilter{Start: &start, Limit: 1})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.True(t, windowed[0].Base().Timestamp.Equal(base.Add(2*time.Minute)))

	latest, err := s.QueryLatest(ctx, model.DataTypeGas, 2, 5)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 6.0, *latest[0].(*model.GasData).PH)

	stats, err := s.FieldStats(ctx, model.DataTypeGas, 1, "ph", QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.InDelta(t, 7.0, *stats.Min, 1e-9)
	assert.InDelta(t, 7.2, *stats.Max, 1e-9)
	assert.InDelta(t, 7.1, *stats.Avg, 1e-9)

	ids, err := s.ReactorIDs(ctx, model.DataTypeGas)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	n, err := s.DeleteBefore(ctx, model.DataTypeGas, 1, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recs, err = s.QueryByReactor(ctx, model.DataTypeGas, 1, QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	other, err := s.QueryByReactor(ctx, model.DataTypeGas, 2, QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, other, 1, "other reactors untouched")
}

func TestEveryDataTypeRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	for _, dt := range model.AllDataTypes() {
		t.Run(string(dt), func(t *testing.T) {
			rec := model.Describe(dt).New()
			rec.Base().ReactorID = 4
			rec.Base().Timestamp = base
			fields := rec.Fields()
			*fields[0].Ptr = fp(1.5)
			require.NoError(t, s.Insert(ctx, rec))

			got, err := s.QueryLatest(ctx, dt, 4, 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, dt, got[0].Kind())
			v, ok := model.Value(got[0], fields[0].Column)
			require.True(t, ok)
			require.NotNil(t, v)
			assert.Equal(t, 1.5, *v)
		})
	}
}

func TestSetPointCRUD(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	sp := &model.SetPoint{ReactorID: 1, DataType: model.DataTypeGas, FieldName: "ph", MinValue: fp(6.5), MaxValue: fp(7.5), Severity: model.SeverityWarning, IsActive: true, CreatedBy: "alice"}
	require.NoError(t, s.CreateSetPoint(ctx, sp))
	require.NotZero(t, sp.ID)

	inactive := &model.SetPoint{ReactorID: 1, DataType: model.DataTypeGas, FieldName: "reactor_temp", MaxValue: fp(40), Severity: model.SeverityCritical}
	require.NoError(t, s.CreateSetPoint(ctx, inactive))

	level := &model.SetPoint{ReactorID: 1, DataType: model.DataTypeLevelControl, FieldName: "pump_rpm", MaxValue: fp(100), Severity: model.SeverityInfo, IsActive: true}
	require.NoError(t, s.CreateSetPoint(ctx, level))

	active, err := s.ListActive(ctx, 1, model.DataTypeGas)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, sp.ID, active[0].ID)

	all, err := s.ListSetPoints(ctx, SetPointFilter{ReactorID: 1})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sp.MaxValue = fp(8.0)
	sp.CreatedBy = "mallory"
	require.NoError(t, s.UpdateSetPoint(ctx, sp))
	got, err := s.GetSetPoint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, *got.MaxValue)
	assert.Equal(t, "alice", got.CreatedBy)

	missing := *sp
	missing.ID = 9999
	assert.True(t, apperr.IsKind(s.UpdateSetPoint(ctx, &missing), apperr.KindNotFound))

	bad := &model.SetPoint{ReactorID: 1, DataType: model.DataTypeGas, FieldName: "pump_rpm", MaxValue: fp(1), Severity: model.SeverityInfo}
	err = s.CreateSetPoint(ctx, bad)
	assert.Equal(t, apperr.CodeInvalidField, apperr.CodeOf(err))

	require.NoError(t, s.DeleteSetPoint(ctx, sp.ID))
	_, err = s.GetSetPoint(ctx, sp.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.True(t, apperr.IsKind(s.DeleteSetPoint(ctx, sp.ID), apperr.KindNotFound))
}

func TestAlertsAcknowledge(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	drafts := []model.Alert{
		{ReactorID: 1, SetPointID: 1, DataType: model.DataTypeGas, FieldName: "ph", Value: 8, Bound: model.BoundMax, Threshold: 7.5, Severity: model.SeverityWarning, Message: "a", RecordTime: base},
		{ReactorID: 1, SetPointID: 2, DataType: model.DataTypeGas, FieldName: "ph", Value: 8, Bound: model.BoundMax, Threshold: 7.8, Severity: model.SeverityCritical, Message: "b", RecordTime: base},
		{ReactorID: 2, SetPointID: 3, DataType: model.DataTypeGas, FieldName: "ph", Value: 5, Bound: model.BoundMin, Threshold: 6, Severity: model.SeverityInfo, Message: "c", RecordTime: base},
	}
	stored, err := s.RecordAlerts(ctx, drafts)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, a := range stored {
		assert.NotZero(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())
	}
	assert.Zero(t, drafts[0].ID, "drafts are not mutated")

	n, err := s.Acknowledge(ctx, []int64{stored[0].ID}, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	first, err := s.GetAlert(ctx, stored[0].ID)
	require.NoError(t, err)
	require.True(t, first.Acknowledged)
	require.NotNil(t, first.AcknowledgedBy)
	assert.Equal(t, "alice", *first.AcknowledgedBy)
	ackAt := *first.AcknowledgedAt

	// Re-acknowledging is a no-op that still counts, unknown ids are ignored.
	n, err = s.Acknowledge(ctx, []int64{stored[0].ID, stored[1].ID, 424242}, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	again, err := s.GetAlert(ctx, stored[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", *again.AcknowledgedBy)
	assert.True(t, ackAt.Equal(*again.AcknowledgedAt))

	second, err := s.GetAlert(ctx, stored[1].ID)
	require.NoError(t, err)
	assert.True(t, second.Acknowledged)
	assert.Equal(t, "bob", *second.AcknowledgedBy)

	n, err = s.Acknowledge(ctx, []int64{999}, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	unacked := false
	open, err := s.ListAlerts(ctx, AlertFilter{Acknowledged: &unacked})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, stored[2].ID, open[0].ID)

	forReactor, err := s.ListAlerts(ctx, AlertFilter{ReactorID: 1})
	require.NoError(t, err)
	assert.Len(t, forReactor, 2)
}

func TestReactors(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	name, err := s.ReactorName(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Reactor 7", name)

	require.NoError(t, s.UpsertReactor(ctx, &model.Reactor{ID: 7, Name: "Fermenter B", IsActive: true}))
	name, err = s.ReactorName(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Fermenter B", name)

	require.NoError(t, s.UpsertReactor(ctx, &model.Reactor{ID: 7, Name: "Fermenter B2", Location: "Lab 3", IsActive: true}))
	reactors, err := s.ListReactors(ctx)
	require.NoError(t, err)
	require.Len(t, reactors, 1)
	assert.Equal(t, "Fermenter B2", reactors[0].Name)
	assert.Equal(t, "Lab 3", reactors[0].Location)
}

func TestPushSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertReactor(ctx, &model.Reactor{ID: 1, Name: "R1", IsActive: true}))
	require.NoError(t, s.UpsertReactor(ctx, &model.Reactor{ID: 2, Name: "R2", IsActive: true}))

	sub := &model.PushSubscription{Endpoint: "https://push.example/abc", P256DH: "key", Auth: "auth", UserID: "7"}
	require.NoError(t, s.PutPushSubscription(ctx, sub, []int64{1, 2}))

	got, err := s.GetPushSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Len(t, got.Reactors, 2)

	for1, err := s.PushSubscriptionsForReactor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, for1, 1)
	assert.Equal(t, sub.Endpoint, for1[0].Endpoint)

	replaced := &model.PushSubscription{Endpoint: sub.Endpoint, P256DH: "key2", Auth: "auth2"}
	require.NoError(t, s.PutPushSubscription(ctx, replaced, []int64{2}))
	for1, err = s.PushSubscriptionsForReactor(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, for1)

	require.NoError(t, s.DeletePushSubscription(ctx, sub.Endpoint))
	_, err = s.GetPushSubscription(ctx, sub.Endpoint)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.True(t, apperr.IsKind(s.DeletePushSubscription(ctx, sub.Endpoint), apperr.KindNotFound))
}

func TestPing(t *testing.T) {
	assert.NoError(t, newSQLiteStore(t).Ping(context.Background()))
}
