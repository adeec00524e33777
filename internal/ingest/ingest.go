// Package ingest stores incoming sensor records, then evaluates and broadcasts them.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bioreactor-monitor/internal/alerting"
	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/metrics"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/parse"
)

// Stage names the step of the ingestion chain that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StagePersist  Stage = "persist"
	StageEvaluate Stage = "evaluate"
	StageAlert    Stage = "alert"
)

// Store is the persistence the coordinator needs.
type Store interface {
	Insert(ctx context.Context, rec model.SensorRecord) error
	BulkInsert(ctx context.Context, recs []model.SensorRecord) error
	ListActive(ctx context.Context, reactorID int64, dt model.DataType) ([]model.SetPoint, error)
	RecordAlerts(ctx context.Context, drafts []model.Alert) ([]model.Alert, error)
	ReactorName(ctx context.Context, id int64) (string, error)
}

// Publisher pushes events to live connections.
type Publisher interface {
	PublishDataUpdate(reactorID int64, dataType model.DataType, record any) int
	PublishAlert(alert model.Alert, reactorName string) int
}

// Notifier queues out-of-band notifications for stored alerts. Dispatch must not block.
type Notifier interface {
	Dispatch(alertID int64) bool
}

// StageError reports the failing stage of one record.
type StageError struct {
	Stage Stage
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (record %d): %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Failure is the wire form of a failed stage.
type Failure struct {
	Index   int    `json:"index"`
	Stage   Stage  `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func failureOf(index int, stage Stage, err error) Failure {
	msg := err.Error()
	if e, ok := apperr.As(err); ok {
		msg = e.Message
	}
	return Failure{Index: index, Stage: stage, Code: apperr.CodeOf(err), Message: msg}
}

// Result describes one persisted record. Warnings carry evaluate and alert stage failures,
// which never undo the persisted record or its data broadcast.
type Result struct {
	DataType model.DataType     `json:"dataType"`
	Record   model.SensorRecord `json:"record"`
	Alerts   []model.Alert      `json:"alerts"`
	Warnings []Failure          `json:"warnings,omitempty"`
}

// BatchResult is the outcome of a bulk push.
type BatchResult struct {
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	Failures     []Failure `json:"failures"`
	Data         []*Result `json:"data"`
}

// Service coordinates ingestion. Requests run concurrently; nothing here serializes them.
type Service struct {
	store  Store
	pub    Publisher
	notify Notifier
	log    zerolog.Logger
}

// NewService builds the coordinator. notify may be nil.
func NewService(s Store, pub Publisher, notify Notifier, log zerolog.Logger) *Service {
	return &Service{store: s, pub: pub, notify: notify, log: log}
}

// Push decodes and ingests one payload.
func (s *Service) Push(ctx context.Context, payload map[string]any) (*Result, error) {
	rec, err := decodeRecord(payload)
	if err != nil {
		metrics.RecordsIngested.WithLabelValues("unknown", "rejected").Inc()
		return nil, &StageError{Stage: StageValidate, Err: err}
	}
	return s.Ingest(ctx, rec)
}

// PushBulk ingests each payload independently. A failure of one record never stops the rest.
func (s *Service) PushBulk(ctx context.Context, payloads []map[string]any) *BatchResult {
	out := &BatchResult{Failures: []Failure{}, Data: []*Result{}}
	for i, payload := range payloads {
		rec, err := decodeRecord(payload)
		if err != nil {
			metrics.RecordsIngested.WithLabelValues("unknown", "rejected").Inc()
			out.Failures = append(out.Failures, failureOf(i, StageValidate, err))
			continue
		}
		res, err := s.Ingest(ctx, rec)
		if err != nil {
			stage := StagePersist
			var se *StageError
			if errors.As(err, &se) {
				stage = se.Stage
			}
			out.Failures = append(out.Failures, failureOf(i, stage, err))
			continue
		}
		for j := range res.Warnings {
			res.Warnings[j].Index = i
		}
		out.Data = append(out.Data, res)
	}
	out.SuccessCount = len(out.Data)
	out.FailureCount = len(out.Failures)
	return out
}

// PushForReactor ingests records of one type for the reactor named in the request path.
// The records are stored atomically; nothing is broadcast unless all of them persist.
func (s *Service) PushForReactor(ctx context.Context, reactorID int64, dt model.DataType, items []map[string]any) ([]*Result, error) {
	if len(items) == 0 {
		return nil, &StageError{Stage: StageValidate, Err: apperr.Validation(apperr.CodeValidation, "no records supplied")}
	}
	recs := make([]model.SensorRecord, 0, len(items))
	for i, item := range items {
		fields := make(map[string]any, len(item)+1)
		for k, v := range item {
			fields[k] = v
		}
		fields["reactor_id"] = reactorID
		rec, err := parse.Record(dt, fields)
		if err != nil {
			metrics.RecordsIngested.WithLabelValues(string(dt), "rejected").Inc()
			return nil, &StageError{Stage: StageValidate, Index: i, Err: err}
		}
		recs = append(recs, rec)
	}

	if err := s.store.BulkInsert(ctx, recs); err != nil {
		metrics.RecordsIngested.WithLabelValues(string(dt), "failed").Add(float64(len(recs)))
		return nil, &StageError{Stage: StagePersist, Err: err}
	}
	metrics.RecordsIngested.WithLabelValues(string(dt), "stored").Add(float64(len(recs)))

	out := make([]*Result, 0, len(recs))
	for i, rec := range recs {
		res := s.afterPersist(ctx, rec)
		for j := range res.Warnings {
			res.Warnings[j].Index = i
		}
		out = append(out, res)
	}
	return out, nil
}

// Ingest persists one validated record, publishes it, then evaluates it against the
// reactor's active setpoints. A record that fails to persist is neither evaluated nor
// broadcast.
func (s *Service) Ingest(ctx context.Context, rec model.SensorRecord) (*Result, error) {
	dt := rec.Kind()
	if err := s.store.Insert(ctx, rec); err != nil {
		metrics.RecordsIngested.WithLabelValues(string(dt), "failed").Inc()
		s.log.Error().Err(err).Int64("reactor_id", rec.Base().ReactorID).Str("data_type", string(dt)).Msg("failed to persist record")
		return nil, &StageError{Stage: StagePersist, Err: err}
	}
	metrics.RecordsIngested.WithLabelValues(string(dt), "stored").Inc()
	return s.afterPersist(ctx, rec), nil
}

func (s *Service) afterPersist(ctx context.Context, rec model.SensorRecord) *Result {
	base := rec.Base()
	dt := rec.Kind()
	res := &Result{DataType: dt, Record: rec, Alerts: []model.Alert{}}
	log := s.log.With().Int64("reactor_id", base.ReactorID).Str("data_type", string(dt)).Int64("record_id", base.RecordID).Logger()

	s.pub.PublishDataUpdate(base.ReactorID, dt, rec)

	setpoints, err := s.store.ListActive(ctx, base.ReactorID, dt)
	if err != nil {
		log.Error().Err(err).Msg("failed to load setpoints")
		res.Warnings = append(res.Warnings, failureOf(0, StageEvaluate, err))
		return res
	}
	if len(setpoints) == 0 {
		return res
	}

	name, err := s.store.ReactorName(ctx, base.ReactorID)
	if err != nil {
		log.Warn().Err(err).Msg("reactor name lookup failed")
		name = model.DefaultReactorName(base.ReactorID)
	}

	drafts, err := alerting.Evaluate(rec, setpoints, name)
	if err != nil {
		metrics.SetPointConfigErrors.Inc()
		log.Warn().Err(err).Msg("skipped misconfigured setpoints")
		res.Warnings = append(res.Warnings, failureOf(0, StageEvaluate, err))
	}
	if len(drafts) == 0 {
		return res
	}

	alerts, err := s.store.RecordAlerts(ctx, drafts)
	if err != nil {
		log.Error().Err(err).Int("alerts", len(drafts)).Msg("failed to record alerts")
		res.Warnings = append(res.Warnings, failureOf(0, StageAlert, err))
		return res
	}
	for _, a := range alerts {
		metrics.AlertsRaised.WithLabelValues(string(dt), string(a.Severity)).Inc()
		s.pub.PublishAlert(a, name)
		if a.Severity == model.SeverityCritical && s.notify != nil && !s.notify.Dispatch(a.ID) {
			log.Warn().Int64("alert_id", a.ID).Msg("notification queue full, push skipped")
		}
	}
	res.Alerts = alerts
	return res
}
