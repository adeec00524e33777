// Package alerting compares sensor records against setpoints.
package alerting

import (
	"errors"
	"fmt"
	"strconv"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// Evaluate returns one alert draft per setpoint the record breaches, in setpoint order.
// The setpoints must already be filtered to the record's reactor and data type.
//
// A setpoint naming a field the record's type does not have is reported in the returned
// error and skipped; the remaining setpoints are still evaluated. reactorName is used in
// the alert message.
func Evaluate(rec model.SensorRecord, setpoints []model.SetPoint, reactorName string) ([]model.Alert, error) {
	base := rec.Base()
	var (
		drafts []model.Alert
		errs   []error
	)
	for _, sp := range setpoints {
		if sp.DataType != rec.Kind() {
			errs = append(errs, apperr.Configuration("setpoint %d is for %s, record is %s", sp.ID, sp.DataType, rec.Kind()))
			continue
		}
		value, ok := model.Value(rec, sp.FieldName)
		if !ok {
			errs = append(errs, apperr.Configuration("setpoint %d references unknown %s field %q", sp.ID, sp.DataType, sp.FieldName))
			continue
		}
		if value == nil {
			continue
		}

		bound, threshold, breached := check(*value, sp.MinValue, sp.MaxValue)
		if !breached {
			continue
		}
		drafts = append(drafts, model.Alert{
			ReactorID:  base.ReactorID,
			SetPointID: sp.ID,
			DataType:   sp.DataType,
			FieldName:  sp.FieldName,
			RecordID:   base.RecordID,
			Value:      *value,
			Bound:      bound,
			Threshold:  threshold,
			Severity:   sp.Severity,
			Message:    message(reactorName, sp.FieldName, *value, bound, threshold),
			RecordTime: base.Timestamp.UTC(),
		})
	}
	return drafts, errors.Join(errs...)
}

// check applies the breach rule. With min < max at most one side can be crossed; min is
// tested first so a malformed setpoint still yields a single draft.
func check(v float64, min, max *float64) (model.Bound, float64, bool) {
	if min != nil && v < *min {
		return model.BoundMin, *min, true
	}
	if max != nil && v > *max {
		return model.BoundMax, *max, true
	}
	return "", 0, false
}

func message(reactor, field string, value float64, bound model.Bound, threshold float64) string {
	dir := "above maximum"
	if bound == model.BoundMin {
		dir = "below minimum"
	}
	return fmt.Sprintf("%s: %s %s %s (%s)", reactor, field, strconv.FormatFloat(value, 'f', -1, 64), dir, strconv.FormatFloat(threshold, 'f', -1, 64))
}
