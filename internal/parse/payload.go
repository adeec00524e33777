package parse

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

// Layouts accepted for timestamps, tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Timestamp converts a payload value into a UTC instant. Strings use the layouts above;
// numbers are Unix seconds.
func Timestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, fmt.Errorf("empty timestamp")
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", t, err)
		}
		return unixSeconds(f), nil
	case float64:
		return unixSeconds(t), nil
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is null")
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}

func unixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Number converts a payload value into an optional float. nil, empty strings and NaN
// become an absent reading.
func Number(v any) (*float64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", n, err)
		}
		f = parsed
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", n)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return &f, nil
}

// ReactorID converts a payload value into a positive reactor id.
func ReactorID(v any) (int64, error) {
	var id int64
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("reactor_id is null")
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("reactor_id %v is not an integer", n)
		}
		id = int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("reactor_id %q is not an integer", n)
		}
		id = parsed
	case int:
		id = int64(n)
	case int64:
		id = n
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("reactor_id %q is not an integer", n)
		}
		id = parsed
	default:
		return 0, fmt.Errorf("unsupported reactor_id type %T", v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("reactor_id must be positive, got %d", id)
	}
	return id, nil
}

// Record maps an external payload object onto a typed sensor record using the
// data type's field table. reactor_id and timestamp are required; unknown keys are ignored.
func Record(dt model.DataType, fields map[string]any) (model.SensorRecord, error) {
	rec := model.Describe(dt).New()
	base := rec.Base()

	rawID, ok := fields["reactor_id"]
	if !ok || rawID == nil {
		return nil, apperr.Validation(apperr.CodeMissingField, "reactor_id and timestamp are required for %s data", dt)
	}
	id, err := ReactorID(rawID)
	if err != nil {
		return nil, apperr.Validation(apperr.CodeInvalidField, "%v", err)
	}
	base.ReactorID = id

	rawTS, ok := fields["timestamp"]
	if !ok || rawTS == nil || rawTS == "" {
		return nil, apperr.Validation(apperr.CodeMissingField, "reactor_id and timestamp are required for %s data", dt)
	}
	ts, err := Timestamp(rawTS)
	if err != nil {
		return nil, apperr.Validation(apperr.CodeInvalidField, "timestamp: %v", err)
	}
	base.Timestamp = ts

	if rawUp, ok := fields["uploaded_at"]; ok && rawUp != nil && rawUp != "" {
		up, err := Timestamp(rawUp)
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidField, "uploaded_at: %v", err)
		}
		base.UploadedAt = &up
	}

	for _, f := range rec.Fields() {
		raw, ok := fields[f.Payload]
		if !ok {
			continue
		}
		v, err := Number(raw)
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidField, "%s: %v", f.Payload, err)
		}
		*f.Ptr = v
	}
	return rec, nil
}
