package ingest

import (
	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/parse"
)

// decodeRecord accepts {"gas": {...}}, {"level_control": {...}}, {"dilution": {...}} and
// the flat {"type": "dilution", ...} form.
func decodeRecord(payload map[string]any) (model.SensorRecord, error) {
	dt, fields, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return parse.Record(dt, fields)
}

// Decode splits a push payload into its data type and field map.
func Decode(payload map[string]any) (model.DataType, map[string]any, error) {
	if len(payload) == 0 {
		return "", nil, apperr.Validation(apperr.CodeValidation, "empty payload")
	}
	if raw, ok := payload["type"]; ok {
		name, _ := raw.(string)
		dt, ok := model.ParseDataType(name)
		if !ok {
			return "", nil, apperr.Validation(apperr.CodeUnknownDataType, "unknown data type %v", raw)
		}
		fields := make(map[string]any, len(payload))
		for k, v := range payload {
			if k != "type" {
				fields[k] = v
			}
		}
		return dt, fields, nil
	}

	var (
		found  model.DataType
		fields map[string]any
	)
	for _, dt := range model.AllDataTypes() {
		raw, ok := payload[string(dt)]
		if !ok {
			continue
		}
		if found != "" {
			return "", nil, apperr.Validation(apperr.CodeValidation, "payload carries both %s and %s data", found, dt)
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return "", nil, apperr.Validation(apperr.CodeValidation, "%s data must be an object", dt)
		}
		found, fields = dt, obj
	}
	if found == "" {
		return "", nil, apperr.Validation(apperr.CodeUnknownDataType, "payload has no gas, level_control or dilution data")
	}
	return found, fields, nil
}
