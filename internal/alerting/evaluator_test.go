package alerting

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

func f(v float64) *float64 { return &v }

var ts = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func gasRecord(ph *float64) *model.GasData {
	rec := &model.GasData{PH: ph}
	rec.RecordID = 42
	rec.ReactorID = 1
	rec.Timestamp = ts
	return rec
}

func phSetPoint(id int64, min, max *float64) model.SetPoint {
	return model.SetPoint{
		ID:        id,
		ReactorID: 1,
		DataType:  model.DataTypeGas,
		FieldName: "ph",
		MinValue:  min,
		MaxValue:  max,
		Severity:  model.SeverityWarning,
		IsActive:  true,
	}
}

func TestEvaluateBreachAboveMax(t *testing.T) {
	drafts, err := Evaluate(gasRecord(f(8.0)), []model.SetPoint{phSetPoint(1, f(6.5), f(7.5))}, "Reactor A")
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	a := drafts[0]
	assert.Equal(t, "ph", a.FieldName)
	assert.Equal(t, 8.0, a.Value)
	assert.Equal(t, model.BoundMax, a.Bound)
	assert.Equal(t, 7.5, a.Threshold)
	assert.Equal(t, int64(1), a.ReactorID)
	assert.Equal(t, int64(42), a.RecordID)
	assert.Equal(t, ts, a.RecordTime)
	assert.Equal(t, model.SeverityWarning, a.Severity)
	assert.Zero(t, a.ID)
	assert.Contains(t, a.Message, "Reactor A")
	assert.Contains(t, a.Message, "above maximum")
}

func TestEvaluateWithinRange(t *testing.T) {
	drafts, err := Evaluate(gasRecord(f(7.0)), []model.SetPoint{phSetPoint(1, f(6.5), f(7.5))}, "Reactor A")
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestEvaluateAbsentValue(t *testing.T) {
	drafts, err := Evaluate(gasRecord(nil), []model.SetPoint{phSetPoint(1, f(6.5), f(7.5))}, "Reactor A")
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestEvaluateBelowMin(t *testing.T) {
	drafts, err := Evaluate(gasRecord(f(6.0)), []model.SetPoint{phSetPoint(1, f(6.5), nil)}, "Reactor A")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, model.BoundMin, drafts[0].Bound)
	assert.Equal(t, 6.5, drafts[0].Threshold)
	assert.Contains(t, drafts[0].Message, "below minimum")
}

func TestEvaluateBoundaryIsNotBreach(t *testing.T) {
	sp := []model.SetPoint{phSetPoint(1, f(6.5), f(7.5))}
	for _, v := range []float64{6.5, 7.5} {
		drafts, err := Evaluate(gasRecord(f(v)), sp, "Reactor A")
		require.NoError(t, err)
		assert.Empty(t, drafts, "value %v", v)
	}
}

func TestEvaluateOverlappingSetPointsOnSameField(t *testing.T) {
	setpoints := []model.SetPoint{
		phSetPoint(1, f(6.5), f(7.5)),
		phSetPoint(2, nil, f(7.8)),
		phSetPoint(3, f(5.0), f(9.0)),
	}
	setpoints[1].Severity = model.SeverityCritical

	drafts, err := Evaluate(gasRecord(f(8.0)), setpoints, "Reactor A")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, int64(1), drafts[0].SetPointID)
	assert.Equal(t, int64(2), drafts[1].SetPointID)
	assert.Equal(t, model.SeverityCritical, drafts[1].Severity)
}

func TestEvaluateMultipleFields(t *testing.T) {
	rec := gasRecord(f(8.0))
	rec.DissolvedOxygen = f(10)
	rec.ReactorTemp = f(45)

	setpoints := []model.SetPoint{
		phSetPoint(1, f(6.5), f(7.5)),
		{ID: 2, ReactorID: 1, DataType: model.DataTypeGas, FieldName: "dissolved_oxygen", MinValue: f(20)},
		{ID: 3, ReactorID: 1, DataType: model.DataTypeGas, FieldName: "reactor_temp", MaxValue: f(40)},
	}
	drafts, err := Evaluate(rec, setpoints, "Reactor A")
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, []string{"ph", "dissolved_oxygen", "reactor_temp"},
		[]string{drafts[0].FieldName, drafts[1].FieldName, drafts[2].FieldName})
}

func TestEvaluateUnknownFieldSkipsOnlyThatSetPoint(t *testing.T) {
	setpoints := []model.SetPoint{
		{ID: 7, ReactorID: 1, DataType: model.DataTypeGas, FieldName: "pump_rpm", MaxValue: f(1)},
		phSetPoint(1, f(6.5), f(7.5)),
	}
	drafts, err := Evaluate(gasRecord(f(8.0)), setpoints, "Reactor A")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
	assert.Contains(t, err.Error(), "pump_rpm")
	require.Len(t, drafts, 1)
	assert.Equal(t, int64(1), drafts[0].SetPointID)
}

func TestEvaluateMismatchedDataType(t *testing.T) {
	setpoints := []model.SetPoint{
		{ID: 3, ReactorID: 1, DataType: model.DataTypeLevelControl, FieldName: "pump_rpm", MaxValue: f(1)},
	}
	drafts, err := Evaluate(gasRecord(f(8.0)), setpoints, "Reactor A")
	assert.Error(t, err)
	assert.Empty(t, drafts)
}

func TestEvaluateNoSetPoints(t *testing.T) {
	drafts, err := Evaluate(gasRecord(f(8.0)), nil, "Reactor A")
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestEvaluateBreachRuleProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		min := rng.Float64()*20 - 10
		max := min + rng.Float64()*10 + 0.001
		v := rng.Float64()*40 - 20

		drafts, err := Evaluate(gasRecord(f(v)), []model.SetPoint{phSetPoint(1, f(min), f(max))}, "R")
		require.NoError(t, err)

		breach := v < min || v > max
		if !breach {
			assert.Empty(t, drafts, "v=%v min=%v max=%v", v, min, max)
			continue
		}
		require.Len(t, drafts, 1, "v=%v min=%v max=%v", v, min, max)
		if v < min {
			assert.Equal(t, model.BoundMin, drafts[0].Bound)
		} else {
			assert.Equal(t, model.BoundMax, drafts[0].Bound)
		}
	}
}
