package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioreactor-monitor/internal/apperr"
)

func TestEveryDataTypeHasDescriptor(t *testing.T) {
	for _, dt := range AllDataTypes() {
		t.Run(string(dt), func(t *testing.T) {
			d := Describe(dt)
			require.NotNil(t, d)
			assert.Equal(t, dt, d.Type)
			assert.NotEmpty(t, d.Table)
			assert.NotEmpty(t, d.FieldNames())

			rec := d.New()
			assert.Equal(t, dt, rec.Kind())
		})
	}
	assert.Len(t, descriptors, len(AllDataTypes()))
}

func TestParseDataType(t *testing.T) {
	dt, ok := ParseDataType("level_control")
	assert.True(t, ok)
	assert.Equal(t, DataTypeLevelControl, dt)

	_, ok = ParseDataType("temperature")
	assert.False(t, ok)
}

func TestFieldWhitelist(t *testing.T) {
	gas := Describe(DataTypeGas)
	assert.True(t, gas.HasField("ph"))
	assert.True(t, gas.HasField("dissolved_oxygen"))
	assert.False(t, gas.HasField("pH"), "payload keys are not column names")
	assert.False(t, gas.HasField("pump_rpm"))

	level := Describe(DataTypeLevelControl)
	assert.Equal(t, []string{"pid_value", "pump_rpm", "reactor_weight", "volume_reactor"}, level.FieldNames())
}

func TestValue(t *testing.T) {
	ph := 7.1
	rec := &GasData{PH: &ph}

	v, ok := Value(rec, "ph")
	require.True(t, ok)
	require.NotNil(t, v)
	assert.Equal(t, 7.1, *v)

	v, ok = Value(rec, "rq")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = Value(rec, "flowrate")
	assert.False(t, ok)
}

func TestFieldsPointIntoRecord(t *testing.T) {
	rec := &DilutionData{}
	flow := 2.5
	for _, f := range rec.Fields() {
		if f.Column == "flowrate" {
			*f.Ptr = &flow
		}
	}
	require.NotNil(t, rec.Flowrate)
	assert.Equal(t, 2.5, *rec.Flowrate)
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("critical")
	assert.True(t, ok)
	assert.Equal(t, SeverityCritical, sev)

	_, ok = ParseSeverity("fatal")
	assert.False(t, ok)
}

func TestSetPointValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	valid := func() SetPoint {
		return SetPoint{ReactorID: 1, DataType: DataTypeGas, FieldName: "ph", MinValue: f(6.5), MaxValue: f(7.5), Severity: SeverityWarning}
	}

	sp := valid()
	require.NoError(t, sp.Validate())

	tests := []struct {
		name   string
		mutate func(*SetPoint)
		code   string
	}{
		{"unknown type", func(sp *SetPoint) { sp.DataType = "ph" }, apperr.CodeUnknownDataType},
		{"field of other type", func(sp *SetPoint) { sp.FieldName = "pump_rpm" }, apperr.CodeInvalidField},
		{"no bounds", func(sp *SetPoint) { sp.MinValue, sp.MaxValue = nil, nil }, apperr.CodeInvalidBounds},
		{"min equals max", func(sp *SetPoint) { sp.MinValue = f(7.5) }, apperr.CodeInvalidBounds},
		{"min above max", func(sp *SetPoint) { sp.MinValue = f(9) }, apperr.CodeInvalidBounds},
		{"bad severity", func(sp *SetPoint) { sp.Severity = "loud" }, apperr.CodeValidation},
		{"bad reactor", func(sp *SetPoint) { sp.ReactorID = 0 }, apperr.CodeInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := valid()
			tt.mutate(&sp)
			err := sp.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}

	onlyMax := valid()
	onlyMax.MinValue = nil
	assert.NoError(t, onlyMax.Validate())
}
