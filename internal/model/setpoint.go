package model

import (
	"time"

	"bioreactor-monitor/internal/apperr"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity accepts info, warning and critical.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(s); sev {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev, true
	}
	return "", false
}

// SetPoint is a min/max threshold on one field of one data type for one reactor.
type SetPoint struct {
	ID        int64     `gorm:"primaryKey" json:"setpoint_id"`
	ReactorID int64     `gorm:"not null;index:idx_setpoints_reactor_type,priority:1" json:"reactor_id"`
	DataType  DataType  `gorm:"size:32;not null;index:idx_setpoints_reactor_type,priority:2" json:"data_type"`
	FieldName string    `gorm:"size:64;not null" json:"field_name"`
	MinValue  *float64  `json:"min_value"`
	MaxValue  *float64  `json:"max_value"`
	Severity  Severity  `gorm:"size:16;not null" json:"severity"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedBy string    `gorm:"size:128" json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SetPoint) TableName() string { return "setpoints" }

// Validate checks the data type, the field whitelist and the bounds.
func (sp *SetPoint) Validate() error {
	if sp.ReactorID <= 0 {
		return apperr.Validation(apperr.CodeInvalidField, "reactor_id must be positive")
	}
	if !sp.DataType.Valid() {
		return apperr.Validation(apperr.CodeUnknownDataType, "unknown data type %q", sp.DataType)
	}
	if !Describe(sp.DataType).HasField(sp.FieldName) {
		return apperr.Validation(apperr.CodeInvalidField, "%q is not a %s field", sp.FieldName, sp.DataType)
	}
	if sp.MinValue == nil && sp.MaxValue == nil {
		return apperr.Validation(apperr.CodeInvalidBounds, "at least one of min_value and max_value is required")
	}
	if sp.MinValue != nil && sp.MaxValue != nil && *sp.MinValue >= *sp.MaxValue {
		return apperr.Validation(apperr.CodeInvalidBounds, "min_value must be less than max_value")
	}
	if _, ok := ParseSeverity(string(sp.Severity)); !ok {
		return apperr.Validation(apperr.CodeValidation, "unknown severity %q", sp.Severity)
	}
	return nil
}
