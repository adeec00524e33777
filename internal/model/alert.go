package model

import "time"

// Bound names the side of a setpoint that was crossed.
type Bound string

const (
	BoundMin Bound = "min"
	BoundMax Bound = "max"
)

// Alert is a detected breach of a setpoint by one sensor record. ID and CreatedAt are
// zero on drafts and assigned when the alert is stored.
type Alert struct {
	ID             int64      `gorm:"primaryKey" json:"alert_id"`
	ReactorID      int64      `gorm:"not null;index" json:"reactor_id"`
	SetPointID     int64      `gorm:"index" json:"setpoint_id"`
	DataType       DataType   `gorm:"size:32;not null" json:"data_type"`
	FieldName      string     `gorm:"size:64;not null" json:"field_name"`
	RecordID       int64      `json:"record_id"`
	Value          float64    `gorm:"not null" json:"observed_value"`
	Bound          Bound      `gorm:"size:8;not null" json:"breached_bound"`
	Threshold      float64    `gorm:"not null" json:"threshold_value"`
	Severity       Severity   `gorm:"size:16;not null" json:"severity"`
	Message        string     `gorm:"size:512;not null" json:"message"`
	RecordTime     time.Time  `gorm:"not null;index" json:"record_timestamp"`
	Acknowledged   bool       `gorm:"not null;index" json:"acknowledged"`
	AcknowledgedBy *string    `gorm:"size:128" json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
}
