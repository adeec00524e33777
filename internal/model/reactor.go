package model

import (
	"fmt"
	"time"
)

// Reactor is a monitored bioreactor unit.
type Reactor struct {
	ID        int64     `gorm:"primaryKey" json:"reactor_id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"reactor_name"`
	Location  string    `gorm:"size:256" json:"location"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultReactorName is used when a reactor has no stored row.
func DefaultReactorName(id int64) string {
	return fmt.Sprintf("Reactor %d", id)
}
