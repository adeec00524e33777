package model

import "time"

// PushSubscription holds the information for a browser push subscription and the
// reactors whose critical alerts it wants.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserID    string    `gorm:"size:128"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Reactors []*Reactor `gorm:"many2many:subscription_reactor_mapping;"`
}
