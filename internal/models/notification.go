package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationSampleExpired  = "sample_expired"
	NotificationSampleAssigned = "sample_assigned"
	NotificationSampleFailed   = "sample_failed"
)

type Notification struct {
	gorm.Model

	UserID   uint   `gorm:"not null;index"`
	SampleID *uint  `gorm:"index"`
	Kind     string `gorm:"not null"`
	Message  string
	ReadAt   *time.Time

	// Relationships
	User   User    `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Sample *Sample `gorm:"foreignKey:SampleID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
