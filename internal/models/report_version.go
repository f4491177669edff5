package models

import "gorm.io/gorm"

// ReportVersion is an immutable snapshot of a project's final report taken at
// publish time. Rows are only ever appended.
type ReportVersion struct {
	gorm.Model

	ProjectID uint   `gorm:"not null;index"`
	Content   string `gorm:"type:text;not null"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
