package models

import "gorm.io/gorm"

const (
	ReportTypeSample  = "Sample"
	ReportTypeProject = "Project"
)

// Report is a standalone log entry attached to a project (and optionally one of
// its samples). Distinct from the project's versioned final report.
type Report struct {
	gorm.Model

	Type        string `gorm:"not null"`
	Content     string `gorm:"type:text;not null"`
	CreatedByID uint   `gorm:"not null;index"`
	ProjectID   uint   `gorm:"not null;index"`
	SampleID    *uint  `gorm:"index"`

	// Relationships
	CreatedBy User    `gorm:"foreignKey:CreatedByID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Project   Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Sample    *Sample `gorm:"foreignKey:SampleID;constraint:OnUpdate:Cascade,OnDelete:SET NULL" json:"-"`
}
