package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProjectStatusPlanning  = "Planning"
	ProjectStatusActive    = "Active"
	ProjectStatusOnHold    = "On Hold"
	ProjectStatusCompleted = "Completed"
	ProjectStatusCancelled = "Cancelled"
)

func ValidProjectStatus(status string) bool {
	switch status {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

type Project struct {
	gorm.Model

	Name           string `gorm:"not null"`
	Description    string
	ResearchDomain string
	Budget         float64
	StartDate      *time.Time
	Deadline       *time.Time
	Status         string `gorm:"not null;default:Planning"`
	TeamLeadID     uint   `gorm:"not null;index"`

	// JSON array of institution names collaborating on the project.
	CollaboratingInstitutions datatypes.JSON `gorm:"type:jsonb"`

	// Final report working draft. Versions live in ReportVersion.
	FinalReportContent     string `gorm:"type:text"`
	FinalReportPublishedAt *time.Time

	// Relationships
	TeamLead           User                `gorm:"foreignKey:TeamLeadID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Samples            []Sample            `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	ReportVersions     []ReportVersion     `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Reports            []Report            `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
