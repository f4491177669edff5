package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SampleStatusPending    = "Pending"
	SampleStatusInAnalysis = "In Analysis"
	SampleStatusAnalyzed   = "Analyzed"
	SampleStatusFailed     = "Failed"
)

var SampleTypes = []string{
	"Blood", "Tissue", "DNA", "RNA", "Protein",
	"Cell Culture", "Serum", "Plasma", "Other",
}

func ValidSampleType(sampleType string) bool {
	for _, t := range SampleTypes {
		if t == sampleType {
			return true
		}
	}
	return false
}

type Sample struct {
	gorm.Model

	ProjectID         uint   `gorm:"not null;index"`
	Name              string `gorm:"not null"`
	Description       string `gorm:"not null"`
	Type              string `gorm:"not null"`
	Quantity          float64
	Unit              string `gorm:"not null"`
	StorageConditions string
	CollectionDate    time.Time `gorm:"not null"`
	ExpirationDate    *time.Time
	Identification    string `gorm:"not null;index"` // derived, e.g. "BLOOD-1704067200000"
	TechnicianID      uint   `gorm:"not null;index"`
	Status            string `gorm:"not null;default:Pending"`

	ProtocolFilename   string
	ProtocolStorageKey string

	AnalysisReport string `gorm:"type:text"`
	FailureReason  string

	// Stamped by the expiry sweep so each sample is flagged at most once.
	ExpiryNotifiedAt *time.Time

	// Relationships
	Project    Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Technician User    `gorm:"foreignKey:TechnicianID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
