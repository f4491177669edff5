package models

import "gorm.io/gorm"

const (
	RoleResearcher = "researcher"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleResearcher, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	gorm.Model

	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Institution  string
	Specialty    string

	// Relationships
	LedProjects        []Project           `gorm:"foreignKey:TeamLeadID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	AssignedSamples    []Sample            `gorm:"foreignKey:TechnicianID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	Notifications      []Notification      `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
