// Package reports maintains a project's final report: one mutable working
// draft plus an append-only log of published versions.
package reports

import (
	"errors"
	"time"

	"github.com/labmetrixis/labmetrixis/internal/domain"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"gorm.io/gorm"
)

type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// VersionSummary is enough to render a version list without loading content.
type VersionSummary struct {
	ID            uint      `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ContentLength int       `json:"content_length"`
}

// SaveDraft overwrites the project's working draft. It never appends a
// version. publishedAt is an optional passthrough of the last known publish
// timestamp echoed by the client.
func (m *Manager) SaveDraft(projectID uint, content string, publishedAt *time.Time) (*models.Project, error) {
	project, err := m.getProject(projectID)

	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"final_report_content": content}

	if publishedAt != nil {
		updates["final_report_published_at"] = *publishedAt
	}

	if err := m.db.Model(project).Updates(updates).Error; err != nil {
		return nil, err
	}

	return m.getProject(projectID)
}

// Publish sets the draft content, stamps publishedAt and appends one
// immutable version snapshot. Versions are never edited or removed, so
// publishing twice yields two distinct entries.
func (m *Manager) Publish(projectID uint, content string, publishDate time.Time) (*models.ReportVersion, error) {
	project, err := m.getProject(projectID)

	if err != nil {
		return nil, err
	}

	var version models.ReportVersion

	err = m.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"final_report_content":      content,
			"final_report_published_at": publishDate,
		}

		if err := tx.Model(project).Updates(updates).Error; err != nil {
			return err
		}

		version = models.ReportVersion{
			ProjectID: project.ID,
			Content:   content,
		}

		return tx.Create(&version).Error
	})

	if err != nil {
		return nil, err
	}

	return &version, nil
}

// ListVersions returns version metadata in insertion order.
func (m *Manager) ListVersions(projectID uint) ([]VersionSummary, error) {
	if _, err := m.getProject(projectID); err != nil {
		return nil, err
	}

	var summaries []VersionSummary

	err := m.db.Model(&models.ReportVersion{}).
		Select("id, created_at, length(content) AS content_length").
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Scan(&summaries).Error

	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// LoadVersion returns one version's full content. It never mutates the draft;
// restoring is an explicit SaveDraft with the loaded content.
func (m *Manager) LoadVersion(projectID, versionID uint) (*models.ReportVersion, error) {
	var version models.ReportVersion

	err := m.db.Where("id = ? AND project_id = ?", versionID, projectID).First(&version).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "report version"}
		}
		return nil, err
	}

	return &version, nil
}

func (m *Manager) getProject(projectID uint) (*models.Project, error) {
	var project models.Project

	if err := m.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "project"}
		}
		return nil, err
	}

	return &project, nil
}
