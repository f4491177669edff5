// Package samples owns the sample lifecycle: field validation on intake and
// the Pending -> In Analysis -> Analyzed status machine, with Failed as the
// terminal error state.
package samples

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labmetrixis/labmetrixis/internal/domain"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/policy"
	"gorm.io/gorm"
)

type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

type CreateSampleInput struct {
	Name              string
	Description       string
	Type              string
	Quantity          float64
	Unit              string
	StorageConditions string
	CollectionDate    time.Time
	ExpirationDate    *time.Time
	TechnicianID      uint

	ProtocolFilename   string
	ProtocolStorageKey string
}

// Create validates every required field before accepting the sample, so the
// caller can surface all violations at once. On success the sample starts in
// Pending with a derived identification.
func (m *Manager) Create(projectID uint, in CreateSampleInput) (*models.Sample, error) {
	verr := &domain.ValidationError{}

	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "name is required")
	}

	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "description is required")
	}

	if in.Type == "" {
		verr.Add("type", "type is required")
	} else if !models.ValidSampleType(in.Type) {
		verr.Add("type", fmt.Sprintf("type must be one of: %s", strings.Join(models.SampleTypes, ", ")))
	}

	if in.Quantity <= 0 {
		verr.Add("quantity", "quantity must be a positive number")
	}

	if strings.TrimSpace(in.Unit) == "" {
		verr.Add("unit", "unit is required")
	}

	if in.TechnicianID == 0 {
		verr.Add("technicianResponsible", "a responsible technician is required")
	}

	if in.CollectionDate.IsZero() {
		verr.Add("collectionDate", "collection date is required")
	}

	if in.ProtocolFilename == "" {
		verr.Add("protocolFile", "a protocol file is required")
	}

	if in.ExpirationDate != nil && !in.CollectionDate.IsZero() && in.ExpirationDate.Before(in.CollectionDate) {
		verr.Add("expirationDate", "expiration date cannot precede collection date")
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var technician models.User

	if err := m.db.First(&technician, in.TechnicianID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, (&domain.ValidationError{}).Add("technicianResponsible", "technician does not exist")
		}
		return nil, err
	}

	if technician.Role != models.RoleTechnician {
		return nil, (&domain.ValidationError{}).Add("technicianResponsible", "assigned user is not a technician")
	}

	now := time.Now()

	sample := models.Sample{
		ProjectID:          projectID,
		Name:               in.Name,
		Description:        in.Description,
		Type:               in.Type,
		Quantity:           in.Quantity,
		Unit:               in.Unit,
		StorageConditions:  in.StorageConditions,
		CollectionDate:     in.CollectionDate,
		ExpirationDate:     in.ExpirationDate,
		Identification:     deriveIdentification(in.Type, now),
		TechnicianID:       in.TechnicianID,
		Status:             models.SampleStatusPending,
		ProtocolFilename:   in.ProtocolFilename,
		ProtocolStorageKey: in.ProtocolStorageKey,
	}

	if err := m.db.Create(&sample).Error; err != nil {
		return nil, err
	}

	return &sample, nil
}

// deriveIdentification builds the sample identifier from its type and creation
// time, e.g. "CELLCULTURE-1704067200000".
func deriveIdentification(sampleType string, at time.Time) string {
	code := strings.ToUpper(strings.ReplaceAll(sampleType, " ", ""))
	return fmt.Sprintf("%s-%d", code, at.UnixMilli())
}

// StartAnalysis moves a Pending sample to In Analysis. Only the assigned
// technician may do this, and the transition is a conditional update so two
// racing calls cannot both succeed.
func (m *Manager) StartAnalysis(sampleID, actingUserID uint) (*models.Sample, error) {
	sample, err := m.Get(sampleID)

	if err != nil {
		return nil, err
	}

	decision := policy.CanPerform(
		policy.Actor{ID: actingUserID},
		policy.ActionTransitionSample,
		policy.Target{TechnicianID: sample.TechnicianID},
	)

	if !decision.Allowed {
		return nil, &domain.ForbiddenError{Reason: decision.Reason}
	}

	return m.transition(sample, models.SampleStatusPending, models.SampleStatusInAnalysis, nil)
}

// SubmitAnalysisReport records the technician's report and moves the sample
// from In Analysis to Analyzed. A Report log entry of kind Sample is appended
// in the same transaction.
func (m *Manager) SubmitAnalysisReport(sampleID, actingUserID uint, reportText string) (*models.Sample, error) {
	if strings.TrimSpace(reportText) == "" {
		return nil, (&domain.ValidationError{}).Add("analysisReport", "analysis report cannot be empty")
	}

	sample, err := m.Get(sampleID)

	if err != nil {
		return nil, err
	}

	decision := policy.CanPerform(
		policy.Actor{ID: actingUserID},
		policy.ActionSubmitAnalysis,
		policy.Target{TechnicianID: sample.TechnicianID},
	)

	if !decision.Allowed {
		return nil, &domain.ForbiddenError{Reason: decision.Reason}
	}

	var updated *models.Sample

	err = m.db.Transaction(func(tx *gorm.DB) error {
		var txErr error

		updated, txErr = NewManager(tx).transition(sample, models.SampleStatusInAnalysis, models.SampleStatusAnalyzed, map[string]interface{}{
			"analysis_report": reportText,
		})

		if txErr != nil {
			return txErr
		}

		sid := sample.ID

		entry := models.Report{
			Type:        models.ReportTypeSample,
			Content:     reportText,
			CreatedByID: actingUserID,
			ProjectID:   sample.ProjectID,
			SampleID:    &sid,
		}

		return tx.Create(&entry).Error
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MarkFailed moves a Pending or In Analysis sample to Failed, recording the
// reason. Analyzed and Failed are terminal.
func (m *Manager) MarkFailed(sampleID, actingUserID uint, reason string) (*models.Sample, error) {
	sample, err := m.Get(sampleID)

	if err != nil {
		return nil, err
	}

	decision := policy.CanPerform(
		policy.Actor{ID: actingUserID},
		policy.ActionTransitionSample,
		policy.Target{TechnicianID: sample.TechnicianID},
	)

	if !decision.Allowed {
		return nil, &domain.ForbiddenError{Reason: decision.Reason}
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Sample{}).
			Where("id = ? AND status IN ?", sample.ID, []string{models.SampleStatusPending, models.SampleStatusInAnalysis}).
			Updates(map[string]interface{}{
				"status":         models.SampleStatusFailed,
				"failure_reason": reason,
			})

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var current models.Sample

			if err := tx.First(&current, sample.ID).Error; err != nil {
				return err
			}

			return &domain.InvalidTransitionError{From: current.Status, To: models.SampleStatusFailed}
		}

		var project models.Project

		if err := tx.First(&project, sample.ProjectID).Error; err != nil {
			return err
		}

		message := fmt.Sprintf("Sample %s (%s) failed analysis: %s", sample.Name, sample.Identification, reason)
		sid := sample.ID

		recipients := []uint{sample.TechnicianID}

		if project.TeamLeadID != sample.TechnicianID {
			recipients = append(recipients, project.TeamLeadID)
		}

		for _, userID := range recipients {
			notification := models.Notification{
				UserID:   userID,
				SampleID: &sid,
				Kind:     models.NotificationSampleFailed,
				Message:  message,
			}

			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return m.Get(sample.ID)
}

// transition performs the compare-and-swap on the status column. extra fields
// are written in the same UPDATE. RowsAffected == 0 means the sample was not
// in the expected status anymore.
func (m *Manager) transition(sample *models.Sample, from, to string, extra map[string]interface{}) (*models.Sample, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	result := m.db.Model(&models.Sample{}).
		Where("id = ? AND status = ?", sample.ID, from).
		Updates(updates)

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		current, err := m.Get(sample.ID)

		if err != nil {
			return nil, err
		}

		return nil, &domain.InvalidTransitionError{From: current.Status, To: to}
	}

	return m.Get(sample.ID)
}

type UpdateDetailsInput struct {
	Name              *string
	Description       *string
	StorageConditions *string
	Quantity          *float64
	Unit              *string
	ExpirationDate    *time.Time
	ClearExpiration   bool
}

// UpdateDetails patches descriptive fields only. Status, analysis report and
// assignment are never touched here, so a concurrent technician transition is
// not overwritten. The expiry invariant is re-checked against the stored
// collection date and a violating update is rejected, not clamped.
func (m *Manager) UpdateDetails(sampleID uint, in UpdateDetailsInput) (*models.Sample, error) {
	sample, err := m.Get(sampleID)

	if err != nil {
		return nil, err
	}

	verr := &domain.ValidationError{}
	updates := make(map[string]interface{})

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			verr.Add("name", "name cannot be empty")
		} else {
			updates["name"] = *in.Name
		}
	}

	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			verr.Add("description", "description cannot be empty")
		} else {
			updates["description"] = *in.Description
		}
	}

	if in.StorageConditions != nil {
		updates["storage_conditions"] = *in.StorageConditions
	}

	if in.Quantity != nil {
		if *in.Quantity <= 0 {
			verr.Add("quantity", "quantity must be a positive number")
		} else {
			updates["quantity"] = *in.Quantity
		}
	}

	if in.Unit != nil {
		if strings.TrimSpace(*in.Unit) == "" {
			verr.Add("unit", "unit cannot be empty")
		} else {
			updates["unit"] = *in.Unit
		}
	}

	if in.ClearExpiration {
		updates["expiration_date"] = nil
	} else if in.ExpirationDate != nil {
		if in.ExpirationDate.Before(sample.CollectionDate) {
			verr.Add("expirationDate", "expiration date cannot precede collection date")
		} else {
			updates["expiration_date"] = *in.ExpirationDate
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if len(updates) == 0 {
		return sample, nil
	}

	if err := m.db.Model(&models.Sample{}).Where("id = ?", sample.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	return m.Get(sample.ID)
}

// Delete removes the sample. Permission (team lead only) is enforced by the
// caller through the access policy before getting here.
func (m *Manager) Delete(sampleID uint) error {
	result := m.db.Delete(&models.Sample{}, sampleID)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Resource: "sample"}
	}

	return nil
}

func (m *Manager) Get(sampleID uint) (*models.Sample, error) {
	var sample models.Sample

	if err := m.db.First(&sample, sampleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "sample"}
		}
		return nil, err
	}

	return &sample, nil
}

// ListByProject returns a project's samples, newest first.
func (m *Manager) ListByProject(projectID uint) ([]models.Sample, error) {
	var list []models.Sample

	if err := m.db.Where("project_id = ?", projectID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}

	return list, nil
}
