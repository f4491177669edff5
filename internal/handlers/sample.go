package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/policy"
	"github.com/labmetrixis/labmetrixis/internal/samples"
	"github.com/labmetrixis/labmetrixis/internal/services"
	"github.com/labmetrixis/labmetrixis/internal/storage"
	"github.com/labmetrixis/labmetrixis/internal/utils"
)

// ProtocolFiles is the object store protocol uploads land in. Set by main;
// nil disables protocol storage (sample creation then rejects uploads).
var ProtocolFiles storage.ObjectStore

const presignExpiry = 15 * time.Minute

// CreateSampleForm binds from multipart form data when a protocol file is
// attached, or from JSON otherwise.
type CreateSampleForm struct {
	Name              string  `form:"name" json:"name"`
	Description       string  `form:"description" json:"description"`
	Type              string  `form:"type" json:"type"`
	Quantity          float64 `form:"quantity" json:"quantity"`
	Unit              string  `form:"unit" json:"unit"`
	StorageConditions string  `form:"storage_conditions" json:"storage_conditions"`
	CollectionDate    string  `form:"collection_date" json:"collection_date"`
	ExpirationDate    string  `form:"expiration_date" json:"expiration_date"`
	TechnicianID      uint    `form:"technician_responsible" json:"technician_responsible"`
}

type UpdateSampleRequest struct {
	Name              *string    `json:"name"`
	Description       *string    `json:"description"`
	StorageConditions *string    `json:"storage_conditions"`
	Quantity          *float64   `json:"quantity"`
	Unit              *string    `json:"unit"`
	ExpirationDate    *time.Time `json:"expiration_date"`
	ClearExpiration   bool       `json:"clear_expiration"`
}

type UpdateSampleStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type SubmitAnalysisReportRequest struct {
	Content string `json:"content" binding:"required"`
}

type SampleResponse struct {
	ID                uint       `json:"id"`
	ProjectID         uint       `json:"project_id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Type              string     `json:"type"`
	Quantity          float64    `json:"quantity"`
	Unit              string     `json:"unit"`
	StorageConditions string     `json:"storage_conditions"`
	CollectionDate    time.Time  `json:"collection_date"`
	ExpirationDate    *time.Time `json:"expiration_date"`
	Identification    string     `json:"identification"`
	TechnicianID      uint       `json:"technician_responsible"`
	Status            string     `json:"status"`
	ProtocolFilename  string     `json:"protocol_filename,omitempty"`
	ProtocolURL       string     `json:"protocol_url,omitempty"`
	AnalysisReport    string     `json:"analysis_report,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
}

func sampleResponse(sample *models.Sample, protocolURL string) SampleResponse {
	return SampleResponse{
		ID:                sample.ID,
		ProjectID:         sample.ProjectID,
		Name:              sample.Name,
		Description:       sample.Description,
		Type:              sample.Type,
		Quantity:          sample.Quantity,
		Unit:              sample.Unit,
		StorageConditions: sample.StorageConditions,
		CollectionDate:    sample.CollectionDate,
		ExpirationDate:    sample.ExpirationDate,
		Identification:    sample.Identification,
		TechnicianID:      sample.TechnicianID,
		Status:            sample.Status,
		ProtocolFilename:  sample.ProtocolFilename,
		ProtocolURL:       protocolURL,
		AnalysisReport:    sample.AnalysisReport,
		FailureReason:     sample.FailureReason,
	}
}

// CreateSample accepts multipart form data with a required protocol file,
// uploads the file, and hands the fields to the lifecycle manager. All
// validation failures come back together in one response.
func CreateSample(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, target, err := loadProjectTarget(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		policy.ActionAddSample,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	var form CreateSampleForm

	if err := ctx.ShouldBind(&form); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	input := samples.CreateSampleInput{
		Name:              form.Name,
		Description:       form.Description,
		Type:              form.Type,
		Quantity:          form.Quantity,
		Unit:              form.Unit,
		StorageConditions: form.StorageConditions,
		TechnicianID:      form.TechnicianID,
	}

	if form.CollectionDate != "" {
		collected, err := time.Parse("2006-01-02", form.CollectionDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid collection date"})
			return
		}
		input.CollectionDate = collected
	}

	if form.ExpirationDate != "" {
		expires, err := time.Parse("2006-01-02", form.ExpirationDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expiration date"})
			return
		}
		input.ExpirationDate = &expires
	}

	file, fileErr := ctx.FormFile("protocol_file")

	if fileErr == nil {
		if ProtocolFiles == nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Protocol file storage is not configured"})
			return
		}

		reader, err := file.Open()

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read protocol file"})
			return
		}
		defer reader.Close()

		key := storage.ObjectKey(file.Filename)

		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if err := ProtocolFiles.Put(ctx.Request.Context(), key, reader, file.Size, contentType); err != nil {
			log.Printf("Failed to store protocol file: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store protocol file"})
			return
		}

		input.ProtocolFilename = file.Filename
		input.ProtocolStorageKey = key
	}

	sample, err := samples.NewManager(db.DB).Create(project.ID, input)

	if err != nil {
		// Undo the upload when validation rejected the sample.
		if input.ProtocolStorageKey != "" && ProtocolFiles != nil {
			if delErr := ProtocolFiles.Delete(context.Background(), input.ProtocolStorageKey); delErr != nil {
				log.Printf("Failed to delete orphaned protocol object %s: %v", input.ProtocolStorageKey, delErr)
			}
		}
		writeDomainError(ctx, err)
		return
	}

	var technician models.User

	if err := db.DB.First(&technician, sample.TechnicianID).Error; err == nil {
		go services.NotifySampleAssigned(sample, technician.Name)

		sampleID := sample.ID
		notification := models.Notification{
			UserID:   technician.ID,
			SampleID: &sampleID,
			Kind:     models.NotificationSampleAssigned,
			Message:  fmt.Sprintf("Sample %s (%s) was assigned to you", sample.Name, sample.Identification),
		}

		if err := db.DB.Create(&notification).Error; err != nil {
			log.Printf("Failed to create assignment notification: %v", err)
		}
	}

	BroadcastRefresh(fmt.Sprint(project.ID))

	ctx.JSON(http.StatusCreated, sampleResponse(sample, ""))
}

func ListSamples(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, _, err := loadProjectTarget(projectID); err != nil {
		writeDomainError(ctx, err)
		return
	}

	list, err := samples.NewManager(db.DB).ListByProject(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	response := make([]SampleResponse, 0, len(list))

	for i := range list {
		response = append(response, sampleResponse(&list[i], ""))
	}

	ctx.JSON(http.StatusOK, response)
}

func GetSample(ctx *gin.Context) {
	sampleID, err := utils.GetSampleID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sample, err := samples.NewManager(db.DB).Get(sampleID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	protocolURL := ""

	if sample.ProtocolStorageKey != "" && ProtocolFiles != nil {
		url, err := ProtocolFiles.PresignGet(ctx.Request.Context(), sample.ProtocolStorageKey, presignExpiry)

		if err != nil {
			log.Printf("Failed to presign protocol file: %v", err)
		} else {
			protocolURL = url
		}
	}

	ctx.JSON(http.StatusOK, sampleResponse(sample, protocolURL))
}

// UpdateSample patches descriptive fields; status and analysis fields have
// their own endpoints gated on the assigned technician.
func UpdateSample(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sampleID, err := utils.GetSampleID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	manager := samples.NewManager(db.DB)

	sample, err := manager.Get(sampleID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	_, target, err := loadProjectTarget(sample.ProjectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		policy.ActionEditSample,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	var body UpdateSampleRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	updated, err := manager.UpdateDetails(sampleID, samples.UpdateDetailsInput{
		Name:              body.Name,
		Description:       body.Description,
		StorageConditions: body.StorageConditions,
		Quantity:          body.Quantity,
		Unit:              body.Unit,
		ExpirationDate:    body.ExpirationDate,
		ClearExpiration:   body.ClearExpiration,
	})

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, sampleResponse(updated, ""))
}

// UpdateSampleStatus drives the state machine: "In Analysis" starts the
// analysis, "Failed" records a failure. "Analyzed" is only reachable through
// the analysis report endpoint.
func UpdateSampleStatus(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sampleID, err := utils.GetSampleID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateSampleStatusRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	manager := samples.NewManager(db.DB)

	var sample *models.Sample

	switch body.Status {
	case models.SampleStatusInAnalysis:
		sample, err = manager.StartAnalysis(sampleID, currentUser.ID)
	case models.SampleStatusFailed:
		sample, err = manager.MarkFailed(sampleID, currentUser.ID, body.Reason)
	case models.SampleStatusAnalyzed:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Submit an analysis report to mark a sample as Analyzed"})
		return
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sample status"})
		return
	}

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	if sample.Status == models.SampleStatusFailed {
		go services.NotifySampleFailed(sample)
	}

	BroadcastRefresh(fmt.Sprint(sample.ProjectID))

	ctx.JSON(http.StatusOK, sampleResponse(sample, ""))
}

func SubmitAnalysisReport(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sampleID, err := utils.GetSampleID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body SubmitAnalysisReportRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	sample, err := samples.NewManager(db.DB).SubmitAnalysisReport(sampleID, currentUser.ID, body.Content)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	BroadcastRefresh(fmt.Sprint(sample.ProjectID))

	ctx.JSON(http.StatusOK, sampleResponse(sample, ""))
}

// DeleteSample is a restricted delete path: team lead only.
func DeleteSample(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sampleID, err := utils.GetSampleID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, target, err := loadProjectTarget(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		policy.ActionDeleteSample,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	manager := samples.NewManager(db.DB)

	sample, err := manager.Get(sampleID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	if sample.ProjectID != projectID {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "sample not found"})
		return
	}

	if err := manager.Delete(sampleID); err != nil {
		writeDomainError(ctx, err)
		return
	}

	if sample.ProtocolStorageKey != "" && ProtocolFiles != nil {
		if err := ProtocolFiles.Delete(context.Background(), sample.ProtocolStorageKey); err != nil {
			log.Printf("Failed to delete protocol object %s: %v", sample.ProtocolStorageKey, err)
		}
	}

	BroadcastRefresh(fmt.Sprint(projectID))

	ctx.Status(http.StatusNoContent)
}
