package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/policy"
	"github.com/labmetrixis/labmetrixis/internal/reports"
	"github.com/labmetrixis/labmetrixis/internal/utils"
)

type SaveDraftRequest struct {
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at"`
}

type PublishReportRequest struct {
	Content     string     `json:"content" binding:"required"`
	PublishDate *time.Time `json:"publish_date"`
}

type CreateReportEntryRequest struct {
	Type     string `json:"type" binding:"required"`
	Content  string `json:"content" binding:"required"`
	SampleID *uint  `json:"sample_id"`
}

type ReportVersionResponse struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"project_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportEntryResponse struct {
	ID          uint      `json:"id"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	CreatedByID uint      `json:"created_by"`
	ProjectID   uint      `json:"project_id"`
	SampleID    *uint     `json:"sample_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// authorizeReportAction loads the project target and checks the action for
// the current user, writing the response itself on failure.
func authorizeReportAction(ctx *gin.Context, action policy.Action) (uint, bool) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}

	_, target, err := loadProjectTarget(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return 0, false
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		action,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return 0, false
	}

	return projectID, true
}

// SaveReportDraft overwrites the working draft without touching the version
// history. Restoring an old version is this same call with loaded content.
func SaveReportDraft(ctx *gin.Context) {
	projectID, ok := authorizeReportAction(ctx, policy.ActionEditReportDraft)

	if !ok {
		return
	}

	var body SaveDraftRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, err := reports.NewManager(db.DB).SaveDraft(projectID, body.Content, body.PublishedAt)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"content":      project.FinalReportContent,
		"published_at": project.FinalReportPublishedAt,
	})
}

// PublishReport freezes the draft into a new immutable version.
func PublishReport(ctx *gin.Context) {
	projectID, ok := authorizeReportAction(ctx, policy.ActionPublishReport)

	if !ok {
		return
	}

	var body PublishReportRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	publishDate := time.Now()

	if body.PublishDate != nil {
		publishDate = *body.PublishDate
	}

	version, err := reports.NewManager(db.DB).Publish(projectID, body.Content, publishDate)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	BroadcastRefresh(fmt.Sprint(projectID))

	ctx.JSON(http.StatusCreated, ReportVersionResponse{
		ID:        version.ID,
		ProjectID: version.ProjectID,
		Content:   version.Content,
		CreatedAt: version.CreatedAt,
	})
}

func ListReportVersions(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	versions, err := reports.NewManager(db.DB).ListVersions(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, versions)
}

func GetReportVersion(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	versionID, err := utils.GetVersionID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := reports.NewManager(db.DB).LoadVersion(projectID, versionID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ReportVersionResponse{
		ID:        version.ID,
		ProjectID: version.ProjectID,
		Content:   version.Content,
		CreatedAt: version.CreatedAt,
	})
}

// CreateReportEntry appends to the standalone report log, independent of the
// project's versioned final report.
func CreateReportEntry(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, ok := authorizeReportAction(ctx, policy.ActionLogReport)

	if !ok {
		return
	}

	var body CreateReportEntryRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if body.Type != models.ReportTypeSample && body.Type != models.ReportTypeProject {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Report type must be Sample or Project"})
		return
	}

	if body.Type == models.ReportTypeSample && body.SampleID == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "A sample reference is required for Sample reports"})
		return
	}

	if body.SampleID != nil {
		var sample models.Sample

		if err := db.DB.Where("id = ? AND project_id = ?", *body.SampleID, projectID).First(&sample).Error; err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "sample not found"})
			return
		}
	}

	entry := models.Report{
		Type:        body.Type,
		Content:     body.Content,
		CreatedByID: currentUser.ID,
		ProjectID:   projectID,
		SampleID:    body.SampleID,
	}

	if err := db.DB.Create(&entry).Error; err != nil {
		log.Printf("Failed to create report entry: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}

	ctx.JSON(http.StatusCreated, ReportEntryResponse{
		ID:          entry.ID,
		Type:        entry.Type,
		Content:     entry.Content,
		CreatedByID: entry.CreatedByID,
		ProjectID:   entry.ProjectID,
		SampleID:    entry.SampleID,
		CreatedAt:   entry.CreatedAt,
	})
}

func ListReportEntries(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, _, err := loadProjectTarget(projectID); err != nil {
		writeDomainError(ctx, err)
		return
	}

	var entries []models.Report

	if err := db.DB.Where("project_id = ?", projectID).Order("created_at ASC").Find(&entries).Error; err != nil {
		log.Printf("Failed to list report entries: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}

	response := make([]ReportEntryResponse, 0, len(entries))

	for _, entry := range entries {
		response = append(response, ReportEntryResponse{
			ID:          entry.ID,
			Type:        entry.Type,
			Content:     entry.Content,
			CreatedByID: entry.CreatedByID,
			ProjectID:   entry.ProjectID,
			SampleID:    entry.SampleID,
			CreatedAt:   entry.CreatedAt,
		})
	}

	ctx.JSON(http.StatusOK, response)
}
