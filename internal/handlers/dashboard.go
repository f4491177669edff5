package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/reports"
	"github.com/labmetrixis/labmetrixis/internal/utils"
)

type SamplesSummary struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InAnalysis int64 `json:"in_analysis"`
	Analyzed   int64 `json:"analyzed"`
	Failed     int64 `json:"failed"`
}

type DashboardResponse struct {
	Project        ProjectResponse          `json:"project"`
	SamplesSummary SamplesSummary           `json:"samples_summary"`
	RecentSamples  []SampleResponse         `json:"recent_samples"`
	ReportVersions []reports.VersionSummary `json:"report_versions"`
	MemberCount    int64                    `json:"member_count"`
}

// GetDashboard aggregates the per-project view the role dashboards render:
// sample status counts, latest samples and the published version history.
func GetDashboard(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, _, err := loadProjectTarget(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	summary := SamplesSummary{}

	statusCounts := []struct {
		Status string
		Count  int64
	}{}

	err = db.DB.Model(&models.Sample{}).
		Select("status, count(*) AS count").
		Where("project_id = ?", project.ID).
		Group("status").
		Scan(&statusCounts).Error

	if err != nil {
		log.Printf("Failed to aggregate sample statuses: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	for _, row := range statusCounts {
		summary.Total += row.Count

		switch row.Status {
		case models.SampleStatusPending:
			summary.Pending = row.Count
		case models.SampleStatusInAnalysis:
			summary.InAnalysis = row.Count
		case models.SampleStatusAnalyzed:
			summary.Analyzed = row.Count
		case models.SampleStatusFailed:
			summary.Failed = row.Count
		}
	}

	var recent []models.Sample

	err = db.DB.Where("project_id = ?", project.ID).
		Order("created_at DESC").
		Limit(5).
		Find(&recent).Error

	if err != nil {
		log.Printf("Failed to load recent samples: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	recentResponses := make([]SampleResponse, 0, len(recent))

	for i := range recent {
		recentResponses = append(recentResponses, sampleResponse(&recent[i], ""))
	}

	versions, err := reports.NewManager(db.DB).ListVersions(project.ID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	var memberCount int64

	err = db.DB.Model(&models.ProjectMembership{}).
		Where("project_id = ?", project.ID).
		Count(&memberCount).Error

	if err != nil {
		log.Printf("Failed to count team members: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	ctx.JSON(http.StatusOK, DashboardResponse{
		Project:        projectResponse(project),
		SamplesSummary: summary,
		RecentSamples:  recentResponses,
		ReportVersions: versions,
		MemberCount:    memberCount,
	})
}
