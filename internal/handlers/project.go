package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/domain"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/policy"
	"github.com/labmetrixis/labmetrixis/internal/utils"
	"gorm.io/gorm"
)

type CreateProjectRequest struct {
	Name                      string     `json:"name" binding:"required"`
	Description               string     `json:"description"`
	ResearchDomain            string     `json:"research_domain"`
	Budget                    float64    `json:"budget"`
	StartDate                 *time.Time `json:"start_date"`
	Deadline                  *time.Time `json:"deadline"`
	CollaboratingInstitutions []string   `json:"collaborating_institutions"`
}

type UpdateProjectRequest struct {
	Name                      string     `json:"name"`
	Description               *string    `json:"description"`
	ResearchDomain            *string    `json:"research_domain"`
	Budget                    *float64   `json:"budget"`
	StartDate                 *time.Time `json:"start_date"`
	Deadline                  *time.Time `json:"deadline"`
	Status                    string     `json:"status"`
	CollaboratingInstitutions []string   `json:"collaborating_institutions"`
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type ProjectResponse struct {
	ID                        uint       `json:"id"`
	Name                      string     `json:"name"`
	Description               string     `json:"description"`
	ResearchDomain            string     `json:"research_domain"`
	Budget                    float64    `json:"budget"`
	StartDate                 *time.Time `json:"start_date"`
	Deadline                  *time.Time `json:"deadline"`
	Status                    string     `json:"status"`
	TeamLeadID                uint       `json:"team_lead_id"`
	CollaboratingInstitutions []string   `json:"collaborating_institutions"`
	FinalReportPublishedAt    *time.Time `json:"final_report_published_at"`
}

type MemberSummary struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func projectResponse(project *models.Project) ProjectResponse {
	var institutions []string

	if len(project.CollaboratingInstitutions) > 0 {
		if err := json.Unmarshal(project.CollaboratingInstitutions, &institutions); err != nil {
			log.Printf("Failed to decode collaborating institutions for project %d: %v", project.ID, err)
		}
	}

	return ProjectResponse{
		ID:                        project.ID,
		Name:                      project.Name,
		Description:               project.Description,
		ResearchDomain:            project.ResearchDomain,
		Budget:                    project.Budget,
		StartDate:                 project.StartDate,
		Deadline:                  project.Deadline,
		Status:                    project.Status,
		TeamLeadID:                project.TeamLeadID,
		CollaboratingInstitutions: institutions,
		FinalReportPublishedAt:    project.FinalReportPublishedAt,
	}
}

// loadProjectTarget fetches a project and the relationships the access policy
// evaluates against.
func loadProjectTarget(projectID uint) (*models.Project, policy.Target, error) {
	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.Target{}, &domain.NotFoundError{Resource: "project"}
		}
		return nil, policy.Target{}, err
	}

	var memberIDs []uint

	err := db.DB.Model(&models.ProjectMembership{}).
		Where("project_id = ?", project.ID).
		Pluck("user_id", &memberIDs).Error

	if err != nil {
		return nil, policy.Target{}, err
	}

	return &project, policy.Target{TeamLeadID: project.TeamLeadID, MemberIDs: memberIDs}, nil
}

func CreateProject(ctx *gin.Context) {
	var body CreateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		policy.ActionCreateProject,
		policy.Target{},
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	institutions, err := json.Marshal(body.CollaboratingInstitutions)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid collaborating institutions"})
		return
	}

	project := models.Project{
		Name:                      body.Name,
		Description:               body.Description,
		ResearchDomain:            body.ResearchDomain,
		Budget:                    body.Budget,
		StartDate:                 body.StartDate,
		Deadline:                  body.Deadline,
		Status:                    models.ProjectStatusPlanning,
		TeamLeadID:                currentUser.ID,
		CollaboratingInstitutions: institutions,
	}

	if err := db.DB.Create(&project).Error; err != nil {
		log.Printf("Failed to create project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	ctx.JSON(http.StatusCreated, projectResponse(&project))
}

// ListProjects returns the projects the user leads or belongs to.
func ListProjects(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var projects []models.Project

	err = db.DB.
		Where("team_lead_id = ?", userID).
		Or("id IN (?)", db.DB.Model(&models.ProjectMembership{}).Select("project_id").Where("user_id = ?", userID)).
		Find(&projects).Error

	if err != nil {
		log.Printf("Failed to retrieve projects: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
		return
	}

	response := make([]ProjectResponse, 0, len(projects))

	for i := range projects {
		response = append(response, projectResponse(&projects[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func GetProject(ctx *gin.Context) {
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

	ctx.JSON(http.StatusOK, projectResponse(project))
}

func UpdateProject(ctx *gin.Context) {
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

	var body UpdateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, target, err := loadProjectTarget(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		policy.ActionEditProject,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	updates := make(map[string]interface{})

	if body.Name != "" {
		updates["name"] = body.Name
	}

	if body.Description != nil {
		updates["description"] = *body.Description
	}

	if body.ResearchDomain != nil {
		updates["research_domain"] = *body.ResearchDomain
	}

	if body.Budget != nil {
		updates["budget"] = *body.Budget
	}

	if body.StartDate != nil {
		updates["start_date"] = *body.StartDate
	}

	if body.Deadline != nil {
		updates["deadline"] = *body.Deadline
	}

	if body.Status != "" {
		if !models.ValidProjectStatus(body.Status) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project status"})
			return
		}
		updates["status"] = body.Status
	}

	if body.CollaboratingInstitutions != nil {
		institutions, err := json.Marshal(body.CollaboratingInstitutions)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid collaborating institutions"})
			return
		}

		updates["collaborating_institutions"] = institutions
	}

	if len(updates) == 0 {
		ctx.JSON(http.StatusOK, projectResponse(project))
		return
	}

	if err := db.DB.Model(project).Updates(updates).Error; err != nil {
		log.Printf("Failed to update project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	if err := db.DB.First(project, project.ID).Error; err != nil {
		log.Printf("Failed to refresh project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	ctx.JSON(http.StatusOK, projectResponse(project))
}

// DeleteProject cascades: samples (and their protocol files), memberships,
// report versions, report log entries and notifications go with the project.
func DeleteProject(ctx *gin.Context) {
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
		policy.ActionDeleteProject,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	var projectSamples []models.Sample

	if err := db.DB.Where("project_id = ?", project.ID).Find(&projectSamples).Error; err != nil {
		log.Printf("Failed to load project samples: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		sampleIDs := make([]uint, 0, len(projectSamples))
		for _, s := range projectSamples {
			sampleIDs = append(sampleIDs, s.ID)
		}

		if len(sampleIDs) > 0 {
			if err := tx.Where("sample_id IN ?", sampleIDs).Delete(&models.Notification{}).Error; err != nil {
				return err
			}
		}

		for _, model := range []interface{}{&models.Sample{}, &models.ProjectMembership{}, &models.ReportVersion{}, &models.Report{}} {
			if err := tx.Where("project_id = ?", project.ID).Delete(model).Error; err != nil {
				return err
			}
		}

		return tx.Delete(project).Error
	})

	if err != nil {
		log.Printf("Failed to delete project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	// Best-effort: orphaned protocol files are only a storage-cost concern.
	if ProtocolFiles != nil {
		for _, s := range projectSamples {
			if s.ProtocolStorageKey == "" {
				continue
			}
			if err := ProtocolFiles.Delete(context.Background(), s.ProtocolStorageKey); err != nil {
				log.Printf("Failed to delete protocol object %s: %v", s.ProtocolStorageKey, err)
			}
		}
	}

	ctx.Status(http.StatusNoContent)
}

func ListTeamMembers(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, _, err := loadProjectTarget(projectID); err != nil {
		writeDomainError(ctx, err)
		return
	}

	var memberships []models.ProjectMembership

	if err := db.DB.Preload("User").Where("project_id = ?", projectID).Find(&memberships).Error; err != nil {
		log.Printf("Failed to retrieve team members: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve team members"})
		return
	}

	members := make([]MemberSummary, 0, len(memberships))

	for _, m := range memberships {
		members = append(members, MemberSummary{
			UserID: m.UserID,
			Name:   m.User.Name,
			Email:  m.User.Email,
			Role:   m.Role,
		})
	}

	ctx.JSON(http.StatusOK, members)
}

func AddTeamMember(ctx *gin.Context) {
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

	var body AddMemberRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, target, err := loadProjectTarget(projectID)

	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	decision := policy.CanPerform(
		policy.Actor{ID: currentUser.ID, Role: currentUser.Role},
		policy.ActionAddMember,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	var member models.User

	if err := db.DB.First(&member, body.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		} else {
			log.Printf("Failed to fetch user: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	membership := models.ProjectMembership{
		UserID:    member.ID,
		ProjectID: project.ID,
		Role:      body.Role,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		log.Printf("Failed to add team member: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "User is already a member of this project"})
		return
	}

	ctx.JSON(http.StatusCreated, MemberSummary{
		UserID: member.ID,
		Name:   member.Name,
		Email:  member.Email,
		Role:   membership.Role,
	})
}

func RemoveTeamMember(ctx *gin.Context) {
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

	memberID, err := utils.GetUserIDParam(ctx)

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
		policy.ActionRemoveMember,
		target,
	)

	if !decision.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"error": decision.Reason})
		return
	}

	result := db.DB.Where("project_id = ? AND user_id = ?", projectID, memberID).Delete(&models.ProjectMembership{})

	if result.Error != nil {
		log.Printf("Failed to remove team member: %v", result.Error)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove team member"})
		return
	}

	if result.RowsAffected == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "membership not found"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
