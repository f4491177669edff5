package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/internal/handlers"
	"github.com/labmetrixis/labmetrixis/internal/middleware"
	"github.com/labmetrixis/labmetrixis/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:project_id", middleware.AuthMiddleware(), handlers.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.CreateUser)
			auth.POST("/login", handlers.LoginUser)
			auth.POST("/logout", handlers.LogoutUser)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.PATCH("/me", middleware.AuthMiddleware(), handlers.UpdateUser)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.POST("", handlers.CreateProject)
			projects.GET("", handlers.ListProjects)
			projects.GET("/:project_id", handlers.GetProject)
			projects.PATCH("/:project_id", handlers.UpdateProject)
			projects.DELETE("/:project_id", handlers.DeleteProject)

			// Dashboard endpoint
			projects.GET("/:project_id/dashboard", handlers.GetDashboard)

			// Team membership
			projects.GET("/:project_id/members", handlers.ListTeamMembers)
			projects.POST("/:project_id/members", handlers.AddTeamMember)
			projects.DELETE("/:project_id/members/:user_id", handlers.RemoveTeamMember)

			// Samples attached to the project
			projects.POST("/:project_id/samples", handlers.CreateSample)
			projects.GET("/:project_id/samples", handlers.ListSamples)
			projects.DELETE("/:project_id/samples/:sample_id", handlers.DeleteSample)

			// Final report draft + version history
			projects.PATCH("/:project_id/final-report-draft", handlers.SaveReportDraft)
			projects.PATCH("/:project_id/final-report", handlers.PublishReport)
			projects.GET("/:project_id/report-versions", handlers.ListReportVersions)
			projects.GET("/:project_id/report-versions/:version_id", handlers.GetReportVersion)

			// Standalone report log
			projects.POST("/:project_id/reports", handlers.CreateReportEntry)
			projects.GET("/:project_id/reports", handlers.ListReportEntries)
		}

		samples := api.Group("/samples", middleware.AuthMiddleware())
		{
			samples.GET("/:sample_id", handlers.GetSample)
			samples.PATCH("/:sample_id", handlers.UpdateSample)
			samples.PATCH("/:sample_id/status", handlers.UpdateSampleStatus)
			samples.POST("/:sample_id/analysis-report", handlers.SubmitAnalysisReport)
		}

		notifications := api.Group("/notifications", middleware.AuthMiddleware())
		{
			notifications.GET("", handlers.ListNotifications)
			notifications.POST("/:notification_id/read", handlers.MarkNotificationRead)
		}
	}

	return r
}
