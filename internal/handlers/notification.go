package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/utils"
)

type NotificationResponse struct {
	ID        uint       `json:"id"`
	SampleID  *uint      `json:"sample_id,omitempty"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// ListNotifications is the endpoint the client polls; unread first.
func ListNotifications(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var notifications []models.Notification

	err = db.DB.Where("user_id = ?", userID).
		Order("read_at IS NULL DESC, created_at DESC").
		Limit(50).
		Find(&notifications).Error

	if err != nil {
		log.Printf("Failed to retrieve notifications: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	var unread int64

	err = db.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&unread).Error

	if err != nil {
		log.Printf("Failed to count notifications: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	response := make([]NotificationResponse, 0, len(notifications))

	for _, n := range notifications {
		response = append(response, NotificationResponse{
			ID:        n.ID,
			SampleID:  n.SampleID,
			Kind:      n.Kind,
			Message:   n.Message,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"unread_count":  unread,
		"notifications": response,
	})
}

func MarkNotificationRead(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	notificationID, err := utils.GetNotificationID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := db.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", time.Now())

	if result.Error != nil {
		log.Printf("Failed to mark notification read: %v", result.Error)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	if result.RowsAffected == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
