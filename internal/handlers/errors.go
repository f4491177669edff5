package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labmetrixis/labmetrixis/internal/domain"
)

// writeDomainError maps the domain error taxonomy onto HTTP statuses. Reasons
// travel through unmodified so the UI can display them as-is.
func writeDomainError(ctx *gin.Context, err error) {
	if ve, ok := domain.IsValidation(err); ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": ve.Violations})
		return
	}

	if domain.IsInvalidTransition(err) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if domain.IsForbidden(err) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	if domain.IsNotFound(err) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Internal error: %v", err)
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
