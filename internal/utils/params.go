package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func paramUint(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Param(name)

	if raw == "" {
		return 0, errors.New(name + " not found")
	}

	value, err := strconv.ParseUint(raw, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid " + name)
	}

	return uint(value), nil
}

func GetProjectID(ctx *gin.Context) (uint, error) {
	return paramUint(ctx, "project_id")
}

func GetSampleID(ctx *gin.Context) (uint, error) {
	return paramUint(ctx, "sample_id")
}

func GetVersionID(ctx *gin.Context) (uint, error) {
	return paramUint(ctx, "version_id")
}

func GetUserIDParam(ctx *gin.Context) (uint, error) {
	return paramUint(ctx, "user_id")
}

func GetNotificationID(ctx *gin.Context) (uint, error) {
	return paramUint(ctx, "notification_id")
}
