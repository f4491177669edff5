package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labmetrixis/labmetrixis/internal/domain"
)

func Test_ValidationError_CollectsAllViolations(t *testing.T) {
	verr := &domain.ValidationError{}

	assert.NoError(t, verr.OrNil())

	verr.Add("name", "name is required").Add("quantity", "quantity must be a positive number")

	err := verr.OrNil()
	assert.Error(t, err)

	ve, ok := domain.IsValidation(err)
	assert.True(t, ok)
	assert.Len(t, ve.Violations, 2)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "quantity must be a positive number")
}

func Test_ErrorKindsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", &domain.ForbiddenError{Reason: "Only researchers can create projects"})
	assert.True(t, domain.IsForbidden(wrapped))
	assert.False(t, domain.IsNotFound(wrapped))

	wrapped = fmt.Errorf("handling request: %w", &domain.InvalidTransitionError{From: "Analyzed", To: "In Analysis"})
	assert.True(t, domain.IsInvalidTransition(wrapped))
	assert.Contains(t, wrapped.Error(), `cannot transition sample from "Analyzed" to "In Analysis"`)

	wrapped = fmt.Errorf("handling request: %w", &domain.NotFoundError{Resource: "project"})
	assert.True(t, domain.IsNotFound(wrapped))
	assert.Contains(t, wrapped.Error(), "project not found")
}
