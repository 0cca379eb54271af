// Package service implements the feed operations on top of the persistence
// gateway and hands post-commit state to the realtime broadcaster.
package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"circle/internal/models"
	"circle/internal/repository"
)

// normalizeContent trims s and checks it holds 1..MaxContentLength characters.
func normalizeContent(s string) (string, error) {
	content := strings.TrimSpace(s)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		return "", models.NewValidationError(
			fmt.Sprintf("Content too long (max %d characters)", models.MaxContentLength))
	}
	return content, nil
}

// normalizeImage turns an empty reference into nil.
func normalizeImage(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// conflictOr maps a unique violation to CONFLICT and leaves every other error untouched.
func conflictOr(err error, message string) error {
	var violation *repository.ConstraintViolation
	if errors.As(err, &violation) && violation.Kind == repository.ConstraintUnique {
		return models.NewConflictError(message, err)
	}
	return err
}
