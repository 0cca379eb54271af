package server

import (
	"circle/internal/models"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get my profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Router /api/users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user.Profile())
}

// UpdateMyProfile handles PUT /api/users/me (JSON or multipart with an optional photo_profile).
// @Summary Update my profile
// @Tags users
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param full_name formData string false "Full name"
// @Param bio formData string false "Bio"
// @Param photo_profile formData file false "Profile image"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /api/users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		FullName *string `json:"full_name" form:"full_name"`
		Bio      *string `json:"bio" form:"bio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	previous, err := s.userService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	photo, err := s.storeUpload(c, "photo_profile")
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:       userID,
		FullName:     req.FullName,
		Bio:          req.Bio,
		PhotoProfile: photo,
	})
	if err != nil {
		s.uploadService.Remove(photo)
		return respondError(c, err)
	}
	if photo != "" && previous.PhotoProfile != photo {
		s.uploadService.Remove(previous.PhotoProfile)
	}

	return c.JSON(user.Profile())
}
