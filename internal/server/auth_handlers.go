package server

import (
	"circle/internal/models"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	FullName string `json:"full_name" form:"full_name"`
	Bio      string `json:"bio" form:"bio"`
}

// Register handles POST /auth/register (multipart, photo_profile file required).
// @Summary Register
// @Description Create an account with a required profile photo
// @Tags auth
// @Accept mpfd
// @Produce json
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param password formData string true "Password, 6 to 72 bytes"
// @Param full_name formData string true "Full name"
// @Param bio formData string false "Bio"
// @Param photo_profile formData file true "Profile image"
// @Success 201 {object} object{message=string,token=string,user=models.Profile}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if formFile(c, "photo_profile") == nil {
		return respondError(c, models.NewValidationError("Please upload a profile image"))
	}

	photo, err := s.storeUpload(c, "photo_profile")
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Bio:          req.Bio,
		PhotoProfile: photo,
	})
	if err != nil {
		s.uploadService.Remove(photo)
		return respondError(c, err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user.Profile(),
		"token":   token,
	})
}

// Login handles POST /auth/login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Credentials"
// @Success 200 {object} object{message=string,token=string,user=models.Profile}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"message": "Login success",
		"token":   token,
		"user":    user.Profile(),
	})
}

// CheckAuth handles GET /auth/check
// @Summary Check session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user=models.Profile}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/check [get]
func (s *Server) CheckAuth(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		// A valid token for a deleted account is not a session.
		if models.HasCode(err, models.CodeNotFound) {
			return respondError(c, models.NewUnauthorizedError("User no longer exists"))
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user": user.Profile()})
}

// Me handles GET /auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string,user=models.Profile}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return respondError(c, models.NewUnauthorizedError("User no longer exists"))
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Authenticated",
		"user":    user.Profile(),
	})
}
