package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"circle/internal/models"
	"circle/internal/repository"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxBioLen = 500
	// bcrypt rejects inputs longer than this many bytes.
	maxPasswordBytes = 72
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// UserService handles registration, credential checks and profile edits.
type UserService struct {
	gateway    repository.Gateway
	bcryptCost int
}

type RegisterInput struct {
	Username     string `validate:"required,min=3,max=50"`
	Email        string `validate:"required,email,max=254"`
	Password     string `validate:"required,min=6,max=72"`
	FullName     string `validate:"required,min=3,max=100"`
	Bio          string `validate:"max=500"`
	PhotoProfile string
}

type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type UpdateProfileInput struct {
	UserID   uint
	FullName *string
	Bio      *string
	// PhotoProfile replaces the stored photo when non-empty.
	PhotoProfile string
}

func NewUserService(gateway repository.Gateway) *UserService {
	return &UserService{gateway: gateway, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

// Register creates an account. A taken username or email is a CONFLICT.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Bio = strings.TrimSpace(in.Bio)

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, models.NewValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, models.NewValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Password:     string(hash),
		FullName:     in.FullName,
		Bio:          in.Bio,
		PhotoProfile: in.PhotoProfile,
	}
	if err := s.gateway.Users().Create(ctx, user); err != nil {
		return nil, conflictOr(err, "Username or email already registered")
	}
	return user, nil
}

// Login checks credentials. Unknown email and wrong password are indistinguishable.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.gateway.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	return s.gateway.Users().GetByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.gateway.Users().GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		fullName := strings.TrimSpace(*in.FullName)
		if len([]rune(fullName)) < 3 || len([]rune(fullName)) > 100 {
			return nil, models.NewValidationError("full_name must be between 3 and 100 characters")
		}
		user.FullName = fullName
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = bio
	}
	if in.PhotoProfile != "" {
		user.PhotoProfile = in.PhotoProfile
	}

	if err := s.gateway.Users().UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return models.NewValidationError(describeField(fieldErrs[0]))
	}
	return models.NewValidationError(err.Error())
}

func describeField(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
