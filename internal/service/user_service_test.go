package service

import (
	"context"
	"strings"
	"testing"

	"circle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:     "alice",
		Email:        "Alice@Example.com ",
		Password:     "secret123",
		FullName:     "Alice Liddell",
		PhotoProfile: "1700000000000-deadbeef.png",
	}
}

func TestUserService_Register(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	user, err := f.users.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret123", user.Password)

	dupName := validRegistration()
	dupName.Email = "other@example.com"
	_, err = f.users.Register(ctx, dupName)
	assertAppErrorCode(t, err, models.CodeConflict)

	dupEmail := validRegistration()
	dupEmail.Username = "alice2"
	_, err = f.users.Register(ctx, dupEmail)
	assertAppErrorCode(t, err, models.CodeConflict)
}

func TestUserService_Register_Validation(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		msg    string
	}{
		{name: "short username", mutate: func(in *RegisterInput) { in.Username = "al" }, msg: "username must be at least 3 characters"},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "nope" }, msg: "email must be a valid email address"},
		{name: "short password", mutate: func(in *RegisterInput) { in.Password = "12345" }, msg: "password must be at least 6 characters"},
		{name: "password over 72 bytes", mutate: func(in *RegisterInput) { in.Password = strings.Repeat("€", 30) }, msg: "password must be at most 72 bytes"},
		{name: "missing full name", mutate: func(in *RegisterInput) { in.FullName = "  " }, msg: "full_name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := f.users.Register(context.Background(), in)
			assertAppErrorCode(t, err, models.CodeValidation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	registered, err := f.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	user, err := f.users.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = f.users.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-pass"})
	assertAppErrorCode(t, err, models.CodeUnauthorized)

	_, err = f.users.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "secret123"})
	assertAppErrorCode(t, err, models.CodeUnauthorized)

	_, err = f.users.Login(ctx, LoginInput{Email: "", Password: "secret123"})
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	registered, err := f.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	bio := "  down the rabbit hole  "
	updated, err := f.users.UpdateProfile(ctx, UpdateProfileInput{UserID: registered.ID, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "down the rabbit hole", updated.Bio)
	assert.Equal(t, "Alice Liddell", updated.FullName)

	short := "Al"
	_, err = f.users.UpdateProfile(ctx, UpdateProfileInput{UserID: registered.ID, FullName: &short})
	assertAppErrorCode(t, err, models.CodeValidation)

	_, err = f.users.UpdateProfile(ctx, UpdateProfileInput{UserID: 999, Bio: &bio})
	assertAppErrorCode(t, err, models.CodeNotFound)

	// The password hash survives a profile update.
	_, err = f.users.Login(ctx, LoginInput{Email: "alice@example.com", Password: "secret123"})
	assert.NoError(t, err)

	profile, err := f.users.GetProfile(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "down the rabbit hole", profile.Bio)
	assert.Empty(t, profile.Password)
}
