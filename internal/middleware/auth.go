// Package middleware provides authentication, logging, tracing and rate limiting middleware.
package middleware

import (
	"strings"

	"circle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AuthRequired enforces a valid bearer token and stores the caller in c.Locals("userID").
func AuthRequired(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization header required"))
		}
		return authenticate(c, tokens, tokenString)
	}
}

// WebSocketAuthRequired accepts the token from the "token" query parameter,
// falling back to the Authorization header.
func WebSocketAuthRequired(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Query("token")
		if tokenString == "" {
			var ok bool
			tokenString, ok = bearerToken(c.Get(fiber.HeaderAuthorization))
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token required"))
			}
		}
		return authenticate(c, tokens, tokenString)
	}
}

func authenticate(c *fiber.Ctx, tokens *TokenManager, tokenString string) error {
	userID, err := tokens.Parse(tokenString)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired token"))
	}

	c.Locals("userID", userID)
	c.SetUserContext(ContextWithUserID(c.UserContext(), userID))
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// UserIDFrom returns the authenticated user stored by AuthRequired.
func UserIDFrom(c *fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("userID").(uint)
	return userID, ok && userID != 0
}
