package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pengaduan/backend/internal/database"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/repository"
	"github.com/pengaduan/backend/internal/workflow"
	"github.com/pengaduan/backend/pkg/utils"
)

// Locals keys set by AuthRequired.
const (
	LocalUser  = "user"
	LocalActor = "actor"
	LocalToken = "token"
)

// AuthRequired validates the bearer token, rejects blacklisted tokens, loads
// the user and stores both the user and its workflow actor in Locals.
// Loading the full user keeps role and handled service types current even
// when the token is old.
func AuthRequired(jwtManager *utils.JWTManager, sessions *database.SessionStore, userRepo repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization header required")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization header format")
		}
		tokenString := parts[1]

		blacklisted, err := sessions.IsTokenBlacklisted(c.Context(), tokenString)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to verify token")
		}
		if blacklisted {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Token has been revoked")
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		userID, err := uuidFromClaims(claims)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token claims")
		}

		user, err := userRepo.FindByID(c.Context(), userID)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found")
		}
		if !user.IsActive {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Account is disabled")
		}

		c.Locals(LocalUser, user)
		c.Locals(LocalActor, user.Actor())
		c.Locals(LocalToken, tokenString)
		return c.Next()
	}
}

func uuidFromClaims(claims *utils.Claims) (uuid.UUID, error) {
	return uuid.Parse(claims.UserID)
}

// RequireRole gates a route to the given roles. Must run after AuthRequired.
func RequireRole(roles ...workflow.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(LocalUser).(*models.User)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required")
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Insufficient permissions")
	}
}

// CurrentActor returns the workflow actor set by AuthRequired, or a public
// actor when the route ran without authentication.
func CurrentActor(c *fiber.Ctx) workflow.Actor {
	if actor, ok := c.Locals(LocalActor).(workflow.Actor); ok {
		return actor
	}
	return workflow.PublicActor()
}
