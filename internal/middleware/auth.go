package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stitchworks/api/internal/auth"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/pkg/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Authenticate validates the JWT token from the Authorization header and
// populates the actor locals every handler reads.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		claims, err := auth.ValidateToken(parts[1], m.jwtSecret)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("role", string(claims.Role))
		return c.Next()
	}
}

// GatewayAuthMiddleware reads user identity from X-User-* headers set by
// the gateway's ForwardAuth and populates the same locals.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals("userId", userID)
		c.Locals("email", c.Get("X-User-Email"))
		c.Locals("role", c.Get("X-User-Role"))
		return c.Next()
	}
}

// GetUserID returns the authenticated user id from context locals.
func GetUserID(c *fiber.Ctx) string {
	if v, ok := c.Locals("userId").(string); ok {
		return v
	}
	return ""
}

// Actor builds the policy actor for the authenticated request.
func Actor(c *fiber.Ctx) policy.Actor {
	role, _ := c.Locals("role").(string)
	return policy.Actor{
		ID:   GetUserID(c),
		Role: model.Role(role),
	}
}
