package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fuelgrid/gridauth/internal/auth"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/session"
)

// Locals keys set by Authenticate.
const (
	LocalUser    = "user"
	LocalSession = "session"
)

type AuthMiddleware struct {
	svc *auth.Service
}

func NewAuthMiddleware(svc *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{svc: svc}
}

// Authenticate validates the bearer token, checks the session against the
// store and re-fetches the user with a fresh role resolution. The user is
// never taken from the token alone, so role changes apply immediately.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := m.svc.Sessions().Parse(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		sess, err := m.svc.Sessions().Validate(c.Context(), claims.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionExpired):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Session expired",
				})
			case errors.Is(err, session.ErrSessionInvalid):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Session invalid",
				})
			default:
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Authorization service unavailable",
				})
			}
		}

		user, err := m.svc.CurrentUser(c.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, auth.ErrStoreUnavailable) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Authorization service unavailable",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session invalid",
			})
		}

		c.Locals(LocalUser, user)
		c.Locals(LocalSession, sess)
		return c.Next()
	}
}

// RequirePermission rejects requests whose user lacks the permission.
func (m *AuthMiddleware) RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(LocalUser).(*roles.ResolvedUser)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found in context",
			})
		}
		if !roles.HasPermission(user, perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}
		return c.Next()
	}
}

// RequireAdmin rejects non-administrators.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(LocalUser).(*roles.ResolvedUser)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found in context",
			})
		}
		if !roles.IsAdmin(user) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}
		return c.Next()
	}
}
