package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelgrid/gridauth/internal/auth"
	"github.com/fuelgrid/gridauth/internal/middleware"
	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/storage"
)

// SessionHandler exposes a user's own sessions for review and revocation.
type SessionHandler struct {
	svc   *auth.Service
	store storage.Storage
}

func NewSessionHandler(svc *auth.Service, store storage.Storage) *SessionHandler {
	return &SessionHandler{svc: svc, store: store}
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)

	sessions, err := h.store.ListUserSessions(c.Context(), user.User.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	current := c.Locals(middleware.LocalSession).(*models.Session)
	type sessionView struct {
		models.Session
		Current bool `json:"current"`
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{Session: s, Current: s.ID == current.ID})
	}

	return c.JSON(fiber.Map{
		"sessions": views,
	})
}

// RevokeSession deactivates one of the caller's sessions.
func (h *SessionHandler) RevokeSession(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)

	sessionID := c.Params("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	sess, err := h.store.GetSession(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}
	if sess.UserID != user.User.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Access denied to this session",
		})
	}

	if err := h.svc.Sessions().Invalidate(c.Context(), sessionID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to revoke session",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Session revoked",
	})
}

// RevokeOtherSessions deactivates every session of the caller except the
// current one.
func (h *SessionHandler) RevokeOtherSessions(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)
	current := c.Locals(middleware.LocalSession).(*models.Session)

	sessions, err := h.store.ListUserSessions(c.Context(), user.User.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	revoked := 0
	for _, s := range sessions {
		if s.ID == current.ID {
			continue
		}
		if err := h.svc.Sessions().Invalidate(c.Context(), s.ID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to revoke session",
			})
		}
		revoked++
	}

	return c.JSON(fiber.Map{
		"message": "Other sessions revoked",
		"revoked": revoked,
	})
}
