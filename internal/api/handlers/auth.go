package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fuelgrid/gridauth/internal/auth"
	"github.com/fuelgrid/gridauth/internal/middleware"
	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/session"
	"github.com/fuelgrid/gridauth/internal/storage"
	"github.com/fuelgrid/gridauth/internal/validation"
)

type AuthHandler struct {
	svc   *auth.Service
	store storage.Storage
}

func NewAuthHandler(svc *auth.Service, store storage.Storage) *AuthHandler {
	return &AuthHandler{svc: svc, store: store}
}

func userResponse(u *roles.ResolvedUser) models.UserResponse {
	return models.UserResponse{
		ID:          u.User.ID,
		TenantID:    u.User.TenantID,
		Email:       u.User.Email,
		DisplayName: u.User.DisplayName,
		Phone:       u.User.Phone,
		Status:      u.User.Status,
		RoleCode:    u.Code,
		RoleID:      u.RoleID,
		Permissions: u.Permissions,
		LastLogin:   u.User.LastLogin,
	}
}

// authError maps service errors to responses. Credential rejections get
// one generic message regardless of cause; store failures block access
// outright instead of degrading.
func authError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	case errors.Is(err, auth.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "System unavailable, access blocked",
		})
	case errors.Is(err, session.ErrSessionExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Session expired",
		})
	case errors.Is(err, session.ErrSessionInvalid):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Session invalid",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal error",
		})
	}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	user, sess, token, err := h.svc.Authenticate(c.Context(), req.Email, req.Password)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(models.LoginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		SessionID: sess.ID,
		User:      userResponse(user),
	})
}

type refreshRequest struct {
	Token string `json:"token" validate:"required"`
}

// Refresh slides the session's access window forward and returns a fresh
// token. It accepts expired tokens; the session's refresh ceiling is the
// real boundary.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	claims, err := h.svc.Sessions().Parse(req.Token)
	if err != nil {
		return authError(c, err)
	}

	sess, token, err := h.svc.Sessions().Refresh(c.Context(), claims.SessionID)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": sess.ExpiresAt,
		"session_id": sess.ID,
	})
}

type validateTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ValidateToken checks a token against the store and returns the user with
// a freshly resolved role, so permission changes show up immediately.
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	var req validateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	claims, err := h.svc.Sessions().Parse(req.Token)
	if err != nil {
		return authError(c, err)
	}

	sess, err := h.svc.Sessions().Validate(c.Context(), claims.SessionID)
	if err != nil {
		return authError(c, err)
	}

	user, err := h.svc.CurrentUser(c.Context(), sess.UserID)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(fiber.Map{
		"valid":      true,
		"user":       userResponse(user),
		"expires_at": sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess := c.Locals(middleware.LocalSession).(*models.Session)
	if err := h.svc.Sessions().Invalidate(c.Context(), sess.ID); err != nil {
		return authError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)
	return c.JSON(userResponse(user))
}

// Menu returns the derived UI-visibility flags for the current user.
func (h *AuthHandler) Menu(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)
	return c.JSON(fiber.Map{
		"role_name": roles.DisplayName(user.Code),
		"menu":      roles.Visibility(user),
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword rotates the password and invalidates every session of the
// user, including the one making the request.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.svc.ChangePassword(c.Context(), user.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return authError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Password changed, all sessions invalidated",
	})
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.svc.UpdateDisplayName(c.Context(), user.User.ID, req.DisplayName); err != nil {
		return authError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated",
	})
}

// ListUsersRequest represents the query parameters for listing users
type ListUsersRequest struct {
	Page     int    `query:"page" validate:"min=1"`
	PageSize int    `query:"page_size" validate:"min=1,max=100"`
	Search   string `query:"search"`
}

// ListUsersResponse represents the response for listing users
type ListUsersResponse struct {
	Users      []models.UserResponse `json:"users"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// ListUsers pages through the tenant's users with their resolved roles.
// Admin only.
func (h *AuthHandler) ListUsers(c *fiber.Ctx) error {
	caller := c.Locals(middleware.LocalUser).(*roles.ResolvedUser)

	var req ListUsersRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query parameters",
		})
	}

	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	users, total, err := h.store.ListUsers(c.Context(), caller.User.TenantID, req.Page, req.PageSize, req.Search)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	resp := ListUsersResponse{
		Users:    make([]models.UserResponse, 0, len(users)),
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	for i := range users {
		resp.Users = append(resp.Users, userResponse(roles.ResolveUser(&users[i])))
	}
	resp.TotalPages = int(total) / req.PageSize
	if int(total)%req.PageSize > 0 {
		resp.TotalPages++
	}

	return c.JSON(resp)
}
