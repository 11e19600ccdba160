package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelgrid/gridauth/internal/api/handlers"
	"github.com/fuelgrid/gridauth/internal/middleware"
)

type Router struct {
	app            *fiber.App
	authHandler    *handlers.AuthHandler
	sessionHandler *handlers.SessionHandler
	authMiddleware *middleware.AuthMiddleware
	loginLimiter   *middleware.LoginLimiter
}

func NewRouter(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	authMiddleware *middleware.AuthMiddleware,
	loginLimiter *middleware.LoginLimiter,
) *Router {
	return &Router{
		app:            app,
		authHandler:    authHandler,
		sessionHandler: sessionHandler,
		authMiddleware: authMiddleware,
		loginLimiter:   loginLimiter,
	}
}

func (r *Router) SetupRoutes() {
	// Public routes
	r.app.Post("/api/v1/login", r.loginLimiter.Limit(), r.authHandler.Login)
	r.app.Post("/api/v1/refresh", r.authHandler.Refresh)
	r.app.Post("/api/v1/validate-token", r.authHandler.ValidateToken)

	// Protected routes
	protected := r.app.Group("/api/v1", r.authMiddleware.Authenticate())
	protected.Post("/logout", r.authHandler.Logout)
	protected.Get("/me", r.authHandler.Me)
	protected.Get("/me/menu", r.authHandler.Menu)
	protected.Put("/me/password", r.authHandler.ChangePassword)
	protected.Put("/me/profile", r.authHandler.UpdateProfile)
	protected.Get("/sessions", r.sessionHandler.ListSessions)
	protected.Delete("/sessions/:session_id", r.sessionHandler.RevokeSession)
	protected.Delete("/sessions", r.sessionHandler.RevokeOtherSessions)
	protected.Get("/admin/users", r.authMiddleware.RequireAdmin(), r.authHandler.ListUsers)
}
