package api

import (
	"peerdrop/internal/server/config"
	"peerdrop/internal/server/identity"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, provider identity.Provider, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", sessionHeader, nameHeader},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Session bootstrap
	e.POST("/api/session", handler.HandleCreateSession)

	// Authenticated routes
	auth := e.Group("", SessionAuth(provider))
	auth.GET("/api/me", handler.HandleMe)
	auth.POST("/api/uploads", handler.HandleUpload, uploadLimiter.Middleware())
	auth.GET("/api/uploads/:id", handler.HandleGetUpload)
	auth.DELETE("/api/uploads/:id", handler.HandleDeleteUpload)
	auth.GET("/api/reviews/queue", handler.HandleReviewQueue)
	auth.POST("/api/uploads/:id/reviews", handler.HandleCreateReview)
	auth.POST("/api/feedback", handler.HandleFeedback)

	// Administrative routes
	admin := e.Group("/api/admin", AdminAuth(cfg.AdminToken))
	admin.POST("/users/:id/strikes", handler.HandleAddStrike)

	return e
}
