// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/kazuhito/yoyaku/internal/config"
	"github.com/kazuhito/yoyaku/internal/handler"
	"github.com/kazuhito/yoyaku/internal/middleware"
	"github.com/kazuhito/yoyaku/internal/model"
)

// Handlers bundles everything the router wires up.
type Handlers struct {
	Auth         *handler.AuthHandler
	Command      *handler.CommandHandler
	Reservation  *handler.ReservationHandler
	Availability *handler.AvailabilityHandler
}

// Register attaches all routes. The booking write path and the
// availability read path are public (guests book without accounts);
// rule authoring sits behind JWT + OPERATOR role. Rate limiting applies
// to the public surface, and only the availability read is response-
// cached.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	respCache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	v1 := e.Group("/v1")

	v1.POST("/auth/login", h.Auth.Login, rateLimit)

	// Guest-facing booking surface.
	v1.POST("/reservations", h.Reservation.Create, rateLimit)
	v1.GET("/reservations/:id", h.Reservation.Get, rateLimit)
	v1.DELETE("/reservations/:id", h.Reservation.Cancel, rateLimit)
	v1.GET("/stores/:id/availability", h.Availability.Get, rateLimit, respCache)

	// Operator surface: command channel and rule listing.
	ops := v1.Group("", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(model.RoleOperator))
	ops.POST("/commands", h.Command.Execute)
	ops.GET("/rules", h.Command.ListRules)
	ops.GET("/reservations", h.Reservation.List)
}
