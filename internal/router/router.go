// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/heritix/booking/internal/config"
	"github.com/heritix/booking/internal/handler"
	"github.com/heritix/booking/internal/middleware"
)

// Deps bundles everything route registration needs.  Rdb may be nil,
// in which case rate limiting and response caching are disabled.
type Deps struct {
	Events   *handler.EventHandler
	Seats    *handler.SeatHandler
	Bookings *handler.BookingHandler
	Admin    *handler.AdminHandler

	JWTSecret string
	Rdb       *redis.Client
	RateCfg   config.RateLimitConfig
	CacheCfg  config.CacheConfig
}

// Register attaches the full HTTP surface.  Every /v1 route runs the
// identity middleware so handlers always see a holder id: the JWT
// subject when a valid token is presented, a guest session otherwise.
// Admin routes additionally require the ADMIN role from the token.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.Identity(d.JWTSecret))

	limited := middleware.NewTokenBucket(d.RateCfg, d.Rdb)
	cached := middleware.NewRedisCache(d.CacheCfg, d.Rdb)

	// Public event reads.
	v1.GET("/events/:id/layout", d.Events.GetLayout)
	v1.GET("/events/:id/availability", d.Events.Availability, cached)

	// Claim protocol.  These are the routes buyers hammer while picking
	// seats, so the token bucket sits in front of them.
	v1.POST("/events/:id/hold", d.Seats.Hold, limited)
	v1.POST("/events/:id/lock", d.Seats.Lock, limited)
	v1.POST("/events/:id/release", d.Seats.Release, limited)
	v1.POST("/events/:id/unlock", d.Seats.Unlock, limited)

	// Checkout flow.
	v1.POST("/temp-bookings", d.Bookings.CreateTempBooking, limited)
	v1.GET("/temp-bookings/:id", d.Bookings.GetTempBooking)
	v1.DELETE("/temp-bookings/:id", d.Bookings.CancelTempBooking)
	v1.POST("/temp-bookings/:id/order", d.Bookings.CreateOrder)
	v1.POST("/temp-bookings/:id/convert", d.Bookings.Convert)

	// Permanent bookings.
	v1.GET("/my-bookings", d.Bookings.ListMyBookings)
	v1.GET("/bookings/:ref", d.Bookings.GetBooking)
	v1.DELETE("/bookings/:ref", d.Bookings.CancelBooking)

	// Administration.
	admin := v1.Group("", middleware.RequireRole("ADMIN"))
	admin.POST("/events/:id/layout", d.Events.CreateLayout)
	admin.POST("/events/:id/capacity", d.Events.CreateCapacity)
	admin.POST("/events/:id/layout/publish", d.Events.Publish)
	admin.DELETE("/events/:id/layout", d.Events.Delete)
	admin.PATCH("/events/:id/categories/:name/price", d.Events.UpdatePrice)
	admin.GET("/bookings", d.Bookings.ListBookings)
	admin.POST("/admin/cleanup", d.Admin.Cleanup)
}
