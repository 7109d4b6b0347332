// Package router registers the HTTP routes. Public browse endpoints take no
// auth; everything under /v1 that mutates state requires a bearer token, and
// the operator surface additionally requires the ADMIN role.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/campuspool/campuspool/internal/handler"
	"github.com/campuspool/campuspool/internal/middleware"
	"github.com/campuspool/campuspool/internal/model"
)

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints. Register, login, refresh and
// the passwordless code flow need no session; /v1/me and logout-all do.
// codeLimiter is the tighter bucket stacked on the login-code routes on top
// of the API-wide limiter, since every code request sends an email.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, codeLimiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/login-code", a.RequestLoginCode, codeLimiter)
	g.POST("/login-code/verify", a.VerifyLoginCode, codeLimiter)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/logout", a.Logout)
}

// RegisterRides registers ride browse and driver management endpoints.
// Search and detail are public; publishing and cancelling require a DRIVER
// token.
func RegisterRides(e *echo.Echo, r *handler.RideHandler, jwtSecret string) {
	e.GET("/v1/rides", r.Search)
	e.GET("/v1/rides/:id", r.Get)

	driver := e.Group("/v1/driver")
	driver.Use(middleware.JWTAuth(jwtSecret))
	driver.Use(middleware.RequireRole(model.RoleDriver))
	driver.POST("/rides", r.Create)
	driver.GET("/rides", r.MyRides)
	driver.DELETE("/rides/:id", r.Cancel)
}

// RegisterBookings registers the booking lifecycle. Booking, cancelling and
// disputing are rider actions; trip start accepts either party and trip
// completion is driver-only.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	rider := auth.Group("")
	rider.Use(middleware.RequireRole(model.RoleRider))
	rider.POST("/bookings", b.Book)
	rider.GET("/bookings", b.MyBookings)
	rider.POST("/bookings/:ref/dispute", b.Dispute)

	// Start and cancel are open to both parties; the service checks that
	// the caller is the rider or the driver of the booking.
	auth.POST("/bookings/:ref/start", b.StartTrip, middleware.RequireRole(model.RoleRider, model.RoleDriver))
	auth.DELETE("/bookings/:ref", b.Cancel, middleware.RequireRole(model.RoleRider, model.RoleDriver))

	driver := auth.Group("/driver")
	driver.Use(middleware.RequireRole(model.RoleDriver))
	driver.POST("/rides/:id/complete", b.CompleteTrip)
}

// RegisterAdmin registers the operator surface under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))
	g.GET("/dead-letters", a.DeadLetters)
	g.DELETE("/dead-letters", a.PurgeDeadLetters)
	g.POST("/dispatch", a.RunDispatch)
	g.PUT("/users/:id/driver-verified", a.VerifyDriver)
}
