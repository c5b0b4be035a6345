package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/handler"
	"github.com/iliyamo/sourcetrak/internal/metrics"
	"github.com/iliyamo/sourcetrak/internal/middleware"
)

// RegisterRoutes registers the probes and the metrics endpoint.  None of
// them require a session.
func RegisterRoutes(e *echo.Echo, ready handler.Readiness) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers sign-in, sign-up and the session-bound identity
// endpoints.  Login and signup are rate limited per client IP; limit is
// nil when Redis is unavailable.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, secret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	if limit != nil {
		g.Use(limit)
	}
	g.POST("/login", a.Login)
	g.POST("/signup", a.Signup)

	auth := e.Group("/api", middleware.Session(secret, a.Open))
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the anonymous batch pages reached through share
// links and QR codes.  cache is nil when response caching is off.
func RegisterPublic(e *echo.Echo, b *handler.BatchHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/batch")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("/:id", b.Public)
	g.GET("/:id/qr.json", b.QRJSON)
	g.GET("/:id/qr.png", b.QRPNG)
	g.GET("/:id/share", b.Share)
}
