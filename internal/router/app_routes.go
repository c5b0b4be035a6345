package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/handler"
	"github.com/iliyamo/sourcetrak/internal/middleware"
	"github.com/iliyamo/sourcetrak/internal/model"
)

// RegisterApp registers the signed-in endpoints: entry submission, the
// dashboard and batch detail.  Every route requires a session whose user
// holds one of the recognized roles.
func RegisterApp(e *echo.Echo, a *handler.AuthHandler, en *handler.EntryHandler, b *handler.BatchHandler, secret string) {
	g := e.Group(
		"/api",
		middleware.Session(secret, a.Open),
		middleware.RequireRole(model.Roles...),
	)
	g.GET("/entries/options", en.Options)
	g.POST("/entries", en.Submit)
	g.POST("/entries/reset", en.Reset)

	g.GET("/dashboard", b.Dashboard)
	g.GET("/batches/:id", b.Get)
}
