package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/handler"
)

// RegisterDemoBackend registers the backend contract served by the demo
// backend.  /batches/history is registered before /batches/:id so the
// literal segment wins.
func RegisterDemoBackend(e *echo.Echo, h *handler.DemoHandler) {
	e.POST("/login", h.Login)
	e.POST("/logout", h.Logout)

	e.POST("/users", h.CreateUser)
	e.GET("/users/:id", h.GetUser)

	e.POST("/batches", h.CreateBatch)
	e.GET("/batches/history", h.History)
	e.GET("/batches/:id", h.GetBatch)
	e.GET("/batches/:id/data", h.GetBatchData)
	e.GET("/batches/:id/blockchain", h.GetBatchBlockchain)

	e.POST("/data", h.SubmitData)
	e.GET("/data/event/:id", h.GetDataByEvent)
}
