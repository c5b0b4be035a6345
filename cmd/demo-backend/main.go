package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/sourcetrak/internal/config"
	"github.com/iliyamo/sourcetrak/internal/database"
	"github.com/iliyamo/sourcetrak/internal/handler"
	"github.com/iliyamo/sourcetrak/internal/repository"
	"github.com/iliyamo/sourcetrak/internal/router"
)

// demo-backend serves the SourceTrak backend contract from a local database
// so the web service and CLI can be exercised without the hosted API.
func main() {
	cfg := config.LoadDemoConfig()

	db, err := database.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("demo-backend: open db: %v", err)
	}
	defer db.Close()
	if err := repository.EnsureSchema(context.Background(), db, cfg.DB.Driver); err != nil {
		log.Fatalf("demo-backend: schema: %v", err)
	}

	h := handler.NewDemoHandler(repository.NewUserRepo(db), repository.NewBatchRepo(db), cfg.BcryptCost)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "user-id"},
	}))
	e.GET("/healthz", handler.Health)
	router.RegisterDemoBackend(e, h)

	addr := ":" + cfg.Port
	log.Printf("demo-backend listening on %s (db=%s)", addr, cfg.DB.Driver)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
