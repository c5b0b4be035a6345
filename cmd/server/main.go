package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/config"
	"github.com/iliyamo/sourcetrak/internal/database"
	"github.com/iliyamo/sourcetrak/internal/handler"
	"github.com/iliyamo/sourcetrak/internal/middleware"
	"github.com/iliyamo/sourcetrak/internal/qr"
	"github.com/iliyamo/sourcetrak/internal/queue"
	"github.com/iliyamo/sourcetrak/internal/repository"
	"github.com/iliyamo/sourcetrak/internal/router"
	"github.com/iliyamo/sourcetrak/internal/service"
	"github.com/iliyamo/sourcetrak/internal/session"
)

func main() {
	cfg := config.Load() // Load environment config
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient() // nil when Redis is unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout)
	users := service.NewUserDirectory(api, rdb, cfg.UserCacheTTL)
	loader := service.NewBatchLoader(api, users)
	views := service.NewViews(loader, cfg.SessionTTL)

	// Entry cache: optional, the dashboard just loses its offline fallback.
	var store service.EntryStore
	db, err := openCacheDB(ctx, cfg.CacheDB)
	if err != nil {
		log.Printf("entry cache disabled: %v", err)
	} else {
		defer db.Close()
		store = repository.NewEntryCache(db)
	}
	history := service.NewHistoryService(api, store)

	var events handler.EntryPublisher
	if p := service.NewEventPublisher(cfg.RabbitURL, cfg.EventsEnabled); p != nil {
		events = p
	}
	if cfg.ConsumerEnabled {
		go func() {
			if err := queue.StartEntryConsumer(ctx, cfg.RabbitURL, cfg.EntryLogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("entry-consumer: stopped: %v", err)
			}
		}()
	}

	var archive handler.QRArchive
	if cfg.Archive.Bucket != "" {
		a, err := qr.NewS3Archive(ctx, qr.ArchiveConfig{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			PathStyle: cfg.Archive.PathStyle,
		})
		if err != nil {
			log.Printf("qr archive disabled: %v", err)
		} else {
			archive = a
		}
	}

	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	authH := handler.NewAuthHandler(cfg, api, session.NewSnapshots(rdb, cfg.SessionTTL), views)
	entryH := handler.NewEntryHandler(api, api, history, events, rdb, cacheCfg.Prefix, cfg.PublicOrigin)
	authH.Entries = entryH
	batchH := handler.NewBatchHandler(loader, views, history, archive, cfg.PublicOrigin)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	var limit, cache echo.MiddlewareFunc
	if rdb != nil && rlCfg.Enabled {
		limit = middleware.RateLimit(rlCfg, rdb)
	}
	if rdb != nil && cacheCfg.Enabled {
		cache = middleware.ResponseCache(cacheCfg, rdb)
	}

	router.RegisterRoutes(e, handler.Readiness{RDB: rdb, DB: db})
	router.RegisterAuth(e, authH, cfg.SessionSecret, limit)
	router.RegisterApp(e, authH, entryH, batchH, cfg.SessionSecret)
	router.RegisterPublic(e, batchH, cache)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, backend=%s)", addr, cfg.Env, api.BaseURL())

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openCacheDB(ctx context.Context, c config.DBConfig) (*sql.DB, error) {
	db, err := database.Open(c.Driver, c.DSN)
	if err != nil {
		return nil, err
	}
	if err := repository.EnsureSchema(ctx, db, c.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
