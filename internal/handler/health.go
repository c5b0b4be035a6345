package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is the liveness probe used by load balancers.  It returns a plain
// "ok" whenever the process can serve requests.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Readiness reports the state of the optional dependencies.  Redis and the
// entry cache are both optional, so a missing one is "disabled" rather than
// a failure; a configured one that does not answer makes the probe 503.
type Readiness struct {
	RDB *redis.Client
	DB  *sql.DB
}

func (r Readiness) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := echo.Map{}

	switch {
	case r.RDB == nil:
		out["redis"] = "disabled"
	case r.RDB.Ping(ctx).Err() != nil:
		out["redis"] = "down"
		status = http.StatusServiceUnavailable
	default:
		out["redis"] = "up"
	}

	switch {
	case r.DB == nil:
		out["cache_db"] = "disabled"
	case r.DB.PingContext(ctx) != nil:
		out["cache_db"] = "down"
		status = http.StatusServiceUnavailable
	default:
		out["cache_db"] = "up"
	}

	return c.JSON(status, out)
}
