package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/config"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/session"
	"github.com/iliyamo/sourcetrak/internal/utils"
)

const testSecret = "0123456789abcdef"

func newTestEcho(t *testing.T) (*echo.Echo, *session.MemorySnapshots) {
	t.Helper()
	snaps := session.NewMemorySnapshots()
	open := func(sid string) *session.Store { return session.New(nil, snaps.For(sid)) }

	e := echo.New()
	api := e.Group("/api", Session(testSecret, open))
	api.GET("/me", func(c echo.Context) error {
		u, _ := CurrentUser(c)
		return c.JSON(http.StatusOK, u)
	})
	api.GET("/farm", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(model.RoleFarmer))
	return e, snaps
}

func login(t *testing.T, snaps *session.MemorySnapshots, sid string, u model.User) string {
	t.Helper()
	b := []byte(`{"id":"` + u.ID.String() + `","name":"` + u.Name + `","role":"` + string(u.Role) + `"}`)
	if err := snaps.For(sid).Save(context.Background(), b); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	tok, err := utils.NewSessionToken(testSecret, sid, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok.Token
}

func do(e *echo.Echo, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSession(t *testing.T) {
	e, snaps := newTestEcho(t)
	tok := login(t, snaps, "sid-1", model.User{ID: "1", Name: "Ann", Role: model.RoleRetailer})

	if rec := do(e, "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rec.Code)
	}
	if rec := do(e, "/api/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") }); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}
	rec := do(e, "/api/me", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok}) })
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie: got %d %s", rec.Code, rec.Body)
	}
	if rec := do(e, "/api/farm", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }); rec.Code != http.StatusForbidden {
		t.Fatalf("retailer on farmer route: got %d", rec.Code)
	}

	if err := snaps.For("sid-1").Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if rec := do(e, "/api/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token of a logged out session must be rejected, got %d", rec.Code)
	}
}

func TestRequireRole_Allows(t *testing.T) {
	e, snaps := newTestEcho(t)
	tok := login(t, snaps, "sid-2", model.User{ID: "2", Name: "Bo", Role: model.RoleFarmer})
	if rec := do(e, "/api/farm", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }); rec.Code != http.StatusNoContent {
		t.Fatalf("farmer: got %d", rec.Code)
	}
}

func TestWithoutRedis_PassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/batch/:id", func(c echo.Context) error { return c.String(http.StatusOK, c.Param("id")) },
		ResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil),
		RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		rec := do(e, "/batch/B1", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "B1" || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("request %d: %d %q cache=%q", i, rec.Code, rec.Body, rec.Header().Get("X-Cache"))
		}
	}
}

func TestCaptureWriter_Truncates(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	if !cw.truncated || rec.Body.String() != "abcdef" {
		t.Fatalf("truncated=%v body=%q", cw.truncated, rec.Body)
	}
}
