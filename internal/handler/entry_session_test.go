package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/config"
	"github.com/iliyamo/sourcetrak/internal/middleware"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/session"
	"github.com/iliyamo/sourcetrak/internal/utils"
)

type farmerAuth struct{}

func (farmerAuth) Login(ctx context.Context, email, password string) (model.User, error) {
	return model.User{ID: "1", Name: "Ada", Email: email, Role: model.RoleFarmer}, nil
}

func (farmerAuth) CreateUser(ctx context.Context, nu model.NewUser) (model.User, error) {
	return model.User{}, nil
}

func (farmerAuth) Logout(ctx context.Context) error { return nil }

func (h *EntryHandler) pending(sid string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.flows[sid]
	return ok
}

func TestLogout_DropsPendingEntry(t *testing.T) {
	const secret = "test-secret-0123456789"
	snaps := session.NewMemorySnapshots()
	sid := utils.NewSessionID()
	if _, err := session.New(farmerAuth{}, snaps.For(sid)).Login(context.Background(), "ada@farm.test", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	tok, err := utils.NewSessionToken(secret, sid, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	entries := NewEntryHandler(nil, nil, nil, nil, nil, "", "")
	auth := NewAuthHandler(config.Config{SessionSecret: secret, SessionTTL: time.Hour}, farmerAuth{}, snaps, nil)
	auth.Entries = entries

	e := echo.New()
	g := e.Group("/api", middleware.Session(secret, auth.Open))
	g.POST("/entries", entries.Submit)
	g.POST("/logout", auth.Logout)

	post := func(path, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	// an incomplete form fails validation and stays attached to the session
	if code := post("/api/entries", `{"farm_name":"Green Acres"}`); code != http.StatusBadRequest {
		t.Fatalf("incomplete entry: %d", code)
	}
	if !entries.pending(sid) {
		t.Fatalf("expected a pending entry for the session")
	}

	if code := post("/api/logout", `{}`); code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	if entries.pending(sid) {
		t.Fatalf("pending entry survived logout")
	}
}
