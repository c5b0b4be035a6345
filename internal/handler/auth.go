package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/config"
	"github.com/iliyamo/sourcetrak/internal/metrics"
	"github.com/iliyamo/sourcetrak/internal/middleware"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/service"
	"github.com/iliyamo/sourcetrak/internal/session"
	"github.com/iliyamo/sourcetrak/internal/utils"
)

// PendingEntries holds unfinished entries per session.  *EntryHandler
// implements it.
type PendingEntries interface {
	Forget(sid string)
}

// AuthHandler signs users in against the backend and keeps their session
// snapshot server-side, keyed by the session id inside the token.
type AuthHandler struct {
	Cfg   config.Config
	API   session.AuthAPI
	Snaps session.Snapshots
	Views *service.Views

	// Entries, when set, drops the session's pending entry on logout.
	Entries PendingEntries
}

func NewAuthHandler(cfg config.Config, api session.AuthAPI, snaps session.Snapshots, views *service.Views) *AuthHandler {
	return &AuthHandler{Cfg: cfg, API: api, Snaps: snaps, Views: views}
}

// Open returns the session store of sid; it is the middleware's
// SessionOpener.
func (h *AuthHandler) Open(sid string) *session.Store {
	return session.New(h.API, h.Snaps.For(sid))
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupReq struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
}

type authResp struct {
	User    model.User `json:"user"`
	Token   string     `json:"token"`
	Expires time.Time  `json:"expires"`
}

// Login: authenticate against the backend and open a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required", "code": codeValidation})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.APITimeout+time.Second)
	defer cancel()

	sid := utils.NewSessionID()
	u, err := h.Open(sid).Login(ctx, req.Email, req.Password)
	metrics.AuthAttempts.WithLabelValues("login", metrics.Result(err)).Inc()
	if err != nil {
		return writeError(c, err, "Login failed")
	}
	return h.issue(c, sid, u, http.StatusOK)
}

// Signup: validate locally, register, and open a session for the new user.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Cfg.APITimeout+time.Second)
	defer cancel()

	sid := utils.NewSessionID()
	u, err := h.Open(sid).Signup(ctx, session.SignupData{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
	})
	metrics.AuthAttempts.WithLabelValues("signup", metrics.Result(err)).Inc()
	if err != nil {
		return writeError(c, err, "An unexpected error occurred. Please try again.")
	}
	return h.issue(c, sid, u, http.StatusCreated)
}

// Logout: tell the backend (best-effort) and always drop the session.
func (h *AuthHandler) Logout(c echo.Context) error {
	store, sid, ok := middleware.CurrentSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	out := store.Logout(c.Request().Context())
	if h.Views != nil {
		h.Views.Forget(sid)
	}
	if h.Entries != nil {
		h.Entries.Forget(sid)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"logged_out": true, "backend_acknowledged": out.OK()})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u, "is_farmer": u.IsFarmer()})
}

func (h *AuthHandler) issue(c echo.Context, sid string, u model.User, status int) error {
	tok, err := utils.NewSessionToken(h.Cfg.SessionSecret, sid, h.Cfg.SessionTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(status, authResp{User: u, Token: tok.Token, Expires: tok.Exp})
}
